package main

import (
	"context"
	"fmt"
	"os"

	"github.com/agnos-rpc/restful-probe/internal/cli"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "pkgdesc failed: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	return cli.NewPkgDesc().Execute(context.Background())
}
