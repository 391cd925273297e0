// Package cli implements the command line surfaces of restclient and pkgdesc.
package cli

import (
	"context"
	"io"

	"github.com/spf13/cobra"
)

// CLI wraps a root cobra command.
type CLI struct {
	rootCmd *cobra.Command
}

// Execute runs the root command with the given context.
func (c *CLI) Execute(ctx context.Context) error {
	c.rootCmd.SetContext(ctx)
	return c.rootCmd.Execute()
}

// SetArgs sets the arguments for the root command. Used for testing.
func (c *CLI) SetArgs(args []string) {
	c.rootCmd.SetArgs(args)
}

// SetOutput sets the output and error streams for the root command. Used for testing.
func (c *CLI) SetOutput(out, err io.Writer) {
	c.rootCmd.SetOut(out)
	c.rootCmd.SetErr(err)
}
