package cli

import (
	"fmt"

	"github.com/agnos-rpc/restful-probe/pkg/pkgmeta"
	"github.com/spf13/cobra"
)

// NewPkgDesc builds the pkgdesc command tree for inspecting the package descriptor.
func NewPkgDesc() *CLI {
	var file string

	rootCmd := &cobra.Command{
		Use:           "pkgdesc",
		Short:         "Inspect the agnos_restful_webserver package descriptor",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().StringVar(&file, "file", "", "Descriptor file (YAML or JSON); the built-in descriptor when empty")

	rootCmd.AddCommand(newShowCmd(&file), newValidateCmd(&file))
	return &CLI{rootCmd: rootCmd}
}

func newShowCmd(file *string) *cobra.Command {
	var output string
	cmd := &cobra.Command{
		Use:   "show",
		Short: "Print the descriptor",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			d, err := pkgmeta.Load(*file)
			if err != nil {
				return err
			}
			out, err := d.Render(output)
			if err != nil {
				return err
			}
			_, err = cmd.OutOrStdout().Write(out)
			return err
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "yaml", "Output format (yaml, json)")
	return cmd
}

func newValidateCmd(file *string) *cobra.Command {
	var (
		checkDirs bool
		root      string
	)
	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Check the descriptor for missing fields and dangling package directories",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			d, err := pkgmeta.Load(*file)
			if err != nil {
				return err
			}
			if err := d.Validate(); err != nil {
				return fmt.Errorf("invalid descriptor: %w", err)
			}
			if checkDirs {
				if err := d.CheckSourceDirs(root); err != nil {
					return fmt.Errorf("source directories: %w", err)
				}
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s %s ok\n", d.Name, d.Version)
			return nil
		},
	}
	cmd.Flags().BoolVar(&checkDirs, "check-dirs", false, "Also verify every package's source directory exists")
	cmd.Flags().StringVar(&root, "root", ".", "Directory package_dir entries are relative to")
	return cmd
}
