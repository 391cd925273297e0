package cli

import (
	"encoding/json"
	"fmt"

	"github.com/agnos-rpc/restful-probe/internal/app"
	"github.com/agnos-rpc/restful-probe/internal/config"
	"github.com/agnos-rpc/restful-probe/internal/logger"
	"github.com/agnos-rpc/restful-probe/pkg/targets"
	"github.com/spf13/cobra"
)

// NewRestClient builds the restclient command tree. With no subcommand it
// calls the configured gateway function once and prints the response body.
func NewRestClient() *CLI {
	var (
		params   []string
		selector string
	)

	rootCmd := &cobra.Command{
		Use:           "restclient",
		Short:         "Call a function on the RPC gateway's RESTful endpoint and print the response",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, log, err := loadRuntime(cmd)
			if err != nil {
				return err
			}
			defer logger.Close()
			logger.InfoObj("restclient starting", "config", cfg)

			parsed, err := targets.ParseParams(params)
			if err != nil {
				return err
			}

			prober, err := app.NewProber(cmd.Context(), cfg, log, app.Options{
				Params:   parsed,
				Selector: selector,
			})
			if err != nil {
				logger.ErrorObj("failed to initialize prober", "error", err.Error())
				return err
			}

			if err := prober.Run(cmd.Context(), cmd.OutOrStdout()); err != nil {
				log.ErrorObj("probe failed", "probe_error", map[string]any{
					"url":   prober.Target().URL(),
					"error": err.Error(),
				})
				return err
			}
			return nil
		},
	}

	pf := rootCmd.PersistentFlags()
	pf.String("log-level", "", "Log level (debug, info, warn, error)")
	pf.String("targets-file", "", "YAML/JSON file with named targets")
	pf.String("storage", "", "History storage backend (none, bbolt)")
	pf.String("bbolt-path", "", "Path of the bbolt history database")

	f := rootCmd.Flags()
	f.String("target", "", "Target id to call")
	f.String("host", "", "Gateway host override")
	f.Int("port", 0, "Gateway port override")
	f.String("function", "", "Gateway function override")
	f.String("format", "", "Response format override")
	f.Int64("timeout", 0, "Request timeout in seconds (0 waits forever)")
	f.Int64("watch", 0, "Repeat the call every N seconds until interrupted")
	f.String("publishers-file", "", "YAML/JSON file with result sinks")
	f.StringArrayVar(&params, "param", nil, "Call parameter as key=value (repeatable)")
	f.StringVar(&selector, "select", "", "Print the text of elements matching this CSS selector instead of the raw body")

	rootCmd.AddCommand(newHistoryCmd(), newTargetsCmd())

	return &CLI{rootCmd: rootCmd}
}

func newHistoryCmd() *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Print recorded probe results as JSON lines, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, _, err := loadRuntime(cmd)
			if err != nil {
				return err
			}
			defer logger.Close()

			entries, err := app.History(cfg, limit)
			if err != nil {
				return err
			}
			if len(entries) == 0 {
				logger.WarnObj("no probe history recorded", "bbolt_path", cfg.BBoltPath)
			}
			logger.DebugObj("history loaded", "history_meta", map[string]any{
				"count": len(entries),
				"limit": limit,
			})
			enc := json.NewEncoder(cmd.OutOrStdout())
			for _, e := range entries {
				if err := enc.Encode(e); err != nil {
					return err
				}
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 20, "Maximum number of entries (0 for all)")
	return cmd
}

func newTargetsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "targets",
		Short: "List known targets and the URL each one calls",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, _, err := loadRuntime(cmd)
			if err != nil {
				return err
			}
			defer logger.Close()

			reg, err := targets.LoadRegistry(cfg.TargetsFile)
			if err != nil {
				return fmt.Errorf("load targets registry: %w", err)
			}
			for _, id := range reg.IDs() {
				t, _ := reg.ByID(id)
				fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\n", id, t.URL())
			}
			return nil
		},
	}
}

func loadRuntime(cmd *cobra.Command) (*config.Config, logger.Logger, error) {
	cfg, err := config.Load(cmd.Flags())
	if err != nil {
		return nil, nil, fmt.Errorf("load config: %w", err)
	}
	log, err := logger.Init(cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("init logger: %w", err)
	}
	return cfg, log, nil
}
