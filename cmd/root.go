// Package cmd defines the CLI commands for the summarizer executable.
package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/JakeFAU/page-summarizer/internal/config"
	"github.com/JakeFAU/page-summarizer/internal/server"
)

// configKeyType is the key for storing the loaded Config in the context.
type configKeyType string

const configKey configKeyType = "config"

// Runner is the slice of *server.App the serve command needs.
// Tests swap in a fake through buildApp.
type Runner interface {
	Run(ctx context.Context) error
}

// buildApp is the application factory. It's a variable so tests can replace it.
var buildApp = func(ctx context.Context, cfg *config.Config) (Runner, error) {
	return server.Build(ctx, cfg)
}

// loadConfig is swapped in tests to avoid touching the environment.
var loadConfig = config.Load

// newRootCmd creates and configures the root command.
func newRootCmd() *cobra.Command {
	var cfgFile string

	cmd := &cobra.Command{
		Use:   "summarizer",
		Short: "An HTTP service that summarizes web pages in the background.",
		Long: `summarizer accepts URLs over HTTP, stores a pending record for each one,
and fetches and summarizes the page on a background worker pool. Clients poll
the record until it reaches completed or failed.`,
		SilenceUsage: true,

		// Config is loaded once here so every subcommand sees the same values.
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(cfgFile)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			cmd.SetContext(context.WithValue(cmd.Context(), configKey, &cfg))
			return nil
		},
		RunE: runServe,
	}

	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "path to a config file (yaml, json, or toml)")

	cmd.AddCommand(newServeCmd())
	cmd.AddCommand(newMigrateCmd())

	return cmd
}

func resolveConfig(ctx context.Context) (*config.Config, error) {
	cfg, ok := ctx.Value(configKey).(*config.Config)
	if !ok || cfg == nil {
		return nil, fmt.Errorf("configuration not loaded")
	}
	return cfg, nil
}

// Execute is the main entry point.
func Execute() {
	if err := newRootCmd().ExecuteContext(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "summarizer: %v\n", err)
		os.Exit(1)
	}
}
