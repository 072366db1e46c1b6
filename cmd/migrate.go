package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/JakeFAU/page-summarizer/internal/clock/system"
	"github.com/JakeFAU/page-summarizer/internal/server"
)

// newMigrateCmd creates the 'migrate' subcommand, which applies pending schema
// migrations for the configured backend and exits.
func newMigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Applies pending schema migrations to the record store",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := resolveConfig(cmd.Context())
			if err != nil {
				return err
			}
			store, err := server.OpenStore(cmd.Context(), cfg.Database, system.New())
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			applied, err := server.Migrate(cmd.Context(), store)
			if err != nil {
				return err
			}
			if !applied {
				fmt.Fprintf(cmd.OutOrStdout(), "backend %q has no schema; nothing to migrate\n", cfg.Database.Backend)
				return nil
			}
			fmt.Fprintf(cmd.OutOrStdout(), "migrations applied to %s backend\n", cfg.Database.Backend)
			return nil
		},
	}
}
