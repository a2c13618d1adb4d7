package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/kozaktomas/facegraph/internal/config"
	"github.com/kozaktomas/facegraph/internal/consolidation"
	"github.com/kozaktomas/facegraph/internal/database"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply pending schema migrations",
	Long: `Apply pending schema migrations and list the applied versions.
Every command migrates on open; this one only reports.`,
	Args: cobra.NoArgs,
	RunE: runMigrate,
}

func init() {
	rootCmd.AddCommand(migrateCmd)
}

// migrationLister is implemented by SQL backends.
type migrationLister interface {
	MigrationsApplied(ctx context.Context) ([]string, error)
}

func runMigrate(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	return withService(ctx, func(_ *config.Config, backend database.Backend, _ *consolidation.Service) error {
		lister, ok := backend.(migrationLister)
		if !ok {
			fmt.Printf("%s backend has no migrations\n", backend.Name())
			return nil
		}
		versions, err := lister.MigrationsApplied(ctx)
		if err != nil {
			return fmt.Errorf("listing migrations: %w", err)
		}
		fmt.Printf("Schema up to date (%s):\n", backend.Name())
		for _, v := range versions {
			fmt.Printf("  %s\n", v)
		}
		return nil
	})
}
