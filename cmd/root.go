package cmd

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/kozaktomas/facegraph/internal/config"
	"github.com/kozaktomas/facegraph/internal/observability"
)

var rootCmd = &cobra.Command{
	Use:   "facegraph",
	Short: "Consolidate face clusters and repair their similarity graph",
	Long: `facegraph merges face clusters that belong to the same identity.

A merge moves every face of the source cluster into the target cluster and
repairs the cluster similarity graph in the same transaction: edges of the
source are removed, duplicate edges collapsed and self-references dropped.
The store is PostgreSQL (DATABASE_DRIVER=postgres) or a SQLite file
(DATABASE_DRIVER=sqlite).`,
	SilenceUsage: true,
}

var logger zerolog.Logger

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)
}

func initConfig() {
	// .env file is optional, don't fail if not found
	_ = godotenv.Load()

	cfg := config.Load()
	logger = observability.InitLogger("facegraph", cfg.Log.Level, cfg.Log.Format)
}
