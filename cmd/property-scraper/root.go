package main

import (
	"fmt"
	"os"

	"github.com/Sternrassler/county-property-scraper/pkg/logging"
	"github.com/spf13/cobra"
)

// NewRootCmd creates the root command.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "property-scraper",
		Short: "Scrape the county-owned properties portal into CSV files",
		Long: `property-scraper requests the county-owned properties portal page by page
for each entry of a query catalog, merges the result tables and writes them
to {output}/{group}/{date}_{label}.csv together with a parameters sidecar and
a per-group provenance log.`,
		Version:           getVersion(),
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: setupLogging,
	}

	cmd.PersistentFlags().String("log-level", getEnv("LOG_LEVEL", "info"),
		"Log level: debug, info, warn, error (env LOG_LEVEL)")
	cmd.PersistentFlags().Bool("log-pretty", false, "Human-readable console logs instead of JSON")

	cmd.AddCommand(NewRunCmd())
	cmd.AddCommand(NewCatalogCmd())
	cmd.AddCommand(NewHistoryCmd())
	cmd.AddCommand(NewVersionCmd())

	return cmd
}

// Execute runs the root command.
func Execute() {
	if err := NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func setupLogging(cmd *cobra.Command, _ []string) error {
	levelName, err := cmd.Flags().GetString("log-level")
	if err != nil {
		return err
	}
	level, err := logging.ParseLevel(levelName)
	if err != nil {
		return err
	}
	pretty, err := cmd.Flags().GetBool("log-pretty")
	if err != nil {
		return err
	}

	cfg := logging.DefaultConfig()
	cfg.Level = level
	cfg.Pretty = pretty
	cfg.Output = cmd.ErrOrStderr()
	logging.Setup(cfg)
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
