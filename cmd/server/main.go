package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/yukikurage/hive/internal/config"
	"github.com/yukikurage/hive/internal/logger"
)

var configPath string

// rootCmd runs the API server when no subcommand is given
var rootCmd = &cobra.Command{
	Use:   "hive",
	Short: "HIVE query desk API",
	Long: `HIVE is a query desk: members file issues, Heads and Admins triage,
assign, resolve or dismantle them.

Available subcommands:
  serve         - Run the HTTP API (default)
  migrate       - Create or update the database schema
  create-member - Create an account without OTP verification`,
	SilenceUsage: true,
	RunE:         runServe,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", os.Getenv("HIVE_CONFIG"), "Path to config YAML file")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(migrateCmd)
	rootCmd.AddCommand(createMemberCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func loadConfig() (*config.Config, *logger.Logger, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load config: %w", err)
	}
	return cfg, logger.New(cfg.LogLevel, cfg.LogFormat), nil
}
