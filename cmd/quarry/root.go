package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/aretw0/quarry/internal/cli"
	"github.com/aretw0/quarry/internal/config"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "quarry",
	Short: "Quarry builds data-analysis queries through a guided conversation",
	Long: `Quarry walks you through choosing a dataset, targets, features and constraints
in plain language and produces a JSON query document for the analysis backend.`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	// Persistent flags (available to all commands)
	rootCmd.PersistentFlags().StringP("config", "c", "", "Config file (default ./quarry.yaml when present)")
	rootCmd.PersistentFlags().String("store", "", "Session store backend: memory, file or redis")
	rootCmd.PersistentFlags().Bool("debug", false, "Enable debug logging")
}

// loadConfig reads the config file and applies persistent flag overrides.
func loadConfig(cmd *cobra.Command) (config.Config, error) {
	path, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(path)
	if err != nil {
		return cfg, err
	}
	if backend, _ := cmd.Flags().GetString("store"); backend != "" {
		cfg.Store.Backend = backend
		if err := cfg.Validate(); err != nil {
			return cfg, err
		}
	}
	return cfg, nil
}

// setup loads configuration and builds the application.
func setup(cmd *cobra.Command, reg prometheus.Registerer) (*cli.App, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}
	debug, _ := cmd.Flags().GetBool("debug")
	logger, err := cli.NewLogger(cfg, debug)
	if err != nil {
		return nil, err
	}
	slog.SetDefault(logger)
	return cli.NewApp(cfg, logger, reg)
}
