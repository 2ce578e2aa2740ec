// Package cli wires the commands: login, sync, report, export and
// notion. Credentials come from the environment, tunables from an
// optional YAML file.
package cli

import (
	"fmt"
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/Yeboster/trade-republic-tracker/internal/config"
	"github.com/Yeboster/trade-republic-tracker/internal/logger"
)

var (
	configPath string
	verbose    bool
)

var rootCmd = &cobra.Command{
	Use:   "trtracker",
	Short: "Track and analyze Trade Republic transactions",
	Long: `trtracker synchronizes the transaction timeline of a Trade Republic
account into a local SQLite database and reports on it.

Quick start:
  trtracker login                 # one-time SMS code exchange
  trtracker sync                  # pull new transactions
  trtracker report                # spending summary
  trtracker export --format csv   # card transactions for spreadsheets

Credentials are read from TR_PHONE and TR_PIN; the one-time code is
prompted for (or taken from TR_OTP in non-interactive runs).`,
	SilenceUsage: true,
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", defaultConfigPath(), "Path to the YAML config file")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")
}

func defaultConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "trtracker.yaml"
	}
	return home + "/.trtracker/config.yaml"
}

// setup loads the configuration and builds the process logger.
func setup() (config.Config, zerolog.Logger, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return cfg, zerolog.Nop(), fmt.Errorf("setup: %w", err)
	}
	return cfg, logger.New(verbose), nil
}
