// Package cli implements the command-line interface for the headlines service.
package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/colthorp/headlines-go/internal/config"
	"github.com/colthorp/headlines-go/internal/core"
)

// Global flags
var (
	verbose    bool
	quiet      bool
	raw        bool
	configPath string
	dataDir    string
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:           "headlines",
	Short:         "Headlines – positive news with a snapshot cache",
	Long:          `Fetches positive technology headlines into dated CSV snapshots and serves them from a cache that refreshes only when needed.`,
	Version:       core.Version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func init() {
	// Persistent flags available to all commands
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", fmt.Sprintf("Config file (default: %s)", config.DefaultConfigPath()))
	rootCmd.PersistentFlags().StringVar(&dataDir, "data-dir", "", "Snapshot directory (overrides config)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Verbose debug output to stderr")
	rootCmd.PersistentFlags().BoolVar(&quiet, "quiet", false, "Suppress progress messages")
	rootCmd.PersistentFlags().BoolVar(&raw, "raw", false, "Emit raw JSON instead of text")
}

// loadConfig loads the config file and applies --data-dir.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	if dataDir != "" {
		cfg.DataDir = dataDir
	}
	return cfg, nil
}
