package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/nvandessel/triad-choice/internal/config"
	"github.com/nvandessel/triad-choice/internal/logging"
	"github.com/nvandessel/triad-choice/internal/store"
	"github.com/spf13/cobra"
)

var (
	version = "0.1.0-dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "triad",
		Short: "Two-alternative forced-choice rotation similarity task",
		Long: `triad runs a 2AFC psychophysics session: each trial shows a reference
image of an object at some rotation and asks which of two comparison
rotations looks more similar.

Responses are archived locally and exported as CSV.`,
		SilenceUsage: true,
	}

	// Global flags
	rootCmd.PersistentFlags().Bool("json", false, "Output as JSON")
	rootCmd.PersistentFlags().String("data-dir", "", "Data directory for config, archive and decision log (default ~/.triad)")

	rootCmd.AddCommand(
		newVersionCmd(),
		newRunCmd(),
		newSimulateCmd(),
		newSessionsCmd(),
		newExportCmd(),
		newConfigCmd(),
	)

	return rootCmd
}

// resolveDataDir returns --data-dir, or ~/.triad when unset.
func resolveDataDir(cmd *cobra.Command) (string, error) {
	dir, _ := cmd.Flags().GetString("data-dir")
	if dir != "" {
		return dir, nil
	}
	return config.DefaultDir()
}

// loadConfig loads --config when given, otherwise <data dir>/config.yaml.
// Both paths apply environment overrides.
func loadConfig(cmd *cobra.Command, dataDir string) (*config.TriadConfig, error) {
	var (
		cfg *config.TriadConfig
		err error
	)
	path, _ := cmd.Flags().GetString("config")
	if path != "" {
		cfg, err = config.LoadPath(path)
	} else {
		cfg, err = config.Load(dataDir)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return cfg, nil
}

// newLoggers builds the stderr logger and the decision log for cfg.
// The decision logger is nil at info level.
func newLoggers(cfg *config.TriadConfig, dataDir string, w io.Writer) (*slog.Logger, *logging.DecisionLogger) {
	logger := logging.NewLoggerWithFormat(cfg.Logging.Level, cfg.Logging.Format, w)
	return logger, logging.NewDecisionLogger(dataDir, cfg.Logging.Level)
}

// openStore opens the SQLite archive in dataDir, or an in-memory store when
// archiving is disabled.
func openStore(dataDir string, archive bool) (store.SessionStore, error) {
	if !archive {
		return store.NewInMemorySessionStore(), nil
	}
	s, err := store.NewSQLiteSessionStore(dataDir)
	if err != nil {
		return nil, fmt.Errorf("failed to open session archive: %w", err)
	}
	return s, nil
}
