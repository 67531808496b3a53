// Package cmd provides the CLI commands for rigqa.
package cmd

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/rigdocs/rigqa/internal/config"
	"github.com/rigdocs/rigqa/internal/logging"
	"github.com/rigdocs/rigqa/internal/profiling"
	"github.com/rigdocs/rigqa/pkg/version"
)

// Persistent flags shared by every command.
var (
	flagConfig   string
	flagDataDir  string
	flagLogLevel string
	flagQuiet    bool
	flagProfile  string

	profileSession *profiling.Session
)

// NewRootCmd creates the root command for the rigqa CLI.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "rigqa",
		Short: "Date-aware question answering over operational documents",
		Long: `rigqa indexes operational documents (daily drilling reports, handover
notes, procedures) and answers questions about them with source
citations.

Questions anchored on a date ("What was done on Sept 6?") route through
a keyword index that understands date formats like 6-Sept and 6/9/25;
everything else goes through semantic search.

Start with 'rigqa index ./reports', then 'rigqa ask' or 'rigqa chat'.`,
		Version:      version.Version,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	// Set version template
	cmd.SetVersionTemplate("rigqa version {{.Version}}\n")

	// Persistent flags
	cmd.PersistentFlags().StringVar(&flagConfig, "config", "", "Config file (overrides .rigqa.yaml discovery)")
	cmd.PersistentFlags().StringVar(&flagDataDir, "data-dir", "", "Index data directory (default ~/.rigqa)")
	cmd.PersistentFlags().StringVar(&flagLogLevel, "log-level", "", "Log level: debug, info, warn, error")
	cmd.PersistentFlags().BoolVarP(&flagQuiet, "quiet", "q", false, "Suppress status output, keep answers and errors")
	cmd.PersistentFlags().StringVar(&flagProfile, "profile", "", "Write pprof profiles to this directory")

	// Environment and profiling hooks
	cmd.PersistentPreRunE = startCommandEnv
	cmd.PersistentPostRunE = stopCommandEnv

	// Add subcommands
	cmd.AddCommand(newInitCmd())
	cmd.AddCommand(newIndexCmd())
	cmd.AddCommand(newAskCmd())
	cmd.AddCommand(newSearchCmd())
	cmd.AddCommand(newChatCmd())
	cmd.AddCommand(newSummaryCmd())
	cmd.AddCommand(newStatsCmd())
	cmd.AddCommand(newServeCmd())
	cmd.AddCommand(newDaemonCmd())
	cmd.AddCommand(newVersionCmd())

	return cmd
}

// startCommandEnv loads .env and starts profiling if requested.
func startCommandEnv(_ *cobra.Command, _ []string) error {
	// A missing .env file is the normal case.
	_ = godotenv.Load()

	if flagProfile != "" {
		session, err := profiling.Start(flagProfile)
		if err != nil {
			return fmt.Errorf("failed to start profiling: %w", err)
		}
		profileSession = session
	}
	return nil
}

// stopCommandEnv finishes the profiling session.
func stopCommandEnv(_ *cobra.Command, _ []string) error {
	if profileSession == nil {
		return nil
	}
	err := profileSession.Stop()
	profileSession = nil
	if err != nil {
		return fmt.Errorf("failed to write profiles: %w", err)
	}
	return nil
}

// Execute runs the root command.
func Execute() error {
	return NewRootCmd().Execute()
}

// loadConfig resolves the effective configuration: defaults, then user
// and corpus config files, then environment, then persistent flags.
func loadConfig() (*config.Config, error) {
	// The loader reads RIGQA_CONFIG, so the flag maps onto the same path.
	if flagConfig != "" {
		if err := os.Setenv("RIGQA_CONFIG", flagConfig); err != nil {
			return nil, err
		}
	}

	cwd, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("failed to get working directory: %w", err)
	}

	cfg, err := config.Load(cwd)
	if err != nil {
		return nil, err
	}

	if flagDataDir != "" {
		cfg.Storage.DataDir = flagDataDir
	}
	if flagLogLevel != "" {
		cfg.Server.LogLevel = flagLogLevel
		if err := cfg.Validate(); err != nil {
			return nil, err
		}
	}
	return cfg, nil
}

// setupFileLogging routes slog to a file under the data directory,
// keeping stdout clean for command output. The returned cleanup
// flushes the log file.
func setupFileLogging(cfg *config.Config) func() {
	logCfg := logging.DefaultConfig()
	logCfg.Level = cfg.Server.LogLevel
	logCfg.FilePath = logging.PathInDir(cfg.Storage.DataDir)
	logCfg.WriteToStderr = false

	logger, cleanup, err := logging.Setup(logCfg)
	if err != nil {
		// Continue even if logging setup fails
		return func() {}
	}
	slog.SetDefault(logger)
	return cleanup
}

// fileExists checks if a file exists.
func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
