package logging

import (
	"log/slog"
)

// SetupMCPMode initializes logging for `rigqa serve` (MCP over stdio).
// The MCP protocol requires stdout to carry JSON-RPC exclusively, and
// clients also capture stderr, so serve mode logs to file only.
func SetupMCPMode() (func(), error) {
	return SetupMCPModeWithLevel("debug")
}

// SetupMCPModeWithLevel initializes file-only logging with a specific
// level and installs it as the default logger.
func SetupMCPModeWithLevel(level string) (func(), error) {
	cfg := Config{
		Level:         level,
		FilePath:      DefaultLogPath(),
		MaxSizeMB:     10,
		MaxFiles:      5,
		WriteToStderr: false, // never touch stderr while serving stdio
	}

	logger, cleanup, err := Setup(cfg)
	if err != nil {
		return nil, err
	}

	slog.SetDefault(logger)
	logger.Info("serve mode logging initialized",
		slog.String("log_file", cfg.FilePath),
		slog.String("level", cfg.Level))

	return cleanup, nil
}
