package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/rigdocs/rigqa/internal/daemon"
	"github.com/rigdocs/rigqa/internal/logging"
	"github.com/rigdocs/rigqa/internal/output"
)

func newDaemonCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "daemon",
		Short: "Manage the background query daemon",
		Long: `The daemon keeps the index, embedder, and generator warm between
CLI invocations, so repeated 'rigqa ask' calls skip the model load.

Commands:
  start   Start the daemon (runs in background by default)
  stop    Stop the running daemon
  status  Show daemon status and health

While a daemon is running it holds the data directory, and ask/search
commands route their queries through it automatically. It shuts itself
down after 30 minutes without a query.

Examples:
  rigqa daemon start      # Start daemon in background
  rigqa daemon start -f   # Run in foreground (for debugging)
  rigqa daemon status     # Check if daemon is running
  rigqa daemon stop       # Stop the daemon`,
	}

	cmd.AddCommand(newDaemonStartCmd())
	cmd.AddCommand(newDaemonStopCmd())
	cmd.AddCommand(newDaemonStatusCmd())

	return cmd
}

func newDaemonStartCmd() *cobra.Command {
	var foreground bool

	cmd := &cobra.Command{
		Use:   "start",
		Short: "Start the background daemon",
		Long: `Start the query daemon in the background.

The daemon answers ask and search requests over a Unix socket, keeping
the embedding model and index loaded between queries. By default it
runs in the background.

Use --foreground for debugging or to see logs in real-time.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDaemonStart(cmd.Context(), cmd, foreground)
		},
	}

	cmd.Flags().BoolVarP(&foreground, "foreground", "f", false, "Run in foreground (don't daemonize)")
	return cmd
}

func newDaemonStopCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stop",
		Short: "Stop the running daemon",
		Long: `Stop the running query daemon.

Sends SIGTERM to the daemon process for graceful shutdown, releasing
the data directory for indexing.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDaemonStop(cmd)
		},
	}
}

func newDaemonStatusCmd() *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show daemon status",
		Long: `Show the current status of the query daemon.

Displays whether the daemon is running, its process ID, uptime,
backend status, and index size.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDaemonStatus(cmd.Context(), cmd, jsonOutput)
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")
	return cmd
}

func runDaemonStart(ctx context.Context, cmd *cobra.Command, foreground bool) error {
	out := output.NewQuiet(cmd.OutOrStdout(), flagQuiet)

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	dcfg := daemon.ConfigForDataDir(cfg.Storage.DataDir)

	// Check if already running
	client := daemon.NewClient(dcfg)
	if client.IsRunning() {
		out.Status("", "Daemon is already running")
		return nil
	}

	if foreground {
		logCfg := logging.DefaultConfig()
		logCfg.Level = cfg.Server.LogLevel
		logCfg.FilePath = logging.PathInDir(cfg.Storage.DataDir)
		logCfg.WriteToStderr = true
		if logger, cleanup, err := logging.Setup(logCfg); err == nil {
			slog.SetDefault(logger)
			defer cleanup()
		}

		out.Status("", "Starting daemon in foreground...")
		out.Status("", fmt.Sprintf("Socket: %s", dcfg.SocketPath))
		out.Status("", fmt.Sprintf("Logs: %s", logCfg.FilePath))
		out.Status("", "Press Ctrl+C to stop")
		out.Newline()

		d, err := daemon.NewDaemon(dcfg, daemon.WithAppConfig(cfg))
		if err != nil {
			slog.Error("Failed to create daemon", slog.String("error", err.Error()))
			return fmt.Errorf("failed to create daemon: %w", err)
		}

		return d.Start(ctx)
	}

	// Run in background
	out.Status("", "Starting daemon in background...")

	// Re-execute self with foreground flag
	execPath, err := os.Executable()
	if err != nil {
		return fmt.Errorf("failed to get executable path: %w", err)
	}

	// Forward the flags that change which index the daemon serves.
	args := []string{"daemon", "start", "--foreground"}
	if flagConfig != "" {
		args = append(args, "--config", flagConfig)
	}
	if flagDataDir != "" {
		args = append(args, "--data-dir", flagDataDir)
	}
	if flagLogLevel != "" {
		args = append(args, "--log-level", flagLogLevel)
	}

	bgCmd := exec.Command(execPath, args...)
	bgCmd.Stdout = nil
	bgCmd.Stderr = nil
	bgCmd.Stdin = nil

	// Detach from parent
	bgCmd.SysProcAttr = &syscall.SysProcAttr{
		Setsid: true,
	}

	if err := bgCmd.Start(); err != nil {
		return fmt.Errorf("failed to start daemon: %w", err)
	}

	// Monitor child exit to reap the process and catch early failures
	done := make(chan error, 1)
	go func() { done <- bgCmd.Wait() }()

	// Wait for daemon to be ready
	for i := 0; i < 20; i++ {
		select {
		case err := <-done:
			if err != nil {
				return fmt.Errorf("daemon process exited unexpectedly: %w", err)
			}
			return fmt.Errorf("daemon process exited unexpectedly with code 0")
		default:
			// Child still running, keep checking connectivity
		}

		time.Sleep(100 * time.Millisecond)
		if client.IsRunning() {
			out.Success(fmt.Sprintf("Daemon started (pid: %d)", bgCmd.Process.Pid))
			return nil
		}
	}

	return fmt.Errorf("daemon failed to start within timeout")
}

func runDaemonStop(cmd *cobra.Command) error {
	out := output.NewQuiet(cmd.OutOrStdout(), flagQuiet)

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	dcfg := daemon.ConfigForDataDir(cfg.Storage.DataDir)

	pidFile := daemon.NewPIDFile(dcfg.PIDPath)

	if !pidFile.IsRunning() {
		out.Status("", "Daemon is not running")
		return nil
	}

	pid, err := pidFile.Read()
	if err != nil {
		return fmt.Errorf("failed to read PID: %w", err)
	}

	// Send SIGTERM
	if err := pidFile.Signal(syscall.SIGTERM); err != nil {
		return fmt.Errorf("failed to stop daemon: %w", err)
	}

	// Wait for process to exit
	for i := 0; i < 50; i++ {
		time.Sleep(100 * time.Millisecond)
		if !pidFile.IsRunning() {
			out.Success(fmt.Sprintf("Daemon stopped (was pid: %d)", pid))
			return nil
		}
	}

	// Force kill if still running
	out.Status("", "Daemon not responding, sending SIGKILL...")
	if err := pidFile.Signal(syscall.SIGKILL); err != nil {
		return fmt.Errorf("failed to kill daemon: %w", err)
	}

	out.Success("Daemon killed")
	return nil
}

func runDaemonStatus(ctx context.Context, cmd *cobra.Command, jsonOutput bool) error {
	out := output.NewQuiet(cmd.OutOrStdout(), flagQuiet)

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	dcfg := daemon.ConfigForDataDir(cfg.Storage.DataDir)

	client := daemon.NewClient(dcfg)

	if !client.IsRunning() {
		if jsonOutput {
			status := daemon.StatusResult{Running: false}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(status)
		}
		out.Status("", "Daemon is not running")
		out.Status("", "Run 'rigqa daemon start' to start it")
		return nil
	}

	status, err := client.Status(ctx)
	if err != nil {
		return fmt.Errorf("failed to get status: %w", err)
	}

	if jsonOutput {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(status)
	}

	out.Status("", "Daemon is running")
	out.Status("", fmt.Sprintf("  PID:        %d", status.PID))
	out.Status("", fmt.Sprintf("  Uptime:     %s", status.Uptime))
	out.Status("", fmt.Sprintf("  Embedder:   %s (%s)", status.Embedder, status.EmbedderStatus))
	out.Status("", fmt.Sprintf("  Generator:  %s (%s)", status.Generator, status.GeneratorStatus))
	if status.IndexLoaded {
		out.Status("", fmt.Sprintf("  Index:      %d documents, %d chunks", status.Documents, status.Chunks))
	} else {
		out.Status("", "  Index:      not loaded yet (loads on first query)")
	}
	out.Status("", fmt.Sprintf("  Socket:     %s", dcfg.SocketPath))

	return nil
}
