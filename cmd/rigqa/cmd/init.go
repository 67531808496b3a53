package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/rigdocs/rigqa/configs"
	"github.com/rigdocs/rigqa/internal/config"
	"github.com/rigdocs/rigqa/internal/lifecycle"
	"github.com/rigdocs/rigqa/internal/output"
	"github.com/rigdocs/rigqa/pkg/version"
)

func newInitCmd() *cobra.Command {
	var (
		user    bool
		force   bool
		offline bool
	)

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write a starter config and check the answer backends",
		Long: `Write the commented starter configuration and verify the Ollama
backends rigqa answers with.

By default the config lands in .rigqa.yaml next to your documents;
--user writes the machine-wide config instead. Existing files are
preserved unless --force is given.

The backend check starts Ollama if it is installed but stopped and
pulls missing models. Without Ollama, rigqa still works with static
embeddings and extractive answers.`,
		Example: `  # Write .rigqa.yaml in the current directory
  rigqa init

  # Write the user config (~/.config/rigqa/config.yaml)
  rigqa init --user

  # Overwrite an existing config
  rigqa init --force

  # Skip the Ollama checks
  rigqa init --offline`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			return runInit(ctx, cmd, user, force, offline)
		},
	}

	cmd.Flags().BoolVar(&user, "user", false, "Write the user config instead of .rigqa.yaml")
	cmd.Flags().BoolVar(&force, "force", false, "Overwrite an existing config file")
	cmd.Flags().BoolVar(&offline, "offline", false, "Skip Ollama backend checks")

	return cmd
}

func runInit(ctx context.Context, cmd *cobra.Command, user, force, offline bool) error {
	out := output.NewQuiet(cmd.OutOrStdout(), flagQuiet)

	out.Statusf("🚀", "rigqa %s", version.Version)
	out.Newline()

	configPath, err := writeStarterConfig(out, user, force)
	if err != nil {
		return err
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	if offline {
		out.Newline()
		out.Status("⏭️ ", "Skipping backend checks (--offline)")
		showOfflineConfig(out)
	} else {
		out.Newline()
		out.Status("🧠", "Checking answer backends...")
		if err := ensureBackendsReady(ctx, out, cfg); err != nil {
			return err
		}
	}

	out.Newline()
	out.Success("Setup complete!")
	out.Newline()
	out.Status("📋", "Next steps:")
	out.Statusf("", "  1. Review %s", configPath)
	out.Status("", "  2. Build the index: rigqa index ./reports")
	out.Status("", "  3. Ask away: rigqa ask \"What was done on Sept 6?\"")

	return nil
}

// writeStarterConfig writes the embedded template to the chosen config
// location, preserving existing files unless forced. Returns the path
// the rest of the output should reference.
func writeStarterConfig(out *output.Writer, user, force bool) (string, error) {
	var path string
	if user {
		path = config.GetUserConfigPath()
	} else {
		cwd, err := os.Getwd()
		if err != nil {
			return "", fmt.Errorf("failed to get working directory: %w", err)
		}
		path = filepath.Join(cwd, ".rigqa.yaml")

		// The loader honors both extensions, so .yml counts as existing.
		if !force {
			if alt := filepath.Join(cwd, ".rigqa.yml"); fileExists(alt) {
				out.Status("ℹ️ ", "Existing .rigqa.yml preserved")
				return alt, nil
			}
		}
	}

	if fileExists(path) && !force {
		out.Statusf("ℹ️ ", "Existing config preserved: %s", path)
		out.Status("💡", "Use --force to overwrite")
		return path, nil
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return "", fmt.Errorf("failed to create config directory: %w", err)
	}
	if err := os.WriteFile(path, []byte(configs.ConfigTemplate), 0644); err != nil {
		return "", fmt.Errorf("failed to write config: %w", err)
	}

	out.Statusf("📝", "Created %s", path)
	return path, nil
}

// ensureBackendsReady verifies Ollama serves both configured models,
// starting the runtime and pulling models where possible.
func ensureBackendsReady(ctx context.Context, out *output.Writer, cfg *config.Config) error {
	manager := lifecycle.NewOllamaManagerWithHost(cfg.Embeddings.OllamaHost)

	// Remote hosts are checked but never started or pulled to.
	if manager.IsRemoteHost() {
		out.Status("ℹ️ ", "Using remote Ollama host: "+manager.Host())
		running, err := manager.IsRunning()
		if err != nil {
			return fmt.Errorf("failed to check remote Ollama: %w", err)
		}
		if !running {
			return fmt.Errorf("remote Ollama at %s is not responding", manager.Host())
		}
		out.Success("Remote Ollama is available")
		return nil
	}

	status, err := manager.Status(ctx, cfg.Embeddings.Model, cfg.LLM.Model)
	if err != nil {
		return fmt.Errorf("backend check failed: %w", err)
	}

	if !status.Installed {
		return handleOllamaNotInstalled(out)
	}

	if !status.Running {
		out.Status("🔄", "Ollama is installed but not running. Starting...")
		if err := manager.Start(); err != nil {
			out.Warningf("Failed to start Ollama: %v", err)
			return offlineHint(out, &lifecycle.NotRunningError{})
		}

		out.Status("⏳", "Waiting for Ollama to be ready...")
		if err := manager.WaitForReady(ctx, lifecycle.StartupTimeout); err != nil {
			out.Warningf("Ollama did not come up in time: %v", err)
			return offlineHint(out, &lifecycle.NotRunningError{})
		}
		out.Success("Ollama started")

		status, err = manager.Status(ctx, cfg.Embeddings.Model, cfg.LLM.Model)
		if err != nil {
			return fmt.Errorf("backend check failed: %w", err)
		}
	}

	for _, model := range status.Missing {
		if err := pullBackendModel(ctx, manager, out, model, model == cfg.LLM.Model); err != nil {
			return err
		}
	}

	out.Success("Backends ready")
	return nil
}

// pullBackendModel downloads one model. Generation models run to
// several gigabytes, so those ask first on a terminal; the embedding
// model just pulls.
func pullBackendModel(ctx context.Context, manager *lifecycle.OllamaManager, out *output.Writer, model string, generation bool) error {
	if generation && lifecycle.IsTTY() {
		pull, err := lifecycle.PromptPullModel(os.Stdout, os.Stdin, model, "several GB")
		if err != nil {
			return err
		}
		if !pull {
			out.Warningf("Skipped %s. Answers stay extractive until it is pulled", model)
			return nil
		}
	}

	out.Statusf("📥", "Pulling %s...", model)
	progressFunc := lifecycle.CreatePullProgressFunc(os.Stdout)
	if err := manager.PullModel(ctx, model, progressFunc); err != nil {
		out.Newline() // After progress bar
		if generation {
			// The extractive fallback keeps ask working without it.
			out.Warningf("Failed to pull %s: %v", model, err)
			out.Statusf("💡", "Pull manually with: ollama pull %s", model)
			return nil
		}
		out.Errorf("Failed to pull %s: %v", model, err)
		return &lifecycle.ModelNotFoundError{Model: model}
	}
	out.Newline() // After progress bar
	out.Successf("Model %s ready", model)
	return nil
}

// handleOllamaNotInstalled walks the user through the choices when no
// Ollama installation is found.
func handleOllamaNotInstalled(out *output.Writer) error {
	if !lifecycle.IsTTY() {
		out.Newline()
		out.Warning("Ollama is not installed (required for semantic search and generated answers)")
		out.Newline()
		out.Status("", lifecycle.InstallInstructions())
		return offlineHint(out, &lifecycle.NotInstalledError{})
	}

	choice, err := lifecycle.PromptNoOllama(os.Stdout, os.Stdin)
	if err != nil {
		return err
	}

	switch choice {
	case lifecycle.ChoiceShowInstall:
		lifecycle.ShowInstallInstructions(os.Stdout)
		out.Status("💡", "After installing Ollama, run 'rigqa init' again")
		return fmt.Errorf("installation required")

	case lifecycle.ChoiceOfflineMode:
		showOfflineConfig(out)
		return nil

	case lifecycle.ChoiceCancel:
		return fmt.Errorf("operation cancelled")

	default:
		return fmt.Errorf("invalid choice")
	}
}

// offlineHint explains the no-Ollama configuration before failing.
func offlineHint(out *output.Writer, cause error) error {
	out.Newline()
	showOfflineConfig(out)
	return cause
}

// showOfflineConfig prints the config that runs without Ollama.
func showOfflineConfig(out *output.Writer) {
	out.Status("💡", "To run without Ollama, set in your config:")
	out.Code("embeddings:\n  provider: static\nllm:\n  provider: extractive")
}
