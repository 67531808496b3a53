package cmd

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// resetEnv moves the working directory to a fresh temp dir so config
// discovery finds nothing, and clears every rigqa environment override
// that would leak host configuration into the test. Returns the temp
// dir commands run in.
func resetEnv(t *testing.T) string {
	t.Helper()

	tmpDir := t.TempDir()
	oldDir, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(tmpDir))
	t.Cleanup(func() { _ = os.Chdir(oldDir) })

	for _, name := range []string{
		"RIGQA_CONFIG", "RIGQA_DATA_DIR", "RIGQA_EMBEDDER",
		"RIGQA_EMBEDDINGS_MODEL", "RIGQA_LLM", "RIGQA_LLM_MODEL",
		"RIGQA_OLLAMA_HOST", "RIGQA_LOG_LEVEL", "RIGQA_TOP_K",
	} {
		t.Setenv(name, "")
	}
	t.Setenv("XDG_CONFIG_HOME", filepath.Join(tmpDir, "xdg"))
	t.Setenv("HOME", filepath.Join(tmpDir, "home"))

	return tmpDir
}

func TestRootCmd_ShowsHelp(t *testing.T) {
	// Given: a root command

	// When: executing with --help
	cmd := NewRootCmd()
	buf := new(bytes.Buffer)
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetArgs([]string{"--help"})

	err := cmd.Execute()

	// Then: it should show usage information
	require.NoError(t, err)
	output := buf.String()
	assert.Contains(t, output, "rigqa", "Help should mention program name")
	assert.Contains(t, output, "Usage:", "Help should show usage")
}

func TestRootCmd_ShowsVersion(t *testing.T) {
	// Given: a root command

	// When: executing with --version
	cmd := NewRootCmd()
	buf := new(bytes.Buffer)
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetArgs([]string{"--version"})

	err := cmd.Execute()

	// Then: it should show the version template
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "rigqa version", "Version output should use the template")
}

func TestRootCmd_BareInvocationShowsHelp(t *testing.T) {
	resetEnv(t)

	// When: executing with no arguments
	cmd := NewRootCmd()
	buf := new(bytes.Buffer)
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetArgs([]string{})

	err := cmd.Execute()

	// Then: it should print help rather than erroring
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "Usage:", "Bare invocation should show usage")
}

func TestRootCmd_HasSubcommands(t *testing.T) {
	// Given: a root command
	cmd := NewRootCmd()

	var commandNames []string
	for _, subcmd := range cmd.Commands() {
		commandNames = append(commandNames, subcmd.Name())
	}

	// Then: every operation should be wired
	for _, name := range []string{
		"init", "index", "ask", "search", "chat",
		"summary", "stats", "serve", "version",
	} {
		assert.Contains(t, commandNames, name, "Should have %s subcommand", name)
	}
}

func TestRootCmd_PersistentFlags(t *testing.T) {
	// Given: a root command
	cmd := NewRootCmd()

	tests := []struct {
		name     string
		defValue string
	}{
		{"config", ""},
		{"data-dir", ""},
		{"log-level", ""},
		{"quiet", "false"},
		{"profile", ""},
	}
	for _, tt := range tests {
		flag := cmd.PersistentFlags().Lookup(tt.name)
		require.NotNil(t, flag, "Should have --%s flag", tt.name)
		assert.Equal(t, tt.defValue, flag.DefValue)
	}

	// Quiet has a shorthand
	assert.Equal(t, "q", cmd.PersistentFlags().Lookup("quiet").Shorthand)
}

func TestRootCmd_UnknownCommandFails(t *testing.T) {
	// Given: a root command
	cmd := NewRootCmd()
	buf := new(bytes.Buffer)
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetArgs([]string{"frobnicate"})

	// When: executing an unknown subcommand
	err := cmd.Execute()

	// Then: it should fail
	assert.Error(t, err)
}
