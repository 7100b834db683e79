package cmd

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// isolate keeps tests away from configuration files and LINECHECK_
// variables of the host.
func isolate(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Chdir(dir)
	t.Setenv("HOME", dir)
	t.Setenv("XDG_CONFIG_HOME", filepath.Join(dir, ".config"))
	for _, kv := range os.Environ() {
		if name, _, _ := strings.Cut(kv, "="); strings.HasPrefix(name, "LINECHECK_") {
			t.Setenv(name, "")
			require.NoError(t, os.Unsetenv(name))
		}
	}
	return dir
}

func resetFlags(c *cobra.Command) {
	reset := func(f *pflag.Flag) {
		_ = f.Value.Set(f.DefValue)
		f.Changed = false
	}
	c.Flags().VisitAll(reset)
	c.PersistentFlags().VisitAll(reset)
	for _, sub := range c.Commands() {
		resetFlags(sub)
	}
}

// execute runs the root command with args and returns what it wrote to stdout.
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	resetFlags(rootCmd)
	cfgFile = ""
	globalConfig = nil
	configLoader = nil

	buf := new(bytes.Buffer)
	rootCmd.SetOut(buf)
	rootCmd.SetErr(io.Discard)
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return buf.String(), err
}

func TestRootCommand(t *testing.T) {
	assert.Equal(t, "linecheck", rootCmd.Use)
	assert.NotEmpty(t, rootCmd.Short)
	assert.NotEmpty(t, rootCmd.Long)

	names := make([]string, 0, len(rootCmd.Commands()))
	for _, c := range rootCmd.Commands() {
		names = append(names, c.Name())
	}
	for _, expected := range []string{"run", "cycle", "serve", "config", "version", "check"} {
		assert.Contains(t, names, expected)
	}
}

func TestRootCommandHelp(t *testing.T) {
	isolate(t)
	out, err := execute(t, "--help")
	require.NoError(t, err)
	assert.Contains(t, out, "Label inspection")
	assert.Contains(t, out, "Available Commands:")
}

func TestRootCommandVersionFlag(t *testing.T) {
	isolate(t)
	out, err := execute(t, "--version")
	require.NoError(t, err)
	assert.Contains(t, out, "linecheck dev")
}

func TestVersionCommand(t *testing.T) {
	isolate(t)
	out, err := execute(t, "version")
	require.NoError(t, err)
	assert.Contains(t, out, "linecheck version dev")
	assert.Contains(t, out, "Commit: unknown")
}

func TestRootCommandInvalidFlag(t *testing.T) {
	isolate(t)
	_, err := execute(t, "--no-such-flag")
	assert.Error(t, err)
}

func TestMissingConfigFile(t *testing.T) {
	dir := isolate(t)
	_, err := execute(t, "--config", filepath.Join(dir, "missing.yaml"), "config", "show")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "loading configuration")
}
