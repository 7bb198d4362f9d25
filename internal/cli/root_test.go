package cli

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRootCommand(t *testing.T) {
	cmd := NewRootCommand()
	require.NotNil(t, cmd)
	assert.Equal(t, "fedq", cmd.Use)
	assert.Contains(t, cmd.Long, "delegating")
}

func TestCommandPresence(t *testing.T) {
	cmd := NewRootCommand()
	for _, name := range []string{"describe", "explain", "run", "load", "test"} {
		t.Run(name, func(t *testing.T) {
			sub, _, err := cmd.Find([]string{name})
			require.NoError(t, err, "command %s should exist", name)
			assert.Equal(t, name, sub.Name())
		})
	}
}

func TestGlobalFlags(t *testing.T) {
	cmd := NewRootCommand()

	verbose := cmd.PersistentFlags().Lookup("verbose")
	require.NotNil(t, verbose)
	assert.Equal(t, "v", verbose.Shorthand)
	assert.Equal(t, "false", verbose.DefValue)

	format := cmd.PersistentFlags().Lookup("format")
	require.NotNil(t, format)
	assert.Equal(t, "text", format.DefValue)

	for _, name := range []string{"config", "db", "services", "parallelism", "max-invocations", "cache-size", "log-level", "timeout"} {
		assert.NotNil(t, cmd.PersistentFlags().Lookup(name), "flag %s", name)
	}
}

func TestTestCommandFlags(t *testing.T) {
	cmd := NewRootCommand()
	testCmd, _, err := cmd.Find([]string{"test"})
	require.NoError(t, err)

	assert.NotNil(t, testCmd.Flags().Lookup("update"))
	assert.NotNil(t, testCmd.Flags().Lookup("filter"))
}

func TestInvalidFormat(t *testing.T) {
	_, _, err := executeRoot(t, "--format", "xml", "describe", filepath.Join(testdata, "services"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), `invalid format "xml"`)
}

func TestInvalidConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "fedq.yaml")
	require.NoError(t, os.WriteFile(path, []byte("parallelism: 0\n"), 0o644))

	_, _, err := executeRoot(t, "--config", path, "describe", filepath.Join(testdata, "services"))
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), "parallelism must be at least 1")
}

func TestMissingConfigFile(t *testing.T) {
	_, _, err := executeRoot(t, "--config", filepath.Join(t.TempDir(), "nope.yaml"), "describe")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}
