package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "fedq.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func testFlags() *pflag.FlagSet {
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	fs.String("db", "", "")
	fs.Int("parallelism", 1, "")
	fs.Duration("timeout", 0, "")
	return fs
}

func TestLoadDefaults(t *testing.T) {
	t.Chdir(t.TempDir())

	cfg, err := Load("", nil)
	require.NoError(t, err)
	assert.Equal(t, Defaults(), *cfg)

	level, err := cfg.Level()
	require.NoError(t, err)
	assert.Equal(t, slog.LevelInfo, level)
}

func TestLoadFile(t *testing.T) {
	path := writeConfig(t, `
database: /var/lib/fedq/triples.db
services_dir: specs
parallelism: 4
max_invocations: 100
cache_size: 64
log_level: debug
default_timeout: 5s
`)

	cfg, err := Load(path, nil)
	require.NoError(t, err)
	assert.Equal(t, Config{
		Database:       "/var/lib/fedq/triples.db",
		ServicesDir:    "specs",
		Parallelism:    4,
		MaxInvocations: 100,
		CacheSize:      64,
		LogLevel:       "debug",
		DefaultTimeout: 5 * time.Second,
	}, *cfg)
}

func TestLoadFindsFileInWorkingDirectory(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "fedq.yaml"), []byte("parallelism: 3\n"), 0o644))
	t.Chdir(dir)

	cfg, err := Load("", nil)
	require.NoError(t, err)
	assert.Equal(t, 3, cfg.Parallelism)
}

func TestLoadPrecedence(t *testing.T) {
	path := writeConfig(t, "database: from-file.db\nparallelism: 2\ndefault_timeout: 1s\n")
	t.Setenv("FEDQ_PARALLELISM", "6")
	t.Setenv("FEDQ_DEFAULT_TIMEOUT", "2s")

	fs := testFlags()
	require.NoError(t, fs.Parse([]string{"--timeout=3s"}))

	cfg, err := Load(path, fs)
	require.NoError(t, err)
	assert.Equal(t, "from-file.db", cfg.Database, "unset flag keeps the file value")
	assert.Equal(t, 6, cfg.Parallelism, "env beats file")
	assert.Equal(t, 3*time.Second, cfg.DefaultTimeout, "flag beats env")
}

func TestLoadMissingExplicitFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"), nil)
	require.Error(t, err)
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{"zero parallelism", "parallelism: 0\n", "parallelism"},
		{"negative cache", "cache_size: -1\n", "cache_size"},
		{"negative quota", "max_invocations: -5\n", "max_invocations"},
		{"bad level", "log_level: loud\n", "log_level"},
		{"negative timeout", "default_timeout: -1s\n", "default_timeout"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.body), nil)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}
