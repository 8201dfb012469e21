package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 100, cfg.MemoryBankSize)
	assert.Equal(t, 0.8, cfg.CompactionThreshold)
	assert.Equal(t, 10, cfg.MaxLoopIterations)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "json", cfg.LogFormat)
	assert.Equal(t, ":8080", cfg.HTTPAddr)
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("CAREMESH_MEMORY_SIZE", "25")
	t.Setenv("CAREMESH_LOG_LEVEL", "debug")
	t.Setenv("CAREMESH_HTTP_ADDR", "127.0.0.1:9090")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 25, cfg.MemoryBankSize)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, "127.0.0.1:9090", cfg.HTTPAddr)
}

func TestLoadFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "caremesh.yaml")
	content := []byte("memory:\n  size: 7\ncompaction:\n  threshold: 0.5\nlog:\n  format: text\n")
	require.NoError(t, os.WriteFile(path, content, 0o600))

	cfg, err := Load(func(o *Options) { o.ConfigFile = path })
	require.NoError(t, err)

	assert.Equal(t, 7, cfg.MemoryBankSize)
	assert.Equal(t, 0.5, cfg.CompactionThreshold)
	assert.Equal(t, "text", cfg.LogFormat)
}

func TestLoadEnvOverridesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "caremesh.yaml")
	require.NoError(t, os.WriteFile(path, []byte("memory:\n  size: 7\n"), 0o600))
	t.Setenv("CAREMESH_MEMORY_SIZE", "42")

	cfg, err := Load(func(o *Options) { o.ConfigFile = path })
	require.NoError(t, err)
	assert.Equal(t, 42, cfg.MemoryBankSize)
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	t.Setenv("CAREMESH_MEMORY_SIZE", "0")
	_, err := Load()
	assert.Error(t, err)
}

func TestLoadRejectsUnknownLogLevel(t *testing.T) {
	t.Setenv("CAREMESH_LOG_LEVEL", "verbose")
	_, err := Load()
	assert.Error(t, err)
}

func TestLoadMissingConfigFile(t *testing.T) {
	_, err := Load(func(o *Options) { o.ConfigFile = filepath.Join(t.TempDir(), "nope.yaml") })
	assert.Error(t, err)
}
