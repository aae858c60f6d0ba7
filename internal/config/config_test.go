package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv(ConfigPathEnvVar, filepath.Join(t.TempDir(), "missing.yaml"))

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "http://localhost:9001", cfg.BackendURL)
	assert.Equal(t, 30*time.Second, cfg.RequestTimeout)
	assert.False(t, cfg.DevMode)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "console", cfg.Log.Format)
	assert.Equal(t, ":8080", cfg.Serve.Addr)
	assert.NotEmpty(t, cfg.StateDir)
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("PIND_BACKEND_URL", "https://api.example.com/")
	t.Setenv("PIND_DEV_MODE", "true")
	t.Setenv("PIND_LOG_LEVEL", "debug")
	t.Setenv("PIND_SERVE_ADDR", ":9999")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "https://api.example.com", cfg.BackendURL, "trailing slash trimmed")
	assert.True(t, cfg.DevMode)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, ":9999", cfg.Serve.Addr)
}

func TestLoadConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pind.yaml")
	require.NoError(t, os.WriteFile(path, []byte(
		"backend_url: http://backend:9001\ndev_mode: true\nlog:\n  level: warn\n"), 0o644))
	t.Setenv(ConfigPathEnvVar, path)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "http://backend:9001", cfg.BackendURL)
	assert.True(t, cfg.DevMode)
	assert.Equal(t, "warn", cfg.Log.Level)
	// Untouched keys keep their defaults.
	assert.Equal(t, "console", cfg.Log.Format)
}

func TestEnvBeatsFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pind.yaml")
	require.NoError(t, os.WriteFile(path, []byte("backend_url: http://from-file\n"), 0o644))
	t.Setenv(ConfigPathEnvVar, path)
	t.Setenv("PIND_BACKEND_URL", "http://from-env")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "http://from-env", cfg.BackendURL)
}

func TestLoadBadConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pind.yaml")
	require.NoError(t, os.WriteFile(path, []byte(":\t this is not yaml"), 0o644))
	t.Setenv(ConfigPathEnvVar, path)

	_, err := Load()
	assert.Error(t, err)
}
