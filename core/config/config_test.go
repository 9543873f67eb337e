package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)
	assert.Equal(t, "openai", cfg.Provider.Name)
	assert.Equal(t, 8765, cfg.Server.Port)
	assert.Equal(t, 4, cfg.Retry.MaxAttempts)
	assert.True(t, cfg.Retrieval.Enabled)
}

func TestLoad_FileOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
provider:
  name: anthropic
  model: claude-sonnet-4-5-20250901
  timeout: 60s
server:
  port: 9000
retrieval:
  enabled: false
`), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "anthropic", cfg.Provider.Name)
	assert.Equal(t, "claude-sonnet-4-5-20250901", cfg.Provider.Model)
	assert.Equal(t, 60*time.Second, cfg.Provider.Timeout)
	assert.Equal(t, 9000, cfg.Server.Port)
	assert.False(t, cfg.Retrieval.Enabled)

	// Unset sections keep their defaults.
	assert.Equal(t, 4, cfg.Retry.MaxAttempts)
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("provider:\n  name: openai\n"), 0o644))

	t.Setenv("SCRIPTORIUM_PROVIDER", "anthropic")
	t.Setenv("SCRIPTORIUM_PORT", "9100")
	t.Setenv("ANTHROPIC_API_KEY", "sk-test")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "anthropic", cfg.Provider.Name)
	assert.Equal(t, 9100, cfg.Server.Port)
	assert.Equal(t, "sk-test", cfg.Provider.APIKey)
}

func TestLoad_InvalidProviderRejected(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("provider:\n  name: cohere\n"), 0o644))

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown provider")
}

func TestLoad_MalformedYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("provider: [oops"), 0o644))

	_, err := Load(path)
	require.Error(t, err)
}
