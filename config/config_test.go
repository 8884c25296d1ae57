package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoad_FromYAML(t *testing.T) {
	path := writeConfig(t, `
default_provider: openai
providers:
  openai:
    api_key: sk-file
    default_model: gpt-4o-mini
    timeout: 45s
    max_retries: 5
  openrouter:
    api_key: or-key
    extra:
      routing_strategy: cost_optimized
      auto_fallback: true
log:
  level: debug
`)

	cfg, err := NewLoader().WithConfigPath(path).Load()
	require.NoError(t, err)

	assert.Equal(t, "openai", cfg.DefaultProvider)
	assert.Equal(t, "debug", cfg.Log.Level)

	opts := cfg.Providers["openai"].Options()
	assert.Equal(t, "sk-file", opts["api_key"])
	assert.Equal(t, "gpt-4o-mini", opts["default_model"])
	assert.Equal(t, 45, opts["timeout"], "超时以秒数传给 Configure")
	assert.Equal(t, 5, opts["max_retries"])

	orOpts := cfg.Providers["openrouter"].Options()
	assert.Equal(t, "cost_optimized", orOpts["routing_strategy"], "extra 字段展开进选项映射")
	assert.Equal(t, true, orOpts["auto_fallback"])
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	path := writeConfig(t, `
providers:
  openai:
    api_key: sk-file
`)
	t.Setenv("LLMBRIDGE_OPENAI_API_KEY", "sk-env")

	cfg, err := NewLoader().WithConfigPath(path).Load()
	require.NoError(t, err)
	assert.Equal(t, "sk-env", cfg.Providers["openai"].APIKey)
}

func TestLoad_CustomEnvPrefix(t *testing.T) {
	path := writeConfig(t, `
providers:
  ollama:
    base_url: http://file-host:11434
`)
	t.Setenv("MYAPP_OLLAMA_BASE_URL", "http://env-host:11434")

	cfg, err := NewLoader().WithConfigPath(path).WithEnvPrefix("MYAPP").Load()
	require.NoError(t, err)
	assert.Equal(t, "http://env-host:11434", cfg.Providers["ollama"].BaseURL)
}

func TestLoad_ValidateDefaultProvider(t *testing.T) {
	path := writeConfig(t, `
default_provider: gemini
providers:
  openai:
    api_key: sk
`)
	_, err := NewLoader().WithConfigPath(path).Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "default_provider")
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := NewLoader().WithConfigPath("/nonexistent/config.yaml").Load()
	require.Error(t, err)
}

func TestLoad_NoFileUsesDefaults(t *testing.T) {
	cfg, err := NewLoader().Load()
	require.NoError(t, err)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Empty(t, cfg.Providers)
}

func TestProviderOptions_ZeroValuesOmitted(t *testing.T) {
	pc := ProviderConfig{APIKey: "k"}
	opts := pc.Options()
	assert.Equal(t, "k", opts["api_key"])
	assert.False(t, opts.Has("timeout"))
	assert.False(t, opts.Has("max_retries"))
	assert.False(t, opts.Has("base_url"))
}
