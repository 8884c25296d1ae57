package factory

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/llmbridge/llmbridge/llm"
)

func TestNew_AllSupportedNames(t *testing.T) {
	for _, name := range Supported() {
		p, err := New(name, nil, nil)
		require.NoError(t, err, name)
		require.NotNil(t, p, name)
	}
}

func TestNew_AnthropicAlias(t *testing.T) {
	p, err := New("anthropic", nil, nil)
	require.NoError(t, err)
	assert.Equal(t, "claude", p.Name())
}

func TestNew_UnknownName(t *testing.T) {
	_, err := New("bedrock", nil, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown provider")
}

func TestNew_ConfiguresProvider(t *testing.T) {
	p, err := New("openai", llm.Options{"api_key": "sk-x"}, nil)
	require.NoError(t, err)
	assert.True(t, p.IsAvailable())
}

func TestNewRegistry(t *testing.T) {
	registry, err := NewRegistry(map[string]llm.Options{
		"openai": {"api_key": "sk-a"},
		"ollama": {},
	}, "openai", nil)
	require.NoError(t, err)

	assert.Equal(t, []string{"ollama", "openai"}, registry.List())

	def, err := registry.Default()
	require.NoError(t, err)
	assert.Equal(t, "openai", def.Name())
}

func TestNewRegistry_UnknownProvider(t *testing.T) {
	_, err := NewRegistry(map[string]llm.Options{"nope": {}}, "", nil)
	require.Error(t, err)
}
