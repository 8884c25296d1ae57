package groq

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/llmbridge/llmbridge/llm"
)

func newTestProvider(t *testing.T, handler http.HandlerFunc) *Provider {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	p := New(nil)
	p.Configure(llm.Options{
		"api_key":  "gsk-test",
		"base_url": server.URL,
	})
	return p
}

func TestChatCompletion_ParallelToolCallsPassthrough(t *testing.T) {
	p := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer gsk-test", r.Header.Get("Authorization"))
		var payload map[string]any
		json.NewDecoder(r.Body).Decode(&payload)
		assert.Equal(t, false, payload["parallel_tool_calls"])

		json.NewEncoder(w).Encode(map[string]any{
			"model": "llama-3.3-70b-versatile",
			"choices": []map[string]any{
				{"message": map[string]any{"content": "fast"}, "finish_reason": "stop"},
			},
			"usage": map[string]any{"prompt_tokens": 2, "completion_tokens": 1},
		})
	})

	resp, err := p.ChatCompletion(context.Background(), []llm.Message{llm.UserMessage("hi")},
		llm.Options{"parallel_tool_calls": false})
	require.NoError(t, err)
	assert.Equal(t, "fast", resp.Content)
	assert.Equal(t, "groq", resp.Provider)
}

func TestEmbeddings_Unsupported(t *testing.T) {
	p := New(nil)
	p.Configure(llm.Options{"api_key": "gsk-test"})

	_, err := p.Embeddings(context.Background(), []string{"text"}, nil)
	require.Error(t, err)
	assert.True(t, llm.IsUnsupportedFeature(err))
	assert.False(t, p.SupportsFeature(llm.CapabilityEmbeddings))
}
