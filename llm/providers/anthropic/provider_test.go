package anthropic

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
		"api_key":  "sk-ant-test",
		"base_url": server.URL,
	})
	return p
}

func TestChatCompletion_HeadersAndSystemHoisting(t *testing.T) {
	var gotPayload map[string]any
	p := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/messages", r.URL.Path)
		assert.Equal(t, "sk-ant-test", r.Header.Get("x-api-key"))
		assert.Equal(t, "2023-06-01", r.Header.Get("anthropic-version"))
		assert.Empty(t, r.Header.Get("Authorization"), "Claude 不使用 Bearer 认证")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotPayload))

		json.NewEncoder(w).Encode(map[string]any{
			"model":       "claude-3-5-sonnet-20241022",
			"content":     []map[string]any{{"type": "text", "text": "hello"}},
			"stop_reason": "end_turn",
			"usage":       map[string]any{"input_tokens": 10, "output_tokens": 2},
		})
	})

	resp, err := p.ChatCompletion(context.Background(), []llm.Message{
		llm.SystemMessage("be brief"),
		llm.SystemMessage("be polite"),
		llm.UserMessage("hi"),
	}, nil)
	require.NoError(t, err)

	// system 消息提升为顶层字段，messages 中只剩对话消息
	assert.Equal(t, "be brief\n\nbe polite", gotPayload["system"])
	messages := gotPayload["messages"].([]any)
	require.Len(t, messages, 1)
	assert.Equal(t, "user", messages[0].(map[string]any)["role"])
	assert.Equal(t, float64(4096), gotPayload["max_tokens"], "max_tokens 是必填字段")

	assert.Equal(t, "hello", resp.Content)
	assert.Equal(t, llm.FinishStop, resp.FinishReason)
	assert.Equal(t, 12, resp.Usage.TotalTokens)
	assert.Equal(t, "claude", resp.Provider)
}

func TestChatCompletion_StopReasonMapping(t *testing.T) {
	cases := []struct {
		vendor string
		want   llm.FinishReason
	}{
		{"end_turn", llm.FinishStop},
		{"stop_sequence", llm.FinishStop},
		{"max_tokens", llm.FinishLength},
		{"tool_use", llm.FinishToolCalls},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, normalizeStopReason(tc.vendor), tc.vendor)
	}
}

func TestChatCompletionWithTools_ToolUseBlocks(t *testing.T) {
	p := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		var payload map[string]any
		json.NewDecoder(r.Body).Decode(&payload)
		tools := payload["tools"].([]any)
		require.Len(t, tools, 1)
		tool := tools[0].(map[string]any)
		assert.Equal(t, "search", tool["name"])
		assert.NotNil(t, tool["input_schema"], "Claude 的参数字段名为 input_schema")

		json.NewEncoder(w).Encode(map[string]any{
			"content": []map[string]any{
				{"type": "text", "text": "let me search"},
				{"type": "tool_use", "id": "toolu_1", "name": "search",
					"input": map[string]any{"query": "golang"}},
			},
			"stop_reason": "tool_use",
		})
	})

	tools := []llm.ToolSchema{{Name: "search", Parameters: map[string]any{"type": "object"}}}
	resp, err := p.ChatCompletionWithTools(context.Background(), []llm.Message{llm.UserMessage("find it")}, tools, nil)
	require.NoError(t, err)

	assert.Equal(t, "let me search", resp.Content)
	assert.Equal(t, llm.FinishToolCalls, resp.FinishReason)
	require.Len(t, resp.ToolCalls, 1)
	assert.Equal(t, "toolu_1", resp.ToolCalls[0].ID)
	assert.Equal(t, map[string]any{"query": "golang"}, resp.ToolCalls[0].Arguments)
}

func TestStreamChatCompletion(t *testing.T) {
	p := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		w.Write([]byte("data: {\"type\":\"message_start\"}\n\n"))
		w.Write([]byte("data: {\"type\":\"content_block_delta\",\"delta\":{\"type\":\"text_delta\",\"text\":\"你好\"}}\n\n"))
		w.Write([]byte("data: {\"type\":\"content_block_delta\",\"delta\":{\"type\":\"text_delta\",\"text\":\"！\"}}\n\n"))
		w.Write([]byte("data: {\"type\":\"message_stop\"}\n\n"))
	})

	ch, err := p.StreamChatCompletion(context.Background(), []llm.Message{llm.UserMessage("hi")}, nil)
	require.NoError(t, err)

	var got string
	for chunk := range ch {
		require.Nil(t, chunk.Err)
		got += chunk.Text
	}
	assert.Equal(t, "你好！", got)
}

func TestEmbeddings_Unsupported(t *testing.T) {
	p := New(nil)
	p.Configure(llm.Options{"api_key": "sk-ant-test"})

	_, err := p.Embeddings(context.Background(), []string{"text"}, nil)
	require.Error(t, err)
	assert.True(t, llm.IsUnsupportedFeature(err))
	assert.False(t, llm.IsConnectionError(err), "能力缺失与厂商不可用必须可区分")
}

func TestAnalyzeImage_Base64Block(t *testing.T) {
	p := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		var payload map[string]any
		json.NewDecoder(r.Body).Decode(&payload)
		content := payload["messages"].([]any)[0].(map[string]any)["content"].([]any)
		require.Len(t, content, 2)
		source := content[0].(map[string]any)["source"].(map[string]any)
		assert.Equal(t, "base64", source["type"])
		assert.Equal(t, "image/jpeg", source["media_type"])

		json.NewEncoder(w).Encode(map[string]any{
			"content":     []map[string]any{{"type": "text", "text": "a cat"}},
			"stop_reason": "end_turn",
		})
	})

	resp, err := p.AnalyzeImage(context.Background(),
		llm.ImageInput{Data: []byte("jpegdata"), MimeType: "image/jpeg"}, "what is this", nil)
	require.NoError(t, err)
	assert.Equal(t, "a cat", resp.Description)
}
