package openrouter

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
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
		"api_key":  "or-test",
		"base_url": server.URL,
	})
	return p
}

func chatResponse(content string) map[string]any {
	return map[string]any{
		"model": "openai/gpt-4o-mini",
		"choices": []map[string]any{
			{"message": map[string]any{"content": content}, "finish_reason": "stop"},
		},
		"usage": map[string]any{"prompt_tokens": 5, "completion_tokens": 2},
	}
}

func TestChatCompletion_AttributionHeaders(t *testing.T) {
	p := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer or-test", r.Header.Get("Authorization"))
		assert.Equal(t, "https://myapp.example", r.Header.Get("HTTP-Referer"))
		assert.Equal(t, "myapp", r.Header.Get("X-Title"))
		json.NewEncoder(w).Encode(chatResponse("hi"))
	})
	p.Configure(llm.Options{"site_url": "https://myapp.example", "app_name": "myapp"})

	resp, err := p.ChatCompletion(context.Background(), []llm.Message{llm.UserMessage("hello")}, nil)
	require.NoError(t, err)
	assert.Equal(t, "openrouter", resp.Provider)
}

func TestChatCompletion_AutoFallbackModelsArray(t *testing.T) {
	p := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		var payload map[string]any
		json.NewDecoder(r.Body).Decode(&payload)
		models := payload["models"].([]any)
		assert.Equal(t, []any{"openai/gpt-4o", "anthropic/claude-3-5-sonnet", "google/gemini-1.5-pro"}, models)
		json.NewEncoder(w).Encode(chatResponse("ok"))
	})
	p.Configure(llm.Options{
		"auto_fallback":   true,
		"fallback_models": []string{"anthropic/claude-3-5-sonnet", "google/gemini-1.5-pro"},
	})

	_, err := p.ChatCompletion(context.Background(), []llm.Message{llm.UserMessage("hi")},
		llm.Options{"model": "openai/gpt-4o"})
	require.NoError(t, err)
}

func TestChatCompletion_RoutingSelectsCatalogModel(t *testing.T) {
	var gotModel atomic.Value
	p := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/models":
			json.NewEncoder(w).Encode(map[string]any{
				"data": []any{
					map[string]any{"id": "vendor/expensive", "pricing": map[string]any{"prompt": "0.002", "completion": "0.002"}},
					map[string]any{"id": "vendor/cheap", "pricing": map[string]any{"prompt": "0.0005", "completion": "0.0005"}},
				},
			})
		default:
			var payload map[string]any
			json.NewDecoder(r.Body).Decode(&payload)
			gotModel.Store(payload["model"].(string))
			json.NewEncoder(w).Encode(chatResponse("routed"))
		}
	})
	p.Configure(llm.Options{"routing_strategy": "cost_optimized"})

	_, err := p.ChatCompletion(context.Background(), []llm.Message{llm.UserMessage("hi")}, nil)
	require.NoError(t, err)
	assert.Equal(t, "vendor/cheap", gotModel.Load())
}

func TestChatCompletion_RoutingSwallowsCatalogFailure(t *testing.T) {
	p := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/models" {
			w.WriteHeader(http.StatusForbidden)
			return
		}
		var payload map[string]any
		json.NewDecoder(r.Body).Decode(&payload)
		// 目录不可达时回退到配置的默认模型
		assert.Equal(t, "openai/gpt-4o-mini", payload["model"])
		json.NewEncoder(w).Encode(chatResponse("fallback"))
	})
	p.Configure(llm.Options{"routing_strategy": "performance"})

	resp, err := p.ChatCompletion(context.Background(), []llm.Message{llm.UserMessage("hi")}, nil)
	require.NoError(t, err, "路由的目录获取失败不得向调用方暴露网络错误")
	assert.Equal(t, "fallback", resp.Content)
}

func TestChatCompletion_ExplicitModelBypassesRouting(t *testing.T) {
	var catalogHits atomic.Int32
	p := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/models" {
			catalogHits.Add(1)
			json.NewEncoder(w).Encode(map[string]any{"data": []any{}})
			return
		}
		json.NewEncoder(w).Encode(chatResponse("ok"))
	})
	p.Configure(llm.Options{"routing_strategy": "cost_optimized"})

	_, err := p.ChatCompletion(context.Background(), []llm.Message{llm.UserMessage("hi")},
		llm.Options{"model": "openai/gpt-4o"})
	require.NoError(t, err)
	assert.Equal(t, int32(0), catalogHits.Load(), "显式指定模型时不触发目录获取")
}

func TestChatCompletionWithTools_DoesNotMutateCallerOptions(t *testing.T) {
	p := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(chatResponse("ok"))
	})

	callerOpts := llm.Options{"model": "openai/gpt-4o", "temperature": 0.2}
	tools := []llm.ToolSchema{{Name: "lookup", Parameters: map[string]any{"type": "object"}}}

	_, err := p.ChatCompletionWithTools(context.Background(),
		[]llm.Message{llm.UserMessage("hi")}, tools, callerOpts)
	require.NoError(t, err)

	// 调用方的映射保持原样，require_tools 只写入内部副本
	assert.Equal(t, llm.Options{"model": "openai/gpt-4o", "temperature": 0.2}, callerOpts)
	assert.False(t, callerOpts.Has("require_tools"))
}

func TestCatalogCachedUntilForcedRefresh(t *testing.T) {
	var catalogHits atomic.Int32
	p := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/models" {
			catalogHits.Add(1)
			json.NewEncoder(w).Encode(map[string]any{
				"data": []any{map[string]any{"id": "vendor/m", "pricing": map[string]any{"prompt": "0.001", "completion": "0.001"}}},
			})
			return
		}
	})

	ctx := context.Background()
	_, err := p.GetAvailableModels(ctx)
	require.NoError(t, err)
	_, err = p.GetAvailableModels(ctx)
	require.NoError(t, err)
	assert.Equal(t, int32(1), catalogHits.Load())

	_, err = p.RefreshModels(ctx)
	require.NoError(t, err)
	assert.Equal(t, int32(2), catalogHits.Load())
}

func TestErrorAnnotation_InsufficientCredits(t *testing.T) {
	p := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusPaymentRequired)
		json.NewEncoder(w).Encode(map[string]any{
			"error": map[string]any{"message": "Insufficient credits"},
		})
	})

	_, err := p.ChatCompletion(context.Background(), []llm.Message{llm.UserMessage("hi")}, nil)
	require.Error(t, err)
	assert.True(t, llm.IsResponseError(err))
	assert.Contains(t, err.Error(), "top up your OpenRouter account")
}
