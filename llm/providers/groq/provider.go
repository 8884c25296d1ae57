// Package groq 实现 Groq 的 Provider 适配。
// 完整沿用 OpenAI 方言；没有嵌入模型，支持 parallel_tool_calls 透传。
package groq

import (
	"go.uber.org/zap"

	"github.com/llmbridge/llmbridge/llm"
	"github.com/llmbridge/llmbridge/llm/providers"
	"github.com/llmbridge/llmbridge/llm/providers/openaicompat"
)

const (
	defaultBaseURL = "https://api.groq.com/openai/v1"
	fallbackModel  = "llama-3.3-70b-versatile"
)

// Provider 是 Groq 适配器。
type Provider struct {
	*openaicompat.Provider
}

// New 创建 Groq Provider。
func New(logger *zap.Logger) *Provider {
	cfg := providers.Config{
		Name:           "groq",
		BaseURL:        defaultBaseURL,
		RequiresAPIKey: true,
	}
	dialect := openaicompat.Dialect{
		FallbackModel: fallbackModel,
		Models:        catalog,
		Capabilities: map[llm.Capability]bool{
			llm.CapabilityChat:      true,
			llm.CapabilityVision:    true,
			llm.CapabilityStreaming: true,
			llm.CapabilityTools:     true,
		},
		MutatePayload: func(payload map[string]any, opts llm.Options) {
			if opts.Has("parallel_tool_calls") {
				payload["parallel_tool_calls"] = opts.Bool("parallel_tool_calls", true)
			}
		},
	}
	return &Provider{Provider: openaicompat.New(cfg, dialect, logger)}
}

var catalog = []llm.ModelInfo{
	{ID: "llama-3.3-70b-versatile", Name: "Llama 3.3 70B", ContextLength: 128000, SupportsTools: true, PromptPrice: 0.00000059, CompletionPrice: 0.00000079},
	{ID: "llama-3.1-8b-instant", Name: "Llama 3.1 8B", ContextLength: 128000, SupportsTools: true, PromptPrice: 0.00000005, CompletionPrice: 0.00000008},
	{ID: "mixtral-8x7b-32768", Name: "Mixtral 8x7B", ContextLength: 32768, SupportsTools: true, PromptPrice: 0.00000024, CompletionPrice: 0.00000024},
	{ID: "llama-3.2-90b-vision-preview", Name: "Llama 3.2 90B Vision", ContextLength: 128000, SupportsVision: true, PromptPrice: 0.0000009, CompletionPrice: 0.0000009},
}
