// Package mistral 实现 Mistral AI 的 Provider 适配。
// 基本沿用 OpenAI 方言，差异：seed 字段名为 random_seed，
// 支持 safe_prompt 内容安全开关。
package mistral

import (
	"go.uber.org/zap"

	"github.com/llmbridge/llmbridge/llm"
	"github.com/llmbridge/llmbridge/llm/providers"
	"github.com/llmbridge/llmbridge/llm/providers/openaicompat"
)

const (
	defaultBaseURL = "https://api.mistral.ai/v1"
	fallbackModel  = "mistral-small-latest"
	embeddingModel = "mistral-embed"
)

// Provider 是 Mistral 适配器。
type Provider struct {
	*openaicompat.Provider
}

// New 创建 Mistral Provider。
func New(logger *zap.Logger) *Provider {
	cfg := providers.Config{
		Name:           "mistral",
		BaseURL:        defaultBaseURL,
		RequiresAPIKey: true,
	}
	dialect := openaicompat.Dialect{
		EmbeddingsEndpoint: "embeddings",
		FallbackModel:      fallbackModel,
		EmbeddingModel:     embeddingModel,
		Models:             catalog,
		Capabilities: map[llm.Capability]bool{
			llm.CapabilityChat:       true,
			llm.CapabilityEmbeddings: true,
			llm.CapabilityVision:     true,
			llm.CapabilityStreaming:  true,
			llm.CapabilityTools:      true,
		},
		MutatePayload: mutatePayload,
	}
	return &Provider{Provider: openaicompat.New(cfg, dialect, logger)}
}

// mutatePayload 处理 Mistral 的字段改名与专有开关。
func mutatePayload(payload map[string]any, opts llm.Options) {
	if seed, ok := payload["seed"]; ok {
		payload["random_seed"] = seed
		delete(payload, "seed")
	}
	if opts.Has("safe_prompt") {
		payload["safe_prompt"] = opts.Bool("safe_prompt", false)
	}
}

var catalog = []llm.ModelInfo{
	{ID: "mistral-large-latest", Name: "Mistral Large", ContextLength: 128000, SupportsTools: true, PromptPrice: 0.000002, CompletionPrice: 0.000006},
	{ID: "mistral-small-latest", Name: "Mistral Small", ContextLength: 32000, SupportsTools: true, PromptPrice: 0.0000002, CompletionPrice: 0.0000006},
	{ID: "pixtral-large-latest", Name: "Pixtral Large", ContextLength: 128000, SupportsVision: true, SupportsTools: true, PromptPrice: 0.000002, CompletionPrice: 0.000006},
	{ID: "codestral-latest", Name: "Codestral", ContextLength: 32000, PromptPrice: 0.0000002, CompletionPrice: 0.0000006},
	{ID: "mistral-embed", Name: "Mistral Embed", ContextLength: 8000, PromptPrice: 0.0000001},
}
