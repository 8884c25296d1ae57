// Package openai 实现 OpenAI 的 Provider 适配。
// OpenAI 是基准方言：Bearer 认证、system 消息内联、
// SSE 流式、工具参数为 JSON 字符串。
package openai

import (
	"net/http"
	"sync"

	"go.uber.org/zap"

	"github.com/llmbridge/llmbridge/llm"
	"github.com/llmbridge/llmbridge/llm/providers"
	"github.com/llmbridge/llmbridge/llm/providers/openaicompat"
)

const (
	defaultBaseURL = "https://api.openai.com/v1"
	fallbackModel  = "gpt-4o-mini"
	embeddingModel = "text-embedding-3-small"
)

// Provider 是 OpenAI 适配器。
type Provider struct {
	*openaicompat.Provider

	mu           sync.Mutex
	organization string
}

// New 创建 OpenAI Provider。
func New(logger *zap.Logger) *Provider {
	p := &Provider{}
	cfg := providers.Config{
		Name:           "openai",
		BaseURL:        defaultBaseURL,
		RequiresAPIKey: true,
		BuildHeaders:   p.buildHeaders,
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
	}
	p.Provider = openaicompat.New(cfg, dialect, logger)
	return p
}

// Configure 在共享配置之外接受 organization 选项。
func (p *Provider) Configure(opts llm.Options) {
	p.mu.Lock()
	p.organization = opts.String("organization", p.organization)
	p.mu.Unlock()
	p.Provider.Configure(opts)
}

func (p *Provider) buildHeaders(req *http.Request, apiKey string) {
	providers.BearerTokenHeaders(req, apiKey)
	p.mu.Lock()
	org := p.organization
	p.mu.Unlock()
	if org != "" {
		req.Header.Set("OpenAI-Organization", org)
	}
}

var catalog = []llm.ModelInfo{
	{ID: "gpt-4o", Name: "GPT-4o", ContextLength: 128000, SupportsVision: true, SupportsTools: true, PromptPrice: 0.0000025, CompletionPrice: 0.00001},
	{ID: "gpt-4o-mini", Name: "GPT-4o mini", ContextLength: 128000, SupportsVision: true, SupportsTools: true, PromptPrice: 0.00000015, CompletionPrice: 0.0000006},
	{ID: "gpt-4-turbo", Name: "GPT-4 Turbo", ContextLength: 128000, SupportsVision: true, SupportsTools: true, PromptPrice: 0.00001, CompletionPrice: 0.00003},
	{ID: "gpt-3.5-turbo", Name: "GPT-3.5 Turbo", ContextLength: 16385, SupportsTools: true, PromptPrice: 0.0000005, CompletionPrice: 0.0000015},
	{ID: "o1-mini", Name: "o1 mini", ContextLength: 128000, SupportsTools: true, PromptPrice: 0.0000011, CompletionPrice: 0.0000044},
	{ID: "text-embedding-3-small", Name: "Text Embedding 3 Small", ContextLength: 8191, PromptPrice: 0.00000002},
	{ID: "text-embedding-3-large", Name: "Text Embedding 3 Large", ContextLength: 8191, PromptPrice: 0.00000013},
}
