// Package openrouter 实现 OpenRouter 聚合网关的 Provider 适配。
// 沿用 OpenAI 方言，额外提供：归因头（HTTP-Referer、X-Title）、
// 自动多模型回退（models 数组）、模型路由策略（见 routing.go）
// 与网关专有错误码的说明映射。
package openrouter

import (
	"context"
	"errors"
	"net/http"
	"sync"

	"go.uber.org/zap"

	"github.com/llmbridge/llmbridge/llm"
	"github.com/llmbridge/llmbridge/llm/providers"
	"github.com/llmbridge/llmbridge/llm/providers/openaicompat"
)

const (
	defaultBaseURL = "https://openrouter.ai/api/v1"
	fallbackModel  = "openai/gpt-4o-mini"

	defaultSiteURL = "https://github.com/llmbridge/llmbridge"
	defaultAppName = "llmbridge"
)

// Provider 是 OpenRouter 适配器。
type Provider struct {
	*openaicompat.Provider

	mu             sync.Mutex
	siteURL        string
	appName        string
	strategy       Strategy
	autoFallback   bool
	fallbackModels []string

	catalog *catalogCache
}

// New 创建 OpenRouter Provider。
func New(logger *zap.Logger) *Provider {
	p := &Provider{
		siteURL:  defaultSiteURL,
		appName:  defaultAppName,
		strategy: StrategyExplicit,
	}
	cfg := providers.Config{
		Name:           "openrouter",
		BaseURL:        defaultBaseURL,
		RequiresAPIKey: true,
		BuildHeaders:   p.buildHeaders,
	}
	dialect := openaicompat.Dialect{
		FallbackModel: fallbackModel,
		Capabilities: map[llm.Capability]bool{
			llm.CapabilityChat:      true,
			llm.CapabilityVision:    true,
			llm.CapabilityStreaming: true,
			llm.CapabilityTools:     true,
		},
		MutatePayload: p.mutatePayload,
	}
	p.Provider = openaicompat.New(cfg, dialect, logger)
	p.catalog = newCatalogCache(p.Provider)
	return p
}

// Configure 在共享配置之外接受归因与路由选项：
// site_url、app_name、routing_strategy、auto_fallback、fallback_models。
func (p *Provider) Configure(opts llm.Options) {
	p.mu.Lock()
	p.siteURL = opts.String("site_url", p.siteURL)
	p.appName = opts.String("app_name", p.appName)
	if s := opts.String("routing_strategy", ""); s != "" {
		p.strategy = Strategy(s)
	}
	p.autoFallback = opts.Bool("auto_fallback", p.autoFallback)
	if models := opts.StringSlice("fallback_models"); len(models) > 0 {
		p.fallbackModels = models
	}
	p.mu.Unlock()
	p.Provider.Configure(opts)
}

func (p *Provider) buildHeaders(req *http.Request, apiKey string) {
	providers.BearerTokenHeaders(req, apiKey)
	p.mu.Lock()
	defer p.mu.Unlock()
	req.Header.Set("HTTP-Referer", p.siteURL)
	req.Header.Set("X-Title", p.appName)
}

// mutatePayload 在启用自动回退时附加 models 数组：
// 首选模型在前，配置的回退模型按序随后。
func (p *Provider) mutatePayload(payload map[string]any, opts llm.Options) {
	p.mu.Lock()
	auto, fallbacks := p.autoFallback, p.fallbackModels
	p.mu.Unlock()
	if !auto || len(fallbacks) == 0 {
		return
	}
	primary, _ := payload["model"].(string)
	models := make([]string, 0, 1+len(fallbacks))
	models = append(models, primary)
	models = append(models, fallbacks...)
	payload["models"] = models
}

// Complete 是单条 user 消息的便捷封装。
func (p *Provider) Complete(ctx context.Context, prompt string, opts llm.Options) (*llm.CompletionResponse, error) {
	return p.ChatCompletion(ctx, []llm.Message{llm.UserMessage(prompt)}, opts)
}

// ChatCompletion 在路由策略生效时先选模型，再走方言实现。
func (p *Provider) ChatCompletion(ctx context.Context, messages []llm.Message, opts llm.Options) (*llm.CompletionResponse, error) {
	opts = p.applyRouting(ctx, opts)
	resp, err := p.Provider.ChatCompletion(ctx, messages, opts)
	return resp, p.annotate(err)
}

// ChatCompletionWithTools 同 ChatCompletion，路由要求候选支持工具调用。
func (p *Provider) ChatCompletionWithTools(ctx context.Context, messages []llm.Message, tools []llm.ToolSchema, opts llm.Options) (*llm.CompletionResponse, error) {
	if !opts.Has("require_tools") {
		// 复制后再写入，调用方的映射保持原样
		withTools := make(llm.Options, len(opts)+1)
		for k, v := range opts {
			withTools[k] = v
		}
		withTools["require_tools"] = true
		opts = withTools
	}
	opts = p.applyRouting(ctx, opts)
	resp, err := p.Provider.ChatCompletionWithTools(ctx, messages, tools, opts)
	return resp, p.annotate(err)
}

// StreamChatCompletion 同 ChatCompletion。
func (p *Provider) StreamChatCompletion(ctx context.Context, messages []llm.Message, opts llm.Options) (<-chan llm.StreamChunk, error) {
	opts = p.applyRouting(ctx, opts)
	ch, err := p.Provider.StreamChatCompletion(ctx, messages, opts)
	return ch, p.annotate(err)
}

// applyRouting 在未显式指定模型且策略非 explicit 时运行路由算法。
// 路由失败（目录不可达、无候选）回退到配置的默认模型，调用方
// 永远不会从路由看到网络错误。
func (p *Provider) applyRouting(ctx context.Context, opts llm.Options) llm.Options {
	p.mu.Lock()
	strategy := p.strategy
	p.mu.Unlock()

	if strategy == StrategyExplicit || opts.String("model", "") != "" {
		return opts
	}

	models := p.catalog.Models(ctx, false)
	selected := SelectModel(models, strategy, RequirementsFromOptions(opts))
	if selected == "" {
		return opts
	}

	routed := llm.Options{}
	for k, v := range opts {
		routed[k] = v
	}
	routed["model"] = selected
	p.Logger().Debug("routed model selection",
		zap.String("strategy", string(strategy)),
		zap.String("model", selected))
	return routed
}

// GetAvailableModels 返回实时模型目录。
// 与路由路径不同，这里的目录获取失败向调用方传播。
func (p *Provider) GetAvailableModels(ctx context.Context) ([]llm.ModelInfo, error) {
	return p.catalog.Fetch(ctx)
}

// RefreshModels 强制刷新目录缓存。
func (p *Provider) RefreshModels(ctx context.Context) ([]llm.ModelInfo, error) {
	p.catalog.Invalidate()
	return p.catalog.Fetch(ctx)
}

// TestConnection 实际访问模型目录端点验证密钥与连通性。
func (p *Provider) TestConnection(ctx context.Context) (*llm.ConnectionTestResult, error) {
	if !p.IsAvailable() {
		return &llm.ConnectionTestResult{
			Success: false,
			Message: "openrouter provider is not configured: missing API key",
		}, nil
	}
	models, err := p.catalog.Fetch(ctx)
	if err != nil {
		return &llm.ConnectionTestResult{
			Success: false,
			Message: "openrouter model catalog is unreachable: " + err.Error(),
		}, nil
	}
	return &llm.ConnectionTestResult{
		Success: true,
		Message: "openrouter provider is reachable (live model catalog)",
		Models:  providers.ModelIDs(models),
	}, nil
}

// annotate 为网关专有状态码补充说明，其余错误原样返回。
func (p *Provider) annotate(err error) error {
	if err == nil {
		return err
	}
	var e *llm.Error
	if !errors.As(err, &e) || e.Kind != llm.ErrKindResponse {
		return err
	}
	if hint, ok := statusHints[e.StatusCode]; ok {
		e.Message += " (" + hint + ")"
	}
	return e
}

// statusHints 是 OpenRouter 网关的错误码说明表。
var statusHints = map[int]string{
	401: "invalid or expired OpenRouter API key",
	402: "insufficient credits, top up your OpenRouter account",
	403: "the selected model requires moderation approval or is region blocked",
	429: "rate limited by OpenRouter, slow down or raise your limits",
	503: "no provider is currently available for the selected model",
}
