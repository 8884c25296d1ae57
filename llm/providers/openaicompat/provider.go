// Package openaicompat 实现 OpenAI 方言的共享 Provider。
// OpenAI、Mistral、Groq、OpenRouter 的聊天 API 结构相同，
// 只在认证头、端点与个别负载字段上有差异，各适配器嵌入本实现
// 并通过 Dialect 描述差异点。
package openaicompat

import (
	"context"
	"encoding/base64"
	"fmt"
	"net/http"
	"sort"

	"go.uber.org/zap"

	"github.com/llmbridge/llmbridge/internal/jsonx"
	"github.com/llmbridge/llmbridge/llm"
	"github.com/llmbridge/llmbridge/llm/providers"
	"github.com/llmbridge/llmbridge/llm/streaming"
)

// 生成参数的方言默认值。
const (
	DefaultTemperature = 0.7
	DefaultMaxTokens   = 4096
)

// Dialect 描述一个 OpenAI 兼容厂商与基准方言的差异。
type Dialect struct {
	// ChatEndpoint 默认为 "chat/completions"。
	ChatEndpoint string
	// EmbeddingsEndpoint 为空表示该厂商无嵌入模型。
	EmbeddingsEndpoint string
	// FallbackModel 在选项与配置都未指定模型时使用。
	FallbackModel string
	// EmbeddingModel 是嵌入调用的默认模型。
	EmbeddingModel string
	// Models 是静态模型目录。
	Models []llm.ModelInfo
	// Capabilities 列出该厂商支持的能力。
	Capabilities map[llm.Capability]bool
	// MutatePayload 在发送前调整厂商特有字段
	// （Mistral 的 random_seed、OpenRouter 的 models 回退数组等）。
	MutatePayload func(payload map[string]any, opts llm.Options)
}

// Provider 是 OpenAI 方言的完整实现，满足 llm.Provider。
type Provider struct {
	*providers.Base
	dialect Dialect
}

// New 创建方言 Provider。各厂商适配器通过自己的构造函数
// 填好 Config 与 Dialect 后调用。
func New(cfg providers.Config, dialect Dialect, logger *zap.Logger) *Provider {
	if dialect.ChatEndpoint == "" {
		dialect.ChatEndpoint = "chat/completions"
	}
	return &Provider{
		Base:    providers.NewBase(cfg, logger),
		dialect: dialect,
	}
}

// Dialect 返回方言描述，供嵌入方查询静态目录等。
func (p *Provider) Dialect() Dialect { return p.dialect }

// Complete 是单条 user 消息的便捷封装。
func (p *Provider) Complete(ctx context.Context, prompt string, opts llm.Options) (*llm.CompletionResponse, error) {
	return p.ChatCompletion(ctx, []llm.Message{llm.UserMessage(prompt)}, opts)
}

// ChatCompletion 发起同步聊天请求。
func (p *Provider) ChatCompletion(ctx context.Context, messages []llm.Message, opts llm.Options) (*llm.CompletionResponse, error) {
	payload := p.buildPayload(messages, opts, false)
	raw, err := p.SendRequest(ctx, p.dialect.ChatEndpoint, payload, http.MethodPost)
	if err != nil {
		return nil, err
	}
	return p.parseChatResponse(raw, payload["model"].(string))
}

// ChatCompletionWithTools 携带工具声明发起聊天请求。
func (p *Provider) ChatCompletionWithTools(ctx context.Context, messages []llm.Message, tools []llm.ToolSchema, opts llm.Options) (*llm.CompletionResponse, error) {
	payload := p.buildPayload(messages, opts, false)
	if len(tools) > 0 {
		payload["tools"] = EncodeTools(tools)
		if tc := opts.String("tool_choice", ""); tc != "" {
			payload["tool_choice"] = tc
		}
	}
	raw, err := p.SendRequest(ctx, p.dialect.ChatEndpoint, payload, http.MethodPost)
	if err != nil {
		return nil, err
	}
	return p.parseChatResponse(raw, payload["model"].(string))
}

// StreamChatCompletion 发起流式聊天请求。
func (p *Provider) StreamChatCompletion(ctx context.Context, messages []llm.Message, opts llm.Options) (<-chan llm.StreamChunk, error) {
	payload := p.buildPayload(messages, opts, true)
	body, err := p.OpenStream(ctx, p.dialect.ChatEndpoint, payload)
	if err != nil {
		return nil, err
	}
	return streaming.DecodeSSE(ctx, body, p.Name(), streaming.OpenAIExtractor), nil
}

// Embeddings 为输入文本生成嵌入向量。
func (p *Provider) Embeddings(ctx context.Context, input []string, opts llm.Options) (*llm.EmbeddingResponse, error) {
	if p.dialect.EmbeddingsEndpoint == "" {
		return nil, llm.NewUnsupportedFeatureError(p.Name(), llm.CapabilityEmbeddings)
	}
	model := providers.ChooseModel(opts, "", p.dialect.EmbeddingModel)
	payload := map[string]any{
		"model": model,
		"input": input,
	}
	raw, err := p.SendRequest(ctx, p.dialect.EmbeddingsEndpoint, payload, http.MethodPost)
	if err != nil {
		return nil, err
	}
	return p.parseEmbeddingResponse(raw, model, len(input))
}

// AnalyzeImage 通过多模态内容分片执行视觉分析。
func (p *Provider) AnalyzeImage(ctx context.Context, image llm.ImageInput, prompt string, opts llm.Options) (*llm.VisionResponse, error) {
	if !p.SupportsFeature(llm.CapabilityVision) {
		return nil, llm.NewUnsupportedFeatureError(p.Name(), llm.CapabilityVision)
	}
	url := image.URL
	if len(image.Data) > 0 {
		url = fmt.Sprintf("data:%s;base64,%s", image.MimeType, base64.StdEncoding.EncodeToString(image.Data))
	}
	payload := p.buildPayload(nil, opts, false)
	payload["messages"] = []map[string]any{
		{
			"role": "user",
			"content": []map[string]any{
				{"type": "text", "text": prompt},
				{"type": "image_url", "image_url": map[string]any{"url": url}},
			},
		},
	}
	raw, err := p.SendRequest(ctx, p.dialect.ChatEndpoint, payload, http.MethodPost)
	if err != nil {
		return nil, err
	}
	chat, err := p.parseChatResponse(raw, payload["model"].(string))
	if err != nil {
		return nil, err
	}
	return &llm.VisionResponse{
		Description: chat.Content,
		Model:       chat.Model,
		Usage:       chat.Usage,
		Provider:    p.Name(),
	}, nil
}

// GetAvailableModels 返回静态模型目录。
func (p *Provider) GetAvailableModels(ctx context.Context) ([]llm.ModelInfo, error) {
	models := make([]llm.ModelInfo, len(p.dialect.Models))
	copy(models, p.dialect.Models)
	return models, nil
}

// TestConnection 检查配置就绪状态。静态目录的厂商不发起网络调用，
// 消息中注明这一点。
func (p *Provider) TestConnection(ctx context.Context) (*llm.ConnectionTestResult, error) {
	if !p.IsAvailable() {
		return &llm.ConnectionTestResult{
			Success: false,
			Message: fmt.Sprintf("%s provider is not configured: missing API key", p.Name()),
		}, nil
	}
	models, _ := p.GetAvailableModels(ctx)
	return &llm.ConnectionTestResult{
		Success: true,
		Message: fmt.Sprintf("%s provider is configured (static model catalog, no network call made)", p.Name()),
		Models:  providers.ModelIDs(models),
	}, nil
}

// SupportsFeature 报告方言声明的能力。
func (p *Provider) SupportsFeature(capability llm.Capability) bool {
	return p.dialect.Capabilities[capability]
}

// buildPayload 构建 OpenAI 形态的聊天负载。
// system 消息内联在 messages 中，不做角色改写。
func (p *Provider) buildPayload(messages []llm.Message, opts llm.Options, stream bool) map[string]any {
	model := providers.ChooseModel(opts, p.Config().DefaultModel, p.dialect.FallbackModel)

	encoded := make([]map[string]any, 0, len(messages))
	for _, m := range messages {
		encoded = append(encoded, map[string]any{
			"role":    string(m.Role),
			"content": m.Content,
		})
	}

	payload := map[string]any{
		"model":       model,
		"messages":    encoded,
		"temperature": opts.Float("temperature", DefaultTemperature),
		"max_tokens":  opts.Int("max_tokens", DefaultMaxTokens),
	}
	if stream {
		payload["stream"] = true
	}
	if opts.Has("top_p") {
		payload["top_p"] = opts.Float("top_p", 1)
	}
	if opts.Has("frequency_penalty") {
		payload["frequency_penalty"] = opts.Float("frequency_penalty", 0)
	}
	if opts.Has("presence_penalty") {
		payload["presence_penalty"] = opts.Float("presence_penalty", 0)
	}
	if stop := opts.StringSlice("stop"); len(stop) > 0 {
		payload["stop"] = stop
	}
	if opts.Has("seed") {
		payload["seed"] = opts.Int("seed", 0)
	}
	if user := opts.String("user", ""); user != "" {
		payload["user"] = user
	}

	if p.dialect.MutatePayload != nil {
		p.dialect.MutatePayload(payload, opts)
	}
	return payload
}

// parseChatResponse 将 OpenAI 形态的响应归一化。
func (p *Provider) parseChatResponse(raw map[string]any, requestModel string) (*llm.CompletionResponse, error) {
	choice := jsonx.FirstMap(raw, "choices")
	if choice == nil {
		return nil, llm.NewDecodeError(p.Name(), fmt.Errorf("response contained no choices"))
	}
	message := jsonx.GetMap(choice, "message")

	resp := &llm.CompletionResponse{
		Content:      jsonx.GetString(message, "content", ""),
		Model:        jsonx.GetString(raw, "model", requestModel),
		Usage:        ParseUsage(raw),
		FinishReason: providers.NormalizeFinishReason(jsonx.GetString(choice, "finish_reason", "")),
		Provider:     p.Name(),
		ToolCalls:    ParseToolCalls(message),
	}
	p.Collector().ObserveTokens(p.Name(), resp.Usage.PromptTokens, resp.Usage.CompletionTokens)
	return resp, nil
}

// parseEmbeddingResponse 解析嵌入响应，按 index 字段恢复输入顺序。
func (p *Provider) parseEmbeddingResponse(raw map[string]any, model string, inputs int) (*llm.EmbeddingResponse, error) {
	data := jsonx.GetList(raw, "data")
	if len(data) == 0 {
		return nil, llm.NewDecodeError(p.Name(), fmt.Errorf("response contained no embedding data"))
	}

	type indexed struct {
		index  int
		vector []float64
	}
	items := make([]indexed, 0, len(data))
	for i, entry := range data {
		m, ok := entry.(map[string]any)
		if !ok {
			continue
		}
		vector := decodeVector(jsonx.GetList(m, "embedding"))
		items = append(items, indexed{index: jsonx.GetInt(m, "index", i), vector: vector})
	}
	sort.Slice(items, func(i, j int) bool { return items[i].index < items[j].index })

	embeddings := make([][]float64, 0, len(items))
	for _, item := range items {
		embeddings = append(embeddings, item.vector)
	}
	if len(embeddings) != inputs {
		return nil, llm.NewDecodeError(p.Name(),
			fmt.Errorf("expected %d embeddings, got %d", inputs, len(embeddings)))
	}

	usage := llm.NewUsage(jsonx.GetNestedInt(raw, "usage.prompt_tokens", 0), 0)
	return &llm.EmbeddingResponse{
		Embeddings: embeddings,
		Model:      jsonx.GetString(raw, "model", model),
		Usage:      usage,
	}, nil
}

func decodeVector(values []any) []float64 {
	vector := make([]float64, 0, len(values))
	for _, v := range values {
		if f, ok := v.(float64); ok {
			vector = append(vector, f)
		}
	}
	return vector
}

// ParseUsage 读取 OpenAI 形态的 usage 块，总量由两个分量重新计算。
func ParseUsage(raw map[string]any) llm.UsageStatistics {
	return llm.NewUsage(
		jsonx.GetNestedInt(raw, "usage.prompt_tokens", 0),
		jsonx.GetNestedInt(raw, "usage.completion_tokens", 0),
	)
}

// ParseToolCalls 解析消息中的工具调用。
// OpenAI 把参数编码为 JSON 字符串，这里统一解码为结构化映射。
func ParseToolCalls(message map[string]any) []llm.ToolCall {
	list := jsonx.GetList(message, "tool_calls")
	if len(list) == 0 {
		return nil
	}
	calls := make([]llm.ToolCall, 0, len(list))
	for _, entry := range list {
		m, ok := entry.(map[string]any)
		if !ok {
			continue
		}
		fn := jsonx.GetMap(m, "function")
		calls = append(calls, llm.ToolCall{
			ID:        jsonx.GetString(m, "id", ""),
			Name:      jsonx.GetString(fn, "name", ""),
			Arguments: providers.DecodeArguments(fn["arguments"]),
		})
	}
	return calls
}

// EncodeTools 将统一的工具声明编码为 OpenAI tools 数组。
func EncodeTools(tools []llm.ToolSchema) []map[string]any {
	encoded := make([]map[string]any, 0, len(tools))
	for _, t := range tools {
		encoded = append(encoded, map[string]any{
			"type": "function",
			"function": map[string]any{
				"name":        t.Name,
				"description": t.Description,
				"parameters":  t.Parameters,
			},
		})
	}
	return encoded
}
