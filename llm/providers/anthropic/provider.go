// Package anthropic 实现 Claude 的 Provider 适配。
// 与 OpenAI 方言的差异：x-api-key 认证并携带 anthropic-version、
// system 消息提升为顶层 system 字段、响应内容是内容块数组、
// 终止原因词表不同、没有嵌入模型。
package anthropic

import (
	"context"
	"encoding/base64"
	"fmt"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/llmbridge/llmbridge/internal/jsonx"
	"github.com/llmbridge/llmbridge/llm"
	"github.com/llmbridge/llmbridge/llm/providers"
	"github.com/llmbridge/llmbridge/llm/providers/openaicompat"
	"github.com/llmbridge/llmbridge/llm/streaming"
)

const (
	defaultBaseURL = "https://api.anthropic.com/v1"
	apiVersion     = "2023-06-01"
	chatEndpoint   = "messages"
	fallbackModel  = "claude-3-5-sonnet-20241022"
)

// Provider 是 Claude 适配器。
type Provider struct {
	*providers.Base
}

// New 创建 Claude Provider。
func New(logger *zap.Logger) *Provider {
	cfg := providers.Config{
		Name:           "claude",
		BaseURL:        defaultBaseURL,
		RequiresAPIKey: true,
		BuildHeaders:   buildHeaders,
	}
	return &Provider{Base: providers.NewBase(cfg, logger)}
}

func buildHeaders(req *http.Request, apiKey string) {
	req.Header.Set("x-api-key", apiKey)
	req.Header.Set("anthropic-version", apiVersion)
	req.Header.Set("Content-Type", "application/json")
}

// Complete 是单条 user 消息的便捷封装。
func (p *Provider) Complete(ctx context.Context, prompt string, opts llm.Options) (*llm.CompletionResponse, error) {
	return p.ChatCompletion(ctx, []llm.Message{llm.UserMessage(prompt)}, opts)
}

// ChatCompletion 发起同步聊天请求。
func (p *Provider) ChatCompletion(ctx context.Context, messages []llm.Message, opts llm.Options) (*llm.CompletionResponse, error) {
	payload := p.buildPayload(messages, opts, false)
	raw, err := p.SendRequest(ctx, chatEndpoint, payload, http.MethodPost)
	if err != nil {
		return nil, err
	}
	return p.parseResponse(raw, payload["model"].(string))
}

// ChatCompletionWithTools 携带工具声明发起聊天请求。
func (p *Provider) ChatCompletionWithTools(ctx context.Context, messages []llm.Message, tools []llm.ToolSchema, opts llm.Options) (*llm.CompletionResponse, error) {
	payload := p.buildPayload(messages, opts, false)
	if len(tools) > 0 {
		encoded := make([]map[string]any, 0, len(tools))
		for _, t := range tools {
			encoded = append(encoded, map[string]any{
				"name":         t.Name,
				"description":  t.Description,
				"input_schema": t.Parameters,
			})
		}
		payload["tools"] = encoded
	}
	raw, err := p.SendRequest(ctx, chatEndpoint, payload, http.MethodPost)
	if err != nil {
		return nil, err
	}
	return p.parseResponse(raw, payload["model"].(string))
}

// StreamChatCompletion 发起流式聊天请求。
// Claude 的 SSE 事件流以 content_block_delta 携带增量，
// message_stop 宣告结束。
func (p *Provider) StreamChatCompletion(ctx context.Context, messages []llm.Message, opts llm.Options) (<-chan llm.StreamChunk, error) {
	payload := p.buildPayload(messages, opts, true)
	body, err := p.OpenStream(ctx, chatEndpoint, payload)
	if err != nil {
		return nil, err
	}
	return streaming.DecodeSSE(ctx, body, p.Name(), streaming.ClaudeExtractor), nil
}

// Embeddings 返回能力不支持：Anthropic 没有嵌入模型。
func (p *Provider) Embeddings(ctx context.Context, input []string, opts llm.Options) (*llm.EmbeddingResponse, error) {
	return nil, llm.NewUnsupportedFeatureError(p.Name(), llm.CapabilityEmbeddings)
}

// AnalyzeImage 以 image 内容块执行视觉分析。
func (p *Provider) AnalyzeImage(ctx context.Context, image llm.ImageInput, prompt string, opts llm.Options) (*llm.VisionResponse, error) {
	var source map[string]any
	if len(image.Data) > 0 {
		source = map[string]any{
			"type":       "base64",
			"media_type": image.MimeType,
			"data":       base64.StdEncoding.EncodeToString(image.Data),
		}
	} else {
		source = map[string]any{"type": "url", "url": image.URL}
	}

	payload := p.buildPayload(nil, opts, false)
	payload["messages"] = []map[string]any{{
		"role": "user",
		"content": []map[string]any{
			{"type": "image", "source": source},
			{"type": "text", "text": prompt},
		},
	}}
	raw, err := p.SendRequest(ctx, chatEndpoint, payload, http.MethodPost)
	if err != nil {
		return nil, err
	}
	resp, err := p.parseResponse(raw, payload["model"].(string))
	if err != nil {
		return nil, err
	}
	return &llm.VisionResponse{
		Description: resp.Content,
		Model:       resp.Model,
		Usage:       resp.Usage,
		Provider:    p.Name(),
	}, nil
}

// GetAvailableModels 返回静态模型目录。
func (p *Provider) GetAvailableModels(ctx context.Context) ([]llm.ModelInfo, error) {
	models := make([]llm.ModelInfo, len(catalog))
	copy(models, catalog)
	return models, nil
}

// TestConnection 检查配置就绪状态，不发起网络调用。
func (p *Provider) TestConnection(ctx context.Context) (*llm.ConnectionTestResult, error) {
	if !p.IsAvailable() {
		return &llm.ConnectionTestResult{
			Success: false,
			Message: "claude provider is not configured: missing API key",
		}, nil
	}
	models, _ := p.GetAvailableModels(ctx)
	return &llm.ConnectionTestResult{
		Success: true,
		Message: "claude provider is configured (static model catalog, no network call made)",
		Models:  providers.ModelIDs(models),
	}, nil
}

// SupportsFeature 报告能力支持情况。
func (p *Provider) SupportsFeature(capability llm.Capability) bool {
	switch capability {
	case llm.CapabilityChat, llm.CapabilityVision, llm.CapabilityStreaming, llm.CapabilityTools:
		return true
	}
	return false
}

// buildPayload 构建 Anthropic Messages API 负载。
// system 消息不进入 messages 数组，汇总后提升为顶层 system 字段；
// max_tokens 在此 API 中是必填字段。
func (p *Provider) buildPayload(messages []llm.Message, opts llm.Options, stream bool) map[string]any {
	model := providers.ChooseModel(opts, p.Config().DefaultModel, fallbackModel)

	var systems []string
	encoded := make([]map[string]any, 0, len(messages))
	for _, m := range messages {
		if m.Role == llm.RoleSystem {
			systems = append(systems, m.Content)
			continue
		}
		encoded = append(encoded, map[string]any{
			"role":    string(m.Role),
			"content": m.Content,
		})
	}

	payload := map[string]any{
		"model":      model,
		"messages":   encoded,
		"max_tokens": opts.Int("max_tokens", openaicompat.DefaultMaxTokens),
	}
	if len(systems) > 0 {
		payload["system"] = strings.Join(systems, "\n\n")
	}
	if opts.Has("temperature") {
		payload["temperature"] = opts.Float("temperature", openaicompat.DefaultTemperature)
	}
	if opts.Has("top_p") {
		payload["top_p"] = opts.Float("top_p", 1)
	}
	if stop := opts.StringSlice("stop"); len(stop) > 0 {
		payload["stop_sequences"] = stop
	}
	if stream {
		payload["stream"] = true
	}
	return payload
}

// parseResponse 归一化 Claude 响应：拼接 text 内容块，
// 收集 tool_use 块，按 Claude 词表映射终止原因。
func (p *Provider) parseResponse(raw map[string]any, requestModel string) (*llm.CompletionResponse, error) {
	blocks := jsonx.GetList(raw, "content")
	if blocks == nil {
		return nil, llm.NewDecodeError(p.Name(), fmt.Errorf("response contained no content blocks"))
	}

	var sb strings.Builder
	var toolCalls []llm.ToolCall
	for _, entry := range blocks {
		block, ok := entry.(map[string]any)
		if !ok {
			continue
		}
		switch jsonx.GetString(block, "type", "") {
		case "text":
			sb.WriteString(jsonx.GetString(block, "text", ""))
		case "tool_use":
			toolCalls = append(toolCalls, llm.ToolCall{
				ID:        jsonx.GetString(block, "id", ""),
				Name:      jsonx.GetString(block, "name", ""),
				Arguments: providers.DecodeArguments(block["input"]),
			})
		}
	}

	usage := llm.NewUsage(
		jsonx.GetNestedInt(raw, "usage.input_tokens", 0),
		jsonx.GetNestedInt(raw, "usage.output_tokens", 0),
	)
	resp := &llm.CompletionResponse{
		Content:      sb.String(),
		Model:        jsonx.GetString(raw, "model", requestModel),
		Usage:        usage,
		FinishReason: normalizeStopReason(jsonx.GetString(raw, "stop_reason", "")),
		Provider:     p.Name(),
		ToolCalls:    toolCalls,
	}
	p.Collector().ObserveTokens(p.Name(), usage.PromptTokens, usage.CompletionTokens)
	return resp, nil
}

// normalizeStopReason 映射 Claude 的 stop_reason 词表。
func normalizeStopReason(vendor string) llm.FinishReason {
	switch vendor {
	case "max_tokens":
		return llm.FinishLength
	case "tool_use":
		return llm.FinishToolCalls
	default:
		// end_turn、stop_sequence 以及未知值都归一化为 stop
		return llm.FinishStop
	}
}

var catalog = []llm.ModelInfo{
	{ID: "claude-3-5-sonnet-20241022", Name: "Claude 3.5 Sonnet", ContextLength: 200000, SupportsVision: true, SupportsTools: true, PromptPrice: 0.000003, CompletionPrice: 0.000015},
	{ID: "claude-3-5-haiku-20241022", Name: "Claude 3.5 Haiku", ContextLength: 200000, SupportsTools: true, PromptPrice: 0.0000008, CompletionPrice: 0.000004},
	{ID: "claude-3-opus-20240229", Name: "Claude 3 Opus", ContextLength: 200000, SupportsVision: true, SupportsTools: true, PromptPrice: 0.000015, CompletionPrice: 0.000075},
	{ID: "claude-3-haiku-20240307", Name: "Claude 3 Haiku", ContextLength: 200000, SupportsVision: true, SupportsTools: true, PromptPrice: 0.00000025, CompletionPrice: 0.00000125},
}
