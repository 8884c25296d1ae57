// Package gemini 实现 Google Gemini 的 Provider 适配。
// 认证方式特殊：API Key 作为 URL 查询参数传递，不带任何认证头。
// 其余差异：assistant 角色改写为 model、system 消息提升为
// systemInstruction、流式端点需附加 &alt=sse、工具参数原生结构化、
// 工具调用无 ID 需本地生成。
package gemini

import (
	"context"
	"encoding/base64"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/llmbridge/llmbridge/internal/jsonx"
	"github.com/llmbridge/llmbridge/llm"
	"github.com/llmbridge/llmbridge/llm/providers"
	"github.com/llmbridge/llmbridge/llm/providers/openaicompat"
	"github.com/llmbridge/llmbridge/llm/streaming"
)

const (
	defaultBaseURL = "https://generativelanguage.googleapis.com/v1beta"
	fallbackModel  = "gemini-1.5-flash"
	embeddingModel = "text-embedding-004"
)

// Provider 是 Gemini 适配器。
type Provider struct {
	*providers.Base
}

// New 创建 Gemini Provider。
func New(logger *zap.Logger) *Provider {
	cfg := providers.Config{
		Name:           "gemini",
		BaseURL:        defaultBaseURL,
		RequiresAPIKey: true,
		// 覆盖默认的 Bearer 注入：Gemini 不使用认证头，
		// key 在 endpoint 方法里拼入查询参数
		BuildHeaders: func(req *http.Request, apiKey string) {
			req.Header.Set("Content-Type", "application/json")
		},
	}
	return &Provider{Base: providers.NewBase(cfg, logger)}
}

// endpoint 构建带 key 查询参数的模型端点。
func (p *Provider) endpoint(model, method string, sse bool) string {
	ep := fmt.Sprintf("models/%s:%s?key=%s", model, method, url.QueryEscape(p.Config().APIKey))
	if sse {
		ep += "&alt=sse"
	}
	return ep
}

// Complete 是单条 user 消息的便捷封装。
func (p *Provider) Complete(ctx context.Context, prompt string, opts llm.Options) (*llm.CompletionResponse, error) {
	return p.ChatCompletion(ctx, []llm.Message{llm.UserMessage(prompt)}, opts)
}

// ChatCompletion 发起同步聊天请求。
func (p *Provider) ChatCompletion(ctx context.Context, messages []llm.Message, opts llm.Options) (*llm.CompletionResponse, error) {
	model := providers.ChooseModel(opts, p.Config().DefaultModel, fallbackModel)
	payload := p.buildPayload(messages, opts)
	raw, err := p.SendRequest(ctx, p.endpoint(model, "generateContent", false), payload, http.MethodPost)
	if err != nil {
		return nil, err
	}
	return p.parseResponse(raw, model)
}

// ChatCompletionWithTools 携带工具声明发起聊天请求。
// Gemini 的声明格式为 tools[].functionDeclarations。
func (p *Provider) ChatCompletionWithTools(ctx context.Context, messages []llm.Message, tools []llm.ToolSchema, opts llm.Options) (*llm.CompletionResponse, error) {
	model := providers.ChooseModel(opts, p.Config().DefaultModel, fallbackModel)
	payload := p.buildPayload(messages, opts)
	if len(tools) > 0 {
		declarations := make([]map[string]any, 0, len(tools))
		for _, t := range tools {
			declarations = append(declarations, map[string]any{
				"name":        t.Name,
				"description": t.Description,
				"parameters":  t.Parameters,
			})
		}
		payload["tools"] = []map[string]any{{"functionDeclarations": declarations}}
	}
	raw, err := p.SendRequest(ctx, p.endpoint(model, "generateContent", false), payload, http.MethodPost)
	if err != nil {
		return nil, err
	}
	return p.parseResponse(raw, model)
}

// StreamChatCompletion 发起流式聊天请求，端点需附加 &alt=sse
// 才返回 SSE 帧而非 JSON 数组。
func (p *Provider) StreamChatCompletion(ctx context.Context, messages []llm.Message, opts llm.Options) (<-chan llm.StreamChunk, error) {
	model := providers.ChooseModel(opts, p.Config().DefaultModel, fallbackModel)
	payload := p.buildPayload(messages, opts)
	body, err := p.OpenStream(ctx, p.endpoint(model, "streamGenerateContent", true), payload)
	if err != nil {
		return nil, err
	}
	return streaming.DecodeSSE(ctx, body, p.Name(), streaming.GeminiExtractor), nil
}

// Embeddings 通过 batchEmbedContents 批量生成嵌入，结果保持请求顺序。
func (p *Provider) Embeddings(ctx context.Context, input []string, opts llm.Options) (*llm.EmbeddingResponse, error) {
	model := opts.String("model", embeddingModel)
	requests := make([]map[string]any, 0, len(input))
	for _, text := range input {
		requests = append(requests, map[string]any{
			"model":   "models/" + model,
			"content": map[string]any{"parts": []map[string]any{{"text": text}}},
		})
	}
	payload := map[string]any{"requests": requests}

	raw, err := p.SendRequest(ctx, p.endpoint(model, "batchEmbedContents", false), payload, http.MethodPost)
	if err != nil {
		return nil, err
	}

	entries := jsonx.GetList(raw, "embeddings")
	if len(entries) != len(input) {
		return nil, llm.NewDecodeError(p.Name(),
			fmt.Errorf("expected %d embeddings, got %d", len(input), len(entries)))
	}
	embeddings := make([][]float64, 0, len(entries))
	for _, entry := range entries {
		m, _ := entry.(map[string]any)
		values := jsonx.GetList(m, "values")
		vector := make([]float64, 0, len(values))
		for _, v := range values {
			if f, ok := v.(float64); ok {
				vector = append(vector, f)
			}
		}
		embeddings = append(embeddings, vector)
	}
	return &llm.EmbeddingResponse{
		Embeddings: embeddings,
		Model:      model,
		Usage:      llm.NewUsage(0, 0),
	}, nil
}

// AnalyzeImage 以 inlineData 分片执行视觉分析。
func (p *Provider) AnalyzeImage(ctx context.Context, image llm.ImageInput, prompt string, opts llm.Options) (*llm.VisionResponse, error) {
	var imagePart map[string]any
	if len(image.Data) > 0 {
		imagePart = map[string]any{"inlineData": map[string]any{
			"mimeType": image.MimeType,
			"data":     base64.StdEncoding.EncodeToString(image.Data),
		}}
	} else {
		imagePart = map[string]any{"fileData": map[string]any{
			"mimeType": image.MimeType,
			"fileUri":  image.URL,
		}}
	}

	model := providers.ChooseModel(opts, p.Config().DefaultModel, fallbackModel)
	payload := map[string]any{
		"contents": []map[string]any{{
			"role":  "user",
			"parts": []map[string]any{{"text": prompt}, imagePart},
		}},
		"generationConfig": p.generationConfig(opts),
	}
	raw, err := p.SendRequest(ctx, p.endpoint(model, "generateContent", false), payload, http.MethodPost)
	if err != nil {
		return nil, err
	}
	resp, err := p.parseResponse(raw, model)
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
			Message: "gemini provider is not configured: missing API key",
		}, nil
	}
	models, _ := p.GetAvailableModels(ctx)
	return &llm.ConnectionTestResult{
		Success: true,
		Message: "gemini provider is configured (static model catalog, no network call made)",
		Models:  providers.ModelIDs(models),
	}, nil
}

// SupportsFeature 报告能力支持情况。
func (p *Provider) SupportsFeature(capability llm.Capability) bool {
	switch capability {
	case llm.CapabilityChat, llm.CapabilityEmbeddings, llm.CapabilityVision,
		llm.CapabilityStreaming, llm.CapabilityTools:
		return true
	}
	return false
}

// buildPayload 构建 Gemini 负载：assistant 角色改写为 model，
// system 消息提升为 systemInstruction，生成参数进 generationConfig。
func (p *Provider) buildPayload(messages []llm.Message, opts llm.Options) map[string]any {
	var systems []string
	contents := make([]map[string]any, 0, len(messages))
	for _, m := range messages {
		if m.Role == llm.RoleSystem {
			systems = append(systems, m.Content)
			continue
		}
		role := "user"
		if m.Role == llm.RoleAssistant {
			role = "model"
		}
		contents = append(contents, map[string]any{
			"role":  role,
			"parts": []map[string]any{{"text": m.Content}},
		})
	}

	payload := map[string]any{
		"contents":         contents,
		"generationConfig": p.generationConfig(opts),
	}
	if len(systems) > 0 {
		payload["systemInstruction"] = map[string]any{
			"parts": []map[string]any{{"text": strings.Join(systems, "\n\n")}},
		}
	}
	return payload
}

func (p *Provider) generationConfig(opts llm.Options) map[string]any {
	cfg := map[string]any{
		"temperature":     opts.Float("temperature", openaicompat.DefaultTemperature),
		"maxOutputTokens": opts.Int("max_tokens", openaicompat.DefaultMaxTokens),
	}
	if opts.Has("top_p") {
		cfg["topP"] = opts.Float("top_p", 1)
	}
	if stop := opts.StringSlice("stop"); len(stop) > 0 {
		cfg["stopSequences"] = stop
	}
	return cfg
}

// parseResponse 归一化 Gemini 响应：拼接 text 分片、
// 收集 functionCall 分片（本地生成调用 ID）、映射 finishReason。
func (p *Provider) parseResponse(raw map[string]any, model string) (*llm.CompletionResponse, error) {
	candidate := jsonx.FirstMap(raw, "candidates")
	if candidate == nil {
		return nil, llm.NewDecodeError(p.Name(), fmt.Errorf("response contained no candidates"))
	}

	var sb strings.Builder
	var toolCalls []llm.ToolCall
	content := jsonx.GetMap(candidate, "content")
	for _, entry := range jsonx.GetList(content, "parts") {
		part, ok := entry.(map[string]any)
		if !ok {
			continue
		}
		if text := jsonx.GetString(part, "text", ""); text != "" {
			sb.WriteString(text)
		}
		if fc := jsonx.GetMap(part, "functionCall"); fc != nil {
			toolCalls = append(toolCalls, llm.ToolCall{
				// Gemini 不返回调用 ID，本地生成以保持统一结构
				ID:        "call_" + uuid.NewString(),
				Name:      jsonx.GetString(fc, "name", ""),
				Arguments: providers.DecodeArguments(fc["args"]),
			})
		}
	}

	finish := normalizeFinishReason(jsonx.GetString(candidate, "finishReason", ""))
	if len(toolCalls) > 0 {
		finish = llm.FinishToolCalls
	}

	usage := llm.NewUsage(
		jsonx.GetNestedInt(raw, "usageMetadata.promptTokenCount", 0),
		jsonx.GetNestedInt(raw, "usageMetadata.candidatesTokenCount", 0),
	)
	resp := &llm.CompletionResponse{
		Content:      sb.String(),
		Model:        model,
		Usage:        usage,
		FinishReason: finish,
		Provider:     p.Name(),
		ToolCalls:    toolCalls,
	}
	p.Collector().ObserveTokens(p.Name(), usage.PromptTokens, usage.CompletionTokens)
	return resp, nil
}

// normalizeFinishReason 映射 Gemini 的 finishReason 词表。
// SAFETY 与 RECITATION 都归入 content_filter。
func normalizeFinishReason(vendor string) llm.FinishReason {
	switch vendor {
	case "MAX_TOKENS":
		return llm.FinishLength
	case "SAFETY", "RECITATION":
		return llm.FinishContentFilter
	default:
		return llm.FinishStop
	}
}

var catalog = []llm.ModelInfo{
	{ID: "gemini-1.5-pro", Name: "Gemini 1.5 Pro", ContextLength: 2097152, SupportsVision: true, SupportsTools: true, PromptPrice: 0.00000125, CompletionPrice: 0.000005},
	{ID: "gemini-1.5-flash", Name: "Gemini 1.5 Flash", ContextLength: 1048576, SupportsVision: true, SupportsTools: true, PromptPrice: 0.000000075, CompletionPrice: 0.0000003},
	{ID: "gemini-1.5-flash-8b", Name: "Gemini 1.5 Flash 8B", ContextLength: 1048576, SupportsVision: true, SupportsTools: true, PromptPrice: 0.0000000375, CompletionPrice: 0.00000015},
	{ID: "text-embedding-004", Name: "Text Embedding 004", ContextLength: 2048},
}
