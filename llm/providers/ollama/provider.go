// Package ollama 实现本地部署 Ollama 的 Provider 适配。
// 与云端厂商的差异：无需 API Key、流式为换行分隔 JSON 而非 SSE、
// 生成参数嵌套在 options 子对象（num_predict 对应 max_tokens）、
// GetAvailableModels 发起实时调用且仅在该方法内回退静态列表、
// TestConnection 必须实际访问服务端并向上传播连接错误、
// 响应缺失用量计数时用分词器估算。
package ollama

import (
	"context"
	"encoding/base64"
	"fmt"
	"net/http"

	"go.uber.org/zap"

	"github.com/llmbridge/llmbridge/internal/jsonx"
	"github.com/llmbridge/llmbridge/llm"
	"github.com/llmbridge/llmbridge/llm/providers"
	"github.com/llmbridge/llmbridge/llm/providers/openaicompat"
	"github.com/llmbridge/llmbridge/llm/streaming"
	"github.com/llmbridge/llmbridge/llm/tokenizer"
)

const (
	defaultBaseURL = "http://localhost:11434"
	fallbackModel  = "llama3.2"
	embeddingModel = "nomic-embed-text"

	chatEndpoint  = "api/chat"
	tagsEndpoint  = "api/tags"
	embedEndpoint = "api/embed"
)

// Provider 是 Ollama 适配器。
type Provider struct {
	*providers.Base
}

// New 创建 Ollama Provider。
func New(logger *zap.Logger) *Provider {
	cfg := providers.Config{
		Name:           "ollama",
		BaseURL:        defaultBaseURL,
		RequiresAPIKey: false,
		BuildHeaders: func(req *http.Request, apiKey string) {
			req.Header.Set("Content-Type", "application/json")
		},
	}
	return &Provider{Base: providers.NewBase(cfg, logger)}
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
	return p.parseResponse(raw, payload["model"].(string), messages)
}

// ChatCompletionWithTools 携带工具声明发起聊天请求。
// Ollama 的工具声明沿用 OpenAI 形态，参数原生结构化。
func (p *Provider) ChatCompletionWithTools(ctx context.Context, messages []llm.Message, tools []llm.ToolSchema, opts llm.Options) (*llm.CompletionResponse, error) {
	payload := p.buildPayload(messages, opts, false)
	if len(tools) > 0 {
		payload["tools"] = openaicompat.EncodeTools(tools)
	}
	raw, err := p.SendRequest(ctx, chatEndpoint, payload, http.MethodPost)
	if err != nil {
		return nil, err
	}
	return p.parseResponse(raw, payload["model"].(string), messages)
}

// StreamChatCompletion 发起流式聊天请求。
// Ollama 返回换行分隔的 JSON 帧，done:true 宣告结束。
func (p *Provider) StreamChatCompletion(ctx context.Context, messages []llm.Message, opts llm.Options) (<-chan llm.StreamChunk, error) {
	payload := p.buildPayload(messages, opts, true)
	body, err := p.OpenStream(ctx, chatEndpoint, payload)
	if err != nil {
		return nil, err
	}
	return streaming.DecodeNDJSON(ctx, body, p.Name(), streaming.OllamaExtractor), nil
}

// Embeddings 通过 /api/embed 批量生成嵌入。
func (p *Provider) Embeddings(ctx context.Context, input []string, opts llm.Options) (*llm.EmbeddingResponse, error) {
	model := opts.String("model", embeddingModel)
	payload := map[string]any{
		"model": model,
		"input": input,
	}
	raw, err := p.SendRequest(ctx, embedEndpoint, payload, http.MethodPost)
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
		values, _ := entry.([]any)
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
		Model:      jsonx.GetString(raw, "model", model),
		Usage:      llm.NewUsage(jsonx.GetInt(raw, "prompt_eval_count", 0), 0),
	}, nil
}

// AnalyzeImage 以消息级 images 字段执行视觉分析（需多模态模型）。
func (p *Provider) AnalyzeImage(ctx context.Context, image llm.ImageInput, prompt string, opts llm.Options) (*llm.VisionResponse, error) {
	if len(image.Data) == 0 {
		return nil, llm.NewConfigurationError(p.Name(), "ollama vision requires inline image data, URL references are not supported")
	}
	payload := p.buildPayload(nil, opts, false)
	payload["messages"] = []map[string]any{{
		"role":    "user",
		"content": prompt,
		"images":  []string{base64.StdEncoding.EncodeToString(image.Data)},
	}}
	raw, err := p.SendRequest(ctx, chatEndpoint, payload, http.MethodPost)
	if err != nil {
		return nil, err
	}
	resp, err := p.parseResponse(raw, payload["model"].(string), nil)
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

// GetAvailableModels 实时查询 /api/tags。
// 服务端不可达时回退到静态列表，回退只发生在本方法内，
// TestConnection 不沿用这一宽容策略。
func (p *Provider) GetAvailableModels(ctx context.Context) ([]llm.ModelInfo, error) {
	raw, err := p.SendRequest(ctx, tagsEndpoint, nil, http.MethodGet)
	if err != nil {
		p.Logger().Debug("falling back to static model list", zap.Error(err))
		models := make([]llm.ModelInfo, len(staticCatalog))
		copy(models, staticCatalog)
		return models, nil
	}
	return parseTags(raw), nil
}

// TestConnection 实际访问服务端，连接错误向上传播。
func (p *Provider) TestConnection(ctx context.Context) (*llm.ConnectionTestResult, error) {
	raw, err := p.SendRequest(ctx, tagsEndpoint, nil, http.MethodGet)
	if err != nil {
		return nil, err
	}
	models := parseTags(raw)
	return &llm.ConnectionTestResult{
		Success: true,
		Message: fmt.Sprintf("ollama server is reachable, %d models installed", len(models)),
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

// buildPayload 构建 Ollama 负载，生成参数嵌套在 options 子对象。
func (p *Provider) buildPayload(messages []llm.Message, opts llm.Options, stream bool) map[string]any {
	model := providers.ChooseModel(opts, p.Config().DefaultModel, fallbackModel)

	encoded := make([]map[string]any, 0, len(messages))
	for _, m := range messages {
		encoded = append(encoded, map[string]any{
			"role":    string(m.Role),
			"content": m.Content,
		})
	}

	options := map[string]any{
		"temperature": opts.Float("temperature", openaicompat.DefaultTemperature),
		"num_predict": opts.Int("max_tokens", openaicompat.DefaultMaxTokens),
	}
	if opts.Has("top_p") {
		options["top_p"] = opts.Float("top_p", 1)
	}
	if opts.Has("seed") {
		options["seed"] = opts.Int("seed", 0)
	}
	if stop := opts.StringSlice("stop"); len(stop) > 0 {
		options["stop"] = stop
	}

	return map[string]any{
		"model":    model,
		"messages": encoded,
		"stream":   stream,
		"options":  options,
	}
}

// parseResponse 归一化 Ollama 响应。
// prompt_eval_count/eval_count 缺失时用分词器估算用量。
func (p *Provider) parseResponse(raw map[string]any, model string, messages []llm.Message) (*llm.CompletionResponse, error) {
	message := jsonx.GetMap(raw, "message")
	if message == nil {
		return nil, llm.NewDecodeError(p.Name(), fmt.Errorf("response contained no message"))
	}
	content := jsonx.GetString(message, "content", "")

	var toolCalls []llm.ToolCall
	for _, entry := range jsonx.GetList(message, "tool_calls") {
		m, ok := entry.(map[string]any)
		if !ok {
			continue
		}
		fn := jsonx.GetMap(m, "function")
		toolCalls = append(toolCalls, llm.ToolCall{
			ID:        jsonx.GetString(m, "id", ""),
			Name:      jsonx.GetString(fn, "name", ""),
			Arguments: providers.DecodeArguments(fn["arguments"]),
		})
	}

	usage := llm.NewUsage(
		jsonx.GetInt(raw, "prompt_eval_count", 0),
		jsonx.GetInt(raw, "eval_count", 0),
	)
	if usage.TotalTokens == 0 {
		usage = tokenizer.EstimateUsage(model, messages, content)
	}

	finish := providers.NormalizeFinishReason(jsonx.GetString(raw, "done_reason", ""))
	if len(toolCalls) > 0 {
		finish = llm.FinishToolCalls
	}

	resp := &llm.CompletionResponse{
		Content:      content,
		Model:        jsonx.GetString(raw, "model", model),
		Usage:        usage,
		FinishReason: finish,
		Provider:     p.Name(),
		ToolCalls:    toolCalls,
	}
	p.Collector().ObserveTokens(p.Name(), usage.PromptTokens, usage.CompletionTokens)
	return resp, nil
}

// parseTags 解析 /api/tags 的已安装模型列表。
func parseTags(raw map[string]any) []llm.ModelInfo {
	entries := jsonx.GetList(raw, "models")
	models := make([]llm.ModelInfo, 0, len(entries))
	for _, entry := range entries {
		m, ok := entry.(map[string]any)
		if !ok {
			continue
		}
		name := jsonx.GetString(m, "name", "")
		if name == "" {
			continue
		}
		models = append(models, llm.ModelInfo{
			ID:   name,
			Name: name,
		})
	}
	return models
}

// staticCatalog 是服务端不可达时 GetAvailableModels 的回退列表。
var staticCatalog = []llm.ModelInfo{
	{ID: "llama3.2", Name: "Llama 3.2"},
	{ID: "llama3.1", Name: "Llama 3.1"},
	{ID: "qwen2.5", Name: "Qwen 2.5"},
	{ID: "mistral", Name: "Mistral 7B"},
	{ID: "nomic-embed-text", Name: "Nomic Embed Text"},
}
