// Package mocks 提供 llm.Provider 的测试模拟实现。
//
// 支持固定响应、流式输出与错误注入场景。
package mocks

import (
	"context"
	"sync"
	"time"

	"github.com/llmbridge/llmbridge/llm"
)

// Provider 是 llm.Provider 的模拟实现。
// 零值即可用：Name 为 "mock"，所有聊天调用返回固定文本。
type Provider struct {
	mu sync.RWMutex

	name      string
	available bool

	// 响应配置
	response     string
	model        string
	streamChunks []string
	toolCalls    []llm.ToolCall
	embeddings   [][]float64
	models       []llm.ModelInfo
	err          error

	// Token 使用统计
	promptTokens     int
	completionTokens int

	// 调用记录
	calls []Call

	// 行为控制
	delay     time.Duration
	failAfter int
	callCount int
}

// Call 记录单次聊天调用。
type Call struct {
	Messages []llm.Message
	Tools    []llm.ToolSchema
	Options  llm.Options
}

// NewProvider 创建新的模拟 Provider。
func NewProvider() *Provider {
	return &Provider{
		name:             "mock",
		available:        true,
		response:         "mock response",
		model:            "mock-model",
		promptTokens:     10,
		completionTokens: 20,
	}
}

// WithName 设置 Provider 标识。
func (m *Provider) WithName(name string) *Provider {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.name = name
	return m
}

// WithResponse 设置固定响应内容。
func (m *Provider) WithResponse(response string) *Provider {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.response = response
	return m
}

// WithError 设置所有调用返回的错误。
func (m *Provider) WithError(err error) *Provider {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
	return m
}

// WithStreamChunks 设置流式响应块。
func (m *Provider) WithStreamChunks(chunks ...string) *Provider {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.streamChunks = chunks
	return m
}

// WithToolCalls 设置响应携带的工具调用。
func (m *Provider) WithToolCalls(calls ...llm.ToolCall) *Provider {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.toolCalls = calls
	return m
}

// WithEmbeddings 设置 Embeddings 返回的向量。
func (m *Provider) WithEmbeddings(vectors ...[]float64) *Provider {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.embeddings = vectors
	return m
}

// WithModels 设置模型目录。
func (m *Provider) WithModels(models ...llm.ModelInfo) *Provider {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.models = models
	return m
}

// WithUsage 设置返回的 token 统计。
func (m *Provider) WithUsage(prompt, completion int) *Provider {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.promptTokens = prompt
	m.completionTokens = completion
	return m
}

// WithDelay 设置每次调用前的模拟延迟。
func (m *Provider) WithDelay(d time.Duration) *Provider {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.delay = d
	return m
}

// WithFailAfter 设置第 n 次之后的调用全部失败。
func (m *Provider) WithFailAfter(n int, err error) *Provider {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failAfter = n
	m.err = err
	return m
}

// Unavailable 使 IsAvailable 返回 false。
func (m *Provider) Unavailable() *Provider {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.available = false
	return m
}

// Calls 返回记录的聊天调用。
func (m *Provider) Calls() []Call {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Call, len(m.calls))
	copy(out, m.calls)
	return out
}

// CallCount 返回累计调用次数。
func (m *Provider) CallCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.callCount
}

func (m *Provider) record(messages []llm.Message, tools []llm.ToolSchema, opts llm.Options) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.callCount++
	m.calls = append(m.calls, Call{Messages: messages, Tools: tools, Options: opts})
	if m.err != nil && (m.failAfter == 0 || m.callCount > m.failAfter) {
		return m.err
	}
	return nil
}

func (m *Provider) wait(ctx context.Context) error {
	m.mu.RLock()
	d := m.delay
	m.mu.RUnlock()
	if d == 0 {
		return nil
	}
	select {
	case <-time.After(d):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (m *Provider) completion() *llm.CompletionResponse {
	m.mu.RLock()
	defer m.mu.RUnlock()
	resp := &llm.CompletionResponse{
		Content:      m.response,
		Model:        m.model,
		Usage:        llm.NewUsage(m.promptTokens, m.completionTokens),
		FinishReason: llm.FinishStop,
		Provider:     m.name,
	}
	if len(m.toolCalls) > 0 {
		resp.ToolCalls = append([]llm.ToolCall(nil), m.toolCalls...)
		resp.FinishReason = llm.FinishToolCalls
	}
	return resp
}

// --- llm.Provider 实现 ---

func (m *Provider) Name() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.name
}

func (m *Provider) Configure(opts llm.Options) {}

func (m *Provider) IsAvailable() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.available
}

func (m *Provider) Complete(ctx context.Context, prompt string, opts llm.Options) (*llm.CompletionResponse, error) {
	return m.ChatCompletion(ctx, []llm.Message{llm.UserMessage(prompt)}, opts)
}

func (m *Provider) ChatCompletion(ctx context.Context, messages []llm.Message, opts llm.Options) (*llm.CompletionResponse, error) {
	if err := m.wait(ctx); err != nil {
		return nil, err
	}
	if err := m.record(messages, nil, opts); err != nil {
		return nil, err
	}
	return m.completion(), nil
}

func (m *Provider) ChatCompletionWithTools(ctx context.Context, messages []llm.Message, tools []llm.ToolSchema, opts llm.Options) (*llm.CompletionResponse, error) {
	if err := m.wait(ctx); err != nil {
		return nil, err
	}
	if err := m.record(messages, tools, opts); err != nil {
		return nil, err
	}
	return m.completion(), nil
}

func (m *Provider) Embeddings(ctx context.Context, input []string, opts llm.Options) (*llm.EmbeddingResponse, error) {
	if err := m.wait(ctx); err != nil {
		return nil, err
	}
	if err := m.record(nil, nil, opts); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	vectors := m.embeddings
	if vectors == nil {
		vectors = make([][]float64, len(input))
		for i := range vectors {
			vectors[i] = []float64{0.1, 0.2, 0.3}
		}
	}
	return &llm.EmbeddingResponse{
		Embeddings: vectors,
		Model:      m.model,
		Usage:      llm.NewUsage(m.promptTokens, 0),
	}, nil
}

func (m *Provider) AnalyzeImage(ctx context.Context, image llm.ImageInput, prompt string, opts llm.Options) (*llm.VisionResponse, error) {
	if err := m.wait(ctx); err != nil {
		return nil, err
	}
	if err := m.record(nil, nil, opts); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	return &llm.VisionResponse{
		Description: m.response,
		Model:       m.model,
		Usage:       llm.NewUsage(m.promptTokens, m.completionTokens),
		Provider:    m.name,
	}, nil
}

func (m *Provider) StreamChatCompletion(ctx context.Context, messages []llm.Message, opts llm.Options) (<-chan llm.StreamChunk, error) {
	if err := m.wait(ctx); err != nil {
		return nil, err
	}
	if err := m.record(messages, nil, opts); err != nil {
		return nil, err
	}
	m.mu.RLock()
	chunks := append([]string(nil), m.streamChunks...)
	response := m.response
	m.mu.RUnlock()
	if len(chunks) == 0 {
		chunks = []string{response}
	}

	ch := make(chan llm.StreamChunk)
	go func() {
		defer close(ch)
		for _, text := range chunks {
			select {
			case ch <- llm.StreamChunk{Text: text}:
			case <-ctx.Done():
				return
			}
		}
	}()
	return ch, nil
}

func (m *Provider) GetAvailableModels(ctx context.Context) ([]llm.ModelInfo, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.err != nil {
		return nil, m.err
	}
	if m.models != nil {
		return append([]llm.ModelInfo(nil), m.models...), nil
	}
	return []llm.ModelInfo{{ID: m.model, Name: m.model, ContextLength: 8192}}, nil
}

func (m *Provider) TestConnection(ctx context.Context) (*llm.ConnectionTestResult, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.err != nil {
		return nil, m.err
	}
	return &llm.ConnectionTestResult{
		Success: true,
		Message: "mock provider always reachable",
		Models:  []string{m.model},
	}, nil
}

func (m *Provider) SupportsFeature(capability llm.Capability) bool {
	switch capability {
	case llm.CapabilityChat, llm.CapabilityStreaming, llm.CapabilityTools,
		llm.CapabilityEmbeddings, llm.CapabilityVision:
		return true
	}
	return false
}
