package llm

import "time"

// Role 表示对话消息的角色。
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// FinishReason 是归一化后的生成终止原因。
// 各 Provider 的厂商取值（end_turn、MAX_TOKENS、SAFETY 等）
// 统一映射到这个小词表，调用方无需关心厂商差异。
type FinishReason string

const (
	FinishStop          FinishReason = "stop"
	FinishLength        FinishReason = "length"
	FinishToolCalls     FinishReason = "tool_calls"
	FinishContentFilter FinishReason = "content_filter"
)

// Message 表示对话中的一条消息，顺序即会话顺序。
// system 消息由需要独立 system 字段的 Provider（Claude、Gemini）
// 在构建厂商请求时提取，不会出现在其 messages 列表中。
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// SystemMessage/UserMessage/AssistantMessage 是构造消息的便捷函数。
func SystemMessage(content string) Message { return Message{Role: RoleSystem, Content: content} }
func UserMessage(content string) Message   { return Message{Role: RoleUser, Content: content} }
func AssistantMessage(content string) Message {
	return Message{Role: RoleAssistant, Content: content}
}

// ToolSchema 是厂商无关的工具（函数）声明。
// Parameters 为 JSON Schema 的结构化表示，各 Provider 负责
// 转换为自己的工具声明格式（OpenAI tools、Claude tools、
// Gemini functionDeclarations）。
type ToolSchema struct {
	Name        string         `json:"name"`
	Description string         `json:"description,omitempty"`
	Parameters  map[string]any `json:"parameters"`
}

// ToolCall 表示模型请求调用某个工具。
// Arguments 始终是结构化映射：OpenAI 系返回的 JSON 字符串参数
// 在归一化时已被解码，Gemini 的结构化 args 直接透传。
type ToolCall struct {
	ID        string         `json:"id"`
	Name      string         `json:"name"`
	Arguments map[string]any `json:"arguments"`
}

// UsageStatistics 表示一次调用的 Token 用量。
// 不变量：TotalTokens == PromptTokens + CompletionTokens，
// 由 NewUsage 在构造时计算，调用方不应单独修改 TotalTokens。
type UsageStatistics struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// NewUsage 构造用量统计，TotalTokens 恒为两者之和。
func NewUsage(promptTokens, completionTokens int) UsageStatistics {
	return UsageStatistics{
		PromptTokens:     promptTokens,
		CompletionTokens: completionTokens,
		TotalTokens:      promptTokens + completionTokens,
	}
}

// CompletionResponse 是聊天/补全调用的厂商无关结果。
// 构造后不再修改；本层不做任何持久化。
type CompletionResponse struct {
	Content      string          `json:"content"`
	Model        string          `json:"model"`
	Usage        UsageStatistics `json:"usage"`
	FinishReason FinishReason    `json:"finish_reason"`
	Provider     string          `json:"provider"`
	ToolCalls    []ToolCall      `json:"tool_calls,omitempty"`
}

// EmbeddingResponse 是嵌入调用的结果。
// 不变量：len(Embeddings) == len(inputs)，且顺序与输入一致；
// 嵌入调用的 CompletionTokens 恒为 0。
type EmbeddingResponse struct {
	Embeddings [][]float64     `json:"embeddings"`
	Model      string          `json:"model"`
	Usage      UsageStatistics `json:"usage"`
}

// VisionResponse 是图像分析调用的结果。
type VisionResponse struct {
	Description string          `json:"description"`
	Model       string          `json:"model"`
	Usage       UsageStatistics `json:"usage"`
	Provider    string          `json:"provider"`
}

// ImageInput 表示图像分析的输入。
// URL 与 Data 二选一：Data 非空时按 base64 内联发送（需 MimeType），
// 否则按 URL 引用发送。
type ImageInput struct {
	URL      string `json:"url,omitempty"`
	Data     []byte `json:"data,omitempty"`
	MimeType string `json:"mime_type,omitempty"`
}

// ModelInfo 描述 Provider 目录中的一个模型。
// 价格为每 token 的美元单价，路由策略用其计算平均成本。
type ModelInfo struct {
	ID              string  `json:"id"`
	Name            string  `json:"name,omitempty"`
	ContextLength   int     `json:"context_length,omitempty"`
	SupportsVision  bool    `json:"supports_vision,omitempty"`
	SupportsTools   bool    `json:"supports_tools,omitempty"`
	PromptPrice     float64 `json:"prompt_price,omitempty"`
	CompletionPrice float64 `json:"completion_price,omitempty"`
}

// ConnectionTestResult 是 TestConnection 的结果。
type ConnectionTestResult struct {
	Success bool     `json:"success"`
	Message string   `json:"message"`
	Models  []string `json:"models,omitempty"`
}

// StreamChunk 是流式响应中的一个文本增量。
// 空增量不会被发送；Err 非 nil 表示流因传输错误中断，
// 该 chunk 之后通道立即关闭。
type StreamChunk struct {
	Text string `json:"text,omitempty"`
	Err  *Error `json:"error,omitempty"`
}

// Capability 标识 Provider 支持的能力，供 SupportsFeature 查询。
type Capability string

const (
	CapabilityChat       Capability = "chat"
	CapabilityEmbeddings Capability = "embeddings"
	CapabilityVision     Capability = "vision"
	CapabilityStreaming  Capability = "streaming"
	CapabilityTools      Capability = "tools"
)

// HealthStatus 表示一次连通性探测的结果，供注册中心探活使用。
type HealthStatus struct {
	Healthy bool          `json:"healthy"`
	Latency time.Duration `json:"latency"`
}
