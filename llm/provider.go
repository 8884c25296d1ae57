package llm

import "context"

// Provider 定义统一的 LLM 厂商适配接口。
// 每个厂商一个实现，通过 ProviderRegistry 按标识字符串选取。
// 不支持的操作返回 ErrKindUnsupported 错误（见 SupportsFeature）。
//
// 实例生命周期：构造一次、Configure 一次（或按需重新配置）、
// 跨多次请求复用。Configure 会替换缓存的 HTTP 客户端，
// 不得与同一实例上进行中的请求并发调用（见各实现的说明）。
type Provider interface {
	// Name 返回 Provider 的唯一标识。
	Name() string

	// Configure 从动态选项映射设置 api_key、base_url、default_model、
	// timeout（秒，默认 30）、max_retries（默认 3）等配置。
	// 不校验 API Key 是否存在（推迟到发请求时）。
	// 副作用：立即重建传输客户端，使新的超时生效。
	Configure(opts Options)

	// IsAvailable 报告必需配置是否就绪。
	// 默认要求 API Key 非空；Ollama 只要求 base_url 非空。
	IsAvailable() bool

	// Complete 是单条 user 消息的便捷封装。
	Complete(ctx context.Context, prompt string, opts Options) (*CompletionResponse, error)

	// ChatCompletion 发起同步聊天请求，返回归一化的完整响应。
	ChatCompletion(ctx context.Context, messages []Message, opts Options) (*CompletionResponse, error)

	// ChatCompletionWithTools 携带工具声明发起聊天请求，
	// 模型请求的工具调用体现在响应的 ToolCalls 中。
	ChatCompletionWithTools(ctx context.Context, messages []Message, tools []ToolSchema, opts Options) (*CompletionResponse, error)

	// Embeddings 为输入文本生成嵌入向量，保持输入顺序。
	// 无嵌入模型的厂商（Claude、Groq）返回 ErrKindUnsupported。
	Embeddings(ctx context.Context, input []string, opts Options) (*EmbeddingResponse, error)

	// AnalyzeImage 对图像执行视觉分析。
	AnalyzeImage(ctx context.Context, image ImageInput, prompt string, opts Options) (*VisionResponse, error)

	// StreamChatCompletion 发起流式聊天请求，返回文本增量通道。
	// 流式连接绕过重试循环（部分输出无法安全重试）；
	// 取消方式为 ctx 取消或停止消费，通道在流结束后关闭。
	StreamChatCompletion(ctx context.Context, messages []Message, opts Options) (<-chan StreamChunk, error)

	// GetAvailableModels 返回该厂商的模型目录。
	// 多数厂商返回静态列表；Ollama 发起实时调用，
	// 失败时仅在本方法内回退到静态列表。
	GetAvailableModels(ctx context.Context) ([]ModelInfo, error)

	// TestConnection 探测 Provider 是否可用。
	// 静态目录的厂商不发起网络调用，并在消息中注明；
	// Ollama 必须实际访问服务端并向上传播连接错误。
	TestConnection(ctx context.Context) (*ConnectionTestResult, error)

	// SupportsFeature 报告是否支持给定能力。
	SupportsFeature(capability Capability) bool
}
