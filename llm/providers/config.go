package providers

import (
	"net/http"
	"time"
)

// 配置默认值。timeout 与 max_retries 未显式配置时采用这些值。
const (
	DefaultTimeout    = 30 * time.Second
	DefaultMaxRetries = 3
)

// Config 是所有 Provider 共享的基础配置。
// 归单个 Provider 实例独占，只通过 Configure 修改；
// 不得与同一实例上进行中的请求并发调用 Configure（无内部同步以外的保证）。
type Config struct {
	// Name 是 Provider 的唯一标识（"openai"、"claude" 等）。
	Name string `json:"name" yaml:"name"`

	APIKey       string        `json:"api_key" yaml:"api_key"`
	BaseURL      string        `json:"base_url" yaml:"base_url"`
	DefaultModel string        `json:"default_model,omitempty" yaml:"default_model,omitempty"`
	Timeout      time.Duration `json:"timeout,omitempty" yaml:"timeout,omitempty"`
	MaxRetries   int           `json:"max_retries,omitempty" yaml:"max_retries,omitempty"`

	// RequestsPerSecond 为可选的客户端限速，0 表示不限速。
	RequestsPerSecond float64 `json:"requests_per_second,omitempty" yaml:"requests_per_second,omitempty"`

	// RequiresAPIKey 为 false 时（Ollama）跳过 API Key 校验，
	// IsAvailable 改为只要求 BaseURL 非空。
	RequiresAPIKey bool `json:"-" yaml:"-"`

	// BuildHeaders 注入厂商认证头。nil 时使用默认的
	// Authorization: Bearer <key>；Claude 覆盖为 x-api-key，
	// Gemini 覆盖为空实现并在调用点把 key 嵌入 URL 查询参数。
	BuildHeaders func(req *http.Request, apiKey string) `json:"-" yaml:"-"`
}

func (c *Config) applyDefaults() {
	if c.Timeout <= 0 {
		c.Timeout = DefaultTimeout
	}
	if c.MaxRetries <= 0 {
		c.MaxRetries = DefaultMaxRetries
	}
}
