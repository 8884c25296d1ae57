package llm

import (
	"errors"
	"fmt"
)

// ErrorKind 对调用方可见的错误分类。
// 四类语义互斥：配置错误与不支持的能力在任何网络调用前抛出；
// 响应错误（4xx）一次尝试后立即抛出；连接错误在重试耗尽后抛出。
type ErrorKind string

const (
	// ErrKindConfiguration 缺少 API Key 等必需配置，不重试。
	ErrKindConfiguration ErrorKind = "configuration"
	// ErrKindResponse 厂商返回 4xx，客户端错误不可能通过重试成功。
	ErrKindResponse ErrorKind = "response"
	// ErrKindConnection 网络故障或厂商 5xx，重试耗尽后抛出。
	ErrKindConnection ErrorKind = "connection"
	// ErrKindUnsupported 厂商没有该能力（如 Claude/Groq 无嵌入模型）。
	ErrKindUnsupported ErrorKind = "unsupported_feature"
	// ErrKindDecode 响应体不是合法 JSON，在重试循环内按可重试失败处理。
	ErrKindDecode ErrorKind = "decode"
)

// Error 是本层对外的统一错误类型。
type Error struct {
	Kind       ErrorKind `json:"kind"`
	Provider   string    `json:"provider,omitempty"`
	Message    string    `json:"message"`
	StatusCode int       `json:"status_code,omitempty"`
	Attempts   int       `json:"attempts,omitempty"`
	cause      error
}

func (e *Error) Error() string {
	if e.Provider != "" {
		return fmt.Sprintf("%s: %s", e.Provider, e.Message)
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.cause }

// Retryable 报告该错误是否属于可重试类别。
// 4xx、配置错误、不支持能力均不可重试。
func (e *Error) Retryable() bool {
	return e.Kind == ErrKindConnection || e.Kind == ErrKindDecode
}

// NewConfigurationError 构造配置错误。
func NewConfigurationError(provider, message string) *Error {
	return &Error{Kind: ErrKindConfiguration, Provider: provider, Message: message}
}

// NewResponseError 构造厂商 4xx 错误，携带状态码与提取出的厂商消息。
func NewResponseError(provider string, statusCode int, message string) *Error {
	return &Error{
		Kind:       ErrKindResponse,
		Provider:   provider,
		Message:    fmt.Sprintf("provider returned status %d: %s", statusCode, message),
		StatusCode: statusCode,
	}
}

// NewConnectionError 构造重试耗尽后的连接错误，消息中注明尝试次数。
func NewConnectionError(provider string, attempts int, cause error) *Error {
	return &Error{
		Kind:     ErrKindConnection,
		Provider: provider,
		Message:  fmt.Sprintf("request failed after %d attempts: %v", attempts, cause),
		Attempts: attempts,
		cause:    cause,
	}
}

// NewUnsupportedFeatureError 构造能力不支持错误，
// 与连接错误区分开，调用方据此判断"选错厂商"还是"厂商不可用"。
func NewUnsupportedFeatureError(provider string, feature Capability) *Error {
	return &Error{
		Kind:     ErrKindUnsupported,
		Provider: provider,
		Message:  fmt.Sprintf("feature %q is not supported by this provider", feature),
	}
}

// NewDecodeError 构造响应体解码错误。
func NewDecodeError(provider string, cause error) *Error {
	return &Error{
		Kind:     ErrKindDecode,
		Provider: provider,
		Message:  fmt.Sprintf("failed to decode provider response: %v", cause),
		cause:    cause,
	}
}

// kindOf 提取错误的分类，非 *Error 返回空串。
func kindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// IsConfigurationError 报告 err 是否为配置错误。
func IsConfigurationError(err error) bool { return kindOf(err) == ErrKindConfiguration }

// IsResponseError 报告 err 是否为厂商 4xx 错误。
func IsResponseError(err error) bool { return kindOf(err) == ErrKindResponse }

// IsConnectionError 报告 err 是否为连接错误。
func IsConnectionError(err error) bool { return kindOf(err) == ErrKindConnection }

// IsUnsupportedFeature 报告 err 是否为能力不支持错误。
func IsUnsupportedFeature(err error) bool { return kindOf(err) == ErrKindUnsupported }
