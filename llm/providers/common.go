package providers

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/llmbridge/llmbridge/internal/jsonx"
	"github.com/llmbridge/llmbridge/llm"
)

// ExtractErrorMessage 从厂商错误响应体提取人类可读消息。
// 依次尝试：嵌套的 error.message、error 为纯字符串、顶层 message，
// 都取不到时回退到 "Unknown provider error"。
func ExtractErrorMessage(data []byte) string {
	m, err := jsonx.Decode(data)
	if err != nil {
		if s := strings.TrimSpace(string(data)); s != "" {
			return s
		}
		return "Unknown provider error"
	}

	if msg := jsonx.GetNestedString(m, "error.message", ""); msg != "" {
		return msg
	}
	if s, ok := m["error"].(string); ok && s != "" {
		return s
	}
	if msg := jsonx.GetString(m, "message", ""); msg != "" {
		return msg
	}
	return "Unknown provider error"
}

// BearerTokenHeaders 是标准的 Bearer token 认证头构建函数。
func BearerTokenHeaders(req *http.Request, apiKey string) {
	req.Header.Set("Authorization", "Bearer "+apiKey)
	req.Header.Set("Content-Type", "application/json")
}

// NormalizeFinishReason 将 OpenAI 系的 finish_reason 映射到统一词表。
// Claude 与 Gemini 的厂商值各自有独立映射表（见对应适配器）。
func NormalizeFinishReason(vendor string) llm.FinishReason {
	switch vendor {
	case "length", "max_tokens":
		return llm.FinishLength
	case "tool_calls", "function_call":
		return llm.FinishToolCalls
	case "content_filter":
		return llm.FinishContentFilter
	default:
		return llm.FinishStop
	}
}

// DecodeArguments 解码工具调用参数。
// OpenAI 系把参数编码为 JSON 字符串，需要二次解码；
// 已是结构化映射时直接返回。失败时返回空映射而非报错，
// 单个畸形工具调用不应使整个响应失败。
func DecodeArguments(v any) map[string]any {
	switch args := v.(type) {
	case map[string]any:
		return args
	case string:
		var m map[string]any
		if err := json.Unmarshal([]byte(args), &m); err == nil {
			return m
		}
	}
	return map[string]any{}
}

// ChooseModel 按优先级选择模型：调用选项 > 配置的默认模型 > 厂商回退值。
func ChooseModel(opts llm.Options, configModel, fallbackModel string) string {
	if m := opts.String("model", ""); m != "" {
		return m
	}
	if configModel != "" {
		return configModel
	}
	return fallbackModel
}

// ModelIDs 提取模型目录中的 ID 列表，供 TestConnection 汇报。
func ModelIDs(models []llm.ModelInfo) []string {
	ids := make([]string, 0, len(models))
	for _, m := range models {
		ids = append(ids, m.ID)
	}
	return ids
}
