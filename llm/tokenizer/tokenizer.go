// Package tokenizer 提供 Token 计数：OpenAI 系模型用 tiktoken 精确计数，
// 其余模型用区分 CJK 的字符估算器。厂商响应缺失 usage 块时
// （本地部署的 Ollama 常见）用于补全用量统计。
package tokenizer

import (
	"fmt"
	"strings"
	"sync"

	"github.com/llmbridge/llmbridge/llm"
)

// Counter 是统一的 Token 计数接口。
type Counter interface {
	// CountTokens 返回给定文本的 token 数。
	CountTokens(text string) (int, error)

	// CountMessages 返回消息列表的总 token 数，
	// 包括每条消息的角色标记与分隔符开销。
	CountMessages(messages []llm.Message) (int, error)

	// Name 返回计数器名称。
	Name() string
}

var (
	countersMu sync.RWMutex
	counters   = make(map[string]Counter)
)

// Register 为模型名注册计数器，覆盖同名注册。
func Register(model string, c Counter) {
	countersMu.Lock()
	defer countersMu.Unlock()
	counters[model] = c
}

// Lookup 返回为模型注册的计数器，支持前缀匹配
// （"gpt-4o" 匹配 "gpt-4o-2024-08-06" 这类带日期后缀的变体）。
func Lookup(model string) (Counter, error) {
	countersMu.RLock()
	defer countersMu.RUnlock()

	if c, ok := counters[model]; ok {
		return c, nil
	}
	for prefix, c := range counters {
		if strings.HasPrefix(model, prefix) {
			return c, nil
		}
	}
	return nil, fmt.Errorf("no token counter registered for model %q", model)
}

// ForModel 返回模型的计数器：已注册的优先，OpenAI 系模型
// 构造 tiktoken 计数器，其余回退到字符估算器。
func ForModel(model string) Counter {
	if c, err := Lookup(model); err == nil {
		return c
	}
	if _, ok := encodingFor(model); ok {
		return NewTiktokenCounter(model)
	}
	return NewEstimator()
}

// EstimateUsage 在厂商未返回用量时估算：prompt 侧按消息列表计数，
// completion 侧按生成文本计数。计数失败时退回估算器再算一次。
func EstimateUsage(model string, messages []llm.Message, completion string) llm.UsageStatistics {
	counter := ForModel(model)

	promptTokens, err := counter.CountMessages(messages)
	if err != nil {
		promptTokens, _ = NewEstimator().CountMessages(messages)
	}
	completionTokens, err := counter.CountTokens(completion)
	if err != nil {
		completionTokens, _ = NewEstimator().CountTokens(completion)
	}
	return llm.NewUsage(promptTokens, completionTokens)
}
