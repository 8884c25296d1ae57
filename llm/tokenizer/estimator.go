package tokenizer

import (
	"unicode/utf8"

	"github.com/llmbridge/llmbridge/llm"
)

// Estimator 是基于字符数的 Token 估算器。
// 区分 CJK 与 ASCII 字符：CJK 约 1.5 字符/token，ASCII 约 4 字符/token，
// 比朴素的 len/4 在中英混排文本上准确得多。
type Estimator struct{}

// NewEstimator 创建通用估算器。
func NewEstimator() *Estimator { return &Estimator{} }

func (e *Estimator) CountTokens(text string) (int, error) {
	if text == "" {
		return 0, nil
	}

	totalChars := utf8.RuneCountInString(text)
	cjkCount := 0
	for _, r := range text {
		if isCJK(r) {
			cjkCount++
		}
	}

	cjkTokens := float64(cjkCount) / 1.5
	asciiTokens := float64(totalChars-cjkCount) / 4.0
	estimated := int(cjkTokens + asciiTokens)
	if estimated == 0 {
		estimated = 1
	}
	return estimated, nil
}

func (e *Estimator) CountMessages(messages []llm.Message) (int, error) {
	total := 0
	for _, msg := range messages {
		tokens, err := e.CountTokens(msg.Content)
		if err != nil {
			return 0, err
		}
		// 每条消息约 4 token 的角色标记与分隔符开销
		total += tokens + 4
	}
	total += 3
	return total, nil
}

func (e *Estimator) Name() string { return "estimator" }

// isCJK 判断是否为 CJK 字符。
func isCJK(r rune) bool {
	return (r >= 0x4E00 && r <= 0x9FFF) || // CJK Unified Ideographs
		(r >= 0x3400 && r <= 0x4DBF) || // CJK Extension A
		(r >= 0x20000 && r <= 0x2A6DF) || // CJK Extension B
		(r >= 0xF900 && r <= 0xFAFF) || // CJK Compatibility Ideographs
		(r >= 0x3000 && r <= 0x303F) || // CJK Symbols and Punctuation
		(r >= 0xFF00 && r <= 0xFFEF) // Halfwidth and Fullwidth Forms
}
