package providers

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/llmbridge/llmbridge/llm"
)

func TestExtractErrorMessage(t *testing.T) {
	cases := []struct {
		name string
		body string
		want string
	}{
		{"nested error.message", `{"error":{"message":"quota exceeded"}}`, "quota exceeded"},
		{"error as plain string", `{"error":"model not found"}`, "model not found"},
		{"top-level message", `{"message":"invalid request"}`, "invalid request"},
		{"not json", `upstream timeout`, "upstream timeout"},
		{"empty body", ``, "Unknown provider error"},
		{"json without message", `{"code":500}`, "Unknown provider error"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, ExtractErrorMessage([]byte(tc.body)))
		})
	}
}

func TestNormalizeFinishReason(t *testing.T) {
	assert.Equal(t, llm.FinishStop, NormalizeFinishReason("stop"))
	assert.Equal(t, llm.FinishStop, NormalizeFinishReason(""))
	assert.Equal(t, llm.FinishLength, NormalizeFinishReason("length"))
	assert.Equal(t, llm.FinishLength, NormalizeFinishReason("max_tokens"))
	assert.Equal(t, llm.FinishToolCalls, NormalizeFinishReason("tool_calls"))
	assert.Equal(t, llm.FinishToolCalls, NormalizeFinishReason("function_call"))
	assert.Equal(t, llm.FinishContentFilter, NormalizeFinishReason("content_filter"))
}

func TestDecodeArguments(t *testing.T) {
	structured := map[string]any{"a": float64(1)}
	assert.Equal(t, structured, DecodeArguments(structured), "结构化参数直接透传")

	decoded := DecodeArguments(`{"city":"Tokyo"}`)
	assert.Equal(t, map[string]any{"city": "Tokyo"}, decoded, "JSON 字符串参数二次解码")

	assert.Empty(t, DecodeArguments(`{broken`), "畸形参数返回空映射而非报错")
	assert.Empty(t, DecodeArguments(nil))
	assert.Empty(t, DecodeArguments(42))
}

func TestChooseModel(t *testing.T) {
	assert.Equal(t, "from-opts", ChooseModel(llm.Options{"model": "from-opts"}, "from-config", "fallback"))
	assert.Equal(t, "from-config", ChooseModel(nil, "from-config", "fallback"))
	assert.Equal(t, "fallback", ChooseModel(nil, "", "fallback"))
}

func TestConfigApplyDefaults(t *testing.T) {
	cfg := Config{Name: "x"}
	cfg.applyDefaults()
	assert.Equal(t, DefaultTimeout, cfg.Timeout)
	assert.Equal(t, DefaultMaxRetries, cfg.MaxRetries)
}
