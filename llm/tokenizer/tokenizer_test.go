package tokenizer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/llmbridge/llmbridge/llm"
)

func TestEstimator_ASCIIText(t *testing.T) {
	e := NewEstimator()
	count, err := e.CountTokens("hello world, this is a test")
	require.NoError(t, err)
	// 27 个 ASCII 字符，约 4 字符/token，向下取整
	assert.Equal(t, 6, count)

	count, err = e.CountTokens("hello world, this is a test!")
	require.NoError(t, err)
	// 28 个字符刚好 7 token
	assert.Equal(t, 7, count)
}

func TestEstimator_CJKText(t *testing.T) {
	e := NewEstimator()
	count, err := e.CountTokens("你好世界")
	require.NoError(t, err)
	// 4 个 CJK 字符，约 1.5 字符/token
	assert.Equal(t, 2, count)
}

func TestEstimator_EmptyAndTiny(t *testing.T) {
	e := NewEstimator()
	count, err := e.CountTokens("")
	require.NoError(t, err)
	assert.Equal(t, 0, count)

	count, err = e.CountTokens("a")
	require.NoError(t, err)
	assert.Equal(t, 1, count, "非空文本至少 1 token")
}

func TestEstimator_CountMessages(t *testing.T) {
	e := NewEstimator()
	messages := []llm.Message{
		llm.SystemMessage("be brief"),
		llm.UserMessage("hello"),
	}
	count, err := e.CountMessages(messages)
	require.NoError(t, err)

	sys, _ := e.CountTokens("be brief")
	user, _ := e.CountTokens("hello")
	assert.Equal(t, sys+user+4*2+3, count)
}

func TestLookup_PrefixMatch(t *testing.T) {
	Register("test-model", NewEstimator())

	c, err := Lookup("test-model-2024-08-06")
	require.NoError(t, err)
	assert.Equal(t, "estimator", c.Name())

	_, err = Lookup("unknown-model-family")
	assert.Error(t, err)
}

func TestForModel_FallsBackToEstimator(t *testing.T) {
	c := ForModel("llama3.2")
	assert.Equal(t, "estimator", c.Name())
}

func TestForModel_OpenAIFamilyUsesTiktoken(t *testing.T) {
	c := ForModel("gpt-4o-mini")
	assert.Contains(t, c.Name(), "tiktoken")
}

func TestEstimateUsage_TotalInvariant(t *testing.T) {
	messages := []llm.Message{llm.UserMessage("计算这个对话的用量")}
	usage := EstimateUsage("llama3.2", messages, "好的，没问题")

	assert.Greater(t, usage.PromptTokens, 0)
	assert.Greater(t, usage.CompletionTokens, 0)
	assert.Equal(t, usage.PromptTokens+usage.CompletionTokens, usage.TotalTokens)
}
