package openrouter

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/llmbridge/llmbridge/llm"
)

func TestSelectModel_CostOptimized(t *testing.T) {
	models := []llm.ModelInfo{
		{ID: "vendor/model-a", PromptPrice: 0.002, CompletionPrice: 0.002},
		{ID: "vendor/model-b", PromptPrice: 0.0005, CompletionPrice: 0.0005},
	}
	got := SelectModel(models, StrategyCostOptimized, Requirements{})
	assert.Equal(t, "vendor/model-b", got)
}

func TestSelectModel_CostOptimized_TieFirstWins(t *testing.T) {
	models := []llm.ModelInfo{
		{ID: "vendor/first", PromptPrice: 0.001, CompletionPrice: 0.001},
		{ID: "vendor/second", PromptPrice: 0.001, CompletionPrice: 0.001},
	}
	got := SelectModel(models, StrategyCostOptimized, Requirements{})
	assert.Equal(t, "vendor/first", got, "并列时先遇到的候选胜出")
}

func TestSelectModel_PerformanceKeywordPriority(t *testing.T) {
	models := []llm.ModelInfo{
		{ID: "openai/gpt-4o-mini"},
		{ID: "anthropic/claude-3-5-haiku"},
		{ID: "google/gemini-1.5-flash"},
	}
	// flash 优先级高于 haiku 与 mini，即使排在目录末尾
	got := SelectModel(models, StrategyPerformance, Requirements{})
	assert.Equal(t, "google/gemini-1.5-flash", got)
}

func TestSelectModel_Balanced(t *testing.T) {
	models := []llm.ModelInfo{
		{ID: "google/gemini-1.5-pro"},
		{ID: "anthropic/claude-3-5-sonnet"},
	}
	got := SelectModel(models, StrategyBalanced, Requirements{})
	assert.Equal(t, "anthropic/claude-3-5-sonnet", got, "sonnet 优先级高于 pro")
}

func TestSelectModel_RequirementsFilter(t *testing.T) {
	models := []llm.ModelInfo{
		{ID: "cheap/no-vision", PromptPrice: 0.0001, CompletionPrice: 0.0001},
		{ID: "pricier/with-vision", SupportsVision: true, ContextLength: 128000, PromptPrice: 0.001, CompletionPrice: 0.001},
	}
	got := SelectModel(models, StrategyCostOptimized, Requirements{RequireVision: true})
	assert.Equal(t, "pricier/with-vision", got)

	got = SelectModel(models, StrategyCostOptimized, Requirements{MinContextLength: 200000})
	assert.Equal(t, "", got, "无候选时返回空串，由调用方回退默认模型")
}

func TestSelectModel_NoKeywordMatch(t *testing.T) {
	models := []llm.ModelInfo{{ID: "vendor/plain-model"}}
	assert.Equal(t, "", SelectModel(models, StrategyPerformance, Requirements{}))
}

func TestParseCatalog_StringPricesAndCapabilities(t *testing.T) {
	raw := map[string]any{
		"data": []any{
			map[string]any{
				"id":             "anthropic/claude-3-5-sonnet",
				"name":           "Claude 3.5 Sonnet",
				"context_length": float64(200000),
				"pricing":        map[string]any{"prompt": "0.000003", "completion": "0.000015"},
				"architecture":   map[string]any{"modality": "text+image->text"},
				"supported_parameters": []any{"tools", "temperature"},
			},
			map[string]any{
				"id":      "text/only-model",
				"pricing": map[string]any{"prompt": "0.000001", "completion": "0.000001"},
			},
		},
	}
	models := parseCatalog(raw)
	assert.Len(t, models, 2)

	sonnet := models[0]
	assert.Equal(t, "anthropic/claude-3-5-sonnet", sonnet.ID)
	assert.Equal(t, 200000, sonnet.ContextLength)
	assert.InDelta(t, 0.000003, sonnet.PromptPrice, 1e-12, "字符串编码的价格应被解析")
	assert.True(t, sonnet.SupportsVision)
	assert.True(t, sonnet.SupportsTools)

	assert.False(t, models[1].SupportsVision)
	assert.False(t, models[1].SupportsTools)
}
