package openrouter

import (
	"context"
	"net/http"
	"strings"
	"sync"

	"golang.org/x/sync/singleflight"

	"github.com/llmbridge/llmbridge/internal/jsonx"
	"github.com/llmbridge/llmbridge/llm"
	"github.com/llmbridge/llmbridge/llm/providers/openaicompat"
)

// Strategy 是模型路由策略。
type Strategy string

const (
	// StrategyExplicit 关闭路由，模型完全由调用方指定。
	StrategyExplicit Strategy = "explicit"
	// StrategyCostOptimized 选择平均单价最低的候选。
	StrategyCostOptimized Strategy = "cost_optimized"
	// StrategyPerformance 按速度系模型关键词的优先级选择。
	StrategyPerformance Strategy = "performance"
	// StrategyBalanced 按均衡系模型关键词的优先级选择。
	StrategyBalanced Strategy = "balanced"
)

// 关键词优先级表。性能策略偏好轻快模型，均衡策略偏好中档模型。
var (
	performanceKeywords = []string{"flash", "haiku", "turbo", "instant", "mini"}
	balancedKeywords    = []string{"sonnet", "medium", "3.5", "pro"}
)

// Requirements 是路由的候选过滤条件。
type Requirements struct {
	MinContextLength int
	RequireVision    bool
	RequireTools     bool
}

// RequirementsFromOptions 从调用选项提取过滤条件。
func RequirementsFromOptions(opts llm.Options) Requirements {
	return Requirements{
		MinContextLength: opts.Int("min_context_length", 0),
		RequireVision:    opts.Bool("require_vision", false),
		RequireTools:     opts.Bool("require_tools", false),
	}
}

func (r Requirements) matches(m llm.ModelInfo) bool {
	if r.MinContextLength > 0 && m.ContextLength < r.MinContextLength {
		return false
	}
	if r.RequireVision && !m.SupportsVision {
		return false
	}
	if r.RequireTools && !m.SupportsTools {
		return false
	}
	return true
}

// SelectModel 按策略从目录中选择模型，无候选或策略未知时返回空串
// （调用方回退到默认模型）。
func SelectModel(models []llm.ModelInfo, strategy Strategy, reqs Requirements) string {
	candidates := make([]llm.ModelInfo, 0, len(models))
	for _, m := range models {
		if reqs.matches(m) {
			candidates = append(candidates, m)
		}
	}
	if len(candidates) == 0 {
		return ""
	}

	switch strategy {
	case StrategyCostOptimized:
		return cheapest(candidates)
	case StrategyPerformance:
		return firstByKeyword(candidates, performanceKeywords)
	case StrategyBalanced:
		return firstByKeyword(candidates, balancedKeywords)
	}
	return ""
}

// cheapest 返回平均单价最低的候选，并列时先遇到的胜出。
func cheapest(candidates []llm.ModelInfo) string {
	best := candidates[0]
	bestCost := avgCost(best)
	for _, m := range candidates[1:] {
		if cost := avgCost(m); cost < bestCost {
			best, bestCost = m, cost
		}
	}
	return best.ID
}

func avgCost(m llm.ModelInfo) float64 {
	return (m.PromptPrice + m.CompletionPrice) / 2
}

// firstByKeyword 按关键词优先级匹配：先为最高优先级的关键词
// 扫完全部候选，再降级到下一个关键词。
func firstByKeyword(candidates []llm.ModelInfo, keywords []string) string {
	for _, kw := range keywords {
		for _, m := range candidates {
			if strings.Contains(strings.ToLower(m.ID), kw) {
				return m.ID
			}
		}
	}
	return ""
}

// catalogCache 缓存实时模型目录，强制刷新前一直有效。
// 并发的首次获取通过 singleflight 合并为一次网络调用。
type catalogCache struct {
	provider *openaicompat.Provider

	mu     sync.Mutex
	models []llm.ModelInfo
	loaded bool

	group singleflight.Group
}

func newCatalogCache(provider *openaicompat.Provider) *catalogCache {
	return &catalogCache{provider: provider}
}

// Models 返回目录。获取失败时返回空列表，错误被吞掉：
// 路由只会降级为默认模型，调用方看不到网络错误。
func (c *catalogCache) Models(ctx context.Context, force bool) []llm.ModelInfo {
	if force {
		c.Invalidate()
	}
	models, err := c.Fetch(ctx)
	if err != nil {
		return nil
	}
	return models
}

// Fetch 返回缓存的目录，未加载时发起实时调用并缓存结果。
func (c *catalogCache) Fetch(ctx context.Context) ([]llm.ModelInfo, error) {
	c.mu.Lock()
	if c.loaded {
		models := c.models
		c.mu.Unlock()
		return models, nil
	}
	c.mu.Unlock()

	v, err, _ := c.group.Do("catalog", func() (any, error) {
		raw, err := c.provider.SendRequest(ctx, "models", nil, http.MethodGet)
		if err != nil {
			return nil, err
		}
		models := parseCatalog(raw)
		c.mu.Lock()
		c.models = models
		c.loaded = true
		c.mu.Unlock()
		return models, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]llm.ModelInfo), nil
}

// Invalidate 丢弃缓存，下次 Fetch 重新拉取。
func (c *catalogCache) Invalidate() {
	c.mu.Lock()
	c.loaded = false
	c.models = nil
	c.mu.Unlock()
}

// parseCatalog 解析 OpenRouter 目录响应。
// 价格字段是字符串编码的数字；视觉能力从 architecture.modality
// 推断，工具能力从 supported_parameters 推断。
func parseCatalog(raw map[string]any) []llm.ModelInfo {
	entries := jsonx.GetList(raw, "data")
	models := make([]llm.ModelInfo, 0, len(entries))
	for _, entry := range entries {
		m, ok := entry.(map[string]any)
		if !ok {
			continue
		}
		pricing := jsonx.GetMap(m, "pricing")
		modality := jsonx.GetNestedString(m, "architecture.modality", "")
		models = append(models, llm.ModelInfo{
			ID:              jsonx.GetString(m, "id", ""),
			Name:            jsonx.GetString(m, "name", ""),
			ContextLength:   jsonx.GetInt(m, "context_length", 0),
			SupportsVision:  strings.Contains(modality, "image"),
			SupportsTools:   containsString(jsonx.GetStringSlice(m, "supported_parameters"), "tools"),
			PromptPrice:     jsonx.GetFloat(pricing, "prompt", 0),
			CompletionPrice: jsonx.GetFloat(pricing, "completion", 0),
		})
	}
	return models
}

func containsString(list []string, want string) bool {
	for _, s := range list {
		if s == want {
			return true
		}
	}
	return false
}
