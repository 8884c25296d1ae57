// Package factory 按名称集中创建 Provider 实例。
// 它导入全部厂商子包并把标识字符串映射到构造函数，
// 避免这部分逻辑放进 llm 包造成的循环导入。
package factory

import (
	"fmt"
	"sort"

	"go.uber.org/zap"

	"github.com/llmbridge/llmbridge/llm"
	claude "github.com/llmbridge/llmbridge/llm/providers/anthropic"
	"github.com/llmbridge/llmbridge/llm/providers/gemini"
	"github.com/llmbridge/llmbridge/llm/providers/groq"
	"github.com/llmbridge/llmbridge/llm/providers/mistral"
	"github.com/llmbridge/llmbridge/llm/providers/ollama"
	"github.com/llmbridge/llmbridge/llm/providers/openai"
	"github.com/llmbridge/llmbridge/llm/providers/openrouter"
)

// constructors 是标识字符串到构造函数的映射。
var constructors = map[string]func(*zap.Logger) llm.Provider{
	"openai":     func(l *zap.Logger) llm.Provider { return openai.New(l) },
	"claude":     func(l *zap.Logger) llm.Provider { return claude.New(l) },
	"anthropic":  func(l *zap.Logger) llm.Provider { return claude.New(l) },
	"gemini":     func(l *zap.Logger) llm.Provider { return gemini.New(l) },
	"mistral":    func(l *zap.Logger) llm.Provider { return mistral.New(l) },
	"groq":       func(l *zap.Logger) llm.Provider { return groq.New(l) },
	"openrouter": func(l *zap.Logger) llm.Provider { return openrouter.New(l) },
	"ollama":     func(l *zap.Logger) llm.Provider { return ollama.New(l) },
}

// New 按名称创建并配置一个 Provider。
// opts 为 nil 时只创建不配置（使用厂商默认值）。
func New(name string, opts llm.Options, logger *zap.Logger) (llm.Provider, error) {
	ctor, ok := constructors[name]
	if !ok {
		return nil, fmt.Errorf("unknown provider %q, supported: %v", name, Supported())
	}
	p := ctor(logger)
	if opts != nil {
		p.Configure(opts)
	}
	return p, nil
}

// Supported 返回工厂认识的全部标识，按字典序。
func Supported() []string {
	names := make([]string, 0, len(constructors))
	for name := range constructors {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// NewRegistry 根据每个厂商的配置批量创建 Provider 并注册。
// defaultName 非空时设为默认 Provider。
func NewRegistry(configs map[string]llm.Options, defaultName string, logger *zap.Logger) (*llm.ProviderRegistry, error) {
	registry := llm.NewProviderRegistry()
	for name, opts := range configs {
		p, err := New(name, opts, logger)
		if err != nil {
			return nil, fmt.Errorf("create provider %q: %w", name, err)
		}
		registry.Register(p.Name(), p)
	}
	if defaultName != "" {
		if err := registry.SetDefault(defaultName); err != nil {
			return nil, err
		}
	}
	return registry, nil
}
