// =============================================================================
// Package llmbridge — One-Line Provider Construction
// =============================================================================
// Provides a convenience entry point for creating configured LLM providers
// with minimal boilerplate. Delegates to llm/factory internally.
//
// Usage:
//
//	import "github.com/llmbridge/llmbridge"
//
//	p, err := llmbridge.New(llmbridge.WithOpenAI("gpt-4o-mini"))
//	p, err := llmbridge.New(llmbridge.WithClaude("claude-3-5-sonnet-20241022"))
//	p, err := llmbridge.New(llmbridge.WithOllama("llama3.2"))
//
// =============================================================================
package llmbridge

import (
	"fmt"
	"os"

	"go.uber.org/zap"

	"github.com/llmbridge/llmbridge/llm"
	"github.com/llmbridge/llmbridge/llm/factory"
)

// Option configures the provider created by New.
type Option func(*options)

type options struct {
	providerName string
	model        string
	apiKey       string
	baseURL      string
	logger       *zap.Logger
	extra        llm.Options
}

// WithOpenAI selects the OpenAI provider with the given model.
// API key is read from OPENAI_API_KEY unless set via WithAPIKey.
func WithOpenAI(model string) Option {
	return shortcut("openai", model, "OPENAI_API_KEY")
}

// WithClaude selects the Anthropic Claude provider with the given model.
// API key is read from ANTHROPIC_API_KEY unless set via WithAPIKey.
func WithClaude(model string) Option {
	return shortcut("claude", model, "ANTHROPIC_API_KEY")
}

// WithGemini selects the Google Gemini provider with the given model.
// API key is read from GEMINI_API_KEY unless set via WithAPIKey.
func WithGemini(model string) Option {
	return shortcut("gemini", model, "GEMINI_API_KEY")
}

// WithMistral selects the Mistral provider with the given model.
// API key is read from MISTRAL_API_KEY unless set via WithAPIKey.
func WithMistral(model string) Option {
	return shortcut("mistral", model, "MISTRAL_API_KEY")
}

// WithGroq selects the Groq provider with the given model.
// API key is read from GROQ_API_KEY unless set via WithAPIKey.
func WithGroq(model string) Option {
	return shortcut("groq", model, "GROQ_API_KEY")
}

// WithOpenRouter selects the OpenRouter provider with the given model.
// API key is read from OPENROUTER_API_KEY unless set via WithAPIKey.
func WithOpenRouter(model string) Option {
	return shortcut("openrouter", model, "OPENROUTER_API_KEY")
}

// WithOllama selects the local Ollama provider with the given model.
// No API key is required.
func WithOllama(model string) Option {
	return func(o *options) {
		o.providerName = "ollama"
		o.model = model
	}
}

func shortcut(name, model, envKey string) Option {
	return func(o *options) {
		o.providerName = name
		o.model = model
		if o.apiKey == "" {
			o.apiKey = os.Getenv(envKey)
		}
	}
}

// WithAPIKey overrides the API key for provider shortcuts.
func WithAPIKey(key string) Option {
	return func(o *options) { o.apiKey = key }
}

// WithBaseURL overrides the provider endpoint, e.g. for proxies or
// self-hosted gateways.
func WithBaseURL(url string) Option {
	return func(o *options) { o.baseURL = url }
}

// WithLogger sets a custom zap logger. Defaults to zap.NewNop().
func WithLogger(logger *zap.Logger) Option {
	return func(o *options) { o.logger = logger }
}

// WithOptions merges provider-specific options, e.g. "routing_strategy"
// for OpenRouter or "organization" for OpenAI.
func WithOptions(opts llm.Options) Option {
	return func(o *options) {
		if o.extra == nil {
			o.extra = llm.Options{}
		}
		for k, v := range opts {
			o.extra[k] = v
		}
	}
}

// New creates a configured llm.Provider with minimal configuration.
func New(opts ...Option) (llm.Provider, error) {
	o := &options{}
	for _, opt := range opts {
		opt(o)
	}

	if o.providerName == "" {
		return nil, fmt.Errorf("provider is required: use WithOpenAI, WithClaude, or another shortcut")
	}
	if o.apiKey == "" && o.providerName != "ollama" {
		return nil, fmt.Errorf("API key is required for %s: set the environment variable or use WithAPIKey", o.providerName)
	}

	cfg := llm.Options{}
	for k, v := range o.extra {
		cfg[k] = v
	}
	if o.apiKey != "" {
		cfg["api_key"] = o.apiKey
	}
	if o.model != "" {
		cfg["default_model"] = o.model
	}
	if o.baseURL != "" {
		cfg["base_url"] = o.baseURL
	}

	p, err := factory.New(o.providerName, cfg, o.logger)
	if err != nil {
		return nil, fmt.Errorf("create %s provider: %w", o.providerName, err)
	}
	return p, nil
}
