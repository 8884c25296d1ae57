// Package config 提供 llmbridge 的 YAML 配置加载。
// 配置优先级: 默认值 → YAML 文件 → 环境变量。
// 环境变量覆盖形如 LLMBRIDGE_OPENAI_API_KEY，密钥不必写进文件。
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/llmbridge/llmbridge/llm"
)

// Config 是 llmbridge 的完整配置结构。
type Config struct {
	// DefaultProvider 是未显式指定厂商时使用的标识。
	DefaultProvider string `yaml:"default_provider"`

	// Providers 是各厂商的配置，键为工厂认识的标识。
	Providers map[string]ProviderConfig `yaml:"providers"`

	// Speech 语音服务（转写与合成）配置。
	Speech ServiceConfig `yaml:"speech"`

	// Translate 翻译服务配置。
	Translate ServiceConfig `yaml:"translate"`

	// Log 日志配置。
	Log LogConfig `yaml:"log"`
}

// ProviderConfig 是单个厂商的配置。
// Extra 承载厂商专有字段（OpenRouter 的 routing_strategy、
// Mistral 的 safe_prompt 等），随通用字段一并传给 Configure。
type ProviderConfig struct {
	APIKey            string         `yaml:"api_key"`
	BaseURL           string         `yaml:"base_url"`
	DefaultModel      string         `yaml:"default_model"`
	Timeout           time.Duration  `yaml:"timeout"`
	MaxRetries        int            `yaml:"max_retries"`
	RequestsPerSecond float64        `yaml:"requests_per_second"`
	Extra             map[string]any `yaml:"extra"`
}

// ServiceConfig 是语音/翻译这类外围服务的配置。
type ServiceConfig struct {
	APIKey  string        `yaml:"api_key"`
	BaseURL string        `yaml:"base_url"`
	Model   string        `yaml:"model"`
	Timeout time.Duration `yaml:"timeout"`
}

// LogConfig 是日志配置。
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Options 把厂商配置转换为 Configure 接受的选项映射。
// 零值字段不进入映射，保持 Configure 的"缺省保留原值"语义。
func (pc ProviderConfig) Options() llm.Options {
	opts := llm.Options{}
	if pc.APIKey != "" {
		opts["api_key"] = pc.APIKey
	}
	if pc.BaseURL != "" {
		opts["base_url"] = pc.BaseURL
	}
	if pc.DefaultModel != "" {
		opts["default_model"] = pc.DefaultModel
	}
	if pc.Timeout > 0 {
		opts["timeout"] = int(pc.Timeout / time.Second)
	}
	if pc.MaxRetries > 0 {
		opts["max_retries"] = pc.MaxRetries
	}
	if pc.RequestsPerSecond > 0 {
		opts["requests_per_second"] = pc.RequestsPerSecond
	}
	for k, v := range pc.Extra {
		opts[k] = v
	}
	return opts
}

// ProviderOptions 返回全部厂商的选项映射，供 factory.NewRegistry 使用。
func (c *Config) ProviderOptions() map[string]llm.Options {
	configs := make(map[string]llm.Options, len(c.Providers))
	for name, pc := range c.Providers {
		configs[name] = pc.Options()
	}
	return configs
}

// Loader 按优先级加载配置。
type Loader struct {
	path      string
	envPrefix string
}

// NewLoader 创建加载器，默认环境变量前缀为 LLMBRIDGE。
func NewLoader() *Loader {
	return &Loader{envPrefix: "LLMBRIDGE"}
}

// WithConfigPath 指定 YAML 文件路径，为空时跳过文件加载。
func (l *Loader) WithConfigPath(path string) *Loader {
	l.path = path
	return l
}

// WithEnvPrefix 覆盖环境变量前缀。
func (l *Loader) WithEnvPrefix(prefix string) *Loader {
	l.envPrefix = prefix
	return l
}

// Load 执行加载：默认值 → YAML → 环境变量。
func (l *Loader) Load() (*Config, error) {
	cfg := defaults()

	if l.path != "" {
		data, err := os.ReadFile(l.path)
		if err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config file: %w", err)
		}
	}

	l.applyEnv(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func defaults() *Config {
	return &Config{
		Providers: map[string]ProviderConfig{},
		Log:       LogConfig{Level: "info", Format: "json"},
	}
}

// applyEnv 用环境变量覆盖各厂商的 API Key 与 BaseURL：
// <PREFIX>_<PROVIDER>_API_KEY、<PREFIX>_<PROVIDER>_BASE_URL。
// 外围服务同理：<PREFIX>_SPEECH_API_KEY、<PREFIX>_TRANSLATE_API_KEY。
func (l *Loader) applyEnv(cfg *Config) {
	for name, pc := range cfg.Providers {
		upper := strings.ToUpper(name)
		if v := os.Getenv(l.envPrefix + "_" + upper + "_API_KEY"); v != "" {
			pc.APIKey = v
		}
		if v := os.Getenv(l.envPrefix + "_" + upper + "_BASE_URL"); v != "" {
			pc.BaseURL = v
		}
		cfg.Providers[name] = pc
	}
	if v := os.Getenv(l.envPrefix + "_SPEECH_API_KEY"); v != "" {
		cfg.Speech.APIKey = v
	}
	if v := os.Getenv(l.envPrefix + "_TRANSLATE_API_KEY"); v != "" {
		cfg.Translate.APIKey = v
	}
	if v := os.Getenv(l.envPrefix + "_DEFAULT_PROVIDER"); v != "" {
		cfg.DefaultProvider = v
	}
}

// Validate 做基本一致性检查。
func (c *Config) Validate() error {
	if c.DefaultProvider != "" {
		if _, ok := c.Providers[c.DefaultProvider]; !ok {
			return fmt.Errorf("default_provider %q has no configuration block", c.DefaultProvider)
		}
	}
	for name, pc := range c.Providers {
		if pc.MaxRetries < 0 {
			return fmt.Errorf("provider %q: max_retries must not be negative", name)
		}
		if pc.Timeout < 0 {
			return fmt.Errorf("provider %q: timeout must not be negative", name)
		}
	}
	return nil
}

// MustLoad 加载配置，失败时 panic。仅限程序入口使用。
func MustLoad(path string) *Config {
	cfg, err := NewLoader().WithConfigPath(path).Load()
	if err != nil {
		panic(fmt.Sprintf("load config: %v", err))
	}
	return cfg
}
