// Package translate 提供 DeepL 翻译外围能力。
// 认证为 DeepL-Auth-Key 头；免费版密钥以 ":fx" 结尾，
// 自动切换到 api-free.deepl.com 端点。
package translate

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/llmbridge/llmbridge/internal/jsonx"
	"github.com/llmbridge/llmbridge/internal/tlsutil"
	"github.com/llmbridge/llmbridge/llm"
	"github.com/llmbridge/llmbridge/llm/providers"
)

const (
	proBaseURL  = "https://api.deepl.com"
	freeBaseURL = "https://api-free.deepl.com"

	translateEndpoint = "/v2/translate"
	usageEndpoint     = "/v2/usage"

	defaultTimeout = 30 * time.Second

	providerName = "deepl"
)

// Config 是 DeepL 客户端配置。
type Config struct {
	APIKey string `json:"api_key" yaml:"api_key"`
	// BaseURL 留空时按密钥后缀自动选择专业版或免费版端点。
	BaseURL string        `json:"base_url" yaml:"base_url"`
	Timeout time.Duration `json:"timeout,omitempty" yaml:"timeout,omitempty"`
}

// Translation 是单条译文。
type Translation struct {
	Text string `json:"text"`
	// DetectedSourceLanguage 是服务端检测到的源语言。
	DetectedSourceLanguage string `json:"detected_source_language,omitempty"`
}

// TranslateRequest 是翻译请求。
type TranslateRequest struct {
	// Texts 是待翻译文本，逐条对应返回的译文。
	Texts []string `json:"text"`
	// TargetLang 是目标语言码（"ZH"、"EN-US" 等），必填。
	TargetLang string `json:"target_lang"`
	// SourceLang 留空时自动检测。
	SourceLang string `json:"source_lang,omitempty"`
	// Formality 控制语体：default、more、less。
	Formality string `json:"formality,omitempty"`
}

// Usage 是账户配额信息。
type Usage struct {
	CharacterCount int64 `json:"character_count"`
	CharacterLimit int64 `json:"character_limit"`
}

// Client 访问 DeepL API。
type Client struct {
	cfg    Config
	client *http.Client
	logger *zap.Logger
}

// NewClient 创建 DeepL 客户端。
func NewClient(cfg Config, logger *zap.Logger) *Client {
	if cfg.BaseURL == "" {
		if IsFreeKey(cfg.APIKey) {
			cfg.BaseURL = freeBaseURL
		} else {
			cfg.BaseURL = proBaseURL
		}
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		cfg:    cfg,
		client: tlsutil.SecureHTTPClient(cfg.Timeout),
		logger: logger.With(zap.String("provider", providerName)),
	}
}

// IsFreeKey 报告密钥是否属于免费版（以 ":fx" 结尾）。
func IsFreeKey(apiKey string) bool {
	return strings.HasSuffix(apiKey, ":fx")
}

// SetHTTPClient 替换传输客户端，测试注入用。
func (c *Client) SetHTTPClient(client *http.Client) { c.client = client }

// Translate 翻译一批文本，译文顺序与输入一致。
func (c *Client) Translate(ctx context.Context, req *TranslateRequest) ([]Translation, error) {
	if c.cfg.APIKey == "" {
		return nil, llm.NewConfigurationError(providerName, "API key is not configured")
	}
	if req == nil || len(req.Texts) == 0 {
		return nil, llm.NewConfigurationError(providerName, "at least one text is required")
	}
	if req.TargetLang == "" {
		return nil, llm.NewConfigurationError(providerName, "target language is required")
	}

	payload := map[string]any{
		"text":        req.Texts,
		"target_lang": req.TargetLang,
	}
	if req.SourceLang != "" {
		payload["source_lang"] = req.SourceLang
	}
	if req.Formality != "" {
		payload["formality"] = req.Formality
	}

	raw, err := c.do(ctx, http.MethodPost, translateEndpoint, payload)
	if err != nil {
		return nil, err
	}

	entries := jsonx.GetList(raw, "translations")
	if len(entries) != len(req.Texts) {
		return nil, llm.NewDecodeError(providerName,
			fmt.Errorf("expected %d translations, got %d", len(req.Texts), len(entries)))
	}
	translations := make([]Translation, 0, len(entries))
	for _, entry := range entries {
		m, _ := entry.(map[string]any)
		translations = append(translations, Translation{
			Text:                   jsonx.GetString(m, "text", ""),
			DetectedSourceLanguage: jsonx.GetString(m, "detected_source_language", ""),
		})
	}
	return translations, nil
}

// GetUsage 查询账户的字符配额。
func (c *Client) GetUsage(ctx context.Context) (*Usage, error) {
	if c.cfg.APIKey == "" {
		return nil, llm.NewConfigurationError(providerName, "API key is not configured")
	}
	raw, err := c.do(ctx, http.MethodGet, usageEndpoint, nil)
	if err != nil {
		return nil, err
	}
	return &Usage{
		CharacterCount: int64(jsonx.GetInt(raw, "character_count", 0)),
		CharacterLimit: int64(jsonx.GetInt(raw, "character_limit", 0)),
	}, nil
}

func (c *Client) do(ctx context.Context, method, endpoint string, payload any) (map[string]any, error) {
	var reader io.Reader
	if payload != nil {
		body, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request payload: %w", err)
		}
		reader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method,
		strings.TrimRight(c.cfg.BaseURL, "/")+endpoint, reader)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "DeepL-Auth-Key "+c.cfg.APIKey)
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, llm.NewConnectionError(providerName, 1, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, llm.NewConnectionError(providerName, 1, err)
	}
	if resp.StatusCode >= 400 {
		msg := providers.ExtractErrorMessage(data)
		if resp.StatusCode < 500 {
			return nil, llm.NewResponseError(providerName, resp.StatusCode, msg)
		}
		return nil, llm.NewConnectionError(providerName, 1,
			fmt.Errorf("provider returned status %d: %s", resp.StatusCode, msg))
	}

	raw, err := jsonx.Decode(data)
	if err != nil {
		return nil, llm.NewDecodeError(providerName, err)
	}
	return raw, nil
}
