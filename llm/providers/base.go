package providers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/llmbridge/llmbridge/internal/jsonx"
	"github.com/llmbridge/llmbridge/internal/metrics"
	"github.com/llmbridge/llmbridge/internal/tlsutil"
	"github.com/llmbridge/llmbridge/llm"
)

// baseRetryDelay 是指数退避的基准：失败第 k 次尝试后等待 100ms·2^k。
const baseRetryDelay = 100 * time.Millisecond

// Base 实现所有 Provider 共享的传输无关逻辑：
// 认证头注入、JSON 编码、有界重试与错误分类。
// 各厂商适配器嵌入 Base 并只实现负载构建与响应归一化。
type Base struct {
	mu      sync.Mutex
	cfg     Config
	client  *http.Client
	limiter *rate.Limiter

	logger    *zap.Logger
	collector *metrics.Collector
	tracer    trace.Tracer

	// backoffBase 默认为 baseRetryDelay，测试可缩短以避免真实等待。
	backoffBase time.Duration
}

// NewBase 创建共享基础实现。logger 为 nil 时使用 zap.NewNop()。
func NewBase(cfg Config, logger *zap.Logger) *Base {
	cfg.applyDefaults()
	if logger == nil {
		logger = zap.NewNop()
	}
	b := &Base{
		cfg:         cfg,
		client:      tlsutil.SecureHTTPClient(cfg.Timeout),
		logger:      logger.With(zap.String("provider", cfg.Name)),
		collector:   metrics.Default(),
		tracer:      otel.Tracer("github.com/llmbridge/llmbridge/llm/providers"),
		backoffBase: baseRetryDelay,
	}
	if cfg.RequestsPerSecond > 0 {
		b.limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), 1)
	}
	return b
}

// Name 返回 Provider 标识。
func (b *Base) Name() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.cfg.Name
}

// Configure 从动态选项映射更新配置。
// 不校验 API Key 是否存在；立即重建传输客户端使新超时生效
// （替换而非就地修改，避免懒惰重建的竞态）。
func (b *Base) Configure(opts llm.Options) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.cfg.APIKey = opts.String("api_key", b.cfg.APIKey)
	b.cfg.BaseURL = opts.String("base_url", b.cfg.BaseURL)
	b.cfg.DefaultModel = opts.String("default_model", b.cfg.DefaultModel)
	b.cfg.Timeout = opts.Duration("timeout", b.cfg.Timeout)
	b.cfg.MaxRetries = opts.Int("max_retries", b.cfg.MaxRetries)
	b.cfg.applyDefaults()

	if rps := opts.Float("requests_per_second", b.cfg.RequestsPerSecond); rps != b.cfg.RequestsPerSecond {
		b.cfg.RequestsPerSecond = rps
		if rps > 0 {
			b.limiter = rate.NewLimiter(rate.Limit(rps), 1)
		} else {
			b.limiter = nil
		}
	}

	b.client = tlsutil.SecureHTTPClient(b.cfg.Timeout)
}

// Config 返回当前配置的快照。
func (b *Base) Config() Config {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.cfg
}

// SetClient 替换传输客户端，测试注入用。
func (b *Base) SetClient(client *http.Client) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.client = client
}

// IsAvailable 报告必需配置是否就绪。
func (b *Base) IsAvailable() bool {
	cfg := b.Config()
	if !cfg.RequiresAPIKey {
		return strings.TrimSpace(cfg.BaseURL) != ""
	}
	return strings.TrimSpace(cfg.APIKey) != ""
}

// JoinURL 以单个 "/" 拼接 baseURL 与 endpoint，去除重复斜杠。
func JoinURL(baseURL, endpoint string) string {
	return strings.TrimRight(baseURL, "/") + "/" + strings.TrimLeft(endpoint, "/")
}

func (b *Base) buildHeaders(req *http.Request, cfg Config) {
	req.Header.Set("Content-Type", "application/json")
	if cfg.BuildHeaders != nil {
		cfg.BuildHeaders(req, cfg.APIKey)
		return
	}
	if cfg.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+cfg.APIKey)
	}
}

// SendRequest 执行一次逻辑请求：构建 URL 与认证头、编码负载、
// 有界重试（指数退避）、按状态码分类错误、解码 JSON 响应体。
//
// 状态分类：2xx 解码返回；4xx 提取厂商消息后立即抛响应错误（不重试，
// 客户端错误不是瞬时故障）；其余状态与传输层错误记为最近失败，
// 剩余次数内按 100ms·2^k 退避后重试，耗尽后抛连接错误并注明尝试次数。
func (b *Base) SendRequest(ctx context.Context, endpoint string, payload any, method string) (map[string]any, error) {
	cfg := b.Config()
	if cfg.RequiresAPIKey && strings.TrimSpace(cfg.APIKey) == "" {
		return nil, llm.NewConfigurationError(cfg.Name, "API key is not configured")
	}
	if method == "" {
		method = http.MethodPost
	}

	url := JoinURL(cfg.BaseURL, endpoint)

	var body []byte
	if method == http.MethodPost && payload != nil {
		var err error
		body, err = json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request payload: %w", err)
		}
	}

	ctx, span := b.tracer.Start(ctx, "llm.request",
		trace.WithAttributes(
			attribute.String("llm.provider", cfg.Name),
			attribute.String("http.method", method),
		))
	defer span.End()

	operation := operationLabel(endpoint)
	start := time.Now()

	var lastErr error
	for attempt := 1; attempt <= cfg.MaxRetries; attempt++ {
		if b.limiter != nil {
			if err := b.limiter.Wait(ctx); err != nil {
				return nil, llm.NewConnectionError(cfg.Name, attempt, err)
			}
		}

		result, done, err := b.attempt(ctx, cfg, method, url, body)
		if done {
			outcome := metrics.OutcomeSuccess
			if err != nil {
				outcome = metrics.OutcomeClientError
			}
			b.collector.ObserveRequest(cfg.Name, operation, outcome, time.Since(start))
			span.SetAttributes(attribute.Int("llm.attempts", attempt))
			return result, err
		}
		lastErr = err

		if attempt < cfg.MaxRetries {
			delay := b.backoffDelay(attempt)
			b.logger.Debug("retrying provider request",
				zap.Int("attempt", attempt),
				zap.Int("max_retries", cfg.MaxRetries),
				zap.Duration("delay", delay),
				zap.Error(lastErr))
			b.collector.ObserveRetry(cfg.Name)
			select {
			case <-ctx.Done():
				return nil, llm.NewConnectionError(cfg.Name, attempt, ctx.Err())
			case <-time.After(delay):
			}
		}
	}

	b.logger.Warn("provider request failed after all attempts",
		zap.Int("attempts", cfg.MaxRetries),
		zap.Error(lastErr))
	b.collector.ObserveRequest(cfg.Name, operation, metrics.OutcomeExhausted, time.Since(start))
	span.SetAttributes(attribute.Int("llm.attempts", cfg.MaxRetries))
	return nil, llm.NewConnectionError(cfg.Name, cfg.MaxRetries, lastErr)
}

// attempt 执行一次发送。done 为 true 表示结果已定（成功或不可重试），
// 否则 err 记为可重试的最近失败。
func (b *Base) attempt(ctx context.Context, cfg Config, method, url string, body []byte) (map[string]any, bool, error) {
	var reader io.Reader
	if len(body) > 0 {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return nil, true, fmt.Errorf("failed to create request: %w", err)
	}
	b.buildHeaders(req, cfg)

	b.mu.Lock()
	client := b.client
	b.mu.Unlock()

	resp, err := client.Do(req)
	if err != nil {
		return nil, false, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, false, fmt.Errorf("failed to read response body: %w", err)
	}

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		m, err := jsonx.Decode(data)
		if err != nil {
			// 解码失败按可重试失败处理
			return nil, false, llm.NewDecodeError(cfg.Name, err)
		}
		return m, true, nil

	case resp.StatusCode >= 400 && resp.StatusCode < 500:
		msg := ExtractErrorMessage(data)
		return nil, true, llm.NewResponseError(cfg.Name, resp.StatusCode, msg)

	default:
		return nil, false, fmt.Errorf("provider returned status %d: %s", resp.StatusCode, ExtractErrorMessage(data))
	}
}

// OpenStream 直接打开流式 HTTP 连接，绕过重试循环
// （部分输出无法安全重试）。状态 ≥400 时提取厂商消息并分类返回。
// 调用方负责关闭返回的 Body（流解码器在流结束时关闭）。
func (b *Base) OpenStream(ctx context.Context, endpoint string, payload any) (io.ReadCloser, error) {
	cfg := b.Config()
	if cfg.RequiresAPIKey && strings.TrimSpace(cfg.APIKey) == "" {
		return nil, llm.NewConfigurationError(cfg.Name, "API key is not configured")
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, JoinURL(cfg.BaseURL, endpoint), bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	b.buildHeaders(req, cfg)
	req.Header.Set("Accept", "text/event-stream")

	b.mu.Lock()
	client := b.client
	b.mu.Unlock()

	resp, err := client.Do(req)
	if err != nil {
		return nil, llm.NewConnectionError(cfg.Name, 1, err)
	}
	if resp.StatusCode >= 400 {
		defer resp.Body.Close()
		data, _ := io.ReadAll(resp.Body)
		msg := ExtractErrorMessage(data)
		if resp.StatusCode < 500 {
			return nil, llm.NewResponseError(cfg.Name, resp.StatusCode, msg)
		}
		return nil, llm.NewConnectionError(cfg.Name, 1,
			fmt.Errorf("provider returned status %d: %s", resp.StatusCode, msg))
	}
	return resp.Body, nil
}

// Logger 返回带 provider 字段的日志器，供嵌入方使用。
func (b *Base) Logger() *zap.Logger { return b.logger }

// Collector 返回指标收集器，供嵌入方上报 token 用量。
func (b *Base) Collector() *metrics.Collector { return b.collector }

// backoffDelay 返回失败第 attempt（1 起）次尝试后的退避时长：100ms·2^attempt。
func (b *Base) backoffDelay(attempt int) time.Duration {
	return b.backoffBase * time.Duration(1<<uint(attempt))
}

// operationLabel 将端点路径压缩为低基数的指标标签。
func operationLabel(endpoint string) string {
	path := endpoint
	if i := strings.IndexByte(path, '?'); i >= 0 {
		path = path[:i]
	}
	path = strings.Trim(path, "/")
	if i := strings.LastIndexByte(path, '/'); i >= 0 {
		path = path[i+1:]
	}
	// Gemini 端点形如 models/gemini-pro:generateContent
	if i := strings.LastIndexByte(path, ':'); i >= 0 {
		path = path[i+1:]
	}
	if path == "" {
		return "unknown"
	}
	return path
}
