package speech

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
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
	defaultBaseURL        = "https://api.openai.com"
	defaultWhisperModel   = "whisper-1"
	defaultSynthesisModel = "tts-1"
	defaultVoice          = "alloy"
	defaultFormat         = "mp3"

	// 音频上传与合成比聊天调用慢得多，默认超时更宽。
	defaultTimeout = 120 * time.Second

	transcribeEndpoint = "/v1/audio/transcriptions"
	speechEndpoint     = "/v1/audio/speech"

	providerName = "whisper"
)

// Config 是语音客户端配置。
type Config struct {
	APIKey  string        `json:"api_key" yaml:"api_key"`
	BaseURL string        `json:"base_url" yaml:"base_url"`
	Model   string        `json:"model,omitempty" yaml:"model,omitempty"`
	Timeout time.Duration `json:"timeout,omitempty" yaml:"timeout,omitempty"`
}

// Client 访问 OpenAI 的音频端点。
type Client struct {
	cfg    Config
	client *http.Client
	logger *zap.Logger
}

// NewClient 创建语音客户端。logger 为 nil 时使用 zap.NewNop()。
func NewClient(cfg Config, logger *zap.Logger) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBaseURL
	}
	if cfg.Model == "" {
		cfg.Model = defaultWhisperModel
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

// SetHTTPClient 替换传输客户端，测试注入用。
func (c *Client) SetHTTPClient(client *http.Client) { c.client = client }

// Transcribe 将音频转写为文本。音频以 multipart 表单上传。
func (c *Client) Transcribe(ctx context.Context, req *TranscriptionRequest) (*TranscriptionResponse, error) {
	if c.cfg.APIKey == "" {
		return nil, llm.NewConfigurationError(providerName, "API key is not configured")
	}
	if req == nil || req.Audio == nil {
		return nil, llm.NewConfigurationError(providerName, "audio input is required")
	}

	model := req.Model
	if model == "" {
		model = c.cfg.Model
	}
	fileName := req.FileName
	if fileName == "" {
		fileName = "audio.mp3"
	}

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	part, err := writer.CreateFormFile("file", fileName)
	if err != nil {
		return nil, fmt.Errorf("failed to create form file: %w", err)
	}
	if _, err := io.Copy(part, req.Audio); err != nil {
		return nil, fmt.Errorf("failed to copy audio: %w", err)
	}
	_ = writer.WriteField("model", model)
	_ = writer.WriteField("response_format", "verbose_json")
	if req.Language != "" {
		_ = writer.WriteField("language", req.Language)
	}
	if req.Prompt != "" {
		_ = writer.WriteField("prompt", req.Prompt)
	}
	if req.Temperature > 0 {
		_ = writer.WriteField("temperature", fmt.Sprintf("%g", req.Temperature))
	}
	writer.Close()

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost,
		strings.TrimRight(c.cfg.BaseURL, "/")+transcribeEndpoint, &buf)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	httpReq.Header.Set("Content-Type", writer.FormDataContentType())

	data, err := c.do(httpReq)
	if err != nil {
		return nil, err
	}

	raw, err := jsonx.Decode(data)
	if err != nil {
		return nil, llm.NewDecodeError(providerName, err)
	}
	seconds := jsonx.GetFloat(raw, "duration", 0)
	return &TranscriptionResponse{
		Text:     jsonx.GetString(raw, "text", ""),
		Language: jsonx.GetString(raw, "language", ""),
		Duration: time.Duration(seconds * float64(time.Second)),
		Model:    model,
		Provider: providerName,
	}, nil
}

// Synthesize 将文本合成为语音，返回音频字节。
func (c *Client) Synthesize(ctx context.Context, req *SynthesisRequest) (*SynthesisResponse, error) {
	if c.cfg.APIKey == "" {
		return nil, llm.NewConfigurationError(providerName, "API key is not configured")
	}
	if req == nil || req.Text == "" {
		return nil, llm.NewConfigurationError(providerName, "text input is required")
	}

	model := req.Model
	if model == "" {
		model = defaultSynthesisModel
	}
	voice := req.Voice
	if voice == "" {
		voice = defaultVoice
	}
	format := req.Format
	if format == "" {
		format = defaultFormat
	}

	payload := map[string]any{
		"model":           model,
		"input":           req.Text,
		"voice":           voice,
		"response_format": format,
	}
	if req.Speed > 0 {
		payload["speed"] = req.Speed
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request payload: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost,
		strings.TrimRight(c.cfg.BaseURL, "/")+speechEndpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	httpReq.Header.Set("Content-Type", "application/json")

	data, err := c.do(httpReq)
	if err != nil {
		return nil, err
	}
	return &SynthesisResponse{
		AudioData: data,
		Format:    format,
		Model:     model,
		Provider:  providerName,
	}, nil
}

// do 发送请求并按状态码分类错误，返回原始响应体。
// 音频端点不走重试基座：上传体不可安全重放。
func (c *Client) do(req *http.Request) ([]byte, error) {
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
	return data, nil
}
