// Package speech 提供语音外围能力：Whisper 转写（STT）与语音合成（TTS）。
// 独立于聊天 Provider 接口，音频请求是 multipart 或二进制响应，
// 不走共享的 JSON 重试基座。
package speech

import (
	"io"
	"time"
)

// TranscriptionRequest 是语音转文本请求。
type TranscriptionRequest struct {
	// Audio 是音频内容，必填。
	Audio io.Reader `json:"-"`
	// FileName 提示服务端音频格式，默认 "audio.mp3"。
	FileName string `json:"file_name,omitempty"`
	Model    string `json:"model,omitempty"`
	// Language 是 ISO-639-1 语言码，留空自动检测。
	Language string `json:"language,omitempty"`
	// Prompt 为转写提供上下文提示。
	Prompt      string  `json:"prompt,omitempty"`
	Temperature float64 `json:"temperature,omitempty"`
}

// TranscriptionResponse 是转写结果。
type TranscriptionResponse struct {
	Text     string        `json:"text"`
	Language string        `json:"language,omitempty"`
	Duration time.Duration `json:"duration,omitempty"`
	Model    string        `json:"model"`
	Provider string        `json:"provider"`
}

// SynthesisRequest 是文本转语音请求。
type SynthesisRequest struct {
	Text  string `json:"text"`
	Model string `json:"model,omitempty"`
	Voice string `json:"voice,omitempty"`
	// Speed 取值 0.25-4.0，0 表示服务端默认。
	Speed float64 `json:"speed,omitempty"`
	// Format 为输出音频格式：mp3、opus、aac、flac、wav、pcm。
	Format string `json:"format,omitempty"`
}

// SynthesisResponse 是合成结果，音频以字节缓冲返回。
type SynthesisResponse struct {
	AudioData []byte `json:"-"`
	Format    string `json:"format"`
	Model     string `json:"model"`
	Provider  string `json:"provider"`
}
