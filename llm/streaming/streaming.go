// Package streaming 将原始字节流解码为惰性的文本增量序列。
// 支持两种帧格式：SSE（data: <json> 帧，OpenAI/Claude/Gemini）
// 与换行分隔 JSON（Ollama）。单帧 JSON 畸形时跳过该帧而非中止整个流；
// 空文本增量被过滤，不会产出。
//
// 消费由调用方驱动：不在单个网络分块之外预读，取消即停止消费
// （ctx 取消会关闭底层连接）。序列前进不可回退，也不可重启。
package streaming

import (
	"bufio"
	"context"
	"io"
	"strings"

	"github.com/llmbridge/llmbridge/internal/jsonx"
	"github.com/llmbridge/llmbridge/llm"
)

// doneSentinel 是 OpenAI 系 SSE 流的终止标记。
const doneSentinel = "[DONE]"

// Extractor 从一个已解码的厂商帧中提取文本增量。
// done 为 true 表示厂商已宣告流结束（message_stop、done:true）。
type Extractor func(frame map[string]any) (text string, done bool)

// DecodeSSE 消费 SSE 帧流并产出文本增量。
// 非 "data: " 前缀的行被忽略；"data: [DONE]" 终止序列；
// 其余 data 行解析为 JSON 后交由 extract 提取增量。
// 流结束或出错后通道关闭；传输层错误作为最后一个 chunk 的 Err 送出。
func DecodeSSE(ctx context.Context, body io.ReadCloser, provider string, extract Extractor) <-chan llm.StreamChunk {
	ch := make(chan llm.StreamChunk)
	go func() {
		defer body.Close()
		defer close(ch)

		reader := bufio.NewReader(body)
		for {
			// EOF 时 line 仍可能携带最后一个没有换行符的帧，先处理再退出
			line, readErr := reader.ReadString('\n')

			line = strings.TrimSpace(line)
			if strings.HasPrefix(line, "data:") {
				data := strings.TrimSpace(strings.TrimPrefix(line, "data:"))
				if data == doneSentinel {
					return
				}
				// 单帧畸形 JSON 不致命，跳过继续
				if frame, err := jsonx.Decode([]byte(data)); err == nil {
					text, done := extract(frame)
					if text != "" {
						if !emit(ctx, ch, llm.StreamChunk{Text: text}) {
							return
						}
					}
					if done {
						return
					}
				}
			}

			if readErr != nil {
				if readErr != io.EOF {
					emit(ctx, ch, llm.StreamChunk{Err: llm.NewConnectionError(provider, 1, readErr)})
				}
				return
			}
		}
	}()
	return ch
}

// DecodeNDJSON 消费换行分隔的 JSON 流（Ollama），语义与 DecodeSSE 相同。
func DecodeNDJSON(ctx context.Context, body io.ReadCloser, provider string, extract Extractor) <-chan llm.StreamChunk {
	ch := make(chan llm.StreamChunk)
	go func() {
		defer body.Close()
		defer close(ch)

		reader := bufio.NewReader(body)
		for {
			// 与 DecodeSSE 相同，EOF 前先处理可能的无换行尾帧
			line, readErr := reader.ReadString('\n')

			line = strings.TrimSpace(line)
			if line != "" {
				if frame, err := jsonx.Decode([]byte(line)); err == nil {
					text, done := extract(frame)
					if text != "" {
						if !emit(ctx, ch, llm.StreamChunk{Text: text}) {
							return
						}
					}
					if done {
						return
					}
				}
			}

			if readErr != nil {
				if readErr != io.EOF {
					emit(ctx, ch, llm.StreamChunk{Err: llm.NewConnectionError(provider, 1, readErr)})
				}
				return
			}
		}
	}()
	return ch
}

// emit 发送一个 chunk，ctx 取消时返回 false。
func emit(ctx context.Context, ch chan<- llm.StreamChunk, chunk llm.StreamChunk) bool {
	select {
	case <-ctx.Done():
		return false
	case ch <- chunk:
		return true
	}
}

// OpenAIExtractor 提取 OpenAI 形态帧的增量：choices[0].delta.content。
// 终止由 [DONE] 哨兵处理，帧内不宣告结束。
func OpenAIExtractor(frame map[string]any) (string, bool) {
	choice := jsonx.FirstMap(frame, "choices")
	if choice == nil {
		return "", false
	}
	return jsonx.GetNestedString(choice, "delta.content", ""), false
}

// ClaudeExtractor 提取 Claude 事件帧的增量：
// content_block_delta 事件携带 delta.text，message_stop 宣告结束。
func ClaudeExtractor(frame map[string]any) (string, bool) {
	switch jsonx.GetString(frame, "type", "") {
	case "content_block_delta":
		return jsonx.GetNestedString(frame, "delta.text", ""), false
	case "message_stop":
		return "", true
	}
	return "", false
}

// GeminiExtractor 提取 Gemini SSE 帧的增量：
// candidates[0].content.parts[0].text。
func GeminiExtractor(frame map[string]any) (string, bool) {
	candidate := jsonx.FirstMap(frame, "candidates")
	if candidate == nil {
		return "", false
	}
	content := jsonx.GetMap(candidate, "content")
	if content == nil {
		return "", false
	}
	part := jsonx.FirstMap(content, "parts")
	if part == nil {
		return "", false
	}
	return jsonx.GetString(part, "text", ""), false
}

// OllamaExtractor 提取 Ollama NDJSON 帧的增量：
// message.content，done:true 宣告结束。
func OllamaExtractor(frame map[string]any) (string, bool) {
	done := jsonx.GetBool(frame, "done", false)
	return jsonx.GetNestedString(frame, "message.content", ""), done
}

// Collect 读完整个流并拼接文本，测试与便捷调用用。
// 遇到错误 chunk 时返回已累积的文本与该错误。
func Collect(ch <-chan llm.StreamChunk) (string, error) {
	var sb strings.Builder
	for chunk := range ch {
		if chunk.Err != nil {
			return sb.String(), chunk.Err
		}
		sb.WriteString(chunk.Text)
	}
	return sb.String(), nil
}
