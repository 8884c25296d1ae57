package streaming

import (
	"context"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sseBody(frames ...string) io.ReadCloser {
	var sb strings.Builder
	for _, f := range frames {
		sb.WriteString("data: ")
		sb.WriteString(f)
		sb.WriteString("\n\n")
	}
	return io.NopCloser(strings.NewReader(sb.String()))
}

func TestDecodeSSE_OpenAI(t *testing.T) {
	body := sseBody(
		`{"choices":[{"delta":{"content":"Hel"}}]}`,
		`{"choices":[{"delta":{"content":"lo"}}]}`,
		`[DONE]`,
	)
	text, err := Collect(DecodeSSE(context.Background(), body, "openai", OpenAIExtractor))
	require.NoError(t, err)
	assert.Equal(t, "Hello", text)
}

func TestDecodeSSE_SkipsMalformedFrame(t *testing.T) {
	body := sseBody(
		`{"choices":[{"delta":{"content":"A"}}]}`,
		`{not json at all`,
		`{"choices":[{"delta":{"content":"B"}}]}`,
		`[DONE]`,
	)
	text, err := Collect(DecodeSSE(context.Background(), body, "openai", OpenAIExtractor))
	require.NoError(t, err)
	assert.Equal(t, "AB", text, "畸形帧应被跳过，前后增量都保留")
}

func TestDecodeSSE_FiltersEmptyDeltas(t *testing.T) {
	body := sseBody(
		`{"choices":[{"delta":{"content":""}}]}`,
		`{"choices":[{"delta":{"role":"assistant"}}]}`,
		`{"choices":[{"delta":{"content":"x"}}]}`,
		`[DONE]`,
	)
	ch := DecodeSSE(context.Background(), body, "openai", OpenAIExtractor)
	var got []string
	for chunk := range ch {
		require.Nil(t, chunk.Err)
		got = append(got, chunk.Text)
	}
	assert.Equal(t, []string{"x"}, got)
}

func TestDecodeSSE_IgnoresNonDataLines(t *testing.T) {
	raw := "event: message\nretry: 100\ndata: {\"choices\":[{\"delta\":{\"content\":\"ok\"}}]}\n\ndata: [DONE]\n"
	body := io.NopCloser(strings.NewReader(raw))
	text, err := Collect(DecodeSSE(context.Background(), body, "openai", OpenAIExtractor))
	require.NoError(t, err)
	assert.Equal(t, "ok", text)
}

func TestDecodeSSE_Claude(t *testing.T) {
	body := sseBody(
		`{"type":"message_start"}`,
		`{"type":"content_block_delta","delta":{"type":"text_delta","text":"你好"}}`,
		`{"type":"content_block_delta","delta":{"type":"text_delta","text":"世界"}}`,
		`{"type":"message_stop"}`,
	)
	text, err := Collect(DecodeSSE(context.Background(), body, "claude", ClaudeExtractor))
	require.NoError(t, err)
	assert.Equal(t, "你好世界", text)
}

func TestDecodeSSE_Gemini(t *testing.T) {
	body := sseBody(
		`{"candidates":[{"content":{"parts":[{"text":"part one "}]}}]}`,
		`{"candidates":[{"content":{"parts":[{"text":"part two"}]}}]}`,
	)
	text, err := Collect(DecodeSSE(context.Background(), body, "gemini", GeminiExtractor))
	require.NoError(t, err)
	assert.Equal(t, "part one part two", text)
}

func TestDecodeNDJSON_Ollama(t *testing.T) {
	raw := `{"message":{"content":"He"},"done":false}
{"message":{"content":"llo"},"done":false}
{"message":{"content":""},"done":true}
`
	body := io.NopCloser(strings.NewReader(raw))
	text, err := Collect(DecodeNDJSON(context.Background(), body, "ollama", OllamaExtractor))
	require.NoError(t, err)
	assert.Equal(t, "Hello", text)
}

func TestDecodeNDJSON_SkipsMalformedLine(t *testing.T) {
	raw := `{"message":{"content":"a"},"done":false}
garbage line
{"message":{"content":"b"},"done":true}
`
	body := io.NopCloser(strings.NewReader(raw))
	text, err := Collect(DecodeNDJSON(context.Background(), body, "ollama", OllamaExtractor))
	require.NoError(t, err)
	assert.Equal(t, "ab", text)
}

type errReader struct{ readOnce bool }

func (r *errReader) Read(p []byte) (int, error) {
	if !r.readOnce {
		r.readOnce = true
		n := copy(p, "data: {\"choices\":[{\"delta\":{\"content\":\"x\"}}]}\n\n")
		return n, nil
	}
	return 0, io.ErrUnexpectedEOF
}

func (r *errReader) Close() error { return nil }

func TestDecodeSSE_FinalFrameWithoutTrailingNewline(t *testing.T) {
	raw := "data: {\"choices\":[{\"delta\":{\"content\":\"Hel\"}}]}\n\n" +
		"data: {\"choices\":[{\"delta\":{\"content\":\"lo\"}}]}"
	body := io.NopCloser(strings.NewReader(raw))

	text, err := Collect(DecodeSSE(context.Background(), body, "openai", OpenAIExtractor))
	require.NoError(t, err)
	assert.Equal(t, "Hello", text, "EOF 前的无换行尾帧不能丢")
}

func TestDecodeNDJSON_FinalLineWithoutTrailingNewline(t *testing.T) {
	raw := `{"message":{"content":"你好"},"done":false}` + "\n" +
		`{"message":{"content":"世界"},"done":true}`
	body := io.NopCloser(strings.NewReader(raw))

	text, err := Collect(DecodeNDJSON(context.Background(), body, "ollama", OllamaExtractor))
	require.NoError(t, err)
	assert.Equal(t, "你好世界", text)
}

func TestDecodeSSE_TransportErrorSurfacedAsFinalChunk(t *testing.T) {
	ch := DecodeSSE(context.Background(), &errReader{}, "openai", OpenAIExtractor)
	text, err := Collect(ch)
	assert.Equal(t, "x", text, "出错前的增量应已交付")
	require.Error(t, err)
}

func TestDecodeSSE_ContextCancelStopsStream(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	body := sseBody(
		`{"choices":[{"delta":{"content":"first"}}]}`,
		`{"choices":[{"delta":{"content":"never"}}]}`,
		`[DONE]`,
	)
	ch := DecodeSSE(ctx, body, "openai", OpenAIExtractor)
	chunk := <-ch
	assert.Equal(t, "first", chunk.Text)
	cancel()
	// 取消后解码协程退出并关闭通道
	for range ch {
	}
}
