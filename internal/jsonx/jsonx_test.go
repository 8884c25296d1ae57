package jsonx

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecode(t *testing.T) {
	m, err := Decode([]byte(`{"a":1,"b":"x"}`))
	require.NoError(t, err)
	assert.Equal(t, 1, GetInt(m, "a", 0))
	assert.Equal(t, "x", GetString(m, "b", ""))
}

func TestDecode_Malformed(t *testing.T) {
	_, err := Decode([]byte(`{"a":`))
	assert.Error(t, err)
}

func TestGetString_Default(t *testing.T) {
	m := map[string]any{"n": 42}
	assert.Equal(t, "fallback", GetString(m, "missing", "fallback"))
	assert.Equal(t, "fallback", GetString(m, "n", "fallback"))
}

func TestGetFloat_StringNumber(t *testing.T) {
	// OpenRouter 价格字段是字符串
	m := map[string]any{"prompt": "0.000002"}
	assert.InDelta(t, 0.000002, GetFloat(m, "prompt", 0), 1e-12)
}

func TestGetNested(t *testing.T) {
	m := map[string]any{
		"error": map[string]any{
			"message": "bad key",
			"code":    float64(401),
		},
	}
	assert.Equal(t, "bad key", GetNestedString(m, "error.message", ""))
	assert.Equal(t, 401, GetNestedInt(m, "error.code", 0))
	assert.Equal(t, "", GetNestedString(m, "error.missing.deep", ""))
}

func TestFirstMap(t *testing.T) {
	m := map[string]any{
		"choices": []any{
			map[string]any{"index": float64(0)},
			map[string]any{"index": float64(1)},
		},
	}
	first := FirstMap(m, "choices")
	require.NotNil(t, first)
	assert.Equal(t, 0, GetInt(first, "index", -1))
	assert.Nil(t, FirstMap(m, "missing"))
}

func TestGetStringSlice(t *testing.T) {
	m := map[string]any{"models": []any{"a", 1, "b"}}
	assert.Equal(t, []string{"a", "b"}, GetStringSlice(m, "models"))
}
