package llm

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestOptions_String(t *testing.T) {
	opts := Options{"model": "gpt-4o", "empty": "", "num": 42}

	assert.Equal(t, "gpt-4o", opts.String("model", "fallback"))
	assert.Equal(t, "fallback", opts.String("empty", "fallback"))
	assert.Equal(t, "fallback", opts.String("num", "fallback"))
	assert.Equal(t, "fallback", opts.String("missing", "fallback"))
}

func TestOptions_Int(t *testing.T) {
	opts := Options{"a": 7, "b": int64(8), "c": float64(9), "d": "10"}

	assert.Equal(t, 7, opts.Int("a", 0))
	assert.Equal(t, 8, opts.Int("b", 0))
	assert.Equal(t, 9, opts.Int("c", 0))
	assert.Equal(t, 0, opts.Int("d", 0))
	assert.Equal(t, 3, opts.Int("missing", 3))
}

func TestOptions_Float(t *testing.T) {
	opts := Options{"a": 0.7, "b": float32(0.5), "c": 2}

	assert.InDelta(t, 0.7, opts.Float("a", 0), 1e-9)
	assert.InDelta(t, 0.5, opts.Float("b", 0), 1e-6)
	assert.InDelta(t, 2.0, opts.Float("c", 0), 1e-9)
	assert.InDelta(t, 1.0, opts.Float("missing", 1.0), 1e-9)
}

func TestOptions_Bool(t *testing.T) {
	opts := Options{"on": true, "off": false, "str": "true"}

	assert.True(t, opts.Bool("on", false))
	assert.False(t, opts.Bool("off", true))
	assert.True(t, opts.Bool("str", true))
	assert.False(t, opts.Bool("missing", false))
}

func TestOptions_StringSlice(t *testing.T) {
	opts := Options{
		"typed": []string{"a", "b"},
		"any":   []any{"x", 1, "y"},
		"num":   42,
	}

	assert.Equal(t, []string{"a", "b"}, opts.StringSlice("typed"))
	assert.Equal(t, []string{"x", "y"}, opts.StringSlice("any"))
	assert.Nil(t, opts.StringSlice("num"))
	assert.Nil(t, opts.StringSlice("missing"))
}

func TestOptions_Duration(t *testing.T) {
	opts := Options{"timeout": 45, "zero": 0, "float": float64(5)}

	assert.Equal(t, 45*time.Second, opts.Duration("timeout", time.Second))
	assert.Equal(t, time.Duration(0), opts.Duration("zero", time.Second))
	assert.Equal(t, 5*time.Second, opts.Duration("float", time.Second))
	assert.Equal(t, 30*time.Second, opts.Duration("missing", 30*time.Second))
}

func TestOptions_Has(t *testing.T) {
	opts := Options{"present": nil}

	assert.True(t, opts.Has("present"))
	assert.False(t, opts.Has("absent"))
	assert.False(t, Options(nil).Has("anything"))
}
