// Package jsonx 提供对已解码 JSON 映射的防御式取值函数。
// 所有 Provider 共用同一套规则：缺失的嵌套键不会 panic，
// 而是解析为调用方给定的默认值（0、""、nil）。
package jsonx

import (
	"encoding/json"
	"strings"
)

// Decode 将原始 JSON 字节解析为结构化映射。
// 非对象或非法 JSON 返回错误，由调用方包装为类型化的解码错误。
func Decode(data []byte) (map[string]any, error) {
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, err
	}
	return m, nil
}

// GetString 取字符串字段。
func GetString(m map[string]any, key, def string) string {
	if v, ok := m[key].(string); ok {
		return v
	}
	return def
}

// GetInt 取整数字段，兼容 JSON 解码产生的 float64 与 json.Number。
func GetInt(m map[string]any, key string, def int) int {
	switch v := m[key].(type) {
	case float64:
		return int(v)
	case int:
		return v
	case int64:
		return int(v)
	case json.Number:
		if n, err := v.Int64(); err == nil {
			return int(n)
		}
	}
	return def
}

// GetFloat 取浮点字段。
func GetFloat(m map[string]any, key string, def float64) float64 {
	switch v := m[key].(type) {
	case float64:
		return v
	case int:
		return float64(v)
	case json.Number:
		if f, err := v.Float64(); err == nil {
			return f
		}
	case string:
		// OpenRouter 的价格字段是字符串形式的数字
		var f float64
		if err := json.Unmarshal([]byte(v), &f); err == nil {
			return f
		}
	}
	return def
}

// GetBool 取布尔字段。
func GetBool(m map[string]any, key string, def bool) bool {
	if v, ok := m[key].(bool); ok {
		return v
	}
	return def
}

// GetList 取数组字段，缺失或类型不符返回 nil。
func GetList(m map[string]any, key string) []any {
	if v, ok := m[key].([]any); ok {
		return v
	}
	return nil
}

// GetMap 取嵌套对象字段，缺失返回 nil。
func GetMap(m map[string]any, key string) map[string]any {
	if v, ok := m[key].(map[string]any); ok {
		return v
	}
	return nil
}

// GetStringSlice 取字符串数组字段，跳过非字符串元素。
func GetStringSlice(m map[string]any, key string) []string {
	items := GetList(m, key)
	if items == nil {
		return nil
	}
	out := make([]string, 0, len(items))
	for _, item := range items {
		if s, ok := item.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

// GetNested 按点分路径（"a.b.c"）取任意嵌套值。
func GetNested(m map[string]any, path string) (any, bool) {
	keys := strings.Split(path, ".")
	cur := any(m)
	for _, key := range keys {
		obj, ok := cur.(map[string]any)
		if !ok {
			return nil, false
		}
		cur, ok = obj[key]
		if !ok {
			return nil, false
		}
	}
	return cur, true
}

// GetNestedString 按点分路径取字符串。
func GetNestedString(m map[string]any, path, def string) string {
	if v, ok := GetNested(m, path); ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return def
}

// GetNestedInt 按点分路径取整数。
func GetNestedInt(m map[string]any, path string, def int) int {
	if v, ok := GetNested(m, path); ok {
		switch n := v.(type) {
		case float64:
			return int(n)
		case int:
			return n
		}
	}
	return def
}

// GetNestedMap 按点分路径取嵌套对象。
func GetNestedMap(m map[string]any, path string) map[string]any {
	if v, ok := GetNested(m, path); ok {
		if obj, ok := v.(map[string]any); ok {
			return obj
		}
	}
	return nil
}

// FirstMap 返回数组字段的第一个对象元素，常用于 choices[0]、candidates[0]。
func FirstMap(m map[string]any, key string) map[string]any {
	items := GetList(m, key)
	if len(items) == 0 {
		return nil
	}
	obj, _ := items[0].(map[string]any)
	return obj
}
