package llm

import "time"

// Options 是 Configure 与各操作接受的动态选项映射。
// 字段缺失或类型不符时返回调用方给定的默认值，
// 与响应解析共用 internal/jsonx 的取值规则（数值兼容 int/float64）。
type Options map[string]any

// String 取字符串选项。
func (o Options) String(key, def string) string {
	if v, ok := o[key].(string); ok && v != "" {
		return v
	}
	return def
}

// Int 取整数选项，兼容 JSON 解码产生的 float64。
func (o Options) Int(key string, def int) int {
	switch v := o[key].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	}
	return def
}

// Float 取浮点选项。
func (o Options) Float(key string, def float64) float64 {
	switch v := o[key].(type) {
	case float64:
		return v
	case float32:
		return float64(v)
	case int:
		return float64(v)
	}
	return def
}

// Bool 取布尔选项。
func (o Options) Bool(key string, def bool) bool {
	if v, ok := o[key].(bool); ok {
		return v
	}
	return def
}

// StringSlice 取字符串切片选项，兼容 []any。
func (o Options) StringSlice(key string) []string {
	switch v := o[key].(type) {
	case []string:
		return v
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}

// Duration 取秒数选项并转换为 time.Duration。
func (o Options) Duration(key string, def time.Duration) time.Duration {
	if secs := o.Int(key, -1); secs >= 0 {
		return time.Duration(secs) * time.Second
	}
	return def
}

// Has 报告选项是否存在。
func (o Options) Has(key string) bool {
	_, ok := o[key]
	return ok
}
