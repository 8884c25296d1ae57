// Package metrics provides internal metrics collection for provider requests.
// This package is internal and should not be imported by external projects.
package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Outcome 标识一次逻辑请求的最终结果，作为指标标签。
type Outcome string

const (
	OutcomeSuccess     Outcome = "success"
	OutcomeClientError Outcome = "client_error"
	OutcomeExhausted   Outcome = "exhausted"
)

// Collector 收集 Provider 请求层面的指标。
type Collector struct {
	requestsTotal   *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	retriesTotal    *prometheus.CounterVec
	tokensUsed      *prometheus.CounterVec
}

var (
	defaultCollector *Collector
	defaultOnce      sync.Once
)

// Default 返回进程级默认收集器，注册到 prometheus 默认 registry。
func Default() *Collector {
	defaultOnce.Do(func() {
		defaultCollector = NewCollector("llmbridge", prometheus.DefaultRegisterer)
	})
	return defaultCollector
}

// NewCollector 创建指标收集器并注册所有指标。
func NewCollector(namespace string, reg prometheus.Registerer) *Collector {
	c := &Collector{
		requestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "provider_requests_total",
				Help:      "Total number of logical provider requests",
			},
			[]string{"provider", "operation", "outcome"},
		),
		requestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "provider_request_duration_seconds",
				Help:      "Provider request duration in seconds, including retries",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"provider", "operation"},
		),
		retriesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "provider_retries_total",
				Help:      "Total number of retry attempts after a failed attempt",
			},
			[]string{"provider"},
		),
		tokensUsed: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "provider_tokens_used_total",
				Help:      "Total tokens reported by providers",
			},
			[]string{"provider", "kind"},
		),
	}
	if reg != nil {
		reg.MustRegister(c.requestsTotal, c.requestDuration, c.retriesTotal, c.tokensUsed)
	}
	return c
}

// ObserveRequest 记录一次逻辑请求（含全部重试）的结果与耗时。
func (c *Collector) ObserveRequest(provider, operation string, outcome Outcome, duration time.Duration) {
	if c == nil {
		return
	}
	c.requestsTotal.WithLabelValues(provider, operation, string(outcome)).Inc()
	c.requestDuration.WithLabelValues(provider, operation).Observe(duration.Seconds())
}

// ObserveRetry 记录一次重试。
func (c *Collector) ObserveRetry(provider string) {
	if c == nil {
		return
	}
	c.retriesTotal.WithLabelValues(provider).Inc()
}

// ObserveTokens 记录厂商上报的 token 用量。
func (c *Collector) ObserveTokens(provider string, promptTokens, completionTokens int) {
	if c == nil {
		return
	}
	if promptTokens > 0 {
		c.tokensUsed.WithLabelValues(provider, "prompt").Add(float64(promptTokens))
	}
	if completionTokens > 0 {
		c.tokensUsed.WithLabelValues(provider, "completion").Add(float64(completionTokens))
	}
}
