package httpapi

import (
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// MetricsConfig HTTP 指标配置
type MetricsConfig struct {
	Enabled bool `mapstructure:"enabled"`
}

// Metrics HTTP 层指标，实现 component.MetricsProvider
type Metrics struct {
	config     MetricsConfig
	registered bool
	mu         sync.RWMutex

	requestsTotal    metric.Int64Counter
	requestDuration  metric.Float64Histogram
	requestsInFlight metric.Int64UpDownCounter
}

// NewMetrics creates the provider
func NewMetrics(cfg MetricsConfig) *Metrics {
	return &Metrics{config: cfg}
}

// MetricsName returns the metrics group name
func (m *Metrics) MetricsName() string { return "http" }

// IsMetricsEnabled returns whether metrics collection is enabled
func (m *Metrics) IsMetricsEnabled() bool { return m.config.Enabled }

// RegisterMetrics registers instruments on meter
func (m *Metrics) RegisterMetrics(meter metric.Meter) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.registered {
		return nil
	}

	var err error
	if m.requestsTotal, err = meter.Int64Counter("http_requests_total",
		metric.WithDescription("HTTP 请求总数"),
		metric.WithUnit("{request}")); err != nil {
		return err
	}
	if m.requestDuration, err = meter.Float64Histogram("http_request_duration_seconds",
		metric.WithDescription("HTTP 请求耗时分布"),
		metric.WithUnit("s")); err != nil {
		return err
	}
	if m.requestsInFlight, err = meter.Int64UpDownCounter("http_requests_in_flight",
		metric.WithDescription("当前正在处理的 HTTP 请求数"),
		metric.WithUnit("{request}")); err != nil {
		return err
	}

	m.registered = true
	return nil
}

// Handler gin middleware; a no-op until RegisterMetrics succeeded
func (m *Metrics) Handler() gin.HandlerFunc {
	return func(c *gin.Context) {
		m.mu.RLock()
		ok := m.registered
		m.mu.RUnlock()
		if !ok {
			c.Next()
			return
		}

		start := time.Now()
		ctx := c.Request.Context()
		m.requestsInFlight.Add(ctx, 1)
		defer m.requestsInFlight.Add(ctx, -1)

		c.Next()

		// route pattern keeps cardinality low
		path := c.FullPath()
		if path == "" {
			path = "unknown"
		}
		status := c.Writer.Status()
		attrs := metric.WithAttributes(
			attribute.String("method", c.Request.Method),
			attribute.String("path", path),
			attribute.Int("status_code", status),
			attribute.String("status_class", statusClass(status)),
		)
		m.requestsTotal.Add(ctx, 1, attrs)
		m.requestDuration.Record(ctx, time.Since(start).Seconds(), attrs)
	}
}

func statusClass(code int) string {
	switch {
	case code >= 500:
		return "5xx"
	case code >= 400:
		return "4xx"
	case code >= 300:
		return "3xx"
	case code >= 200:
		return "2xx"
	default:
		return "unknown"
	}
}
