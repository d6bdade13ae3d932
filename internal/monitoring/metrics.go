package monitoring

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics 聚合系统的 Prometheus 指标
type Metrics struct {
	// HTTP 指标
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec

	// 邮件路由指标
	InboundTotal  *prometheus.CounterVec
	ForwardsTotal *prometheus.CounterVec
	OutboundTotal *prometheus.CounterVec

	// 业务指标
	AliasesCreated  prometheus.Counter
	UsersRegistered prometheus.Counter

	// 错误指标
	ErrorsTotal *prometheus.CounterVec
	PanicsTotal prometheus.Counter
}

// NewMetrics 创建并注册全部指标
func NewMetrics() *Metrics {
	return &Metrics{
		HTTPRequestsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "mailveil_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		HTTPRequestDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "mailveil_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "path"},
		),
		InboundTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "mailveil_inbound_messages_total",
				Help: "Inbound messages by path (fresh/reply) and outcome (delivered/dropped)",
			},
			[]string{"path", "outcome"},
		),
		ForwardsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "mailveil_forward_deliveries_total",
				Help: "Fan-out forward delivery attempts by result",
			},
			[]string{"result"},
		),
		OutboundTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "mailveil_outbound_messages_total",
				Help: "Outbound messages sent through aliases by result",
			},
			[]string{"result"},
		),
		AliasesCreated: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "mailveil_aliases_created_total",
				Help: "Total number of aliases created",
			},
		),
		UsersRegistered: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "mailveil_users_registered_total",
				Help: "Total number of registered users",
			},
		),
		ErrorsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "mailveil_errors_total",
				Help: "Total number of errors by type and component",
			},
			[]string{"type", "component"},
		),
		PanicsTotal: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "mailveil_panics_total",
				Help: "Total number of recovered panics",
			},
		),
	}
}

// RecordHTTPRequest 记录一次 HTTP 请求
func (m *Metrics) RecordHTTPRequest(method, path, status string, duration time.Duration) {
	m.HTTPRequestsTotal.WithLabelValues(method, path, status).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}

// RecordInbound 记录一次入站路由结果。实现 service.MetricsRecorder。
func (m *Metrics) RecordInbound(path, outcome string) {
	m.InboundTotal.WithLabelValues(path, outcome).Inc()
}

// RecordForward 记录一次转发投递结果。实现 service.MetricsRecorder。
func (m *Metrics) RecordForward(success bool) {
	result := "success"
	if !success {
		result = "failure"
	}
	m.ForwardsTotal.WithLabelValues(result).Inc()
}

// RecordOutbound 记录一次出站发信结果
func (m *Metrics) RecordOutbound(success bool) {
	result := "success"
	if !success {
		result = "failure"
	}
	m.OutboundTotal.WithLabelValues(result).Inc()
}

// RecordError 记录一次错误
func (m *Metrics) RecordError(errType, component string) {
	m.ErrorsTotal.WithLabelValues(errType, component).Inc()
}

// RecordPanic 记录一次 panic 恢复
func (m *Metrics) RecordPanic() {
	m.PanicsTotal.Inc()
}
