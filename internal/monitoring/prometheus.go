package monitoring

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics collects pipeline counters. Label cardinality is kept to
// tenant/outcome pairs; paths are not labels to avoid unbounded series.
type Metrics struct {
	AuthAttempts       *prometheus.CounterVec
	AuthzDenials       *prometheus.CounterVec
	RateLimitDecisions *prometheus.CounterVec
	TenantResolutions  *prometheus.CounterVec
	AuditWriteFailures prometheus.Counter
	RequestsTotal      *prometheus.CounterVec
	RequestDuration    *prometheus.HistogramVec
}

// NewMetrics registers all collectors on reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		AuthAttempts: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "gatewarden_auth_attempts_total",
			Help: "JWT verification attempts by outcome.",
		}, []string{"outcome"}),
		AuthzDenials: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "gatewarden_authz_denials_total",
			Help: "Authorization denials by reason.",
		}, []string{"reason"}),
		RateLimitDecisions: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "gatewarden_ratelimit_decisions_total",
			Help: "Rate limit decisions by outcome.",
		}, []string{"outcome"}),
		TenantResolutions: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "gatewarden_tenant_resolutions_total",
			Help: "Tenant resolution results by outcome.",
		}, []string{"outcome"}),
		AuditWriteFailures: factory.NewCounter(prometheus.CounterOpts{
			Name: "gatewarden_audit_write_failures_total",
			Help: "Audit backend write failures.",
		}),
		RequestsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "gatewarden_http_requests_total",
			Help: "HTTP requests by method, status, and tenant.",
		}, []string{"method", "status", "tenant"}),
		RequestDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "gatewarden_http_request_duration_seconds",
			Help:    "HTTP request latency.",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "tenant"}),
	}
}

// NewDefaultMetrics registers on the global registry.
func NewDefaultMetrics() *Metrics {
	return NewMetrics(prometheus.DefaultRegisterer)
}
