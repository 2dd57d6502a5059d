package middleware

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/gatewarden/gatewarden/internal/monitoring"
)

// Metrics records per-request counters and latency, labeled by tenant
// once the pipeline has resolved one.
func Metrics(m *monitoring.Metrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		tenant := CurrentTenant(c)
		if tenant == "" {
			tenant = "none"
		}
		m.RequestsTotal.WithLabelValues(
			c.Request.Method,
			strconv.Itoa(c.Writer.Status()),
			tenant,
		).Inc()
		m.RequestDuration.WithLabelValues(c.Request.Method, tenant).
			Observe(time.Since(start).Seconds())
	}
}
