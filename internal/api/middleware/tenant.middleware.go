package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/gatewarden/gatewarden/internal/auth"
	"github.com/gatewarden/gatewarden/internal/config"
	"github.com/gatewarden/gatewarden/internal/monitoring"
	"github.com/gatewarden/gatewarden/internal/tenant"
	"github.com/gatewarden/gatewarden/pkg/logger"
)

// Tenant resolves the effective tenant for the authenticated identity
// and propagates it on the request context, so stores and audit code
// downstream see the same tenant without re-deriving it. Requests that
// skipped authentication (exempt paths) pass through untouched.
func Tenant(cfg config.TenantConfig, resolver *tenant.Resolver, metrics *monitoring.Metrics, log logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		if auth.PathExempt(cfg.ExcludePaths, c.Request.URL.Path) {
			c.Next()
			return
		}
		user, ok := CurrentUser(c)
		if !ok {
			c.Next()
			return
		}

		headerValue := c.GetHeader(cfg.HeaderName)
		resolved, info, err := resolver.Resolve(c.Request.Context(), user, headerValue)
		if err != nil {
			te, ok := tenant.AsError(err)
			if !ok {
				metrics.TenantResolutions.WithLabelValues("store_error").Inc()
				log.Error("tenant store lookup failed", "user_id", user.UserID, "error", err)
				c.AbortWithStatusJSON(http.StatusServiceUnavailable, gin.H{
					"detail": "Tenant validation unavailable",
				})
				return
			}
			metrics.TenantResolutions.WithLabelValues("denied").Inc()
			log.Warn("tenant resolution rejected",
				"user_id", user.UserID,
				"status", te.Status,
				"error", te.Error())
			c.AbortWithStatusJSON(te.Status, gin.H{"detail": te.ClientMessage()})
			return
		}

		if resolved == "" {
			metrics.TenantResolutions.WithLabelValues("none").Inc()
			c.Next()
			return
		}
		metrics.TenantResolutions.WithLabelValues("resolved").Inc()

		c.Set(ContextTenantKey, resolved)
		c.Header(cfg.HeaderName, resolved)

		ctx := c.Request.Context()
		if info != nil {
			ctx = tenant.WithInfo(ctx, info)
		} else {
			ctx = tenant.WithID(ctx, resolved)
		}
		c.Request = c.Request.WithContext(ctx)

		c.Next()
	}
}
