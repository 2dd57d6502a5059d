package middleware

import (
	"fmt"
	"net/http"
	"sort"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/gatewarden/gatewarden/internal/audit"
	"github.com/gatewarden/gatewarden/internal/auth"
	"github.com/gatewarden/gatewarden/internal/config"
	"github.com/gatewarden/gatewarden/internal/monitoring"
	"github.com/gatewarden/gatewarden/internal/ratelimit"
	"github.com/gatewarden/gatewarden/pkg/logger"
)

// RateLimit throttles requests per identifier with one atomic
// check-and-consume per request. Identifier precedence: authenticated
// user, API key, client IP. Route overrides can raise, lower, or remove
// the limit per path pattern.
func RateLimit(cfg config.RateLimitConfig, backend ratelimit.Backend, metrics *monitoring.Metrics, log logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		limit, unlimited := routeLimit(cfg, c.Request.URL.Path)
		if unlimited {
			c.Next()
			return
		}

		identifier := limitIdentifier(c, cfg.TrustProxyHeaders)
		result, err := backend.CheckAndRecord(c.Request.Context(), identifier, limit, time.Minute)
		if err != nil {
			if cfg.FailOpen {
				metrics.RateLimitDecisions.WithLabelValues("fail_open").Inc()
				log.Warn("rate limit backend unavailable, allowing request",
					"identifier", identifier, "error", err)
				c.Next()
				return
			}
			metrics.RateLimitDecisions.WithLabelValues("fail_closed").Inc()
			log.Error("rate limit backend unavailable, rejecting request",
				"identifier", identifier, "error", err)
			c.AbortWithStatusJSON(http.StatusServiceUnavailable, gin.H{
				"detail": "Rate limiting temporarily unavailable",
			})
			return
		}

		if cfg.IncludeHeaders || !result.Allowed {
			for name, value := range result.Headers() {
				c.Header(name, value)
			}
		}

		if !result.Allowed {
			metrics.RateLimitDecisions.WithLabelValues("denied").Inc()
			retry := result.RetryAfterSeconds()
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"detail":      fmt.Sprintf("Rate limit exceeded. Try again in %d seconds.", retry),
				"retry_after": retry,
			})
			return
		}

		metrics.RateLimitDecisions.WithLabelValues("allowed").Inc()
		c.Next()
	}
}

// routeLimit resolves the per-minute limit for a path, honoring route
// overrides and the unlimited sentinel. An exact entry wins over glob
// patterns; among globs the longest pattern wins, so overlapping
// overrides resolve the same way on every request.
func routeLimit(cfg config.RateLimitConfig, path string) (int, bool) {
	if rl, ok := cfg.RouteLimits[path]; ok {
		if rl.Unlimited {
			return 0, true
		}
		return rl.RequestsPerMinute, false
	}

	patterns := make([]string, 0, len(cfg.RouteLimits))
	for pattern := range cfg.RouteLimits {
		patterns = append(patterns, pattern)
	}
	sort.Slice(patterns, func(i, j int) bool {
		if len(patterns[i]) != len(patterns[j]) {
			return len(patterns[i]) > len(patterns[j])
		}
		return patterns[i] < patterns[j]
	})
	for _, pattern := range patterns {
		if auth.PathExempt([]string{pattern}, path) {
			rl := cfg.RouteLimits[pattern]
			if rl.Unlimited {
				return 0, true
			}
			return rl.RequestsPerMinute, false
		}
	}
	return cfg.RequestsPerMinute, false
}

// limitIdentifier picks the accounting key. API keys are truncated so
// the full credential never lands in backend storage or logs. The IP
// key honors forwarding headers only behind the explicit trust flag;
// otherwise a forged X-Forwarded-For would mint a fresh bucket per
// request.
func limitIdentifier(c *gin.Context, trustProxy bool) string {
	if user, ok := CurrentUser(c); ok {
		return "user:" + user.UserID
	}
	if apiKey := c.GetHeader("X-API-Key"); apiKey != "" {
		if len(apiKey) > 8 {
			apiKey = apiKey[:8]
		}
		return "apikey:" + apiKey
	}
	return "ip:" + audit.ClientIP(c.Request, trustProxy)
}
