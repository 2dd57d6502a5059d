package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/gatewarden/gatewarden/internal/auth"
	"github.com/gatewarden/gatewarden/internal/config"
	"github.com/gatewarden/gatewarden/internal/monitoring"
	"github.com/gatewarden/gatewarden/pkg/logger"
)

// Auth verifies the bearer token and attaches the normalized identity to
// the request context. Exempt paths pass through without touching the
// token at all, so an expired credential on a public path is not an error.
func Auth(cfg config.JWTConfig, verifier *auth.Verifier, metrics *monitoring.Metrics, log logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		if auth.PathExempt(cfg.ExemptPaths, c.Request.URL.Path) {
			c.Next()
			return
		}

		tokenString := extractToken(c, cfg)
		if tokenString == "" {
			missing := auth.ErrMissingToken()
			metrics.AuthAttempts.WithLabelValues(missing.ErrorCode()).Inc()
			unauthorized(c, missing.ErrorCode(), missing.ClientMessage())
			return
		}

		user, claims, err := verifier.Verify(tokenString)
		if err != nil {
			authErr, ok := err.(*auth.Error)
			if !ok {
				authErr = &auth.Error{Kind: auth.KindInvalidToken, Detail: err.Error()}
			}
			metrics.AuthAttempts.WithLabelValues(authErr.ErrorCode()).Inc()
			log.Warn("authentication failed",
				"path", c.Request.URL.Path,
				"client_ip", c.ClientIP(),
				"error", err)
			unauthorized(c, authErr.ErrorCode(), authErr.ClientMessage())
			return
		}

		metrics.AuthAttempts.WithLabelValues("success").Inc()

		c.Set(ContextUserKey, user)
		c.Set(ContextUserIDKey, user.UserID)
		c.Set("auth_claims", claims)

		c.Header("X-Content-Type-Options", "nosniff")
		c.Header("X-Frame-Options", "DENY")

		c.Next()
	}
}

// extractToken tries the configured sources in priority order: the
// Authorization header, a cookie, then a query parameter.
func extractToken(c *gin.Context, cfg config.JWTConfig) string {
	header := cfg.TokenHeader
	if header == "" {
		header = "Authorization"
	}
	if raw := c.GetHeader(header); raw != "" {
		if token, ok := strings.CutPrefix(raw, "Bearer "); ok {
			return strings.TrimSpace(token)
		}
		if header != "Authorization" {
			return strings.TrimSpace(raw)
		}
	}
	if cfg.TokenCookie != "" {
		if cookie, err := c.Cookie(cfg.TokenCookie); err == nil && cookie != "" {
			return cookie
		}
	}
	if cfg.TokenQueryParam != "" {
		if token := c.Query(cfg.TokenQueryParam); token != "" {
			return token
		}
	}
	return ""
}

// unauthorized writes the 401 contract: WWW-Authenticate challenge plus
// a generic body. Nothing about the real failure leaks to the caller.
func unauthorized(c *gin.Context, code, message string) {
	c.Header("WWW-Authenticate", "Bearer")
	c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
		"error":  code,
		"detail": message,
	})
}
