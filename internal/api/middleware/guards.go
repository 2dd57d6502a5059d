package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// forbidden writes the 403 contract: a generic body that names neither
// the missing role nor the missing permission.
func forbidden(c *gin.Context) {
	c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
		"detail": "Insufficient permissions",
	})
}

// RequireAuth rejects requests that reached a guarded route without an
// authenticated identity, which happens when the route was listed as
// exempt by mistake.
func RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		if _, ok := CurrentUser(c); !ok {
			unauthorized(c, "missing_token", "Not authenticated")
			return
		}
		c.Next()
	}
}

// RequireRole admits identities holding at least one of the given roles.
func (e *Enforcer) RequireRole(roles ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		user, ok := CurrentUser(c)
		if !ok {
			unauthorized(c, "missing_token", "Not authenticated")
			return
		}
		if !user.HasAnyRole(roles...) {
			e.metrics.AuthzDenials.WithLabelValues("role").Inc()
			e.logger.Warn("role check failed",
				"user_id", user.UserID,
				"required_roles", roles,
				"path", c.Request.URL.Path)
			forbidden(c)
			return
		}
		c.Next()
	}
}

// RequirePermission admits identities holding all given permissions,
// directly or through a wildcard grant.
func (e *Enforcer) RequirePermission(permissions ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		user, ok := CurrentUser(c)
		if !ok {
			unauthorized(c, "missing_token", "Not authenticated")
			return
		}
		if !e.HasAllPermissions(user, permissions) {
			e.metrics.AuthzDenials.WithLabelValues("permission").Inc()
			e.logger.Warn("permission check failed",
				"user_id", user.UserID,
				"required_permissions", permissions,
				"path", c.Request.URL.Path)
			forbidden(c)
			return
		}
		c.Next()
	}
}

// RequireAnyPermission admits identities holding at least one of the
// given permissions.
func (e *Enforcer) RequireAnyPermission(permissions ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		user, ok := CurrentUser(c)
		if !ok {
			unauthorized(c, "missing_token", "Not authenticated")
			return
		}
		if !e.HasAnyPermission(user, permissions) {
			e.metrics.AuthzDenials.WithLabelValues("permission").Inc()
			forbidden(c)
			return
		}
		c.Next()
	}
}
