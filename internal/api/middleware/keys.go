package middleware

import (
	"github.com/gin-gonic/gin"

	"github.com/gatewarden/gatewarden/internal/models"
)

// Gin context keys set by the pipeline stages.
const (
	ContextUserKey      = "auth_user"
	ContextUserIDKey    = "user_id"
	ContextTenantKey    = "tenant_id"
	ContextRequestIDKey = "request_id"
)

// CurrentUser returns the authenticated identity set by the auth stage.
func CurrentUser(c *gin.Context) (*models.AuthenticatedUser, bool) {
	v, ok := c.Get(ContextUserKey)
	if !ok {
		return nil, false
	}
	user, ok := v.(*models.AuthenticatedUser)
	return user, ok
}

// CurrentTenant returns the tenant id set by the tenant stage.
func CurrentTenant(c *gin.Context) string {
	return c.GetString(ContextTenantKey)
}
