package middleware

import (
	"strconv"
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/gatewarden/gatewarden/internal/config"
	"github.com/gatewarden/gatewarden/internal/models"
	"github.com/gatewarden/gatewarden/internal/monitoring"
	"github.com/gatewarden/gatewarden/internal/rbac"
	"github.com/gatewarden/gatewarden/pkg/logger"
)

// Enforcer answers authorization checks for route guards. Resolved
// permission sets are memoized per user in an LRU keyed on the role
// table generation, so a role reload invalidates every cached entry.
type Enforcer struct {
	manager *rbac.Manager
	cache   *lru.Cache[string, map[string]struct{}]
	metrics *monitoring.Metrics
	logger  logger.Logger
}

func NewEnforcer(cfg config.RBACConfig, manager *rbac.Manager, metrics *monitoring.Metrics, log logger.Logger) (*Enforcer, error) {
	size := cfg.UserCacheSize
	if size <= 0 {
		size = 1024
	}
	cache, err := lru.New[string, map[string]struct{}](size)
	if err != nil {
		return nil, err
	}
	return &Enforcer{manager: manager, cache: cache, metrics: metrics, logger: log}, nil
}

func (e *Enforcer) permissions(user *models.AuthenticatedUser) map[string]struct{} {
	key := cacheKey(e.manager.Generation(), user)
	if perms, ok := e.cache.Get(key); ok {
		return perms
	}
	perms := e.manager.UserPermissions(user)
	e.cache.Add(key, perms)
	return perms
}

// HasPermission checks one permission for the user, wildcards included.
func (e *Enforcer) HasPermission(user *models.AuthenticatedUser, permission string) bool {
	return rbac.MatchesPermissionSet(e.permissions(user), permission)
}

// HasAllPermissions requires every listed permission.
func (e *Enforcer) HasAllPermissions(user *models.AuthenticatedUser, permissions []string) bool {
	perms := e.permissions(user)
	for _, p := range permissions {
		if !rbac.MatchesPermissionSet(perms, p) {
			return false
		}
	}
	return true
}

// HasAnyPermission requires at least one of the listed permissions.
func (e *Enforcer) HasAnyPermission(user *models.AuthenticatedUser, permissions []string) bool {
	perms := e.permissions(user)
	for _, p := range permissions {
		if rbac.MatchesPermissionSet(perms, p) {
			return true
		}
	}
	return false
}

func cacheKey(gen uint64, user *models.AuthenticatedUser) string {
	parts := []string{
		strconv.FormatUint(gen, 10),
		user.UserID,
		strings.Join(user.Roles, ","),
		strings.Join(user.Permissions, ","),
	}
	return strings.Join(parts, "|")
}
