package tenant

import (
	"context"
	"sync/atomic"

	"github.com/gatewarden/gatewarden/internal/config"
	"github.com/gatewarden/gatewarden/internal/models"
	"github.com/gatewarden/gatewarden/pkg/logger"
)

// Resolver determines the effective tenant for a request. Sources in
// priority order: override header (admins only), the identity's tenant
// claim, then the organization claim when fallback is enabled. Any
// presented override header runs the admin gate, even one matching the
// identity's own tenant; accepting it silently would let a client
// probe which header values pass.
type Resolver struct {
	cfg    config.TenantConfig
	store  Store
	logger logger.Logger

	claimResolutions    uint64
	orgResolutions      uint64
	overrideResolutions uint64
	emptyResolutions    uint64
	deniedOverrides     uint64
}

func NewResolver(cfg config.TenantConfig, store Store, log logger.Logger) *Resolver {
	return &Resolver{cfg: cfg, store: store, logger: log}
}

// Resolve picks the tenant for user, honoring headerValue when
// override rules permit, and validates it against the store when
// validation is on. Returns the resolved id and the store record when
// one was fetched.
func (r *Resolver) Resolve(ctx context.Context, user *models.AuthenticatedUser, headerValue string) (string, *Info, error) {
	claimTenant := user.TenantID
	fromOrg := false
	if claimTenant == "" && r.cfg.FallbackToUserOrg {
		if raw, ok := user.GetClaim(r.cfg.OrgClaimName); ok {
			if org, ok := raw.(string); ok {
				claimTenant = org
				fromOrg = claimTenant != ""
			}
		}
	}

	resolved := claimTenant
	overridden := false
	if headerValue != "" {
		if !r.cfg.AllowAdminOverride || !user.HasRole(r.cfg.AdminRole) {
			atomic.AddUint64(&r.deniedOverrides, 1)
			r.logger.Warn("tenant override rejected",
				"user_id", user.UserID,
				"requested_tenant", headerValue,
				"claim_tenant", claimTenant)
			return "", nil, AccessDenied(headerValue)
		}
		r.logger.Info("tenant override by admin",
			"user_id", user.UserID,
			"requested_tenant", headerValue)
		resolved = headerValue
		overridden = true
	}

	if resolved == "" {
		atomic.AddUint64(&r.emptyResolutions, 1)
		if r.cfg.RequireTenant {
			return "", nil, MissingContext()
		}
		return "", nil, nil
	}

	if r.cfg.ValidateTenant {
		if r.store == nil {
			r.logger.Error("tenant validation enabled without a store", "tenant_id", resolved)
			return "", nil, ValidationUnavailable()
		}
		info, err := r.store.GetTenant(ctx, resolved)
		if err != nil {
			return "", nil, err
		}
		if !info.Active {
			return "", nil, Inactive(resolved)
		}
		r.countResolution(overridden, fromOrg)
		return resolved, info, nil
	}
	r.countResolution(overridden, fromOrg)
	return resolved, nil, nil
}

func (r *Resolver) countResolution(overridden, fromOrg bool) {
	switch {
	case overridden:
		atomic.AddUint64(&r.overrideResolutions, 1)
	case fromOrg:
		atomic.AddUint64(&r.orgResolutions, 1)
	default:
		atomic.AddUint64(&r.claimResolutions, 1)
	}
}

// Stats reports resolution counts by source for diagnostics.
func (r *Resolver) Stats() map[string]interface{} {
	return map[string]interface{}{
		"resolved_from_claim":    atomic.LoadUint64(&r.claimResolutions),
		"resolved_from_org":      atomic.LoadUint64(&r.orgResolutions),
		"resolved_from_override": atomic.LoadUint64(&r.overrideResolutions),
		"resolved_empty":         atomic.LoadUint64(&r.emptyResolutions),
		"denied_overrides":       atomic.LoadUint64(&r.deniedOverrides),
	}
}
