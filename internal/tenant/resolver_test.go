package tenant

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gatewarden/gatewarden/internal/config"
	"github.com/gatewarden/gatewarden/internal/models"
	"github.com/gatewarden/gatewarden/pkg/logger"
)

func resolverConfig() config.TenantConfig {
	return config.TenantConfig{
		HeaderName:         "X-Tenant-ID",
		JWTClaim:           "tenant",
		FallbackToUserOrg:  true,
		OrgClaimName:       "org",
		AllowAdminOverride: true,
		AdminRole:          "super_admin",
	}
}

func member(tenantID string, roles ...string) *models.AuthenticatedUser {
	return &models.AuthenticatedUser{
		UserID:   "u1",
		TenantID: tenantID,
		Roles:    roles,
	}
}

func TestResolveFromClaim(t *testing.T) {
	r := NewResolver(resolverConfig(), nil, logger.NewNop())
	id, _, err := r.Resolve(context.Background(), member("acme"), "")
	require.NoError(t, err)
	assert.Equal(t, "acme", id)
}

func TestResolveOrgFallback(t *testing.T) {
	r := NewResolver(resolverConfig(), nil, logger.NewNop())
	user := member("")
	user.RawClaims = map[string]interface{}{"org": "fallback-org"}
	id, _, err := r.Resolve(context.Background(), user, "")
	require.NoError(t, err)
	assert.Equal(t, "fallback-org", id)
}

func TestResolveHeaderDeniedForNonAdmin(t *testing.T) {
	r := NewResolver(resolverConfig(), nil, logger.NewNop())
	_, _, err := r.Resolve(context.Background(), member("acme", "member"), "other")
	te, ok := AsError(err)
	require.True(t, ok)
	assert.Equal(t, 403, te.Status)
}

func TestResolveHeaderDeniedWhenOverrideDisabled(t *testing.T) {
	cfg := resolverConfig()
	cfg.AllowAdminOverride = false
	r := NewResolver(cfg, nil, logger.NewNop())
	_, _, err := r.Resolve(context.Background(), member("acme", "super_admin"), "other")
	te, ok := AsError(err)
	require.True(t, ok)
	assert.Equal(t, 403, te.Status)
}

func TestResolveHeaderAllowedForAdmin(t *testing.T) {
	r := NewResolver(resolverConfig(), nil, logger.NewNop())
	id, _, err := r.Resolve(context.Background(), member("acme", "super_admin"), "other")
	require.NoError(t, err)
	assert.Equal(t, "other", id)
}

func TestResolveMatchingHeaderStillRunsAdminGate(t *testing.T) {
	r := NewResolver(resolverConfig(), nil, logger.NewNop())

	// Presenting the header at all is an override attempt, even with a
	// value equal to the identity's own tenant.
	_, _, err := r.Resolve(context.Background(), member("acme", "member"), "acme")
	te, ok := AsError(err)
	require.True(t, ok)
	assert.Equal(t, 403, te.Status)

	id, _, err := r.Resolve(context.Background(), member("acme", "super_admin"), "acme")
	require.NoError(t, err)
	assert.Equal(t, "acme", id)
}

func TestResolveValidationWithoutStoreFailsClosed(t *testing.T) {
	cfg := resolverConfig()
	cfg.ValidateTenant = true
	r := NewResolver(cfg, nil, logger.NewNop())

	_, _, err := r.Resolve(context.Background(), member("acme"), "")
	te, ok := AsError(err)
	require.True(t, ok)
	assert.Equal(t, 503, te.Status)
}

func TestResolveNoTenantAnywhere(t *testing.T) {
	cfg := resolverConfig()
	cfg.FallbackToUserOrg = false
	r := NewResolver(cfg, nil, logger.NewNop())

	id, _, err := r.Resolve(context.Background(), member(""), "")
	require.NoError(t, err, "tenantless identities are valid when no tenant is required")
	assert.Empty(t, id)

	cfg.RequireTenant = true
	r = NewResolver(cfg, nil, logger.NewNop())
	_, _, err = r.Resolve(context.Background(), member(""), "")
	te, ok := AsError(err)
	require.True(t, ok)
	assert.Equal(t, 400, te.Status)
}

func TestResolveStoreValidation(t *testing.T) {
	store := NewMemoryStore()
	store.Register(Info{ID: "acme", Active: true})
	store.Register(Info{ID: "dormant", Active: false})

	cfg := resolverConfig()
	cfg.ValidateTenant = true
	r := NewResolver(cfg, store, logger.NewNop())

	id, info, err := r.Resolve(context.Background(), member("acme"), "")
	require.NoError(t, err)
	assert.Equal(t, "acme", id)
	require.NotNil(t, info)
	assert.True(t, info.Active)

	_, _, err = r.Resolve(context.Background(), member("dormant"), "")
	te, ok := AsError(err)
	require.True(t, ok)
	assert.Equal(t, 403, te.Status)

	_, _, err = r.Resolve(context.Background(), member("ghost"), "")
	te, ok = AsError(err)
	require.True(t, ok)
	assert.Equal(t, 404, te.Status)
}

func TestContextPropagation(t *testing.T) {
	ctx := context.Background()
	_, ok := IDFromContext(ctx)
	assert.False(t, ok)

	ctx = WithInfo(ctx, &Info{ID: "acme", Active: true})
	id, ok := IDFromContext(ctx)
	require.True(t, ok)
	assert.Equal(t, "acme", id)

	info, ok := InfoFromContext(ctx)
	require.True(t, ok)
	assert.Equal(t, "acme", info.ID)
}

func TestMemoryStoreLifecycle(t *testing.T) {
	store := NewMemoryStore()
	store.Register(Info{ID: "t1", Active: true})

	require.NoError(t, store.SetActive("t1", false))
	info, err := store.GetTenant(context.Background(), "t1")
	require.NoError(t, err)
	assert.False(t, info.Active)

	store.Unregister("t1")
	_, err = store.GetTenant(context.Background(), "t1")
	te, ok := AsError(err)
	require.True(t, ok)
	assert.Equal(t, 404, te.Status)

	assert.Error(t, store.SetActive("missing", true))
}

func TestResolverStats(t *testing.T) {
	r := NewResolver(resolverConfig(), nil, logger.NewNop())
	ctx := context.Background()

	_, _, err := r.Resolve(ctx, member("acme"), "")
	require.NoError(t, err)

	orgUser := member("")
	orgUser.RawClaims = map[string]interface{}{"org": "fallback-org"}
	_, _, err = r.Resolve(ctx, orgUser, "")
	require.NoError(t, err)

	_, _, err = r.Resolve(ctx, member("acme", "super_admin"), "other")
	require.NoError(t, err)

	_, _, err = r.Resolve(ctx, member("acme", "member"), "other")
	require.Error(t, err)

	_, _, err = r.Resolve(ctx, member(""), "")
	require.NoError(t, err)

	stats := r.Stats()
	assert.Equal(t, uint64(1), stats["resolved_from_claim"])
	assert.Equal(t, uint64(1), stats["resolved_from_org"])
	assert.Equal(t, uint64(1), stats["resolved_from_override"])
	assert.Equal(t, uint64(1), stats["denied_overrides"])
	assert.Equal(t, uint64(1), stats["resolved_empty"])
}
