package config

import "time"

// Config is the root gatewarden configuration. Loaded once at startup,
// validated, and immutable afterward.
type Config struct {
	Environment string `mapstructure:"environment" yaml:"environment"`
	Port        int    `mapstructure:"port" yaml:"port"`
	LogLevel    string `mapstructure:"log_level" yaml:"log_level"`

	JWT       JWTConfig       `mapstructure:"jwt" yaml:"jwt"`
	RBAC      RBACConfig      `mapstructure:"rbac" yaml:"rbac"`
	RateLimit RateLimitConfig `mapstructure:"rate_limit" yaml:"rate_limit"`
	Tenant    TenantConfig    `mapstructure:"tenant" yaml:"tenant"`
	Audit     AuditConfig     `mapstructure:"audit" yaml:"audit"`
}

// MinSecretLength is the minimum secret size for HMAC algorithms.
// NIST SP 800-117 recommends key length >= hash output size
// (256 bits = 32 bytes for HS256).
const MinSecretLength = 32

// JWTConfig configures the token verifier.
type JWTConfig struct {
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`

	Secret     string   `mapstructure:"secret" yaml:"secret"`
	Algorithm  string   `mapstructure:"algorithm" yaml:"algorithm"`
	PublicKey  string   `mapstructure:"public_key" yaml:"public_key"`
	PrivateKey string   `mapstructure:"private_key" yaml:"private_key"`
	Issuer     string   `mapstructure:"issuer" yaml:"issuer"`
	Audience   []string `mapstructure:"audience" yaml:"audience"`

	// Token extraction sources, tried in order: header, cookie, query param.
	TokenHeader     string `mapstructure:"token_header" yaml:"token_header"`
	TokenCookie     string `mapstructure:"token_cookie" yaml:"token_cookie"`
	TokenQueryParam string `mapstructure:"token_query_param" yaml:"token_query_param"`

	// TenantClaim is the claim holding the tenant id ("tenant_id" default).
	TenantClaim string `mapstructure:"tenant_claim" yaml:"tenant_claim"`

	// ExemptPaths bypass verification entirely. Glob patterns
	// ("/auth/sso/*") and exact paths are both accepted.
	ExemptPaths []string `mapstructure:"exempt_paths" yaml:"exempt_paths"`

	VerifyExpiry  bool `mapstructure:"verify_expiry" yaml:"verify_expiry"`
	LeewaySeconds int  `mapstructure:"leeway_seconds" yaml:"leeway_seconds"`
}

// Leeway returns the clock-skew tolerance as a duration.
func (c JWTConfig) Leeway() time.Duration {
	return time.Duration(c.LeewaySeconds) * time.Second
}

// RBACConfig configures role definitions and the permission engine.
type RBACConfig struct {
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`

	// Roles defined inline: role name -> definition.
	Roles map[string]RoleSpec `mapstructure:"roles" yaml:"roles"`

	// RolesFile points at a YAML role file. When set it is merged over the
	// inline roles and watched for changes (hot reload).
	RolesFile string `mapstructure:"roles_file" yaml:"roles_file"`

	// DefaultRole is assigned to users that carry no roles at all.
	DefaultRole string `mapstructure:"default_role" yaml:"default_role"`

	// UserCacheSize bounds the per-user resolved-permission LRU cache.
	UserCacheSize int `mapstructure:"user_cache_size" yaml:"user_cache_size"`
}

// RoleSpec is the config-file shape of a role definition.
type RoleSpec struct {
	Permissions []string `mapstructure:"permissions" yaml:"permissions"`
	Inherits    []string `mapstructure:"inherits" yaml:"inherits"`
	Description string   `mapstructure:"description" yaml:"description"`
}

// RouteLimit overrides the default rate limit for a path pattern.
// Unlimited opts the route out of rate limiting entirely.
type RouteLimit struct {
	RequestsPerMinute int  `mapstructure:"requests_per_minute" yaml:"requests_per_minute"`
	BurstSize         int  `mapstructure:"burst_size" yaml:"burst_size"`
	Unlimited         bool `mapstructure:"unlimited" yaml:"unlimited"`
}

// RateLimitConfig configures the rate limiter.
type RateLimitConfig struct {
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`

	RequestsPerMinute int `mapstructure:"requests_per_minute" yaml:"requests_per_minute"`
	BurstSize         int `mapstructure:"burst_size" yaml:"burst_size"`

	// Backend selects the accounting store: "memory" (process-local,
	// development/single instance) or "redis" (required for
	// multi-instance deployments).
	Backend        string  `mapstructure:"backend" yaml:"backend"`
	RedisAddr      string  `mapstructure:"redis_addr" yaml:"redis_addr"`
	RedisPassword  string  `mapstructure:"redis_password" yaml:"redis_password"`
	RedisDB        int     `mapstructure:"redis_db" yaml:"redis_db"`
	RedisKeyPrefix string  `mapstructure:"redis_key_prefix" yaml:"redis_key_prefix"`
	RedisPoolSize  int     `mapstructure:"redis_pool_size" yaml:"redis_pool_size"`
	TimeoutSeconds float64 `mapstructure:"timeout_seconds" yaml:"timeout_seconds"`

	// MaxEntries bounds the in-memory bucket table against spoofed
	// identifiers. Oldest entries are evicted in batches past this point.
	MaxEntries int `mapstructure:"max_entries" yaml:"max_entries"`

	// RouteLimits maps path patterns to overrides.
	RouteLimits map[string]RouteLimit `mapstructure:"route_limits" yaml:"route_limits"`

	IncludeHeaders bool `mapstructure:"include_headers" yaml:"include_headers"`

	// FailOpen allows requests through when the distributed backend is
	// unreachable. Availability over strict enforcement; a policy, not
	// a hardcode.
	FailOpen bool `mapstructure:"fail_open" yaml:"fail_open"`

	// TrustProxyHeaders enables X-Forwarded-For / X-Real-IP for the
	// IP-keyed accounting identifier. Off by default: a forged header
	// must not mint a fresh bucket per request.
	TrustProxyHeaders bool `mapstructure:"trust_proxy_headers" yaml:"trust_proxy_headers"`
}

// BurstMultiplier derives the bucket-capacity multiplier from the
// configured burst size.
func (c RateLimitConfig) BurstMultiplier() float64 {
	if c.RequestsPerMinute <= 0 {
		return 1.0
	}
	return float64(c.RequestsPerMinute+c.BurstSize) / float64(c.RequestsPerMinute)
}

// Timeout returns the backend round-trip budget.
func (c RateLimitConfig) Timeout() time.Duration {
	if c.TimeoutSeconds <= 0 {
		return 5 * time.Second
	}
	return time.Duration(c.TimeoutSeconds * float64(time.Second))
}

// TenantConfig configures tenant resolution and isolation.
type TenantConfig struct {
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`

	HeaderName        string `mapstructure:"header_name" yaml:"header_name"`
	JWTClaim          string `mapstructure:"jwt_claim" yaml:"jwt_claim"`
	FallbackToUserOrg bool   `mapstructure:"fallback_to_user_org" yaml:"fallback_to_user_org"`
	OrgClaimName      string `mapstructure:"org_claim_name" yaml:"org_claim_name"`

	// ValidateTenant requires the resolved tenant to exist and be active
	// in the configured store. With no store configured this fails at
	// startup validation, and the resolver fails closed at request time.
	ValidateTenant bool `mapstructure:"validate_tenant" yaml:"validate_tenant"`

	// AllowAdminOverride honors the tenant header for identities holding
	// AdminRole. Presenting the header without the role, or while the
	// override is disabled, is a hard 403.
	AllowAdminOverride bool   `mapstructure:"allow_admin_override" yaml:"allow_admin_override"`
	AdminRole          string `mapstructure:"admin_role" yaml:"admin_role"`

	// RequireTenant rejects requests for which no tenant resolves at
	// all. Off by default: routes that are not tenant-scoped stay usable.
	RequireTenant bool `mapstructure:"require_tenant" yaml:"require_tenant"`

	ExcludePaths []string `mapstructure:"exclude_paths" yaml:"exclude_paths"`

	// Store selects the tenant store: "none", "memory" or "redis".
	Store          string  `mapstructure:"store" yaml:"store"`
	RedisAddr      string  `mapstructure:"redis_addr" yaml:"redis_addr"`
	RedisPassword  string  `mapstructure:"redis_password" yaml:"redis_password"`
	RedisDB        int     `mapstructure:"redis_db" yaml:"redis_db"`
	TimeoutSeconds float64 `mapstructure:"timeout_seconds" yaml:"timeout_seconds"`
}

// Timeout returns the tenant-store lookup budget.
func (c TenantConfig) Timeout() time.Duration {
	if c.TimeoutSeconds <= 0 {
		return 5 * time.Second
	}
	return time.Duration(c.TimeoutSeconds * float64(time.Second))
}

// AuditConfig configures request audit recording.
type AuditConfig struct {
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`

	// Backend selects record storage: "logging" (structured log) or
	// "redis" (Redis Stream).
	Backend        string  `mapstructure:"backend" yaml:"backend"`
	LogLevel       string  `mapstructure:"log_level" yaml:"log_level"`
	RedisAddr      string  `mapstructure:"redis_addr" yaml:"redis_addr"`
	RedisPassword  string  `mapstructure:"redis_password" yaml:"redis_password"`
	RedisDB        int     `mapstructure:"redis_db" yaml:"redis_db"`
	StreamKey      string  `mapstructure:"stream_key" yaml:"stream_key"`
	StreamMaxLen   int64   `mapstructure:"stream_max_len" yaml:"stream_max_len"`
	TimeoutSeconds float64 `mapstructure:"timeout_seconds" yaml:"timeout_seconds"`

	LogRequestBody        bool `mapstructure:"log_request_body" yaml:"log_request_body"`
	MaxBodyLogSize        int  `mapstructure:"max_body_log_size" yaml:"max_body_log_size"`
	IncludeQueryParams    bool `mapstructure:"include_query_params" yaml:"include_query_params"`
	IncludeRequestHeaders bool `mapstructure:"include_request_headers" yaml:"include_request_headers"`

	ExcludePaths   []string `mapstructure:"exclude_paths" yaml:"exclude_paths"`
	ExcludeMethods []string `mapstructure:"exclude_methods" yaml:"exclude_methods"`

	RedactHeaders     []string `mapstructure:"redact_headers" yaml:"redact_headers"`
	RedactFields      []string `mapstructure:"redact_fields" yaml:"redact_fields"`
	RedactReplacement string   `mapstructure:"redact_replacement" yaml:"redact_replacement"`

	// TrustProxyHeaders enables X-Forwarded-For / X-Real-IP for client IP
	// extraction. Off by default: a forged header must not be able to
	// spoof the audit trail.
	TrustProxyHeaders bool `mapstructure:"trust_proxy_headers" yaml:"trust_proxy_headers"`
}

// Timeout returns the audit-backend write budget.
func (c AuditConfig) Timeout() time.Duration {
	if c.TimeoutSeconds <= 0 {
		return 5 * time.Second
	}
	return time.Duration(c.TimeoutSeconds * float64(time.Second))
}
