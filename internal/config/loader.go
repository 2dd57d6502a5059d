package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// Load reads configuration with priority order:
// 1. Environment variables (GATEWARDEN_*)
// 2. Configuration file (config.yaml)
// 3. Default values
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath("/etc/gatewarden/")
	v.AddConfigPath("./configs/")
	v.AddConfigPath(".")

	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.SetEnvPrefix("GATEWARDEN")

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		// Config file not found - continue with env vars and defaults.
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &config, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("environment", "development")
	v.SetDefault("port", 8080)
	v.SetDefault("log_level", "info")

	// JWT defaults. Empty defaults keep env-only keys visible to Unmarshal.
	v.SetDefault("jwt.enabled", true)
	v.SetDefault("jwt.secret", "")
	v.SetDefault("jwt.public_key", "")
	v.SetDefault("jwt.private_key", "")
	v.SetDefault("jwt.issuer", "")
	v.SetDefault("jwt.algorithm", "HS256")
	v.SetDefault("jwt.token_header", "Authorization")
	v.SetDefault("jwt.tenant_claim", "tenant_id")
	v.SetDefault("jwt.verify_expiry", true)
	v.SetDefault("jwt.leeway_seconds", 0)
	v.SetDefault("jwt.exempt_paths", []string{
		"/health",
		"/metrics",
		"/docs",
		"/openapi.json",
		"/auth/login",
		"/auth/refresh",
		"/auth/sso/*",
	})

	// RBAC defaults
	v.SetDefault("rbac.enabled", true)
	v.SetDefault("rbac.user_cache_size", 1024)
	v.SetDefault("rbac.roles_file", "")
	v.SetDefault("rbac.default_role", "")

	// Rate limit defaults
	v.SetDefault("rate_limit.enabled", true)
	v.SetDefault("rate_limit.requests_per_minute", 100)
	v.SetDefault("rate_limit.burst_size", 20)
	v.SetDefault("rate_limit.backend", "memory")
	v.SetDefault("rate_limit.redis_addr", "")
	v.SetDefault("rate_limit.redis_key_prefix", "gatewarden:rl:")
	v.SetDefault("rate_limit.redis_pool_size", 50)
	v.SetDefault("rate_limit.timeout_seconds", 5.0)
	v.SetDefault("rate_limit.max_entries", 100000)
	v.SetDefault("rate_limit.include_headers", true)
	v.SetDefault("rate_limit.fail_open", true)
	v.SetDefault("rate_limit.trust_proxy_headers", false)
	v.SetDefault("rate_limit.route_limits", map[string]interface{}{
		"/health":  map[string]interface{}{"unlimited": true},
		"/metrics": map[string]interface{}{"unlimited": true},
	})

	// Tenant defaults
	v.SetDefault("tenant.enabled", true)
	v.SetDefault("tenant.header_name", "X-Tenant-ID")
	v.SetDefault("tenant.jwt_claim", "tenant_id")
	v.SetDefault("tenant.fallback_to_user_org", true)
	v.SetDefault("tenant.org_claim_name", "organization_id")
	v.SetDefault("tenant.validate_tenant", false)
	v.SetDefault("tenant.require_tenant", false)
	v.SetDefault("tenant.allow_admin_override", true)
	v.SetDefault("tenant.admin_role", "super_admin")
	v.SetDefault("tenant.store", "none")
	v.SetDefault("tenant.redis_addr", "")
	v.SetDefault("tenant.timeout_seconds", 5.0)
	v.SetDefault("tenant.exclude_paths", []string{"/health", "/metrics", "/docs", "/openapi.json"})

	// Audit defaults
	v.SetDefault("audit.enabled", true)
	v.SetDefault("audit.backend", "logging")
	v.SetDefault("audit.redis_addr", "")
	v.SetDefault("audit.log_level", "info")
	v.SetDefault("audit.stream_key", "gatewarden:audit")
	v.SetDefault("audit.stream_max_len", 100000)
	v.SetDefault("audit.timeout_seconds", 5.0)
	v.SetDefault("audit.max_body_log_size", 10*1024)
	v.SetDefault("audit.include_query_params", true)
	v.SetDefault("audit.include_request_headers", false)
	v.SetDefault("audit.exclude_paths", []string{"/health", "/metrics", "/docs", "/openapi.json"})
	v.SetDefault("audit.exclude_methods", []string{"OPTIONS"})
	v.SetDefault("audit.redact_replacement", "[REDACTED]")
	v.SetDefault("audit.trust_proxy_headers", false)
	v.SetDefault("audit.redact_headers", []string{
		"Authorization",
		"Cookie",
		"Set-Cookie",
		"X-API-Key",
		"X-Auth-Token",
		"X-Session-ID",
	})
	v.SetDefault("audit.redact_fields", []string{
		"password",
		"passwd",
		"secret",
		"token",
		"api_key",
		"apikey",
		"credit_card",
		"card_number",
		"cvv",
		"ssn",
		"social_security",
		"access_token",
		"refresh_token",
	})
}
