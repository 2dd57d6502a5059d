package config

import (
	"fmt"
	"strings"
)

var symmetricAlgorithms = map[string]bool{
	"HS256": true, "HS384": true, "HS512": true,
}

var asymmetricAlgorithms = map[string]bool{
	"RS256": true, "RS384": true, "RS512": true,
	"ES256": true, "ES384": true, "ES512": true,
}

// IsSymmetricAlgorithm reports whether alg is in the HMAC family.
func IsSymmetricAlgorithm(alg string) bool { return symmetricAlgorithms[alg] }

// IsAsymmetricAlgorithm reports whether alg is in the RSA/ECDSA family.
func IsAsymmetricAlgorithm(alg string) bool { return asymmetricAlgorithms[alg] }

// Validate rejects contradictory settings at startup. The process must not
// start with a config that would silently weaken enforcement.
func (c *Config) Validate() error {
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("invalid port: %d", c.Port)
	}
	if err := c.JWT.Validate(); err != nil {
		return fmt.Errorf("jwt: %w", err)
	}
	if err := c.RateLimit.Validate(); err != nil {
		return fmt.Errorf("rate_limit: %w", err)
	}
	if err := c.Tenant.Validate(); err != nil {
		return fmt.Errorf("tenant: %w", err)
	}
	if err := c.Audit.Validate(); err != nil {
		return fmt.Errorf("audit: %w", err)
	}
	return nil
}

// Validate checks key material against the selected algorithm family.
func (c JWTConfig) Validate() error {
	if !c.Enabled {
		return nil
	}
	switch {
	case symmetricAlgorithms[c.Algorithm]:
		if c.Secret == "" {
			return fmt.Errorf("%s requires a secret key", c.Algorithm)
		}
		if len(c.Secret) < MinSecretLength {
			return fmt.Errorf(
				"secret must be at least %d bytes for %s (got %d); short secrets are vulnerable to brute force",
				MinSecretLength, c.Algorithm, len(c.Secret))
		}
	case asymmetricAlgorithms[c.Algorithm]:
		if c.PublicKey == "" {
			return fmt.Errorf("%s requires a public key", c.Algorithm)
		}
	default:
		return fmt.Errorf("unsupported algorithm %q", c.Algorithm)
	}
	if c.LeewaySeconds < 0 {
		return fmt.Errorf("leeway_seconds cannot be negative")
	}
	return nil
}

// Validate rejects non-positive limits and a redis backend with no address.
func (c RateLimitConfig) Validate() error {
	if !c.Enabled {
		return nil
	}
	if c.RequestsPerMinute <= 0 {
		return fmt.Errorf("requests_per_minute must be positive")
	}
	if c.BurstSize < 0 {
		return fmt.Errorf("burst_size cannot be negative")
	}
	if c.MaxEntries < 0 {
		return fmt.Errorf("max_entries cannot be negative")
	}
	switch c.Backend {
	case "memory":
	case "redis":
		if c.RedisAddr == "" {
			return fmt.Errorf("redis_addr required when backend=redis")
		}
	default:
		return fmt.Errorf("unknown backend %q", c.Backend)
	}
	for pattern, rl := range c.RouteLimits {
		if rl.Unlimited {
			continue
		}
		if rl.RequestsPerMinute <= 0 {
			return fmt.Errorf("route limit for %q must be positive or unlimited", pattern)
		}
	}
	return nil
}

// Validate enforces the fail-closed rule: tenant validation with no store
// to validate against is a startup error, not a per-request surprise.
func (c TenantConfig) Validate() error {
	if !c.Enabled {
		return nil
	}
	switch c.Store {
	case "none", "":
		if c.ValidateTenant {
			return fmt.Errorf("validate_tenant requires a tenant store; configure store=memory or store=redis")
		}
	case "memory":
	case "redis":
		if c.RedisAddr == "" {
			return fmt.Errorf("redis_addr required when store=redis")
		}
	default:
		return fmt.Errorf("unknown store %q", c.Store)
	}
	if c.AllowAdminOverride && c.AdminRole == "" {
		return fmt.Errorf("admin_role required when allow_admin_override is set")
	}
	return nil
}

// Validate checks backend selection and log level.
func (c AuditConfig) Validate() error {
	if !c.Enabled {
		return nil
	}
	switch c.Backend {
	case "logging", "":
	case "redis":
		if c.RedisAddr == "" {
			return fmt.Errorf("redis_addr required when backend=redis")
		}
	default:
		return fmt.Errorf("unknown backend %q", c.Backend)
	}
	if c.MaxBodyLogSize < 0 {
		return fmt.Errorf("max_body_log_size cannot be negative")
	}
	switch strings.ToLower(c.LogLevel) {
	case "", "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("invalid log_level %q", c.LogLevel)
	}
	return nil
}
