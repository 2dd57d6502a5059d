package models

import "strings"

// AuthenticatedUser is the normalized identity produced by JWT verification.
// The payload is mapped into this structure regardless of the auth provider
// (local, azure, google, apple, github). It is constructed once per request,
// attached to the Gin context, and never persisted.
type AuthenticatedUser struct {
	UserID      string                 `json:"user_id"`
	Email       string                 `json:"email,omitempty"`
	Roles       []string               `json:"roles"`
	Permissions []string               `json:"permissions"`
	TenantID    string                 `json:"tenant_id,omitempty"`
	Provider    string                 `json:"provider"`
	RawClaims   map[string]interface{} `json:"-"`
}

// HasRole reports whether the user holds the given role.
func (u *AuthenticatedUser) HasRole(role string) bool {
	for _, r := range u.Roles {
		if r == role {
			return true
		}
	}
	return false
}

// HasAnyRole reports whether the user holds at least one of the given roles.
func (u *AuthenticatedUser) HasAnyRole(roles ...string) bool {
	for _, role := range roles {
		if u.HasRole(role) {
			return true
		}
	}
	return false
}

// HasPermission checks a permission against the user's direct permission
// claims. Wildcards are honored: "read:*" matches "read:users" and the
// global "*" matches everything.
func (u *AuthenticatedUser) HasPermission(permission string) bool {
	for _, p := range u.Permissions {
		if p == "*" || p == permission {
			return true
		}
	}

	action, _, found := strings.Cut(permission, ":")
	if found {
		prefix := action + ":*"
		for _, p := range u.Permissions {
			if p == prefix {
				return true
			}
		}
	}
	return false
}

// HasAnyPermission reports whether any of the given permissions is granted.
func (u *AuthenticatedUser) HasAnyPermission(permissions ...string) bool {
	for _, p := range permissions {
		if u.HasPermission(p) {
			return true
		}
	}
	return false
}

// GetClaim returns a claim from the original token payload.
func (u *AuthenticatedUser) GetClaim(claim string) (interface{}, bool) {
	v, ok := u.RawClaims[claim]
	return v, ok
}

// IsAdmin reports whether the user holds one of the conventional admin roles.
func (u *AuthenticatedUser) IsAdmin() bool {
	return u.HasAnyRole("admin", "super_admin", "administrator")
}

// DisplayName returns the best human-readable name available.
func (u *AuthenticatedUser) DisplayName() string {
	if name, ok := u.RawClaims["name"].(string); ok && name != "" {
		return name
	}
	if name, ok := u.RawClaims["preferred_username"].(string); ok && name != "" {
		return name
	}
	if u.Email != "" {
		return u.Email
	}
	return u.UserID
}
