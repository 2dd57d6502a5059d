package auth

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/golang-jwt/jwt/v5"

	"github.com/gatewarden/gatewarden/internal/config"
	"github.com/gatewarden/gatewarden/internal/models"
)

// Verifier decodes and validates bearer tokens and maps claims onto the
// normalized AuthenticatedUser. It holds no per-request state and is safe
// for concurrent use.
type Verifier struct {
	cfg config.JWTConfig
}

func NewVerifier(cfg config.JWTConfig) (*Verifier, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Verifier{cfg: cfg}, nil
}

// Verify validates the token signature, expiry (with configured leeway),
// and optional issuer/audience, then normalizes the claims. Refresh tokens
// are rejected as API credentials.
func (v *Verifier) Verify(tokenString string) (*models.AuthenticatedUser, jwt.MapClaims, error) {
	claims, err := v.decode(tokenString)
	if err != nil {
		return nil, nil, err
	}

	if tokenType, _ := claims["token_type"].(string); tokenType == "refresh" {
		return nil, nil, invalidToken("refresh token presented as access token", nil)
	}

	user, err := v.userFromClaims(claims)
	if err != nil {
		return nil, nil, err
	}
	return user, claims, nil
}

func (v *Verifier) decode(tokenString string) (jwt.MapClaims, error) {
	parserOpts := []jwt.ParserOption{
		// Pin the algorithm to the configured one. Tokens declaring any
		// other algorithm (including "none") fail before key selection,
		// closing the algorithm-confusion hole.
		jwt.WithValidMethods([]string{v.cfg.Algorithm}),
		jwt.WithLeeway(v.cfg.Leeway()),
	}
	if v.cfg.Issuer != "" {
		parserOpts = append(parserOpts, jwt.WithIssuer(v.cfg.Issuer))
	}
	if len(v.cfg.Audience) > 0 {
		parserOpts = append(parserOpts, jwt.WithAudience(v.cfg.Audience[0]))
	}
	if !v.cfg.VerifyExpiry {
		parserOpts = append(parserOpts, jwt.WithoutClaimsValidation())
	}

	token, err := jwt.Parse(tokenString, v.keyFunc, parserOpts...)
	if err != nil {
		switch {
		case errors.Is(err, jwt.ErrTokenExpired):
			return nil, expiredToken(err)
		case errors.Is(err, jwt.ErrTokenInvalidAudience):
			return nil, invalidToken("invalid token audience", err)
		case errors.Is(err, jwt.ErrTokenInvalidIssuer):
			return nil, invalidToken("invalid token issuer", err)
		case errors.Is(err, jwt.ErrTokenMalformed):
			return nil, invalidToken("malformed token", err)
		default:
			return nil, invalidToken("token verification failed", err)
		}
	}
	if !token.Valid {
		return nil, invalidToken("invalid token", nil)
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return nil, invalidToken("unexpected claims type", nil)
	}
	return claims, nil
}

func (v *Verifier) keyFunc(token *jwt.Token) (interface{}, error) {
	switch token.Method.(type) {
	case *jwt.SigningMethodHMAC:
		return []byte(v.cfg.Secret), nil
	case *jwt.SigningMethodRSA, *jwt.SigningMethodECDSA:
		return parsePublicKey(v.cfg.Algorithm, v.cfg.PublicKey)
	default:
		return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
	}
}

func parsePublicKey(alg, pemKey string) (interface{}, error) {
	if strings.HasPrefix(alg, "RS") {
		return jwt.ParseRSAPublicKeyFromPEM([]byte(pemKey))
	}
	return jwt.ParseECPublicKeyFromPEM([]byte(pemKey))
}

// userFromClaims normalizes differing claim conventions into the standard
// identity: sub/user_id/uid, roles + singular role, permissions + OAuth
// scope, tenant id from the configured claim with tid/organization_id
// fallbacks.
func (v *Verifier) userFromClaims(claims jwt.MapClaims) (*models.AuthenticatedUser, error) {
	userID := firstStringClaim(claims, "sub", "user_id", "uid")
	if userID == "" {
		return nil, invalidToken("token missing user identifier (sub)", nil)
	}

	email := firstStringClaim(claims, "email", "preferred_username")

	roles := stringListClaim(claims["roles"])
	if role, _ := claims["role"].(string); role != "" && !contains(roles, role) {
		roles = append(roles, role)
	}

	permissions := stringListClaim(claims["permissions"])
	if scope, _ := claims["scope"].(string); scope != "" {
		permissions = mergeUnique(permissions, strings.Fields(scope))
	}

	tenantClaim := v.cfg.TenantClaim
	if tenantClaim == "" {
		tenantClaim = "tenant_id"
	}
	tenantID := firstStringClaim(claims, tenantClaim, "tid", "organization_id")

	issuer, _ := claims["iss"].(string)

	return &models.AuthenticatedUser{
		UserID:      userID,
		Email:       email,
		Roles:       roles,
		Permissions: permissions,
		TenantID:    tenantID,
		Provider:    providerFromIssuer(issuer),
		RawClaims:   claims,
	}, nil
}

// providerFromIssuer tags the identity with its originating SSO provider.
func providerFromIssuer(issuer string) string {
	lower := strings.ToLower(issuer)
	switch {
	case issuer == "":
		return "local"
	case strings.Contains(lower, "login.microsoftonline.com"):
		return "azure"
	case strings.Contains(lower, "accounts.google.com"):
		return "google"
	case strings.Contains(lower, "appleid.apple.com"):
		return "apple"
	case strings.Contains(lower, "github.com"):
		return "github"
	default:
		return "local"
	}
}

func firstStringClaim(claims jwt.MapClaims, keys ...string) string {
	for _, k := range keys {
		if s, ok := claims[k].(string); ok && s != "" {
			return s
		}
	}
	return ""
}

func stringListClaim(v interface{}) []string {
	switch val := v.(type) {
	case nil:
		return nil
	case string:
		if val == "" {
			return nil
		}
		return []string{val}
	case []string:
		return val
	case []interface{}:
		out := make([]string, 0, len(val))
		for _, item := range val {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	default:
		return nil
	}
}

func contains(list []string, s string) bool {
	for _, item := range list {
		if item == s {
			return true
		}
	}
	return false
}

func mergeUnique(a, b []string) []string {
	seen := make(map[string]bool, len(a)+len(b))
	out := make([]string, 0, len(a)+len(b))
	for _, s := range append(append([]string{}, a...), b...) {
		if !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}
	sort.Strings(out)
	return out
}
