package auth

import (
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// reservedClaims may not be overridden through extra claims on issuance.
var reservedClaims = map[string]bool{
	"sub": true, "iat": true, "exp": true, "iss": true, "aud": true,
	"token_type": true, "roles": true, "permissions": true, "tenant_id": true,
}

// AccessTokenSpec describes the identity an access token is minted for.
type AccessTokenSpec struct {
	UserID      string
	Email       string
	Roles       []string
	Permissions []string
	TenantID    string
	ExpiresIn   time.Duration
	ExtraClaims map[string]interface{}
}

// CreateAccessToken signs a new access token. Extra claims that collide
// with security-critical claims are dropped.
func (v *Verifier) CreateAccessToken(spec AccessTokenSpec) (string, error) {
	if spec.UserID == "" {
		return "", fmt.Errorf("user id required")
	}
	expiresIn := spec.ExpiresIn
	if expiresIn <= 0 {
		expiresIn = 30 * time.Minute
	}

	now := time.Now().UTC()
	claims := jwt.MapClaims{
		"sub":        spec.UserID,
		"iat":        now.Unix(),
		"exp":        now.Add(expiresIn).Unix(),
		"token_type": "access",
	}
	if spec.Email != "" {
		claims["email"] = spec.Email
	}
	if len(spec.Roles) > 0 {
		claims["roles"] = spec.Roles
	}
	if len(spec.Permissions) > 0 {
		claims["permissions"] = spec.Permissions
	}
	if spec.TenantID != "" {
		claims["tenant_id"] = spec.TenantID
	}
	if v.cfg.Issuer != "" {
		claims["iss"] = v.cfg.Issuer
	}
	if len(v.cfg.Audience) > 0 {
		claims["aud"] = v.cfg.Audience[0]
	}
	for k, val := range spec.ExtraClaims {
		if reservedClaims[k] {
			continue
		}
		claims[k] = val
	}

	return v.sign(claims)
}

// CreateRefreshToken signs a refresh token carrying a jti. The verifier
// rejects refresh tokens presented as API credentials.
func (v *Verifier) CreateRefreshToken(userID, tenantID string, expiresIn time.Duration) (string, error) {
	if userID == "" {
		return "", fmt.Errorf("user id required")
	}
	if expiresIn <= 0 {
		expiresIn = 7 * 24 * time.Hour
	}

	now := time.Now().UTC()
	claims := jwt.MapClaims{
		"sub":        userID,
		"iat":        now.Unix(),
		"exp":        now.Add(expiresIn).Unix(),
		"jti":        uuid.NewString(),
		"token_type": "refresh",
	}
	if tenantID != "" {
		claims["tenant_id"] = tenantID
	}
	if v.cfg.Issuer != "" {
		claims["iss"] = v.cfg.Issuer
	}

	return v.sign(claims)
}

func (v *Verifier) sign(claims jwt.MapClaims) (string, error) {
	method := jwt.GetSigningMethod(v.cfg.Algorithm)
	if method == nil {
		return "", fmt.Errorf("unsupported algorithm %q", v.cfg.Algorithm)
	}
	token := jwt.NewWithClaims(method, claims)

	switch method.(type) {
	case *jwt.SigningMethodHMAC:
		return token.SignedString([]byte(v.cfg.Secret))
	default:
		if v.cfg.PrivateKey == "" {
			return "", fmt.Errorf("private key required to sign tokens with %s", v.cfg.Algorithm)
		}
		key, err := parsePrivateKey(v.cfg.Algorithm, v.cfg.PrivateKey)
		if err != nil {
			return "", err
		}
		return token.SignedString(key)
	}
}

func parsePrivateKey(alg, pemKey string) (interface{}, error) {
	if strings.HasPrefix(alg, "RS") {
		return jwt.ParseRSAPrivateKeyFromPEM([]byte(pemKey))
	}
	return jwt.ParseECPrivateKeyFromPEM([]byte(pemKey))
}
