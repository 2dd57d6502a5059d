package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gatewarden/gatewarden/internal/config"
)

const testSecret = "0123456789abcdef0123456789abcdef"

func testConfig() config.JWTConfig {
	return config.JWTConfig{
		Enabled:      true,
		Secret:       testSecret,
		Algorithm:    "HS256",
		TenantClaim:  "tenant",
		VerifyExpiry: true,
	}
}

func sign(t *testing.T, claims jwt.MapClaims) string {
	t.Helper()
	if _, ok := claims["exp"]; !ok {
		claims["exp"] = time.Now().Add(time.Hour).Unix()
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testSecret))
	require.NoError(t, err)
	return signed
}

func TestVerifyNormalizesClaims(t *testing.T) {
	v, err := NewVerifier(testConfig())
	require.NoError(t, err)

	user, claims, err := v.Verify(sign(t, jwt.MapClaims{
		"sub":         "user-1",
		"email":       "alice@example.com",
		"roles":       []string{"editor"},
		"role":        "reviewer",
		"permissions": []string{"read:articles"},
		"scope":       "write:articles read:comments",
		"tenant":      "acme",
	}))
	require.NoError(t, err)
	assert.Equal(t, "user-1", user.UserID)
	assert.Equal(t, "alice@example.com", user.Email)
	assert.ElementsMatch(t, []string{"editor", "reviewer"}, user.Roles)
	assert.ElementsMatch(t, []string{"read:articles", "write:articles", "read:comments"}, user.Permissions)
	assert.Equal(t, "acme", user.TenantID)
	assert.Equal(t, "local", user.Provider)
	assert.Equal(t, "user-1", claims["sub"])
}

func TestVerifyUserIDFallbacks(t *testing.T) {
	v, err := NewVerifier(testConfig())
	require.NoError(t, err)

	user, _, err := v.Verify(sign(t, jwt.MapClaims{"user_id": "u-alt"}))
	require.NoError(t, err)
	assert.Equal(t, "u-alt", user.UserID)

	_, _, err = v.Verify(sign(t, jwt.MapClaims{"email": "nobody@example.com"}))
	require.Error(t, err)
}

func TestVerifyRejectsExpired(t *testing.T) {
	v, err := NewVerifier(testConfig())
	require.NoError(t, err)

	_, _, err = v.Verify(sign(t, jwt.MapClaims{
		"sub": "u1",
		"exp": time.Now().Add(-time.Minute).Unix(),
	}))
	var authErr *Error
	require.ErrorAs(t, err, &authErr)
	assert.Equal(t, KindExpiredToken, authErr.Kind)
	assert.Equal(t, 401, authErr.Status())
}

func TestVerifyLeeway(t *testing.T) {
	cfg := testConfig()
	cfg.LeewaySeconds = 120
	v, err := NewVerifier(cfg)
	require.NoError(t, err)

	_, _, err = v.Verify(sign(t, jwt.MapClaims{
		"sub": "u1",
		"exp": time.Now().Add(-time.Minute).Unix(),
	}))
	assert.NoError(t, err)
}

func TestVerifyRejectsWrongSignature(t *testing.T) {
	v, err := NewVerifier(testConfig())
	require.NoError(t, err)

	other, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": "u1", "exp": time.Now().Add(time.Hour).Unix(),
	}).SignedString([]byte("another-secret-another-secret-32b"))
	require.NoError(t, err)

	_, _, err = v.Verify(other)
	require.Error(t, err)
}

func TestVerifyRejectsAlgorithmConfusion(t *testing.T) {
	v, err := NewVerifier(testConfig())
	require.NoError(t, err)

	none := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.MapClaims{
		"sub": "u1", "exp": time.Now().Add(time.Hour).Unix(),
	})
	raw, err := none.SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	_, _, err = v.Verify(raw)
	require.Error(t, err)
	var authErr *Error
	require.ErrorAs(t, err, &authErr)
	assert.Equal(t, KindInvalidToken, authErr.Kind)
}

func TestVerifyIssuerAndAudience(t *testing.T) {
	cfg := testConfig()
	cfg.Issuer = "gatewarden"
	cfg.Audience = []string{"api"}
	v, err := NewVerifier(cfg)
	require.NoError(t, err)

	_, _, err = v.Verify(sign(t, jwt.MapClaims{"sub": "u1", "iss": "gatewarden", "aud": "api"}))
	assert.NoError(t, err)

	_, _, err = v.Verify(sign(t, jwt.MapClaims{"sub": "u1", "iss": "intruder", "aud": "api"}))
	assert.Error(t, err)

	_, _, err = v.Verify(sign(t, jwt.MapClaims{"sub": "u1", "iss": "gatewarden", "aud": "other"}))
	assert.Error(t, err)
}

func TestVerifyRejectsRefreshToken(t *testing.T) {
	v, err := NewVerifier(testConfig())
	require.NoError(t, err)

	_, _, err = v.Verify(sign(t, jwt.MapClaims{"sub": "u1", "token_type": "refresh"}))
	require.Error(t, err)
}

func TestVerifyTenantClaimFallbacks(t *testing.T) {
	v, err := NewVerifier(testConfig())
	require.NoError(t, err)

	user, _, err := v.Verify(sign(t, jwt.MapClaims{"sub": "u1", "tid": "t-42"}))
	require.NoError(t, err)
	assert.Equal(t, "t-42", user.TenantID)

	user, _, err = v.Verify(sign(t, jwt.MapClaims{"sub": "u1", "organization_id": "org-9"}))
	require.NoError(t, err)
	assert.Equal(t, "org-9", user.TenantID)
}

func TestCreateAndVerifyAccessToken(t *testing.T) {
	cfg := testConfig()
	cfg.TenantClaim = ""
	v, err := NewVerifier(cfg)
	require.NoError(t, err)

	token, err := v.CreateAccessToken(AccessTokenSpec{
		UserID:   "u1",
		Email:    "alice@example.com",
		Roles:    []string{"member"},
		TenantID: "acme",
		ExtraClaims: map[string]interface{}{
			"department": "press",
			"exp":        "ignored",
		},
	})
	require.NoError(t, err)

	user, claims, err := v.Verify(token)
	require.NoError(t, err)
	assert.Equal(t, "u1", user.UserID)
	assert.Equal(t, "acme", user.TenantID)
	assert.Equal(t, "press", claims["department"])
	// Reserved claims cannot be overridden through ExtraClaims.
	assert.IsType(t, float64(0), claims["exp"])
}

func TestRefreshTokenRoundTrip(t *testing.T) {
	v, err := NewVerifier(testConfig())
	require.NoError(t, err)

	refresh, err := v.CreateRefreshToken("u1", "acme", 0)
	require.NoError(t, err)

	_, _, err = v.Verify(refresh)
	require.Error(t, err, "refresh tokens are not access credentials")
}

func TestPathExempt(t *testing.T) {
	patterns := []string{"/health", "/auth/sso/*"}
	assert.True(t, PathExempt(patterns, "/health"))
	assert.False(t, PathExempt(patterns, "/healthz"))
	assert.True(t, PathExempt(patterns, "/auth/sso"))
	assert.True(t, PathExempt(patterns, "/auth/sso/google/callback"))
	assert.False(t, PathExempt(patterns, "/auth/ssomething"))
	assert.False(t, PathExempt(nil, "/anything"))
}
