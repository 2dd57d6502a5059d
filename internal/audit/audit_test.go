package audit

import (
	"context"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gatewarden/gatewarden/pkg/logger"
)

func defaultFilter() *PIIFilter {
	return NewPIIFilter(
		[]string{"password", "secret", "token", "ssn", "credit_card"},
		[]string{"authorization", "cookie", "x-api-key"},
		"[REDACTED]",
	)
}

func TestPIIFilterRedactsFields(t *testing.T) {
	f := defaultFilter()
	out := f.FilterFields(map[string]interface{}{
		"username":     "alice",
		"password":     "hunter2",
		"new_password": "hunter3",
		"profile": map[string]interface{}{
			"api_token": "tok-123",
			"city":      "Berlin",
		},
	})
	assert.Equal(t, "alice", out["username"])
	assert.Equal(t, "[REDACTED]", out["password"])
	assert.Equal(t, "[REDACTED]", out["new_password"])
	profile := out["profile"].(map[string]interface{})
	assert.Equal(t, "[REDACTED]", profile["api_token"])
	assert.Equal(t, "Berlin", profile["city"])
}

func TestPIIFilterScrubsTextShapes(t *testing.T) {
	f := defaultFilter()
	assert.Equal(t, "contact [EMAIL_REDACTED] now", f.ScrubText("contact alice@example.com now"))
	assert.Equal(t, "ssn [SSN_REDACTED]", f.ScrubText("ssn 123-45-6789"))
	assert.Equal(t, "card [CARD_REDACTED]", f.ScrubText("card 4111 1111 1111 1111"))
}

func TestPIIFilterScrubsNestedStrings(t *testing.T) {
	f := defaultFilter()
	out := f.FilterFields(map[string]interface{}{
		"notes": []interface{}{"email me at bob@example.org"},
	})
	notes := out["notes"].([]interface{})
	assert.Equal(t, "email me at [EMAIL_REDACTED]", notes[0])
}

func TestPIIFilterHeaders(t *testing.T) {
	f := defaultFilter()
	out := f.FilterHeaders(map[string]string{
		"Authorization": "Bearer abc",
		"User-Agent":    "curl/8.0",
	})
	assert.Equal(t, "[REDACTED]", out["Authorization"])
	assert.Equal(t, "curl/8.0", out["User-Agent"])
}

func TestRecordFlattenRoundTrip(t *testing.T) {
	rec := NewRecord()
	rec.Method = "POST"
	rec.Path = "/api/articles"
	rec.Query = "page=2"
	rec.StatusCode = 201
	rec.DurationMS = 12.5
	rec.UserID = "u1"
	rec.TenantID = "acme"
	rec.ClientIP = "10.0.0.1"
	rec.UserAgent = "curl/8.0"
	rec.Headers = map[string]string{"Accept": "application/json"}

	back, err := FromFlat(rec.Flatten())
	require.NoError(t, err)
	assert.Equal(t, rec.ID, back.ID)
	assert.Equal(t, rec.Method, back.Method)
	assert.Equal(t, rec.Path, back.Path)
	assert.Equal(t, rec.StatusCode, back.StatusCode)
	assert.Equal(t, rec.DurationMS, back.DurationMS)
	assert.Equal(t, rec.TenantID, back.TenantID)
	assert.Equal(t, rec.Headers, back.Headers)
	assert.True(t, rec.Timestamp.Equal(back.Timestamp))
}

func TestFromFlatRejectsBadInput(t *testing.T) {
	_, err := FromFlat(map[string]interface{}{"timestamp": "not-a-time"})
	assert.Error(t, err)
}

func TestClientIPTrustModes(t *testing.T) {
	req := httptest.NewRequest("GET", "/", nil)
	req.RemoteAddr = "192.0.2.10:443"
	req.Header.Set("X-Forwarded-For", "198.51.100.7, 10.0.0.1")
	req.Header.Set("X-Real-IP", "198.51.100.8")

	assert.Equal(t, "192.0.2.10", ClientIP(req, false))
	assert.Equal(t, "198.51.100.7", ClientIP(req, true))

	req.Header.Del("X-Forwarded-For")
	assert.Equal(t, "198.51.100.8", ClientIP(req, true))
}

func TestStreamBackendWrites(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	b := NewStreamBackend(client, "test:audit", 1000, time.Second)
	rec := NewRecord()
	rec.Method = "GET"
	rec.Path = "/health"
	rec.StatusCode = 200
	require.NoError(t, b.Write(context.Background(), rec))

	entries, err := client.XRange(context.Background(), "test:audit", "-", "+").Result()
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "GET", entries[0].Values["method"])
	assert.Equal(t, "/health", entries[0].Values["path"])
}

func TestLogBackendNeverFails(t *testing.T) {
	b := NewLogBackend(logger.NewNop(), "info")
	rec := NewRecord()
	rec.StatusCode = 500
	rec.Error = "HTTP 500"
	assert.NoError(t, b.Write(context.Background(), rec))
}

func TestStreamBackendQuery(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	b := NewStreamBackend(client, "test:audit:q", 1000, time.Second)
	ctx := context.Background()

	for _, spec := range []struct {
		user, tenant, path string
		status             int
	}{
		{"u1", "acme", "/api/articles", 200},
		{"u2", "acme", "/api/articles", 403},
		{"u1", "globex", "/api/admin", 200},
	} {
		rec := NewRecord()
		rec.Method = "GET"
		rec.Path = spec.path
		rec.StatusCode = spec.status
		rec.UserID = spec.user
		rec.TenantID = spec.tenant
		require.NoError(t, b.Write(ctx, rec))
	}

	all, err := b.Query(ctx, Filter{})
	require.NoError(t, err)
	assert.Len(t, all, 3)

	byUser, err := b.Query(ctx, Filter{UserID: "u1"})
	require.NoError(t, err)
	assert.Len(t, byUser, 2)

	byTenantAndPath, err := b.Query(ctx, Filter{TenantID: "acme", Path: "/api/articles"})
	require.NoError(t, err)
	assert.Len(t, byTenantAndPath, 2)

	limited, err := b.Query(ctx, Filter{Limit: 1})
	require.NoError(t, err)
	assert.Len(t, limited, 1)
}
