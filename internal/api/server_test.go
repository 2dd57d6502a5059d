package api

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gatewarden/gatewarden/internal/audit"
	"github.com/gatewarden/gatewarden/internal/auth"
	"github.com/gatewarden/gatewarden/internal/config"
	"github.com/gatewarden/gatewarden/internal/monitoring"
	"github.com/gatewarden/gatewarden/internal/ratelimit"
	"github.com/gatewarden/gatewarden/internal/rbac"
	"github.com/gatewarden/gatewarden/pkg/logger"
)

func testServer(t *testing.T) *Server {
	t.Helper()
	cfg := &config.Config{
		Environment: "test",
		Port:        0,
		JWT: config.JWTConfig{
			Enabled:     true,
			Secret:      "0123456789abcdef0123456789abcdef",
			Algorithm:   "HS256",
			ExemptPaths: []string{"/health", "/metrics"},
		},
		RBAC:      config.RBACConfig{Enabled: true},
		RateLimit: config.RateLimitConfig{Enabled: true, RequestsPerMinute: 100},
		Tenant:    config.TenantConfig{Enabled: true, HeaderName: "X-Tenant-ID", AdminRole: "admin"},
		Audit:     config.AuditConfig{Enabled: true, Backend: "logging"},
	}
	log := logger.NewNop()
	verifier, err := auth.NewVerifier(cfg.JWT)
	require.NoError(t, err)
	manager, err := rbac.NewManager(nil, "")
	require.NoError(t, err)

	server, err := NewServer(Options{
		Config:           cfg,
		Logger:           log,
		Metrics:          monitoring.NewMetrics(prometheus.NewRegistry()),
		Verifier:         verifier,
		RoleManager:      manager,
		RateLimitBackend: ratelimit.NewMemoryBackend(1.0, 100),
		AuditBackend: func() (audit.Backend, error) {
			return audit.NewLogBackend(log, "info"), nil
		},
	})
	require.NoError(t, err)
	return server
}

func TestServerHealthEndpoint(t *testing.T) {
	server := testServer(t)
	w := httptest.NewRecorder()
	server.Engine().ServeHTTP(w, httptest.NewRequest("GET", "/health", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "healthy")
}

func TestServerMetricsEndpoint(t *testing.T) {
	server := testServer(t)
	w := httptest.NewRecorder()
	server.Engine().ServeHTTP(w, httptest.NewRequest("GET", "/metrics", nil))
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestServerProtectedRouteRequiresToken(t *testing.T) {
	server := testServer(t)
	server.Engine().GET("/api/private", func(c *gin.Context) {
		c.Status(http.StatusOK)
	})
	w := httptest.NewRecorder()
	server.Engine().ServeHTTP(w, httptest.NewRequest("GET", "/api/private", nil))
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}
