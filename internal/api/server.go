package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/gatewarden/gatewarden/internal/api/middleware"
	"github.com/gatewarden/gatewarden/internal/audit"
	"github.com/gatewarden/gatewarden/internal/auth"
	"github.com/gatewarden/gatewarden/internal/config"
	"github.com/gatewarden/gatewarden/internal/monitoring"
	"github.com/gatewarden/gatewarden/internal/ratelimit"
	"github.com/gatewarden/gatewarden/internal/rbac"
	"github.com/gatewarden/gatewarden/internal/tenant"
	"github.com/gatewarden/gatewarden/pkg/logger"
)

// Options carries the assembled dependencies for a Server. Backends are
// constructed by the caller (see cmd/server) so tests can substitute
// in-memory implementations.
type Options struct {
	Config           *config.Config
	Logger           logger.Logger
	Metrics          *monitoring.Metrics
	Verifier         *auth.Verifier
	RoleManager      *rbac.Manager
	RateLimitBackend ratelimit.Backend
	TenantStore      tenant.Store
	AuditBackend     func() (audit.Backend, error)
}

// Server owns the gin engine with the protection pipeline installed.
// Stage order is fixed: metrics and audit wrap everything so they see
// final status codes, then auth establishes identity, tenant isolation
// scopes it, and rate limiting throttles it. Route guards run last,
// inside the handler chain.
type Server struct {
	cfg      *config.Config
	logger   logger.Logger
	engine   *gin.Engine
	enforcer *middleware.Enforcer
	resolver *tenant.Resolver
	server   *http.Server
}

func NewServer(opts Options) (*Server, error) {
	cfg := opts.Config
	log := opts.Logger
	metrics := opts.Metrics
	if metrics == nil {
		metrics = monitoring.NewDefaultMetrics()
	}

	enforcer, err := middleware.NewEnforcer(cfg.RBAC, opts.RoleManager, metrics, log)
	if err != nil {
		return nil, fmt.Errorf("failed to build rbac enforcer: %w", err)
	}

	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	engine := gin.New()
	// Gin trusts all proxies by default; forwarding headers must stay
	// inert unless a stage opts in through its own trust flag.
	_ = engine.SetTrustedProxies(nil)
	engine.Use(gin.Recovery())
	engine.Use(middleware.Metrics(metrics))

	if cfg.Audit.Enabled {
		filter := audit.NewPIIFilter(cfg.Audit.RedactFields, cfg.Audit.RedactHeaders, cfg.Audit.RedactReplacement)
		engine.Use(middleware.Audit(cfg.Audit, opts.AuditBackend, filter, metrics, log))
	}
	if cfg.JWT.Enabled {
		engine.Use(middleware.Auth(cfg.JWT, opts.Verifier, metrics, log))
	}
	var resolver *tenant.Resolver
	if cfg.Tenant.Enabled {
		resolver = tenant.NewResolver(cfg.Tenant, opts.TenantStore, log)
		engine.Use(middleware.Tenant(cfg.Tenant, resolver, metrics, log))
	}
	if cfg.RateLimit.Enabled {
		engine.Use(middleware.RateLimit(cfg.RateLimit, opts.RateLimitBackend, metrics, log))
	}

	engine.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":  "healthy",
			"service": "gatewarden",
		})
	})
	engine.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return &Server{
		cfg:      cfg,
		logger:   log,
		engine:   engine,
		enforcer: enforcer,
		resolver: resolver,
	}, nil
}

// Engine exposes the router for route registration.
func (s *Server) Engine() *gin.Engine { return s.engine }

// Enforcer exposes the route guards (RequireRole, RequirePermission).
func (s *Server) Enforcer() *middleware.Enforcer { return s.enforcer }

// TenantResolver exposes the resolver for diagnostics. Nil when the
// tenant stage is disabled.
func (s *Server) TenantResolver() *tenant.Resolver { return s.resolver }

// Start blocks serving HTTP until Shutdown or a listener error.
func (s *Server) Start() error {
	s.server = &http.Server{
		Addr:         fmt.Sprintf(":%d", s.cfg.Port),
		Handler:      s.engine,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}
	s.logger.Info("server starting", "port", s.cfg.Port, "environment", s.cfg.Environment)
	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server failed: %w", err)
	}
	return nil
}

// Shutdown drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	s.logger.Info("server shutting down")
	return s.server.Shutdown(ctx)
}
