package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"

	"github.com/gatewarden/gatewarden/internal/api"
	"github.com/gatewarden/gatewarden/internal/api/middleware"
	"github.com/gatewarden/gatewarden/internal/audit"
	"github.com/gatewarden/gatewarden/internal/auth"
	"github.com/gatewarden/gatewarden/internal/config"
	"github.com/gatewarden/gatewarden/internal/ratelimit"
	"github.com/gatewarden/gatewarden/internal/rbac"
	"github.com/gatewarden/gatewarden/internal/tenant"
	"github.com/gatewarden/gatewarden/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("failed to load configuration: " + err.Error())
	}

	log := logger.New(cfg.LogLevel)
	log.Info("gatewarden starting", "environment", cfg.Environment)

	verifier, err := auth.NewVerifier(cfg.JWT)
	if err != nil {
		log.Fatal("invalid jwt configuration", "error", err)
	}

	roleManager, err := buildRoleManager(cfg, log)
	if err != nil {
		log.Fatal("invalid rbac configuration", "error", err)
	}

	rateBackend, err := buildRateLimitBackend(cfg.RateLimit)
	if err != nil {
		log.Fatal("failed to build rate limit backend", "error", err)
	}
	defer rateBackend.Close()

	tenantStore, err := buildTenantStore(cfg.Tenant)
	if err != nil {
		log.Fatal("failed to build tenant store", "error", err)
	}

	auditBackend := auditBackendFactory(cfg.Audit, log)

	server, err := api.NewServer(api.Options{
		Config:           cfg,
		Logger:           log,
		Verifier:         verifier,
		RoleManager:      roleManager,
		RateLimitBackend: rateBackend,
		TenantStore:      tenantStore,
		AuditBackend:     auditBackend,
	})
	if err != nil {
		log.Fatal("failed to build server", "error", err)
	}

	registerRoutes(cfg, server, verifier, roleManager, auditBackend)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if cfg.RBAC.RolesFile != "" {
		watcher := config.NewFileWatcher(cfg.RBAC.RolesFile, func(path string) error {
			roles, err := rbac.LoadRoleFile(path)
			if err != nil {
				return err
			}
			return roleManager.Reload(mergeRoles(cfg.RBAC.Roles, roles))
		}, log)
		go func() {
			if err := watcher.Start(ctx); err != nil {
				log.Error("role file watcher stopped", "error", err)
			}
		}()
	}

	errCh := make(chan error, 1)
	go func() { errCh <- server.Start() }()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		if err != nil {
			log.Fatal("server error", "error", err)
		}
	case sig := <-quit:
		log.Info("shutdown signal received", "signal", sig.String())
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("graceful shutdown failed", "error", err)
	}
	log.Info("gatewarden stopped")
}

// registerRoutes wires the demo API surface behind the pipeline guards.
func registerRoutes(cfg *config.Config, server *api.Server, verifier *auth.Verifier, roleManager *rbac.Manager, auditBackend func() (audit.Backend, error)) {
	enforcer := server.Enforcer()
	v1 := server.Engine().Group("/api/v1")

	v1.GET("/me", middleware.RequireAuth(), func(c *gin.Context) {
		user, _ := middleware.CurrentUser(c)
		c.JSON(http.StatusOK, gin.H{
			"user_id":  user.UserID,
			"email":    user.Email,
			"roles":    user.Roles,
			"tenant":   middleware.CurrentTenant(c),
			"provider": user.Provider,
		})
	})

	v1.GET("/articles", enforcer.RequirePermission("read:articles"), func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"articles": []string{}, "tenant": middleware.CurrentTenant(c)})
	})

	v1.POST("/articles", enforcer.RequirePermission("write:articles"), func(c *gin.Context) {
		c.JSON(http.StatusCreated, gin.H{"created": true})
	})

	admin := v1.Group("/admin", enforcer.RequireRole("admin", "super_admin"))
	admin.GET("/rbac/stats", func(c *gin.Context) {
		c.JSON(http.StatusOK, roleManager.Stats())
	})
	admin.GET("/tenant/stats", func(c *gin.Context) {
		resolver := server.TenantResolver()
		if resolver == nil {
			c.JSON(http.StatusOK, gin.H{"enabled": false})
			return
		}
		c.JSON(http.StatusOK, resolver.Stats())
	})
	admin.GET("/audit/recent", func(c *gin.Context) {
		backend, err := auditBackend()
		if err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"detail": "Audit backend unavailable"})
			return
		}
		querier, ok := backend.(audit.Querier)
		if !ok {
			c.JSON(http.StatusNotImplemented, gin.H{"detail": "Audit backend does not support queries"})
			return
		}
		records, err := querier.Query(c.Request.Context(), audit.Filter{
			UserID:   c.Query("user_id"),
			TenantID: c.Query("tenant_id"),
			Path:     c.Query("path"),
			Limit:    100,
		})
		if err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"detail": "Audit query failed"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"records": records, "count": len(records)})
	})

	// Development-only token mint, for trying the pipeline without an
	// external identity provider.
	if cfg.Environment == "development" {
		server.Engine().POST("/auth/login", func(c *gin.Context) {
			var body struct {
				UserID   string   `json:"user_id" binding:"required"`
				Roles    []string `json:"roles"`
				TenantID string   `json:"tenant_id"`
			}
			if err := c.ShouldBindJSON(&body); err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"detail": "user_id required"})
				return
			}
			access, err := verifier.CreateAccessToken(auth.AccessTokenSpec{
				UserID:   body.UserID,
				Roles:    body.Roles,
				TenantID: body.TenantID,
			})
			if err != nil {
				c.JSON(http.StatusInternalServerError, gin.H{"detail": "token issuance failed"})
				return
			}
			refresh, err := verifier.CreateRefreshToken(body.UserID, body.TenantID, 0)
			if err != nil {
				c.JSON(http.StatusInternalServerError, gin.H{"detail": "token issuance failed"})
				return
			}
			c.JSON(http.StatusOK, gin.H{
				"access_token":  access,
				"refresh_token": refresh,
				"token_type":    "bearer",
			})
		})
	}
}

func buildRoleManager(cfg *config.Config, log logger.Logger) (*rbac.Manager, error) {
	roles := cfg.RBAC.Roles
	if cfg.RBAC.RolesFile != "" {
		fileRoles, err := rbac.LoadRoleFile(cfg.RBAC.RolesFile)
		if err != nil {
			return nil, err
		}
		roles = mergeRoles(roles, fileRoles)
		log.Info("loaded role file", "path", cfg.RBAC.RolesFile, "roles", len(fileRoles))
	}
	return rbac.NewManager(roles, cfg.RBAC.DefaultRole)
}

// mergeRoles overlays file definitions over inline ones.
func mergeRoles(inline, file map[string]config.RoleSpec) map[string]config.RoleSpec {
	out := make(map[string]config.RoleSpec, len(inline)+len(file))
	for name, spec := range inline {
		out[name] = spec
	}
	for name, spec := range file {
		out[name] = spec
	}
	return out
}

// buildRateLimitBackend resolves the backend choice once at startup.
func buildRateLimitBackend(cfg config.RateLimitConfig) (ratelimit.Backend, error) {
	switch cfg.Backend {
	case "redis":
		return ratelimit.NewRedisBackend(ratelimit.RedisOptions{
			Addr:      cfg.RedisAddr,
			Password:  cfg.RedisPassword,
			DB:        cfg.RedisDB,
			KeyPrefix: cfg.RedisKeyPrefix,
			PoolSize:  cfg.RedisPoolSize,
			Timeout:   cfg.Timeout(),
		})
	default:
		return ratelimit.NewMemoryBackend(cfg.BurstMultiplier(), cfg.MaxEntries), nil
	}
}

func buildTenantStore(cfg config.TenantConfig) (tenant.Store, error) {
	switch cfg.Store {
	case "redis":
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		return tenant.NewRedisStore(client, "", cfg.Timeout()), nil
	case "memory":
		return tenant.NewMemoryStore(), nil
	default:
		return nil, nil
	}
}

// auditBackendFactory defers backend construction to first use. The
// instance is shared between the audit stage and the diagnostics route.
func auditBackendFactory(cfg config.AuditConfig, log logger.Logger) func() (audit.Backend, error) {
	var (
		once    sync.Once
		backend audit.Backend
		initErr error
	)
	return func() (audit.Backend, error) {
		once.Do(func() {
			backend, initErr = buildAuditBackend(cfg, log)
		})
		return backend, initErr
	}
}

func buildAuditBackend(cfg config.AuditConfig, log logger.Logger) (audit.Backend, error) {
	switch cfg.Backend {
	case "redis":
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		return audit.NewStreamBackend(client, cfg.StreamKey, cfg.StreamMaxLen, cfg.Timeout()), nil
	default:
		return audit.NewLogBackend(log, cfg.LogLevel), nil
	}
}
