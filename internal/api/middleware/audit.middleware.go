package middleware

import (
	"bytes"
	"encoding/json"
	"io"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/gatewarden/gatewarden/internal/audit"
	"github.com/gatewarden/gatewarden/internal/auth"
	"github.com/gatewarden/gatewarden/internal/config"
	"github.com/gatewarden/gatewarden/internal/monitoring"
	"github.com/gatewarden/gatewarden/pkg/logger"
)

// Audit records every completed request. The backend is built on first
// use so a slow audit store never delays startup, and a failing write
// never fails the request it describes.
func Audit(cfg config.AuditConfig, newBackend func() (audit.Backend, error), filter *audit.PIIFilter, metrics *monitoring.Metrics, log logger.Logger) gin.HandlerFunc {
	var (
		once    sync.Once
		backend audit.Backend
		initErr error
	)

	excludedMethod := make(map[string]bool, len(cfg.ExcludeMethods))
	for _, m := range cfg.ExcludeMethods {
		excludedMethod[strings.ToUpper(m)] = true
	}

	return func(c *gin.Context) {
		if excludedMethod[c.Request.Method] || auth.PathExempt(cfg.ExcludePaths, c.Request.URL.Path) {
			c.Next()
			return
		}

		rec := audit.NewRecord()
		rec.Method = c.Request.Method
		rec.Path = c.Request.URL.Path
		rec.ClientIP = audit.ClientIP(c.Request, cfg.TrustProxyHeaders)
		rec.UserAgent = c.Request.UserAgent()
		c.Set(ContextRequestIDKey, rec.ID)

		if cfg.IncludeQueryParams {
			rec.Query = filter.ScrubText(c.Request.URL.RawQuery)
		}
		if cfg.IncludeRequestHeaders {
			headers := make(map[string]string, len(c.Request.Header))
			for name := range c.Request.Header {
				headers[name] = c.Request.Header.Get(name)
			}
			rec.Headers = filter.FilterHeaders(headers)
		}
		if cfg.LogRequestBody {
			rec.Body = captureBody(c, cfg.MaxBodyLogSize, filter)
		}

		start := time.Now()
		c.Next()

		rec.StatusCode = c.Writer.Status()
		rec.DurationMS = float64(time.Since(start).Microseconds()) / 1000.0
		if c.Request.ContentLength > 0 {
			rec.RequestSize = c.Request.ContentLength
		}
		if size := c.Writer.Size(); size > 0 {
			rec.ResponseSize = int64(size)
		}
		rec.UserID = c.GetString(ContextUserIDKey)
		rec.TenantID = c.GetString(ContextTenantKey)
		if rec.StatusCode >= 400 {
			rec.Error = "HTTP " + strconv.Itoa(rec.StatusCode)
		}

		once.Do(func() {
			backend, initErr = newBackend()
			if initErr != nil {
				log.Error("audit backend init failed", "error", initErr)
			}
		})
		if initErr != nil {
			metrics.AuditWriteFailures.Inc()
			return
		}
		if err := backend.Write(c.Request.Context(), rec); err != nil {
			metrics.AuditWriteFailures.Inc()
			log.Error("audit write failed", "audit_id", rec.ID, "error", err)
		}
	}
}

// captureBody reads and restores the request body, returning a
// PII-filtered rendering capped at maxSize bytes.
func captureBody(c *gin.Context, maxSize int, filter *audit.PIIFilter) string {
	if c.Request.Body == nil {
		return ""
	}
	if maxSize <= 0 {
		maxSize = 10 * 1024
	}
	data, err := io.ReadAll(io.LimitReader(c.Request.Body, int64(maxSize)+1))
	if err != nil {
		return ""
	}
	rest, _ := io.ReadAll(c.Request.Body)
	c.Request.Body = io.NopCloser(bytes.NewReader(append(data, rest...)))

	truncated := false
	if len(data) > maxSize {
		data = data[:maxSize]
		truncated = true
	}

	var decoded map[string]interface{}
	if err := json.Unmarshal(data, &decoded); err == nil {
		filtered, _ := json.Marshal(filter.FilterFields(decoded))
		return string(filtered)
	}
	out := filter.ScrubText(string(data))
	if truncated {
		out += "...[truncated]"
	}
	return out
}
