package audit

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/gatewarden/gatewarden/pkg/logger"
)

// Backend persists audit records. Write failures must not fail the
// request being audited; callers log and move on.
type Backend interface {
	Write(ctx context.Context, record *Record) error
	Close() error
}

// BackendFunc adapts a function to the Backend interface.
type BackendFunc func(ctx context.Context, record *Record) error

func (f BackendFunc) Write(ctx context.Context, record *Record) error { return f(ctx, record) }
func (f BackendFunc) Close() error                                    { return nil }

// LogBackend emits records through the structured logger. Severity
// follows the response: 5xx logs as error, 4xx as warn, everything
// else at the configured level.
type LogBackend struct {
	logger   logger.Logger
	logLevel string
}

func NewLogBackend(log logger.Logger, logLevel string) *LogBackend {
	if logLevel == "" {
		logLevel = "info"
	}
	return &LogBackend{logger: log, logLevel: logLevel}
}

func (b *LogBackend) Write(_ context.Context, record *Record) error {
	fields := []interface{}{
		"audit_id", record.ID,
		"method", record.Method,
		"path", record.Path,
		"status", record.StatusCode,
		"duration_ms", record.DurationMS,
		"user_id", record.UserID,
		"tenant_id", record.TenantID,
		"client_ip", record.ClientIP,
	}
	if record.Error != "" {
		fields = append(fields, "error", record.Error)
	}

	switch {
	case record.StatusCode >= 500:
		b.logger.Error("audit", fields...)
	case record.StatusCode >= 400:
		b.logger.Warn("audit", fields...)
	case b.logLevel == "debug":
		b.logger.Debug("audit", fields...)
	default:
		b.logger.Info("audit", fields...)
	}
	return nil
}

func (b *LogBackend) Close() error { return nil }

// StreamBackend appends records to a Redis Stream, capped at an
// approximate length so the stream cannot grow without bound.
type StreamBackend struct {
	client    *redis.Client
	streamKey string
	maxLen    int64
	timeout   time.Duration
}

func NewStreamBackend(client *redis.Client, streamKey string, maxLen int64, timeout time.Duration) *StreamBackend {
	if streamKey == "" {
		streamKey = "gatewarden:audit"
	}
	if maxLen <= 0 {
		maxLen = 100000
	}
	if timeout <= 0 {
		timeout = time.Second
	}
	return &StreamBackend{client: client, streamKey: streamKey, maxLen: maxLen, timeout: timeout}
}

func (b *StreamBackend) Write(ctx context.Context, record *Record) error {
	ctx, cancel := context.WithTimeout(ctx, b.timeout)
	defer cancel()

	err := b.client.XAdd(ctx, &redis.XAddArgs{
		Stream:       b.streamKey,
		MaxLenApprox: b.maxLen,
		Values:       record.Flatten(),
	}).Err()
	if err != nil {
		return fmt.Errorf("failed to append audit record: %w", err)
	}
	return nil
}

func (b *StreamBackend) Close() error { return nil }

// Filter narrows Query results. Zero values match everything.
type Filter struct {
	UserID   string
	TenantID string
	Path     string
	Since    time.Time
	Until    time.Time
	Limit    int
}

func (f Filter) matches(rec *Record) bool {
	if f.UserID != "" && rec.UserID != f.UserID {
		return false
	}
	if f.TenantID != "" && rec.TenantID != f.TenantID {
		return false
	}
	if f.Path != "" && rec.Path != f.Path {
		return false
	}
	if !f.Since.IsZero() && rec.Timestamp.Before(f.Since) {
		return false
	}
	if !f.Until.IsZero() && rec.Timestamp.After(f.Until) {
		return false
	}
	return true
}

// Querier is implemented by backends that can read records back.
type Querier interface {
	Query(ctx context.Context, filter Filter) ([]*Record, error)
}

// Query scans the stream oldest-first, applying the filter in process.
// Entries that fail to decode are skipped rather than aborting the scan.
func (b *StreamBackend) Query(ctx context.Context, filter Filter) ([]*Record, error) {
	ctx, cancel := context.WithTimeout(ctx, b.timeout)
	defer cancel()

	entries, err := b.client.XRange(ctx, b.streamKey, "-", "+").Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read audit stream: %w", err)
	}

	var out []*Record
	for _, entry := range entries {
		rec, err := FromFlat(entry.Values)
		if err != nil {
			continue
		}
		if !filter.matches(rec) {
			continue
		}
		out = append(out, rec)
		if filter.Limit > 0 && len(out) >= filter.Limit {
			break
		}
	}
	return out, nil
}
