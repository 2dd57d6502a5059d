package ratelimit

import (
	"context"
	"time"
)

// Backend is a rate-limit decision store. Implementations must make
// CheckAndRecord a single atomic operation: the decision and the
// consumption happen in one critical section.
type Backend interface {
	// CheckAndRecord decides whether a request under identifier may
	// proceed and, if so, consumes one token. limit is requests per
	// window.
	CheckAndRecord(ctx context.Context, identifier string, limit int, window time.Duration) (Result, error)

	// Check reports whether a request would be allowed without
	// consuming a token.
	//
	// Deprecated: a Check followed by Record is not atomic and can
	// admit more requests than the limit under concurrency. Use
	// CheckAndRecord.
	Check(ctx context.Context, identifier string, limit int, window time.Duration) (Result, error)

	// Record consumes one token without checking.
	//
	// Deprecated: see Check.
	Record(ctx context.Context, identifier string, limit int, window time.Duration) error

	// Reset clears all state for identifier. Used by admin overrides.
	Reset(ctx context.Context, identifier string) error

	// Close releases backend resources.
	Close() error
}
