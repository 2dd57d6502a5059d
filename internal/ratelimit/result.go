package ratelimit

import (
	"strconv"
	"time"
)

// Result is the outcome of a single rate-limit decision.
type Result struct {
	Allowed    bool
	Limit      int
	Remaining  int
	ResetAt    time.Time
	RetryAfter time.Duration
}

// Headers renders the decision as response headers. Reset is RFC3339 so
// clients do not have to guess the epoch convention.
func (r Result) Headers() map[string]string {
	h := map[string]string{
		"X-RateLimit-Limit":     strconv.Itoa(r.Limit),
		"X-RateLimit-Remaining": strconv.Itoa(r.Remaining),
		"X-RateLimit-Reset":     r.ResetAt.UTC().Format(time.RFC3339),
	}
	if !r.Allowed {
		h["Retry-After"] = strconv.Itoa(r.RetryAfterSeconds())
	}
	return h
}

// RetryAfterSeconds is the Retry-After value rounded up to whole seconds,
// never below 1 for a denied request.
func (r Result) RetryAfterSeconds() int {
	secs := int(r.RetryAfter.Round(time.Second).Seconds())
	if secs < 1 && !r.Allowed {
		return 1
	}
	return secs
}

func allowedResult(limit, remaining int, resetAt time.Time) Result {
	return Result{Allowed: true, Limit: limit, Remaining: remaining, ResetAt: resetAt}
}

func deniedResult(limit int, resetAt time.Time, retryAfter time.Duration) Result {
	return Result{Allowed: false, Limit: limit, Remaining: 0, ResetAt: resetAt, RetryAfter: retryAfter}
}
