package ratelimit

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestBackend(burstMultiplier float64, maxEntries int) (*MemoryBackend, *time.Time) {
	m := NewMemoryBackend(burstMultiplier, maxEntries)
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	m.now = func() time.Time { return now }
	return m, &now
}

func TestMemoryBackendNewIdentifierStartsFull(t *testing.T) {
	m, _ := newTestBackend(1.0, 1000)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		res, err := m.CheckAndRecord(ctx, "user:alice", 5, time.Minute)
		require.NoError(t, err)
		assert.True(t, res.Allowed, "request %d should pass", i)
	}
	res, err := m.CheckAndRecord(ctx, "user:alice", 5, time.Minute)
	require.NoError(t, err)
	assert.False(t, res.Allowed)
	assert.Equal(t, 0, res.Remaining)
	assert.GreaterOrEqual(t, res.RetryAfterSeconds(), 1)
}

func TestMemoryBackendRefillOverTime(t *testing.T) {
	m, now := newTestBackend(1.0, 1000)
	ctx := context.Background()

	// 60 rpm: one token per second.
	for i := 0; i < 60; i++ {
		res, err := m.CheckAndRecord(ctx, "u", 60, time.Minute)
		require.NoError(t, err)
		require.True(t, res.Allowed)
	}
	res, err := m.CheckAndRecord(ctx, "u", 60, time.Minute)
	require.NoError(t, err)
	require.False(t, res.Allowed)

	*now = now.Add(2 * time.Second)
	res, err = m.CheckAndRecord(ctx, "u", 60, time.Minute)
	require.NoError(t, err)
	assert.True(t, res.Allowed)
	res, err = m.CheckAndRecord(ctx, "u", 60, time.Minute)
	require.NoError(t, err)
	assert.True(t, res.Allowed)
	res, err = m.CheckAndRecord(ctx, "u", 60, time.Minute)
	require.NoError(t, err)
	assert.False(t, res.Allowed)
}

func TestMemoryBackendBurstMultiplier(t *testing.T) {
	m, _ := newTestBackend(2.0, 1000)
	ctx := context.Background()

	allowed := 0
	for i := 0; i < 25; i++ {
		res, err := m.CheckAndRecord(ctx, "burst", 10, time.Minute)
		require.NoError(t, err)
		if res.Allowed {
			allowed++
		}
	}
	assert.Equal(t, 20, allowed)
}

func TestMemoryBackendIdentifiersIsolated(t *testing.T) {
	m, _ := newTestBackend(1.0, 1000)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, err := m.CheckAndRecord(ctx, "a", 3, time.Minute)
		require.NoError(t, err)
	}
	res, err := m.CheckAndRecord(ctx, "a", 3, time.Minute)
	require.NoError(t, err)
	assert.False(t, res.Allowed)

	res, err = m.CheckAndRecord(ctx, "b", 3, time.Minute)
	require.NoError(t, err)
	assert.True(t, res.Allowed)
}

func TestMemoryBackendReset(t *testing.T) {
	m, _ := newTestBackend(1.0, 1000)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		_, err := m.CheckAndRecord(ctx, "r", 2, time.Minute)
		require.NoError(t, err)
	}
	res, _ := m.CheckAndRecord(ctx, "r", 2, time.Minute)
	require.False(t, res.Allowed)

	require.NoError(t, m.Reset(ctx, "r"))
	res, err := m.CheckAndRecord(ctx, "r", 2, time.Minute)
	require.NoError(t, err)
	assert.True(t, res.Allowed)
}

func TestMemoryBackendEviction(t *testing.T) {
	m, now := newTestBackend(1.0, 100)
	ctx := context.Background()

	for i := 0; i < 100; i++ {
		_, err := m.CheckAndRecord(ctx, fmt.Sprintf("id-%d", i), 10, time.Minute)
		require.NoError(t, err)
		*now = now.Add(time.Millisecond)
	}
	require.Equal(t, 100, m.Size())

	_, err := m.CheckAndRecord(ctx, "id-new", 10, time.Minute)
	require.NoError(t, err)
	// Oldest tenth evicted, new entry added.
	assert.Equal(t, 91, m.Size())
}

func TestMemoryBackendConcurrentAdmitsExactlyLimit(t *testing.T) {
	m := NewMemoryBackend(1.0, 1000)
	ctx := context.Background()

	const limit = 50
	const workers = 200
	var allowed int64
	var wg sync.WaitGroup
	wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func() {
			defer wg.Done()
			res, err := m.CheckAndRecord(ctx, "shared", limit, time.Hour)
			if err == nil && res.Allowed {
				atomic.AddInt64(&allowed, 1)
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, int64(limit), allowed)
}

func TestResultHeaders(t *testing.T) {
	reset := time.Date(2025, 6, 1, 12, 1, 0, 0, time.UTC)
	res := Result{Allowed: false, Limit: 100, Remaining: 0, ResetAt: reset, RetryAfter: 4 * time.Second}
	h := res.Headers()
	assert.Equal(t, "100", h["X-RateLimit-Limit"])
	assert.Equal(t, "0", h["X-RateLimit-Remaining"])
	assert.Equal(t, "2025-06-01T12:01:00Z", h["X-RateLimit-Reset"])
	assert.Equal(t, "4", h["Retry-After"])

	ok := Result{Allowed: true, Limit: 100, Remaining: 42, ResetAt: reset}
	h = ok.Headers()
	assert.Equal(t, "42", h["X-RateLimit-Remaining"])
	_, present := h["Retry-After"]
	assert.False(t, present)
}
