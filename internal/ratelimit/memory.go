package ratelimit

import (
	"context"
	"math"
	"sort"
	"sync"
	"time"
)

type bucket struct {
	tokens   float64
	lastSeen time.Time
}

// MemoryBackend is an in-process token bucket store. Buckets refill
// continuously at limit/window tokens per second up to a capacity of
// limit*burstMultiplier. Unknown identifiers start with a full bucket,
// so a fresh client gets its burst allowance immediately.
type MemoryBackend struct {
	mu              sync.Mutex
	buckets         map[string]*bucket
	burstMultiplier float64
	maxEntries      int
	now             func() time.Time
}

// NewMemoryBackend builds a memory store. burstMultiplier scales bucket
// capacity above the per-window limit; maxEntries bounds memory, with
// the oldest tenth of entries evicted when exceeded.
func NewMemoryBackend(burstMultiplier float64, maxEntries int) *MemoryBackend {
	if burstMultiplier < 1 {
		burstMultiplier = 1
	}
	if maxEntries <= 0 {
		maxEntries = 100000
	}
	return &MemoryBackend{
		buckets:         make(map[string]*bucket),
		burstMultiplier: burstMultiplier,
		maxEntries:      maxEntries,
		now:             time.Now,
	}
}

func (m *MemoryBackend) CheckAndRecord(_ context.Context, identifier string, limit int, window time.Duration) (Result, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	capacity := float64(limit) * m.burstMultiplier
	rate := float64(limit) / window.Seconds()

	b := m.refillLocked(identifier, capacity, rate, now)
	if b.tokens >= 1 {
		b.tokens--
		return allowedResult(limit, int(b.tokens), m.resetAt(b, capacity, rate, now)), nil
	}
	retry := time.Duration((1 - b.tokens) / rate * float64(time.Second))
	return deniedResult(limit, m.resetAt(b, capacity, rate, now), retry), nil
}

func (m *MemoryBackend) Check(_ context.Context, identifier string, limit int, window time.Duration) (Result, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	capacity := float64(limit) * m.burstMultiplier
	rate := float64(limit) / window.Seconds()

	b := m.refillLocked(identifier, capacity, rate, now)
	if b.tokens >= 1 {
		return allowedResult(limit, int(b.tokens)-1, m.resetAt(b, capacity, rate, now)), nil
	}
	retry := time.Duration((1 - b.tokens) / rate * float64(time.Second))
	return deniedResult(limit, m.resetAt(b, capacity, rate, now), retry), nil
}

func (m *MemoryBackend) Record(_ context.Context, identifier string, limit int, window time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	capacity := float64(limit) * m.burstMultiplier
	rate := float64(limit) / window.Seconds()

	b := m.refillLocked(identifier, capacity, rate, now)
	if b.tokens >= 1 {
		b.tokens--
	}
	return nil
}

func (m *MemoryBackend) Reset(_ context.Context, identifier string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.buckets, identifier)
	return nil
}

func (m *MemoryBackend) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.buckets = make(map[string]*bucket)
	return nil
}

// Size reports the number of tracked identifiers.
func (m *MemoryBackend) Size() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.buckets)
}

// refillLocked fetches or creates the bucket for identifier and applies
// elapsed-time refill. Caller holds m.mu.
func (m *MemoryBackend) refillLocked(identifier string, capacity, rate float64, now time.Time) *bucket {
	b, ok := m.buckets[identifier]
	if !ok {
		if len(m.buckets) >= m.maxEntries {
			m.evictLocked()
		}
		b = &bucket{tokens: capacity, lastSeen: now}
		m.buckets[identifier] = b
		return b
	}
	elapsed := now.Sub(b.lastSeen).Seconds()
	if elapsed > 0 {
		b.tokens = math.Min(capacity, b.tokens+elapsed*rate)
	}
	b.lastSeen = now
	return b
}

func (m *MemoryBackend) resetAt(b *bucket, capacity, rate float64, now time.Time) time.Time {
	deficit := capacity - b.tokens
	if deficit <= 0 {
		return now
	}
	return now.Add(time.Duration(deficit / rate * float64(time.Second)))
}

// evictLocked drops the oldest 10% of entries in one batch so eviction
// cost amortizes instead of running on every insert.
func (m *MemoryBackend) evictLocked() {
	type entry struct {
		id       string
		lastSeen time.Time
	}
	entries := make([]entry, 0, len(m.buckets))
	for id, b := range m.buckets {
		entries = append(entries, entry{id, b.lastSeen})
	}
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].lastSeen.Before(entries[j].lastSeen)
	})
	n := len(entries) / 10
	if n < 1 {
		n = 1
	}
	for _, e := range entries[:n] {
		delete(m.buckets, e.id)
	}
}
