package tenant

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"
)

// Info describes a registered tenant.
type Info struct {
	ID       string            `json:"id"`
	Name     string            `json:"name,omitempty"`
	Active   bool              `json:"active"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

// Store looks up tenant records for validation.
type Store interface {
	GetTenant(ctx context.Context, tenantID string) (*Info, error)
}

// MemoryStore is an in-process tenant registry.
type MemoryStore struct {
	mu      sync.RWMutex
	tenants map[string]*Info
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{tenants: make(map[string]*Info)}
}

func (s *MemoryStore) GetTenant(_ context.Context, tenantID string) (*Info, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	info, ok := s.tenants[tenantID]
	if !ok {
		return nil, NotFound(tenantID)
	}
	clone := *info
	return &clone, nil
}

// Register adds or replaces a tenant record.
func (s *MemoryStore) Register(info Info) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tenants[info.ID] = &info
}

// Unregister removes a tenant record.
func (s *MemoryStore) Unregister(tenantID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.tenants, tenantID)
}

// SetActive flips a tenant's active flag.
func (s *MemoryStore) SetActive(tenantID string, active bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	info, ok := s.tenants[tenantID]
	if !ok {
		return NotFound(tenantID)
	}
	info.Active = active
	return nil
}

// List returns all registered tenants.
func (s *MemoryStore) List() []Info {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Info, 0, len(s.tenants))
	for _, info := range s.tenants {
		out = append(out, *info)
	}
	return out
}

// RedisStore reads tenant records as JSON values under a key prefix, so
// multiple instances share one registry.
type RedisStore struct {
	client    *redis.Client
	keyPrefix string
	timeout   time.Duration
}

func NewRedisStore(client *redis.Client, keyPrefix string, timeout time.Duration) *RedisStore {
	if keyPrefix == "" {
		keyPrefix = "gatewarden:tenant:"
	}
	if timeout <= 0 {
		timeout = 100 * time.Millisecond
	}
	return &RedisStore{client: client, keyPrefix: keyPrefix, timeout: timeout}
}

func (s *RedisStore) GetTenant(ctx context.Context, tenantID string) (*Info, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	data, err := s.client.Get(ctx, s.keyPrefix+tenantID).Bytes()
	if err == redis.Nil {
		return nil, NotFound(tenantID)
	}
	if err != nil {
		return nil, fmt.Errorf("tenant lookup failed: %w", err)
	}
	var info Info
	if err := json.Unmarshal(data, &info); err != nil {
		return nil, fmt.Errorf("failed to decode tenant record: %w", err)
	}
	return &info, nil
}

// PutTenant writes a tenant record. Used by provisioning tooling and tests.
func (s *RedisStore) PutTenant(ctx context.Context, info Info) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	data, err := json.Marshal(info)
	if err != nil {
		return fmt.Errorf("failed to encode tenant record: %w", err)
	}
	if err := s.client.Set(ctx, s.keyPrefix+info.ID, data, 0).Err(); err != nil {
		return fmt.Errorf("failed to store tenant record: %w", err)
	}
	return nil
}
