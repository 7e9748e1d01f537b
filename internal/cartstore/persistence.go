package cartstore

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/shopmate/storefront-backend/pkg/config"
	"github.com/shopmate/storefront-backend/pkg/redis"
)

// MemoryPersistence keeps the guest cart in process memory. Used in
// tests and as a fallback when no durable layer is configured.
type MemoryPersistence struct {
	mu    sync.Mutex
	lines map[string]Line
}

func NewMemoryPersistence() *MemoryPersistence {
	return &MemoryPersistence{}
}

func (m *MemoryPersistence) Load(ctx context.Context) (map[string]Line, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.lines == nil {
		return nil, nil
	}
	return copyLines(m.lines), nil
}

func (m *MemoryPersistence) Save(ctx context.Context, lines map[string]Line) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lines = copyLines(lines)
	return nil
}

// RedisPersistence stores the guest cart as a JSON document keyed by
// the guest session id. Only the line map is serialized; transient
// store state never reaches the wire.
type RedisPersistence struct {
	client    *redis.Client
	sessionID string
	ttl       time.Duration
}

// NewRedisPersistence binds a guest session's cart document to Redis.
// The document expires after cfg.GuestTTL so abandoned carts age out.
func NewRedisPersistence(client *redis.Client, sessionID string, cfg config.CartConfig) (*RedisPersistence, error) {
	if client == nil {
		return nil, fmt.Errorf("redis client is required")
	}
	if sessionID == "" {
		return nil, fmt.Errorf("guest session id is required")
	}
	return &RedisPersistence{client: client, sessionID: sessionID, ttl: cfg.GuestTTL}, nil
}

func (r *RedisPersistence) Load(ctx context.Context) (map[string]Line, error) {
	raw, err := r.client.Get(ctx, r.client.GuestCartKey(r.sessionID))
	if err != nil {
		if redis.Nil(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("redis get guest cart: %w", err)
	}

	var lines map[string]Line
	if err := json.Unmarshal([]byte(raw), &lines); err != nil {
		return nil, fmt.Errorf("unmarshal guest cart: %w", err)
	}
	return lines, nil
}

func (r *RedisPersistence) Save(ctx context.Context, lines map[string]Line) error {
	data, err := json.Marshal(lines)
	if err != nil {
		return fmt.Errorf("marshal guest cart: %w", err)
	}
	if err := r.client.Set(ctx, r.client.GuestCartKey(r.sessionID), data, r.ttl); err != nil {
		return fmt.Errorf("redis set guest cart: %w", err)
	}
	return nil
}
