package ledger

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisCache stores balance snapshots as JSON under gametime:balance:<user>.
type RedisCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisCache creates a Redis-backed snapshot cache.
func NewRedisCache(client *redis.Client, ttl time.Duration) *RedisCache {
	return &RedisCache{client: client, ttl: ttl}
}

func snapshotKey(userID string) string {
	return fmt.Sprintf("gametime:balance:%s", userID)
}

// Put saves b with the configured TTL.
func (c *RedisCache) Put(ctx context.Context, b *Balance) error {
	payload, err := json.Marshal(b)
	if err != nil {
		return fmt.Errorf("failed to encode snapshot: %w", err)
	}
	return c.client.Set(ctx, snapshotKey(b.UserID), payload, c.ttl).Err()
}

// Get loads the snapshot of userID, nil when absent or expired.
func (c *RedisCache) Get(ctx context.Context, userID string) (*Balance, error) {
	raw, err := c.client.Get(ctx, snapshotKey(userID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get snapshot: %w", err)
	}
	var b Balance
	if err := json.Unmarshal(raw, &b); err != nil {
		return nil, fmt.Errorf("failed to decode snapshot: %w", err)
	}
	return &b, nil
}

// MemoryCache keeps snapshots in process memory.
// Used when no Redis address is configured.
type MemoryCache struct {
	mu    sync.RWMutex
	items map[string]Balance
}

// NewMemoryCache creates an empty in-process cache.
func NewMemoryCache() *MemoryCache {
	return &MemoryCache{items: make(map[string]Balance)}
}

// Put stores a copy of b.
func (c *MemoryCache) Put(_ context.Context, b *Balance) error {
	c.mu.Lock()
	c.items[b.UserID] = *b
	c.mu.Unlock()
	return nil
}

// Get returns a copy of the snapshot, nil when absent.
func (c *MemoryCache) Get(_ context.Context, userID string) (*Balance, error) {
	c.mu.RLock()
	b, ok := c.items[userID]
	c.mu.RUnlock()
	if !ok {
		return nil, nil
	}
	return &b, nil
}
