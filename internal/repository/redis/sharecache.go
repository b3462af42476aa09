package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/sectorlens/sectorlens/internal/domain"
)

const (
	shareCachePrefix     = "share:"
	defaultShareCacheTTL = 5 * time.Minute
)

// ShareCache caches shared conversation snapshots in Redis. Shares are
// immutable once published, so a cache hit never needs revalidation.
type ShareCache struct {
	client *Client
	ttl    time.Duration
}

// NewShareCache creates a new share cache. A non-positive ttl uses the
// default.
func NewShareCache(client *Client, ttl time.Duration) *ShareCache {
	if ttl <= 0 {
		ttl = defaultShareCacheTTL
	}
	return &ShareCache{client: client, ttl: ttl}
}

// Get retrieves a cached share snapshot
func (c *ShareCache) Get(ctx context.Context, shareID uuid.UUID) (*domain.SharedConversation, error) {
	key := fmt.Sprintf("%s%s", shareCachePrefix, shareID.String())

	data, err := c.client.rdb.Get(ctx, key).Bytes()
	if err != nil {
		return nil, nil // Cache miss
	}

	var share domain.SharedConversation
	if err := json.Unmarshal(data, &share); err != nil {
		return nil, fmt.Errorf("failed to unmarshal cached share: %w", err)
	}

	return &share, nil
}

// Set caches a share snapshot
func (c *ShareCache) Set(ctx context.Context, share *domain.SharedConversation) error {
	key := fmt.Sprintf("%s%s", shareCachePrefix, share.ID.String())

	data, err := json.Marshal(share)
	if err != nil {
		return fmt.Errorf("failed to marshal share: %w", err)
	}

	return c.client.rdb.Set(ctx, key, data, c.ttl).Err()
}

// Invalidate removes a cached share snapshot
func (c *ShareCache) Invalidate(ctx context.Context, shareID uuid.UUID) error {
	key := fmt.Sprintf("%s%s", shareCachePrefix, shareID.String())
	return c.client.rdb.Del(ctx, key).Err()
}
