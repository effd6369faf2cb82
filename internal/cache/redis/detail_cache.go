package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/dkoval/gemwatch/internal/domain"
)

// DetailCache implements domain.DetailCache with JSON values under a TTL.
// A hit spares one detail-page fetch, which matters under the per-item delay
// the marketplace requires.
type DetailCache struct {
	rdb *redis.Client
}

// NewDetailCache creates a DetailCache backed by the given client.
func NewDetailCache(c *Client) *DetailCache {
	return &DetailCache{rdb: c.Underlying()}
}

func detailKey(tokenAddress string) string {
	return "detail:" + tokenAddress
}

// Get returns the cached detail for a token, with found=false on a miss.
func (c *DetailCache) Get(ctx context.Context, tokenAddress string) (domain.Detail, bool, error) {
	data, err := c.rdb.Get(ctx, detailKey(tokenAddress)).Bytes()
	if errors.Is(err, redis.Nil) {
		return domain.Detail{}, false, nil
	}
	if err != nil {
		return domain.Detail{}, false, fmt.Errorf("redis: get detail %s: %w", tokenAddress, err)
	}

	var d domain.Detail
	if err := json.Unmarshal(data, &d); err != nil {
		// A corrupt entry is treated as a miss and will be overwritten.
		return domain.Detail{}, false, nil
	}
	return d, true, nil
}

// Set stores the detail for a token with the given TTL.
func (c *DetailCache) Set(ctx context.Context, tokenAddress string, d domain.Detail, ttl time.Duration) error {
	data, err := json.Marshal(d)
	if err != nil {
		return fmt.Errorf("redis: marshal detail %s: %w", tokenAddress, err)
	}
	if err := c.rdb.Set(ctx, detailKey(tokenAddress), data, ttl).Err(); err != nil {
		return fmt.Errorf("redis: set detail %s: %w", tokenAddress, err)
	}
	return nil
}
