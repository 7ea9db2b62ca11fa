package phototrack

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"rostertrail/internal/history"
	id "rostertrail/pkg/domain"
)

// hashTTL bounds staleness if a store append succeeds but the write-through
// is lost; the store fallback remains authoritative.
const hashTTL = 24 * time.Hour

// RedisHashCache keeps the latest photo content hash per actor and kind.
type RedisHashCache struct {
	client *redis.Client
}

// NewRedisHashCache wraps an existing client.
func NewRedisHashCache(client *redis.Client) *RedisHashCache {
	return &RedisHashCache{client: client}
}

func hashKey(actorID id.ActorID, kind history.PhotoKind) string {
	return fmt.Sprintf("photohash:%s:%s", actorID.String(), kind)
}

// GetHash returns the cached hash, or "" on a miss.
func (c *RedisHashCache) GetHash(ctx context.Context, actorID id.ActorID, kind history.PhotoKind) (string, error) {
	hash, err := c.client.Get(ctx, hashKey(actorID, kind)).Result()
	if errors.Is(err, redis.Nil) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("get photo hash: %w", err)
	}
	return hash, nil
}

// SetHash stores the hash for the actor and kind.
func (c *RedisHashCache) SetHash(ctx context.Context, actorID id.ActorID, kind history.PhotoKind, hash string) error {
	if err := c.client.Set(ctx, hashKey(actorID, kind), hash, hashTTL).Err(); err != nil {
		return fmt.Errorf("set photo hash: %w", err)
	}
	return nil
}
