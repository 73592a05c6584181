package metrics

import (
	"context"
	"fmt"
	"time"

	"github.com/marcelsud/webhook-sink/store"
	"github.com/redis/go-redis/v9"
)

// RedisCollector implements the Collector interface for Redis-backed metrics
type RedisCollector struct {
	client *redis.Client
	keys   store.Keyspace
}

// NewRedisCollector creates a new Redis metrics collector
func NewRedisCollector(client *redis.Client, keys store.Keyspace) *RedisCollector {
	return &RedisCollector{
		client: client,
		keys:   keys,
	}
}

// Collect gathers all metrics from Redis
func (c *RedisCollector) Collect(ctx context.Context) (Metrics, error) {
	tokens, err := c.GetActiveTokens(ctx)
	if err != nil {
		return Metrics{}, fmt.Errorf("getting active tokens: %w", err)
	}

	perToken, err := c.GetCaptureCounts(ctx)
	if err != nil {
		return Metrics{}, fmt.Errorf("getting capture counts: %w", err)
	}

	var total int64
	for _, n := range perToken {
		total += n
	}

	return Metrics{
		ActiveTokens:     tokens,
		StoredCaptures:   total,
		CapturesPerToken: perToken,
		Timestamp:        time.Now(),
	}, nil
}

// GetActiveTokens counts token keys
func (c *RedisCollector) GetActiveTokens(ctx context.Context) (int64, error) {
	var count int64
	var cursor uint64

	for {
		keys, nextCursor, err := c.client.Scan(ctx, cursor, c.keys.TokenPattern(), 1000).Result()
		if err != nil {
			return 0, fmt.Errorf("scanning token keys: %w", err)
		}
		count += int64(len(keys))

		cursor = nextCursor
		if cursor == 0 {
			break
		}
	}

	return count, nil
}

// GetCaptureCounts groups capture keys by the token id embedded in them
func (c *RedisCollector) GetCaptureCounts(ctx context.Context) (map[string]int64, error) {
	counts := make(map[string]int64)
	var cursor uint64

	for {
		keys, nextCursor, err := c.client.Scan(ctx, cursor, c.keys.AllCapturesPattern(), 1000).Result()
		if err != nil {
			return nil, fmt.Errorf("scanning capture keys: %w", err)
		}

		for _, key := range keys {
			tokenID, ok := c.keys.CaptureTokenID(key)
			if !ok {
				continue
			}
			counts[tokenID]++
		}

		cursor = nextCursor
		if cursor == 0 {
			break
		}
	}

	return counts, nil
}
