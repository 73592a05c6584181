//go:build integration

package redis_test

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/marcelsud/webhook-sink/store"
	"github.com/marcelsud/webhook-sink/store/redis"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
	testcontainersredis "github.com/testcontainers/testcontainers-go/modules/redis"
)

/* Test helpers for Redis integration tests.
 * They run against a real Redis started by testcontainers.
 */

// RedisContainer holds the Redis testcontainer and connection details
type RedisContainer struct {
	Container *testcontainersredis.RedisContainer
	Addr      string
}

// SetupRedisContainer creates and starts a Redis testcontainer
func SetupRedisContainer(t *testing.T, ctx context.Context) (*RedisContainer, func()) {
	t.Helper()

	redisContainer, err := testcontainersredis.Run(ctx, "redis:7-alpine")
	require.NoError(t, err, "failed to start Redis container")

	addr, err := redisContainer.ConnectionString(ctx)
	require.NoError(t, err, "failed to get Redis connection string")
	addr = strings.TrimPrefix(addr, "redis://")

	// Wait for Redis to be ready
	time.Sleep(1 * time.Second)

	cleanup := func() {
		if err := redisContainer.Terminate(ctx); err != nil {
			t.Logf("failed to terminate Redis container: %v", err)
		}
	}

	return &RedisContainer{Container: redisContainer, Addr: addr}, cleanup
}

// CreateTestClient connects the adapter client to the test container
func CreateTestClient(t *testing.T, addr string) *goredis.Client {
	t.Helper()

	client, err := redis.NewClient(redis.Options{Addr: addr})
	require.NoError(t, err, "failed to create Redis client")
	t.Cleanup(func() { client.Close() })

	return client
}

// GetKeyTTL returns the TTL of a Redis key
func GetKeyTTL(t *testing.T, client *goredis.Client, key string) time.Duration {
	t.Helper()

	ttl, err := client.PTTL(context.Background(), key).Result()
	require.NoError(t, err)

	return ttl
}

// KeyExists checks if a Redis key exists
func KeyExists(t *testing.T, client *goredis.Client, key string) bool {
	t.Helper()

	exists, err := client.Exists(context.Background(), key).Result()
	require.NoError(t, err)

	return exists > 0
}

func testKeyspace() store.Keyspace {
	return store.NewKeyspace("it")
}
