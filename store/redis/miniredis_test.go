package redis_test

import (
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/marcelsud/webhook-sink/store"
	"github.com/marcelsud/webhook-sink/store/redis"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

type fixture struct {
	mr       *miniredis.Miniredis
	client   *goredis.Client
	keys     store.Keyspace
	tokens   *redis.TokenRepository
	captures *redis.CaptureRepository
}

// newFixture starts an in-process Redis and wires both repositories to it
func newFixture(t *testing.T) *fixture {
	t.Helper()

	mr := miniredis.RunT(t)
	client, err := redis.NewClient(redis.Options{Addr: mr.Addr()})
	require.NoError(t, err)
	t.Cleanup(func() { client.Close() })

	keys := store.NewKeyspace("")
	return &fixture{
		mr:       mr,
		client:   client,
		keys:     keys,
		tokens:   redis.NewTokenRepository(client, keys),
		captures: redis.NewCaptureRepository(client, keys),
	}
}
