package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/marcelsud/webhook-sink/store"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// DefaultTimeout bounds every store round trip
const DefaultTimeout = 3 * time.Second

// scanCount is the COUNT hint used for every SCAN iteration
const scanCount = 100

// Options configures the Redis connection
type Options struct {
	Addr     string
	Password string
	DB       int
	Timeout  time.Duration
}

/* NewClient connects to Redis and checks the connection.
 * Client-side retries are disabled: a failed or timed-out call surfaces as
 * store.ErrUnavailable and the caller decides whether to try again.
 */
func NewClient(opts Options) (*redis.Client, error) {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	client := redis.NewClient(&redis.Options{
		Addr:         opts.Addr,
		Password:     opts.Password,
		DB:           opts.DB,
		DialTimeout:  timeout,
		ReadTimeout:  timeout,
		WriteTimeout: timeout,
		MaxRetries:   -1,
	})

	// Test connection
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("connecting to Redis: %w", unavailable(err))
	}
	return client, nil
}

// Option configures a repository
type Option func(*repoOptions)

type repoOptions struct {
	logger zerolog.Logger
}

// WithLogger sets where skipped records are reported
func WithLogger(logger zerolog.Logger) Option {
	return func(o *repoOptions) {
		o.logger = logger
	}
}

func applyOptions(opts []Option) repoOptions {
	o := repoOptions{logger: zerolog.Nop()}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// unavailable tags an infrastructure error so callers can classify it
func unavailable(err error) error {
	return fmt.Errorf("%w: %w", store.ErrUnavailable, err)
}

func isNil(err error) bool {
	return errors.Is(err, redis.Nil)
}

// scanKeys walks the keyspace with SCAN, the non-blocking equivalent of KEYS pattern
func scanKeys(ctx context.Context, client *redis.Client, pattern string) ([]string, error) {
	var keys []string
	var cursor uint64
	for {
		batch, next, err := client.Scan(ctx, cursor, pattern, scanCount).Result()
		if err != nil {
			return nil, unavailable(err)
		}
		keys = append(keys, batch...)

		cursor = next
		if cursor == 0 {
			break
		}
	}
	return keys, nil
}

// getAll fetches many keys in one pipeline; keys that expired meanwhile are left out
func getAll(ctx context.Context, client *redis.Client, keys []string) (map[string]string, error) {
	values := make(map[string]string, len(keys))
	if len(keys) == 0 {
		return values, nil
	}

	pipe := client.Pipeline()
	cmds := make([]*redis.StringCmd, len(keys))
	for i, key := range keys {
		cmds[i] = pipe.Get(ctx, key)
	}
	if _, err := pipe.Exec(ctx); err != nil && !isNil(err) {
		return nil, unavailable(err)
	}

	for i, cmd := range cmds {
		data, err := cmd.Result()
		if err != nil {
			// Key expired between scan and get
			continue
		}
		values[keys[i]] = data
	}
	return values, nil
}
