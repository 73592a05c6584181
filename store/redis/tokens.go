package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/marcelsud/webhook-sink/store"
	"github.com/marcelsud/webhook-sink/token"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

/* TokenRepository implements token.Repository on plain string keys.
 * Value layout:
 * {"created":<ms>,"name":"…","config":{"status":…,"type":…,"body":…,"headers":[{"key","value"}]}}
 */
type TokenRepository struct {
	client *redis.Client
	keys   store.Keyspace
	logger zerolog.Logger
}

// NewTokenRepository creates a new Redis token repository
func NewTokenRepository(client *redis.Client, keys store.Keyspace, opts ...Option) *TokenRepository {
	o := applyOptions(opts)
	return &TokenRepository{
		client: client,
		keys:   keys,
		logger: o.logger,
	}
}

type tokenRecord struct {
	Created int64         `json:"created"`
	Name    string        `json:"name,omitempty"`
	Config  *configRecord `json:"config,omitempty"`
}

type configRecord struct {
	Status  statusCode     `json:"status"`
	Type    string         `json:"type"`
	Body    string         `json:"body"`
	Headers []headerRecord `json:"headers"`
}

type headerRecord struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

// statusCode accepts numbers and numeric strings; anything else reads as 0
type statusCode int

func (s *statusCode) UnmarshalJSON(data []byte) error {
	var n json.Number
	if err := json.Unmarshal(data, &n); err == nil {
		if v, err := n.Int64(); err == nil {
			*s = statusCode(v)
			return nil
		}
	}
	var str string
	if err := json.Unmarshal(data, &str); err == nil {
		if v, err := strconv.Atoi(str); err == nil {
			*s = statusCode(v)
			return nil
		}
	}
	*s = 0
	return nil
}

func toRecord(t token.Token) tokenRecord {
	headers := make([]headerRecord, 0, len(t.Config.Headers))
	for _, h := range t.Config.Headers {
		headers = append(headers, headerRecord{Key: h.Key, Value: h.Value})
	}
	return tokenRecord{
		Created: t.CreatedAt.UnixMilli(),
		Name:    t.Name,
		Config: &configRecord{
			Status:  statusCode(t.Config.StatusCode),
			Type:    t.Config.BodyKind.String(),
			Body:    t.Config.Body,
			Headers: headers,
		},
	}
}

func fromRecord(id string, data string) (token.Token, error) {
	var rec tokenRecord
	if err := json.Unmarshal([]byte(data), &rec); err != nil {
		return token.Token{}, fmt.Errorf("unmarshaling token %s: %w", id, err)
	}

	cfg := token.DefaultResponseConfig()
	if rec.Config != nil {
		cfg = token.ResponseConfig{
			StatusCode: int(rec.Config.Status),
			BodyKind:   token.NewBodyKind(rec.Config.Type),
			Body:       rec.Config.Body,
			Headers:    make([]token.Header, 0, len(rec.Config.Headers)),
		}
		for _, h := range rec.Config.Headers {
			cfg.Headers = append(cfg.Headers, token.Header{Key: h.Key, Value: h.Value})
		}
	}

	t := token.Token{
		ID:        id,
		Name:      rec.Name,
		CreatedAt: time.UnixMilli(rec.Created),
		Config:    cfg,
	}
	if t.Name == "" {
		t.Name = t.DisplayName()
	}
	return t, nil
}

// Create stores a new token. NX guards against the practically impossible id collision.
func (r *TokenRepository) Create(ctx context.Context, t token.Token, ttl time.Duration) error {
	data, err := json.Marshal(toRecord(t))
	if err != nil {
		return fmt.Errorf("marshaling token: %w", err)
	}

	err = r.client.SetArgs(ctx, r.keys.Token(t.ID), data, redis.SetArgs{
		Mode: "NX",
		TTL:  ttl,
	}).Err()
	if isNil(err) {
		return fmt.Errorf("token id %s already taken", t.ID)
	}
	if err != nil {
		return fmt.Errorf("storing token: %w", unavailable(err))
	}
	return nil
}

// Get retrieves a token by id
func (r *TokenRepository) Get(ctx context.Context, id string) (token.Token, error) {
	data, err := r.client.Get(ctx, r.keys.Token(id)).Result()
	if isNil(err) {
		return token.Token{}, token.ErrNotFound
	}
	if err != nil {
		return token.Token{}, fmt.Errorf("getting token: %w", unavailable(err))
	}
	return fromRecord(id, data)
}

// List returns every live token, skipping records that fail to parse
func (r *TokenRepository) List(ctx context.Context) ([]token.Token, error) {
	keys, err := scanKeys(ctx, r.client, r.keys.TokenPattern())
	if err != nil {
		return nil, fmt.Errorf("scanning token keys: %w", err)
	}
	values, err := getAll(ctx, r.client, keys)
	if err != nil {
		return nil, fmt.Errorf("getting tokens: %w", err)
	}

	tokens := make([]token.Token, 0, len(values))
	for key, data := range values {
		id, ok := r.keys.TokenID(key)
		if !ok {
			continue
		}
		t, err := fromRecord(id, data)
		if err != nil {
			r.logger.Warn().Err(err).Str("key", key).Msg("skipping unreadable token")
			continue
		}
		tokens = append(tokens, t)
	}
	return tokens, nil
}

// TTL returns the remaining lifetime with millisecond precision
func (r *TokenRepository) TTL(ctx context.Context, id string) (time.Duration, error) {
	ttl, err := r.client.PTTL(ctx, r.keys.Token(id)).Result()
	if err != nil {
		return 0, fmt.Errorf("reading token ttl: %w", unavailable(err))
	}
	switch ttl {
	case -2:
		return 0, token.ErrNotFound
	case -1:
		return token.NoExpiry, nil
	}
	return ttl, nil
}

// Update rewrites the record with SET XX KEEPTTL: the remaining TTL is kept and a
// token that expired or was deleted since it was read is never recreated.
func (r *TokenRepository) Update(ctx context.Context, t token.Token) error {
	data, err := json.Marshal(toRecord(t))
	if err != nil {
		return fmt.Errorf("marshaling token: %w", err)
	}

	err = r.client.SetArgs(ctx, r.keys.Token(t.ID), data, redis.SetArgs{
		Mode:    "XX",
		KeepTTL: true,
	}).Err()
	if isNil(err) {
		return token.ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("updating token: %w", unavailable(err))
	}
	return nil
}

// Delete removes the token record only; captures are the capture repository's job
func (r *TokenRepository) Delete(ctx context.Context, id string) (bool, error) {
	n, err := r.client.Del(ctx, r.keys.Token(id)).Result()
	if err != nil {
		return false, fmt.Errorf("deleting token: %w", unavailable(err))
	}
	return n > 0, nil
}

// Ping reports whether the store answers
func (r *TokenRepository) Ping(ctx context.Context) error {
	if err := r.client.Ping(ctx).Err(); err != nil {
		return unavailable(err)
	}
	return nil
}
