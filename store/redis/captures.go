package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/marcelsud/webhook-sink/capture"
	"github.com/marcelsud/webhook-sink/store"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// delBatch caps the number of keys sent in one DEL
const delBatch = 100

/* CaptureRepository implements capture.Repository.
 * Captures live under the compound key {prefix}:request:{tokenID}:{requestID}
 * so one token's history is a prefix scan, no secondary index needed.
 */
type CaptureRepository struct {
	client *redis.Client
	keys   store.Keyspace
	logger zerolog.Logger
}

// NewCaptureRepository creates a new Redis capture repository
func NewCaptureRepository(client *redis.Client, keys store.Keyspace, opts ...Option) *CaptureRepository {
	o := applyOptions(opts)
	return &CaptureRepository{
		client: client,
		keys:   keys,
		logger: o.logger,
	}
}

type captureRecord struct {
	ID          string              `json:"id"`
	Token       string              `json:"token"`
	Timestamp   int64               `json:"timestamp"`
	Method      string              `json:"method"`
	Path        string              `json:"path"`
	Headers     map[string]string   `json:"headers"`
	Query       map[string][]string `json:"query"`
	RemoteAddr  string              `json:"remote_addr,omitempty"`
	ContentType string              `json:"content_type,omitempty"`
	Size        int                 `json:"size"`
	BodyKind    string              `json:"body_kind"`
	Body        json.RawMessage     `json:"body"`
	Response    responseRecord      `json:"response"`
}

type responseRecord struct {
	Status  int               `json:"status"`
	Headers map[string]string `json:"headers"`
	Body    string            `json:"body"`
}

/* Store writes one capture with an absolute PEXPIREAT deadline in the same
 * MULTI as the SET, so the record never exists without its expiry.
 * A zero expireAt keeps it until the token cascade removes it.
 */
func (r *CaptureRepository) Store(ctx context.Context, c capture.CapturedRequest, expireAt time.Time) error {
	rec := captureRecord{
		ID:          c.ID,
		Token:       c.TokenID,
		Timestamp:   c.ReceivedAt.UnixMilli(),
		Method:      c.Method,
		Path:        c.Path,
		Headers:     c.Headers,
		Query:       c.Query,
		RemoteAddr:  c.RemoteAddr,
		ContentType: c.ContentType,
		Size:        c.Size,
		BodyKind:    c.Body.Kind.String(),
		Body:        c.Body.JSONValue(),
		Response: responseRecord{
			Status:  c.RespondedWith.Status,
			Headers: c.RespondedWith.Headers,
			Body:    c.RespondedWith.Body,
		},
	}
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshaling capture: %w", err)
	}

	key := r.keys.Capture(c.TokenID, c.ID)
	_, err = r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, key, data, 0)
		if !expireAt.IsZero() {
			pipe.PExpireAt(ctx, key, expireAt)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("storing capture: %w", unavailable(err))
	}
	return nil
}

// ListByToken returns every live capture of a token, skipping unreadable records
func (r *CaptureRepository) ListByToken(ctx context.Context, tokenID string) ([]capture.CapturedRequest, error) {
	keys, err := scanKeys(ctx, r.client, r.keys.CapturePattern(tokenID))
	if err != nil {
		return nil, fmt.Errorf("scanning capture keys: %w", err)
	}
	values, err := getAll(ctx, r.client, keys)
	if err != nil {
		return nil, fmt.Errorf("getting captures: %w", err)
	}

	captures := make([]capture.CapturedRequest, 0, len(values))
	for key, data := range values {
		var rec captureRecord
		if err := json.Unmarshal([]byte(data), &rec); err != nil {
			r.logger.Warn().Err(err).Str("key", key).Msg("skipping unreadable capture")
			continue
		}
		captures = append(captures, fromCaptureRecord(tokenID, rec))
	}
	return captures, nil
}

func fromCaptureRecord(tokenID string, rec captureRecord) capture.CapturedRequest {
	body := capture.Body{Kind: capture.NewBodyKind(rec.BodyKind), Value: rec.Body}
	if len(body.Value) == 0 {
		body = capture.NullBody()
	}
	if rec.Token != "" {
		tokenID = rec.Token
	}
	return capture.CapturedRequest{
		ID:          rec.ID,
		TokenID:     tokenID,
		ReceivedAt:  time.UnixMilli(rec.Timestamp),
		Method:      rec.Method,
		Path:        rec.Path,
		Headers:     rec.Headers,
		Query:       rec.Query,
		RemoteAddr:  rec.RemoteAddr,
		ContentType: rec.ContentType,
		Size:        rec.Size,
		Body:        body,
		RespondedWith: capture.Response{
			Status:  rec.Response.Status,
			Headers: rec.Response.Headers,
			Body:    rec.Response.Body,
		},
	}
}

// DeleteByToken removes a token's captures batch by batch.
// A failing batch does not stop the others; the first error is returned.
func (r *CaptureRepository) DeleteByToken(ctx context.Context, tokenID string) (int, error) {
	keys, err := scanKeys(ctx, r.client, r.keys.CapturePattern(tokenID))
	if err != nil {
		return 0, fmt.Errorf("scanning capture keys: %w", err)
	}

	var removed int
	var firstErr error
	for start := 0; start < len(keys); start += delBatch {
		end := min(start+delBatch, len(keys))
		n, err := r.client.Del(ctx, keys[start:end]...).Result()
		if err != nil {
			if firstErr == nil {
				firstErr = fmt.Errorf("deleting captures: %w", unavailable(err))
			}
			continue
		}
		removed += int(n)
	}
	return removed, firstErr
}
