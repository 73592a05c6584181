package capture

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/marcelsud/webhook-sink/token"
)

// UseCase defines the capture store operations
type UseCase interface {
	Append(ctx context.Context, tokenID string, c CapturedRequest) (CapturedRequest, error)
	List(ctx context.Context, tokenID string) ([]CapturedRequest, error)
	DeleteAll(ctx context.Context, tokenID string) (int, error)
}

/* Service owns ingestion and retrieval of captured requests.
 * A capture never outlives its token: it expires at the token's deadline,
 * derived from the remaining TTL read at write time, instead of a fresh duration.
 */
type Service struct {
	Repo   Repository
	Tokens TokenTTL

	now func() time.Time
}

// Option configures a Service
type Option func(*Service)

// WithClock replaces time.Now, mostly for tests
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		s.now = now
	}
}

// NewService creates a new capture service with dependency injection
func NewService(repo Repository, tokens TokenTTL, opts ...Option) *Service {
	s := &Service{
		Repo:   repo,
		Tokens: tokens,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Append stores c under tokenID. It fails with token.ErrNotFound, without
// writing anything, when the token is absent or has just expired.
func (s *Service) Append(ctx context.Context, tokenID string, c CapturedRequest) (CapturedRequest, error) {
	// anchored before the read, so the deadline can only fall before the token's
	readAt := s.now()
	ttl, err := s.Tokens.TTL(ctx, tokenID)
	if err != nil {
		return CapturedRequest{}, fmt.Errorf("reading parent token ttl: %w", err)
	}
	var expireAt time.Time
	switch {
	case ttl == token.NoExpiry:
	case ttl <= 0:
		return CapturedRequest{}, fmt.Errorf("reading parent token ttl: %w", token.ErrNotFound)
	default:
		expireAt = readAt.Add(ttl)
	}

	c.TokenID = tokenID
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	if c.ReceivedAt.IsZero() {
		c.ReceivedAt = s.now()
	}
	c.ReceivedAt = c.ReceivedAt.Truncate(time.Millisecond)
	if c.Body.Kind == 0 {
		c.Body = NullBody()
	}

	if err := s.Repo.Store(ctx, c, expireAt); err != nil {
		return CapturedRequest{}, fmt.Errorf("storing capture: %w", err)
	}
	return c, nil
}

// List returns the token's captures, newest first by ReceivedAt
func (s *Service) List(ctx context.Context, tokenID string) ([]CapturedRequest, error) {
	all, err := s.Repo.ListByToken(ctx, tokenID)
	if err != nil {
		return nil, fmt.Errorf("listing captures: %w", err)
	}
	if all == nil {
		return []CapturedRequest{}, nil
	}
	sort.SliceStable(all, func(i, j int) bool {
		if all[i].ReceivedAt.Equal(all[j].ReceivedAt) {
			return all[i].ID > all[j].ID
		}
		return all[i].ReceivedAt.After(all[j].ReceivedAt)
	})
	return all, nil
}

// DeleteAll removes every capture of a token; used by the token cascade
func (s *Service) DeleteAll(ctx context.Context, tokenID string) (int, error) {
	n, err := s.Repo.DeleteByToken(ctx, tokenID)
	if err != nil {
		return n, fmt.Errorf("deleting captures: %w", err)
	}
	return n, nil
}

// IsTokenGone reports whether an Append failed because the parent token vanished
func IsTokenGone(err error) bool {
	return errors.Is(err, token.ErrNotFound)
}
