package token

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// DefaultTTL is the lifetime of a freshly created token (30 days)
const DefaultTTL = 30 * 24 * time.Hour

// UseCase defines the token registry operations
type UseCase interface {
	Create(ctx context.Context, opts ...CreateOption) (Token, error)
	Get(ctx context.Context, id string) (Token, error)
	Rename(ctx context.Context, id, name string) (Token, error)
	UpdateConfig(ctx context.Context, id string, cfg ResponseConfig) (Token, error)
	Delete(ctx context.Context, id string) error
	List(ctx context.Context) ([]Token, error)
	TTL(ctx context.Context, id string) (time.Duration, error)
}

/* Service owns the token lifecycle.
 * Uses pointer semantics as it's an API, not data.
 * It never retries store calls: retry policy belongs to the caller.
 */
type Service struct {
	Repo     Repository
	Captures CaptureRemover

	ttl    time.Duration
	logger zerolog.Logger
	now    func() time.Time
}

// Option configures a Service
type Option func(*Service)

// WithTTL overrides the lifetime given to new tokens.
// Zero creates tokens that never expire; negative values are ignored.
func WithTTL(ttl time.Duration) Option {
	return func(s *Service) {
		if ttl >= 0 {
			s.ttl = ttl
		}
	}
}

func WithLogger(logger zerolog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

// WithClock replaces time.Now, mostly for tests
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		s.now = now
	}
}

// NewService creates a new token service with dependency injection.
// captures may be nil, in which case deletes do not cascade.
func NewService(repo Repository, captures CaptureRemover, opts ...Option) *Service {
	s := &Service{
		Repo:     repo,
		Captures: captures,
		ttl:      DefaultTTL,
		logger:   zerolog.Nop(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

type createOptions struct {
	name   string
	config *ResponseConfig
}

// CreateOption customises a token at creation time
type CreateOption func(*createOptions)

// WithName sets the initial name; blank names keep the generated default
func WithName(name string) CreateOption {
	return func(o *createOptions) {
		o.name = strings.TrimSpace(name)
	}
}

// WithConfig sets the initial response config instead of the default one
func WithConfig(cfg ResponseConfig) CreateOption {
	return func(o *createOptions) {
		o.config = &cfg
	}
}

// Create stores a new token with a full, fresh TTL, or none when the service TTL is zero
func (s *Service) Create(ctx context.Context, opts ...CreateOption) (Token, error) {
	var o createOptions
	for _, opt := range opts {
		opt(&o)
	}

	now := s.now()
	t := Token{
		ID:        NewID(now),
		Name:      DefaultName(now),
		CreatedAt: now.Truncate(time.Millisecond),
		Config:    DefaultResponseConfig(),
	}
	if o.name != "" {
		t.Name = o.name
	}
	if o.config != nil {
		cfg, err := o.config.Normalize()
		if err != nil {
			return Token{}, fmt.Errorf("validating response config: %w", err)
		}
		t.Config = cfg
	}

	if err := s.Repo.Create(ctx, t, s.ttl); err != nil {
		return Token{}, fmt.Errorf("creating token: %w", err)
	}
	return t, nil
}

// Get returns the current token record or ErrNotFound
func (s *Service) Get(ctx context.Context, id string) (Token, error) {
	t, err := s.Repo.Get(ctx, id)
	if err != nil {
		return Token{}, fmt.Errorf("getting token: %w", err)
	}
	return t, nil
}

// Rename changes the token label without touching its remaining TTL
func (s *Service) Rename(ctx context.Context, id, name string) (Token, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return Token{}, fmt.Errorf("%w: name cannot be empty", ErrInvalidArgument)
	}

	t, err := s.Repo.Get(ctx, id)
	if err != nil {
		return Token{}, fmt.Errorf("getting token: %w", err)
	}
	t.Name = name

	if err := s.Repo.Update(ctx, t); err != nil {
		return Token{}, fmt.Errorf("renaming token: %w", err)
	}
	return t, nil
}

// UpdateConfig replaces the response configuration, preserving the remaining TTL
func (s *Service) UpdateConfig(ctx context.Context, id string, cfg ResponseConfig) (Token, error) {
	cfg, err := cfg.Normalize()
	if err != nil {
		return Token{}, fmt.Errorf("validating response config: %w", err)
	}

	t, err := s.Repo.Get(ctx, id)
	if err != nil {
		return Token{}, fmt.Errorf("getting token: %w", err)
	}
	t.Config = cfg

	if err := s.Repo.Update(ctx, t); err != nil {
		return Token{}, fmt.Errorf("updating response config: %w", err)
	}
	return t, nil
}

// Delete removes the token and cascades to its captures.
// Deleting a token that is already gone succeeds; the cascade still runs so
// that captures left behind by an earlier partial delete are cleaned up.
func (s *Service) Delete(ctx context.Context, id string) error {
	removed, err := s.Repo.Delete(ctx, id)
	if err != nil {
		return fmt.Errorf("deleting token: %w", err)
	}

	if s.Captures == nil {
		return nil
	}
	n, err := s.Captures.DeleteAll(ctx, id)
	if err != nil {
		// leftovers still expire on their inherited TTL
		s.logger.Warn().Err(err).
			Str("token", id).
			Int("captures_removed", n).
			Msg("cascade delete incomplete")
		return nil
	}
	s.logger.Debug().
		Str("token", id).
		Bool("token_removed", removed).
		Int("captures_removed", n).
		Msg("token deleted")
	return nil
}

// List returns all live tokens, newest first
func (s *Service) List(ctx context.Context) ([]Token, error) {
	all, err := s.Repo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing tokens: %w", err)
	}
	sort.SliceStable(all, func(i, j int) bool {
		if all[i].CreatedAt.Equal(all[j].CreatedAt) {
			return all[i].ID > all[j].ID
		}
		return all[i].CreatedAt.After(all[j].CreatedAt)
	})
	return all, nil
}

// TTL returns the remaining lifetime of a token, or NoExpiry
func (s *Service) TTL(ctx context.Context, id string) (time.Duration, error) {
	ttl, err := s.Repo.TTL(ctx, id)
	if err != nil {
		return 0, fmt.Errorf("reading token ttl: %w", err)
	}
	return ttl, nil
}

// IsNotFound reports whether err means the token is absent or expired
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}
