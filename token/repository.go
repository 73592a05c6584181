package token

import (
	"context"
	"time"
)

// NoExpiry is reported by Reader.TTL for a token stored without an expiry
const NoExpiry time.Duration = -1

// Reader provides read operations for tokens
type Reader interface {
	/* Get returns ErrNotFound when the token is absent or expired */
	Get(ctx context.Context, id string) (Token, error)
	/* List returns every live token in no particular order.
	 * Records that cannot be parsed are skipped, never fatal.
	 */
	List(ctx context.Context) ([]Token, error)
	/* TTL returns the remaining lifetime, NoExpiry, or ErrNotFound */
	TTL(ctx context.Context, id string) (time.Duration, error)
}

// Writer provides write operations for tokens
type Writer interface {
	Create(ctx context.Context, t Token, ttl time.Duration) error
	/* Update replaces the stored record while keeping its remaining TTL.
	 * It must not recreate a token that vanished since it was read: ErrNotFound instead.
	 */
	Update(ctx context.Context, t Token) error
	/* Delete reports whether a record was actually removed */
	Delete(ctx context.Context, id string) (bool, error)
}

type Repository interface {
	Reader
	Writer
}

// CaptureRemover is the cascade hook used when a token is deleted
type CaptureRemover interface {
	DeleteAll(ctx context.Context, tokenID string) (int, error)
}
