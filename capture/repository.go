package capture

import (
	"context"
	"time"
)

// Reader provides read operations for captured requests
type Reader interface {
	/* ListByToken returns every non-expired capture of a token, unordered.
	 * No captures is an empty result, not an error.
	 */
	ListByToken(ctx context.Context, tokenID string) ([]CapturedRequest, error)
}

// Writer provides write operations for captured requests
type Writer interface {
	/* Store writes one capture under (tokenID, id), expiring at the absolute
	 * instant expireAt. A zero expireAt stores it without expiry.
	 */
	Store(ctx context.Context, c CapturedRequest, expireAt time.Time) error
	/* DeleteByToken is best-effort: it returns how many records were removed
	 * together with the first error it hit.
	 */
	DeleteByToken(ctx context.Context, tokenID string) (int, error)
}

type Repository interface {
	Reader
	Writer
}

// TokenTTL reports the remaining lifetime of the parent token at write time
type TokenTTL interface {
	TTL(ctx context.Context, tokenID string) (time.Duration, error)
}
