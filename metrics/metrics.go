package metrics

import (
	"context"
	"time"
)

// Metrics represents the current state of the webhook sink.
type Metrics struct {
	// ActiveTokens is the number of live (non-expired, non-deleted) tokens
	ActiveTokens int64 `json:"active_tokens"`

	// StoredCaptures is the number of live captured requests across all tokens
	StoredCaptures int64 `json:"stored_captures"`

	// CapturesPerToken maps token id to the number of live captures
	CapturesPerToken map[string]int64 `json:"captures_per_token"`

	// Timestamp when metrics were collected
	Timestamp time.Time `json:"timestamp"`
}

// Collector defines the interface for collecting metrics from the store.
type Collector interface {
	// Collect gathers current metrics from the system
	Collect(ctx context.Context) (Metrics, error)

	// GetActiveTokens returns the number of live tokens
	GetActiveTokens(ctx context.Context) (int64, error)

	// GetCaptureCounts returns the number of live captures per token
	GetCaptureCounts(ctx context.Context) (map[string]int64, error)
}
