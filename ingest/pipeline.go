package ingest

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/marcelsud/webhook-sink/capture"
	"github.com/marcelsud/webhook-sink/capture/payload"
	"github.com/marcelsud/webhook-sink/response"
	"github.com/marcelsud/webhook-sink/token"
	"github.com/rs/zerolog"
)

// Inbound is the raw snapshot of one call to /webhook/{token}
type Inbound struct {
	Method      string
	Path        string
	RemoteAddr  string
	ContentType string
	Header      http.Header
	Query       url.Values
	Body        []byte
	// BodyErr is set when reading the body failed part way; it is absorbed
	BodyErr    error
	ReceivedAt time.Time
}

// TokenSource is the slice of the token registry the pipeline needs
type TokenSource interface {
	Get(ctx context.Context, id string) (token.Token, error)
}

// CaptureAppender is the slice of the capture store the pipeline needs
type CaptureAppender interface {
	Append(ctx context.Context, tokenID string, c capture.CapturedRequest) (capture.CapturedRequest, error)
}

// Observer receives one outcome per handled call
type Observer interface {
	ObserveIngest(ctx context.Context, outcome Outcome)
}

/* Pipeline ties registry, synthesizer and capture store together.
 * It computes the response first and writes history second: a failed capture
 * is logged and counted but never changes what the caller receives.
 */
type Pipeline struct {
	Tokens   TokenSource
	Captures CaptureAppender

	logger   zerolog.Logger
	observer Observer
	now      func() time.Time
}

// Option configures a Pipeline
type Option func(*Pipeline)

func WithLogger(logger zerolog.Logger) Option {
	return func(p *Pipeline) {
		p.logger = logger
	}
}

func WithObserver(observer Observer) Option {
	return func(p *Pipeline) {
		p.observer = observer
	}
}

// WithClock replaces time.Now, mostly for tests
func WithClock(now func() time.Time) Option {
	return func(p *Pipeline) {
		p.now = now
	}
}

// NewPipeline creates a new ingestion pipeline with dependency injection
func NewPipeline(tokens TokenSource, captures CaptureAppender, opts ...Option) *Pipeline {
	p := &Pipeline{
		Tokens:   tokens,
		Captures: captures,
		logger:   zerolog.Nop(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Handle runs one call through the pipeline, up to Captured.
// token.ErrNotFound means the call was rejected and nothing was captured;
// any other error means no response could be computed.
// Writing the response, and with it Replied, is left to the caller.
func (p *Pipeline) Handle(ctx context.Context, tokenID string, in Inbound) (response.Response, error) {
	log := p.logger.With().Str("token", tokenID).Str("method", in.Method).Logger()
	if in.ReceivedAt.IsZero() {
		in.ReceivedAt = p.now()
	}

	t, err := p.Tokens.Get(ctx, tokenID)
	if err != nil {
		if errors.Is(err, token.ErrNotFound) {
			log.Debug().Stringer("stage", Rejected).Msg("unknown or expired token")
			p.observe(ctx, OutcomeRejected)
			return response.Response{}, fmt.Errorf("looking up token: %w", err)
		}
		p.observe(ctx, OutcomeFailed)
		return response.Response{}, fmt.Errorf("%s: %w", TokenLookup, err)
	}

	body, err := payload.Decode(in.ContentType, in.Body)
	if err == nil && in.BodyErr != nil {
		err = in.BodyErr
	}
	if err != nil {
		log.Debug().Err(err).Str("content_type", in.ContentType).Msg("body kept as placeholder")
	}

	resp := response.Synthesize(t.Config)

	status, headers, sent := resp.Snapshot()
	record := capture.CapturedRequest{
		ReceivedAt:  in.ReceivedAt,
		Method:      in.Method,
		Path:        in.Path,
		Headers:     capture.FlattenHeaders(in.Header),
		Query:       map[string][]string(in.Query),
		RemoteAddr:  in.RemoteAddr,
		ContentType: in.ContentType,
		Size:        len(in.Body),
		Body:        body,
		RespondedWith: capture.Response{
			Status:  status,
			Headers: headers,
			Body:    sent,
		},
	}
	if record.Query == nil {
		record.Query = map[string][]string{}
	}

	// a caller hanging up must not cost us the history entry
	stored, err := p.Captures.Append(context.WithoutCancel(ctx), tokenID, record)
	if err != nil {
		log.Error().Err(err).Stringer("stage", ResponseSynthesized).Msg("capture not recorded, replying anyway")
		p.observe(ctx, OutcomeCaptureFailed)
		return resp, nil
	}
	log.Debug().Str("capture", stored.ID).Stringer("stage", Captured).Int("status", status).Msg("request captured")
	p.observe(ctx, OutcomeCaptured)
	return resp, nil
}

func (p *Pipeline) observe(ctx context.Context, outcome Outcome) {
	if p.observer != nil {
		p.observer.ObserveIngest(ctx, outcome)
	}
}
