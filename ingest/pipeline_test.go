package ingest_test

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"sync"
	"testing"
	"time"

	"github.com/marcelsud/webhook-sink/capture"
	"github.com/marcelsud/webhook-sink/ingest"
	"github.com/marcelsud/webhook-sink/store"
	"github.com/marcelsud/webhook-sink/token"
	"github.com/marcelsud/webhook-sink/token/mocks"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type appender struct {
	mock.Mock
	ctxErr error
}

func (a *appender) Append(ctx context.Context, tokenID string, c capture.CapturedRequest) (capture.CapturedRequest, error) {
	a.ctxErr = ctx.Err()
	ret := a.Called(tokenID, c)
	return c, ret.Error(0)
}

type outcomes struct {
	mu   sync.Mutex
	seen []ingest.Outcome
}

func (o *outcomes) ObserveIngest(_ context.Context, outcome ingest.Outcome) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.seen = append(o.seen, outcome)
}

func configured() token.Token {
	return token.Token{
		ID:   "tok",
		Name: "test",
		Config: token.ResponseConfig{
			StatusCode: 202,
			BodyKind:   token.Text,
			Body:       "accepted",
			Headers:    []token.Header{{Key: "X-Sink", Value: "yes"}},
		},
	}
}

func TestHandle(t *testing.T) {
	ctx := context.Background()
	receivedAt := time.Date(2026, 2, 2, 10, 0, 0, 0, time.UTC)

	t.Run("success - configured reply and capture", func(t *testing.T) {
		tokens := mocks.NewRepository(t)
		captures := &appender{}
		obs := &outcomes{}
		p := ingest.NewPipeline(tokens, captures, ingest.WithObserver(obs))

		tokens.On("Get", ctx, "tok").Return(configured(), nil)
		captures.On("Append", "tok", capture.MatchCapture(func(c capture.CapturedRequest) bool {
			return c.Method == http.MethodPost &&
				c.Path == "/webhook/tok" &&
				c.Body.Kind == capture.JSON &&
				c.Query["a"][0] == "1" &&
				c.Headers["X-Event"] == "ping" &&
				c.RespondedWith.Status == 202 &&
				c.RespondedWith.Body == "accepted" &&
				c.RespondedWith.Headers["X-Sink"] == "yes" &&
				c.ReceivedAt.Equal(receivedAt) &&
				c.Size == 9
		})).Return(nil)

		resp, err := p.Handle(ctx, "tok", ingest.Inbound{
			Method:      http.MethodPost,
			Path:        "/webhook/tok",
			ContentType: "application/json",
			Header:      http.Header{"X-Event": {"ping"}},
			Query:       url.Values{"a": {"1"}},
			Body:        []byte(`{"x": 1}` + "\n"),
			ReceivedAt:  receivedAt,
		})

		require.NoError(t, err)
		assert.Equal(t, 202, resp.StatusCode)
		assert.Equal(t, "text/plain", resp.Header.Get("Content-Type"))
		assert.Equal(t, "accepted", string(resp.Body))
		captures.AssertExpectations(t)
		assert.Equal(t, []ingest.Outcome{ingest.OutcomeCaptured}, obs.seen)
	})

	t.Run("unknown token - rejected, nothing captured", func(t *testing.T) {
		tokens := mocks.NewRepository(t)
		captures := &appender{}
		obs := &outcomes{}
		p := ingest.NewPipeline(tokens, captures, ingest.WithObserver(obs))

		tokens.On("Get", ctx, "nope").Return(token.Token{}, token.ErrNotFound)

		_, err := p.Handle(ctx, "nope", ingest.Inbound{Method: http.MethodGet})

		require.Error(t, err)
		assert.ErrorIs(t, err, token.ErrNotFound)
		captures.AssertNotCalled(t, "Append", mock.Anything, mock.Anything)
		assert.Equal(t, []ingest.Outcome{ingest.OutcomeRejected}, obs.seen)
	})

	t.Run("store unavailable on lookup", func(t *testing.T) {
		tokens := mocks.NewRepository(t)
		obs := &outcomes{}
		p := ingest.NewPipeline(tokens, &appender{}, ingest.WithObserver(obs))

		tokens.On("Get", ctx, "tok").Return(token.Token{}, store.ErrUnavailable)

		_, err := p.Handle(ctx, "tok", ingest.Inbound{Method: http.MethodGet})

		require.Error(t, err)
		assert.ErrorIs(t, err, store.ErrUnavailable)
		assert.False(t, errors.Is(err, token.ErrNotFound))
		assert.Equal(t, []ingest.Outcome{ingest.OutcomeFailed}, obs.seen)
	})

	t.Run("capture failure still replies", func(t *testing.T) {
		tokens := mocks.NewRepository(t)
		captures := &appender{}
		obs := &outcomes{}
		p := ingest.NewPipeline(tokens, captures, ingest.WithObserver(obs))

		tokens.On("Get", ctx, "tok").Return(configured(), nil)
		captures.On("Append", "tok", mock.Anything).Return(store.ErrUnavailable)

		resp, err := p.Handle(ctx, "tok", ingest.Inbound{Method: http.MethodPut})

		require.NoError(t, err)
		assert.Equal(t, 202, resp.StatusCode)
		assert.Equal(t, []ingest.Outcome{ingest.OutcomeCaptureFailed}, obs.seen)
	})

	t.Run("malformed body is captured as null", func(t *testing.T) {
		tokens := mocks.NewRepository(t)
		captures := &appender{}
		p := ingest.NewPipeline(tokens, captures)

		tokens.On("Get", ctx, "tok").Return(configured(), nil)
		captures.On("Append", "tok", capture.MatchCapture(func(c capture.CapturedRequest) bool {
			return c.Body.Kind == capture.None && c.Size == 3
		})).Return(nil)

		resp, err := p.Handle(ctx, "tok", ingest.Inbound{
			Method:      http.MethodPost,
			ContentType: "application/json",
			Body:        []byte(`{"a`),
		})

		require.NoError(t, err)
		assert.Equal(t, 202, resp.StatusCode)
		captures.AssertExpectations(t)
	})

	t.Run("cancelled caller still gets captured", func(t *testing.T) {
		tokens := mocks.NewRepository(t)
		captures := &appender{}
		p := ingest.NewPipeline(tokens, captures)

		cctx, cancel := context.WithCancel(ctx)
		tokens.On("Get", cctx, "tok").Return(configured(), nil)
		captures.On("Append", "tok", mock.Anything).Return(nil)
		cancel()

		_, err := p.Handle(cctx, "tok", ingest.Inbound{Method: http.MethodDelete})

		require.NoError(t, err)
		captures.AssertExpectations(t)
		assert.NoError(t, captures.ctxErr)
	})
}

func TestStage(t *testing.T) {
	assert.True(t, ingest.Rejected.IsFinal())
	assert.True(t, ingest.Replied.IsFinal())
	assert.False(t, ingest.Captured.IsFinal())
	assert.Equal(t, "response_synthesized", ingest.ResponseSynthesized.String())
	assert.Equal(t, "capture_failed", ingest.OutcomeCaptureFailed.String())
}
