package chi

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/httplog"
	"github.com/marcelsud/webhook-sink/capture/payload"
	"github.com/marcelsud/webhook-sink/ingest"
	"github.com/marcelsud/webhook-sink/token"
)

// handleWebhook handles ANY /webhook/{token}
func handleWebhook(pipeline Ingester) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		receivedAt := time.Now()
		tokenID := chi.URLParam(r, "token")

		// A partial body is still worth capturing
		body, readErr := payload.Read(r.Body)
		defer r.Body.Close()

		in := ingest.Inbound{
			Method:      r.Method,
			Path:        r.URL.RequestURI(),
			RemoteAddr:  r.RemoteAddr,
			ContentType: r.Header.Get("Content-Type"),
			Header:      r.Header.Clone(),
			Query:       r.URL.Query(),
			Body:        body,
			BodyErr:     readErr,
			ReceivedAt:  receivedAt,
		}

		resp, err := pipeline.Handle(r.Context(), tokenID, in)
		if err != nil {
			if token.IsNotFound(err) {
				writeError(w, http.StatusNotFound, "Invalid webhook token")
				return
			}
			logger := httplog.LogEntry(r.Context())
			logger.Error().Err(err).Str("token", tokenID).Msg("webhook not handled")
			writeError(w, http.StatusInternalServerError, "Internal server error")
			return
		}

		logger := httplog.LogEntry(r.Context())
		if err := resp.Write(w); err != nil {
			logger.Debug().Err(err).Msg("caller went away before the reply was written")
			return
		}
		logger.Debug().Str("token", tokenID).Stringer("stage", ingest.Replied).Int("status", resp.StatusCode).Msg("webhook replied")
	})
}
