package chi

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/httplog"
	"github.com/marcelsud/webhook-sink/capture"
	"github.com/marcelsud/webhook-sink/ingest"
	"github.com/marcelsud/webhook-sink/metrics"
	"github.com/marcelsud/webhook-sink/presets"
	"github.com/marcelsud/webhook-sink/response"
	"github.com/marcelsud/webhook-sink/token"
	"github.com/rs/zerolog"
)

// Ingester runs one inbound webhook call
type Ingester interface {
	Handle(ctx context.Context, tokenID string, in ingest.Inbound) (response.Response, error)
}

// Pinger reports whether the store answers
type Pinger interface {
	Ping(ctx context.Context) error
}

// Dependencies are the services the router exposes. Health, Metrics and Stats are optional.
type Dependencies struct {
	Tokens   token.UseCase
	Captures capture.UseCase
	Ingest   Ingester
	Presets  *presets.Loader
	Health   Pinger
	Metrics  http.Handler
	Stats    metrics.Collector
	Logger   zerolog.Logger
}

// Handlers sets up the webhook sink routes
func Handlers(ctx context.Context, deps Dependencies) *chi.Mux {
	if deps.Presets == nil {
		deps.Presets = presets.NewLoader()
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(httplog.RequestLogger(deps.Logger))
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))

	r.Get("/health", getHealth(deps.Health).ServeHTTP)
	if deps.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", deps.Metrics)
	}
	if deps.Stats != nil {
		r.Get("/stats", getStats(deps.Stats).ServeHTTP)
	}

	// Capture endpoint: every method, optional sub-path
	r.HandleFunc("/webhook/{token}", handleWebhook(deps.Ingest).ServeHTTP)
	r.HandleFunc("/webhook/{token}/*", handleWebhook(deps.Ingest).ServeHTTP)

	r.Get("/presets", getPresets(deps.Presets).ServeHTTP)

	r.Route("/tokens", func(r chi.Router) {
		r.Post("/", postToken(deps.Tokens, deps.Presets).ServeHTTP)
		r.Get("/", getTokens(deps.Tokens).ServeHTTP)
		r.Get("/validate", validateToken(deps.Tokens).ServeHTTP)

		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", getToken(deps.Tokens).ServeHTTP)
			r.Patch("/", patchToken(deps.Tokens).ServeHTTP)
			r.Delete("/", deleteToken(deps.Tokens).ServeHTTP)
			r.Get("/requests", getRequests(deps.Tokens, deps.Captures).ServeHTTP)
			r.Get("/config", getConfig(deps.Tokens).ServeHTTP)
			r.Put("/config", putConfig(deps.Tokens).ServeHTTP)
		})
	})

	return r
}

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}

// writeServiceError maps domain errors to HTTP; store failures never leak detail
func writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case token.IsNotFound(err):
		writeError(w, http.StatusNotFound, "Token not found")
	case isInvalidArgument(err):
		writeError(w, http.StatusBadRequest, err.Error())
	default:
		logger := httplog.LogEntry(r.Context())
		logger.Error().Err(err).Msg("request failed")
		writeError(w, http.StatusInternalServerError, "Internal server error")
	}
}

// getHealth handles GET /health
func getHealth(pinger Pinger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if pinger != nil {
			if err := pinger.Ping(r.Context()); err != nil {
				logger := httplog.LogEntry(r.Context())
				logger.Warn().Err(err).Msg("health check failed")
				writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unhealthy"})
				return
			}
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
	})
}

// getStats handles GET /stats
func getStats(collector metrics.Collector) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		m, err := collector.Collect(r.Context())
		if err != nil {
			writeServiceError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, m)
	})
}
