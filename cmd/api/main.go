package main

import (
	"context"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/httplog"
	"github.com/marcelsud/webhook-sink/capture"
	"github.com/marcelsud/webhook-sink/config"
	"github.com/marcelsud/webhook-sink/ingest"
	"github.com/marcelsud/webhook-sink/internal/http/chi"
	"github.com/marcelsud/webhook-sink/metrics"
	"github.com/marcelsud/webhook-sink/presets"
	"github.com/marcelsud/webhook-sink/store"
	"github.com/marcelsud/webhook-sink/store/redis"
	"github.com/marcelsud/webhook-sink/token"
)

const TIMEOUT = 30 * time.Second

/*
 * Imports only flow downwards: the binary wires the business packages,
 * which import the storage layer.
 */

func main() {
	cfg, err := config.GetConfig()
	if err != nil {
		fmt.Println(err)
		return
	}
	logger := httplog.NewLogger("webhook-sink", httplog.Options{
		JSON:     cfg.LogJSON,
		LogLevel: cfg.LogLevel,
		Concise:  true,
	})

	ctx, stop := signal.NotifyContext(
		context.Background(),
		syscall.SIGHUP, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT,
	)
	defer stop()

	client, err := redis.NewClient(redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
		Timeout:  cfg.StoreTimeout(),
	})
	if err != nil {
		logger.Error().Err(err).Str("addr", cfg.RedisAddr).Msg("redis unavailable")
		return
	}
	defer client.Close()

	loader := presets.NewLoader()
	if cfg.PresetsFile != "" {
		if err := loader.Load(cfg.PresetsFile); err != nil {
			logger.Error().Err(err).Msg("loading presets")
			return
		}
	}

	keys := store.NewKeyspace(cfg.KeyPrefix)
	tokenRepo := redis.NewTokenRepository(client, keys, redis.WithLogger(logger))
	captureRepo := redis.NewCaptureRepository(client, keys, redis.WithLogger(logger))

	captureService := capture.NewService(captureRepo, tokenRepo)
	tokenService := token.NewService(tokenRepo, captureService,
		token.WithTTL(cfg.TokenTTL()),
		token.WithLogger(logger),
	)

	collector := metrics.NewRedisCollector(client, keys)
	exporter, err := metrics.NewOTelExporter(collector)
	if err != nil {
		logger.Error().Err(err).Msg("creating metrics exporter")
		return
	}
	defer exporter.Shutdown(context.Background())

	pipeline := ingest.NewPipeline(tokenService, captureService,
		ingest.WithLogger(logger),
		ingest.WithObserver(exporter),
	)

	r := chi.Handlers(ctx, chi.Dependencies{
		Tokens:   tokenService,
		Captures: captureService,
		Ingest:   pipeline,
		Presets:  loader,
		Health:   tokenRepo,
		Metrics:  exporter.ServeHTTP(),
		Stats:    collector,
		Logger:   logger,
	})
	srv := &http.Server{
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		Addr:         ":" + cfg.Port,
		Handler:      r,
	}

	errShutdown := make(chan error, 1)
	go shutdown(srv, ctx, errShutdown)
	logger.Info().Str("port", cfg.Port).Dur("token_ttl", cfg.TokenTTL()).Msg("listening")
	err = srv.ListenAndServe()
	if err != nil && err != http.ErrServerClosed {
		logger.Error().Err(err).Msg("server stopped")
		return
	}
	err = <-errShutdown
	if err != nil {
		logger.Error().Err(err).Msg("shutdown")
		return
	}
	logger.Info().Msg("server stopped")
}

func shutdown(server *http.Server, ctxShutdown context.Context, errShutdown chan error) {
	<-ctxShutdown.Done()

	ctxTimeout, stop := context.WithTimeout(context.Background(), TIMEOUT)
	defer stop()

	err := server.Shutdown(ctxTimeout)
	switch err {
	case nil:
		errShutdown <- nil
	case context.DeadlineExceeded:
		errShutdown <- fmt.Errorf("Forcing closing the server")
	default:
		errShutdown <- fmt.Errorf("Forcing closing the server")
	}
}
