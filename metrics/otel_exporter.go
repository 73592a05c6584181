package metrics

import (
	"context"
	"fmt"
	"net/http"

	"github.com/marcelsud/webhook-sink/ingest"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
)

// OTelExporter provides OpenTelemetry metrics export following OTel standards
type OTelExporter struct {
	meterProvider *sdkmetric.MeterProvider
	collector     Collector

	// OTel meters and instruments
	meter               metric.Meter
	activeTokensGauge   metric.Int64ObservableGauge
	storedCapturesGauge metric.Int64ObservableGauge
	requestsCounter     metric.Int64Counter
}

// NewOTelExporter creates a new OpenTelemetry metrics exporter with Prometheus format
func NewOTelExporter(collector Collector) (*OTelExporter, error) {
	// Create Prometheus exporter
	exporter, err := prometheus.New()
	if err != nil {
		return nil, fmt.Errorf("creating prometheus exporter: %w", err)
	}

	// Create meter provider
	meterProvider := sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(exporter),
	)
	otel.SetMeterProvider(meterProvider)

	// Create meter with service info
	meter := meterProvider.Meter(
		"webhook-sink",
		metric.WithInstrumentationVersion("1.0.0"),
	)

	oe := &OTelExporter{
		meterProvider: meterProvider,
		collector:     collector,
		meter:         meter,
	}

	// Register metrics instruments
	if err := oe.registerInstruments(); err != nil {
		return nil, fmt.Errorf("registering instruments: %w", err)
	}

	return oe, nil
}

// registerInstruments creates and registers all OpenTelemetry metric instruments
func (oe *OTelExporter) registerInstruments() error {
	var err error

	oe.activeTokensGauge, err = oe.meter.Int64ObservableGauge(
		"webhook.tokens.active",
		metric.WithDescription("Number of live webhook tokens"),
		metric.WithUnit("{tokens}"),
		metric.WithInt64Callback(oe.observeActiveTokens),
	)
	if err != nil {
		return fmt.Errorf("creating active tokens gauge: %w", err)
	}

	oe.storedCapturesGauge, err = oe.meter.Int64ObservableGauge(
		"webhook.captures.stored",
		metric.WithDescription("Number of live captured requests"),
		metric.WithUnit("{requests}"),
		metric.WithInt64Callback(oe.observeStoredCaptures),
	)
	if err != nil {
		return fmt.Errorf("creating stored captures gauge: %w", err)
	}

	// Inbound calls by outcome (captured, rejected, capture_failed, failed)
	oe.requestsCounter, err = oe.meter.Int64Counter(
		"webhook.requests",
		metric.WithDescription("Number of calls received on webhook endpoints by outcome"),
		metric.WithUnit("{requests}"),
	)
	if err != nil {
		return fmt.Errorf("creating requests counter: %w", err)
	}

	return nil
}

// observeActiveTokens is a callback that reports the live token count
func (oe *OTelExporter) observeActiveTokens(ctx context.Context, observer metric.Int64Observer) error {
	count, err := oe.collector.GetActiveTokens(ctx)
	if err != nil {
		return err
	}
	observer.Observe(count)
	return nil
}

// observeStoredCaptures is a callback that reports the live capture count
func (oe *OTelExporter) observeStoredCaptures(ctx context.Context, observer metric.Int64Observer) error {
	perToken, err := oe.collector.GetCaptureCounts(ctx)
	if err != nil {
		return err
	}

	var total int64
	for _, n := range perToken {
		total += n
	}
	observer.Observe(total)
	return nil
}

// ObserveIngest implements ingest.Observer
func (oe *OTelExporter) ObserveIngest(ctx context.Context, outcome ingest.Outcome) {
	oe.requestsCounter.Add(ctx, 1, metric.WithAttributes(
		attribute.String("outcome", outcome.String()),
	))
}

// ServeHTTP serves Prometheus-formatted metrics on the given HTTP handler
func (oe *OTelExporter) ServeHTTP() http.Handler {
	return promhttp.Handler()
}

// Shutdown gracefully shuts down the meter provider
func (oe *OTelExporter) Shutdown(ctx context.Context) error {
	if oe.meterProvider != nil {
		return oe.meterProvider.Shutdown(ctx)
	}
	return nil
}
