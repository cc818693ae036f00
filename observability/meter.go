package observability

import (
	"context"
	"fmt"
	"math"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"

	"github.com/freeseek/freeseek-go/logger"
)

// MeterConfig configures the OpenTelemetry meter provider.
type MeterConfig struct {
	// ServiceName is the name of the service.
	ServiceName string
	// ServiceVersion is the version of the service.
	ServiceVersion string
	// Environment is the deployment environment (dev, staging, prod).
	Environment string
	// Endpoint is the OTLP HTTP endpoint host:port (e.g., "localhost:4318").
	Endpoint string
	// Insecure allows insecure connections (for development).
	Insecure bool
	// Interval is the metric export interval.
	Interval time.Duration
}

// DefaultMeterConfig returns sensible defaults for development.
func DefaultMeterConfig(serviceName string) MeterConfig {
	return MeterConfig{
		ServiceName:    serviceName,
		ServiceVersion: "1.0.0",
		Environment:    "development",
		Endpoint:       "localhost:4318",
		Insecure:       true,
		Interval:       15 * time.Second,
	}
}

// InitMeter initializes the OpenTelemetry meter provider and installs it globally.
// Returns a MeterProvider that should be shut down on application exit.
func InitMeter(ctx context.Context, config MeterConfig, log *logger.Logger) (*sdkmetric.MeterProvider, error) {
	opts := []otlpmetrichttp.Option{
		otlpmetrichttp.WithEndpoint(config.Endpoint),
	}
	if config.Insecure {
		opts = append(opts, otlpmetrichttp.WithInsecure())
	}

	exporter, err := otlpmetrichttp.New(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("creating metric exporter: %w", err)
	}

	res, err := newResource(config.ServiceName, config.ServiceVersion, config.Environment)
	if err != nil {
		return nil, fmt.Errorf("creating resource: %w", err)
	}

	readerOpts := []sdkmetric.PeriodicReaderOption{}
	if config.Interval > 0 {
		readerOpts = append(readerOpts, sdkmetric.WithInterval(config.Interval))
	}

	mp := sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(exporter, readerOpts...)),
		sdkmetric.WithResource(res),
	)

	otel.SetMeterProvider(mp)

	logger.OrNop(log).Info("meter initialized", logger.Fields(
		"service", config.ServiceName,
		"endpoint", config.Endpoint,
		"interval", config.Interval.String(),
	))

	return mp, nil
}

// Meter returns a named meter from the global provider.
func Meter(name string) metric.Meter {
	return otel.Meter(name)
}

// ClientMetrics records client events as OpenTelemetry instruments.
type ClientMetrics struct {
	requests      metric.Int64Counter
	successes     metric.Int64Counter
	failures      metric.Int64Counter
	duration      metric.Float64Histogram
	active        metric.Int64UpDownCounter
	retries       metric.Int64Counter
	stateChanges  metric.Int64Counter
	rateRemaining metric.Int64Gauge
}

var _ Recorder = (*ClientMetrics)(nil)

// NewClientMetrics creates metric instruments on the given meter.
func NewClientMetrics(meter metric.Meter) (*ClientMetrics, error) {
	requests, err := meter.Int64Counter("freeseek.requests",
		metric.WithDescription("Logical API calls started"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating freeseek.requests counter: %w", err)
	}

	successes, err := meter.Int64Counter("freeseek.successes",
		metric.WithDescription("Logical API calls that succeeded"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating freeseek.successes counter: %w", err)
	}

	failures, err := meter.Int64Counter("freeseek.failures",
		metric.WithDescription("Logical API calls that failed, by error type"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating freeseek.failures counter: %w", err)
	}

	duration, err := meter.Float64Histogram("freeseek.request.duration",
		metric.WithDescription("Duration of logical API calls in seconds, retries included"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating freeseek.request.duration histogram: %w", err)
	}

	active, err := meter.Int64UpDownCounter("freeseek.request.active",
		metric.WithDescription("Logical API calls in flight"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating freeseek.request.active gauge: %w", err)
	}

	retries, err := meter.Int64Counter("freeseek.retries",
		metric.WithDescription("Transport attempts retried"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating freeseek.retries counter: %w", err)
	}

	stateChanges, err := meter.Int64Counter("freeseek.circuit.state_changes",
		metric.WithDescription("Circuit breaker transitions"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating freeseek.circuit.state_changes counter: %w", err)
	}

	rateRemaining, err := meter.Int64Gauge("freeseek.ratelimit.remaining",
		metric.WithDescription("Remaining request quota reported by the API"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating freeseek.ratelimit.remaining gauge: %w", err)
	}

	return &ClientMetrics{
		requests:      requests,
		successes:     successes,
		failures:      failures,
		duration:      duration,
		active:        active,
		retries:       retries,
		stateChanges:  stateChanges,
		rateRemaining: rateRemaining,
	}, nil
}

// RequestStarted implements Recorder.
func (m *ClientMetrics) RequestStarted(ctx context.Context, operation string) {
	attrs := metric.WithAttributes(attribute.String(AttrOperation, operation))
	m.requests.Add(ctx, 1, attrs)
	m.active.Add(ctx, 1, attrs)
}

// RequestFinished implements Recorder.
func (m *ClientMetrics) RequestFinished(ctx context.Context, operation, errType string, d time.Duration) {
	op := attribute.String(AttrOperation, operation)
	m.active.Add(ctx, -1, metric.WithAttributes(op))

	outcome := OutcomeSuccess
	if errType == "" {
		m.successes.Add(ctx, 1, metric.WithAttributes(op))
	} else {
		outcome = OutcomeFailure
		m.failures.Add(ctx, 1, metric.WithAttributes(op, attribute.String(AttrErrorType, errType)))
	}
	m.duration.Record(ctx, d.Seconds(), metric.WithAttributes(op, attribute.String(AttrOutcome, outcome)))
}

// RetryAttempted implements Recorder.
func (m *ClientMetrics) RetryAttempted(ctx context.Context, operation string, attempt int) {
	m.retries.Add(ctx, 1, metric.WithAttributes(
		attribute.String(AttrOperation, operation),
		attribute.Int(AttrAttempt, attempt),
	))
}

// CircuitStateChanged implements Recorder.
func (m *ClientMetrics) CircuitStateChanged(name, from, to string) {
	m.stateChanges.Add(context.Background(), 1, metric.WithAttributes(
		attribute.String("circuit", name),
		attribute.String("from", from),
		attribute.String("to", to),
	))
}

// RateLimitObserved implements Recorder. Unlimited quota is not recorded.
func (m *ClientMetrics) RateLimitObserved(remaining int) {
	if remaining == math.MaxInt {
		return
	}
	m.rateRemaining.Record(context.Background(), int64(remaining))
}
