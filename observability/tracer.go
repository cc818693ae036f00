package observability

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
	"go.opentelemetry.io/otel/trace"

	"github.com/freeseek/freeseek-go/logger"
)

// Span names. Each client call opens one operation span with one child
// span per HTTP attempt.
const (
	SpanInfer          = "freeseek.infer"
	SpanStreamInfer    = "freeseek.stream_infer"
	SpanBatchInfer     = "freeseek.batch_infer"
	SpanGetModelInfo   = "freeseek.get_model_info"
	SpanGetModelSchema = "freeseek.get_model_schema"
	SpanListModels     = "freeseek.list_models"
	SpanAttempt        = "freeseek.attempt"
)

// Attribute keys.
const (
	AttrOperation        = "freeseek.operation"
	AttrModel            = "freeseek.model"
	AttrRequestID        = "freeseek.request_id"
	AttrAttempt          = "freeseek.attempt"
	AttrStreamChunks     = "freeseek.stream.chunks"
	AttrStreamSkipped    = "freeseek.stream.skipped"
	AttrBatchSize        = "freeseek.batch.size"
	AttrBatchConcurrency = "freeseek.batch.concurrency"
	AttrBatchFailed      = "freeseek.batch.failed"
	AttrStatusCode       = "http.response.status_code"
	AttrErrorType        = "error.type"
	AttrOutcome          = "outcome"
)

// TracerConfig configures OTLP/HTTP trace export.
type TracerConfig struct {
	ServiceName    string
	ServiceVersion string
	Environment    string
	// Endpoint is host:port, e.g. "localhost:4318".
	Endpoint string
	Insecure bool
	// SampleRate is clamped to [0, 1].
	SampleRate float64
}

// DefaultTracerConfig targets a local collector and samples everything.
func DefaultTracerConfig(serviceName string) TracerConfig {
	return TracerConfig{
		ServiceName:    serviceName,
		ServiceVersion: "1.0.0",
		Environment:    "development",
		Endpoint:       "localhost:4318",
		Insecure:       true,
		SampleRate:     1.0,
	}
}

func sampler(rate float64) sdktrace.Sampler {
	switch {
	case rate >= 1:
		return sdktrace.AlwaysSample()
	case rate <= 0:
		return sdktrace.NeverSample()
	default:
		return sdktrace.TraceIDRatioBased(rate)
	}
}

// InitTracer installs a batching OTLP tracer provider and W3C propagation
// globally. The caller shuts the provider down on exit to flush spans.
func InitTracer(ctx context.Context, config TracerConfig, log *logger.Logger) (*sdktrace.TracerProvider, error) {
	opts := []otlptracehttp.Option{otlptracehttp.WithEndpoint(config.Endpoint)}
	if config.Insecure {
		opts = append(opts, otlptracehttp.WithInsecure())
	}
	exporter, err := otlptracehttp.New(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("creating trace exporter: %w", err)
	}
	res, err := newResource(config.ServiceName, config.ServiceVersion, config.Environment)
	if err != nil {
		return nil, fmt.Errorf("creating resource: %w", err)
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.ParentBased(sampler(config.SampleRate))),
	)
	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	logger.OrNop(log).Info("tracer initialized", logger.Fields(
		"service", config.ServiceName,
		"endpoint", config.Endpoint,
		"sample_rate", config.SampleRate,
	))
	return tp, nil
}

func newResource(serviceName, serviceVersion, environment string) (*resource.Resource, error) {
	return resource.Merge(
		resource.Default(),
		resource.NewWithAttributes(
			semconv.SchemaURL,
			semconv.ServiceName(serviceName),
			semconv.ServiceVersion(serviceVersion),
			attribute.String("environment", environment),
		),
	)
}

// Tracer returns a named tracer from the global provider.
func Tracer(name string) trace.Tracer {
	return otel.Tracer(name)
}

// EndSpan records the outcome of span and ends it. errType, when set, is
// stored under AttrErrorType.
func EndSpan(span trace.Span, err error, errType string) {
	if err == nil {
		span.SetAttributes(attribute.String(AttrOutcome, OutcomeSuccess))
		span.SetStatus(codes.Ok, "")
		span.End()
		return
	}
	span.SetAttributes(attribute.String(AttrOutcome, OutcomeFailure))
	if errType != "" {
		span.SetAttributes(attribute.String(AttrErrorType, errType))
	}
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	span.End()
}
