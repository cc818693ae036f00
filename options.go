package freeseek

import (
	"net/http"
	"time"

	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/freeseek/freeseek-go/cache"
	"github.com/freeseek/freeseek-go/logger"
	"github.com/freeseek/freeseek-go/middleware"
	"github.com/freeseek/freeseek-go/observability"
	"github.com/freeseek/freeseek-go/optimizer"
)

type options struct {
	log        *logger.Logger
	httpClient *http.Client
	transport  Transport
	tokens     TokenSource
	store      cache.Store
	optimizer  *optimizer.Optimizer
	recorder   observability.Recorder
	meter      metric.Meter
	tracer     trace.Tracer
	pre        []middleware.PreRequest
	post       []middleware.PostResponse
	now        func() time.Time
}

// Option configures a Client.
type Option func(*options)

// WithLogger sets the logger. Without it the client does not log.
func WithLogger(log *logger.Logger) Option {
	return func(o *options) { o.log = log }
}

// WithHTTPClient sets the *http.Client used by the default transport.
func WithHTTPClient(hc *http.Client) Option {
	return func(o *options) { o.httpClient = hc }
}

// WithTransport replaces the default transport.
func WithTransport(t Transport) Option {
	return func(o *options) { o.transport = t }
}

// WithTokenSource replaces the default token provider.
func WithTokenSource(ts TokenSource) Option {
	return func(o *options) { o.tokens = ts }
}

// WithCache sets the store for model metadata, overriding the configured one.
func WithCache(store cache.Store) Option {
	return func(o *options) { o.store = store }
}

// WithOptimizer enables Infer request shaping with opt.
func WithOptimizer(opt *optimizer.Optimizer) Option {
	return func(o *options) { o.optimizer = opt }
}

// WithRecorder reports request outcomes to r, for example a
// *observability.PrometheusMetrics.
func WithRecorder(r observability.Recorder) Option {
	return func(o *options) { o.recorder = r }
}

// WithMeter records OpenTelemetry instruments on m.
func WithMeter(m metric.Meter) Option {
	return func(o *options) { o.meter = m }
}

// WithTracer sets the tracer for operation spans. The global provider is used otherwise.
func WithTracer(t trace.Tracer) Option {
	return func(o *options) { o.tracer = t }
}

// WithPreRequest registers pre-request middlewares at construction.
func WithPreRequest(mws ...middleware.PreRequest) Option {
	return func(o *options) { o.pre = append(o.pre, mws...) }
}

// WithPostResponse registers post-response middlewares at construction.
func WithPostResponse(mws ...middleware.PostResponse) Option {
	return func(o *options) { o.post = append(o.post, mws...) }
}

func withClock(now func() time.Time) Option {
	return func(o *options) { o.now = now }
}
