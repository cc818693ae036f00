package observability

import (
	"context"
	"math"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// PrometheusMetrics records client events as Prometheus collectors.
// It is safe for concurrent use.
type PrometheusMetrics struct {
	requestsTotal   *prometheus.CounterVec
	successesTotal  *prometheus.CounterVec
	failuresTotal   *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	retriesTotal    *prometheus.CounterVec
	circuitState    *prometheus.GaugeVec
	rateRemaining   prometheus.Gauge

	gatherer prometheus.Gatherer
}

var _ Recorder = (*PrometheusMetrics)(nil)

// NewPrometheusMetrics registers the client collectors on registry.
func NewPrometheusMetrics(registry *prometheus.Registry) *PrometheusMetrics {
	factory := promauto.With(registry)
	return &PrometheusMetrics{
		requestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "freeseek_requests_total",
				Help: "Total number of logical API calls",
			},
			[]string{"operation"},
		),
		successesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "freeseek_successes_total",
				Help: "Total number of successful logical API calls",
			},
			[]string{"operation"},
		),
		failuresTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "freeseek_failures_total",
				Help: "Total number of failed logical API calls",
			},
			[]string{"operation", "error_type"},
		),
		requestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "freeseek_request_duration_seconds",
				Help:    "Duration of logical API calls in seconds, retries included",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation", "outcome"},
		),
		retriesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "freeseek_retries_total",
				Help: "Total number of retried transport attempts",
			},
			[]string{"operation"},
		),
		circuitState: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "freeseek_circuit_state",
				Help: "Current state of circuit breaker (0=closed, 1=open, 2=half-open)",
			},
			[]string{"name"},
		),
		rateRemaining: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "freeseek_ratelimit_remaining",
				Help: "Remaining request quota reported by the API",
			},
		),
		gatherer: registry,
	}
}

// Handler serves the registry in the Prometheus exposition format.
func (p *PrometheusMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(p.gatherer, promhttp.HandlerOpts{})
}

// RequestStarted implements Recorder.
func (p *PrometheusMetrics) RequestStarted(_ context.Context, operation string) {
	p.requestsTotal.WithLabelValues(operation).Inc()
}

// RequestFinished implements Recorder.
func (p *PrometheusMetrics) RequestFinished(_ context.Context, operation, errType string, d time.Duration) {
	outcome := OutcomeSuccess
	if errType == "" {
		p.successesTotal.WithLabelValues(operation).Inc()
	} else {
		outcome = OutcomeFailure
		p.failuresTotal.WithLabelValues(operation, errType).Inc()
	}
	p.requestDuration.WithLabelValues(operation, outcome).Observe(d.Seconds())
}

// RetryAttempted implements Recorder.
func (p *PrometheusMetrics) RetryAttempted(_ context.Context, operation string, _ int) {
	p.retriesTotal.WithLabelValues(operation).Inc()
}

// CircuitStateChanged implements Recorder.
func (p *PrometheusMetrics) CircuitStateChanged(name, _, to string) {
	p.circuitState.WithLabelValues(name).Set(circuitStateValue(to))
}

// RateLimitObserved implements Recorder.
func (p *PrometheusMetrics) RateLimitObserved(remaining int) {
	if remaining == math.MaxInt {
		return
	}
	p.rateRemaining.Set(float64(remaining))
}

func circuitStateValue(state string) float64 {
	switch state {
	case "open":
		return 1
	case "half-open":
		return 2
	default:
		return 0
	}
}
