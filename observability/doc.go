// Package observability provides OpenTelemetry tracing and metrics for the
// client, plus a Prometheus exporter for the same events.
//
// The client reports lifecycle events to a Recorder. ClientMetrics records
// them as OpenTelemetry instruments, PrometheusMetrics as Prometheus
// collectors; Multi fans out to several recorders.
//
// Tracing:
//
//	tp, err := observability.InitTracer(ctx, observability.DefaultTracerConfig("freeseek"), log)
//	defer tp.Shutdown(ctx)
//
//	ctx, span := observability.Tracer("freeseek").Start(ctx, observability.SpanInfer)
//	err := work(ctx)
//	observability.EndSpan(span, err, "")
//
// Metrics:
//
//	mp, err := observability.InitMeter(ctx, observability.DefaultMeterConfig("freeseek"), log)
//	defer mp.Shutdown(ctx)
//
//	metrics, err := observability.NewClientMetrics(observability.Meter("freeseek"))
//	prom := observability.NewPrometheusMetrics(prometheus.NewRegistry())
//	rec := observability.Multi(metrics, prom)
package observability
