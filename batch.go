package freeseek

import (
	"context"
	"encoding/json"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	apperrors "github.com/freeseek/freeseek-go/errors"
	"github.com/freeseek/freeseek-go/logger"
	"github.com/freeseek/freeseek-go/observability"
)

// BatchRequest is one item of a batch.
type BatchRequest struct {
	Model string         `json:"model"`
	Data  map[string]any `json:"data"`
}

// BatchResult is the outcome of one batch item. Exactly one of Result and
// Err is set.
type BatchResult struct {
	Model  string
	Result Result
	Err    error
}

// ErrorRecord is the JSON form of a failed batch item.
type ErrorRecord struct {
	Model string           `json:"model"`
	Error apperrors.Record `json:"error"`
}

// OK reports whether the item succeeded.
func (r BatchResult) OK() bool { return r.Err == nil }

// MarshalJSON writes the response object on success and an ErrorRecord on failure.
func (r BatchResult) MarshalJSON() ([]byte, error) {
	if r.Err != nil {
		return json.Marshal(ErrorRecord{Model: r.Model, Error: apperrors.RecordOf(r.Err)})
	}
	return json.Marshal(r.Result)
}

// BatchInfer runs Infer for every request with at most concurrency calls in
// flight. concurrency <= 0 uses the configured default. Results are in input
// order and a failing item never aborts the others.
func (c *Client) BatchInfer(ctx context.Context, reqs []BatchRequest, concurrency int) []BatchResult {
	if concurrency <= 0 {
		concurrency = c.cfg.BatchConcurrency
	}
	results := make([]BatchResult, len(reqs))
	if len(reqs) == 0 {
		return results
	}

	ctx, span := c.tracer.Start(ctx, spanNames[OpBatchInfer], trace.WithAttributes(
		attribute.String(observability.AttrOperation, OpBatchInfer),
		attribute.Int(observability.AttrBatchSize, len(reqs)),
		attribute.Int(observability.AttrBatchConcurrency, concurrency),
	))
	defer span.End()
	started := time.Now()

	var g errgroup.Group
	g.SetLimit(concurrency)
	for i, req := range reqs {
		g.Go(func() error {
			res, err := c.Infer(ctx, req.Model, req.Data)
			results[i] = BatchResult{Model: req.Model, Result: res, Err: err}
			return nil
		})
	}
	_ = g.Wait()

	failed := 0
	for _, r := range results {
		if r.Err != nil {
			failed++
		}
	}
	span.SetAttributes(attribute.Int(observability.AttrBatchFailed, failed))
	c.log.WithContext(ctx).Info("batch completed", logger.Fields(
		logger.FieldOperation, OpBatchInfer,
		"size", len(reqs),
		"failed", failed,
		logger.FieldDuration, time.Since(started).Milliseconds(),
	))
	return results
}
