package freeseek

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	apperrors "github.com/freeseek/freeseek-go/errors"
	"github.com/freeseek/freeseek-go/httpclient"
	"github.com/freeseek/freeseek-go/logger"
	"github.com/freeseek/freeseek-go/middleware"
	"github.com/freeseek/freeseek-go/observability"
	"github.com/freeseek/freeseek-go/resilience"
)

const tracerName = "github.com/freeseek/freeseek-go"

// Operation names, used as log fields, metric labels and span attributes.
const (
	OpInfer          = "infer"
	OpStreamInfer    = "stream_infer"
	OpBatchInfer     = "batch_infer"
	OpGetModelInfo   = "get_model_info"
	OpGetModelSchema = "get_model_schema"
	OpListModels     = "list_models"
)

var spanNames = map[string]string{
	OpInfer:          observability.SpanInfer,
	OpStreamInfer:    observability.SpanStreamInfer,
	OpBatchInfer:     observability.SpanBatchInfer,
	OpGetModelInfo:   observability.SpanGetModelInfo,
	OpGetModelSchema: observability.SpanGetModelSchema,
	OpListModels:     observability.SpanListModels,
}

// call is one logical operation. It is counted when it begins and finished
// exactly once with its final outcome.
type call struct {
	op        string
	model     string
	requestID string
	started   time.Time
	attempts  int
	status    int

	ctx  context.Context
	span trace.Span
	log  *logger.Logger
}

func (c *Client) begin(ctx context.Context, op, model string) *call {
	c.metrics.requests.Add(1)

	cl := &call{
		op:        op,
		model:     model,
		requestID: uuid.NewString(),
		started:   time.Now(),
	}
	ctx = logger.WithRequest(ctx, cl.requestID, model)
	cl.ctx, cl.span = c.tracer.Start(ctx, spanNames[op],
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String(observability.AttrOperation, op),
			attribute.String(observability.AttrModel, model),
			attribute.String(observability.AttrRequestID, cl.requestID),
		),
	)
	cl.log = c.log.WithContext(cl.ctx).WithFields(logger.Fields(logger.FieldOperation, op))
	c.recorder.RequestStarted(cl.ctx, op)
	return cl
}

func (c *Client) end(cl *call, err error) {
	elapsed := time.Since(cl.started)
	fields := logger.Fields(
		logger.FieldAttempt, cl.attempts,
		logger.FieldDuration, elapsed.Milliseconds(),
	)
	if cl.status != 0 {
		fields[logger.FieldStatus] = cl.status
		cl.span.SetAttributes(attribute.Int(observability.AttrStatusCode, cl.status))
	}

	errType := ""
	if err != nil {
		c.metrics.failures.Add(1)
		errType = errorType(err)
		fields[logger.FieldError] = err.Error()
		cl.log.Error("request failed", fields)
	} else {
		c.metrics.successes.Add(1)
		cl.log.Info("request completed", fields)
	}

	c.recorder.RequestFinished(cl.ctx, cl.op, errType, elapsed)
	observability.EndSpan(cl.span, err, errType)
}

func errorType(err error) string {
	if e, ok := apperrors.As(err); ok {
		return e.Code.TypeName()
	}
	return "Error"
}

// prepare attaches credentials and the request id, then runs the pre-request
// middlewares once for the whole call.
func (c *Client) prepare(cl *call, req *middleware.Request) (*middleware.Request, error) {
	token, err := c.tokens.AccessToken(cl.ctx)
	if err != nil {
		if _, ok := apperrors.As(err); ok {
			return nil, err
		}
		return nil, apperrors.Authentication("failed to obtain access token", err)
	}
	if req.Headers == nil {
		req.Headers = newHeaders()
	}
	req.Headers.Set("Authorization", "Bearer "+token)
	req.Headers.Set(middleware.HeaderRequestID, cl.requestID)

	cl.log.Info("sending request", logger.Fields(
		logger.FieldMethod, req.Method,
		logger.FieldURL, req.URL,
	))

	out, err := c.pipeline.ProcessPreRequest(cl.ctx, req)
	if err != nil {
		c.breaker.RecordFailure(err)
		return nil, err
	}
	return out, nil
}

// finalize runs the post-response middlewares once, on the final response.
func (c *Client) finalize(cl *call, resp *middleware.Response) (*middleware.Response, error) {
	cl.status = resp.StatusCode
	out, err := c.pipeline.ProcessPostResponse(cl.ctx, resp)
	if err != nil {
		c.breaker.RecordFailure(err)
		return nil, err
	}
	return out, nil
}

func (c *Client) retryConfig(cl *call) resilience.RetryConfig {
	return resilience.RetryConfig{
		MaxAttempts:    c.cfg.MaxRetries,
		InitialBackoff: time.Duration(c.cfg.BackoffFactor * float64(time.Second)),
		MinBackoff:     c.cfg.RetryWaitMin,
		MaxBackoff:     c.cfg.RetryWaitMax,
		BackoffFactor:  2,
		RetryIf:        retryable,
		BackoffFunc: func(_ int, err error, backoff time.Duration) time.Duration {
			if httpclient.IsRateLimit(err) {
				if d := c.tracker.Delay(); d > 0 {
					return d
				}
			}
			return backoff
		},
		OnRetry: func(attempt int, err error, backoff time.Duration) {
			c.metrics.retries.Add(1)
			c.recorder.RetryAttempted(cl.ctx, cl.op, attempt)
			cl.log.Warn("attempt failed, retrying", logger.Fields(
				logger.FieldAttempt, attempt,
				logger.FieldBackoff, backoff.Milliseconds(),
				logger.FieldError, err.Error(),
			))
		},
	}
}

// send runs do under the retry policy. Each attempt waits out an exhausted
// quota, passes the pacer and the bulkhead, and goes through the circuit
// breaker. The returned error is the last attempt's, unclassified.
func send[T any](c *Client, cl *call, req *middleware.Request,
	do func(context.Context, *httpclient.Request) (T, error),
	headers func(T) http.Header,
) (T, error) {
	return resilience.Retry(cl.ctx, c.retryConfig(cl), func() (T, error) {
		cl.attempts++
		return attempt(c, cl, req, do, headers)
	})
}

func attempt[T any](c *Client, cl *call, req *middleware.Request,
	do func(context.Context, *httpclient.Request) (T, error),
	headers func(T) http.Header,
) (result T, err error) {
	var zero T
	ctx, span := c.tracer.Start(cl.ctx, observability.SpanAttempt,
		trace.WithAttributes(attribute.Int(observability.AttrAttempt, cl.attempts)))
	defer func() { observability.EndSpan(span, err, "") }()

	if c.tracker.ShouldWait() {
		cl.log.Warn("rate limit exhausted, waiting for reset", logger.Fields(
			logger.FieldBackoff, c.tracker.Delay().Milliseconds(),
		))
		if err = c.tracker.WaitUntilReset(ctx); err != nil {
			return zero, err
		}
	}
	if c.pacer != nil {
		if err = c.pacer.Wait(ctx); err != nil {
			return zero, err
		}
	}

	httpReq := &httpclient.Request{
		Method:  req.Method,
		URL:     req.URL,
		Headers: req.Headers.Clone(),
		Body:    req.Body,
	}
	if c.cfg.LogDetailed && cl.log.DebugEnabled() {
		cl.log.Debug("attempt", logger.Fields(
			logger.FieldAttempt, cl.attempts,
			"headers", logger.RedactHeaders(httpReq.Headers),
		))
	}

	result, err = resilience.Guard(ctx, c.bulkhead, func() (T, error) {
		return resilience.Call(c.breaker, func() (T, error) {
			return do(ctx, httpReq)
		})
	})

	var herr *httpclient.Error
	switch {
	case err == nil:
		c.observeQuota(headers(result))
	case errors.As(err, &herr):
		cl.status = herr.StatusCode
		if herr.Header != nil {
			c.observeQuota(herr.Header)
		}
		if herr.StatusCode == http.StatusUnauthorized {
			c.tokens.Invalidate()
		}
	}
	if err != nil {
		return zero, err
	}
	return result, nil
}

func (c *Client) observeQuota(h http.Header) {
	c.tracker.Update(h)
	c.recorder.RateLimitObserved(c.tracker.Remaining())
}

func responseHeaders(r *httpclient.Response) http.Header { return r.Headers }

// execute runs a unary call. The final body is decoded into out when out is
// non-nil and is returned as-is otherwise, after checking it is valid JSON.
func (c *Client) execute(ctx context.Context, op, model string, req *middleware.Request, out any) (body []byte, err error) {
	cl := c.begin(ctx, op, model)
	defer func() { c.end(cl, err) }()

	req, err = c.prepare(cl, req)
	if err != nil {
		return nil, err
	}
	resp, err := send(c, cl, req, c.transport.Do, responseHeaders)
	if err != nil {
		return nil, c.toAPIError(err)
	}
	final, err := c.finalize(cl, &middleware.Response{
		StatusCode: resp.StatusCode,
		Headers:    resp.Headers,
		Body:       resp.Body,
	})
	if err != nil {
		return nil, err
	}
	if err := decodeBody(final, out); err != nil {
		return nil, err
	}
	return final.Body, nil
}

func decodeBody(resp *middleware.Response, out any) error {
	if out == nil {
		if !json.Valid(resp.Body) {
			return apperrors.API("invalid JSON in response", resp.StatusCode, resp.Body)
		}
		return nil
	}
	if err := json.Unmarshal(resp.Body, out); err != nil {
		return apperrors.API("invalid JSON in response", resp.StatusCode, resp.Body).WithCause(err)
	}
	return nil
}
