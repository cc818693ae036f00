package freeseek

import (
	"context"
	"errors"
	"fmt"

	apperrors "github.com/freeseek/freeseek-go/errors"
	"github.com/freeseek/freeseek-go/httpclient"
	"github.com/freeseek/freeseek-go/resilience"
)

// toAPIError converts a failure of the send stage into the client taxonomy.
// Errors that are already classified are returned unchanged.
func (c *Client) toAPIError(err error) error {
	if err == nil {
		return nil
	}
	if _, ok := apperrors.As(err); ok {
		return err
	}

	var herr *httpclient.Error
	hasHTTP := errors.As(err, &herr)

	switch {
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		e := apperrors.API("request canceled", 0, nil).WithCause(err)
		if hasHTTP {
			e.StatusCode, e.Body = herr.StatusCode, herr.Body
		}
		e.Retryable = false
		return e
	case errors.Is(err, resilience.ErrCircuitOpen):
		e := apperrors.API("circuit breaker is open, request aborted", 0, nil).WithCause(err)
		e.Retryable = false
		return e
	case errors.Is(err, resilience.ErrBulkheadTimeout):
		return apperrors.API("client concurrency limit reached", 0, nil).
			WithCause(err).
			WithDetail("reason", "bulkhead")
	case hasHTTP && herr.Code == httpclient.ErrCodeRateLimit:
		return apperrors.RateLimitExceeded(herr.Body, c.tracker.Delay()).WithCause(err)
	case hasHTTP && herr.Code == httpclient.ErrCodeCanceled:
		e := apperrors.API("request canceled", 0, nil).WithCause(err)
		e.Retryable = false
		return e
	case hasHTTP:
		e := apperrors.API(fmt.Sprintf("request failed: %s", herr.Code), herr.StatusCode, herr.Body).WithCause(err)
		e.Retryable = herr.Retryable
		return e
	default:
		return apperrors.API("request failed", 0, nil).WithCause(err)
	}
}

// retryable reports whether an attempt failure may be retried: transient
// transport failures and 429 responses. An open circuit is never retried.
func retryable(err error) bool {
	if errors.Is(err, resilience.ErrCircuitOpen) {
		return false
	}
	var herr *httpclient.Error
	if !errors.As(err, &herr) {
		return false
	}
	switch herr.Code {
	case httpclient.ErrCodeRateLimit:
		return true
	case httpclient.ErrCodeCanceled:
		return false
	default:
		return herr.Retryable
	}
}
