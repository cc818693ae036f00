package middleware

import (
	"context"
	"net/http"

	"github.com/google/uuid"

	"github.com/freeseek/freeseek-go/logger"
)

// HeaderRequestID carries the request identifier to the API.
const HeaderRequestID = "X-Request-ID"

// RequestID sets X-Request-ID when absent, using the id bound to ctx or a new UUID.
func RequestID() PreRequest {
	return Named("request_id", func(ctx context.Context, req *Request) (Outcome[*Request], error) {
		if req.Headers.Get(HeaderRequestID) != "" {
			return Keep[*Request](), nil
		}
		id, _, ok := logger.RequestFromContext(ctx)
		if !ok || id == "" {
			id = uuid.NewString()
		}
		ensureHeaders(req).Set(HeaderRequestID, id)
		return Keep[*Request](), nil
	})
}

// StaticHeaders sets fixed headers on every request, overwriting existing values.
func StaticHeaders(headers map[string]string) PreRequest {
	return Named("static_headers", func(_ context.Context, req *Request) (Outcome[*Request], error) {
		h := ensureHeaders(req)
		for k, v := range headers {
			h.Set(k, v)
		}
		return Keep[*Request](), nil
	})
}

// UserAgent sets the User-Agent header.
func UserAgent(ua string) PreRequest {
	return Named("user_agent", func(_ context.Context, req *Request) (Outcome[*Request], error) {
		ensureHeaders(req).Set("User-Agent", ua)
		return Keep[*Request](), nil
	})
}

// LogRequests logs each outgoing request with redacted headers.
func LogRequests(log *logger.Logger) PreRequest {
	log = logger.OrNop(log)
	return Named("log_requests", func(ctx context.Context, req *Request) (Outcome[*Request], error) {
		log.WithContext(ctx).Info("sending request", logger.Fields(
			logger.FieldMethod, req.Method,
			logger.FieldURL, req.URL,
			"headers", logger.RedactHeaders(req.Headers),
		))
		return Keep[*Request](), nil
	})
}

// LogResponses logs each final response status.
func LogResponses(log *logger.Logger) PostResponse {
	log = logger.OrNop(log)
	return Named("log_responses", func(ctx context.Context, resp *Response) (Outcome[*Response], error) {
		fields := logger.Fields(
			logger.FieldStatus, resp.StatusCode,
			"bytes", len(resp.Body),
		)
		if resp.StatusCode >= http.StatusBadRequest {
			log.WithContext(ctx).Warn("received response", fields)
		} else {
			log.WithContext(ctx).Info("received response", fields)
		}
		return Keep[*Response](), nil
	})
}

func ensureHeaders(req *Request) http.Header {
	if req.Headers == nil {
		req.Headers = make(http.Header)
	}
	return req.Headers
}
