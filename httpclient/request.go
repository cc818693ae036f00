package httpclient

import (
	"context"
	"io"
	"net/http"
	"strings"
	"sync"
)

// Request describes one outbound HTTP request.
type Request struct {
	// Method is the HTTP method.
	Method string
	// URL is the absolute request URL.
	URL string
	// Headers are request-specific headers (merged over client defaults).
	Headers http.Header
	// Body is the request body. Accepts io.Reader, []byte, string, or any value
	// that will be JSON-encoded. Nil sends no body.
	Body any
}

// Response is the result of an HTTP request.
type Response struct {
	// StatusCode is the HTTP status code.
	StatusCode int
	// Headers are the response headers.
	Headers http.Header
	// Body is the raw response body.
	Body []byte
}

// IsSuccess returns true if the status code is 2xx.
func (r *Response) IsSuccess() bool {
	return r.StatusCode >= 200 && r.StatusCode < 300
}

// StreamResponse wraps a streaming HTTP response whose body is still open.
type StreamResponse struct {
	// StatusCode is the HTTP status code.
	StatusCode int
	// Headers are the response headers.
	Headers http.Header
	// Body is the raw streaming body.
	Body io.ReadCloser

	cancel    context.CancelFunc
	closeOnce sync.Once
	closeErr  error
}

// IsEventStream reports whether the server answered with Server-Sent Events.
func (r *StreamResponse) IsEventStream() bool {
	return strings.Contains(r.Headers.Get("Content-Type"), "text/event-stream")
}

// Close releases the body and the attempt context. It is safe to call more than once.
func (r *StreamResponse) Close() error {
	r.closeOnce.Do(func() {
		if r.Body != nil {
			r.closeErr = r.Body.Close()
		}
		if r.cancel != nil {
			r.cancel()
		}
	})
	return r.closeErr
}
