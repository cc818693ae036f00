package middleware

import (
	"context"
	"net/http"
)

// Request is the outgoing call as seen by pre-request middlewares.
type Request struct {
	Method  string
	URL     string
	Headers http.Header
	// Body is JSON-encoded by the transport.
	Body any
	// Attributes carry values between middlewares of the same call.
	Attributes map[string]any
}

// SetAttribute stores a value for later middlewares.
func (r *Request) SetAttribute(key string, value any) {
	if r.Attributes == nil {
		r.Attributes = make(map[string]any)
	}
	r.Attributes[key] = value
}

// Response is the received reply as seen by post-response middlewares.
// Streaming calls carry a nil Body.
type Response struct {
	StatusCode int
	Headers    http.Header
	Body       []byte
	Attributes map[string]any
}

// SetAttribute stores a value for later middlewares.
func (r *Response) SetAttribute(key string, value any) {
	if r.Attributes == nil {
		r.Attributes = make(map[string]any)
	}
	r.Attributes[key] = value
}

// Outcome is a middleware result: either keep the current value or replace it.
type Outcome[T any] struct {
	value    T
	replaced bool
}

// Keep leaves the current value unchanged.
func Keep[T any]() Outcome[T] { return Outcome[T]{} }

// Replace substitutes v for the current value.
func Replace[T any](v T) Outcome[T] { return Outcome[T]{value: v, replaced: true} }

// Value returns the replacement and whether there is one.
func (o Outcome[T]) Value() (T, bool) { return o.value, o.replaced }

// Func is the signature shared by pre-request and post-response middlewares.
type Func[T any] func(ctx context.Context, v T) (Outcome[T], error)

// Middleware is a named hook. The name identifies it in logs and errors.
type Middleware[T any] struct {
	Name string
	Fn   Func[T]
}

// Named attaches a name to fn.
func Named[T any](name string, fn Func[T]) Middleware[T] {
	return Middleware[T]{Name: name, Fn: fn}
}

// PreRequest runs before the request is sent.
type PreRequest = Middleware[*Request]

// PostResponse runs after the final response is received.
type PostResponse = Middleware[*Response]
