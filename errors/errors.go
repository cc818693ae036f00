package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
	"time"
)

// Error is the client error type.
type Error struct {
	// Code is a machine-readable error code.
	Code ErrorCode `json:"code"`
	// Message is a human-readable error message.
	Message string `json:"message"`
	// StatusCode is the HTTP status of the response that caused the error, or 0.
	StatusCode int `json:"status_code,omitempty"`
	// Body is the raw response body, when one was received.
	Body []byte `json:"-"`
	// Retryable indicates if the operation can be retried.
	Retryable bool `json:"retryable"`
	// RetryAfter is the server-advised wait for rate limited requests.
	RetryAfter time.Duration `json:"-"`
	// Details contains additional context for the error.
	Details map[string]any `json:"details,omitempty"`
	// Cause is the underlying error that caused this error.
	Cause error `json:"-"`
}

// Error returns the string representation of the error.
func (e *Error) Error() string {
	msg := fmt.Sprintf("%s: %s", e.Code, e.Message)
	if e.StatusCode != 0 {
		msg = fmt.Sprintf("%s: %s (HTTP %d)", e.Code, e.Message, e.StatusCode)
	}
	if e.Cause != nil {
		return fmt.Sprintf("%s (cause: %v)", msg, e.Cause)
	}
	return msg
}

// Unwrap returns the underlying cause of the error.
func (e *Error) Unwrap() error { return e.Cause }

// Is reports whether target is an *Error with the same code. A rate limit
// error also matches an API error target.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	if t.Code == e.Code {
		return true
	}
	return t.Code == ErrCodeAPI && e.Code == ErrCodeRateLimitExceeded
}

// BodyString returns the response body as text.
func (e *Error) BodyString() string { return string(e.Body) }

// WithCause sets the underlying cause of the error and returns the receiver.
func (e *Error) WithCause(cause error) *Error {
	e.Cause = cause
	return e
}

// WithDetail sets a single detail key-value pair and returns the receiver.
func (e *Error) WithDetail(key string, value any) *Error {
	if e.Details == nil {
		e.Details = make(map[string]any)
	}
	e.Details[key] = value
	return e
}

// WithDetails merges the provided details into the error and returns the receiver.
func (e *Error) WithDetails(details map[string]any) *Error {
	for k, v := range details {
		e.WithDetail(k, v)
	}
	return e
}

// New creates an Error with the given code and message.
func New(code ErrorCode, message string) *Error {
	return &Error{Code: code, Message: message}
}

// Sentinels for use with errors.Is.
var (
	ErrAuthentication    = &Error{Code: ErrCodeAuthentication}
	ErrModelValidation   = &Error{Code: ErrCodeModelValidation}
	ErrAPI               = &Error{Code: ErrCodeAPI}
	ErrMiddleware        = &Error{Code: ErrCodeMiddleware}
	ErrRateLimitExceeded = &Error{Code: ErrCodeRateLimitExceeded}
)

// --- Constructors ---

// Authentication creates an error for a failed token acquisition or refresh.
func Authentication(message string, cause error) *Error {
	return &Error{Code: ErrCodeAuthentication, Message: message, Cause: cause}
}

// ModelValidation creates an error for invalid caller input.
func ModelValidation(message string) *Error {
	return &Error{Code: ErrCodeModelValidation, Message: message}
}

// MissingField creates a validation error naming the missing field.
func MissingField(field string) *Error {
	return ModelValidation(fmt.Sprintf("missing required field %q", field)).WithDetail("field", field)
}

// API creates an error for a failed API call. status and body may be zero values.
func API(message string, status int, body []byte) *Error {
	return &Error{
		Code:       ErrCodeAPI,
		Message:    message,
		StatusCode: status,
		Body:       body,
		Retryable:  status == 0 || status >= http.StatusInternalServerError,
	}
}

// Middleware wraps a failure raised by a registered middleware.
func Middleware(stage, name string, cause error) *Error {
	return &Error{
		Code:    ErrCodeMiddleware,
		Message: fmt.Sprintf("%s middleware %q failed", stage, name),
		Details: map[string]any{"stage": stage, "middleware": name},
		Cause:   cause,
	}
}

// RateLimitExceeded creates the 429 specialization of an API error.
func RateLimitExceeded(body []byte, retryAfter time.Duration) *Error {
	return &Error{
		Code:       ErrCodeRateLimitExceeded,
		Message:    "rate limit exceeded",
		StatusCode: http.StatusTooManyRequests,
		Body:       body,
		Retryable:  true,
		RetryAfter: retryAfter,
	}
}

// --- Inspection helpers ---

// As returns the first *Error in err's chain.
func As(err error) (*Error, bool) {
	var e *Error
	if stderrors.As(err, &e) {
		return e, true
	}
	return nil, false
}

// HasCode reports whether err carries the given code.
func HasCode(err error, code ErrorCode) bool {
	e, ok := As(err)
	return ok && e.Code == code
}

// IsAuthentication reports whether err is an authentication error.
func IsAuthentication(err error) bool { return HasCode(err, ErrCodeAuthentication) }

// IsModelValidation reports whether err is a validation error.
func IsModelValidation(err error) bool { return HasCode(err, ErrCodeModelValidation) }

// IsMiddleware reports whether err is a middleware error.
func IsMiddleware(err error) bool { return HasCode(err, ErrCodeMiddleware) }

// IsRateLimitExceeded reports whether err is a rate limit error.
func IsRateLimitExceeded(err error) bool { return HasCode(err, ErrCodeRateLimitExceeded) }

// IsAPI reports whether err is an API error, including its rate limit specialization.
func IsAPI(err error) bool {
	return HasCode(err, ErrCodeAPI) || HasCode(err, ErrCodeRateLimitExceeded)
}

// StatusCode returns the HTTP status carried by err, or 0.
func StatusCode(err error) int {
	if e, ok := As(err); ok {
		return e.StatusCode
	}
	return 0
}

// IsRetryable reports whether err is marked retryable.
func IsRetryable(err error) bool {
	e, ok := As(err)
	return ok && e.Retryable
}
