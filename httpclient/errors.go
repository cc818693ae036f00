package httpclient

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrorCode classifies a failed attempt.
type ErrorCode string

const (
	ErrCodeTimeout    ErrorCode = "timeout"
	ErrCodeConnection ErrorCode = "connection"
	ErrCodeCanceled   ErrorCode = "canceled"
	ErrCodeRequest    ErrorCode = "request"

	ErrCodeAuth       ErrorCode = "auth"
	ErrCodeNotFound   ErrorCode = "not_found"
	ErrCodeRateLimit  ErrorCode = "rate_limit"
	ErrCodeValidation ErrorCode = "validation"
	ErrCodeClient     ErrorCode = "client"
	ErrCodeServer     ErrorCode = "server"
)

// transient reports whether another attempt could succeed.
func (c ErrorCode) transient() bool {
	switch c {
	case ErrCodeTimeout, ErrCodeConnection, ErrCodeRateLimit, ErrCodeServer:
		return true
	}
	return false
}

// Error describes one failed attempt. StatusCode, Header and Body are set
// when the server answered.
type Error struct {
	StatusCode int
	Code       ErrorCode
	Message    string
	Retryable  bool
	Body       []byte
	Header     http.Header
	Err        error
}

func (e *Error) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("httpclient: %s (HTTP %d): %s", e.Code, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("httpclient: %s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

func wrap(code ErrorCode, err error) *Error {
	return &Error{Code: code, Message: err.Error(), Retryable: code.transient(), Err: err}
}

// NewTimeoutError wraps an attempt that ran out of time.
func NewTimeoutError(err error) *Error { return wrap(ErrCodeTimeout, err) }

// NewConnectionError wraps a dial, DNS or reset failure.
func NewConnectionError(err error) *Error { return wrap(ErrCodeConnection, err) }

// NewCanceledError wraps a cancellation or deadline of the caller's context.
func NewCanceledError(err error) *Error { return wrap(ErrCodeCanceled, err) }

// NewRequestError reports a request that could not be built or encoded.
func NewRequestError(msg string) *Error {
	return &Error{Code: ErrCodeRequest, Message: msg}
}

// statusCodes maps specific statuses to their class. Other 5xx are server
// errors and everything else is a client error.
var statusCodes = map[int]ErrorCode{
	http.StatusBadRequest:          ErrCodeValidation,
	http.StatusUnauthorized:        ErrCodeAuth,
	http.StatusForbidden:           ErrCodeAuth,
	http.StatusNotFound:            ErrCodeNotFound,
	http.StatusUnprocessableEntity: ErrCodeValidation,
	http.StatusTooManyRequests:     ErrCodeRateLimit,
}

// StatusError classifies a non-2xx response. It returns nil for 2xx.
func StatusError(statusCode int, header http.Header, body []byte) *Error {
	if statusCode >= 200 && statusCode < 300 {
		return nil
	}
	code, ok := statusCodes[statusCode]
	switch {
	case ok:
	case statusCode >= 500:
		code = ErrCodeServer
	default:
		code = ErrCodeClient
	}
	msg := http.StatusText(statusCode)
	if msg == "" {
		msg = fmt.Sprintf("HTTP %d", statusCode)
	}
	return &Error{
		StatusCode: statusCode,
		Code:       code,
		Message:    msg,
		Retryable:  code.transient(),
		Body:       body,
		Header:     header,
	}
}

// HasCode reports whether err wraps an *Error with the given code.
func HasCode(err error, code ErrorCode) bool {
	var e *Error
	return errors.As(err, &e) && e.Code == code
}

// IsRateLimit reports a 429 response.
func IsRateLimit(err error) bool { return HasCode(err, ErrCodeRateLimit) }

// IsCanceled reports a failure caused by the caller's context.
func IsCanceled(err error) bool { return HasCode(err, ErrCodeCanceled) }

// IsRetryable reports whether another attempt could succeed.
func IsRetryable(err error) bool {
	var e *Error
	return errors.As(err, &e) && e.Retryable
}
