package errors

// ErrorCode represents a machine-readable error code.
type ErrorCode string

const (
	// ErrCodeAuthentication indicates the bearer token could not be acquired or refreshed.
	ErrCodeAuthentication ErrorCode = "AUTHENTICATION_ERROR"
	// ErrCodeModelValidation indicates malformed caller input or a missing required schema field.
	ErrCodeModelValidation ErrorCode = "MODEL_VALIDATION_ERROR"
	// ErrCodeAPI indicates a transport or HTTP failure, an open circuit, or exhausted retries.
	ErrCodeAPI ErrorCode = "API_ERROR"
	// ErrCodeMiddleware indicates a registered middleware failed.
	ErrCodeMiddleware ErrorCode = "MIDDLEWARE_ERROR"
	// ErrCodeRateLimitExceeded indicates the server answered 429 and retries were exhausted.
	ErrCodeRateLimitExceeded ErrorCode = "RATE_LIMIT_EXCEEDED"
)

var typeNames = map[ErrorCode]string{
	ErrCodeAuthentication:    "AuthenticationError",
	ErrCodeModelValidation:   "ModelValidationError",
	ErrCodeAPI:               "APIError",
	ErrCodeMiddleware:        "MiddlewareError",
	ErrCodeRateLimitExceeded: "RateLimitExceededError",
}

// TypeName returns the display name used in batch error records.
func (c ErrorCode) TypeName() string {
	if n, ok := typeNames[c]; ok {
		return n
	}
	return "Error"
}
