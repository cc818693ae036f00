// Package errors defines the error taxonomy returned by the freeseek client.
// Every error carries a machine-readable code, a human-readable message and,
// where a response was received, the HTTP status and body for diagnosis.
package errors
