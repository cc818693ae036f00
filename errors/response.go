package errors

import "fmt"

// Record is the JSON structure used for per-item failures in batch results.
type Record struct {
	Type       string         `json:"type"`
	Code       ErrorCode      `json:"code,omitempty"`
	Message    string         `json:"message"`
	StatusCode int            `json:"status_code,omitempty"`
	Details    map[string]any `json:"details,omitempty"`
}

// ToRecord converts an Error to a Record for JSON serialization.
func (e *Error) ToRecord() Record {
	return Record{
		Type:       e.Code.TypeName(),
		Code:       e.Code,
		Message:    e.Error(),
		StatusCode: e.StatusCode,
		Details:    e.Details,
	}
}

// RecordOf converts any error to a Record. Foreign errors keep their Go type name.
func RecordOf(err error) Record {
	if err == nil {
		return Record{}
	}
	if e, ok := As(err); ok {
		return e.ToRecord()
	}
	return Record{Type: fmt.Sprintf("%T", err), Message: err.Error()}
}
