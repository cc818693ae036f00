package validation

import (
	"fmt"
	"strings"
	"unicode/utf8"

	apperrors "github.com/freeseek/freeseek-go/errors"
)

// FieldError names one offending field.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

func (f FieldError) String() string { return f.Field + ": " + f.Message }

// newError folds field errors into one MODEL_VALIDATION_ERROR, or nil.
func newError(fields []FieldError) *apperrors.Error {
	if len(fields) == 0 {
		return nil
	}
	parts := make([]string, len(fields))
	for i, f := range fields {
		parts[i] = f.String()
	}
	return apperrors.ModelValidation(strings.Join(parts, "; ")).WithDetail("fields", fields)
}

// Validator collects field errors from chained checks. The zero value is
// ready to use.
type Validator struct {
	fields []FieldError
}

// New returns an empty Validator.
func New() *Validator { return &Validator{} }

// AddError records a failed field.
func (v *Validator) AddError(field, message string) {
	v.fields = append(v.fields, FieldError{Field: field, Message: message})
}

func (v *Validator) HasErrors() bool       { return len(v.fields) > 0 }
func (v *Validator) Errors() []FieldError { return v.fields }

// Validate returns the collected failures as a MODEL_VALIDATION_ERROR, or nil.
func (v *Validator) Validate() *apperrors.Error { return newError(v.fields) }

// Err is Validate as a plain error, so a nil result compares equal to nil.
func (v *Validator) Err() error {
	if e := v.Validate(); e != nil {
		return e
	}
	return nil
}

// Required rejects empty and whitespace-only values.
func (v *Validator) Required(field, value string) *Validator {
	return v.Custom(strings.TrimSpace(value) != "", field, "is required")
}

// MaxLength bounds value to maxLen characters.
func (v *Validator) MaxLength(field, value string, maxLen int) *Validator {
	return v.Custom(utf8.RuneCountInString(value) <= maxLen, field,
		fmt.Sprintf("must be %d characters or less", maxLen))
}

// Custom records message for field unless ok holds.
func (v *Validator) Custom(ok bool, field, message string) *Validator {
	if !ok {
		v.AddError(field, message)
	}
	return v
}
