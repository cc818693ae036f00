// Package validation checks caller input before any network activity.
//
// Requests are checked with struct tags through go-playground/validator, and
// ad hoc values with a chained Validator. Every failure is reported
// as a MODEL_VALIDATION_ERROR carrying the offending fields in Details.
//
// # Struct Tag Validation
//
//	req := validation.InferRequest{Model: "deepseek_v3", Data: data}
//	err := validation.Struct(req)
//
// # Programmatic Validation
//
//	v := validation.New()
//	v.Required("model", model)
//	err := v.Err()
//
// # Schema Checks
//
// CheckSchema verifies that every name listed in a model schema's "required"
// array is present in the request data.
package validation
