package validation

import "sort"

// MaxModelLength bounds a model identifier.
const MaxModelLength = 256

// InferRequest is the payload of an inference call.
type InferRequest struct {
	Model string         `json:"model" validate:"required,notblank,max=256"`
	Data  map[string]any `json:"data" validate:"required"`
}

// Validate checks the request shape.
func (r InferRequest) Validate() error {
	return Struct(r)
}

// ModelID checks a model identifier used in a URL path.
func ModelID(model string) error {
	return New().
		Required("model", model).
		MaxLength("model", model, MaxModelLength).
		Err()
}

// RequiredFields returns the names in a JSON schema's "required" array.
// Entries that are not strings are ignored.
func RequiredFields(schema map[string]any) []string {
	var names []string
	switch req := schema["required"].(type) {
	case []string:
		names = append(names, req...)
	case []any:
		for _, item := range req {
			if s, ok := item.(string); ok {
				names = append(names, s)
			}
		}
	}
	return names
}

// CheckSchema reports every field the schema requires that data lacks.
// data itself is never modified.
func CheckSchema(schema, data map[string]any) error {
	v := New()
	fields := RequiredFields(schema)
	sort.Strings(fields)
	for _, name := range fields {
		_, ok := data[name]
		v.Custom(ok, name, "is required by the model schema")
	}
	return v.Err()
}
