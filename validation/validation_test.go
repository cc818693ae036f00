package validation

import (
	"maps"
	"strings"
	"testing"

	apperrors "github.com/freeseek/freeseek-go/errors"
)

func TestValidatorRequired(t *testing.T) {
	v := New()
	v.Required("name", "John")
	if v.HasErrors() {
		t.Error("expected no errors for valid input")
	}

	v2 := New()
	v2.Required("name", "")
	if !v2.HasErrors() {
		t.Error("expected error for empty required field")
	}

	v3 := New()
	v3.Required("name", "   ")
	if !v3.HasErrors() {
		t.Error("expected error for whitespace-only required field")
	}
}

func TestValidatorMaxLength(t *testing.T) {
	v := New()
	v.MaxLength("desc", "short", 10)
	if v.HasErrors() {
		t.Error("expected no error for string within max length")
	}

	v2 := New()
	v2.MaxLength("desc", "this is too long", 5)
	if !v2.HasErrors() {
		t.Error("expected error for string exceeding max length")
	}

	v3 := New()
	v3.MaxLength("desc", "héllo", 5)
	if v3.HasErrors() {
		t.Error("expected length to be counted in characters")
	}
}

func TestValidatorValidate(t *testing.T) {
	v := New()
	v.Required("name", "John")
	if v.Validate() != nil {
		t.Error("expected nil for valid input")
	}
	if v.Err() != nil {
		t.Error("expected nil error interface for valid input")
	}

	v2 := New()
	v2.Required("name", "")
	v2.Custom(false, "count", "must be at least 1")
	appErr := v2.Validate()
	if appErr == nil {
		t.Fatal("expected error")
	}
	if appErr.Code != apperrors.ErrCodeModelValidation {
		t.Errorf("expected MODEL_VALIDATION_ERROR, got %s", appErr.Code)
	}
	if !strings.Contains(appErr.Message, "name") || !strings.Contains(appErr.Message, "count") {
		t.Errorf("expected both fields in message, got %q", appErr.Message)
	}
}

func TestInferRequest_Validate(t *testing.T) {
	tests := []struct {
		name    string
		req     InferRequest
		wantErr string
	}{
		{"valid", InferRequest{Model: "deepseek_v3", Data: map[string]any{"prompt": "hi"}}, ""},
		{"empty data ok", InferRequest{Model: "m", Data: map[string]any{}}, ""},
		{"empty model", InferRequest{Model: "", Data: map[string]any{}}, "model"},
		{"blank model", InferRequest{Model: "   ", Data: map[string]any{}}, "model"},
		{"nil data", InferRequest{Model: "m"}, "data"},
		{"long model", InferRequest{Model: strings.Repeat("x", 300), Data: map[string]any{}}, "model"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.req.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("expected no error, got %v", err)
				}
				return
			}
			if !apperrors.IsModelValidation(err) {
				t.Fatalf("expected model validation error, got %v", err)
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("expected %q in %q", tt.wantErr, err.Error())
			}
		})
	}
}

func TestModelID(t *testing.T) {
	if err := ModelID("deepseek_v3"); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	if err := ModelID(" "); !apperrors.IsModelValidation(err) {
		t.Errorf("expected model validation error, got %v", err)
	}
}

func TestCheckSchema(t *testing.T) {
	data := map[string]any{"prompt": "hi", "temperature": 0.2}
	original := maps.Clone(data)

	tests := []struct {
		name    string
		schema  map[string]any
		missing []string
	}{
		{"no required", map[string]any{"type": "object"}, nil},
		{"satisfied", map[string]any{"required": []any{"prompt"}}, nil},
		{"string slice", map[string]any{"required": []string{"prompt", "temperature"}}, nil},
		{"missing", map[string]any{"required": []any{"prompt", "max_tokens", "stop"}}, []string{"max_tokens", "stop"}},
		{"non-string entries ignored", map[string]any{"required": []any{1, "prompt"}}, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := CheckSchema(tt.schema, data)
			if len(tt.missing) == 0 {
				if err != nil {
					t.Errorf("expected no error, got %v", err)
				}
			} else {
				if !apperrors.IsModelValidation(err) {
					t.Fatalf("expected model validation error, got %v", err)
				}
				for _, f := range tt.missing {
					if !strings.Contains(err.Error(), f) {
						t.Errorf("expected %q in %q", f, err.Error())
					}
				}
			}
			if !maps.Equal(data, original) {
				t.Error("data must be unchanged")
			}
		})
	}
}

func TestStructNestedFieldNames(t *testing.T) {
	type Circuit struct {
		FailureThreshold int `mapstructure:"failure_threshold" validate:"gte=1"`
	}
	type Settings struct {
		Circuit Circuit `mapstructure:"circuit"`
	}

	err := Struct(Settings{})
	if err == nil || !strings.Contains(err.Error(), "circuit.failure_threshold") {
		t.Errorf("expected nested field path, got %v", err)
	}
}
