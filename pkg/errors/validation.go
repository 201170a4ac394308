package errors

import (
	"fmt"
	"strings"
)

// FieldError is a single rejected input field.
type FieldError struct {
	Field   string `json:"field"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// ValidationErrors aggregates field failures found before a request is sent.
type ValidationErrors struct {
	Errors []FieldError `json:"errors"`
}

// NewValidationErrors creates a new validation errors collection
func NewValidationErrors() *ValidationErrors {
	return &ValidationErrors{
		Errors: make([]FieldError, 0),
	}
}

// Add adds a validation error
func (v *ValidationErrors) Add(field, code, message string) {
	v.Errors = append(v.Errors, FieldError{Field: field, Code: code, Message: message})
}

// HasErrors returns true if there are validation errors
func (v *ValidationErrors) HasErrors() bool {
	return len(v.Errors) > 0
}

// Error implements the error interface
func (v *ValidationErrors) Error() string {
	if len(v.Errors) == 0 {
		return ""
	}

	messages := make([]string, len(v.Errors))
	for i, err := range v.Errors {
		messages[i] = err.Message
	}
	return fmt.Sprintf("validation failed: %s", strings.Join(messages, "; "))
}

// ToMap converts validation errors to a map for JSON serialization
func (v *ValidationErrors) ToMap() map[string][]string {
	result := make(map[string][]string)
	for _, err := range v.Errors {
		result[err.Field] = append(result[err.Field], err.Message)
	}
	return result
}

// AsError returns nil when empty, otherwise a VALIDATION AppError whose code
// is taken from the first failure.
func (v *ValidationErrors) AsError(operation string) error {
	if !v.HasErrors() {
		return nil
	}
	fields := make(map[string]interface{}, len(v.Errors))
	for field, msgs := range v.ToMap() {
		fields[field] = msgs
	}
	return NewValidationError(v.Error()).
		WithCode(v.Errors[0].Code).
		WithOperation(operation).
		WithDetails(map[string]interface{}{"fields": fields})
}
