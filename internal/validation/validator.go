// Package validation adapts go-playground/validator to echo's Validator
// interface and reports failures as imgbed EINVALID errors.
package validation

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"unicode"

	"github.com/dukerupert/imgbed"
	"github.com/go-playground/validator/v10"
)

// Validator provides struct tag validation.
//
// Usage in the HTTP server:
//
//	e.Validator = validation.NewValidator()
type Validator struct {
	validate *validator.Validate
}

// NewValidator creates a validator with the custom tags registered.
func NewValidator() *Validator {
	v := validator.New()

	// Registration only fails for malformed tag names.
	_ = v.RegisterValidation("reference", validateReference)

	return &Validator{
		validate: v,
	}
}

// Validate validates a struct using its validation tags. Failures are
// returned as a single EINVALID error listing every field.
func (v *Validator) Validate(i any) error {
	err := v.validate.Struct(i)
	if err == nil {
		return nil
	}

	var validationErrors validator.ValidationErrors
	if !errors.As(err, &validationErrors) {
		return imgbed.Internal("Failed to validate request", err)
	}

	formatted := FormatValidationErrors(validationErrors)
	fields := make([]string, 0, len(formatted))
	for field := range formatted {
		fields = append(fields, field)
	}
	sort.Strings(fields)

	messages := make([]string, 0, len(fields))
	for _, field := range fields {
		messages = append(messages, fmt.Sprintf("%s %s", field, formatted[field]))
	}
	return imgbed.Invalid("%s", strings.Join(messages, "; "))
}

// validateReference accepts printable tokens without whitespace or path
// separators.
func validateReference(fl validator.FieldLevel) bool {
	s := fl.Field().String()
	for _, r := range s {
		if r == '/' || r == '\\' || unicode.IsSpace(r) || !unicode.IsPrint(r) {
			return false
		}
	}
	return true
}

// FormatValidationErrors converts validator errors into field -> message.
func FormatValidationErrors(err error) map[string]string {
	errs := make(map[string]string)

	var validationErrors validator.ValidationErrors
	if !errors.As(err, &validationErrors) {
		errs["_error"] = err.Error()
		return errs
	}

	for _, fieldErr := range validationErrors {
		fieldName := strings.ToLower(fieldErr.Field())

		switch fieldErr.Tag() {
		case "required":
			errs[fieldName] = "is required"
		case "max":
			errs[fieldName] = fmt.Sprintf("must be no more than %s characters", fieldErr.Param())
		case "reference":
			errs[fieldName] = "must be a file reference"
		case "oneof":
			errs[fieldName] = fmt.Sprintf("must be one of: %s", fieldErr.Param())
		default:
			errs[fieldName] = fmt.Sprintf("failed validation: %s", fieldErr.Tag())
		}
	}

	return errs
}
