package validation

import (
	"strings"
	"testing"

	"github.com/dukerupert/imgbed"
	"github.com/stretchr/testify/assert"
)

type referenceRequest struct {
	Reference string `param:"reference" validate:"required,max=512,reference"`
}

func TestValidator_Validate(t *testing.T) {
	v := NewValidator()

	tests := []struct {
		name    string
		ref     string
		wantErr string
	}{
		{"telegram reference", "AgACAgQAAxkDAAIBZ2Zx.png", ""},
		{"no extension", "abc", ""},
		{"missing", "", "reference is required"},
		{"too long", strings.Repeat("a", 513), "reference must be no more than 512 characters"},
		{"path separator", "../etc/passwd", "reference must be a file reference"},
		{"whitespace", "a b.jpg", "reference must be a file reference"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := v.Validate(&referenceRequest{Reference: tt.ref})
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			assert.Equal(t, imgbed.EINVALID, imgbed.ErrorCode(err))
			assert.Equal(t, tt.wantErr, imgbed.ErrorMessage(err))
		})
	}
}

func TestFormatValidationErrors_NonValidationError(t *testing.T) {
	errs := FormatValidationErrors(assert.AnError)
	assert.Equal(t, assert.AnError.Error(), errs["_error"])
}
