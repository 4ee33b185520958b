package validation

import (
	"testing"

	validation "github.com/jellydator/validation"
	"github.com/stretchr/testify/assert"

	apperrors "github.com/allisson/piivault/internal/errors"
)

func TestPasswordStrength(t *testing.T) {
	rule := PasswordStrength{
		MinLength:      8,
		RequireUpper:   true,
		RequireLower:   true,
		RequireNumber:  true,
		RequireSpecial: true,
	}

	tests := []struct {
		name     string
		password string
		errMsg   string
	}{
		{name: "valid password", password: "SecurePass123!"},
		{name: "empty is left to Required", password: ""},
		{name: "too short", password: "Short1!", errMsg: "password must be at least 8 characters"},
		{name: "missing uppercase", password: "securepass123!", errMsg: "uppercase letter"},
		{name: "missing lowercase", password: "SECUREPASS123!", errMsg: "lowercase letter"},
		{name: "missing number", password: "SecurePass!!", errMsg: "one number"},
		{name: "missing special", password: "SecurePass123", errMsg: "special character"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := rule.Validate(tt.password)
			if tt.errMsg == "" {
				assert.NoError(t, err)
				return
			}
			assert.ErrorContains(t, err, tt.errMsg)
		})
	}

	t.Run("non string", func(t *testing.T) {
		assert.Error(t, rule.Validate(42))
	})
}

func TestPasswordStrength_TwoDigitMinimum(t *testing.T) {
	rule := PasswordStrength{MinLength: 12}
	assert.ErrorContains(t, rule.Validate("short"), "at least 12 characters")
	assert.NoError(t, rule.Validate("long enough pw"))
}

func TestEmail(t *testing.T) {
	tests := []struct {
		email string
		valid bool
	}{
		{"user@example.com", true},
		{"  User@Example.COM ", true},
		{"first.last+tag@sub.example.org", true},
		{"invalid", false},
		{"no-domain@", false},
		{"@example.com", false},
		{"user@example", false},
	}

	for _, tt := range tests {
		t.Run(tt.email, func(t *testing.T) {
			err := validation.Validate(tt.email, Email)
			if tt.valid {
				assert.NoError(t, err)
			} else {
				assert.Error(t, err)
			}
		})
	}
}

func TestPhone(t *testing.T) {
	tests := []struct {
		phone string
		valid bool
	}{
		{"+1 (555) 010-9999", true},
		{"555.010.9999", true},
		{"12345", false},
		{"call me", false},
		{"+1-555-CALL-NOW", false},
	}

	for _, tt := range tests {
		t.Run(tt.phone, func(t *testing.T) {
			err := validation.Validate(tt.phone, Phone)
			if tt.valid {
				assert.NoError(t, err)
			} else {
				assert.Error(t, err)
			}
		})
	}
}

func TestNotBlank(t *testing.T) {
	assert.NoError(t, validation.Validate("value", NotBlank))
	assert.Error(t, validation.Validate("   ", NotBlank))
}

func TestEachEmail(t *testing.T) {
	assert.NoError(t, validation.Validate([]string{"a@example.com", "b@example.org"}, EachEmail))
	assert.Error(t, validation.Validate([]string{"a@example.com", "nope"}, EachEmail))
	assert.Error(t, validation.Validate([]string{""}, EachEmail))
}

func TestWrapValidationError(t *testing.T) {
	assert.NoError(t, WrapValidationError(nil))

	err := WrapValidationError(validation.NewError("code", "name is required"))
	assert.True(t, apperrors.Is(err, apperrors.ErrInvalidInput))
	assert.Contains(t, err.Error(), "name is required")
}
