// Package validation provides custom validation rules for request and use case input.
package validation

import (
	"fmt"
	"regexp"
	"strings"
	"unicode"

	validation "github.com/jellydator/validation"

	apperrors "github.com/allisson/piivault/internal/errors"
)

var (
	emailRegex = regexp.MustCompile(`^[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}$`)
	phoneRegex = regexp.MustCompile(`^\+?[0-9 ().\-]{6,24}$`)
)

// WrapValidationError wraps validation errors as domain ErrInvalidInput.
func WrapValidationError(err error) error {
	if err == nil {
		return nil
	}
	return apperrors.Wrap(apperrors.ErrInvalidInput, err.Error())
}

// PasswordStrength validates password meets minimum security requirements.
type PasswordStrength struct {
	MinLength      int
	RequireUpper   bool
	RequireLower   bool
	RequireNumber  bool
	RequireSpecial bool
}

// Validate checks if the password meets the configured requirements.
func (p PasswordStrength) Validate(value any) error {
	s, ok := value.(string)
	if !ok {
		return validation.NewError("validation_password_strength", "password must be a string")
	}
	if s == "" {
		return nil
	}

	if len(s) < p.MinLength {
		return validation.NewError(
			"validation_password_min_length",
			fmt.Sprintf("password must be at least %d characters", p.MinLength),
		)
	}
	if p.RequireUpper && !containsAny(s, unicode.IsUpper) {
		return validation.NewError(
			"validation_password_uppercase",
			"password must contain at least one uppercase letter",
		)
	}
	if p.RequireLower && !containsAny(s, unicode.IsLower) {
		return validation.NewError(
			"validation_password_lowercase",
			"password must contain at least one lowercase letter",
		)
	}
	if p.RequireNumber && !containsAny(s, unicode.IsNumber) {
		return validation.NewError("validation_password_number", "password must contain at least one number")
	}
	if p.RequireSpecial && !containsAny(s, isSpecial) {
		return validation.NewError(
			"validation_password_special",
			"password must contain at least one special character",
		)
	}

	return nil
}

func isSpecial(r rune) bool {
	return unicode.IsPunct(r) || unicode.IsSymbol(r)
}

func containsAny(s string, pred func(rune) bool) bool {
	for _, r := range s {
		if pred(r) {
			return true
		}
	}
	return false
}

// Email validates email format. Surrounding whitespace is tolerated because stored
// emails are normalized before indexing.
var Email = validation.NewStringRuleWithError(
	func(s string) bool {
		return emailRegex.MatchString(strings.TrimSpace(s))
	},
	validation.NewError("validation_email_format", "must be a valid email address"),
)

// Phone validates a loosely formatted phone number with at least six digits.
var Phone = validation.NewStringRuleWithError(
	func(s string) bool {
		s = strings.TrimSpace(s)
		if !phoneRegex.MatchString(s) {
			return false
		}
		digits := 0
		for _, r := range s {
			if unicode.IsDigit(r) {
				digits++
			}
		}
		return digits >= 6
	},
	validation.NewError("validation_phone_format", "must be a valid phone number"),
)

// NotBlank validates that a string is not empty after trimming whitespace.
var NotBlank = validation.NewStringRuleWithError(
	func(s string) bool {
		return strings.TrimSpace(s) != ""
	},
	validation.NewError("validation_not_blank", "must not be blank"),
)

// EachEmail validates every element of a string slice as an email address.
var EachEmail = validation.Each(validation.Required.Error("must not be empty"), Email)
