// Package dto provides data transfer objects for the user HTTP layer.
package dto

import (
	validation "github.com/jellydator/validation"

	appValidation "github.com/allisson/piivault/internal/validation"
)

// RegisterUserRequest is the body of POST /v1/users.
type RegisterUserRequest struct {
	Name           string   `json:"name"`
	Email          string   `json:"email"`
	Phone          string   `json:"phone"`
	RecoveryEmails []string `json:"recovery_emails"`
	NationalID     string   `json:"national_id"`
	Address        string   `json:"address"`
	Password       string   `json:"password"`
}

// Validate checks the request shape. Format rules are enforced by the use case.
func (r *RegisterUserRequest) Validate() error {
	return validation.ValidateStruct(r,
		validation.Field(&r.Name, validation.Required, appValidation.NotBlank),
		validation.Field(&r.Email, validation.Required, appValidation.NotBlank),
		validation.Field(&r.Password, validation.Required),
	)
}

// UpdateContactRequest is the body of PATCH /v1/users/:id/contact. Omitted fields are
// left untouched; an empty phone or address removes it.
type UpdateContactRequest struct {
	Email          *string   `json:"email"`
	Phone          *string   `json:"phone"`
	RecoveryEmails *[]string `json:"recovery_emails"`
	Address        *string   `json:"address"`
}

// Validate requires at least one field.
func (r *UpdateContactRequest) Validate() error {
	if r.Email == nil && r.Phone == nil && r.RecoveryEmails == nil && r.Address == nil {
		return validation.NewError("validation_empty_update", "at least one contact field is required")
	}
	return nil
}

// LoginRequest is the body of POST /v1/auth/login.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Validate requires both credentials.
func (r *LoginRequest) Validate() error {
	return validation.ValidateStruct(r,
		validation.Field(&r.Email, validation.Required),
		validation.Field(&r.Password, validation.Required),
	)
}
