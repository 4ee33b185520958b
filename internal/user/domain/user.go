// Package domain defines the user entity stored in the encrypted "users" collection.
package domain

import (
	"time"

	"github.com/allisson/piivault/internal/errors"
)

// Collection is the document collection and registry entity name for users.
const Collection = "users"

// Profile holds identity data. NationalID and Address are encrypted at rest.
type Profile struct {
	NationalID string `json:"nationalId,omitempty"`
	Address    string `json:"address,omitempty"`
}

// User is the decrypted view of a stored user. Password holds the Argon2id hash.
type User struct {
	ID             string
	Name           string
	Email          string
	Phone          string
	RecoveryEmails []string
	Profile        Profile
	Password       string
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// Domain-specific errors for user operations.
var (
	// ErrUserNotFound indicates the requested user does not exist.
	ErrUserNotFound = errors.Wrap(errors.ErrNotFound, "user not found")

	// ErrUserAlreadyExists indicates a user with the same email, phone or national id exists.
	ErrUserAlreadyExists = errors.Wrap(errors.ErrConflict, "user already exists")

	// ErrInvalidCredentials indicates the email and password pair does not match a user.
	ErrInvalidCredentials = errors.Wrap(errors.ErrUnauthorized, "invalid credentials")

	// ErrEmptyContactUpdate indicates a contact update without any field to change.
	ErrEmptyContactUpdate = errors.Wrap(errors.ErrInvalidInput, "no contact field to update")
)

// ContactUpdate lists contact fields to change. Nil fields are left untouched; an empty
// Phone or Address removes the field.
type ContactUpdate struct {
	Email          *string
	Phone          *string
	RecoveryEmails *[]string
	Address        *string
}

// IsEmpty reports whether the update changes nothing.
func (u ContactUpdate) IsEmpty() bool {
	return u.Email == nil && u.Phone == nil && u.RecoveryEmails == nil && u.Address == nil
}
