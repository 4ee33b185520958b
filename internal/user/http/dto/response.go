package dto

import (
	"time"
)

// ProfileResponse is the decrypted identity block of a user.
type ProfileResponse struct {
	NationalID string `json:"national_id,omitempty"`
	Address    string `json:"address,omitempty"`
}

// UserResponse is the API view of a user. It never carries the password hash,
// ciphertext or blind indexes.
type UserResponse struct {
	ID             string          `json:"id"`
	Name           string          `json:"name"`
	Email          string          `json:"email"`
	Phone          string          `json:"phone,omitempty"`
	RecoveryEmails []string        `json:"recovery_emails,omitempty"`
	Profile        ProfileResponse `json:"profile"`
	CreatedAt      time.Time       `json:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at"`
}

// LoginResponse is returned by a successful login.
type LoginResponse struct {
	UserID        string `json:"user_id"`
	Authenticated bool   `json:"authenticated"`
}
