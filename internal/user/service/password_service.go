// Package service provides Argon2id password hashing for user credentials.
package service

import (
	"github.com/allisson/go-pwdhash"

	apperrors "github.com/allisson/piivault/internal/errors"
)

// PasswordService hashes and checks user passwords.
type PasswordService interface {
	Hash(password string) (string, error)
	Compare(password, hashed string) bool
}

type passwordService struct {
	hasher *pwdhash.PasswordHasher
}

// NewPasswordService creates a PasswordService using the interactive Argon2id policy.
func NewPasswordService() (PasswordService, error) {
	hasher, err := pwdhash.New(pwdhash.WithPolicy(pwdhash.PolicyInteractive))
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to create password hasher")
	}
	return &passwordService{hasher: hasher}, nil
}

// Hash returns the encoded Argon2id hash of password.
func (s *passwordService) Hash(password string) (string, error) {
	hashed, err := s.hasher.Hash([]byte(password))
	if err != nil {
		return "", apperrors.Wrap(err, "failed to hash password")
	}
	return hashed, nil
}

// Compare reports whether password matches hashed in constant time.
// Malformed hashes never match.
func (s *passwordService) Compare(password, hashed string) bool {
	ok, err := s.hasher.Verify([]byte(password), hashed)
	if err != nil {
		return false
	}
	return ok
}
