// Package usecase implements user registration, lookup, contact updates and login
// on top of the encrypted user repository.
package usecase

import (
	"context"

	"github.com/allisson/piivault/internal/user/domain"
)

// UserRepository defines user persistence operations.
type UserRepository interface {
	Create(ctx context.Context, user *domain.User) error
	GetByID(ctx context.Context, id string) (*domain.User, error)
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
	UpdateContact(ctx context.Context, id string, update domain.ContactUpdate) error
}

// PasswordService hashes and checks user passwords.
type PasswordService interface {
	Hash(password string) (string, error)
	Compare(password, hashed string) bool
}

// UseCase defines user business operations.
type UseCase interface {
	Register(ctx context.Context, input RegisterUserInput) (*domain.User, error)
	GetByID(ctx context.Context, id string) (*domain.User, error)
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
	UpdateContact(ctx context.Context, id string, input UpdateContactInput) (*domain.User, error)
	Authenticate(ctx context.Context, email, password string) (*domain.User, error)
}
