package usecase

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/allisson/piivault/internal/user/domain"
)

// mockUserRepository is a mock implementation of UserRepository.
type mockUserRepository struct {
	mock.Mock
}

func (m *mockUserRepository) Create(ctx context.Context, user *domain.User) error {
	args := m.Called(ctx, user)
	if args.Error(0) == nil {
		user.ID = "generated-id"
	}
	return args.Error(0)
}

func (m *mockUserRepository) GetByID(ctx context.Context, id string) (*domain.User, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.User), args.Error(1)
}

func (m *mockUserRepository) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	args := m.Called(ctx, email)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.User), args.Error(1)
}

func (m *mockUserRepository) UpdateContact(ctx context.Context, id string, update domain.ContactUpdate) error {
	return m.Called(ctx, id, update).Error(0)
}

// mockPasswordService is a mock implementation of PasswordService.
type mockPasswordService struct {
	mock.Mock
}

func (m *mockPasswordService) Hash(password string) (string, error) {
	args := m.Called(password)
	return args.String(0), args.Error(1)
}

func (m *mockPasswordService) Compare(password, hashed string) bool {
	return m.Called(password, hashed).Bool(0)
}
