// Package mocks provides testify mocks for the user use case.
package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/allisson/piivault/internal/user/domain"
	"github.com/allisson/piivault/internal/user/usecase"
)

// MockUseCase is a mock implementation of usecase.UseCase.
type MockUseCase struct {
	mock.Mock
}

var _ usecase.UseCase = (*MockUseCase)(nil)

func userResult(args mock.Arguments) (*domain.User, error) {
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.User), args.Error(1)
}

// Register mocks usecase.UseCase.Register.
func (m *MockUseCase) Register(ctx context.Context, input usecase.RegisterUserInput) (*domain.User, error) {
	return userResult(m.Called(ctx, input))
}

// GetByID mocks usecase.UseCase.GetByID.
func (m *MockUseCase) GetByID(ctx context.Context, id string) (*domain.User, error) {
	return userResult(m.Called(ctx, id))
}

// GetByEmail mocks usecase.UseCase.GetByEmail.
func (m *MockUseCase) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	return userResult(m.Called(ctx, email))
}

// UpdateContact mocks usecase.UseCase.UpdateContact.
func (m *MockUseCase) UpdateContact(
	ctx context.Context,
	id string,
	input usecase.UpdateContactInput,
) (*domain.User, error) {
	return userResult(m.Called(ctx, id, input))
}

// Authenticate mocks usecase.UseCase.Authenticate.
func (m *MockUseCase) Authenticate(ctx context.Context, email, password string) (*domain.User, error) {
	return userResult(m.Called(ctx, email, password))
}
