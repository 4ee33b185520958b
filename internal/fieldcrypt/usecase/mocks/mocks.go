// Package mocks provides testify mocks for the field encryption batch use cases.
package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/allisson/piivault/internal/fieldcrypt/usecase"
)

// MockMigrationUseCase is a mock implementation of usecase.MigrationUseCase.
type MockMigrationUseCase struct {
	mock.Mock
}

var _ usecase.MigrationUseCase = (*MockMigrationUseCase)(nil)

// Run mocks usecase.MigrationUseCase.Run.
func (m *MockMigrationUseCase) Run(ctx context.Context, input usecase.MigrationInput) (*usecase.MigrationReport, error) {
	args := m.Called(ctx, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*usecase.MigrationReport), args.Error(1)
}

// MockVerificationUseCase is a mock implementation of usecase.VerificationUseCase.
type MockVerificationUseCase struct {
	mock.Mock
}

var _ usecase.VerificationUseCase = (*MockVerificationUseCase)(nil)

// Verify mocks usecase.VerificationUseCase.Verify.
func (m *MockVerificationUseCase) Verify(
	ctx context.Context,
	input usecase.VerificationInput,
) (*usecase.VerificationReport, error) {
	args := m.Called(ctx, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*usecase.VerificationReport), args.Error(1)
}
