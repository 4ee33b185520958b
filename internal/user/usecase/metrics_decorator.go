package usecase

import (
	"context"
	"time"

	"github.com/allisson/piivault/internal/metrics"
	"github.com/allisson/piivault/internal/user/domain"
)

// userUseCaseWithMetrics decorates UseCase with metrics instrumentation.
type userUseCaseWithMetrics struct {
	next    UseCase
	metrics metrics.BusinessMetrics
}

// NewUserUseCaseWithMetrics wraps a UseCase with metrics recording.
func NewUserUseCaseWithMetrics(useCase UseCase, m metrics.BusinessMetrics) UseCase {
	return &userUseCaseWithMetrics{next: useCase, metrics: m}
}

func (u *userUseCaseWithMetrics) record(ctx context.Context, operation string, start time.Time, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	u.metrics.RecordOperation(ctx, "users", operation, status)
	u.metrics.RecordDuration(ctx, "users", operation, time.Since(start), status)
}

// Register records metrics for user registration.
func (u *userUseCaseWithMetrics) Register(ctx context.Context, input RegisterUserInput) (*domain.User, error) {
	start := time.Now()
	user, err := u.next.Register(ctx, input)
	u.record(ctx, "user_register", start, err)
	return user, err
}

// GetByID records metrics for lookups by id.
func (u *userUseCaseWithMetrics) GetByID(ctx context.Context, id string) (*domain.User, error) {
	start := time.Now()
	user, err := u.next.GetByID(ctx, id)
	u.record(ctx, "user_get", start, err)
	return user, err
}

// GetByEmail records metrics for lookups by email.
func (u *userUseCaseWithMetrics) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	start := time.Now()
	user, err := u.next.GetByEmail(ctx, email)
	u.record(ctx, "user_find_by_email", start, err)
	return user, err
}

// UpdateContact records metrics for contact updates.
func (u *userUseCaseWithMetrics) UpdateContact(
	ctx context.Context,
	id string,
	input UpdateContactInput,
) (*domain.User, error) {
	start := time.Now()
	user, err := u.next.UpdateContact(ctx, id, input)
	u.record(ctx, "user_update_contact", start, err)
	return user, err
}

// Authenticate records metrics for login attempts.
func (u *userUseCaseWithMetrics) Authenticate(ctx context.Context, email, password string) (*domain.User, error) {
	start := time.Now()
	user, err := u.next.Authenticate(ctx, email, password)
	u.record(ctx, "user_authenticate", start, err)
	return user, err
}
