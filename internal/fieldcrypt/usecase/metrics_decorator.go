package usecase

import (
	"context"
	"time"

	"github.com/allisson/piivault/internal/metrics"
)

// migrationUseCaseWithMetrics decorates MigrationUseCase with metrics instrumentation.
type migrationUseCaseWithMetrics struct {
	next    MigrationUseCase
	metrics metrics.BusinessMetrics
	fields  metrics.FieldMetrics
}

// NewMigrationUseCaseWithMetrics wraps a MigrationUseCase with metrics recording.
func NewMigrationUseCaseWithMetrics(
	useCase MigrationUseCase,
	m metrics.BusinessMetrics,
	f metrics.FieldMetrics,
) MigrationUseCase {
	return &migrationUseCaseWithMetrics{next: useCase, metrics: m, fields: f}
}

// Run records metrics for migration passes. Dry runs do not count documents as written.
func (u *migrationUseCaseWithMetrics) Run(ctx context.Context, input MigrationInput) (*MigrationReport, error) {
	start := time.Now()
	report, err := u.next.Run(ctx, input)

	status := "success"
	if err != nil || (report != nil && report.Failed() > 0) {
		status = "error"
	}

	u.metrics.RecordOperation(ctx, "fieldcrypt", "migrate_fields", status)
	u.metrics.RecordDuration(ctx, "fieldcrypt", "migrate_fields", time.Since(start), status)

	if report != nil {
		for _, e := range report.Entities {
			u.fields.RecordDocuments(ctx, e.Entity, "migrate_fields", "scanned", e.Scanned)
			u.fields.RecordDocuments(ctx, e.Entity, "migrate_fields", "written", e.Written)
			u.fields.RecordDocuments(ctx, e.Entity, "migrate_fields", "failed", e.Failed)
		}
	}

	return report, err
}

// verificationUseCaseWithMetrics decorates VerificationUseCase with metrics instrumentation.
type verificationUseCaseWithMetrics struct {
	next    VerificationUseCase
	metrics metrics.BusinessMetrics
	fields  metrics.FieldMetrics
}

// NewVerificationUseCaseWithMetrics wraps a VerificationUseCase with metrics recording.
func NewVerificationUseCaseWithMetrics(
	useCase VerificationUseCase,
	m metrics.BusinessMetrics,
	f metrics.FieldMetrics,
) VerificationUseCase {
	return &verificationUseCaseWithMetrics{next: useCase, metrics: m, fields: f}
}

// Verify records metrics for verification passes. Unresolved findings count as an error.
func (u *verificationUseCaseWithMetrics) Verify(
	ctx context.Context,
	input VerificationInput,
) (*VerificationReport, error) {
	start := time.Now()
	report, err := u.next.Verify(ctx, input)

	status := "success"
	if err != nil || (report != nil && report.Unresolved() > 0) {
		status = "error"
	}

	u.metrics.RecordOperation(ctx, "fieldcrypt", "verify_fields", status)
	u.metrics.RecordDuration(ctx, "fieldcrypt", "verify_fields", time.Since(start), status)

	if report != nil {
		for _, e := range report.Entities {
			u.fields.RecordDocuments(ctx, e.Entity, "verify_fields", "scanned", e.Scanned)
			u.fields.RecordDocuments(ctx, e.Entity, "verify_fields", "fixed", e.Fixed)
			for category, n := range e.Issues {
				u.fields.RecordFindings(ctx, e.Entity, string(category), n)
			}
		}
	}

	return report, err
}
