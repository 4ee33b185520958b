package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/allisson/piivault/internal/fieldcrypt/schema"
)

// VerificationInput selects what a verification pass covers.
type VerificationInput struct {
	// Entities limits the pass to these entity names; empty means every registered entity.
	Entities []string
	// Limit caps the number of documents scanned per entity; zero scans everything.
	Limit int
	// Fix rewrites stale hash fields. Ciphertext is never modified.
	Fix bool
	// BatchSize overrides the configured cursor batch size when positive.
	BatchSize int
}

// EntityVerification summarizes one entity.
type EntityVerification struct {
	Entity    string                  `json:"entity"`
	Scanned   int                     `json:"scanned"`
	Issues    map[schema.Category]int `json:"issues"`
	Fixed     int                     `json:"fixed"`
	FixFailed int                     `json:"fix_failed"`
	SampleIDs []string                `json:"sample_ids,omitempty"`
}

// TotalIssues returns the number of findings across categories.
func (e EntityVerification) TotalIssues() int {
	total := 0
	for _, n := range e.Issues {
		total += n
	}
	return total
}

// Unresolved returns the findings left after fixes.
func (e EntityVerification) Unresolved() int {
	return e.TotalIssues() - e.Fixed
}

// VerificationReport is the machine-readable outcome of a verification pass.
type VerificationReport struct {
	Fix        bool                 `json:"fix"`
	Limit      int                  `json:"limit"`
	Entities   []EntityVerification `json:"entities"`
	StartedAt  time.Time            `json:"started_at"`
	FinishedAt time.Time            `json:"finished_at"`
}

// TotalIssues returns the number of findings across entities.
func (r *VerificationReport) TotalIssues() int {
	total := 0
	for _, e := range r.Entities {
		total += e.TotalIssues()
	}
	return total
}

// Unresolved returns the findings left after fixes across entities.
// A non-zero value means the stored data is not compliant.
func (r *VerificationReport) Unresolved() int {
	total := 0
	for _, e := range r.Entities {
		total += e.Unresolved()
	}
	return total
}

// verificationUseCase implements VerificationUseCase.
type verificationUseCase struct {
	bindings    BindingSource
	repo        DocumentRepository
	batchSize   int
	concurrency int
	logger      *slog.Logger
}

// NewVerificationUseCase creates a VerificationUseCase.
func NewVerificationUseCase(
	bindings BindingSource,
	repo DocumentRepository,
	batchSize, concurrency int,
	logger *slog.Logger,
) VerificationUseCase {
	if batchSize <= 0 {
		batchSize = defaultBatchSize
	}
	if concurrency <= 0 {
		concurrency = defaultConcurrency
	}
	return &verificationUseCase{
		bindings:    bindings,
		repo:        repo,
		batchSize:   batchSize,
		concurrency: concurrency,
		logger:      logger,
	}
}

// Verify scans the selected entities for plaintext at rest, ciphertext outside the
// primary key and hash drift. With Fix set, stale hashes are corrected through a
// hash-only partial update.
func (v *verificationUseCase) Verify(ctx context.Context, input VerificationInput) (*VerificationReport, error) {
	bindings, err := v.bindings.Select(input.Entities)
	if err != nil {
		return nil, err
	}

	batchSize := v.batchSize
	if input.BatchSize > 0 {
		batchSize = input.BatchSize
	}

	report := &VerificationReport{
		Fix:       input.Fix,
		Limit:     input.Limit,
		Entities:  make([]EntityVerification, len(bindings)),
		StartedAt: time.Now().UTC(),
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(v.concurrency)
	for i, binding := range bindings {
		g.Go(func() error {
			result, err := v.verifyEntity(gctx, binding, input, batchSize)
			report.Entities[i] = result
			return err
		})
	}
	err = g.Wait()
	report.FinishedAt = time.Now().UTC()

	return report, err
}

func (v *verificationUseCase) verifyEntity(
	ctx context.Context,
	binding *schema.Binding,
	input VerificationInput,
	batchSize int,
) (EntityVerification, error) {
	name := binding.Name()
	result := EntityVerification{Entity: name, Issues: make(map[schema.Category]int, len(schema.Categories))}
	for _, c := range schema.Categories {
		result.Issues[c] = 0
	}
	logger := v.logger.With(slog.String("entity", name))

	c := newCursor(v.repo, name, batchSize, input.Limit)
	for c.Next(ctx) {
		doc := c.Document()
		result.Scanned++

		findings := binding.Inspect(doc)
		if len(findings) == 0 {
			continue
		}
		for _, f := range findings {
			result.Issues[f.Category]++
		}
		if len(result.SampleIDs) < maxSampleIDs {
			result.SampleIDs = append(result.SampleIDs, doc.ID)
		}

		if !input.Fix {
			continue
		}
		mutation := binding.StaleHashes(doc)
		if mutation.IsEmpty() {
			continue
		}
		if err := v.repo.Apply(ctx, name, doc.ID, mutation); err != nil {
			if ctx.Err() != nil {
				return result, ctx.Err()
			}
			result.FixFailed++
			logger.Warn("hash repair failed", slog.String("id", doc.ID), slog.Any("error", err))
			continue
		}
		result.Fixed += len(mutation.Set) + len(mutation.Unset)
	}
	if err := c.Err(); err != nil {
		return result, fmt.Errorf("failed to scan %s: %w", name, err)
	}

	logger.Info("field verification finished",
		slog.Int("scanned", result.Scanned),
		slog.Int("issues", result.TotalIssues()),
		slog.Int("fixed", result.Fixed),
	)
	return result, nil
}
