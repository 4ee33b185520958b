package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/allisson/piivault/internal/fieldcrypt/schema"
)

const (
	defaultBatchSize   = 500
	defaultConcurrency = 2
	maxSampleIDs       = 10
)

// MigrationInput selects what a migration pass covers.
type MigrationInput struct {
	// Entities limits the pass to these entity names; empty means every registered entity.
	Entities []string
	// DryRun transforms documents in memory and counts changes without writing.
	DryRun bool
	// BatchSize overrides the configured cursor batch size when positive.
	BatchSize int
}

// EntityMigration summarizes one entity.
type EntityMigration struct {
	Entity        string   `json:"entity"`
	Scanned       int      `json:"scanned"`
	Changed       int      `json:"changed"`
	Written       int      `json:"written"`
	Failed        int      `json:"failed"`
	FailedIDs     []string `json:"failed_ids,omitempty"`
	IndexesSynced bool     `json:"indexes_synced"`
}

// MigrationReport is the machine-readable outcome of a migration pass.
type MigrationReport struct {
	DryRun     bool              `json:"dry_run"`
	Entities   []EntityMigration `json:"entities"`
	StartedAt  time.Time         `json:"started_at"`
	FinishedAt time.Time         `json:"finished_at"`
}

// Failed returns the number of documents that could not be migrated.
func (r *MigrationReport) Failed() int {
	total := 0
	for _, e := range r.Entities {
		total += e.Failed
	}
	return total
}

// Changed returns the number of documents that needed a rewrite.
func (r *MigrationReport) Changed() int {
	total := 0
	for _, e := range r.Entities {
		total += e.Changed
	}
	return total
}

// migrationUseCase implements MigrationUseCase.
type migrationUseCase struct {
	bindings    BindingSource
	repo        DocumentRepository
	batchSize   int
	concurrency int
	logger      *slog.Logger
}

// NewMigrationUseCase creates a MigrationUseCase. Entities are processed concurrently,
// at most concurrency at a time.
func NewMigrationUseCase(
	bindings BindingSource,
	repo DocumentRepository,
	batchSize, concurrency int,
	logger *slog.Logger,
) MigrationUseCase {
	if batchSize <= 0 {
		batchSize = defaultBatchSize
	}
	if concurrency <= 0 {
		concurrency = defaultConcurrency
	}
	return &migrationUseCase{
		bindings:    bindings,
		repo:        repo,
		batchSize:   batchSize,
		concurrency: concurrency,
		logger:      logger,
	}
}

// Run force-rewrites every document of the selected entities and persists only the
// ones that changed. A real run syncs the unique hash indexes of each entity afterwards.
// Per-document failures are counted in the report; storage failures abort the run.
func (m *migrationUseCase) Run(ctx context.Context, input MigrationInput) (*MigrationReport, error) {
	bindings, err := m.bindings.Select(input.Entities)
	if err != nil {
		return nil, err
	}

	batchSize := m.batchSize
	if input.BatchSize > 0 {
		batchSize = input.BatchSize
	}

	report := &MigrationReport{
		DryRun:    input.DryRun,
		Entities:  make([]EntityMigration, len(bindings)),
		StartedAt: time.Now().UTC(),
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(m.concurrency)
	for i, binding := range bindings {
		g.Go(func() error {
			result, err := m.migrateEntity(gctx, binding, input.DryRun, batchSize)
			report.Entities[i] = result
			return err
		})
	}
	err = g.Wait()
	report.FinishedAt = time.Now().UTC()

	return report, err
}

func (m *migrationUseCase) migrateEntity(
	ctx context.Context,
	binding *schema.Binding,
	dryRun bool,
	batchSize int,
) (EntityMigration, error) {
	name := binding.Name()
	result := EntityMigration{Entity: name}
	logger := m.logger.With(slog.String("entity", name), slog.Bool("dry_run", dryRun))
	logger.Info("field migration started")

	c := newCursor(m.repo, name, batchSize, 0)
	for c.Next(ctx) {
		doc := c.Document()
		result.Scanned++

		changed, err := binding.ForceRewrite(doc)
		if err != nil {
			m.recordFailure(logger, &result, doc.ID, err)
			continue
		}
		if !changed {
			continue
		}
		result.Changed++
		if dryRun {
			continue
		}

		if err := m.repo.Replace(ctx, name, doc); err != nil {
			if ctx.Err() != nil {
				return result, ctx.Err()
			}
			m.recordFailure(logger, &result, doc.ID, err)
			continue
		}
		doc.MarkPersisted()
		result.Written++
	}
	if err := c.Err(); err != nil {
		return result, fmt.Errorf("failed to scan %s: %w", name, err)
	}

	if !dryRun {
		if err := m.repo.SyncIndexes(ctx, name, binding.UniqueIndexPaths()); err != nil {
			return result, fmt.Errorf("failed to sync %s indexes: %w", name, err)
		}
		result.IndexesSynced = true
	}

	logger.Info("field migration finished",
		slog.Int("scanned", result.Scanned),
		slog.Int("changed", result.Changed),
		slog.Int("written", result.Written),
		slog.Int("failed", result.Failed),
	)
	return result, nil
}

func (m *migrationUseCase) recordFailure(logger *slog.Logger, result *EntityMigration, id string, err error) {
	result.Failed++
	if len(result.FailedIDs) < maxSampleIDs {
		result.FailedIDs = append(result.FailedIDs, id)
	}
	logger.Warn("document migration failed", slog.String("id", id), slog.Any("error", err))
}
