package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/allisson/piivault/internal/fieldcrypt/usecase"
)

// ErrMigrationIncomplete is returned when a migration pass left failed documents behind.
var ErrMigrationIncomplete = errors.New("field migration incomplete")

// MigrateFieldsOptions are the migrate-fields flags.
type MigrateFieldsOptions struct {
	Entities  []string
	DryRun    bool
	BatchSize int
	Format    string
}

// RunMigrateFields rewrites stored documents so every encrypted field is ciphertext
// under the primary key and every blind index matches it. Running it twice is safe:
// the second pass finds nothing to change.
func RunMigrateFields(
	ctx context.Context,
	migrationUseCase usecase.MigrationUseCase,
	logger *slog.Logger,
	writer io.Writer,
	opts MigrateFieldsOptions,
) error {
	if err := validateFormat(opts.Format); err != nil {
		return err
	}
	if opts.BatchSize < 0 {
		return fmt.Errorf("batch size must not be negative, got: %d", opts.BatchSize)
	}

	entities := cleanEntities(opts.Entities)
	logger.Info("migrating encrypted fields",
		slog.Any("entities", entities),
		slog.Bool("dry_run", opts.DryRun),
	)

	report, err := migrationUseCase.Run(ctx, usecase.MigrationInput{
		Entities:  entities,
		DryRun:    opts.DryRun,
		BatchSize: opts.BatchSize,
	})
	if err != nil {
		return fmt.Errorf("failed to migrate fields: %w", err)
	}

	if opts.Format == "json" {
		if err := writeJSON(writer, report); err != nil {
			return err
		}
	} else {
		outputMigrateText(writer, report)
	}

	if failed := report.Failed(); failed > 0 {
		return fmt.Errorf("%w: %d document(s) failed", ErrMigrationIncomplete, failed)
	}
	return nil
}

func outputMigrateText(writer io.Writer, report *usecase.MigrationReport) {
	if report.DryRun {
		_, _ = fmt.Fprintln(writer, "Field migration (dry run, nothing written)")
	} else {
		_, _ = fmt.Fprintln(writer, "Field migration")
	}

	for _, e := range report.Entities {
		_, _ = fmt.Fprintf(writer, "  %s: scanned=%d changed=%d written=%d failed=%d indexes_synced=%t\n",
			e.Entity, e.Scanned, e.Changed, e.Written, e.Failed, e.IndexesSynced)
		if len(e.FailedIDs) > 0 {
			_, _ = fmt.Fprintf(writer, "    failed ids: %s\n", strings.Join(e.FailedIDs, ", "))
		}
	}

	_, _ = fmt.Fprintf(writer, "Total: changed=%d failed=%d duration=%s\n",
		report.Changed(), report.Failed(), report.FinishedAt.Sub(report.StartedAt))
}
