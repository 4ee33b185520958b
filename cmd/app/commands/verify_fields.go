package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"slices"
	"strings"

	"github.com/allisson/piivault/internal/fieldcrypt/schema"
	"github.com/allisson/piivault/internal/fieldcrypt/usecase"
)

// ErrVerificationFailed is returned when stored data still has unresolved findings.
var ErrVerificationFailed = errors.New("field verification failed")

// VerifyFieldsOptions are the verify-fields flags.
type VerifyFieldsOptions struct {
	Entities  []string
	Limit     int
	Fix       bool
	BatchSize int
	Format    string
}

// RunVerifyFields audits stored documents for plaintext at rest, stale blind indexes,
// legacy-key ciphertext and undecryptable values. With Fix, stale hashes are rewritten;
// ciphertext is never touched (use migrate-fields for that).
func RunVerifyFields(
	ctx context.Context,
	verificationUseCase usecase.VerificationUseCase,
	logger *slog.Logger,
	writer io.Writer,
	opts VerifyFieldsOptions,
) error {
	if err := validateFormat(opts.Format); err != nil {
		return err
	}
	if opts.Limit < 0 {
		return fmt.Errorf("limit must not be negative, got: %d", opts.Limit)
	}
	if opts.BatchSize < 0 {
		return fmt.Errorf("batch size must not be negative, got: %d", opts.BatchSize)
	}

	entities := cleanEntities(opts.Entities)
	logger.Info("verifying encrypted fields",
		slog.Any("entities", entities),
		slog.Int("limit", opts.Limit),
		slog.Bool("fix", opts.Fix),
	)

	report, err := verificationUseCase.Verify(ctx, usecase.VerificationInput{
		Entities:  entities,
		Limit:     opts.Limit,
		Fix:       opts.Fix,
		BatchSize: opts.BatchSize,
	})
	if err != nil {
		return fmt.Errorf("failed to verify fields: %w", err)
	}

	if opts.Format == "json" {
		if err := writeJSON(writer, report); err != nil {
			return err
		}
	} else {
		outputVerifyText(writer, report)
	}

	if unresolved := report.Unresolved(); unresolved > 0 {
		return fmt.Errorf("%w: %d unresolved finding(s)", ErrVerificationFailed, unresolved)
	}
	return nil
}

func outputVerifyText(writer io.Writer, report *usecase.VerificationReport) {
	_, _ = fmt.Fprintln(writer, "Field verification")

	for _, e := range report.Entities {
		_, _ = fmt.Fprintf(writer, "  %s: scanned=%d issues=%d fixed=%d fix_failed=%d\n",
			e.Entity, e.Scanned, e.TotalIssues(), e.Fixed, e.FixFailed)

		categories := make([]string, 0, len(e.Issues))
		for category := range e.Issues {
			categories = append(categories, string(category))
		}
		slices.Sort(categories)
		for _, category := range categories {
			_, _ = fmt.Fprintf(writer, "    %s: %d\n", category, e.Issues[schema.Category(category)])
		}
		if len(e.SampleIDs) > 0 {
			_, _ = fmt.Fprintf(writer, "    sample ids: %s\n", strings.Join(e.SampleIDs, ", "))
		}
	}

	if report.Unresolved() == 0 {
		_, _ = fmt.Fprintln(writer, "Result: compliant")
		return
	}
	_, _ = fmt.Fprintf(writer, "Result: %d unresolved finding(s)\n", report.Unresolved())
}
