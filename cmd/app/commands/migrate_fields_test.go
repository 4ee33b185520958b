package commands

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/allisson/piivault/internal/fieldcrypt/usecase"
	"github.com/allisson/piivault/internal/fieldcrypt/usecase/mocks"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestRunMigrateFields(t *testing.T) {
	ctx := context.Background()
	started := time.Date(2026, 1, 1, 10, 0, 0, 0, time.UTC)

	t.Run("text-output", func(t *testing.T) {
		mockUseCase := &mocks.MockMigrationUseCase{}
		mockUseCase.On("Run", ctx, usecase.MigrationInput{Entities: []string{"users"}}).
			Return(&usecase.MigrationReport{
				Entities: []usecase.EntityMigration{{
					Entity: "users", Scanned: 3, Changed: 2, Written: 2, IndexesSynced: true,
				}},
				StartedAt:  started,
				FinishedAt: started.Add(2 * time.Second),
			}, nil).
			Once()

		var out bytes.Buffer
		err := RunMigrateFields(ctx, mockUseCase, discardLogger(), &out, MigrateFieldsOptions{
			Entities: []string{" users ", ""},
			Format:   "text",
		})

		require.NoError(t, err)
		assert.Contains(t, out.String(), "users: scanned=3 changed=2 written=2 failed=0 indexes_synced=true")
		assert.Contains(t, out.String(), "Total: changed=2 failed=0 duration=2s")
		mockUseCase.AssertExpectations(t)
	})

	t.Run("json-dry-run", func(t *testing.T) {
		mockUseCase := &mocks.MockMigrationUseCase{}
		mockUseCase.On("Run", ctx, usecase.MigrationInput{DryRun: true, BatchSize: 50}).
			Return(&usecase.MigrationReport{
				DryRun:   true,
				Entities: []usecase.EntityMigration{{Entity: "users", Scanned: 5, Changed: 4}},
			}, nil).
			Once()

		var out bytes.Buffer
		err := RunMigrateFields(ctx, mockUseCase, discardLogger(), &out, MigrateFieldsOptions{
			DryRun:    true,
			BatchSize: 50,
			Format:    "json",
		})

		require.NoError(t, err)
		assert.Contains(t, out.String(), `"dry_run": true`)
		assert.Contains(t, out.String(), `"changed": 4`)
		mockUseCase.AssertExpectations(t)
	})

	t.Run("failed-documents", func(t *testing.T) {
		mockUseCase := &mocks.MockMigrationUseCase{}
		mockUseCase.On("Run", ctx, usecase.MigrationInput{}).
			Return(&usecase.MigrationReport{
				Entities: []usecase.EntityMigration{{
					Entity: "users", Scanned: 3, Failed: 1, FailedIDs: []string{"u2"},
				}},
			}, nil).
			Once()

		var out bytes.Buffer
		err := RunMigrateFields(ctx, mockUseCase, discardLogger(), &out, MigrateFieldsOptions{Format: "text"})

		require.ErrorIs(t, err, ErrMigrationIncomplete)
		assert.Contains(t, err.Error(), "1 document(s) failed")
		assert.Contains(t, out.String(), "failed ids: u2")
	})

	t.Run("use-case-error", func(t *testing.T) {
		mockUseCase := &mocks.MockMigrationUseCase{}
		mockUseCase.On("Run", ctx, usecase.MigrationInput{}).Return(nil, assert.AnError).Once()

		err := RunMigrateFields(ctx, mockUseCase, discardLogger(), &bytes.Buffer{}, MigrateFieldsOptions{
			Format: "text",
		})

		require.ErrorIs(t, err, assert.AnError)
	})

	t.Run("invalid-flags", func(t *testing.T) {
		mockUseCase := &mocks.MockMigrationUseCase{}

		err := RunMigrateFields(ctx, mockUseCase, discardLogger(), &bytes.Buffer{}, MigrateFieldsOptions{
			Format: "yaml",
		})
		assert.ErrorContains(t, err, "invalid format")

		err = RunMigrateFields(ctx, mockUseCase, discardLogger(), &bytes.Buffer{}, MigrateFieldsOptions{
			Format:    "text",
			BatchSize: -1,
		})
		assert.ErrorContains(t, err, "batch size")
		mockUseCase.AssertNotCalled(t, "Run")
	})
}
