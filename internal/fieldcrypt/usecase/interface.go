// Package usecase implements the offline field encryption batch operations: the
// migration pass that upgrades stored documents to the current key state, and the
// verification pass that reports (and optionally repairs) drift.
package usecase

import (
	"context"

	"github.com/allisson/piivault/internal/fieldcrypt/schema"
)

// DocumentRepository is the storage surface the batch operations need.
type DocumentRepository interface {
	// Scan returns up to limit documents with id greater than afterID, ordered by id.
	Scan(ctx context.Context, collection, afterID string, limit int) ([]*schema.Document, error)
	Replace(ctx context.Context, collection string, doc *schema.Document) error
	Apply(ctx context.Context, collection, id string, mutation schema.Mutation) error
	SyncIndexes(ctx context.Context, collection string, paths []string) error
}

// BindingSource resolves entity names to registered bindings. *schema.Registry implements it.
type BindingSource interface {
	Select(names []string) ([]*schema.Binding, error)
}

// MigrationUseCase rewrites stored documents so every encrypted field is ciphertext
// under the primary key and every hash matches it.
type MigrationUseCase interface {
	Run(ctx context.Context, input MigrationInput) (*MigrationReport, error)
}

// VerificationUseCase audits stored documents without touching ciphertext.
type VerificationUseCase interface {
	Verify(ctx context.Context, input VerificationInput) (*VerificationReport, error)
}
