// Package repository stores users as encrypted documents.
//
// Contact and identity fields are encrypted at rest; lookups go through blind indexes
// computed under every configured key so rows written before a rotation stay reachable.
package repository

import (
	"context"
	"log/slog"

	apperrors "github.com/allisson/piivault/internal/errors"
	"github.com/allisson/piivault/internal/fieldcrypt/schema"
	"github.com/allisson/piivault/internal/user/domain"
)

// DocumentStore is the storage surface the user repository needs.
type DocumentStore interface {
	Save(ctx context.Context, collection string, doc *schema.Document) error
	Get(ctx context.Context, collection, id string) (*schema.Document, error)
	FindOneByAny(ctx context.Context, collection, path string, values []string) (*schema.Document, error)
	Apply(ctx context.Context, collection, id string, mutation schema.Mutation) error
}

// UserRepository persists users through a DocumentStore and the users binding.
type UserRepository struct {
	store   DocumentStore
	binding *schema.Binding
	indexer schema.Indexer
	logger  *slog.Logger
}

// NewUserRepository creates a UserRepository. binding must be the users binding
// returned by Register.
func NewUserRepository(
	store DocumentStore,
	binding *schema.Binding,
	indexer schema.Indexer,
	logger *slog.Logger,
) *UserRepository {
	return &UserRepository{
		store:   store,
		binding: binding,
		indexer: indexer,
		logger:  logger,
	}
}

// Create stores a new user. The generated id and timestamps are written back to user.
func (r *UserRepository) Create(ctx context.Context, user *domain.User) error {
	doc, err := schema.NewDocumentFrom(user.ID, toDocument(user))
	if err != nil {
		return apperrors.Wrap(err, "failed to encode user")
	}
	if err := r.binding.PrepareSave(doc); err != nil {
		return apperrors.Wrap(err, "failed to prepare user")
	}
	if err := r.store.Save(ctx, domain.Collection, doc); err != nil {
		if apperrors.Is(err, apperrors.ErrConflict) {
			return domain.ErrUserAlreadyExists
		}
		return apperrors.Wrap(err, "failed to create user")
	}

	user.ID = doc.ID
	user.CreatedAt = doc.CreatedAt
	user.UpdatedAt = doc.UpdatedAt
	return nil
}

// GetByID retrieves a user by id.
func (r *UserRepository) GetByID(ctx context.Context, id string) (*domain.User, error) {
	doc, err := r.store.Get(ctx, domain.Collection, id)
	if err != nil {
		if apperrors.Is(err, apperrors.ErrNotFound) {
			return nil, domain.ErrUserNotFound
		}
		return nil, apperrors.Wrap(err, "failed to get user by id")
	}
	return r.decode(doc)
}

// GetByEmail looks a user up by email through its blind index variants. Without a
// configured key the stored email is plaintext and is matched directly. A stale hash
// on the found document is repaired on a best-effort basis.
func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	path := pathEmail
	values := []string{email}
	if h, ok := r.binding.HashSpecFor(pathEmail); ok {
		if variants := r.indexer.Variants(email, h.Normalize); len(variants) > 0 {
			path = h.Target
			values = variants
		}
	}

	doc, err := r.store.FindOneByAny(ctx, domain.Collection, path, values)
	if err != nil {
		if apperrors.Is(err, apperrors.ErrNotFound) {
			return nil, domain.ErrUserNotFound
		}
		return nil, apperrors.Wrap(err, "failed to get user by email")
	}

	r.repairHashes(ctx, doc)
	return r.decode(doc)
}

// repairHashes rewrites stale hash fields of doc. Failures are logged and ignored.
func (r *UserRepository) repairHashes(ctx context.Context, doc *schema.Document) {
	mutation := r.binding.StaleHashes(doc)
	if mutation.IsEmpty() {
		return
	}
	if err := r.store.Apply(ctx, domain.Collection, doc.ID, mutation); err != nil {
		r.logger.Warn("user hash repair failed", slog.String("id", doc.ID), slog.Any("error", err))
		return
	}
	_ = mutation.Apply(doc)
	r.logger.Debug("user hashes repaired", slog.String("id", doc.ID))
}

// UpdateContact applies a partial contact update. Encryption and hash maintenance
// happen in the mutation builder, so no field is ever written in plaintext.
func (r *UserRepository) UpdateContact(ctx context.Context, id string, update domain.ContactUpdate) error {
	builder := r.binding.Update()
	if update.Email != nil {
		builder.Set(pathEmail, *update.Email)
	}
	if update.Phone != nil {
		if *update.Phone == "" {
			builder.Unset(pathPhone)
		} else {
			builder.Set(pathPhone, *update.Phone)
		}
	}
	if update.RecoveryEmails != nil {
		builder.SetStrings(pathRecoveryEmails, *update.RecoveryEmails)
	}
	if update.Address != nil {
		if *update.Address == "" {
			builder.Unset(pathAddress)
		} else {
			builder.Set(pathAddress, *update.Address)
		}
	}

	mutation, err := builder.Build()
	if err != nil {
		return apperrors.Wrap(err, "failed to build contact update")
	}
	if err := r.store.Apply(ctx, domain.Collection, id, mutation); err != nil {
		switch {
		case apperrors.Is(err, apperrors.ErrNotFound):
			return domain.ErrUserNotFound
		case apperrors.Is(err, apperrors.ErrConflict):
			return domain.ErrUserAlreadyExists
		}
		return apperrors.Wrap(err, "failed to update user contact")
	}
	return nil
}

func (r *UserRepository) decode(doc *schema.Document) (*domain.User, error) {
	var d userDocument
	if err := r.binding.Decode(doc, &d); err != nil {
		return nil, err
	}
	user := fromDocument(doc.ID, d)
	user.CreatedAt = doc.CreatedAt
	user.UpdatedAt = doc.UpdatedAt
	return user, nil
}
