package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/lib/pq"

	"github.com/allisson/piivault/internal/database"
	apperrors "github.com/allisson/piivault/internal/errors"
	"github.com/allisson/piivault/internal/fieldcrypt/schema"
)

// PostgreSQLDocumentRepository stores documents as JSONB.
type PostgreSQLDocumentRepository struct {
	db        *sql.DB
	txManager database.TxManager
}

// NewPostgreSQLDocumentRepository creates a new PostgreSQL document repository.
func NewPostgreSQLDocumentRepository(db *sql.DB, txManager database.TxManager) *PostgreSQLDocumentRepository {
	return &PostgreSQLDocumentRepository{db: db, txManager: txManager}
}

// Save inserts a new document or replaces a persisted one, then marks it persisted.
func (p *PostgreSQLDocumentRepository) Save(ctx context.Context, collection string, doc *schema.Document) error {
	var err error
	if doc.IsNew() {
		err = p.Insert(ctx, collection, doc)
	} else {
		err = p.Replace(ctx, collection, doc)
	}
	if err != nil {
		return err
	}
	doc.MarkPersisted()
	return nil
}

// Insert creates a document. A unique index violation returns ErrDuplicateIndex.
func (p *PostgreSQLDocumentRepository) Insert(ctx context.Context, collection string, doc *schema.Document) error {
	querier := database.GetTx(ctx, p.db)

	raw, err := doc.MarshalRaw()
	if err != nil {
		return apperrors.Wrap(err, "failed to encode document")
	}

	now := time.Now().UTC()
	query := `INSERT INTO documents (collection, id, data, created_at, updated_at) 
			  VALUES ($1, $2, $3::jsonb, $4, $5)`

	if _, err := querier.ExecContext(ctx, query, collection, doc.ID, string(raw), now, now); err != nil {
		if isPostgreSQLUniqueViolation(err) {
			return ErrDuplicateIndex
		}
		return apperrors.Wrap(err, "failed to insert document")
	}

	doc.CreatedAt = now
	doc.UpdatedAt = now
	return nil
}

// Replace overwrites the stored data of an existing document.
func (p *PostgreSQLDocumentRepository) Replace(ctx context.Context, collection string, doc *schema.Document) error {
	querier := database.GetTx(ctx, p.db)

	raw, err := doc.MarshalRaw()
	if err != nil {
		return apperrors.Wrap(err, "failed to encode document")
	}

	now := time.Now().UTC()
	query := `UPDATE documents SET data = $1::jsonb, updated_at = $2 
			  WHERE collection = $3 AND id = $4`

	result, err := querier.ExecContext(ctx, query, string(raw), now, collection, doc.ID)
	if err != nil {
		if isPostgreSQLUniqueViolation(err) {
			return ErrDuplicateIndex
		}
		return apperrors.Wrap(err, "failed to replace document")
	}
	if err := requireAffected(result); err != nil {
		return err
	}

	doc.UpdatedAt = now
	return nil
}

// Get retrieves a document by id.
func (p *PostgreSQLDocumentRepository) Get(ctx context.Context, collection, id string) (*schema.Document, error) {
	return p.get(ctx, collection, id, "")
}

func (p *PostgreSQLDocumentRepository) get(ctx context.Context, collection, id, lock string) (*schema.Document, error) {
	querier := database.GetTx(ctx, p.db)

	query := `SELECT id, data, created_at, updated_at 
			  FROM documents WHERE collection = $1 AND id = $2` + lock

	doc, err := scanDocument(querier.QueryRowContext(ctx, query, collection, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrDocumentNotFound
		}
		return nil, apperrors.Wrap(err, "failed to get document")
	}
	return doc, nil
}

// FindOneByAny returns the first document whose string value at path equals any of values.
func (p *PostgreSQLDocumentRepository) FindOneByAny(
	ctx context.Context,
	collection, path string,
	values []string,
) (*schema.Document, error) {
	if len(values) == 0 {
		return nil, ErrDocumentNotFound
	}
	parts, err := pathSegments(path)
	if err != nil {
		return nil, err
	}
	querier := database.GetTx(ctx, p.db)

	// The path literal matches the unique index expression so the planner can use it.
	query := fmt.Sprintf(`SELECT id, data, created_at, updated_at 
			  FROM documents 
			  WHERE collection = $1 AND data #>> '{%s}' = ANY($2::text[]) 
			  ORDER BY id 
			  LIMIT 1`, strings.Join(parts, ","))

	doc, err := scanDocument(querier.QueryRowContext(ctx, query, collection, pq.Array(values)))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrDocumentNotFound
		}
		return nil, apperrors.Wrap(err, "failed to find document")
	}
	return doc, nil
}

// Apply performs a prepared partial update under a row lock.
func (p *PostgreSQLDocumentRepository) Apply(
	ctx context.Context,
	collection, id string,
	mutation schema.Mutation,
) error {
	if mutation.IsEmpty() {
		return nil
	}
	return p.txManager.WithTx(ctx, func(ctx context.Context) error {
		doc, err := p.get(ctx, collection, id, " FOR UPDATE")
		if err != nil {
			return err
		}
		if err := mutation.Apply(doc); err != nil {
			return err
		}
		return p.Replace(ctx, collection, doc)
	})
}

// Scan returns up to limit documents with id greater than afterID, ordered by id.
func (p *PostgreSQLDocumentRepository) Scan(
	ctx context.Context,
	collection, afterID string,
	limit int,
) ([]*schema.Document, error) {
	querier := database.GetTx(ctx, p.db)

	query := `SELECT id, data, created_at, updated_at 
			  FROM documents 
			  WHERE collection = $1 AND id > $2 
			  ORDER BY id 
			  LIMIT $3`

	rows, err := querier.QueryContext(ctx, query, collection, afterID, limit)
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to scan documents")
	}
	return collectDocuments(rows)
}

// SyncIndexes ensures a unique sparse expression index on each path for the collection.
func (p *PostgreSQLDocumentRepository) SyncIndexes(ctx context.Context, collection string, paths []string) error {
	if err := validateCollection(collection); err != nil {
		return err
	}
	querier := database.GetTx(ctx, p.db)

	for _, path := range paths {
		parts, err := pathSegments(path)
		if err != nil {
			return err
		}
		expr := fmt.Sprintf("(data #>> '{%s}')", strings.Join(parts, ","))
		query := fmt.Sprintf(
			`CREATE UNIQUE INDEX IF NOT EXISTS %s ON documents (%s) WHERE collection = '%s' AND %s IS NOT NULL`,
			uniqueIndexName(collection, parts), expr, collection, expr,
		)
		if _, err := querier.ExecContext(ctx, query); err != nil {
			if isPostgreSQLUniqueViolation(err) {
				return fmt.Errorf("%w: %s.%s", ErrDuplicateIndex, collection, path)
			}
			return apperrors.Wrap(err, "failed to sync index")
		}
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanDocument(row rowScanner) (*schema.Document, error) {
	var (
		id                   string
		raw                  []byte
		createdAt, updatedAt time.Time
	)
	if err := row.Scan(&id, &raw, &createdAt, &updatedAt); err != nil {
		return nil, err
	}
	data, err := schema.DecodeRaw(raw)
	if err != nil {
		return nil, fmt.Errorf("failed to decode document %s: %w", id, err)
	}
	return schema.LoadDocument(id, data, createdAt, updatedAt), nil
}

func collectDocuments(rows *sql.Rows) ([]*schema.Document, error) {
	defer func() {
		_ = rows.Close()
	}()

	var docs []*schema.Document
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, apperrors.Wrap(err, "failed to scan document")
		}
		docs = append(docs, doc)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.Wrap(err, "failed to iterate documents")
	}
	return docs, nil
}

func requireAffected(result sql.Result) error {
	n, err := result.RowsAffected()
	if err != nil {
		return apperrors.Wrap(err, "failed to read affected rows")
	}
	if n == 0 {
		return ErrDocumentNotFound
	}
	return nil
}
