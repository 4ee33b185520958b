package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/allisson/piivault/internal/database"
	apperrors "github.com/allisson/piivault/internal/errors"
	"github.com/allisson/piivault/internal/fieldcrypt/schema"
)

// MySQLDocumentRepository stores documents in a JSON column.
type MySQLDocumentRepository struct {
	db        *sql.DB
	txManager database.TxManager
}

// NewMySQLDocumentRepository creates a new MySQL document repository.
func NewMySQLDocumentRepository(db *sql.DB, txManager database.TxManager) *MySQLDocumentRepository {
	return &MySQLDocumentRepository{db: db, txManager: txManager}
}

// mysqlPathExpr is the string expression shared by lookups and unique indexes.
func mysqlPathExpr(parts []string) string {
	return fmt.Sprintf("CAST(JSON_UNQUOTE(JSON_EXTRACT(data, '$.%s')) AS CHAR(255))", strings.Join(parts, "."))
}

// Save inserts a new document or replaces a persisted one, then marks it persisted.
func (m *MySQLDocumentRepository) Save(ctx context.Context, collection string, doc *schema.Document) error {
	var err error
	if doc.IsNew() {
		err = m.Insert(ctx, collection, doc)
	} else {
		err = m.Replace(ctx, collection, doc)
	}
	if err != nil {
		return err
	}
	doc.MarkPersisted()
	return nil
}

// Insert creates a document. A unique index violation returns ErrDuplicateIndex.
func (m *MySQLDocumentRepository) Insert(ctx context.Context, collection string, doc *schema.Document) error {
	querier := database.GetTx(ctx, m.db)

	raw, err := doc.MarshalRaw()
	if err != nil {
		return apperrors.Wrap(err, "failed to encode document")
	}

	now := time.Now().UTC()
	query := `INSERT INTO documents (collection, id, data, created_at, updated_at) 
			  VALUES (?, ?, ?, ?, ?)`

	if _, err := querier.ExecContext(ctx, query, collection, doc.ID, string(raw), now, now); err != nil {
		if isMySQLUniqueViolation(err) {
			return ErrDuplicateIndex
		}
		return apperrors.Wrap(err, "failed to insert document")
	}

	doc.CreatedAt = now
	doc.UpdatedAt = now
	return nil
}

// Replace overwrites the stored data of an existing document.
func (m *MySQLDocumentRepository) Replace(ctx context.Context, collection string, doc *schema.Document) error {
	querier := database.GetTx(ctx, m.db)

	raw, err := doc.MarshalRaw()
	if err != nil {
		return apperrors.Wrap(err, "failed to encode document")
	}

	now := time.Now().UTC()
	query := `UPDATE documents SET data = ?, updated_at = ? 
			  WHERE collection = ? AND id = ?`

	result, err := querier.ExecContext(ctx, query, string(raw), now, collection, doc.ID)
	if err != nil {
		if isMySQLUniqueViolation(err) {
			return ErrDuplicateIndex
		}
		return apperrors.Wrap(err, "failed to replace document")
	}

	// MySQL reports changed rows, not matched rows, so zero may still mean "exists".
	if err := requireAffected(result); err != nil {
		if !errors.Is(err, ErrDocumentNotFound) {
			return err
		}
		if _, getErr := m.Get(ctx, collection, doc.ID); getErr != nil {
			return getErr
		}
	}

	doc.UpdatedAt = now
	return nil
}

// Get retrieves a document by id.
func (m *MySQLDocumentRepository) Get(ctx context.Context, collection, id string) (*schema.Document, error) {
	return m.get(ctx, collection, id, "")
}

func (m *MySQLDocumentRepository) get(ctx context.Context, collection, id, lock string) (*schema.Document, error) {
	querier := database.GetTx(ctx, m.db)

	query := `SELECT id, data, created_at, updated_at 
			  FROM documents WHERE collection = ? AND id = ?` + lock

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
func (m *MySQLDocumentRepository) FindOneByAny(
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
	querier := database.GetTx(ctx, m.db)

	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(values)), ", ")
	query := fmt.Sprintf(`SELECT id, data, created_at, updated_at 
			  FROM documents 
			  WHERE collection = ? AND %s IN (%s) 
			  ORDER BY id 
			  LIMIT 1`, mysqlPathExpr(parts), placeholders)

	args := make([]any, 0, len(values)+1)
	args = append(args, collection)
	for _, v := range values {
		args = append(args, v)
	}

	doc, err := scanDocument(querier.QueryRowContext(ctx, query, args...))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrDocumentNotFound
		}
		return nil, apperrors.Wrap(err, "failed to find document")
	}
	return doc, nil
}

// Apply performs a prepared partial update under a row lock.
func (m *MySQLDocumentRepository) Apply(
	ctx context.Context,
	collection, id string,
	mutation schema.Mutation,
) error {
	if mutation.IsEmpty() {
		return nil
	}
	return m.txManager.WithTx(ctx, func(ctx context.Context) error {
		doc, err := m.get(ctx, collection, id, " FOR UPDATE")
		if err != nil {
			return err
		}
		if err := mutation.Apply(doc); err != nil {
			return err
		}
		return m.Replace(ctx, collection, doc)
	})
}

// Scan returns up to limit documents with id greater than afterID, ordered by id.
func (m *MySQLDocumentRepository) Scan(
	ctx context.Context,
	collection, afterID string,
	limit int,
) ([]*schema.Document, error) {
	querier := database.GetTx(ctx, m.db)

	query := `SELECT id, data, created_at, updated_at 
			  FROM documents 
			  WHERE collection = ? AND id > ? 
			  ORDER BY id 
			  LIMIT ?`

	rows, err := querier.QueryContext(ctx, query, collection, afterID, limit)
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to scan documents")
	}
	return collectDocuments(rows)
}

// SyncIndexes ensures a unique functional index on (collection, path) for each path.
// Rows without the path extract NULL, which MySQL unique indexes do not compare.
func (m *MySQLDocumentRepository) SyncIndexes(ctx context.Context, collection string, paths []string) error {
	if err := validateCollection(collection); err != nil {
		return err
	}
	querier := database.GetTx(ctx, m.db)

	for _, path := range paths {
		parts, err := pathSegments(path)
		if err != nil {
			return err
		}
		name := uniqueIndexName(collection, parts)

		var count int
		err = querier.QueryRowContext(ctx,
			`SELECT COUNT(*) FROM information_schema.statistics 
			 WHERE table_schema = DATABASE() AND table_name = 'documents' AND index_name = ?`,
			name,
		).Scan(&count)
		if err != nil {
			return apperrors.Wrap(err, "failed to inspect indexes")
		}
		if count > 0 {
			continue
		}

		query := fmt.Sprintf(
			"CREATE UNIQUE INDEX %s ON documents (collection, (%s))",
			name, mysqlPathExpr(parts),
		)
		if _, err := querier.ExecContext(ctx, query); err != nil {
			if isMySQLUniqueViolation(err) {
				return fmt.Errorf("%w: %s.%s", ErrDuplicateIndex, collection, path)
			}
			return apperrors.Wrap(err, "failed to sync index")
		}
	}
	return nil
}
