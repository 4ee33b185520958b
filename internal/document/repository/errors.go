// Package repository persists schema documents in a single documents table, for
// PostgreSQL (JSONB) and MySQL (JSON).
//
// Each registered entity is a collection. Hash targets get a unique sparse expression
// index per collection so duplicate plaintexts are rejected by the storage engine.
package repository

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/go-sql-driver/mysql"
	"github.com/lib/pq"

	apperrors "github.com/allisson/piivault/internal/errors"
)

var (
	// ErrDocumentNotFound indicates no document exists for the collection and id.
	ErrDocumentNotFound = apperrors.Wrap(apperrors.ErrNotFound, "document not found")

	// ErrDuplicateIndex indicates a unique index (usually a blind index) rejected the write.
	ErrDuplicateIndex = apperrors.Wrap(apperrors.ErrConflict, "duplicate value for unique index")

	// ErrInvalidIdentifier indicates a collection name or field path unsafe for DDL.
	ErrInvalidIdentifier = apperrors.Wrap(apperrors.ErrInvalidInput, "invalid collection or path identifier")
)

var identifierPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// pathSegments validates a dotted path for interpolation into SQL.
func pathSegments(path string) ([]string, error) {
	parts := strings.Split(path, ".")
	for _, p := range parts {
		if !identifierPattern.MatchString(p) {
			return nil, fmt.Errorf("%w: %q", ErrInvalidIdentifier, path)
		}
	}
	return parts, nil
}

func validateCollection(collection string) error {
	if !identifierPattern.MatchString(collection) {
		return fmt.Errorf("%w: %q", ErrInvalidIdentifier, collection)
	}
	return nil
}

// uniqueIndexName returns a deterministic index name within the 63-char identifier limit.
func uniqueIndexName(collection string, parts []string) string {
	name := "uq_" + collection + "_" + strings.Join(parts, "_")
	if len(name) > 63 {
		name = name[:63]
	}
	return strings.ToLower(name)
}

// isPostgreSQLUniqueViolation checks for SQLSTATE 23505.
func isPostgreSQLUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == "23505"
}

// isMySQLUniqueViolation checks for ER_DUP_ENTRY.
func isMySQLUniqueViolation(err error) bool {
	var myErr *mysql.MySQLError
	return errors.As(err, &myErr) && myErr.Number == 1062
}
