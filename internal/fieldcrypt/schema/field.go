// Package schema binds field encryption and blind indexing to document entities.
//
// Each entity registers once with a Spec of typed field descriptors. The resulting
// Binding is the only way business code reads decrypted values, prepares documents
// for persistence and builds partial updates.
package schema

import (
	"github.com/allisson/piivault/internal/fieldcrypt/domain"
)

// Kind tags the value type stored at a FieldPath.
type Kind int

const (
	// KindString is a scalar string field.
	KindString Kind = iota + 1
	// KindStringArray is an array of strings encrypted element-wise.
	KindStringArray
)

func (k Kind) String() string {
	switch k {
	case KindString:
		return "string"
	case KindStringArray:
		return "[]string"
	default:
		return "unknown"
	}
}

// FieldPath is a dotted path into the stored document plus the kind of value it holds.
type FieldPath struct {
	Path string
	Kind Kind
}

// StringField describes an encrypted scalar string.
func StringField(path string) FieldPath {
	return FieldPath{Path: path, Kind: KindString}
}

// StringArrayField describes an encrypted array of strings.
func StringArrayField(path string) FieldPath {
	return FieldPath{Path: path, Kind: KindStringArray}
}

// HashSpec keeps Target equal to the blind index of the normalized Source value.
type HashSpec struct {
	Source    string
	Target    string
	Normalize domain.Normalizer
}

// Spec is the registration input for one entity.
type Spec struct {
	Encrypted []FieldPath
	Hashes    []HashSpec
}

// Cipher is the field encryption contract the binding relies on.
type Cipher interface {
	Encrypt(value string) (string, error)
	Decrypt(value string) string
	EncryptStrings(values []string) ([]string, error)
	DecryptStrings(values []string) []string
	KeyIndex(value string) int
	Rotate(value string) (string, bool, error)
}

// Indexer computes blind indexes.
type Indexer interface {
	Compute(raw string, normalize domain.Normalizer) string
	Variants(raw string, normalize domain.Normalizer) []string
}
