package schema

import (
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/allisson/piivault/internal/fieldcrypt/domain"
)

// Binding applies one entity's encryption and hash specs to its documents.
type Binding struct {
	name      string
	shape     shapeIndex
	encrypted []FieldPath
	hashes    []HashSpec

	encryptedKinds map[string]Kind
	hashSources    map[string][]HashSpec
	hashTargets    map[string]struct{}

	cipher  Cipher
	indexer Indexer
	logger  *slog.Logger
}

func newBinding(name string, shape any, spec Spec, cipher Cipher, indexer Indexer, logger *slog.Logger) (*Binding, error) {
	idx, err := indexShape(shape)
	if err != nil {
		return nil, err
	}

	b := &Binding{
		name:           name,
		shape:          idx,
		encrypted:      append([]FieldPath(nil), spec.Encrypted...),
		hashes:         append([]HashSpec(nil), spec.Hashes...),
		encryptedKinds: make(map[string]Kind, len(spec.Encrypted)),
		hashSources:    make(map[string][]HashSpec, len(spec.Hashes)),
		hashTargets:    make(map[string]struct{}, len(spec.Hashes)),
		cipher:         cipher,
		indexer:        indexer,
		logger:         logger.With(slog.String("entity", name)),
	}

	for _, f := range spec.Encrypted {
		if err := idx.check(f.Path, f.Kind); err != nil {
			return nil, err
		}
		if _, dup := b.encryptedKinds[f.Path]; dup {
			return nil, fmt.Errorf("%w: %q is listed twice", domain.ErrInvalidFieldPath, f.Path)
		}
		b.encryptedKinds[f.Path] = f.Kind
	}

	for _, h := range spec.Hashes {
		if err := idx.check(h.Source, KindString); err != nil {
			return nil, fmt.Errorf("hash source: %w", err)
		}
		if err := idx.check(h.Target, KindString); err != nil {
			return nil, fmt.Errorf("hash target: %w", err)
		}
		if _, enc := b.encryptedKinds[h.Target]; enc {
			return nil, fmt.Errorf("%w: hash target %q is also encrypted", domain.ErrInvalidFieldPath, h.Target)
		}
		if _, dup := b.hashTargets[h.Target]; dup {
			return nil, fmt.Errorf("%w: hash target %q is listed twice", domain.ErrInvalidFieldPath, h.Target)
		}
		b.hashTargets[h.Target] = struct{}{}
		b.hashSources[h.Source] = append(b.hashSources[h.Source], h)
	}
	for _, h := range spec.Hashes {
		if _, isTarget := b.hashTargets[h.Source]; isTarget {
			return nil, fmt.Errorf("%w: %q is both a hash source and a hash target", domain.ErrInvalidFieldPath, h.Source)
		}
	}

	return b, nil
}

// Name returns the entity name, which is also the storage collection.
func (b *Binding) Name() string {
	return b.name
}

// EncryptedPaths returns the registered encrypted fields.
func (b *Binding) EncryptedPaths() []FieldPath {
	return append([]FieldPath(nil), b.encrypted...)
}

// Hashes returns the registered hash specs.
func (b *Binding) Hashes() []HashSpec {
	return append([]HashSpec(nil), b.hashes...)
}

// UniqueIndexPaths returns the hash targets that must carry a unique sparse index.
func (b *Binding) UniqueIndexPaths() []string {
	out := make([]string, 0, len(b.hashes))
	for _, h := range b.hashes {
		out = append(out, h.Target)
	}
	return out
}

// HashSpecFor returns the hash spec whose source is path.
func (b *Binding) HashSpecFor(source string) (HashSpec, bool) {
	specs := b.hashSources[source]
	if len(specs) == 0 {
		return HashSpec{}, false
	}
	return specs[0], true
}

// String returns the plaintext of a scalar field. Encrypted fields are decrypted
// (failing open); other string fields are returned as stored. Missing or non-string
// values yield "".
func (b *Binding) String(doc *Document, path string) string {
	raw, ok := doc.Get(path)
	if !ok {
		return ""
	}
	s, ok := raw.(string)
	if !ok {
		return ""
	}
	if _, enc := b.encryptedKinds[path]; enc {
		return b.cipher.Decrypt(s)
	}
	return s
}

// Strings returns the plaintext elements of an array field, or nil when absent.
func (b *Binding) Strings(doc *Document, path string) []string {
	raw, ok := doc.Get(path)
	if !ok {
		return nil
	}
	values, ok := asStrings(raw)
	if !ok {
		return nil
	}
	if _, enc := b.encryptedKinds[path]; enc {
		return b.cipher.DecryptStrings(values)
	}
	return append([]string(nil), values...)
}

// Plaintext returns a deep copy of the document data with every encrypted field decrypted.
func (b *Binding) Plaintext(doc *Document) map[string]any {
	out := cloneValue(doc.Data()).(map[string]any)
	for _, f := range b.encrypted {
		raw, ok := lookup(out, f.Path)
		if !ok || raw == nil {
			continue
		}
		switch f.Kind {
		case KindString:
			if s, ok := raw.(string); ok {
				_ = assign(out, f.Path, b.cipher.Decrypt(s))
			}
		case KindStringArray:
			if values, ok := asStrings(raw); ok {
				_ = assign(out, f.Path, cloneValue(b.cipher.DecryptStrings(values)))
			}
		}
	}
	return out
}

// MarshalDocument serializes the document with every encrypted field decrypted and the id
// under "id". Ciphertext never leaves through this path.
func (b *Binding) MarshalDocument(doc *Document) ([]byte, error) {
	out := b.Plaintext(doc)
	out["id"] = doc.ID
	return json.Marshal(out)
}

// Decode fills v (a pointer to a struct) from the decrypted document.
func (b *Binding) Decode(doc *Document, v any) error {
	raw, err := json.Marshal(b.Plaintext(doc))
	if err != nil {
		return fmt.Errorf("failed to decode %s document: %w", b.name, err)
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("failed to decode %s document: %w", b.name, err)
	}
	return nil
}

// PrepareSave readies a document for a single-document write. Hash targets are
// recomputed for sources that changed, then changed encrypted fields are encrypted in
// place. For a new document every field counts as changed.
func (b *Binding) PrepareSave(doc *Document) error {
	for _, h := range b.hashes {
		if doc.Changed(h.Source) {
			if err := b.recomputeHash(doc, h); err != nil {
				return err
			}
		}
	}
	for _, f := range b.encrypted {
		if doc.Changed(f.Path) {
			if err := b.encryptField(doc, f, false); err != nil {
				return err
			}
		}
	}
	return nil
}

// ForceRewrite recomputes every hash and encrypts every field regardless of change
// tracking. Ciphertext under a legacy key is re-encrypted with the primary key. It
// reports whether the raw data changed and marks the document dirty if so.
func (b *Binding) ForceRewrite(doc *Document) (bool, error) {
	before := cloneValue(doc.Data())

	for _, h := range b.hashes {
		if err := b.recomputeHash(doc, h); err != nil {
			return false, err
		}
	}
	for _, f := range b.encrypted {
		if err := b.encryptField(doc, f, true); err != nil {
			return false, err
		}
	}

	changed := !jsonEqual(before, doc.Data())
	if changed {
		doc.dirty = true
	}
	return changed, nil
}

// expectedHash returns the blind index the target should hold for the current source.
// ok is false when the source is ciphertext no key can open.
func (b *Binding) expectedHash(doc *Document, h HashSpec) (string, bool) {
	raw, _ := doc.Get(h.Source)
	source, _ := raw.(string)
	if domain.IsEncrypted(source) {
		plaintext := b.cipher.Decrypt(source)
		if domain.IsEncrypted(plaintext) {
			return "", false
		}
		source = plaintext
	}
	return b.indexer.Compute(source, h.Normalize), true
}

func (b *Binding) recomputeHash(doc *Document, h HashSpec) error {
	hash, ok := b.expectedHash(doc, h)
	if !ok {
		b.logger.Warn("hash source cannot be decrypted, keeping stored hash",
			slog.String("id", doc.ID),
			slog.String("source", h.Source),
		)
		return nil
	}
	if hash == "" {
		doc.Unset(h.Target)
		return nil
	}
	return doc.Set(h.Target, hash)
}

func (b *Binding) encryptField(doc *Document, f FieldPath, rotate bool) error {
	raw, ok := doc.Get(f.Path)
	if !ok || raw == nil {
		return nil
	}

	switch f.Kind {
	case KindString:
		s, ok := raw.(string)
		if !ok {
			return fmt.Errorf("%w: %s.%s holds %T", domain.ErrShapeMismatch, b.name, f.Path, raw)
		}
		enc, err := b.sealValue(s, rotate)
		if err != nil {
			return err
		}
		return doc.Set(f.Path, enc)
	case KindStringArray:
		values, ok := asStrings(raw)
		if !ok {
			return fmt.Errorf("%w: %s.%s holds %T", domain.ErrShapeMismatch, b.name, f.Path, raw)
		}
		out := make([]string, len(values))
		for i, v := range values {
			enc, err := b.sealValue(v, rotate)
			if err != nil {
				return err
			}
			out[i] = enc
		}
		return doc.Set(f.Path, out)
	default:
		return fmt.Errorf("%w: %s.%s has unknown kind", domain.ErrShapeMismatch, b.name, f.Path)
	}
}

func (b *Binding) sealValue(value string, rotate bool) (string, error) {
	if rotate && domain.IsEncrypted(value) {
		rotated, _, err := b.cipher.Rotate(value)
		if err != nil {
			return "", fmt.Errorf("failed to rotate %s field: %w", b.name, err)
		}
		return rotated, nil
	}
	enc, err := b.cipher.Encrypt(value)
	if err != nil {
		return "", fmt.Errorf("failed to encrypt %s field: %w", b.name, err)
	}
	return enc, nil
}

func jsonEqual(a, b any) bool {
	ra, err := json.Marshal(a)
	if err != nil {
		return false
	}
	rb, err := json.Marshal(b)
	if err != nil {
		return false
	}
	return string(ra) == string(rb)
}
