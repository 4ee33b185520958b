package schema

import (
	"fmt"
	"sort"
	"strings"

	"github.com/allisson/piivault/internal/fieldcrypt/domain"
)

// Mutation is a prepared partial update: paths to set with their stored values and
// paths to remove. It is produced by UpdateBuilder or by hash repair and is already
// encrypted and hashed.
type Mutation struct {
	Set   map[string]any
	Unset []string
}

// IsEmpty reports whether the mutation changes nothing.
func (m Mutation) IsEmpty() bool {
	return len(m.Set) == 0 && len(m.Unset) == 0
}

// Apply performs the mutation on an in-memory document.
func (m Mutation) Apply(doc *Document) error {
	for path, value := range m.Set {
		if err := doc.Set(path, value); err != nil {
			return err
		}
	}
	for _, path := range m.Unset {
		doc.Unset(path)
	}
	return nil
}

type updateOp struct {
	unset  bool
	kind   Kind
	value  string
	values []string
}

// UpdateBuilder collects typed field writes for one entity.
// All partial writes go through it so hashing and encryption cannot be skipped.
type UpdateBuilder struct {
	binding *Binding
	ops     map[string]updateOp
	order   []string
	err     error
}

// Update starts a partial update.
func (b *Binding) Update() *UpdateBuilder {
	return &UpdateBuilder{binding: b, ops: make(map[string]updateOp)}
}

// Set writes a plaintext string to path.
func (u *UpdateBuilder) Set(path, value string) *UpdateBuilder {
	u.put(path, KindString, updateOp{kind: KindString, value: value})
	return u
}

// SetStrings writes a plaintext string array to path. A nil slice is stored as an empty array.
func (u *UpdateBuilder) SetStrings(path string, values []string) *UpdateBuilder {
	if values == nil {
		values = []string{}
	}
	u.put(path, KindStringArray, updateOp{kind: KindStringArray, values: append([]string(nil), values...)})
	return u
}

// Unset removes path.
func (u *UpdateBuilder) Unset(path string) *UpdateBuilder {
	if u.err != nil {
		return u
	}
	if _, err := splitPath(path); err != nil {
		u.err = err
		return u
	}
	if _, ok := u.binding.shape[path]; !ok {
		u.err = fmt.Errorf("%w: %q is not a field of %s", domain.ErrInvalidFieldPath, path, u.binding.name)
		return u
	}
	u.put(path, 0, updateOp{unset: true})
	return u
}

func (u *UpdateBuilder) put(path string, kind Kind, op updateOp) {
	if u.err != nil {
		return
	}
	if _, isTarget := u.binding.hashTargets[path]; isTarget {
		u.err = fmt.Errorf("%w: hash target %q is derived and cannot be written directly", domain.ErrInvalidFieldPath, path)
		return
	}
	if kind != 0 {
		if err := u.binding.shape.check(path, kind); err != nil {
			u.err = err
			return
		}
		if want, enc := u.binding.encryptedKinds[path]; enc && want != kind {
			u.err = fmt.Errorf("%w: %q is registered as %v", domain.ErrShapeMismatch, path, want)
			return
		}
	}
	if _, seen := u.ops[path]; !seen {
		u.order = append(u.order, path)
	}
	u.ops[path] = op
}

// hashesUnder returns the hash specs whose source is path or nested below it,
// ordered by source.
func (b *Binding) hashesUnder(path string) []HashSpec {
	sources := make([]string, 0, len(b.hashSources))
	for source := range b.hashSources {
		if source == path || strings.HasPrefix(source, path+".") {
			sources = append(sources, source)
		}
	}
	sort.Strings(sources)

	var specs []HashSpec
	for _, source := range sources {
		specs = append(specs, b.hashSources[source]...)
	}
	return specs
}

// Build hashes and encrypts the collected writes. Any written hash source updates its
// target in the same mutation; an empty or removed source removes the target, including
// sources removed together with a parent object.
func (u *UpdateBuilder) Build() (Mutation, error) {
	if u.err != nil {
		return Mutation{}, u.err
	}

	b := u.binding
	m := Mutation{Set: make(map[string]any)}
	unset := func(path string) {
		delete(m.Set, path)
		for _, p := range m.Unset {
			if p == path {
				return
			}
		}
		m.Unset = append(m.Unset, path)
	}

	for _, path := range u.order {
		op := u.ops[path]
		if op.unset {
			unset(path)
			for _, h := range b.hashesUnder(path) {
				unset(h.Target)
			}
			continue
		}

		switch op.kind {
		case KindString:
			stored := op.value
			if _, enc := b.encryptedKinds[path]; enc {
				v, err := b.cipher.Encrypt(op.value)
				if err != nil {
					return Mutation{}, fmt.Errorf("failed to encrypt %s.%s: %w", b.name, path, err)
				}
				stored = v
			}
			m.Set[path] = stored

			for _, h := range b.hashSources[path] {
				plaintext := op.value
				if domain.IsEncrypted(plaintext) {
					plaintext = b.cipher.Decrypt(plaintext)
					if domain.IsEncrypted(plaintext) {
						return Mutation{}, fmt.Errorf("%w: %s.%s is ciphertext that cannot be indexed", domain.ErrInvalidFieldPath, b.name, path)
					}
				}
				if hash := b.indexer.Compute(plaintext, h.Normalize); hash != "" {
					m.Set[h.Target] = hash
				} else {
					unset(h.Target)
				}
			}
		case KindStringArray:
			stored := op.values
			if _, enc := b.encryptedKinds[path]; enc {
				v, err := b.cipher.EncryptStrings(op.values)
				if err != nil {
					return Mutation{}, fmt.Errorf("failed to encrypt %s.%s: %w", b.name, path, err)
				}
				stored = v
			}
			m.Set[path] = stored
		}
	}

	if len(m.Set) == 0 {
		m.Set = nil
	}
	return m, nil
}
