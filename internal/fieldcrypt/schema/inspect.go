package schema

import (
	"github.com/allisson/piivault/internal/fieldcrypt/domain"
)

// Category classifies a verification finding.
type Category string

const (
	// CategoryPlaintext is a non-empty encrypted field stored without the envelope prefix.
	CategoryPlaintext Category = "plaintext_at_rest"
	// CategoryStaleHash is a hash target that differs from the primary-key index of its source.
	CategoryStaleHash Category = "stale_hash"
	// CategoryLegacyKey is ciphertext that only a legacy key can open.
	CategoryLegacyKey Category = "legacy_key_ciphertext"
	// CategoryUndecryptable is ciphertext no configured key can open.
	CategoryUndecryptable Category = "undecryptable"
)

// Categories lists every category in report order.
var Categories = []Category{CategoryPlaintext, CategoryStaleHash, CategoryLegacyKey, CategoryUndecryptable}

// Finding is one problem on one field of a stored document.
type Finding struct {
	Path     string   `json:"path"`
	Category Category `json:"category"`
}

// Inspect reports problems with the raw stored values of doc without modifying it.
func (b *Binding) Inspect(doc *Document) []Finding {
	var findings []Finding

	for _, f := range b.encrypted {
		raw, ok := doc.Get(f.Path)
		if !ok || raw == nil {
			continue
		}
		var values []string
		switch f.Kind {
		case KindString:
			s, ok := raw.(string)
			if !ok {
				continue
			}
			values = []string{s}
		case KindStringArray:
			values, _ = asStrings(raw)
		}
		if c, bad := b.classify(values); bad {
			findings = append(findings, Finding{Path: f.Path, Category: c})
		}
	}

	for _, h := range b.hashes {
		if b.hashStale(doc, h) {
			findings = append(findings, Finding{Path: h.Target, Category: CategoryStaleHash})
		}
	}

	return findings
}

// classify returns the worst category among values, if any.
func (b *Binding) classify(values []string) (Category, bool) {
	var legacy bool
	for _, v := range values {
		if v == "" {
			continue
		}
		if !domain.IsEncrypted(v) {
			return CategoryPlaintext, true
		}
		switch idx := b.cipher.KeyIndex(v); {
		case idx < 0:
			return CategoryUndecryptable, true
		case idx > 0:
			legacy = true
		}
	}
	if legacy {
		return CategoryLegacyKey, true
	}
	return "", false
}

func (b *Binding) hashStale(doc *Document, h HashSpec) bool {
	expected, ok := b.expectedHash(doc, h)
	if !ok {
		return false
	}
	raw, _ := doc.Get(h.Target)
	stored, _ := raw.(string)
	return stored != expected
}

// StaleHashes returns the hash-only mutation that brings every hash target in line with
// the primary key. Encrypted fields are never part of it.
func (b *Binding) StaleHashes(doc *Document) Mutation {
	var m Mutation
	for _, h := range b.hashes {
		if !b.hashStale(doc, h) {
			continue
		}
		expected, _ := b.expectedHash(doc, h)
		if expected == "" {
			m.Unset = append(m.Unset, h.Target)
			continue
		}
		if m.Set == nil {
			m.Set = make(map[string]any)
		}
		m.Set[h.Target] = expected
	}
	return m
}

// FixHashes applies StaleHashes to doc in memory and returns the number of targets fixed.
func (b *Binding) FixHashes(doc *Document) int {
	m := b.StaleHashes(doc)
	if err := m.Apply(doc); err != nil {
		return 0
	}
	return len(m.Set) + len(m.Unset)
}
