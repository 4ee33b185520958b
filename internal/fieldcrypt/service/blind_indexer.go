package service

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"

	"github.com/allisson/piivault/internal/fieldcrypt/domain"
)

// BlindIndexer computes deterministic keyed digests of normalized plaintext so that
// encrypted fields can still be matched by equality.
//
// The digest is HMAC-SHA256 under the same 32-byte key as FieldCipher. Without the
// key an attacker cannot precompute digests of guessed values, but equal plaintexts
// do share a digest, which reveals equality between rows. Only index fields that
// need exact-match lookups.
//
// A BlindIndexer holds no mutable state and is safe for concurrent use.
//
// Example usage:
//
//	indexer := NewBlindIndexer(keys)
//
//	// store alongside the encrypted email
//	hash := indexer.Compute(" Alice@Example.com", domain.NormalizeEmail)
//
//	// look up under every key in the ring
//	candidates := indexer.Variants("alice@example.com", domain.NormalizeEmail)
type BlindIndexer struct {
	keys KeyRingProvider
}

// NewBlindIndexer creates a BlindIndexer over the given key ring provider.
func NewBlindIndexer(keys KeyRingProvider) *BlindIndexer {
	return &BlindIndexer{keys: keys}
}

// Compute returns the lowercase hex HMAC-SHA256 of normalize(raw) under the primary key.
// It returns "" when raw is empty, when the normalized value is empty or when no key is
// configured.
func (b *BlindIndexer) Compute(raw string, normalize domain.Normalizer) string {
	normalized, ok := normalizeInput(raw, normalize)
	if !ok {
		return ""
	}
	ring, err := b.keys.KeyRing()
	if err != nil {
		return ""
	}
	primary, ok := ring.Primary()
	if !ok {
		return ""
	}
	return digest(primary.Bytes(), normalized)
}

// Variants returns the digest under every key in the ring, primary first, without
// duplicates. Lookups match any variant so records written under a retired key stay
// reachable until they are migrated.
func (b *BlindIndexer) Variants(raw string, normalize domain.Normalizer) []string {
	normalized, ok := normalizeInput(raw, normalize)
	if !ok {
		return nil
	}
	ring, err := b.keys.KeyRing()
	if err != nil || ring.Empty() {
		return nil
	}

	keys := ring.All()
	out := make([]string, 0, len(keys))
	seen := make(map[string]struct{}, len(keys))
	for _, key := range keys {
		h := digest(key.Bytes(), normalized)
		if _, dup := seen[h]; dup {
			continue
		}
		seen[h] = struct{}{}
		out = append(out, h)
	}
	return out
}

func normalizeInput(raw string, normalize domain.Normalizer) (string, bool) {
	if raw == "" {
		return "", false
	}
	if normalize == nil {
		normalize = domain.NormalizeNone
	}
	normalized := normalize(raw)
	return normalized, normalized != ""
}

func digest(key []byte, value string) string {
	mac := hmac.New(sha256.New, key)
	mac.Write([]byte(value))
	return hex.EncodeToString(mac.Sum(nil))
}
