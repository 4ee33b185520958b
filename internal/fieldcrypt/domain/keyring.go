package domain

import (
	"crypto/sha256"
	"encoding/hex"
)

// Key is one 32-byte field key together with its canonical (lowercase hex) form.
type Key struct {
	material  []byte
	canonical string
}

// Bytes returns the raw key material. Callers must not modify it.
func (k Key) Bytes() []byte {
	return k.material
}

// Fingerprint returns a short, non-reversible identifier for logs and status output.
func (k Key) Fingerprint() string {
	sum := sha256.Sum256(k.material)
	return hex.EncodeToString(sum[:4])
}

// KeyRing is the ordered set of field keys: the primary key first, then legacy keys
// from most to least recently retired.
//
// The primary key is the only key used for new encryption and new blind indexes.
// Legacy keys are read-only: they decrypt old ciphertext and produce lookup variants
// until a migration pass has rewritten every record. A KeyRing is immutable once built.
type KeyRing struct {
	keys []Key
}

// NewKeyRing builds a ring from a primary key and any number of legacy keys.
// Keys are de-duplicated by canonical hex form, keeping the first occurrence.
// A nil primary yields an empty ring regardless of legacy keys, since legacy keys
// must never be promoted implicitly.
func NewKeyRing(primary []byte, legacy ...[]byte) (*KeyRing, error) {
	ring := &KeyRing{}
	if primary == nil {
		return ring, nil
	}

	seen := make(map[string]struct{}, len(legacy)+1)
	for _, material := range append([][]byte{primary}, legacy...) {
		if len(material) != KeySize {
			ring.Close()
			return nil, ErrInvalidKeySize
		}
		canonical := hex.EncodeToString(material)
		if _, dup := seen[canonical]; dup {
			continue
		}
		seen[canonical] = struct{}{}

		buf := make([]byte, KeySize)
		copy(buf, material)
		ring.keys = append(ring.keys, Key{material: buf, canonical: canonical})
	}

	return ring, nil
}

// Empty reports whether the ring holds no key at all.
func (r *KeyRing) Empty() bool {
	return r == nil || len(r.keys) == 0
}

// Len returns the number of distinct keys.
func (r *KeyRing) Len() int {
	if r == nil {
		return 0
	}
	return len(r.keys)
}

// Primary returns the key used for new writes.
func (r *KeyRing) Primary() (Key, bool) {
	if r.Empty() {
		return Key{}, false
	}
	return r.keys[0], true
}

// Legacy returns the read-only keys after the primary.
func (r *KeyRing) Legacy() []Key {
	if r.Len() < 2 {
		return nil
	}
	return r.keys[1:]
}

// All returns every key, primary first.
func (r *KeyRing) All() []Key {
	if r == nil {
		return nil
	}
	return r.keys
}

// Close zeroes all key material and empties the ring.
func (r *KeyRing) Close() {
	if r == nil {
		return
	}
	for _, k := range r.keys {
		Zero(k.material)
	}
	r.keys = nil
}
