package service

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/allisson/piivault/internal/fieldcrypt/domain"
)

// FieldCipher encrypts and decrypts individual string fields.
//
// Stored format:
//
//	enc:v1:<ivHex>:<tagHex>:<ciphertextHex>
//
// with a 12-byte IV, a 16-byte tag and lowercase hex throughout. Any value without
// the enc:v1: prefix is plaintext.
//
// Encrypt is idempotent. Empty strings and already-encrypted values pass through, and
// so does everything when no key is configured.
//
// Security notes:
//
//	Decrypt fails open. A value that no key in the ring can authenticate comes back
//	unchanged, ciphertext included, and is never an error. Callers that must tell
//	the two apart use KeyIndex, which returns -1 for such values. Tampered
//	ciphertext therefore surfaces as an opaque enc:v1: string, never as forged
//	plaintext.
//
// Thread safety:
//
//	The per-key ciphers are built once, on first use, from the resolved key ring.
//	After that a FieldCipher is read-only and safe for concurrent use.
//
// Example usage:
//
//	keys := NewKeyManager(KeySettings{PrimarySecret: cfg.FieldEncryptionKey}, nil, logger)
//	fieldCipher := NewFieldCipher(keys, logger)
//
//	stored, err := fieldCipher.Encrypt("alice@example.com")
//	if err != nil {
//	    return err
//	}
//	email := fieldCipher.Decrypt(stored) // "alice@example.com"
type FieldCipher struct {
	keys   KeyRingProvider
	logger *slog.Logger

	once  sync.Once
	aeads []AEAD
	err   error
}

// NewFieldCipher creates a FieldCipher over the given key ring provider.
func NewFieldCipher(keys KeyRingProvider, logger *slog.Logger) *FieldCipher {
	return &FieldCipher{keys: keys, logger: logger}
}

// Enabled reports whether the ring holds a primary key.
func (c *FieldCipher) Enabled() bool {
	aeads, err := c.ciphers()
	return err == nil && len(aeads) > 0
}

// Encrypt produces enc:v1:<ivHex>:<tagHex>:<ciphertextHex> under the primary key.
func (c *FieldCipher) Encrypt(value string) (string, error) {
	if value == "" || domain.IsEncrypted(value) {
		return value, nil
	}

	aeads, err := c.ciphers()
	if err != nil {
		return "", err
	}
	if len(aeads) == 0 {
		return value, nil
	}

	return c.seal(aeads[0], value)
}

// Decrypt returns the plaintext of an envelope, trying the primary key first and
// then each legacy key. Non-prefixed values, malformed envelopes and values no key
// can authenticate come back unchanged.
func (c *FieldCipher) Decrypt(value string) string {
	if !domain.IsEncrypted(value) {
		return value
	}
	plaintext, _, ok := c.open(value)
	if !ok {
		c.logger.Debug("encrypted field could not be authenticated under any key")
		return value
	}
	return plaintext
}

// KeyIndex reports which ring key authenticates value: 0 for the primary key, a
// positive index for a legacy key, -1 when no key does. Plaintext yields -1.
func (c *FieldCipher) KeyIndex(value string) int {
	if !domain.IsEncrypted(value) {
		return -1
	}
	_, idx, ok := c.open(value)
	if !ok {
		return -1
	}
	return idx
}

// Rotate re-encrypts a value sealed under a legacy key with the primary key. Values
// already under the primary key, plaintext and undecryptable values are returned as is
// with rotated=false.
func (c *FieldCipher) Rotate(value string) (string, bool, error) {
	if !domain.IsEncrypted(value) {
		return value, false, nil
	}
	plaintext, idx, ok := c.open(value)
	if !ok || idx == 0 {
		return value, false, nil
	}

	aeads, err := c.ciphers()
	if err != nil {
		return "", false, err
	}
	rotated, err := c.seal(aeads[0], plaintext)
	if err != nil {
		return "", false, err
	}
	return rotated, true, nil
}

func (c *FieldCipher) open(value string) (string, int, bool) {
	envelope, err := domain.ParseEnvelope(value)
	if err != nil {
		return "", -1, false
	}

	aeads, err := c.ciphers()
	if err != nil || len(aeads) == 0 {
		return "", -1, false
	}

	sealed := make([]byte, 0, len(envelope.Ciphertext)+len(envelope.Tag))
	sealed = append(sealed, envelope.Ciphertext...)
	sealed = append(sealed, envelope.Tag...)

	for i, aead := range aeads {
		plaintext, err := aead.Decrypt(sealed, envelope.Nonce, nil)
		if err == nil {
			return string(plaintext), i, true
		}
	}
	return "", -1, false
}

func (c *FieldCipher) seal(aead AEAD, value string) (string, error) {
	sealed, nonce, err := aead.Encrypt([]byte(value), nil)
	if err != nil {
		return "", fmt.Errorf("failed to encrypt field: %w", err)
	}

	split := len(sealed) - domain.TagSize
	envelope := domain.Envelope{
		Nonce:      nonce,
		Tag:        sealed[split:],
		Ciphertext: sealed[:split],
	}
	return envelope.String(), nil
}

// EncryptStrings encrypts each element; the first failure aborts.
func (c *FieldCipher) EncryptStrings(values []string) ([]string, error) {
	if values == nil {
		return nil, nil
	}
	out := make([]string, len(values))
	for i, v := range values {
		enc, err := c.Encrypt(v)
		if err != nil {
			return nil, err
		}
		out[i] = enc
	}
	return out, nil
}

// DecryptStrings decrypts each element independently.
func (c *FieldCipher) DecryptStrings(values []string) []string {
	if values == nil {
		return nil
	}
	out := make([]string, len(values))
	for i, v := range values {
		out[i] = c.Decrypt(v)
	}
	return out
}

// ciphers builds one AEAD per ring key, primary first.
func (c *FieldCipher) ciphers() ([]AEAD, error) {
	c.once.Do(func() {
		ring, err := c.keys.KeyRing()
		if err != nil {
			c.err = err
			return
		}
		for _, key := range ring.All() {
			aead, err := NewAESGCM(key.Bytes())
			if err != nil {
				c.err = err
				c.aeads = nil
				return
			}
			c.aeads = append(c.aeads, aead)
		}
	})
	return c.aeads, c.err
}
