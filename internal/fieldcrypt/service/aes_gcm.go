package service

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"fmt"

	"github.com/allisson/piivault/internal/fieldcrypt/domain"
)

// AESGCMCipher implements AEAD using AES-256-GCM.
//
// Security properties:
//   - 256-bit key, derived from a configured secret by domain.DeriveKey
//   - 12-byte nonce drawn from crypto/rand on every Encrypt call
//   - 16-byte authentication tag appended to the ciphertext
//   - any tampering with nonce, tag or ciphertext fails authentication
//
// Random 96-bit nonces stay safe for roughly 2^32 encryptions under one key. Field
// values are re-encrypted only on write or rotation, well below that bound, and a key
// rotation resets the count.
//
// Thread safety:
//
//	The cipher holds only the expanded key schedule and is safe for concurrent use
//	from multiple goroutines. Encrypting the same plaintext twice never yields the
//	same output.
//
// Example usage:
//
//	key := domain.DeriveKey(os.Getenv("FIELD_ENCRYPTION_KEY"))
//	defer domain.Zero(key)
//
//	aead, err := NewAESGCM(key)
//	if err != nil {
//	    return err
//	}
//
//	sealed, nonce, err := aead.Encrypt([]byte("alice@example.com"), nil)
//	if err != nil {
//	    return err
//	}
//	plaintext, err := aead.Decrypt(sealed, nonce, nil)
type AESGCMCipher struct {
	aead cipher.AEAD
}

// NewAESGCM creates an AES-256-GCM cipher.
//
// The key must be exactly 32 bytes; any other size returns domain.ErrInvalidKeySize.
// The key slice is not retained, so callers may zero it once the cipher is built.
func NewAESGCM(key []byte) (*AESGCMCipher, error) {
	if len(key) != domain.KeySize {
		return nil, domain.ErrInvalidKeySize
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("failed to create AES cipher: %w", err)
	}

	aead, err := cipher.NewGCMWithNonceSize(block, domain.NonceSize)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCM: %w", err)
	}

	return &AESGCMCipher{aead: aead}, nil
}

// Encrypt seals plaintext under a freshly generated nonce. The returned ciphertext
// carries the 16-byte tag at its end. aad is authenticated but not encrypted and
// must be passed unchanged to Decrypt.
func (a *AESGCMCipher) Encrypt(plaintext, aad []byte) (ciphertext, nonce []byte, err error) {
	nonce = make([]byte, a.aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return nil, nil, fmt.Errorf("failed to generate nonce: %w", err)
	}

	ciphertext = a.aead.Seal(nil, nonce, plaintext, aad)
	return ciphertext, nonce, nil
}

// Decrypt opens ciphertext (tag appended). Any authentication failure is reported as
// domain.ErrDecryptionFailed without further detail.
func (a *AESGCMCipher) Decrypt(ciphertext, nonce, aad []byte) ([]byte, error) {
	if len(nonce) != a.aead.NonceSize() {
		return nil, domain.ErrDecryptionFailed
	}
	plaintext, err := a.aead.Open(nil, nonce, ciphertext, aad)
	if err != nil {
		return nil, domain.ErrDecryptionFailed
	}
	return plaintext, nil
}
