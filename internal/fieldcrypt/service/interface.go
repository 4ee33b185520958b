// Package service implements the field encryption primitives: key resolution,
// AES-256-GCM field encryption and HMAC-SHA256 blind indexing.
//
// A single KeyManager is built from configuration at process start and passed by
// reference into FieldCipher and BlindIndexer; nothing in this package is global.
package service

import (
	"context"

	"github.com/allisson/piivault/internal/fieldcrypt/domain"
)

// KeyRingProvider exposes the resolved key ring. KeyManager implements it.
type KeyRingProvider interface {
	KeyRing() (*domain.KeyRing, error)
}

// KMSKeeper wraps and unwraps field secrets with a KMS key. *secrets.Keeper implements it.
type KMSKeeper interface {
	Encrypt(ctx context.Context, plaintext []byte) ([]byte, error)
	Decrypt(ctx context.Context, ciphertext []byte) ([]byte, error)
	Close() error
}

// AEAD is the authenticated cipher used for a single key.
type AEAD interface {
	// Encrypt returns ciphertext with the authentication tag appended, and the nonce used.
	Encrypt(plaintext, aad []byte) (ciphertext, nonce []byte, err error)

	// Decrypt authenticates and decrypts ciphertext (tag appended).
	Decrypt(ciphertext, nonce, aad []byte) ([]byte, error)
}
