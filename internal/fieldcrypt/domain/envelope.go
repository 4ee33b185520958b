package domain

import (
	"encoding/hex"
	"strings"
)

// EncryptedPrefix marks a stored string as an encrypted envelope.
// Any string without it is plaintext (legacy, not yet migrated, or empty).
const EncryptedPrefix = "enc:v1:"

const (
	// NonceSize is the AES-GCM nonce length in bytes (96 bits).
	NonceSize = 12
	// TagSize is the AES-GCM authentication tag length in bytes.
	TagSize = 16
)

// Envelope is the decoded form of enc:v1:<ivHex>:<tagHex>:<ciphertextHex>.
type Envelope struct {
	Nonce      []byte
	Tag        []byte
	Ciphertext []byte
}

// IsEncrypted reports whether value carries the envelope prefix.
func IsEncrypted(value string) bool {
	return strings.HasPrefix(value, EncryptedPrefix)
}

// String encodes the envelope in its wire format.
func (e Envelope) String() string {
	var b strings.Builder
	b.Grow(len(EncryptedPrefix) + 2*(len(e.Nonce)+len(e.Tag)+len(e.Ciphertext)) + 2)
	b.WriteString(EncryptedPrefix)
	b.WriteString(hex.EncodeToString(e.Nonce))
	b.WriteByte(':')
	b.WriteString(hex.EncodeToString(e.Tag))
	b.WriteByte(':')
	b.WriteString(hex.EncodeToString(e.Ciphertext))
	return b.String()
}

// ParseEnvelope decodes a prefixed value. The ciphertext segment may be empty only in
// the sense of zero-length plaintext, which FieldCipher never produces.
func ParseEnvelope(value string) (Envelope, error) {
	if !IsEncrypted(value) {
		return Envelope{}, ErrInvalidEnvelope
	}

	parts := strings.Split(strings.TrimPrefix(value, EncryptedPrefix), ":")
	if len(parts) != 3 {
		return Envelope{}, ErrInvalidEnvelope
	}

	nonce, err := hex.DecodeString(parts[0])
	if err != nil || len(nonce) != NonceSize {
		return Envelope{}, ErrInvalidEnvelope
	}
	tag, err := hex.DecodeString(parts[1])
	if err != nil || len(tag) != TagSize {
		return Envelope{}, ErrInvalidEnvelope
	}
	ciphertext, err := hex.DecodeString(parts[2])
	if err != nil {
		return Envelope{}, ErrInvalidEnvelope
	}

	return Envelope{Nonce: nonce, Tag: tag, Ciphertext: ciphertext}, nil
}
