package domain

import (
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"strings"
)

// KeySize is the size in bytes of every field key (AES-256 / HMAC-SHA256).
const KeySize = 32

// DeriveKey turns any configured secret string into a 32-byte key.
//
// The rule accepts generated keys and human passphrases alike:
//  1. exactly 64 hex characters: hex-decoded
//  2. base64 (standard, padded or not) decoding to exactly 32 bytes: decoded
//  3. anything else: SHA-256 of the UTF-8 bytes
//
// The secret is used verbatim; callers trim surrounding whitespace.
func DeriveKey(secret string) []byte {
	if len(secret) == 2*KeySize {
		if key, err := hex.DecodeString(secret); err == nil {
			return key
		}
	}

	for _, enc := range []*base64.Encoding{base64.StdEncoding, base64.RawStdEncoding} {
		if key, err := enc.DecodeString(secret); err == nil && len(key) == KeySize {
			return key
		}
	}

	sum := sha256.Sum256([]byte(secret))
	return sum[:]
}

// SplitSecrets splits a list of secrets on commas, semicolons and newlines,
// dropping blank entries. Order is preserved.
func SplitSecrets(raw string) []string {
	parts := strings.FieldsFunc(raw, func(r rune) bool {
		return r == ',' || r == ';' || r == '\n' || r == '\r'
	})

	secrets := make([]string, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			secrets = append(secrets, trimmed)
		}
	}
	return secrets
}
