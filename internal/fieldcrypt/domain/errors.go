package domain

import (
	"github.com/allisson/piivault/internal/errors"
)

// Field encryption error definitions.
//
// Cryptographic failures on the read path never surface as errors (decryption fails open);
// these cover configuration, registration and wire-format problems only.
var (
	// ErrNoKeyConfigured indicates neither a dedicated field key nor a fallback secret is configured.
	//
	// Encryption and blind indexing degrade to passthrough in this state. Deployments that need
	// confidentiality set FIELD_ENCRYPTION_REQUIRED so the server refuses to boot instead.
	ErrNoKeyConfigured = errors.Wrap(errors.ErrUnavailable, "no field encryption key configured")

	// ErrEncryptionRequired indicates the process must not start without a usable key.
	ErrEncryptionRequired = errors.Wrap(errors.ErrUnavailable, "field encryption is required but not enabled")

	// ErrFallbackKeyRefused indicates the auth-secret fallback was disabled by configuration.
	ErrFallbackKeyRefused = errors.Wrap(errors.ErrUnavailable, "fallback field key refused")

	// ErrInvalidKeySize indicates a key is not 32 bytes.
	ErrInvalidKeySize = errors.Wrap(errors.ErrInvalidInput, "invalid key size")

	// ErrInvalidEnvelope indicates a prefixed value does not match enc:v1:<iv>:<tag>:<ciphertext>.
	ErrInvalidEnvelope = errors.Wrap(errors.ErrInvalidInput, "invalid encrypted value")

	// ErrDecryptionFailed indicates no key in the ring authenticates a ciphertext.
	// Only used internally; FieldCipher.Decrypt fails open.
	ErrDecryptionFailed = errors.Wrap(errors.ErrInvalidInput, "decryption failed")

	// ErrInvalidFieldPath indicates a dotted path does not resolve on the entity shape.
	ErrInvalidFieldPath = errors.Wrap(errors.ErrInvalidInput, "invalid field path")

	// ErrShapeMismatch indicates a path resolves to a Go type incompatible with its descriptor.
	ErrShapeMismatch = errors.Wrap(errors.ErrInvalidInput, "field kind does not match entity shape")

	// ErrEntityAlreadyRegistered indicates an entity name was registered twice.
	ErrEntityAlreadyRegistered = errors.Wrap(errors.ErrConflict, "entity already registered")

	// ErrEntityNotRegistered indicates a lookup for an unknown entity.
	ErrEntityNotRegistered = errors.Wrap(errors.ErrNotFound, "entity not registered")
)
