package service

import (
	"context"
	"encoding/base64"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/allisson/piivault/internal/fieldcrypt/domain"
)

// kmsSecretPrefix marks a configured secret as KMS ciphertext (base64) rather than key material.
const kmsSecretPrefix = "kms:"

// KeySettings is the key-related slice of the application configuration.
type KeySettings struct {
	// PrimarySecret is the dedicated field encryption secret (FIELD_ENCRYPTION_KEY).
	PrimarySecret string
	// LegacySecrets lists retired secrets separated by commas, semicolons or newlines.
	LegacySecrets string
	// FallbackSecret is the unrelated auth secret used when no dedicated key is set.
	FallbackSecret string
	// RefuseFallback disables the FallbackSecret derivation entirely.
	RefuseFallback bool
	// KMSKeyURI unwraps kms:-prefixed secrets when set.
	KMSKeyURI string
}

// KeyManager resolves the key ring once and caches it for the process lifetime.
//
// Key sources, in order:
//   - PrimarySecret (FIELD_ENCRYPTION_KEY)
//   - FallbackSecret (AUTH_TOKEN_SECRET), with a warning, unless RefuseFallback is set
//   - LegacySecrets, decrypt-only, in configured order
//
// Secrets prefixed with "kms:" are unwrapped through KMSKeyURI before derivation.
// Missing keys are not an error. The ring is empty and fields stay plaintext.
//
// Rotation is an operational event: change configuration, restart, then run
// migrate-fields. There is no hot reload.
//
// Thread safety:
//
//	Resolve runs once under a sync.Once. Every later caller, on any goroutine,
//	sees the same ring and error.
//
// Example usage:
//
//	keys := NewKeyManager(KeySettings{
//	    PrimarySecret: cfg.FieldEncryptionKey,
//	    LegacySecrets: cfg.FieldEncryptionLegacyKeys,
//	    KMSKeyURI:     cfg.KMSKeyURI,
//	}, NewKMSService(), logger)
//	defer keys.Close()
//
//	if err := keys.Resolve(ctx); err != nil {
//	    return err
//	}
type KeyManager struct {
	settings KeySettings
	kms      KMSService
	logger   *slog.Logger

	once     sync.Once
	ring     *domain.KeyRing
	fallback bool
	err      error
}

// NewKeyManager creates a KeyManager. kms may be nil when no secret is KMS-wrapped.
func NewKeyManager(settings KeySettings, kms KMSService, logger *slog.Logger) *KeyManager {
	return &KeyManager{
		settings: settings,
		kms:      kms,
		logger:   logger,
	}
}

// Resolve builds the key ring on first call; later calls return the cached outcome.
// An unconfigured key is not an error: the ring is simply empty.
func (m *KeyManager) Resolve(ctx context.Context) error {
	m.once.Do(func() {
		m.ring, m.fallback, m.err = m.resolve(ctx)
	})
	return m.err
}

// KeyRing returns the cached ring, resolving it with a background context if needed.
func (m *KeyManager) KeyRing() (*domain.KeyRing, error) {
	if err := m.Resolve(context.Background()); err != nil {
		return nil, err
	}
	return m.ring, nil
}

// Enabled reports whether a primary key is available.
func (m *KeyManager) Enabled() bool {
	ring, err := m.KeyRing()
	return err == nil && !ring.Empty()
}

// FallbackInUse reports whether the primary key was derived from the fallback secret.
func (m *KeyManager) FallbackInUse() bool {
	_ = m.Resolve(context.Background())
	return m.fallback
}

// Close zeroes the cached key material.
func (m *KeyManager) Close() {
	m.ring.Close()
}

// ResolvePrimaryKey returns the 32-byte primary key, whether it came from the
// fallback secret, or (nil, false, nil) when nothing is configured.
func (m *KeyManager) ResolvePrimaryKey(ctx context.Context) ([]byte, bool, error) {
	if secret := strings.TrimSpace(m.settings.PrimarySecret); secret != "" {
		key, err := m.deriveSecret(ctx, secret)
		if err != nil {
			return nil, false, fmt.Errorf("failed to resolve primary field key: %w", err)
		}
		return key, false, nil
	}

	fallback := strings.TrimSpace(m.settings.FallbackSecret)
	if fallback == "" {
		return nil, false, nil
	}
	if m.settings.RefuseFallback {
		return nil, false, domain.ErrFallbackKeyRefused
	}

	m.logger.Warn(
		"FIELD_ENCRYPTION_KEY is not set, deriving the field key from AUTH_TOKEN_SECRET; " +
			"configure a dedicated key before storing production data",
	)
	key, err := m.deriveSecret(ctx, fallback)
	if err != nil {
		return nil, false, fmt.Errorf("failed to resolve fallback field key: %w", err)
	}
	return key, true, nil
}

// ResolveLegacyKeys returns the retired keys in configured order.
// Duplicates are removed later, when the ring is built.
func (m *KeyManager) ResolveLegacyKeys(ctx context.Context) ([][]byte, error) {
	secrets := domain.SplitSecrets(m.settings.LegacySecrets)
	keys := make([][]byte, 0, len(secrets))
	for i, secret := range secrets {
		key, err := m.deriveSecret(ctx, secret)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve legacy field key #%d: %w", i+1, err)
		}
		keys = append(keys, key)
	}
	return keys, nil
}

func (m *KeyManager) resolve(ctx context.Context) (*domain.KeyRing, bool, error) {
	primary, fallback, err := m.ResolvePrimaryKey(ctx)
	if err != nil {
		return &domain.KeyRing{}, false, err
	}
	if primary == nil {
		m.logger.Warn("no field encryption key configured, PII fields will be stored as plaintext")
		return &domain.KeyRing{}, false, nil
	}
	defer domain.Zero(primary)

	legacy, err := m.ResolveLegacyKeys(ctx)
	if err != nil {
		return &domain.KeyRing{}, false, err
	}
	defer func() {
		for _, k := range legacy {
			domain.Zero(k)
		}
	}()

	ring, err := domain.NewKeyRing(primary, legacy...)
	if err != nil {
		return &domain.KeyRing{}, false, err
	}

	m.logger.Info("field encryption keys loaded",
		slog.Int("legacy_keys", len(ring.Legacy())),
		slog.Bool("fallback", fallback),
	)
	return ring, fallback, nil
}

// deriveSecret unwraps a kms: secret if needed and applies the derivation rule.
func (m *KeyManager) deriveSecret(ctx context.Context, secret string) ([]byte, error) {
	if !strings.HasPrefix(secret, kmsSecretPrefix) {
		return domain.DeriveKey(secret), nil
	}

	if m.kms == nil || m.settings.KMSKeyURI == "" {
		return nil, fmt.Errorf("kms-wrapped secret requires KMS_KEY_URI")
	}

	ciphertext, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(secret, kmsSecretPrefix))
	if err != nil {
		return nil, fmt.Errorf("invalid kms secret encoding: %w", err)
	}

	keeper, err := m.kms.OpenKeeper(ctx, m.settings.KMSKeyURI)
	if err != nil {
		return nil, err
	}
	defer func() {
		if closeErr := keeper.Close(); closeErr != nil {
			m.logger.Error("failed to close KMS keeper", slog.Any("error", closeErr))
		}
	}()

	plaintext, err := keeper.Decrypt(ctx, ciphertext)
	if err != nil {
		return nil, fmt.Errorf("failed to unwrap secret with KMS: %w", err)
	}
	defer domain.Zero(plaintext)

	return domain.DeriveKey(strings.TrimSpace(string(plaintext))), nil
}
