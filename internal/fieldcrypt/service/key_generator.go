package service

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"log/slog"

	"github.com/allisson/piivault/internal/fieldcrypt/domain"
)

// GenerateFieldSecret returns a new random field secret as 64 hex characters.
// When keyURI is set the hex secret is wrapped with that KMS key and returned in
// the kms:<base64> form that KeyManager unwraps.
func GenerateFieldSecret(ctx context.Context, kms KMSService, keyURI string, logger *slog.Logger) (string, error) {
	raw := make([]byte, domain.KeySize)
	if _, err := rand.Read(raw); err != nil {
		return "", fmt.Errorf("failed to generate field key: %w", err)
	}
	defer domain.Zero(raw)

	secret := hex.EncodeToString(raw)
	if keyURI == "" {
		return secret, nil
	}
	if kms == nil {
		return "", fmt.Errorf("kms service is required to wrap a field key")
	}

	keeper, err := kms.OpenKeeper(ctx, keyURI)
	if err != nil {
		return "", err
	}
	defer func() {
		if closeErr := keeper.Close(); closeErr != nil {
			logger.Error("failed to close KMS keeper", slog.Any("error", closeErr))
		}
	}()

	ciphertext, err := keeper.Encrypt(ctx, []byte(secret))
	if err != nil {
		return "", fmt.Errorf("failed to wrap field key with KMS: %w", err)
	}
	return kmsSecretPrefix + base64.StdEncoding.EncodeToString(ciphertext), nil
}
