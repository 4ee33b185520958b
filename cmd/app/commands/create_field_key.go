package commands

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/allisson/piivault/internal/fieldcrypt/domain"
	"github.com/allisson/piivault/internal/fieldcrypt/service"
)

// CreateFieldKeyOptions are the create-field-key flags and the key state it rotates from.
type CreateFieldKeyOptions struct {
	// KMSKeyURI wraps the new key with this KMS key when set.
	KMSKeyURI string
	// CurrentKey and CurrentLegacyKeys are the configured secrets. When CurrentKey is
	// set the output includes the legacy list for a rotation.
	CurrentKey        string
	CurrentLegacyKeys string
	// FallbackKey is the auth secret the primary key is derived from while CurrentKey
	// is empty. It heads the legacy list so fallback ciphertext stays readable.
	FallbackKey string
}

// RunCreateFieldKey generates a new field encryption secret and prints it as
// environment variables. With a current key configured, or one derived from the
// fallback auth secret, it also prints the legacy list that keeps old ciphertext
// readable until migrate-fields has run.
func RunCreateFieldKey(
	ctx context.Context,
	kmsService service.KMSService,
	logger *slog.Logger,
	writer io.Writer,
	opts CreateFieldKeyOptions,
) error {
	secret, err := service.GenerateFieldSecret(ctx, kmsService, opts.KMSKeyURI, logger)
	if err != nil {
		return err
	}

	logger.Info("field encryption key generated", slog.Bool("kms_wrapped", opts.KMSKeyURI != ""))

	_, _ = fmt.Fprintln(writer, "# Field encryption key")
	_, _ = fmt.Fprintln(writer, "# Copy these environment variables to your .env file or secrets manager")
	_, _ = fmt.Fprintln(writer)
	if opts.KMSKeyURI != "" {
		_, _ = fmt.Fprintf(writer, "KMS_KEY_URI=\"%s\"\n", opts.KMSKeyURI)
	}
	_, _ = fmt.Fprintf(writer, "FIELD_ENCRYPTION_KEY=\"%s\"\n", secret)

	current := strings.TrimSpace(opts.CurrentKey)
	fromFallback := false
	if current == "" {
		current = strings.TrimSpace(opts.FallbackKey)
		fromFallback = true
	}
	if current == "" {
		return nil
	}

	legacy := append([]string{current}, domain.SplitSecrets(opts.CurrentLegacyKeys)...)
	_, _ = fmt.Fprintf(writer, "FIELD_ENCRYPTION_LEGACY_KEYS=\"%s\"\n", strings.Join(legacy, ","))
	_, _ = fmt.Fprintln(writer)
	if fromFallback {
		_, _ = fmt.Fprintln(writer, "# The current field key is derived from AUTH_TOKEN_SECRET, so it is kept as a legacy key.")
		_, _ = fmt.Fprintln(writer, "# Rotate AUTH_TOKEN_SECRET only after step 4.")
	}
	_, _ = fmt.Fprintln(writer, "# Rotation steps:")
	_, _ = fmt.Fprintln(writer, "#   1. Deploy both variables above and restart every instance")
	_, _ = fmt.Fprintln(writer, "#   2. Run: app migrate-fields")
	_, _ = fmt.Fprintln(writer, "#   3. Run: app verify-fields (expect legacy_key_ciphertext: 0)")
	_, _ = fmt.Fprintln(writer, "#   4. Remove the retired key from FIELD_ENCRYPTION_LEGACY_KEYS")

	return nil
}
