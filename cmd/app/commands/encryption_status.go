package commands

import (
	"fmt"
	"io"

	"github.com/allisson/piivault/internal/fieldcrypt/domain"
	"github.com/allisson/piivault/internal/fieldcrypt/schema"
)

// KeyStatusSource exposes the resolved key ring. *service.KeyManager implements it.
type KeyStatusSource interface {
	KeyRing() (*domain.KeyRing, error)
	FallbackInUse() bool
}

// BindingLister lists registered entity bindings. *schema.Registry implements it.
type BindingLister interface {
	Bindings() []*schema.Binding
}

// EncryptionStatus is the encryption-status output. Keys appear as fingerprints only.
type EncryptionStatus struct {
	Enabled            bool           `json:"enabled"`
	Fallback           bool           `json:"fallback"`
	PrimaryFingerprint string         `json:"primary_fingerprint,omitempty"`
	LegacyFingerprints []string       `json:"legacy_fingerprints"`
	Entities           []EntityStatus `json:"entities"`
}

// EntityStatus describes one registered binding.
type EntityStatus struct {
	Entity    string   `json:"entity"`
	Encrypted []string `json:"encrypted"`
	Hashes    []string `json:"hashes"`
}

// RunEncryptionStatus prints whether field encryption is enabled, the key
// fingerprints and every registered entity's encrypted and hashed paths.
func RunEncryptionStatus(keys KeyStatusSource, bindings BindingLister, writer io.Writer, format string) error {
	if err := validateFormat(format); err != nil {
		return err
	}

	ring, err := keys.KeyRing()
	if err != nil {
		return fmt.Errorf("failed to resolve field encryption keys: %w", err)
	}

	status := EncryptionStatus{
		Fallback:           keys.FallbackInUse(),
		LegacyFingerprints: []string{},
		Entities:           []EntityStatus{},
	}
	if primary, ok := ring.Primary(); ok {
		status.Enabled = true
		status.PrimaryFingerprint = primary.Fingerprint()
	}
	for _, k := range ring.Legacy() {
		status.LegacyFingerprints = append(status.LegacyFingerprints, k.Fingerprint())
	}

	for _, b := range bindings.Bindings() {
		entity := EntityStatus{Entity: b.Name(), Encrypted: []string{}, Hashes: []string{}}
		for _, f := range b.EncryptedPaths() {
			entity.Encrypted = append(entity.Encrypted, fmt.Sprintf("%s (%s)", f.Path, f.Kind))
		}
		for _, h := range b.Hashes() {
			entity.Hashes = append(entity.Hashes, fmt.Sprintf("%s -> %s", h.Source, h.Target))
		}
		status.Entities = append(status.Entities, entity)
	}

	if format == "json" {
		return writeJSON(writer, status)
	}
	outputStatusText(writer, status)
	return nil
}

func outputStatusText(writer io.Writer, status EncryptionStatus) {
	if !status.Enabled {
		_, _ = fmt.Fprintln(writer, "Field encryption: disabled (PII stored as plaintext)")
	} else {
		source := "FIELD_ENCRYPTION_KEY"
		if status.Fallback {
			source = "AUTH_TOKEN_SECRET fallback"
		}
		_, _ = fmt.Fprintf(writer, "Field encryption: enabled (%s)\n", source)
		_, _ = fmt.Fprintf(writer, "Primary key: %s\n", status.PrimaryFingerprint)
	}

	_, _ = fmt.Fprintf(writer, "Legacy keys: %d\n", len(status.LegacyFingerprints))
	for _, fp := range status.LegacyFingerprints {
		_, _ = fmt.Fprintf(writer, "  - %s\n", fp)
	}

	for _, e := range status.Entities {
		_, _ = fmt.Fprintf(writer, "Entity %s\n", e.Entity)
		for _, p := range e.Encrypted {
			_, _ = fmt.Fprintf(writer, "  encrypted: %s\n", p)
		}
		for _, h := range e.Hashes {
			_, _ = fmt.Fprintf(writer, "  hash: %s\n", h)
		}
	}
}
