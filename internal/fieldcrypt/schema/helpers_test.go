package schema

import (
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/allisson/piivault/internal/fieldcrypt/domain"
	"github.com/allisson/piivault/internal/fieldcrypt/service"
)

type testProfile struct {
	NationalID     string `json:"nationalId,omitempty"`
	NationalIDHash string `json:"nationalIdHash,omitempty"`
	Address        string `json:"address,omitempty"`
}

type testUser struct {
	Name           string      `json:"name"`
	Email          string      `json:"email,omitempty"`
	EmailHash      string      `json:"emailHash,omitempty"`
	RecoveryEmails []string    `json:"recoveryEmails,omitempty"`
	Profile        testProfile `json:"profile"`
	Age            int         `json:"age"`
	Internal       string      `json:"-"`
}

var testSpec = Spec{
	Encrypted: []FieldPath{
		StringField("email"),
		StringArrayField("recoveryEmails"),
		StringField("profile.nationalId"),
		StringField("profile.address"),
	},
	Hashes: []HashSpec{
		{Source: "email", Target: "emailHash", Normalize: domain.NormalizeEmail},
		{Source: "profile.nationalId", Target: "profile.nationalIdHash", Normalize: domain.NormalizeIdentifier},
	},
}

type keyed struct {
	cipher  *service.FieldCipher
	indexer *service.BlindIndexer
	binding *Binding
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// newKeyed builds a user binding over its own key configuration.
func newKeyed(t *testing.T, primary, legacy string) keyed {
	t.Helper()
	logger := discardLogger()
	keys := service.NewKeyManager(service.KeySettings{PrimarySecret: primary, LegacySecrets: legacy}, nil, logger)
	cipher := service.NewFieldCipher(keys, logger)
	indexer := service.NewBlindIndexer(keys)

	registry := NewRegistry(cipher, indexer, logger)
	binding, err := registry.Register("users", testUser{}, testSpec)
	require.NoError(t, err)
	return keyed{cipher: cipher, indexer: indexer, binding: binding}
}

func newUserDoc(t *testing.T, u testUser) *Document {
	t.Helper()
	doc, err := NewDocumentFrom("", u)
	require.NoError(t, err)
	return doc
}

func rawString(t *testing.T, doc *Document, path string) string {
	t.Helper()
	v, ok := doc.Get(path)
	if !ok {
		return ""
	}
	s, ok := v.(string)
	require.True(t, ok, "%s is %T", path, v)
	return s
}
