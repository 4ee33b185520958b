package service

import (
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/require"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// newManager builds a resolved KeyManager from plain secrets.
func newManager(t *testing.T, primary, legacy string) *KeyManager {
	t.Helper()
	m := NewKeyManager(KeySettings{PrimarySecret: primary, LegacySecrets: legacy}, nil, discardLogger())
	_, err := m.KeyRing()
	require.NoError(t, err)
	return m
}
