package service

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/allisson/piivault/internal/fieldcrypt/domain"
)

func TestKeyManager_ResolvePrimaryKey(t *testing.T) {
	ctx := context.Background()

	t.Run("DedicatedKey", func(t *testing.T) {
		m := NewKeyManager(KeySettings{PrimarySecret: "k1", FallbackSecret: "auth"}, nil, discardLogger())

		key, fallback, err := m.ResolvePrimaryKey(ctx)
		require.NoError(t, err)
		assert.False(t, fallback)
		assert.Equal(t, domain.DeriveKey("k1"), key)
	})

	t.Run("FallbackSecret", func(t *testing.T) {
		m := NewKeyManager(KeySettings{FallbackSecret: "auth"}, nil, discardLogger())

		key, fallback, err := m.ResolvePrimaryKey(ctx)
		require.NoError(t, err)
		assert.True(t, fallback)
		assert.Equal(t, domain.DeriveKey("auth"), key)
	})

	t.Run("FallbackRefused", func(t *testing.T) {
		m := NewKeyManager(KeySettings{FallbackSecret: "auth", RefuseFallback: true}, nil, discardLogger())

		key, _, err := m.ResolvePrimaryKey(ctx)
		assert.ErrorIs(t, err, domain.ErrFallbackKeyRefused)
		assert.Nil(t, key)
	})

	t.Run("NothingConfigured", func(t *testing.T) {
		m := NewKeyManager(KeySettings{PrimarySecret: "   "}, nil, discardLogger())

		key, fallback, err := m.ResolvePrimaryKey(ctx)
		require.NoError(t, err)
		assert.False(t, fallback)
		assert.Nil(t, key)
	})
}

func TestKeyManager_ResolveLegacyKeys(t *testing.T) {
	m := NewKeyManager(KeySettings{LegacySecrets: " old1 ;old2,\n\nold3 "}, nil, discardLogger())

	keys, err := m.ResolveLegacyKeys(context.Background())
	require.NoError(t, err)
	require.Len(t, keys, 3)
	assert.Equal(t, domain.DeriveKey("old1"), keys[0])
	assert.Equal(t, domain.DeriveKey("old2"), keys[1])
	assert.Equal(t, domain.DeriveKey("old3"), keys[2])
}

func TestKeyManager_KeyRing(t *testing.T) {
	t.Run("PrimaryAndLegacy", func(t *testing.T) {
		m := newManager(t, "k2", "k1,k2")
		ring, err := m.KeyRing()
		require.NoError(t, err)

		// k2 appears twice but is kept once, as primary.
		require.Equal(t, 2, ring.Len())
		primary, ok := ring.Primary()
		require.True(t, ok)
		assert.Equal(t, domain.DeriveKey("k2"), primary.Bytes())
		assert.Equal(t, domain.DeriveKey("k1"), ring.Legacy()[0].Bytes())
		assert.True(t, m.Enabled())
		assert.False(t, m.FallbackInUse())
	})

	t.Run("LegacyWithoutPrimaryIsIgnored", func(t *testing.T) {
		m := NewKeyManager(KeySettings{LegacySecrets: "k1"}, nil, discardLogger())
		ring, err := m.KeyRing()
		require.NoError(t, err)
		assert.True(t, ring.Empty())
		assert.False(t, m.Enabled())
	})

	t.Run("RefusedFallbackDisablesEncryption", func(t *testing.T) {
		m := NewKeyManager(KeySettings{FallbackSecret: "auth", RefuseFallback: true}, nil, discardLogger())
		_, err := m.KeyRing()
		assert.ErrorIs(t, err, domain.ErrFallbackKeyRefused)
		assert.False(t, m.Enabled())
	})

	t.Run("FallbackWarningLoggedOnce", func(t *testing.T) {
		var buf bytes.Buffer
		logger := slog.New(slog.NewJSONHandler(&buf, nil))
		m := NewKeyManager(KeySettings{FallbackSecret: "auth"}, nil, logger)

		for i := 0; i < 5; i++ {
			_, err := m.KeyRing()
			require.NoError(t, err)
		}
		assert.True(t, m.FallbackInUse())
		assert.Equal(t, 1, strings.Count(buf.String(), "AUTH_TOKEN_SECRET"))
	})

	t.Run("CachedAcrossCalls", func(t *testing.T) {
		m := newManager(t, "k1", "")
		r1, err := m.KeyRing()
		require.NoError(t, err)
		r2, err := m.KeyRing()
		require.NoError(t, err)
		assert.Same(t, r1, r2)
	})
}

func TestKeyManager_KMSWrappedSecret(t *testing.T) {
	keyURI := generateLocalSecretsURI(t)

	t.Run("Success", func(t *testing.T) {
		settings := KeySettings{
			PrimarySecret: wrapSecret(t, keyURI, "k2"),
			LegacySecrets: wrapSecret(t, keyURI, "k1"),
			KMSKeyURI:     keyURI,
		}
		m := NewKeyManager(settings, NewKMSService(), discardLogger())

		ring, err := m.KeyRing()
		require.NoError(t, err)
		require.Equal(t, 2, ring.Len())
		primary, _ := ring.Primary()
		assert.Equal(t, domain.DeriveKey("k2"), primary.Bytes())
		assert.Equal(t, domain.DeriveKey("k1"), ring.Legacy()[0].Bytes())
	})

	t.Run("Error_MissingKeyURI", func(t *testing.T) {
		settings := KeySettings{PrimarySecret: wrapSecret(t, keyURI, "k2")}
		m := NewKeyManager(settings, NewKMSService(), discardLogger())

		_, err := m.KeyRing()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "KMS_KEY_URI")
		assert.False(t, m.Enabled())
	})

	t.Run("Error_WrongKMSKey", func(t *testing.T) {
		settings := KeySettings{
			PrimarySecret: wrapSecret(t, keyURI, "k2"),
			KMSKeyURI:     generateLocalSecretsURI(t),
		}
		m := NewKeyManager(settings, NewKMSService(), discardLogger())

		_, err := m.KeyRing()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "failed to unwrap secret with KMS")
	})

	t.Run("Error_InvalidEncoding", func(t *testing.T) {
		settings := KeySettings{PrimarySecret: "kms:not base64!", KMSKeyURI: keyURI}
		m := NewKeyManager(settings, NewKMSService(), discardLogger())

		_, err := m.KeyRing()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "invalid kms secret encoding")
	})
}

func TestKeyManager_Close(t *testing.T) {
	m := newManager(t, "k1", "")
	ring, err := m.KeyRing()
	require.NoError(t, err)

	m.Close()
	assert.True(t, ring.Empty())
}
