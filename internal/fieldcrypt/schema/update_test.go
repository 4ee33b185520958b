package schema

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/allisson/piivault/internal/fieldcrypt/domain"
)

func TestUpdateBuilder_Build(t *testing.T) {
	k := newKeyed(t, "k1", "")

	t.Run("EncryptsAndHashesSource", func(t *testing.T) {
		m, err := k.binding.Update().
			Set("email", " New@Example.com").
			Set("name", "Alice").
			Build()
		require.NoError(t, err)

		email, ok := m.Set["email"].(string)
		require.True(t, ok)
		assert.True(t, domain.IsEncrypted(email))
		assert.Equal(t, " New@Example.com", k.cipher.Decrypt(email))
		assert.Equal(t, k.indexer.Compute("new@example.com", domain.NormalizeEmail), m.Set["emailHash"])
		assert.Equal(t, "Alice", m.Set["name"])
		assert.Empty(t, m.Unset)
	})

	t.Run("NestedSource", func(t *testing.T) {
		m, err := k.binding.Update().Set("profile.nationalId", "x9").Build()
		require.NoError(t, err)
		assert.Equal(t, k.indexer.Compute("X9", domain.NormalizeIdentifier), m.Set["profile.nationalIdHash"])
	})

	t.Run("EmptySourceUnsetsTarget", func(t *testing.T) {
		m, err := k.binding.Update().Set("email", "").Build()
		require.NoError(t, err)
		assert.Equal(t, "", m.Set["email"])
		assert.Equal(t, []string{"emailHash"}, m.Unset)
	})

	t.Run("UnsetSourceUnsetsTarget", func(t *testing.T) {
		m, err := k.binding.Update().Unset("email").Build()
		require.NoError(t, err)
		assert.Nil(t, m.Set)
		assert.ElementsMatch(t, []string{"email", "emailHash"}, m.Unset)
	})

	t.Run("UnsetParentUnsetsNestedTargets", func(t *testing.T) {
		m, err := k.binding.Update().Unset("profile").Build()
		require.NoError(t, err)
		assert.Equal(t, []string{"profile", "profile.nationalIdHash"}, m.Unset)
	})

	t.Run("UnsetParentUnsetsTargetOutsideIt", func(t *testing.T) {
		type contact struct {
			Email string `json:"email,omitempty"`
		}
		type account struct {
			Contact          contact `json:"contact"`
			ContactEmailHash string  `json:"contactEmailHash,omitempty"`
		}
		registry := NewRegistry(k.cipher, k.indexer, discardLogger())
		accounts, err := registry.Register("accounts", account{}, Spec{
			Encrypted: []FieldPath{StringField("contact.email")},
			Hashes: []HashSpec{
				{Source: "contact.email", Target: "contactEmailHash", Normalize: domain.NormalizeEmail},
			},
		})
		require.NoError(t, err)

		m, err := accounts.Update().Unset("contact").Build()
		require.NoError(t, err)
		assert.Nil(t, m.Set)
		assert.Equal(t, []string{"contact", "contactEmailHash"}, m.Unset)

		doc := NewDocument("a1", map[string]any{
			"contact":          map[string]any{"email": "enc:v1:aa:bb:cc"},
			"contactEmailHash": "h",
		})
		require.NoError(t, m.Apply(doc))
		_, ok := doc.Get("contactEmailHash")
		assert.False(t, ok)
	})

	t.Run("ArrayField", func(t *testing.T) {
		m, err := k.binding.Update().SetStrings("recoveryEmails", []string{"a@example.com", ""}).Build()
		require.NoError(t, err)
		values, ok := m.Set["recoveryEmails"].([]string)
		require.True(t, ok)
		require.Len(t, values, 2)
		assert.True(t, domain.IsEncrypted(values[0]))
		assert.Equal(t, "", values[1])
	})

	t.Run("LastWriteWins", func(t *testing.T) {
		m, err := k.binding.Update().Set("name", "A").Unset("name").Build()
		require.NoError(t, err)
		assert.Nil(t, m.Set)
		assert.Equal(t, []string{"name"}, m.Unset)
	})

	t.Run("AlreadyEncryptedSourceIsIndexedByPlaintext", func(t *testing.T) {
		enc, err := k.cipher.Encrypt("alice@example.com")
		require.NoError(t, err)
		m, err := k.binding.Update().Set("email", enc).Build()
		require.NoError(t, err)
		assert.Equal(t, enc, m.Set["email"])
		assert.Equal(t, k.indexer.Compute("alice@example.com", domain.NormalizeEmail), m.Set["emailHash"])
	})
}

func TestUpdateBuilder_Errors(t *testing.T) {
	k := newKeyed(t, "k1", "")

	tests := []struct {
		name    string
		build   func() (Mutation, error)
		wantErr error
	}{
		{
			name:    "HashTargetWrite",
			build:   func() (Mutation, error) { return k.binding.Update().Set("emailHash", "abc").Build() },
			wantErr: domain.ErrInvalidFieldPath,
		},
		{
			name:    "HashTargetUnset",
			build:   func() (Mutation, error) { return k.binding.Update().Unset("profile.nationalIdHash").Build() },
			wantErr: domain.ErrInvalidFieldPath,
		},
		{
			name:    "UnknownPath",
			build:   func() (Mutation, error) { return k.binding.Update().Set("phone", "1").Build() },
			wantErr: domain.ErrInvalidFieldPath,
		},
		{
			name:    "UnknownUnset",
			build:   func() (Mutation, error) { return k.binding.Update().Unset("phone").Build() },
			wantErr: domain.ErrInvalidFieldPath,
		},
		{
			name:    "ArrayOnScalar",
			build:   func() (Mutation, error) { return k.binding.Update().SetStrings("email", []string{"a"}).Build() },
			wantErr: domain.ErrShapeMismatch,
		},
		{
			name:    "ScalarOnArray",
			build:   func() (Mutation, error) { return k.binding.Update().Set("recoveryEmails", "a").Build() },
			wantErr: domain.ErrShapeMismatch,
		},
		{
			name:    "ScalarOnNumber",
			build:   func() (Mutation, error) { return k.binding.Update().Set("age", "1").Build() },
			wantErr: domain.ErrShapeMismatch,
		},
		{
			name: "FirstErrorSticks",
			build: func() (Mutation, error) {
				return k.binding.Update().Set("emailHash", "x").Set("name", "ok").Build()
			},
			wantErr: domain.ErrInvalidFieldPath,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, err := tt.build()
			assert.ErrorIs(t, err, tt.wantErr)
			assert.True(t, m.IsEmpty())
		})
	}
}

func TestMutation_Apply(t *testing.T) {
	k := newKeyed(t, "k1", "")
	now := time.Now()
	doc := LoadDocument("id-1", map[string]any{"name": "Alice", "email": "old@example.com", "emailHash": "stale"}, now, now)

	m, err := k.binding.Update().Set("email", "new@example.com").Build()
	require.NoError(t, err)
	require.NoError(t, m.Apply(doc))

	assert.Equal(t, "new@example.com", k.binding.String(doc, "email"))
	assert.Empty(t, k.binding.Inspect(doc))

	m, err = k.binding.Update().Unset("email").Build()
	require.NoError(t, err)
	require.NoError(t, m.Apply(doc))
	_, ok := doc.Get("emailHash")
	assert.False(t, ok)
}
