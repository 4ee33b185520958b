package schema

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/allisson/piivault/internal/fieldcrypt/domain"
)

func TestNewDocument(t *testing.T) {
	t.Run("GeneratesUUIDv7", func(t *testing.T) {
		doc := NewDocument("", nil)
		id, err := uuid.Parse(doc.ID)
		require.NoError(t, err)
		assert.Equal(t, uuid.Version(7), id.Version())
		assert.True(t, doc.IsNew())
		assert.Empty(t, doc.Data())
	})

	t.Run("CopiesInput", func(t *testing.T) {
		in := map[string]any{"profile": map[string]any{"address": "x"}}
		doc := NewDocument("id-1", in)
		in["profile"].(map[string]any)["address"] = "y"

		v, ok := doc.Get("profile.address")
		require.True(t, ok)
		assert.Equal(t, "x", v)
	})
}

func TestDocument_Paths(t *testing.T) {
	doc := NewDocument("id-1", map[string]any{"name": "Alice", "tags": "not-an-object"})

	t.Run("SetCreatesIntermediateObjects", func(t *testing.T) {
		require.NoError(t, doc.Set("profile.address", "Main St"))
		v, ok := doc.Get("profile.address")
		require.True(t, ok)
		assert.Equal(t, "Main St", v)
	})

	t.Run("SetThroughScalarFails", func(t *testing.T) {
		err := doc.Set("tags.first", "x")
		assert.ErrorIs(t, err, domain.ErrInvalidFieldPath)
	})

	t.Run("InvalidPaths", func(t *testing.T) {
		assert.ErrorIs(t, doc.Set("", "x"), domain.ErrInvalidFieldPath)
		assert.ErrorIs(t, doc.Set("a..b", "x"), domain.ErrInvalidFieldPath)
		_, ok := doc.Get("a..b")
		assert.False(t, ok)
	})

	t.Run("Unset", func(t *testing.T) {
		doc.Unset("profile.address")
		_, ok := doc.Get("profile.address")
		assert.False(t, ok)
		doc.Unset("missing.path")
	})

	t.Run("StringSliceStoredAsArray", func(t *testing.T) {
		require.NoError(t, doc.Set("emails", []string{"a", "b"}))
		v, _ := doc.Get("emails")
		assert.Equal(t, []any{"a", "b"}, v)
	})
}

func TestDocument_Changed(t *testing.T) {
	now := time.Now().UTC()
	doc := LoadDocument("id-1", map[string]any{
		"email":  "enc:v1:aa:bb:cc",
		"emails": []any{"a", "b"},
	}, now, now)

	assert.False(t, doc.IsNew())
	assert.False(t, doc.Changed("email"))
	assert.False(t, doc.Changed("missing"))

	require.NoError(t, doc.Set("emails", []string{"a", "b"}))
	assert.False(t, doc.Changed("emails"), "equal array written from code is unchanged")

	require.NoError(t, doc.Set("email", "new@example.com"))
	assert.True(t, doc.Changed("email"))

	doc.MarkPersisted()
	assert.False(t, doc.Changed("email"))

	doc.Unset("email")
	assert.True(t, doc.Changed("email"))

	assert.True(t, NewDocument("", nil).Changed("anything"))
}

func TestDocument_MarshalRaw(t *testing.T) {
	doc := NewDocument("id-1", map[string]any{"email": "enc:v1:aa:bb:cc"})
	raw, err := doc.MarshalRaw()
	require.NoError(t, err)
	assert.JSONEq(t, `{"email":"enc:v1:aa:bb:cc"}`, string(raw))
}

func TestDecodeRaw(t *testing.T) {
	t.Run("KeepsIntegerPrecision", func(t *testing.T) {
		data, err := DecodeRaw([]byte(`{"counter":9007199254740993,"nested":{"n":[1,2.5]}}`))
		require.NoError(t, err)

		doc := LoadDocument("id-1", data, time.Time{}, time.Time{})
		require.NoError(t, doc.Set("emailHash", "h"))
		raw, err := doc.MarshalRaw()
		require.NoError(t, err)
		assert.Equal(t, `{"counter":9007199254740993,"emailHash":"h","nested":{"n":[1,2.5]}}`, string(raw))
	})

	t.Run("RejectsTrailingData", func(t *testing.T) {
		_, err := DecodeRaw([]byte(`{"a":1} {"b":2}`))
		assert.Error(t, err)
	})

	t.Run("RejectsInvalidJSON", func(t *testing.T) {
		_, err := DecodeRaw([]byte(`{"a":`))
		assert.Error(t, err)
	})
}
