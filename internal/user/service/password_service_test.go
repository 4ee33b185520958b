package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPasswordService(t *testing.T) {
	svc, err := NewPasswordService()
	require.NoError(t, err)

	hashed, err := svc.Hash("Str0ng!Passw0rd")
	require.NoError(t, err)
	assert.Contains(t, hashed, "$argon2id$")
	assert.NotContains(t, hashed, "Str0ng!Passw0rd")

	t.Run("Match", func(t *testing.T) {
		assert.True(t, svc.Compare("Str0ng!Passw0rd", hashed))
	})

	t.Run("Mismatch", func(t *testing.T) {
		assert.False(t, svc.Compare("wrong", hashed))
	})

	t.Run("MalformedHash", func(t *testing.T) {
		assert.False(t, svc.Compare("Str0ng!Passw0rd", "not-a-hash"))
	})

	t.Run("Salted", func(t *testing.T) {
		again, err := svc.Hash("Str0ng!Passw0rd")
		require.NoError(t, err)
		assert.NotEqual(t, hashed, again)
	})
}
