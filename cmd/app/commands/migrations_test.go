package commands

import (
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunMigrations(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	t.Run("invalid-driver", func(t *testing.T) {
		err := RunMigrations(logger, "invalid", "postgres://localhost", "")
		require.Error(t, err)
		require.Contains(t, err.Error(), "failed to create migrate instance")
	})

	t.Run("invalid-connection-string", func(t *testing.T) {
		err := RunMigrations(logger, "postgres", "invalid-connection-string", "")
		require.Error(t, err)
		require.Contains(t, err.Error(), "failed to create migrate instance")
	})
}

func TestMigrationsSource(t *testing.T) {
	tests := []struct {
		name   string
		dir    string
		driver string
		want   string
	}{
		{"default mysql", "", "mysql", "file://migrations/mysql"},
		{"default postgres", "", "postgres", "file://migrations/postgresql"},
		{"custom dir", "/opt/piivault/migrations", "postgres", "file:///opt/piivault/migrations/postgresql"},
		{"relative dir", "deploy/sql", "mysql", "file://deploy/sql/mysql"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, migrationsSource(tt.dir, tt.driver))
		})
	}
}
