package usecase

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/allisson/piivault/internal/testutil"
)

func seedNotes(store *testutil.MemoryDocumentStore, n int) {
	for i := 0; i < n; i++ {
		store.Seed("notes", fmt.Sprintf("note-%02d", i), map[string]any{"body": fmt.Sprintf("body %d", i)})
	}
}

func TestCursor(t *testing.T) {
	ctx := context.Background()

	t.Run("StreamsEveryDocumentInBatches", func(t *testing.T) {
		store := testutil.NewMemoryDocumentStore(nil)
		seedNotes(store, 7)

		c := newCursor(store, "notes", 3, 0)
		var ids []string
		for c.Next(ctx) {
			ids = append(ids, c.Document().ID)
		}
		require.NoError(t, c.Err())
		assert.Len(t, ids, 7)
		assert.Equal(t, "note-00", ids[0])
		assert.Equal(t, "note-06", ids[6])
	})

	t.Run("ExactMultipleOfBatch", func(t *testing.T) {
		store := testutil.NewMemoryDocumentStore(nil)
		seedNotes(store, 4)

		c := newCursor(store, "notes", 2, 0)
		count := 0
		for c.Next(ctx) {
			count++
		}
		require.NoError(t, c.Err())
		assert.Equal(t, 4, count)
	})

	t.Run("Limit", func(t *testing.T) {
		store := testutil.NewMemoryDocumentStore(nil)
		seedNotes(store, 10)

		c := newCursor(store, "notes", 4, 5)
		count := 0
		for c.Next(ctx) {
			count++
		}
		require.NoError(t, c.Err())
		assert.Equal(t, 5, count)
	})

	t.Run("EmptyCollection", func(t *testing.T) {
		c := newCursor(testutil.NewMemoryDocumentStore(nil), "notes", 10, 0)
		assert.False(t, c.Next(ctx))
		assert.NoError(t, c.Err())
	})

	t.Run("ScanError", func(t *testing.T) {
		repo := &mockDocumentRepository{}
		repo.On("Scan", mock.Anything, "notes", "", 10).Return(nil, assert.AnError).Once()

		c := newCursor(repo, "notes", 10, 0)
		assert.False(t, c.Next(ctx))
		assert.ErrorIs(t, c.Err(), assert.AnError)
		repo.AssertExpectations(t)
	})

	t.Run("CanceledContext", func(t *testing.T) {
		store := testutil.NewMemoryDocumentStore(nil)
		seedNotes(store, 3)
		canceled, cancel := context.WithCancel(ctx)
		cancel()

		c := newCursor(store, "notes", 10, 0)
		assert.False(t, c.Next(canceled))
		assert.ErrorIs(t, c.Err(), context.Canceled)
	})
}
