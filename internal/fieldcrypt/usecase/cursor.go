package usecase

import (
	"context"

	"github.com/allisson/piivault/internal/fieldcrypt/schema"
)

// cursor streams one collection in keyset batches so memory stays bounded by batchSize.
type cursor struct {
	repo       DocumentRepository
	collection string
	batchSize  int
	limit      int

	afterID string
	batch   []*schema.Document
	pos     int
	seen    int
	done    bool
	current *schema.Document
	err     error
}

func newCursor(repo DocumentRepository, collection string, batchSize, limit int) *cursor {
	if batchSize <= 0 {
		batchSize = defaultBatchSize
	}
	return &cursor{repo: repo, collection: collection, batchSize: batchSize, limit: limit}
}

// Next advances to the next document. It returns false at the end or on error.
func (c *cursor) Next(ctx context.Context) bool {
	if c.err != nil || (c.limit > 0 && c.seen >= c.limit) {
		return false
	}

	if c.pos >= len(c.batch) {
		if c.done {
			return false
		}
		if err := ctx.Err(); err != nil {
			c.err = err
			return false
		}

		size := c.batchSize
		if c.limit > 0 && c.limit-c.seen < size {
			size = c.limit - c.seen
		}
		batch, err := c.repo.Scan(ctx, c.collection, c.afterID, size)
		if err != nil {
			c.err = err
			return false
		}
		if len(batch) < size {
			c.done = true
		}
		if len(batch) == 0 {
			return false
		}
		c.batch = batch
		c.pos = 0
		c.afterID = batch[len(batch)-1].ID
	}

	c.current = c.batch[c.pos]
	c.pos++
	c.seen++
	return true
}

// Document returns the current document.
func (c *cursor) Document() *schema.Document {
	return c.current
}

// Err returns the error that stopped the cursor, if any.
func (c *cursor) Err() error {
	return c.err
}
