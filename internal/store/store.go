// Package store provides the memory storage interface and SQLite implementation.
package store

import (
	"context"

	"github.com/keepsake-ai/keepsake/internal/model"
)

// InsertParams holds parameters for creating a memory row. Keywords must
// already be normalized, deduplicated and within the cap.
type InsertParams struct {
	ContentPath string
	Summary     string
	Keywords    []string
}

// UpdateParams holds parameters for mutating a memory row. A nil Summary
// leaves the summary unchanged. A nil Keywords slice leaves keywords
// unchanged; an empty non-nil slice clears them all.
type UpdateParams struct {
	ID       int64
	Summary  *string
	Keywords []string
}

// ListParams bounds one page of memories.
type ListParams struct {
	Limit  int
	Offset int
}

// Store defines the memory storage interface.
type Store interface {
	// Insert creates a memory row with its keywords and index entry.
	// Returns the assigned id.
	Insert(ctx context.Context, p InsertParams) (int64, error)

	// Update mutates summary and/or keywords and refreshes the index
	// entry. Returns false when the id does not exist.
	Update(ctx context.Context, p UpdateParams) (bool, error)

	// Get retrieves a memory with its keyword set.
	Get(ctx context.Context, id int64) (*model.Memory, error)

	// List returns one page of memories, most recent first.
	List(ctx context.Context, p ListParams) ([]model.Memory, error)

	// Count returns the number of live memories.
	Count(ctx context.Context) (int, error)

	// Delete removes a memory, its keywords and its index entry.
	// Returns false when the id does not exist.
	Delete(ctx context.Context, id int64) (bool, error)

	// Search runs ranked lexical retrieval. Returns the ranked page and
	// the stage-one candidate total.
	Search(ctx context.Context, p SearchParams) ([]model.SearchHit, int, error)

	// Optimize compacts the lexical index.
	Optimize(ctx context.Context) error

	// RebuildIndex recreates every index entry from current metadata.
	RebuildIndex(ctx context.Context) (int, error)

	// CheckIndex reports index entries that disagree with metadata.
	CheckIndex(ctx context.Context) (*IndexReport, error)

	// Stats returns database statistics.
	Stats(ctx context.Context, dbPath string) (*Stats, error)

	// ExportAll returns every memory with its keyword set.
	ExportAll(ctx context.Context) ([]model.Memory, error)

	// Close closes the store.
	Close() error
}
