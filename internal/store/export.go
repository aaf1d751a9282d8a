package store

import (
	"context"

	"github.com/keepsake-ai/keepsake/internal/model"
)

// ExportAll returns every memory with its keyword set, ordered by id.
// Content does not live in the database; the service layer attaches it
// from the blob store when building a backup.
func (s *SQLiteStore) ExportAll(ctx context.Context) ([]model.Memory, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, content_path, summary, created_at FROM memories ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var memories []model.Memory
	for rows.Next() {
		m, err := scanMemory(rows)
		if err != nil {
			return nil, err
		}
		memories = append(memories, m)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	if err := s.attachKeywords(ctx, memories); err != nil {
		return nil, err
	}
	return memories, nil
}
