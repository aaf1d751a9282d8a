package store

import (
	"context"
	"database/sql"
	"os"
)

// Stats holds database statistics.
type Stats struct {
	DBPath      string `json:"db_path"`
	DBSizeBytes int64  `json:"db_size_bytes"`
	Memories    int    `json:"memories"`
	Keywords    int    `json:"keywords"`
	IndexDocs   int    `json:"index_docs"`
	NewestAt    string `json:"newest_created_at,omitempty"`
	OldestAt    string `json:"oldest_created_at,omitempty"`
}

// Stats returns database statistics.
func (s *SQLiteStore) Stats(ctx context.Context, dbPath string) (*Stats, error) {
	st := &Stats{DBPath: dbPath}

	if info, err := os.Stat(dbPath); err == nil {
		st.DBSizeBytes = info.Size()
	}

	s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM memories`).Scan(&st.Memories)
	s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM memory_keywords`).Scan(&st.Keywords)
	s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM memory_index`).Scan(&st.IndexDocs)

	var newest, oldest sql.NullString
	s.db.QueryRowContext(ctx,
		`SELECT MAX(created_at), MIN(created_at) FROM memories`).Scan(&newest, &oldest)
	if newest.Valid {
		st.NewestAt = newest.String
	}
	if oldest.Valid {
		st.OldestAt = oldest.String
	}

	return st, nil
}
