package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/keepsake-ai/keepsake/internal/model"
)

// SQLiteStore implements Store using SQLite with an FTS5 lexical index.
// Every mutation keeps the index entry for the touched id in sync inside
// the same transaction, so the index is never observably stale.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens or creates a SQLite database at the given path.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create db dir: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(wal)&_pragma=foreign_keys(on)")
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}

	s := &SQLiteStore{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	return s, nil
}

func (s *SQLiteStore) migrate() error {
	// memory_index rows are keyed by memories.id via rowid. Sync happens
	// explicitly inside each mutating transaction rather than via triggers:
	// the keywords column aggregates rows from a second table, which a
	// trigger on memories cannot see.
	schema := `
	CREATE TABLE IF NOT EXISTS memories (
		id           INTEGER PRIMARY KEY AUTOINCREMENT,
		content_path TEXT NOT NULL UNIQUE,
		summary      TEXT NOT NULL,
		created_at   TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_memories_created ON memories(created_at DESC);

	CREATE TABLE IF NOT EXISTS memory_keywords (
		memory_id  INTEGER NOT NULL REFERENCES memories(id) ON DELETE CASCADE,
		keyword    TEXT NOT NULL,
		PRIMARY KEY (memory_id, keyword)
	);
	CREATE INDEX IF NOT EXISTS idx_keywords_keyword ON memory_keywords(keyword);

	CREATE VIRTUAL TABLE IF NOT EXISTS memory_index USING fts5(summary, keywords);
	`
	_, err := s.db.Exec(schema)
	return err
}

// syncIndex replaces the index document for id inside tx. Always delete
// then insert, so the document is a complete snapshot of current metadata.
// Keywords are joined in sorted order, the canonical form CheckIndex
// recomputes against.
func syncIndex(ctx context.Context, tx *sql.Tx, id int64, summary string, keywords []string) error {
	if _, err := tx.ExecContext(ctx, `DELETE FROM memory_index WHERE rowid = ?`, id); err != nil {
		return fmt.Errorf("drop index entry %d: %w", id, err)
	}
	sorted := make([]string, len(keywords))
	copy(sorted, keywords)
	sort.Strings(sorted)
	_, err := tx.ExecContext(ctx,
		`INSERT INTO memory_index (rowid, summary, keywords) VALUES (?, ?, ?)`,
		id, summary, strings.Join(sorted, " "))
	if err != nil {
		return fmt.Errorf("insert index entry %d: %w", id, err)
	}
	return nil
}

func (s *SQLiteStore) Insert(ctx context.Context, p InsertParams) (int64, error) {
	now := time.Now().UTC().Format(time.RFC3339)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx,
		`INSERT INTO memories (content_path, summary, created_at) VALUES (?, ?, ?)`,
		p.ContentPath, p.Summary, now)
	if err != nil {
		return 0, fmt.Errorf("insert memory: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("read new id: %w", err)
	}

	for _, kw := range p.Keywords {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO memory_keywords (memory_id, keyword) VALUES (?, ?)`, id, kw); err != nil {
			return 0, fmt.Errorf("insert keyword %q: %w", kw, err)
		}
	}

	if err := syncIndex(ctx, tx, id, p.Summary, p.Keywords); err != nil {
		return 0, err
	}

	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return id, nil
}

func (s *SQLiteStore) Update(ctx context.Context, p UpdateParams) (bool, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return false, err
	}
	defer tx.Rollback()

	var summary string
	err = tx.QueryRowContext(ctx, `SELECT summary FROM memories WHERE id = ?`, p.ID).Scan(&summary)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("load memory %d: %w", p.ID, err)
	}

	if p.Summary != nil {
		summary = *p.Summary
	}

	// Metadata edits refresh created_at, which doubles as the
	// last-modified marker.
	now := time.Now().UTC().Format(time.RFC3339)
	res, err := tx.ExecContext(ctx,
		`UPDATE memories SET summary = ?, created_at = ? WHERE id = ?`, summary, now, p.ID)
	if err != nil {
		return false, fmt.Errorf("update memory %d: %w", p.ID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("update memory %d: %w", p.ID, err)
	}
	if n != 1 {
		return false, fmt.Errorf("memory %d passed the existence check but %d rows changed: %w",
			p.ID, n, model.ErrInconsistent)
	}

	var keywords []string
	if p.Keywords != nil {
		if _, err := tx.ExecContext(ctx,
			`DELETE FROM memory_keywords WHERE memory_id = ?`, p.ID); err != nil {
			return false, fmt.Errorf("clear keywords for %d: %w", p.ID, err)
		}
		for _, kw := range p.Keywords {
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO memory_keywords (memory_id, keyword) VALUES (?, ?)`, p.ID, kw); err != nil {
				return false, fmt.Errorf("insert keyword %q: %w", kw, err)
			}
		}
		keywords = p.Keywords
	} else {
		keywords, err = keywordsForTx(ctx, tx, p.ID)
		if err != nil {
			return false, err
		}
	}

	if err := syncIndex(ctx, tx, p.ID, summary, keywords); err != nil {
		return false, err
	}

	if err := tx.Commit(); err != nil {
		return false, err
	}
	return true, nil
}

func (s *SQLiteStore) Get(ctx context.Context, id int64) (*model.Memory, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, content_path, summary, created_at FROM memories WHERE id = ?`, id)
	m, err := scanMemory(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("memory %d: %w", id, model.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}

	m.Keywords, err = s.keywordsFor(ctx, id)
	if err != nil {
		return nil, err
	}
	return &m, nil
}

func (s *SQLiteStore) List(ctx context.Context, p ListParams) ([]model.Memory, error) {
	limit := p.Limit
	if limit <= 0 {
		limit = model.DefaultListLimit
	}
	offset := p.Offset
	if offset < 0 {
		offset = 0
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, content_path, summary, created_at FROM memories
		 ORDER BY created_at DESC, id DESC
		 LIMIT ? OFFSET ?`, limit, offset)
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

func (s *SQLiteStore) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM memories`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count memories: %w", err)
	}
	return n, nil
}

func (s *SQLiteStore) Delete(ctx context.Context, id int64) (bool, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return false, err
	}
	defer tx.Rollback()

	// Keyword rows go with the memory via ON DELETE CASCADE.
	res, err := tx.ExecContext(ctx, `DELETE FROM memories WHERE id = ?`, id)
	if err != nil {
		return false, fmt.Errorf("delete memory %d: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("delete memory %d: %w", id, err)
	}
	if n == 0 {
		return false, nil
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM memory_index WHERE rowid = ?`, id); err != nil {
		return false, fmt.Errorf("drop index entry %d: %w", id, err)
	}

	if err := tx.Commit(); err != nil {
		return false, err
	}
	return true, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanMemory(row scanner) (model.Memory, error) {
	var m model.Memory
	var createdAt string
	if err := row.Scan(&m.ID, &m.ContentPath, &m.Summary, &createdAt); err != nil {
		return m, err
	}
	m.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	return m, nil
}

func (s *SQLiteStore) keywordsFor(ctx context.Context, id int64) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT keyword FROM memory_keywords WHERE memory_id = ? ORDER BY keyword`, id)
	if err != nil {
		return nil, fmt.Errorf("load keywords for %d: %w", id, err)
	}
	defer rows.Close()
	return collectKeywords(rows)
}

func keywordsForTx(ctx context.Context, tx *sql.Tx, id int64) ([]string, error) {
	rows, err := tx.QueryContext(ctx,
		`SELECT keyword FROM memory_keywords WHERE memory_id = ? ORDER BY keyword`, id)
	if err != nil {
		return nil, fmt.Errorf("load keywords for %d: %w", id, err)
	}
	defer rows.Close()
	return collectKeywords(rows)
}

func collectKeywords(rows *sql.Rows) ([]string, error) {
	var keywords []string
	for rows.Next() {
		var kw string
		if err := rows.Scan(&kw); err != nil {
			return nil, err
		}
		keywords = append(keywords, kw)
	}
	return keywords, rows.Err()
}

// attachKeywords loads keyword sets for a batch of memories in one query.
func (s *SQLiteStore) attachKeywords(ctx context.Context, memories []model.Memory) error {
	if len(memories) == 0 {
		return nil
	}
	byID, err := s.keywordsForAll(ctx, memoryIDs(memories))
	if err != nil {
		return err
	}
	for i := range memories {
		memories[i].Keywords = byID[memories[i].ID]
	}
	return nil
}

func (s *SQLiteStore) keywordsForAll(ctx context.Context, ids []int64) (map[int64][]string, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	placeholders := strings.Repeat("?,", len(ids)-1) + "?"
	args := make([]interface{}, len(ids))
	for i, id := range ids {
		args[i] = id
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT memory_id, keyword FROM memory_keywords
		 WHERE memory_id IN (`+placeholders+`) ORDER BY memory_id, keyword`, args...)
	if err != nil {
		return nil, fmt.Errorf("load keywords: %w", err)
	}
	defer rows.Close()

	byID := make(map[int64][]string, len(ids))
	for rows.Next() {
		var id int64
		var kw string
		if err := rows.Scan(&id, &kw); err != nil {
			return nil, err
		}
		byID[id] = append(byID[id], kw)
	}
	return byID, rows.Err()
}

func memoryIDs(memories []model.Memory) []int64 {
	ids := make([]int64, len(memories))
	for i := range memories {
		ids[i] = memories[i].ID
	}
	return ids
}
