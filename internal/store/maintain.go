package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
)

// Optimize merges the lexical index's b-tree segments. The index stays
// correct without it; this is a maintenance hook and always acknowledges
// success.
func (s *SQLiteStore) Optimize(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx,
		`INSERT INTO memory_index (memory_index) VALUES ('optimize')`); err != nil {
		return fmt.Errorf("optimize index: %w", err)
	}
	return nil
}

// RebuildIndex drops every index document and recreates them from current
// metadata, all inside one transaction. Repair tool for an index that
// drifted out of sync (crash recovery, manual edits). Returns the number
// of documents rebuilt.
func (s *SQLiteStore) RebuildIndex(ctx context.Context) (int, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	records, err := loadIndexSource(ctx, tx)
	if err != nil {
		return 0, err
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM memory_index`); err != nil {
		return 0, fmt.Errorf("clear index: %w", err)
	}
	for _, r := range records {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO memory_index (rowid, summary, keywords) VALUES (?, ?, ?)`,
			r.id, r.summary, r.keywords); err != nil {
			return 0, fmt.Errorf("rebuild index entry %d: %w", r.id, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return len(records), nil
}

// IndexReport summarizes lexical index consistency against the metadata.
type IndexReport struct {
	Records    int `json:"records"`
	IndexDocs  int `json:"index_docs"`
	Missing    int `json:"missing"`
	Extra      int `json:"extra"`
	Mismatched int `json:"mismatched"`
}

// Clean reports whether the index exactly mirrors the metadata.
func (r *IndexReport) Clean() bool {
	return r.Missing == 0 && r.Extra == 0 && r.Mismatched == 0
}

// CheckIndex compares every index document against the metadata it should
// mirror: missing documents, orphaned documents, and documents whose text
// disagrees with the current summary or keyword set.
func (s *SQLiteStore) CheckIndex(ctx context.Context) (*IndexReport, error) {
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{ReadOnly: true})
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	records, err := loadIndexSource(ctx, tx)
	if err != nil {
		return nil, err
	}

	type doc struct {
		summary  string
		keywords string
	}
	docs := make(map[int64]doc)
	rows, err := tx.QueryContext(ctx, `SELECT rowid, summary, keywords FROM memory_index`)
	if err != nil {
		return nil, fmt.Errorf("read index: %w", err)
	}
	for rows.Next() {
		var id int64
		var d doc
		if err := rows.Scan(&id, &d.summary, &d.keywords); err != nil {
			rows.Close()
			return nil, err
		}
		docs[id] = d
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	report := &IndexReport{Records: len(records), IndexDocs: len(docs)}
	for _, r := range records {
		d, ok := docs[r.id]
		if !ok {
			report.Missing++
			continue
		}
		if d.summary != r.summary || d.keywords != r.keywords {
			report.Mismatched++
		}
		delete(docs, r.id)
	}
	report.Extra = len(docs)
	return report, nil
}

type indexSource struct {
	id       int64
	summary  string
	keywords string
}

// loadIndexSource reads every memory with its space-joined keyword set,
// the exact text an index document should hold.
func loadIndexSource(ctx context.Context, tx *sql.Tx) ([]indexSource, error) {
	rows, err := tx.QueryContext(ctx, `SELECT id, summary FROM memories ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("read memories: %w", err)
	}
	var records []indexSource
	byID := make(map[int64]int)
	for rows.Next() {
		var r indexSource
		if err := rows.Scan(&r.id, &r.summary); err != nil {
			rows.Close()
			return nil, err
		}
		byID[r.id] = len(records)
		records = append(records, r)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	kwRows, err := tx.QueryContext(ctx,
		`SELECT memory_id, keyword FROM memory_keywords ORDER BY memory_id, keyword`)
	if err != nil {
		return nil, fmt.Errorf("read keywords: %w", err)
	}
	defer kwRows.Close()

	joined := make(map[int64][]string)
	for kwRows.Next() {
		var id int64
		var kw string
		if err := kwRows.Scan(&id, &kw); err != nil {
			return nil, err
		}
		joined[id] = append(joined[id], kw)
	}
	if err := kwRows.Err(); err != nil {
		return nil, err
	}

	for id, kws := range joined {
		if i, ok := byID[id]; ok {
			records[i].keywords = strings.Join(kws, " ")
		}
	}
	return records, nil
}
