package keeper

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"
)

// ExportEntry is one memory with its content attached, the unit of a
// backup produced by Export and consumed by Import.
type ExportEntry struct {
	ID          int64    `json:"id"`
	ContentPath string   `json:"content_path"`
	Summary     string   `json:"summary"`
	Keywords    []string `json:"keywords,omitempty"`
	CreatedAt   string   `json:"created_at"`
	Content     string   `json:"content,omitempty"`
}

// Export returns every memory with its content. Backups carry full
// content; the interactive read cap does not apply here. Memories whose
// content file is missing or unreadable export without content.
func (k *Keeper) Export(ctx context.Context) (entries []ExportEntry, err error) {
	defer k.observe("export", time.Now(), &err)

	memories, err := k.store.ExportAll(ctx)
	if err != nil {
		return nil, err
	}

	entries = make([]ExportEntry, 0, len(memories))
	for _, m := range memories {
		e := ExportEntry{
			ID:          m.ID,
			ContentPath: m.ContentPath,
			Summary:     m.Summary,
			Keywords:    m.Keywords,
			CreatedAt:   m.CreatedAt.UTC().Format(time.RFC3339),
		}
		r, err := k.blobs.ReadCapped(m.ContentPath, math.MaxInt64)
		switch {
		case err != nil:
			k.log.Warn().Int64("id", m.ID).Str("path", m.ContentPath).Err(err).
				Msg("export: content read failed")
		case !r.Exists:
			k.log.Warn().Int64("id", m.ID).Str("path", m.ContentPath).
				Msg("export: content file missing")
		default:
			e.Content = r.Content
		}
		entries = append(entries, e)
	}
	return entries, nil
}

// ImportReport summarizes one import run.
type ImportReport struct {
	Imported int `json:"imported"`
	Skipped  int `json:"skipped"`
}

// Import replays exported entries through Insert: every entry gets a new
// id, a new content path and a fresh timestamp. Entries without content
// are skipped rather than failing the run.
func (k *Keeper) Import(ctx context.Context, entries []ExportEntry) (rep *ImportReport, err error) {
	defer k.observe("import", time.Now(), &err)

	rep = &ImportReport{}
	for _, e := range entries {
		if strings.TrimSpace(e.Content) == "" {
			k.log.Warn().Int64("id", e.ID).Msg("import: entry has no content, skipped")
			rep.Skipped++
			continue
		}
		if _, err := k.Insert(ctx, InsertRequest{
			Content:  e.Content,
			Summary:  e.Summary,
			Keywords: e.Keywords,
		}); err != nil {
			return rep, fmt.Errorf("import entry %d: %w", e.ID, err)
		}
		rep.Imported++
	}
	k.log.Info().Int("imported", rep.Imported).Int("skipped", rep.Skipped).Msg("import complete")
	return rep, nil
}
