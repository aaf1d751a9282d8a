// Package keeper runs the memory service. It validates inputs before any
// store is touched, writes content files before their metadata commits,
// and stitches retrievals back to content through the stored path.
package keeper

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/keepsake-ai/keepsake/internal/blob"
	"github.com/keepsake-ai/keepsake/internal/config"
	"github.com/keepsake-ai/keepsake/internal/metrics"
	"github.com/keepsake-ai/keepsake/internal/model"
	"github.com/keepsake-ai/keepsake/internal/store"
)

// Keeper is the memory service handle. Everything it needs arrives at
// construction; there is no package-level state.
type Keeper struct {
	store store.Store
	blobs *blob.Store
	cfg   *config.Config
	log   zerolog.Logger
	now   func() time.Time
}

// New wires a Keeper from its parts.
func New(st store.Store, blobs *blob.Store, cfg *config.Config, log zerolog.Logger) *Keeper {
	return &Keeper{
		store: st,
		blobs: blobs,
		cfg:   cfg,
		log:   log,
		now:   time.Now,
	}
}

// Open builds a Keeper from config: the SQLite store at cfg.DBPath and
// the content root at cfg.ContentRoot, both created if missing.
func Open(cfg *config.Config, log zerolog.Logger) (*Keeper, error) {
	st, err := store.NewSQLiteStore(cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}
	blobs, err := blob.New(cfg.ContentRoot)
	if err != nil {
		st.Close()
		return nil, fmt.Errorf("open content root: %w", err)
	}
	return New(st, blobs, cfg, log), nil
}

// Close releases the underlying store.
func (k *Keeper) Close() error {
	return k.store.Close()
}

// observe records one completed operation. Deferred with a pointer to the
// named error so it sees the final outcome.
func (k *Keeper) observe(op string, start time.Time, err *error) {
	d := time.Since(start)
	metrics.RecordOp(op, d, *err == nil)
	if *err != nil {
		k.log.Debug().Str("op", op).Dur("took", d).Err(*err).Msg("operation failed")
	}
}

// refreshGauges updates the live-record and staged-file gauges.
func (k *Keeper) refreshGauges(ctx context.Context) {
	if n, err := k.store.Count(ctx); err == nil {
		metrics.SetLiveMemories(n)
	}
	if n, err := k.blobs.StagedCount(); err == nil {
		metrics.SetStagedBlobs(n)
	}
}

// pageLimit applies the shared 1..max page bound; zero means the
// configured default.
func pageLimit(limit, def, max int) (int, error) {
	if limit == 0 {
		return def, nil
	}
	if limit < 1 || limit > max {
		return 0, fmt.Errorf("limit must be between 1 and %d, got %d: %w", max, limit, model.ErrValidation)
	}
	return limit, nil
}

// InsertRequest carries a new memory.
type InsertRequest struct {
	Content  string   `json:"content"`
	Summary  string   `json:"summary"`
	Keywords []string `json:"keywords,omitempty"`
}

// InsertResult reports where a new memory landed.
type InsertResult struct {
	ID          int64  `json:"id"`
	ContentPath string `json:"content_path"`
	Bytes       int    `json:"bytes"`
}

// Insert validates the request, writes the content file, then commits the
// row, keywords and index entry in one transaction. The content write
// precedes the transaction: a failed commit leaves an orphaned file, never
// a row pointing at missing bytes.
func (k *Keeper) Insert(ctx context.Context, req InsertRequest) (res *InsertResult, err error) {
	defer k.observe("insert", time.Now(), &err)

	if strings.TrimSpace(req.Content) == "" {
		return nil, fmt.Errorf("content must not be empty: %w", model.ErrValidation)
	}
	if err := model.ValidateSummary(req.Summary); err != nil {
		return nil, err
	}
	keywords := model.NormalizeKeywords(req.Keywords)
	if err := model.ValidateKeywords(keywords); err != nil {
		return nil, err
	}

	written, err := k.blobs.Write(req.Summary, req.Content, k.now())
	if err != nil {
		return nil, err
	}

	id, err := k.store.Insert(ctx, store.InsertParams{
		ContentPath: written.Path,
		Summary:     req.Summary,
		Keywords:    keywords,
	})
	if err != nil {
		// Nothing references the file; it stays behind as an orphan.
		k.log.Warn().Str("path", written.Path).Err(err).
			Msg("insert failed after content write, file orphaned")
		return nil, err
	}

	k.log.Info().Int64("id", id).Str("path", written.Path).
		Int("bytes", written.Bytes).Msg("memory stored")
	k.refreshGauges(ctx)
	return &InsertResult{ID: id, ContentPath: written.Path, Bytes: written.Bytes}, nil
}

// UpdateRequest mutates an existing memory. Nil fields stay unchanged; an
// empty non-nil Keywords slice clears every keyword.
type UpdateRequest struct {
	ID       int64    `json:"id"`
	Content  *string  `json:"content,omitempty"`
	Summary  *string  `json:"summary,omitempty"`
	Keywords []string `json:"keywords,omitempty"`
}

// UpdateResult reports the updated memory's location.
type UpdateResult struct {
	ID          int64  `json:"id"`
	ContentPath string `json:"content_path"`
}

// Update validates the request, optionally replaces the content file in
// place, then applies metadata changes in one transaction. At least one of
// content, summary or keywords must be present. Content-only edits touch
// neither the metadata nor the index.
func (k *Keeper) Update(ctx context.Context, req UpdateRequest) (res *UpdateResult, err error) {
	defer k.observe("update", time.Now(), &err)

	if err := model.ValidateID(req.ID); err != nil {
		return nil, err
	}
	if req.Content == nil && req.Summary == nil && req.Keywords == nil {
		return nil, fmt.Errorf("update needs content, summary or keywords: %w", model.ErrValidation)
	}
	if req.Content != nil && strings.TrimSpace(*req.Content) == "" {
		return nil, fmt.Errorf("content must not be empty: %w", model.ErrValidation)
	}
	if req.Summary != nil {
		if err := model.ValidateSummary(*req.Summary); err != nil {
			return nil, err
		}
	}
	var keywords []string
	if req.Keywords != nil {
		keywords = model.NormalizeKeywords(req.Keywords)
		if keywords == nil {
			// all-blank input still means "clear", not "leave unchanged"
			keywords = []string{}
		}
		if err := model.ValidateKeywords(keywords); err != nil {
			return nil, err
		}
	}

	current, err := k.store.Get(ctx, req.ID)
	if err != nil {
		return nil, err
	}

	if req.Content != nil {
		if _, err := k.blobs.Overwrite(current.ContentPath, *req.Content); err != nil {
			return nil, err
		}
	}

	if req.Summary != nil || req.Keywords != nil {
		exists, err := k.store.Update(ctx, store.UpdateParams{
			ID:       req.ID,
			Summary:  req.Summary,
			Keywords: keywords,
		})
		if err != nil {
			return nil, err
		}
		if !exists {
			return nil, fmt.Errorf("memory %d vanished between lookup and update: %w",
				req.ID, model.ErrInconsistent)
		}
	}

	k.log.Info().Int64("id", req.ID).
		Bool("content", req.Content != nil).
		Bool("summary", req.Summary != nil).
		Bool("keywords", req.Keywords != nil).
		Msg("memory updated")
	return &UpdateResult{ID: req.ID, ContentPath: current.ContentPath}, nil
}

// GetResult is one memory with its content read back from disk.
type GetResult struct {
	Memory  model.Memory    `json:"memory"`
	Content blob.ReadResult `json:"content"`
}

// Get returns one memory and its content. Content that is missing, over
// the read cap, or unreadable degrades to a placeholder; the metadata
// always comes back.
func (k *Keeper) Get(ctx context.Context, id int64) (res *GetResult, err error) {
	defer k.observe("get", time.Now(), &err)

	if err := model.ValidateID(id); err != nil {
		return nil, err
	}
	m, err := k.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	return &GetResult{Memory: *m, Content: k.readContent(m.ContentPath)}, nil
}

// readContent performs a capped read, degrading IO failures to a
// placeholder so retrieval never dies on a bad content file.
func (k *Keeper) readContent(path string) blob.ReadResult {
	r, err := k.blobs.ReadCapped(path, k.cfg.MaxReadBytes)
	if err != nil {
		k.log.Warn().Str("path", path).Err(err).Msg("content read failed")
		return blob.ReadResult{Exists: true, Placeholder: "[content unavailable: read failed]"}
	}
	return r
}

// SearchRequest is a ranked retrieval. Nil weights fall back to the
// configured defaults; a zero Limit falls back to the configured page size.
type SearchRequest struct {
	Query         string   `json:"query"`
	Keywords      []string `json:"keywords,omitempty"`
	Limit         int      `json:"limit,omitempty"`
	SummaryWeight *float64 `json:"summary_weight,omitempty"`
	KeywordWeight *float64 `json:"keyword_weight,omitempty"`
	Lambda        *float64 `json:"lambda,omitempty"`
}

// SearchHit pairs one ranked match with its content.
type SearchHit struct {
	model.SearchHit
	Content blob.ReadResult `json:"content"`
}

// SearchResult is one ranked page plus the pre-ranking candidate total.
type SearchResult struct {
	Hits  []SearchHit `json:"results"`
	Total int         `json:"total"`
}

// Search runs ranked lexical retrieval and attaches content to each hit.
func (k *Keeper) Search(ctx context.Context, req SearchRequest) (res *SearchResult, err error) {
	start := time.Now()
	defer k.observe("search", start, &err)

	if strings.TrimSpace(req.Query) == "" {
		return nil, fmt.Errorf("query must not be empty: %w", model.ErrValidation)
	}
	boost := model.NormalizeKeywords(req.Keywords)
	if err := model.ValidateKeywords(boost); err != nil {
		return nil, err
	}
	limit, err := pageLimit(req.Limit, k.cfg.Search.Limit, model.MaxSearchLimit)
	if err != nil {
		return nil, err
	}

	params := store.SearchParams{
		Query:         req.Query,
		BoostKeywords: boost,
		Limit:         limit,
		SummaryWeight: k.cfg.Search.SummaryWeight,
		KeywordWeight: k.cfg.Search.KeywordWeight,
		Lambda:        k.cfg.Search.Lambda,
	}
	if req.SummaryWeight != nil {
		params.SummaryWeight = *req.SummaryWeight
	}
	if req.KeywordWeight != nil {
		params.KeywordWeight = *req.KeywordWeight
	}
	if req.Lambda != nil {
		if *req.Lambda < 0 {
			return nil, fmt.Errorf("lambda must not be negative, got %g: %w", *req.Lambda, model.ErrValidation)
		}
		params.Lambda = *req.Lambda
	}

	hits, total, err := k.store.Search(ctx, params)
	if err != nil {
		return nil, err
	}
	metrics.RecordSearch(time.Since(start), total)

	out := make([]SearchHit, len(hits))
	for i, h := range hits {
		out[i] = SearchHit{SearchHit: h, Content: k.readContent(h.ContentPath)}
	}
	k.log.Debug().Str("query", req.Query).Int("hits", len(out)).
		Int("candidates", total).Msg("search served")
	return &SearchResult{Hits: out, Total: total}, nil
}

// Delete removes a memory row, its keywords and its index entry. The
// content file stays behind on disk.
func (k *Keeper) Delete(ctx context.Context, id int64) (err error) {
	defer k.observe("delete", time.Now(), &err)

	if err := model.ValidateID(id); err != nil {
		return err
	}
	removed, err := k.store.Delete(ctx, id)
	if err != nil {
		return err
	}
	if !removed {
		return fmt.Errorf("memory %d: %w", id, model.ErrNotFound)
	}
	k.log.Info().Int64("id", id).Msg("memory deleted")
	k.refreshGauges(ctx)
	return nil
}

// ListRequest bounds one page.
type ListRequest struct {
	Limit  int `json:"limit,omitempty"`
	Offset int `json:"offset,omitempty"`
}

// ListResult is one page plus pagination metadata.
type ListResult struct {
	Memories []model.Memory `json:"memories"`
	Total    int            `json:"total"`
	Limit    int            `json:"limit"`
	Offset   int            `json:"offset"`
	HasMore  bool           `json:"has_more"`
}

// List returns one page of memories, most recent first.
func (k *Keeper) List(ctx context.Context, req ListRequest) (res *ListResult, err error) {
	defer k.observe("list", time.Now(), &err)

	limit, err := pageLimit(req.Limit, k.cfg.List.Limit, model.MaxListLimit)
	if err != nil {
		return nil, err
	}
	if req.Offset < 0 {
		return nil, fmt.Errorf("offset must not be negative, got %d: %w", req.Offset, model.ErrValidation)
	}

	memories, err := k.store.List(ctx, store.ListParams{Limit: limit, Offset: req.Offset})
	if err != nil {
		return nil, err
	}
	if memories == nil {
		memories = []model.Memory{}
	}
	total, err := k.store.Count(ctx)
	if err != nil {
		return nil, err
	}
	return &ListResult{
		Memories: memories,
		Total:    total,
		Limit:    limit,
		Offset:   req.Offset,
		HasMore:  req.Offset+len(memories) < total,
	}, nil
}

// ReadFile reads a file under the content root with the size cap applied.
// The path must be absolute and must resolve inside the root; it is
// checked before the disk is touched.
func (k *Keeper) ReadFile(ctx context.Context, path string) (res *blob.ReadResult, err error) {
	defer k.observe("read_file", time.Now(), &err)

	if !filepath.IsAbs(path) {
		return nil, fmt.Errorf("path must be absolute, got %q: %w", path, model.ErrValidation)
	}
	resolved, err := k.blobs.ResolveWithin(path)
	if err != nil {
		return nil, err
	}
	r, err := k.blobs.ReadCapped(resolved, k.cfg.MaxReadBytes)
	if err != nil {
		return nil, err
	}
	return &r, nil
}

// Optimize runs lexical index maintenance.
func (k *Keeper) Optimize(ctx context.Context) (err error) {
	defer k.observe("optimize", time.Now(), &err)
	return k.store.Optimize(ctx)
}

// Reindex rebuilds every lexical index entry from current metadata.
// Repair tool for an index that drifted after a crash or manual edit.
func (k *Keeper) Reindex(ctx context.Context) (n int, err error) {
	defer k.observe("reindex", time.Now(), &err)
	n, err = k.store.RebuildIndex(ctx)
	if err == nil {
		k.log.Info().Int("rebuilt", n).Msg("lexical index rebuilt")
	}
	return n, err
}

// CheckIndex reports lexical index drift without repairing it.
func (k *Keeper) CheckIndex(ctx context.Context) (*store.IndexReport, error) {
	return k.store.CheckIndex(ctx)
}

// Sweep removes staged content files older than the configured grace
// period. Runs at service start and from the sweep command.
func (k *Keeper) Sweep(ctx context.Context) (removed int, err error) {
	defer k.observe("sweep", time.Now(), &err)

	grace := time.Duration(k.cfg.Sweep.GraceHours) * time.Hour
	removed, err = k.blobs.SweepStaged(grace)
	if err == nil && removed > 0 {
		k.log.Info().Int("removed", removed).Msg("staged files swept")
	}
	k.refreshGauges(ctx)
	return removed, err
}

// Stats reports database and content-root statistics.
type Stats struct {
	*store.Stats
	ContentRoot string `json:"content_root"`
	StagedBlobs int    `json:"staged_blobs"`
}

// Stats returns database and content-root statistics.
func (k *Keeper) Stats(ctx context.Context) (res *Stats, err error) {
	defer k.observe("stats", time.Now(), &err)

	st, err := k.store.Stats(ctx, k.cfg.DBPath)
	if err != nil {
		return nil, err
	}
	staged, err := k.blobs.StagedCount()
	if err != nil {
		return nil, err
	}
	return &Stats{Stats: st, ContentRoot: k.blobs.Root(), StagedBlobs: staged}, nil
}
