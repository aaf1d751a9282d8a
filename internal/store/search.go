package store

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/keepsake-ai/keepsake/internal/model"
)

// SearchParams holds parameters for ranked lexical search. Scores follow
// the bm25 convention, lower is better; Lambda scales the boost subtracted
// per matched keyword. BoostKeywords must already be normalized.
type SearchParams struct {
	Query         string
	BoostKeywords []string
	Limit         int
	SummaryWeight float64
	KeywordWeight float64
	Lambda        float64
}

var queryStripper = strings.NewReplacer(
	"(", " ", ")", " ",
	"[", " ", "]", " ",
	"{", " ", "}", " ",
)

// Sanitize prepares raw query text for the FTS5 MATCH grammar: embedded
// quotes are doubled, grouping characters stripped, whitespace runs
// collapsed to single spaces.
func Sanitize(raw string) string {
	q := strings.ReplaceAll(raw, `"`, `""`)
	q = queryStripper.Replace(q)
	return strings.Join(strings.Fields(q), " ")
}

// Search retrieves up to 2x limit candidates by weighted bm25 relevance,
// subtracts lambda per matched boost keyword, re-sorts and truncates.
// Returns the ranked page plus the stage-one candidate total.
func (s *SQLiteStore) Search(ctx context.Context, p SearchParams) ([]model.SearchHit, int, error) {
	limit := p.Limit
	if limit <= 0 {
		limit = model.DefaultSearchLimit
	}

	query := Sanitize(p.Query)
	if query == "" {
		return nil, 0, nil
	}

	hits, err := s.matchCandidates(ctx, query, p.SummaryWeight, p.KeywordWeight, 2*limit)
	if err != nil {
		// Sanitized text can still trip the MATCH grammar (bare NOT/OR,
		// dangling operators, colon filters). Retry the whole text as one
		// quoted phrase, which always parses.
		hits, err = s.matchCandidates(ctx, `"`+query+`"`, p.SummaryWeight, p.KeywordWeight, 2*limit)
	}
	if err != nil {
		return nil, 0, fmt.Errorf("search %q: %w", p.Query, err)
	}
	total := len(hits)
	if total == 0 {
		return nil, 0, nil
	}

	if len(p.BoostKeywords) > 0 {
		boost := make(map[string]struct{}, len(p.BoostKeywords))
		for _, kw := range p.BoostKeywords {
			boost[strings.ToLower(kw)] = struct{}{}
		}
		byID, err := s.keywordsForAll(ctx, hitIDs(hits))
		if err != nil {
			return nil, 0, err
		}
		for i := range hits {
			for _, kw := range byID[hits[i].ID] {
				if _, ok := boost[kw]; ok {
					hits[i].MatchedKeywords++
				}
			}
		}
	}

	for i := range hits {
		hits[i].FinalScore = hits[i].Relevance - p.Lambda*float64(hits[i].MatchedKeywords)
	}

	// Stable: candidates tied on finalScore keep their relevance order.
	sort.SliceStable(hits, func(i, j int) bool {
		return hits[i].FinalScore < hits[j].FinalScore
	})
	if len(hits) > limit {
		hits = hits[:limit]
	}
	return hits, total, nil
}

func (s *SQLiteStore) matchCandidates(ctx context.Context, match string, summaryWeight, keywordWeight float64, fetch int) ([]model.SearchHit, error) {
	// bm25 weights are per-column multipliers; they are inlined because the
	// aux-function arguments are part of the ranking expression, not data.
	query := fmt.Sprintf(
		`SELECT m.id, m.content_path, m.summary, bm25(memory_index, %s, %s) AS score
		 FROM memory_index
		 JOIN memories m ON m.id = memory_index.rowid
		 WHERE memory_index MATCH ?
		 ORDER BY score
		 LIMIT ?`,
		strconv.FormatFloat(summaryWeight, 'f', -1, 64),
		strconv.FormatFloat(keywordWeight, 'f', -1, 64))

	rows, err := s.db.QueryContext(ctx, query, match, fetch)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var hits []model.SearchHit
	for rows.Next() {
		var h model.SearchHit
		if err := rows.Scan(&h.ID, &h.ContentPath, &h.Summary, &h.Relevance); err != nil {
			return nil, err
		}
		hits = append(hits, h)
	}
	return hits, rows.Err()
}

func hitIDs(hits []model.SearchHit) []int64 {
	ids := make([]int64, len(hits))
	for i := range hits {
		ids[i] = hits[i].ID
	}
	return ids
}
