// Package model defines the core memory data types.
package model

import (
	"fmt"
	"strings"
	"time"
	"unicode/utf8"
)

// Input bounds and defaults enforced at the service boundary.
const (
	MaxKeywords     = 10
	MaxSummaryChars = 1000

	MaxSearchLimit     = 100
	DefaultSearchLimit = 10
	MaxListLimit       = 100
	DefaultListLimit   = 20

	DefaultSummaryWeight = 0.8
	DefaultKeywordWeight = 2.0
	DefaultLambda        = 1.0
)

// Memory is one stored memory: a short summary plus keyword hints, with the
// full content held in a markdown file referenced by ContentPath.
type Memory struct {
	ID          int64     `json:"id"`
	ContentPath string    `json:"content_path"`
	Summary     string    `json:"summary"`
	Keywords    []string  `json:"keywords,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// SearchHit is one ranked search result. Scores follow the BM25 convention:
// lower means more relevant.
type SearchHit struct {
	ID              int64   `json:"id"`
	ContentPath     string  `json:"content_path"`
	Summary         string  `json:"summary"`
	Relevance       float64 `json:"relevance"`
	MatchedKeywords int     `json:"matched_keywords"`
	FinalScore      float64 `json:"final_score"`
}

// NormalizeKeywords trims and lower-cases each keyword, drops empties, and
// de-duplicates preserving first-occurrence order. Idempotent: applying it
// to its own output returns the same list.
func NormalizeKeywords(raw []string) []string {
	if len(raw) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(raw))
	out := make([]string, 0, len(raw))
	for _, kw := range raw {
		kw = strings.ToLower(strings.TrimSpace(kw))
		if kw == "" {
			continue
		}
		if _, dup := seen[kw]; dup {
			continue
		}
		seen[kw] = struct{}{}
		out = append(out, kw)
	}
	return out
}

// ValidateSummary enforces the 1-1000 character bound.
func ValidateSummary(summary string) error {
	n := utf8.RuneCountInString(summary)
	if n == 0 {
		return fmt.Errorf("summary must not be empty: %w", ErrValidation)
	}
	if n > MaxSummaryChars {
		return fmt.Errorf("summary is %d characters, max %d: %w", n, MaxSummaryChars, ErrValidation)
	}
	return nil
}

// ValidateKeywords enforces the distinct-keyword cap on a normalized list.
func ValidateKeywords(normalized []string) error {
	if len(normalized) > MaxKeywords {
		return fmt.Errorf("%d keywords, max %d: %w", len(normalized), MaxKeywords, ErrValidation)
	}
	return nil
}

// ValidateID rejects ids outside the positive integer range.
func ValidateID(id int64) error {
	if id <= 0 {
		return fmt.Errorf("id must be a positive integer, got %d: %w", id, ErrValidation)
	}
	return nil
}
