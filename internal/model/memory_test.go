package model

import (
	"errors"
	"strings"
	"testing"
)

func TestNormalizeKeywords_CaseWhitespaceDupes(t *testing.T) {
	got := NormalizeKeywords([]string{"Foo", " foo ", "BAR"})
	want := []string{"foo", "bar"}
	if len(got) != len(want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("keyword %d: expected %q, got %q", i, want[i], got[i])
		}
	}
}

func TestNormalizeKeywords_Idempotent(t *testing.T) {
	raw := []string{"  Alpha", "beta ", "ALPHA", "", "gamma"}
	once := NormalizeKeywords(raw)
	twice := NormalizeKeywords(once)
	if len(once) != len(twice) {
		t.Fatalf("second pass changed length: %v vs %v", once, twice)
	}
	for i := range once {
		if once[i] != twice[i] {
			t.Errorf("second pass changed keyword %d: %q vs %q", i, once[i], twice[i])
		}
	}
}

func TestNormalizeKeywords_Empty(t *testing.T) {
	if got := NormalizeKeywords(nil); got != nil {
		t.Errorf("expected nil for nil input, got %v", got)
	}
	if got := NormalizeKeywords([]string{"", "   "}); len(got) != 0 {
		t.Errorf("expected no keywords from blank input, got %v", got)
	}
}

func TestValidateSummary_Bounds(t *testing.T) {
	if err := ValidateSummary("ok"); err != nil {
		t.Errorf("short summary should pass: %v", err)
	}
	if err := ValidateSummary(""); !errors.Is(err, ErrValidation) {
		t.Errorf("empty summary should fail validation, got %v", err)
	}
	if err := ValidateSummary(strings.Repeat("a", MaxSummaryChars)); err != nil {
		t.Errorf("summary at the cap should pass: %v", err)
	}
	if err := ValidateSummary(strings.Repeat("a", MaxSummaryChars+1)); !errors.Is(err, ErrValidation) {
		t.Errorf("oversized summary should fail validation, got %v", err)
	}
}

func TestValidateSummary_CountsRunes(t *testing.T) {
	// multi-byte characters count once each
	if err := ValidateSummary(strings.Repeat("é", MaxSummaryChars)); err != nil {
		t.Errorf("1000-rune summary should pass: %v", err)
	}
}

func TestValidateKeywords_Cap(t *testing.T) {
	ten := make([]string, MaxKeywords)
	for i := range ten {
		ten[i] = strings.Repeat("k", i+1)
	}
	if err := ValidateKeywords(ten); err != nil {
		t.Errorf("ten keywords should pass: %v", err)
	}
	if err := ValidateKeywords(append(ten, "extra")); !errors.Is(err, ErrValidation) {
		t.Errorf("eleven keywords should fail validation, got %v", err)
	}
}

func TestValidateID(t *testing.T) {
	if err := ValidateID(1); err != nil {
		t.Errorf("positive id should pass: %v", err)
	}
	for _, id := range []int64{0, -1} {
		if err := ValidateID(id); !errors.Is(err, ErrValidation) {
			t.Errorf("id %d should fail validation, got %v", id, err)
		}
	}
}
