package noun

import (
	"errors"
	"testing"

	"github.com/seferlab/lexgraph/pkg/common"
)

func TestAdapt_CanonicalFields(t *testing.T) {
	raw := map[string]any{
		"noun_id":             "n-1",
		"surface":             "שלום",
		"gematria_value":      float64(376),
		"class":               "thing",
		"analysis":            map[string]any{"root": "שלם"},
		"sources":             []any{map[string]any{"ref": "Genesis 1:1", "offset": float64(12)}},
		"gematria_confidence": 0.97,
		"confidence":          0.92,
		"insight":             "completeness",
	}

	n, err := Adapt(raw)
	if err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if n.ID != "n-1" {
		t.Fatalf("expected id n-1, got %q", n.ID)
	}
	if n.Surface != "שלום" {
		t.Fatalf("unexpected surface %q", n.Surface)
	}
	if n.GematriaValue != 376 {
		t.Fatalf("expected gematria 376, got %d", n.GematriaValue)
	}
	if n.Class != common.ClassThing {
		t.Fatalf("expected class thing, got %q", n.Class)
	}
	if len(n.Sources) != 1 || n.Sources[0].Ref != "Genesis 1:1" {
		t.Fatalf("unexpected sources %+v", n.Sources)
	}
	if n.Sources[0].Offset == nil || *n.Sources[0].Offset != 12 {
		t.Fatalf("unexpected offset %+v", n.Sources[0].Offset)
	}
	if n.GematriaConfidence != 0.97 || n.AIConfidence != 0.92 {
		t.Fatalf("unexpected confidences %v %v", n.GematriaConfidence, n.AIConfidence)
	}
	if n.Insight != "completeness" {
		t.Fatalf("unexpected insight %q", n.Insight)
	}
	if len(n.Letters) != 4 {
		t.Fatalf("expected decomposed letters, got %v", n.Letters)
	}
}

func TestAdapt_HistoricalAliases(t *testing.T) {
	raw := map[string]any{
		"id":          "n-2",
		"hebrew_text": "חי",
		"gematria":    float64(18),
		"category":    "person",
		"ai_insight":  "life",
	}

	n, err := Adapt(raw)
	if err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if n.ID != "n-2" {
		t.Fatalf("expected id n-2, got %q", n.ID)
	}
	if n.Surface != "חי" {
		t.Fatalf("unexpected surface %q", n.Surface)
	}
	if n.GematriaValue != 18 {
		t.Fatalf("expected gematria 18, got %d", n.GematriaValue)
	}
	if n.Class != common.ClassPerson {
		t.Fatalf("expected class person, got %q", n.Class)
	}
	if n.Insight != "life" {
		t.Fatalf("unexpected insight %q", n.Insight)
	}
}

func TestAdapt_Defaults(t *testing.T) {
	n, err := Adapt(map[string]any{"surface": "שלום"})
	if err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if n.ID == "" {
		t.Fatal("expected a minted noun id")
	}
	if n.GematriaValue != 376 {
		t.Fatalf("expected computed gematria 376, got %d", n.GematriaValue)
	}
	if n.GematriaConfidence != 1.0 || n.AIConfidence != 1.0 {
		t.Fatalf("expected default confidences 1.0, got %v %v", n.GematriaConfidence, n.AIConfidence)
	}
	if n.Class != common.ClassOther {
		t.Fatalf("expected default class other, got %q", n.Class)
	}
}

func TestAdapt_RejectsPlaceholderSurface(t *testing.T) {
	for _, surface := range []any{"", "unknown", "N/A"} {
		_, err := Adapt(map[string]any{"surface": surface})
		if !errors.Is(err, ErrPlaceholderSurface) {
			t.Fatalf("surface %v: expected ErrPlaceholderSurface, got %v", surface, err)
		}
	}
}

func TestAdapt_RejectsAmbiguousAliases(t *testing.T) {
	_, err := Adapt(map[string]any{
		"surface": "שלום",
		"hebrew":  "חי",
	})
	if err == nil {
		t.Fatal("expected ambiguity error, got nil")
	}
}

func TestAdapt_AgreeingAliasesAreNotAmbiguous(t *testing.T) {
	n, err := Adapt(map[string]any{
		"surface": "שלום",
		"hebrew":  "שלום",
	})
	if err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if n.Surface != "שלום" {
		t.Fatalf("unexpected surface %q", n.Surface)
	}
}

func TestNormalize(t *testing.T) {
	n, err := Normalize(common.Noun{ID: "n-1", Surface: "שלום", Class: "weird"})
	if err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if n.GematriaValue != 376 {
		t.Fatalf("expected 376, got %d", n.GematriaValue)
	}
	if len(n.Letters) != 4 {
		t.Fatalf("expected 4 letters, got %v", n.Letters)
	}
	if n.Class != common.ClassOther {
		t.Fatalf("expected class other, got %q", n.Class)
	}

	if _, err := Normalize(common.Noun{ID: "n-2", Surface: "unknown"}); !errors.Is(err, ErrPlaceholderSurface) {
		t.Fatalf("expected ErrPlaceholderSurface, got %v", err)
	}

	if _, err := Normalize(common.Noun{Surface: "שלום"}); err == nil {
		t.Fatal("expected error for missing id, got nil")
	}
}
