package search

import (
	"context"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/talentdex/internal/domain/search/result"
)

func TestTemplate(t *testing.T) {
	h := &result.Hit{
		CardTitle:    "Payments platform lead",
		Breakdown:    map[string]float64{"vector": 0.4, "lexical": 0.2, "fuzzy": 0, "should": 0.05},
		MatchedTerms: []string{"kafka", "stripe"},
	}
	want := `"Payments platform lead" ranked on semantic match, keyword match, preferred terms; mentions kafka, stripe.`
	if got := Template(h); got != want {
		t.Errorf("Template() = %q\nwant %q", got, want)
	}
}

func TestTemplate_NoSignal(t *testing.T) {
	h := &result.Hit{Breakdown: map[string]float64{"vector": 0}}
	if got := Template(h); got != "This experience matched your search." {
		t.Errorf("Template() = %q", got)
	}
}

func newTestExplainer(t *testing.T, n Narrator, topN int) *Explainer {
	t.Helper()
	e, err := NewExplainer(n, 2, topN, time.Second, zap.NewNop())
	if err != nil {
		t.Fatalf("NewExplainer: %v", err)
	}
	t.Cleanup(e.Release)
	return e
}

func TestAnnotate_NarratesTopN(t *testing.T) {
	n := &fakeNarrator{fail: map[string]bool{"b": true}}
	e := newTestExplainer(t, n, 2)

	hits := []result.Hit{
		{CardID: "a", Breakdown: map[string]float64{"vector": 0.5}},
		{CardID: "b", Breakdown: map[string]float64{"vector": 0.4}},
		{CardID: "c", Breakdown: map[string]float64{"lexical": 0.3}},
	}
	e.Annotate(context.Background(), "go engineer", hits)

	if n.calls != 2 {
		t.Errorf("narrator calls = %d, want 2", n.calls)
	}
	if hits[0].Explanation != "Strong fit for a" {
		t.Errorf("hit a = %q", hits[0].Explanation)
	}
	if !strings.Contains(hits[1].Explanation, "semantic match") {
		t.Errorf("hit b should fall back to template, got %q", hits[1].Explanation)
	}
	if !strings.Contains(hits[2].Explanation, "keyword match") {
		t.Errorf("hit c should use template, got %q", hits[2].Explanation)
	}
}

func TestAnnotate_WithoutNarrator(t *testing.T) {
	e := newTestExplainer(t, nil, 5)
	hits := []result.Hit{{CardID: "a", Breakdown: map[string]float64{"filter": 0.05}}}
	e.Annotate(context.Background(), "go", hits)
	if !strings.Contains(hits[0].Explanation, "meets your filters") {
		t.Errorf("explanation = %q", hits[0].Explanation)
	}
}
