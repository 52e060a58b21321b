// Package search runs the per-channel candidate queries against the card index.
package search

import (
	"context"
	"fmt"
	"strconv"

	"github.com/kailas-cloud/talentdex/internal/db"
	"github.com/kailas-cloud/talentdex/internal/domain/search/query"
	"github.com/kailas-cloud/talentdex/internal/domain/search/result"
	cardrepo "github.com/kailas-cloud/talentdex/internal/repository/card"
)

// store is the consumer interface for search operations (ISP).
type store interface {
	SearchKNN(ctx context.Context, q *db.KNNQuery) (*db.SearchResult, error)
	SearchText(ctx context.Context, q *db.TextQuery) (*db.SearchResult, error)
	SearchFilter(ctx context.Context, q *db.FilterQuery) (*db.SearchResult, error)
}

// Repo implements usecase/search.Repository.
type Repo struct {
	store  store
	layout cardrepo.Layout
}

// New creates a search repository over the card index described by layout.
func New(s store, layout cardrepo.Layout) *Repo {
	return &Repo{store: s, layout: layout}
}

// Vector returns the k nearest searchable cards to vec that pass the
// non-location hard constraints. Scores are cosine similarities in [0,1].
func (r *Repo) Vector(ctx context.Context, vec []float32, must query.Must, k int) ([]result.Candidate, error) {
	expr, err := mustFilter(must, false)
	if err != nil {
		return nil, err
	}

	sr, err := r.store.SearchKNN(ctx, &db.KNNQuery{
		IndexName:    r.layout.IndexName(),
		Filters:      expr,
		Vector:       vec,
		K:            k,
		ReturnFields: cardrepo.SummaryFields,
	})
	if err != nil {
		return nil, fmt.Errorf("vector channel: %w", err)
	}
	return r.toCandidates(sr), nil
}

// Lexical returns up to k cards whose search document matches any term,
// scored by raw BM25.
func (r *Repo) Lexical(ctx context.Context, terms []string, must query.Must, k int) ([]result.Candidate, error) {
	if len(terms) == 0 {
		return nil, nil
	}
	expr, err := mustFilter(must, false)
	if err != nil {
		return nil, err
	}

	sr, err := r.store.SearchText(ctx, &db.TextQuery{
		IndexName:    r.layout.IndexName(),
		Field:        cardrepo.FieldSearchDoc,
		Terms:        terms,
		Filters:      expr,
		TopK:         k,
		ReturnFields: cardrepo.SummaryFields,
	})
	if err != nil {
		return nil, fmt.Errorf("lexical channel: %w", err)
	}
	return r.toCandidates(sr), nil
}

// Fuzzy returns up to k cards whose location text is within one edit of
// any term. Entries are unscored; callers re-score by trigram similarity.
func (r *Repo) Fuzzy(ctx context.Context, terms []string, must query.Must, k int) ([]result.Candidate, error) {
	if len(terms) == 0 {
		return nil, nil
	}
	expr, err := mustFilter(must, false)
	if err != nil {
		return nil, err
	}

	sr, err := r.store.SearchText(ctx, &db.TextQuery{
		IndexName:    r.layout.IndexName(),
		Field:        cardrepo.FieldLocationText,
		Terms:        terms,
		Fuzzy:        true,
		Filters:      expr,
		TopK:         k,
		ReturnFields: cardrepo.SummaryFields,
	})
	if err != nil {
		return nil, fmt.Errorf("fuzzy channel: %w", err)
	}
	return r.toCandidates(sr), nil
}

// Filter returns up to k searchable cards satisfying every hard constraint,
// newest first, each with score 1. No constraints means no candidates.
func (r *Repo) Filter(ctx context.Context, must query.Must, k int) ([]result.Candidate, error) {
	if !hasPredicates(must) {
		return nil, nil
	}
	expr, err := mustFilter(must, true)
	if err != nil {
		return nil, err
	}

	sr, err := r.store.SearchFilter(ctx, &db.FilterQuery{
		IndexName:    r.layout.IndexName(),
		Filters:      expr,
		Limit:        k,
		SortBy:       cardrepo.FieldUpdatedAt,
		SortDesc:     true,
		ReturnFields: cardrepo.SummaryFields,
	})
	if err != nil {
		return nil, fmt.Errorf("filter channel: %w", err)
	}
	cands := r.toCandidates(sr)
	for i := range cands {
		cands[i].Score = 1
	}
	return cands, nil
}

func (r *Repo) toCandidates(sr *db.SearchResult) []result.Candidate {
	if sr == nil || len(sr.Entries) == 0 {
		return nil
	}
	out := make([]result.Candidate, 0, len(sr.Entries))
	for _, e := range sr.Entries {
		out = append(out, r.toCandidate(e))
	}
	return out
}

func (r *Repo) toCandidate(e db.SearchEntry) result.Candidate {
	f := e.Fields
	id := f[cardrepo.FieldID]
	if id == "" {
		id = r.layout.CardID(e.Key)
	}
	return result.Candidate{
		CardID:       id,
		PersonID:     f[cardrepo.FieldPersonID],
		Title:        f[cardrepo.FieldTitle],
		Parent:       f[cardrepo.FieldDepth] == "0" || f[cardrepo.FieldParentID] == "",
		Curated:      f[cardrepo.FieldHumanEdited] == "1" || f[cardrepo.FieldLocked] == "1",
		UpdatedAt:    cardrepo.ParseMillis(f[cardrepo.FieldUpdatedAt]),
		LocationText: f[cardrepo.FieldLocationText],
		Score:        e.Score,
		Subject: query.Subject{
			OpenToWork:   f[cardrepo.FieldOpenToWork] == "1",
			SalaryMin:    parseOptInt(f[cardrepo.FieldSalaryMin]),
			Company:      f[cardrepo.FieldCompanyNorm],
			Domain:       f[cardrepo.FieldDomainNorm],
			SubDomain:    f[cardrepo.FieldSubDomainNorm],
			LocationTags: cardrepo.SplitList(f[cardrepo.FieldLocationTags]),
			Phrases:      cardrepo.SplitList(f[cardrepo.FieldSearchPhrases]),
		},
	}
}

func parseOptInt(s string) *int64 {
	if s == "" {
		return nil
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return nil
	}
	return &n
}
