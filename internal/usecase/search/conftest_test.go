package search

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/kailas-cloud/talentdex/internal/domain"
	"github.com/kailas-cloud/talentdex/internal/domain/person"
	"github.com/kailas-cloud/talentdex/internal/domain/search/query"
	"github.com/kailas-cloud/talentdex/internal/domain/search/result"
	"github.com/kailas-cloud/talentdex/internal/domain/session"
)

type fakeRepo struct {
	vector, lexical, fuzzy, filter []result.Candidate
	vectorErr, lexicalErr          error
	fuzzyErr, filterErr            error
	lexicalDelay                   time.Duration

	mu         sync.Mutex
	fuzzyTerms []string
	lexTerms   []string
}

func (f *fakeRepo) Vector(context.Context, []float32, query.Must, int) ([]result.Candidate, error) {
	return clone(f.vector), f.vectorErr
}

func (f *fakeRepo) Lexical(ctx context.Context, terms []string, _ query.Must, _ int) ([]result.Candidate, error) {
	f.mu.Lock()
	f.lexTerms = terms
	f.mu.Unlock()
	if f.lexicalDelay > 0 {
		select {
		case <-time.After(f.lexicalDelay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return clone(f.lexical), f.lexicalErr
}

func (f *fakeRepo) Fuzzy(_ context.Context, terms []string, _ query.Must, _ int) ([]result.Candidate, error) {
	f.mu.Lock()
	f.fuzzyTerms = terms
	f.mu.Unlock()
	return clone(f.fuzzy), f.fuzzyErr
}

func (f *fakeRepo) Filter(context.Context, query.Must, int) ([]result.Candidate, error) {
	return clone(f.filter), f.filterErr
}

func clone(c []result.Candidate) []result.Candidate {
	if c == nil {
		return nil
	}
	return append([]result.Candidate(nil), c...)
}

type fakeEmbedder struct {
	err error
}

func (f *fakeEmbedder) Embed(context.Context, string) (domain.EmbeddingResult, error) {
	if f.err != nil {
		return domain.EmbeddingResult{}, f.err
	}
	return domain.EmbeddingResult{Embedding: []float32{1, 0, 0, 0}, TotalTokens: 3}, nil
}

type fakeSessions struct {
	saved []*session.Session
	err   error
}

func (f *fakeSessions) CreateSession(_ context.Context, s *session.Session) error {
	if f.err != nil {
		return f.err
	}
	f.saved = append(f.saved, s)
	return nil
}

type fakePersons struct {
	people map[string]person.Person
	err    error
}

func (f *fakePersons) GetPersons(_ context.Context, ids []string) (map[string]person.Person, error) {
	if f.err != nil {
		return nil, f.err
	}
	out := map[string]person.Person{}
	for _, id := range ids {
		if p, ok := f.people[id]; ok {
			out[id] = p
		}
	}
	return out, nil
}

type fakeNarrator struct {
	mu    sync.Mutex
	calls int
	fail  map[string]bool
}

func (f *fakeNarrator) Narrate(_ context.Context, _ string, h result.Hit) (string, error) {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()
	if f.fail[h.CardID] {
		return "", errors.New("model unavailable")
	}
	return "Strong fit for " + h.CardID, nil
}

var baseTime = time.Date(2026, 1, 10, 12, 0, 0, 0, time.UTC)

func cand(cardID, personID string, score float64) result.Candidate {
	return result.Candidate{
		CardID:    cardID,
		PersonID:  personID,
		Title:     "Title " + cardID,
		Parent:    true,
		UpdatedAt: baseTime,
		Score:     score,
		Subject: query.Subject{
			OpenToWork:   true,
			LocationTags: []string{"berlin", "germany"},
		},
		LocationText: "berlin germany",
	}
}

func mustQuery(raw string, f query.Filters) query.Query {
	q, err := query.Normalize(raw, f, query.Vocabulary{})
	if err != nil {
		panic(err)
	}
	return q
}
