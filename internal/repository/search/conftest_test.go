package search

import (
	"context"
	"testing"

	"github.com/kailas-cloud/talentdex/internal/db"
	"github.com/kailas-cloud/talentdex/internal/domain"
	cardrepo "github.com/kailas-cloud/talentdex/internal/repository/card"
)

// mockStore implements the consumer interface for tests.
type mockStore struct {
	searchKNNFn    func(ctx context.Context, q *db.KNNQuery) (*db.SearchResult, error)
	searchTextFn   func(ctx context.Context, q *db.TextQuery) (*db.SearchResult, error)
	searchFilterFn func(ctx context.Context, q *db.FilterQuery) (*db.SearchResult, error)
}

func (m *mockStore) SearchKNN(ctx context.Context, q *db.KNNQuery) (*db.SearchResult, error) {
	if m.searchKNNFn != nil {
		return m.searchKNNFn(ctx, q)
	}
	return &db.SearchResult{}, nil
}

func (m *mockStore) SearchText(ctx context.Context, q *db.TextQuery) (*db.SearchResult, error) {
	if m.searchTextFn != nil {
		return m.searchTextFn(ctx, q)
	}
	return &db.SearchResult{}, nil
}

func (m *mockStore) SearchFilter(ctx context.Context, q *db.FilterQuery) (*db.SearchResult, error) {
	if m.searchFilterFn != nil {
		return m.searchFilterFn(ctx, q)
	}
	return &db.SearchResult{}, nil
}

func newTestRepo(t *testing.T) (*Repo, *mockStore) {
	t.Helper()
	ms := &mockStore{}
	schema := domain.DefaultVectorSchema()
	schema.Dimensions = 4
	return New(ms, cardrepo.NewLayout("talentdex:", schema)), ms
}

func testVector() []float32 {
	return []float32{0.1, 0.1, 0.1, 0.1}
}

func cardEntry(id, person string, score float64) db.SearchEntry {
	return db.SearchEntry{
		Key:   "talentdex:card:v1:" + id,
		Score: score,
		Fields: map[string]string{
			cardrepo.FieldID:            id,
			cardrepo.FieldPersonID:      person,
			cardrepo.FieldTitle:         "Card " + id,
			cardrepo.FieldDepth:         "0",
			cardrepo.FieldCompanyNorm:   "stripe",
			cardrepo.FieldDomainNorm:    "fintech",
			cardrepo.FieldLocationText:  "berlin germany",
			cardrepo.FieldLocationTags:  "berlin,germany",
			cardrepo.FieldSearchPhrases: "go,payments,go payments",
			cardrepo.FieldHumanEdited:   "1",
			cardrepo.FieldUpdatedAt:     "1767225600000",
			cardrepo.FieldOpenToWork:    "1",
			cardrepo.FieldSalaryMin:     "90000",
		},
	}
}
