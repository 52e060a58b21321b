package card

import (
	"context"
	"testing"
	"time"

	"github.com/kailas-cloud/talentdex/internal/db"
	"github.com/kailas-cloud/talentdex/internal/domain"
	domcard "github.com/kailas-cloud/talentdex/internal/domain/card"
)

// mockStore is an in-memory hash store with optional hooks.
type mockStore struct {
	hashes        map[string]map[string]string
	indexes       map[string]*db.IndexDefinition
	hsetErr       error
	createIndexFn func(ctx context.Context, def *db.IndexDefinition) error
	searchFn      func(ctx context.Context, q *db.FilterQuery) (*db.SearchResult, error)
}

func newMockStore() *mockStore {
	return &mockStore{hashes: map[string]map[string]string{}, indexes: map[string]*db.IndexDefinition{}}
}

func (m *mockStore) HSet(_ context.Context, key string, fields map[string]string) error {
	if m.hsetErr != nil {
		return m.hsetErr
	}
	m.hashes[key] = fields
	return nil
}

func (m *mockStore) HSetMulti(ctx context.Context, items []db.HashSetItem) error {
	for _, it := range items {
		if err := m.HSet(ctx, it.Key, it.Fields); err != nil {
			return err
		}
	}
	return nil
}

func (m *mockStore) HGetAll(_ context.Context, key string) (map[string]string, error) {
	if h, ok := m.hashes[key]; ok {
		return h, nil
	}
	return map[string]string{}, nil
}

func (m *mockStore) HGetAllMulti(_ context.Context, keys []string) ([]map[string]string, error) {
	out := make([]map[string]string, len(keys))
	for i, k := range keys {
		out[i] = m.hashes[k]
	}
	return out, nil
}

func (m *mockStore) Del(_ context.Context, key string) error {
	delete(m.hashes, key)
	return nil
}

func (m *mockStore) Exists(_ context.Context, key string) (bool, error) {
	_, ok := m.hashes[key]
	return ok, nil
}

func (m *mockStore) CreateIndex(ctx context.Context, def *db.IndexDefinition) error {
	if m.createIndexFn != nil {
		return m.createIndexFn(ctx, def)
	}
	m.indexes[def.Name] = def
	return nil
}

func (m *mockStore) IndexExists(_ context.Context, name string) (bool, error) {
	_, ok := m.indexes[name]
	return ok, nil
}

func (m *mockStore) SearchFilter(ctx context.Context, q *db.FilterQuery) (*db.SearchResult, error) {
	if m.searchFn != nil {
		return m.searchFn(ctx, q)
	}
	return &db.SearchResult{}, nil
}

const testDim = 4

func testLayout() Layout {
	s := domain.DefaultVectorSchema()
	s.Version = 3
	s.Dimensions = testDim
	return NewLayout("talentdex:", s)
}

func newTestRepo(t *testing.T) (*Repo, *mockStore) {
	t.Helper()
	ms := newMockStore()
	return New(ms, testLayout(), HNSWConfig{M: 16, EFConstruct: 200, EFRuntime: 10}), ms
}

var testUpdatedAt = time.Date(2026, 2, 1, 10, 0, 0, 0, time.UTC)

func testCard(t *testing.T, id string) domcard.Card {
	t.Helper()
	c, err := domcard.New(domcard.Draft{
		ID:        id,
		PersonID:  "person-1",
		Title:     "Built the payments ledger",
		Context:   "Scaling double-entry bookkeeping",
		Outcome:   "Cut reconciliation time in half",
		Company:   "  Stripe ",
		Domain:    "Fintech",
		SubDomain: "Payments",
		City:      "Berlin",
		Country:   "Germany",
		Remote:    true,
		Status:    domcard.StatusPublished,
	}, testUpdatedAt)
	if err != nil {
		t.Fatalf("card.New: %v", err)
	}
	minSalary := int64(90000)
	c = c.WithOwner(domcard.Owner{OpenToWork: true, SalaryMin: &minSalary, Searchable: true})
	return c.WithVector([]float32{0.1, 0.2, 0.3, 0.4})
}
