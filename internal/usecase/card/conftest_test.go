package card

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/talentdex/internal/domain"
	domcard "github.com/kailas-cloud/talentdex/internal/domain/card"
	"github.com/kailas-cloud/talentdex/internal/domain/person"
)

const testDim = 4

var testNow = time.Date(2026, 6, 1, 9, 0, 0, 0, time.UTC)

// --- Mocks ---

type mockRepo struct {
	mu      sync.Mutex
	cards   map[string]domcard.Card
	putErr  error
	deleted []string
}

func newMockRepo() *mockRepo {
	return &mockRepo{cards: map[string]domcard.Card{}}
}

func (m *mockRepo) Put(_ context.Context, c *domcard.Card) error {
	if m.putErr != nil {
		return m.putErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cards[c.ID()] = *c
	return nil
}

func (m *mockRepo) PutMany(_ context.Context, cards []domcard.Card) error {
	if m.putErr != nil {
		return m.putErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, c := range cards {
		m.cards[c.ID()] = c
	}
	return nil
}

func (m *mockRepo) Get(_ context.Context, id string) (domcard.Card, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.cards[id]
	if !ok {
		return domcard.Card{}, fmt.Errorf("card %s: %w", id, domain.ErrNotFound)
	}
	return c, nil
}

func (m *mockRepo) GetMany(_ context.Context, ids []string) (map[string]domcard.Card, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := map[string]domcard.Card{}
	for _, id := range ids {
		if c, ok := m.cards[id]; ok {
			out[id] = c
		}
	}
	return out, nil
}

func (m *mockRepo) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.cards[id]; !ok {
		return fmt.Errorf("card %s: %w", id, domain.ErrNotFound)
	}
	delete(m.cards, id)
	m.deleted = append(m.deleted, id)
	return nil
}

func (m *mockRepo) IDsByPerson(_ context.Context, personID string) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var ids []string
	for id, c := range m.cards {
		if c.PersonID() == personID {
			ids = append(ids, id)
		}
	}
	return ids, nil
}

type mockPersons struct {
	people map[string]person.Person
}

func (m *mockPersons) GetPerson(_ context.Context, id string) (person.Person, error) {
	p, ok := m.people[id]
	if !ok {
		return person.Person{}, fmt.Errorf("person %s: %w", id, domain.ErrNotFound)
	}
	return p, nil
}

// mockEmbedder returns a two-dimensional vector so callers must fit it.
type mockEmbedder struct {
	mu         sync.Mutex
	failOn     string
	batchCalls int
}

func (m *mockEmbedder) Embed(_ context.Context, text string) (domain.EmbeddingResult, error) {
	if m.failOn != "" && text == m.failOn {
		return domain.EmbeddingResult{}, errors.New("provider down")
	}
	return domain.EmbeddingResult{Embedding: []float32{0.6, 0.8}, TotalTokens: 5}, nil
}

func (m *mockEmbedder) BatchEmbed(ctx context.Context, texts []string) (domain.BatchEmbeddingResult, error) {
	m.mu.Lock()
	m.batchCalls++
	m.mu.Unlock()
	return domain.BatchFallback(ctx, m, texts)
}

func int64p(v int64) *int64 { return &v }

func newTestService(t *testing.T) (*Service, *mockRepo, *mockEmbedder) {
	t.Helper()
	repo := newMockRepo()
	persons := &mockPersons{people: map[string]person.Person{
		"alice": {ID: "alice", OpenToWork: true, SalaryMin: int64p(90000)},
		"bob":   {ID: "bob"},
		"ghost": {ID: "ghost", Visibility: person.VisibilityHidden},
	}}
	emb := &mockEmbedder{}
	svc, err := New(repo, persons, emb, testDim, 2, zap.NewNop())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(svc.Release)
	svc.now = func() time.Time { return testNow }
	n := 0
	svc.newID = func() string {
		n++
		return fmt.Sprintf("gen-%d", n)
	}
	return svc, repo, emb
}
