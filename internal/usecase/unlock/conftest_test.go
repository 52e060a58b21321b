package unlock

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/kailas-cloud/talentdex/internal/domain"
	domcard "github.com/kailas-cloud/talentdex/internal/domain/card"
	domledger "github.com/kailas-cloud/talentdex/internal/domain/ledger"
	"github.com/kailas-cloud/talentdex/internal/domain/person"
	"github.com/kailas-cloud/talentdex/internal/domain/search/result"
	"github.com/kailas-cloud/talentdex/internal/domain/session"
	"github.com/kailas-cloud/talentdex/internal/storage/sqlite"
)

var testNow = time.Date(2026, 5, 20, 14, 0, 0, 0, time.UTC)

const (
	buyer     = "buyer-1"
	candidate = "cand-1"
	private   = "cand-private"
	searchID  = "search-1"
)

type fakeCards struct {
	cards map[string]domcard.Card
}

func (f *fakeCards) Get(_ context.Context, id string) (domcard.Card, error) {
	c, ok := f.cards[id]
	if !ok {
		return domcard.Card{}, fmt.Errorf("card %s: %w", id, domain.ErrNotFound)
	}
	return c, nil
}

func testCard(t *testing.T, id, personID string, searchable bool) domcard.Card {
	t.Helper()
	c, err := domcard.New(domcard.Draft{ID: id, PersonID: personID, Title: "Payments lead"}, testNow)
	if err != nil {
		t.Fatalf("card.New: %v", err)
	}
	return c.WithOwner(domcard.Owner{Searchable: searchable})
}

type fixture struct {
	store *sqlite.Store
	svc   *Service
	cards *fakeCards
}

// newFixture opens a real database with a buyer holding balance credits,
// one contactable candidate, one private candidate and a search listing both.
func newFixture(t *testing.T, balance int64) *fixture {
	t.Helper()
	ctx := context.Background()

	store, err := sqlite.Open(ctx, filepath.Join(t.TempDir(), "unlock.db"), sqlite.Options{})
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })

	people := []person.Person{
		{ID: candidate, DisplayName: "Ada", OpenToContact: true, Contact: person.Contact{
			Email: "ada@example.com", EmailVisible: false, Phone: "+1 555 0100", LinkedInURL: "https://linkedin.example/ada",
		}},
		{ID: private, DisplayName: "Grace", OpenToContact: false, Contact: person.Contact{Email: "grace@example.com"}},
	}
	for _, p := range people {
		if err := store.PutPerson(ctx, p, testNow); err != nil {
			t.Fatalf("put person: %v", err)
		}
	}
	if balance > 0 {
		if _, err := store.Credit(ctx, buyer, balance, domledger.ReasonTopUp, domledger.Reference{}, testNow); err != nil {
			t.Fatalf("credit: %v", err)
		}
	}
	putSession(t, store, searchID, buyer, session.NeverExpires)

	cards := &fakeCards{cards: map[string]domcard.Card{}}
	svc := New(store, cards, Options{Cost: 30, Timeout: 5 * time.Second})
	svc.now = func() time.Time { return testNow }
	return &fixture{store: store, svc: svc, cards: cards}
}

func putSession(t *testing.T, store *sqlite.Store, id, owner string, expires time.Time) {
	t.Helper()
	err := store.CreateSession(context.Background(), &session.Session{
		ID:            id,
		OwnerID:       owner,
		QueryOriginal: "payments",
		QueryCleaned:  "payments",
		CreatedAt:     testNow.Add(-time.Hour),
		ExpiresAt:     expires,
		Results: []result.Hit{
			{Rank: 1, PersonID: candidate, CardID: "card-1", Breakdown: map[string]float64{}},
			{Rank: 2, PersonID: private, CardID: "card-2", Breakdown: map[string]float64{}},
		},
	})
	if err != nil {
		t.Fatalf("create session: %v", err)
	}
}

func (f *fixture) balance(t *testing.T) int64 {
	t.Helper()
	b, err := f.store.Balance(context.Background(), buyer)
	if err != nil {
		t.Fatalf("balance: %v", err)
	}
	return b
}
