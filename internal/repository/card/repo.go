package card

import (
	"context"
	"errors"
	"fmt"

	"github.com/kailas-cloud/talentdex/internal/db"
	"github.com/kailas-cloud/talentdex/internal/domain"
	domcard "github.com/kailas-cloud/talentdex/internal/domain/card"
	"github.com/kailas-cloud/talentdex/internal/domain/search/filter"
)

// store is the consumer interface for cards (ISP).
type store interface {
	HSet(ctx context.Context, key string, fields map[string]string) error
	HSetMulti(ctx context.Context, items []db.HashSetItem) error
	HGetAll(ctx context.Context, key string) (map[string]string, error)
	HGetAllMulti(ctx context.Context, keys []string) ([]map[string]string, error)
	Del(ctx context.Context, key string) error
	Exists(ctx context.Context, key string) (bool, error)
	CreateIndex(ctx context.Context, def *db.IndexDefinition) error
	IndexExists(ctx context.Context, name string) (bool, error)
	SearchFilter(ctx context.Context, q *db.FilterQuery) (*db.SearchResult, error)
}

// maxCardsPerPerson bounds owner refreshes and per-person listings.
const maxCardsPerPerson = 1000

// Repo implements usecase/card.Repository.
type Repo struct {
	store  store
	layout Layout
	hnsw   HNSWConfig
}

// New creates a card repository.
func New(s store, layout Layout, hnsw HNSWConfig) *Repo {
	return &Repo{store: s, layout: layout, hnsw: hnsw}
}

// Layout returns the key/index layout the repository writes with.
func (r *Repo) Layout() Layout { return r.layout }

// EnsureIndex creates the FT index when missing. Returns true if it was created.
func (r *Repo) EnsureIndex(ctx context.Context) (bool, error) {
	name := r.layout.IndexName()
	exists, err := r.store.IndexExists(ctx, name)
	if err != nil {
		return false, fmt.Errorf("check index %s: %w", name, err)
	}
	if exists {
		return false, nil
	}

	def, err := buildIndex(r.layout, r.hnsw)
	if err != nil {
		return false, fmt.Errorf("build index: %w", err)
	}
	if err := r.store.CreateIndex(ctx, def); err != nil {
		if errors.Is(err, db.ErrIndexExists) {
			return false, nil
		}
		return false, fmt.Errorf("create index %s: %w", name, err)
	}
	return true, nil
}

// Put writes a card. The vector must match the schema dimension.
func (r *Repo) Put(ctx context.Context, c *domcard.Card) error {
	if err := r.checkVector(c); err != nil {
		return err
	}
	key := r.layout.Key(c.ID())
	if err := r.store.HSet(ctx, key, buildHashFields(c)); err != nil {
		return fmt.Errorf("hset %s: %w", key, err)
	}
	return nil
}

// PutMany writes cards in one pipeline.
func (r *Repo) PutMany(ctx context.Context, cards []domcard.Card) error {
	if len(cards) == 0 {
		return nil
	}
	items := make([]db.HashSetItem, 0, len(cards))
	for i := range cards {
		if err := r.checkVector(&cards[i]); err != nil {
			return err
		}
		items = append(items, db.HashSetItem{
			Key:    r.layout.Key(cards[i].ID()),
			Fields: buildHashFields(&cards[i]),
		})
	}
	if err := r.store.HSetMulti(ctx, items); err != nil {
		return fmt.Errorf("hset multi (%d cards): %w", len(items), err)
	}
	return nil
}

// Get returns a card by id.
func (r *Repo) Get(ctx context.Context, id string) (domcard.Card, error) {
	key := r.layout.Key(id)
	m, err := r.store.HGetAll(ctx, key)
	if err != nil {
		return domcard.Card{}, fmt.Errorf("hgetall %s: %w", key, err)
	}
	if len(m) == 0 {
		return domcard.Card{}, fmt.Errorf("card %s: %w", id, domain.ErrNotFound)
	}
	return parseHashFields(m), nil
}

// GetMany returns the cards that exist among ids, keyed by id.
func (r *Repo) GetMany(ctx context.Context, ids []string) (map[string]domcard.Card, error) {
	if len(ids) == 0 {
		return map[string]domcard.Card{}, nil
	}
	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = r.layout.Key(id)
	}
	maps, err := r.store.HGetAllMulti(ctx, keys)
	if err != nil {
		return nil, fmt.Errorf("hgetall multi: %w", err)
	}
	out := make(map[string]domcard.Card, len(ids))
	for i, m := range maps {
		if len(m) == 0 {
			continue
		}
		out[ids[i]] = parseHashFields(m)
	}
	return out, nil
}

// Delete removes a card.
func (r *Repo) Delete(ctx context.Context, id string) error {
	key := r.layout.Key(id)

	exists, err := r.store.Exists(ctx, key)
	if err != nil {
		return fmt.Errorf("check exists %s: %w", key, err)
	}
	if !exists {
		return fmt.Errorf("card %s: %w", id, domain.ErrNotFound)
	}

	if err := r.store.Del(ctx, key); err != nil {
		return fmt.Errorf("del %s: %w", key, err)
	}
	return nil
}

// IDsByPerson returns the ids of every card owned by personID, newest first.
func (r *Repo) IDsByPerson(ctx context.Context, personID string) ([]string, error) {
	cond, err := filter.NewMatch(FieldPersonID, personID)
	if err != nil {
		return nil, fmt.Errorf("person filter: %w", err)
	}
	expr, err := filter.NewExpression([]filter.Condition{cond}, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("person filter: %w", err)
	}

	res, err := r.store.SearchFilter(ctx, &db.FilterQuery{
		IndexName:    r.layout.IndexName(),
		Filters:      expr,
		Limit:        maxCardsPerPerson,
		SortBy:       FieldUpdatedAt,
		SortDesc:     true,
		ReturnFields: []string{FieldID},
	})
	if err != nil {
		return nil, fmt.Errorf("cards of person %s: %w", personID, err)
	}
	if res == nil {
		return nil, nil
	}
	ids := make([]string, 0, len(res.Entries))
	for _, e := range res.Entries {
		ids = append(ids, r.layout.CardID(e.Key))
	}
	return ids, nil
}

func (r *Repo) checkVector(c *domcard.Card) error {
	if got, want := len(c.Vector()), r.layout.Schema().Dimensions; got != want {
		return fmt.Errorf("card %s has %d dims, index expects %d: %w",
			c.ID(), got, want, domain.ErrVectorDimMismatch)
	}
	return nil
}
