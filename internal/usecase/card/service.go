// Package card ingests experience cards: validation, tree placement, owner
// denormalization, embedding and indexing.
package card

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/panjf2000/ants/v2"
	"go.uber.org/zap"

	"github.com/kailas-cloud/talentdex/internal/domain"
	domcard "github.com/kailas-cloud/talentdex/internal/domain/card"
	"github.com/kailas-cloud/talentdex/internal/domain/person"
)

// importChunk is how many cards one pool task embeds together.
const importChunk = 32

// Service handles card writes and reads.
type Service struct {
	repo    Repository
	persons PersonReader
	embed   domain.Embedder
	dim     int
	pool    *ants.Pool
	logger  *zap.Logger
	now     func() time.Time
	newID   func() string
}

// New creates a card service. embed must already produce document vectors
// for the index schema; dim is the schema dimension.
func New(
	repo Repository, persons PersonReader, embed domain.Embedder, dim, poolSize int, logger *zap.Logger,
) (*Service, error) {
	if poolSize < 1 {
		poolSize = 1
	}
	pool, err := ants.NewPool(poolSize)
	if err != nil {
		return nil, fmt.Errorf("import pool: %w", err)
	}
	return &Service{
		repo:    repo,
		persons: persons,
		embed:   embed,
		dim:     dim,
		pool:    pool,
		logger:  logger,
		now:     time.Now,
		newID:   uuid.NewString,
	}, nil
}

// Release stops the import pool.
func (s *Service) Release() {
	s.pool.Release()
}

// Create validates d as a card of ownerID, places it under its parent,
// embeds it and indexes it.
func (s *Service) Create(ctx context.Context, ownerID string, d domcard.Draft) (domcard.Card, error) {
	if d.PersonID != "" && d.PersonID != ownerID {
		return domcard.Card{}, domain.NewValidationError("person_id", "must be the caller")
	}
	d.PersonID = ownerID
	if d.ID == "" {
		d.ID = s.newID()
	}
	if err := s.place(ctx, &d, nil); err != nil {
		return domcard.Card{}, err
	}

	c, err := domcard.New(d, s.now())
	if err != nil {
		return domcard.Card{}, fmt.Errorf("validate card: %w: %w", domain.ErrValidation, err)
	}
	owner, err := s.owner(ctx, ownerID)
	if err != nil {
		return domcard.Card{}, err
	}
	c = c.WithOwner(owner)

	res, err := s.embed.Embed(ctx, c.EmbeddingText())
	if err != nil {
		return domcard.Card{}, fmt.Errorf("embed card: %w", err)
	}
	domain.UsageFromContext(ctx).AddTokens(domain.PurposeCard, res.TotalTokens)
	c = c.WithVector(domain.FitDimension(res.Embedding, s.dim))

	if err := s.repo.Put(ctx, &c); err != nil {
		return domcard.Card{}, fmt.Errorf("store card: %w", err)
	}
	return c, nil
}

// Get returns a card visible to callerID: searchable, or owned by the caller.
func (s *Service) Get(ctx context.Context, callerID, id string) (domcard.Card, error) {
	c, err := s.repo.Get(ctx, id)
	if err != nil {
		return domcard.Card{}, fmt.Errorf("get card: %w", err)
	}
	if c.PersonID() != callerID && !c.Searchable() {
		return domcard.Card{}, fmt.Errorf("card %s: %w", id, domain.ErrNotFound)
	}
	return c, nil
}

// Delete removes an owned card and every descendant.
func (s *Service) Delete(ctx context.Context, ownerID, id string) error {
	c, err := s.repo.Get(ctx, id)
	if err != nil {
		return fmt.Errorf("get card: %w", err)
	}
	if c.PersonID() != ownerID {
		return fmt.Errorf("card %s: %w", id, domain.ErrNotFound)
	}

	victims, err := s.descendants(ctx, ownerID, id)
	if err != nil {
		return err
	}
	// Children first, so a failure never leaves an orphan behind.
	for i := len(victims) - 1; i >= 0; i-- {
		if err := s.repo.Delete(ctx, victims[i]); err != nil && !errors.Is(err, domain.ErrNotFound) {
			return fmt.Errorf("delete card %s: %w", victims[i], err)
		}
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return fmt.Errorf("delete card: %w", err)
	}
	return nil
}

// RefreshOwner re-denormalizes the person's current attributes onto all of
// their cards. Run it after a person is written.
func (s *Service) RefreshOwner(ctx context.Context, personID string) (int, error) {
	owner, err := s.owner(ctx, personID)
	if err != nil {
		return 0, err
	}
	ids, err := s.repo.IDsByPerson(ctx, personID)
	if err != nil {
		return 0, fmt.Errorf("list cards: %w", err)
	}
	cards, err := s.repo.GetMany(ctx, ids)
	if err != nil {
		return 0, fmt.Errorf("load cards: %w", err)
	}
	updated := make([]domcard.Card, 0, len(cards))
	for _, id := range ids {
		c, ok := cards[id]
		if !ok {
			continue
		}
		updated = append(updated, c.WithOwner(owner))
	}
	if err := s.repo.PutMany(ctx, updated); err != nil {
		return 0, fmt.Errorf("store cards: %w", err)
	}
	return len(updated), nil
}

// ImportResult reports a bulk import.
type ImportResult struct {
	Imported int
	Failed   map[string]error
}

// Import validates, embeds and indexes drafts owned by any person. Parents
// may come from the same batch or the index. Embedding runs on the pool in
// chunks; a card that fails is reported and skipped.
func (s *Service) Import(ctx context.Context, drafts []domcard.Draft) (ImportResult, error) {
	out := ImportResult{Failed: make(map[string]error)}

	batch := make(map[string]*domcard.Draft, len(drafts))
	for i := range drafts {
		if drafts[i].ID == "" {
			drafts[i].ID = s.newID()
		}
		batch[drafts[i].ID] = &drafts[i]
	}

	owners := make(map[string]domcard.Owner)
	cards := make([]domcard.Card, 0, len(drafts))
	now := s.now()
	for i := range drafts {
		d := &drafts[i]
		if err := s.place(ctx, d, batch); err != nil {
			out.Failed[d.ID] = err
			continue
		}
		c, err := domcard.New(*d, now)
		if err != nil {
			out.Failed[d.ID] = fmt.Errorf("%w: %w", domain.ErrValidation, err)
			continue
		}
		owner, ok := owners[d.PersonID]
		if !ok {
			if owner, err = s.owner(ctx, d.PersonID); err != nil {
				out.Failed[d.ID] = err
				continue
			}
			owners[d.PersonID] = owner
		}
		cards = append(cards, c.WithOwner(owner))
	}

	cards = dropOrphans(cards, batch, out.Failed)
	embedded := s.embedAll(ctx, cards, out.Failed)
	embedded = dropOrphans(embedded, batch, out.Failed)
	if err := s.repo.PutMany(ctx, embedded); err != nil {
		return out, fmt.Errorf("store cards: %w", err)
	}
	out.Imported = len(embedded)
	return out, nil
}

// embedAll embeds cards in chunks on the pool and returns those that got a
// vector, in input order. Failures are recorded in failed.
func (s *Service) embedAll(ctx context.Context, cards []domcard.Card, failed map[string]error) []domcard.Card {
	vectors := make([][]float32, len(cards))
	errs := make([]error, len(cards))

	var wg sync.WaitGroup
	for start := 0; start < len(cards); start += importChunk {
		end := min(start+importChunk, len(cards))
		wg.Add(1)
		task := func() {
			defer wg.Done()
			s.embedChunk(ctx, cards[start:end], vectors[start:end], errs[start:end])
		}
		if err := s.pool.Submit(task); err != nil {
			wg.Done()
			for i := start; i < end; i++ {
				errs[i] = fmt.Errorf("submit embed task: %w", err)
			}
		}
	}
	wg.Wait()

	out := make([]domcard.Card, 0, len(cards))
	for i := range cards {
		if errs[i] != nil {
			failed[cards[i].ID()] = errs[i]
			s.logger.Warn("Card import skipped", zap.String("card_id", cards[i].ID()), zap.Error(errs[i]))
			continue
		}
		out = append(out, cards[i].WithVector(vectors[i]))
	}
	return out
}

func (s *Service) embedChunk(ctx context.Context, cards []domcard.Card, vectors [][]float32, errs []error) {
	texts := make([]string, len(cards))
	for i := range cards {
		texts[i] = cards[i].EmbeddingText()
	}

	var (
		res domain.BatchEmbeddingResult
		err error
	)
	if be, ok := s.embed.(domain.BatchEmbedder); ok {
		res, err = be.BatchEmbed(ctx, texts)
	} else {
		res, err = domain.BatchFallback(ctx, s.embed, texts)
	}
	if err == nil && len(res.Embeddings) != len(texts) {
		err = fmt.Errorf("embedder returned %d vectors for %d texts", len(res.Embeddings), len(texts))
	}
	if err != nil {
		for i := range errs {
			errs[i] = fmt.Errorf("embed card: %w", err)
		}
		return
	}
	for i, v := range res.Embeddings {
		vectors[i] = domain.FitDimension(v, s.dim)
	}
}

// place checks the parent link and sets the depth. Parents are looked up in
// batch first, then in the index; they must belong to the same person.
func (s *Service) place(ctx context.Context, d *domcard.Draft, batch map[string]*domcard.Draft) error {
	return s.placeAt(ctx, d, batch, 0)
}

func (s *Service) placeAt(ctx context.Context, d *domcard.Draft, batch map[string]*domcard.Draft, hops int) error {
	if d.ParentID == "" {
		d.Depth = 0
		return nil
	}
	// Also stops parent cycles inside a batch.
	if hops > domcard.MaxDepth {
		return domain.NewValidationError("parent_id", fmt.Sprintf("card tree deeper than %d", domcard.MaxDepth))
	}

	var (
		parentOwner string
		parentDepth int
	)
	if p, ok := batch[d.ParentID]; ok {
		if err := s.placeAt(ctx, p, batch, hops+1); err != nil {
			return err
		}
		parentOwner, parentDepth = p.PersonID, p.Depth
	} else {
		p, err := s.repo.Get(ctx, d.ParentID)
		if errors.Is(err, domain.ErrNotFound) {
			return domain.NewValidationError("parent_id", "parent card not found")
		}
		if err != nil {
			return fmt.Errorf("get parent: %w", err)
		}
		parentOwner, parentDepth = p.PersonID(), p.Depth()
	}

	if parentOwner != d.PersonID {
		return domain.NewValidationError("parent_id", "parent belongs to another person")
	}
	d.Depth = parentDepth + 1
	if d.Depth > domcard.MaxDepth {
		return domain.NewValidationError("parent_id", fmt.Sprintf("card tree deeper than %d", domcard.MaxDepth))
	}
	return nil
}

// dropOrphans removes cards whose parent was part of the batch but failed.
func dropOrphans(cards []domcard.Card, batch map[string]*domcard.Draft, failed map[string]error) []domcard.Card {
	for changed := true; changed; {
		changed = false
		kept := cards[:0]
		for _, c := range cards {
			if _, inBatch := batch[c.ParentID()]; inBatch {
				if _, bad := failed[c.ParentID()]; bad {
					failed[c.ID()] = domain.NewValidationError("parent_id", "parent card failed to import")
					changed = true
					continue
				}
			}
			kept = append(kept, c)
		}
		cards = kept
	}
	return cards
}

// descendants returns the ids of every card below id, parents before children.
func (s *Service) descendants(ctx context.Context, ownerID, id string) ([]string, error) {
	ids, err := s.repo.IDsByPerson(ctx, ownerID)
	if err != nil {
		return nil, fmt.Errorf("list cards: %w", err)
	}
	cards, err := s.repo.GetMany(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("load cards: %w", err)
	}

	children := make(map[string][]string)
	for _, cid := range ids {
		if c, ok := cards[cid]; ok && c.ParentID() != "" {
			children[c.ParentID()] = append(children[c.ParentID()], cid)
		}
	}
	var out []string
	queue := append([]string(nil), children[id]...)
	for len(queue) > 0 {
		next := queue[0]
		queue = queue[1:]
		out = append(out, next)
		queue = append(queue, children[next]...)
	}
	return out, nil
}

func (s *Service) owner(ctx context.Context, personID string) (domcard.Owner, error) {
	p, err := s.persons.GetPerson(ctx, personID)
	if errors.Is(err, domain.ErrNotFound) {
		return domcard.Owner{}, domain.NewValidationError("person_id", "unknown person "+personID)
	}
	if err != nil {
		return domcard.Owner{}, fmt.Errorf("load person: %w", err)
	}
	return ownerOf(p), nil
}

func ownerOf(p person.Person) domcard.Owner {
	return domcard.Owner{
		OpenToWork: p.OpenToWork,
		SalaryMin:  p.SalaryMin,
		SalaryMax:  p.SalaryMax,
		Searchable: p.Searchable(),
	}
}
