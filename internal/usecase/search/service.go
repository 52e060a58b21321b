// Package search runs a talent search end to end: normalize, retrieve,
// rank, explain and persist the session.
package search

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"

	"github.com/kailas-cloud/talentdex/internal/domain/search/channel"
	"github.com/kailas-cloud/talentdex/internal/domain/search/query"
	"github.com/kailas-cloud/talentdex/internal/domain/search/result"
	"github.com/kailas-cloud/talentdex/internal/domain/session"
	"github.com/kailas-cloud/talentdex/internal/logger"
	"github.com/kailas-cloud/talentdex/internal/metrics"
	"github.com/kailas-cloud/talentdex/internal/telemetry"
)

// Service handles talent searches.
type Service struct {
	retriever *Retriever
	ranker    *Ranker
	explainer *Explainer
	sessions  SessionWriter
	persons   PersonReader
	opts      Options
	now       func() time.Time
	newID     func() string
}

// New creates a search service. explainer may be nil to skip explanations.
func New(
	repo Repository, embed Embedder, sessions SessionWriter, persons PersonReader,
	explainer *Explainer, opts Options,
) *Service {
	opts = opts.withDefaults()
	return &Service{
		retriever: NewRetriever(repo, embed, opts),
		ranker:    NewRanker(opts.Weights, opts.TieEpsilon, 0),
		explainer: explainer,
		sessions:  sessions,
		persons:   persons,
		opts:      opts,
		now:       time.Now,
		newID:     uuid.NewString,
	}
}

// Search normalizes raw, ranks matching people and stores the session.
// Malformed input fails with domain.ErrValidation.
func (s *Service) Search(
	ctx context.Context, ownerID, raw string, filters query.Filters,
) (*session.Session, error) {
	ctx, span := telemetry.Tracer().Start(ctx, "search.Search")
	defer span.End()

	sess, err := s.search(ctx, ownerID, raw, filters)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "search failed")
		metrics.SearchRequestsTotal.WithLabelValues("error").Inc()
		return nil, err
	}
	span.SetAttributes(
		attribute.String("search.id", sess.ID),
		attribute.Int("search.results", len(sess.Results)),
	)
	metrics.SearchRequestsTotal.WithLabelValues("ok").Inc()
	metrics.SearchResultsCount.Observe(float64(len(sess.Results)))
	return sess, nil
}

func (s *Service) search(
	ctx context.Context, ownerID, raw string, filters query.Filters,
) (*session.Session, error) {
	q, err := query.Normalize(raw, filters, s.opts.Vocabulary)
	if err != nil {
		return nil, fmt.Errorf("normalize query: %w", err)
	}

	got, err := s.retriever.Retrieve(ctx, q)
	if err != nil {
		return nil, err
	}

	// Rank every person first; the limit applies after hidden and deleted
	// people are dropped.
	hits := s.ranker.Rank(q, got.Candidates)
	hits, err = s.attachPeople(ctx, hits, s.opts.ResultLimit)
	if err != nil {
		return nil, err
	}
	if s.explainer != nil {
		s.explainer.Annotate(ctx, q.Cleaned(), hits)
	}

	counts := make(map[string]int, len(channel.Order))
	for _, ch := range channel.Order {
		counts[string(ch)] = got.Count(ch)
	}

	now := s.now().UTC()
	sess := &session.Session{
		ID:            s.newID(),
		OwnerID:       ownerID,
		QueryOriginal: q.Original(),
		QueryCleaned:  q.Cleaned(),
		Constraints:   q.Constraints(),
		Extra: session.Extra{
			Weights:  s.opts.Weights,
			Degraded: got.Degraded,
			Counts:   counts,
		},
		CreatedAt: now,
		ExpiresAt: session.NeverExpires,
		Results:   hits,
	}
	if err := s.sessions.CreateSession(ctx, sess); err != nil {
		return nil, fmt.Errorf("store session: %w", err)
	}

	logger.FromContext(ctx).Info("Search completed",
		zap.String("search_id", sess.ID),
		zap.Int("results", len(hits)),
		zap.Int("degraded", len(got.Degraded)),
	)
	return sess, nil
}

// attachPeople copies profile fields onto hits, drops hits whose person is
// gone or not searchable and keeps at most limit hits, renumbering ranks.
func (s *Service) attachPeople(ctx context.Context, hits []result.Hit, limit int) ([]result.Hit, error) {
	if len(hits) == 0 {
		return hits, nil
	}
	ids := make([]string, len(hits))
	for i := range hits {
		ids[i] = hits[i].PersonID
	}
	people, err := s.persons.GetPersons(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("load people: %w", err)
	}

	out := hits[:0]
	for _, h := range hits {
		p, ok := people[h.PersonID]
		if !ok || !p.Searchable() {
			continue
		}
		h.DisplayName = p.DisplayName
		h.OpenToWork = p.OpenToWork
		h.OpenToContact = p.OpenToContact
		h.Rank = len(out) + 1
		out = append(out, h)
		if len(out) == limit {
			break
		}
	}
	return out, nil
}
