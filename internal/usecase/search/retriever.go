package search

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"

	"github.com/kailas-cloud/talentdex/internal/domain"
	"github.com/kailas-cloud/talentdex/internal/domain/search/channel"
	"github.com/kailas-cloud/talentdex/internal/domain/search/query"
	"github.com/kailas-cloud/talentdex/internal/domain/search/result"
	"github.com/kailas-cloud/talentdex/internal/domain/text"
	"github.com/kailas-cloud/talentdex/internal/logger"
	"github.com/kailas-cloud/talentdex/internal/metrics"
	"github.com/kailas-cloud/talentdex/internal/telemetry"
)

// Retrieval is the fan-in of every channel for one query.
type Retrieval struct {
	Candidates map[channel.Channel][]result.Candidate
	// Degraded lists channels that failed or timed out, in channel order.
	Degraded []channel.Channel
}

// Count returns the number of candidates a channel produced.
func (r *Retrieval) Count(c channel.Channel) int { return len(r.Candidates[c]) }

type channelFunc func(ctx context.Context, q query.Query) ([]result.Candidate, error)

// Retriever runs the retrieval channels concurrently.
type Retriever struct {
	repo  Repository
	embed Embedder
	opts  Options
}

// NewRetriever creates a retriever.
func NewRetriever(repo Repository, embed Embedder, opts Options) *Retriever {
	return &Retriever{repo: repo, embed: embed, opts: opts.withDefaults()}
}

// Retrieve runs every channel with its own timeout. A failing channel
// contributes nothing and is reported as degraded; only cancellation of
// ctx itself is returned as an error.
func (r *Retriever) Retrieve(ctx context.Context, q query.Query) (*Retrieval, error) {
	funcs := map[channel.Channel]channelFunc{
		channel.Vector:  r.vector,
		channel.Lexical: r.lexical,
		channel.Fuzzy:   r.fuzzy,
		channel.Filter:  r.filter,
	}

	type outcome struct {
		cands []result.Candidate
		err   error
	}
	outcomes := make([]outcome, len(channel.Order))

	var wg sync.WaitGroup
	for i, ch := range channel.Order {
		wg.Add(1)
		go func() {
			defer wg.Done()
			cands, err := r.runChannel(ctx, ch, funcs[ch], q)
			outcomes[i] = outcome{cands: cands, err: err}
		}()
	}
	wg.Wait()

	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("retrieve: %w", err)
	}

	out := &Retrieval{Candidates: make(map[channel.Channel][]result.Candidate, len(channel.Order))}
	for i, ch := range channel.Order {
		if outcomes[i].err != nil {
			out.Degraded = append(out.Degraded, ch)
			continue
		}
		out.Candidates[ch] = outcomes[i].cands
	}
	return out, nil
}

func (r *Retriever) runChannel(
	ctx context.Context, ch channel.Channel, fn channelFunc, q query.Query,
) ([]result.Candidate, error) {
	ctx, span := telemetry.Tracer().Start(ctx, "search.channel."+string(ch))
	defer span.End()

	ctx, cancel := context.WithTimeout(ctx, r.opts.ChannelTimeout)
	defer cancel()

	start := time.Now()
	cands, err := fn(ctx, q)
	if err == nil && ctx.Err() != nil {
		err = ctx.Err()
	}

	status := "ok"
	if err != nil {
		status = "error"
		if errors.Is(err, context.DeadlineExceeded) {
			status = "timeout"
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, status)
		logger.FromContext(ctx).Warn("Search channel degraded",
			zap.String("channel", string(ch)),
			zap.String("outcome", status),
			zap.Error(err),
		)
		cands = nil
	}
	span.SetAttributes(
		attribute.String("channel", string(ch)),
		attribute.Int("candidates", len(cands)),
	)
	metrics.SearchChannelDuration.WithLabelValues(string(ch), status).Observe(time.Since(start).Seconds())
	metrics.SearchChannelCandidates.WithLabelValues(string(ch)).Observe(float64(len(cands)))
	return cands, err
}

func (r *Retriever) vector(ctx context.Context, q query.Query) ([]result.Candidate, error) {
	emb, err := r.embed.Embed(ctx, q.Cleaned())
	if err != nil {
		return nil, fmt.Errorf("vectorize query: %w", err)
	}
	domain.UsageFromContext(ctx).AddTokens(domain.PurposeQuery, emb.TotalTokens)

	cands, err := r.repo.Vector(ctx, emb.Embedding, q.Must(), r.opts.CandidateLimit)
	if err != nil {
		return nil, err
	}
	kept := cands[:0]
	for _, c := range cands {
		if c.Score >= r.opts.MinSimilarity {
			kept = append(kept, c)
		}
	}
	return kept, nil
}

func (r *Retriever) lexical(ctx context.Context, q query.Query) ([]result.Candidate, error) {
	cands, err := r.repo.Lexical(ctx, q.Should().Terms, q.Must(), r.opts.CandidateLimit)
	if err != nil {
		return nil, err
	}
	normalizeByMax(cands)
	return cands, nil
}

// fuzzy matches preferred locations (or, without any, the query terms)
// against card location text and keeps hits above the trigram threshold.
func (r *Retriever) fuzzy(ctx context.Context, q query.Query) ([]result.Candidate, error) {
	needles := q.Must().Locations
	if len(needles) == 0 {
		needles = q.Should().Terms
	}
	if len(needles) == 0 {
		return nil, nil
	}

	var terms []string
	for _, n := range needles {
		terms = append(terms, text.Tokenize(n)...)
	}

	cands, err := r.repo.Fuzzy(ctx, terms, q.Must(), r.opts.CandidateLimit)
	if err != nil {
		return nil, err
	}

	kept := cands[:0]
	for _, c := range cands {
		haystack := append([]string{c.LocationText}, c.Subject.LocationTags...)
		best := 0.0
		for _, n := range needles {
			if sim, _ := text.BestSimilarity(n, haystack); sim > best {
				best = sim
			}
		}
		if best >= r.opts.FuzzyThreshold && best > 0 {
			c.Score = best
			kept = append(kept, c)
		}
	}
	return kept, nil
}

func (r *Retriever) filter(ctx context.Context, q query.Query) ([]result.Candidate, error) {
	return r.repo.Filter(ctx, q.Must(), r.opts.CandidateLimit)
}

// normalizeByMax rescales scores into [0,1] by the largest score.
func normalizeByMax(cands []result.Candidate) {
	maxScore := 0.0
	for _, c := range cands {
		if c.Score > maxScore {
			maxScore = c.Score
		}
	}
	if maxScore <= 0 {
		for i := range cands {
			cands[i].Score = 0
		}
		return
	}
	for i := range cands {
		cands[i].Score /= maxScore
	}
}
