package search

import (
	"math"
	"sort"

	"github.com/kailas-cloud/talentdex/internal/domain/search/channel"
	"github.com/kailas-cloud/talentdex/internal/domain/search/query"
	"github.com/kailas-cloud/talentdex/internal/domain/search/result"
)

// Ranker fuses channel scores into one ranked, person-deduplicated list.
type Ranker struct {
	weights    channel.Weights
	tieEpsilon float64
	limit      int
}

// NewRanker creates a ranker. A limit of zero keeps every person.
func NewRanker(weights channel.Weights, tieEpsilon float64, limit int) *Ranker {
	return &Ranker{weights: weights, tieEpsilon: tieEpsilon, limit: limit}
}

type fusedCard struct {
	cand    result.Candidate
	scores  map[channel.Channel]float64
	score   float64
	overlap float64
	matched []string
}

// Rank merges candidates by card, drops cards failing a hard constraint,
// orders the rest and keeps the best card per person, up to the limit.
// Scores are compared in buckets of tieEpsilon width so that near-equal
// cards fall through to the tie-breaks while the order stays transitive.
//
// fused = sum(weight[c] * score[c]) over channels + weight.should * overlap
func (r *Ranker) Rank(q query.Query, got map[channel.Channel][]result.Candidate) []result.Hit {
	byCard := make(map[string]*fusedCard)
	for _, ch := range channel.Order {
		for _, c := range got[ch] {
			fc, ok := byCard[c.CardID]
			if !ok {
				fc = &fusedCard{cand: c, scores: make(map[channel.Channel]float64, len(channel.Order))}
				byCard[c.CardID] = fc
			}
			if prev, ok := fc.scores[ch]; !ok || c.Score > prev {
				fc.scores[ch] = c.Score
			}
		}
	}

	must, should := q.Must(), q.Should()
	cards := make([]*fusedCard, 0, len(byCard))
	for _, fc := range byCard {
		subject := fc.cand.Subject
		_, subject.FuzzyLocation = fc.scores[channel.Fuzzy]
		if !must.Admits(subject) {
			continue
		}
		fc.overlap, fc.matched = should.Overlap(subject)

		for _, ch := range channel.Order {
			fc.score += r.weights.Of(ch) * fc.scores[ch]
		}
		fc.score += r.weights.Should * fc.overlap
		cards = append(cards, fc)
	}

	sort.Slice(cards, func(i, j int) bool { return r.before(cards[i], cards[j]) })

	seen := make(map[string]struct{}, len(cards))
	hits := make([]result.Hit, 0, len(cards))
	for _, fc := range cards {
		if _, dup := seen[fc.cand.PersonID]; dup {
			continue
		}
		seen[fc.cand.PersonID] = struct{}{}
		hits = append(hits, r.toHit(fc, len(hits)+1))
		if len(hits) == r.limit {
			break
		}
	}
	return hits
}

// bucket quantizes a fused score. Two cards tie when they share a bucket.
func (r *Ranker) bucket(score float64) float64 {
	if r.tieEpsilon <= 0 {
		return score
	}
	return math.Floor(score / r.tieEpsilon)
}

// before orders by score bucket; within a bucket it prefers parents, then
// curated cards, then newer cards, then the higher exact score, then the
// smaller card id.
func (r *Ranker) before(a, b *fusedCard) bool {
	if ba, bb := r.bucket(a.score), r.bucket(b.score); ba != bb {
		return ba > bb
	}
	if a.cand.Parent != b.cand.Parent {
		return a.cand.Parent
	}
	if a.cand.Curated != b.cand.Curated {
		return a.cand.Curated
	}
	if !a.cand.UpdatedAt.Equal(b.cand.UpdatedAt) {
		return a.cand.UpdatedAt.After(b.cand.UpdatedAt)
	}
	if a.score != b.score {
		return a.score > b.score
	}
	return a.cand.CardID < b.cand.CardID
}

func (r *Ranker) toHit(fc *fusedCard, rank int) result.Hit {
	breakdown := make(map[string]float64, len(channel.Order)+1)
	for _, ch := range channel.Order {
		breakdown[string(ch)] = r.weights.Of(ch) * fc.scores[ch]
	}
	breakdown[channel.ShouldKey] = r.weights.Should * fc.overlap

	return result.Hit{
		Rank:         rank,
		PersonID:     fc.cand.PersonID,
		CardID:       fc.cand.CardID,
		Score:        fc.score,
		Breakdown:    breakdown,
		MatchedTerms: fc.matched,
		CardTitle:    fc.cand.Title,
	}
}
