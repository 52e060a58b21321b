package search

import (
	"time"

	"github.com/kailas-cloud/talentdex/internal/domain/search/channel"
	"github.com/kailas-cloud/talentdex/internal/domain/search/query"
)

// Options tune retrieval and ranking.
type Options struct {
	// CandidateLimit is K, the per-channel candidate cap.
	CandidateLimit int
	// ResultLimit caps the number of people returned.
	ResultLimit    int
	ChannelTimeout time.Duration
	// MinSimilarity drops vector hits below this cosine similarity.
	MinSimilarity float64
	// FuzzyThreshold is the minimum trigram similarity of a fuzzy location hit.
	FuzzyThreshold float64
	// TieEpsilon is the fused-score distance under which tie-breaks apply.
	TieEpsilon float64
	Weights    channel.Weights
	Vocabulary query.Vocabulary
}

// DefaultOptions returns production defaults.
func DefaultOptions() Options {
	return Options{
		CandidateLimit: 100,
		ResultLimit:    20,
		ChannelTimeout: 800 * time.Millisecond,
		MinSimilarity:  0.2,
		FuzzyThreshold: 0.3,
		TieEpsilon:     1e-6,
		Weights:        channel.DefaultWeights(),
	}
}

func (o Options) withDefaults() Options {
	d := DefaultOptions()
	if o.CandidateLimit <= 0 {
		o.CandidateLimit = d.CandidateLimit
	}
	if o.ResultLimit <= 0 {
		o.ResultLimit = d.ResultLimit
	}
	if o.ChannelTimeout <= 0 {
		o.ChannelTimeout = d.ChannelTimeout
	}
	if o.TieEpsilon <= 0 {
		o.TieEpsilon = d.TieEpsilon
	}
	if o.Weights == (channel.Weights{}) {
		o.Weights = d.Weights
	}
	return o
}
