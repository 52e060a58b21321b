// Package channel names the retrieval channels a search fans out to.
package channel

// Channel is one independent candidate source.
type Channel string

// Retrieval channels.
const (
	// Vector is embedding similarity over card vectors.
	Vector Channel = "vector"
	// Lexical is BM25 over the card search document.
	Lexical Channel = "lexical"
	// Fuzzy is trigram similarity over card location text.
	Fuzzy Channel = "fuzzy"
	// Filter is structured must-constraint matching.
	Filter Channel = "filter"
)

// Order is the fixed channel order used for fusion and breakdowns.
var Order = []Channel{Vector, Lexical, Fuzzy, Filter}

// IsValid checks if the channel is one of the supported values.
func (c Channel) IsValid() bool {
	return c == Vector || c == Lexical || c == Fuzzy || c == Filter
}

// ShouldKey is the breakdown key for the should-constraint boost.
const ShouldKey = "should"

// Weights are the fusion coefficients per channel plus the should boost.
type Weights struct {
	Vector  float64 `json:"vector"`
	Lexical float64 `json:"lexical"`
	Fuzzy   float64 `json:"fuzzy"`
	Filter  float64 `json:"filter"`
	Should  float64 `json:"should"`
}

// DefaultWeights favours semantic similarity, then keywords.
func DefaultWeights() Weights {
	return Weights{Vector: 0.55, Lexical: 0.25, Fuzzy: 0.05, Filter: 0.05, Should: 0.10}
}

// Of returns the weight of channel c (0 for unknown channels).
func (w Weights) Of(c Channel) float64 {
	switch c {
	case Vector:
		return w.Vector
	case Lexical:
		return w.Lexical
	case Fuzzy:
		return w.Fuzzy
	case Filter:
		return w.Filter
	default:
		return 0
	}
}
