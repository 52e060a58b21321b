// Package result holds ranked, person-level search hits.
package result

// Hit is one ranked person. The card is the best-scoring card of that person.
type Hit struct {
	Rank          int                `json:"rank"`
	PersonID      string             `json:"person_id"`
	CardID        string             `json:"card_id"`
	Score         float64            `json:"score"`
	Breakdown     map[string]float64 `json:"breakdown"`
	MatchedTerms  []string           `json:"matched_terms,omitempty"`
	Explanation   string             `json:"explanation,omitempty"`
	DisplayName   string             `json:"display_name"`
	OpenToWork    bool               `json:"open_to_work"`
	OpenToContact bool               `json:"open_to_contact"`
	CardTitle     string             `json:"card_title,omitempty"`
}

// Contribution returns the fused contribution of a breakdown key (0 if absent).
func (h *Hit) Contribution(key string) float64 {
	return h.Breakdown[key]
}
