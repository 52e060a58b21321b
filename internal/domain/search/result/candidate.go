package result

import (
	"time"

	"github.com/kailas-cloud/talentdex/internal/domain/search/query"
)

// Candidate is one card returned by a single retrieval channel.
// Score is the channel's own score in [0,1].
type Candidate struct {
	CardID       string
	PersonID     string
	Title        string
	Parent       bool
	Curated      bool
	UpdatedAt    time.Time
	LocationText string
	Subject      query.Subject
	Score        float64
}
