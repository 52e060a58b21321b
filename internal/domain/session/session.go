// Package session holds persisted search sessions.
package session

import (
	"time"

	"github.com/kailas-cloud/talentdex/internal/domain/search/channel"
	"github.com/kailas-cloud/talentdex/internal/domain/search/query"
	"github.com/kailas-cloud/talentdex/internal/domain/search/result"
)

// NeverExpires is the expiry stamped on sessions that should stay readable.
var NeverExpires = time.Date(9999, time.December, 31, 23, 59, 59, 0, time.UTC)

// Extra is diagnostic data stored next to a session.
type Extra struct {
	Weights  channel.Weights   `json:"weights"`
	Degraded []channel.Channel `json:"degraded,omitempty"`
	Counts   map[string]int    `json:"counts,omitempty"`
}

// Session is an immutable snapshot of one executed search.
type Session struct {
	ID            string
	OwnerID       string
	QueryOriginal string
	QueryCleaned  string
	Constraints   query.Constraints
	Extra         Extra
	CreatedAt     time.Time
	ExpiresAt     time.Time
	Results       []result.Hit
}

// Expired reports whether the session is unreadable at now.
func (s *Session) Expired(now time.Time) bool {
	return !now.Before(s.ExpiresAt)
}

// Contains reports whether personID is among the session's results.
func (s *Session) Contains(personID string) bool {
	for i := range s.Results {
		if s.Results[i].PersonID == personID {
			return true
		}
	}
	return false
}

// Summary is the listing view of a session.
type Summary struct {
	ID            string
	QueryOriginal string
	ResultCount   int
	CreatedAt     time.Time
	ExpiresAt     time.Time
}
