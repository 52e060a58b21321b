package search

import (
	"context"

	"github.com/kailas-cloud/talentdex/internal/domain"
	"github.com/kailas-cloud/talentdex/internal/domain/person"
	"github.com/kailas-cloud/talentdex/internal/domain/search/query"
	"github.com/kailas-cloud/talentdex/internal/domain/search/result"
	"github.com/kailas-cloud/talentdex/internal/domain/session"
)

// Repository runs the per-channel candidate queries.
type Repository interface {
	Vector(ctx context.Context, vec []float32, must query.Must, k int) ([]result.Candidate, error)
	Lexical(ctx context.Context, terms []string, must query.Must, k int) ([]result.Candidate, error)
	Fuzzy(ctx context.Context, terms []string, must query.Must, k int) ([]result.Candidate, error)
	Filter(ctx context.Context, must query.Must, k int) ([]result.Candidate, error)
}

// Embedder vectorizes the cleaned query text.
type Embedder interface {
	Embed(ctx context.Context, text string) (domain.EmbeddingResult, error)
}

// SessionWriter persists executed searches.
type SessionWriter interface {
	CreateSession(ctx context.Context, s *session.Session) error
}

// PersonReader loads the profile attributes shown next to each hit.
type PersonReader interface {
	GetPersons(ctx context.Context, ids []string) (map[string]person.Person, error)
}

// Narrator writes a short natural-language reason for a match.
type Narrator interface {
	Narrate(ctx context.Context, queryText string, hit result.Hit) (string, error)
}
