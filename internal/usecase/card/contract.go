package card

import (
	"context"

	domcard "github.com/kailas-cloud/talentdex/internal/domain/card"
	"github.com/kailas-cloud/talentdex/internal/domain/person"
)

// Repository defines the storage contract for indexed cards.
type Repository interface {
	Put(ctx context.Context, c *domcard.Card) error
	PutMany(ctx context.Context, cards []domcard.Card) error
	Get(ctx context.Context, id string) (domcard.Card, error)
	GetMany(ctx context.Context, ids []string) (map[string]domcard.Card, error)
	Delete(ctx context.Context, id string) error
	IDsByPerson(ctx context.Context, personID string) ([]string, error)
}

// PersonReader loads the owner attributes denormalized onto cards.
type PersonReader interface {
	GetPerson(ctx context.Context, id string) (person.Person, error)
}
