package unlock

import (
	"context"

	domcard "github.com/kailas-cloud/talentdex/internal/domain/card"
	domunlock "github.com/kailas-cloud/talentdex/internal/domain/unlock"
)

// Store runs unlocks transactionally and reads stored responses outside a transaction.
type Store interface {
	InTx(ctx context.Context, fn func(tx domunlock.Tx) error) error
	GetIdempotency(ctx context.Context, key, personID, endpoint string) (*domunlock.Record, error)
}

// CardReader resolves the card path of an unlock.
type CardReader interface {
	Get(ctx context.Context, id string) (domcard.Card, error)
}
