package ledger

import (
	"context"
	"time"

	domledger "github.com/kailas-cloud/talentdex/internal/domain/ledger"
)

// Repository defines the storage contract for wallets and the ledger.
type Repository interface {
	Balance(ctx context.Context, personID string) (int64, error)
	Credit(
		ctx context.Context, personID string, amount int64,
		reason domledger.Reason, ref domledger.Reference, at time.Time,
	) (domledger.Entry, error)
	Debit(
		ctx context.Context, personID string, amount int64,
		reason domledger.Reason, ref domledger.Reference, at time.Time,
	) (domledger.DebitResult, error)
	Entries(ctx context.Context, personID string, limit int) ([]domledger.Entry, error)
}
