package unlock

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/kailas-cloud/talentdex/internal/domain"
	domunlock "github.com/kailas-cloud/talentdex/internal/domain/unlock"
)

// Outcome is the response an idempotent operation produced or replayed.
type Outcome struct {
	StatusCode int
	Body       []byte
	// Replayed is true when Body came from a stored record.
	Replayed bool
}

// Work does the side effects of a request inside tx and returns the
// response to store. An error rolls everything back and stores nothing.
type Work func(ctx context.Context, tx domunlock.Tx) (status int, body []byte, err error)

// Guard makes an operation execute at most once per (key, person, endpoint).
type Guard struct {
	store Store
	now   func() time.Time
}

// NewGuard creates a guard over store.
func NewGuard(store Store) *Guard {
	return &Guard{store: store, now: time.Now}
}

// Execute returns the stored response when one exists. Otherwise it runs work
// and stores its response in the same transaction. When a concurrent request
// stored its response first, the winner's response is returned.
func (g *Guard) Execute(ctx context.Context, key, personID, endpoint string, work Work) (Outcome, error) {
	if rec, err := g.store.GetIdempotency(ctx, key, personID, endpoint); err != nil {
		return Outcome{}, fmt.Errorf("read idempotency record: %w: %w", domain.ErrTransactionFailure, err)
	} else if rec != nil {
		return replay(rec), nil
	}

	var out Outcome
	err := g.store.InTx(ctx, func(tx domunlock.Tx) error {
		rec, err := tx.GetIdempotency(ctx, key, personID, endpoint)
		if err != nil {
			return err
		}
		if rec != nil {
			out = replay(rec)
			return nil
		}

		status, body, err := work(ctx, tx)
		if err != nil {
			return err
		}
		if status == 0 {
			status = http.StatusOK
		}
		rec = &domunlock.Record{Key: key, PersonID: personID, Endpoint: endpoint, StatusCode: status, Body: body}
		if err := tx.PutIdempotency(ctx, *rec, g.now()); err != nil {
			return err
		}
		out = Outcome{StatusCode: status, Body: body}
		return nil
	})
	if errors.Is(err, domain.ErrAlreadyExists) {
		rec, rerr := g.store.GetIdempotency(ctx, key, personID, endpoint)
		if rerr != nil || rec == nil {
			return Outcome{}, fmt.Errorf("re-read idempotency winner: %w", domain.ErrTransactionFailure)
		}
		return replay(rec), nil
	}
	if err != nil {
		return Outcome{}, err
	}
	return out, nil
}

func replay(rec *domunlock.Record) Outcome {
	return Outcome{StatusCode: rec.StatusCode, Body: rec.Body, Replayed: true}
}
