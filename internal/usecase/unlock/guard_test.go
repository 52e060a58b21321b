package unlock

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/kailas-cloud/talentdex/internal/domain"
	domunlock "github.com/kailas-cloud/talentdex/internal/domain/unlock"
)

// fakeGuardStore simulates a lost race: the transaction fails with a unique
// conflict and the winner's record appears afterwards.
type fakeGuardStore struct {
	reads  int
	winner *domunlock.Record
	txErr  error
}

func (f *fakeGuardStore) GetIdempotency(context.Context, string, string, string) (*domunlock.Record, error) {
	f.reads++
	if f.reads == 1 {
		return nil, nil
	}
	return f.winner, nil
}

func (f *fakeGuardStore) InTx(context.Context, func(tx domunlock.Tx) error) error {
	return f.txErr
}

func TestGuard_ConflictReplaysWinner(t *testing.T) {
	store := &fakeGuardStore{
		winner: &domunlock.Record{StatusCode: 200, Body: []byte(`{"unlocked":true}`)},
		txErr:  fmt.Errorf("idempotency key: %w", domain.ErrAlreadyExists),
	}
	out, err := NewGuard(store).Execute(context.Background(), "k", "p", domunlock.Endpoint, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !out.Replayed || string(out.Body) != `{"unlocked":true}` {
		t.Errorf("outcome = %+v", out)
	}
}

func TestGuard_ConflictWithoutWinnerFails(t *testing.T) {
	store := &fakeGuardStore{txErr: domain.ErrAlreadyExists}
	_, err := NewGuard(store).Execute(context.Background(), "k", "p", domunlock.Endpoint, nil)
	if !errors.Is(err, domain.ErrTransactionFailure) {
		t.Errorf("err = %v, want ErrTransactionFailure", err)
	}
}

func TestGuard_WorkErrorPassesThrough(t *testing.T) {
	store := &fakeGuardStore{txErr: domain.ErrInsufficientFunds}
	_, err := NewGuard(store).Execute(context.Background(), "k", "p", domunlock.Endpoint, nil)
	if !errors.Is(err, domain.ErrInsufficientFunds) {
		t.Errorf("err = %v", err)
	}
	if store.reads != 1 {
		t.Errorf("reads = %d, want no re-read on business failure", store.reads)
	}
}
