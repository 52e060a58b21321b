// Package ledger exposes wallet balances, credits and conditional debits.
package ledger

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/kailas-cloud/talentdex/internal/domain"
	domledger "github.com/kailas-cloud/talentdex/internal/domain/ledger"
	"github.com/kailas-cloud/talentdex/internal/metrics"
)

// Entry listing limits.
const (
	DefaultEntriesLimit = 50
	MaxEntriesLimit     = 500
)

// Service handles wallet operations.
type Service struct {
	repo Repository
	now  func() time.Time
}

// New creates a ledger service.
func New(repo Repository) *Service {
	return &Service{repo: repo, now: time.Now}
}

// Balance returns the wallet balance. A person without a wallet has 0.
func (s *Service) Balance(ctx context.Context, personID string) (int64, error) {
	if err := requirePerson(personID); err != nil {
		return 0, err
	}
	b, err := s.repo.Balance(ctx, personID)
	if err != nil {
		return 0, fmt.Errorf("read balance: %w", err)
	}
	return b, nil
}

// Credit adds a positive amount and returns the written entry.
func (s *Service) Credit(
	ctx context.Context, personID string, amount int64, reason domledger.Reason, ref domledger.Reference,
) (domledger.Entry, error) {
	if err := validate(personID, amount); err != nil {
		return domledger.Entry{}, err
	}
	e, err := s.repo.Credit(ctx, personID, amount, reason, ref, s.now())
	if err != nil {
		return domledger.Entry{}, fmt.Errorf("credit wallet: %w", err)
	}
	return e, nil
}

// Debit subtracts amount when the balance covers it. A short balance is a
// soft outcome: Applied is false, nothing is written and err is nil.
func (s *Service) Debit(
	ctx context.Context, personID string, amount int64, reason domledger.Reason, ref domledger.Reference,
) (domledger.DebitResult, error) {
	if err := validate(personID, amount); err != nil {
		return domledger.DebitResult{}, err
	}
	res, err := s.repo.Debit(ctx, personID, amount, reason, ref, s.now())
	if err != nil {
		metrics.LedgerDebitsTotal.WithLabelValues("error").Inc()
		return domledger.DebitResult{}, fmt.Errorf("debit wallet: %w", err)
	}
	if res.Applied {
		metrics.LedgerDebitsTotal.WithLabelValues("applied").Inc()
	} else {
		metrics.LedgerDebitsTotal.WithLabelValues("insufficient").Inc()
	}
	return res, nil
}

// Entries returns up to limit entries in write order. Zero means DefaultEntriesLimit.
func (s *Service) Entries(ctx context.Context, personID string, limit int) ([]domledger.Entry, error) {
	if err := requirePerson(personID); err != nil {
		return nil, err
	}
	switch {
	case limit < 0:
		return nil, domain.NewValidationError("limit", "must be non-negative")
	case limit == 0:
		limit = DefaultEntriesLimit
	case limit > MaxEntriesLimit:
		limit = MaxEntriesLimit
	}
	out, err := s.repo.Entries(ctx, personID, limit)
	if err != nil {
		return nil, fmt.Errorf("list ledger: %w", err)
	}
	return out, nil
}

func validate(personID string, amount int64) error {
	if err := requirePerson(personID); err != nil {
		return err
	}
	if err := domledger.ValidateAmount(amount); err != nil {
		return domain.NewValidationError("amount", err.Error())
	}
	return nil
}

func requirePerson(personID string) error {
	if strings.TrimSpace(personID) == "" {
		return domain.NewValidationError("person_id", "is required")
	}
	return nil
}
