// Package unlock spends credits to reveal a person's contact details,
// exactly once per idempotency key.
package unlock

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"

	"github.com/kailas-cloud/talentdex/internal/domain"
	domledger "github.com/kailas-cloud/talentdex/internal/domain/ledger"
	domunlock "github.com/kailas-cloud/talentdex/internal/domain/unlock"
	"github.com/kailas-cloud/talentdex/internal/logger"
	"github.com/kailas-cloud/talentdex/internal/metrics"
	"github.com/kailas-cloud/talentdex/internal/telemetry"
)

// Defaults for Options.
const (
	DefaultCost    = 1
	DefaultTimeout = 5 * time.Second
)

// Options configure the unlock price and its time budget.
type Options struct {
	Cost    int64
	Timeout time.Duration
}

// Service handles contact unlocks.
type Service struct {
	guard *Guard
	cards CardReader
	opts  Options
	now   func() time.Time
}

// New creates an unlock service.
func New(store Store, cards CardReader, opts Options) *Service {
	if opts.Cost <= 0 {
		opts.Cost = DefaultCost
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	return &Service{guard: NewGuard(store), cards: cards, opts: opts, now: time.Now}
}

// Unlock reveals the target's contact for callerID and charges once.
// Replays of the same idempotency key return the stored bytes unchanged.
func (s *Service) Unlock(ctx context.Context, callerID string, req domunlock.Request) (Outcome, error) {
	ctx, span := telemetry.Tracer().Start(ctx, "unlock.Unlock")
	defer span.End()

	if err := req.Validate(); err != nil {
		metrics.UnlocksTotal.WithLabelValues("invalid").Inc()
		return Outcome{}, err
	}

	ctx, cancel := context.WithTimeout(ctx, s.opts.Timeout)
	defer cancel()

	out, err := s.guard.Execute(ctx, req.IdempotencyKey, callerID, domunlock.Endpoint,
		func(ctx context.Context, tx domunlock.Tx) (int, []byte, error) {
			return s.unlock(ctx, tx, callerID, req)
		})
	if err != nil {
		err = classify(err)
		label := outcomeLabel(err)
		metrics.UnlocksTotal.WithLabelValues(label).Inc()
		span.RecordError(err)
		span.SetStatus(codes.Error, label)
		if label == "error" {
			logger.FromContext(ctx).Error("Unlock failed", zap.String("caller", callerID), zap.Error(err))
		}
		return Outcome{}, err
	}

	label := "unlocked"
	if out.Replayed {
		label = "replayed"
	}
	metrics.UnlocksTotal.WithLabelValues(label).Inc()
	span.SetAttributes(attribute.Bool("unlock.replayed", out.Replayed))
	return out, nil
}

func (s *Service) unlock(
	ctx context.Context, tx domunlock.Tx, callerID string, req domunlock.Request,
) (int, []byte, error) {
	now := s.now()
	personID, err := s.resolveTarget(ctx, tx, callerID, req, now)
	if err != nil {
		return 0, nil, err
	}

	p, err := tx.GetPerson(ctx, personID)
	if err != nil {
		return 0, nil, err
	}
	if !p.OpenToContact {
		return 0, nil, fmt.Errorf("person %s: %w", personID, domain.ErrContactUnavailable)
	}

	paid, err := tx.HasUnlock(ctx, callerID, personID)
	if err != nil {
		return 0, nil, err
	}
	var charged int64
	if !paid {
		res, err := tx.Debit(ctx, callerID, s.opts.Cost, domledger.ReasonUnlock,
			domledger.Reference{Type: "person", ID: personID}, now)
		if err != nil {
			metrics.LedgerDebitsTotal.WithLabelValues("error").Inc()
			return 0, nil, err
		}
		if !res.Applied {
			metrics.LedgerDebitsTotal.WithLabelValues("insufficient").Inc()
			return 0, nil, fmt.Errorf("balance %d below %d: %w", res.Balance, s.opts.Cost, domain.ErrInsufficientFunds)
		}
		metrics.LedgerDebitsTotal.WithLabelValues("applied").Inc()
		if err := tx.RecordUnlock(ctx, callerID, personID, now); err != nil {
			return 0, nil, err
		}
		charged = s.opts.Cost
	}

	body, err := json.Marshal(domunlock.Response{
		Unlocked: true,
		PersonID: personID,
		Charged:  charged,
		Contact:  domunlock.Reveal(p.Contact),
	})
	if err != nil {
		return 0, nil, fmt.Errorf("encode response: %w", err)
	}
	return http.StatusOK, body, nil
}

// resolveTarget returns the person the request addresses. Searches must be
// owned by the caller, unexpired and list the person; cards must be searchable.
func (s *Service) resolveTarget(
	ctx context.Context, tx domunlock.Tx, callerID string, req domunlock.Request, now time.Time,
) (string, error) {
	if req.SearchID != "" {
		sess, err := tx.GetSession(ctx, req.SearchID)
		if err != nil {
			return "", err
		}
		if sess.OwnerID != callerID {
			return "", fmt.Errorf("search %s: %w", req.SearchID, domain.ErrNotFound)
		}
		if sess.Expired(now) {
			return "", fmt.Errorf("search %s: %w", req.SearchID, domain.ErrExpired)
		}
		if !sess.Contains(req.PersonID) {
			return "", fmt.Errorf("person %s not in search %s: %w", req.PersonID, req.SearchID, domain.ErrNotFound)
		}
		return req.PersonID, nil
	}

	c, err := s.cards.Get(ctx, req.CardID)
	if err != nil {
		return "", err
	}
	if !c.Searchable() {
		return "", fmt.Errorf("card %s: %w", req.CardID, domain.ErrNotFound)
	}
	if req.PersonID != "" && req.PersonID != c.PersonID() {
		return "", domain.NewValidationError("person_id", "does not own card_id")
	}
	return c.PersonID(), nil
}

var businessErrors = []error{
	domain.ErrValidation,
	domain.ErrNotFound,
	domain.ErrExpired,
	domain.ErrInsufficientFunds,
	domain.ErrContactUnavailable,
	domain.ErrTransactionFailure,
}

// classify keeps business outcomes and turns everything else, timeouts
// included, into a retryable transaction failure.
func classify(err error) error {
	for _, target := range businessErrors {
		if errors.Is(err, target) {
			return err
		}
	}
	return fmt.Errorf("unlock: %w: %w", domain.ErrTransactionFailure, err)
}

func outcomeLabel(err error) string {
	switch {
	case errors.Is(err, domain.ErrInsufficientFunds):
		return "insufficient_funds"
	case errors.Is(err, domain.ErrContactUnavailable):
		return "contact_unavailable"
	case errors.Is(err, domain.ErrExpired):
		return "expired"
	case errors.Is(err, domain.ErrNotFound):
		return "not_found"
	case errors.Is(err, domain.ErrValidation):
		return "invalid"
	default:
		return "error"
	}
}
