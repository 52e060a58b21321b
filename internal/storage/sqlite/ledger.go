package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/kailas-cloud/talentdex/internal/domain"
	"github.com/kailas-cloud/talentdex/internal/domain/ledger"
)

// Balance returns the wallet balance; a missing wallet reads as 0.
func (s *Store) Balance(ctx context.Context, personID string) (int64, error) {
	return balance(ctx, s.sqlDB, personID)
}

func balance(ctx context.Context, q queryer, personID string) (int64, error) {
	var b int64
	err := q.QueryRowContext(ctx, `SELECT balance FROM wallets WHERE person_id = ?`, personID).Scan(&b)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("read balance: %w", err)
	}
	return b, nil
}

// Credit adds amount to the wallet, creating it at zero first, and appends
// a positive ledger entry.
func (s *Store) Credit(
	ctx context.Context, personID string, amount int64, reason ledger.Reason, ref ledger.Reference, at time.Time,
) (ledger.Entry, error) {
	if err := ledger.ValidateAmount(amount); err != nil {
		return ledger.Entry{}, fmt.Errorf("%w: %w", domain.ErrValidation, err)
	}

	var entry ledger.Entry
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		var after int64
		err := tx.QueryRowContext(ctx, `
			INSERT INTO wallets (person_id, balance, updated_at) VALUES (?, ?, ?)
			ON CONFLICT (person_id) DO UPDATE SET
				balance = balance + excluded.balance,
				updated_at = excluded.updated_at
			RETURNING balance`,
			personID, amount, toMillis(at),
		).Scan(&after)
		if err != nil {
			return fmt.Errorf("credit wallet: %w", err)
		}
		entry, err = appendEntry(ctx, tx, personID, amount, reason, ref, after, at)
		return err
	})
	if err != nil {
		return ledger.Entry{}, err
	}
	return entry, nil
}

// Debit runs a conditional debit in its own transaction.
func (s *Store) Debit(
	ctx context.Context, personID string, amount int64, reason ledger.Reason, ref ledger.Reference, at time.Time,
) (ledger.DebitResult, error) {
	var res ledger.DebitResult
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		var err error
		res, err = debit(ctx, tx, personID, amount, reason, ref, at)
		return err
	})
	return res, err
}

// Debit runs a conditional debit inside the transaction.
func (t *Tx) Debit(
	ctx context.Context, personID string, amount int64, reason ledger.Reason, ref ledger.Reference, at time.Time,
) (ledger.DebitResult, error) {
	return debit(ctx, t.tx, personID, amount, reason, ref, at)
}

// debit subtracts amount only when the balance covers it. When it does not,
// nothing is written and Applied is false.
func debit(
	ctx context.Context, q queryer, personID string, amount int64,
	reason ledger.Reason, ref ledger.Reference, at time.Time,
) (ledger.DebitResult, error) {
	if err := ledger.ValidateAmount(amount); err != nil {
		return ledger.DebitResult{}, fmt.Errorf("%w: %w", domain.ErrValidation, err)
	}

	var after int64
	err := q.QueryRowContext(ctx, `
		UPDATE wallets SET balance = balance - ?, updated_at = ?
		WHERE person_id = ? AND balance >= ?
		RETURNING balance`,
		amount, toMillis(at), personID, amount,
	).Scan(&after)
	if errors.Is(err, sql.ErrNoRows) {
		current, err := balance(ctx, q, personID)
		if err != nil {
			return ledger.DebitResult{}, err
		}
		return ledger.DebitResult{Applied: false, Balance: current}, nil
	}
	if err != nil {
		return ledger.DebitResult{}, fmt.Errorf("debit wallet: %w", err)
	}

	entry, err := appendEntry(ctx, q, personID, -amount, reason, ref, after, at)
	if err != nil {
		return ledger.DebitResult{}, err
	}
	return ledger.DebitResult{Applied: true, Balance: after, Entry: entry}, nil
}

func appendEntry(
	ctx context.Context, q queryer, personID string, amount int64,
	reason ledger.Reason, ref ledger.Reference, after int64, at time.Time,
) (ledger.Entry, error) {
	var id int64
	err := q.QueryRowContext(ctx, `
		INSERT INTO ledger_entries (person_id, amount, reason, reference_type, reference_id,
			balance_after, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		RETURNING id`,
		personID, amount, string(reason), ref.Type, ref.ID, after, toMillis(at),
	).Scan(&id)
	if err != nil {
		return ledger.Entry{}, fmt.Errorf("append ledger entry: %w", err)
	}
	return ledger.Entry{
		ID:           id,
		PersonID:     personID,
		Amount:       amount,
		Reason:       reason,
		Reference:    ref,
		BalanceAfter: after,
		CreatedAt:    fromMillis(toMillis(at)),
	}, nil
}

// Entries returns up to limit ledger entries in write order.
func (s *Store) Entries(ctx context.Context, personID string, limit int) ([]ledger.Entry, error) {
	rows, err := s.sqlDB.QueryContext(ctx, `
		SELECT id, person_id, amount, reason, reference_type, reference_id, balance_after, created_at
		FROM ledger_entries WHERE person_id = ? ORDER BY id LIMIT ?`, personID, limit)
	if err != nil {
		return nil, fmt.Errorf("list ledger entries: %w", err)
	}
	defer func() {
		_ = rows.Close()
	}()

	var out []ledger.Entry
	for rows.Next() {
		var (
			e         ledger.Entry
			reason    string
			createdAt int64
		)
		if err := rows.Scan(&e.ID, &e.PersonID, &e.Amount, &reason, &e.Reference.Type,
			&e.Reference.ID, &e.BalanceAfter, &createdAt); err != nil {
			return nil, fmt.Errorf("scan ledger entry: %w", err)
		}
		e.Reason = ledger.Reason(reason)
		e.CreatedAt = fromMillis(createdAt)
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list ledger entries: %w", err)
	}
	return out, nil
}
