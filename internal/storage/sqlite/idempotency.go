package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/kailas-cloud/talentdex/internal/domain"
	"github.com/kailas-cloud/talentdex/internal/domain/unlock"
)

// GetIdempotency returns the stored response for the scope, or nil when absent.
func (s *Store) GetIdempotency(ctx context.Context, key, personID, endpoint string) (*unlock.Record, error) {
	return getIdempotency(ctx, s.sqlDB, key, personID, endpoint)
}

// GetIdempotency re-reads the record inside the transaction.
func (t *Tx) GetIdempotency(ctx context.Context, key, personID, endpoint string) (*unlock.Record, error) {
	return getIdempotency(ctx, t.tx, key, personID, endpoint)
}

func getIdempotency(ctx context.Context, q queryer, key, personID, endpoint string) (*unlock.Record, error) {
	rec := unlock.Record{Key: key, PersonID: personID, Endpoint: endpoint}
	err := q.QueryRowContext(ctx, `
		SELECT status_code, response_body FROM idempotency_records
		WHERE idem_key = ? AND person_id = ? AND endpoint = ?`,
		key, personID, endpoint,
	).Scan(&rec.StatusCode, &rec.Body)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read idempotency record: %w", err)
	}
	return &rec, nil
}

// PutIdempotency stores the response for the scope. A concurrent writer that
// got there first yields domain.ErrAlreadyExists.
func (t *Tx) PutIdempotency(ctx context.Context, rec unlock.Record, at time.Time) error {
	_, err := t.tx.ExecContext(ctx, `
		INSERT INTO idempotency_records (idem_key, person_id, endpoint, status_code, response_body, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		rec.Key, rec.PersonID, rec.Endpoint, rec.StatusCode, rec.Body, toMillis(at),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("idempotency key %q: %w", rec.Key, domain.ErrAlreadyExists)
		}
		return fmt.Errorf("write idempotency record: %w", err)
	}
	return nil
}
