package sqlite

import (
	"context"
	"fmt"
	"time"
)

// HasUnlock reports whether searcherID already paid for personID.
func (t *Tx) HasUnlock(ctx context.Context, searcherID, personID string) (bool, error) {
	var n int
	err := t.tx.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM contact_unlocks WHERE searcher_id = ? AND person_id = ?`,
		searcherID, personID,
	).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("read unlock: %w", err)
	}
	return n > 0, nil
}

// RecordUnlock marks personID as unlocked for searcherID. Repeats are no-ops.
func (t *Tx) RecordUnlock(ctx context.Context, searcherID, personID string, at time.Time) error {
	_, err := t.tx.ExecContext(ctx, `
		INSERT INTO contact_unlocks (searcher_id, person_id, created_at) VALUES (?, ?, ?)
		ON CONFLICT (searcher_id, person_id) DO NOTHING`,
		searcherID, personID, toMillis(at),
	)
	if err != nil {
		return fmt.Errorf("record unlock: %w", err)
	}
	return nil
}
