package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/kailas-cloud/talentdex/internal/domain"
	"github.com/kailas-cloud/talentdex/internal/domain/search/result"
	"github.com/kailas-cloud/talentdex/internal/domain/session"
)

// CreateSession stores a search and its ordered results in one transaction.
func (s *Store) CreateSession(ctx context.Context, sess *session.Session) error {
	constraints, err := json.Marshal(sess.Constraints)
	if err != nil {
		return fmt.Errorf("marshal constraints: %w", err)
	}
	extra, err := json.Marshal(sess.Extra)
	if err != nil {
		return fmt.Errorf("marshal extra: %w", err)
	}

	return s.withTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO searches (id, owner_id, query_original, query_cleaned,
				parsed_constraints, extra, created_at, expires_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			sess.ID, sess.OwnerID, sess.QueryOriginal, sess.QueryCleaned,
			string(constraints), string(extra), toMillis(sess.CreatedAt), toMillis(sess.ExpiresAt),
		)
		if err != nil {
			if isUniqueViolation(err) {
				return fmt.Errorf("search %s: %w", sess.ID, domain.ErrAlreadyExists)
			}
			return fmt.Errorf("insert search: %w", err)
		}

		stmt, err := tx.PrepareContext(ctx, `
			INSERT INTO search_results (search_id, rank, person_id, card_id, score,
				breakdown, matched_terms, explanation, display_name, card_title,
				open_to_work, open_to_contact)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
		if err != nil {
			return fmt.Errorf("prepare results: %w", err)
		}
		defer func() {
			_ = stmt.Close()
		}()

		for i := range sess.Results {
			h := &sess.Results[i]
			breakdown, err := json.Marshal(h.Breakdown)
			if err != nil {
				return fmt.Errorf("marshal breakdown: %w", err)
			}
			terms, err := json.Marshal(nonNil(h.MatchedTerms))
			if err != nil {
				return fmt.Errorf("marshal matched terms: %w", err)
			}
			if _, err := stmt.ExecContext(ctx,
				sess.ID, h.Rank, h.PersonID, h.CardID, h.Score,
				string(breakdown), string(terms), h.Explanation, h.DisplayName, h.CardTitle,
				boolToInt(h.OpenToWork), boolToInt(h.OpenToContact),
			); err != nil {
				return fmt.Errorf("insert result %d: %w", h.Rank, err)
			}
		}
		return nil
	})
}

// GetSession returns a stored search with its results in rank order, or
// domain.ErrNotFound. Ownership and expiry are checked by the caller.
func (s *Store) GetSession(ctx context.Context, id string) (*session.Session, error) {
	return getSession(ctx, s.sqlDB, id)
}

// GetSession reads a stored search inside the transaction.
func (t *Tx) GetSession(ctx context.Context, id string) (*session.Session, error) {
	return getSession(ctx, t.tx, id)
}

func getSession(ctx context.Context, q queryer, id string) (*session.Session, error) {
	var (
		sess                 session.Session
		constraints, extra   string
		createdAt, expiresAt int64
	)
	err := q.QueryRowContext(ctx, `
		SELECT id, owner_id, query_original, query_cleaned, parsed_constraints, extra,
			created_at, expires_at
		FROM searches WHERE id = ?`, id,
	).Scan(&sess.ID, &sess.OwnerID, &sess.QueryOriginal, &sess.QueryCleaned,
		&constraints, &extra, &createdAt, &expiresAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("search %s: %w", id, domain.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get search %s: %w", id, err)
	}
	if err := json.Unmarshal([]byte(constraints), &sess.Constraints); err != nil {
		return nil, fmt.Errorf("decode constraints: %w", err)
	}
	if err := json.Unmarshal([]byte(extra), &sess.Extra); err != nil {
		return nil, fmt.Errorf("decode extra: %w", err)
	}
	sess.CreatedAt = fromMillis(createdAt)
	sess.ExpiresAt = fromMillis(expiresAt)

	results, err := listResults(ctx, q, id)
	if err != nil {
		return nil, err
	}
	sess.Results = results
	return &sess, nil
}

func listResults(ctx context.Context, q queryer, searchID string) ([]result.Hit, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT rank, person_id, card_id, score, breakdown, matched_terms, explanation,
			display_name, card_title, open_to_work, open_to_contact
		FROM search_results WHERE search_id = ? ORDER BY rank`, searchID)
	if err != nil {
		return nil, fmt.Errorf("list results: %w", err)
	}
	defer func() {
		_ = rows.Close()
	}()

	var hits []result.Hit
	for rows.Next() {
		var (
			h                     result.Hit
			breakdown, terms      string
			openWork, openContact int
		)
		if err := rows.Scan(&h.Rank, &h.PersonID, &h.CardID, &h.Score, &breakdown, &terms,
			&h.Explanation, &h.DisplayName, &h.CardTitle, &openWork, &openContact); err != nil {
			return nil, fmt.Errorf("scan result: %w", err)
		}
		if err := json.Unmarshal([]byte(breakdown), &h.Breakdown); err != nil {
			return nil, fmt.Errorf("decode breakdown: %w", err)
		}
		if err := json.Unmarshal([]byte(terms), &h.MatchedTerms); err != nil {
			return nil, fmt.Errorf("decode matched terms: %w", err)
		}
		h.OpenToWork = openWork == 1
		h.OpenToContact = openContact == 1
		hits = append(hits, h)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list results: %w", err)
	}
	return hits, nil
}

// ListSessions returns the owner's searches, newest first.
func (s *Store) ListSessions(ctx context.Context, ownerID string, limit int) ([]session.Summary, error) {
	rows, err := s.sqlDB.QueryContext(ctx, `
		SELECT s.id, s.query_original, s.created_at, s.expires_at,
			(SELECT COUNT(*) FROM search_results r WHERE r.search_id = s.id)
		FROM searches s
		WHERE s.owner_id = ?
		ORDER BY s.created_at DESC, s.id
		LIMIT ?`, ownerID, limit)
	if err != nil {
		return nil, fmt.Errorf("list searches: %w", err)
	}
	defer func() {
		_ = rows.Close()
	}()

	var out []session.Summary
	for rows.Next() {
		var (
			sum                  session.Summary
			createdAt, expiresAt int64
		)
		if err := rows.Scan(&sum.ID, &sum.QueryOriginal, &createdAt, &expiresAt, &sum.ResultCount); err != nil {
			return nil, fmt.Errorf("scan search: %w", err)
		}
		sum.CreatedAt = fromMillis(createdAt)
		sum.ExpiresAt = fromMillis(expiresAt)
		out = append(out, sum)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list searches: %w", err)
	}
	return out, nil
}

// DeleteSession hard-deletes an owned search and its results.
func (s *Store) DeleteSession(ctx context.Context, ownerID, id string) error {
	res, err := s.sqlDB.ExecContext(ctx, `DELETE FROM searches WHERE id = ? AND owner_id = ?`, id, ownerID)
	if err != nil {
		return fmt.Errorf("delete search %s: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete search %s: %w", id, err)
	}
	if n == 0 {
		return fmt.Errorf("search %s: %w", id, domain.ErrNotFound)
	}
	return nil
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
