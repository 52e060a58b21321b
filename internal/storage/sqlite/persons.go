package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/kailas-cloud/talentdex/internal/domain"
	"github.com/kailas-cloud/talentdex/internal/domain/person"
)

const personColumns = `id, display_name, open_to_work, open_to_contact, salary_min, salary_max,
	visibility, email, email_visible, phone, linkedin_url, other_contact`

// PutPerson inserts or replaces a person profile.
func (s *Store) PutPerson(ctx context.Context, p person.Person, at time.Time) error {
	if err := p.Validate(); err != nil {
		return fmt.Errorf("%w: %w", domain.ErrValidation, err)
	}
	_, err := s.sqlDB.ExecContext(ctx, `
		INSERT INTO persons (`+personColumns+`, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			display_name = excluded.display_name,
			open_to_work = excluded.open_to_work,
			open_to_contact = excluded.open_to_contact,
			salary_min = excluded.salary_min,
			salary_max = excluded.salary_max,
			visibility = excluded.visibility,
			email = excluded.email,
			email_visible = excluded.email_visible,
			phone = excluded.phone,
			linkedin_url = excluded.linkedin_url,
			other_contact = excluded.other_contact,
			updated_at = excluded.updated_at`,
		p.ID, p.DisplayName, boolToInt(p.OpenToWork), boolToInt(p.OpenToContact),
		nullInt64(p.SalaryMin), nullInt64(p.SalaryMax), string(p.Visibility),
		p.Contact.Email, boolToInt(p.Contact.EmailVisible), p.Contact.Phone,
		p.Contact.LinkedInURL, p.Contact.Other,
		toMillis(at), toMillis(at),
	)
	if err != nil {
		return fmt.Errorf("put person %s: %w", p.ID, err)
	}
	return nil
}

// GetPerson returns a person or domain.ErrNotFound.
func (s *Store) GetPerson(ctx context.Context, id string) (person.Person, error) {
	return getPerson(ctx, s.sqlDB, id)
}

// GetPerson reads a person inside the transaction.
func (t *Tx) GetPerson(ctx context.Context, id string) (person.Person, error) {
	return getPerson(ctx, t.tx, id)
}

func getPerson(ctx context.Context, q queryer, id string) (person.Person, error) {
	row := q.QueryRowContext(ctx, `SELECT `+personColumns+` FROM persons WHERE id = ?`, id)
	p, err := scanPerson(row)
	if errors.Is(err, sql.ErrNoRows) {
		return person.Person{}, fmt.Errorf("person %s: %w", id, domain.ErrNotFound)
	}
	if err != nil {
		return person.Person{}, fmt.Errorf("get person %s: %w", id, err)
	}
	return p, nil
}

// GetPersons returns the persons that exist among ids, keyed by id.
func (s *Store) GetPersons(ctx context.Context, ids []string) (map[string]person.Person, error) {
	out := make(map[string]person.Person, len(ids))
	if len(ids) == 0 {
		return out, nil
	}

	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(ids)), ",")

	rows, err := s.sqlDB.QueryContext(ctx,
		`SELECT `+personColumns+` FROM persons WHERE id IN (`+placeholders+`)`, args...)
	if err != nil {
		return nil, fmt.Errorf("get persons: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		p, err := scanPerson(rows)
		if err != nil {
			return nil, fmt.Errorf("scan person: %w", err)
		}
		out[p.ID] = p
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate persons: %w", err)
	}
	return out, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanPerson(row rowScanner) (person.Person, error) {
	var (
		p                     person.Person
		openWork, openContact int
		emailVisible          int
		salaryMin, salaryMax  sql.NullInt64
		visibility            string
	)
	err := row.Scan(
		&p.ID, &p.DisplayName, &openWork, &openContact, &salaryMin, &salaryMax,
		&visibility, &p.Contact.Email, &emailVisible, &p.Contact.Phone,
		&p.Contact.LinkedInURL, &p.Contact.Other,
	)
	if err != nil {
		return person.Person{}, err
	}
	p.OpenToWork = openWork == 1
	p.OpenToContact = openContact == 1
	p.Contact.EmailVisible = emailVisible == 1
	p.SalaryMin = fromNullInt64(salaryMin)
	p.SalaryMax = fromNullInt64(salaryMax)
	p.Visibility = person.Visibility(visibility)
	return p, nil
}

func nullInt64(v *int64) sql.NullInt64 {
	if v == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: *v, Valid: true}
}

func fromNullInt64(v sql.NullInt64) *int64 {
	if !v.Valid {
		return nil
	}
	n := v.Int64
	return &n
}
