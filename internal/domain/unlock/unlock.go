// Package unlock holds the contact-unlock request and response shapes.
package unlock

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/kailas-cloud/talentdex/internal/domain"
	"github.com/kailas-cloud/talentdex/internal/domain/ledger"
	"github.com/kailas-cloud/talentdex/internal/domain/person"
	"github.com/kailas-cloud/talentdex/internal/domain/session"
)

// Endpoint is the idempotency scope of unlock requests.
const Endpoint = "POST /v1/unlocks"

// MaxKeyLength bounds idempotency keys.
const MaxKeyLength = 255

// Request asks to reveal a person's contact details. The target is
// addressed through a search the caller owns, or directly through a card.
type Request struct {
	IdempotencyKey string
	SearchID       string
	PersonID       string
	CardID         string
}

// Validate checks the shape of the request.
func (r *Request) Validate() error {
	key := strings.TrimSpace(r.IdempotencyKey)
	if key == "" {
		return domain.NewValidationError("idempotency_key", "is required")
	}
	if len(key) > MaxKeyLength {
		return domain.NewValidationError("idempotency_key", fmt.Sprintf("too long (max %d)", MaxKeyLength))
	}
	r.IdempotencyKey = key
	switch {
	case r.SearchID != "" && r.CardID != "":
		return domain.NewValidationError("search_id", "cannot be combined with card_id")
	case r.SearchID != "":
		if r.PersonID == "" {
			return domain.NewValidationError("person_id", "is required with search_id")
		}
	case r.CardID != "":
	default:
		return domain.NewValidationError("search_id", "search_id or card_id is required")
	}
	return nil
}

// Contact is the revealed contact block.
type Contact struct {
	EmailVisible bool   `json:"email_visible"`
	Email        string `json:"email,omitempty"`
	Phone        string `json:"phone,omitempty"`
	LinkedInURL  string `json:"linkedin_url,omitempty"`
	Other        string `json:"other,omitempty"`
}

// Response is the body returned, and stored, for a successful unlock.
type Response struct {
	Unlocked bool    `json:"unlocked"`
	PersonID string  `json:"person_id"`
	Charged  int64   `json:"charged"`
	Contact  Contact `json:"contact"`
}

// Reveal builds the contact block, exposing email only when allowed.
func Reveal(c person.Contact) Contact {
	out := Contact{
		EmailVisible: c.EmailVisible,
		Phone:        c.Phone,
		LinkedInURL:  c.LinkedInURL,
		Other:        c.Other,
	}
	if c.EmailVisible {
		out.Email = c.Email
	}
	return out
}

// Record is a stored idempotent response.
type Record struct {
	Key        string
	PersonID   string
	Endpoint   string
	StatusCode int
	Body       []byte
}

// Tx is the transactional view an unlock runs against. Every call made
// through one Tx commits or rolls back together.
type Tx interface {
	GetIdempotency(ctx context.Context, key, personID, endpoint string) (*Record, error)
	PutIdempotency(ctx context.Context, rec Record, at time.Time) error
	GetSession(ctx context.Context, id string) (*session.Session, error)
	GetPerson(ctx context.Context, id string) (person.Person, error)
	HasUnlock(ctx context.Context, searcherID, personID string) (bool, error)
	RecordUnlock(ctx context.Context, searcherID, personID string, at time.Time) error
	Debit(ctx context.Context, personID string, amount int64, reason ledger.Reason, ref ledger.Reference, at time.Time) (ledger.DebitResult, error)
}
