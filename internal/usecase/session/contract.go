package session

import (
	"context"

	domsession "github.com/kailas-cloud/talentdex/internal/domain/session"
)

// Repository defines the storage contract for search sessions.
type Repository interface {
	GetSession(ctx context.Context, id string) (*domsession.Session, error)
	ListSessions(ctx context.Context, ownerID string, limit int) ([]domsession.Summary, error)
	DeleteSession(ctx context.Context, ownerID, id string) error
}
