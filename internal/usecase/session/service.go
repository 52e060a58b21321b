// Package session reads and deletes stored search sessions on behalf of their owner.
package session

import (
	"context"
	"fmt"
	"time"

	"github.com/kailas-cloud/talentdex/internal/domain"
	domsession "github.com/kailas-cloud/talentdex/internal/domain/session"
)

// Listing limits.
const (
	DefaultListLimit = 20
	MaxListLimit     = 100
)

// Service handles session reads and deletes.
type Service struct {
	repo Repository
	now  func() time.Time
}

// New creates a session service.
func New(repo Repository) *Service {
	return &Service{repo: repo, now: time.Now}
}

// Get returns the owner's session. A session owned by someone else reads as
// domain.ErrNotFound; one past its expiry as domain.ErrExpired.
func (s *Service) Get(ctx context.Context, ownerID, id string) (*domsession.Session, error) {
	sess, err := s.repo.GetSession(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get search: %w", err)
	}
	if sess.OwnerID != ownerID {
		return nil, fmt.Errorf("search %s: %w", id, domain.ErrNotFound)
	}
	if sess.Expired(s.now()) {
		return nil, fmt.Errorf("search %s: %w", id, domain.ErrExpired)
	}
	return sess, nil
}

// List returns the owner's sessions, newest first. limit is clamped to
// [1, MaxListLimit]; zero means DefaultListLimit.
func (s *Service) List(ctx context.Context, ownerID string, limit int) ([]domsession.Summary, error) {
	switch {
	case limit < 0:
		return nil, domain.NewValidationError("limit", "must be non-negative")
	case limit == 0:
		limit = DefaultListLimit
	case limit > MaxListLimit:
		limit = MaxListLimit
	}
	out, err := s.repo.ListSessions(ctx, ownerID, limit)
	if err != nil {
		return nil, fmt.Errorf("list searches: %w", err)
	}
	return out, nil
}

// Delete hard-deletes an owned session.
func (s *Service) Delete(ctx context.Context, ownerID, id string) error {
	if err := s.repo.DeleteSession(ctx, ownerID, id); err != nil {
		return fmt.Errorf("delete search: %w", err)
	}
	return nil
}
