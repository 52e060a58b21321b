package session

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/kailas-cloud/talentdex/internal/domain"
	domsession "github.com/kailas-cloud/talentdex/internal/domain/session"
)

// --- Mocks ---

type mockRepo struct {
	sessions  map[string]*domsession.Session
	listLimit int
	listErr   error
	deleteErr error
}

func (m *mockRepo) GetSession(_ context.Context, id string) (*domsession.Session, error) {
	s, ok := m.sessions[id]
	if !ok {
		return nil, fmt.Errorf("search %s: %w", id, domain.ErrNotFound)
	}
	return s, nil
}

func (m *mockRepo) ListSessions(_ context.Context, _ string, limit int) ([]domsession.Summary, error) {
	m.listLimit = limit
	return []domsession.Summary{{ID: "s1"}}, m.listErr
}

func (m *mockRepo) DeleteSession(_ context.Context, _, _ string) error {
	return m.deleteErr
}

var now = time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

func newTestService() (*Service, *mockRepo) {
	repo := &mockRepo{sessions: map[string]*domsession.Session{
		"live":    {ID: "live", OwnerID: "alice", ExpiresAt: domsession.NeverExpires},
		"expired": {ID: "expired", OwnerID: "alice", ExpiresAt: now.Add(-time.Second)},
		"edge":    {ID: "edge", OwnerID: "alice", ExpiresAt: now},
	}}
	svc := New(repo)
	svc.now = func() time.Time { return now }
	return svc, repo
}

// --- Tests ---

func TestGet(t *testing.T) {
	svc, _ := newTestService()

	tests := []struct {
		name    string
		owner   string
		id      string
		wantErr error
	}{
		{"owned and live", "alice", "live", nil},
		{"missing", "alice", "nope", domain.ErrNotFound},
		{"other owner", "bob", "live", domain.ErrNotFound},
		{"expired", "alice", "expired", domain.ErrExpired},
		{"expires exactly now", "alice", "edge", domain.ErrExpired},
		{"other owner of expired", "bob", "expired", domain.ErrNotFound},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			sess, err := svc.Get(context.Background(), tc.owner, tc.id)
			if tc.wantErr == nil {
				if err != nil || sess.ID != tc.id {
					t.Fatalf("Get() = %v, %v", sess, err)
				}
				return
			}
			if !errors.Is(err, tc.wantErr) {
				t.Errorf("err = %v, want %v", err, tc.wantErr)
			}
		})
	}
}

func TestList_Limits(t *testing.T) {
	svc, repo := newTestService()

	for in, want := range map[int]int{0: DefaultListLimit, 5: 5, 1000: MaxListLimit} {
		if _, err := svc.List(context.Background(), "alice", in); err != nil {
			t.Fatalf("List(%d): %v", in, err)
		}
		if repo.listLimit != want {
			t.Errorf("List(%d) limit = %d, want %d", in, repo.listLimit, want)
		}
	}

	if _, err := svc.List(context.Background(), "alice", -1); !errors.Is(err, domain.ErrValidation) {
		t.Errorf("negative limit err = %v", err)
	}
}

func TestList_StoreError(t *testing.T) {
	svc, repo := newTestService()
	repo.listErr = errors.New("db closed")
	if _, err := svc.List(context.Background(), "alice", 0); err == nil {
		t.Error("expected error")
	}
}

func TestDelete(t *testing.T) {
	svc, repo := newTestService()
	if err := svc.Delete(context.Background(), "alice", "live"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	repo.deleteErr = fmt.Errorf("search x: %w", domain.ErrNotFound)
	if err := svc.Delete(context.Background(), "alice", "x"); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}
