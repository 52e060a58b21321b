package chi

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/talentdex/internal/domain"
	domcard "github.com/kailas-cloud/talentdex/internal/domain/card"
	domledger "github.com/kailas-cloud/talentdex/internal/domain/ledger"
	"github.com/kailas-cloud/talentdex/internal/domain/search/query"
	domsession "github.com/kailas-cloud/talentdex/internal/domain/session"
	domunlock "github.com/kailas-cloud/talentdex/internal/domain/unlock"
	domusage "github.com/kailas-cloud/talentdex/internal/domain/usage"
	healthuc "github.com/kailas-cloud/talentdex/internal/usecase/health"
	unlockuc "github.com/kailas-cloud/talentdex/internal/usecase/unlock"
)

const (
	testCaller  = "buyer-1"
	testSearch  = "3f1c2f8e-6a0e-4c55-9a51-0d1c1f3b9a10"
	testCardID  = "7b0e3a52-2c4d-4e8f-b6a1-9c3d5e7f1a2b"
	tokensSpent = 7
)

var testNow = time.Date(2026, time.March, 14, 9, 30, 0, 0, time.UTC)

// --- Mocks ---

type fakeSearcher struct {
	gotOwner   string
	gotRaw     string
	gotFilters query.Filters
	sess       *domsession.Session
	err        error
}

func (f *fakeSearcher) Search(ctx context.Context, ownerID, raw string, filters query.Filters) (*domsession.Session, error) {
	f.gotOwner, f.gotRaw, f.gotFilters = ownerID, raw, filters
	if f.err != nil {
		return nil, f.err
	}
	domain.UsageFromContext(ctx).AddTokens(domain.PurposeQuery, tokensSpent)
	return f.sess, nil
}

type fakeSessions struct {
	sess     *domsession.Session
	list     []domsession.Summary
	err      error
	gotOwner string
	gotID    string
	gotLimit int
	deleted  []string
}

func (f *fakeSessions) Get(_ context.Context, ownerID, id string) (*domsession.Session, error) {
	f.gotOwner, f.gotID = ownerID, id
	if f.err != nil {
		return nil, f.err
	}
	return f.sess, nil
}

func (f *fakeSessions) List(_ context.Context, ownerID string, limit int) ([]domsession.Summary, error) {
	f.gotOwner, f.gotLimit = ownerID, limit
	return f.list, f.err
}

func (f *fakeSessions) Delete(_ context.Context, ownerID, id string) error {
	f.gotOwner = ownerID
	if f.err != nil {
		return f.err
	}
	f.deleted = append(f.deleted, id)
	return nil
}

type fakeWallet struct {
	balance  int64
	entries  []domledger.Entry
	err      error
	gotLimit int
}

func (f *fakeWallet) Balance(context.Context, string) (int64, error) { return f.balance, f.err }

func (f *fakeWallet) Entries(_ context.Context, _ string, limit int) ([]domledger.Entry, error) {
	f.gotLimit = limit
	return f.entries, f.err
}

type fakeUnlocker struct {
	out    unlockuc.Outcome
	err    error
	gotReq domunlock.Request
	caller string
}

func (f *fakeUnlocker) Unlock(_ context.Context, callerID string, req domunlock.Request) (unlockuc.Outcome, error) {
	f.caller, f.gotReq = callerID, req
	return f.out, f.err
}

type fakeCards struct {
	card     domcard.Card
	err      error
	gotDraft domcard.Draft
	gotID    string
}

func (f *fakeCards) Create(ctx context.Context, ownerID string, d domcard.Draft) (domcard.Card, error) {
	f.gotDraft = d
	if f.err != nil {
		return domcard.Card{}, f.err
	}
	domain.UsageFromContext(ctx).AddTokens(domain.PurposeCard, tokensSpent)
	d.ID, d.PersonID = testCardID, ownerID
	return domcard.New(d, testNow)
}

func (f *fakeCards) Get(_ context.Context, _, id string) (domcard.Card, error) {
	f.gotID = id
	return f.card, f.err
}

func (f *fakeCards) Delete(_ context.Context, _, id string) error {
	f.gotID = id
	return f.err
}

type fakeUsage struct{ got domusage.Period }

func (f *fakeUsage) GetReport(_ context.Context, p domusage.Period) domusage.Report {
	f.got = p
	return domusage.NewReport(p, testNow, domusage.Spend{
		Limit:     40,
		CardLimit: 30,
		ByPurpose: map[domain.Purpose]int64{domain.PurposeQuery: 10, domain.PurposeCard: 30},
	})
}

type fakeHealth struct{ report healthuc.Report }

func (f *fakeHealth) Check(context.Context) healthuc.Report { return f.report }

// --- Harness ---

type harness struct {
	search   *fakeSearcher
	sessions *fakeSessions
	wallet   *fakeWallet
	unlocks  *fakeUnlocker
	cards    *fakeCards
	usage    *fakeUsage
	health   *fakeHealth
	handler  http.Handler
	token    string
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{
		search:   &fakeSearcher{},
		sessions: &fakeSessions{},
		wallet:   &fakeWallet{},
		unlocks:  &fakeUnlocker{},
		cards:    &fakeCards{},
		usage:    &fakeUsage{},
		health: &fakeHealth{report: healthuc.Report{
			Status: healthuc.Healthy,
			Checks: map[string]healthuc.CheckResult{healthuc.ComponentIndex: healthuc.CheckOK},
		}},
		token: signToken(t, testSecret, validClaims(testCaller)),
	}
	srv := NewServer(Services{
		Search:   h.search,
		Sessions: h.sessions,
		Wallet:   h.wallet,
		Unlocks:  h.unlocks,
		Cards:    h.cards,
		Usage:    h.usage,
		Health:   h.health,
	}, zap.NewNop())
	h.handler = NewRouter(srv, testAuth(), zap.NewNop())
	return h
}

// do sends an authenticated request.
func (h *harness) do(method, path, body string, headers ...string) *httptest.ResponseRecorder {
	var r io.Reader = http.NoBody
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, r)
	req.Header.Set("Authorization", "Bearer "+h.token)
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	rr := httptest.NewRecorder()
	h.handler.ServeHTTP(rr, req)
	return rr
}
