package chi

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"reflect"
	"strings"
	"testing"

	"github.com/kailas-cloud/talentdex/internal/domain"
	domcard "github.com/kailas-cloud/talentdex/internal/domain/card"
	domledger "github.com/kailas-cloud/talentdex/internal/domain/ledger"
	"github.com/kailas-cloud/talentdex/internal/domain/search/result"
	domsession "github.com/kailas-cloud/talentdex/internal/domain/session"
	domusage "github.com/kailas-cloud/talentdex/internal/domain/usage"
	healthuc "github.com/kailas-cloud/talentdex/internal/usecase/health"
	unlockuc "github.com/kailas-cloud/talentdex/internal/usecase/unlock"
)

func decodeJSON[T any](t *testing.T, body []byte) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(body, &v); err != nil {
		t.Fatalf("decode %s: %v", body, err)
	}
	return v
}

func storedSession() *domsession.Session {
	return &domsession.Session{
		ID:            testSearch,
		OwnerID:       testCaller,
		QueryOriginal: "Go engineer",
		QueryCleaned:  "go engineer",
		CreatedAt:     testNow,
		ExpiresAt:     domsession.NeverExpires,
		Results: []result.Hit{
			{Rank: 1, PersonID: "p-1", CardID: "c-1", Score: 0.8, DisplayName: "Ada", OpenToWork: true, OpenToContact: true},
			{Rank: 2, PersonID: "p-2", CardID: "c-2", Score: 0.5, DisplayName: "Bob"},
		},
	}
}

func TestCreateSearch(t *testing.T) {
	h := newHarness(t)
	h.search.sess = storedSession()

	body := `{"query":"Go engineer","filters":{"open_to_work_only":true,"preferred_locations":["Berlin"],"salary_min":1000}}`
	rr := h.do("POST", "/v1/searches", body)

	if rr.Code != http.StatusCreated {
		t.Fatalf("status = %d, body %s", rr.Code, rr.Body)
	}
	if got := rr.Header().Get("X-Embedding-Tokens"); got != fmt.Sprint(tokensSpent) {
		t.Errorf("X-Embedding-Tokens = %q", got)
	}
	if h.search.gotOwner != testCaller || h.search.gotRaw != "Go engineer" {
		t.Errorf("search got owner=%q raw=%q", h.search.gotOwner, h.search.gotRaw)
	}
	f := h.search.gotFilters
	if !f.OpenToWorkOnly || !reflect.DeepEqual(f.PreferredLocations, []string{"Berlin"}) || *f.SalaryMin != 1000 {
		t.Errorf("filters = %+v", f)
	}

	resp := decodeJSON[SearchResponse](t, rr.Body.Bytes())
	if resp.SearchID != testSearch {
		t.Errorf("search_id = %q", resp.SearchID)
	}
	want := []PersonItem{
		{PersonID: "p-1", DisplayName: "Ada", OpenToWork: true, OpenToContact: true},
		{PersonID: "p-2", DisplayName: "Bob"},
	}
	if !reflect.DeepEqual(resp.People, want) {
		t.Errorf("people = %+v", resp.People)
	}
}

func TestCreateSearch_BadRequests(t *testing.T) {
	tests := []struct {
		name     string
		body     string
		err      error
		wantCode int
		wantErr  ErrorCode
	}{
		{"malformed json", `{"query":`, nil, http.StatusBadRequest, CodeBadRequest},
		{"too large", `{"query":"` + strings.Repeat("a", maxBodyBytes) + `"}`, nil,
			http.StatusRequestEntityTooLarge, CodeRequestBodyTooLarge},
		{"validation", `{"query":""}`, domain.NewValidationError("query", "must not be empty"),
			http.StatusBadRequest, CodeValidationFailed},
		{"embedding provider", `{"query":"go"}`, fmt.Errorf("embed: %w", domain.ErrEmbeddingProviderError),
			http.StatusBadGateway, CodeEmbeddingProvider},
		{"quota", `{"query":"go"}`, domain.ErrEmbeddingQuotaExceeded,
			http.StatusPaymentRequired, CodeEmbeddingQuota},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			h := newHarness(t)
			h.search.err = tc.err
			rr := h.do("POST", "/v1/searches", tc.body)
			if rr.Code != tc.wantCode {
				t.Fatalf("status = %d, want %d", rr.Code, tc.wantCode)
			}
			if got := decodeJSON[ErrorResponse](t, rr.Body.Bytes()); got.Code != tc.wantErr {
				t.Errorf("code = %q, want %q", got.Code, tc.wantErr)
			}
		})
	}
}

func TestValidationMessageNamesField(t *testing.T) {
	h := newHarness(t)
	h.search.err = domain.NewValidationError("salary_min", "must not exceed salary_max")

	rr := h.do("POST", "/v1/searches", `{"query":"go"}`)
	got := decodeJSON[ErrorResponse](t, rr.Body.Bytes())
	if !strings.Contains(got.Message, "salary_min") {
		t.Errorf("message = %q", got.Message)
	}
}

func TestGetSearch(t *testing.T) {
	h := newHarness(t)
	h.sessions.sess = storedSession()

	rr := h.do("GET", "/v1/searches/"+strings.ToUpper(testSearch), "")
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rr.Code, rr.Body)
	}
	if h.sessions.gotID != testSearch || h.sessions.gotOwner != testCaller {
		t.Errorf("Get(%q, %q)", h.sessions.gotOwner, h.sessions.gotID)
	}

	resp := decodeJSON[SessionResponse](t, rr.Body.Bytes())
	if resp.ExpiresAt != nil {
		t.Errorf("expires_at = %v, want omitted", resp.ExpiresAt)
	}
	if len(resp.Results) != 2 || resp.Results[0].PersonID != "p-1" {
		t.Errorf("results = %+v", resp.Results)
	}
	if strings.Contains(rr.Body.String(), "expires_at") {
		t.Error("never-expire sentinel leaked into the response")
	}
}

func TestGetSearch_Errors(t *testing.T) {
	tests := []struct {
		name     string
		path     string
		err      error
		wantCode int
		wantErr  ErrorCode
	}{
		{"bad uuid", "/v1/searches/not-a-uuid", nil, http.StatusBadRequest, CodeBadRequest},
		{"not found", "/v1/searches/" + testSearch, fmt.Errorf("session: %w", domain.ErrNotFound),
			http.StatusNotFound, CodeNotFound},
		{"expired", "/v1/searches/" + testSearch, domain.ErrExpired, http.StatusGone, CodeExpired},
		{"internal", "/v1/searches/" + testSearch, errors.New("disk on fire"),
			http.StatusInternalServerError, CodeInternalError},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			h := newHarness(t)
			h.sessions.err = tc.err
			rr := h.do("GET", tc.path, "")
			if rr.Code != tc.wantCode {
				t.Fatalf("status = %d, want %d", rr.Code, tc.wantCode)
			}
			got := decodeJSON[ErrorResponse](t, rr.Body.Bytes())
			if got.Code != tc.wantErr {
				t.Errorf("code = %q, want %q", got.Code, tc.wantErr)
			}
			if strings.Contains(got.Message, "disk") {
				t.Errorf("internal message leaked: %q", got.Message)
			}
		})
	}
}

func TestListAndDeleteSearches(t *testing.T) {
	h := newHarness(t)
	h.sessions.list = []domsession.Summary{
		{ID: testSearch, QueryOriginal: "go", ResultCount: 3, CreatedAt: testNow, ExpiresAt: domsession.NeverExpires},
	}

	rr := h.do("GET", "/v1/searches?limit=5", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("list status = %d", rr.Code)
	}
	if h.sessions.gotLimit != 5 {
		t.Errorf("limit = %d, want 5", h.sessions.gotLimit)
	}
	list := decodeJSON[SessionListResponse](t, rr.Body.Bytes())
	if len(list.Items) != 1 || list.Items[0].ResultCount != 3 {
		t.Errorf("items = %+v", list.Items)
	}

	if rr := h.do("GET", "/v1/searches?limit=abc", ""); rr.Code != http.StatusBadRequest {
		t.Errorf("bad limit status = %d", rr.Code)
	}

	rr = h.do("DELETE", "/v1/searches/"+testSearch, "")
	if rr.Code != http.StatusNoContent {
		t.Fatalf("delete status = %d", rr.Code)
	}
	if !reflect.DeepEqual(h.sessions.deleted, []string{testSearch}) {
		t.Errorf("deleted = %v", h.sessions.deleted)
	}
}

func TestUnlock_WritesStoredBodyVerbatim(t *testing.T) {
	h := newHarness(t)
	stored := []byte(`{"unlocked":true,"person_id":"p-1","charged":1,"contact":{"email_visible":false}}`)
	h.unlocks.out = unlockuc.Outcome{StatusCode: http.StatusOK, Body: stored, Replayed: true}

	rr := h.do("POST", "/v1/unlocks", `{"search_id":"s","person_id":"p-1"}`, IdempotencyKeyHeader, "key-1")

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}
	if rr.Body.String() != string(stored) {
		t.Errorf("body = %s", rr.Body)
	}
	if rr.Header().Get(ReplayedHeader) != "true" {
		t.Error("replay header missing")
	}
	if h.unlocks.caller != testCaller {
		t.Errorf("caller = %q", h.unlocks.caller)
	}
	req := h.unlocks.gotReq
	if req.IdempotencyKey != "key-1" || req.SearchID != "s" || req.PersonID != "p-1" {
		t.Errorf("request = %+v", req)
	}
}

func TestUnlock_BodyKeyWinsOverHeader(t *testing.T) {
	h := newHarness(t)
	h.unlocks.out = unlockuc.Outcome{StatusCode: http.StatusOK, Body: []byte(`{}`)}

	rr := h.do("POST", "/v1/unlocks", `{"card_id":"c","idempotency_key":"body-key"}`, IdempotencyKeyHeader, "header-key")
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}
	if h.unlocks.gotReq.IdempotencyKey != "body-key" {
		t.Errorf("key = %q", h.unlocks.gotReq.IdempotencyKey)
	}
	if rr.Header().Get(ReplayedHeader) != "" {
		t.Error("first answer marked as replay")
	}
}

func TestUnlock_ErrorMapping(t *testing.T) {
	tests := []struct {
		err      error
		wantCode int
		wantErr  ErrorCode
	}{
		{domain.ErrInsufficientFunds, http.StatusPaymentRequired, CodeInsufficientFunds},
		{domain.ErrContactUnavailable, http.StatusConflict, CodeContactUnavailable},
		{domain.ErrNotFound, http.StatusNotFound, CodeNotFound},
		{domain.ErrExpired, http.StatusGone, CodeExpired},
		{domain.NewValidationError("idempotency_key", "is required"), http.StatusBadRequest, CodeValidationFailed},
		{fmt.Errorf("unlock: %w: database is locked", domain.ErrTransactionFailure),
			http.StatusServiceUnavailable, CodeTransactionFailure},
	}
	for _, tc := range tests {
		t.Run(string(tc.wantErr), func(t *testing.T) {
			h := newHarness(t)
			h.unlocks.err = tc.err
			rr := h.do("POST", "/v1/unlocks", `{"card_id":"c","idempotency_key":"k"}`)
			if rr.Code != tc.wantCode {
				t.Fatalf("status = %d, want %d", rr.Code, tc.wantCode)
			}
			got := decodeJSON[ErrorResponse](t, rr.Body.Bytes())
			if got.Code != tc.wantErr {
				t.Errorf("code = %q, want %q", got.Code, tc.wantErr)
			}
			if strings.Contains(got.Message, "locked") {
				t.Errorf("internal message leaked: %q", got.Message)
			}
		})
	}
}

func TestUnlock_TransactionFailureIsRetryable(t *testing.T) {
	h := newHarness(t)
	h.unlocks.err = domain.ErrTransactionFailure
	rr := h.do("POST", "/v1/unlocks", `{"card_id":"c","idempotency_key":"k"}`)
	if rr.Header().Get("Retry-After") == "" {
		t.Error("Retry-After missing")
	}
}

func TestWallet(t *testing.T) {
	h := newHarness(t)
	h.wallet.balance = 29
	h.wallet.entries = []domledger.Entry{
		{Amount: -1, Reason: domledger.ReasonUnlock, Reference: domledger.Reference{Type: "person", ID: "p-1"},
			BalanceAfter: 29, CreatedAt: testNow},
		{Amount: 30, Reason: domledger.ReasonTopUp, BalanceAfter: 30, CreatedAt: testNow},
	}

	rr := h.do("GET", "/v1/wallet", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("wallet status = %d", rr.Code)
	}
	if got := decodeJSON[WalletResponse](t, rr.Body.Bytes()); got.Balance != 29 {
		t.Errorf("balance = %d", got.Balance)
	}

	rr = h.do("GET", "/v1/wallet/ledger?limit=10", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("ledger status = %d", rr.Code)
	}
	if h.wallet.gotLimit != 10 {
		t.Errorf("limit = %d", h.wallet.gotLimit)
	}
	entries := decodeJSON[[]LedgerEntry](t, rr.Body.Bytes())
	if len(entries) != 2 {
		t.Fatalf("entries = %+v", entries)
	}
	if entries[0].Reason != "contact_unlock" || entries[0].ReferenceID != "p-1" || entries[0].Amount != -1 {
		t.Errorf("entry[0] = %+v", entries[0])
	}
	if entries[1].ReferenceType != "" {
		t.Errorf("entry[1] reference = %q", entries[1].ReferenceType)
	}
}

func TestCards(t *testing.T) {
	h := newHarness(t)

	rr := h.do("POST", "/v1/cards", `{"title":"Payments platform","company":"Stripe","city":"Berlin"}`)
	if rr.Code != http.StatusCreated {
		t.Fatalf("create status = %d, body %s", rr.Code, rr.Body)
	}
	if got := rr.Header().Get("Location"); got != "/v1/cards/"+testCardID {
		t.Errorf("Location = %q", got)
	}
	if h.cards.gotDraft.Company != "Stripe" || h.cards.gotDraft.City != "Berlin" {
		t.Errorf("draft = %+v", h.cards.gotDraft)
	}
	created := decodeJSON[CardResponse](t, rr.Body.Bytes())
	if created.PersonID != testCaller || created.Status != string(domcard.StatusPublished) {
		t.Errorf("card = %+v", created)
	}

	c, err := domcard.New(domcard.Draft{ID: testCardID, PersonID: "p-9", Title: "Search ranking"}, testNow)
	if err != nil {
		t.Fatalf("card: %v", err)
	}
	h.cards.card = c
	rr = h.do("GET", "/v1/cards/"+testCardID, "")
	if rr.Code != http.StatusOK {
		t.Fatalf("get status = %d", rr.Code)
	}
	if got := decodeJSON[CardResponse](t, rr.Body.Bytes()); got.Title != "Search ranking" {
		t.Errorf("title = %q", got.Title)
	}

	if rr := h.do("GET", "/v1/cards/x", ""); rr.Code != http.StatusBadRequest {
		t.Errorf("bad id status = %d", rr.Code)
	}

	h.cards.err = domain.ErrNotFound
	if rr := h.do("DELETE", "/v1/cards/"+testCardID, ""); rr.Code != http.StatusNotFound {
		t.Errorf("delete missing status = %d", rr.Code)
	}
	h.cards.err = nil
	if rr := h.do("DELETE", "/v1/cards/"+testCardID, ""); rr.Code != http.StatusNoContent {
		t.Errorf("delete status = %d", rr.Code)
	}
}

func TestUsage(t *testing.T) {
	h := newHarness(t)

	rr := h.do("GET", "/v1/usage?period=day", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}
	if h.usage.got != domusage.PeriodDay {
		t.Errorf("period = %q", h.usage.got)
	}
	got := decodeJSON[UsageResponse](t, rr.Body.Bytes())
	if got.Period != "day" || !got.IsExhausted || got.TokensUsed != 40 {
		t.Errorf("usage = %+v", got)
	}
	if got.QueryTokens != 10 || got.CardTokens != 30 || got.CardTokensLimit != 30 || !got.IngestPaused {
		t.Errorf("purpose split = %+v", got)
	}

	if rr := h.do("GET", "/v1/usage?period=year", ""); rr.Code != http.StatusBadRequest {
		t.Errorf("bad period status = %d", rr.Code)
	}
}

func TestHealth(t *testing.T) {
	tests := []struct {
		status healthuc.Status
		want   int
	}{
		{healthuc.Healthy, http.StatusOK},
		{healthuc.Degraded, http.StatusOK},
		{healthuc.Unhealthy, http.StatusServiceUnavailable},
	}
	for _, tc := range tests {
		t.Run(string(tc.status), func(t *testing.T) {
			h := newHarness(t)
			h.health.report.Status = tc.status
			h.token = ""
			rr := h.do("GET", "/health", "")
			if rr.Code != tc.want {
				t.Fatalf("status = %d, want %d", rr.Code, tc.want)
			}
			got := decodeJSON[HealthResponse](t, rr.Body.Bytes())
			if got.Status != string(tc.status) || got.Checks[healthuc.ComponentIndex] != "ok" {
				t.Errorf("health = %+v", got)
			}
		})
	}
}

func TestRouting(t *testing.T) {
	h := newHarness(t)

	if rr := h.do("GET", "/v1/nowhere", ""); rr.Code != http.StatusNotFound {
		t.Errorf("unknown route status = %d", rr.Code)
	}
	if rr := h.do("PUT", "/v1/wallet", ""); rr.Code != http.StatusMethodNotAllowed {
		t.Errorf("wrong method status = %d", rr.Code)
	}

	h.token = "garbage"
	if rr := h.do("GET", "/v1/wallet", ""); rr.Code != http.StatusUnauthorized {
		t.Errorf("bad token status = %d", rr.Code)
	}
}

func TestRecoverer(t *testing.T) {
	h := newHarness(t)
	h.sessions.sess = nil // nil session makes the handler panic

	rr := h.do("GET", "/v1/searches/"+testSearch, "")
	if rr.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d", rr.Code)
	}
	if got := decodeJSON[ErrorResponse](t, rr.Body.Bytes()); got.Code != CodeInternalError {
		t.Errorf("code = %q", got.Code)
	}
}
