package chi

import (
	"time"

	domcard "github.com/kailas-cloud/talentdex/internal/domain/card"
	domledger "github.com/kailas-cloud/talentdex/internal/domain/ledger"
	"github.com/kailas-cloud/talentdex/internal/domain/search/query"
	"github.com/kailas-cloud/talentdex/internal/domain/search/result"
	domsession "github.com/kailas-cloud/talentdex/internal/domain/session"
	domunlock "github.com/kailas-cloud/talentdex/internal/domain/unlock"
	domusage "github.com/kailas-cloud/talentdex/internal/domain/usage"
)

// ErrorCode is the machine-readable error code of an ErrorResponse.
type ErrorCode string

// Error codes.
const (
	CodeBadRequest          ErrorCode = "bad_request"
	CodeValidationFailed    ErrorCode = "validation_failed"
	CodeUnauthorized        ErrorCode = "unauthorized"
	CodeNotFound            ErrorCode = "not_found"
	CodeExpired             ErrorCode = "expired"
	CodeInsufficientFunds   ErrorCode = "insufficient_funds"
	CodeContactUnavailable  ErrorCode = "contact_unavailable"
	CodeConflict            ErrorCode = "conflict"
	CodeTransactionFailure  ErrorCode = "transaction_failure"
	CodeRateLimited         ErrorCode = "rate_limited"
	CodeEmbeddingQuota      ErrorCode = "embedding_quota_exceeded"
	CodeEmbeddingProvider   ErrorCode = "embedding_provider_error"
	CodeVectorDimMismatch   ErrorCode = "vector_dim_mismatch"
	CodeInternalError       ErrorCode = "internal_error"
	CodeMethodNotAllowed    ErrorCode = "method_not_allowed"
	CodeRouteNotFound       ErrorCode = "route_not_found"
	CodeRequestBodyTooLarge ErrorCode = "request_body_too_large"
)

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
}

// SearchFilters are the structured options of a search.
type SearchFilters struct {
	OpenToWorkOnly     bool     `json:"open_to_work_only,omitempty"`
	PreferredLocations []string `json:"preferred_locations,omitempty"`
	SalaryMin          *int64   `json:"salary_min,omitempty"`
	SalaryMax          *int64   `json:"salary_max,omitempty"`
	Companies          []string `json:"companies,omitempty"`
	Domains            []string `json:"domains,omitempty"`
}

// SearchRequest is the body of POST /v1/searches.
type SearchRequest struct {
	Query   string         `json:"query"`
	Filters *SearchFilters `json:"filters,omitempty"`
}

// PersonItem is one person in a search response.
type PersonItem struct {
	PersonID      string `json:"person_id"`
	DisplayName   string `json:"display_name"`
	OpenToWork    bool   `json:"open_to_work"`
	OpenToContact bool   `json:"open_to_contact"`
}

// SearchResponse is returned by POST /v1/searches.
type SearchResponse struct {
	SearchID string       `json:"search_id"`
	People   []PersonItem `json:"people"`
}

// SessionResponse is the full stored view of one search.
type SessionResponse struct {
	SearchID     string            `json:"search_id"`
	Query        string            `json:"query"`
	QueryCleaned string            `json:"query_cleaned"`
	Constraints  query.Constraints `json:"constraints"`
	Extra        domsession.Extra  `json:"extra"`
	CreatedAt    time.Time         `json:"created_at"`
	ExpiresAt    *time.Time        `json:"expires_at,omitempty"`
	Results      []result.Hit      `json:"results"`
}

// SessionSummary is one entry of GET /v1/searches.
type SessionSummary struct {
	SearchID    string     `json:"search_id"`
	Query       string     `json:"query"`
	ResultCount int        `json:"result_count"`
	CreatedAt   time.Time  `json:"created_at"`
	ExpiresAt   *time.Time `json:"expires_at,omitempty"`
}

// SessionListResponse is returned by GET /v1/searches.
type SessionListResponse struct {
	Items []SessionSummary `json:"items"`
}

// UnlockRequest is the body of POST /v1/unlocks.
type UnlockRequest struct {
	SearchID       string `json:"search_id,omitempty"`
	CardID         string `json:"card_id,omitempty"`
	PersonID       string `json:"person_id,omitempty"`
	IdempotencyKey string `json:"idempotency_key,omitempty"`
}

// WalletResponse is returned by GET /v1/wallet.
type WalletResponse struct {
	Balance int64 `json:"balance"`
}

// LedgerEntry is one item of GET /v1/wallet/ledger.
type LedgerEntry struct {
	Amount        int64     `json:"amount"`
	Reason        string    `json:"reason"`
	ReferenceType string    `json:"reference_type,omitempty"`
	ReferenceID   string    `json:"reference_id,omitempty"`
	BalanceAfter  int64     `json:"balance_after"`
	CreatedAt     time.Time `json:"created_at"`
}

// CardRequest is the body of POST /v1/cards.
type CardRequest struct {
	ParentID  string `json:"parent_id,omitempty"`
	Title     string `json:"title"`
	Context   string `json:"context,omitempty"`
	Outcome   string `json:"outcome,omitempty"`
	Company   string `json:"company,omitempty"`
	Team      string `json:"team,omitempty"`
	Domain    string `json:"domain,omitempty"`
	SubDomain string `json:"sub_domain,omitempty"`
	City      string `json:"city,omitempty"`
	Country   string `json:"country,omitempty"`
	Remote    bool   `json:"remote,omitempty"`
	Status    string `json:"status,omitempty"`
	Hidden    bool   `json:"hidden,omitempty"`
}

// CardResponse is the public view of a card.
type CardResponse struct {
	ID         string    `json:"id"`
	PersonID   string    `json:"person_id"`
	ParentID   string    `json:"parent_id,omitempty"`
	Depth      int       `json:"depth"`
	Title      string    `json:"title"`
	Context    string    `json:"context,omitempty"`
	Outcome    string    `json:"outcome,omitempty"`
	Company    string    `json:"company,omitempty"`
	Team       string    `json:"team,omitempty"`
	Domain     string    `json:"domain,omitempty"`
	SubDomain  string    `json:"sub_domain,omitempty"`
	City       string    `json:"city,omitempty"`
	Country    string    `json:"country,omitempty"`
	Remote     bool      `json:"remote"`
	Status     string    `json:"status"`
	Hidden     bool      `json:"hidden"`
	Searchable bool      `json:"searchable"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// UsageResponse is returned by GET /v1/usage.
type UsageResponse struct {
	Period          string    `json:"period"`
	PeriodStartAt   time.Time `json:"period_start_at"`
	PeriodEndAt     time.Time `json:"period_end_at"`
	TokensUsed      int64     `json:"tokens_used"`
	TokensLimit     int64     `json:"tokens_limit"`
	TokensRemaining int64     `json:"tokens_remaining"`
	IsExhausted     bool      `json:"is_exhausted"`
	QueryTokens     int64     `json:"query_tokens"`
	CardTokens      int64     `json:"card_tokens"`
	CardTokensLimit int64     `json:"card_tokens_limit"`
	IngestPaused    bool      `json:"card_ingest_paused"`
}

// HealthResponse is returned by GET /health.
type HealthResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks"`
}

func (f *SearchFilters) toDomain() query.Filters {
	if f == nil {
		return query.Filters{}
	}
	return query.Filters{
		OpenToWorkOnly:     f.OpenToWorkOnly,
		PreferredLocations: f.PreferredLocations,
		SalaryMin:          f.SalaryMin,
		SalaryMax:          f.SalaryMax,
		Companies:          f.Companies,
		Domains:            f.Domains,
	}
}

func searchToResponse(s *domsession.Session) SearchResponse {
	people := make([]PersonItem, len(s.Results))
	for i := range s.Results {
		h := &s.Results[i]
		people[i] = PersonItem{
			PersonID:      h.PersonID,
			DisplayName:   h.DisplayName,
			OpenToWork:    h.OpenToWork,
			OpenToContact: h.OpenToContact,
		}
	}
	return SearchResponse{SearchID: s.ID, People: people}
}

func sessionToResponse(s *domsession.Session) SessionResponse {
	results := s.Results
	if results == nil {
		results = []result.Hit{}
	}
	return SessionResponse{
		SearchID:     s.ID,
		Query:        s.QueryOriginal,
		QueryCleaned: s.QueryCleaned,
		Constraints:  s.Constraints,
		Extra:        s.Extra,
		CreatedAt:    s.CreatedAt.UTC(),
		ExpiresAt:    expiry(s.ExpiresAt),
		Results:      results,
	}
}

func summaryToResponse(s domsession.Summary) SessionSummary {
	return SessionSummary{
		SearchID:    s.ID,
		Query:       s.QueryOriginal,
		ResultCount: s.ResultCount,
		CreatedAt:   s.CreatedAt.UTC(),
		ExpiresAt:   expiry(s.ExpiresAt),
	}
}

// expiry hides the never-expire sentinel.
func expiry(t time.Time) *time.Time {
	if !t.Before(domsession.NeverExpires) {
		return nil
	}
	u := t.UTC()
	return &u
}

func (r UnlockRequest) toDomain(headerKey string) domunlock.Request {
	key := r.IdempotencyKey
	if key == "" {
		key = headerKey
	}
	return domunlock.Request{
		IdempotencyKey: key,
		SearchID:       r.SearchID,
		PersonID:       r.PersonID,
		CardID:         r.CardID,
	}
}

func entryToResponse(e domledger.Entry) LedgerEntry {
	return LedgerEntry{
		Amount:        e.Amount,
		Reason:        string(e.Reason),
		ReferenceType: e.Reference.Type,
		ReferenceID:   e.Reference.ID,
		BalanceAfter:  e.BalanceAfter,
		CreatedAt:     e.CreatedAt.UTC(),
	}
}

func (r CardRequest) toDraft() domcard.Draft {
	return domcard.Draft{
		ParentID:  r.ParentID,
		Title:     r.Title,
		Context:   r.Context,
		Outcome:   r.Outcome,
		Company:   r.Company,
		Team:      r.Team,
		Domain:    r.Domain,
		SubDomain: r.SubDomain,
		City:      r.City,
		Country:   r.Country,
		Remote:    r.Remote,
		Status:    domcard.Status(r.Status),
		Hidden:    r.Hidden,
	}
}

func cardToResponse(c *domcard.Card) CardResponse {
	return CardResponse{
		ID:         c.ID(),
		PersonID:   c.PersonID(),
		ParentID:   c.ParentID(),
		Depth:      c.Depth(),
		Title:      c.Title(),
		Context:    c.Context(),
		Outcome:    c.Outcome(),
		Company:    c.Company(),
		Team:       c.Team(),
		Domain:     c.Domain(),
		SubDomain:  c.SubDomain(),
		City:       c.City(),
		Country:    c.Country(),
		Remote:     c.Remote(),
		Status:     string(c.Status()),
		Hidden:     c.Hidden(),
		Searchable: c.Searchable(),
		UpdatedAt:  c.UpdatedAt().UTC(),
	}
}

func usageToResponse(r domusage.Report) UsageResponse {
	return UsageResponse{
		Period:          string(r.Period),
		PeriodStartAt:   r.Start,
		PeriodEndAt:     r.End,
		TokensUsed:      r.TokensUsed,
		TokensLimit:     r.TokensLimit,
		TokensRemaining: r.TokensRemaining,
		IsExhausted:     r.Exhausted(),
		QueryTokens:     r.QueryTokens,
		CardTokens:      r.CardTokens,
		CardTokensLimit: r.CardTokensLimit,
		IngestPaused:    r.CardIngestPaused(),
	}
}
