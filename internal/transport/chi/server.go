package chi

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/kailas-cloud/talentdex/internal/domain"
	domusage "github.com/kailas-cloud/talentdex/internal/domain/usage"
	"github.com/kailas-cloud/talentdex/internal/logger"
	healthuc "github.com/kailas-cloud/talentdex/internal/usecase/health"
)

// maxBodyBytes bounds every JSON request body.
const maxBodyBytes = 1 << 20

// IdempotencyKeyHeader carries the unlock idempotency key when the body omits it.
const IdempotencyKeyHeader = "Idempotency-Key"

// ReplayedHeader is set on unlock responses served from a stored outcome.
const ReplayedHeader = "Idempotent-Replayed"

// errorHandler tries to handle a domain error. Returns true if handled.
type errorHandler func(w http.ResponseWriter, err error, msg string) bool

// Server serves the talentdex HTTP API.
type Server struct {
	svc           Services
	logger        *zap.Logger
	errorHandlers []errorHandler
}

// NewServer creates an HTTP API server.
func NewServer(svc Services, logger *zap.Logger) *Server {
	s := &Server{svc: svc, logger: logger}
	s.errorHandlers = []errorHandler{
		validationHandler,
		sentinelHandler(domain.ErrUnauthorized, http.StatusUnauthorized, CodeUnauthorized),
		sentinelHandler(domain.ErrNotFound, http.StatusNotFound, CodeNotFound),
		sentinelHandler(domain.ErrExpired, http.StatusGone, CodeExpired),
		sentinelHandler(domain.ErrInsufficientFunds, http.StatusPaymentRequired, CodeInsufficientFunds),
		sentinelHandler(domain.ErrContactUnavailable, http.StatusConflict, CodeContactUnavailable),
		sentinelHandler(domain.ErrAlreadyExists, http.StatusConflict, CodeConflict),
		sentinelHandler(domain.ErrVectorDimMismatch, http.StatusBadRequest, CodeVectorDimMismatch),
		sentinelHandler(domain.ErrRateLimited, http.StatusTooManyRequests, CodeRateLimited),
		sentinelHandler(domain.ErrEmbeddingQuotaExceeded, http.StatusPaymentRequired, CodeEmbeddingQuota),
		sentinelHandler(domain.ErrEmbeddingProviderError, http.StatusBadGateway, CodeEmbeddingProvider),
		retryableHandler(domain.ErrTransactionFailure, CodeTransactionFailure),
	}
	return s
}

// CreateSearch handles POST /v1/searches.
func (s *Server) CreateSearch(w http.ResponseWriter, r *http.Request) {
	var req SearchRequest
	if !decodeBody(w, r, &req) {
		return
	}

	ctx, usage := domain.EnsureUsage(r.Context())
	sess, err := s.svc.Search.Search(ctx, callerID(r), req.Query, req.Filters.toDomain())
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}

	setEmbeddingHeaders(w, usage)
	writeJSON(w, http.StatusCreated, searchToResponse(sess))
}

// ListSearches handles GET /v1/searches.
func (s *Server) ListSearches(w http.ResponseWriter, r *http.Request) {
	limit, ok := bindLimit(w, r)
	if !ok {
		return
	}

	items, err := s.svc.Sessions.List(r.Context(), callerID(r), limit)
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}

	resp := SessionListResponse{Items: make([]SessionSummary, len(items))}
	for i, it := range items {
		resp.Items[i] = summaryToResponse(it)
	}
	writeJSON(w, http.StatusOK, resp)
}

// GetSearch handles GET /v1/searches/{searchId}.
func (s *Server) GetSearch(w http.ResponseWriter, r *http.Request) {
	id, ok := bindUUID(w, r, "searchId")
	if !ok {
		return
	}

	sess, err := s.svc.Sessions.Get(r.Context(), callerID(r), id)
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sessionToResponse(sess))
}

// DeleteSearch handles DELETE /v1/searches/{searchId}.
func (s *Server) DeleteSearch(w http.ResponseWriter, r *http.Request) {
	id, ok := bindUUID(w, r, "searchId")
	if !ok {
		return
	}

	if err := s.svc.Sessions.Delete(r.Context(), callerID(r), id); err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Unlock handles POST /v1/unlocks. The stored response bytes are written
// unchanged so a replay is byte-identical to the first answer.
func (s *Server) Unlock(w http.ResponseWriter, r *http.Request) {
	var req UnlockRequest
	if !decodeBody(w, r, &req) {
		return
	}

	out, err := s.svc.Unlocks.Unlock(r.Context(), callerID(r), req.toDomain(r.Header.Get(IdempotencyKeyHeader)))
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if out.Replayed {
		w.Header().Set(ReplayedHeader, "true")
	}
	w.WriteHeader(out.StatusCode)
	_, _ = w.Write(out.Body)
}

// GetWallet handles GET /v1/wallet.
func (s *Server) GetWallet(w http.ResponseWriter, r *http.Request) {
	balance, err := s.svc.Wallet.Balance(r.Context(), callerID(r))
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, WalletResponse{Balance: balance})
}

// GetLedger handles GET /v1/wallet/ledger.
func (s *Server) GetLedger(w http.ResponseWriter, r *http.Request) {
	limit, ok := bindLimit(w, r)
	if !ok {
		return
	}

	entries, err := s.svc.Wallet.Entries(r.Context(), callerID(r), limit)
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}

	resp := make([]LedgerEntry, len(entries))
	for i, e := range entries {
		resp[i] = entryToResponse(e)
	}
	writeJSON(w, http.StatusOK, resp)
}

// CreateCard handles POST /v1/cards.
func (s *Server) CreateCard(w http.ResponseWriter, r *http.Request) {
	var req CardRequest
	if !decodeBody(w, r, &req) {
		return
	}

	ctx, usage := domain.EnsureUsage(r.Context())
	c, err := s.svc.Cards.Create(ctx, callerID(r), req.toDraft())
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}

	setEmbeddingHeaders(w, usage)
	w.Header().Set("Location", "/v1/cards/"+c.ID())
	writeJSON(w, http.StatusCreated, cardToResponse(&c))
}

// GetCard handles GET /v1/cards/{cardId}.
func (s *Server) GetCard(w http.ResponseWriter, r *http.Request) {
	id, ok := bindUUID(w, r, "cardId")
	if !ok {
		return
	}

	c, err := s.svc.Cards.Get(r.Context(), callerID(r), id)
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, cardToResponse(&c))
}

// DeleteCard handles DELETE /v1/cards/{cardId}.
func (s *Server) DeleteCard(w http.ResponseWriter, r *http.Request) {
	id, ok := bindUUID(w, r, "cardId")
	if !ok {
		return
	}

	if err := s.svc.Cards.Delete(r.Context(), callerID(r), id); err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// GetUsage handles GET /v1/usage.
func (s *Server) GetUsage(w http.ResponseWriter, r *http.Request) {
	period, err := domusage.ParsePeriod(r.URL.Query().Get("period"))
	if err != nil {
		writeError(w, http.StatusBadRequest, CodeBadRequest, "invalid period: must be day or month")
		return
	}
	writeJSON(w, http.StatusOK, usageToResponse(s.svc.Usage.GetReport(r.Context(), period)))
}

// HealthCheck handles GET /health.
func (s *Server) HealthCheck(w http.ResponseWriter, r *http.Request) {
	report := s.svc.Health.Check(r.Context())

	checks := make(map[string]string, len(report.Checks))
	for k, v := range report.Checks {
		checks[k] = string(v)
	}

	httpStatus := http.StatusOK
	if report.Status == healthuc.Unhealthy {
		httpStatus = http.StatusServiceUnavailable
	}

	writeJSON(w, httpStatus, HealthResponse{
		Status: string(report.Status),
		Checks: checks,
	})
}

// Metrics handles GET /metrics.
func (s *Server) Metrics(w http.ResponseWriter, r *http.Request) {
	promhttp.Handler().ServeHTTP(w, r)
}

func decodeBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	body := http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(body).Decode(dst); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, CodeRequestBodyTooLarge, "request body too large")
			return false
		}
		writeError(w, http.StatusBadRequest, CodeBadRequest, "invalid request body")
		return false
	}
	return true
}

func setEmbeddingHeaders(w http.ResponseWriter, usage *domain.EmbeddingUsage) {
	if usage.Used() {
		w.Header().Set("X-Embedding-Tokens", strconv.Itoa(usage.Total()))
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code ErrorCode, message string) {
	writeJSON(w, status, ErrorResponse{
		Code:    code,
		Message: message,
	})
}

// safeDomainMessage returns a client-safe message: field-level validation
// details or the sentinel text, never the wrapped internal chain.
func safeDomainMessage(err error) string {
	var verr *domain.ValidationError
	if errors.As(err, &verr) {
		return verr.Error()
	}
	sentinels := []error{
		domain.ErrValidation,
		domain.ErrUnauthorized,
		domain.ErrNotFound,
		domain.ErrExpired,
		domain.ErrInsufficientFunds,
		domain.ErrContactUnavailable,
		domain.ErrAlreadyExists,
		domain.ErrTransactionFailure,
		domain.ErrVectorDimMismatch,
		domain.ErrRateLimited,
		domain.ErrEmbeddingQuotaExceeded,
		domain.ErrEmbeddingProviderError,
	}
	for _, s := range sentinels {
		if errors.Is(err, s) {
			return s.Error()
		}
	}
	return "internal error"
}

func sentinelHandler(sentinel error, status int, code ErrorCode) errorHandler {
	return func(w http.ResponseWriter, err error, msg string) bool {
		if !errors.Is(err, sentinel) {
			return false
		}
		writeError(w, status, code, msg)
		return true
	}
}

func validationHandler(w http.ResponseWriter, err error, msg string) bool {
	if !errors.Is(err, domain.ErrValidation) {
		return false
	}
	writeError(w, http.StatusBadRequest, CodeValidationFailed, msg)
	return true
}

func retryableHandler(sentinel error, code ErrorCode) errorHandler {
	return func(w http.ResponseWriter, err error, msg string) bool {
		if !errors.Is(err, sentinel) {
			return false
		}
		w.Header().Set("Retry-After", "1")
		writeError(w, http.StatusServiceUnavailable, code, msg)
		return true
	}
}

func (s *Server) handleDomainError(w http.ResponseWriter, r *http.Request, err error) {
	log := logger.FromContextOr(r.Context(), s.logger)
	msg := safeDomainMessage(err)
	for _, h := range s.errorHandlers {
		if h(w, err, msg) {
			log.Warn("domain error", zap.Error(err))
			return
		}
	}
	log.Error("internal error", zap.Error(err))
	writeError(w, http.StatusInternalServerError, CodeInternalError, "internal error")
}
