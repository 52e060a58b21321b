package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/kailas-cloud/talentdex/internal/domain"
)

func newTestRouter() chi.Router {
	r := chi.NewRouter()
	r.Use(Middleware())
	r.Route("/v1", func(r chi.Router) {
		r.Post("/searches", func(w http.ResponseWriter, r *http.Request) {
			domain.UsageFromContext(r.Context()).AddTokens(domain.PurposeQuery, 9)
			w.WriteHeader(http.StatusCreated)
		})
		r.Post("/cards", func(w http.ResponseWriter, r *http.Request) {
			domain.UsageFromContext(r.Context()).AddTokens(domain.PurposeCard, 31)
			w.WriteHeader(http.StatusCreated)
		})
		r.Get("/searches/{searchId}", func(w http.ResponseWriter, _ *http.Request) {
			_, _ = w.Write([]byte("{}"))
		})
		r.Post("/unlocks", func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusPaymentRequired)
		})
	})
	return r
}

func serve(r http.Handler, method, path string) *httptest.ResponseRecorder {
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest(method, path, http.NoBody))
	return rr
}

func TestMiddleware_LabelsByRoutePattern(t *testing.T) {
	r := newTestRouter()

	serve(r, http.MethodGet, "/v1/searches/2b1f0c3e-0000-4000-8000-000000000001")
	serve(r, http.MethodGet, "/v1/searches/2b1f0c3e-0000-4000-8000-000000000002")

	if got := testutil.ToFloat64(httpRequestsTotal.WithLabelValues("GET", "/v1/searches/{searchId}", "200")); got < 2 {
		t.Errorf("requests for the session route = %v, want >= 2", got)
	}
	if testutil.CollectAndCount(httpRequestDuration) == 0 {
		t.Error("expected duration observations")
	}
}

func TestMiddleware_RecordsStatus(t *testing.T) {
	r := newTestRouter()

	if rr := serve(r, http.MethodPost, "/v1/unlocks"); rr.Code != http.StatusPaymentRequired {
		t.Fatalf("status = %d", rr.Code)
	}
	if got := testutil.ToFloat64(httpRequestsTotal.WithLabelValues("POST", "/v1/unlocks", "402")); got < 1 {
		t.Errorf("402 unlocks = %v, want >= 1", got)
	}
}

func TestMiddleware_EmbeddingTokensByPurpose(t *testing.T) {
	r := newTestRouter()

	searchBefore := testutil.ToFloat64(httpEmbeddingTokens.WithLabelValues("/v1/searches", "query"))
	cardBefore := testutil.ToFloat64(httpEmbeddingTokens.WithLabelValues("/v1/cards", "card"))

	serve(r, http.MethodPost, "/v1/searches")
	serve(r, http.MethodPost, "/v1/cards")

	if got := testutil.ToFloat64(httpEmbeddingTokens.WithLabelValues("/v1/searches", "query")) - searchBefore; got != 9 {
		t.Errorf("search query tokens = %v, want 9", got)
	}
	if got := testutil.ToFloat64(httpEmbeddingTokens.WithLabelValues("/v1/cards", "card")) - cardBefore; got != 31 {
		t.Errorf("card ingest tokens = %v, want 31", got)
	}
	if got := testutil.ToFloat64(httpEmbeddingTokens.WithLabelValues("/v1/searches", "card")); got != 0 {
		t.Errorf("search route must not charge card ingest, got %v", got)
	}
}

func TestMiddleware_InFlightReturnsToZero(t *testing.T) {
	r := newTestRouter()
	serve(r, http.MethodPost, "/v1/searches")
	if got := testutil.ToFloat64(httpRequestsInFlight); got != 0 {
		t.Errorf("in flight = %v after the request finished", got)
	}
}

func TestRouteLabel_Unmatched(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/nowhere", http.NoBody)
	if got := routeLabel(req); got != "unmatched" {
		t.Errorf("routeLabel = %q", got)
	}
}
