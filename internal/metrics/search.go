package metrics

import "github.com/prometheus/client_golang/prometheus"

// Search and retrieval Prometheus metrics.
var (
	SearchRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "search_requests_total",
			Help:      "Total number of searches by outcome",
		},
		[]string{"status"}, // "ok" / "error"
	)

	SearchChannelDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "search_channel_duration_seconds",
			Help:      "Retrieval channel duration in seconds",
			Buckets:   []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		},
		[]string{"channel", "outcome"}, // outcome: "ok" / "error" / "timeout"
	)

	SearchChannelCandidates = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "search_channel_candidates",
			Help:      "Candidates returned per retrieval channel",
			Buckets:   []float64{0, 1, 5, 10, 25, 50, 100, 250},
		},
		[]string{"channel"},
	)

	SearchResultsCount = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "search_results",
			Help:      "People returned per search",
			Buckets:   []float64{0, 1, 5, 10, 20, 50, 100},
		},
	)

	ExplanationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "search_explanations_total",
			Help:      "Result explanations by source",
		},
		[]string{"source"}, // "model" / "template"
	)
)

// Credit and unlock Prometheus metrics.
var (
	UnlocksTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "unlocks_total",
			Help:      "Contact unlock attempts by outcome",
		},
		[]string{"outcome"},
	)

	LedgerDebitsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ledger_debits_total",
			Help:      "Wallet debits by outcome",
		},
		[]string{"outcome"}, // "applied" / "insufficient" / "error"
	)
)

var domainMetricsRegistered bool

// RegisterDomainMetrics registers search, unlock and ledger metrics. Must be called once from main.
func RegisterDomainMetrics() {
	if domainMetricsRegistered {
		return
	}
	prometheus.MustRegister(
		SearchRequestsTotal,
		SearchChannelDuration,
		SearchChannelCandidates,
		SearchResultsCount,
		ExplanationsTotal,
		UnlocksTotal,
		LedgerDebitsTotal,
	)
	domainMetricsRegistered = true
}
