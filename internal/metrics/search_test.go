package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestRegisterDomainMetrics_Idempotent(t *testing.T) {
	RegisterDomainMetrics()
	RegisterDomainMetrics()

	UnlocksTotal.WithLabelValues("charged").Inc()
	if got := testutil.ToFloat64(UnlocksTotal.WithLabelValues("charged")); got < 1 {
		t.Errorf("unlocks_total{charged} = %v, want >= 1", got)
	}

	SearchChannelDuration.WithLabelValues("vector", "ok").Observe(0.01)
	if n := testutil.CollectAndCount(SearchChannelDuration); n == 0 {
		t.Error("expected search_channel_duration_seconds observations")
	}
}
