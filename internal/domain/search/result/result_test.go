package result

import "testing"

func TestContribution(t *testing.T) {
	h := Hit{Breakdown: map[string]float64{"vector": 0.4}}
	if h.Contribution("vector") != 0.4 {
		t.Errorf("vector = %v", h.Contribution("vector"))
	}
	if h.Contribution("lexical") != 0 {
		t.Errorf("lexical = %v, want 0", h.Contribution("lexical"))
	}

	var empty Hit
	if empty.Contribution("vector") != 0 {
		t.Error("nil breakdown must read as zero")
	}
}
