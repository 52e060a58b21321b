package search

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/panjf2000/ants/v2"
	"go.uber.org/zap"

	"github.com/kailas-cloud/talentdex/internal/domain/search/channel"
	"github.com/kailas-cloud/talentdex/internal/domain/search/result"
	"github.com/kailas-cloud/talentdex/internal/metrics"
)

// Explainer attaches a "why matched" sentence to the top hits. A narrator,
// when configured, writes it; otherwise or on failure a template does.
type Explainer struct {
	narrator Narrator
	pool     *ants.Pool
	topN     int
	timeout  time.Duration
	logger   *zap.Logger
}

// NewExplainer creates an explainer with a bounded worker pool.
// narrator may be nil for template-only explanations.
func NewExplainer(narrator Narrator, poolSize, topN int, timeout time.Duration, logger *zap.Logger) (*Explainer, error) {
	if poolSize < 1 {
		poolSize = 1
	}
	pool, err := ants.NewPool(poolSize)
	if err != nil {
		return nil, fmt.Errorf("explain pool: %w", err)
	}
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	return &Explainer{narrator: narrator, pool: pool, topN: topN, timeout: timeout, logger: logger}, nil
}

// Release stops the worker pool.
func (e *Explainer) Release() {
	e.pool.Release()
}

// Annotate fills Explanation on every hit. The first topN go to the
// narrator concurrently; the rest use the template.
func (e *Explainer) Annotate(ctx context.Context, queryText string, hits []result.Hit) {
	var wg sync.WaitGroup
	for i := range hits {
		hits[i].Explanation = Template(&hits[i])
		if e.narrator == nil || i >= e.topN {
			metrics.ExplanationsTotal.WithLabelValues("template").Inc()
			continue
		}

		h := &hits[i]
		wg.Add(1)
		err := e.pool.Submit(func() {
			defer wg.Done()
			e.narrate(ctx, queryText, h)
		})
		if err != nil {
			wg.Done()
			e.logger.Warn("Explain pool rejected task", zap.Error(err))
			metrics.ExplanationsTotal.WithLabelValues("template").Inc()
		}
	}
	wg.Wait()
}

func (e *Explainer) narrate(ctx context.Context, queryText string, h *result.Hit) {
	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	text, err := e.narrator.Narrate(ctx, queryText, *h)
	text = strings.TrimSpace(text)
	if err != nil || text == "" {
		if err != nil {
			e.logger.Debug("Narrator failed, using template",
				zap.String("card_id", h.CardID), zap.Error(err))
		}
		metrics.ExplanationsTotal.WithLabelValues("template").Inc()
		return
	}
	h.Explanation = text
	metrics.ExplanationsTotal.WithLabelValues("model").Inc()
}

var channelLabels = map[string]string{
	string(channel.Vector):  "semantic match",
	string(channel.Lexical): "keyword match",
	string(channel.Fuzzy):   "location match",
	string(channel.Filter):  "meets your filters",
	channel.ShouldKey:       "preferred terms",
}

// Template renders a deterministic explanation from the score breakdown.
func Template(h *result.Hit) string {
	type part struct {
		key string
		val float64
	}
	parts := make([]part, 0, len(h.Breakdown))
	for k, v := range h.Breakdown {
		if v > 0 {
			parts = append(parts, part{k, v})
		}
	}
	sort.Slice(parts, func(i, j int) bool {
		if parts[i].val != parts[j].val {
			return parts[i].val > parts[j].val
		}
		return parts[i].key < parts[j].key
	})

	var b strings.Builder
	if h.CardTitle != "" {
		fmt.Fprintf(&b, "%q", h.CardTitle)
	} else {
		b.WriteString("This experience")
	}
	if len(parts) == 0 {
		b.WriteString(" matched your search.")
		return b.String()
	}
	b.WriteString(" ranked on ")
	for i, p := range parts {
		if i > 0 {
			b.WriteString(", ")
		}
		label := channelLabels[p.key]
		if label == "" {
			label = p.key
		}
		b.WriteString(label)
	}
	if len(h.MatchedTerms) > 0 {
		b.WriteString("; mentions ")
		b.WriteString(strings.Join(h.MatchedTerms, ", "))
	}
	b.WriteString(".")
	return b.String()
}
