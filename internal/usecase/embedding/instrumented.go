package embedding

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/talentdex/internal/domain"
	domusage "github.com/kailas-cloud/talentdex/internal/domain/usage"
	"github.com/kailas-cloud/talentdex/internal/metrics"
)

// DefaultMaxAPIBatchSize caps the number of texts sent in one provider request.
const DefaultMaxAPIBatchSize = 256

// BudgetChecker is the budget seen by one embedder chain.
type BudgetChecker interface {
	Check(ctx context.Context, p domain.Purpose) error
	Record(p domain.Purpose, tokens int64)
	Remaining(period domusage.Period) int64
}

// InstrumentedEmbedder charges every embedding of one chain to a single
// purpose: it gates calls on the budget, records billed tokens and exports
// spend per purpose. It sits above the cache, so hits cost nothing.
type InstrumentedEmbedder struct {
	inner    domain.Embedder
	purpose  domain.Purpose
	provider string
	budget   BudgetChecker
	logger   *zap.Logger
}

// NewInstrumentedEmbedder wraps inner. budget may be nil.
func NewInstrumentedEmbedder(
	inner domain.Embedder, purpose domain.Purpose, provider string,
	budget BudgetChecker, logger *zap.Logger,
) *InstrumentedEmbedder {
	return &InstrumentedEmbedder{
		inner:    inner,
		purpose:  purpose,
		provider: provider,
		budget:   budget,
		logger:   logger.With(zap.String("purpose", string(purpose))),
	}
}

// Purpose returns the caller path this chain is charged to.
func (p *InstrumentedEmbedder) Purpose() domain.Purpose { return p.purpose }

// Embed checks the budget, delegates and records the spend.
func (p *InstrumentedEmbedder) Embed(ctx context.Context, text string) (domain.EmbeddingResult, error) {
	if err := p.check(ctx, 1); err != nil {
		return domain.EmbeddingResult{}, err
	}

	start := time.Now()
	result, err := p.inner.Embed(ctx, text)
	if err != nil {
		p.logger.Error("Embedding failed", zap.Duration("duration", time.Since(start)), zap.Error(err))
		return domain.EmbeddingResult{}, fmt.Errorf("embed %s: %w", p.purpose, err)
	}

	p.spend(result.TotalTokens)
	p.logger.Debug("Embedding completed",
		zap.Duration("duration", time.Since(start)),
		zap.Int("dimensions", len(result.Embedding)),
		zap.Int("total_tokens", result.TotalTokens),
	)
	return result, nil
}

// BatchEmbed embeds texts in provider-sized chunks. The budget is checked
// before every chunk so a long import stops once its share is spent; chunks
// already embedded are still recorded.
func (p *InstrumentedEmbedder) BatchEmbed(ctx context.Context, texts []string) (domain.BatchEmbeddingResult, error) {
	if len(texts) == 0 {
		return domain.BatchEmbeddingResult{}, nil
	}

	start := time.Now()
	var out domain.BatchEmbeddingResult
	for offset := 0; offset < len(texts); offset += DefaultMaxAPIBatchSize {
		chunk := texts[offset:min(offset+DefaultMaxAPIBatchSize, len(texts))]

		if err := p.check(ctx, len(chunk)); err != nil {
			return domain.BatchEmbeddingResult{}, fmt.Errorf("chunk at %d: %w", offset, err)
		}

		res, err := p.embedChunk(ctx, chunk)
		if err != nil {
			p.logger.Error("Batch embedding failed",
				zap.Int("chunk_offset", offset), zap.Int("chunk_size", len(chunk)), zap.Error(err))
			return domain.BatchEmbeddingResult{}, fmt.Errorf("batch embed %s: %w", p.purpose, err)
		}
		p.spend(res.TotalTokens)

		out.Embeddings = append(out.Embeddings, res.Embeddings...)
		out.PromptTokens += res.PromptTokens
		out.TotalTokens += res.TotalTokens
	}

	p.logger.Debug("Batch embedding completed",
		zap.Duration("duration", time.Since(start)),
		zap.Int("batch_size", len(texts)),
		zap.Int("total_tokens", out.TotalTokens),
	)
	return out, nil
}

func (p *InstrumentedEmbedder) check(ctx context.Context, size int) error {
	if p.budget == nil {
		return nil
	}
	if err := p.budget.Check(ctx, p.purpose); err != nil {
		metrics.EmbeddingBudgetDeniedTotal.WithLabelValues(p.provider, string(p.purpose)).Inc()
		p.logger.Warn("Embedding refused by budget", zap.Int("texts", size), zap.Error(err))
		return fmt.Errorf("budget check: %w", err)
	}
	return nil
}

func (p *InstrumentedEmbedder) embedChunk(ctx context.Context, texts []string) (domain.BatchEmbeddingResult, error) {
	if be, ok := p.inner.(domain.BatchEmbedder); ok {
		return be.BatchEmbed(ctx, texts) //nolint:wrapcheck // wrapped by BatchEmbed
	}
	return domain.BatchFallback(ctx, p.inner, texts)
}

func (p *InstrumentedEmbedder) spend(tokens int) {
	if tokens <= 0 {
		return
	}
	metrics.EmbeddingTokensTotal.WithLabelValues(p.provider, string(p.purpose)).Add(float64(tokens))
	if p.budget == nil {
		return
	}
	p.budget.Record(p.purpose, int64(tokens))
	for _, period := range []domusage.Period{domusage.PeriodDay, domusage.PeriodMonth} {
		metrics.EmbeddingBudgetTokensRemaining.WithLabelValues(p.provider, string(period)).
			Set(float64(p.budget.Remaining(period)))
	}
}

// HealthCheck forwards to the inner embedder when it supports health probing.
func (p *InstrumentedEmbedder) HealthCheck(ctx context.Context) error {
	if hc, ok := p.inner.(domain.HealthChecker); ok {
		return hc.HealthCheck(ctx)
	}
	return nil
}
