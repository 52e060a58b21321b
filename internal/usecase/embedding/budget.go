package embedding

import (
	"context"
	"fmt"
	"maps"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/talentdex/internal/domain"
	domusage "github.com/kailas-cloud/talentdex/internal/domain/usage"
)

// BudgetAction defines behavior when token budget is exceeded.
type BudgetAction string

const (
	// BudgetActionWarn logs a warning but allows the request.
	BudgetActionWarn BudgetAction = "warn"
	// BudgetActionReject blocks the request.
	BudgetActionReject BudgetAction = "reject"
)

// BudgetLimits caps embedding spend. Daily and Monthly cap every purpose
// together; CardShare is the fraction of each cap card ingest may use on
// its own, so a large import leaves room for search. Zero means no cap.
type BudgetLimits struct {
	Daily     int64
	Monthly   int64
	CardShare float64
	Action    BudgetAction
}

// BudgetStore persists spend counters. Add must be safe to repeat.
type BudgetStore interface {
	Add(ctx context.Context, c domusage.Counter, tokens int64) error
	Load(ctx context.Context, c domusage.Counter) (int64, error)
}

// window is the spend of one period, split by purpose.
type window struct {
	period domusage.Period
	limit  int64
	start  time.Time
	used   map[domain.Purpose]int64
}

func newWindow(p domusage.Period, limit int64, now time.Time) *window {
	start, _ := p.Bounds(now)
	return &window{period: p, limit: limit, start: start, used: make(map[domain.Purpose]int64, 2)}
}

// roll zeroes the window when now is past its end.
func (w *window) roll(now time.Time) {
	if start, _ := w.period.Bounds(now); start.After(w.start) {
		w.start = start
		clear(w.used)
	}
}

// BudgetTracker is an in-memory token budget with write-behind persistence.
// Check stays in memory; Record writes the counters to the store after
// updating memory.
type BudgetTracker struct {
	mu        sync.Mutex
	provider  string
	action    BudgetAction
	cardShare float64
	day       *window
	month     *window
	store     BudgetStore
	now       func() time.Time
	logger    *zap.Logger
}

// NewBudgetTracker creates a tracker for one provider.
func NewBudgetTracker(provider string, limits BudgetLimits, logger *zap.Logger) *BudgetTracker {
	now := time.Now().UTC()
	action := limits.Action
	if action == "" {
		action = BudgetActionWarn
	}
	return &BudgetTracker{
		provider:  provider,
		action:    action,
		cardShare: limits.CardShare,
		day:       newWindow(domusage.PeriodDay, limits.Daily, now),
		month:     newWindow(domusage.PeriodMonth, limits.Monthly, now),
		now:       time.Now,
		logger:    logger,
	}
}

// WithStore attaches a store and loads the current windows from it.
// Load failures are logged and leave the counters at zero.
func (b *BudgetTracker) WithStore(ctx context.Context, store BudgetStore) *BudgetTracker {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.store = store
	for _, w := range []*window{b.day, b.month} {
		for _, p := range domain.Purposes() {
			c := b.counter(w, p)
			v, err := store.Load(ctx, c)
			if err != nil {
				b.logger.Warn("Failed to load budget counter",
					zap.String("period", string(w.period)), zap.String("purpose", string(p)), zap.Error(err))
				continue
			}
			w.used[p] = v
		}
	}

	b.logger.Info("Budget loaded from store",
		zap.String("provider", b.provider),
		zap.Int64("daily_query", b.day.used[domain.PurposeQuery]),
		zap.Int64("daily_card", b.day.used[domain.PurposeCard]),
		zap.Int64("monthly_used", b.spendLocked(b.month).Total()),
	)
	return b
}

func (b *BudgetTracker) counter(w *window, p domain.Purpose) domusage.Counter {
	return domusage.Counter{Provider: b.provider, Purpose: p, Period: w.period, Start: w.start}
}

func (b *BudgetTracker) rollLocked() {
	now := b.now().UTC()
	b.day.roll(now)
	b.month.roll(now)
}

func (b *BudgetTracker) spendLocked(w *window) domusage.Spend {
	var cardLimit int64
	if b.cardShare > 0 && w.limit > 0 {
		cardLimit = int64(float64(w.limit) * b.cardShare)
	}
	return domusage.Spend{Limit: w.limit, CardLimit: cardLimit, ByPurpose: maps.Clone(w.used)}
}

// Check reports whether one more embedding for p fits the budget. With the
// warn action an overrun is logged and allowed.
func (b *BudgetTracker) Check(_ context.Context, p domain.Purpose) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.rollLocked()
	for _, w := range []*window{b.day, b.month} {
		spend := b.spendLocked(w)
		if !spend.Exceeded(p) {
			continue
		}
		if b.action == BudgetActionReject {
			return fmt.Errorf("%s %s budget: %w", w.period, p, domain.ErrEmbeddingQuotaExceeded)
		}
		b.logger.Warn("Token budget exceeded",
			zap.String("provider", b.provider),
			zap.String("purpose", string(p)),
			zap.String("period", string(w.period)),
			zap.Int64("used", spend.Total()),
			zap.Int64("limit", spend.Limit),
			zap.Int64("card_used", spend.ByPurpose[domain.PurposeCard]),
			zap.Int64("card_limit", spend.CardLimit),
		)
		return nil
	}
	return nil
}

// Record adds tokens spent on p, then persists both windows.
func (b *BudgetTracker) Record(p domain.Purpose, tokens int64) {
	b.mu.Lock()
	b.rollLocked()
	b.day.used[p] += tokens
	b.month.used[p] += tokens
	store := b.store
	counters := []domusage.Counter{b.counter(b.day, p), b.counter(b.month, p)}
	b.mu.Unlock()

	if store == nil {
		return
	}

	// Write-behind on a detached context.
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	for _, c := range counters {
		if err := store.Add(ctx, c, tokens); err != nil {
			b.logger.Warn("Failed to persist budget counter",
				zap.String("period", string(c.Period)), zap.String("purpose", string(p)), zap.Error(err))
		}
	}
}

// Spend returns the current window of the period.
func (b *BudgetTracker) Spend(p domusage.Period) domusage.Spend {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.rollLocked()
	if p == domusage.PeriodDay {
		return b.spendLocked(b.day)
	}
	return b.spendLocked(b.month)
}

// Remaining returns tokens left in the period, or -1 when unlimited.
func (b *BudgetTracker) Remaining(p domusage.Period) int64 {
	return b.Spend(p).Remaining()
}
