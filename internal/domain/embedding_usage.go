package domain

import (
	"context"
	"sync"
)

type embeddingUsageKey struct{}

// EmbeddingUsage tallies the tokens one HTTP request spent, per purpose.
// Card imports embed from a worker pool, so writes are locked.
type EmbeddingUsage struct {
	mu     sync.Mutex
	tokens map[Purpose]int
	used   bool
}

// EnsureUsage returns ctx with a usage tally attached, reusing one that is
// already there so middleware and handlers share it.
func EnsureUsage(ctx context.Context) (context.Context, *EmbeddingUsage) {
	if u := UsageFromContext(ctx); u != nil {
		return ctx, u
	}
	u := &EmbeddingUsage{tokens: make(map[Purpose]int, 2)}
	return context.WithValue(ctx, embeddingUsageKey{}, u), u
}

// UsageFromContext returns the tally on ctx, or nil.
func UsageFromContext(ctx context.Context) *EmbeddingUsage {
	u, _ := ctx.Value(embeddingUsageKey{}).(*EmbeddingUsage)
	return u
}

// AddTokens records n tokens spent on p. A cache hit adds zero and still
// marks the tally used. Safe on a nil receiver.
func (u *EmbeddingUsage) AddTokens(p Purpose, n int) {
	if u == nil {
		return
	}
	u.mu.Lock()
	u.tokens[p] += n
	u.used = true
	u.mu.Unlock()
}

// Used reports whether anything was embedded.
func (u *EmbeddingUsage) Used() bool {
	if u == nil {
		return false
	}
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.used
}

// Tokens returns the tokens spent on p.
func (u *EmbeddingUsage) Tokens(p Purpose) int {
	if u == nil {
		return 0
	}
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.tokens[p]
}

// Total returns the tokens spent on every purpose.
func (u *EmbeddingUsage) Total() int {
	if u == nil {
		return 0
	}
	u.mu.Lock()
	defer u.mu.Unlock()
	var n int
	for _, v := range u.tokens {
		n += v
	}
	return n
}
