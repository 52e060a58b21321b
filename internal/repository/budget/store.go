// Package budget persists embedding spend counters in Redis.
package budget

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/kailas-cloud/talentdex/internal/db"
	domusage "github.com/kailas-cloud/talentdex/internal/domain/usage"
)

type kv interface {
	Get(ctx context.Context, key string) ([]byte, error)
	IncrBy(ctx context.Context, key string, val int64) error
	Expire(ctx context.Context, key string, ttl time.Duration, nx bool) error
}

// Counter lifetimes. Each outlives its window so the report for a window
// that just closed can still be read.
const (
	DefaultDailyTTL   = 48 * time.Hour
	DefaultMonthlyTTL = 62 * 24 * time.Hour
)

// Store keeps one INCRBY counter per provider, purpose and window under
// {prefix}budget:{provider}:{purpose}:{period}:{bucket}.
type Store struct {
	kv       kv
	prefix   string
	dailyTTL time.Duration
	monthTTL time.Duration
}

// New creates a store. Zero TTLs fall back to the defaults.
func New(s kv, prefix string, dailyTTL, monthTTL time.Duration) *Store {
	if dailyTTL <= 0 {
		dailyTTL = DefaultDailyTTL
	}
	if monthTTL <= 0 {
		monthTTL = DefaultMonthlyTTL
	}
	return &Store{kv: s, prefix: prefix, dailyTTL: dailyTTL, monthTTL: monthTTL}
}

// Key renders the Redis key of c.
func (s *Store) Key(c domusage.Counter) string {
	return fmt.Sprintf("%sbudget:%s:%s:%s:%s", s.prefix, c.Provider, c.Purpose, c.Period, c.Bucket())
}

func (s *Store) ttl(p domusage.Period) time.Duration {
	if p == domusage.PeriodDay {
		return s.dailyTTL
	}
	return s.monthTTL
}

// Add increments c by tokens. The TTL is set only when the key has none,
// so repeated writes never extend a window.
func (s *Store) Add(ctx context.Context, c domusage.Counter, tokens int64) error {
	key := s.Key(c)
	if err := s.kv.IncrBy(ctx, key, tokens); err != nil {
		return fmt.Errorf("budget INCRBY %s: %w", key, err)
	}
	if err := s.kv.Expire(ctx, key, s.ttl(c.Period), true); err != nil {
		return fmt.Errorf("budget EXPIRE %s: %w", key, err)
	}
	return nil
}

// Load returns the value of c, zero when the key does not exist.
func (s *Store) Load(ctx context.Context, c domusage.Counter) (int64, error) {
	key := s.Key(c)
	data, err := s.kv.Get(ctx, key)
	if errors.Is(err, db.ErrKeyNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("budget GET %s: %w", key, err)
	}
	val, err := strconv.ParseInt(string(data), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("budget GET %s parse: %w", key, err)
	}
	return val, nil
}
