// Package usage describes embedding token consumption against the
// configured budget, split by caller path.
package usage

import (
	"fmt"
	"time"

	"github.com/kailas-cloud/talentdex/internal/domain"
)

// Period is the aggregation granularity.
type Period string

// Aggregation periods.
const (
	PeriodDay   Period = "day"
	PeriodMonth Period = "month"
)

// ParsePeriod maps a query value to a Period. Empty means month.
func ParsePeriod(s string) (Period, error) {
	switch Period(s) {
	case "", PeriodMonth:
		return PeriodMonth, nil
	case PeriodDay:
		return PeriodDay, nil
	default:
		return "", fmt.Errorf("unknown period %q", s)
	}
}

// Bounds returns the UTC period window containing now.
func (p Period) Bounds(now time.Time) (start, end time.Time) {
	now = now.UTC()
	if p == PeriodDay {
		start = time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
		return start, start.AddDate(0, 0, 1)
	}
	start = time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
	return start, start.AddDate(0, 1, 0)
}

// Counter identifies one persisted spend bucket: a provider's tokens for one
// purpose in the period window that starts at Start.
type Counter struct {
	Provider string
	Purpose  domain.Purpose
	Period   Period
	Start    time.Time
}

// Bucket renders the window as it appears in counter keys.
func (c Counter) Bucket() string {
	if c.Period == PeriodDay {
		return c.Start.UTC().Format("2006-01-02")
	}
	return c.Start.UTC().Format("2006-01")
}

// Spend is the tokens consumed in one period window. Limit caps the total,
// CardLimit caps card ingest alone so imports cannot starve search. Zero
// means no cap.
type Spend struct {
	Limit     int64
	CardLimit int64
	ByPurpose map[domain.Purpose]int64
}

// Total sums every purpose.
func (s Spend) Total() int64 {
	var n int64
	for _, v := range s.ByPurpose {
		n += v
	}
	return n
}

// Remaining returns the tokens left under Limit, or -1 when unlimited.
func (s Spend) Remaining() int64 {
	if s.Limit <= 0 {
		return -1
	}
	return max(s.Limit-s.Total(), 0)
}

// Exceeded reports whether one more embedding for p would go over a cap.
func (s Spend) Exceeded(p domain.Purpose) bool {
	if s.Limit > 0 && s.Total() >= s.Limit {
		return true
	}
	return p == domain.PurposeCard && s.CardLimit > 0 && s.ByPurpose[domain.PurposeCard] >= s.CardLimit
}

// Report is the embedding token usage of one period. A zero TokensLimit
// means the budget is unlimited; TokensRemaining is then -1.
type Report struct {
	Period          Period
	Start           time.Time
	End             time.Time
	TokensUsed      int64
	TokensLimit     int64
	TokensRemaining int64
	QueryTokens     int64
	CardTokens      int64
	CardTokensLimit int64
}

// NewReport renders spend for the period window containing now.
func NewReport(p Period, now time.Time, s Spend) Report {
	start, end := p.Bounds(now)
	return Report{
		Period:          p,
		Start:           start,
		End:             end,
		TokensUsed:      s.Total(),
		TokensLimit:     s.Limit,
		TokensRemaining: s.Remaining(),
		QueryTokens:     s.ByPurpose[domain.PurposeQuery],
		CardTokens:      s.ByPurpose[domain.PurposeCard],
		CardTokensLimit: s.CardLimit,
	}
}

// Exhausted reports whether a limited budget has no tokens left.
func (r Report) Exhausted() bool {
	return r.TokensLimit > 0 && r.TokensRemaining <= 0
}

// CardIngestPaused reports whether card embedding is over its share while
// search may still spend.
func (r Report) CardIngestPaused() bool {
	return r.CardTokensLimit > 0 && r.CardTokens >= r.CardTokensLimit
}
