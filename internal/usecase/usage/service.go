// Package usage reports embedding token consumption split by caller path.
package usage

import (
	"context"
	"time"

	domusage "github.com/kailas-cloud/talentdex/internal/domain/usage"
)

// Service handles usage reporting.
type Service struct {
	br  BudgetReader
	now func() time.Time
}

// New creates a Service. br can be nil when no budget is configured; the
// report then carries only the period bounds.
func New(br BudgetReader) *Service {
	return &Service{br: br, now: time.Now}
}

// GetReport builds a usage report for the period containing now.
func (s *Service) GetReport(_ context.Context, period domusage.Period) domusage.Report {
	var spend domusage.Spend
	if s.br != nil {
		spend = s.br.Spend(period)
	}
	return domusage.NewReport(period, s.now(), spend)
}
