package usage

import domusage "github.com/kailas-cloud/talentdex/internal/domain/usage"

// BudgetReader exposes the spend of the current budget windows.
type BudgetReader interface {
	Spend(period domusage.Period) domusage.Spend
}
