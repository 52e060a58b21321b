package chi

import (
	"context"

	domcard "github.com/kailas-cloud/talentdex/internal/domain/card"
	domledger "github.com/kailas-cloud/talentdex/internal/domain/ledger"
	"github.com/kailas-cloud/talentdex/internal/domain/search/query"
	domsession "github.com/kailas-cloud/talentdex/internal/domain/session"
	domunlock "github.com/kailas-cloud/talentdex/internal/domain/unlock"
	domusage "github.com/kailas-cloud/talentdex/internal/domain/usage"
	healthuc "github.com/kailas-cloud/talentdex/internal/usecase/health"
	unlockuc "github.com/kailas-cloud/talentdex/internal/usecase/unlock"
)

// Searcher runs searches.
type Searcher interface {
	Search(ctx context.Context, ownerID, raw string, filters query.Filters) (*domsession.Session, error)
}

// Sessions reads and deletes stored searches of the caller.
type Sessions interface {
	Get(ctx context.Context, ownerID, id string) (*domsession.Session, error)
	List(ctx context.Context, ownerID string, limit int) ([]domsession.Summary, error)
	Delete(ctx context.Context, ownerID, id string) error
}

// Wallet reads the caller's credits.
type Wallet interface {
	Balance(ctx context.Context, personID string) (int64, error)
	Entries(ctx context.Context, personID string, limit int) ([]domledger.Entry, error)
}

// Unlocker reveals contact details.
type Unlocker interface {
	Unlock(ctx context.Context, callerID string, req domunlock.Request) (unlockuc.Outcome, error)
}

// Cards manages the caller's experience cards.
type Cards interface {
	Create(ctx context.Context, ownerID string, d domcard.Draft) (domcard.Card, error)
	Get(ctx context.Context, callerID, id string) (domcard.Card, error)
	Delete(ctx context.Context, ownerID, id string) error
}

// UsageReporter reports embedding token usage.
type UsageReporter interface {
	GetReport(ctx context.Context, period domusage.Period) domusage.Report
}

// HealthChecker aggregates component health.
type HealthChecker interface {
	Check(ctx context.Context) healthuc.Report
}

// Services groups the use cases served over HTTP.
type Services struct {
	Search   Searcher
	Sessions Sessions
	Wallet   Wallet
	Unlocks  Unlocker
	Cards    Cards
	Usage    UsageReporter
	Health   HealthChecker
}
