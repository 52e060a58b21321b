// Package app is the composition root shared by the server and the admin CLI.
package app

import (
	"context"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/kailas-cloud/talentdex/internal/config"
	"github.com/kailas-cloud/talentdex/internal/db"
	dbRedis "github.com/kailas-cloud/talentdex/internal/db/redis"
	"github.com/kailas-cloud/talentdex/internal/domain"
	"github.com/kailas-cloud/talentdex/internal/domain/search/channel"
	"github.com/kailas-cloud/talentdex/internal/domain/search/query"
	"github.com/kailas-cloud/talentdex/internal/metrics"
	budgetrepo "github.com/kailas-cloud/talentdex/internal/repository/budget"
	cardrepo "github.com/kailas-cloud/talentdex/internal/repository/card"
	"github.com/kailas-cloud/talentdex/internal/repository/embcache"
	searchrepo "github.com/kailas-cloud/talentdex/internal/repository/search"
	"github.com/kailas-cloud/talentdex/internal/storage/sqlite"
	openaiEmb "github.com/kailas-cloud/talentdex/internal/transport/openai"
	carduc "github.com/kailas-cloud/talentdex/internal/usecase/card"
	embeddinguc "github.com/kailas-cloud/talentdex/internal/usecase/embedding"
	healthuc "github.com/kailas-cloud/talentdex/internal/usecase/health"
	ledgeruc "github.com/kailas-cloud/talentdex/internal/usecase/ledger"
	searchuc "github.com/kailas-cloud/talentdex/internal/usecase/search"
	sessionuc "github.com/kailas-cloud/talentdex/internal/usecase/session"
	unlockuc "github.com/kailas-cloud/talentdex/internal/usecase/unlock"
	usageuc "github.com/kailas-cloud/talentdex/internal/usecase/usage"
)

// App holds the stores and services built from one Config.
type App struct {
	Index   *dbRedis.Store
	Records *sqlite.Store
	Cards   *cardrepo.Repo
	Budget  *embeddinguc.BudgetTracker

	CardSvc    *carduc.Service
	SearchSvc  *searchuc.Service
	SessionSvc *sessionuc.Service
	LedgerSvc  *ledgeruc.Service
	UnlockSvc  *unlockuc.Service
	UsageSvc   *usageuc.Service
	HealthSvc  *healthuc.Service

	explainer *searchuc.Explainer
	logger    *zap.Logger
}

// Schema returns the vector schema configured for cards.
func Schema(cfg *config.Config) domain.VectorSchema {
	return domain.VectorSchema{
		Version:             cfg.Embedding.SchemaVersion,
		Model:               cfg.Embedding.Model,
		Dimensions:          cfg.Embedding.Dimensions,
		DocumentInstruction: cfg.Embedding.DocumentInstruction,
		QueryInstruction:    cfg.Embedding.QueryInstruction,
	}
}

// OpenStores connects to Redis and SQLite and waits for Redis to answer.
// Migrations are not applied here.
func OpenStores(ctx context.Context, cfg *config.Config) (*dbRedis.Store, *sqlite.Store, error) {
	index, err := dbRedis.NewStore(dbRedis.Config{
		Addrs:       cfg.Database.Addrs,
		Username:    cfg.Database.Username,
		Password:    cfg.Database.Password,
		DB:          cfg.Database.DB,
		DialTimeout: time.Duration(cfg.Database.DialTimeoutMs) * time.Millisecond,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("redis store: %w", err)
	}
	if err := index.WaitForReady(ctx, time.Duration(cfg.Database.ReadinessTimeout)*time.Second); err != nil {
		index.Close()
		return nil, nil, fmt.Errorf("redis not ready: %w", err)
	}

	records, err := sqlite.Open(ctx, cfg.SQLite.Path, sqlite.Options{
		BusyTimeout:  time.Duration(cfg.SQLite.BusyTimeoutMs) * time.Millisecond,
		MaxOpenConns: cfg.SQLite.MaxOpenConns,
	})
	if err != nil {
		index.Close()
		return nil, nil, fmt.Errorf("sqlite store: %w", err)
	}
	return index, records, nil
}

// CardRepo builds the card repository for the configured schema.
func CardRepo(cfg *config.Config, index *dbRedis.Store) *cardrepo.Repo {
	layout := cardrepo.NewLayout(cfg.Storage.KeyPrefix, Schema(cfg))
	return cardrepo.New(index, layout, cardrepo.HNSWConfig{
		M:           cfg.Index.HNSWM,
		EFConstruct: cfg.Index.HNSWEFConstruct,
		EFRuntime:   cfg.Index.HNSWEFRuntime,
	})
}

// Build opens the stores, migrates SQLite, ensures the card index and
// assembles every service.
func Build(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*App, error) {
	index, records, err := OpenStores(ctx, cfg)
	if err != nil {
		return nil, err
	}
	a := &App{Index: index, Records: records, logger: logger}

	applied, err := records.Migrate(ctx)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	if len(applied) > 0 {
		logger.Info("Applied migrations", zap.Strings("migrations", applied))
	}

	a.Cards = CardRepo(cfg, index)
	created, err := a.Cards.EnsureIndex(ctx)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("ensure index: %w", err)
	}
	if created {
		logger.Info("Created card index", zap.String("index", a.Cards.Layout().IndexName()))
	}

	metrics.RegisterEmbeddingMetrics()
	metrics.RegisterDomainMetrics()

	schema := Schema(cfg)
	provName := cfg.Embedding.Provider.Name

	// One tracker is shared by the query and card chains and the usage service.
	if b := cfg.Embedding.Budget; b.Enabled() {
		a.Budget = embeddinguc.NewBudgetTracker(provName, embeddinguc.BudgetLimits{
			Daily:     b.DailyTokenLimit,
			Monthly:   b.MonthlyTokenLimit,
			CardShare: b.CardShare,
			Action:    embeddinguc.BudgetAction(b.Action),
		}, logger).WithStore(ctx, budgetrepo.New(index, cfg.Storage.KeyPrefix, 0, 0))
	}

	// Pass a nil interface, not a typed nil pointer, when no budget is configured.
	var budget embeddinguc.BudgetChecker
	var budgetReader usageuc.BudgetReader
	if a.Budget != nil {
		budget = a.Budget
		budgetReader = a.Budget
	}

	docEmbedder := buildEmbedder(cfg, schema, domain.PurposeCard, index, budget, logger)
	queryEmbedder := buildEmbedder(cfg, schema, domain.PurposeQuery, index, budget, logger)
	logger.Info("Embedders created",
		zap.String("provider", provName),
		zap.String("model", schema.Model),
		zap.Int("dimensions", schema.Dimensions),
		zap.String("schema", schema.Tag()),
		zap.Float64("card_share", cfg.Embedding.Budget.CardShare),
	)

	a.CardSvc, err = carduc.New(a.Cards, records, docEmbedder, schema.Dimensions, cfg.Cards.ImportPoolSize, logger)
	if err != nil {
		a.Close()
		return nil, err
	}

	if cfg.Search.Explain.Enabled {
		var narrator searchuc.Narrator
		if cfg.Search.Explain.Model != "" {
			narrator = openaiEmb.NewNarrator(&openaiEmb.Config{
				APIKey:   cfg.Embedding.Provider.APIKey,
				BaseURL:  cfg.Embedding.Provider.BaseURL,
				Model:    cfg.Search.Explain.Model,
				Provider: provName,
				Logger:   logger,
			}, cfg.Search.Explain.MaxTokens)
		}
		a.explainer, err = searchuc.NewExplainer(
			narrator, cfg.Search.Explain.PoolSize, cfg.Search.Explain.TopN,
			time.Duration(cfg.Search.Explain.TimeoutMs)*time.Millisecond, logger,
		)
		if err != nil {
			a.Close()
			return nil, err
		}
	}

	a.SearchSvc = searchuc.New(
		searchrepo.New(index, a.Cards.Layout()), queryEmbedder, records, records, a.explainer,
		searchOptions(cfg),
	)
	a.SessionSvc = sessionuc.New(records)
	a.LedgerSvc = ledgeruc.New(records)
	a.UnlockSvc = unlockuc.New(records, a.Cards, unlockuc.Options{
		Cost:    cfg.Credits.UnlockCost,
		Timeout: time.Duration(cfg.Credits.UnlockTimeoutMs) * time.Millisecond,
	})
	a.UsageSvc = usageuc.New(budgetReader)
	a.HealthSvc = healthuc.New(index, records, newEmbeddingHealthChecker(docEmbedder))

	return a, nil
}

// Close releases worker pools and store connections.
func (a *App) Close() {
	if a.CardSvc != nil {
		a.CardSvc.Release()
	}
	if a.explainer != nil {
		a.explainer.Release()
	}
	if a.Records != nil {
		if err := a.Records.Close(); err != nil && a.logger != nil {
			a.logger.Warn("Closing sqlite", zap.Error(err))
		}
	}
	if a.Index != nil {
		a.Index.Close()
	}
}

func searchOptions(cfg *config.Config) searchuc.Options {
	s := cfg.Search
	return searchuc.Options{
		CandidateLimit: s.CandidateLimit,
		ResultLimit:    s.ResultLimit,
		ChannelTimeout: time.Duration(s.ChannelTimeoutMs) * time.Millisecond,
		MinSimilarity:  s.MinSimilarity,
		FuzzyThreshold: s.FuzzyThreshold,
		TieEpsilon:     s.TieEpsilon,
		Weights: channel.Weights{
			Vector:  s.Weights.Vector,
			Lexical: s.Weights.Lexical,
			Fuzzy:   s.Weights.Fuzzy,
			Filter:  s.Weights.Filter,
			Should:  s.Weights.Should,
		},
		Vocabulary: query.NewVocabulary(s.Domains),
	}
}

// buildEmbedder assembles the chain charged to purpose:
// OpenAI -> Cached -> Instrumented -> Instruction -> Fitted.
func buildEmbedder(
	cfg *config.Config,
	schema domain.VectorSchema,
	purpose domain.Purpose,
	store db.Store,
	budget embeddinguc.BudgetChecker,
	logger *zap.Logger,
) domain.Embedder {
	prov := cfg.Embedding.Provider

	base := openaiEmb.NewEmbedder(&openaiEmb.Config{
		APIKey:     prov.APIKey,
		BaseURL:    prov.BaseURL,
		Model:      schema.Model,
		Dimensions: schema.Dimensions,
		User:       "talentdex-" + string(purpose),
		Provider:   prov.Name,
		Logger:     logger,
	})

	namespace := fmt.Sprintf("%s:%s:%d", schema.Model, schema.Tag(), schema.Dimensions)
	var embedder domain.Embedder = embcache.New(
		base, store, cfg.Storage.KeyPrefix, namespace,
		time.Duration(cfg.Embedding.CacheTTLHours)*time.Hour,
		metrics.EmbeddingCacheTotal.MustCurryWith(prometheus.Labels{"purpose": string(purpose)}), logger,
	)

	embedder = embeddinguc.NewInstrumentedEmbedder(embedder, purpose, prov.Name, budget, logger)

	// The cache key includes the instruction prefix.
	if instruction := schema.InstructionFor(purpose); instruction != "" {
		embedder = domain.NewInstructionEmbedder(embedder, instruction)
	}

	return domain.NewFittedEmbedder(embedder, schema.Dimensions)
}

// embeddingHealthChecker adapts domain.Embedder to health.EmbeddingChecker.
type embeddingHealthChecker struct {
	embedder domain.Embedder
}

func newEmbeddingHealthChecker(embedder domain.Embedder) *embeddingHealthChecker {
	return &embeddingHealthChecker{embedder: embedder}
}

func (h *embeddingHealthChecker) HealthCheck(ctx context.Context) error {
	if hc, ok := h.embedder.(domain.HealthChecker); ok {
		if err := hc.HealthCheck(ctx); err != nil {
			return fmt.Errorf("embedding health check: %w", err)
		}
	}
	return nil
}
