// Package app builds the long-lived components shared by the API server and the sync worker.
package app

import (
	"context"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/bimakw/wallet-indexer/internal/application/adapters"
	"github.com/bimakw/wallet-indexer/internal/application/services"
	"github.com/bimakw/wallet-indexer/internal/config"
	"github.com/bimakw/wallet-indexer/internal/domain/entities"
	"github.com/bimakw/wallet-indexer/internal/domain/providers"
	"github.com/bimakw/wallet-indexer/internal/infrastructure/cache"
	"github.com/bimakw/wallet-indexer/internal/infrastructure/database"
	"github.com/bimakw/wallet-indexer/internal/infrastructure/ethereum"
	"github.com/bimakw/wallet-indexer/internal/infrastructure/llm"
	"github.com/bimakw/wallet-indexer/internal/infrastructure/solana"
	"github.com/bimakw/wallet-indexer/internal/infrastructure/tokenlist"
)

const tokenListSourceName = "jupiter"

// App holds the wired services
type App struct {
	DB        *database.PostgresDB
	Cache     cache.Cache
	Providers *providers.Registry
	SyncRepo  *database.SyncStateRepo

	Tokens       *services.TokenService
	Ingestion    *services.IngestionService
	Transactions *services.TransactionService
	Portfolio    *services.PortfolioService
	Holdings     *services.HoldingsService
	Stats        *services.StatsService
	Ask          *services.AskService

	AIEnabled bool

	closers []func()
	logger  *zap.Logger
}

// New connects to storage and chain endpoints and builds every service.
// Chains whose node cannot be dialed are left out of the provider registry.
func New(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*App, error) {
	a := &App{logger: logger}

	db, err := database.NewPostgresDB(cfg.Database, logger)
	if err != nil {
		return nil, err
	}
	a.DB = db
	a.closers = append(a.closers, func() { _ = db.Close() })

	if cfg.Database.AutoMigrate {
		if err := database.RunMigrations(cfg.Database.URL(), cfg.Database.MigrationsPath); err != nil {
			a.Close()
			return nil, err
		}
		logger.Info("Database migrations applied")
	}

	locker, err := a.setupCache(cfg)
	if err != nil {
		a.Close()
		return nil, err
	}

	callers := a.setupProviders(ctx, cfg)

	eventRepo := database.NewEventRepo(db.DB())
	summaryRepo := database.NewSummaryRepo(db.DB())
	snapshotRepo := database.NewSnapshotRepo(db.DB())
	a.SyncRepo = database.NewSyncStateRepo(db.DB())

	sources := []providers.MetadataSource{
		ethereum.NewMetadataSource(callers, logger),
		tokenlist.NewSource(tokenListSourceName, cfg.Resolver.TokenListURL, entities.ChainSolana, cfg.Resolver.CacheTTL, logger),
	}
	a.Tokens = services.NewTokenService(database.NewTokenRepo(db.DB()), sources, a.Cache, cfg.Resolver.CacheTTL, logger)

	dust, err := adapters.ParseDustThreshold(cfg.Ingestion.DustThreshold)
	if err != nil {
		a.Close()
		return nil, err
	}
	adapterRegistry := adapters.NewRegistry(
		adapters.NewEVMAdapter(a.Tokens, dust, logger),
		adapters.NewSolanaAdapter(a.Tokens, dust, logger),
	)

	a.Ingestion, err = services.NewIngestionService(
		a.Providers, adapterRegistry, a.Tokens,
		eventRepo, summaryRepo, a.SyncRepo, locker,
		cfg.Ingestion, logger,
	)
	if err != nil {
		a.Close()
		return nil, err
	}

	a.Transactions = services.NewTransactionService(a.Ingestion, eventRepo, summaryRepo, snapshotRepo, a.Cache, logger)
	a.Stats = services.NewStatsService(eventRepo, summaryRepo, a.Cache, cfg.API.CacheTTL, logger)

	a.Portfolio, err = services.NewPortfolioService(a.Providers, a.Ingestion, summaryRepo, snapshotRepo, a.Cache, cfg.Portfolio, logger)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.Holdings = services.NewHoldingsService(a.Portfolio, eventRepo, logger)

	var answerer providers.Answerer
	if cfg.AI.OpenAIKey != "" {
		answerer = llm.NewOpenAIAnswerer(cfg.AI, logger)
		a.AIEnabled = true
	} else {
		logger.Warn("OPENAI_API_KEY not set, question answering disabled")
	}
	a.Ask = services.NewAskService(answerer, eventRepo, summaryRepo, cfg.AI.MaxEvents, logger)

	return a, nil
}

// setupCache prefers Redis, then a Badger store under the resolver cache dir, then memory.
// The returned locker is Redis when available and process-local otherwise.
func (a *App) setupCache(cfg *config.Config) (cache.Locker, error) {
	redisCache, err := cache.NewRedisCache(cfg.Redis, cfg.API.CacheTTL, a.logger)
	if err == nil {
		a.Cache = redisCache
		a.closers = append(a.closers, func() { _ = redisCache.Close() })
		return redisCache, nil
	}
	a.logger.Warn("Failed to connect to Redis, using local cache", zap.Error(err))

	memory := cache.NewMemoryCache(cfg.API.CacheTTL)
	if cfg.Resolver.CacheDir == "" {
		a.Cache = memory
		return memory, nil
	}

	badgerCache, err := cache.NewBadgerCache(cfg.Resolver.CacheDir, cfg.API.CacheTTL, a.logger)
	if err != nil {
		return nil, err
	}
	a.Cache = badgerCache
	a.closers = append(a.closers, func() { _ = badgerCache.Close() })
	return memory, nil
}

func (a *App) setupProviders(ctx context.Context, cfg *config.Config) map[entities.Chain]ethereum.ContractCaller {
	a.Providers = providers.NewRegistry()
	callers := make(map[entities.Chain]ethereum.ContractCaller)
	history := ethereum.NewHistoryClient(cfg.Chains, a.logger)

	evm := map[entities.Chain]string{
		entities.ChainEthereum: cfg.Chains.EthereumRPCURL,
		entities.ChainBase:     cfg.Chains.BaseRPCURL,
	}
	for _, chain := range []entities.Chain{entities.ChainEthereum, entities.ChainBase} {
		client, err := ethereum.NewClient(chain, evm[chain], cfg.Chains, a.logger)
		if err != nil {
			a.logger.Error("Chain disabled", zap.String("chain", chain.String()), zap.Error(err))
			continue
		}
		a.closers = append(a.closers, client.Close)
		callers[chain] = client
		a.Providers.Register(ethereum.NewProvider(chain, client, ethereum.NewFetcher(client, a.logger), history))
	}

	sol, err := solana.NewClient(ctx, cfg.Chains.SolanaRPCURL, cfg.Chains, a.logger)
	if err != nil {
		a.logger.Error("Chain disabled", zap.String("chain", entities.ChainSolana.String()), zap.Error(err))
	} else {
		a.closers = append(a.closers, sol.Close)
		a.Providers.Register(solana.NewProvider(sol))
	}

	a.logger.Info("Chain providers ready", zap.Any("chains", a.Providers.Chains()))
	return callers
}

// Close releases connections in reverse order of creation
func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}

// NewLogger builds the process logger for the configured level and format
func NewLogger(cfg config.LogConfig) *zap.Logger {
	var zapLevel zapcore.Level
	switch cfg.Level {
	case "debug":
		zapLevel = zapcore.DebugLevel
	case "warn":
		zapLevel = zapcore.WarnLevel
	case "error":
		zapLevel = zapcore.ErrorLevel
	default:
		zapLevel = zapcore.InfoLevel
	}

	encoding := "json"
	encoderConfig := zap.NewProductionEncoderConfig()
	if cfg.Format == "console" {
		encoding = "console"
		encoderConfig = zap.NewDevelopmentEncoderConfig()
	}
	encoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	zcfg := zap.Config{
		Level:            zap.NewAtomicLevelAt(zapLevel),
		Development:      false,
		Encoding:         encoding,
		EncoderConfig:    encoderConfig,
		OutputPaths:      []string{"stdout"},
		ErrorOutputPaths: []string{"stderr"},
	}

	logger, err := zcfg.Build()
	if err != nil {
		return zap.NewNop()
	}
	return logger
}
