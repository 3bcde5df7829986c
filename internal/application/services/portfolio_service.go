package services

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/bimakw/wallet-indexer/internal/config"
	"github.com/bimakw/wallet-indexer/internal/domain/entities"
	"github.com/bimakw/wallet-indexer/internal/domain/providers"
	"github.com/bimakw/wallet-indexer/internal/domain/repositories"
	"github.com/bimakw/wallet-indexer/internal/infrastructure/cache"
)

// Ingester runs one ingestion for a wallet on a chain
type Ingester interface {
	Ingest(ctx context.Context, wallet string, chain entities.Chain, opts IngestOptions) (*IngestResult, error)
}

var _ Ingester = (*IngestionService)(nil)

// PortfolioService builds and caches cross-chain portfolio snapshots
type PortfolioService struct {
	providers    *providers.Registry
	ingester     Ingester
	summaryRepo  repositories.SummaryRepository
	snapshotRepo repositories.SnapshotRepository
	cache        cache.Cache
	chains       []entities.Chain
	cacheTTL     time.Duration
	logger       *zap.Logger
	group        singleflight.Group
}

// NewPortfolioService creates a new portfolio service. cache may be nil.
func NewPortfolioService(
	providerRegistry *providers.Registry,
	ingester Ingester,
	summaryRepo repositories.SummaryRepository,
	snapshotRepo repositories.SnapshotRepository,
	cache cache.Cache,
	cfg config.PortfolioConfig,
	logger *zap.Logger,
) (*PortfolioService, error) {
	chains := make([]entities.Chain, 0, len(cfg.Chains))
	for _, name := range cfg.Chains {
		c, err := entities.ParseChain(name)
		if err != nil {
			return nil, fmt.Errorf("invalid portfolio chain: %w", err)
		}
		chains = append(chains, c)
	}
	if len(chains) == 0 {
		chains = entities.SupportedChains()
	}

	return &PortfolioService{
		providers:    providerRegistry,
		ingester:     ingester,
		summaryRepo:  summaryRepo,
		snapshotRepo: snapshotRepo,
		cache:        cache,
		chains:       chains,
		cacheTTL:     cfg.CacheTTL,
		logger:       logger,
	}, nil
}

// GetSnapshot returns the wallet's stored snapshot, rebuilding it on a miss or when forced
func (s *PortfolioService) GetSnapshot(ctx context.Context, wallet string, forceRefresh bool) (*entities.PortfolioSnapshot, error) {
	wallet = entities.NormalizeWallet(wallet)
	if wallet == "" {
		return nil, fmt.Errorf("%w: wallet address is required", entities.ErrValidation)
	}
	chains := entities.ChainsFor(wallet, s.chains)
	if len(chains) == 0 {
		return nil, fmt.Errorf("%w: %q is not an address on any supported chain", entities.ErrInvalidAddress, wallet)
	}

	if !forceRefresh {
		if snapshot := s.stored(ctx, wallet); snapshot != nil {
			return snapshot, nil
		}
	}

	v, err, _ := s.group.Do(wallet, func() (interface{}, error) {
		return s.build(ctx, wallet, chains)
	})
	if err != nil {
		return nil, err
	}
	return v.(*entities.PortfolioSnapshot), nil
}

// Summary returns the cross-chain summary of the wallet's snapshot
func (s *PortfolioService) Summary(ctx context.Context, wallet string) (*entities.PortfolioSummary, error) {
	snapshot, err := s.GetSnapshot(ctx, wallet, false)
	if err != nil {
		return nil, err
	}
	return &snapshot.Summary, nil
}

// stored returns a current-version snapshot from the cache or the store, nil on miss
func (s *PortfolioService) stored(ctx context.Context, wallet string) *entities.PortfolioSnapshot {
	key := cache.SnapshotKey(wallet)

	if s.cache != nil {
		var cached entities.PortfolioSnapshot
		if err := s.cache.Get(ctx, key, &cached); err == nil && cached.SchemaVersion == entities.SnapshotSchemaVersion {
			s.logger.Debug("Cache hit", zap.String("key", key))
			return &cached
		}
	}

	if s.snapshotRepo == nil {
		return nil
	}
	snapshot, err := s.snapshotRepo.Get(ctx, wallet)
	if err != nil {
		s.logger.Warn("Failed to load stored snapshot", zap.String("wallet", wallet), zap.Error(err))
		return nil
	}
	if snapshot == nil || snapshot.SchemaVersion != entities.SnapshotSchemaVersion {
		return nil
	}

	s.cacheSnapshot(ctx, snapshot)
	return snapshot
}

func (s *PortfolioService) build(ctx context.Context, wallet string, chains []entities.Chain) (*entities.PortfolioSnapshot, error) {
	start := time.Now()
	snapshot := &entities.PortfolioSnapshot{
		SchemaVersion: entities.SnapshotSchemaVersion,
		Wallet:        wallet,
		GeneratedAt:   time.Now().UTC(),
		Chains:        make(map[entities.Chain]entities.ChainPortfolio, len(chains)),
	}

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	for _, chain := range chains {
		g.Go(func() error {
			cp, err := s.buildChain(gctx, wallet, chain)
			if err != nil {
				// A failed chain is left out of the snapshot
				s.logger.Warn("Omitting chain from portfolio",
					zap.String("wallet", wallet),
					zap.String("chain", chain.String()),
					zap.Error(err),
				)
				return nil
			}
			mu.Lock()
			snapshot.Chains[chain] = *cp
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	snapshot.Summary = summarize(snapshot.Chains)

	if len(snapshot.Chains) == 0 {
		// Nothing to keep; the next request tries the chains again
		s.logger.Warn("Every chain failed, snapshot not stored",
			zap.String("wallet", wallet),
			zap.Int("chains", len(chains)),
		)
		return snapshot, nil
	}

	if s.snapshotRepo != nil {
		if err := s.snapshotRepo.Put(ctx, snapshot); err != nil {
			return nil, fmt.Errorf("failed to store snapshot: %w", err)
		}
	}
	s.cacheSnapshot(ctx, snapshot)

	s.logger.Info("Portfolio snapshot built",
		zap.String("wallet", wallet),
		zap.Int("chains", len(snapshot.Chains)),
		zap.Duration("took", time.Since(start)),
	)

	return snapshot, nil
}

func (s *PortfolioService) cacheSnapshot(ctx context.Context, snapshot *entities.PortfolioSnapshot) {
	if s.cache == nil {
		return
	}
	if err := s.cache.SetWithTTL(ctx, cache.SnapshotKey(snapshot.Wallet), snapshot, s.cacheTTL); err != nil {
		s.logger.Warn("Failed to cache snapshot", zap.Error(err))
	}
}

func (s *PortfolioService) buildChain(ctx context.Context, wallet string, chain entities.Chain) (*entities.ChainPortfolio, error) {
	provider, err := s.providers.Get(chain)
	if err != nil {
		return nil, err
	}
	wallet = chain.NormalizeAddress(wallet)

	var (
		balance *entities.NativeBalance
		result  *IngestResult
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		b, err := provider.GetNativeBalance(gctx, wallet)
		if err != nil {
			return fmt.Errorf("failed to get native balance: %w", err)
		}
		balance = b
		return nil
	})
	g.Go(func() error {
		r, err := s.ingester.Ingest(gctx, wallet, chain, IngestOptions{})
		if err != nil {
			return err
		}
		if !r.Success {
			return fmt.Errorf("ingestion failed: %s", r.Error)
		}
		result = r
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	summaries, err := s.summaryRepo.GetSummaries(ctx, wallet, chain)
	if err != nil {
		return nil, fmt.Errorf("failed to get summaries: %w", err)
	}

	cp := &entities.ChainPortfolio{
		Chain:         chain,
		NativeBalance: *balance,
		Tokens:        make([]entities.TokenHolding, 0, len(summaries)),
	}
	for _, sum := range summaries {
		cp.Tokens = append(cp.Tokens, holdingFromSummary(sum))
	}

	fillActivity(cp, result.Events)
	return cp, nil
}

func holdingFromSummary(sum entities.TokenSummary) entities.TokenHolding {
	return entities.TokenHolding{
		Chain:    sum.Chain,
		AssetID:  sum.AssetID,
		Symbol:   sum.AssetSymbol,
		Name:     sum.AssetName,
		Balance:  entities.NormalizeAmount(sum.CurrentBalance),
		Received: entities.NormalizeAmount(sum.TotalReceived),
		Sent:     entities.NormalizeAmount(sum.TotalSent),
		TxCount:  sum.TransactionCount,
	}
}

// fillActivity derives transaction counts and highlights from one chain's events.
// Counts are per transaction, not per event.
func fillActivity(cp *entities.ChainPortfolio, events []entities.TransferEvent) {
	txs := make(map[string]struct{})
	received := make(map[string]struct{})
	sent := make(map[string]struct{})

	var highest decimal.Decimal
	for i := range events {
		e := &events[i]
		txs[e.TransactionID] = struct{}{}
		switch e.Direction {
		case entities.DirectionReceive:
			received[e.TransactionID] = struct{}{}
		case entities.DirectionSend:
			sent[e.TransactionID] = struct{}{}
		}

		if e.ObservedAt != nil {
			if cp.FirstTransaction == nil || cp.FirstTransaction.ObservedAt.After(*e.ObservedAt) {
				cp.FirstTransaction = highlight(e)
			}
			if cp.LastTransaction == nil || e.ObservedAt.After(*cp.LastTransaction.ObservedAt) {
				cp.LastTransaction = highlight(e)
			}
		}

		amount, err := entities.ParseAmount(e.Amount)
		if err != nil {
			continue
		}
		if cp.HighestValueTransaction == nil || amount.Abs().GreaterThan(highest) {
			highest = amount.Abs()
			cp.HighestValueTransaction = highlight(e)
		}
	}

	cp.TotalTransactions = len(txs)
	cp.ReceivedTransactions = len(received)
	cp.SentTransactions = len(sent)
}

func highlight(e *entities.TransferEvent) *entities.TransactionHighlight {
	return &entities.TransactionHighlight{
		TransactionID: e.TransactionID,
		Chain:         e.Chain,
		Direction:     e.Direction,
		Amount:        e.Amount,
		Symbol:        e.AssetSymbol,
		ObservedAt:    e.ObservedAt,
	}
}

// summarize folds the per-chain parts into the cross-chain summary
func summarize(chains map[entities.Chain]entities.ChainPortfolio) entities.PortfolioSummary {
	sum := entities.PortfolioSummary{
		TotalChains:   len(chains),
		TotalReceived: make(map[string]string),
		TotalSent:     make(map[string]string),
		TokenHoldings: []entities.TokenHolding{},
	}

	received := make(map[string]decimal.Decimal)
	sent := make(map[string]decimal.Decimal)
	add := func(m map[string]decimal.Decimal, symbol, amount string) {
		d, err := entities.ParseAmount(amount)
		if err != nil {
			return
		}
		m[symbol] = m[symbol].Add(d.Abs())
	}

	var highest decimal.Decimal
	for _, chain := range orderedChains(chains) {
		cp := chains[chain]
		sum.TotalTransactions += cp.TotalTransactions
		sum.ReceivedCount += cp.ReceivedTransactions
		sum.SentCount += cp.SentTransactions

		for _, h := range cp.Tokens {
			add(received, h.Symbol, h.Received)
			add(sent, h.Symbol, h.Sent)
			sum.TokenHoldings = append(sum.TokenHoldings, h)
		}

		if h := cp.HighestValueTransaction; h != nil {
			if amount, err := entities.ParseAmount(h.Amount); err == nil {
				if sum.HighestValue == nil || amount.Abs().GreaterThan(highest) {
					highest = amount.Abs()
					sum.HighestValue = h
				}
			}
		}
		if h := cp.LastTransaction; h != nil && h.ObservedAt != nil {
			if sum.MostRecent == nil || h.ObservedAt.After(*sum.MostRecent.ObservedAt) {
				sum.MostRecent = h
			}
		}
	}

	for symbol, d := range received {
		sum.TotalReceived[symbol] = entities.FormatAmount(d)
	}
	for symbol, d := range sent {
		sum.TotalSent[symbol] = entities.FormatAmount(d)
	}
	return sum
}

func orderedChains(chains map[entities.Chain]entities.ChainPortfolio) []entities.Chain {
	out := make([]entities.Chain, 0, len(chains))
	for c := range chains {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
