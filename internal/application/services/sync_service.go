package services

import (
	"context"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/bimakw/wallet-indexer/internal/config"
	"github.com/bimakw/wallet-indexer/internal/domain/entities"
	"github.com/bimakw/wallet-indexer/internal/domain/repositories"
)

// WatchEntry is one wallet of the watchlist file
type WatchEntry struct {
	Address string   `yaml:"address"`
	Chains  []string `yaml:"chains"`
}

// Watchlist is the worker's YAML file of wallets to keep in sync
type Watchlist struct {
	Wallets []WatchEntry `yaml:"wallets"`
}

// LoadWatchlist reads and validates a watchlist file
func LoadWatchlist(path string) (*Watchlist, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read watchlist: %w", err)
	}
	return ParseWatchlist(data)
}

// ParseWatchlist decodes watchlist YAML. An entry without chains covers every chain its address fits.
func ParseWatchlist(data []byte) (*Watchlist, error) {
	var wl Watchlist
	if err := yaml.Unmarshal(data, &wl); err != nil {
		return nil, fmt.Errorf("failed to parse watchlist: %w", err)
	}

	for i, e := range wl.Wallets {
		if strings.TrimSpace(e.Address) == "" {
			return nil, fmt.Errorf("%w: watchlist entry %d has no address", entities.ErrValidation, i)
		}
		for _, c := range e.Chains {
			chain, err := entities.ParseChain(c)
			if err != nil {
				return nil, fmt.Errorf("watchlist entry %d: %w", i, err)
			}
			if err := chain.ValidateAddress(chain.NormalizeAddress(e.Address)); err != nil {
				return nil, fmt.Errorf("watchlist entry %d on %s: %w", i, chain, err)
			}
		}
	}
	return &wl, nil
}

// Targets expands the watchlist into (wallet, chain) pairs
func (wl *Watchlist) Targets() []SyncTarget {
	var out []SyncTarget
	for _, e := range wl.Wallets {
		var chains []entities.Chain
		if len(e.Chains) == 0 {
			chains = entities.ChainsFor(e.Address, entities.SupportedChains())
		} else {
			for _, c := range e.Chains {
				chain, _ := entities.ParseChain(c)
				chains = append(chains, chain)
			}
		}
		for _, c := range chains {
			out = append(out, SyncTarget{Wallet: c.NormalizeAddress(e.Address), Chain: c})
		}
	}
	return out
}

// SyncTarget is one wallet on one chain
type SyncTarget struct {
	Wallet string
	Chain  entities.Chain
}

// SyncMetrics tracks worker progress
type SyncMetrics struct {
	mu            sync.RWMutex
	Passes        int64
	WalletsSynced int64
	EventsStored  int64
	LastPassAt    time.Time
	ErrorCount    int64
}

// SyncService keeps watched wallets current by re-ingesting new history on a timer
type SyncService struct {
	ingester Ingester
	syncRepo repositories.SyncStateRepository
	config   config.WorkerConfig
	logger   *zap.Logger
	metrics  *SyncMetrics
	stopCh   chan struct{}
	wg       sync.WaitGroup
}

// NewSyncService creates a new sync worker
func NewSyncService(
	ingester Ingester,
	syncRepo repositories.SyncStateRepository,
	cfg config.WorkerConfig,
	logger *zap.Logger,
) *SyncService {
	return &SyncService{
		ingester: ingester,
		syncRepo: syncRepo,
		config:   cfg,
		logger:   logger,
		metrics:  &SyncMetrics{},
		stopCh:   make(chan struct{}),
	}
}

// Start begins the polling loop
func (s *SyncService) Start(ctx context.Context) error {
	if _, err := LoadWatchlist(s.config.WatchlistFile); err != nil {
		return err
	}

	s.logger.Info("Starting sync worker",
		zap.String("watchlist", s.config.WatchlistFile),
		zap.Duration("interval", s.config.PollInterval),
	)

	s.wg.Add(1)
	go s.runLoop(ctx)
	return nil
}

// Stop gracefully stops the worker
func (s *SyncService) Stop() {
	s.logger.Info("Stopping sync worker")
	close(s.stopCh)
	s.wg.Wait()
}

// GetMetrics returns a copy of the worker counters
func (s *SyncService) GetMetrics() SyncMetrics {
	s.metrics.mu.RLock()
	defer s.metrics.mu.RUnlock()
	return SyncMetrics{
		Passes:        s.metrics.Passes,
		WalletsSynced: s.metrics.WalletsSynced,
		EventsStored:  s.metrics.EventsStored,
		LastPassAt:    s.metrics.LastPassAt,
		ErrorCount:    s.metrics.ErrorCount,
	}
}

func (s *SyncService) runLoop(ctx context.Context) {
	defer s.wg.Done()

	ticker := time.NewTicker(s.config.PollInterval)
	defer ticker.Stop()

	// Run immediately on start
	s.syncPass(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		case <-s.stopCh:
			return
		case <-ticker.C:
			s.syncPass(ctx)
		}
	}
}

// syncPass reloads the watchlist so edits apply without a restart
func (s *SyncService) syncPass(ctx context.Context) {
	wl, err := LoadWatchlist(s.config.WatchlistFile)
	if err != nil {
		s.logger.Error("Failed to load watchlist", zap.Error(err))
		s.incrementErrorCount()
		return
	}
	s.SyncAll(ctx, wl.Targets())
}

// SyncAll syncs each target in turn; one failing target never stops the pass
func (s *SyncService) SyncAll(ctx context.Context, targets []SyncTarget) {
	for _, t := range targets {
		if ctx.Err() != nil {
			return
		}
		if _, err := s.SyncWallet(ctx, t.Wallet, t.Chain); err != nil {
			s.logger.Warn("Sync failed",
				zap.String("wallet", t.Wallet),
				zap.String("chain", t.Chain.String()),
				zap.Error(err),
			)
		}
	}

	s.metrics.mu.Lock()
	s.metrics.Passes++
	s.metrics.LastPassAt = time.Now()
	s.metrics.mu.Unlock()
}

// SyncWallet ingests history newer than the stored cursor for one wallet
func (s *SyncService) SyncWallet(ctx context.Context, wallet string, chain entities.Chain) (*IngestResult, error) {
	wallet, err := ValidateTarget(chain, wallet)
	if err != nil {
		return nil, err
	}

	opts := IngestOptions{Refresh: true}
	if s.syncRepo != nil {
		state, err := s.syncRepo.Get(ctx, wallet, chain)
		if err != nil {
			return nil, fmt.Errorf("failed to get sync state: %w", err)
		}
		if state != nil && state.NewestTransactionID != nil {
			opts.Until = *state.NewestTransactionID
		}
	}

	result, err := s.ingester.Ingest(ctx, wallet, chain, opts)
	if err != nil {
		s.incrementErrorCount()
		return nil, err
	}
	if !result.Success {
		s.incrementErrorCount()
		return result, fmt.Errorf("%w: %s", entities.ErrUpstreamUnavailable, result.Error)
	}

	s.metrics.mu.Lock()
	s.metrics.WalletsSynced++
	s.metrics.EventsStored += int64(result.StoredEvents)
	s.metrics.mu.Unlock()

	s.logger.Info("Wallet synced",
		zap.String("wallet", wallet),
		zap.String("chain", chain.String()),
		zap.Bool("incremental", opts.Until != ""),
		zap.Int("source_transactions", result.TotalSourceTransactions),
		zap.Int("stored_events", result.StoredEvents),
	)
	return result, nil
}

// Backfill ingests the full history of one wallet, ignoring the stored cursor
func (s *SyncService) Backfill(ctx context.Context, wallet string, chain entities.Chain, limit int) (*IngestResult, error) {
	return s.ingester.Ingest(ctx, wallet, chain, IngestOptions{Limit: limit, Refresh: true})
}

func (s *SyncService) incrementErrorCount() {
	s.metrics.mu.Lock()
	defer s.metrics.mu.Unlock()
	s.metrics.ErrorCount++
}
