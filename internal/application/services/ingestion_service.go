package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/bimakw/wallet-indexer/internal/application/adapters"
	"github.com/bimakw/wallet-indexer/internal/application/pagination"
	"github.com/bimakw/wallet-indexer/internal/config"
	"github.com/bimakw/wallet-indexer/internal/domain/entities"
	"github.com/bimakw/wallet-indexer/internal/domain/providers"
	"github.com/bimakw/wallet-indexer/internal/domain/repositories"
	"github.com/bimakw/wallet-indexer/internal/infrastructure/cache"
)

// lockPollInterval is how often a run waiting on another process re-checks the lock
const lockPollInterval = 500 * time.Millisecond

// IngestOptions controls one ingestion run
type IngestOptions struct {
	// Limit caps the number of source transactions; a limit always bypasses the cache
	Limit int
	// Refresh skips the cache-hit short-circuit
	Refresh bool
	// Until stops paging at an already-stored transaction id
	Until string
}

// IngestResult is the outcome of one ingestion request.
// Success is false only when the chain could not be reached at all.
type IngestResult struct {
	RunID                   string                   `json:"run_id,omitempty"`
	Wallet                  string                   `json:"wallet"`
	Chain                   entities.Chain           `json:"chain"`
	Events                  []entities.TransferEvent `json:"events"`
	Count                   int                      `json:"count"`
	Cached                  bool                     `json:"cached"`
	Success                 bool                     `json:"success"`
	Error                   string                   `json:"error,omitempty"`
	TotalSourceTransactions int                      `json:"total_source_transactions"`
	SkippedTransactions     int                      `json:"skipped_transactions"`
	StoredEvents            int                      `json:"stored_events"`
}

// IngestionService coordinates pagination, decoding, enrichment and storage
// for one wallet on one chain
type IngestionService struct {
	providers   *providers.Registry
	adapters    *adapters.Registry
	tokens      adapters.TokenLookup
	eventRepo   repositories.EventRepository
	summaryRepo repositories.SummaryRepository
	syncRepo    repositories.SyncStateRepository
	locker      cache.Locker
	config      config.IngestionConfig
	dust        decimal.Decimal
	logger      *zap.Logger
	group       singleflight.Group
}

// NewIngestionService creates a new ingestion orchestrator.
// syncRepo and locker may be nil.
func NewIngestionService(
	providerRegistry *providers.Registry,
	adapterRegistry *adapters.Registry,
	tokens adapters.TokenLookup,
	eventRepo repositories.EventRepository,
	summaryRepo repositories.SummaryRepository,
	syncRepo repositories.SyncStateRepository,
	locker cache.Locker,
	cfg config.IngestionConfig,
	logger *zap.Logger,
) (*IngestionService, error) {
	dust, err := adapters.ParseDustThreshold(cfg.DustThreshold)
	if err != nil {
		return nil, err
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 2
	}

	return &IngestionService{
		providers:   providerRegistry,
		adapters:    adapterRegistry,
		tokens:      tokens,
		eventRepo:   eventRepo,
		summaryRepo: summaryRepo,
		syncRepo:    syncRepo,
		locker:      locker,
		config:      cfg,
		dust:        dust,
		logger:      logger,
	}, nil
}

// ValidateTarget checks the chain and address before any work begins
func ValidateTarget(chain entities.Chain, wallet string) (string, error) {
	if _, err := entities.ParseChain(chain.String()); err != nil {
		return "", err
	}
	if strings.TrimSpace(wallet) == "" {
		return "", fmt.Errorf("%w: wallet address is required", entities.ErrValidation)
	}
	wallet = chain.NormalizeAddress(wallet)
	if err := chain.ValidateAddress(wallet); err != nil {
		return "", err
	}
	return wallet, nil
}

// Ingest returns the wallet's events on chain, contacting the chain only on a cache miss,
// an explicit limit or a refresh
func (s *IngestionService) Ingest(ctx context.Context, wallet string, chain entities.Chain, opts IngestOptions) (*IngestResult, error) {
	wallet, err := ValidateTarget(chain, wallet)
	if err != nil {
		return nil, err
	}

	if opts.Limit <= 0 && (!opts.Refresh || opts.Until != "") {
		has, err := s.eventRepo.HasEvents(ctx, wallet, chain)
		if err != nil {
			return nil, fmt.Errorf("failed to check stored events: %w", err)
		}
		switch {
		case opts.Until != "" && !has:
			// The stored history is gone; a cursor into it would skip everything older
			s.logger.Info("Ignoring sync cursor for empty store",
				zap.String("wallet", wallet),
				zap.String("chain", chain.String()),
			)
			opts.Until = ""
		case opts.Until == "" && has:
			ingestionRunsTotal.WithLabelValues(chain.String(), "cached").Inc()
			return s.storedResult(ctx, wallet, chain)
		}
	}

	key := fmt.Sprintf("%s|%s|%d|%t|%s", chain, wallet, opts.Limit, opts.Refresh, opts.Until)
	v, err, shared := s.group.Do(key, func() (interface{}, error) {
		return s.runLocked(ctx, wallet, chain, opts)
	})
	if err != nil {
		return nil, err
	}
	if shared {
		s.logger.Debug("Joined in-flight ingestion",
			zap.String("wallet", wallet),
			zap.String("chain", chain.String()),
		)
	}
	return v.(*IngestResult), nil
}

// runLocked holds the cross-process in-flight marker around a run. A caller that
// finds the marker taken waits for the other run and serves its stored result.
func (s *IngestionService) runLocked(ctx context.Context, wallet string, chain entities.Chain, opts IngestOptions) (*IngestResult, error) {
	if s.locker == nil {
		return s.run(ctx, wallet, chain, opts)
	}

	lockKey := cache.IngestLockKey(wallet, chain.String())
	ttl := s.config.Timeout
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}

	acquired, err := s.locker.TryLock(ctx, lockKey, ttl)
	if err != nil {
		// The marker only saves upstream calls; run without it
		s.logger.Warn("Failed to take ingestion lock", zap.String("key", lockKey), zap.Error(err))
		return s.run(ctx, wallet, chain, opts)
	}
	if acquired {
		defer func() {
			if err := s.locker.Unlock(context.WithoutCancel(ctx), lockKey); err != nil {
				s.logger.Warn("Failed to release ingestion lock", zap.String("key", lockKey), zap.Error(err))
			}
		}()
		return s.run(ctx, wallet, chain, opts)
	}

	s.logger.Info("Ingestion already running elsewhere, waiting",
		zap.String("wallet", wallet),
		zap.String("chain", chain.String()),
	)

	ticker := time.NewTicker(lockPollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}

		acquired, err := s.locker.TryLock(ctx, lockKey, lockPollInterval)
		if err != nil {
			return nil, fmt.Errorf("failed to poll ingestion lock: %w", err)
		}
		if acquired {
			_ = s.locker.Unlock(context.WithoutCancel(ctx), lockKey)
			ingestionRunsTotal.WithLabelValues(chain.String(), "cached").Inc()
			return s.storedResult(ctx, wallet, chain)
		}
	}
}

// ingestRun is the mutable state of one run
type ingestRun struct {
	id       string
	wallet   string
	chain    entities.Chain
	provider providers.ChainProvider
	adapter  adapters.ChainAdapter

	mu       sync.Mutex
	touched  map[string]entities.TransferEvent
	stored   int
	skipped  int
	source   int
	newest   string
	batches  int
}

func (s *IngestionService) run(ctx context.Context, wallet string, chain entities.Chain, opts IngestOptions) (*IngestResult, error) {
	provider, err := s.providers.Get(chain)
	if err != nil {
		return nil, err
	}
	adapter, err := s.adapters.For(chain)
	if err != nil {
		return nil, err
	}

	if s.config.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.config.Timeout)
		defer cancel()
	}

	start := time.Now()
	r := &ingestRun{
		id:       uuid.NewString(),
		wallet:   wallet,
		chain:    chain,
		provider: provider,
		adapter:  adapter,
		touched:  make(map[string]entities.TransferEvent),
	}

	s.logger.Info("Starting ingestion",
		zap.String("run_id", r.id),
		zap.String("wallet", wallet),
		zap.String("chain", chain.String()),
		zap.Int("limit", opts.Limit),
		zap.Bool("refresh", opts.Refresh),
	)

	pageSize := s.config.EVMPageSize
	if chain.Family() == entities.FamilySolana {
		pageSize = s.config.SolanaPageSize
	}
	paginator := pagination.New(provider, pagination.Config{
		PageSize:  pageSize,
		MaxPages:  s.config.MaxPages,
		PageDelay: s.config.PageDelay,
	}, s.logger)

	walk, walkErr := paginator.Walk(ctx, wallet, pagination.Options{Limit: opts.Limit, Until: opts.Until},
		func(ctx context.Context, items []entities.TransactionRef) error {
			if r.newest == "" && len(items) > 0 {
				r.newest = items[0].ID
			}
			return s.processPage(ctx, r, items)
		})

	result := &IngestResult{
		RunID:   r.id,
		Wallet:  wallet,
		Chain:   chain,
		Success: true,
	}

	var problems []string
	if walkErr != nil {
		if walk == nil {
			// The first page never arrived: the chain is unreachable
			ingestionRunsTotal.WithLabelValues(chain.String(), "failed").Inc()
			s.logger.Error("Ingestion failed",
				zap.String("run_id", r.id),
				zap.String("wallet", wallet),
				zap.String("chain", chain.String()),
				zap.Error(walkErr),
			)
			result.Success = false
			result.Error = walkErr.Error()
			s.saveSyncState(ctx, r, false, walkErr)
			return result, nil
		}
		problems = append(problems, walkErr.Error())
	}
	if walk != nil && walk.Err != nil {
		problems = append(problems, fmt.Sprintf("pagination stopped early: %v", walk.Err))
	}

	summaryCtx := ctx
	if ctx.Err() != nil {
		// Summaries must match what was stored even when the caller went away
		summaryCtx = context.WithoutCancel(ctx)
	}
	if err := s.recomputeSummaries(summaryCtx, r); err != nil {
		problems = append(problems, err.Error())
	}

	if r.skipped > 0 {
		problems = append(problems, fmt.Sprintf("%d of %d transactions skipped", r.skipped, r.source))
	}
	if len(problems) > 0 {
		result.Error = strings.Join(problems, "; ")
	}

	var runErr error
	if result.Error != "" {
		runErr = errors.New(result.Error)
	}
	// The cursor only moves past history that was walked end to end
	complete := walkErr == nil && walk != nil && walk.Err == nil &&
		(walk.Reason == pagination.StopExhausted || walk.Reason == pagination.StopUntil) &&
		opts.Limit <= 0 && r.skipped == 0 && ctx.Err() == nil
	s.saveSyncState(summaryCtx, r, complete, runErr)

	stored, err := s.storedResult(summaryCtx, wallet, chain)
	if err != nil {
		return nil, err
	}
	result.Events = stored.Events
	result.Count = stored.Count
	result.TotalSourceTransactions = r.source
	result.SkippedTransactions = r.skipped
	result.StoredEvents = r.stored

	outcome := "success"
	if result.Error != "" {
		outcome = "partial"
	}
	ingestionRunsTotal.WithLabelValues(chain.String(), outcome).Inc()
	ingestionRunDuration.WithLabelValues(chain.String()).Observe(time.Since(start).Seconds())

	s.logger.Info("Ingestion completed",
		zap.String("run_id", r.id),
		zap.String("wallet", wallet),
		zap.String("chain", chain.String()),
		zap.Int("source_transactions", r.source),
		zap.Int("stored_events", r.stored),
		zap.Int("skipped", r.skipped),
		zap.Duration("took", time.Since(start)),
	)

	return result, nil
}

// processPage handles one page in fixed-size concurrent batches with a pause between batches
func (s *IngestionService) processPage(ctx context.Context, r *ingestRun, items []entities.TransactionRef) error {
	for start := 0; start < len(items); start += s.config.BatchSize {
		if r.batches > 0 && s.config.BatchDelay > 0 {
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(s.config.BatchDelay):
			}
		}
		if ctx.Err() != nil {
			return nil
		}
		r.batches++

		end := start + s.config.BatchSize
		if end > len(items) {
			end = len(items)
		}
		batch := items[start:end]

		decoded := make([][]entities.TransferEvent, len(batch))
		g, gctx := errgroup.WithContext(ctx)
		for i, ref := range batch {
			g.Go(func() error {
				// Per-transaction failures are skipped, never returned
				decoded[i] = s.processTransaction(gctx, r, ref)
				return nil
			})
		}
		_ = g.Wait()

		var events []entities.TransferEvent
		for _, evs := range decoded {
			events = append(events, evs...)
		}
		r.source += len(batch)

		if len(events) == 0 {
			continue
		}

		storeCtx := ctx
		if ctx.Err() != nil {
			storeCtx = context.WithoutCancel(ctx)
		}
		if err := s.eventRepo.UpsertEvents(storeCtx, events); err != nil {
			return fmt.Errorf("failed to store events: %w", err)
		}

		r.stored += len(events)
		ingestionEventsStored.WithLabelValues(r.chain.String()).Add(float64(len(events)))
		for _, e := range events {
			r.touched[e.AssetID] = e
		}
	}
	return nil
}

// processTransaction fetches, decodes and enriches one transaction.
// Failures are logged and yield no events.
func (s *IngestionService) processTransaction(ctx context.Context, r *ingestRun, ref entities.TransactionRef) []entities.TransferEvent {
	raw, err := r.provider.GetTransactionDetail(ctx, ref.ID)
	if err != nil {
		s.skip(r, ref.ID, "fetch", err)
		return nil
	}

	events, err := r.adapter.Decode(ctx, raw, r.wallet)
	if err != nil {
		s.skip(r, ref.ID, "decode", err)
		return nil
	}

	events = adapters.Coalesce(events, s.dust)
	for i := range events {
		e := &events[i]
		e.Wallet = r.wallet
		e.Chain = r.chain
		if e.ObservedAt == nil {
			e.ObservedAt = ref.ObservedAt
		}
		if e.SequenceRef == nil {
			e.SequenceRef = ref.SequenceRef
		}
		if e.AssetSymbol == "" || e.AssetName == "" {
			meta := s.tokens.ResolveOrPlaceholder(ctx, r.chain, e.AssetID)
			if e.AssetSymbol == "" {
				e.AssetSymbol = meta.Symbol
			}
			if e.AssetName == "" {
				e.AssetName = meta.Name
			}
		}
	}
	return events
}

func (s *IngestionService) skip(r *ingestRun, txID, stage string, err error) {
	r.mu.Lock()
	r.skipped++
	r.mu.Unlock()
	ingestionTransactionsSkipped.WithLabelValues(r.chain.String()).Inc()

	s.logger.Warn("Skipping transaction",
		zap.String("run_id", r.id),
		zap.String("chain", r.chain.String()),
		zap.String("tx", txID),
		zap.String("stage", stage),
		zap.Error(err),
	)
}

// recomputeSummaries refolds every asset touched by the run
func (s *IngestionService) recomputeSummaries(ctx context.Context, r *ingestRun) error {
	var failed []string
	for assetID, e := range r.touched {
		if _, err := s.summaryRepo.RecomputeSummary(ctx, r.wallet, r.chain, assetID, e.AssetSymbol, e.AssetName); err != nil {
			s.logger.Warn("Failed to recompute token summary",
				zap.String("chain", r.chain.String()),
				zap.String("asset", assetID),
				zap.Error(err),
			)
			failed = append(failed, assetID)
		}
	}
	if len(failed) > 0 {
		return fmt.Errorf("failed to recompute summaries for %s", strings.Join(failed, ", "))
	}
	return nil
}

// saveSyncState records the run. The cursor advances to the newest listed transaction
// only when advance is set; otherwise the previous cursor is kept.
func (s *IngestionService) saveSyncState(ctx context.Context, r *ingestRun, advance bool, runErr error) {
	if s.syncRepo == nil {
		return
	}

	state := &entities.SyncState{
		Wallet:         r.wallet,
		Chain:          r.chain,
		LastRunID:      r.id,
		LastEventCount: r.stored,
		LastSyncedAt:   time.Now().UTC(),
	}
	if advance && r.newest != "" {
		newest := r.newest
		state.NewestTransactionID = &newest
	} else if prev, err := s.syncRepo.Get(ctx, r.wallet, r.chain); err == nil && prev != nil {
		state.NewestTransactionID = prev.NewestTransactionID
	}
	if runErr != nil {
		msg := runErr.Error()
		state.LastError = &msg
	}

	if err := s.syncRepo.Upsert(ctx, state); err != nil {
		s.logger.Warn("Failed to save sync state",
			zap.String("wallet", r.wallet),
			zap.String("chain", r.chain.String()),
			zap.Error(err),
		)
	}
}

// ResetSyncState forgets the wallet's cursor, on one chain when chain is set
func (s *IngestionService) ResetSyncState(ctx context.Context, wallet string, chain *entities.Chain) error {
	if s.syncRepo == nil {
		return nil
	}
	if err := s.syncRepo.Delete(ctx, wallet, chain); err != nil {
		return fmt.Errorf("failed to reset sync state: %w", err)
	}
	return nil
}

// storedResult serves the stored events without contacting the chain
func (s *IngestionService) storedResult(ctx context.Context, wallet string, chain entities.Chain) (*IngestResult, error) {
	events, err := s.eventRepo.QueryEvents(ctx, wallet, chain, entities.EventQuery{})
	if err != nil {
		return nil, fmt.Errorf("failed to load stored events: %w", err)
	}
	if events == nil {
		events = []entities.TransferEvent{}
	}
	return &IngestResult{
		Wallet:  wallet,
		Chain:   chain,
		Events:  events,
		Count:   len(events),
		Cached:  true,
		Success: true,
	}, nil
}
