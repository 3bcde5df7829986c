package services

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/bimakw/wallet-indexer/internal/domain/entities"
	"github.com/bimakw/wallet-indexer/internal/domain/repositories"
	"github.com/bimakw/wallet-indexer/internal/infrastructure/cache"
)

// TransactionService provides the stored-event query surface around ingestion
type TransactionService struct {
	ingestion    *IngestionService
	eventRepo    repositories.EventRepository
	summaryRepo  repositories.SummaryRepository
	snapshotRepo repositories.SnapshotRepository
	cache        cache.Cache
	logger       *zap.Logger
}

// NewTransactionService creates a new transaction service. cache may be nil.
func NewTransactionService(
	ingestion *IngestionService,
	eventRepo repositories.EventRepository,
	summaryRepo repositories.SummaryRepository,
	snapshotRepo repositories.SnapshotRepository,
	cache cache.Cache,
	logger *zap.Logger,
) *TransactionService {
	return &TransactionService{
		ingestion:    ingestion,
		eventRepo:    eventRepo,
		summaryRepo:  summaryRepo,
		snapshotRepo: snapshotRepo,
		cache:        cache,
		logger:       logger,
	}
}

// EventsResponse is the API response for stored-event queries
type EventsResponse struct {
	Wallet string                   `json:"wallet"`
	Chain  entities.Chain           `json:"chain"`
	Events []entities.TransferEvent `json:"events"`
	Count  int                      `json:"count"`
}

// SummariesResponse is the API response for token summaries
type SummariesResponse struct {
	Wallet    string                  `json:"wallet"`
	Chain     entities.Chain          `json:"chain"`
	Summaries []entities.TokenSummary `json:"summaries"`
	Count     int                     `json:"count"`
}

// ClearResult reports what a cache clear removed
type ClearResult struct {
	Wallet        string          `json:"wallet"`
	Chain         *entities.Chain `json:"chain,omitempty"`
	DeletedEvents int64           `json:"deleted_events"`
}

// FetchDetailed ingests the wallet on chain and returns the stored events.
// forceRefresh clears the stored rows first so the run starts from scratch.
func (s *TransactionService) FetchDetailed(ctx context.Context, wallet string, chain entities.Chain, limit int, forceRefresh bool) (*IngestResult, error) {
	wallet, err := ValidateTarget(chain, wallet)
	if err != nil {
		return nil, err
	}

	if forceRefresh {
		if _, err := s.Clear(ctx, wallet, &chain); err != nil {
			return nil, err
		}
	}

	result, err := s.ingestion.Ingest(ctx, wallet, chain, IngestOptions{Limit: limit, Refresh: forceRefresh})
	if err != nil {
		return nil, err
	}
	if !result.Cached && s.cache != nil {
		if err := s.cache.Delete(ctx, cache.StatsKey(wallet, chain.String())); err != nil {
			s.logger.Warn("Failed to invalidate stats cache", zap.Error(err))
		}
	}
	return result, nil
}

// ByToken returns stored events of one asset, newest first
func (s *TransactionService) ByToken(ctx context.Context, wallet string, chain entities.Chain, assetID string) (*EventsResponse, error) {
	wallet, err := ValidateTarget(chain, wallet)
	if err != nil {
		return nil, err
	}
	assetID = strings.TrimSpace(assetID)
	if assetID == "" {
		return nil, fmt.Errorf("%w: token address is required", entities.ErrValidation)
	}
	if assetID != entities.NativeAssetID {
		assetID = chain.NormalizeAddress(assetID)
	}

	return s.query(ctx, wallet, chain, entities.EventQuery{AssetID: assetID})
}

// Search matches stored events by asset symbol or name, case-insensitively
func (s *TransactionService) Search(ctx context.Context, wallet string, chain entities.Chain, text string) (*EventsResponse, error) {
	wallet, err := ValidateTarget(chain, wallet)
	if err != nil {
		return nil, err
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, fmt.Errorf("%w: search text is required", entities.ErrValidation)
	}

	return s.query(ctx, wallet, chain, entities.EventQuery{SearchText: text})
}

func (s *TransactionService) query(ctx context.Context, wallet string, chain entities.Chain, q entities.EventQuery) (*EventsResponse, error) {
	events, err := s.eventRepo.QueryEvents(ctx, wallet, chain, q)
	if err != nil {
		return nil, fmt.Errorf("failed to query events: %w", err)
	}
	if events == nil {
		events = []entities.TransferEvent{}
	}
	return &EventsResponse{Wallet: wallet, Chain: chain, Events: events, Count: len(events)}, nil
}

// Summaries returns the wallet's token summaries on chain, largest balance first
func (s *TransactionService) Summaries(ctx context.Context, wallet string, chain entities.Chain) (*SummariesResponse, error) {
	wallet, err := ValidateTarget(chain, wallet)
	if err != nil {
		return nil, err
	}

	summaries, err := s.summaryRepo.GetSummaries(ctx, wallet, chain)
	if err != nil {
		return nil, fmt.Errorf("failed to get summaries: %w", err)
	}
	if summaries == nil {
		summaries = []entities.TokenSummary{}
	}
	return &SummariesResponse{Wallet: wallet, Chain: chain, Summaries: summaries, Count: len(summaries)}, nil
}

// ByTransactionID returns the stored events of one transaction
func (s *TransactionService) ByTransactionID(ctx context.Context, chain entities.Chain, txID string) ([]entities.TransferEvent, error) {
	if _, err := entities.ParseChain(chain.String()); err != nil {
		return nil, err
	}
	txID = strings.TrimSpace(txID)
	if txID == "" {
		return nil, fmt.Errorf("%w: transaction id is required", entities.ErrValidation)
	}
	if chain.Family() == entities.FamilyEVM {
		txID = strings.ToLower(txID)
	}

	events, err := s.eventRepo.GetByTransaction(ctx, chain, txID)
	if err != nil {
		return nil, fmt.Errorf("failed to get transaction events: %w", err)
	}
	if len(events) == 0 {
		return nil, entities.ErrNotFound
	}
	return events, nil
}

// Clear deletes the wallet's stored events and summaries, on one chain when chain is set.
// The wallet's sync cursor, portfolio snapshot and derived cache entries are dropped too.
func (s *TransactionService) Clear(ctx context.Context, wallet string, chain *entities.Chain) (*ClearResult, error) {
	if strings.TrimSpace(wallet) == "" {
		return nil, fmt.Errorf("%w: wallet address is required", entities.ErrValidation)
	}

	chains := entities.SupportedChains()
	if chain != nil {
		if _, err := entities.ParseChain(chain.String()); err != nil {
			return nil, err
		}
		wallet = chain.NormalizeAddress(wallet)
		chains = []entities.Chain{*chain}
	} else {
		wallet = entities.NormalizeWallet(wallet)
	}

	deleted, err := s.eventRepo.Clear(ctx, wallet, chain)
	if err != nil {
		return nil, fmt.Errorf("failed to clear events: %w", err)
	}

	if s.ingestion != nil {
		if err := s.ingestion.ResetSyncState(ctx, wallet, chain); err != nil {
			return nil, err
		}
	}

	s.dropSnapshot(ctx, entities.NormalizeWallet(wallet))
	if s.cache != nil {
		for _, c := range chains {
			if err := s.cache.DeletePattern(ctx, cache.WalletPattern(c.NormalizeAddress(wallet), c.String())); err != nil {
				s.logger.Warn("Failed to invalidate wallet cache", zap.String("chain", c.String()), zap.Error(err))
			}
		}
	}

	s.logger.Info("Cleared stored events",
		zap.String("wallet", wallet),
		zap.Int64("deleted", deleted),
	)

	return &ClearResult{Wallet: wallet, Chain: chain, DeletedEvents: deleted}, nil
}

func (s *TransactionService) dropSnapshot(ctx context.Context, wallet string) {
	if s.snapshotRepo != nil {
		if err := s.snapshotRepo.Delete(ctx, wallet); err != nil {
			s.logger.Warn("Failed to delete snapshot", zap.String("wallet", wallet), zap.Error(err))
		}
	}
	if s.cache != nil {
		if err := s.cache.Delete(ctx, cache.SnapshotKey(wallet)); err != nil {
			s.logger.Warn("Failed to delete cached snapshot", zap.String("wallet", wallet), zap.Error(err))
		}
	}
}
