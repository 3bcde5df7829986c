package services

import (
	"context"
	"fmt"
	"math"
	"time"

	"go.uber.org/zap"

	"github.com/bimakw/wallet-indexer/internal/domain/entities"
	"github.com/bimakw/wallet-indexer/internal/domain/repositories"
	"github.com/bimakw/wallet-indexer/internal/infrastructure/cache"
)

// StatsService computes transaction statistics over stored events
type StatsService struct {
	eventRepo   repositories.EventRepository
	summaryRepo repositories.SummaryRepository
	cache       cache.Cache
	cacheTTL    time.Duration
	logger      *zap.Logger
}

// NewStatsService creates a new stats service. cache may be nil.
func NewStatsService(
	eventRepo repositories.EventRepository,
	summaryRepo repositories.SummaryRepository,
	cache cache.Cache,
	cacheTTL time.Duration,
	logger *zap.Logger,
) *StatsService {
	return &StatsService{
		eventRepo:   eventRepo,
		summaryRepo: summaryRepo,
		cache:       cache,
		cacheTTL:    cacheTTL,
		logger:      logger,
	}
}

// AssetNet is the net flow of one asset
type AssetNet struct {
	AssetID  string `json:"asset_id"`
	Symbol   string `json:"symbol"`
	Received string `json:"total_received"`
	Sent     string `json:"total_sent"`
	Net      string `json:"net"`
}

// TransactionStats is the API representation of a wallet's activity on one chain
type TransactionStats struct {
	Wallet          string         `json:"wallet"`
	Chain           entities.Chain `json:"chain"`
	TotalEvents     int64          `json:"total_events"`
	Transactions    int64          `json:"transactions"`
	Received        int64          `json:"received"`
	Sent            int64          `json:"sent"`
	Unknown         int64          `json:"unknown"`
	Failed          int64          `json:"failed"`
	ReceivedPercent float64        `json:"received_percent"`
	SentPercent     float64        `json:"sent_percent"`
	FirstTransferAt *time.Time     `json:"first_transfer_at,omitempty"`
	LastTransferAt  *time.Time     `json:"last_transfer_at,omitempty"`
	Assets          []AssetNet     `json:"assets"`
}

// TransactionStats returns direction counts, percentages and per-asset net flow
func (s *StatsService) TransactionStats(ctx context.Context, wallet string, chain entities.Chain) (*TransactionStats, error) {
	wallet, err := ValidateTarget(chain, wallet)
	if err != nil {
		return nil, err
	}

	cacheKey := cache.StatsKey(wallet, chain.String())
	if s.cache != nil {
		var cached TransactionStats
		if err := s.cache.Get(ctx, cacheKey, &cached); err == nil {
			s.logger.Debug("Cache hit", zap.String("key", cacheKey))
			return &cached, nil
		}
	}

	counts, err := s.eventRepo.GetStats(ctx, wallet, chain)
	if err != nil {
		return nil, fmt.Errorf("failed to get event stats: %w", err)
	}
	summaries, err := s.summaryRepo.GetSummaries(ctx, wallet, chain)
	if err != nil {
		return nil, fmt.Errorf("failed to get summaries: %w", err)
	}

	stats := &TransactionStats{
		Wallet:          wallet,
		Chain:           chain,
		TotalEvents:     counts.TotalEvents,
		Transactions:    counts.Transactions,
		Received:        counts.Received,
		Sent:            counts.Sent,
		Unknown:         counts.Unknown,
		Failed:          counts.Failed,
		ReceivedPercent: percent(counts.Received, counts.TotalEvents),
		SentPercent:     percent(counts.Sent, counts.TotalEvents),
		FirstTransferAt: counts.FirstTransferAt,
		LastTransferAt:  counts.LastTransferAt,
		Assets:          make([]AssetNet, 0, len(summaries)),
	}
	for _, sum := range summaries {
		stats.Assets = append(stats.Assets, AssetNet{
			AssetID:  sum.AssetID,
			Symbol:   sum.AssetSymbol,
			Received: entities.NormalizeAmount(sum.TotalReceived),
			Sent:     entities.NormalizeAmount(sum.TotalSent),
			Net:      entities.NormalizeAmount(sum.CurrentBalance),
		})
	}

	if s.cache != nil {
		if err := s.cache.SetWithTTL(ctx, cacheKey, stats, s.cacheTTL); err != nil {
			s.logger.Warn("Failed to cache stats", zap.Error(err))
		}
	}

	return stats, nil
}

// percent is display-only, rounded to two places
func percent(part, total int64) float64 {
	if total == 0 {
		return 0
	}
	return math.Round(float64(part)*10000/float64(total)) / 100
}
