package repositories

import (
	"context"

	"github.com/bimakw/wallet-indexer/internal/domain/entities"
)

// SummaryRepository persists per-asset aggregates derived from events
type SummaryRepository interface {
	// RecomputeSummary folds all matching events and overwrites the summary row
	RecomputeSummary(ctx context.Context, wallet string, chain entities.Chain, assetID, symbol, name string) (*entities.TokenSummary, error)

	// GetSummaries returns all summaries for the wallet and chain, largest balance first
	GetSummaries(ctx context.Context, wallet string, chain entities.Chain) ([]entities.TokenSummary, error)

	// GetSummary returns one summary or nil
	GetSummary(ctx context.Context, wallet string, chain entities.Chain, assetID string) (*entities.TokenSummary, error)
}
