package repositories

import (
	"context"

	"github.com/bimakw/wallet-indexer/internal/domain/entities"
)

// SnapshotRepository stores one opaque PortfolioSnapshot per wallet
type SnapshotRepository interface {
	Get(ctx context.Context, wallet string) (*entities.PortfolioSnapshot, error)
	Put(ctx context.Context, snapshot *entities.PortfolioSnapshot) error
	Delete(ctx context.Context, wallet string) error
}
