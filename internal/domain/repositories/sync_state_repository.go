package repositories

import (
	"context"

	"github.com/bimakw/wallet-indexer/internal/domain/entities"
)

// SyncStateRepository defines the interface for ingestion progress records
type SyncStateRepository interface {
	// Get retrieves the state for a wallet and chain, nil when never synced
	Get(ctx context.Context, wallet string, chain entities.Chain) (*entities.SyncState, error)

	// Upsert creates or updates the state
	Upsert(ctx context.Context, state *entities.SyncState) error

	// Delete removes the wallet's state, on every chain when chain is nil
	Delete(ctx context.Context, wallet string, chain *entities.Chain) error
}
