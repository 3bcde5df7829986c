package repositories

import (
	"context"

	"github.com/bimakw/wallet-indexer/internal/domain/entities"
)

// TokenRepository persists resolved token metadata
type TokenRepository interface {
	// Get retrieves token metadata, nil when unknown
	Get(ctx context.Context, chain entities.Chain, address string) (*entities.TokenMetadata, error)

	// Upsert creates or updates token metadata
	Upsert(ctx context.Context, token *entities.TokenMetadata) error
}
