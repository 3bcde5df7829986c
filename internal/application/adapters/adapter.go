// Package adapters decodes raw chain transactions into normalized transfer events.
package adapters

import (
	"context"
	"fmt"

	"github.com/bimakw/wallet-indexer/internal/domain/entities"
)

// TokenLookup supplies token metadata during decoding. It never fails:
// unknown tokens come back as deterministic placeholders.
type TokenLookup interface {
	ResolveOrPlaceholder(ctx context.Context, chain entities.Chain, assetID string) *entities.TokenMetadata
}

// ChainAdapter decodes one raw transaction into the wallet's transfer events.
// Amounts are signed decimal strings in token units; dust is already dropped.
type ChainAdapter interface {
	Family() entities.Family
	Decode(ctx context.Context, raw *entities.RawTransaction, wallet string) ([]entities.TransferEvent, error)
}

// Registry dispatches chains to the adapter of their family
type Registry struct {
	adapters map[entities.Family]ChainAdapter
}

// NewRegistry creates a registry from one adapter per family
func NewRegistry(adapters ...ChainAdapter) *Registry {
	r := &Registry{adapters: make(map[entities.Family]ChainAdapter, len(adapters))}
	for _, a := range adapters {
		r.adapters[a.Family()] = a
	}
	return r
}

// For returns the adapter that decodes chain
func (r *Registry) For(chain entities.Chain) (ChainAdapter, error) {
	a, ok := r.adapters[chain.Family()]
	if !ok {
		return nil, fmt.Errorf("%w: no adapter for %s", entities.ErrUnsupportedChain, chain)
	}
	return a, nil
}
