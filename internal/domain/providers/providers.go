package providers

import (
	"context"
	"fmt"
	"sync"

	"github.com/bimakw/wallet-indexer/internal/domain/entities"
)

// ChainProvider is the upstream data contract for one chain
type ChainProvider interface {
	// Chain returns the chain served by this provider
	Chain() entities.Chain

	// GetNativeBalance returns the live base-currency balance of address
	GetNativeBalance(ctx context.Context, address string) (*entities.NativeBalance, error)

	// ListTransactionPage returns up to pageSize transactions older than before, newest first.
	// An empty before starts from the most recent transaction.
	ListTransactionPage(ctx context.Context, address string, pageSize int, before string) (*entities.TransactionPage, error)

	// GetTransactionDetail returns the full record the chain adapter decodes
	GetTransactionDetail(ctx context.Context, transactionID string) (*entities.RawTransaction, error)
}

// MetadataSource resolves token display metadata from one upstream.
// Lookup returns nil, nil when the source has no entry.
type MetadataSource interface {
	Name() string
	Supports(chain entities.Chain) bool
	Lookup(ctx context.Context, chain entities.Chain, address string) (*entities.TokenMetadata, error)
}

// Answerer produces a free-text answer to a question about a structured data blob
type Answerer interface {
	Answer(ctx context.Context, question string, data []byte) (string, error)
}

// Registry holds one long-lived provider per chain, built at startup
type Registry struct {
	mu        sync.RWMutex
	providers map[entities.Chain]ChainProvider
}

// NewRegistry creates a registry from the given providers
func NewRegistry(providers ...ChainProvider) *Registry {
	r := &Registry{providers: make(map[entities.Chain]ChainProvider, len(providers))}
	for _, p := range providers {
		r.Register(p)
	}
	return r
}

// Register adds or replaces the provider for its chain
func (r *Registry) Register(p ChainProvider) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.providers[p.Chain()] = p
}

// Get returns the provider for chain
func (r *Registry) Get(chain entities.Chain) (ChainProvider, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.providers[chain]
	if !ok {
		return nil, fmt.Errorf("%w: no provider configured for %s", entities.ErrUnsupportedChain, chain)
	}
	return p, nil
}

// Chains returns the configured chains in SupportedChains order
func (r *Registry) Chains() []entities.Chain {
	r.mu.RLock()
	defer r.mu.RUnlock()
	chains := make([]entities.Chain, 0, len(r.providers))
	for _, c := range entities.SupportedChains() {
		if _, ok := r.providers[c]; ok {
			chains = append(chains, c)
		}
	}
	return chains
}
