package ethereum

import (
	"context"
	"math/big"

	"github.com/bimakw/wallet-indexer/internal/domain/entities"
	"github.com/bimakw/wallet-indexer/internal/domain/providers"
)

// BalanceReader reads native balances from a node
type BalanceReader interface {
	BalanceAt(ctx context.Context, address string) (*big.Int, error)
}

// TransactionFetcher loads one transaction in full
type TransactionFetcher interface {
	FetchTransaction(ctx context.Context, txHash string) (*entities.RawTransaction, error)
}

// PageLister lists wallet transactions page by page
type PageLister interface {
	ListPage(ctx context.Context, chain entities.Chain, address string, pageSize int, marker string) (*entities.TransactionPage, error)
}

// Provider serves one EVM chain: listings from the data API, balances and details from the node
type Provider struct {
	chain   entities.Chain
	node    BalanceReader
	fetcher TransactionFetcher
	history PageLister
}

var _ providers.ChainProvider = (*Provider)(nil)

// NewProvider creates an EVM chain provider
func NewProvider(chain entities.Chain, node BalanceReader, fetcher TransactionFetcher, history PageLister) *Provider {
	return &Provider{
		chain:   chain,
		node:    node,
		fetcher: fetcher,
		history: history,
	}
}

// Chain implements providers.ChainProvider
func (p *Provider) Chain() entities.Chain {
	return p.chain
}

// GetNativeBalance implements providers.ChainProvider
func (p *Provider) GetNativeBalance(ctx context.Context, address string) (*entities.NativeBalance, error) {
	wei, err := p.node.BalanceAt(ctx, address)
	if err != nil {
		return nil, entities.NewProviderError(p.chain, "balance", err)
	}

	native := p.chain.Native()
	return &entities.NativeBalance{
		Chain:    p.chain,
		Balance:  entities.FormatAmount(entities.ScaleAmount(wei, native.Decimals)),
		Symbol:   native.Symbol,
		Name:     native.Name,
		Decimals: native.Decimals,
	}, nil
}

// ListTransactionPage implements providers.ChainProvider
func (p *Provider) ListTransactionPage(ctx context.Context, address string, pageSize int, before string) (*entities.TransactionPage, error) {
	return p.history.ListPage(ctx, p.chain, address, pageSize, before)
}

// GetTransactionDetail implements providers.ChainProvider
func (p *Provider) GetTransactionDetail(ctx context.Context, transactionID string) (*entities.RawTransaction, error) {
	raw, err := p.fetcher.FetchTransaction(ctx, transactionID)
	if err != nil {
		return nil, entities.NewProviderError(p.chain, "transaction", err)
	}
	return raw, nil
}
