package solana

import (
	"context"
	"encoding/json"
	"fmt"
	"math/big"
	"time"

	"github.com/bimakw/wallet-indexer/internal/domain/entities"
	"github.com/bimakw/wallet-indexer/internal/domain/providers"
)

// RPC is the subset of the Solana JSON-RPC API the provider needs
type RPC interface {
	GetSignaturesForAddress(ctx context.Context, address string, limit int, before string) ([]SignatureInfo, error)
	GetTransaction(ctx context.Context, signature string) (*TransactionResult, json.RawMessage, error)
	GetBalance(ctx context.Context, address string) (uint64, error)
}

// Provider serves Solana mainnet from a JSON-RPC node
type Provider struct {
	rpc RPC
}

var _ providers.ChainProvider = (*Provider)(nil)

// NewProvider creates a Solana chain provider
func NewProvider(rpc RPC) *Provider {
	return &Provider{rpc: rpc}
}

// Chain implements providers.ChainProvider
func (p *Provider) Chain() entities.Chain {
	return entities.ChainSolana
}

// GetNativeBalance implements providers.ChainProvider
func (p *Provider) GetNativeBalance(ctx context.Context, address string) (*entities.NativeBalance, error) {
	lamports, err := p.rpc.GetBalance(ctx, address)
	if err != nil {
		return nil, err
	}

	native := entities.ChainSolana.Native()
	return &entities.NativeBalance{
		Chain:    entities.ChainSolana,
		Balance:  entities.FormatAmount(entities.ScaleAmount(new(big.Int).SetUint64(lamports), native.Decimals)),
		Symbol:   native.Symbol,
		Name:     native.Name,
		Decimals: native.Decimals,
	}, nil
}

// ListTransactionPage implements providers.ChainProvider.
// The before marker is the oldest signature of the previous page.
func (p *Provider) ListTransactionPage(ctx context.Context, address string, pageSize int, before string) (*entities.TransactionPage, error) {
	sigs, err := p.rpc.GetSignaturesForAddress(ctx, address, pageSize, before)
	if err != nil {
		return nil, err
	}

	page := &entities.TransactionPage{Items: make([]entities.TransactionRef, 0, len(sigs))}
	for _, s := range sigs {
		slot := s.Slot
		ref := entities.TransactionRef{
			ID:          s.Signature,
			SequenceRef: &slot,
			Failed:      s.Failed(),
		}
		if s.BlockTime != nil {
			ts := time.Unix(*s.BlockTime, 0).UTC()
			ref.ObservedAt = &ts
		}
		page.Items = append(page.Items, ref)
	}

	if len(sigs) > 0 && len(sigs) >= pageSize {
		page.NextBefore = sigs[len(sigs)-1].Signature
	}
	return page, nil
}

// GetTransactionDetail implements providers.ChainProvider
func (p *Provider) GetTransactionDetail(ctx context.Context, signature string) (*entities.RawTransaction, error) {
	res, raw, err := p.rpc.GetTransaction(ctx, signature)
	if err != nil {
		return nil, err
	}
	if res == nil {
		return nil, fmt.Errorf("solana transaction %s: %w", signature, entities.ErrNotFound)
	}

	tx, err := ParseTransaction(signature, res)
	if err != nil {
		return nil, err
	}

	slot := tx.Slot
	out := &entities.RawTransaction{
		Chain:       entities.ChainSolana,
		ID:          signature,
		SequenceRef: &slot,
		Solana:      tx,
		Payload:     raw,
	}
	if tx.BlockTime != nil {
		ts := time.Unix(*tx.BlockTime, 0).UTC()
		out.ObservedAt = &ts
	}
	return out, nil
}
