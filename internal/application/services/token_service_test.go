package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/bimakw/wallet-indexer/internal/domain/entities"
	"github.com/bimakw/wallet-indexer/internal/domain/providers"
	"github.com/bimakw/wallet-indexer/internal/infrastructure/cache"
	"github.com/bimakw/wallet-indexer/internal/testutil"
)

const unknownToken = "0x9999999999999999999999999999999999999999"

func setupTokenServiceTest() (*TokenService, *testutil.MockTokenRepository, *testutil.MockMetadataSource, *cache.MemoryCache) {
	tokenRepo := testutil.NewMockTokenRepository()
	source := testutil.NewMockMetadataSource("erc20", entities.ChainEthereum, entities.ChainBase)
	memCache := cache.NewMemoryCache(time.Minute)
	logger := zap.NewNop()

	service := NewTokenService(tokenRepo, []providers.MetadataSource{source}, memCache, time.Hour, logger)
	return service, tokenRepo, source, memCache
}

func TestTokenService_Resolve_Native(t *testing.T) {
	service, _, source, _ := setupTokenServiceTest()

	meta, err := service.Resolve(context.Background(), entities.ChainSolana, entities.NativeAssetID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if meta.Symbol != "SOL" || meta.Decimals != 9 {
		t.Errorf("expected SOL/9, got %s/%d", meta.Symbol, meta.Decimals)
	}
	if source.Lookups != 0 {
		t.Errorf("expected no source lookups, got %d", source.Lookups)
	}
}

func TestTokenService_Resolve_KnownToken(t *testing.T) {
	service, tokenRepo, source, _ := setupTokenServiceTest()

	// Mixed case input is normalized on EVM chains
	meta, err := service.Resolve(context.Background(), entities.ChainEthereum, "0xA0b86991c6218b36c1d19D4a2e9Eb0cE3606eB48")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if meta.Symbol != "USDC" || meta.Decimals != 6 {
		t.Errorf("expected USDC/6, got %s/%d", meta.Symbol, meta.Decimals)
	}
	if meta.Source != "known" {
		t.Errorf("expected source known, got %s", meta.Source)
	}
	if len(tokenRepo.Calls) != 0 || source.Lookups != 0 {
		t.Error("expected known tokens to skip the store and sources")
	}
}

func TestTokenService_Resolve_SourceHitIsPersistedAndCached(t *testing.T) {
	service, tokenRepo, source, memCache := setupTokenServiceTest()
	ctx := context.Background()

	source.Tokens[unknownToken] = entities.TokenMetadata{Symbol: "NINE", Name: "Nines", Decimals: 8}

	meta, err := service.Resolve(ctx, entities.ChainEthereum, unknownToken)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if meta == nil || meta.Symbol != "NINE" {
		t.Fatalf("expected NINE, got %+v", meta)
	}

	stored, _ := tokenRepo.Get(ctx, entities.ChainEthereum, unknownToken)
	if stored == nil || stored.Source != "erc20" {
		t.Errorf("expected source hit to be persisted, got %+v", stored)
	}

	var cached entities.TokenMetadata
	if err := memCache.Get(ctx, cache.TokenKey(entities.ChainEthereum.String(), unknownToken), &cached); err != nil {
		t.Fatalf("expected cached metadata: %v", err)
	}

	// Second resolve is served from the cache
	if _, err := service.Resolve(ctx, entities.ChainEthereum, unknownToken); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if source.Lookups != 1 {
		t.Errorf("expected 1 source lookup, got %d", source.Lookups)
	}
}

func TestTokenService_Resolve_StoreBeforeSources(t *testing.T) {
	service, tokenRepo, source, _ := setupTokenServiceTest()

	tokenRepo.AddToken(entities.TokenMetadata{
		Chain:    entities.ChainBase,
		Address:  unknownToken,
		Symbol:   "STORED",
		Name:     "Stored Token",
		Decimals: 18,
	})

	meta, err := service.Resolve(context.Background(), entities.ChainBase, unknownToken)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if meta.Symbol != "STORED" {
		t.Errorf("expected STORED, got %s", meta.Symbol)
	}
	if source.Lookups != 0 {
		t.Errorf("expected sources to be skipped, got %d lookups", source.Lookups)
	}
}

func TestTokenService_ResolveOrPlaceholder(t *testing.T) {
	service, tokenRepo, source, _ := setupTokenServiceTest()
	ctx := context.Background()

	source.Err = errors.New("rpc down")
	tokenRepo.GetFunc = func(context.Context, entities.Chain, string) (*entities.TokenMetadata, error) {
		return nil, errors.New("db down")
	}

	meta := service.ResolveOrPlaceholder(ctx, entities.ChainEthereum, unknownToken)
	if meta.Symbol != "TOKEN-0x999999" {
		t.Errorf("expected placeholder symbol, got %s", meta.Symbol)
	}
	if meta.Decimals != 18 {
		t.Errorf("expected 18 decimals for a 42-char address, got %d", meta.Decimals)
	}
	if meta.Source != "placeholder" {
		t.Errorf("expected placeholder source, got %s", meta.Source)
	}
}

func TestPlaceholderMetadata(t *testing.T) {
	tests := []struct {
		name     string
		chain    entities.Chain
		assetID  string
		symbol   string
		label    string
		decimals int32
	}{
		{"unknown", entities.ChainSolana, "unknown", "UNKNOWN", "Unknown Token", 0},
		{"pump.fun mint", entities.ChainSolana, "7GCihgDB8fe6KNjn2MYtkzZcRjQy3t9GHdC8uHYmW2hrpump", "PUMP-7GCihgDB", "Pump.fun Token (7GCihgDB)", 6},
		{"evm contract", entities.ChainBase, "0xabcdefabcdefabcdefabcdefabcdefabcdefabcd", "TOKEN-0xabcdef", "Token (0xabcdef)", 18},
		{"solana mint", entities.ChainSolana, "DezXAZ8z7PnrnRJjz3wXBoRgixCa6xjnB7YaB1pPB263", "TOKEN-DezXAZ8z", "Token (DezXAZ8z)", 6},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			meta := PlaceholderMetadata(tt.chain, tt.assetID)
			if meta.Symbol != tt.symbol {
				t.Errorf("expected symbol %s, got %s", tt.symbol, meta.Symbol)
			}
			if meta.Name != tt.label {
				t.Errorf("expected name %s, got %s", tt.label, meta.Name)
			}
			if meta.Decimals != tt.decimals {
				t.Errorf("expected decimals %d, got %d", tt.decimals, meta.Decimals)
			}
		})
	}
}
