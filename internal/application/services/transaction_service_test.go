package services

import (
	"context"
	"errors"
	"math/big"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/bimakw/wallet-indexer/internal/domain/entities"
	"github.com/bimakw/wallet-indexer/internal/infrastructure/cache"
	"github.com/bimakw/wallet-indexer/internal/testutil"
)

func setupTransactionServiceTest(t *testing.T) (*TransactionService, *ingestionFixture, *testutil.MockSnapshotRepository, *cache.MemoryCache) {
	t.Helper()
	f := setupIngestionTest(t)
	snapshots := testutil.NewMockSnapshotRepository()
	memCache := cache.NewMemoryCache(time.Minute)

	service := NewTransactionService(f.service, f.store, f.store, snapshots, memCache, zap.NewNop())
	return service, f, snapshots, memCache
}

func TestTransactionService_FetchDetailed(t *testing.T) {
	service, f, _, _ := setupTransactionServiceTest(t)
	f.provider.AddTransactions(scenarioTransactions()...)
	ctx := context.Background()

	result, err := service.FetchDetailed(ctx, testWallet, entities.ChainEthereum, 0, false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Count != 2 || result.Cached {
		t.Errorf("expected 2 fresh events, got %d (cached=%t)", result.Count, result.Cached)
	}

	result, err = service.FetchDetailed(ctx, testWallet, entities.ChainEthereum, 0, false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !result.Cached {
		t.Error("expected second fetch to be served from the store")
	}
}

func TestTransactionService_ForceRefreshClearsFirst(t *testing.T) {
	service, f, _, _ := setupTransactionServiceTest(t)
	f.provider.AddTransactions(scenarioTransactions()...)
	ctx := context.Background()

	// A row the chain no longer lists disappears on a forced refresh
	f.store.AddEvents(testutil.CreateTestEvent(testutil.WithTxID("0xorphan")))

	result, err := service.FetchDetailed(ctx, testWallet, entities.ChainEthereum, 0, true)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Cached {
		t.Error("expected forced refresh to contact the chain")
	}
	if f.store.CallCount("Clear") != 1 {
		t.Errorf("expected 1 clear, got %d", f.store.CallCount("Clear"))
	}
	for _, e := range f.store.Events() {
		if e.TransactionID == "0xorphan" {
			t.Error("expected the orphan row to be cleared")
		}
	}
}

func TestTransactionService_ClearThenReingest(t *testing.T) {
	service, f, snapshots, _ := setupTransactionServiceTest(t)
	f.provider.AddTransactions(scenarioTransactions()...)
	ctx := context.Background()

	if _, err := service.FetchDetailed(ctx, testWallet, entities.ChainEthereum, 0, false); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	before := eventState(f.store)
	_ = snapshots.Put(ctx, &entities.PortfolioSnapshot{Wallet: testWallet, SchemaVersion: entities.SnapshotSchemaVersion})

	chain := entities.ChainEthereum
	cleared, err := service.Clear(ctx, testWallet, &chain)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cleared.DeletedEvents != 2 {
		t.Errorf("expected 2 deleted events, got %d", cleared.DeletedEvents)
	}

	events, err := service.ByToken(ctx, testWallet, entities.ChainEthereum, entities.NativeAssetID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if events.Count != 0 {
		t.Errorf("expected no events after clear, got %d", events.Count)
	}
	if snap, _ := snapshots.Get(ctx, testWallet); snap != nil {
		t.Error("expected the snapshot to be dropped")
	}

	if _, err := service.FetchDetailed(ctx, testWallet, entities.ChainEthereum, 0, false); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	after := eventState(f.store)
	if len(after) != len(before) {
		t.Fatalf("expected %d events after re-ingest, got %d", len(before), len(after))
	}
	for k, v := range before {
		if after[k] != v {
			t.Errorf("event %v differs after re-ingest: %s vs %s", k, v, after[k])
		}
	}
}

func TestTransactionService_ByTokenAndSearch(t *testing.T) {
	service, f, _, _ := setupTransactionServiceTest(t)
	f.provider.AddTransactions(scenarioTransactions()...)
	ctx := context.Background()

	if _, err := service.FetchDetailed(ctx, testWallet, entities.ChainEthereum, 0, false); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	byToken, err := service.ByToken(ctx, testWallet, entities.ChainEthereum, "0xA0B86991C6218B36C1D19D4A2E9EB0CE3606EB48")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if byToken.Count != 1 || byToken.Events[0].Amount != "-5.0" {
		t.Errorf("unexpected token events: %+v", byToken.Events)
	}

	search, err := service.Search(ctx, testWallet, entities.ChainEthereum, "usd coin")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if search.Count != 1 {
		t.Errorf("expected 1 search hit, got %d", search.Count)
	}

	if _, err := service.Search(ctx, testWallet, entities.ChainEthereum, "  "); !errors.Is(err, entities.ErrValidation) {
		t.Errorf("expected validation error for empty search, got %v", err)
	}
}

func TestTransactionService_Summaries(t *testing.T) {
	service, f, _, _ := setupTransactionServiceTest(t)
	f.provider.AddTransactions(
		testutil.EVMTransfer(1, testutil.BobAddress, testWallet, new(big.Int).Mul(big.NewInt(3), testutil.OneEther)),
		testutil.EVMTransfer(0, testWallet, testutil.USDTAddress, nil,
			testutil.ERC20Log(testutil.USDTAddress, testutil.BobAddress, testWallet, big.NewInt(7000000))),
	)
	ctx := context.Background()

	if _, err := service.FetchDetailed(ctx, testWallet, entities.ChainEthereum, 0, false); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	resp, err := service.Summaries(ctx, testWallet, entities.ChainEthereum)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.Count != 2 {
		t.Fatalf("expected 2 summaries, got %d", resp.Count)
	}
	if resp.Summaries[0].AssetSymbol != "USDT" || resp.Summaries[0].CurrentBalance != "7.0" {
		t.Errorf("expected USDT 7.0 first, got %+v", resp.Summaries[0])
	}
	if resp.Summaries[1].CurrentBalance != "3.0" {
		t.Errorf("expected ETH 3.0 second, got %+v", resp.Summaries[1])
	}
}

func TestTransactionService_ByTransactionID(t *testing.T) {
	service, f, _, _ := setupTransactionServiceTest(t)
	ctx := context.Background()

	f.store.AddEvents(testutil.CreateTestEvent(testutil.WithTxID(testutil.TxHash(7))))

	events, err := service.ByTransactionID(ctx, entities.ChainEthereum, testutil.TxHash(7))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(events) != 1 {
		t.Errorf("expected 1 event, got %d", len(events))
	}

	if _, err := service.ByTransactionID(ctx, entities.ChainEthereum, "0xmissing"); !errors.Is(err, entities.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}
