package services

import (
	"context"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/bimakw/wallet-indexer/internal/domain/entities"
	"github.com/bimakw/wallet-indexer/internal/infrastructure/cache"
	"github.com/bimakw/wallet-indexer/internal/testutil"
)

func TestStatsService_TransactionStats(t *testing.T) {
	store := testutil.NewMockStore()
	memCache := cache.NewMemoryCache(time.Minute)
	service := NewStatsService(store, store, memCache, time.Minute, zap.NewNop())
	ctx := context.Background()

	store.AddEvents(
		testutil.CreateTestEvent(testutil.WithTxID(testutil.TxHash(1)), testutil.WithAmount("2.0")),
		testutil.CreateTestEvent(testutil.WithTxID(testutil.TxHash(2)), testutil.WithAmount("1.0")),
		testutil.CreateTestEvent(testutil.WithTxID(testutil.TxHash(3)), testutil.WithAmount("-0.5"),
			testutil.WithObservedAt(testutil.BaseTime.Add(time.Hour))),
		testutil.CreateTestEvent(testutil.WithTxID(testutil.TxHash(3)), testutil.WithAmount("-10.0"),
			testutil.WithAsset(testutil.USDCAddress, "USDC", "USD Coin"), testutil.WithStatus(entities.StatusFailed)),
	)
	_, _ = store.RecomputeSummary(ctx, testutil.AliceAddress, entities.ChainEthereum, entities.NativeAssetID, "ETH", "Ethereum")
	_, _ = store.RecomputeSummary(ctx, testutil.AliceAddress, entities.ChainEthereum, testutil.USDCAddress, "USDC", "USD Coin")

	stats, err := service.TransactionStats(ctx, testutil.AliceAddress, entities.ChainEthereum)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if stats.TotalEvents != 4 || stats.Transactions != 3 {
		t.Errorf("expected 4 events over 3 transactions, got %d/%d", stats.TotalEvents, stats.Transactions)
	}
	if stats.Received != 2 || stats.Sent != 2 || stats.Failed != 1 {
		t.Errorf("unexpected counts: %+v", stats)
	}
	if stats.ReceivedPercent != 50 || stats.SentPercent != 50 {
		t.Errorf("expected 50/50, got %v/%v", stats.ReceivedPercent, stats.SentPercent)
	}
	if stats.LastTransferAt == nil || !stats.LastTransferAt.Equal(testutil.BaseTime.Add(time.Hour)) {
		t.Errorf("unexpected last transfer time: %v", stats.LastTransferAt)
	}

	nets := make(map[string]string)
	for _, a := range stats.Assets {
		nets[a.Symbol] = a.Net
	}
	if nets["ETH"] != "2.5" || nets["USDC"] != "-10.0" {
		t.Errorf("unexpected nets: %v", nets)
	}

	// Served from the cache afterwards
	before := store.CallCount("GetStats")
	if _, err := service.TransactionStats(ctx, testutil.AliceAddress, entities.ChainEthereum); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if store.CallCount("GetStats") != before {
		t.Error("expected a cache hit")
	}
}

func TestPercent(t *testing.T) {
	tests := []struct {
		part, total int64
		expected    float64
	}{
		{0, 0, 0},
		{1, 3, 33.33},
		{2, 3, 66.67},
		{5, 5, 100},
	}

	for _, tt := range tests {
		if got := percent(tt.part, tt.total); got != tt.expected {
			t.Errorf("percent(%d, %d) = %v, want %v", tt.part, tt.total, got, tt.expected)
		}
	}
}
