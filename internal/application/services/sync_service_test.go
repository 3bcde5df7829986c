package services

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/bimakw/wallet-indexer/internal/config"
	"github.com/bimakw/wallet-indexer/internal/domain/entities"
	"github.com/bimakw/wallet-indexer/internal/testutil"
)

const watchlistYAML = `
wallets:
  - address: "0x1111111111111111111111111111111111111111"
    chains: [ethereum-mainnet, base-mainnet]
  - address: "7xKXtg2CW87d97TXJSDpbD5jBkheTqA83TZRuJosgAsU"
  - address: "0x2222222222222222222222222222222222222222"
`

func TestParseWatchlist(t *testing.T) {
	wl, err := ParseWatchlist([]byte(watchlistYAML))
	require.NoError(t, err)

	targets := wl.Targets()
	require.Len(t, targets, 5)
	assert.Equal(t, SyncTarget{Wallet: testutil.AliceAddress, Chain: entities.ChainEthereum}, targets[0])
	assert.Equal(t, SyncTarget{Wallet: testutil.AliceAddress, Chain: entities.ChainBase}, targets[1])
	assert.Equal(t, SyncTarget{Wallet: testutil.SolanaWallet, Chain: entities.ChainSolana}, targets[2])
	// No chains listed: every chain the address fits
	assert.Equal(t, entities.ChainEthereum, targets[3].Chain)
	assert.Equal(t, entities.ChainBase, targets[4].Chain)
}

func TestParseWatchlist_Invalid(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{"bad yaml", "wallets: [:"},
		{"missing address", "wallets:\n  - chains: [ethereum-mainnet]\n"},
		{"unknown chain", "wallets:\n  - address: \"0x1111111111111111111111111111111111111111\"\n    chains: [polygon]\n"},
		{"address wrong family", "wallets:\n  - address: \"0x1111111111111111111111111111111111111111\"\n    chains: [solana-mainnet]\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseWatchlist([]byte(tt.yaml))
			assert.Error(t, err)
		})
	}
}

func TestLoadWatchlist(t *testing.T) {
	path := filepath.Join(t.TempDir(), "watchlist.yaml")
	require.NoError(t, os.WriteFile(path, []byte(watchlistYAML), 0o600))

	wl, err := LoadWatchlist(path)
	require.NoError(t, err)
	assert.Len(t, wl.Wallets, 3)

	_, err = LoadWatchlist(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestSyncService_SyncWalletIsIncremental(t *testing.T) {
	f := setupIngestionTest(t)
	f.provider.AddTransactions(testutil.CreateMultipleEVMTransfers(5, testWallet)...)
	service := NewSyncService(f.service, f.syncRepo, config.WorkerConfig{}, zap.NewNop())
	ctx := context.Background()

	first, err := service.SyncWallet(ctx, testWallet, entities.ChainEthereum)
	require.NoError(t, err)
	assert.Equal(t, 5, first.TotalSourceTransactions)

	// Two new transactions arrive
	f.provider.Prepend(
		testutil.EVMTransfer(6, testutil.BobAddress, testWallet, testutil.OneEther),
		testutil.EVMTransfer(5, testutil.BobAddress, testWallet, testutil.OneEther),
	)
	_, detailBefore, _ := f.provider.Counts()

	second, err := service.SyncWallet(ctx, testWallet, entities.ChainEthereum)
	require.NoError(t, err)
	assert.Equal(t, 2, second.TotalSourceTransactions)
	assert.Equal(t, 7, second.Count)

	_, detailAfter, _ := f.provider.Counts()
	assert.Equal(t, 2, detailAfter-detailBefore, "only new transactions are fetched")

	state, err := f.syncRepo.Get(ctx, testWallet, entities.ChainEthereum)
	require.NoError(t, err)
	require.NotNil(t, state.NewestTransactionID)
	assert.Equal(t, testutil.TxHash(6), *state.NewestTransactionID)

	m := service.GetMetrics()
	assert.Equal(t, int64(2), m.WalletsSynced)
	assert.Equal(t, int64(7), m.EventsStored)
}

func TestSyncService_SyncAllContinuesPastFailures(t *testing.T) {
	f := setupIngestionTest(t)
	f.provider.AddTransactions(testutil.CreateMultipleEVMTransfers(2, testWallet)...)
	service := NewSyncService(f.service, f.syncRepo, config.WorkerConfig{}, zap.NewNop())

	service.SyncAll(context.Background(), []SyncTarget{
		{Wallet: testutil.SolanaWallet, Chain: entities.ChainSolana},
		{Wallet: testWallet, Chain: entities.ChainEthereum},
	})

	m := service.GetMetrics()
	assert.Equal(t, int64(1), m.Passes)
	assert.Equal(t, int64(1), m.WalletsSynced)

	has, err := f.store.HasEvents(context.Background(), testWallet, entities.ChainEthereum)
	require.NoError(t, err)
	assert.True(t, has)
}

func TestSyncService_UnreachableChain(t *testing.T) {
	f := setupIngestionTest(t)
	f.provider.ListErr = errors.New("connection refused")
	service := NewSyncService(f.service, f.syncRepo, config.WorkerConfig{}, zap.NewNop())

	_, err := service.SyncWallet(context.Background(), testWallet, entities.ChainEthereum)
	assert.ErrorIs(t, err, entities.ErrUpstreamUnavailable)
	assert.Equal(t, int64(1), service.GetMetrics().ErrorCount)
}

func TestSyncService_LimitedRunLeavesCursor(t *testing.T) {
	f := setupIngestionTest(t)
	f.provider.AddTransactions(testutil.CreateMultipleEVMTransfers(5, testWallet)...)
	service := NewSyncService(f.service, f.syncRepo, config.WorkerConfig{}, zap.NewNop())
	ctx := context.Background()

	limited, err := f.service.Ingest(ctx, testWallet, entities.ChainEthereum, IngestOptions{Limit: 2})
	require.NoError(t, err)
	assert.Equal(t, 2, limited.Count)

	state, err := f.syncRepo.Get(ctx, testWallet, entities.ChainEthereum)
	require.NoError(t, err)
	require.NotNil(t, state)
	assert.Nil(t, state.NewestTransactionID, "a limited run never reached the older history")

	result, err := service.SyncWallet(ctx, testWallet, entities.ChainEthereum)
	require.NoError(t, err)
	assert.Equal(t, 5, result.Count)

	state, err = f.syncRepo.Get(ctx, testWallet, entities.ChainEthereum)
	require.NoError(t, err)
	require.NotNil(t, state.NewestTransactionID)
	assert.Equal(t, testutil.TxHash(4), *state.NewestTransactionID)
}

func TestSyncService_SkippedTransactionIsRetried(t *testing.T) {
	f := setupIngestionTest(t)
	f.provider.AddTransactions(testutil.CreateMultipleEVMTransfers(5, testWallet)...)
	f.provider.DetailErrs[testutil.TxHash(2)] = errors.New("timeout")
	service := NewSyncService(f.service, f.syncRepo, config.WorkerConfig{}, zap.NewNop())
	ctx := context.Background()

	first, err := service.SyncWallet(ctx, testWallet, entities.ChainEthereum)
	require.NoError(t, err)
	assert.Equal(t, 1, first.SkippedTransactions)
	assert.Equal(t, 4, first.Count)
	assert.NotEmpty(t, first.Error)

	state, err := f.syncRepo.Get(ctx, testWallet, entities.ChainEthereum)
	require.NoError(t, err)
	assert.Nil(t, state.NewestTransactionID, "the cursor stays put while a transaction is missing")

	delete(f.provider.DetailErrs, testutil.TxHash(2))

	second, err := service.SyncWallet(ctx, testWallet, entities.ChainEthereum)
	require.NoError(t, err)
	assert.Equal(t, 0, second.SkippedTransactions)
	assert.Equal(t, 5, second.Count)

	state, err = f.syncRepo.Get(ctx, testWallet, entities.ChainEthereum)
	require.NoError(t, err)
	require.NotNil(t, state.NewestTransactionID)
	assert.Equal(t, testutil.TxHash(4), *state.NewestTransactionID)
}

func TestSyncService_RefillsAfterClear(t *testing.T) {
	f := setupIngestionTest(t)
	f.provider.AddTransactions(testutil.CreateMultipleEVMTransfers(5, testWallet)...)
	service := NewSyncService(f.service, f.syncRepo, config.WorkerConfig{}, zap.NewNop())
	ctx := context.Background()
	chain := entities.ChainEthereum

	_, err := service.SyncWallet(ctx, testWallet, chain)
	require.NoError(t, err)

	t.Run("store cleared directly", func(t *testing.T) {
		_, err := f.store.Clear(ctx, testWallet, &chain)
		require.NoError(t, err)

		result, err := service.SyncWallet(ctx, testWallet, chain)
		require.NoError(t, err)
		assert.Equal(t, 5, result.TotalSourceTransactions)
		assert.Equal(t, 5, result.Count)
	})

	t.Run("cleared through the transaction service", func(t *testing.T) {
		transactions := NewTransactionService(f.service, f.store, f.store, testutil.NewMockSnapshotRepository(), nil, zap.NewNop())
		_, err := transactions.Clear(ctx, testWallet, &chain)
		require.NoError(t, err)

		state, err := f.syncRepo.Get(ctx, testWallet, chain)
		require.NoError(t, err)
		assert.Nil(t, state, "clear drops the sync state")

		result, err := service.SyncWallet(ctx, testWallet, chain)
		require.NoError(t, err)
		assert.Equal(t, 5, result.Count)
	})
}
