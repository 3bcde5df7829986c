package adapters

import (
	"context"
	"math/big"
	"strings"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/bimakw/wallet-indexer/internal/domain/entities"
	"github.com/bimakw/wallet-indexer/internal/infrastructure/ethereum"
)

const (
	evmWallet  = "0x1111111111111111111111111111111111111111"
	evmOther   = "0x2222222222222222222222222222222222222222"
	evmUSDC    = "0xa0b86991c6218b36c1d19d4a2e9eb0ce3606eb48"
	solWallet  = "7xKXtg2CW87d97TXJSDpbD5jBkheTqA83TZRuJosgAsU"
	solOther   = "DRpbCBMxVnDK7maPM5tGv6MvB3v1sRMC86PZ8okm21hy"
	solATA     = "9xQeWvG816bUx9EPjHmaT23yvVM2ZWbrrpZb9PusVFin"
	solUSDC    = "EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v"
	solBonk    = "DezXAZ8z7PnrnRJjz3wXBoRgixCa6xjnB7YaB1pPB263"
	signatureA = "sigA"
)

type stubTokens map[string]entities.TokenMetadata

func (s stubTokens) ResolveOrPlaceholder(_ context.Context, chain entities.Chain, assetID string) *entities.TokenMetadata {
	if m, ok := s[assetID]; ok {
		return &m
	}
	return &entities.TokenMetadata{Chain: chain, Address: assetID, Symbol: "TOKEN-" + assetID[:8], Name: "Token", Decimals: 18, Source: entities.TokenSourcePlaceholder}
}

var testTokens = stubTokens{
	evmUSDC: {Symbol: "USDC", Name: "USD Coin", Decimals: 6},
	solUSDC: {Symbol: "USDC", Name: "USD Coin", Decimals: 6},
}

func evmRaw(id string, from, to string, value *big.Int, logs ...types.Log) *entities.RawTransaction {
	block := int64(100)
	return &entities.RawTransaction{
		Chain:       entities.ChainEthereum,
		ID:          id,
		SequenceRef: &block,
		EVM: &entities.EVMTransaction{
			Hash:     id,
			From:     from,
			To:       to,
			Value:    value,
			GasUsed:  21000,
			GasPrice: big.NewInt(1000000000),
			Success:  true,
			Logs:     logs,
		},
	}
}

func erc20Log(token, from, to string, value int64) types.Log {
	return types.Log{
		Address: common.HexToAddress(token),
		Topics: []common.Hash{
			ethereum.TransferEventSignature,
			common.BytesToHash(common.HexToAddress(from).Bytes()),
			common.BytesToHash(common.HexToAddress(to).Bytes()),
		},
		Data: common.LeftPadBytes(big.NewInt(value).Bytes(), 32),
	}
}

func TestEVMAdapter_Scenario(t *testing.T) {
	a := NewEVMAdapter(testTokens, DefaultDustThreshold, zap.NewNop())
	ctx := context.Background()

	t.Run("native dust is dropped", func(t *testing.T) {
		events, err := a.Decode(ctx, evmRaw("0xa", evmOther, evmWallet, big.NewInt(100)), evmWallet)
		require.NoError(t, err)
		assert.Empty(t, events)
	})

	t.Run("native receive", func(t *testing.T) {
		oneEth, _ := new(big.Int).SetString("1000000000000000000", 10)
		events, err := a.Decode(ctx, evmRaw("0xb", evmOther, evmWallet, oneEth), evmWallet)
		require.NoError(t, err)
		require.Len(t, events, 1)
		assert.Equal(t, "1.0", events[0].Amount)
		assert.Equal(t, entities.DirectionReceive, events[0].Direction)
		assert.Equal(t, entities.NativeAssetID, events[0].AssetID)
		assert.Equal(t, "ETH", events[0].AssetSymbol)
		assert.Equal(t, "0.000021", events[0].Fee)
		assert.Equal(t, evmOther, events[0].CounterpartyFrom)
	})

	t.Run("token send", func(t *testing.T) {
		raw := evmRaw("0xc", evmWallet, evmUSDC, big.NewInt(0), erc20Log(evmUSDC, evmWallet, evmOther, 5000000))
		events, err := a.Decode(ctx, raw, evmWallet)
		require.NoError(t, err)
		require.Len(t, events, 1)
		assert.Equal(t, "-5.0", events[0].Amount)
		assert.Equal(t, evmUSDC, events[0].AssetID)
		assert.Equal(t, entities.DirectionSend, events[0].Direction)
		assert.Equal(t, "USDC", events[0].AssetSymbol)
		assert.Equal(t, int32(6), events[0].AssetDecimals)
	})
}

func TestEVMAdapter_EdgeCases(t *testing.T) {
	a := NewEVMAdapter(testTokens, DefaultDustThreshold, zap.NewNop())
	ctx := context.Background()

	t.Run("reverted transaction yields nothing", func(t *testing.T) {
		raw := evmRaw("0xd", evmWallet, evmOther, big.NewInt(1e18))
		raw.EVM.Success = false
		events, err := a.Decode(ctx, raw, evmWallet)
		require.NoError(t, err)
		assert.Empty(t, events)
	})

	t.Run("unrelated logs are ignored", func(t *testing.T) {
		raw := evmRaw("0xe", evmOther, evmUSDC, big.NewInt(0), erc20Log(evmUSDC, evmOther, "0x3333333333333333333333333333333333333333", 10))
		events, err := a.Decode(ctx, raw, evmWallet)
		require.NoError(t, err)
		assert.Empty(t, events)
	})

	t.Run("mixed case wallet matches", func(t *testing.T) {
		raw := evmRaw("0xf", evmOther, evmUSDC, big.NewInt(0), erc20Log(evmUSDC, evmOther, evmWallet, 2500000))
		events, err := a.Decode(ctx, raw, "0x"+strings.ToUpper(evmWallet[2:]))
		require.NoError(t, err)
		require.Len(t, events, 1)
		assert.Equal(t, "2.5", events[0].Amount)
		assert.Equal(t, evmWallet, events[0].Wallet)
	})

	t.Run("self transfer nets to nothing after coalescing", func(t *testing.T) {
		raw := evmRaw("0x10", evmWallet, evmWallet, big.NewInt(1e18))
		events, err := a.Decode(ctx, raw, evmWallet)
		require.NoError(t, err)
		assert.Len(t, events, 2)
		assert.Empty(t, Coalesce(events, DefaultDustThreshold))
	})

	t.Run("token with unresolved decimals is dropped", func(t *testing.T) {
		unknown := "0x4444444444444444444444444444444444444444"
		raw := evmRaw("0x11", evmOther, unknown, big.NewInt(0),
			erc20Log(unknown, evmOther, evmWallet, 5000000),
			erc20Log(evmUSDC, evmOther, evmWallet, 1000000),
		)
		events, err := a.Decode(ctx, raw, evmWallet)
		require.NoError(t, err)
		require.Len(t, events, 1)
		assert.Equal(t, evmUSDC, events[0].AssetID)
		assert.Equal(t, "1.0", events[0].Amount)
	})

	t.Run("missing body", func(t *testing.T) {
		_, err := a.Decode(ctx, &entities.RawTransaction{Chain: entities.ChainBase, ID: "0x1"}, evmWallet)
		assert.ErrorIs(t, err, entities.ErrDecodeAmbiguous)
	})
}

func solanaRaw(tx *entities.SolanaTransaction) *entities.RawTransaction {
	slot := tx.Slot
	return &entities.RawTransaction{
		Chain:       entities.ChainSolana,
		ID:          tx.Signature,
		SequenceRef: &slot,
		Solana:      tx,
	}
}

func int32p(v int32) *int32 { return &v }

func TestSolanaAdapter_Decode(t *testing.T) {
	a := NewSolanaAdapter(testTokens, DefaultDustThreshold, zap.NewNop())
	ctx := context.Background()

	tx := &entities.SolanaTransaction{
		Signature:    signatureA,
		Slot:         10,
		Fee:          5000,
		AccountKeys:  []string{solWallet, solATA, solOther},
		PreBalances:  []int64{2000000000, 0, 0},
		PostBalances: []int64{1499995000, 0, 0},
		PreTokenBalances: []entities.SolanaTokenBalance{
			{AccountIndex: 1, Mint: solUSDC, Owner: solWallet, Amount: "5000000", Decimals: 6},
		},
		PostTokenBalances: []entities.SolanaTokenBalance{
			{AccountIndex: 1, Mint: solUSDC, Owner: solWallet, Amount: "3000000", Decimals: 6},
		},
		Transfers: []entities.SolanaTransferInstruction{
			// Already covered by the balance diff
			{Type: "transferChecked", Source: solATA, SourceOwner: solWallet, Authority: solWallet, Destination: "x", Mint: solUSDC, Amount: "2000000", Decimals: int32p(6)},
			// Only visible through instructions
			{Type: "transferChecked", Source: "y", SourceOwner: solOther, Destination: "z", DestinationOwner: solWallet, Mint: solBonk, Amount: "700000", Decimals: int32p(5)},
			{Type: "transferChecked", Source: "y", SourceOwner: solOther, Destination: "z", DestinationOwner: solWallet, Mint: solBonk, Amount: "300000", Decimals: int32p(5)},
			// No mint: ambiguous
			{Type: "transfer", Source: "q", Destination: "r", DestinationOwner: solWallet, Amount: "1"},
		},
	}

	events, err := a.Decode(ctx, solanaRaw(tx), solWallet)
	require.NoError(t, err)
	require.Len(t, events, 3)

	native := events[0]
	assert.Equal(t, entities.NativeAssetID, native.AssetID)
	assert.Equal(t, "-0.500005", native.Amount)
	assert.Equal(t, entities.DirectionSend, native.Direction)
	assert.Equal(t, "0.000005", native.Fee)
	assert.Equal(t, solWallet, native.CounterpartyFrom)
	assert.Equal(t, solATA, native.CounterpartyTo)

	byAsset := map[string]entities.TransferEvent{}
	for _, e := range events {
		byAsset[e.AssetID] = e
	}

	usdc := byAsset[solUSDC]
	assert.Equal(t, "-2.0", usdc.Amount, "balance diff wins over the matching instruction")
	assert.Equal(t, "USDC", usdc.AssetSymbol)

	bonk := byAsset[solBonk]
	assert.Equal(t, "10.0", bonk.Amount, "instruction-only transfers of one mint are netted")
	assert.Equal(t, int32(5), bonk.AssetDecimals)
	assert.Equal(t, entities.DirectionReceive, bonk.Direction)
	assert.Equal(t, solOther, bonk.CounterpartyFrom)
	assert.Equal(t, solWallet, bonk.CounterpartyTo)
}

func TestSolanaAdapter_FailedAndForeign(t *testing.T) {
	a := NewSolanaAdapter(testTokens, DefaultDustThreshold, zap.NewNop())
	ctx := context.Background()

	t.Run("failed transaction keeps its fee delta", func(t *testing.T) {
		tx := &entities.SolanaTransaction{
			Signature:    "sigFailed",
			Failed:       true,
			Fee:          5000,
			AccountKeys:  []string{solWallet},
			PreBalances:  []int64{1000000000},
			PostBalances: []int64{999995000},
		}
		events, err := a.Decode(ctx, solanaRaw(tx), solWallet)
		require.NoError(t, err)
		require.Len(t, events, 1)
		assert.Equal(t, entities.StatusFailed, events[0].Status)
		assert.Equal(t, "-0.000005", events[0].Amount)
	})

	t.Run("wallet outside account keys", func(t *testing.T) {
		tx := &entities.SolanaTransaction{
			Signature:    "sigOther",
			AccountKeys:  []string{solOther},
			PreBalances:  []int64{1000000000},
			PostBalances: []int64{0},
		}
		events, err := a.Decode(ctx, solanaRaw(tx), solWallet)
		require.NoError(t, err)
		assert.Empty(t, events)
	})

	t.Run("instruction without decimals for an unresolved mint", func(t *testing.T) {
		tx := &entities.SolanaTransaction{
			Signature:    "sigNoDecimals",
			AccountKeys:  []string{solWallet},
			PreBalances:  []int64{1},
			PostBalances: []int64{1},
			Transfers: []entities.SolanaTransferInstruction{
				{Type: "transfer", Source: "y", SourceOwner: solOther, Destination: "z", DestinationOwner: solWallet, Mint: solBonk, Amount: "700000"},
				{Type: "transfer", Source: "y", SourceOwner: solOther, Destination: "z", DestinationOwner: solWallet, Mint: solUSDC, Amount: "700000"},
			},
		}
		events, err := a.Decode(ctx, solanaRaw(tx), solWallet)
		require.NoError(t, err)
		require.Len(t, events, 1)
		assert.Equal(t, solUSDC, events[0].AssetID)
		assert.Equal(t, "0.7", events[0].Amount)
	})

	t.Run("token dust", func(t *testing.T) {
		tx := &entities.SolanaTransaction{
			Signature:         "sigDust",
			AccountKeys:       []string{solWallet, solATA},
			PreBalances:       []int64{1, 0},
			PostBalances:      []int64{1, 0},
			PreTokenBalances:  []entities.SolanaTokenBalance{{AccountIndex: 1, Mint: solUSDC, Owner: solWallet, Amount: "0", Decimals: 9}},
			PostTokenBalances: []entities.SolanaTokenBalance{{AccountIndex: 1, Mint: solUSDC, Owner: solWallet, Amount: "100", Decimals: 9}},
		}
		events, err := a.Decode(ctx, solanaRaw(tx), solWallet)
		require.NoError(t, err)
		assert.Empty(t, events)
	})
}

func TestRegistry(t *testing.T) {
	r := NewRegistry(NewEVMAdapter(testTokens, DefaultDustThreshold, zap.NewNop()))

	a, err := r.For(entities.ChainBase)
	require.NoError(t, err)
	assert.Equal(t, entities.FamilyEVM, a.Family())

	_, err = r.For(entities.ChainSolana)
	assert.ErrorIs(t, err, entities.ErrUnsupportedChain)
}

func TestParseDustThreshold(t *testing.T) {
	d, err := ParseDustThreshold("")
	require.NoError(t, err)
	assert.True(t, d.Equal(DefaultDustThreshold))

	d, err = ParseDustThreshold("-0.01")
	require.NoError(t, err)
	assert.Equal(t, "0.01", d.String())

	_, err = ParseDustThreshold("abc")
	assert.Error(t, err)
}

func TestDustProperty(t *testing.T) {
	properties := gopter.NewProperties(nil)

	properties.Property("deltas below the threshold never produce events", prop.ForAll(
		func(units int64) bool {
			// units of 1e-7 stay below 1e-6 while |units| < 10
			raw := evmRaw("0xdust", evmOther, evmWallet, big.NewInt(units*100000000000))
			events, err := NewEVMAdapter(testTokens, DefaultDustThreshold, zap.NewNop()).Decode(context.Background(), raw, evmWallet)
			return err == nil && len(events) == 0
		},
		gen.Int64Range(1, 9),
	))

	properties.Property("coalesced events have unique keys and conserve the net amount", prop.ForAll(
		func(amounts []int64) bool {
			events := make([]entities.TransferEvent, 0, len(amounts))
			net := decimal.Zero
			for i, amt := range amounts {
				d := decimal.New(amt, 0)
				net = net.Add(d)
				events = append(events, entities.TransferEvent{
					TransactionID: "tx",
					AssetID:       []string{"native", "token"}[i%2],
					Amount:        entities.FormatAmount(d),
				})
			}

			merged := Coalesce(events, DefaultDustThreshold)
			seen := map[entities.EventKey]bool{}
			total := decimal.Zero
			for _, e := range merged {
				if seen[e.Key()] {
					return false
				}
				seen[e.Key()] = true
				d, err := entities.ParseAmount(e.Amount)
				if err != nil || DirectionOf(d) != e.Direction {
					return false
				}
				total = total.Add(d)
			}
			return total.Equal(net)
		},
		gen.SliceOf(gen.Int64Range(-1000, 1000)),
	))

	properties.TestingRun(t)
}
