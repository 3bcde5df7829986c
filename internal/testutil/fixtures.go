package testutil

import (
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"github.com/bimakw/wallet-indexer/internal/domain/entities"
	"github.com/bimakw/wallet-indexer/internal/infrastructure/ethereum"
)

// Common test addresses
const (
	USDTAddress  = "0xdac17f958d2ee523a2206206994597c13d831ec7"
	USDCAddress  = "0xa0b86991c6218b36c1d19d4a2e9eb0ce3606eb48"
	AliceAddress = "0x1111111111111111111111111111111111111111"
	BobAddress   = "0x2222222222222222222222222222222222222222"
	CharlieAddr  = "0x3333333333333333333333333333333333333333"

	SolanaWallet = "7xKXtg2CW87d97TXJSDpbD5jBkheTqA83TZRuJosgAsU"
	SolanaUSDC   = "EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v"
)

// BaseTime is the observed time of the first generated transaction
var BaseTime = time.Date(2024, 1, 15, 10, 30, 0, 0, time.UTC)

// OneEther is 10^18 wei
var OneEther = new(big.Int).Exp(big.NewInt(10), big.NewInt(18), nil)

// CreateTestEvent creates a test transfer event with default values
func CreateTestEvent(opts ...EventOption) entities.TransferEvent {
	observed := BaseTime
	block := int64(12345678)
	e := entities.TransferEvent{
		Wallet:           AliceAddress,
		Chain:            entities.ChainEthereum,
		TransactionID:    generateTxHash(0),
		SequenceRef:      &block,
		ObservedAt:       &observed,
		Direction:        entities.DirectionReceive,
		AssetID:          entities.NativeAssetID,
		AssetSymbol:      "ETH",
		AssetName:        "Ethereum",
		AssetDecimals:    18,
		CounterpartyFrom: BobAddress,
		CounterpartyTo:   AliceAddress,
		Amount:           "1.0",
		Fee:              "0.000021",
		Status:           entities.StatusSuccess,
	}

	for _, opt := range opts {
		opt(&e)
	}

	return e
}

type EventOption func(*entities.TransferEvent)

func WithTxID(id string) EventOption {
	return func(e *entities.TransferEvent) {
		e.TransactionID = id
	}
}

func WithWallet(wallet string, chain entities.Chain) EventOption {
	return func(e *entities.TransferEvent) {
		e.Wallet = wallet
		e.Chain = chain
	}
}

func WithAsset(assetID, symbol, name string) EventOption {
	return func(e *entities.TransferEvent) {
		e.AssetID = assetID
		e.AssetSymbol = symbol
		e.AssetName = name
	}
}

// WithAmount sets the signed amount and the matching direction
func WithAmount(amount string) EventOption {
	return func(e *entities.TransferEvent) {
		e.Amount = amount
		e.Direction = entities.DirectionReceive
		if len(amount) > 0 && amount[0] == '-' {
			e.Direction = entities.DirectionSend
		}
	}
}

func WithObservedAt(ts time.Time) EventOption {
	return func(e *entities.TransferEvent) {
		e.ObservedAt = &ts
	}
}

func WithStatus(status entities.Status) EventOption {
	return func(e *entities.TransferEvent) {
		e.Status = status
	}
}

// EVMTransfer builds a successful EVM transaction moving value wei from -> to.
// index orders generated transactions: a higher index is newer.
func EVMTransfer(index int, from, to string, value *big.Int, logs ...types.Log) *entities.RawTransaction {
	block := int64(12345678 + index)
	observed := BaseTime.Add(time.Duration(index) * time.Minute)
	hash := generateTxHash(index)
	if value == nil {
		value = big.NewInt(0)
	}
	return &entities.RawTransaction{
		Chain:       entities.ChainEthereum,
		ID:          hash,
		SequenceRef: &block,
		ObservedAt:  &observed,
		EVM: &entities.EVMTransaction{
			Hash:     hash,
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

// ERC20Log builds an ERC-20 Transfer log
func ERC20Log(token, from, to string, value *big.Int) types.Log {
	return types.Log{
		Address: common.HexToAddress(token),
		Topics: []common.Hash{
			ethereum.TransferEventSignature,
			common.BytesToHash(common.HexToAddress(from).Bytes()),
			common.BytesToHash(common.HexToAddress(to).Bytes()),
		},
		Data: common.LeftPadBytes(value.Bytes(), 32),
	}
}

// CreateMultipleEVMTransfers creates count transfers to wallet, newest first
func CreateMultipleEVMTransfers(count int, wallet string) []*entities.RawTransaction {
	txs := make([]*entities.RawTransaction, count)
	for i := 0; i < count; i++ {
		idx := count - 1 - i
		txs[i] = EVMTransfer(idx, BobAddress, wallet, new(big.Int).Mul(big.NewInt(int64(idx+1)), OneEther))
	}
	return txs
}

func generateTxHash(index int) string {
	// Generate a unique tx hash based on index
	hash := "0x"
	for i := 0; i < 56; i++ {
		hash += string(rune('a' + (index+i)%6))
	}
	return hash + fmtIndex(index)
}

func fmtIndex(index int) string {
	const digits = "0123456789abcdef"
	out := make([]byte, 8)
	for i := 7; i >= 0; i-- {
		out[i] = digits[index&0xf]
		index >>= 4
	}
	return string(out)
}

// TxHash returns the hash EVMTransfer uses for index
func TxHash(index int) string {
	return generateTxHash(index)
}

// PointerTo returns a pointer to the given value
func PointerTo[T any](v T) *T {
	return &v
}
