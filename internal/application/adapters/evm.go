package adapters

import (
	"context"
	"fmt"
	"math/big"
	"strings"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/bimakw/wallet-indexer/internal/domain/entities"
	"github.com/bimakw/wallet-indexer/internal/infrastructure/ethereum"
)

// EVMAdapter decodes account-model transactions: the native value transfer plus
// every ERC-20 Transfer log that names the wallet
type EVMAdapter struct {
	tokens TokenLookup
	dust   decimal.Decimal
	logger *zap.Logger
}

var _ ChainAdapter = (*EVMAdapter)(nil)

// NewEVMAdapter creates the EVM family adapter
func NewEVMAdapter(tokens TokenLookup, dust decimal.Decimal, logger *zap.Logger) *EVMAdapter {
	return &EVMAdapter{
		tokens: tokens,
		dust:   dust,
		logger: logger,
	}
}

// Family implements ChainAdapter
func (a *EVMAdapter) Family() entities.Family {
	return entities.FamilyEVM
}

// Decode implements ChainAdapter.
// A sender and receiver that are both the wallet yield one event per side;
// callers coalesce them by key before storing.
func (a *EVMAdapter) Decode(ctx context.Context, raw *entities.RawTransaction, wallet string) ([]entities.TransferEvent, error) {
	if raw == nil || raw.EVM == nil {
		return nil, fmt.Errorf("%w: missing evm transaction body", entities.ErrDecodeAmbiguous)
	}
	tx := raw.EVM
	wallet = strings.ToLower(wallet)

	// Reverted transactions move neither value nor tokens
	if !tx.Success {
		return nil, nil
	}

	native := raw.Chain.Native()
	fee := decimal.Zero
	if tx.GasPrice != nil {
		feeWei := new(big.Int).Mul(new(big.Int).SetUint64(tx.GasUsed), tx.GasPrice)
		fee = entities.ScaleAmount(feeWei, native.Decimals)
	}

	base := entities.TransferEvent{
		Wallet:        wallet,
		Chain:         raw.Chain,
		TransactionID: raw.ID,
		SequenceRef:   raw.SequenceRef,
		ObservedAt:    raw.ObservedAt,
		Fee:           entities.FormatAmount(fee),
		Status:        entities.StatusSuccess,
		Raw:           raw.Payload,
	}

	var events []entities.TransferEvent
	emit := func(assetID, symbol, name string, decimals int32, from, to string, amount decimal.Decimal) {
		if IsDust(amount, a.dust) {
			return
		}
		e := base
		e.AssetID = assetID
		e.AssetSymbol = symbol
		e.AssetName = name
		e.AssetDecimals = decimals
		e.CounterpartyFrom = from
		e.CounterpartyTo = to
		e.Amount = entities.FormatAmount(amount)
		e.Direction = DirectionOf(amount)
		events = append(events, e)
	}

	from := strings.ToLower(tx.From)
	to := strings.ToLower(tx.To)

	if tx.Value != nil && tx.Value.Sign() > 0 {
		value := entities.ScaleAmount(tx.Value, native.Decimals)
		if to == wallet {
			emit(entities.NativeAssetID, native.Symbol, native.Name, native.Decimals, from, to, value)
		}
		if from == wallet {
			emit(entities.NativeAssetID, native.Symbol, native.Name, native.Decimals, from, to, value.Neg())
		}
	}

	transfers, failed := ethereum.ParseTransferLogs(tx.Logs)
	if len(failed) > 0 {
		a.logger.Debug("Skipped undecodable Transfer logs",
			zap.String("chain", raw.Chain.String()),
			zap.String("tx", raw.ID),
			zap.Ints("log_indices", failed),
		)
	}

	for _, t := range transfers {
		if t.To != wallet && t.From != wallet {
			continue
		}

		meta := a.tokens.ResolveOrPlaceholder(ctx, raw.Chain, t.Token)
		if meta.IsPlaceholder() {
			// Scaling with guessed decimals would store a wrong amount
			a.logger.Debug("Dropping transfer of token with unknown decimals",
				zap.String("chain", raw.Chain.String()),
				zap.String("tx", raw.ID),
				zap.String("token", t.Token),
			)
			continue
		}
		amount := entities.ScaleAmount(t.Value, meta.Decimals)

		if t.To == wallet {
			emit(t.Token, meta.Symbol, meta.Name, meta.Decimals, t.From, t.To, amount)
		}
		if t.From == wallet {
			emit(t.Token, meta.Symbol, meta.Name, meta.Decimals, t.From, t.To, amount.Neg())
		}
	}

	return events, nil
}
