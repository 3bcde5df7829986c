package adapters

import (
	"context"
	"fmt"
	"math/big"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/bimakw/wallet-indexer/internal/domain/entities"
)

// SolanaAdapter decodes Solana transactions in one pass. Token deltas come from the
// wallet-owned token balance diff; transfer instructions only add mints the diff missed.
type SolanaAdapter struct {
	tokens TokenLookup
	dust   decimal.Decimal
	logger *zap.Logger
}

var _ ChainAdapter = (*SolanaAdapter)(nil)

// NewSolanaAdapter creates the Solana family adapter
func NewSolanaAdapter(tokens TokenLookup, dust decimal.Decimal, logger *zap.Logger) *SolanaAdapter {
	return &SolanaAdapter{
		tokens: tokens,
		dust:   dust,
		logger: logger,
	}
}

// Family implements ChainAdapter
func (a *SolanaAdapter) Family() entities.Family {
	return entities.FamilySolana
}

// mintDelta accumulates one mint's raw delta
type mintDelta struct {
	raw      *big.Int
	decimals *int32
	from     string
	to       string
}

// Decode implements ChainAdapter
func (a *SolanaAdapter) Decode(ctx context.Context, raw *entities.RawTransaction, wallet string) ([]entities.TransferEvent, error) {
	if raw == nil || raw.Solana == nil {
		return nil, fmt.Errorf("%w: missing solana transaction body", entities.ErrDecodeAmbiguous)
	}
	tx := raw.Solana
	native := entities.ChainSolana.Native()

	status := entities.StatusSuccess
	if tx.Failed {
		status = entities.StatusFailed
	}

	var feePayer, firstReceiver string
	if len(tx.AccountKeys) > 0 {
		feePayer = tx.AccountKeys[0]
	}
	if len(tx.AccountKeys) > 1 {
		firstReceiver = tx.AccountKeys[1]
	}

	base := entities.TransferEvent{
		Wallet:           wallet,
		Chain:            raw.Chain,
		TransactionID:    raw.ID,
		SequenceRef:      raw.SequenceRef,
		ObservedAt:       raw.ObservedAt,
		CounterpartyFrom: feePayer,
		CounterpartyTo:   firstReceiver,
		Fee:              entities.FormatAmount(entities.ScaleAmount(new(big.Int).SetUint64(tx.Fee), native.Decimals)),
		Status:           status,
		Raw:              raw.Payload,
	}

	var events []entities.TransferEvent

	// Native lamport delta of the wallet's own account
	if idx := indexOf(tx.AccountKeys, wallet); idx >= 0 && idx < len(tx.PreBalances) && idx < len(tx.PostBalances) {
		lamports := big.NewInt(tx.PostBalances[idx] - tx.PreBalances[idx])
		amount := entities.ScaleAmount(lamports, native.Decimals)
		if !IsDust(amount, a.dust) {
			e := base
			e.AssetID = entities.NativeAssetID
			e.AssetSymbol = native.Symbol
			e.AssetName = native.Name
			e.AssetDecimals = native.Decimals
			e.Amount = entities.FormatAmount(amount)
			e.Direction = DirectionOf(amount)
			events = append(events, e)
		}
	}

	deltas := a.balanceDiff(tx, wallet)
	a.mergeInstructions(raw, tx, wallet, deltas)

	for _, mint := range sortedKeys(deltas) {
		d := deltas[mint]
		meta := a.tokens.ResolveOrPlaceholder(ctx, raw.Chain, mint)

		decimals := meta.Decimals
		if d.decimals != nil {
			decimals = *d.decimals
		} else if meta.IsPlaceholder() {
			a.logger.Debug("Dropping transfer of token with unknown decimals",
				zap.String("tx", raw.ID),
				zap.String("mint", mint),
			)
			continue
		}

		amount := entities.ScaleAmount(d.raw, decimals)
		if IsDust(amount, a.dust) {
			continue
		}

		e := base
		e.AssetID = mint
		e.AssetSymbol = meta.Symbol
		e.AssetName = meta.Name
		e.AssetDecimals = decimals
		if d.from != "" || d.to != "" {
			e.CounterpartyFrom = d.from
			e.CounterpartyTo = d.to
		}
		e.Amount = entities.FormatAmount(amount)
		e.Direction = DirectionOf(amount)
		events = append(events, e)
	}

	return events, nil
}

// balanceDiff returns post minus pre for every mint held in wallet-owned token accounts
func (a *SolanaAdapter) balanceDiff(tx *entities.SolanaTransaction, wallet string) map[string]*mintDelta {
	deltas := make(map[string]*mintDelta)

	apply := func(balances []entities.SolanaTokenBalance, sign int) {
		for _, b := range balances {
			if b.Owner != wallet || b.Mint == "" {
				continue
			}
			amount, ok := new(big.Int).SetString(b.Amount, 10)
			if !ok {
				a.logger.Warn("Unparseable token balance",
					zap.String("tx", tx.Signature),
					zap.String("mint", b.Mint),
					zap.String("amount", b.Amount),
				)
				continue
			}
			d, exists := deltas[b.Mint]
			if !exists {
				dec := b.Decimals
				d = &mintDelta{raw: new(big.Int), decimals: &dec}
				deltas[b.Mint] = d
			}
			if sign < 0 {
				d.raw.Sub(d.raw, amount)
			} else {
				d.raw.Add(d.raw, amount)
			}
		}
	}

	apply(tx.PreTokenBalances, -1)
	apply(tx.PostTokenBalances, 1)

	// Counterparties for diff-derived mints come from the first matching instruction
	for _, t := range tx.Transfers {
		if d, ok := deltas[t.Mint]; ok && d.from == "" && d.to == "" {
			d.from, d.to = instructionParties(t)
		}
	}
	return deltas
}

// mergeInstructions adds instruction-only mints to deltas, netting multiple instructions
// of the same mint. Mints already present from the balance diff are left untouched.
func (a *SolanaAdapter) mergeInstructions(raw *entities.RawTransaction, tx *entities.SolanaTransaction, wallet string, deltas map[string]*mintDelta) {
	fromDiff := make(map[string]bool, len(deltas))
	for mint := range deltas {
		fromDiff[mint] = true
	}

	for _, t := range tx.Transfers {
		receive := t.Destination == wallet || t.DestinationOwner == wallet
		send := t.Source == wallet || t.SourceOwner == wallet || t.Authority == wallet
		if !receive && !send {
			continue
		}
		if receive && send {
			// Moves between the wallet's own accounts leave its balance unchanged
			continue
		}
		if t.Mint == "" {
			a.logger.Debug("Dropping transfer instruction without mint",
				zap.String("chain", raw.Chain.String()),
				zap.String("tx", raw.ID),
				zap.Error(entities.ErrDecodeAmbiguous),
			)
			continue
		}
		if fromDiff[t.Mint] {
			continue
		}

		amount, ok := new(big.Int).SetString(t.Amount, 10)
		if !ok {
			a.logger.Debug("Dropping transfer instruction with unparseable amount",
				zap.String("tx", raw.ID),
				zap.String("amount", t.Amount),
			)
			continue
		}
		if send {
			amount.Neg(amount)
		}

		d, exists := deltas[t.Mint]
		if !exists {
			d = &mintDelta{raw: new(big.Int)}
			d.from, d.to = instructionParties(t)
			deltas[t.Mint] = d
		}
		d.raw.Add(d.raw, amount)
		if d.decimals == nil && t.Decimals != nil {
			dec := *t.Decimals
			d.decimals = &dec
		}
	}
}

func instructionParties(t entities.SolanaTransferInstruction) (from, to string) {
	from = t.SourceOwner
	if from == "" {
		from = t.Authority
	}
	if from == "" {
		from = t.Source
	}
	to = t.DestinationOwner
	if to == "" {
		to = t.Destination
	}
	return from, to
}

func indexOf(keys []string, key string) int {
	for i, k := range keys {
		if k == key {
			return i
		}
	}
	return -1
}
