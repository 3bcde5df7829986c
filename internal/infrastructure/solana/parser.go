package solana

import (
	"encoding/json"
	"fmt"
	"sort"

	"github.com/bimakw/wallet-indexer/internal/domain/entities"
)

var tokenPrograms = map[string]bool{
	"spl-token":      true,
	"spl-token-2022": true,
}

// ParseTransaction converts a getTransaction result into the chain-neutral record
// the Solana adapter decodes
func ParseTransaction(signature string, res *TransactionResult) (*entities.SolanaTransaction, error) {
	if res == nil {
		return nil, fmt.Errorf("transaction %s: %w", signature, entities.ErrNotFound)
	}
	if res.Meta == nil {
		return nil, fmt.Errorf("transaction %s has no meta", signature)
	}

	tx := &entities.SolanaTransaction{
		Signature:    signature,
		Slot:         res.Slot,
		BlockTime:    res.BlockTime,
		Failed:       len(res.Meta.Err) > 0 && string(res.Meta.Err) != "null",
		Fee:          res.Meta.Fee,
		PreBalances:  res.Meta.PreBalances,
		PostBalances: res.Meta.PostBalances,
	}

	tx.AccountKeys = make([]string, len(res.Transaction.Message.AccountKeys))
	for i, k := range res.Transaction.Message.AccountKeys {
		tx.AccountKeys[i] = k.Pubkey
	}

	tx.PreTokenBalances = convertTokenBalances(res.Meta.PreTokenBalances)
	tx.PostTokenBalances = convertTokenBalances(res.Meta.PostTokenBalances)

	accounts := indexTokenAccounts(tx)

	for _, ix := range res.Transaction.Message.Instructions {
		if t, ok := parseTransfer(ix, accounts); ok {
			tx.Transfers = append(tx.Transfers, t)
		}
	}

	inner := append([]innerInstruction(nil), res.Meta.InnerInstructions...)
	sort.SliceStable(inner, func(i, j int) bool { return inner[i].Index < inner[j].Index })
	for _, group := range inner {
		for _, ix := range group.Instructions {
			if t, ok := parseTransfer(ix, accounts); ok {
				tx.Transfers = append(tx.Transfers, t)
			}
		}
	}

	return tx, nil
}

func convertTokenBalances(in []tokenBalance) []entities.SolanaTokenBalance {
	out := make([]entities.SolanaTokenBalance, 0, len(in))
	for _, b := range in {
		out = append(out, entities.SolanaTokenBalance{
			AccountIndex: b.AccountIndex,
			Mint:         b.Mint,
			Owner:        b.Owner,
			Amount:       b.UITokenAmount.Amount,
			Decimals:     b.UITokenAmount.Decimals,
		})
	}
	return out
}

// tokenAccount is what the token balances tell us about one token account
type tokenAccount struct {
	mint     string
	owner    string
	decimals int32
}

// indexTokenAccounts maps token account pubkeys to their mint and owner
func indexTokenAccounts(tx *entities.SolanaTransaction) map[string]tokenAccount {
	accounts := make(map[string]tokenAccount)
	add := func(balances []entities.SolanaTokenBalance) {
		for _, b := range balances {
			if b.AccountIndex < 0 || b.AccountIndex >= len(tx.AccountKeys) {
				continue
			}
			accounts[tx.AccountKeys[b.AccountIndex]] = tokenAccount{mint: b.Mint, owner: b.Owner, decimals: b.Decimals}
		}
	}
	add(tx.PreTokenBalances)
	add(tx.PostTokenBalances)
	return accounts
}

func parseTransfer(ix instruction, accounts map[string]tokenAccount) (entities.SolanaTransferInstruction, bool) {
	if !tokenPrograms[ix.Program] || len(ix.Parsed) == 0 || ix.Parsed[0] != '{' {
		return entities.SolanaTransferInstruction{}, false
	}

	var parsed parsedInstruction
	if err := json.Unmarshal(ix.Parsed, &parsed); err != nil {
		return entities.SolanaTransferInstruction{}, false
	}
	if parsed.Type != "transfer" && parsed.Type != "transferChecked" {
		return entities.SolanaTransferInstruction{}, false
	}

	info := parsed.Info
	t := entities.SolanaTransferInstruction{
		Type:        parsed.Type,
		Source:      info.Source,
		Destination: info.Destination,
		Authority:   info.Authority,
		Mint:        info.Mint,
		Amount:      info.Amount,
	}
	if t.Authority == "" {
		t.Authority = info.MultisigAuthority
	}
	if info.TokenAmount != nil {
		t.Amount = info.TokenAmount.Amount
		d := info.TokenAmount.Decimals
		t.Decimals = &d
	}

	src, srcOK := accounts[info.Source]
	dst, dstOK := accounts[info.Destination]
	if srcOK {
		t.SourceOwner = src.owner
	}
	if dstOK {
		t.DestinationOwner = dst.owner
	}

	// Plain transfer omits the mint; recover it from either side's token balance
	if t.Mint == "" {
		switch {
		case srcOK:
			t.Mint = src.mint
		case dstOK:
			t.Mint = dst.mint
		}
	}
	if t.Decimals == nil {
		switch {
		case srcOK:
			d := src.decimals
			t.Decimals = &d
		case dstOK:
			d := dst.decimals
			t.Decimals = &d
		}
	}

	return t, true
}
