package entities

import (
	"encoding/json"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/core/types"
)

// RawTransaction is one provider record awaiting decoding.
// Exactly one of EVM or Solana is set, matching Chain.Family().
type RawTransaction struct {
	Chain       Chain
	ID          string
	SequenceRef *int64
	ObservedAt  *time.Time
	EVM         *EVMTransaction
	Solana      *SolanaTransaction
	Payload     json.RawMessage
}

// EVMTransaction carries the fields of an EVM transaction and its receipt
type EVMTransaction struct {
	Hash     string
	From     string
	To       string
	Value    *big.Int
	GasUsed  uint64
	GasPrice *big.Int
	Success  bool
	Logs     []types.Log
}

// SolanaTransaction carries the parsed fields of a Solana transaction
type SolanaTransaction struct {
	Signature         string
	Slot              int64
	BlockTime         *int64
	Failed            bool
	Fee               uint64
	AccountKeys       []string
	PreBalances       []int64
	PostBalances      []int64
	PreTokenBalances  []SolanaTokenBalance
	PostTokenBalances []SolanaTokenBalance
	Transfers         []SolanaTransferInstruction
}

// SolanaTokenBalance is one SPL token account balance before or after a transaction
type SolanaTokenBalance struct {
	AccountIndex int
	Mint         string
	Owner        string
	Amount       string
	Decimals     int32
}

// SolanaTransferInstruction is a parsed SPL transfer or transferChecked instruction,
// top-level or inner. Source and Destination are token accounts; the owners and mint
// are filled from the transaction's token balances when the instruction omits them.
type SolanaTransferInstruction struct {
	Type             string
	Source           string
	Destination      string
	SourceOwner      string
	DestinationOwner string
	Authority        string
	Mint             string
	Amount           string
	Decimals         *int32
}

// TransactionRef is one entry of a provider's transaction listing
type TransactionRef struct {
	ID          string
	SequenceRef *int64
	ObservedAt  *time.Time
	Failed      bool
}

// TransactionPage is one page of a provider's backward-in-time listing
type TransactionPage struct {
	Items      []TransactionRef
	NextBefore string
}

// NativeBalance is a live base-currency balance
type NativeBalance struct {
	Chain    Chain  `json:"chain"`
	Balance  string `json:"balance"`
	Symbol   string `json:"symbol"`
	Name     string `json:"name"`
	Decimals int32  `json:"decimals"`
}
