package entities

import (
	"time"
)

// SnapshotSchemaVersion is bumped whenever the stored PortfolioSnapshot shape changes.
// Stored blobs with any other version are treated as cache misses.
const SnapshotSchemaVersion = 1

// PortfolioSnapshot is the cached cross-chain composite for one wallet.
// It is replaced wholesale, never patched.
type PortfolioSnapshot struct {
	SchemaVersion int                      `json:"schema_version"`
	Wallet        string                   `json:"wallet"`
	GeneratedAt   time.Time                `json:"generated_at"`
	Chains        map[Chain]ChainPortfolio `json:"chains"`
	Summary       PortfolioSummary         `json:"summary"`
}

// ChainPortfolio holds the per-chain part of a snapshot
type ChainPortfolio struct {
	Chain                   Chain                 `json:"chain"`
	NativeBalance           NativeBalance         `json:"native_balance"`
	Tokens                  []TokenHolding        `json:"tokens"`
	TotalTransactions       int                   `json:"total_transactions"`
	ReceivedTransactions    int                   `json:"received_transactions"`
	SentTransactions        int                   `json:"sent_transactions"`
	FirstTransaction        *TransactionHighlight `json:"first_transaction,omitempty"`
	LastTransaction         *TransactionHighlight `json:"last_transaction,omitempty"`
	HighestValueTransaction *TransactionHighlight `json:"highest_value_transaction,omitempty"`
}

// TokenHolding is a derived token balance on one chain
type TokenHolding struct {
	Chain    Chain  `json:"chain"`
	AssetID  string `json:"asset_id"`
	Symbol   string `json:"symbol"`
	Name     string `json:"name"`
	Balance  string `json:"balance"`
	Received string `json:"total_received"`
	Sent     string `json:"total_sent"`
	TxCount  int64  `json:"transaction_count"`
}

// TransactionHighlight points at one notable stored event
type TransactionHighlight struct {
	TransactionID string     `json:"transaction_id"`
	Chain         Chain      `json:"chain"`
	Direction     Direction  `json:"direction"`
	Amount        string     `json:"amount"`
	Symbol        string     `json:"symbol"`
	ObservedAt    *time.Time `json:"observed_at,omitempty"`
}

// PortfolioSummary folds all chains of a snapshot together
type PortfolioSummary struct {
	TotalChains       int                   `json:"total_chains"`
	TotalTransactions int                   `json:"total_transactions"`
	ReceivedCount     int                   `json:"received_count"`
	SentCount         int                   `json:"sent_count"`
	TotalReceived     map[string]string     `json:"total_received"`
	TotalSent         map[string]string     `json:"total_sent"`
	HighestValue      *TransactionHighlight `json:"highest_value,omitempty"`
	MostRecent        *TransactionHighlight `json:"most_recent,omitempty"`
	TokenHoldings     []TokenHolding        `json:"token_holdings"`
}
