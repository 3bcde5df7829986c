package entities

import (
	"time"
)

// TokenMetadata is display metadata for a token on one chain
type TokenMetadata struct {
	Chain     Chain     `db:"chain" json:"chain"`
	Address   string    `db:"address" json:"address"`
	Symbol    string    `db:"symbol" json:"symbol"`
	Name      string    `db:"name" json:"name"`
	Decimals  int32     `db:"decimals" json:"decimals"`
	Source    string    `db:"source" json:"source"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// TokenSourcePlaceholder marks metadata derived from the asset id alone
const TokenSourcePlaceholder = "placeholder"

// IsPlaceholder reports whether nothing resolved the token, so its decimals are a guess
func (m *TokenMetadata) IsPlaceholder() bool {
	return m.Source == TokenSourcePlaceholder
}

// TokenSummary aggregates all events of one asset for a wallet on a chain.
// Always recomputed from events, never patched.
type TokenSummary struct {
	Wallet             string     `db:"wallet" json:"wallet"`
	Chain              Chain      `db:"chain" json:"chain"`
	AssetID            string     `db:"asset_id" json:"asset_id"`
	AssetSymbol        string     `db:"asset_symbol" json:"asset_symbol"`
	AssetName          string     `db:"asset_name" json:"asset_name"`
	TotalReceived      string     `db:"total_received" json:"total_received"`
	TotalSent          string     `db:"total_sent" json:"total_sent"`
	CurrentBalance     string     `db:"current_balance" json:"current_balance"`
	TransactionCount   int64      `db:"transaction_count" json:"transaction_count"`
	FirstTransactionAt *time.Time `db:"first_transaction_at" json:"first_transaction_at,omitempty"`
	LastTransactionAt  *time.Time `db:"last_transaction_at" json:"last_transaction_at,omitempty"`
	UpdatedAt          time.Time  `db:"updated_at" json:"updated_at"`
}
