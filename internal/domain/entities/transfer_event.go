package entities

import (
	"encoding/json"
	"time"
)

// Direction describes how a transfer affected the wallet
type Direction string

const (
	DirectionReceive Direction = "receive"
	DirectionSend    Direction = "send"
	DirectionUnknown Direction = "unknown"
)

// Status is the on-chain execution result of the source transaction
type Status string

const (
	StatusSuccess Status = "success"
	StatusFailed  Status = "failed"
)

// TransferEvent is one balance-changing effect of a transaction for one wallet and asset.
// (Wallet, Chain, TransactionID, AssetID) is unique.
type TransferEvent struct {
	ID               int64           `db:"id" json:"-"`
	Wallet           string          `db:"wallet" json:"wallet"`
	Chain            Chain           `db:"chain" json:"chain"`
	TransactionID    string          `db:"transaction_id" json:"transaction_id"`
	SequenceRef      *int64          `db:"sequence_ref" json:"sequence_ref,omitempty"`
	ObservedAt       *time.Time      `db:"observed_at" json:"observed_at,omitempty"`
	Direction        Direction       `db:"direction" json:"direction"`
	AssetID          string          `db:"asset_id" json:"asset_id"`
	AssetSymbol      string          `db:"asset_symbol" json:"asset_symbol"`
	AssetName        string          `db:"asset_name" json:"asset_name"`
	AssetDecimals    int32           `db:"asset_decimals" json:"asset_decimals"`
	CounterpartyFrom string          `db:"counterparty_from" json:"from"`
	CounterpartyTo   string          `db:"counterparty_to" json:"to"`
	Amount           string          `db:"amount" json:"amount"`
	Fee              string          `db:"fee" json:"fee"`
	Status           Status          `db:"status" json:"status"`
	Raw              json.RawMessage `db:"raw" json:"-"`
	CreatedAt        time.Time       `db:"created_at" json:"-"`
	UpdatedAt        time.Time       `db:"updated_at" json:"-"`
}

// EventKey is the natural key of a TransferEvent within one wallet and chain
type EventKey struct {
	TransactionID string
	AssetID       string
}

// Key returns the event's natural key
func (e *TransferEvent) Key() EventKey {
	return EventKey{TransactionID: e.TransactionID, AssetID: e.AssetID}
}

// IsNative reports whether the event moves the chain's base currency
func (e *TransferEvent) IsNative() bool {
	return e.AssetID == NativeAssetID
}

// EventQuery narrows QueryEvents results
type EventQuery struct {
	AssetID    string
	Symbol     string
	SearchText string
	Limit      int
}
