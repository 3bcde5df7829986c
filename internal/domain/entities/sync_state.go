package entities

import (
	"time"
)

// SyncState tracks ingestion progress for one wallet on one chain
type SyncState struct {
	Wallet              string    `db:"wallet"`
	Chain               Chain     `db:"chain"`
	NewestTransactionID *string   `db:"newest_transaction_id"`
	LastRunID           string    `db:"last_run_id"`
	LastEventCount      int       `db:"last_event_count"`
	LastError           *string   `db:"last_error"`
	LastSyncedAt        time.Time `db:"last_synced_at"`
}
