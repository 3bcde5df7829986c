package repositories

import (
	"context"
	"time"

	"github.com/bimakw/wallet-indexer/internal/domain/entities"
)

// EventStats holds direction counts for a wallet's stored events on one chain
type EventStats struct {
	TotalEvents     int64
	Transactions    int64
	Received        int64
	Sent            int64
	Unknown         int64
	Failed          int64
	FirstTransferAt *time.Time
	LastTransferAt  *time.Time
}

// EventRepository is the idempotent store of normalized transfer events
type EventRepository interface {
	// UpsertEvent inserts or overwrites by (wallet, chain, transaction id, asset id)
	UpsertEvent(ctx context.Context, event *entities.TransferEvent) error

	// UpsertEvents upserts several events in a single transaction
	UpsertEvents(ctx context.Context, events []entities.TransferEvent) error

	// QueryEvents returns events newest-first by observed_at
	QueryEvents(ctx context.Context, wallet string, chain entities.Chain, query entities.EventQuery) ([]entities.TransferEvent, error)

	// HasEvents reports whether any event is stored for the wallet and chain
	HasEvents(ctx context.Context, wallet string, chain entities.Chain) (bool, error)

	// GetByTransaction returns all stored events of one transaction
	GetByTransaction(ctx context.Context, chain entities.Chain, transactionID string) ([]entities.TransferEvent, error)

	// GetStats returns direction counts over the stored events
	GetStats(ctx context.Context, wallet string, chain entities.Chain) (*EventStats, error)

	// Clear deletes events and dependent summaries for a wallet, on one chain when chain is set
	Clear(ctx context.Context, wallet string, chain *entities.Chain) (int64, error)
}
