package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/bimakw/wallet-indexer/internal/domain/entities"
	"github.com/bimakw/wallet-indexer/internal/domain/repositories"
)

// Ensure SyncStateRepo implements SyncStateRepository
var _ repositories.SyncStateRepository = (*SyncStateRepo)(nil)

// SyncStateRepo implements SyncStateRepository using PostgreSQL
type SyncStateRepo struct {
	db *sqlx.DB
}

// NewSyncStateRepo creates a new sync state repository
func NewSyncStateRepo(db *sqlx.DB) *SyncStateRepo {
	return &SyncStateRepo{db: db}
}

// Get retrieves the sync state for a wallet and chain
func (r *SyncStateRepo) Get(ctx context.Context, wallet string, chain entities.Chain) (*entities.SyncState, error) {
	var state entities.SyncState
	query := `
		SELECT wallet, chain, newest_transaction_id, last_run_id, last_event_count, last_error, last_synced_at
		FROM sync_state
		WHERE wallet = $1 AND chain = $2
	`

	if err := r.db.GetContext(ctx, &state, query, wallet, string(chain)); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get sync state: %w", err)
	}

	return &state, nil
}

// Upsert creates or updates the sync state. A nil NewestTransactionID keeps the stored one.
func (r *SyncStateRepo) Upsert(ctx context.Context, state *entities.SyncState) error {
	query := `
		INSERT INTO sync_state (wallet, chain, newest_transaction_id, last_run_id, last_event_count, last_error, last_synced_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (wallet, chain) DO UPDATE SET
			newest_transaction_id = COALESCE(EXCLUDED.newest_transaction_id, sync_state.newest_transaction_id),
			last_run_id = EXCLUDED.last_run_id,
			last_event_count = EXCLUDED.last_event_count,
			last_error = EXCLUDED.last_error,
			last_synced_at = EXCLUDED.last_synced_at
	`

	_, err := r.db.ExecContext(ctx, query,
		state.Wallet,
		string(state.Chain),
		state.NewestTransactionID,
		state.LastRunID,
		state.LastEventCount,
		state.LastError,
		state.LastSyncedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert sync state: %w", err)
	}

	return nil
}

// Delete removes the sync state of a wallet, on one chain when chain is set
func (r *SyncStateRepo) Delete(ctx context.Context, wallet string, chain *entities.Chain) error {
	query := `DELETE FROM sync_state WHERE wallet = $1`
	args := []interface{}{wallet}
	if chain != nil {
		query += ` AND chain = $2`
		args = append(args, string(*chain))
	}

	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("failed to delete sync state: %w", err)
	}
	return nil
}
