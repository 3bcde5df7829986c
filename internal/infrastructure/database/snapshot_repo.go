package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/bimakw/wallet-indexer/internal/domain/entities"
	"github.com/bimakw/wallet-indexer/internal/domain/repositories"
)

// Ensure SnapshotRepo implements SnapshotRepository
var _ repositories.SnapshotRepository = (*SnapshotRepo)(nil)

// SnapshotRepo stores portfolio snapshots as versioned JSONB blobs
type SnapshotRepo struct {
	db *sqlx.DB
}

// NewSnapshotRepo creates a new snapshot repository
func NewSnapshotRepo(db *sqlx.DB) *SnapshotRepo {
	return &SnapshotRepo{db: db}
}

// Get returns the stored snapshot, or nil when absent or written under another schema version
func (r *SnapshotRepo) Get(ctx context.Context, wallet string) (*entities.PortfolioSnapshot, error) {
	var row struct {
		SchemaVersion int    `db:"schema_version"`
		Data          []byte `db:"data"`
	}
	query := `SELECT schema_version, data FROM portfolio_snapshots WHERE wallet = $1`

	if err := r.db.GetContext(ctx, &row, query, wallet); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get portfolio snapshot: %w", err)
	}

	if row.SchemaVersion != entities.SnapshotSchemaVersion {
		return nil, nil
	}

	var snapshot entities.PortfolioSnapshot
	if err := json.Unmarshal(row.Data, &snapshot); err != nil {
		return nil, fmt.Errorf("failed to unmarshal portfolio snapshot: %w", err)
	}
	return &snapshot, nil
}

// Put replaces the wallet's snapshot wholesale
func (r *SnapshotRepo) Put(ctx context.Context, snapshot *entities.PortfolioSnapshot) error {
	data, err := json.Marshal(snapshot)
	if err != nil {
		return fmt.Errorf("failed to marshal portfolio snapshot: %w", err)
	}

	query := `
		INSERT INTO portfolio_snapshots (wallet, schema_version, data, generated_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (wallet) DO UPDATE SET
			schema_version = EXCLUDED.schema_version,
			data = EXCLUDED.data,
			generated_at = EXCLUDED.generated_at,
			updated_at = NOW()
	`

	_, err = r.db.ExecContext(ctx, query,
		snapshot.Wallet,
		snapshot.SchemaVersion,
		string(data),
		snapshot.GeneratedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to store portfolio snapshot: %w", err)
	}
	return nil
}

// Delete removes the wallet's snapshot
func (r *SnapshotRepo) Delete(ctx context.Context, wallet string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM portfolio_snapshots WHERE wallet = $1`, wallet); err != nil {
		return fmt.Errorf("failed to delete portfolio snapshot: %w", err)
	}
	return nil
}
