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

// Ensure SummaryRepo implements SummaryRepository
var _ repositories.SummaryRepository = (*SummaryRepo)(nil)

const summaryColumns = `
	wallet, chain, asset_id, asset_symbol, asset_name,
	total_received::text AS total_received, total_sent::text AS total_sent,
	current_balance::text AS current_balance, transaction_count,
	first_transaction_at, last_transaction_at, updated_at`

// SummaryRepo implements SummaryRepository using PostgreSQL
type SummaryRepo struct {
	db *sqlx.DB
}

// NewSummaryRepo creates a new summary repository
func NewSummaryRepo(db *sqlx.DB) *SummaryRepo {
	return &SummaryRepo{db: db}
}

// RecomputeSummary folds every stored event of the asset and overwrites the summary row
func (r *SummaryRepo) RecomputeSummary(ctx context.Context, wallet string, chain entities.Chain, assetID, symbol, name string) (*entities.TokenSummary, error) {
	query := fmt.Sprintf(`
		INSERT INTO token_summaries (
			wallet, chain, asset_id, asset_symbol, asset_name,
			total_received, total_sent, current_balance, transaction_count,
			first_transaction_at, last_transaction_at, updated_at
		)
		SELECT
			$1::varchar, $2::varchar, $3::varchar, $4::varchar, $5::varchar,
			COALESCE(SUM(amount) FILTER (WHERE amount > 0), 0),
			COALESCE(ABS(SUM(amount) FILTER (WHERE amount < 0)), 0),
			COALESCE(SUM(amount), 0),
			COUNT(*),
			MIN(observed_at),
			MAX(observed_at),
			NOW()
		FROM transfer_events
		WHERE wallet = $1 AND chain = $2 AND asset_id = $3
		ON CONFLICT (wallet, chain, asset_id) DO UPDATE SET
			asset_symbol = EXCLUDED.asset_symbol,
			asset_name = EXCLUDED.asset_name,
			total_received = EXCLUDED.total_received,
			total_sent = EXCLUDED.total_sent,
			current_balance = EXCLUDED.current_balance,
			transaction_count = EXCLUDED.transaction_count,
			first_transaction_at = EXCLUDED.first_transaction_at,
			last_transaction_at = EXCLUDED.last_transaction_at,
			updated_at = NOW()
		RETURNING %s
	`, summaryColumns)

	var summary entities.TokenSummary
	if err := r.db.GetContext(ctx, &summary, query, wallet, string(chain), assetID, symbol, name); err != nil {
		return nil, fmt.Errorf("failed to recompute token summary: %w", err)
	}
	normalizeSummary(&summary)
	return &summary, nil
}

// GetSummaries returns all summaries for the wallet and chain, largest balance first
func (r *SummaryRepo) GetSummaries(ctx context.Context, wallet string, chain entities.Chain) ([]entities.TokenSummary, error) {
	query := fmt.Sprintf(`
		SELECT %s
		FROM token_summaries
		WHERE wallet = $1 AND chain = $2
		ORDER BY current_balance DESC, asset_id
	`, summaryColumns)

	var summaries []entities.TokenSummary
	if err := r.db.SelectContext(ctx, &summaries, query, wallet, string(chain)); err != nil {
		return nil, fmt.Errorf("failed to get token summaries: %w", err)
	}
	for i := range summaries {
		normalizeSummary(&summaries[i])
	}
	return summaries, nil
}

// GetSummary returns one summary or nil
func (r *SummaryRepo) GetSummary(ctx context.Context, wallet string, chain entities.Chain, assetID string) (*entities.TokenSummary, error) {
	query := fmt.Sprintf(`
		SELECT %s
		FROM token_summaries
		WHERE wallet = $1 AND chain = $2 AND asset_id = $3
	`, summaryColumns)

	var summary entities.TokenSummary
	if err := r.db.GetContext(ctx, &summary, query, wallet, string(chain), assetID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get token summary: %w", err)
	}
	normalizeSummary(&summary)
	return &summary, nil
}

func normalizeSummary(s *entities.TokenSummary) {
	s.TotalReceived = entities.NormalizeAmount(s.TotalReceived)
	s.TotalSent = entities.NormalizeAmount(s.TotalSent)
	s.CurrentBalance = entities.NormalizeAmount(s.CurrentBalance)
}
