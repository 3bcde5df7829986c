package database

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/bimakw/wallet-indexer/internal/domain/entities"
	"github.com/bimakw/wallet-indexer/internal/domain/repositories"
)

// Ensure EventRepo implements EventRepository
var _ repositories.EventRepository = (*EventRepo)(nil)

const eventColumns = `
	id, wallet, chain, transaction_id, sequence_ref, observed_at, direction,
	asset_id, asset_symbol, asset_name, asset_decimals, counterparty_from,
	counterparty_to, amount::text AS amount, fee::text AS fee, status,
	COALESCE(raw, 'null'::jsonb) AS raw, created_at, updated_at`

const upsertEventQuery = `
	INSERT INTO transfer_events (
		wallet, chain, transaction_id, sequence_ref, observed_at, direction,
		asset_id, asset_symbol, asset_name, asset_decimals, counterparty_from,
		counterparty_to, amount, fee, status, raw
	)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
	ON CONFLICT (wallet, chain, transaction_id, asset_id) DO UPDATE SET
		sequence_ref = EXCLUDED.sequence_ref,
		observed_at = EXCLUDED.observed_at,
		direction = EXCLUDED.direction,
		asset_symbol = EXCLUDED.asset_symbol,
		asset_name = EXCLUDED.asset_name,
		asset_decimals = EXCLUDED.asset_decimals,
		counterparty_from = EXCLUDED.counterparty_from,
		counterparty_to = EXCLUDED.counterparty_to,
		amount = EXCLUDED.amount,
		fee = EXCLUDED.fee,
		status = EXCLUDED.status,
		raw = EXCLUDED.raw,
		updated_at = NOW()
`

// EventRepo implements EventRepository using PostgreSQL
type EventRepo struct {
	db *sqlx.DB
}

// NewEventRepo creates a new event repository
func NewEventRepo(db *sqlx.DB) *EventRepo {
	return &EventRepo{db: db}
}

func eventArgs(e *entities.TransferEvent) []interface{} {
	fee := e.Fee
	if fee == "" {
		fee = "0"
	}
	return []interface{}{
		e.Wallet,
		string(e.Chain),
		e.TransactionID,
		e.SequenceRef,
		e.ObservedAt,
		string(e.Direction),
		e.AssetID,
		e.AssetSymbol,
		e.AssetName,
		e.AssetDecimals,
		e.CounterpartyFrom,
		e.CounterpartyTo,
		e.Amount,
		fee,
		string(e.Status),
		nullableJSON(e.Raw),
	}
}

// UpsertEvent inserts or overwrites one event by its natural key
func (r *EventRepo) UpsertEvent(ctx context.Context, event *entities.TransferEvent) error {
	if _, err := r.db.ExecContext(ctx, upsertEventQuery, eventArgs(event)...); err != nil {
		return fmt.Errorf("failed to upsert transfer event: %w", err)
	}
	return nil
}

// UpsertEvents upserts several events in a single transaction
func (r *EventRepo) UpsertEvents(ctx context.Context, events []entities.TransferEvent) error {
	if len(events) == 0 {
		return nil
	}

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, upsertEventQuery)
	if err != nil {
		return fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer stmt.Close()

	for i := range events {
		if _, err := stmt.ExecContext(ctx, eventArgs(&events[i])...); err != nil {
			return fmt.Errorf("failed to upsert transfer event %s: %w", events[i].TransactionID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// QueryEvents returns events newest-first by observed_at
func (r *EventRepo) QueryEvents(ctx context.Context, wallet string, chain entities.Chain, q entities.EventQuery) ([]entities.TransferEvent, error) {
	query, args := buildEventQuery(wallet, chain, q)

	var events []entities.TransferEvent
	if err := r.db.SelectContext(ctx, &events, query, args...); err != nil {
		return nil, fmt.Errorf("failed to query transfer events: %w", err)
	}
	for i := range events {
		normalizeEvent(&events[i])
	}
	return events, nil
}

func buildEventQuery(wallet string, chain entities.Chain, q entities.EventQuery) (string, []interface{}) {
	conditions := []string{"wallet = $1", "chain = $2"}
	args := []interface{}{wallet, string(chain)}
	argIdx := 3

	if q.AssetID != "" {
		conditions = append(conditions, fmt.Sprintf("asset_id = $%d", argIdx))
		args = append(args, q.AssetID)
		argIdx++
	}

	if q.Symbol != "" {
		conditions = append(conditions, fmt.Sprintf("LOWER(asset_symbol) = LOWER($%d)", argIdx))
		args = append(args, q.Symbol)
		argIdx++
	}

	if q.SearchText != "" {
		conditions = append(conditions, fmt.Sprintf("(LOWER(asset_symbol) LIKE $%d ESCAPE '\\' OR LOWER(asset_name) LIKE $%d ESCAPE '\\')", argIdx, argIdx))
		args = append(args, "%"+escapeLike(strings.ToLower(q.SearchText))+"%")
		argIdx++
	}

	query := fmt.Sprintf(`
		SELECT %s
		FROM transfer_events
		WHERE %s
		ORDER BY observed_at DESC NULLS LAST, id DESC
	`, eventColumns, strings.Join(conditions, " AND "))

	if q.Limit > 0 {
		query += fmt.Sprintf(" LIMIT $%d", argIdx)
		args = append(args, q.Limit)
	}

	return query, args
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}

// HasEvents reports whether any event is stored for the wallet and chain
func (r *EventRepo) HasEvents(ctx context.Context, wallet string, chain entities.Chain) (bool, error) {
	query := `SELECT EXISTS (SELECT 1 FROM transfer_events WHERE wallet = $1 AND chain = $2)`

	var exists bool
	if err := r.db.GetContext(ctx, &exists, query, wallet, string(chain)); err != nil {
		return false, fmt.Errorf("failed to check cached events: %w", err)
	}
	return exists, nil
}

// GetByTransaction returns all stored events of one transaction
func (r *EventRepo) GetByTransaction(ctx context.Context, chain entities.Chain, transactionID string) ([]entities.TransferEvent, error) {
	query := fmt.Sprintf(`
		SELECT %s
		FROM transfer_events
		WHERE chain = $1 AND transaction_id = $2
		ORDER BY wallet, asset_id
	`, eventColumns)

	var events []entities.TransferEvent
	if err := r.db.SelectContext(ctx, &events, query, string(chain), transactionID); err != nil {
		return nil, fmt.Errorf("failed to get transaction events: %w", err)
	}
	for i := range events {
		normalizeEvent(&events[i])
	}
	return events, nil
}

// GetStats returns direction counts over the stored events
func (r *EventRepo) GetStats(ctx context.Context, wallet string, chain entities.Chain) (*repositories.EventStats, error) {
	query := `
		SELECT
			COUNT(*) AS total_events,
			COUNT(DISTINCT transaction_id) AS transactions,
			COUNT(*) FILTER (WHERE direction = 'receive') AS received,
			COUNT(*) FILTER (WHERE direction = 'send') AS sent,
			COUNT(*) FILTER (WHERE direction = 'unknown') AS unknown,
			COUNT(*) FILTER (WHERE status = 'failed') AS failed,
			MIN(observed_at) AS first_transfer_at,
			MAX(observed_at) AS last_transfer_at
		FROM transfer_events
		WHERE wallet = $1 AND chain = $2
	`

	var row struct {
		TotalEvents     int64      `db:"total_events"`
		Transactions    int64      `db:"transactions"`
		Received        int64      `db:"received"`
		Sent            int64      `db:"sent"`
		Unknown         int64      `db:"unknown"`
		Failed          int64      `db:"failed"`
		FirstTransferAt *time.Time `db:"first_transfer_at"`
		LastTransferAt  *time.Time `db:"last_transfer_at"`
	}
	if err := r.db.GetContext(ctx, &row, query, wallet, string(chain)); err != nil {
		return nil, fmt.Errorf("failed to get event stats: %w", err)
	}

	return &repositories.EventStats{
		TotalEvents:     row.TotalEvents,
		Transactions:    row.Transactions,
		Received:        row.Received,
		Sent:            row.Sent,
		Unknown:         row.Unknown,
		Failed:          row.Failed,
		FirstTransferAt: row.FirstTransferAt,
		LastTransferAt:  row.LastTransferAt,
	}, nil
}

// Clear deletes events and dependent summaries for a wallet, on one chain when chain is set
func (r *EventRepo) Clear(ctx context.Context, wallet string, chain *entities.Chain) (int64, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	where := "wallet = $1"
	args := []interface{}{wallet}
	if chain != nil {
		where += " AND chain = $2"
		args = append(args, string(*chain))
	}

	if _, err := tx.ExecContext(ctx, "DELETE FROM token_summaries WHERE "+where, args...); err != nil {
		return 0, fmt.Errorf("failed to clear token summaries: %w", err)
	}

	result, err := tx.ExecContext(ctx, "DELETE FROM transfer_events WHERE "+where, args...)
	if err != nil {
		return 0, fmt.Errorf("failed to clear transfer events: %w", err)
	}
	deleted, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit transaction: %w", err)
	}
	return deleted, nil
}

func normalizeEvent(e *entities.TransferEvent) {
	e.Amount = entities.NormalizeAmount(e.Amount)
	e.Fee = entities.NormalizeAmount(e.Fee)
}
