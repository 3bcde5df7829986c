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

// Ensure TokenRepo implements TokenRepository
var _ repositories.TokenRepository = (*TokenRepo)(nil)

// TokenRepo implements TokenRepository using PostgreSQL
type TokenRepo struct {
	db *sqlx.DB
}

// NewTokenRepo creates a new token repository
func NewTokenRepo(db *sqlx.DB) *TokenRepo {
	return &TokenRepo{db: db}
}

// Get retrieves token metadata by chain and address
func (r *TokenRepo) Get(ctx context.Context, chain entities.Chain, address string) (*entities.TokenMetadata, error) {
	var token entities.TokenMetadata
	query := `
		SELECT chain, address, symbol, name, decimals, source, updated_at
		FROM tokens
		WHERE chain = $1 AND address = $2
	`

	if err := r.db.GetContext(ctx, &token, query, string(chain), address); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get token: %w", err)
	}

	return &token, nil
}

// Upsert creates or updates token metadata
func (r *TokenRepo) Upsert(ctx context.Context, token *entities.TokenMetadata) error {
	query := `
		INSERT INTO tokens (chain, address, symbol, name, decimals, source)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (chain, address) DO UPDATE SET
			symbol = EXCLUDED.symbol,
			name = EXCLUDED.name,
			decimals = EXCLUDED.decimals,
			source = EXCLUDED.source,
			updated_at = NOW()
	`

	_, err := r.db.ExecContext(ctx, query,
		string(token.Chain),
		token.Address,
		token.Symbol,
		token.Name,
		token.Decimals,
		token.Source,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert token: %w", err)
	}

	return nil
}
