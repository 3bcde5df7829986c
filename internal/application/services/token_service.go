package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/bimakw/wallet-indexer/internal/domain/entities"
	"github.com/bimakw/wallet-indexer/internal/domain/providers"
	"github.com/bimakw/wallet-indexer/internal/domain/repositories"
	"github.com/bimakw/wallet-indexer/internal/infrastructure/cache"
)

// knownTokens short-circuits lookups for the most common assets
var knownTokens = map[entities.Chain]map[string]entities.TokenMetadata{
	entities.ChainSolana: {
		"EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v": {Symbol: "USDC", Name: "USD Coin", Decimals: 6},
		"Es9vMFrzaCERmJfrF4H2FYD4KCoNkY11McCe8BenwNYB": {Symbol: "USDT", Name: "Tether USD", Decimals: 6},
		"mSoLzYCxHdYgdzU16g5QSh3i5K3z3KZK7ytfqcJm7So":  {Symbol: "mSOL", Name: "Marinade staked SOL", Decimals: 9},
	},
	entities.ChainBase: {
		"0x833589fcd6edb6e08f4c7c32d4f71b54bda02913": {Symbol: "USDC", Name: "USD Coin", Decimals: 6},
	},
	entities.ChainEthereum: {
		"0xa0b86991c6218b36c1d19d4a2e9eb0ce3606eb48": {Symbol: "USDC", Name: "USD Coin", Decimals: 6},
		"0xdac17f958d2ee523a2206206994597c13d831ec7": {Symbol: "USDT", Name: "Tether USD", Decimals: 6},
	},
}

const (
	sourceKnown       = "known"
	sourceCache       = "cache"
	sourceStore       = "store"
	sourcePlaceholder = entities.TokenSourcePlaceholder
	sourceNative      = "native"
)

// TokenService resolves token identifiers to display metadata
type TokenService struct {
	tokenRepo repositories.TokenRepository
	sources   []providers.MetadataSource
	cache     cache.Cache
	cacheTTL  time.Duration
	logger    *zap.Logger
	group     singleflight.Group
}

// NewTokenService creates a new token resolver.
// cache may be nil; sources are consulted in order.
func NewTokenService(
	tokenRepo repositories.TokenRepository,
	sources []providers.MetadataSource,
	cache cache.Cache,
	cacheTTL time.Duration,
	logger *zap.Logger,
) *TokenService {
	if cacheTTL <= 0 {
		cacheTTL = time.Hour
	}
	return &TokenService{
		tokenRepo: tokenRepo,
		sources:   sources,
		cache:     cache,
		cacheTTL:  cacheTTL,
		logger:    logger,
	}
}

// Resolve returns metadata for a token, or nil when no layer knows it.
// Order: native, cache, known tokens, tokens table, metadata sources.
func (s *TokenService) Resolve(ctx context.Context, chain entities.Chain, assetID string) (*entities.TokenMetadata, error) {
	if assetID == "" {
		return nil, nil
	}
	if assetID == entities.NativeAssetID {
		native := chain.Native()
		resolverLookups.WithLabelValues(sourceNative).Inc()
		return &entities.TokenMetadata{
			Chain:    chain,
			Address:  entities.NativeAssetID,
			Symbol:   native.Symbol,
			Name:     native.Name,
			Decimals: native.Decimals,
			Source:   sourceNative,
		}, nil
	}
	assetID = chain.NormalizeAddress(assetID)
	key := cache.TokenKey(chain.String(), assetID)

	if s.cache != nil {
		var cached entities.TokenMetadata
		if err := s.cache.Get(ctx, key, &cached); err == nil {
			resolverLookups.WithLabelValues(sourceCache).Inc()
			return &cached, nil
		} else if !errors.Is(err, cache.ErrCacheMiss) {
			s.logger.Warn("Token cache read failed", zap.String("key", key), zap.Error(err))
		}
	}

	v, err, _ := s.group.Do(key, func() (interface{}, error) {
		return s.lookup(ctx, chain, assetID)
	})
	if err != nil {
		return nil, err
	}
	meta, _ := v.(*entities.TokenMetadata)
	if meta == nil {
		return nil, nil
	}

	if s.cache != nil {
		if err := s.cache.SetWithTTL(ctx, key, meta, s.cacheTTL); err != nil {
			s.logger.Warn("Failed to cache token metadata", zap.String("key", key), zap.Error(err))
		}
	}

	// Callers may mutate the result
	out := *meta
	return &out, nil
}

func (s *TokenService) lookup(ctx context.Context, chain entities.Chain, assetID string) (*entities.TokenMetadata, error) {
	if known, ok := knownTokens[chain][assetID]; ok {
		resolverLookups.WithLabelValues(sourceKnown).Inc()
		known.Chain = chain
		known.Address = assetID
		known.Source = sourceKnown
		return &known, nil
	}

	if s.tokenRepo != nil {
		stored, err := s.tokenRepo.Get(ctx, chain, assetID)
		if err != nil {
			s.logger.Warn("Token store lookup failed",
				zap.String("chain", chain.String()),
				zap.String("token", assetID),
				zap.Error(err),
			)
		} else if stored != nil {
			resolverLookups.WithLabelValues(sourceStore).Inc()
			return stored, nil
		}
	}

	for _, src := range s.sources {
		if !src.Supports(chain) {
			continue
		}

		meta, err := src.Lookup(ctx, chain, assetID)
		if err != nil {
			s.logger.Warn("Token metadata source failed",
				zap.String("source", src.Name()),
				zap.String("chain", chain.String()),
				zap.String("token", assetID),
				zap.Error(err),
			)
			continue
		}
		if meta == nil {
			continue
		}

		resolverLookups.WithLabelValues(src.Name()).Inc()
		meta.Chain = chain
		meta.Address = assetID
		if meta.Source == "" {
			meta.Source = src.Name()
		}

		if s.tokenRepo != nil {
			if err := s.tokenRepo.Upsert(ctx, meta); err != nil {
				s.logger.Warn("Failed to persist token metadata", zap.String("token", assetID), zap.Error(err))
			}
		}
		return meta, nil
	}

	return nil, nil
}

// ResolveOrPlaceholder never fails: resolver errors and misses fall back to
// a deterministic placeholder derived from the asset id
func (s *TokenService) ResolveOrPlaceholder(ctx context.Context, chain entities.Chain, assetID string) *entities.TokenMetadata {
	meta, err := s.Resolve(ctx, chain, assetID)
	if err != nil {
		s.logger.Warn("Token resolution failed, using placeholder",
			zap.String("chain", chain.String()),
			zap.String("token", assetID),
			zap.Error(err),
		)
	}
	if meta != nil {
		return meta
	}
	resolverLookups.WithLabelValues(sourcePlaceholder).Inc()
	return PlaceholderMetadata(chain, chain.NormalizeAddress(assetID))
}

// PlaceholderMetadata derives display metadata from the asset id alone
func PlaceholderMetadata(chain entities.Chain, assetID string) *entities.TokenMetadata {
	meta := &entities.TokenMetadata{
		Chain:   chain,
		Address: assetID,
		Source:  sourcePlaceholder,
	}

	short := assetID
	if len(short) > 8 {
		short = short[:8]
	}

	switch {
	case assetID == "" || strings.EqualFold(assetID, "unknown"):
		meta.Symbol = "UNKNOWN"
		meta.Name = "Unknown Token"
		meta.Decimals = 0
	case strings.HasSuffix(strings.ToLower(assetID), "pump"):
		meta.Symbol = "PUMP-" + short
		meta.Name = fmt.Sprintf("Pump.fun Token (%s)", short)
		meta.Decimals = 6
	default:
		meta.Symbol = "TOKEN-" + short
		meta.Name = fmt.Sprintf("Token (%s)", short)
		if len(assetID) == 42 {
			meta.Decimals = 18
		} else {
			meta.Decimals = 6
		}
	}
	return meta
}
