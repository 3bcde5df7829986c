package services

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/bimakw/wallet-indexer/internal/domain/entities"
	"github.com/bimakw/wallet-indexer/internal/domain/repositories"
)

// HoldingsService answers per-symbol questions about a wallet across chains
type HoldingsService struct {
	portfolio *PortfolioService
	eventRepo repositories.EventRepository
	logger    *zap.Logger
}

// NewHoldingsService creates a new holdings service
func NewHoldingsService(
	portfolio *PortfolioService,
	eventRepo repositories.EventRepository,
	logger *zap.Logger,
) *HoldingsService {
	return &HoldingsService{
		portfolio: portfolio,
		eventRepo: eventRepo,
		logger:    logger,
	}
}

// OwnershipResult reports whether a wallet holds a positive balance of a symbol
type OwnershipResult struct {
	Wallet       string                  `json:"wallet"`
	Symbol       string                  `json:"symbol"`
	Owns         bool                    `json:"owns"`
	TotalBalance string                  `json:"total_balance"`
	Holdings     []entities.TokenHolding `json:"holdings"`
}

// TokenHistoryResult lists a wallet's events of one symbol across chains
type TokenHistoryResult struct {
	Wallet string                   `json:"wallet"`
	Symbol string                   `json:"symbol"`
	Events []entities.TransferEvent `json:"events"`
	Count  int                      `json:"count"`
}

// OwnsToken checks the wallet's snapshot for a positive derived balance of symbol
func (s *HoldingsService) OwnsToken(ctx context.Context, wallet, symbol string) (*OwnershipResult, error) {
	symbol = strings.TrimSpace(symbol)
	if symbol == "" {
		return nil, fmt.Errorf("%w: symbol is required", entities.ErrValidation)
	}

	snapshot, err := s.portfolio.GetSnapshot(ctx, wallet, false)
	if err != nil {
		return nil, err
	}

	result := &OwnershipResult{
		Wallet:   snapshot.Wallet,
		Symbol:   strings.ToUpper(symbol),
		Holdings: []entities.TokenHolding{},
	}

	total := decimal.Zero
	for _, h := range snapshot.Summary.TokenHoldings {
		if !strings.EqualFold(h.Symbol, symbol) {
			continue
		}
		balance, err := entities.ParseAmount(h.Balance)
		if err != nil {
			s.logger.Warn("Skipping unparseable holding balance",
				zap.String("asset", h.AssetID),
				zap.String("balance", h.Balance),
			)
			continue
		}
		if !balance.IsPositive() {
			continue
		}
		total = total.Add(balance)
		result.Holdings = append(result.Holdings, h)
	}

	result.Owns = len(result.Holdings) > 0
	result.TotalBalance = entities.FormatAmount(total)
	return result, nil
}

// TokenHistory returns the stored events of symbol on every chain the wallet address fits, newest first
func (s *HoldingsService) TokenHistory(ctx context.Context, wallet, symbol string) (*TokenHistoryResult, error) {
	symbol = strings.TrimSpace(symbol)
	if symbol == "" {
		return nil, fmt.Errorf("%w: symbol is required", entities.ErrValidation)
	}
	wallet = entities.NormalizeWallet(wallet)
	chains := entities.ChainsFor(wallet, s.portfolio.chains)
	if len(chains) == 0 {
		return nil, fmt.Errorf("%w: %q", entities.ErrInvalidAddress, wallet)
	}

	events := []entities.TransferEvent{}
	for _, chain := range chains {
		evs, err := s.eventRepo.QueryEvents(ctx, chain.NormalizeAddress(wallet), chain, entities.EventQuery{Symbol: symbol})
		if err != nil {
			return nil, fmt.Errorf("failed to query %s events: %w", chain, err)
		}
		events = append(events, evs...)
	}

	sort.SliceStable(events, func(i, j int) bool {
		a, b := events[i].ObservedAt, events[j].ObservedAt
		switch {
		case a == nil:
			return false
		case b == nil:
			return true
		}
		return a.After(*b)
	})

	return &TokenHistoryResult{
		Wallet: wallet,
		Symbol: strings.ToUpper(symbol),
		Events: events,
		Count:  len(events),
	}, nil
}
