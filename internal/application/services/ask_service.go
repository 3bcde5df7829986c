package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/bimakw/wallet-indexer/internal/domain/entities"
	"github.com/bimakw/wallet-indexer/internal/domain/providers"
	"github.com/bimakw/wallet-indexer/internal/domain/repositories"
)

// ErrAnswererUnavailable is returned when no language model is configured
var ErrAnswererUnavailable = errors.New("question answering is not configured")

// AskService answers free-text questions about a wallet's stored activity
type AskService struct {
	answerer    providers.Answerer
	eventRepo   repositories.EventRepository
	summaryRepo repositories.SummaryRepository
	chains      []entities.Chain
	maxEvents   int
	logger      *zap.Logger
}

// NewAskService creates a new ask service. answerer may be nil, in which case Ask fails.
func NewAskService(
	answerer providers.Answerer,
	eventRepo repositories.EventRepository,
	summaryRepo repositories.SummaryRepository,
	maxEvents int,
	logger *zap.Logger,
) *AskService {
	if maxEvents <= 0 {
		maxEvents = 200
	}
	return &AskService{
		answerer:    answerer,
		eventRepo:   eventRepo,
		summaryRepo: summaryRepo,
		chains:      entities.SupportedChains(),
		maxEvents:   maxEvents,
		logger:      logger,
	}
}

// AskResponse is the API response of a question
type AskResponse struct {
	Wallet   string           `json:"wallet"`
	Chains   []entities.Chain `json:"chains"`
	Question string           `json:"question"`
	Answer   string           `json:"answer"`
	Events   int              `json:"events_considered"`
}

// askContext is the JSON blob handed to the model
type askContext struct {
	Wallet string         `json:"wallet"`
	Chains []chainContext `json:"chains"`
}

type chainContext struct {
	Chain     entities.Chain           `json:"chain"`
	Summaries []entities.TokenSummary  `json:"token_summaries"`
	Events    []entities.TransferEvent `json:"recent_events"`
}

// Ask gathers stored events and summaries for wallet (on one chain when chain is set) and asks the model
func (s *AskService) Ask(ctx context.Context, question, wallet string, chain *entities.Chain) (*AskResponse, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return nil, fmt.Errorf("%w: question is required", entities.ErrValidation)
	}
	if strings.TrimSpace(wallet) == "" {
		return nil, fmt.Errorf("%w: wallet address is required", entities.ErrValidation)
	}
	if s.answerer == nil {
		return nil, ErrAnswererUnavailable
	}

	var chains []entities.Chain
	if chain != nil {
		w, err := ValidateTarget(*chain, wallet)
		if err != nil {
			return nil, err
		}
		wallet = w
		chains = []entities.Chain{*chain}
	} else {
		wallet = entities.NormalizeWallet(wallet)
		chains = entities.ChainsFor(wallet, s.chains)
		if len(chains) == 0 {
			return nil, fmt.Errorf("%w: %q", entities.ErrInvalidAddress, wallet)
		}
	}

	data, events, err := s.gather(ctx, wallet, chains)
	if err != nil {
		return nil, err
	}

	answer, err := s.answerer.Answer(ctx, question, data)
	if err != nil {
		return nil, fmt.Errorf("failed to answer question: %w", err)
	}

	s.logger.Info("Question answered",
		zap.String("wallet", wallet),
		zap.Int("events", events),
		zap.Int("context_bytes", len(data)),
	)

	return &AskResponse{
		Wallet:   wallet,
		Chains:   chains,
		Question: question,
		Answer:   answer,
		Events:   events,
	}, nil
}

// gather builds the context blob; the event cap is shared across chains in order
func (s *AskService) gather(ctx context.Context, wallet string, chains []entities.Chain) ([]byte, int, error) {
	blob := askContext{Wallet: wallet}
	remaining := s.maxEvents

	for _, c := range chains {
		w := c.NormalizeAddress(wallet)
		summaries, err := s.summaryRepo.GetSummaries(ctx, w, c)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to get summaries: %w", err)
		}

		var events []entities.TransferEvent
		if remaining > 0 {
			events, err = s.eventRepo.QueryEvents(ctx, w, c, entities.EventQuery{Limit: remaining})
			if err != nil {
				return nil, 0, fmt.Errorf("failed to query events: %w", err)
			}
			remaining -= len(events)
		}

		if len(summaries) == 0 && len(events) == 0 {
			continue
		}
		blob.Chains = append(blob.Chains, chainContext{Chain: c, Summaries: summaries, Events: events})
	}

	data, err := json.Marshal(blob)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to encode wallet data: %w", err)
	}
	return data, s.maxEvents - remaining, nil
}
