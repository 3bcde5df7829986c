package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/bimakw/wallet-indexer/internal/config"
	"github.com/bimakw/wallet-indexer/internal/domain/providers"
)

const systemPrompt = `You are a blockchain wallet analyst. You receive a JSON document describing one wallet's
normalized transfer history and token balances across chains, followed by a question.
Answer only from the data provided. Amounts are exact decimal strings in token units.
If the data does not contain the answer, say so plainly.`

// ErrEmptyAnswer is returned when the model produced no choices
var ErrEmptyAnswer = errors.New("model returned no answer")

// OpenAIAnswerer answers wallet questions with an OpenAI-compatible chat completion API
type OpenAIAnswerer struct {
	client      *openai.Client
	model       string
	temperature float32
	maxTokens   int
	logger      *zap.Logger
}

var _ providers.Answerer = (*OpenAIAnswerer)(nil)

// NewOpenAIAnswerer creates an answerer. BaseURL overrides the API endpoint when set.
func NewOpenAIAnswerer(cfg config.AIConfig, logger *zap.Logger) *OpenAIAnswerer {
	clientCfg := openai.DefaultConfig(cfg.OpenAIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}

	return &OpenAIAnswerer{
		client:      openai.NewClientWithConfig(clientCfg),
		model:       cfg.Model,
		temperature: cfg.Temperature,
		maxTokens:   cfg.MaxTokens,
		logger:      logger,
	}
}

// Answer implements providers.Answerer
func (a *OpenAIAnswerer) Answer(ctx context.Context, question string, data []byte) (string, error) {
	resp, err := a.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: a.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: "Wallet data:\n" + string(data)},
			{Role: openai.ChatMessageRoleUser, Content: "Question: " + question},
		},
		Temperature: a.temperature,
		MaxTokens:   a.maxTokens,
	})
	if err != nil {
		return "", fmt.Errorf("failed to create chat completion: %w", err)
	}

	if len(resp.Choices) == 0 {
		return "", ErrEmptyAnswer
	}

	a.logger.Debug("LLM answered",
		zap.String("model", a.model),
		zap.Int("prompt_tokens", resp.Usage.PromptTokens),
		zap.Int("completion_tokens", resp.Usage.CompletionTokens),
	)

	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}
