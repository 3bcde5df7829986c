package ethereum

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/bimakw/wallet-indexer/internal/config"
	"github.com/bimakw/wallet-indexer/internal/domain/entities"
)

// HistoryClient lists wallet transactions from an indexed data API.
// Nodes cannot answer "transactions touching address", so listing goes through the data API
// while details still come from the node.
type HistoryClient struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
	limiter    *rate.Limiter
	config     config.ChainsConfig
	logger     *zap.Logger
}

// NewHistoryClient creates a rate limited data API client
func NewHistoryClient(cfg config.ChainsConfig, logger *zap.Logger) *HistoryClient {
	rps := cfg.HistoryAPIRPS
	if rps <= 0 {
		rps = 3
	}
	return &HistoryClient{
		httpClient: &http.Client{Timeout: cfg.RequestTimeout},
		baseURL:    cfg.HistoryAPIURL,
		apiKey:     cfg.HistoryAPIKey,
		limiter:    rate.NewLimiter(rate.Limit(rps), 1),
		config:     cfg,
		logger:     logger,
	}
}

type historyItem struct {
	Hash        string `json:"hash"`
	BlockNumber int64  `json:"blockNumber"`
	Timestamp   int64  `json:"timestamp"`
}

type historyResponse struct {
	Data []historyItem `json:"data"`
}

// ListPage returns one page of transactions for address.
// The marker is the page number as a decimal string; empty means the first page.
func (h *HistoryClient) ListPage(ctx context.Context, chain entities.Chain, address string, pageSize int, marker string) (*entities.TransactionPage, error) {
	page := 0
	if marker != "" {
		p, err := strconv.Atoi(marker)
		if err != nil || p < 0 {
			return nil, fmt.Errorf("invalid page marker %q", marker)
		}
		page = p
	}

	q := url.Values{}
	q.Set("chain", chain.String())
	q.Set("addresses", address)
	q.Set("transactionTypes", "native,internal,erc20")
	q.Set("pageSize", strconv.Itoa(pageSize))
	q.Set("page", strconv.Itoa(page))

	var resp historyResponse
	if err := h.get(ctx, chain, h.baseURL+"?"+q.Encode(), &resp); err != nil {
		return nil, err
	}

	// The API returns one row per transfer, so a transaction can appear several times
	seen := make(map[string]struct{}, len(resp.Data))
	items := make([]entities.TransactionRef, 0, len(resp.Data))
	for _, row := range resp.Data {
		id := strings.ToLower(row.Hash)
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}

		ref := entities.TransactionRef{ID: id}
		if row.BlockNumber > 0 {
			n := row.BlockNumber
			ref.SequenceRef = &n
		}
		if row.Timestamp > 0 {
			ts := time.UnixMilli(row.Timestamp).UTC()
			ref.ObservedAt = &ts
		}
		items = append(items, ref)
	}

	result := &entities.TransactionPage{Items: items}
	if len(resp.Data) >= pageSize && pageSize > 0 {
		result.NextBefore = strconv.Itoa(page + 1)
	}
	return result, nil
}

func (h *HistoryClient) get(ctx context.Context, chain entities.Chain, rawURL string, out any) error {
	var lastErr error
	for i := 0; i <= h.config.MaxRetries; i++ {
		if err := h.limiter.Wait(ctx); err != nil {
			return entities.NewProviderError(chain, "history", err)
		}

		retry, err := h.do(ctx, rawURL, out)
		if err == nil {
			return nil
		}
		lastErr = err
		if !retry {
			break
		}

		h.logger.Warn("History API call failed, retrying",
			zap.String("chain", chain.String()),
			zap.Int("attempt", i+1),
			zap.Error(err),
		)

		if i < h.config.MaxRetries {
			select {
			case <-ctx.Done():
				return entities.NewProviderError(chain, "history", ctx.Err())
			case <-time.After(h.config.RetryDelay):
			}
		}
	}
	return entities.NewProviderError(chain, "history", lastErr)
}

// do performs one request. The bool reports whether the failure is worth retrying.
func (h *HistoryClient) do(ctx context.Context, rawURL string, out any) (bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return false, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if h.apiKey != "" {
		req.Header.Set("x-api-key", h.apiKey)
	}

	resp, err := h.httpClient.Do(req)
	if err != nil {
		return ctx.Err() == nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
		return true, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return false, fmt.Errorf("unexpected status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return false, fmt.Errorf("failed to decode response: %w", err)
	}
	return false, nil
}
