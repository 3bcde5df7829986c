package tokenlist

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/bimakw/wallet-indexer/internal/domain/entities"
	"github.com/bimakw/wallet-indexer/internal/domain/providers"
)

type listEntry struct {
	Address  string `json:"address"`
	Symbol   string `json:"symbol"`
	Name     string `json:"name"`
	Decimals int32  `json:"decimals"`
}

// Source serves token metadata from a published JSON token list.
// The list is downloaded lazily and refreshed after ttl.
type Source struct {
	name       string
	url        string
	chain      entities.Chain
	ttl        time.Duration
	httpClient *http.Client
	logger     *zap.Logger

	mu       sync.RWMutex
	tokens   map[string]listEntry
	loadedAt time.Time
	group    singleflight.Group
}

var _ providers.MetadataSource = (*Source)(nil)

// NewSource creates a token list source for one chain
func NewSource(name, url string, chain entities.Chain, ttl time.Duration, logger *zap.Logger) *Source {
	return &Source{
		name:       name,
		url:        url,
		chain:      chain,
		ttl:        ttl,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		logger:     logger,
	}
}

// Name implements providers.MetadataSource
func (s *Source) Name() string {
	return s.name
}

// Supports implements providers.MetadataSource
func (s *Source) Supports(chain entities.Chain) bool {
	return chain == s.chain && s.url != ""
}

// Lookup implements providers.MetadataSource
func (s *Source) Lookup(ctx context.Context, chain entities.Chain, address string) (*entities.TokenMetadata, error) {
	if !s.Supports(chain) {
		return nil, nil
	}

	tokens, err := s.list(ctx)
	if err != nil {
		return nil, err
	}

	entry, ok := tokens[chain.NormalizeAddress(address)]
	if !ok {
		return nil, nil
	}

	return &entities.TokenMetadata{
		Chain:     chain,
		Address:   address,
		Symbol:    entry.Symbol,
		Name:      entry.Name,
		Decimals:  entry.Decimals,
		Source:    s.name,
		UpdatedAt: time.Now().UTC(),
	}, nil
}

func (s *Source) list(ctx context.Context) (map[string]listEntry, error) {
	s.mu.RLock()
	tokens, loadedAt := s.tokens, s.loadedAt
	s.mu.RUnlock()

	if tokens != nil && time.Since(loadedAt) < s.ttl {
		return tokens, nil
	}

	v, err, _ := s.group.Do("load", func() (interface{}, error) {
		return s.load(ctx)
	})
	if err != nil {
		// Serve the stale list rather than failing every lookup
		if tokens != nil {
			s.logger.Warn("Token list refresh failed, serving stale list",
				zap.String("source", s.name),
				zap.Error(err),
			)
			return tokens, nil
		}
		return nil, err
	}
	return v.(map[string]listEntry), nil
}

func (s *Source) load(ctx context.Context) (map[string]listEntry, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build token list request: %w", err)
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to download token list: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("failed to download token list: status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read token list: %w", err)
	}

	entries, err := decodeList(body)
	if err != nil {
		return nil, err
	}

	tokens := make(map[string]listEntry, len(entries))
	for _, e := range entries {
		if e.Address == "" || e.Symbol == "" {
			continue
		}
		tokens[s.chain.NormalizeAddress(e.Address)] = e
	}

	s.mu.Lock()
	s.tokens = tokens
	s.loadedAt = time.Now()
	s.mu.Unlock()

	s.logger.Info("Token list loaded",
		zap.String("source", s.name),
		zap.Int("tokens", len(tokens)),
	)
	return tokens, nil
}

// decodeList accepts both a bare array and the {"tokens": [...]} token-list standard
func decodeList(body []byte) ([]listEntry, error) {
	body = bytes.TrimSpace(body)
	if len(body) > 0 && body[0] == '[' {
		var entries []listEntry
		if err := json.Unmarshal(body, &entries); err != nil {
			return nil, fmt.Errorf("failed to decode token list: %w", err)
		}
		return entries, nil
	}

	var wrapped struct {
		Tokens []listEntry `json:"tokens"`
	}
	if err := json.Unmarshal(body, &wrapped); err != nil {
		return nil, fmt.Errorf("failed to decode token list: %w", err)
	}
	return wrapped.Tokens, nil
}
