package solana

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/ethereum/go-ethereum/rpc"
	"go.uber.org/zap"

	"github.com/bimakw/wallet-indexer/internal/config"
	"github.com/bimakw/wallet-indexer/internal/domain/entities"
)

const commitment = "finalized"

// Client wraps a Solana JSON-RPC endpoint with retry logic
type Client struct {
	rpc    *rpc.Client
	config config.ChainsConfig
	logger *zap.Logger
}

// NewClient dials the Solana RPC endpoint
func NewClient(ctx context.Context, rpcURL string, cfg config.ChainsConfig, logger *zap.Logger) (*Client, error) {
	c, err := rpc.DialOptions(ctx, rpcURL, rpc.WithHTTPClient(&http.Client{Timeout: cfg.RequestTimeout}))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to solana node: %w", err)
	}

	logger.Info("Connected to Solana node", zap.String("url", rpcURL))

	return &Client{
		rpc:    c,
		config: cfg,
		logger: logger,
	}, nil
}

// Close closes the client connection
func (c *Client) Close() {
	c.rpc.Close()
}

func (c *Client) call(ctx context.Context, result interface{}, method string, args ...interface{}) error {
	var err error
	for i := 0; i <= c.config.MaxRetries; i++ {
		callCtx, cancel := context.WithTimeout(ctx, c.config.RequestTimeout)
		err = c.rpc.CallContext(callCtx, result, method, args...)
		cancel()
		if err == nil {
			return nil
		}
		if ctx.Err() != nil {
			return entities.NewProviderError(entities.ChainSolana, method, ctx.Err())
		}

		c.logger.Warn("Solana RPC call failed, retrying",
			zap.String("method", method),
			zap.Int("attempt", i+1),
			zap.Error(err),
		)

		if i < c.config.MaxRetries {
			select {
			case <-ctx.Done():
				return entities.NewProviderError(entities.ChainSolana, method, ctx.Err())
			case <-time.After(c.config.RetryDelay):
			}
		}
	}
	return entities.NewProviderError(entities.ChainSolana, method, fmt.Errorf("failed after %d retries: %w", c.config.MaxRetries, err))
}

// GetSignaturesForAddress lists up to limit signatures older than before, newest first
func (c *Client) GetSignaturesForAddress(ctx context.Context, address string, limit int, before string) ([]SignatureInfo, error) {
	var out []SignatureInfo
	cfg := signaturesConfig{Limit: limit, Before: before, Commitment: commitment}
	if err := c.call(ctx, &out, "getSignaturesForAddress", address, cfg); err != nil {
		return nil, err
	}
	return out, nil
}

// GetTransaction returns the jsonParsed transaction along with its raw JSON.
// Both are nil when the node does not have the transaction.
func (c *Client) GetTransaction(ctx context.Context, signature string) (*TransactionResult, json.RawMessage, error) {
	var raw json.RawMessage
	cfg := transactionConfig{Encoding: "jsonParsed", MaxSupportedTransactionVersion: 0, Commitment: commitment}
	if err := c.call(ctx, &raw, "getTransaction", signature, cfg); err != nil {
		return nil, nil, err
	}
	if len(raw) == 0 || string(raw) == "null" {
		return nil, nil, nil
	}

	var out TransactionResult
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, nil, fmt.Errorf("failed to decode transaction %s: %w", signature, err)
	}
	return &out, raw, nil
}

// GetBalance returns the lamport balance of address
func (c *Client) GetBalance(ctx context.Context, address string) (uint64, error) {
	var out balanceResult
	if err := c.call(ctx, &out, "getBalance", address, map[string]string{"commitment": commitment}); err != nil {
		return 0, err
	}
	return out.Value, nil
}
