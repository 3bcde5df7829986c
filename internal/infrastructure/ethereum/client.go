package ethereum

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
	"go.uber.org/zap"

	"github.com/bimakw/wallet-indexer/internal/config"
	"github.com/bimakw/wallet-indexer/internal/domain/entities"
)

// expectedChainIDs guards against pointing a chain at the wrong RPC endpoint
var expectedChainIDs = map[entities.Chain]int64{
	entities.ChainEthereum: 1,
	entities.ChainBase:     8453,
}

// Client wraps the EVM JSON-RPC client with retry logic for one chain
type Client struct {
	client  *ethclient.Client
	chain   entities.Chain
	config  config.ChainsConfig
	logger  *zap.Logger
	chainID *big.Int
	signer  types.Signer
}

// NewClient dials rpcURL and verifies the remote chain id matches chain
func NewClient(chain entities.Chain, rpcURL string, cfg config.ChainsConfig, logger *zap.Logger) (*Client, error) {
	client, err := ethclient.Dial(rpcURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s node: %w", chain, err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.RequestTimeout)
	defer cancel()

	chainID, err := client.ChainID(ctx)
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to get chain ID: %w", err)
	}

	if want, ok := expectedChainIDs[chain]; ok && chainID.Int64() != want {
		client.Close()
		return nil, fmt.Errorf("chain ID mismatch for %s: expected %d, got %d", chain, want, chainID.Int64())
	}

	logger.Info("Connected to EVM node",
		zap.String("chain", chain.String()),
		zap.Int64("chain_id", chainID.Int64()),
	)

	return &Client{
		client:  client,
		chain:   chain,
		config:  cfg,
		logger:  logger,
		chainID: chainID,
		signer:  types.LatestSignerForChainID(chainID),
	}, nil
}

// Close closes the client connection
func (c *Client) Close() {
	c.client.Close()
}

// Chain returns the chain this client is connected to
func (c *Client) Chain() entities.Chain {
	return c.chain
}

// retry runs fn up to MaxRetries+1 times, waiting RetryDelay between attempts
func (c *Client) retry(ctx context.Context, op string, fn func(ctx context.Context) error) error {
	var err error
	for i := 0; i <= c.config.MaxRetries; i++ {
		callCtx, cancel := context.WithTimeout(ctx, c.config.RequestTimeout)
		err = fn(callCtx)
		cancel()
		if err == nil {
			return nil
		}
		if ctx.Err() != nil {
			return entities.NewProviderError(c.chain, op, ctx.Err())
		}

		c.logger.Warn("EVM call failed, retrying",
			zap.String("chain", c.chain.String()),
			zap.String("op", op),
			zap.Int("attempt", i+1),
			zap.Error(err),
		)

		if i < c.config.MaxRetries {
			select {
			case <-ctx.Done():
				return entities.NewProviderError(c.chain, op, ctx.Err())
			case <-time.After(c.config.RetryDelay):
			}
		}
	}
	return entities.NewProviderError(c.chain, op, fmt.Errorf("failed after %d retries: %w", c.config.MaxRetries, err))
}

// BalanceAt returns the latest native balance of address in wei
func (c *Client) BalanceAt(ctx context.Context, address string) (*big.Int, error) {
	var balance *big.Int
	err := c.retry(ctx, "balance", func(ctx context.Context) error {
		var err error
		balance, err = c.client.BalanceAt(ctx, common.HexToAddress(address), nil)
		return err
	})
	return balance, err
}

// TransactionByHash returns a mined transaction
func (c *Client) TransactionByHash(ctx context.Context, hash common.Hash) (*types.Transaction, error) {
	var tx *types.Transaction
	err := c.retry(ctx, "transaction", func(ctx context.Context) error {
		var err error
		var pending bool
		tx, pending, err = c.client.TransactionByHash(ctx, hash)
		if err == nil && pending {
			return fmt.Errorf("transaction %s is pending", hash.Hex())
		}
		return err
	})
	return tx, err
}

// TransactionReceipt returns the receipt of a mined transaction
func (c *Client) TransactionReceipt(ctx context.Context, hash common.Hash) (*types.Receipt, error) {
	var receipt *types.Receipt
	err := c.retry(ctx, "receipt", func(ctx context.Context) error {
		var err error
		receipt, err = c.client.TransactionReceipt(ctx, hash)
		return err
	})
	return receipt, err
}

// BlockTimestamp returns the timestamp of a block
func (c *Client) BlockTimestamp(ctx context.Context, blockNumber *big.Int) (time.Time, error) {
	var header *types.Header
	err := c.retry(ctx, "header", func(ctx context.Context) error {
		var err error
		header, err = c.client.HeaderByNumber(ctx, blockNumber)
		return err
	})
	if err != nil {
		return time.Time{}, err
	}
	return time.Unix(int64(header.Time), 0).UTC(), nil
}

// CallContract executes a read-only eth_call against the latest block
func (c *Client) CallContract(ctx context.Context, to common.Address, data []byte) ([]byte, error) {
	var result []byte
	err := c.retry(ctx, "eth_call", func(ctx context.Context) error {
		var err error
		result, err = c.client.CallContract(ctx, ethereum.CallMsg{To: &to, Data: data}, nil)
		return err
	})
	return result, err
}

// Sender recovers the sender of a signed transaction
func (c *Client) Sender(tx *types.Transaction) (common.Address, error) {
	return types.Sender(c.signer, tx)
}

// ChainID returns the chain ID
func (c *Client) ChainID() *big.Int {
	return c.chainID
}
