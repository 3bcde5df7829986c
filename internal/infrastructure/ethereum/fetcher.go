package ethereum

import (
	"context"
	"encoding/json"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/bimakw/wallet-indexer/internal/domain/entities"
)

// Fetcher loads full transaction records from an EVM node
type Fetcher struct {
	client *Client
	logger *zap.Logger
}

// NewFetcher creates a new transaction detail fetcher
func NewFetcher(client *Client, logger *zap.Logger) *Fetcher {
	return &Fetcher{
		client: client,
		logger: logger,
	}
}

// FetchTransaction loads the transaction, its receipt and block timestamp
func (f *Fetcher) FetchTransaction(ctx context.Context, txHash string) (*entities.RawTransaction, error) {
	if !strings.HasPrefix(txHash, "0x") || len(txHash) != 66 {
		return nil, fmt.Errorf("%w: transaction hash %q", entities.ErrInvalidAddress, txHash)
	}
	hash := common.HexToHash(txHash)

	var (
		tx      *types.Transaction
		receipt *types.Receipt
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		tx, err = f.client.TransactionByHash(gctx, hash)
		return err
	})
	g.Go(func() error {
		var err error
		receipt, err = f.client.TransactionReceipt(gctx, hash)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("failed to fetch transaction %s: %w", txHash, err)
	}

	from, err := f.client.Sender(tx)
	if err != nil {
		return nil, fmt.Errorf("failed to recover sender of %s: %w", txHash, err)
	}

	var observedAt *time.Time
	var sequence *int64
	if receipt.BlockNumber != nil {
		n := receipt.BlockNumber.Int64()
		sequence = &n

		ts, err := f.client.BlockTimestamp(ctx, receipt.BlockNumber)
		if err != nil {
			// A missing timestamp only affects ordering, the transfer itself is still valid
			f.logger.Warn("Failed to fetch block timestamp",
				zap.String("tx", txHash),
				zap.Error(err),
			)
		} else {
			observedAt = &ts
		}
	}

	to := ""
	if tx.To() != nil {
		to = strings.ToLower(tx.To().Hex())
	}

	gasPrice := receipt.EffectiveGasPrice
	if gasPrice == nil {
		gasPrice = tx.GasPrice()
	}

	logs := make([]types.Log, 0, len(receipt.Logs))
	for _, l := range receipt.Logs {
		if l != nil {
			logs = append(logs, *l)
		}
	}

	payload, err := json.Marshal(struct {
		Transaction *types.Transaction `json:"transaction"`
		Receipt     *types.Receipt     `json:"receipt"`
	}{tx, receipt})
	if err != nil {
		return nil, fmt.Errorf("failed to encode transaction payload: %w", err)
	}

	return &entities.RawTransaction{
		Chain:       f.client.Chain(),
		ID:          strings.ToLower(txHash),
		SequenceRef: sequence,
		ObservedAt:  observedAt,
		EVM: &entities.EVMTransaction{
			Hash:     strings.ToLower(txHash),
			From:     strings.ToLower(from.Hex()),
			To:       to,
			Value:    new(big.Int).Set(tx.Value()),
			GasUsed:  receipt.GasUsed,
			GasPrice: gasPrice,
			Success:  receipt.Status == types.ReceiptStatusSuccessful,
			Logs:     logs,
		},
		Payload: payload,
	}, nil
}
