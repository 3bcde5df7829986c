package ethereum

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

// TransferEventSignature is the keccak256 hash of Transfer(address,address,uint256)
var TransferEventSignature = common.HexToHash("0xddf252ad1be2c89b69c2b068fc378daa952ba7f163c4a11628f55a4df523b3ef")

// TokenTransfer is a decoded ERC-20 Transfer log
type TokenTransfer struct {
	Token    string
	From     string
	To       string
	Value    *big.Int
	LogIndex uint
}

// ParseTransferLog decodes a raw log into a TokenTransfer.
// Addresses are returned lowercased.
func ParseTransferLog(log types.Log) (*TokenTransfer, error) {
	// ERC-721 Transfer shares the signature but indexes the token id as a 4th topic
	if len(log.Topics) != 3 {
		return nil, fmt.Errorf("invalid number of topics: expected 3, got %d", len(log.Topics))
	}

	if log.Topics[0] != TransferEventSignature {
		return nil, fmt.Errorf("not a Transfer event")
	}

	// Topics[1] and Topics[2] are the indexed from/to addresses, left-padded to 32 bytes
	fromAddress := common.BytesToAddress(log.Topics[1].Bytes())
	toAddress := common.BytesToAddress(log.Topics[2].Bytes())

	if len(log.Data) != 32 {
		return nil, fmt.Errorf("invalid data length: expected 32, got %d", len(log.Data))
	}

	return &TokenTransfer{
		Token:    strings.ToLower(log.Address.Hex()),
		From:     strings.ToLower(fromAddress.Hex()),
		To:       strings.ToLower(toAddress.Hex()),
		Value:    new(big.Int).SetBytes(log.Data),
		LogIndex: log.Index,
	}, nil
}

// ParseTransferLogs decodes every Transfer log in logs.
// Returns parsed transfers and the indices of logs that looked like transfers but failed to decode.
func ParseTransferLogs(logs []types.Log) ([]TokenTransfer, []int) {
	transfers := make([]TokenTransfer, 0, len(logs))
	failedIndices := make([]int, 0)

	for i, log := range logs {
		if len(log.Topics) == 0 || log.Topics[0] != TransferEventSignature {
			continue
		}

		transfer, err := ParseTransferLog(log)
		if err != nil {
			failedIndices = append(failedIndices, i)
			continue
		}

		transfers = append(transfers, *transfer)
	}

	return transfers, failedIndices
}

// IsTransferEvent checks if a log is an ERC-20 Transfer event
func IsTransferEvent(log types.Log) bool {
	return len(log.Topics) == 3 && log.Topics[0] == TransferEventSignature
}
