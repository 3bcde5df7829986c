/*
 * Copyright (c) 2024 Bima Kharisma Wicaksana
 * GitHub: https://github.com/bimakw
 *
 * Licensed under MIT License with Attribution Requirement.
 * See LICENSE file for details.
 */

package ethereum

import (
	"bytes"
	"context"
	"encoding/hex"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"github.com/bimakw/wallet-indexer/internal/domain/entities"
	"github.com/bimakw/wallet-indexer/internal/domain/providers"
)

// ERC20SourceName identifies metadata read from the token contract itself
const ERC20SourceName = "erc20"

// ContractCaller executes read-only contract calls
type ContractCaller interface {
	CallContract(ctx context.Context, to common.Address, data []byte) ([]byte, error)
}

// MetadataSource reads ERC-20 token metadata via eth_call
type MetadataSource struct {
	callers map[entities.Chain]ContractCaller
	logger  *zap.Logger
}

var _ providers.MetadataSource = (*MetadataSource)(nil)

// NewMetadataSource creates a metadata source over one caller per EVM chain
func NewMetadataSource(callers map[entities.Chain]ContractCaller, logger *zap.Logger) *MetadataSource {
	return &MetadataSource{
		callers: callers,
		logger:  logger,
	}
}

// ERC-20 function selectors (first 4 bytes of keccak256 hash)
var (
	// name() -> 0x06fdde03
	nameSig = common.FromHex("0x06fdde03")
	// symbol() -> 0x95d89b41
	symbolSig = common.FromHex("0x95d89b41")
	// decimals() -> 0x313ce567
	decimalsSig = common.FromHex("0x313ce567")
)

// Name implements providers.MetadataSource
func (s *MetadataSource) Name() string {
	return ERC20SourceName
}

// Supports implements providers.MetadataSource
func (s *MetadataSource) Supports(chain entities.Chain) bool {
	_, ok := s.callers[chain]
	return ok
}

// Lookup reads symbol, name and decimals from the contract.
// A contract that does not answer decimals() is treated as not a token.
func (s *MetadataSource) Lookup(ctx context.Context, chain entities.Chain, tokenAddress string) (*entities.TokenMetadata, error) {
	caller, ok := s.callers[chain]
	if !ok {
		return nil, nil
	}
	if !common.IsHexAddress(tokenAddress) {
		return nil, nil
	}
	addr := common.HexToAddress(tokenAddress)

	decimals, err := s.fetchDecimals(ctx, caller, addr)
	if err != nil {
		s.logger.Debug("Contract did not answer decimals, skipping",
			zap.String("chain", chain.String()),
			zap.String("token", tokenAddress),
			zap.Error(err),
		)
		return nil, nil
	}

	symbol, err := s.fetchString(ctx, caller, addr, symbolSig)
	if err != nil || symbol == "" {
		s.logger.Warn("Failed to fetch token symbol, using fallback",
			zap.String("token", tokenAddress),
			zap.Error(err),
		)
		symbol = "UNK"
	}

	name, err := s.fetchString(ctx, caller, addr, nameSig)
	if err != nil || name == "" {
		s.logger.Warn("Failed to fetch token name, using fallback",
			zap.String("token", tokenAddress),
			zap.Error(err),
		)
		name = symbol
	}

	return &entities.TokenMetadata{
		Chain:     chain,
		Address:   strings.ToLower(tokenAddress),
		Symbol:    symbol,
		Name:      name,
		Decimals:  int32(decimals),
		Source:    ERC20SourceName,
		UpdatedAt: time.Now().UTC(),
	}, nil
}

func (s *MetadataSource) fetchString(ctx context.Context, caller ContractCaller, addr common.Address, selector []byte) (string, error) {
	result, err := caller.CallContract(ctx, addr, selector)
	if err != nil {
		return "", err
	}
	return decodeStringOrBytes32(result)
}

func (s *MetadataSource) fetchDecimals(ctx context.Context, caller ContractCaller, addr common.Address) (uint8, error) {
	result, err := caller.CallContract(ctx, addr, decimalsSig)
	if err != nil {
		return 0, err
	}

	if len(result) == 0 {
		return 0, fmt.Errorf("empty result for decimals")
	}

	// Decimals returns uint8, but padded to 32 bytes
	if len(result) < 32 {
		return 0, fmt.Errorf("invalid decimals response length: %d", len(result))
	}

	return result[31], nil
}

// decodeStringOrBytes32 decodes a response that could be either:
// 1. ABI-encoded string: offset (32 bytes) + length (32 bytes) + data (padded to 32 bytes)
// 2. bytes32: raw 32 bytes (e.g., MKR token)
func decodeStringOrBytes32(data []byte) (string, error) {
	if len(data) == 0 {
		return "", fmt.Errorf("empty data")
	}

	// If data is less than 32 bytes, invalid
	if len(data) < 32 {
		return "", fmt.Errorf("data too short: %d bytes", len(data))
	}

	// Try to decode as ABI-encoded string first
	// Check if first 32 bytes could be an offset (typically 0x20 = 32)
	if len(data) >= 64 {
		offset := new(big.Int).SetBytes(data[:32])
		if offset.Uint64() == 32 {
			// This looks like an ABI-encoded string
			length := new(big.Int).SetBytes(data[32:64])
			strLen := int(length.Uint64())

			// Handle empty string (length = 0)
			if strLen == 0 {
				return "", nil
			}

			if len(data) >= 64+strLen {
				strData := data[64 : 64+strLen]
				return strings.TrimRight(string(strData), "\x00"), nil
			}
		}
	}

	// Fallback: treat as bytes32
	// Remove trailing null bytes
	result := bytes.TrimRight(data[:32], "\x00")

	// Check if result is printable ASCII
	if isPrintableASCII(result) {
		return string(result), nil
	}

	// Return hex representation if not printable
	return "0x" + hex.EncodeToString(data[:32]), nil
}

// isPrintableASCII checks if all bytes are printable ASCII characters
func isPrintableASCII(data []byte) bool {
	for _, b := range data {
		if b < 32 || b > 126 {
			return false
		}
	}
	return len(data) > 0
}
