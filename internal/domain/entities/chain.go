package entities

import (
	"fmt"
	"strings"
)

// Chain identifies one supported network
type Chain string

const (
	ChainEthereum Chain = "ethereum-mainnet"
	ChainBase     Chain = "base-mainnet"
	ChainSolana   Chain = "solana-mainnet"
)

// Family groups chains that share a transaction model and decoder
type Family string

const (
	FamilyEVM    Family = "evm"
	FamilySolana Family = "solana"
)

// NativeAssetID is the sentinel asset id for a chain's base currency
const NativeAssetID = "native"

// NativeAsset describes a chain's base currency
type NativeAsset struct {
	Symbol   string
	Name     string
	Decimals int32
}

type chainInfo struct {
	family Family
	native NativeAsset
}

var supportedChains = map[Chain]chainInfo{
	ChainEthereum: {family: FamilyEVM, native: NativeAsset{Symbol: "ETH", Name: "Ethereum", Decimals: 18}},
	ChainBase:     {family: FamilyEVM, native: NativeAsset{Symbol: "ETH", Name: "Ethereum", Decimals: 18}},
	ChainSolana:   {family: FamilySolana, native: NativeAsset{Symbol: "SOL", Name: "Solana", Decimals: 9}},
}

// SupportedChains returns all chains in a stable order
func SupportedChains() []Chain {
	return []Chain{ChainEthereum, ChainBase, ChainSolana}
}

// ParseChain validates a chain name
func ParseChain(s string) (Chain, error) {
	c := Chain(strings.ToLower(strings.TrimSpace(s)))
	if _, ok := supportedChains[c]; !ok {
		return "", fmt.Errorf("%w: %q", ErrUnsupportedChain, s)
	}
	return c, nil
}

// Family returns the decoder family of the chain
func (c Chain) Family() Family {
	return supportedChains[c].family
}

// Native returns the chain's base currency
func (c Chain) Native() NativeAsset {
	return supportedChains[c].native
}

// String implements fmt.Stringer
func (c Chain) String() string {
	return string(c)
}

// NormalizeAddress lowercases addresses on case-insensitive chains.
// Solana base58 addresses are case-sensitive and kept verbatim.
func (c Chain) NormalizeAddress(addr string) string {
	addr = strings.TrimSpace(addr)
	if c.Family() == FamilyEVM {
		return strings.ToLower(addr)
	}
	return addr
}

// ValidateAddress checks the address format for the chain family
func (c Chain) ValidateAddress(addr string) error {
	switch c.Family() {
	case FamilyEVM:
		if len(addr) != 42 || !strings.HasPrefix(strings.ToLower(addr), "0x") || !isHex(addr[2:]) {
			return fmt.Errorf("%w: %q", ErrInvalidAddress, addr)
		}
	case FamilySolana:
		if len(addr) < 32 || len(addr) > 44 || !isBase58(addr) {
			return fmt.Errorf("%w: %q", ErrInvalidAddress, addr)
		}
	default:
		return fmt.Errorf("%w: %q", ErrUnsupportedChain, c)
	}
	return nil
}

func isHex(s string) bool {
	for _, r := range s {
		switch {
		case r >= '0' && r <= '9', r >= 'a' && r <= 'f', r >= 'A' && r <= 'F':
		default:
			return false
		}
	}
	return true
}

const base58Alphabet = "123456789ABCDEFGHJKLMNPQRSTUVWXYZabcdefghijkmnopqrstuvwxyz"

func isBase58(s string) bool {
	for _, r := range s {
		if !strings.ContainsRune(base58Alphabet, r) {
			return false
		}
	}
	return true
}

// NormalizeWallet normalizes an address whose chain is not known yet:
// anything shaped like an EVM address is lowercased.
func NormalizeWallet(addr string) string {
	addr = strings.TrimSpace(addr)
	if ChainEthereum.ValidateAddress(addr) == nil {
		return strings.ToLower(addr)
	}
	return addr
}

// ChainsFor returns the chains among candidates whose address format accepts addr
func ChainsFor(addr string, candidates []Chain) []Chain {
	var out []Chain
	for _, c := range candidates {
		if c.ValidateAddress(c.NormalizeAddress(addr)) == nil {
			out = append(out, c)
		}
	}
	return out
}
