package entities

import (
	"errors"
	"fmt"
)

var (
	// ErrUnsupportedChain is returned for chain names outside the supported set
	ErrUnsupportedChain = errors.New("unsupported chain")

	// ErrInvalidAddress is returned for malformed wallet or asset addresses
	ErrInvalidAddress = errors.New("invalid address")

	// ErrUpstreamUnavailable marks a failed or timed out chain provider call
	ErrUpstreamUnavailable = errors.New("upstream unavailable")

	// ErrDecodeAmbiguous marks a transfer whose direction or amount could not be determined
	ErrDecodeAmbiguous = errors.New("ambiguous transfer")

	// ErrNotFound is returned when a requested record does not exist
	ErrNotFound = errors.New("not found")

	// ErrValidation marks a missing or malformed caller argument
	ErrValidation = errors.New("validation failed")
)

// ProviderError wraps a chain provider failure with the chain and operation
type ProviderError struct {
	Chain Chain
	Op    string
	Err   error
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Chain, e.Op, e.Err)
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}

// Is makes every provider error match ErrUpstreamUnavailable
func (e *ProviderError) Is(target error) bool {
	return target == ErrUpstreamUnavailable
}

// NewProviderError wraps err as an upstream failure for chain and op
func NewProviderError(chain Chain, op string, err error) error {
	if err == nil {
		return nil
	}
	return &ProviderError{Chain: chain, Op: op, Err: err}
}
