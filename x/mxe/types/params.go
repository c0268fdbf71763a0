package types

import (
	errorsmod "cosmossdk.io/errors"
)

const (
	// DefaultMaxArgumentBytes bounds the encoded argument buffer of one request
	DefaultMaxArgumentBytes uint32 = 1024
	// DefaultMaxInlineCircuitBytes is the size above which circuits must be registered off-chain
	DefaultMaxInlineCircuitBytes uint32 = 100 * 1024
	// DefaultMaxOutputs bounds the ciphertext slots of one cluster output
	DefaultMaxOutputs uint32 = 16
)

// Params are the MXE module parameters.
type Params struct {
	MaxArgumentBytes      uint32 `json:"max_argument_bytes"`
	MaxInlineCircuitBytes uint32 `json:"max_inline_circuit_bytes"`
	MaxOutputs            uint32 `json:"max_outputs"`
}

// DefaultParams returns default module parameters.
func DefaultParams() Params {
	return Params{
		MaxArgumentBytes:      DefaultMaxArgumentBytes,
		MaxInlineCircuitBytes: DefaultMaxInlineCircuitBytes,
		MaxOutputs:            DefaultMaxOutputs,
	}
}

// Validate performs basic validation of module parameters.
func (p Params) Validate() error {
	if p.MaxArgumentBytes == 0 {
		return errorsmod.Wrap(ErrInvalidParams, "max argument bytes must be positive")
	}
	if p.MaxInlineCircuitBytes == 0 {
		return errorsmod.Wrap(ErrInvalidParams, "max inline circuit bytes must be positive")
	}
	if p.MaxOutputs == 0 {
		return errorsmod.Wrap(ErrInvalidParams, "max outputs must be positive")
	}
	return nil
}
