package types

import (
	errorsmod "cosmossdk.io/errors"
)

// MXE module sentinel errors. Callers branch on these with errors.Is.
var (
	// Registry errors
	ErrUnregisteredDefinition = errorsmod.Register(ModuleName, 2, "computation definition not registered")
	ErrAlreadyRegistered      = errorsmod.Register(ModuleName, 3, "computation definition already registered")
	ErrInvalidCircuitSource   = errorsmod.Register(ModuleName, 4, "invalid circuit source")
	ErrUnsetCircuitHash       = errorsmod.Register(ModuleName, 5, "off-chain circuit source has no content hash")
	ErrCircuitHashMismatch    = errorsmod.Register(ModuleName, 6, "circuit bytes do not match registered hash")

	// Queue errors
	ErrDuplicateOffset         = errorsmod.Register(ModuleName, 10, "computation offset already in use")
	ErrEncodingMismatch        = errorsmod.Register(ModuleName, 11, "argument encoding does not match circuit signature")
	ErrRequestNotFound         = errorsmod.Register(ModuleName, 12, "computation request not found")
	ErrInvalidStatusTransition = errorsmod.Register(ModuleName, 13, "invalid computation status transition")
	ErrInvalidCallback         = errorsmod.Register(ModuleName, 14, "invalid callback specification")
	ErrQueuePaused             = errorsmod.Register(ModuleName, 15, "computation queue is paused")

	// Cluster errors
	ErrClusterNotSet         = errorsmod.Register(ModuleName, 20, "the cluster is not set")
	ErrInvalidClusterConfig  = errorsmod.Register(ModuleName, 21, "invalid cluster configuration")
	ErrUnauthorizedSigner    = errorsmod.Register(ModuleName, 22, "signer is not part of the cluster")
	ErrVerificationFailed    = errorsmod.Register(ModuleName, 23, "cluster output verification failed")
	ErrAbortedComputation    = errorsmod.Register(ModuleName, 24, "the computation was aborted")
	ErrAlreadyFinalized      = errorsmod.Register(ModuleName, 25, "computation request already finalized")
	ErrCallbackHandlerAbsent = errorsmod.Register(ModuleName, 26, "no callback handler registered for module")

	// Administrative errors
	ErrUnauthorized                = errorsmod.Register(ModuleName, 30, "unauthorized operation")
	ErrInvalidParams               = errorsmod.Register(ModuleName, 31, "invalid module parameters")
	ErrCircuitBreakerAlreadyOpen   = errorsmod.Register(ModuleName, 32, "circuit breaker already open")
	ErrCircuitBreakerAlreadyClosed = errorsmod.Register(ModuleName, 33, "circuit breaker already closed")
)
