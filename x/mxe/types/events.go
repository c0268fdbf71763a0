package types

// Event types for the MXE module
// All event types use lowercase with underscore separator (module_action format)
const (
	EventTypeDefinitionRegistered = "mxe_definition_registered"

	EventTypeComputationQueued    = "mxe_computation_queued"
	EventTypeComputationExecuting = "mxe_computation_executing"
	EventTypeComputationCompleted = "mxe_computation_completed"
	EventTypeComputationAborted   = "mxe_computation_aborted"
	EventTypeCallback             = "mxe_callback"

	EventTypeVerificationFailed = "mxe_verification_failed" // #nosec G101 - event identifiers, not credentials
	EventTypeDeliveryRejected   = "mxe_delivery_rejected"

	EventTypeClusterUpdated = "mxe_cluster_updated"

	EventTypeCircuitBreakerOpen  = "mxe_circuit_breaker_open"
	EventTypeCircuitBreakerClose = "mxe_circuit_breaker_close"
)

// Event attribute keys for the MXE module
const (
	AttributeKeyOffset       = "offset"
	AttributeKeyDefinitionID = "definition_id"
	AttributeKeyName         = "name"
	AttributeKeySourceKind   = "source_kind"
	AttributeKeySourceHash   = "source_hash"
	AttributeKeySubmitter    = "submitter"
	AttributeKeyExecutor     = "executor"
	AttributeKeyModule       = "callback_module"
	AttributeKeyInstruction  = "callback_instruction"
	AttributeKeyResult       = "result"
	AttributeKeyEpoch        = "epoch"
	AttributeKeyThreshold    = "threshold"
	AttributeKeySigners      = "signers"
	AttributeKeyReason       = "reason"
	AttributeKeyActor        = "actor"
	AttributeKeyStatus       = "status"
)
