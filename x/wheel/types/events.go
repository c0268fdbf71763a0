package types

// Event types for the wheel module
const (
	EventTypeSpin        = "spin"
	EventTypeSpinQueued  = "wheel_spin_queued"
	EventTypeSpinAborted = "wheel_spin_aborted"
)

// Event attribute keys for the wheel module
const (
	AttributeKeyOffset      = "offset"
	AttributeKeyResult      = "result"
	AttributeKeyPlayer      = "player"
	AttributeKeyNumSegments = "num_segments"
	AttributeKeyReason      = "reason"
)
