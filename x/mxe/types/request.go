package types

import (
	"encoding/json"
	"fmt"
	"strings"

	errorsmod "cosmossdk.io/errors"
)

// RequestStatus is the lifecycle state of a computation request.
type RequestStatus uint8

const (
	StatusQueued RequestStatus = iota + 1
	StatusExecuting
	StatusCompleted
	StatusAborted
)

// AllStatuses lists every status in lifecycle order.
var AllStatuses = []RequestStatus{StatusQueued, StatusExecuting, StatusCompleted, StatusAborted}

func (s RequestStatus) String() string {
	switch s {
	case StatusQueued:
		return "queued"
	case StatusExecuting:
		return "executing"
	case StatusCompleted:
		return "completed"
	case StatusAborted:
		return "aborted"
	default:
		return fmt.Sprintf("unknown(%d)", uint8(s))
	}
}

// IsTerminal reports whether no transition leaves this status.
func (s RequestStatus) IsTerminal() bool {
	return s == StatusCompleted || s == StatusAborted
}

// CanTransitionTo encodes Queued -> Executing -> {Completed | Aborted}.
func (s RequestStatus) CanTransitionTo(next RequestStatus) bool {
	switch s {
	case StatusQueued:
		return next == StatusExecuting
	case StatusExecuting:
		return next == StatusCompleted || next == StatusAborted
	default:
		return false
	}
}

// MarshalJSON writes the status name.
func (s RequestStatus) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

// UnmarshalJSON reads a status name.
func (s *RequestStatus) UnmarshalJSON(bz []byte) error {
	var name string
	if err := json.Unmarshal(bz, &name); err != nil {
		return err
	}
	parsed, err := ParseRequestStatus(name)
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

// ParseRequestStatus parses a status name.
func ParseRequestStatus(name string) (RequestStatus, error) {
	for _, s := range AllStatuses {
		if s.String() == strings.ToLower(name) {
			return s, nil
		}
	}
	return 0, fmt.Errorf("unknown request status %q", name)
}

// CallbackSpec names the program instruction the result is delivered to.
type CallbackSpec struct {
	Module         string `json:"module"`
	Instruction    string `json:"instruction"`
	NumCallbackTxs uint32 `json:"num_callback_txs"`
}

// Validate checks the callback can be routed.
func (c CallbackSpec) Validate() error {
	if c.Module == "" {
		return errorsmod.Wrap(ErrInvalidCallback, "callback module is required")
	}
	if c.Instruction == "" {
		return errorsmod.Wrap(ErrInvalidCallback, "callback instruction is required")
	}
	if c.NumCallbackTxs == 0 {
		return errorsmod.Wrap(ErrInvalidCallback, "at least one callback transaction is required")
	}
	return nil
}

// ComputationRequest is one queued computation, identified by its offset.
type ComputationRequest struct {
	Offset          uint64        `json:"offset"`
	DefinitionID    uint32        `json:"definition_id"`
	Arguments       []byte        `json:"arguments"`
	Callback        CallbackSpec  `json:"callback"`
	Status          RequestStatus `json:"status"`
	Submitter       string        `json:"submitter"`
	Executor        string        `json:"executor,omitempty"`
	QueuedHeight    int64         `json:"queued_height"`
	ExecutingHeight int64         `json:"executing_height,omitempty"`
	FinalizedHeight int64         `json:"finalized_height,omitempty"`
	AbortReason     string        `json:"abort_reason,omitempty"`
}

// VerificationOutcome is the typed result of checking a cluster output.
// Exactly one of Ciphertexts (verified) or Err (failed) is meaningful.
type VerificationOutcome struct {
	Offset      uint64
	Ciphertexts [][CiphertextSize]byte
	SignerCount int
	Err         error
}

// Verified reports whether the output passed the quorum check.
func (o VerificationOutcome) Verified() bool {
	return o.Err == nil && len(o.Ciphertexts) > 0
}

// VerificationFailed builds a failed outcome wrapping ErrVerificationFailed.
func VerificationFailed(offset uint64, format string, args ...interface{}) VerificationOutcome {
	return VerificationOutcome{
		Offset: offset,
		Err:    errorsmod.Wrapf(ErrVerificationFailed, format, args...),
	}
}
