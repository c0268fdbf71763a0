package types

import (
	"encoding/hex"
	"encoding/json"
	"fmt"

	mxetypes "github.com/TOBY0001/encrypted-wheel/x/mxe/types"
)

const (
	// SpinCircuitName is the registry name of the spin circuit.
	SpinCircuitName = "spin"

	// SpinCallbackInstruction is the instruction results are routed to.
	SpinCallbackInstruction = "spin_callback"

	// SpinCallbackTxs is the number of callback transactions a spin needs.
	SpinCallbackTxs = 1

	// DefaultSpinCircuitURL is where the compiled spin circuit is hosted.
	DefaultSpinCircuitURL = "https://raw.githubusercontent.com/TOBY0001/arcis-circuits/main/spin.arcis"
)

// SpinSignature is the parameter layout of the spin circuit: the requester's
// x25519 key and nonce, then the number of wheel segments.
func SpinSignature() mxetypes.CircuitSignature {
	return mxetypes.CircuitSignature{
		Parameters: []mxetypes.ArgType{
			mxetypes.ArgX25519PubKey,
			mxetypes.ArgPlaintextU128,
			mxetypes.ArgPlaintextU8,
		},
		Outputs: 1,
	}
}

// SpinCallback is the callback every spin is queued with.
func SpinCallback() mxetypes.CallbackSpec {
	return mxetypes.CallbackSpec{
		Module:         ModuleName,
		Instruction:    SpinCallbackInstruction,
		NumCallbackTxs: SpinCallbackTxs,
	}
}

// SpinStatus tracks a spin from queueing to settlement.
type SpinStatus string

const (
	SpinPending SpinStatus = "pending"
	SpinSettled SpinStatus = "settled"
	SpinAborted SpinStatus = "aborted"
)

// SpinRecord is one spin. Result holds the sealed segment; only the player
// can open it.
type SpinRecord struct {
	Offset        uint64                          `json:"offset"`
	Player        string                          `json:"player"`
	NumSegments   uint8                           `json:"num_segments"`
	EncryptionKey [mxetypes.X25519PubKeySize]byte `json:"encryption_key"`
	Nonce         string                          `json:"nonce"`
	Status        SpinStatus                      `json:"status"`
	Result        [mxetypes.CiphertextSize]byte   `json:"result"`
	AbortReason   string                          `json:"abort_reason,omitempty"`
	QueuedHeight  int64                           `json:"queued_height"`
	SettledHeight int64                           `json:"settled_height,omitempty"`
}

// ResultHex returns the sealed result as hex.
func (r SpinRecord) ResultHex() string {
	return hex.EncodeToString(r.Result[:])
}

// String implements fmt.Stringer.
func (r SpinRecord) String() string {
	bz, err := json.Marshal(r)
	if err != nil {
		return fmt.Sprintf("spin %d (%s)", r.Offset, r.Status)
	}
	return string(bz)
}
