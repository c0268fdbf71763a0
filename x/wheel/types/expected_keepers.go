package types

import (
	"context"

	mxetypes "github.com/TOBY0001/encrypted-wheel/x/mxe/types"
)

// MXEKeeper is the orchestration surface the wheel program queues through.
type MXEKeeper interface {
	RegisterDefinition(
		ctx context.Context,
		authority string,
		name string,
		source mxetypes.CircuitSource,
		signature mxetypes.CircuitSignature,
	) (mxetypes.ComputationDefinition, error)
	QueueComputation(
		ctx context.Context,
		submitter string,
		offset uint64,
		definitionID uint32,
		arguments []byte,
		callback mxetypes.CallbackSpec,
	) (mxetypes.ComputationRequest, error)
	GetDefinition(ctx context.Context, id uint32) (mxetypes.ComputationDefinition, error)
}
