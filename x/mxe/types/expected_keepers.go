package types

import (
	"context"
)

// ClusterResolver resolves the cluster configuration the queue and verifier
// check against. A missing cluster surfaces ErrClusterNotSet.
type ClusterResolver interface {
	ResolveClusterConfig(ctx context.Context) (ClusterConfig, error)
}

// DefinitionStorage resolves registered computation definitions.
type DefinitionStorage interface {
	GetDefinition(ctx context.Context, id uint32) (ComputationDefinition, error)
}

// CallbackHandler receives verified results for the module it is registered
// under. It is invoked at most once per offset.
type CallbackHandler interface {
	OnComputationCallback(ctx context.Context, event CallbackEvent) error
}

// AbortHandler is optionally implemented by callback handlers that want to
// observe aborted computations.
type AbortHandler interface {
	OnComputationAborted(ctx context.Context, offset uint64, reason string) error
}
