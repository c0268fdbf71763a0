package keeper

import (
	"context"
	"encoding/json"
	"fmt"

	errorsmod "cosmossdk.io/errors"
	storetypes "cosmossdk.io/store/types"
	sdk "github.com/cosmos/cosmos-sdk/types"

	"github.com/TOBY0001/encrypted-wheel/x/mxe/types"
)

// QueueComputation places a computation under offset. The cluster must be
// resolvable before anything is written, and an offset is never reused: once
// a request reaches a terminal status its offset stays retired.
func (k Keeper) QueueComputation(
	ctx context.Context,
	submitter string,
	offset uint64,
	definitionID uint32,
	arguments []byte,
	callback types.CallbackSpec,
) (types.ComputationRequest, error) {
	sdkCtx := sdk.UnwrapSDKContext(ctx)

	if err := k.CheckCircuitBreaker(ctx); err != nil {
		k.metrics.ComputationsRejected.WithLabelValues("paused").Inc()
		return types.ComputationRequest{}, err
	}

	if _, err := k.clusters.ResolveClusterConfig(ctx); err != nil {
		k.metrics.ComputationsRejected.WithLabelValues("cluster_not_set").Inc()
		return types.ComputationRequest{}, err
	}

	def, err := k.definitions.GetDefinition(ctx, definitionID)
	if err != nil {
		k.metrics.ComputationsRejected.WithLabelValues("unregistered").Inc()
		return types.ComputationRequest{}, err
	}

	store := k.getStore(ctx)
	if store.Has(types.RequestKey(offset)) {
		k.metrics.ComputationsRejected.WithLabelValues("duplicate_offset").Inc()
		return types.ComputationRequest{}, errorsmod.Wrapf(types.ErrDuplicateOffset, "offset %d", offset)
	}

	params, err := k.GetParams(ctx)
	if err != nil {
		return types.ComputationRequest{}, fmt.Errorf("failed to get params: %w", err)
	}
	if want := types.EncodedWidth(def.Signature.Parameters); len(arguments) != want {
		k.metrics.ComputationsRejected.WithLabelValues("encoding").Inc()
		return types.ComputationRequest{}, errorsmod.Wrapf(types.ErrEncodingMismatch, "%s expects %d argument bytes, got %d", def.Name, want, len(arguments))
	}
	if uint64(len(arguments)) > uint64(params.MaxArgumentBytes) {
		k.metrics.ComputationsRejected.WithLabelValues("encoding").Inc()
		return types.ComputationRequest{}, errorsmod.Wrapf(types.ErrEncodingMismatch, "%d argument bytes exceed limit %d", len(arguments), params.MaxArgumentBytes)
	}

	if err := callback.Validate(); err != nil {
		k.metrics.ComputationsRejected.WithLabelValues("callback").Inc()
		return types.ComputationRequest{}, err
	}
	if _, ok := k.callbacks[callback.Module]; !ok {
		k.metrics.ComputationsRejected.WithLabelValues("callback").Inc()
		return types.ComputationRequest{}, errorsmod.Wrapf(types.ErrCallbackHandlerAbsent, "%s", callback.Module)
	}

	req := types.ComputationRequest{
		Offset:       offset,
		DefinitionID: definitionID,
		Arguments:    append([]byte{}, arguments...),
		Callback:     callback,
		Status:       types.StatusQueued,
		Submitter:    submitter,
		QueuedHeight: sdkCtx.BlockHeight(),
	}
	if err := k.SetRequest(ctx, req); err != nil {
		return types.ComputationRequest{}, fmt.Errorf("failed to store request: %w", err)
	}
	k.setStatusIndex(ctx, req.Status, offset)

	sdkCtx.EventManager().EmitEvent(
		sdk.NewEvent(
			types.EventTypeComputationQueued,
			sdk.NewAttribute(types.AttributeKeyOffset, fmt.Sprintf("%d", offset)),
			sdk.NewAttribute(types.AttributeKeyDefinitionID, fmt.Sprintf("%d", definitionID)),
			sdk.NewAttribute(types.AttributeKeyName, def.Name),
			sdk.NewAttribute(types.AttributeKeySubmitter, submitter),
			sdk.NewAttribute(types.AttributeKeyModule, callback.Module),
			sdk.NewAttribute(types.AttributeKeyInstruction, callback.Instruction),
		),
	)

	k.metrics.ComputationsQueued.WithLabelValues(def.Name).Inc()
	k.Logger(ctx).Debug("computation queued", "offset", offset, "definition", def.Name, "submitter", submitter)

	return req, nil
}

// MarkExecuting records that the cluster picked up a queued request. Only a
// signer of the active cluster may claim it. executor is taken as already
// authenticated by the transaction signature.
func (k Keeper) MarkExecuting(ctx context.Context, executor string, offset uint64) error {
	sdkCtx := sdk.UnwrapSDKContext(ctx)

	cfg, err := k.clusters.ResolveClusterConfig(ctx)
	if err != nil {
		return err
	}
	if _, ok := cfg.SignerIndex(executor); !ok {
		return errorsmod.Wrapf(types.ErrUnauthorizedSigner, "%s is not in cluster epoch %d", executor, cfg.Epoch)
	}

	req, err := k.GetRequest(ctx, offset)
	if err != nil {
		return err
	}
	if err := k.transition(ctx, &req, types.StatusExecuting); err != nil {
		return err
	}
	req.Executor = executor
	req.ExecutingHeight = sdkCtx.BlockHeight()
	if err := k.SetRequest(ctx, req); err != nil {
		return fmt.Errorf("failed to store request: %w", err)
	}

	sdkCtx.EventManager().EmitEvent(
		sdk.NewEvent(
			types.EventTypeComputationExecuting,
			sdk.NewAttribute(types.AttributeKeyOffset, fmt.Sprintf("%d", offset)),
			sdk.NewAttribute(types.AttributeKeyExecutor, executor),
			sdk.NewAttribute(types.AttributeKeyEpoch, fmt.Sprintf("%d", cfg.Epoch)),
		),
	)
	return nil
}

// GetRequest returns the request stored under offset.
func (k Keeper) GetRequest(ctx context.Context, offset uint64) (types.ComputationRequest, error) {
	bz := k.getStore(ctx).Get(types.RequestKey(offset))
	if bz == nil {
		return types.ComputationRequest{}, errorsmod.Wrapf(types.ErrRequestNotFound, "offset %d", offset)
	}

	var req types.ComputationRequest
	if err := json.Unmarshal(bz, &req); err != nil {
		return types.ComputationRequest{}, fmt.Errorf("GetRequest: unmarshal: %w", err)
	}
	return req, nil
}

// SetRequest stores a request. Status index maintenance is the caller's job.
func (k Keeper) SetRequest(ctx context.Context, req types.ComputationRequest) error {
	bz, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("SetRequest: marshal: %w", err)
	}
	k.getStore(ctx).Set(types.RequestKey(req.Offset), bz)
	return nil
}

// IterateRequests iterates over all requests in offset order
func (k Keeper) IterateRequests(ctx context.Context, cb func(req types.ComputationRequest) (stop bool, err error)) error {
	iterator := storetypes.KVStorePrefixIterator(k.getStore(ctx), types.RequestKeyPrefix)
	defer iterator.Close()

	for ; iterator.Valid(); iterator.Next() {
		var req types.ComputationRequest
		if err := json.Unmarshal(iterator.Value(), &req); err != nil {
			return err
		}
		stop, err := cb(req)
		if err != nil {
			return err
		}
		if stop {
			break
		}
	}
	return nil
}

// IterateRequestsByStatus walks one status bucket in offset order.
func (k Keeper) IterateRequestsByStatus(ctx context.Context, status types.RequestStatus, cb func(req types.ComputationRequest) (stop bool, err error)) error {
	prefix := types.RequestStatusPrefix(status)
	iterator := storetypes.KVStorePrefixIterator(k.getStore(ctx), prefix)
	defer iterator.Close()

	for ; iterator.Valid(); iterator.Next() {
		offset := types.BytesToUint64(iterator.Key()[len(prefix):])
		req, err := k.GetRequest(ctx, offset)
		if err != nil {
			return err
		}
		stop, err := cb(req)
		if err != nil {
			return err
		}
		if stop {
			break
		}
	}
	return nil
}

// RequestsByStatus collects up to limit requests of one status. A zero
// limit returns all of them.
func (k Keeper) RequestsByStatus(ctx context.Context, status types.RequestStatus, limit int) ([]types.ComputationRequest, error) {
	var out []types.ComputationRequest
	err := k.IterateRequestsByStatus(ctx, status, func(req types.ComputationRequest) (bool, error) {
		out = append(out, req)
		return limit > 0 && len(out) >= limit, nil
	})
	return out, err
}

// PendingRequests returns queued requests (the mempool) followed by
// executing ones (the execpool).
func (k Keeper) PendingRequests(ctx context.Context) ([]types.ComputationRequest, error) {
	queued, err := k.RequestsByStatus(ctx, types.StatusQueued, 0)
	if err != nil {
		return nil, err
	}
	executing, err := k.RequestsByStatus(ctx, types.StatusExecuting, 0)
	if err != nil {
		return nil, err
	}
	return append(queued, executing...), nil
}

// RefreshPendingGauge sets the pending computations gauge from the queued
// and executing requests in ctx and returns their number.
func (k Keeper) RefreshPendingGauge(ctx context.Context) (int, error) {
	pending, err := k.PendingRequests(ctx)
	if err != nil {
		return 0, err
	}
	k.metrics.PendingComputations.Set(float64(len(pending)))
	return len(pending), nil
}

// transition moves req to next, keeping the status index in step.
func (k Keeper) transition(ctx context.Context, req *types.ComputationRequest, next types.RequestStatus) error {
	if !req.Status.CanTransitionTo(next) {
		return errorsmod.Wrapf(types.ErrInvalidStatusTransition, "offset %d: %s -> %s", req.Offset, req.Status, next)
	}
	k.deleteStatusIndex(ctx, req.Status, req.Offset)
	k.setStatusIndex(ctx, next, req.Offset)
	req.Status = next
	return nil
}

func (k Keeper) setStatusIndex(ctx context.Context, status types.RequestStatus, offset uint64) {
	k.getStore(ctx).Set(types.RequestByStatusKey(status, offset), []byte{1})
}

func (k Keeper) deleteStatusIndex(ctx context.Context, status types.RequestStatus, offset uint64) {
	k.getStore(ctx).Delete(types.RequestByStatusKey(status, offset))
}
