package keeper

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"

	errorsmod "cosmossdk.io/errors"
	sdk "github.com/cosmos/cosmos-sdk/types"

	"github.com/TOBY0001/encrypted-wheel/app/telemetry"
	"github.com/TOBY0001/encrypted-wheel/x/mxe/types"
)

// Deliver finalizes an executing request with a verification outcome.
//
// A verified outcome completes the request: the first ciphertext becomes the
// result, the registered handler for the callback module runs, and exactly
// one callback event is recorded. The handler runs against a cached context
// so a failing handler leaves the request executing and nothing is emitted.
//
// A failed outcome aborts the request and returns ErrAbortedComputation.
// The abort is a state change like any other: callers keep the writes made
// before the error. The callback module's abort handler runs against a
// cached context; if it fails its writes are dropped and its error is
// joined to ErrAbortedComputation.
// Requests that already reached a terminal status are rejected with
// ErrAlreadyFinalized without touching state, which makes repeated delivery
// harmless.
func (k Keeper) Deliver(ctx context.Context, offset uint64, outcome types.VerificationOutcome) (types.CallbackEvent, error) {
	sdkCtx := sdk.UnwrapSDKContext(ctx)
	_, span := telemetry.StartComputationSpan(ctx, types.ModuleName, "deliver", offset, sdkCtx.BlockHeight())
	defer span.End()

	event, err := k.deliver(sdkCtx, offset, outcome)
	telemetry.RecordError(span, err)
	return event, err
}

func (k Keeper) deliver(sdkCtx sdk.Context, offset uint64, outcome types.VerificationOutcome) (types.CallbackEvent, error) {
	req, err := k.GetRequest(sdkCtx, offset)
	if err != nil {
		return types.CallbackEvent{}, err
	}

	if req.Status.IsTerminal() {
		k.metrics.DeliveryRejections.WithLabelValues("finalized").Inc()
		k.Logger(sdkCtx).Debug("ignoring delivery for finalized computation", "offset", offset, "status", req.Status)
		return types.CallbackEvent{}, errorsmod.Wrapf(types.ErrAlreadyFinalized, "offset %d is %s", offset, req.Status)
	}
	if req.Status != types.StatusExecuting {
		k.metrics.DeliveryRejections.WithLabelValues("not_executing").Inc()
		return types.CallbackEvent{}, errorsmod.Wrapf(types.ErrInvalidStatusTransition, "offset %d is %s, not executing", offset, req.Status)
	}
	if outcome.Offset != offset {
		k.metrics.DeliveryRejections.WithLabelValues("offset").Inc()
		return types.CallbackEvent{}, errorsmod.Wrapf(types.ErrVerificationFailed, "outcome for offset %d delivered to %d", outcome.Offset, offset)
	}

	if !outcome.Verified() {
		return types.CallbackEvent{}, k.abort(sdkCtx, req, outcome.Err)
	}
	return k.complete(sdkCtx, req, outcome)
}

func (k Keeper) complete(sdkCtx sdk.Context, req types.ComputationRequest, outcome types.VerificationOutcome) (types.CallbackEvent, error) {
	event := types.CallbackEvent{
		Offset:       req.Offset,
		DefinitionID: req.DefinitionID,
		Module:       req.Callback.Module,
		Instruction:  req.Callback.Instruction,
		Result:       outcome.Ciphertexts[0],
		Height:       sdkCtx.BlockHeight(),
	}

	handler, ok := k.callbacks[req.Callback.Module]
	if !ok {
		return types.CallbackEvent{}, errorsmod.Wrapf(types.ErrCallbackHandlerAbsent, "%s", req.Callback.Module)
	}
	cacheCtx, write := sdkCtx.CacheContext()
	if err := handler.OnComputationCallback(cacheCtx, event); err != nil {
		k.metrics.DeliveryRejections.WithLabelValues("handler").Inc()
		return types.CallbackEvent{}, errorsmod.Wrapf(err, "callback %s.%s for offset %d", req.Callback.Module, req.Callback.Instruction, req.Offset)
	}
	write()

	if err := k.transition(sdkCtx, &req, types.StatusCompleted); err != nil {
		return types.CallbackEvent{}, err
	}
	req.FinalizedHeight = sdkCtx.BlockHeight()
	if err := k.SetRequest(sdkCtx, req); err != nil {
		return types.CallbackEvent{}, fmt.Errorf("failed to store request: %w", err)
	}
	if err := k.setCallbackEvent(sdkCtx, event); err != nil {
		return types.CallbackEvent{}, err
	}

	offsetAttr := sdk.NewAttribute(types.AttributeKeyOffset, fmt.Sprintf("%d", req.Offset))
	sdkCtx.EventManager().EmitEvents(sdk.Events{
		sdk.NewEvent(
			types.EventTypeComputationCompleted,
			offsetAttr,
			sdk.NewAttribute(types.AttributeKeySigners, fmt.Sprintf("%d", outcome.SignerCount)),
		),
		sdk.NewEvent(
			types.EventTypeCallback,
			offsetAttr,
			sdk.NewAttribute(types.AttributeKeyDefinitionID, fmt.Sprintf("%d", req.DefinitionID)),
			sdk.NewAttribute(types.AttributeKeyModule, event.Module),
			sdk.NewAttribute(types.AttributeKeyInstruction, event.Instruction),
			sdk.NewAttribute(types.AttributeKeyResult, hex.EncodeToString(event.Result[:])),
		),
	})

	k.metrics.ComputationsFinalized.WithLabelValues(types.StatusCompleted.String()).Inc()
	k.metrics.CallbacksDelivered.WithLabelValues(event.Module, event.Instruction).Inc()
	k.Logger(sdkCtx).Info("computation completed", "offset", req.Offset, "callback", event.Module+"."+event.Instruction)

	return event, nil
}

func (k Keeper) abort(sdkCtx sdk.Context, req types.ComputationRequest, reason error) error {
	if reason == nil {
		reason = errorsmod.Wrap(types.ErrVerificationFailed, "empty output")
	}

	if err := k.transition(sdkCtx, &req, types.StatusAborted); err != nil {
		return err
	}
	req.FinalizedHeight = sdkCtx.BlockHeight()
	req.AbortReason = reason.Error()
	if err := k.SetRequest(sdkCtx, req); err != nil {
		return fmt.Errorf("failed to store request: %w", err)
	}

	offsetAttr := sdk.NewAttribute(types.AttributeKeyOffset, fmt.Sprintf("%d", req.Offset))
	sdkCtx.EventManager().EmitEvents(sdk.Events{
		sdk.NewEvent(
			types.EventTypeVerificationFailed,
			offsetAttr,
			sdk.NewAttribute(types.AttributeKeyReason, req.AbortReason),
		),
		sdk.NewEvent(
			types.EventTypeComputationAborted,
			offsetAttr,
			sdk.NewAttribute(types.AttributeKeyModule, req.Callback.Module),
		),
	})

	abortErr := errorsmod.Wrapf(types.ErrAbortedComputation, "offset %d: %s", req.Offset, req.AbortReason)
	if h, ok := k.callbacks[req.Callback.Module].(types.AbortHandler); ok {
		cacheCtx, write := sdkCtx.CacheContext()
		if err := h.OnComputationAborted(cacheCtx, req.Offset, req.AbortReason); err != nil {
			k.metrics.DeliveryRejections.WithLabelValues("abort_handler").Inc()
			k.Logger(sdkCtx).Error("abort handler failed", "offset", req.Offset, "module", req.Callback.Module, "error", err)
			abortErr = errors.Join(abortErr, errorsmod.Wrapf(err, "abort handler %s for offset %d", req.Callback.Module, req.Offset))
		} else {
			write()
		}
	}

	k.metrics.ComputationsFinalized.WithLabelValues(types.StatusAborted.String()).Inc()
	k.Logger(sdkCtx).Warn("computation aborted", "offset", req.Offset, "reason", req.AbortReason)

	return abortErr
}

// SubmitOutput resolves the request and cluster for a signed output,
// verifies it and delivers the outcome.
func (k Keeper) SubmitOutput(ctx context.Context, output types.SignedOutput) (types.CallbackEvent, error) {
	req, err := k.GetRequest(ctx, output.Offset)
	if err != nil {
		return types.CallbackEvent{}, err
	}
	if req.Status.IsTerminal() {
		k.metrics.DeliveryRejections.WithLabelValues("finalized").Inc()
		return types.CallbackEvent{}, errorsmod.Wrapf(types.ErrAlreadyFinalized, "offset %d is %s", req.Offset, req.Status)
	}

	cluster, err := k.clusters.ResolveClusterConfig(ctx)
	if err != nil {
		return types.CallbackEvent{}, err
	}

	outcome := k.VerifyOutput(ctx, output, cluster, req)
	return k.Deliver(ctx, req.Offset, outcome)
}

// GetCallbackEvent returns the callback event recorded for a completed
// offset.
func (k Keeper) GetCallbackEvent(ctx context.Context, offset uint64) (types.CallbackEvent, bool, error) {
	bz := k.getStore(ctx).Get(types.CallbackEventKey(offset))
	if bz == nil {
		return types.CallbackEvent{}, false, nil
	}

	var event types.CallbackEvent
	if err := json.Unmarshal(bz, &event); err != nil {
		return types.CallbackEvent{}, false, fmt.Errorf("GetCallbackEvent: unmarshal: %w", err)
	}
	return event, true, nil
}

func (k Keeper) setCallbackEvent(ctx context.Context, event types.CallbackEvent) error {
	store := k.getStore(ctx)
	key := types.CallbackEventKey(event.Offset)
	if store.Has(key) {
		return errorsmod.Wrapf(types.ErrAlreadyFinalized, "callback for offset %d already recorded", event.Offset)
	}

	bz, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("setCallbackEvent: marshal: %w", err)
	}
	store.Set(key, bz)
	return nil
}
