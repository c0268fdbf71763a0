package keeper

import (
	"context"
	"encoding/json"

	errorsmod "cosmossdk.io/errors"
	sdk "github.com/cosmos/cosmos-sdk/types"

	"github.com/TOBY0001/encrypted-wheel/x/mxe/types"
)

// CircuitBreakerState is the persisted pause state of the queue.
type CircuitBreakerState struct {
	Open   bool   `json:"open"`
	Actor  string `json:"actor"`
	Reason string `json:"reason"`
	Height int64  `json:"height"`
}

// GetCircuitBreakerState retrieves the current circuit breaker state
func (k Keeper) GetCircuitBreakerState(ctx context.Context) CircuitBreakerState {
	bz := k.getStore(ctx).Get(types.CircuitBreakerKey)
	if bz == nil {
		return CircuitBreakerState{}
	}
	var state CircuitBreakerState
	if err := json.Unmarshal(bz, &state); err != nil {
		k.Logger(ctx).Error("corrupt circuit breaker state", "error", err)
		// Fail closed.
		return CircuitBreakerState{Open: true, Reason: "corrupt circuit breaker state"}
	}
	return state
}

// IsCircuitBreakerOpen reports whether new computations are refused.
func (k Keeper) IsCircuitBreakerOpen(ctx context.Context) bool {
	return k.GetCircuitBreakerState(ctx).Open
}

// OpenCircuitBreaker pauses the queue. Requests already queued or executing
// still finalize so callers are never left waiting on a result.
func (k Keeper) OpenCircuitBreaker(ctx context.Context, authority, reason string) error {
	if err := k.validateAuthority(authority); err != nil {
		return err
	}
	if k.IsCircuitBreakerOpen(ctx) {
		return types.ErrCircuitBreakerAlreadyOpen
	}
	return k.setCircuitBreaker(ctx, CircuitBreakerState{Open: true, Actor: authority, Reason: reason}, types.EventTypeCircuitBreakerOpen)
}

// CloseCircuitBreaker resumes the queue.
func (k Keeper) CloseCircuitBreaker(ctx context.Context, authority, reason string) error {
	if err := k.validateAuthority(authority); err != nil {
		return err
	}
	if !k.IsCircuitBreakerOpen(ctx) {
		return types.ErrCircuitBreakerAlreadyClosed
	}
	return k.setCircuitBreaker(ctx, CircuitBreakerState{Actor: authority, Reason: reason}, types.EventTypeCircuitBreakerClose)
}

// CheckCircuitBreaker returns ErrQueuePaused while the breaker is open.
func (k Keeper) CheckCircuitBreaker(ctx context.Context) error {
	state := k.GetCircuitBreakerState(ctx)
	if state.Open {
		return errorsmod.Wrapf(types.ErrQueuePaused, "paused by %s: %s", state.Actor, state.Reason)
	}
	return nil
}

func (k Keeper) setCircuitBreaker(ctx context.Context, state CircuitBreakerState, eventType string) error {
	sdkCtx := sdk.UnwrapSDKContext(ctx)
	state.Height = sdkCtx.BlockHeight()

	bz, err := json.Marshal(state)
	if err != nil {
		return err
	}
	k.getStore(ctx).Set(types.CircuitBreakerKey, bz)

	sdkCtx.EventManager().EmitEvent(
		sdk.NewEvent(
			eventType,
			sdk.NewAttribute(types.AttributeKeyActor, state.Actor),
			sdk.NewAttribute(types.AttributeKeyReason, state.Reason),
		),
	)

	status := "closed"
	if state.Open {
		status = "open"
	}
	k.metrics.CircuitBreakerTriggers.WithLabelValues(status).Inc()

	return k.AuditAdminAction(ctx, "circuit_breaker."+status, state.Actor, types.ModuleName, map[string]string{
		"reason": state.Reason,
	})
}
