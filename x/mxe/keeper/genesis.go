package keeper

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/TOBY0001/encrypted-wheel/x/mxe/types"
)

// InitGenesis initializes the mxe module's state from a genesis state
func (k Keeper) InitGenesis(ctx context.Context, data types.GenesisState) error {
	if err := data.Validate(); err != nil {
		return fmt.Errorf("invalid genesis: %w", err)
	}

	if err := k.SetParams(ctx, data.Params); err != nil {
		return fmt.Errorf("failed to set params: %w", err)
	}

	for _, cfg := range data.ClusterHistory {
		bz, err := json.Marshal(cfg)
		if err != nil {
			return fmt.Errorf("failed to encode cluster epoch %d: %w", cfg.Epoch, err)
		}
		k.getStore(ctx).Set(types.ClusterHistoryKey(cfg.Epoch), bz)
	}
	if data.Cluster != nil {
		if err := k.setClusterConfig(ctx, *data.Cluster); err != nil {
			return fmt.Errorf("failed to set cluster: %w", err)
		}
	}

	for _, def := range data.Definitions {
		if err := k.setDefinition(ctx, def); err != nil {
			return fmt.Errorf("failed to initialize definition %s: %w", def.Name, err)
		}
	}

	for _, req := range data.Requests {
		if err := k.SetRequest(ctx, req); err != nil {
			return fmt.Errorf("failed to initialize request %d: %w", req.Offset, err)
		}
		k.setStatusIndex(ctx, req.Status, req.Offset)
	}

	for _, event := range data.CallbackEvents {
		if err := k.setCallbackEvent(ctx, event); err != nil {
			return fmt.Errorf("failed to initialize callback event %d: %w", event.Offset, err)
		}
	}

	if data.QueuePaused {
		if err := k.setCircuitBreaker(ctx, CircuitBreakerState{Open: true, Actor: k.authority, Reason: "genesis"}, types.EventTypeCircuitBreakerOpen); err != nil {
			return fmt.Errorf("failed to restore circuit breaker: %w", err)
		}
	}

	return nil
}

// ExportGenesis exports the mxe module's state to a genesis state
func (k Keeper) ExportGenesis(ctx context.Context) (*types.GenesisState, error) {
	params, err := k.GetParams(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get params: %w", err)
	}

	gs := types.DefaultGenesis()
	gs.Params = params
	gs.QueuePaused = k.IsCircuitBreakerOpen(ctx)

	if cfg, err := k.GetClusterConfig(ctx); err == nil {
		gs.Cluster = &cfg
	}
	history, err := k.ClusterHistory(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read cluster history: %w", err)
	}
	gs.ClusterHistory = history

	if err := k.IterateDefinitions(ctx, func(def types.ComputationDefinition) (bool, error) {
		gs.Definitions = append(gs.Definitions, def)
		return false, nil
	}); err != nil {
		return nil, fmt.Errorf("failed to iterate definitions: %w", err)
	}

	if err := k.IterateRequests(ctx, func(req types.ComputationRequest) (bool, error) {
		gs.Requests = append(gs.Requests, req)
		if req.Status != types.StatusCompleted {
			return false, nil
		}
		event, found, err := k.GetCallbackEvent(ctx, req.Offset)
		if err != nil {
			return true, err
		}
		if found {
			gs.CallbackEvents = append(gs.CallbackEvents, event)
		}
		return false, nil
	}); err != nil {
		return nil, fmt.Errorf("failed to iterate requests: %w", err)
	}

	return gs, nil
}
