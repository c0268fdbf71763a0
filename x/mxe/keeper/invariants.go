package keeper

import (
	"fmt"
	"strings"

	storetypes "cosmossdk.io/store/types"
	sdk "github.com/cosmos/cosmos-sdk/types"

	"github.com/TOBY0001/encrypted-wheel/x/mxe/types"
)

// RegisterInvariants registers all mxe module invariants
func RegisterInvariants(ir sdk.InvariantRegistry, k Keeper) {
	ir.RegisterRoute(types.ModuleName, "status-index",
		StatusIndexInvariant(k))
	ir.RegisterRoute(types.ModuleName, "callback-events",
		CallbackEventInvariant(k))
	ir.RegisterRoute(types.ModuleName, "definition-offsets",
		DefinitionOffsetInvariant(k))
}

// AllInvariants runs all invariants of the mxe module
func AllInvariants(k Keeper) sdk.Invariant {
	return func(ctx sdk.Context) (string, bool) {
		res, stop := StatusIndexInvariant(k)(ctx)
		if stop {
			return res, stop
		}
		res, stop = CallbackEventInvariant(k)(ctx)
		if stop {
			return res, stop
		}
		return DefinitionOffsetInvariant(k)(ctx)
	}
}

// StatusIndexInvariant checks every request sits in exactly the status bucket
// matching its stored status and no bucket points at a missing request.
func StatusIndexInvariant(k Keeper) sdk.Invariant {
	return func(ctx sdk.Context) (string, bool) {
		var issues []string
		store := k.getStore(ctx)

		err := k.IterateRequests(ctx, func(req types.ComputationRequest) (bool, error) {
			for _, status := range types.AllStatuses {
				indexed := store.Has(types.RequestByStatusKey(status, req.Offset))
				if status == req.Status && !indexed {
					issues = append(issues, fmt.Sprintf("request %d is %s but not indexed", req.Offset, req.Status))
				}
				if status != req.Status && indexed {
					issues = append(issues, fmt.Sprintf("request %d is %s but indexed as %s", req.Offset, req.Status, status))
				}
			}
			return false, nil
		})
		if err != nil {
			return sdk.FormatInvariant(types.ModuleName, "status-index", fmt.Sprintf("error iterating requests: %v", err)), true
		}

		iterator := storetypes.KVStorePrefixIterator(store, types.RequestsByStatusPrefix)
		defer iterator.Close()
		for ; iterator.Valid(); iterator.Next() {
			key := iterator.Key()[len(types.RequestsByStatusPrefix):]
			if len(key) != 9 {
				issues = append(issues, fmt.Sprintf("malformed status index key %X", iterator.Key()))
				continue
			}
			offset := types.BytesToUint64(key[1:])
			if !store.Has(types.RequestKey(offset)) {
				issues = append(issues, fmt.Sprintf("status index references missing request %d", offset))
			}
		}

		return formatIssues("status-index", issues)
	}
}

// CallbackEventInvariant checks that completed requests carry exactly one
// recorded callback event and no other request has one.
func CallbackEventInvariant(k Keeper) sdk.Invariant {
	return func(ctx sdk.Context) (string, bool) {
		var issues []string

		err := k.IterateRequests(ctx, func(req types.ComputationRequest) (bool, error) {
			event, found, err := k.GetCallbackEvent(ctx, req.Offset)
			if err != nil {
				return true, err
			}
			switch {
			case req.Status == types.StatusCompleted && !found:
				issues = append(issues, fmt.Sprintf("request %d completed without a callback event", req.Offset))
			case req.Status != types.StatusCompleted && found:
				issues = append(issues, fmt.Sprintf("request %d is %s but has a callback event", req.Offset, req.Status))
			case found && event.Module != req.Callback.Module:
				issues = append(issues, fmt.Sprintf("request %d callback routed to %s, expected %s", req.Offset, event.Module, req.Callback.Module))
			}
			if req.Status == types.StatusExecuting && req.Executor == "" {
				issues = append(issues, fmt.Sprintf("request %d is executing without an executor", req.Offset))
			}
			return false, nil
		})
		if err != nil {
			return sdk.FormatInvariant(types.ModuleName, "callback-events", fmt.Sprintf("error iterating requests: %v", err)), true
		}

		return formatIssues("callback-events", issues)
	}
}

// DefinitionOffsetInvariant checks each definition is stored at the offset
// its name derives.
func DefinitionOffsetInvariant(k Keeper) sdk.Invariant {
	return func(ctx sdk.Context) (string, bool) {
		var issues []string

		err := k.IterateDefinitions(ctx, func(def types.ComputationDefinition) (bool, error) {
			if want := types.DefinitionOffset(def.Name); def.ID != want {
				issues = append(issues, fmt.Sprintf("definition %s stored at %d, derives %d", def.Name, def.ID, want))
			}
			if _, err := k.GetDefinitionByName(ctx, def.Name); err != nil {
				issues = append(issues, fmt.Sprintf("definition %s missing from name index", def.Name))
			}
			return false, nil
		})
		if err != nil {
			return sdk.FormatInvariant(types.ModuleName, "definition-offsets", fmt.Sprintf("error iterating definitions: %v", err)), true
		}

		return formatIssues("definition-offsets", issues)
	}
}

func formatIssues(route string, issues []string) (string, bool) {
	var msg string
	if len(issues) > 0 {
		msg = fmt.Sprintf("%d inconsistencies:\n  - %s\n", len(issues), strings.Join(issues, "\n  - "))
	}
	return sdk.FormatInvariant(types.ModuleName, route, msg), len(issues) > 0
}
