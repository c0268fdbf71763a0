package keeper

import (
	"context"
	"fmt"

	sdk "github.com/cosmos/cosmos-sdk/types"

	"github.com/TOBY0001/encrypted-wheel/x/wheel/types"
)

// InitGenesis initializes the wheel module's state from a genesis state
func (k Keeper) InitGenesis(ctx context.Context, data types.GenesisState) error {
	if err := data.Validate(); err != nil {
		return fmt.Errorf("invalid genesis: %w", err)
	}
	k.getStore(ctx).Set(types.StoreVersionKey, sdk.Uint64ToBigEndian(types.StoreVersion))
	for _, spin := range data.Spins {
		if err := k.setSpin(ctx, spin); err != nil {
			return fmt.Errorf("failed to initialize spin %d: %w", spin.Offset, err)
		}
	}
	return nil
}

// GetStoreVersion returns the layout version written at genesis, or false
// before InitGenesis ran.
func (k Keeper) GetStoreVersion(ctx context.Context) (uint64, bool) {
	bz := k.getStore(ctx).Get(types.StoreVersionKey)
	if bz == nil {
		return 0, false
	}
	return sdk.BigEndianToUint64(bz), true
}

// ExportGenesis exports the wheel module's state to a genesis state
func (k Keeper) ExportGenesis(ctx context.Context) (*types.GenesisState, error) {
	gs := types.DefaultGenesis()
	if err := k.IterateSpins(ctx, func(spin types.SpinRecord) (bool, error) {
		gs.Spins = append(gs.Spins, spin)
		return false, nil
	}); err != nil {
		return nil, fmt.Errorf("failed to iterate spins: %w", err)
	}
	return gs, nil
}
