package keeper

import (
	"context"
	"encoding/json"
	"fmt"

	errorsmod "cosmossdk.io/errors"
	"cosmossdk.io/log"
	storetypes "cosmossdk.io/store/types"
	sdk "github.com/cosmos/cosmos-sdk/types"

	"github.com/TOBY0001/encrypted-wheel/x/wheel/types"
)

// Keeper of the wheel store. It queues spins through the mxe keeper and
// receives their results as the "wheel" callback handler.
type Keeper struct {
	storeKey storetypes.StoreKey
	mxe      types.MXEKeeper
}

type kvStoreProvider interface {
	KVStore(key storetypes.StoreKey) storetypes.KVStore
}

// NewKeeper creates a new wheel Keeper instance
func NewKeeper(key storetypes.StoreKey, mxe types.MXEKeeper) Keeper {
	return Keeper{
		storeKey: key,
		mxe:      mxe,
	}
}

// Logger returns a module-scoped logger.
func (k Keeper) Logger(ctx context.Context) log.Logger {
	return sdk.UnwrapSDKContext(ctx).Logger().With("module", "x/"+types.ModuleName)
}

func (k Keeper) getStore(ctx context.Context) storetypes.KVStore {
	if provider, ok := ctx.(kvStoreProvider); ok {
		return provider.KVStore(k.storeKey)
	}
	return sdk.UnwrapSDKContext(ctx).KVStore(k.storeKey)
}

// GetSpin returns the spin queued under offset.
func (k Keeper) GetSpin(ctx context.Context, offset uint64) (types.SpinRecord, error) {
	bz := k.getStore(ctx).Get(types.SpinKey(offset))
	if bz == nil {
		return types.SpinRecord{}, errorsmod.Wrapf(types.ErrSpinNotFound, "offset %d", offset)
	}

	var spin types.SpinRecord
	if err := json.Unmarshal(bz, &spin); err != nil {
		return types.SpinRecord{}, fmt.Errorf("GetSpin: unmarshal: %w", err)
	}
	return spin, nil
}

func (k Keeper) setSpin(ctx context.Context, spin types.SpinRecord) error {
	bz, err := json.Marshal(spin)
	if err != nil {
		return fmt.Errorf("setSpin: marshal: %w", err)
	}

	store := k.getStore(ctx)
	store.Set(types.SpinKey(spin.Offset), bz)
	store.Set(types.SpinByPlayerKey(spin.Player, spin.Offset), []byte{1})
	return nil
}

// IterateSpins iterates over all spins in offset order
func (k Keeper) IterateSpins(ctx context.Context, cb func(spin types.SpinRecord) (stop bool, err error)) error {
	iterator := storetypes.KVStorePrefixIterator(k.getStore(ctx), types.SpinKeyPrefix)
	defer iterator.Close()

	for ; iterator.Valid(); iterator.Next() {
		var spin types.SpinRecord
		if err := json.Unmarshal(iterator.Value(), &spin); err != nil {
			return err
		}
		stop, err := cb(spin)
		if err != nil {
			return err
		}
		if stop {
			break
		}
	}
	return nil
}

// SpinsByPlayer returns a player's spins in offset order.
func (k Keeper) SpinsByPlayer(ctx context.Context, player string) ([]types.SpinRecord, error) {
	prefix := types.SpinsByPlayerPrefixFor(player)
	iterator := storetypes.KVStorePrefixIterator(k.getStore(ctx), prefix)
	defer iterator.Close()

	var spins []types.SpinRecord
	for ; iterator.Valid(); iterator.Next() {
		suffix := iterator.Key()[len(prefix):]
		if len(suffix) != 8 {
			continue
		}
		spin, err := k.GetSpin(ctx, sdk.BigEndianToUint64(suffix))
		if err != nil {
			return nil, err
		}
		spins = append(spins, spin)
	}
	return spins, nil
}
