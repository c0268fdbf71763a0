package keeper

import (
	"testing"

	"cosmossdk.io/log"
	"cosmossdk.io/store"
	"cosmossdk.io/store/metrics"
	storetypes "cosmossdk.io/store/types"
	dbm "github.com/cosmos/cosmos-db"
	sdk "github.com/cosmos/cosmos-sdk/types"
	"github.com/stretchr/testify/require"

	mxekeeper "github.com/TOBY0001/encrypted-wheel/x/mxe/keeper"
	mxetypes "github.com/TOBY0001/encrypted-wheel/x/mxe/types"
	"github.com/TOBY0001/encrypted-wheel/x/wheel/keeper"
	"github.com/TOBY0001/encrypted-wheel/x/wheel/types"
)

// WheelKeeper creates a wheel keeper wired to a real mxe keeper over one
// in-memory multistore. The wheel keeper is registered as the callback
// handler for its module.
func WheelKeeper(t testing.TB) (keeper.Keeper, *mxekeeper.Keeper, sdk.Context) {
	mxeStoreKey := storetypes.NewKVStoreKey(mxetypes.StoreKey)
	wheelStoreKey := storetypes.NewKVStoreKey(types.StoreKey)

	db := dbm.NewMemDB()
	stateStore := store.NewCommitMultiStore(db, log.NewNopLogger(), metrics.NewNoOpMetrics())
	stateStore.MountStoreWithDB(mxeStoreKey, storetypes.StoreTypeIAVL, nil)
	stateStore.MountStoreWithDB(wheelStoreKey, storetypes.StoreTypeIAVL, nil)
	require.NoError(t, stateStore.LoadLatestVersion())

	mxe := mxekeeper.NewKeeper(mxeStoreKey, Authority())
	wheel := keeper.NewKeeper(wheelStoreKey, mxe)
	mxe.RegisterCallbackHandler(types.ModuleName, wheel)

	ctx := sdk.NewContext(stateStore, testHeader(), false, log.NewNopLogger())
	require.NoError(t, mxe.SetParams(ctx, mxetypes.DefaultParams()))

	return wheel, mxe, ctx
}
