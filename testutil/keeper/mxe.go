package keeper

import (
	"testing"
	"time"

	"cosmossdk.io/log"
	"cosmossdk.io/store"
	"cosmossdk.io/store/metrics"
	storetypes "cosmossdk.io/store/types"
	cmtproto "github.com/cometbft/cometbft/proto/tendermint/types"
	dbm "github.com/cosmos/cosmos-db"
	sdk "github.com/cosmos/cosmos-sdk/types"
	authtypes "github.com/cosmos/cosmos-sdk/x/auth/types"
	govtypes "github.com/cosmos/cosmos-sdk/x/gov/types"
	"github.com/stretchr/testify/require"

	"github.com/TOBY0001/encrypted-wheel/x/mxe/keeper"
	"github.com/TOBY0001/encrypted-wheel/x/mxe/types"
)

// Authority is the address test keepers accept for admin operations.
func Authority() string {
	return authtypes.NewModuleAddress(govtypes.ModuleName).String()
}

// MXEKeeper creates a test keeper for the mxe module backed by an in-memory
// store. No cluster is configured and no callback handler is registered.
func MXEKeeper(t testing.TB) (*keeper.Keeper, sdk.Context) {
	storeKey := storetypes.NewKVStoreKey(types.StoreKey)

	db := dbm.NewMemDB()
	stateStore := store.NewCommitMultiStore(db, log.NewNopLogger(), metrics.NewNoOpMetrics())
	stateStore.MountStoreWithDB(storeKey, storetypes.StoreTypeIAVL, nil)
	require.NoError(t, stateStore.LoadLatestVersion())

	k := keeper.NewKeeper(storeKey, Authority())

	ctx := sdk.NewContext(stateStore, testHeader(), false, log.NewNopLogger())
	require.NoError(t, k.SetParams(ctx, types.DefaultParams()))

	return k, ctx
}

func testHeader() cmtproto.Header {
	return cmtproto.Header{
		ChainID: "wheel-test-1",
		Height:  1,
		Time:    time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
	}
}
