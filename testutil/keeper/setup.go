package keeper

import (
	"testing"

	"cosmossdk.io/log"
	dbm "github.com/cosmos/cosmos-db"
	"github.com/stretchr/testify/require"

	"github.com/TOBY0001/encrypted-wheel/app"
)

// SetupTestApp initializes an application on an in-memory database and
// commits the default genesis.
func SetupTestApp(t testing.TB) *app.App {
	testApp, err := app.NewApp(log.NewNopLogger(), dbm.NewMemDB(), "wheel-test-1")
	require.NoError(t, err)
	require.NoError(t, testApp.InitChain(app.NewDefaultGenesisState()))
	return testApp
}
