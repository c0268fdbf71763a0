package keeper_test

import (
	"bytes"
	"encoding/hex"
	"fmt"
	"testing"

	sdkmath "cosmossdk.io/math"
	sdk "github.com/cosmos/cosmos-sdk/types"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"pgregory.net/rapid"

	keepertest "github.com/TOBY0001/encrypted-wheel/testutil/keeper"
	"github.com/TOBY0001/encrypted-wheel/x/mxe/circuits"
	"github.com/TOBY0001/encrypted-wheel/x/mxe/client"
	mxekeeper "github.com/TOBY0001/encrypted-wheel/x/mxe/keeper"
	"github.com/TOBY0001/encrypted-wheel/x/mxe/simulation"
	mxetypes "github.com/TOBY0001/encrypted-wheel/x/mxe/types"
	"github.com/TOBY0001/encrypted-wheel/x/wheel/keeper"
	"github.com/TOBY0001/encrypted-wheel/x/wheel/types"
)

const player = "player-one"

type KeeperTestSuite struct {
	suite.Suite
	keeper    keeper.Keeper
	mxe       *mxekeeper.Keeper
	ctx       sdk.Context
	authority string
	cluster   *simulation.Cluster
	program   *circuits.SpinProgram
}

func (suite *KeeperTestSuite) SetupTest() {
	suite.keeper, suite.mxe, suite.ctx = keepertest.WheelKeeper(suite.T())
	suite.authority = keepertest.Authority()

	cluster, err := simulation.NewCluster([]byte("wheel-test"), 1, 3, 2)
	suite.Require().NoError(err)
	suite.Require().NoError(suite.mxe.SetClusterConfig(suite.ctx, suite.authority, cluster.Config()))
	suite.cluster = cluster

	source, program, err := keeper.DefaultSpinSource()
	suite.Require().NoError(err)
	_, err = suite.keeper.InitSpinCompDef(suite.ctx, suite.authority, source)
	suite.Require().NoError(err)
	suite.program = program

	cluster.Host(source.URL, program.Bytes())
	cluster.RegisterProgram(types.SpinCircuitName, simulation.SpinProgram(program))
}

func TestKeeperTestSuite(t *testing.T) {
	suite.Run(t, new(KeeperTestSuite))
}

func (suite *KeeperTestSuite) spin(offset uint64, segments uint8) client.Session {
	session, err := client.NewSession()
	suite.Require().NoError(err)
	_, err = suite.keeper.Spin(suite.ctx, player, offset, segments, session.Keys.Public, session.Nonce)
	suite.Require().NoError(err)
	return session
}

func (suite *KeeperTestSuite) freshEvents() {
	suite.ctx = suite.ctx.WithEventManager(sdk.NewEventManager())
}

func (suite *KeeperTestSuite) spinEvents() []sdk.Event {
	var out []sdk.Event
	for _, e := range suite.ctx.EventManager().Events() {
		if e.Type == types.EventTypeSpin {
			out = append(out, e)
		}
	}
	return out
}

func attribute(e sdk.Event, key string) string {
	for _, attr := range e.Attributes {
		if attr.Key == key {
			return attr.Value
		}
	}
	return ""
}

func (suite *KeeperTestSuite) TestSpinRoundTrip() {
	offset, err := client.FreshOffset()
	suite.Require().NoError(err)
	session := suite.spin(offset, 6)

	pending, err := suite.keeper.GetSpin(suite.ctx, offset)
	suite.Require().NoError(err)
	suite.Require().Equal(types.SpinPending, pending.Status)
	suite.Require().Equal(session.Keys.Public, pending.EncryptionKey)
	suite.Require().Equal(session.Nonce.String(), pending.Nonce)

	suite.freshEvents()
	event, err := suite.cluster.Run(suite.ctx, suite.mxe, offset)
	suite.Require().NoError(err)
	suite.Require().Equal(types.ModuleName, event.Module)
	suite.Require().Equal(types.SpinCallbackInstruction, event.Instruction)

	result, err := session.DecryptResult(suite.cluster.EncryptionKey(), event.Result)
	suite.Require().NoError(err)
	suite.Require().GreaterOrEqual(result, uint8(1))
	suite.Require().LessOrEqual(result, uint8(6))

	settled, err := suite.keeper.GetSpin(suite.ctx, offset)
	suite.Require().NoError(err)
	suite.Require().Equal(types.SpinSettled, settled.Status)
	suite.Require().Equal(event.Result, settled.Result)

	spins := suite.spinEvents()
	suite.Require().Len(spins, 1)
	suite.Require().Equal(fmt.Sprintf("%d", offset), attribute(spins[0], types.AttributeKeyOffset))
	suite.Require().Equal(hex.EncodeToString(event.Result[:]), attribute(spins[0], types.AttributeKeyResult))
}

func (suite *KeeperTestSuite) TestForcedRandomness() {
	tests := []struct {
		draw     byte
		segments uint8
		want     uint8
	}{
		{draw: 0, segments: 6, want: 1},
		{draw: 7, segments: 6, want: 2},
		{draw: 5, segments: 6, want: 6},
		{draw: 6, segments: 6, want: 1},
		{draw: 7, segments: 8, want: 8},
		{draw: 4, segments: 3, want: 2},
	}

	for i, tc := range tests {
		offset := uint64(1000 + i)
		session := suite.spin(offset, tc.segments)

		suite.cluster.SetRandomness(bytes.NewReader([]byte{tc.draw}))
		event, err := suite.cluster.Run(suite.ctx, suite.mxe, offset)
		suite.Require().NoError(err)

		got, err := session.DecryptResult(suite.cluster.EncryptionKey(), event.Result)
		suite.Require().NoError(err)
		suite.Require().Equal(tc.want, got, "draw %d over %d segments", tc.draw, tc.segments)
	}
}

func (suite *KeeperTestSuite) TestSingleSegmentAlwaysLandsOnOne() {
	offset := uint64(2000)
	rapid.Check(suite.T(), func(t *rapid.T) {
		draw := rapid.Byte().Draw(t, "draw")
		offset++

		session := suite.spin(offset, 1)
		suite.cluster.SetRandomness(bytes.NewReader([]byte{draw}))
		event, err := suite.cluster.Run(suite.ctx, suite.mxe, offset)
		if err != nil {
			t.Fatalf("run: %v", err)
		}
		got, err := session.DecryptResult(suite.cluster.EncryptionKey(), event.Result)
		if err != nil {
			t.Fatalf("decrypt: %v", err)
		}
		if got != 1 {
			t.Fatalf("single segment wheel landed on %d", got)
		}
	})
}

func (suite *KeeperTestSuite) TestAbortedSpinEmitsNoSpinEvent() {
	suite.spin(3000, 6)
	suite.Require().NoError(suite.cluster.Claim(suite.ctx, suite.mxe, 3000))
	out, err := suite.cluster.Execute(suite.ctx, suite.mxe, 3000)
	suite.Require().NoError(err)

	suite.freshEvents()
	_, err = suite.mxe.SubmitOutput(suite.ctx, simulation.FlipCiphertextBit(out, 0, 0))
	suite.Require().ErrorIs(err, mxetypes.ErrAbortedComputation)

	suite.Require().Empty(suite.spinEvents())
	aborted := 0
	for _, e := range suite.ctx.EventManager().Events() {
		if e.Type == types.EventTypeSpinAborted {
			aborted++
		}
	}
	suite.Require().Equal(1, aborted)

	spin, err := suite.keeper.GetSpin(suite.ctx, 3000)
	suite.Require().NoError(err)
	suite.Require().Equal(types.SpinAborted, spin.Status)
	suite.Require().NotEmpty(spin.AbortReason)

	// The honest output arriving afterwards changes nothing.
	_, err = suite.mxe.SubmitOutput(suite.ctx, out)
	suite.Require().ErrorIs(err, mxetypes.ErrAlreadyFinalized)
	suite.Require().Empty(suite.spinEvents())
}

func (suite *KeeperTestSuite) TestSpinRejects() {
	session, err := client.NewSession()
	suite.Require().NoError(err)

	_, err = suite.keeper.Spin(suite.ctx, player, 4000, 0, session.Keys.Public, session.Nonce)
	suite.Require().ErrorIs(err, types.ErrInvalidSegments)

	_, err = suite.keeper.Spin(suite.ctx, player, 4001, 6, [mxetypes.X25519PubKeySize]byte{}, session.Nonce)
	suite.Require().ErrorIs(err, types.ErrInvalidEncryptionKey)

	for _, offset := range []uint64{4000, 4001} {
		_, err = suite.keeper.GetSpin(suite.ctx, offset)
		suite.Require().ErrorIs(err, types.ErrSpinNotFound)
		_, err = suite.mxe.GetRequest(suite.ctx, offset)
		suite.Require().ErrorIs(err, mxetypes.ErrRequestNotFound)
	}
}

func (suite *KeeperTestSuite) TestSpinDuplicateOffset() {
	suite.spin(5000, 6)

	session, err := client.NewSession()
	suite.Require().NoError(err)
	_, err = suite.keeper.Spin(suite.ctx, "player-two", 5000, 4, session.Keys.Public, session.Nonce)
	suite.Require().ErrorIs(err, mxetypes.ErrDuplicateOffset)

	spin, err := suite.keeper.GetSpin(suite.ctx, 5000)
	suite.Require().NoError(err)
	suite.Require().Equal(player, spin.Player)
	suite.Require().Equal(uint8(6), spin.NumSegments)
}

func (suite *KeeperTestSuite) TestSpinWhilePaused() {
	suite.Require().NoError(suite.mxe.OpenCircuitBreaker(suite.ctx, suite.authority, "maintenance"))

	session, err := client.NewSession()
	suite.Require().NoError(err)
	_, err = suite.keeper.Spin(suite.ctx, player, 5100, 6, session.Keys.Public, session.Nonce)
	suite.Require().ErrorIs(err, mxetypes.ErrQueuePaused)
}

func (suite *KeeperTestSuite) TestInitSpinCompDefOnce() {
	source, _, err := keeper.DefaultSpinSource()
	suite.Require().NoError(err)

	_, err = suite.keeper.InitSpinCompDef(suite.ctx, suite.authority, source)
	suite.Require().ErrorIs(err, mxetypes.ErrAlreadyRegistered)

	def, err := suite.mxe.GetDefinitionByName(suite.ctx, types.SpinCircuitName)
	suite.Require().NoError(err)
	suite.Require().Equal(suite.program.Hash(), def.Source.Hash)
	suite.Require().Equal(types.DefaultSpinCircuitURL, def.Source.URL)
	suite.Require().Equal(types.SpinSignature(), def.Signature)
}

func (suite *KeeperTestSuite) TestCallbackRejectsUnknownInstruction() {
	suite.spin(6000, 6)

	err := suite.keeper.OnComputationCallback(suite.ctx, mxetypes.CallbackEvent{
		Offset:      6000,
		Module:      types.ModuleName,
		Instruction: "refund",
	})
	suite.Require().ErrorIs(err, types.ErrUnknownInstruction)

	err = suite.keeper.OnComputationCallback(suite.ctx, mxetypes.CallbackEvent{
		Offset:      6001,
		Module:      types.ModuleName,
		Instruction: types.SpinCallbackInstruction,
	})
	suite.Require().ErrorIs(err, types.ErrSpinNotFound)
}

func (suite *KeeperTestSuite) TestSpinsByPlayer() {
	suite.spin(7001, 6)
	suite.spin(7000, 2)

	session, err := client.NewSession()
	suite.Require().NoError(err)
	_, err = suite.keeper.Spin(suite.ctx, "player-two", 7002, 3, session.Keys.Public, session.Nonce)
	suite.Require().NoError(err)

	spins, err := suite.keeper.SpinsByPlayer(suite.ctx, player)
	suite.Require().NoError(err)
	suite.Require().Len(spins, 2)
	suite.Require().Equal(uint64(7000), spins[0].Offset)
	suite.Require().Equal(uint64(7001), spins[1].Offset)
}

func (suite *KeeperTestSuite) TestGenesisRoundTrip() {
	suite.spin(8000, 6)
	_, err := suite.cluster.Run(suite.ctx, suite.mxe, 8000)
	suite.Require().NoError(err)
	suite.spin(8001, 4)

	exported, err := suite.keeper.ExportGenesis(suite.ctx)
	suite.Require().NoError(err)
	suite.Require().Len(exported.Spins, 2)

	k, _, ctx := keepertest.WheelKeeper(suite.T())
	suite.Require().NoError(k.InitGenesis(ctx, *exported))
	reexported, err := k.ExportGenesis(ctx)
	suite.Require().NoError(err)
	suite.Require().Equal(exported, reexported)
}

func TestInitGenesisWritesStoreVersion(t *testing.T) {
	k, _, ctx := keepertest.WheelKeeper(t)
	_, ok := k.GetStoreVersion(ctx)
	require.False(t, ok)

	require.NoError(t, k.InitGenesis(ctx, *types.DefaultGenesis()))
	version, ok := k.GetStoreVersion(ctx)
	require.True(t, ok)
	require.Equal(t, types.StoreVersion, version)

	exported, err := k.ExportGenesis(ctx)
	require.NoError(t, err)
	require.Empty(t, exported.Spins)
}

func TestSpinWithoutCluster(t *testing.T) {
	k, mxe, ctx := keepertest.WheelKeeper(t)
	source, _, err := keeper.DefaultSpinSource()
	require.NoError(t, err)
	_, err = k.InitSpinCompDef(ctx, keepertest.Authority(), source)
	require.NoError(t, err)

	session, err := client.NewSession()
	require.NoError(t, err)
	_, err = k.Spin(ctx, player, 1, 6, session.Keys.Public, session.Nonce)
	require.ErrorIs(t, err, mxetypes.ErrClusterNotSet)

	_, err = k.GetSpin(ctx, 1)
	require.ErrorIs(t, err, types.ErrSpinNotFound)
	_, err = mxe.GetRequest(ctx, 1)
	require.ErrorIs(t, err, mxetypes.ErrRequestNotFound)
}

func TestSpinWithoutCompDef(t *testing.T) {
	k, mxe, ctx := keepertest.WheelKeeper(t)
	cluster, err := simulation.NewCluster([]byte("no-def"), 1, 1, 1)
	require.NoError(t, err)
	require.NoError(t, mxe.SetClusterConfig(ctx, keepertest.Authority(), cluster.Config()))

	_, err = k.Spin(ctx, player, 1, 6, cluster.EncryptionKey(), sdkmath.NewUint(1))
	require.ErrorIs(t, err, mxetypes.ErrUnregisteredDefinition)
}

func TestInitSpinCompDefRequiresAuthority(t *testing.T) {
	k, _, ctx := keepertest.WheelKeeper(t)
	source, _, err := keeper.DefaultSpinSource()
	require.NoError(t, err)

	_, err = k.InitSpinCompDef(ctx, "mallory", source)
	require.ErrorIs(t, err, mxetypes.ErrUnauthorized)
}
