package keeper_test

import (
	"context"
	"errors"
	"io"
	"testing"

	sdk "github.com/cosmos/cosmos-sdk/types"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	keepertest "github.com/TOBY0001/encrypted-wheel/testutil/keeper"
	"github.com/TOBY0001/encrypted-wheel/x/mxe/keeper"
	"github.com/TOBY0001/encrypted-wheel/x/mxe/sealing"
	"github.com/TOBY0001/encrypted-wheel/x/mxe/simulation"
	"github.com/TOBY0001/encrypted-wheel/x/mxe/types"
)

const (
	echoName   = "echo"
	echoModule = "prog"
)

var echoCircuit = []byte("echo circuit v1")

func echoSignature() types.CircuitSignature {
	return types.CircuitSignature{
		Parameters: []types.ArgType{types.ArgPlaintextU8, types.ArgPlaintextU64},
		Outputs:    1,
	}
}

func echoCallback() types.CallbackSpec {
	return types.CallbackSpec{Module: echoModule, Instruction: "echo_callback", NumCallbackTxs: 1}
}

// echoProgram returns its first argument in byte 0 of a single slot.
func echoProgram(args []types.Argument, _ io.Reader) ([][sealing.BlockSize]byte, error) {
	var slot [sealing.BlockSize]byte
	slot[0] = args[0].Bytes[0]
	return [][sealing.BlockSize]byte{slot}, nil
}

// recordingHandler records what the orchestrator delivers to it.
type recordingHandler struct {
	callbacks []types.CallbackEvent
	aborted   map[uint64]string
	fail      error
	failAbort error
}

// eventTypeAbortHandled is emitted by recordingHandler before it decides
// whether to accept an abort.
const eventTypeAbortHandled = "test_abort_handled"

func newRecordingHandler() *recordingHandler {
	return &recordingHandler{aborted: make(map[uint64]string)}
}

func (h *recordingHandler) OnComputationCallback(_ context.Context, event types.CallbackEvent) error {
	if h.fail != nil {
		return h.fail
	}
	h.callbacks = append(h.callbacks, event)
	return nil
}

func (h *recordingHandler) OnComputationAborted(ctx context.Context, offset uint64, reason string) error {
	sdk.UnwrapSDKContext(ctx).EventManager().EmitEvent(sdk.NewEvent(eventTypeAbortHandled))
	if h.failAbort != nil {
		return h.failAbort
	}
	h.aborted[offset] = reason
	return nil
}

type KeeperTestSuite struct {
	suite.Suite
	keeper    *keeper.Keeper
	ctx       sdk.Context
	authority string
	cluster   *simulation.Cluster
	handler   *recordingHandler
	def       types.ComputationDefinition
}

func (suite *KeeperTestSuite) SetupTest() {
	suite.keeper, suite.ctx = keepertest.MXEKeeper(suite.T())
	suite.authority = keepertest.Authority()

	cluster, err := simulation.NewCluster([]byte("keeper-test"), 1, 4, 3)
	suite.Require().NoError(err)
	cluster.RegisterProgram(echoName, echoProgram)
	suite.cluster = cluster
	suite.Require().NoError(suite.keeper.SetClusterConfig(suite.ctx, suite.authority, cluster.Config()))

	suite.handler = newRecordingHandler()
	suite.keeper.RegisterCallbackHandler(echoModule, suite.handler)

	def, err := suite.keeper.RegisterDefinition(suite.ctx, suite.authority, echoName, types.InlineSource(echoCircuit), echoSignature())
	suite.Require().NoError(err)
	suite.def = def
}

func TestKeeperTestSuite(t *testing.T) {
	suite.Run(t, new(KeeperTestSuite))
}

func (suite *KeeperTestSuite) echoArgs(value uint8) []byte {
	args, err := types.NewArgBuilder().PlaintextU8(value).PlaintextU64(42).Build()
	suite.Require().NoError(err)
	bz, err := types.EncodeArguments(echoSignature().Parameters, args)
	suite.Require().NoError(err)
	return bz
}

func (suite *KeeperTestSuite) queue(offset uint64, value uint8) types.ComputationRequest {
	req, err := suite.keeper.QueueComputation(suite.ctx, "player", offset, suite.def.ID, suite.echoArgs(value), echoCallback())
	suite.Require().NoError(err)
	return req
}

// claimAndExecute queues offset, claims it and returns a correctly signed
// output without submitting it.
func (suite *KeeperTestSuite) claimAndExecute(offset uint64, value uint8) types.SignedOutput {
	suite.queue(offset, value)
	suite.Require().NoError(suite.cluster.Claim(suite.ctx, suite.keeper, offset))
	out, err := suite.cluster.Execute(suite.ctx, suite.keeper, offset)
	suite.Require().NoError(err)
	return out
}

func (suite *KeeperTestSuite) status(offset uint64) types.RequestStatus {
	req, err := suite.keeper.GetRequest(suite.ctx, offset)
	suite.Require().NoError(err)
	return req.Status
}

func (suite *KeeperTestSuite) freshEvents() {
	suite.ctx = suite.ctx.WithEventManager(sdk.NewEventManager())
}

func countEvents(events sdk.Events, eventType string) int {
	n := 0
	for _, e := range events {
		if e.Type == eventType {
			n++
		}
	}
	return n
}

func (suite *KeeperTestSuite) TestParams() {
	params, err := suite.keeper.GetParams(suite.ctx)
	suite.Require().NoError(err)
	suite.Require().Equal(types.DefaultParams(), params)

	params.MaxOutputs = 4
	err = suite.keeper.UpdateParams(suite.ctx, "someone", params)
	suite.Require().ErrorIs(err, types.ErrUnauthorized)

	suite.Require().NoError(suite.keeper.UpdateParams(suite.ctx, suite.authority, params))
	got, err := suite.keeper.GetParams(suite.ctx)
	suite.Require().NoError(err)
	suite.Require().Equal(uint32(4), got.MaxOutputs)

	params.MaxArgumentBytes = 0
	suite.Require().ErrorIs(suite.keeper.UpdateParams(suite.ctx, suite.authority, params), types.ErrInvalidParams)
}

func TestRegisterCallbackHandlerTwicePanics(t *testing.T) {
	k, _ := keepertest.MXEKeeper(t)
	k.RegisterCallbackHandler(echoModule, newRecordingHandler())
	require.Panics(t, func() {
		k.RegisterCallbackHandler(echoModule, newRecordingHandler())
	})
}

func TestGetAuthority(t *testing.T) {
	k, _ := keepertest.MXEKeeper(t)
	require.Equal(t, keepertest.Authority(), k.GetAuthority())
}

var errHandler = errors.New("handler rejected callback")
