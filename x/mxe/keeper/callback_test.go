package keeper_test

import (
	"github.com/TOBY0001/encrypted-wheel/x/mxe/simulation"
	"github.com/TOBY0001/encrypted-wheel/x/mxe/types"
)

func (suite *KeeperTestSuite) TestDeliverCompletes() {
	out := suite.claimAndExecute(40, 9)
	suite.freshEvents()

	event, err := suite.keeper.SubmitOutput(suite.ctx, out)
	suite.Require().NoError(err)
	suite.Require().Equal(uint64(40), event.Offset)
	suite.Require().Equal(suite.def.ID, event.DefinitionID)
	suite.Require().Equal(echoModule, event.Module)
	suite.Require().Equal("echo_callback", event.Instruction)
	suite.Require().Equal(out.Ciphertexts[0], event.Result)

	req, err := suite.keeper.GetRequest(suite.ctx, 40)
	suite.Require().NoError(err)
	suite.Require().Equal(types.StatusCompleted, req.Status)
	suite.Require().Equal(suite.ctx.BlockHeight(), req.FinalizedHeight)

	stored, found, err := suite.keeper.GetCallbackEvent(suite.ctx, 40)
	suite.Require().NoError(err)
	suite.Require().True(found)
	suite.Require().Equal(event, stored)

	suite.Require().Len(suite.handler.callbacks, 1)
	suite.Require().Equal(event, suite.handler.callbacks[0])

	events := suite.ctx.EventManager().Events()
	suite.Require().Equal(1, countEvents(events, types.EventTypeCallback))
	suite.Require().Equal(1, countEvents(events, types.EventTypeComputationCompleted))
}

func (suite *KeeperTestSuite) TestRedeliveryIsRejected() {
	out := suite.claimAndExecute(41, 9)
	_, err := suite.keeper.SubmitOutput(suite.ctx, out)
	suite.Require().NoError(err)

	suite.freshEvents()
	_, err = suite.keeper.SubmitOutput(suite.ctx, out)
	suite.Require().ErrorIs(err, types.ErrAlreadyFinalized)

	_, err = suite.keeper.Deliver(suite.ctx, 41, types.VerificationOutcome{Offset: 41, Ciphertexts: out.Ciphertexts, SignerCount: 3})
	suite.Require().ErrorIs(err, types.ErrAlreadyFinalized)

	suite.Require().Len(suite.handler.callbacks, 1)
	suite.Require().Empty(suite.ctx.EventManager().Events())
	suite.Require().Equal(types.StatusCompleted, suite.status(41))
}

func (suite *KeeperTestSuite) TestDeliverAbortsOnFailedVerification() {
	out := suite.claimAndExecute(42, 9)
	suite.freshEvents()

	_, err := suite.keeper.SubmitOutput(suite.ctx, simulation.FlipCiphertextBit(out, 0, 0))
	suite.Require().ErrorIs(err, types.ErrAbortedComputation)

	req, err := suite.keeper.GetRequest(suite.ctx, 42)
	suite.Require().NoError(err)
	suite.Require().Equal(types.StatusAborted, req.Status)
	suite.Require().NotEmpty(req.AbortReason)

	_, found, err := suite.keeper.GetCallbackEvent(suite.ctx, 42)
	suite.Require().NoError(err)
	suite.Require().False(found)
	suite.Require().Empty(suite.handler.callbacks)
	suite.Require().Equal(req.AbortReason, suite.handler.aborted[42])

	events := suite.ctx.EventManager().Events()
	suite.Require().Zero(countEvents(events, types.EventTypeCallback))
	suite.Require().Equal(1, countEvents(events, types.EventTypeVerificationFailed))
	suite.Require().Equal(1, countEvents(events, types.EventTypeComputationAborted))
	suite.Require().Equal(1, countEvents(events, eventTypeAbortHandled))

	// A valid output arriving late cannot resurrect the request.
	_, err = suite.keeper.SubmitOutput(suite.ctx, out)
	suite.Require().ErrorIs(err, types.ErrAlreadyFinalized)
	suite.Require().Empty(suite.handler.callbacks)
}

func (suite *KeeperTestSuite) TestAbortHandlerFailureIsReturned() {
	out := suite.claimAndExecute(47, 9)
	suite.handler.failAbort = errHandler
	suite.freshEvents()

	_, err := suite.keeper.SubmitOutput(suite.ctx, simulation.FlipCiphertextBit(out, 0, 0))
	suite.Require().ErrorIs(err, types.ErrAbortedComputation)
	suite.Require().ErrorIs(err, errHandler)

	// The request is aborted regardless; only the handler's writes are dropped.
	suite.Require().Equal(types.StatusAborted, suite.status(47))
	suite.Require().NotContains(suite.handler.aborted, uint64(47))

	events := suite.ctx.EventManager().Events()
	suite.Require().Equal(1, countEvents(events, types.EventTypeComputationAborted))
	suite.Require().Zero(countEvents(events, eventTypeAbortHandled))
}

func (suite *KeeperTestSuite) TestHandlerFailureLeavesRequestExecuting() {
	out := suite.claimAndExecute(43, 9)
	suite.handler.fail = errHandler
	suite.freshEvents()

	_, err := suite.keeper.SubmitOutput(suite.ctx, out)
	suite.Require().ErrorIs(err, errHandler)
	suite.Require().Equal(types.StatusExecuting, suite.status(43))

	_, found, err := suite.keeper.GetCallbackEvent(suite.ctx, 43)
	suite.Require().NoError(err)
	suite.Require().False(found)
	suite.Require().Zero(countEvents(suite.ctx.EventManager().Events(), types.EventTypeCallback))

	suite.handler.fail = nil
	_, err = suite.keeper.SubmitOutput(suite.ctx, out)
	suite.Require().NoError(err)
	suite.Require().Equal(types.StatusCompleted, suite.status(43))
	suite.Require().Len(suite.handler.callbacks, 1)
}

func (suite *KeeperTestSuite) TestDeliverRequiresExecuting() {
	suite.queue(44, 9)

	_, err := suite.keeper.Deliver(suite.ctx, 44, types.VerificationOutcome{Offset: 44, Ciphertexts: make([][types.CiphertextSize]byte, 1), SignerCount: 3})
	suite.Require().ErrorIs(err, types.ErrInvalidStatusTransition)
	suite.Require().Equal(types.StatusQueued, suite.status(44))

	_, err = suite.keeper.Deliver(suite.ctx, 404, types.VerificationOutcome{Offset: 404})
	suite.Require().ErrorIs(err, types.ErrRequestNotFound)
}

func (suite *KeeperTestSuite) TestDeliverRejectsMisaddressedOutcome() {
	out := suite.claimAndExecute(45, 9)

	_, err := suite.keeper.Deliver(suite.ctx, 45, types.VerificationOutcome{Offset: 46, Ciphertexts: out.Ciphertexts, SignerCount: 3})
	suite.Require().ErrorIs(err, types.ErrVerificationFailed)
	suite.Require().Equal(types.StatusExecuting, suite.status(45))
}
