package keeper_test

import (
	"github.com/TOBY0001/encrypted-wheel/x/mxe/types"
)

func (suite *KeeperTestSuite) TestCircuitBreakerPausesQueue() {
	out := suite.claimAndExecute(60, 2)
	suite.queue(61, 3)

	suite.Require().ErrorIs(suite.keeper.OpenCircuitBreaker(suite.ctx, "mallory", "halt"), types.ErrUnauthorized)
	suite.Require().NoError(suite.keeper.OpenCircuitBreaker(suite.ctx, suite.authority, "cluster maintenance"))
	suite.Require().True(suite.keeper.IsCircuitBreakerOpen(suite.ctx))
	suite.Require().ErrorIs(suite.keeper.OpenCircuitBreaker(suite.ctx, suite.authority, "again"), types.ErrCircuitBreakerAlreadyOpen)

	state := suite.keeper.GetCircuitBreakerState(suite.ctx)
	suite.Require().Equal(suite.authority, state.Actor)
	suite.Require().Equal("cluster maintenance", state.Reason)

	_, err := suite.keeper.QueueComputation(suite.ctx, "player", 62, suite.def.ID, suite.echoArgs(1), echoCallback())
	suite.Require().ErrorIs(err, types.ErrQueuePaused)

	// Work already in flight still finalizes.
	_, err = suite.keeper.SubmitOutput(suite.ctx, out)
	suite.Require().NoError(err)
	_, err = suite.cluster.Run(suite.ctx, suite.keeper, 61)
	suite.Require().NoError(err)

	suite.Require().NoError(suite.keeper.CloseCircuitBreaker(suite.ctx, suite.authority, "done"))
	suite.Require().ErrorIs(suite.keeper.CloseCircuitBreaker(suite.ctx, suite.authority, "done"), types.ErrCircuitBreakerAlreadyClosed)
	suite.queue(62, 1)
}
