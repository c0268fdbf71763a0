package keeper_test

import (
	"github.com/TOBY0001/encrypted-wheel/x/mxe/keeper"
	"github.com/TOBY0001/encrypted-wheel/x/mxe/types"
)

func (suite *KeeperTestSuite) TestInvariantsHold() {
	_, err := suite.cluster.Run(suite.ctx, suite.keeper, suite.queue(80, 1).Offset)
	suite.Require().NoError(err)
	suite.claimAndExecute(81, 2)
	suite.queue(82, 3)

	msg, broken := keeper.AllInvariants(*suite.keeper)(suite.ctx)
	suite.Require().False(broken, msg)
}

func (suite *KeeperTestSuite) TestStatusIndexInvariantDetectsDrift() {
	req := suite.queue(83, 1)
	req.Status = types.StatusExecuting
	req.Executor = suite.cluster.Signers()[0].ID
	suite.Require().NoError(suite.keeper.SetRequest(suite.ctx, req))

	_, broken := keeper.StatusIndexInvariant(*suite.keeper)(suite.ctx)
	suite.Require().True(broken)
}

func (suite *KeeperTestSuite) TestCallbackEventInvariantDetectsMissingEvent() {
	req := suite.queue(84, 1)
	req.Status = types.StatusCompleted
	suite.Require().NoError(suite.keeper.SetRequest(suite.ctx, req))

	msg, broken := keeper.CallbackEventInvariant(*suite.keeper)(suite.ctx)
	suite.Require().True(broken)
	suite.Require().Contains(msg, "completed without a callback event")
}

func (suite *KeeperTestSuite) TestDefinitionOffsetInvariant() {
	_, broken := keeper.DefinitionOffsetInvariant(*suite.keeper)(suite.ctx)
	suite.Require().False(broken)
}
