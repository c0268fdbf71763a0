package keeper_test

import (
	"github.com/TOBY0001/encrypted-wheel/x/mxe/simulation"
	"github.com/TOBY0001/encrypted-wheel/x/mxe/types"
)

func (suite *KeeperTestSuite) TestSetClusterConfigRejects() {
	next, err := simulation.NewCluster([]byte("next"), 2, 3, 2)
	suite.Require().NoError(err)

	err = suite.keeper.SetClusterConfig(suite.ctx, "mallory", next.Config())
	suite.Require().ErrorIs(err, types.ErrUnauthorized)

	stale, err := simulation.NewCluster([]byte("stale"), 1, 3, 2)
	suite.Require().NoError(err)
	err = suite.keeper.SetClusterConfig(suite.ctx, suite.authority, stale.Config())
	suite.Require().ErrorIs(err, types.ErrInvalidClusterConfig)

	bad := next.Config()
	bad.Threshold = 4
	suite.Require().ErrorIs(suite.keeper.SetClusterConfig(suite.ctx, suite.authority, bad), types.ErrInvalidClusterConfig)

	bad = next.Config()
	bad.Signers[1].ID = bad.Signers[0].ID
	suite.Require().ErrorIs(suite.keeper.SetClusterConfig(suite.ctx, suite.authority, bad), types.ErrInvalidClusterConfig)

	bad = next.Config()
	bad.Signers[0].PubKey = []byte{1, 2, 3}
	suite.Require().ErrorIs(suite.keeper.SetClusterConfig(suite.ctx, suite.authority, bad), types.ErrInvalidClusterConfig)

	bad = next.Config()
	bad.EncryptionKey = [32]byte{}
	suite.Require().ErrorIs(suite.keeper.SetClusterConfig(suite.ctx, suite.authority, bad), types.ErrInvalidClusterConfig)

	cfg, err := suite.keeper.GetClusterConfig(suite.ctx)
	suite.Require().NoError(err)
	suite.Require().Equal(uint64(1), cfg.Epoch)
}

func (suite *KeeperTestSuite) TestClusterRotation() {
	next, err := simulation.NewCluster([]byte("next"), 2, 3, 2)
	suite.Require().NoError(err)
	next.RegisterProgram(echoName, echoProgram)

	// Claimed and signed under epoch 1, submitted after the rotation.
	old := suite.claimAndExecute(50, 1)
	suite.Require().NoError(suite.keeper.SetClusterConfig(suite.ctx, suite.authority, next.Config()))

	_, err = suite.keeper.SubmitOutput(suite.ctx, old)
	suite.Require().ErrorIs(err, types.ErrAbortedComputation)

	history, err := suite.keeper.ClusterHistory(suite.ctx)
	suite.Require().NoError(err)
	suite.Require().Len(history, 2)
	suite.Require().Equal(uint64(1), history[0].Epoch)
	suite.Require().Equal(uint64(2), history[1].Epoch)

	first, err := suite.keeper.GetClusterConfigAtEpoch(suite.ctx, 1)
	suite.Require().NoError(err)
	suite.Require().Equal(suite.cluster.Config(), first)
	_, err = suite.keeper.GetClusterConfigAtEpoch(suite.ctx, 3)
	suite.Require().ErrorIs(err, types.ErrClusterNotSet)

	ok, err := suite.keeper.IsClusterSigner(suite.ctx, "node-2")
	suite.Require().NoError(err)
	suite.Require().True(ok)
	ok, err = suite.keeper.IsClusterSigner(suite.ctx, "node-3")
	suite.Require().NoError(err)
	suite.Require().False(ok)

	// The new cluster serves new requests.
	suite.queue(51, 4)
	event, err := next.Run(suite.ctx, suite.keeper, 51)
	suite.Require().NoError(err)
	suite.Require().Equal(byte(4), event.Result[0])
}
