package keeper_test

func (suite *KeeperTestSuite) TestAuditTrailRecordsAdminActions() {
	suite.Require().NoError(suite.keeper.OpenCircuitBreaker(suite.ctx, suite.authority, "audit"))

	entries, err := suite.keeper.QueryAuditTrail(suite.ctx, 0, suite.ctx.BlockHeight(), 100)
	suite.Require().NoError(err)

	var actions []string
	for i, e := range entries {
		suite.Require().Equal(uint64(i), e.Sequence)
		suite.Require().Equal(suite.authority, e.Actor)
		actions = append(actions, e.Action)
	}
	suite.Require().Equal([]string{"cluster.update", "definition.register", "circuit_breaker.open"}, actions)
	suite.Require().Equal(suite.def.Source.HashHex(), entries[1].Metadata["hash"])

	limited, err := suite.keeper.QueryAuditTrail(suite.ctx, 0, suite.ctx.BlockHeight(), 1)
	suite.Require().NoError(err)
	suite.Require().Len(limited, 1)
}

func (suite *KeeperTestSuite) TestPruneAuditTrail() {
	pruned, err := suite.keeper.PruneAuditTrail(suite.ctx, 10)
	suite.Require().NoError(err)
	suite.Require().Zero(pruned)

	later := suite.ctx.WithBlockHeight(suite.ctx.BlockHeight() + 20)
	pruned, err = suite.keeper.PruneAuditTrail(later, 10)
	suite.Require().NoError(err)
	suite.Require().Equal(2, pruned)

	entries, err := suite.keeper.QueryAuditTrail(later, 0, later.BlockHeight(), 100)
	suite.Require().NoError(err)
	suite.Require().Empty(entries)
}
