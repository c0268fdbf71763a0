package keeper_test

import (
	"pgregory.net/rapid"

	"github.com/TOBY0001/encrypted-wheel/x/mxe/simulation"
	"github.com/TOBY0001/encrypted-wheel/x/mxe/types"
)

func (suite *KeeperTestSuite) verify(out types.SignedOutput, offset uint64) types.VerificationOutcome {
	req, err := suite.keeper.GetRequest(suite.ctx, offset)
	suite.Require().NoError(err)
	cfg, err := suite.keeper.GetClusterConfig(suite.ctx)
	suite.Require().NoError(err)
	return suite.keeper.VerifyOutput(suite.ctx, out, cfg, req)
}

func (suite *KeeperTestSuite) TestVerifyOutputAcceptsQuorum() {
	out := suite.claimAndExecute(30, 5)

	outcome := suite.verify(out, 30)
	suite.Require().True(outcome.Verified(), "%v", outcome.Err)
	suite.Require().Equal(3, outcome.SignerCount)
	suite.Require().Equal(out.Ciphertexts, outcome.Ciphertexts)
	suite.Require().Equal(byte(5), outcome.Ciphertexts[0][0])
}

func (suite *KeeperTestSuite) TestVerifyOutputAcceptsFullSignerSet() {
	out := suite.claimAndExecute(31, 5)
	req, err := suite.keeper.GetRequest(suite.ctx, 31)
	suite.Require().NoError(err)

	all, err := suite.cluster.Sign(req, out.Ciphertexts, []uint32{3, 1, 0, 2})
	suite.Require().NoError(err)
	outcome := suite.verify(all, 31)
	suite.Require().True(outcome.Verified(), "%v", outcome.Err)
	suite.Require().Equal(4, outcome.SignerCount)
}

func (suite *KeeperTestSuite) TestVerifyOutputRejectsTampering() {
	out := suite.claimAndExecute(32, 5)
	req, err := suite.keeper.GetRequest(suite.ctx, 32)
	suite.Require().NoError(err)

	var extra [types.CiphertextSize]byte
	tooMany := make([][types.CiphertextSize]byte, types.DefaultMaxOutputs+1)

	subset, err := suite.cluster.Sign(req, out.Ciphertexts, []uint32{0, 1})
	suite.Require().NoError(err)

	foreign, err := simulation.NewCluster([]byte("someone else"), 1, 4, 3)
	suite.Require().NoError(err)
	forged, err := foreign.Sign(req, out.Ciphertexts, []uint32{0, 1, 2})
	suite.Require().NoError(err)

	tests := []struct {
		name string
		out  types.SignedOutput
	}{
		{"ciphertext bit flipped", simulation.FlipCiphertextBit(out, 0, 13)},
		{"signature bit flipped", simulation.FlipSignatureBit(out, 100)},
		{"signer set misreported", simulation.WithSignerIndices(out, 0, 1, 3)},
		{"below threshold", subset},
		{"repeated signer", simulation.WithSignerIndices(out, 0, 0, 1)},
		{"signer out of range", simulation.WithSignerIndices(out, 0, 1, 9)},
		{"stale epoch", simulation.WithEpoch(out, 0)},
		{"wrong offset", simulation.WithOffset(out, 33)},
		{"extra ciphertext", simulation.WithCiphertexts(out, out.Ciphertexts[0], extra)},
		{"no ciphertexts", simulation.WithCiphertexts(out)},
		{"too many ciphertexts", simulation.WithCiphertexts(out, tooMany...)},
		{"foreign cluster", forged},
		{"truncated signature", types.SignedOutput{
			Offset:        out.Offset,
			Epoch:         out.Epoch,
			Ciphertexts:   out.Ciphertexts,
			SignerIndices: out.SignerIndices,
			Signature:     out.Signature[:10],
		}},
	}

	for _, tc := range tests {
		suite.Run(tc.name, func() {
			outcome := suite.verify(tc.out, 32)
			suite.Require().False(outcome.Verified())
			suite.Require().ErrorIs(outcome.Err, types.ErrVerificationFailed)
			suite.Require().Empty(outcome.Ciphertexts)
		})
	}

	// Verification never changes state.
	suite.Require().Equal(types.StatusExecuting, suite.status(32))
}

func (suite *KeeperTestSuite) TestVerifyOutputRejectsAnyBitFlip() {
	out := suite.claimAndExecute(34, 5)

	rapid.Check(suite.T(), func(t *rapid.T) {
		var tampered types.SignedOutput
		if rapid.Bool().Draw(t, "signature") {
			bit := rapid.IntRange(0, len(out.Signature)*8-1).Draw(t, "bit")
			tampered = simulation.FlipSignatureBit(out, bit)
		} else {
			bit := rapid.IntRange(0, types.CiphertextSize*8-1).Draw(t, "bit")
			tampered = simulation.FlipCiphertextBit(out, 0, bit)
		}

		outcome := suite.verify(tampered, 34)
		if outcome.Verified() {
			t.Fatalf("tampered output verified")
		}
	})

	suite.Require().True(suite.verify(out, 34).Verified())
}
