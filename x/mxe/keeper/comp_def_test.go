package keeper_test

import (
	"crypto/sha256"

	"github.com/TOBY0001/encrypted-wheel/x/mxe/types"
)

func (suite *KeeperTestSuite) TestRegisterDefinition() {
	suite.Require().Equal(types.DefinitionOffset(echoName), suite.def.ID)
	suite.Require().True(suite.def.Registered)
	suite.Require().Equal(suite.authority, suite.def.Authority)

	byName, err := suite.keeper.GetDefinitionByName(suite.ctx, echoName)
	suite.Require().NoError(err)
	suite.Require().Equal(suite.def, byName)

	byID, err := suite.keeper.GetDefinition(suite.ctx, suite.def.ID)
	suite.Require().NoError(err)
	suite.Require().Equal(suite.def, byID)
}

func (suite *KeeperTestSuite) TestRegisterDefinitionOnce() {
	other := types.InlineSource([]byte("a different echo"))
	_, err := suite.keeper.RegisterDefinition(suite.ctx, suite.authority, echoName, other, echoSignature())
	suite.Require().ErrorIs(err, types.ErrAlreadyRegistered)

	def, err := suite.keeper.GetDefinition(suite.ctx, suite.def.ID)
	suite.Require().NoError(err)
	suite.Require().Equal(suite.def.Source.Hash, def.Source.Hash)
}

func (suite *KeeperTestSuite) TestRegisterDefinitionRejects() {
	inline := types.InlineSource([]byte("circuit"))
	tampered := types.InlineSource([]byte("circuit"))
	tampered.Bytes[0] ^= 0x01

	tests := []struct {
		name      string
		authority string
		circuit   string
		source    types.CircuitSource
		signature types.CircuitSignature
		err       error
	}{
		{
			name:      "wrong authority",
			authority: "mallory",
			circuit:   "a",
			source:    inline,
			signature: echoSignature(),
			err:       types.ErrUnauthorized,
		},
		{
			name:      "empty name",
			circuit:   "",
			source:    inline,
			signature: echoSignature(),
			err:       types.ErrInvalidCircuitSource,
		},
		{
			name:      "off-chain without hash",
			circuit:   "b",
			source:    types.OffChainSource("https://example.com/b.arcis", [32]byte{}),
			signature: echoSignature(),
			err:       types.ErrUnsetCircuitHash,
		},
		{
			name:      "off-chain with bad url",
			circuit:   "c",
			source:    types.OffChainSource("ftp://example.com/c", sha256.Sum256([]byte("c"))),
			signature: echoSignature(),
			err:       types.ErrInvalidCircuitSource,
		},
		{
			name:      "inline hash mismatch",
			circuit:   "d",
			source:    tampered,
			signature: echoSignature(),
			err:       types.ErrCircuitHashMismatch,
		},
		{
			name:      "no outputs",
			circuit:   "e",
			source:    inline,
			signature: types.CircuitSignature{Parameters: []types.ArgType{types.ArgPlaintextU8}},
			err:       types.ErrInvalidCircuitSource,
		},
		{
			name:      "unknown parameter type",
			circuit:   "f",
			source:    inline,
			signature: types.CircuitSignature{Parameters: []types.ArgType{types.ArgType(99)}, Outputs: 1},
			err:       types.ErrInvalidCircuitSource,
		},
	}

	for _, tc := range tests {
		suite.Run(tc.name, func() {
			authority := tc.authority
			if authority == "" {
				authority = suite.authority
			}
			_, err := suite.keeper.RegisterDefinition(suite.ctx, authority, tc.circuit, tc.source, tc.signature)
			suite.Require().ErrorIs(err, tc.err)
			if tc.circuit != "" {
				_, err = suite.keeper.GetDefinitionByName(suite.ctx, tc.circuit)
				suite.Require().ErrorIs(err, types.ErrUnregisteredDefinition)
			}
		})
	}
}

func (suite *KeeperTestSuite) TestRegisterOffChainDefinition() {
	circuit := []byte("remote circuit")
	source := types.OffChainSource("https://example.com/remote.arcis", sha256.Sum256(circuit))
	def, err := suite.keeper.RegisterDefinition(suite.ctx, suite.authority, "remote", source, echoSignature())
	suite.Require().NoError(err)

	suite.Require().NoError(suite.keeper.VerifyCircuitBytes(suite.ctx, def.ID, circuit))
	err = suite.keeper.VerifyCircuitBytes(suite.ctx, def.ID, []byte("substituted circuit"))
	suite.Require().ErrorIs(err, types.ErrCircuitHashMismatch)
}

func (suite *KeeperTestSuite) TestVerifyCircuitBytesUnknownDefinition() {
	err := suite.keeper.VerifyCircuitBytes(suite.ctx, types.DefinitionOffset("missing"), echoCircuit)
	suite.Require().ErrorIs(err, types.ErrUnregisteredDefinition)
}

func (suite *KeeperTestSuite) TestIterateDefinitions() {
	_, err := suite.keeper.RegisterDefinition(suite.ctx, suite.authority, "second", types.InlineSource([]byte("second")), echoSignature())
	suite.Require().NoError(err)

	names := make(map[string]bool)
	err = suite.keeper.IterateDefinitions(suite.ctx, func(def types.ComputationDefinition) (bool, error) {
		names[def.Name] = true
		return false, nil
	})
	suite.Require().NoError(err)
	suite.Require().Equal(map[string]bool{echoName: true, "second": true}, names)
}
