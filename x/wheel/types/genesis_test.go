package types

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestGenesisStateValidate(t *testing.T) {
	valid := func() GenesisState {
		return GenesisState{Spins: []SpinRecord{
			{Offset: 1, Player: "alice", NumSegments: 6, Status: SpinSettled},
			{Offset: 2, Player: "bob", NumSegments: 8, Status: SpinPending},
		}}
	}
	require.NoError(t, DefaultGenesis().Validate())
	require.NoError(t, valid().Validate())

	tests := []struct {
		name     string
		malleate func(*GenesisState)
	}{
		{"duplicate offset", func(gs *GenesisState) { gs.Spins[1].Offset = 1 }},
		{"zero segments", func(gs *GenesisState) { gs.Spins[0].NumSegments = 0 }},
		{"unknown status", func(gs *GenesisState) { gs.Spins[0].Status = "spinning" }},
		{"no player", func(gs *GenesisState) { gs.Spins[1].Player = "" }},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			gs := valid()
			tc.malleate(&gs)
			require.Error(t, gs.Validate())
		})
	}

	gs := valid()
	gs.Spins[0].NumSegments = 0
	require.ErrorIs(t, gs.Validate(), ErrInvalidSegments)
}

func TestSpinCallbackRoutesToWheel(t *testing.T) {
	cb := SpinCallback()
	require.NoError(t, cb.Validate())
	require.Equal(t, ModuleName, cb.Module)
	require.Equal(t, SpinCallbackInstruction, cb.Instruction)
	require.Len(t, SpinSignature().Parameters, 3)
}
