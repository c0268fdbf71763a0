package circuits

import (
	"bytes"
	"testing"

	"github.com/consensys/gnark-crypto/ecc"
	"github.com/consensys/gnark/test"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func TestSpinOutcomeConcreteCases(t *testing.T) {
	cases := []struct {
		random, segments, want uint8
	}{
		{0, 6, 1},
		{7, 6, 2},
		{5, 6, 6},
		{3, 4, 4},
		{4, 4, 1},
		{7, 8, 8},
		{6, 200, 7},
	}

	for _, tc := range cases {
		got, err := SpinOutcome(tc.random, tc.segments)
		require.NoError(t, err)
		require.Equal(t, tc.want, got, "random=%d segments=%d", tc.random, tc.segments)
	}
}

func TestSpinOutcomeSingleSegmentAlwaysOne(t *testing.T) {
	for r := uint8(0); r < 8; r++ {
		got, err := SpinOutcome(r, 1)
		require.NoError(t, err)
		require.Equal(t, uint8(1), got)
	}
}

func TestSpinOutcomeRejectsBadInput(t *testing.T) {
	_, err := SpinOutcome(3, 0)
	require.Error(t, err)

	_, err = SpinOutcome(8, 6)
	require.Error(t, err)
}

func TestSpinOutcomeInRange(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		random := rapid.Uint8Range(0, 7).Draw(t, "random")
		segments := rapid.Uint8Range(1, 255).Draw(t, "segments")

		got, err := SpinOutcome(random, segments)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if got < 1 || got > segments {
			t.Fatalf("outcome %d outside [1, %d]", got, segments)
		}
	})
}

func TestSpinCircuitValidAssignments(t *testing.T) {
	assert := test.NewAssert(t)

	for _, segments := range []uint8{1, 2, 6, 8, 255} {
		for r := uint8(0); r < 8; r++ {
			assignment, err := SpinAssignment(r, segments)
			require.NoError(t, err)
			assert.SolvingSucceeded(new(SpinCircuit), assignment, test.WithCurves(ecc.BN254))
		}
	}
}

func TestSpinCircuitRejectsWrongResult(t *testing.T) {
	assert := test.NewAssert(t)

	assignment := &SpinCircuit{NumSegments: 6, Random: 7, Quotient: 1, Result: 3}
	assert.SolvingFailed(new(SpinCircuit), assignment, test.WithCurves(ecc.BN254))
}

func TestSpinCircuitRejectsResultAboveSegments(t *testing.T) {
	assert := test.NewAssert(t)

	// 7 = 0*6 + (8-1) balances but 8 is not a segment of a six slot wheel.
	assignment := &SpinCircuit{NumSegments: 6, Random: 7, Quotient: 0, Result: 8}
	assert.SolvingFailed(new(SpinCircuit), assignment, test.WithCurves(ecc.BN254))
}

func TestSpinCircuitRejectsZeroResult(t *testing.T) {
	assert := test.NewAssert(t)

	assignment := &SpinCircuit{NumSegments: 1, Random: 0, Quotient: 1, Result: 0}
	assert.SolvingFailed(new(SpinCircuit), assignment, test.WithCurves(ecc.BN254))
}

func TestSpinCircuitRejectsWideRandom(t *testing.T) {
	assert := test.NewAssert(t)

	// 9 = 1*6 + (4-1): arithmetic holds but the draw exceeds three bits.
	assignment := &SpinCircuit{NumSegments: 6, Random: 9, Quotient: 1, Result: 4}
	assert.SolvingFailed(new(SpinCircuit), assignment, test.WithCurves(ecc.BN254))
}

func TestCompileSpinIsStable(t *testing.T) {
	first, err := CompileSpin()
	require.NoError(t, err)
	second, err := CompileSpin()
	require.NoError(t, err)

	require.NotEmpty(t, first.Bytes())
	require.Positive(t, first.Constraints())
	require.True(t, bytes.Equal(first.Bytes(), second.Bytes()))
	require.Equal(t, first.Hash(), second.Hash())
}

func TestSpinProgramExecute(t *testing.T) {
	program, err := CompileSpin()
	require.NoError(t, err)

	got, err := program.Execute(5, 6)
	require.NoError(t, err)
	require.Equal(t, uint8(6), got)

	_, err = program.Execute(2, 0)
	require.Error(t, err)
}
