package circuits

import (
	"bytes"
	"crypto/sha256"
	"fmt"

	"github.com/consensys/gnark-crypto/ecc"
	"github.com/consensys/gnark/constraint"
	"github.com/consensys/gnark/frontend"
	"github.com/consensys/gnark/frontend/cs/r1cs"
)

const (
	// SpinName is the registry name of the spin circuit.
	SpinName = "spin"

	// SpinRandomBits is the width of the random draw; outcomes come from [0, 7].
	SpinRandomBits = 3
)

// SpinOutcome maps a random draw onto a 1-based wheel segment:
// (random mod numSegments) + 1. The draw must fit in SpinRandomBits.
func SpinOutcome(random, numSegments uint8) (uint8, error) {
	if numSegments == 0 {
		return 0, fmt.Errorf("spin: wheel has no segments")
	}
	if random >= 1<<SpinRandomBits {
		return 0, fmt.Errorf("spin: random draw %d exceeds %d bits", random, SpinRandomBits)
	}
	return random%numSegments + 1, nil
}

// SpinCircuit proves Result = (Random mod NumSegments) + 1 for a 3-bit draw.
//
// The quotient is supplied as a hint-free witness: Random = Quotient*NumSegments
// + (Result-1) with 0 <= Result-1 < NumSegments pins both uniquely, and every
// operand is range checked so nothing wraps in the field.
type SpinCircuit struct {
	NumSegments frontend.Variable `gnark:",public"`

	Random   frontend.Variable `gnark:",secret"`
	Quotient frontend.Variable `gnark:",secret"`
	Result   frontend.Variable `gnark:",secret"`
}

// Define implements the gnark Circuit interface.
func (c *SpinCircuit) Define(api frontend.API) error {
	api.ToBinary(c.Random, SpinRandomBits)
	api.ToBinary(c.Quotient, SpinRandomBits)
	api.ToBinary(c.NumSegments, 8)
	api.ToBinary(c.Result, 8)

	api.AssertIsDifferent(c.Result, 0)
	api.AssertIsLessOrEqual(c.Result, c.NumSegments)

	remainder := api.Sub(c.Result, 1)
	api.AssertIsEqual(c.Random, api.Add(api.Mul(c.Quotient, c.NumSegments), remainder))
	return nil
}

// SpinAssignment builds a satisfying witness for one draw.
func SpinAssignment(random, numSegments uint8) (*SpinCircuit, error) {
	result, err := SpinOutcome(random, numSegments)
	if err != nil {
		return nil, err
	}
	return &SpinCircuit{
		NumSegments: numSegments,
		Random:      random,
		Quotient:    random / numSegments,
		Result:      result,
	}, nil
}

// SpinProgram is the compiled spin constraint system together with the
// serialized bytes registered as its circuit source.
type SpinProgram struct {
	ccs   constraint.ConstraintSystem
	bytes []byte
	hash  [32]byte
}

// CompileSpin compiles SpinCircuit to R1CS over the BN254 scalar field.
func CompileSpin() (*SpinProgram, error) {
	ccs, err := frontend.Compile(ecc.BN254.ScalarField(), r1cs.NewBuilder, &SpinCircuit{})
	if err != nil {
		return nil, fmt.Errorf("failed to compile spin circuit: %w", err)
	}

	var buf bytes.Buffer
	if _, err := ccs.WriteTo(&buf); err != nil {
		return nil, fmt.Errorf("failed to serialize spin circuit: %w", err)
	}

	return &SpinProgram{
		ccs:   ccs,
		bytes: buf.Bytes(),
		hash:  sha256.Sum256(buf.Bytes()),
	}, nil
}

// Bytes returns the serialized constraint system.
func (p *SpinProgram) Bytes() []byte {
	return append([]byte{}, p.bytes...)
}

// Hash returns the SHA-256 of Bytes.
func (p *SpinProgram) Hash() [32]byte {
	return p.hash
}

// Constraints returns the number of R1CS constraints.
func (p *SpinProgram) Constraints() int {
	return p.ccs.GetNbConstraints()
}

// Execute evaluates one spin and checks the witness against the compiled
// constraint system before returning the segment.
func (p *SpinProgram) Execute(random, numSegments uint8) (uint8, error) {
	assignment, err := SpinAssignment(random, numSegments)
	if err != nil {
		return 0, err
	}

	w, err := frontend.NewWitness(assignment, ecc.BN254.ScalarField())
	if err != nil {
		return 0, fmt.Errorf("spin: witness: %w", err)
	}
	if err := p.ccs.IsSolved(w); err != nil {
		return 0, fmt.Errorf("spin: constraint system not satisfied: %w", err)
	}

	result, _ := SpinOutcome(random, numSegments)
	return result, nil
}
