package simulation

import (
	"fmt"
	"io"

	"github.com/TOBY0001/encrypted-wheel/x/mxe/circuits"
	"github.com/TOBY0001/encrypted-wheel/x/mxe/sealing"
	"github.com/TOBY0001/encrypted-wheel/x/mxe/types"
)

// SpinProgram evaluates the spin circuit: a 3-bit private draw reduced onto
// the wheel. Arguments are (x25519 key, nonce, num_segments); the result
// goes in byte 0 of the single output slot.
func SpinProgram(program *circuits.SpinProgram) ProgramFunc {
	return func(args []types.Argument, rng io.Reader) ([][sealing.BlockSize]byte, error) {
		if len(args) != 3 {
			return nil, fmt.Errorf("spin takes 3 arguments, got %d", len(args))
		}
		segments, err := args[2].Uint64()
		if err != nil {
			return nil, err
		}

		var draw [1]byte
		if _, err := io.ReadFull(rng, draw[:]); err != nil {
			return nil, fmt.Errorf("draw randomness: %w", err)
		}
		random := draw[0] & (1<<circuits.SpinRandomBits - 1)

		result, err := program.Execute(random, uint8(segments))
		if err != nil {
			return nil, err
		}

		var slot [sealing.BlockSize]byte
		slot[0] = result
		return [][sealing.BlockSize]byte{slot}, nil
	}
}
