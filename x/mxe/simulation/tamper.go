package simulation

import (
	"github.com/TOBY0001/encrypted-wheel/x/mxe/types"
)

func cloneOutput(out types.SignedOutput) types.SignedOutput {
	cp := out
	cp.Ciphertexts = append([][types.CiphertextSize]byte{}, out.Ciphertexts...)
	cp.SignerIndices = append([]uint32{}, out.SignerIndices...)
	cp.Signature = append([]byte{}, out.Signature...)
	return cp
}

// FlipCiphertextBit returns a copy of out with one payload bit inverted.
func FlipCiphertextBit(out types.SignedOutput, slot, bit int) types.SignedOutput {
	cp := cloneOutput(out)
	cp.Ciphertexts[slot%len(cp.Ciphertexts)][(bit/8)%types.CiphertextSize] ^= 1 << (bit % 8)
	return cp
}

// FlipSignatureBit returns a copy of out with one signature bit inverted.
func FlipSignatureBit(out types.SignedOutput, bit int) types.SignedOutput {
	cp := cloneOutput(out)
	cp.Signature[(bit/8)%len(cp.Signature)] ^= 1 << (bit % 8)
	return cp
}

// WithSignerIndices returns a copy of out claiming a different signer set.
func WithSignerIndices(out types.SignedOutput, indices ...uint32) types.SignedOutput {
	cp := cloneOutput(out)
	cp.SignerIndices = append([]uint32{}, indices...)
	return cp
}

// WithEpoch returns a copy of out stamped with another epoch.
func WithEpoch(out types.SignedOutput, epoch uint64) types.SignedOutput {
	cp := cloneOutput(out)
	cp.Epoch = epoch
	return cp
}

// WithOffset returns a copy of out addressed to another request.
func WithOffset(out types.SignedOutput, offset uint64) types.SignedOutput {
	cp := cloneOutput(out)
	cp.Offset = offset
	return cp
}

// WithCiphertexts returns a copy of out carrying a different payload.
func WithCiphertexts(out types.SignedOutput, cts ...[types.CiphertextSize]byte) types.SignedOutput {
	cp := cloneOutput(out)
	cp.Ciphertexts = append([][types.CiphertextSize]byte{}, cts...)
	return cp
}
