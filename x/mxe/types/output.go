package types

import (
	"crypto/sha256"
	"encoding/binary"

	"github.com/consensys/gnark-crypto/ecc/bn254"
)

const (
	// CiphertextSize is the width of one encrypted output slot.
	CiphertextSize = 32

	outputSigningDomain = "mxe-output-v1"
)

// SignatureDST is the hash-to-curve domain separation tag for cluster output
// signatures.
var SignatureDST = []byte("MXE-V01-CS01-with-BN254G1_XMD:SHA-256_SVDW_RO_")

// SignedOutput is what the cluster returns for one computation: the
// ciphertext payload, the indices of the signers who contributed and their
// aggregated BLS signature (compressed G1).
type SignedOutput struct {
	Offset        uint64                 `json:"offset"`
	Epoch         uint64                 `json:"epoch"`
	Ciphertexts   [][CiphertextSize]byte `json:"ciphertexts"`
	SignerIndices []uint32               `json:"signer_indices"`
	Signature     []byte                 `json:"signature"`
}

// CallbackEvent is emitted exactly once per completed request.
type CallbackEvent struct {
	Offset       uint64               `json:"offset"`
	DefinitionID uint32               `json:"definition_id"`
	Module       string               `json:"module"`
	Instruction  string               `json:"instruction"`
	Result       [CiphertextSize]byte `json:"result"`
	Height       int64                `json:"height"`
}

// OutputSigningMessage is the digest the cluster signs. It binds the payload
// to the definition, the offset, the cluster epoch and the exact arguments
// the request carried, so an output cannot be replayed onto another request.
func OutputSigningMessage(definitionID uint32, offset, epoch uint64, arguments []byte, ciphertexts [][CiphertextSize]byte) []byte {
	argsDigest := sha256.Sum256(arguments)

	h := sha256.New()
	h.Write([]byte(outputSigningDomain))
	var buf [8]byte
	binary.BigEndian.PutUint32(buf[:4], definitionID)
	h.Write(buf[:4])
	binary.BigEndian.PutUint64(buf[:], offset)
	h.Write(buf[:])
	binary.BigEndian.PutUint64(buf[:], epoch)
	h.Write(buf[:])
	h.Write(argsDigest[:])
	binary.BigEndian.PutUint32(buf[:4], uint32(len(ciphertexts)))
	h.Write(buf[:4])
	for _, ct := range ciphertexts {
		h.Write(ct[:])
	}
	return h.Sum(nil)
}

// HashToSignatureCurve maps a signing message onto G1.
func HashToSignatureCurve(msg []byte) (bn254.G1Affine, error) {
	return bn254.HashToG1(msg, SignatureDST)
}
