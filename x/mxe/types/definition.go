package types

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/url"

	errorsmod "cosmossdk.io/errors"
)

// CircuitSourceKind tells where a circuit's executable bytes live.
type CircuitSourceKind string

const (
	CircuitSourceInline   CircuitSourceKind = "inline"
	CircuitSourceOffChain CircuitSourceKind = "offchain"
)

// CircuitSource describes a circuit's provenance. Inline sources carry the
// bytes; off-chain sources carry a URL the cluster fetches plus the digest the
// fetched bytes must hash to.
type CircuitSource struct {
	Kind  CircuitSourceKind `json:"kind"`
	Bytes []byte            `json:"bytes,omitempty"`
	URL   string            `json:"url,omitempty"`
	Hash  [32]byte          `json:"hash"`
}

// InlineSource builds an inline source and records the digest of its bytes.
func InlineSource(bz []byte) CircuitSource {
	return CircuitSource{
		Kind:  CircuitSourceInline,
		Bytes: append([]byte{}, bz...),
		Hash:  sha256.Sum256(bz),
	}
}

// OffChainSource builds a remote source.
func OffChainSource(rawURL string, hash [32]byte) CircuitSource {
	return CircuitSource{
		Kind: CircuitSourceOffChain,
		URL:  rawURL,
		Hash: hash,
	}
}

// Validate checks the descriptor shape. maxInline bounds inline circuits;
// larger circuits belong off-chain.
func (s CircuitSource) Validate(maxInline uint32) error {
	switch s.Kind {
	case CircuitSourceInline:
		if len(s.Bytes) == 0 {
			return errorsmod.Wrap(ErrInvalidCircuitSource, "inline source has no bytes")
		}
		if maxInline > 0 && uint64(len(s.Bytes)) > uint64(maxInline) {
			return errorsmod.Wrapf(ErrInvalidCircuitSource, "inline circuit is %d bytes, limit %d; register it off-chain", len(s.Bytes), maxInline)
		}
		if s.URL != "" {
			return errorsmod.Wrap(ErrInvalidCircuitSource, "inline source must not carry a url")
		}
		if sha256.Sum256(s.Bytes) != s.Hash {
			return errorsmod.Wrap(ErrCircuitHashMismatch, "inline source hash does not match its bytes")
		}
	case CircuitSourceOffChain:
		if len(s.Bytes) != 0 {
			return errorsmod.Wrap(ErrInvalidCircuitSource, "off-chain source must not carry bytes")
		}
		u, err := url.Parse(s.URL)
		if err != nil || u.Host == "" || (u.Scheme != "https" && u.Scheme != "http") {
			return errorsmod.Wrapf(ErrInvalidCircuitSource, "invalid circuit url %q", s.URL)
		}
		if s.Hash == ([32]byte{}) {
			return errorsmod.Wrapf(ErrUnsetCircuitHash, "circuit at %s", s.URL)
		}
	default:
		return errorsmod.Wrapf(ErrInvalidCircuitSource, "unknown source kind %q", s.Kind)
	}
	return nil
}

// HashHex returns the content hash as lowercase hex.
func (s CircuitSource) HashHex() string {
	return hex.EncodeToString(s.Hash[:])
}

// VerifyBytes authenticates circuit bytes fetched from the source location.
func (s CircuitSource) VerifyBytes(fetched []byte) error {
	sum := sha256.Sum256(fetched)
	if !bytes.Equal(sum[:], s.Hash[:]) {
		return errorsmod.Wrapf(ErrCircuitHashMismatch, "got %x, registered %x", sum, s.Hash)
	}
	return nil
}

// CircuitSignature is the interface a circuit declares: its parameter types
// in positional order and the number of ciphertext outputs it produces.
type CircuitSignature struct {
	Parameters []ArgType `json:"parameters"`
	Outputs    uint32    `json:"outputs"`
}

// Validate checks the signature is usable.
func (s CircuitSignature) Validate() error {
	for i, p := range s.Parameters {
		if p.Width() == 0 {
			return errorsmod.Wrapf(ErrInvalidCircuitSource, "parameter %d has unknown type %d", i, uint8(p))
		}
	}
	if s.Outputs == 0 {
		return errorsmod.Wrap(ErrInvalidCircuitSource, "circuit must declare at least one output")
	}
	return nil
}

// ComputationDefinition is a registered, addressable circuit.
type ComputationDefinition struct {
	ID               uint32           `json:"id"`
	Name             string           `json:"name"`
	Source           CircuitSource    `json:"source"`
	Signature        CircuitSignature `json:"signature"`
	Registered       bool             `json:"registered"`
	Authority        string           `json:"authority"`
	RegisteredHeight int64            `json:"registered_height"`
}

func (d ComputationDefinition) String() string {
	return fmt.Sprintf("%s(%d) %s", d.Name, d.ID, d.Source.Kind)
}
