package types

import (
	"encoding/hex"

	errorsmod "cosmossdk.io/errors"
	"github.com/consensys/gnark-crypto/ecc/bn254"
)

// ClusterSigner is one authorized node of the MPC cluster. PubKey is a
// compressed BN254 G2 point.
type ClusterSigner struct {
	ID     string `json:"id"`
	PubKey []byte `json:"pub_key"`
}

// ClusterConfig is the signer set the cluster coordination layer publishes.
// The orchestration layer only reads it.
type ClusterConfig struct {
	Epoch         uint64          `json:"epoch"`
	Threshold     uint32          `json:"threshold"`
	Signers       []ClusterSigner `json:"signers"`
	EncryptionKey [32]byte        `json:"encryption_key"`
}

// Validate checks the quorum policy is satisfiable and every key decodes.
func (c ClusterConfig) Validate() error {
	if len(c.Signers) == 0 {
		return errorsmod.Wrap(ErrInvalidClusterConfig, "cluster has no signers")
	}
	if c.Threshold == 0 || int(c.Threshold) > len(c.Signers) {
		return errorsmod.Wrapf(ErrInvalidClusterConfig, "threshold %d outside [1, %d]", c.Threshold, len(c.Signers))
	}
	if c.EncryptionKey == ([32]byte{}) {
		return errorsmod.Wrap(ErrInvalidClusterConfig, "cluster encryption key unset")
	}

	seen := make(map[string]struct{}, len(c.Signers))
	for i, s := range c.Signers {
		if s.ID == "" {
			return errorsmod.Wrapf(ErrInvalidClusterConfig, "signer %d has empty id", i)
		}
		if _, dup := seen[s.ID]; dup {
			return errorsmod.Wrapf(ErrInvalidClusterConfig, "duplicate signer id %s", s.ID)
		}
		seen[s.ID] = struct{}{}

		if _, err := DecodeSignerKey(s.PubKey); err != nil {
			return errorsmod.Wrapf(ErrInvalidClusterConfig, "signer %s: %s", s.ID, err)
		}
	}
	return nil
}

// SignerIndex returns the position of the signer with the given id.
func (c ClusterConfig) SignerIndex(id string) (int, bool) {
	for i, s := range c.Signers {
		if s.ID == id {
			return i, true
		}
	}
	return -1, false
}

// EncryptionKeyHex returns the cluster x25519 key as hex.
func (c ClusterConfig) EncryptionKeyHex() string {
	return hex.EncodeToString(c.EncryptionKey[:])
}

// DecodeSignerKey parses a compressed G2 public key.
func DecodeSignerKey(bz []byte) (bn254.G2Affine, error) {
	var pk bn254.G2Affine
	if len(bz) != bn254.SizeOfG2AffineCompressed {
		return pk, errorsmod.Wrapf(ErrInvalidClusterConfig, "public key must be %d bytes, got %d", bn254.SizeOfG2AffineCompressed, len(bz))
	}
	if _, err := pk.SetBytes(bz); err != nil {
		return pk, errorsmod.Wrapf(ErrInvalidClusterConfig, "public key: %s", err)
	}
	if pk.IsInfinity() {
		return pk, errorsmod.Wrap(ErrInvalidClusterConfig, "public key is the point at infinity")
	}
	return pk, nil
}
