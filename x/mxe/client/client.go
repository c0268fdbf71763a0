// Package client holds requester-side helpers: picking offsets, generating
// the per-request encryption material and opening results.
package client

import (
	"crypto/rand"
	"encoding/binary"
	"fmt"
	"math/big"

	sdkmath "cosmossdk.io/math"
	"github.com/google/uuid"

	"github.com/TOBY0001/encrypted-wheel/x/mxe/sealing"
	"github.com/TOBY0001/encrypted-wheel/x/mxe/types"
)

// FreshOffset returns a random computation offset. Offsets are never reused,
// so callers retrying a stuck computation queue under a new one.
func FreshOffset() (uint64, error) {
	id, err := uuid.NewRandom()
	if err != nil {
		return 0, fmt.Errorf("client: offset: %w", err)
	}
	return binary.BigEndian.Uint64(id[:8]), nil
}

// RandomNonce draws a 128-bit encryption nonce.
func RandomNonce() (sdkmath.Uint, error) {
	var bz [sealing.NonceSize]byte
	if _, err := rand.Read(bz[:]); err != nil {
		return sdkmath.Uint{}, fmt.Errorf("client: nonce: %w", err)
	}
	return sdkmath.NewUintFromBigInt(new(big.Int).SetBytes(bz[:])), nil
}

// NonceBytes returns the nonce in the little endian layout it is queued and
// sealed with.
func NonceBytes(nonce sdkmath.Uint) ([sealing.NonceSize]byte, error) {
	var out [sealing.NonceSize]byte
	bz, err := types.Uint128Bytes(nonce)
	if err != nil {
		return out, err
	}
	copy(out[:], bz)
	return out, nil
}

// Session is the encryption material of one request.
type Session struct {
	Keys  sealing.KeyPair
	Nonce sdkmath.Uint
}

// NewSession generates a fresh key pair and nonce.
func NewSession() (Session, error) {
	kp, err := sealing.GenerateKeyPair()
	if err != nil {
		return Session{}, err
	}
	nonce, err := RandomNonce()
	if err != nil {
		return Session{}, err
	}
	return Session{Keys: kp, Nonce: nonce}, nil
}

// DecryptResult opens a sealed single-byte result with the cluster's public
// encryption key.
func (s Session) DecryptResult(clusterKey [sealing.KeySize]byte, result [types.CiphertextSize]byte) (uint8, error) {
	nonce, err := NonceBytes(s.Nonce)
	if err != nil {
		return 0, err
	}
	return sealing.OpenByte(s.Keys.Private, clusterKey, nonce, result)
}
