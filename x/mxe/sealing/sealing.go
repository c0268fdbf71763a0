// Package sealing encrypts computation results to the requester. The cluster
// derives a key from its x25519 secret and the requester's public key; the
// requester derives the same key from its secret and the cluster's public
// key. The key stream is XChaCha20 under the request nonce, so a ciphertext
// slot is exactly as wide as the value it carries.
package sealing

import (
	"crypto/rand"
	"crypto/sha256"
	"fmt"
	"io"

	"golang.org/x/crypto/chacha20"
	"golang.org/x/crypto/curve25519"
)

const (
	// KeySize is the size of x25519 private and public keys.
	KeySize = curve25519.ScalarSize

	// NonceSize is the width of the request nonce (a u128).
	NonceSize = 16

	// BlockSize is the width of one sealed slot.
	BlockSize = 32
)

// KeyPair is an x25519 key pair.
type KeyPair struct {
	Private [KeySize]byte
	Public  [KeySize]byte
}

// GenerateKeyPair draws a fresh key pair from crypto/rand.
func GenerateKeyPair() (KeyPair, error) {
	return GenerateKeyPairFrom(rand.Reader)
}

// GenerateKeyPairFrom draws a key pair from r.
func GenerateKeyPairFrom(r io.Reader) (KeyPair, error) {
	var kp KeyPair
	if _, err := io.ReadFull(r, kp.Private[:]); err != nil {
		return KeyPair{}, fmt.Errorf("sealing: read private key: %w", err)
	}
	pub, err := curve25519.X25519(kp.Private[:], curve25519.Basepoint)
	if err != nil {
		return KeyPair{}, fmt.Errorf("sealing: derive public key: %w", err)
	}
	copy(kp.Public[:], pub)
	return kp, nil
}

// PublicKey derives the public key for a private key.
func PublicKey(priv [KeySize]byte) ([KeySize]byte, error) {
	var out [KeySize]byte
	pub, err := curve25519.X25519(priv[:], curve25519.Basepoint)
	if err != nil {
		return out, fmt.Errorf("sealing: derive public key: %w", err)
	}
	copy(out[:], pub)
	return out, nil
}

// Seal encrypts plaintext from the cluster to the requester.
func Seal(clusterPriv, userPub [KeySize]byte, nonce [NonceSize]byte, plaintext [BlockSize]byte) ([BlockSize]byte, error) {
	return xorKeyStream(clusterPriv, userPub, nonce, plaintext)
}

// Open decrypts a sealed slot on the requester side.
func Open(userPriv, clusterPub [KeySize]byte, nonce [NonceSize]byte, ciphertext [BlockSize]byte) ([BlockSize]byte, error) {
	return xorKeyStream(userPriv, clusterPub, nonce, ciphertext)
}

// SealByte seals a single value into byte 0 of a slot.
func SealByte(clusterPriv, userPub [KeySize]byte, nonce [NonceSize]byte, v uint8) ([BlockSize]byte, error) {
	var plaintext [BlockSize]byte
	plaintext[0] = v
	return Seal(clusterPriv, userPub, nonce, plaintext)
}

// OpenByte opens a slot and returns the value in byte 0.
func OpenByte(userPriv, clusterPub [KeySize]byte, nonce [NonceSize]byte, ciphertext [BlockSize]byte) (uint8, error) {
	plaintext, err := Open(userPriv, clusterPub, nonce, ciphertext)
	if err != nil {
		return 0, err
	}
	return plaintext[0], nil
}

func xorKeyStream(priv, peer [KeySize]byte, nonce [NonceSize]byte, in [BlockSize]byte) ([BlockSize]byte, error) {
	var out [BlockSize]byte

	shared, err := curve25519.X25519(priv[:], peer[:])
	if err != nil {
		// Low order peer keys produce an all-zero secret.
		return out, fmt.Errorf("sealing: key agreement: %w", err)
	}
	key := sha256.Sum256(shared)

	var xnonce [chacha20.NonceSizeX]byte
	copy(xnonce[:], nonce[:])

	cipher, err := chacha20.NewUnauthenticatedCipher(key[:], xnonce[:])
	if err != nil {
		return out, fmt.Errorf("sealing: cipher: %w", err)
	}
	cipher.XORKeyStream(out[:], in[:])
	return out, nil
}
