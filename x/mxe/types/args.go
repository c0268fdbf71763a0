package types

import (
	"encoding/binary"
	"fmt"
	"math/big"

	errorsmod "cosmossdk.io/errors"
	sdkmath "cosmossdk.io/math"
)

// ArgType is the declared type of one circuit parameter.
type ArgType uint8

const (
	ArgX25519PubKey ArgType = iota + 1
	ArgPlaintextBool
	ArgPlaintextU8
	ArgPlaintextU16
	ArgPlaintextU32
	ArgPlaintextU64
	ArgPlaintextU128
)

const (
	X25519PubKeySize = 32
	NonceSize        = 16
)

// Width returns the encoded byte width of the type, or 0 for unknown types.
func (t ArgType) Width() int {
	switch t {
	case ArgX25519PubKey:
		return X25519PubKeySize
	case ArgPlaintextBool, ArgPlaintextU8:
		return 1
	case ArgPlaintextU16:
		return 2
	case ArgPlaintextU32:
		return 4
	case ArgPlaintextU64:
		return 8
	case ArgPlaintextU128:
		return 16
	default:
		return 0
	}
}

func (t ArgType) String() string {
	switch t {
	case ArgX25519PubKey:
		return "x25519_pubkey"
	case ArgPlaintextBool:
		return "plaintext_bool"
	case ArgPlaintextU8:
		return "plaintext_u8"
	case ArgPlaintextU16:
		return "plaintext_u16"
	case ArgPlaintextU32:
		return "plaintext_u32"
	case ArgPlaintextU64:
		return "plaintext_u64"
	case ArgPlaintextU128:
		return "plaintext_u128"
	default:
		return fmt.Sprintf("unknown(%d)", uint8(t))
	}
}

// Argument is one typed scalar. Bytes holds the little endian encoding.
type Argument struct {
	Type  ArgType
	Bytes []byte
}

// EncodedWidth returns the total byte length of arguments laid out for the
// given parameter list.
func EncodedWidth(params []ArgType) int {
	total := 0
	for _, p := range params {
		total += p.Width()
	}
	return total
}

// EncodeArguments lays the arguments out positionally, in the order and
// width the circuit declares. Any count, type or width disagreement is an
// ErrEncodingMismatch.
func EncodeArguments(expected []ArgType, args []Argument) ([]byte, error) {
	if len(args) != len(expected) {
		return nil, errorsmod.Wrapf(ErrEncodingMismatch, "circuit declares %d parameters, got %d", len(expected), len(args))
	}

	out := make([]byte, 0, EncodedWidth(expected))
	for i, arg := range args {
		want := expected[i]
		if want.Width() == 0 {
			return nil, errorsmod.Wrapf(ErrEncodingMismatch, "parameter %d has unknown declared type %s", i, want)
		}
		if arg.Type != want {
			return nil, errorsmod.Wrapf(ErrEncodingMismatch, "parameter %d: circuit expects %s, got %s", i, want, arg.Type)
		}
		if len(arg.Bytes) != want.Width() {
			return nil, errorsmod.Wrapf(ErrEncodingMismatch, "parameter %d: %s is %d bytes wide, got %d", i, want, want.Width(), len(arg.Bytes))
		}
		out = append(out, arg.Bytes...)
	}
	return out, nil
}

// DecodeArguments splits an encoded argument buffer back into typed scalars.
func DecodeArguments(expected []ArgType, bz []byte) ([]Argument, error) {
	if width := EncodedWidth(expected); width != len(bz) {
		return nil, errorsmod.Wrapf(ErrEncodingMismatch, "expected %d encoded bytes, got %d", width, len(bz))
	}

	args := make([]Argument, 0, len(expected))
	pos := 0
	for i, t := range expected {
		w := t.Width()
		if w == 0 {
			return nil, errorsmod.Wrapf(ErrEncodingMismatch, "parameter %d has unknown declared type %s", i, t)
		}
		args = append(args, Argument{Type: t, Bytes: append([]byte{}, bz[pos:pos+w]...)})
		pos += w
	}
	return args, nil
}

// Uint64 returns the value of a plaintext scalar up to 64 bits wide.
func (a Argument) Uint64() (uint64, error) {
	switch a.Type {
	case ArgPlaintextBool, ArgPlaintextU8, ArgPlaintextU16, ArgPlaintextU32, ArgPlaintextU64:
	default:
		return 0, errorsmod.Wrapf(ErrEncodingMismatch, "%s is not a plaintext integer up to 64 bits", a.Type)
	}
	var buf [8]byte
	copy(buf[:], a.Bytes)
	return binary.LittleEndian.Uint64(buf[:]), nil
}

// Uint128 returns the value of a plaintext u128 scalar.
func (a Argument) Uint128() (sdkmath.Uint, error) {
	if a.Type != ArgPlaintextU128 || len(a.Bytes) != 16 {
		return sdkmath.Uint{}, errorsmod.Wrapf(ErrEncodingMismatch, "%s is not a plaintext u128", a.Type)
	}
	return sdkmath.NewUintFromBigInt(new(big.Int).SetBytes(reversed(a.Bytes))), nil
}

// PubKey returns the value of an x25519 public key argument.
func (a Argument) PubKey() ([X25519PubKeySize]byte, error) {
	var pk [X25519PubKeySize]byte
	if a.Type != ArgX25519PubKey || len(a.Bytes) != X25519PubKeySize {
		return pk, errorsmod.Wrapf(ErrEncodingMismatch, "%s is not an x25519 public key", a.Type)
	}
	copy(pk[:], a.Bytes)
	return pk, nil
}

// ArgBuilder collects arguments in call order. The first error sticks and
// is returned by Build.
type ArgBuilder struct {
	args []Argument
	err  error
}

// NewArgBuilder returns an empty builder.
func NewArgBuilder() *ArgBuilder {
	return &ArgBuilder{}
}

// X25519PubKey appends the requester's encryption public key.
func (b *ArgBuilder) X25519PubKey(pk [X25519PubKeySize]byte) *ArgBuilder {
	b.args = append(b.args, Argument{Type: ArgX25519PubKey, Bytes: append([]byte{}, pk[:]...)})
	return b
}

// PlaintextBool appends a boolean.
func (b *ArgBuilder) PlaintextBool(v bool) *ArgBuilder {
	var x byte
	if v {
		x = 1
	}
	b.args = append(b.args, Argument{Type: ArgPlaintextBool, Bytes: []byte{x}})
	return b
}

// PlaintextU8 appends an 8-bit integer.
func (b *ArgBuilder) PlaintextU8(v uint8) *ArgBuilder {
	b.args = append(b.args, Argument{Type: ArgPlaintextU8, Bytes: []byte{v}})
	return b
}

// PlaintextU16 appends a 16-bit integer.
func (b *ArgBuilder) PlaintextU16(v uint16) *ArgBuilder {
	bz := make([]byte, 2)
	binary.LittleEndian.PutUint16(bz, v)
	b.args = append(b.args, Argument{Type: ArgPlaintextU16, Bytes: bz})
	return b
}

// PlaintextU32 appends a 32-bit integer.
func (b *ArgBuilder) PlaintextU32(v uint32) *ArgBuilder {
	bz := make([]byte, 4)
	binary.LittleEndian.PutUint32(bz, v)
	b.args = append(b.args, Argument{Type: ArgPlaintextU32, Bytes: bz})
	return b
}

// PlaintextU64 appends a 64-bit integer.
func (b *ArgBuilder) PlaintextU64(v uint64) *ArgBuilder {
	bz := make([]byte, 8)
	binary.LittleEndian.PutUint64(bz, v)
	b.args = append(b.args, Argument{Type: ArgPlaintextU64, Bytes: bz})
	return b
}

// PlaintextU128 appends a 128-bit integer such as an encryption nonce.
func (b *ArgBuilder) PlaintextU128(v sdkmath.Uint) *ArgBuilder {
	bz, err := Uint128Bytes(v)
	if err != nil {
		if b.err == nil {
			b.err = err
		}
		return b
	}
	b.args = append(b.args, Argument{Type: ArgPlaintextU128, Bytes: bz})
	return b
}

// Build returns the collected arguments.
func (b *ArgBuilder) Build() ([]Argument, error) {
	if b.err != nil {
		return nil, b.err
	}
	return b.args, nil
}

// Uint128Bytes encodes v as 16 little endian bytes.
func Uint128Bytes(v sdkmath.Uint) ([]byte, error) {
	if v.IsNil() {
		return nil, errorsmod.Wrap(ErrEncodingMismatch, "nil u128 value")
	}
	bi := v.BigInt()
	if bi.BitLen() > 128 {
		return nil, errorsmod.Wrapf(ErrEncodingMismatch, "value needs %d bits, u128 holds 128", bi.BitLen())
	}
	be := make([]byte, 16)
	bi.FillBytes(be)
	return reversed(be), nil
}

func reversed(bz []byte) []byte {
	out := make([]byte, len(bz))
	for i := range bz {
		out[len(bz)-1-i] = bz[i]
	}
	return out
}
