package types

import (
	"crypto/sha256"
	"encoding/binary"
)

const (
	// ModuleName defines the module name
	ModuleName = "mxe"

	// StoreKey defines the primary module store key
	StoreKey = ModuleName

	// RouterKey is the message route for mxe
	RouterKey = ModuleName
)

var (
	// ParamsKey is the key for module parameters
	ParamsKey = []byte{0x01}

	// DefinitionKeyPrefix is the prefix for computation definition storage
	DefinitionKeyPrefix = []byte{0x02}

	// DefinitionByNamePrefix maps a circuit name to its definition offset
	DefinitionByNamePrefix = []byte{0x03}

	// RequestKeyPrefix is the prefix for computation request storage
	RequestKeyPrefix = []byte{0x04}

	// RequestsByStatusPrefix is the prefix for indexing requests by status
	RequestsByStatusPrefix = []byte{0x05}

	// ClusterConfigKey is the key for the active cluster configuration
	ClusterConfigKey = []byte{0x06}

	// ClusterHistoryPrefix stores superseded cluster configurations by epoch
	ClusterHistoryPrefix = []byte{0x07}

	// CallbackEventKeyPrefix stores the single callback event emitted per offset
	CallbackEventKeyPrefix = []byte{0x08}

	// AuditKeyPrefix is the prefix for audit trail entries
	AuditKeyPrefix = []byte{0x09}

	// NextAuditIDKey is the key for the next audit entry sequence
	NextAuditIDKey = []byte{0x0A}

	// CircuitBreakerKey holds the queue pause state
	CircuitBreakerKey = []byte{0x0B}
)

// DefinitionKey returns the store key for a computation definition
func DefinitionKey(id uint32) []byte {
	bz := make([]byte, 4)
	binary.BigEndian.PutUint32(bz, id)
	return append(append([]byte{}, DefinitionKeyPrefix...), bz...)
}

// DefinitionByNameKey returns the name index key for a computation definition
func DefinitionByNameKey(name string) []byte {
	return append(append([]byte{}, DefinitionByNamePrefix...), []byte(name)...)
}

// RequestKey returns the store key for a computation request
func RequestKey(offset uint64) []byte {
	return append(append([]byte{}, RequestKeyPrefix...), Uint64ToBytes(offset)...)
}

// RequestByStatusKey returns the status index key for a request
func RequestByStatusKey(status RequestStatus, offset uint64) []byte {
	return append(RequestStatusPrefix(status), Uint64ToBytes(offset)...)
}

// RequestStatusPrefix returns the iteration prefix for one status bucket
func RequestStatusPrefix(status RequestStatus) []byte {
	return append(append([]byte{}, RequestsByStatusPrefix...), byte(status))
}

// ClusterHistoryKey returns the store key of a superseded cluster configuration
func ClusterHistoryKey(epoch uint64) []byte {
	return append(append([]byte{}, ClusterHistoryPrefix...), Uint64ToBytes(epoch)...)
}

// CallbackEventKey returns the store key for the callback event of an offset
func CallbackEventKey(offset uint64) []byte {
	return append(append([]byte{}, CallbackEventKeyPrefix...), Uint64ToBytes(offset)...)
}

// AuditKey returns the store key for an audit entry
func AuditKey(seq uint64) []byte {
	return append(append([]byte{}, AuditKeyPrefix...), Uint64ToBytes(seq)...)
}

// Uint64ToBytes encodes v big endian so keys iterate in numeric order.
func Uint64ToBytes(v uint64) []byte {
	bz := make([]byte, 8)
	binary.BigEndian.PutUint64(bz, v)
	return bz
}

// BytesToUint64 decodes a big endian key suffix. Short input yields 0.
func BytesToUint64(bz []byte) uint64 {
	if len(bz) < 8 {
		return 0
	}
	return binary.BigEndian.Uint64(bz[:8])
}

// DefinitionOffset derives the registry offset of a circuit from its name:
// the first four bytes of SHA-256(name), read little endian.
func DefinitionOffset(name string) uint32 {
	sum := sha256.Sum256([]byte(name))
	return binary.LittleEndian.Uint32(sum[:4])
}
