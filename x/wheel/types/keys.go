package types

import (
	"encoding/binary"
)

const (
	// ModuleName defines the module name
	ModuleName = "wheel"

	// StoreKey defines the primary module store key
	StoreKey = ModuleName

	// StoreVersion is the layout version written at genesis
	StoreVersion uint64 = 1
)

var (
	// StoreVersionKey holds StoreVersion. It keeps the store non-empty from
	// genesis on: goleveldb reads the empty root of a keyless IAVL tree back
	// as a missing version.
	StoreVersionKey = []byte{0x00}

	// SpinKeyPrefix is the prefix for spin records keyed by computation offset
	SpinKeyPrefix = []byte{0x01}

	// SpinsByPlayerPrefix indexes spins by the account that paid for them
	SpinsByPlayerPrefix = []byte{0x02}
)

// SpinKey returns the store key for the spin queued under offset
func SpinKey(offset uint64) []byte {
	bz := make([]byte, 8)
	binary.BigEndian.PutUint64(bz, offset)
	return append(append([]byte{}, SpinKeyPrefix...), bz...)
}

// SpinsByPlayerPrefixFor returns the iteration prefix for one player's spins
func SpinsByPlayerPrefixFor(player string) []byte {
	key := append(append([]byte{}, SpinsByPlayerPrefix...), []byte(player)...)
	return append(key, '/')
}

// SpinByPlayerKey returns the player index key of a spin
func SpinByPlayerKey(player string, offset uint64) []byte {
	bz := make([]byte, 8)
	binary.BigEndian.PutUint64(bz, offset)
	return append(SpinsByPlayerPrefixFor(player), bz...)
}
