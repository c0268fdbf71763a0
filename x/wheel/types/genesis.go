package types

import (
	"fmt"
)

// GenesisState defines the wheel module's genesis state.
type GenesisState struct {
	Spins []SpinRecord `json:"spins"`
}

// DefaultGenesis returns the default genesis state.
func DefaultGenesis() *GenesisState {
	return &GenesisState{Spins: []SpinRecord{}}
}

// Validate performs basic genesis state validation.
func (gs GenesisState) Validate() error {
	seen := make(map[uint64]struct{}, len(gs.Spins))
	for _, s := range gs.Spins {
		if _, dup := seen[s.Offset]; dup {
			return fmt.Errorf("duplicate spin offset %d", s.Offset)
		}
		seen[s.Offset] = struct{}{}

		if s.NumSegments == 0 {
			return fmt.Errorf("spin %d: %w", s.Offset, ErrInvalidSegments)
		}
		switch s.Status {
		case SpinPending, SpinSettled, SpinAborted:
		default:
			return fmt.Errorf("spin %d has unknown status %q", s.Offset, s.Status)
		}
		if s.Player == "" {
			return fmt.Errorf("spin %d has no player", s.Offset)
		}
	}
	return nil
}
