package app

import (
	"encoding/json"
	"fmt"

	mxetypes "github.com/TOBY0001/encrypted-wheel/x/mxe/types"
	wheeltypes "github.com/TOBY0001/encrypted-wheel/x/wheel/types"
)

// GenesisState represents the genesis state of the application.
// It is a map from module name to module genesis state.
type GenesisState map[string]json.RawMessage

// NewDefaultGenesisState returns the default genesis of every module. No
// cluster is configured and no circuit is registered.
func NewDefaultGenesisState() GenesisState {
	genesis := make(GenesisState)
	genesis[mxetypes.ModuleName] = mustMarshalJSON(mxetypes.DefaultGenesis())
	genesis[wheeltypes.ModuleName] = mustMarshalJSON(wheeltypes.DefaultGenesis())
	return genesis
}

// Validate checks the genesis of every module.
func (gs GenesisState) Validate() error {
	var mxeGenesis mxetypes.GenesisState
	if err := unmarshalModuleGenesis(gs, mxetypes.ModuleName, &mxeGenesis, mxetypes.DefaultGenesis()); err != nil {
		return err
	}
	if err := mxeGenesis.Validate(); err != nil {
		return fmt.Errorf("mxe genesis: %w", err)
	}

	var wheelGenesis wheeltypes.GenesisState
	if err := unmarshalModuleGenesis(gs, wheeltypes.ModuleName, &wheelGenesis, wheeltypes.DefaultGenesis()); err != nil {
		return err
	}
	if err := wheelGenesis.Validate(); err != nil {
		return fmt.Errorf("wheel genesis: %w", err)
	}
	return nil
}

// mustMarshalJSON marshals v to JSON, panicking on error.
func mustMarshalJSON(v interface{}) json.RawMessage {
	bz, err := json.Marshal(v)
	if err != nil {
		panic(err)
	}
	return bz
}
