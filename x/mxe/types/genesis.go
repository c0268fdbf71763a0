package types

import (
	"fmt"
)

// GenesisState defines the mxe module's genesis state.
type GenesisState struct {
	Params         Params                  `json:"params"`
	Cluster        *ClusterConfig          `json:"cluster,omitempty"`
	ClusterHistory []ClusterConfig         `json:"cluster_history,omitempty"`
	Definitions    []ComputationDefinition `json:"definitions"`
	Requests       []ComputationRequest    `json:"requests"`
	CallbackEvents []CallbackEvent         `json:"callback_events"`
	QueuePaused    bool                    `json:"queue_paused,omitempty"`
}

// DefaultGenesis returns the default genesis state.
func DefaultGenesis() *GenesisState {
	return &GenesisState{
		Params:         DefaultParams(),
		Definitions:    []ComputationDefinition{},
		Requests:       []ComputationRequest{},
		CallbackEvents: []CallbackEvent{},
	}
}

// Validate performs basic genesis state validation.
func (gs GenesisState) Validate() error {
	if err := gs.Params.Validate(); err != nil {
		return err
	}

	if gs.Cluster != nil {
		if err := gs.Cluster.Validate(); err != nil {
			return err
		}
	}

	defs := make(map[uint32]struct{}, len(gs.Definitions))
	for _, d := range gs.Definitions {
		if _, dup := defs[d.ID]; dup {
			return fmt.Errorf("duplicate definition id %d", d.ID)
		}
		if d.ID != DefinitionOffset(d.Name) {
			return fmt.Errorf("definition %s has id %d, expected %d", d.Name, d.ID, DefinitionOffset(d.Name))
		}
		if !d.Registered {
			return fmt.Errorf("definition %s is not registered", d.Name)
		}
		if err := d.Source.Validate(gs.Params.MaxInlineCircuitBytes); err != nil {
			return fmt.Errorf("definition %s: %w", d.Name, err)
		}
		if err := d.Signature.Validate(); err != nil {
			return fmt.Errorf("definition %s: %w", d.Name, err)
		}
		defs[d.ID] = struct{}{}
	}

	for _, h := range gs.ClusterHistory {
		if err := h.Validate(); err != nil {
			return fmt.Errorf("cluster history epoch %d: %w", h.Epoch, err)
		}
		if gs.Cluster != nil && h.Epoch > gs.Cluster.Epoch {
			return fmt.Errorf("cluster history epoch %d is ahead of active epoch %d", h.Epoch, gs.Cluster.Epoch)
		}
	}

	statuses := make(map[uint64]RequestStatus, len(gs.Requests))
	for _, r := range gs.Requests {
		if _, dup := statuses[r.Offset]; dup {
			return fmt.Errorf("duplicate request offset %d", r.Offset)
		}
		if _, ok := defs[r.DefinitionID]; !ok {
			return fmt.Errorf("request %d references unknown definition %d", r.Offset, r.DefinitionID)
		}
		if r.Status < StatusQueued || r.Status > StatusAborted {
			return fmt.Errorf("request %d has invalid status %d", r.Offset, r.Status)
		}
		if err := r.Callback.Validate(); err != nil {
			return fmt.Errorf("request %d: %w", r.Offset, err)
		}
		statuses[r.Offset] = r.Status
	}

	events := make(map[uint64]struct{}, len(gs.CallbackEvents))
	for _, e := range gs.CallbackEvents {
		if _, dup := events[e.Offset]; dup {
			return fmt.Errorf("duplicate callback event for offset %d", e.Offset)
		}
		if statuses[e.Offset] != StatusCompleted {
			return fmt.Errorf("callback event for offset %d without a completed request", e.Offset)
		}
		events[e.Offset] = struct{}{}
	}
	for offset, status := range statuses {
		if _, ok := events[offset]; status == StatusCompleted && !ok {
			return fmt.Errorf("completed request %d has no callback event", offset)
		}
	}

	return nil
}
