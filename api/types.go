package api

import (
	mxekeeper "github.com/TOBY0001/encrypted-wheel/x/mxe/keeper"
	mxetypes "github.com/TOBY0001/encrypted-wheel/x/mxe/types"
)

// ErrorResponse is returned with every non-2xx status.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

// StatusResponse describes the node.
type StatusResponse struct {
	ChainID string `json:"chain_id"`
	Height  int64  `json:"height"`
	AppHash string `json:"app_hash"`
}

// ClusterResponse is the active cluster configuration.
type ClusterResponse struct {
	Epoch         uint64   `json:"epoch"`
	Threshold     uint32   `json:"threshold"`
	Signers       []string `json:"signers"`
	EncryptionKey string   `json:"encryption_key"`
}

func newClusterResponse(cfg mxetypes.ClusterConfig) ClusterResponse {
	signers := make([]string, 0, len(cfg.Signers))
	for _, s := range cfg.Signers {
		signers = append(signers, s.ID)
	}
	return ClusterResponse{
		Epoch:         cfg.Epoch,
		Threshold:     cfg.Threshold,
		Signers:       signers,
		EncryptionKey: cfg.EncryptionKeyHex(),
	}
}

// DefinitionResponse is a registered circuit without its inline bytes.
type DefinitionResponse struct {
	ID               uint32                     `json:"id"`
	Name             string                     `json:"name"`
	SourceKind       mxetypes.CircuitSourceKind `json:"source_kind"`
	URL              string                     `json:"url,omitempty"`
	Hash             string                     `json:"hash"`
	Parameters       []string                   `json:"parameters"`
	Outputs          uint32                     `json:"outputs"`
	RegisteredHeight int64                      `json:"registered_height"`
}

func newDefinitionResponse(def mxetypes.ComputationDefinition) DefinitionResponse {
	params := make([]string, 0, len(def.Signature.Parameters))
	for _, p := range def.Signature.Parameters {
		params = append(params, p.String())
	}
	return DefinitionResponse{
		ID:               def.ID,
		Name:             def.Name,
		SourceKind:       def.Source.Kind,
		URL:              def.Source.URL,
		Hash:             def.Source.HashHex(),
		Parameters:       params,
		Outputs:          def.Signature.Outputs,
		RegisteredHeight: def.RegisteredHeight,
	}
}

// ComputationResponse is a request plus its callback event once completed.
type ComputationResponse struct {
	Request  mxetypes.ComputationRequest `json:"request"`
	Callback *mxetypes.CallbackEvent     `json:"callback,omitempty"`
}

// ComputationsResponse lists requests.
type ComputationsResponse struct {
	Computations []mxetypes.ComputationRequest `json:"computations"`
	Total        int                           `json:"total"`
}

// AuditResponse lists audit trail entries.
type AuditResponse struct {
	Entries []mxekeeper.AuditEntry `json:"entries"`
}
