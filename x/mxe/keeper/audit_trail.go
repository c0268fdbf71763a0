package keeper

import (
	"context"
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"time"

	storetypes "cosmossdk.io/store/types"
	sdk "github.com/cosmos/cosmos-sdk/types"

	"github.com/TOBY0001/encrypted-wheel/x/mxe/types"
)

// AuditEntry is one administrative action recorded against the mxe store.
type AuditEntry struct {
	Sequence    uint64            `json:"sequence"`
	Timestamp   time.Time         `json:"timestamp"`
	BlockHeight int64             `json:"block_height"`
	TxHash      string            `json:"tx_hash,omitempty"`
	Action      string            `json:"action"`
	Actor       string            `json:"actor"`
	Target      string            `json:"target"`
	OldValue    string            `json:"old_value,omitempty"`
	NewValue    string            `json:"new_value,omitempty"`
	Metadata    map[string]string `json:"metadata,omitempty"`
}

// LogAuditEntry records an audit trail entry under the next sequence number.
func (k Keeper) LogAuditEntry(ctx context.Context, entry AuditEntry) error {
	sdkCtx := sdk.UnwrapSDKContext(ctx)
	entry.BlockHeight = sdkCtx.BlockHeight()
	entry.Timestamp = sdkCtx.BlockTime()

	if txBytes := sdkCtx.TxBytes(); len(txBytes) > 0 {
		hash := sha256.Sum256(txBytes)
		entry.TxHash = fmt.Sprintf("%X", hash)
	}

	store := k.getStore(ctx)
	entry.Sequence = types.BytesToUint64(store.Get(types.NextAuditIDKey))

	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("failed to marshal audit entry: %w", err)
	}
	store.Set(types.AuditKey(entry.Sequence), data)
	store.Set(types.NextAuditIDKey, types.Uint64ToBytes(entry.Sequence+1))

	sdkCtx.EventManager().EmitEvent(
		sdk.NewEvent(
			"audit_trail",
			sdk.NewAttribute("action", entry.Action),
			sdk.NewAttribute(types.AttributeKeyActor, entry.Actor),
			sdk.NewAttribute("target", entry.Target),
			sdk.NewAttribute("block_height", fmt.Sprintf("%d", entry.BlockHeight)),
		),
	)

	k.Logger(ctx).Info("audit: "+entry.Action, "actor", entry.Actor, "target", entry.Target)
	return nil
}

// AuditAdminAction records an authority action with free-form metadata.
func (k Keeper) AuditAdminAction(ctx context.Context, action, actor, target string, metadata map[string]string) error {
	return k.LogAuditEntry(ctx, AuditEntry{
		Action:   action,
		Actor:    actor,
		Target:   target,
		Metadata: metadata,
	})
}

// AuditStateChange records a state change with its old and new values.
func (k Keeper) AuditStateChange(ctx context.Context, action, actor, target string, oldState, newState interface{}) error {
	oldJSON, err := json.Marshal(oldState)
	if err != nil {
		return fmt.Errorf("failed to marshal old state: %w", err)
	}
	newJSON, err := json.Marshal(newState)
	if err != nil {
		return fmt.Errorf("failed to marshal new state: %w", err)
	}

	return k.LogAuditEntry(ctx, AuditEntry{
		Action:   action,
		Actor:    actor,
		Target:   target,
		OldValue: string(oldJSON),
		NewValue: string(newJSON),
	})
}

// QueryAuditTrail returns up to maxEntries entries recorded between
// startHeight and endHeight inclusive, oldest first.
func (k Keeper) QueryAuditTrail(ctx context.Context, startHeight, endHeight int64, maxEntries int) ([]AuditEntry, error) {
	iterator := storetypes.KVStorePrefixIterator(k.getStore(ctx), types.AuditKeyPrefix)
	defer iterator.Close()

	entries := make([]AuditEntry, 0)
	for ; iterator.Valid() && len(entries) < maxEntries; iterator.Next() {
		var entry AuditEntry
		if err := json.Unmarshal(iterator.Value(), &entry); err != nil {
			return nil, fmt.Errorf("QueryAuditTrail: unmarshal: %w", err)
		}
		if entry.BlockHeight >= startHeight && entry.BlockHeight <= endHeight {
			entries = append(entries, entry)
		}
	}
	return entries, nil
}

// PruneAuditTrail removes entries older than retentionBlocks.
func (k Keeper) PruneAuditTrail(ctx context.Context, retentionBlocks int64) (int, error) {
	cutoff := sdk.UnwrapSDKContext(ctx).BlockHeight() - retentionBlocks
	if cutoff <= 0 {
		return 0, nil
	}

	store := k.getStore(ctx)
	iterator := storetypes.KVStorePrefixIterator(store, types.AuditKeyPrefix)

	var stale [][]byte
	for ; iterator.Valid(); iterator.Next() {
		var entry AuditEntry
		if err := json.Unmarshal(iterator.Value(), &entry); err != nil {
			iterator.Close()
			return 0, fmt.Errorf("PruneAuditTrail: unmarshal: %w", err)
		}
		if entry.BlockHeight < cutoff {
			stale = append(stale, append([]byte{}, iterator.Key()...))
		}
	}
	iterator.Close()

	for _, key := range stale {
		store.Delete(key)
	}
	if len(stale) > 0 {
		k.Logger(ctx).Info("pruned audit entries", "count", len(stale), "cutoff_height", cutoff)
	}
	return len(stale), nil
}
