package keeper

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	errorsmod "cosmossdk.io/errors"
	storetypes "cosmossdk.io/store/types"
	sdk "github.com/cosmos/cosmos-sdk/types"

	"github.com/TOBY0001/encrypted-wheel/x/mxe/types"
)

// SetClusterConfig publishes a new signer set. Epochs only move forward; the
// superseded configuration is kept in the history so outputs can be traced to
// the signer set that produced them.
func (k Keeper) SetClusterConfig(ctx context.Context, authority string, cfg types.ClusterConfig) error {
	if err := k.validateAuthority(authority); err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	prev, err := k.GetClusterConfig(ctx)
	switch {
	case err == nil:
		if cfg.Epoch <= prev.Epoch {
			return errorsmod.Wrapf(types.ErrInvalidClusterConfig, "epoch %d does not advance past %d", cfg.Epoch, prev.Epoch)
		}
	case !errors.Is(err, types.ErrClusterNotSet):
		return err
	}

	if err := k.setClusterConfig(ctx, cfg); err != nil {
		return err
	}

	sdk.UnwrapSDKContext(ctx).EventManager().EmitEvent(
		sdk.NewEvent(
			types.EventTypeClusterUpdated,
			sdk.NewAttribute(types.AttributeKeyEpoch, fmt.Sprintf("%d", cfg.Epoch)),
			sdk.NewAttribute(types.AttributeKeyThreshold, fmt.Sprintf("%d", cfg.Threshold)),
			sdk.NewAttribute(types.AttributeKeySigners, fmt.Sprintf("%d", len(cfg.Signers))),
		),
	)

	k.Logger(ctx).Info("cluster configuration updated", "epoch", cfg.Epoch, "threshold", cfg.Threshold, "signers", len(cfg.Signers))
	return k.AuditAdminAction(ctx, "cluster.update", authority, fmt.Sprintf("epoch/%d", cfg.Epoch), map[string]string{
		"threshold":      fmt.Sprintf("%d", cfg.Threshold),
		"signers":        fmt.Sprintf("%d", len(cfg.Signers)),
		"encryption_key": cfg.EncryptionKeyHex(),
	})
}

// GetClusterConfig returns the active cluster configuration.
func (k Keeper) GetClusterConfig(ctx context.Context) (types.ClusterConfig, error) {
	bz := k.getStore(ctx).Get(types.ClusterConfigKey)
	if bz == nil {
		return types.ClusterConfig{}, types.ErrClusterNotSet
	}

	var cfg types.ClusterConfig
	if err := json.Unmarshal(bz, &cfg); err != nil {
		return types.ClusterConfig{}, fmt.Errorf("GetClusterConfig: unmarshal: %w", err)
	}
	return cfg, nil
}

// GetClusterConfigAtEpoch returns the configuration that was active at epoch.
func (k Keeper) GetClusterConfigAtEpoch(ctx context.Context, epoch uint64) (types.ClusterConfig, error) {
	bz := k.getStore(ctx).Get(types.ClusterHistoryKey(epoch))
	if bz == nil {
		return types.ClusterConfig{}, errorsmod.Wrapf(types.ErrClusterNotSet, "no configuration for epoch %d", epoch)
	}

	var cfg types.ClusterConfig
	if err := json.Unmarshal(bz, &cfg); err != nil {
		return types.ClusterConfig{}, fmt.Errorf("GetClusterConfigAtEpoch: unmarshal: %w", err)
	}
	return cfg, nil
}

// ClusterHistory lists every published configuration in epoch order.
func (k Keeper) ClusterHistory(ctx context.Context) ([]types.ClusterConfig, error) {
	iterator := storetypes.KVStorePrefixIterator(k.getStore(ctx), types.ClusterHistoryPrefix)
	defer iterator.Close()

	var history []types.ClusterConfig
	for ; iterator.Valid(); iterator.Next() {
		var cfg types.ClusterConfig
		if err := json.Unmarshal(iterator.Value(), &cfg); err != nil {
			return nil, fmt.Errorf("ClusterHistory: unmarshal: %w", err)
		}
		history = append(history, cfg)
	}
	return history, nil
}

// IsClusterSigner reports whether id belongs to the active signer set.
func (k Keeper) IsClusterSigner(ctx context.Context, id string) (bool, error) {
	cfg, err := k.clusters.ResolveClusterConfig(ctx)
	if err != nil {
		return false, err
	}
	_, ok := cfg.SignerIndex(id)
	return ok, nil
}

func (k Keeper) setClusterConfig(ctx context.Context, cfg types.ClusterConfig) error {
	bz, err := json.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("setClusterConfig: marshal: %w", err)
	}

	store := k.getStore(ctx)
	store.Set(types.ClusterConfigKey, bz)
	store.Set(types.ClusterHistoryKey(cfg.Epoch), bz)

	k.metrics.ClusterEpoch.Set(float64(cfg.Epoch))
	k.metrics.ClusterThreshold.Set(float64(cfg.Threshold))
	return nil
}

// storeClusterResolver reads the cluster configuration published to the
// keeper store.
type storeClusterResolver struct {
	k *Keeper
}

func (r storeClusterResolver) ResolveClusterConfig(ctx context.Context) (types.ClusterConfig, error) {
	return r.k.GetClusterConfig(ctx)
}
