package keeper

import (
	"context"
	"encoding/json"
	"fmt"

	errorsmod "cosmossdk.io/errors"
	storetypes "cosmossdk.io/store/types"
	sdk "github.com/cosmos/cosmos-sdk/types"

	"github.com/TOBY0001/encrypted-wheel/x/mxe/types"
)

// RegisterDefinition records a circuit under the offset derived from its
// name. Registration happens once: a second attempt for the same name fails
// with ErrAlreadyRegistered and leaves the original untouched.
func (k Keeper) RegisterDefinition(
	ctx context.Context,
	authority string,
	name string,
	source types.CircuitSource,
	signature types.CircuitSignature,
) (types.ComputationDefinition, error) {
	sdkCtx := sdk.UnwrapSDKContext(ctx)

	if err := k.validateAuthority(authority); err != nil {
		return types.ComputationDefinition{}, err
	}
	if name == "" {
		return types.ComputationDefinition{}, errorsmod.Wrap(types.ErrInvalidCircuitSource, "circuit name is required")
	}

	params, err := k.GetParams(ctx)
	if err != nil {
		return types.ComputationDefinition{}, fmt.Errorf("failed to get params: %w", err)
	}
	if err := source.Validate(params.MaxInlineCircuitBytes); err != nil {
		return types.ComputationDefinition{}, err
	}
	if err := signature.Validate(); err != nil {
		return types.ComputationDefinition{}, err
	}
	if width := types.EncodedWidth(signature.Parameters); uint64(width) > uint64(params.MaxArgumentBytes) {
		return types.ComputationDefinition{}, errorsmod.Wrapf(types.ErrEncodingMismatch, "circuit arguments are %d bytes, limit %d", width, params.MaxArgumentBytes)
	}

	id := types.DefinitionOffset(name)
	store := k.getStore(ctx)
	if store.Has(types.DefinitionKey(id)) {
		return types.ComputationDefinition{}, errorsmod.Wrapf(types.ErrAlreadyRegistered, "%s (offset %d)", name, id)
	}

	def := types.ComputationDefinition{
		ID:               id,
		Name:             name,
		Source:           source,
		Signature:        signature,
		Registered:       true,
		Authority:        authority,
		RegisteredHeight: sdkCtx.BlockHeight(),
	}
	if err := k.setDefinition(ctx, def); err != nil {
		return types.ComputationDefinition{}, fmt.Errorf("failed to store definition: %w", err)
	}

	sdkCtx.EventManager().EmitEvent(
		sdk.NewEvent(
			types.EventTypeDefinitionRegistered,
			sdk.NewAttribute(types.AttributeKeyName, name),
			sdk.NewAttribute(types.AttributeKeyDefinitionID, fmt.Sprintf("%d", id)),
			sdk.NewAttribute(types.AttributeKeySourceKind, string(source.Kind)),
			sdk.NewAttribute(types.AttributeKeySourceHash, source.HashHex()),
		),
	)

	if err := k.AuditAdminAction(ctx, "definition.register", authority, name, map[string]string{
		"offset": fmt.Sprintf("%d", id),
		"source": string(source.Kind),
		"hash":   source.HashHex(),
	}); err != nil {
		return types.ComputationDefinition{}, err
	}

	k.metrics.DefinitionsRegistered.Inc()
	k.Logger(ctx).Info("computation definition registered", "name", name, "offset", id, "source", source.Kind)
	return def, nil
}

// GetDefinition returns the registered definition at offset id.
func (k Keeper) GetDefinition(ctx context.Context, id uint32) (types.ComputationDefinition, error) {
	bz := k.getStore(ctx).Get(types.DefinitionKey(id))
	if bz == nil {
		return types.ComputationDefinition{}, errorsmod.Wrapf(types.ErrUnregisteredDefinition, "offset %d", id)
	}

	var def types.ComputationDefinition
	if err := json.Unmarshal(bz, &def); err != nil {
		return types.ComputationDefinition{}, fmt.Errorf("GetDefinition: unmarshal: %w", err)
	}
	if !def.Registered {
		return types.ComputationDefinition{}, errorsmod.Wrapf(types.ErrUnregisteredDefinition, "offset %d", id)
	}
	return def, nil
}

// GetDefinitionByName resolves a circuit name through the registry mapping.
func (k Keeper) GetDefinitionByName(ctx context.Context, name string) (types.ComputationDefinition, error) {
	bz := k.getStore(ctx).Get(types.DefinitionByNameKey(name))
	if len(bz) != 4 {
		return types.ComputationDefinition{}, errorsmod.Wrapf(types.ErrUnregisteredDefinition, "name %s", name)
	}
	return k.GetDefinition(ctx, uint32(bz[0])<<24|uint32(bz[1])<<16|uint32(bz[2])<<8|uint32(bz[3]))
}

// VerifyCircuitBytes authenticates circuit bytes fetched for a definition
// against the content hash recorded at registration.
func (k Keeper) VerifyCircuitBytes(ctx context.Context, id uint32, fetched []byte) error {
	def, err := k.definitions.GetDefinition(ctx, id)
	if err != nil {
		return err
	}
	return def.Source.VerifyBytes(fetched)
}

// IterateDefinitions iterates over all registered definitions
func (k Keeper) IterateDefinitions(ctx context.Context, cb func(def types.ComputationDefinition) (stop bool, err error)) error {
	iterator := storetypes.KVStorePrefixIterator(k.getStore(ctx), types.DefinitionKeyPrefix)
	defer iterator.Close()

	for ; iterator.Valid(); iterator.Next() {
		var def types.ComputationDefinition
		if err := json.Unmarshal(iterator.Value(), &def); err != nil {
			return err
		}

		stop, err := cb(def)
		if err != nil {
			return err
		}
		if stop {
			break
		}
	}
	return nil
}

func (k Keeper) setDefinition(ctx context.Context, def types.ComputationDefinition) error {
	bz, err := json.Marshal(def)
	if err != nil {
		return err
	}

	store := k.getStore(ctx)
	store.Set(types.DefinitionKey(def.ID), bz)
	// Name index value is the big endian offset, matching DefinitionKey.
	store.Set(types.DefinitionByNameKey(def.Name), types.DefinitionKey(def.ID)[len(types.DefinitionKeyPrefix):])
	return nil
}

// storeDefinitionStorage adapts the keeper store to types.DefinitionStorage.
type storeDefinitionStorage struct {
	k *Keeper
}

func (s storeDefinitionStorage) GetDefinition(ctx context.Context, id uint32) (types.ComputationDefinition, error) {
	return s.k.GetDefinition(ctx, id)
}
