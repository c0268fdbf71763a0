package keeper

import (
	"context"
	"encoding/json"
	"fmt"

	errorsmod "cosmossdk.io/errors"
	"cosmossdk.io/log"
	storetypes "cosmossdk.io/store/types"
	sdk "github.com/cosmos/cosmos-sdk/types"

	"github.com/TOBY0001/encrypted-wheel/x/mxe/types"
)

// Keeper of the mxe store. It owns computation definitions and requests for
// their whole lifetime; the cluster configuration is read through a
// ClusterResolver.
type Keeper struct {
	storeKey  storetypes.StoreKey
	authority string

	clusters    types.ClusterResolver
	definitions types.DefinitionStorage
	callbacks   map[string]types.CallbackHandler

	metrics *MXEMetrics
}

type kvStoreProvider interface {
	KVStore(key storetypes.StoreKey) storetypes.KVStore
}

// NewKeeper creates a new mxe Keeper instance. authority is the address
// allowed to register definitions, publish cluster configurations and pause
// the queue.
func NewKeeper(key storetypes.StoreKey, authority string) *Keeper {
	k := &Keeper{
		storeKey:  key,
		authority: authority,
		callbacks: make(map[string]types.CallbackHandler),
		metrics:   NewMXEMetrics(),
	}
	k.clusters = storeClusterResolver{k}
	k.definitions = storeDefinitionStorage{k}
	return k
}

// SetClusterResolver replaces the store-backed cluster resolver.
func (k *Keeper) SetClusterResolver(r types.ClusterResolver) {
	k.clusters = r
}

// SetDefinitionStorage replaces the store-backed definition lookup used by
// the queue and the verifier.
func (k *Keeper) SetDefinitionStorage(s types.DefinitionStorage) {
	k.definitions = s
}

// RegisterCallbackHandler routes callbacks addressed to module to h.
func (k *Keeper) RegisterCallbackHandler(module string, h types.CallbackHandler) {
	if module == "" || h == nil {
		panic("mxe: callback handler requires a module name and a handler")
	}
	if _, exists := k.callbacks[module]; exists {
		panic(fmt.Sprintf("mxe: callback handler for %s already registered", module))
	}
	k.callbacks[module] = h
}

// GetAuthority returns the module authority address.
func (k Keeper) GetAuthority() string {
	return k.authority
}

// Logger returns a module-scoped logger.
func (k Keeper) Logger(ctx context.Context) log.Logger {
	return sdk.UnwrapSDKContext(ctx).Logger().With("module", "x/"+types.ModuleName)
}

// getStore returns the KVStore for the mxe module
func (k Keeper) getStore(ctx context.Context) storetypes.KVStore {
	if provider, ok := ctx.(kvStoreProvider); ok {
		return provider.KVStore(k.storeKey)
	}

	unwrapped := sdk.UnwrapSDKContext(ctx)
	return unwrapped.KVStore(k.storeKey)
}

func (k Keeper) validateAuthority(actual string) error {
	if actual != k.authority {
		return errorsmod.Wrapf(types.ErrUnauthorized, "invalid authority; expected %s, got %s", k.authority, actual)
	}
	return nil
}

// GetParams retrieves the module parameters from the store
func (k Keeper) GetParams(ctx context.Context) (types.Params, error) {
	store := k.getStore(ctx)
	bz := store.Get(types.ParamsKey)
	if bz == nil {
		return types.DefaultParams(), nil
	}

	var params types.Params
	if err := json.Unmarshal(bz, &params); err != nil {
		return types.Params{}, fmt.Errorf("GetParams: unmarshal: %w", err)
	}
	return params, nil
}

// SetParams stores the module parameters.
func (k Keeper) SetParams(ctx context.Context, params types.Params) error {
	if err := params.Validate(); err != nil {
		return err
	}
	bz, err := json.Marshal(params)
	if err != nil {
		return fmt.Errorf("SetParams: marshal: %w", err)
	}

	k.getStore(ctx).Set(types.ParamsKey, bz)
	return nil
}

// UpdateParams replaces the parameters on behalf of the authority.
func (k Keeper) UpdateParams(ctx context.Context, authority string, params types.Params) error {
	if err := k.validateAuthority(authority); err != nil {
		return err
	}
	old, err := k.GetParams(ctx)
	if err != nil {
		return err
	}
	if err := k.SetParams(ctx, params); err != nil {
		return err
	}
	return k.AuditStateChange(ctx, "params.update", authority, types.ModuleName, old, params)
}
