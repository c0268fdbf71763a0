// Package app wires the mxe orchestrator and the wheel program over a single
// commit multistore and drives them block by block.
package app

import (
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"cosmossdk.io/log"
	"cosmossdk.io/store"
	"cosmossdk.io/store/metrics"
	storetypes "cosmossdk.io/store/types"
	cmtproto "github.com/cometbft/cometbft/proto/tendermint/types"
	dbm "github.com/cosmos/cosmos-db"
	sdk "github.com/cosmos/cosmos-sdk/types"
	authtypes "github.com/cosmos/cosmos-sdk/x/auth/types"
	govtypes "github.com/cosmos/cosmos-sdk/x/gov/types"

	mxekeeper "github.com/TOBY0001/encrypted-wheel/x/mxe/keeper"
	mxetypes "github.com/TOBY0001/encrypted-wheel/x/mxe/types"
	wheelkeeper "github.com/TOBY0001/encrypted-wheel/x/wheel/keeper"
	wheeltypes "github.com/TOBY0001/encrypted-wheel/x/wheel/types"
)

const (
	// AppName is the name of the application
	AppName = "wheel"

	// DefaultChainID is used when no chain id is configured
	DefaultChainID = "wheel-local-1"
)

type invariantRoute struct {
	module    string
	route     string
	invariant sdk.Invariant
}

// App holds the store and keepers of the wheel application.
type App struct {
	logger  log.Logger
	chainID string

	mu   sync.RWMutex
	cms  storetypes.CommitMultiStore
	keys map[string]*storetypes.KVStoreKey

	MXEKeeper   *mxekeeper.Keeper
	WheelKeeper wheelkeeper.Keeper

	invariants  []invariantRoute
	instruments *Instruments
	now         func() time.Time
}

// NewApp mounts the module stores under their own prefixes of db, loads the latest version and wires
// the keepers. The wheel keeper is registered as the callback handler for
// the "wheel" module.
func NewApp(logger log.Logger, db dbm.DB, chainID string) (*App, error) {
	if chainID == "" {
		chainID = DefaultChainID
	}

	keys := storetypes.NewKVStoreKeys(mxetypes.StoreKey, wheeltypes.StoreKey)
	cms := store.NewCommitMultiStore(db, logger, metrics.NewNoOpMetrics())
	for _, key := range keys {
		cms.MountStoreWithDB(key, storetypes.StoreTypeIAVL, nil)
	}
	if err := cms.LoadLatestVersion(); err != nil {
		return nil, fmt.Errorf("failed to load latest version: %w", err)
	}

	app := &App{
		logger:  logger.With("module", "app"),
		chainID: chainID,
		cms:     cms,
		keys:    keys,
		now:     func() time.Time { return time.Now().UTC() },
	}

	app.MXEKeeper = mxekeeper.NewKeeper(keys[mxetypes.StoreKey], Authority())
	app.WheelKeeper = wheelkeeper.NewKeeper(keys[wheeltypes.StoreKey], app.MXEKeeper)
	app.MXEKeeper.RegisterCallbackHandler(wheeltypes.ModuleName, app.WheelKeeper)

	mxekeeper.RegisterInvariants(app, *app.MXEKeeper)

	if cms.LastCommitID().Version > 0 {
		if _, err := app.MXEKeeper.RefreshPendingGauge(app.newContext(cms.CacheMultiStore())); err != nil {
			return nil, fmt.Errorf("failed to count pending computations: %w", err)
		}
	}

	return app, nil
}

// Authority is the governance module account, the only address allowed to
// register definitions, publish cluster configurations and pause the queue.
func Authority() string {
	return authtypes.NewModuleAddress(govtypes.ModuleName).String()
}

// ChainID returns the configured chain id.
func (app *App) ChainID() string {
	return app.chainID
}

// Logger returns the application logger.
func (app *App) Logger() log.Logger {
	return app.logger
}

// SetInstruments attaches OpenTelemetry instruments recorded on every
// execution and commit.
func (app *App) SetInstruments(i *Instruments) {
	app.instruments = i
}

// SetClock replaces the block time source.
func (app *App) SetClock(now func() time.Time) {
	app.now = now
}

// LastBlockHeight returns the height of the last committed block.
func (app *App) LastBlockHeight() int64 {
	app.mu.RLock()
	defer app.mu.RUnlock()
	return app.cms.LastCommitID().Version
}

// LastCommitID returns the id of the last committed block.
func (app *App) LastCommitID() storetypes.CommitID {
	app.mu.RLock()
	defer app.mu.RUnlock()
	return app.cms.LastCommitID()
}

// RegisterRoute implements sdk.InvariantRegistry.
func (app *App) RegisterRoute(moduleName, route string, invar sdk.Invariant) {
	app.invariants = append(app.invariants, invariantRoute{module: moduleName, route: route, invariant: invar})
}

func (app *App) newContext(ms storetypes.MultiStore) sdk.Context {
	header := cmtproto.Header{
		ChainID: app.chainID,
		Height:  app.cms.LastCommitID().Version + 1,
		Time:    app.now(),
	}
	return sdk.NewContext(ms, header, false, app.logger)
}

// Execute runs fn as one transaction in the current block. State written by
// fn is kept only when it returns nil, or when it returns an error wrapping
// mxetypes.ErrAbortedComputation: an abort finalizes the request, so its
// writes and events are kept and the error is still returned. The returned
// events are the ones the transaction emitted.
func (app *App) Execute(name string, fn func(ctx sdk.Context) error) (sdk.Events, error) {
	app.mu.Lock()
	defer app.mu.Unlock()

	start := time.Now()
	ctx := app.newContext(app.cms)
	cacheCtx, write := ctx.CacheContext()
	err := fn(cacheCtx)
	app.instruments.recordExecution(ctx, name, time.Since(start), err)
	if err != nil && !IsFinalizingError(err) {
		return nil, err
	}
	write()
	return ctx.EventManager().Events(), err
}

// IsFinalizingError reports whether err ends a transaction whose writes
// must be committed anyway.
func IsFinalizingError(err error) bool {
	return errors.Is(err, mxetypes.ErrAbortedComputation)
}

// Query runs fn against a throwaway branch of the latest state. Nothing fn
// writes is persisted.
func (app *App) Query(fn func(ctx sdk.Context) error) error {
	app.mu.RLock()
	defer app.mu.RUnlock()
	return fn(app.newContext(app.cms.CacheMultiStore()))
}

// Commit checks every registered invariant and persists the block. A broken
// invariant aborts the commit.
func (app *App) Commit() (storetypes.CommitID, error) {
	app.mu.Lock()
	defer app.mu.Unlock()

	ctx := app.newContext(app.cms.CacheMultiStore())
	if err := app.assertInvariants(ctx); err != nil {
		return storetypes.CommitID{}, err
	}

	id := app.cms.Commit()
	pending, err := app.MXEKeeper.RefreshPendingGauge(app.newContext(app.cms.CacheMultiStore()))
	if err != nil {
		return id, err
	}
	app.instruments.recordCommit(ctx, id.Version, pending)
	app.logger.Debug("committed block", "height", id.Version, "pending", pending)
	return id, nil
}

// AssertInvariants runs every registered invariant against the latest state.
func (app *App) AssertInvariants() error {
	return app.Query(app.assertInvariants)
}

func (app *App) assertInvariants(ctx sdk.Context) error {
	for _, inv := range app.invariants {
		if msg, broken := inv.invariant(ctx); broken {
			return fmt.Errorf("invariant %s/%s broken: %s", inv.module, inv.route, msg)
		}
	}
	return nil
}

// InitChain loads the genesis state and commits it as the first block.
func (app *App) InitChain(genesis GenesisState) error {
	var mxeGenesis mxetypes.GenesisState
	if err := unmarshalModuleGenesis(genesis, mxetypes.ModuleName, &mxeGenesis, mxetypes.DefaultGenesis()); err != nil {
		return err
	}
	var wheelGenesis wheeltypes.GenesisState
	if err := unmarshalModuleGenesis(genesis, wheeltypes.ModuleName, &wheelGenesis, wheeltypes.DefaultGenesis()); err != nil {
		return err
	}

	if _, err := app.Execute("init_chain", func(ctx sdk.Context) error {
		if err := app.MXEKeeper.InitGenesis(ctx, mxeGenesis); err != nil {
			return fmt.Errorf("mxe genesis: %w", err)
		}
		if err := app.WheelKeeper.InitGenesis(ctx, wheelGenesis); err != nil {
			return fmt.Errorf("wheel genesis: %w", err)
		}
		return nil
	}); err != nil {
		return err
	}

	_, err := app.Commit()
	return err
}

// ExportGenesis exports the state of every module.
func (app *App) ExportGenesis() (GenesisState, error) {
	genesis := make(GenesisState)
	err := app.Query(func(ctx sdk.Context) error {
		mxeGenesis, err := app.MXEKeeper.ExportGenesis(ctx)
		if err != nil {
			return err
		}
		wheelGenesis, err := app.WheelKeeper.ExportGenesis(ctx)
		if err != nil {
			return err
		}

		if genesis[mxetypes.ModuleName], err = json.Marshal(mxeGenesis); err != nil {
			return err
		}
		genesis[wheeltypes.ModuleName], err = json.Marshal(wheelGenesis)
		return err
	})
	if err != nil {
		return nil, err
	}
	return genesis, nil
}

func unmarshalModuleGenesis(genesis GenesisState, module string, target, fallback interface{}) error {
	raw, ok := genesis[module]
	if !ok || len(raw) == 0 {
		raw = mustMarshalJSON(fallback)
	}
	if err := json.Unmarshal(raw, target); err != nil {
		return fmt.Errorf("failed to decode %s genesis: %w", module, err)
	}
	return nil
}
