package keeper

import (
	"context"
	"fmt"

	errorsmod "cosmossdk.io/errors"
	sdkmath "cosmossdk.io/math"
	"github.com/cosmos/cosmos-sdk/telemetry"
	sdk "github.com/cosmos/cosmos-sdk/types"
	"github.com/hashicorp/go-metrics"

	"github.com/TOBY0001/encrypted-wheel/x/mxe/circuits"
	mxetypes "github.com/TOBY0001/encrypted-wheel/x/mxe/types"
	"github.com/TOBY0001/encrypted-wheel/x/wheel/types"
)

// DefaultSpinSource compiles the spin circuit and describes it as hosted at
// DefaultSpinCircuitURL, pinned to the hash of the compiled bytes.
func DefaultSpinSource() (mxetypes.CircuitSource, *circuits.SpinProgram, error) {
	program, err := circuits.CompileSpin()
	if err != nil {
		return mxetypes.CircuitSource{}, nil, err
	}
	return mxetypes.OffChainSource(types.DefaultSpinCircuitURL, program.Hash()), program, nil
}

// InitSpinCompDef registers the spin circuit with the orchestrator. It runs
// once; a second call fails with ErrAlreadyRegistered.
func (k Keeper) InitSpinCompDef(ctx context.Context, authority string, source mxetypes.CircuitSource) (mxetypes.ComputationDefinition, error) {
	def, err := k.mxe.RegisterDefinition(ctx, authority, types.SpinCircuitName, source, types.SpinSignature())
	if err != nil {
		return mxetypes.ComputationDefinition{}, err
	}
	k.Logger(ctx).Info("spin circuit registered", "offset", def.ID, "source", source.Kind)
	return def, nil
}

// Spin queues an encrypted wheel spin under offset. The result is sealed to
// pubKey with nonce and arrives through OnComputationCallback.
func (k Keeper) Spin(
	ctx context.Context,
	payer string,
	offset uint64,
	numSegments uint8,
	pubKey [mxetypes.X25519PubKeySize]byte,
	nonce sdkmath.Uint,
) (mxetypes.ComputationRequest, error) {
	sdkCtx := sdk.UnwrapSDKContext(ctx)

	if numSegments == 0 {
		return mxetypes.ComputationRequest{}, types.ErrInvalidSegments
	}
	if pubKey == ([mxetypes.X25519PubKeySize]byte{}) {
		return mxetypes.ComputationRequest{}, types.ErrInvalidEncryptionKey
	}

	args, err := mxetypes.NewArgBuilder().
		X25519PubKey(pubKey).
		PlaintextU128(nonce).
		PlaintextU8(numSegments).
		Build()
	if err != nil {
		return mxetypes.ComputationRequest{}, err
	}
	encoded, err := mxetypes.EncodeArguments(types.SpinSignature().Parameters, args)
	if err != nil {
		return mxetypes.ComputationRequest{}, err
	}

	req, err := k.mxe.QueueComputation(
		ctx,
		payer,
		offset,
		mxetypes.DefinitionOffset(types.SpinCircuitName),
		encoded,
		types.SpinCallback(),
	)
	if err != nil {
		return mxetypes.ComputationRequest{}, err
	}

	spin := types.SpinRecord{
		Offset:        offset,
		Player:        payer,
		NumSegments:   numSegments,
		EncryptionKey: pubKey,
		Nonce:         nonce.String(),
		Status:        types.SpinPending,
		QueuedHeight:  sdkCtx.BlockHeight(),
	}
	if err := k.setSpin(ctx, spin); err != nil {
		return mxetypes.ComputationRequest{}, err
	}

	sdkCtx.EventManager().EmitEvent(
		sdk.NewEvent(
			types.EventTypeSpinQueued,
			sdk.NewAttribute(types.AttributeKeyOffset, fmt.Sprintf("%d", offset)),
			sdk.NewAttribute(types.AttributeKeyPlayer, payer),
			sdk.NewAttribute(types.AttributeKeyNumSegments, fmt.Sprintf("%d", numSegments)),
		),
	)
	recordSpin(types.SpinPending, numSegments)
	return req, nil
}

// OnComputationCallback settles a spin with its sealed result and emits the
// spin event the player watches for.
func (k Keeper) OnComputationCallback(ctx context.Context, event mxetypes.CallbackEvent) error {
	if event.Instruction != types.SpinCallbackInstruction {
		return errorsmod.Wrapf(types.ErrUnknownInstruction, "%s", event.Instruction)
	}

	spin, err := k.GetSpin(ctx, event.Offset)
	if err != nil {
		return err
	}
	if spin.Status != types.SpinPending {
		return errorsmod.Wrapf(types.ErrSpinAlreadySettled, "offset %d is %s", event.Offset, spin.Status)
	}

	sdkCtx := sdk.UnwrapSDKContext(ctx)
	spin.Status = types.SpinSettled
	spin.Result = event.Result
	spin.SettledHeight = sdkCtx.BlockHeight()
	if err := k.setSpin(ctx, spin); err != nil {
		return err
	}

	sdkCtx.EventManager().EmitEvent(
		sdk.NewEvent(
			types.EventTypeSpin,
			sdk.NewAttribute(types.AttributeKeyOffset, fmt.Sprintf("%d", event.Offset)),
			sdk.NewAttribute(types.AttributeKeyResult, spin.ResultHex()),
		),
	)
	recordSpin(types.SpinSettled, spin.NumSegments)
	k.Logger(ctx).Info("spin settled", "offset", event.Offset, "player", spin.Player)
	return nil
}

// OnComputationAborted records that a spin will never settle. No spin event
// is emitted.
func (k Keeper) OnComputationAborted(ctx context.Context, offset uint64, reason string) error {
	spin, err := k.GetSpin(ctx, offset)
	if err != nil {
		return err
	}
	if spin.Status != types.SpinPending {
		return errorsmod.Wrapf(types.ErrSpinAlreadySettled, "offset %d is %s", offset, spin.Status)
	}

	sdkCtx := sdk.UnwrapSDKContext(ctx)
	spin.Status = types.SpinAborted
	spin.AbortReason = reason
	spin.SettledHeight = sdkCtx.BlockHeight()
	if err := k.setSpin(ctx, spin); err != nil {
		return err
	}

	sdkCtx.EventManager().EmitEvent(
		sdk.NewEvent(
			types.EventTypeSpinAborted,
			sdk.NewAttribute(types.AttributeKeyOffset, fmt.Sprintf("%d", offset)),
			sdk.NewAttribute(types.AttributeKeyReason, reason),
		),
	)
	recordSpin(types.SpinAborted, spin.NumSegments)
	return nil
}

// recordSpin counts spin transitions through the SDK telemetry sink.
func recordSpin(status types.SpinStatus, numSegments uint8) {
	telemetry.IncrCounterWithLabels(
		[]string{types.ModuleName, "spin", string(status)},
		1,
		[]metrics.Label{telemetry.NewLabel("num_segments", fmt.Sprintf("%d", numSegments))},
	)
}
