package keeper

import (
	"context"
	"time"

	"github.com/consensys/gnark-crypto/ecc/bn254"
	sdk "github.com/cosmos/cosmos-sdk/types"
	"go.opentelemetry.io/otel/attribute"

	"github.com/TOBY0001/encrypted-wheel/app/telemetry"
	"github.com/TOBY0001/encrypted-wheel/x/mxe/types"
)

// VerifyOutput checks a cluster output against the request it answers and
// the cluster configuration that must have produced it. Signers sign
// types.OutputSigningMessage with BLS over BN254; the aggregate signature is
// checked against the sum of the indicated signers' keys with a single
// pairing check. The outcome carries the failure reason instead of an error
// so delivery can finalize the request either way.
func (k Keeper) VerifyOutput(
	ctx context.Context,
	output types.SignedOutput,
	cluster types.ClusterConfig,
	request types.ComputationRequest,
) types.VerificationOutcome {
	sdkCtx := sdk.UnwrapSDKContext(ctx)
	_, span := telemetry.StartComputationSpan(ctx, types.ModuleName, "verify_output", request.Offset, sdkCtx.BlockHeight())
	defer span.End()

	start := time.Now()
	outcome := k.verifyOutput(ctx, output, cluster, request)
	k.metrics.VerificationTime.Observe(time.Since(start).Seconds())

	if outcome.Verified() {
		k.metrics.OutputsVerified.WithLabelValues("verified").Inc()
		k.metrics.SignersPerOutput.Observe(float64(outcome.SignerCount))
		telemetry.AddSpanAttributes(span, attribute.Int("cluster.signers", outcome.SignerCount))
		telemetry.SetSpanStatus(span, true, "verified")
		return outcome
	}

	k.metrics.OutputsVerified.WithLabelValues("rejected").Inc()
	telemetry.RecordError(span, outcome.Err)
	return outcome
}

func (k Keeper) verifyOutput(
	ctx context.Context,
	output types.SignedOutput,
	cluster types.ClusterConfig,
	request types.ComputationRequest,
) types.VerificationOutcome {
	offset := request.Offset

	if output.Offset != request.Offset {
		k.metrics.VerificationFailures.WithLabelValues("offset").Inc()
		return types.VerificationFailed(offset, "output offset %d does not match request %d", output.Offset, request.Offset)
	}
	if output.Epoch != cluster.Epoch {
		k.metrics.VerificationFailures.WithLabelValues("epoch").Inc()
		return types.VerificationFailed(offset, "output epoch %d, cluster epoch %d", output.Epoch, cluster.Epoch)
	}

	params, err := k.GetParams(ctx)
	if err != nil {
		return types.VerificationFailed(offset, "params: %s", err)
	}
	if len(output.Ciphertexts) == 0 || uint64(len(output.Ciphertexts)) > uint64(params.MaxOutputs) {
		k.metrics.VerificationFailures.WithLabelValues("outputs").Inc()
		return types.VerificationFailed(offset, "%d outputs outside [1, %d]", len(output.Ciphertexts), params.MaxOutputs)
	}

	if uint32(len(output.SignerIndices)) < cluster.Threshold {
		k.metrics.VerificationFailures.WithLabelValues("quorum").Inc()
		return types.VerificationFailed(offset, "%d signers below threshold %d", len(output.SignerIndices), cluster.Threshold)
	}

	var aggregate bn254.G2Jac
	seen := make(map[uint32]struct{}, len(output.SignerIndices))
	for _, idx := range output.SignerIndices {
		if int(idx) >= len(cluster.Signers) {
			k.metrics.VerificationFailures.WithLabelValues("signer_index").Inc()
			return types.VerificationFailed(offset, "signer index %d out of range", idx)
		}
		if _, dup := seen[idx]; dup {
			k.metrics.VerificationFailures.WithLabelValues("signer_index").Inc()
			return types.VerificationFailed(offset, "signer index %d repeated", idx)
		}
		seen[idx] = struct{}{}

		pk, err := types.DecodeSignerKey(cluster.Signers[idx].PubKey)
		if err != nil {
			return types.VerificationFailed(offset, "signer %s: %s", cluster.Signers[idx].ID, err)
		}
		aggregate.AddMixed(&pk)
	}

	var sig bn254.G1Affine
	if len(output.Signature) != bn254.SizeOfG1AffineCompressed {
		k.metrics.VerificationFailures.WithLabelValues("signature").Inc()
		return types.VerificationFailed(offset, "signature must be %d bytes, got %d", bn254.SizeOfG1AffineCompressed, len(output.Signature))
	}
	if _, err := sig.SetBytes(output.Signature); err != nil {
		k.metrics.VerificationFailures.WithLabelValues("signature").Inc()
		return types.VerificationFailed(offset, "signature: %s", err)
	}
	if sig.IsInfinity() {
		k.metrics.VerificationFailures.WithLabelValues("signature").Inc()
		return types.VerificationFailed(offset, "signature is the point at infinity")
	}

	msg := types.OutputSigningMessage(request.DefinitionID, request.Offset, output.Epoch, request.Arguments, output.Ciphertexts)
	hm, err := types.HashToSignatureCurve(msg)
	if err != nil {
		return types.VerificationFailed(offset, "hash to curve: %s", err)
	}

	var aggPK bn254.G2Affine
	aggPK.FromJacobian(&aggregate)
	var negHM bn254.G1Affine
	negHM.Neg(&hm)

	_, _, _, g2Gen := bn254.Generators()
	ok, err := bn254.PairingCheck(
		[]bn254.G1Affine{sig, negHM},
		[]bn254.G2Affine{g2Gen, aggPK},
	)
	if err != nil {
		return types.VerificationFailed(offset, "pairing: %s", err)
	}
	if !ok {
		k.metrics.VerificationFailures.WithLabelValues("signature").Inc()
		return types.VerificationFailed(offset, "aggregate signature does not verify")
	}

	ciphertexts := make([][types.CiphertextSize]byte, len(output.Ciphertexts))
	copy(ciphertexts, output.Ciphertexts)
	return types.VerificationOutcome{
		Offset:      offset,
		Ciphertexts: ciphertexts,
		SignerCount: len(output.SignerIndices),
	}
}
