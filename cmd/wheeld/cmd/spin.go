package cmd

import (
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"

	sdkmath "cosmossdk.io/math"
	sdk "github.com/cosmos/cosmos-sdk/types"
	"github.com/spf13/cobra"

	"github.com/TOBY0001/encrypted-wheel/app"
	"github.com/TOBY0001/encrypted-wheel/x/mxe/client"
	"github.com/TOBY0001/encrypted-wheel/x/mxe/simulation"
	mxetypes "github.com/TOBY0001/encrypted-wheel/x/mxe/types"
	wheeltypes "github.com/TOBY0001/encrypted-wheel/x/wheel/types"
)

const (
	flagFrom      = "from"
	flagSegments  = "segments"
	flagOffset    = "offset"
	flagPublicKey = "public-key"
	flagNonce     = "nonce"
	flagQueueOnly = "queue-only"
)

// SpinCmd returns a command that queues a spin and, unless --queue-only is
// set, lets the simulated cluster settle it in the next block.
func SpinCmd(e *env) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "spin",
		Short: "Spin the wheel",
		Long: `Spin queues an encrypted wheel spin paid for by the --from key.

Without --public-key a fresh session is generated; its private key is printed
and the settled result is decrypted in place. With --public-key and --nonce
(from "wheeld keys session") only the holder of the private key can read the
result, using "wheeld decrypt".

Example:
  wheeld spin --from alice --segments 6`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			from, _ := cmd.Flags().GetString(flagFrom)
			segments, _ := cmd.Flags().GetUint8(flagSegments)
			offset, _ := cmd.Flags().GetUint64(flagOffset)
			queueOnly, _ := cmd.Flags().GetBool(flagQueueOnly)

			player, err := e.keyAddress(cmd, from)
			if err != nil {
				return err
			}
			session, local, err := spinSession(cmd)
			if err != nil {
				return err
			}
			if offset == 0 {
				if offset, err = client.FreshOffset(); err != nil {
					return err
				}
			}

			a, closeDB, err := e.openApp()
			if err != nil {
				return err
			}
			defer closeDB()

			events, err := commitTx(a, "spin", func(ctx sdk.Context) error {
				_, err := a.WheelKeeper.Spin(ctx, player, offset, segments, session.Keys.Public, session.Nonce)
				return err
			})
			if err != nil {
				return err
			}

			out := map[string]interface{}{
				"offset":       offset,
				"player":       player,
				"queued":       a.LastBlockHeight(),
				"public_key":   hex.EncodeToString(session.Keys.Public[:]),
				"nonce":        session.Nonce.String(),
				"queue_events": eventsOutput(events),
			}
			if local {
				out["private_key"] = hex.EncodeToString(session.Keys.Private[:])
			}
			if queueOnly {
				return printJSON(cmd, out)
			}

			cluster, err := e.loadCluster(a)
			if err != nil {
				return err
			}
			var event mxetypes.CallbackEvent
			events, err = commitTx(a, "process", func(ctx sdk.Context) error {
				event, err = cluster.Run(ctx, a.MXEKeeper, offset)
				return err
			})
			if err != nil {
				return err
			}

			out["settled"] = event.Height
			out["ciphertext"] = hex.EncodeToString(event.Result[:])
			out["callback_events"] = eventsOutput(events)
			if local {
				result, err := session.DecryptResult(cluster.EncryptionKey(), event.Result)
				if err != nil {
					return err
				}
				out["result"] = result
			}
			return printJSON(cmd, out)
		},
	}

	cmd.Flags().String(flagFrom, "", "name of the key paying for the spin")
	cmd.Flags().Uint8(flagSegments, 6, "number of wheel segments")
	cmd.Flags().Uint64(flagOffset, 0, "computation offset (random when 0)")
	cmd.Flags().String(flagPublicKey, "", "hex x25519 public key the result is sealed to")
	cmd.Flags().String(flagNonce, "", "decimal 128-bit nonce used with --public-key")
	cmd.Flags().Bool(flagQueueOnly, false, "queue the spin without processing it")
	_ = cmd.MarkFlagRequired(flagFrom)
	return cmd
}

// spinSession builds the encryption session from flags, or generates one.
// local reports whether the private key is known.
func spinSession(cmd *cobra.Command) (session client.Session, local bool, err error) {
	pubHex, _ := cmd.Flags().GetString(flagPublicKey)
	nonceStr, _ := cmd.Flags().GetString(flagNonce)

	if pubHex == "" {
		if nonceStr != "" {
			return session, false, fmt.Errorf("--%s requires --%s", flagNonce, flagPublicKey)
		}
		session, err = client.NewSession()
		return session, true, err
	}
	if nonceStr == "" {
		return session, false, fmt.Errorf("--%s requires --%s", flagPublicKey, flagNonce)
	}

	if session.Keys.Public, err = parseKey(pubHex); err != nil {
		return session, false, fmt.Errorf("invalid --%s: %w", flagPublicKey, err)
	}
	if session.Nonce, err = sdkmath.ParseUint(nonceStr); err != nil {
		return session, false, fmt.Errorf("invalid --%s: %w", flagNonce, err)
	}
	return session, false, nil
}

// ProcessCmd returns a command that has the simulated cluster settle every
// pending computation in one block.
func ProcessCmd(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "process",
		Short: "Execute and deliver all pending computations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, closeDB, err := e.openApp()
			if err != nil {
				return err
			}
			defer closeDB()

			cluster, err := e.loadCluster(a)
			if err != nil {
				return err
			}
			results, err := processPending(a, cluster)
			if err != nil {
				return err
			}
			if results == nil {
				results = []processResult{}
			}
			return printJSON(cmd, map[string]interface{}{
				"height":    a.LastBlockHeight(),
				"processed": results,
			})
		},
	}
}

type processResult struct {
	Offset uint64                 `json:"offset"`
	Status mxetypes.RequestStatus `json:"status"`
	Events []eventOutput          `json:"events,omitempty"`
	Error  string                 `json:"error,omitempty"`
}

// processPending runs every queued or executing request as its own
// transaction and commits one block. A request whose execution fails is
// reported and left pending. Nothing is committed when no work is pending.
func processPending(a *app.App, cluster *simulation.Cluster) ([]processResult, error) {
	var pending []mxetypes.ComputationRequest
	if err := a.Query(func(ctx sdk.Context) error {
		var err error
		pending, err = a.MXEKeeper.PendingRequests(ctx)
		return err
	}); err != nil {
		return nil, err
	}
	if len(pending) == 0 {
		return nil, nil
	}

	results := make([]processResult, 0, len(pending))
	for _, req := range pending {
		events, err := a.Execute("process", func(ctx sdk.Context) error {
			if req.Status == mxetypes.StatusQueued {
				if err := cluster.Claim(ctx, a.MXEKeeper, req.Offset); err != nil {
					return err
				}
			}
			out, err := cluster.Execute(ctx, a.MXEKeeper, req.Offset)
			if err != nil {
				return err
			}
			_, err = a.MXEKeeper.SubmitOutput(ctx, out)
			return err
		})

		result := processResult{Offset: req.Offset, Status: req.Status, Events: eventsOutput(events)}
		switch {
		case app.IsFinalizingError(err):
			a.Logger().Warn("computation aborted", "offset", req.Offset, "error", err)
			result.Error = err.Error()
		case err != nil:
			a.Logger().Error("computation not processed", "offset", req.Offset, "error", err)
			result.Error = err.Error()
		}
		if qerr := a.Query(func(ctx sdk.Context) error {
			current, err := a.MXEKeeper.GetRequest(ctx, req.Offset)
			result.Status = current.Status
			return err
		}); qerr != nil {
			return nil, qerr
		}
		results = append(results, result)
	}

	if _, err := a.Commit(); err != nil {
		return nil, err
	}
	return results, nil
}

// DecryptCmd returns a command that opens a settled spin result.
func DecryptCmd(e *env) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "decrypt [offset]",
		Short: "Decrypt a settled spin with the session private key",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			offset, err := strconv.ParseUint(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid offset: %w", err)
			}
			privHex, _ := cmd.Flags().GetString("private-key")
			epoch, _ := cmd.Flags().GetUint64("epoch")

			var session client.Session
			if session.Keys.Private, err = parseKey(privHex); err != nil {
				return fmt.Errorf("invalid --private-key: %w", err)
			}

			a, closeDB, err := e.openApp()
			if err != nil {
				return err
			}
			defer closeDB()

			var (
				spin    wheeltypes.SpinRecord
				cluster mxetypes.ClusterConfig
			)
			err = a.Query(func(ctx sdk.Context) error {
				var err error
				if spin, err = a.WheelKeeper.GetSpin(ctx, offset); err != nil {
					return err
				}
				if epoch == 0 {
					cluster, err = a.MXEKeeper.GetClusterConfig(ctx)
				} else {
					cluster, err = a.MXEKeeper.GetClusterConfigAtEpoch(ctx, epoch)
				}
				return err
			})
			if err != nil {
				return err
			}
			if spin.Status != wheeltypes.SpinSettled {
				return fmt.Errorf("spin %d is %s", offset, spin.Status)
			}

			if session.Nonce, err = sdkmath.ParseUint(spin.Nonce); err != nil {
				return fmt.Errorf("stored nonce: %w", err)
			}
			result, err := session.DecryptResult(cluster.EncryptionKey, spin.Result)
			if err != nil {
				return err
			}
			return printJSON(cmd, map[string]interface{}{
				"offset":   offset,
				"epoch":    cluster.Epoch,
				"segments": spin.NumSegments,
				"result":   result,
			})
		},
	}
	cmd.Flags().String("private-key", "", "hex x25519 private key of the session")
	cmd.Flags().Uint64("epoch", 0, "cluster epoch the result was sealed under (active when 0)")
	_ = cmd.MarkFlagRequired("private-key")
	return cmd
}

func parseKey(s string) ([32]byte, error) {
	var key [32]byte
	bz, err := hex.DecodeString(s)
	if err != nil {
		return key, err
	}
	if len(bz) != len(key) {
		return key, fmt.Errorf("expected %d bytes, got %d", len(key), len(bz))
	}
	copy(key[:], bz)
	if key == ([32]byte{}) {
		return key, errors.New("key is zero")
	}
	return key, nil
}

func parseUint8(s string) (uint8, error) {
	v, err := strconv.ParseUint(s, 10, 8)
	return uint8(v), err
}
