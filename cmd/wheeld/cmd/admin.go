package cmd

import (
	"fmt"
	"reflect"

	sdk "github.com/cosmos/cosmos-sdk/types"
	"github.com/spf13/cobra"

	"github.com/TOBY0001/encrypted-wheel/app"
	"github.com/TOBY0001/encrypted-wheel/x/mxe/simulation"
	mxetypes "github.com/TOBY0001/encrypted-wheel/x/mxe/types"
	wheelkeeper "github.com/TOBY0001/encrypted-wheel/x/wheel/keeper"
	wheeltypes "github.com/TOBY0001/encrypted-wheel/x/wheel/types"
)

const (
	flagReason          = "reason"
	flagRetentionBlocks = "retention-blocks"
)

// BootstrapCmd returns a command that publishes the simulated cluster and
// registers the spin circuit in one block.
func BootstrapCmd(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "bootstrap",
		Short: "Publish the simulated cluster and register the spin circuit",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, closeDB, err := e.openApp()
			if err != nil {
				return err
			}
			defer closeDB()

			cluster, err := e.newCluster(1)
			if err != nil {
				return err
			}
			source, _, err := wheelkeeper.DefaultSpinSource()
			if err != nil {
				return err
			}

			var def mxetypes.ComputationDefinition
			events, err := commitTx(a, "bootstrap", func(ctx sdk.Context) error {
				if err := a.MXEKeeper.SetClusterConfig(ctx, app.Authority(), cluster.Config()); err != nil {
					return err
				}
				def, err = a.WheelKeeper.InitSpinCompDef(ctx, app.Authority(), source)
				return err
			})
			if err != nil {
				return err
			}

			cfg := cluster.Config()
			return printJSON(cmd, map[string]interface{}{
				"height":         a.LastBlockHeight(),
				"epoch":          cfg.Epoch,
				"signers":        len(cfg.Signers),
				"threshold":      cfg.Threshold,
				"encryption_key": cfg.EncryptionKeyHex(),
				"definition":     def,
				"events":         eventsOutput(events),
			})
		},
	}
}

// AdminCmd returns the authority operations.
func AdminCmd(e *env) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "admin",
		Short: "Authority operations on the orchestrator",
	}
	cmd.AddCommand(
		breakerCmd(e, "pause", "Stop accepting new computations", true),
		breakerCmd(e, "resume", "Accept new computations again", false),
		rotateClusterCmd(e),
		pruneAuditCmd(e),
	)
	return cmd
}

func breakerCmd(e *env, use, short string, open bool) *cobra.Command {
	cmd := &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			reason, _ := cmd.Flags().GetString(flagReason)

			a, closeDB, err := e.openApp()
			if err != nil {
				return err
			}
			defer closeDB()

			events, err := commitTx(a, "circuit_breaker", func(ctx sdk.Context) error {
				if open {
					return a.MXEKeeper.OpenCircuitBreaker(ctx, app.Authority(), reason)
				}
				return a.MXEKeeper.CloseCircuitBreaker(ctx, app.Authority(), reason)
			})
			if err != nil {
				return err
			}

			var state interface{}
			_ = a.Query(func(ctx sdk.Context) error {
				state = a.MXEKeeper.GetCircuitBreakerState(ctx)
				return nil
			})
			return printJSON(cmd, map[string]interface{}{
				"height":          a.LastBlockHeight(),
				"circuit_breaker": state,
				"events":          eventsOutput(events),
			})
		},
	}
	cmd.Flags().String(flagReason, "", "reason recorded in the audit trail")
	return cmd
}

func rotateClusterCmd(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "rotate-cluster",
		Short: "Publish the simulated cluster at the next epoch",
		Long: `Rotate derives the signer set for the active epoch plus one from the
configured seed and publishes it. Results sealed under an earlier epoch
decrypt with "wheeld decrypt --epoch".`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, closeDB, err := e.openApp()
			if err != nil {
				return err
			}
			defer closeDB()

			active, err := activeCluster(a)
			if err != nil {
				return err
			}
			next, err := e.newCluster(active.Epoch + 1)
			if err != nil {
				return err
			}

			events, err := commitTx(a, "cluster_rotate", func(ctx sdk.Context) error {
				return a.MXEKeeper.SetClusterConfig(ctx, app.Authority(), next.Config())
			})
			if err != nil {
				return err
			}
			return printJSON(cmd, map[string]interface{}{
				"height":         a.LastBlockHeight(),
				"epoch":          next.Config().Epoch,
				"encryption_key": next.Config().EncryptionKeyHex(),
				"events":         eventsOutput(events),
			})
		},
	}
}

func pruneAuditCmd(e *env) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "prune-audit",
		Short: "Drop audit entries older than the retention window",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			retention, _ := cmd.Flags().GetInt64(flagRetentionBlocks)
			if retention <= 0 {
				return fmt.Errorf("--%s must be positive", flagRetentionBlocks)
			}

			a, closeDB, err := e.openApp()
			if err != nil {
				return err
			}
			defer closeDB()

			var pruned int
			if _, err := commitTx(a, "audit_prune", func(ctx sdk.Context) error {
				pruned, err = a.MXEKeeper.PruneAuditTrail(ctx, retention)
				return err
			}); err != nil {
				return err
			}
			return printJSON(cmd, map[string]interface{}{
				"height": a.LastBlockHeight(),
				"pruned": pruned,
			})
		},
	}
	cmd.Flags().Int64(flagRetentionBlocks, 100000, "number of recent blocks to keep")
	return cmd
}

// newCluster derives the simulated cluster for epoch from the configured
// seed.
func (e *env) newCluster(epoch uint64) (*simulation.Cluster, error) {
	c := e.cfg.Cluster
	cluster, err := simulation.NewCluster([]byte(c.Seed), epoch, c.Signers, c.Threshold)
	if err != nil {
		return nil, fmt.Errorf("failed to derive cluster: %w", err)
	}
	return cluster, nil
}

// loadCluster reconstructs the active cluster and checks it is the one
// published on chain. The spin circuit is hosted at its registered URL.
func (e *env) loadCluster(a *app.App) (*simulation.Cluster, error) {
	active, err := activeCluster(a)
	if err != nil {
		return nil, err
	}
	cluster, err := e.newCluster(active.Epoch)
	if err != nil {
		return nil, err
	}
	if !reflect.DeepEqual(cluster.Config(), active) {
		return nil, fmt.Errorf("cluster seed does not match the cluster published at epoch %d", active.Epoch)
	}

	source, program, err := wheelkeeper.DefaultSpinSource()
	if err != nil {
		return nil, err
	}
	cluster.Host(source.URL, program.Bytes())
	cluster.RegisterProgram(wheeltypes.SpinCircuitName, simulation.SpinProgram(program))
	return cluster, nil
}

func activeCluster(a *app.App) (mxetypes.ClusterConfig, error) {
	var cfg mxetypes.ClusterConfig
	err := a.Query(func(ctx sdk.Context) error {
		var err error
		cfg, err = a.MXEKeeper.GetClusterConfig(ctx)
		return err
	})
	if err != nil {
		return cfg, fmt.Errorf("%w; run wheeld bootstrap", err)
	}
	return cfg, nil
}

// commitTx executes fn as one transaction and commits the block. A
// finalizing error such as an aborted computation is committed and then
// returned with the events.
func commitTx(a *app.App, name string, fn func(ctx sdk.Context) error) (sdk.Events, error) {
	events, err := a.Execute(name, fn)
	if err != nil && !app.IsFinalizingError(err) {
		return nil, err
	}
	if _, cerr := a.Commit(); cerr != nil {
		return nil, cerr
	}
	return events, err
}

type eventOutput struct {
	Type       string            `json:"type"`
	Attributes map[string]string `json:"attributes,omitempty"`
}

func eventsOutput(events sdk.Events) []eventOutput {
	out := make([]eventOutput, 0, len(events))
	for _, ev := range events {
		attrs := make(map[string]string, len(ev.Attributes))
		for _, attr := range ev.Attributes {
			attrs[attr.Key] = attr.Value
		}
		out = append(out, eventOutput{Type: ev.Type, Attributes: attrs})
	}
	return out
}
