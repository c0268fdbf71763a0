package cmd

import (
	"fmt"
	"strconv"

	sdk "github.com/cosmos/cosmos-sdk/types"
	"github.com/spf13/cobra"

	"github.com/TOBY0001/encrypted-wheel/app"
	mxetypes "github.com/TOBY0001/encrypted-wheel/x/mxe/types"
)

const maxAuditEntries = 1000

// QueryCmd returns read-only commands over the committed state.
func QueryCmd(e *env) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "query",
		Aliases: []string{"q"},
		Short:   "Query the committed state",
	}
	cmd.AddCommand(
		queryCmd(e, "cluster", "Show the active cluster", cobra.NoArgs, func(a *app.App, ctx sdk.Context, _ []string) (interface{}, error) {
			return a.MXEKeeper.GetClusterConfig(ctx)
		}),
		queryCmd(e, "spin [offset]", "Show a spin", cobra.ExactArgs(1), func(a *app.App, ctx sdk.Context, args []string) (interface{}, error) {
			offset, err := strconv.ParseUint(args[0], 10, 64)
			if err != nil {
				return nil, fmt.Errorf("invalid offset: %w", err)
			}
			return a.WheelKeeper.GetSpin(ctx, offset)
		}),
		queryCmd(e, "spins [player]", "List the spins of a player address", cobra.ExactArgs(1), func(a *app.App, ctx sdk.Context, args []string) (interface{}, error) {
			return a.WheelKeeper.SpinsByPlayer(ctx, args[0])
		}),
		queryCmd(e, "computation [offset]", "Show a computation request and its callback", cobra.ExactArgs(1), func(a *app.App, ctx sdk.Context, args []string) (interface{}, error) {
			offset, err := strconv.ParseUint(args[0], 10, 64)
			if err != nil {
				return nil, fmt.Errorf("invalid offset: %w", err)
			}
			req, err := a.MXEKeeper.GetRequest(ctx, offset)
			if err != nil {
				return nil, err
			}
			out := map[string]interface{}{"request": req}
			if event, found, err := a.MXEKeeper.GetCallbackEvent(ctx, offset); err != nil {
				return nil, err
			} else if found {
				out["callback"] = event
			}
			return out, nil
		}),
		queryCmd(e, "pending", "List queued and executing computations", cobra.NoArgs, func(a *app.App, ctx sdk.Context, _ []string) (interface{}, error) {
			pending, err := a.MXEKeeper.PendingRequests(ctx)
			if pending == nil {
				pending = []mxetypes.ComputationRequest{}
			}
			return pending, err
		}),
		queryCmd(e, "definitions", "List registered computation definitions", cobra.NoArgs, func(a *app.App, ctx sdk.Context, _ []string) (interface{}, error) {
			defs := []mxetypes.ComputationDefinition{}
			err := a.MXEKeeper.IterateDefinitions(ctx, func(def mxetypes.ComputationDefinition) (bool, error) {
				defs = append(defs, def)
				return false, nil
			})
			return defs, err
		}),
		queryCmd(e, "audit", "Show the audit trail", cobra.NoArgs, func(a *app.App, ctx sdk.Context, _ []string) (interface{}, error) {
			return a.MXEKeeper.QueryAuditTrail(ctx, 0, a.LastBlockHeight(), maxAuditEntries)
		}),
		exportCmd(e),
	)
	return cmd
}

type queryFunc func(a *app.App, ctx sdk.Context, args []string) (interface{}, error)

func queryCmd(e *env, use, short string, args cobra.PositionalArgs, fn queryFunc) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  args,
		RunE: func(cmd *cobra.Command, cmdArgs []string) error {
			a, closeDB, err := e.openApp()
			if err != nil {
				return err
			}
			defer closeDB()

			var out interface{}
			if err := a.Query(func(ctx sdk.Context) error {
				var err error
				out, err = fn(a, ctx, cmdArgs)
				return err
			}); err != nil {
				return err
			}
			return printJSON(cmd, out)
		},
	}
}

func exportCmd(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "export",
		Short: "Export the state as a genesis app state",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, closeDB, err := e.openApp()
			if err != nil {
				return err
			}
			defer closeDB()

			genesis, err := a.ExportGenesis()
			if err != nil {
				return err
			}
			return printJSON(cmd, genesis)
		},
	}
}
