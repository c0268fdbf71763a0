package cmd

import (
	"encoding/hex"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/TOBY0001/encrypted-wheel/x/mxe/circuits"
	wheeltypes "github.com/TOBY0001/encrypted-wheel/x/wheel/types"
)

const flagOut = "out"

// CircuitCmd returns commands that work on the spin circuit without a node.
func CircuitCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "circuit",
		Short: "Compile and inspect the spin circuit",
	}
	cmd.AddCommand(compileCircuitCmd(), evalCircuitCmd())
	return cmd
}

func compileCircuitCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "compile",
		Short: "Compile the spin circuit and print its hash",
		Long: `Compile the spin circuit to R1CS. The printed hash is what the registered
definition pins; the bytes written with --out are what must be served at the
circuit URL.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			program, err := circuits.CompileSpin()
			if err != nil {
				return err
			}

			out, _ := cmd.Flags().GetString(flagOut)
			if out != "" {
				if err := os.WriteFile(out, program.Bytes(), 0o644); err != nil {
					return fmt.Errorf("failed to write circuit: %w", err)
				}
			}

			hash := program.Hash()
			return printJSON(cmd, map[string]interface{}{
				"name":        circuits.SpinName,
				"url":         wheeltypes.DefaultSpinCircuitURL,
				"hash":        hex.EncodeToString(hash[:]),
				"size":        len(program.Bytes()),
				"constraints": program.Constraints(),
				"out":         out,
			})
		},
	}
	cmd.Flags().String(flagOut, "", "write the compiled circuit to this file")
	return cmd
}

func evalCircuitCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "eval [random] [segments]",
		Short: "Evaluate one spin in the clear and check the witness",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			random, err := parseUint8(args[0])
			if err != nil {
				return fmt.Errorf("random: %w", err)
			}
			segments, err := parseUint8(args[1])
			if err != nil {
				return fmt.Errorf("segments: %w", err)
			}

			program, err := circuits.CompileSpin()
			if err != nil {
				return err
			}
			outcome, err := program.Execute(random, segments)
			if err != nil {
				return err
			}
			return printJSON(cmd, map[string]interface{}{
				"random":   random,
				"segments": segments,
				"outcome":  outcome,
			})
		},
	}
}
