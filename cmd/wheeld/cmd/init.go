package cmd

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	cmttypes "github.com/cometbft/cometbft/types"
	"github.com/spf13/cobra"

	"github.com/TOBY0001/encrypted-wheel/app"
)

const (
	flagOverwrite = "overwrite"
	flagGenesis   = "genesis"
)

// InitCmd returns a command that writes the node configuration and genesis
// and commits the genesis state as block 1.
func InitCmd(e *env) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Initialize the node configuration, genesis and state",
		Long: `Initialize writes <home>/config/wheeld.toml and <home>/config/genesis.json
and commits the genesis state.

By default the genesis holds no cluster and no circuit; run "wheeld bootstrap"
afterwards. Pass --genesis to start from an exported genesis instead.

Example:
  wheeld init --chain-id wheel-local-1 --home ~/.wheeld
`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			overwrite, _ := cmd.Flags().GetBool(flagOverwrite)
			importPath, _ := cmd.Flags().GetString(flagGenesis)

			genFile := genesisPath(e.cfg.Home)
			if !overwrite && fileExists(genFile) {
				return fmt.Errorf("genesis.json file already exists: %v", genFile)
			}

			genDoc, err := newGenesisDoc(e.cfg.ChainID, importPath)
			if err != nil {
				return err
			}
			var appState app.GenesisState
			if err := json.Unmarshal(genDoc.AppState, &appState); err != nil {
				return fmt.Errorf("failed to decode app state: %w", err)
			}
			if err := appState.Validate(); err != nil {
				return fmt.Errorf("invalid genesis: %w", err)
			}

			configPath, err := writeConfigFile(e.viper, e.cfg.Home)
			if err != nil {
				return err
			}
			if err := genDoc.SaveAs(genFile); err != nil {
				return fmt.Errorf("failed to write genesis: %w", err)
			}

			if overwrite {
				if err := os.RemoveAll(dataDir(e.cfg.Home)); err != nil {
					return fmt.Errorf("failed to reset data directory: %w", err)
				}
			}
			db, err := openDB(e.cfg.Home)
			if err != nil {
				return err
			}
			defer db.Close()

			a, err := app.NewApp(e.logger, db, genDoc.ChainID)
			if err != nil {
				return err
			}
			if a.LastBlockHeight() != 0 {
				return fmt.Errorf("state already initialized at height %d; pass --%s to reset", a.LastBlockHeight(), flagOverwrite)
			}
			if err := a.InitChain(appState); err != nil {
				return fmt.Errorf("failed to initialize chain: %w", err)
			}

			return printJSON(cmd, map[string]interface{}{
				"chain_id": genDoc.ChainID,
				"home":     e.cfg.Home,
				"config":   configPath,
				"genesis":  genFile,
				"height":   a.LastBlockHeight(),
			})
		},
	}

	cmd.Flags().Bool(flagOverwrite, false, "overwrite the genesis and reset the state")
	cmd.Flags().String(flagGenesis, "", "start from an exported genesis file")

	return cmd
}

// newGenesisDoc builds the default genesis for chainID, or loads importPath.
func newGenesisDoc(chainID, importPath string) (*cmttypes.GenesisDoc, error) {
	if importPath != "" {
		genDoc, err := cmttypes.GenesisDocFromFile(importPath)
		if err != nil {
			return nil, fmt.Errorf("failed to read genesis %s: %w", importPath, err)
		}
		return genDoc, nil
	}

	appState, err := json.MarshalIndent(app.NewDefaultGenesisState(), "", " ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal default genesis state: %w", err)
	}
	genDoc := &cmttypes.GenesisDoc{
		ChainID:         chainID,
		GenesisTime:     time.Now().UTC(),
		ConsensusParams: cmttypes.DefaultConsensusParams(),
		AppState:        appState,
	}
	if err := genDoc.ValidateAndComplete(); err != nil {
		return nil, fmt.Errorf("failed to validate genesis doc: %w", err)
	}
	return genDoc, nil
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return !errors.Is(err, os.ErrNotExist)
}

func printJSON(cmd *cobra.Command, v interface{}) error {
	bz, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(cmd.OutOrStdout(), string(bz))
	return err
}
