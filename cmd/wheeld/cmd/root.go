package cmd

import (
	"fmt"
	"io"
	"sync"

	"cosmossdk.io/log"
	dbm "github.com/cosmos/cosmos-db"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/TOBY0001/encrypted-wheel/app"
)

const (
	flagHome           = "home"
	flagChainID        = "chain-id"
	flagLogLevel       = "log-level"
	flagLogFormat      = "log-format"
	flagKeyringBackend = "keyring-backend"
)

// env is the state shared by subcommands once flags and config are resolved.
type env struct {
	viper  *viper.Viper
	cfg    Config
	logger log.Logger
}

var sdkConfigOnce sync.Once

// initSDKConfig sets the wheel bech32 prefixes once per process.
func initSDKConfig() {
	sdkConfigOnce.Do(app.SetConfig)
}

// NewRootCmd creates the wheeld root command.
func NewRootCmd() *cobra.Command {
	initSDKConfig()

	e := &env{viper: newViper()}

	rootCmd := &cobra.Command{
		Use:   "wheeld",
		Short: "Encrypted wheel node",
		Long: `wheeld runs the encrypted wheel application: a spin program whose outcome
is computed by a threshold MPC cluster and sealed to the player's key.

A local node keeps its state under --home. The MPC cluster is simulated from
the configured seed, so every invocation reconstructs the same signer set.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			cmd.SetOut(cmd.OutOrStdout())
			cmd.SetErr(cmd.ErrOrStderr())
			return e.load(cmd.ErrOrStderr())
		},
	}

	flags := rootCmd.PersistentFlags()
	flags.String(flagHome, DefaultNodeHome, "directory for config and data")
	flags.String(flagChainID, app.DefaultChainID, "the chain id")
	flags.String(flagLogLevel, "info", "log level, e.g. info or mxe:debug,*:info")
	flags.String(flagLogFormat, "plain", "log format (plain|json)")
	flags.String(flagKeyringBackend, "test", "keyring backend (os|file|test|memory)")
	bindFlags(e.viper, flags, flagHome, flagChainID, flagLogLevel, flagLogFormat, flagKeyringBackend)

	rootCmd.AddCommand(
		InitCmd(e),
		KeysCmd(e),
		CircuitCmd(),
		BootstrapCmd(e),
		SpinCmd(e),
		ProcessCmd(e),
		DecryptCmd(e),
		AdminCmd(e),
		QueryCmd(e),
		ServeCmd(e),
	)

	return rootCmd
}

// bindFlags makes the named flags the highest precedence source of the
// viper keys of the same name.
func bindFlags(v *viper.Viper, flags *pflag.FlagSet, names ...string) {
	for _, name := range names {
		if err := v.BindPFlag(name, flags.Lookup(name)); err != nil {
			panic(err)
		}
	}
}

// load resolves the home directory, merges the config file and builds the
// logger.
func (e *env) load(logOut io.Writer) error {
	home := e.viper.GetString(flagHome)
	if home == "" {
		home = DefaultNodeHome
	}
	if err := readConfigFile(e.viper, home); err != nil {
		return err
	}

	cfg, err := loadConfig(e.viper, home)
	if err != nil {
		return err
	}
	e.cfg = cfg

	e.logger, err = newLogger(cfg, logOut)
	return err
}

func newLogger(cfg Config, out io.Writer) (log.Logger, error) {
	filter, err := log.ParseLogLevel(cfg.LogLevel)
	if err != nil {
		return nil, fmt.Errorf("invalid log level: %w", err)
	}

	opts := []log.Option{log.FilterOption(filter)}
	switch cfg.LogFormat {
	case "json":
		opts = append(opts, log.OutputJSONOption())
	case "plain", "":
	default:
		return nil, fmt.Errorf("unknown log format %q", cfg.LogFormat)
	}
	return log.NewLogger(out, opts...), nil
}

// openApp opens the node database and loads the latest committed state. The
// returned closer must be called once the command is done.
func (e *env) openApp() (*app.App, func() error, error) {
	db, err := openDB(e.cfg.Home)
	if err != nil {
		return nil, nil, err
	}

	a, err := app.NewApp(e.logger, db, e.cfg.ChainID)
	if err != nil {
		_ = db.Close()
		return nil, nil, err
	}
	if a.LastBlockHeight() == 0 {
		_ = db.Close()
		return nil, nil, fmt.Errorf("node at %s is not initialized; run wheeld init", e.cfg.Home)
	}
	return a, db.Close, nil
}

func openDB(home string) (dbm.DB, error) {
	db, err := dbm.NewDB("application", dbm.GoLevelDBBackend, dataDir(home))
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	return db, nil
}
