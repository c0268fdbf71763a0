package cmd

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cast"
	"github.com/spf13/viper"

	"github.com/TOBY0001/encrypted-wheel/api"
	"github.com/TOBY0001/encrypted-wheel/app"
	"github.com/TOBY0001/encrypted-wheel/app/health"
	"github.com/TOBY0001/encrypted-wheel/app/telemetry"
)

const (
	configFileName  = "wheeld.toml"
	genesisFileName = "genesis.json"
	envPrefix       = "WHEEL"
)

// Config is the node configuration read from wheeld.toml, WHEEL_* variables
// and command line flags, in increasing precedence.
type Config struct {
	Home      string
	ChainID   string
	LogLevel  string
	LogFormat string

	KeyringBackend string

	// Cluster describes the locally simulated MPC cluster. Its keys are
	// derived from Seed, so every invocation reconstructs the same nodes.
	Cluster ClusterConfig

	API       api.Config
	Health    health.Config
	Telemetry telemetry.Config
}

// ClusterConfig parameterizes the simulated cluster.
type ClusterConfig struct {
	Seed      string
	Signers   int
	Threshold uint32
}

// DefaultNodeHome is the default home directory for wheeld.
var DefaultNodeHome = defaultHome()

func defaultHome() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".wheeld"
	}
	return filepath.Join(home, ".wheeld")
}

func setDefaults(v *viper.Viper) {
	apiDefaults := api.DefaultConfig()
	healthDefaults := health.DefaultConfig()

	v.SetDefault("chain-id", app.DefaultChainID)
	v.SetDefault("log-level", "info")
	v.SetDefault("log-format", "plain")
	v.SetDefault("keyring-backend", "test")

	v.SetDefault("cluster.seed", "wheel-local-cluster")
	v.SetDefault("cluster.signers", 4)
	v.SetDefault("cluster.threshold", 3)

	v.SetDefault("api.host", apiDefaults.Host)
	v.SetDefault("api.port", apiDefaults.Port)
	v.SetDefault("api.cors-origins", apiDefaults.CORSOrigins)
	v.SetDefault("api.rate-limit-rps", apiDefaults.RateLimitRPS)
	v.SetDefault("api.request-timeout", apiDefaults.RequestTimeout.String())
	v.SetDefault("api.metrics", apiDefaults.MetricsEnabled)

	v.SetDefault("health.max-pending", healthDefaults.MaxPending)
	v.SetDefault("health.cache-duration", healthDefaults.CacheDuration.String())

	v.SetDefault("telemetry.enabled", false)
	v.SetDefault("telemetry.otlp-endpoint", "localhost:4318")
	v.SetDefault("telemetry.sample-rate", 0.1)
	v.SetDefault("telemetry.environment", "local")
	v.SetDefault("telemetry.prometheus", true)
}

// newViper returns a viper instance with defaults and environment binding.
func newViper() *viper.Viper {
	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()
	return v
}

// readConfigFile merges <home>/config/wheeld.toml into v when it exists.
func readConfigFile(v *viper.Viper, home string) error {
	path := filepath.Join(home, "config", configFileName)
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return nil
	}
	v.SetConfigType("toml")
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return fmt.Errorf("failed to read %s: %w", configFileName, err)
	}
	return nil
}

// loadConfig decodes v into a Config.
func loadConfig(v *viper.Viper, home string) (Config, error) {
	requestTimeout, err := cast.ToDurationE(v.Get("api.request-timeout"))
	if err != nil {
		return Config{}, fmt.Errorf("api.request-timeout: %w", err)
	}
	cacheDuration, err := cast.ToDurationE(v.Get("health.cache-duration"))
	if err != nil {
		return Config{}, fmt.Errorf("health.cache-duration: %w", err)
	}
	threshold, err := cast.ToUint32E(v.Get("cluster.threshold"))
	if err != nil {
		return Config{}, fmt.Errorf("cluster.threshold: %w", err)
	}

	apiCfg := api.DefaultConfig()
	apiCfg.Host = cast.ToString(v.Get("api.host"))
	apiCfg.Port = cast.ToString(v.Get("api.port"))
	apiCfg.CORSOrigins = cast.ToStringSlice(v.Get("api.cors-origins"))
	apiCfg.RateLimitRPS = cast.ToInt(v.Get("api.rate-limit-rps"))
	apiCfg.RequestTimeout = requestTimeout
	apiCfg.MetricsEnabled = cast.ToBool(v.Get("api.metrics"))

	cfg := Config{
		Home:           home,
		ChainID:        cast.ToString(v.Get("chain-id")),
		LogLevel:       cast.ToString(v.Get("log-level")),
		LogFormat:      cast.ToString(v.Get("log-format")),
		KeyringBackend: cast.ToString(v.Get("keyring-backend")),
		Cluster: ClusterConfig{
			Seed:      cast.ToString(v.Get("cluster.seed")),
			Signers:   cast.ToInt(v.Get("cluster.signers")),
			Threshold: threshold,
		},
		API: apiCfg,
		Health: health.Config{
			MaxPending:    cast.ToInt(v.Get("health.max-pending")),
			CacheDuration: cacheDuration,
		},
		Telemetry: telemetry.Config{
			Enabled:           cast.ToBool(v.Get("telemetry.enabled")),
			OTLPEndpoint:      cast.ToString(v.Get("telemetry.otlp-endpoint")),
			SampleRate:        cast.ToFloat64(v.Get("telemetry.sample-rate")),
			Environment:       cast.ToString(v.Get("telemetry.environment")),
			PrometheusEnabled: cast.ToBool(v.Get("telemetry.prometheus")),
		},
	}
	cfg.Telemetry.ChainID = cfg.ChainID

	if cfg.Cluster.Seed == "" {
		return Config{}, fmt.Errorf("cluster.seed must not be empty")
	}
	return cfg, nil
}

// writeConfigFile writes the effective settings of v as wheeld.toml.
func writeConfigFile(v *viper.Viper, home string) (string, error) {
	dir := filepath.Join(home, "config")
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return "", err
	}
	path := filepath.Join(dir, configFileName)
	if err := v.WriteConfigAs(path); err != nil {
		return "", fmt.Errorf("failed to write %s: %w", configFileName, err)
	}
	return path, nil
}

func dataDir(home string) string {
	return filepath.Join(home, "data")
}

func genesisPath(home string) string {
	return filepath.Join(home, "config", genesisFileName)
}
