package cmd

import (
	"bytes"
	"context"
	"encoding/hex"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/require"

	mxetypes "github.com/TOBY0001/encrypted-wheel/x/mxe/types"
	wheelkeeper "github.com/TOBY0001/encrypted-wheel/x/wheel/keeper"
)

// run executes wheeld with args against home and returns stdout.
func run(t *testing.T, home string, args ...string) (string, error) {
	t.Helper()
	cmd := NewRootCmd()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetIn(strings.NewReader(""))
	cmd.SetArgs(append(args, "--home", home, "--log-level", "error", "--chain-id", "wheel-cli-1"))
	err := cmd.ExecuteContext(context.Background())
	return stdout.String(), err
}

func mustRun(t *testing.T, home string, args ...string) map[string]interface{} {
	t.Helper()
	out, err := run(t, home, args...)
	require.NoError(t, err, out)
	var decoded map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(out), &decoded), out)
	return decoded
}

// initNode initializes a home with a player key and a bootstrapped cluster.
func initNode(t *testing.T) (home, player string) {
	t.Helper()
	home = t.TempDir()
	mustRun(t, home, "init")
	key := mustRun(t, home, "keys", "add", "alice", "--no-backup")
	mustRun(t, home, "bootstrap")
	return home, key["address"].(string)
}

func TestInitWritesConfigAndGenesis(t *testing.T) {
	home := t.TempDir()
	out := mustRun(t, home, "init")
	require.Equal(t, "wheel-cli-1", out["chain_id"])
	require.EqualValues(t, 1, out["height"])

	require.FileExists(t, filepath.Join(home, "config", configFileName))
	bz, err := os.ReadFile(genesisPath(home))
	require.NoError(t, err)
	require.Contains(t, string(bz), `"chain_id": "wheel-cli-1"`)

	_, err = run(t, home, "init")
	require.ErrorContains(t, err, "already exists")

	out = mustRun(t, home, "init", "--overwrite")
	require.EqualValues(t, 1, out["height"])
}

func TestCommandsRequireInit(t *testing.T) {
	_, err := run(t, t.TempDir(), "query", "cluster")
	require.ErrorContains(t, err, "wheeld init")
}

func TestKeys(t *testing.T) {
	home := t.TempDir()
	added := mustRun(t, home, "keys", "add", "alice")
	require.True(t, strings.HasPrefix(added["address"].(string), "wheel1"))
	require.Len(t, strings.Fields(added["mnemonic"].(string)), 24)

	shown := mustRun(t, home, "keys", "show", "alice")
	require.Equal(t, added["address"], shown["address"])
	require.Empty(t, shown["mnemonic"])

	_, err := run(t, home, "keys", "add", "bob", "--mnemonic-length", "18")
	require.ErrorContains(t, err, "12 or 24")

	session := mustRun(t, home, "keys", "session")
	priv, err := hex.DecodeString(session["private_key"].(string))
	require.NoError(t, err)
	require.Len(t, priv, 32)
	require.NotEmpty(t, session["nonce"])
}

func TestBootstrapTwiceFails(t *testing.T) {
	home, _ := initNode(t)
	_, err := run(t, home, "bootstrap")
	require.Error(t, err)

	cluster := mustRun(t, home, "query", "cluster")
	require.EqualValues(t, 1, cluster["epoch"])
	require.EqualValues(t, 3, cluster["threshold"])
}

func TestSpinSettlesAndDecrypts(t *testing.T) {
	home, player := initNode(t)

	out := mustRun(t, home, "spin", "--from", "alice", "--segments", "6", "--offset", "77")
	require.EqualValues(t, 77, out["offset"])
	require.Equal(t, player, out["player"])
	result := out["result"].(float64)
	require.GreaterOrEqual(t, result, float64(1))
	require.LessOrEqual(t, result, float64(6))

	spin := mustRun(t, home, "query", "spin", "77")
	require.Equal(t, "settled", spin["status"])

	decrypted := mustRun(t, home, "decrypt", "77", "--private-key", out["private_key"].(string))
	require.Equal(t, result, decrypted["result"])

	_, err := run(t, home, "spin", "--from", "alice", "--offset", "77")
	require.ErrorIs(t, err, mxetypes.ErrDuplicateOffset)
}

func TestQueuedSpinIsProcessedLater(t *testing.T) {
	home, _ := initNode(t)
	session := mustRun(t, home, "keys", "session")

	out := mustRun(t, home, "spin", "--from", "alice", "--segments", "4", "--offset", "5",
		"--public-key", session["public_key"].(string), "--nonce", session["nonce"].(string), "--queue-only")
	require.Nil(t, out["private_key"])
	require.Nil(t, out["result"])

	pending, err := run(t, home, "query", "pending")
	require.NoError(t, err)
	require.Contains(t, pending, `"offset": 5`)

	_, err = run(t, home, "decrypt", "5", "--private-key", session["private_key"].(string))
	require.ErrorContains(t, err, "pending")

	processed := mustRun(t, home, "process")
	require.Len(t, processed["processed"], 1)

	decrypted := mustRun(t, home, "decrypt", "5", "--private-key", session["private_key"].(string))
	require.GreaterOrEqual(t, decrypted["result"].(float64), float64(1))
	require.LessOrEqual(t, decrypted["result"].(float64), float64(4))

	processed = mustRun(t, home, "process")
	require.Empty(t, processed["processed"])
}

func TestSpinFlagValidation(t *testing.T) {
	home, _ := initNode(t)

	_, err := run(t, home, "spin", "--from", "alice", "--nonce", "1")
	require.ErrorContains(t, err, "--public-key")

	_, err = run(t, home, "spin", "--from", "alice", "--public-key", "abcd", "--nonce", "1")
	require.ErrorContains(t, err, "invalid --public-key")

	_, err = run(t, home, "spin", "--from", "mallory")
	require.ErrorContains(t, err, "mallory")

	_, err = run(t, home, "spin", "--from", "alice", "--segments", "0")
	require.Error(t, err)
}

func TestAdminPauseAndRotate(t *testing.T) {
	home, _ := initNode(t)
	out := mustRun(t, home, "spin", "--from", "alice", "--offset", "9")

	paused := mustRun(t, home, "admin", "pause", "--reason", "maintenance")
	require.Equal(t, true, paused["circuit_breaker"].(map[string]interface{})["open"])

	_, err := run(t, home, "spin", "--from", "alice", "--offset", "10")
	require.ErrorIs(t, err, mxetypes.ErrQueuePaused)

	mustRun(t, home, "admin", "resume", "--reason", "done")
	mustRun(t, home, "spin", "--from", "alice", "--offset", "10")

	rotated := mustRun(t, home, "admin", "rotate-cluster")
	require.EqualValues(t, 2, rotated["epoch"])

	// Spins settle under the new epoch, old results open with the old key.
	mustRun(t, home, "spin", "--from", "alice", "--offset", "11")
	decrypted := mustRun(t, home, "decrypt", "9", "--private-key", out["private_key"].(string), "--epoch", "1")
	require.Equal(t, out["result"], decrypted["result"])

	audit, err := run(t, home, "query", "audit")
	require.NoError(t, err)
	require.Contains(t, audit, "circuit_breaker.open")

	pruned := mustRun(t, home, "admin", "prune-audit", "--retention-blocks", "1")
	require.Greater(t, pruned["pruned"].(float64), float64(0))
}

func TestCircuitCompileMatchesRegisteredSource(t *testing.T) {
	path := filepath.Join(t.TempDir(), "spin.r1cs")
	out := mustRun(t, t.TempDir(), "circuit", "compile", "--out", path)

	source, program, err := wheelkeeper.DefaultSpinSource()
	require.NoError(t, err)
	require.Equal(t, source.HashHex(), out["hash"])

	bz, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Equal(t, program.Bytes(), bz)

	eval := mustRun(t, t.TempDir(), "circuit", "eval", "7", "6")
	require.EqualValues(t, 2, eval["outcome"])
}

func TestExportRoundTripsThroughInit(t *testing.T) {
	home, _ := initNode(t)
	mustRun(t, home, "spin", "--from", "alice", "--offset", "3")

	exported, err := run(t, home, "query", "export")
	require.NoError(t, err)

	genDoc := map[string]interface{}{
		"chain_id":     "wheel-cli-1",
		"genesis_time": "2026-01-01T00:00:00Z",
		"app_state":    json.RawMessage(exported),
	}
	bz, err := json.Marshal(genDoc)
	require.NoError(t, err)
	genFile := filepath.Join(t.TempDir(), "genesis.json")
	require.NoError(t, os.WriteFile(genFile, bz, 0o600))

	other := t.TempDir()
	mustRun(t, other, "init", "--genesis", genFile)
	spin := mustRun(t, other, "query", "spin", "3")
	require.Equal(t, "settled", spin["status"])

	reexported, err := run(t, other, "query", "export")
	require.NoError(t, err)
	require.JSONEq(t, exported, reexported)
}

func TestFlagsOverrideConfigFile(t *testing.T) {
	home := t.TempDir()
	mustRun(t, home, "init")

	v := newViper()
	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	flags.String(flagChainID, "", "")
	bindFlags(v, flags, flagChainID)
	require.NoError(t, readConfigFile(v, home))

	cfg, err := loadConfig(v, home)
	require.NoError(t, err)
	require.Equal(t, "wheel-cli-1", cfg.ChainID)
	require.Equal(t, "wheel-local-cluster", cfg.Cluster.Seed)

	require.NoError(t, flags.Set(flagChainID, "wheel-override-1"))
	cfg, err = loadConfig(v, home)
	require.NoError(t, err)
	require.Equal(t, "wheel-override-1", cfg.ChainID)

	t.Setenv("WHEEL_CLUSTER_SEED", "from-env")
	cfg, err = loadConfig(v, home)
	require.NoError(t, err)
	require.Equal(t, "from-env", cfg.Cluster.Seed)
}
