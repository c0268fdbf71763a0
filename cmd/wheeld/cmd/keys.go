package cmd

import (
	"bufio"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/cosmos/cosmos-sdk/crypto/hd"
	"github.com/cosmos/cosmos-sdk/crypto/keyring"
	sdk "github.com/cosmos/cosmos-sdk/types"
	"github.com/cosmos/go-bip39"
	"github.com/spf13/cobra"

	"github.com/TOBY0001/encrypted-wheel/app"
	"github.com/TOBY0001/encrypted-wheel/x/mxe/client"
)

const (
	flagMnemonicLength = "mnemonic-length"
	flagNoBackup       = "no-backup"
	flagAccount        = "account"
	flagIndex          = "index"
)

// keyOutput is how a keyring record is printed.
type keyOutput struct {
	Name     string `json:"name"`
	Address  string `json:"address"`
	PubKey   string `json:"pubkey,omitempty"`
	Mnemonic string `json:"mnemonic,omitempty"`
}

// sessionOutput is the encryption material for one spin. The private key
// must be kept to decrypt the result.
type sessionOutput struct {
	PrivateKey string `json:"private_key"`
	PublicKey  string `json:"public_key"`
	Nonce      string `json:"nonce"`
}

// KeysCmd returns the keys command. Keys identify players; the address of
// the --from key pays for and owns a spin.
func KeysCmd(e *env) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "keys",
		Short: "Manage player keys and spin encryption sessions",
	}

	cmd.AddCommand(
		addKeyCmd(e),
		recoverKeyCmd(e),
		listKeysCmd(e),
		showKeyCmd(e),
		sessionCmd(),
	)
	return cmd
}

func (e *env) keyring(cmd *cobra.Command) (keyring.Keyring, error) {
	encCfg := app.MakeEncodingConfig()
	kr, err := keyring.New(app.AppName, e.cfg.KeyringBackend, e.cfg.Home, cmd.InOrStdin(), encCfg.Codec)
	if err != nil {
		return nil, fmt.Errorf("failed to open keyring: %w", err)
	}
	return kr, nil
}

// keyAddress returns the bech32 address of the named key.
func (e *env) keyAddress(cmd *cobra.Command, name string) (string, error) {
	kr, err := e.keyring(cmd)
	if err != nil {
		return "", err
	}
	record, err := kr.Key(name)
	if err != nil {
		return "", fmt.Errorf("key %q: %w", name, err)
	}
	addr, err := record.GetAddress()
	if err != nil {
		return "", err
	}
	return addr.String(), nil
}

func addKeyCmd(e *env) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "add [name]",
		Short: "Add a new key with a generated BIP39 mnemonic",
		Long: `Add a new key to the keyring. A 24-word (256-bit) or 12-word (128-bit)
mnemonic is generated from crypto/rand and printed for backup.

Examples:
  wheeld keys add alice
  wheeld keys add alice --mnemonic-length 12`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			name := strings.TrimSpace(args[0])
			if name == "" {
				return fmt.Errorf("argument 'name' cannot be empty")
			}

			mnemonicLength, _ := cmd.Flags().GetInt(flagMnemonicLength)
			noBackup, _ := cmd.Flags().GetBool(flagNoBackup)

			var entropySize int
			switch mnemonicLength {
			case 12:
				entropySize = 128 / 8
			case 24:
				entropySize = 256 / 8
			default:
				return fmt.Errorf("mnemonic length must be 12 or 24 words")
			}

			entropy := make([]byte, entropySize)
			if _, err := rand.Read(entropy); err != nil {
				return fmt.Errorf("failed to generate secure entropy: %w", err)
			}
			mnemonic, err := bip39.NewMnemonic(entropy)
			if err != nil {
				return fmt.Errorf("failed to generate mnemonic: %w", err)
			}

			out, err := e.createKey(cmd, name, mnemonic)
			if err != nil {
				return err
			}
			if !noBackup {
				out.Mnemonic = mnemonic
			}
			return printJSON(cmd, out)
		},
	}

	cmd.Flags().Int(flagMnemonicLength, 24, "mnemonic length (12 or 24 words)")
	cmd.Flags().Bool(flagNoBackup, false, "do not print the mnemonic")
	addDerivationFlags(cmd)
	return cmd
}

func recoverKeyCmd(e *env) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "recover [name]",
		Short: "Recover a key from a BIP39 mnemonic read from stdin",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
			if err != nil && line == "" {
				return fmt.Errorf("failed to read mnemonic: %w", err)
			}
			words := strings.Fields(line)
			mnemonic := strings.Join(words, " ")

			if len(words) != 12 && len(words) != 24 {
				return fmt.Errorf("invalid mnemonic length: expected 12 or 24 words, got %d", len(words))
			}
			if !bip39.IsMnemonicValid(mnemonic) {
				return fmt.Errorf("invalid mnemonic: checksum failed")
			}

			out, err := e.createKey(cmd, strings.TrimSpace(args[0]), mnemonic)
			if err != nil {
				return err
			}
			return printJSON(cmd, out)
		},
	}
	addDerivationFlags(cmd)
	return cmd
}

func addDerivationFlags(cmd *cobra.Command) {
	cmd.Flags().Uint32(flagAccount, 0, "account number for HD derivation")
	cmd.Flags().Uint32(flagIndex, 0, "address index number for HD derivation")
}

func (e *env) createKey(cmd *cobra.Command, name, mnemonic string) (keyOutput, error) {
	kr, err := e.keyring(cmd)
	if err != nil {
		return keyOutput{}, err
	}
	account, _ := cmd.Flags().GetUint32(flagAccount)
	index, _ := cmd.Flags().GetUint32(flagIndex)

	hdPath := hd.CreateHDPath(sdk.GetConfig().GetCoinType(), account, index)
	record, err := kr.NewAccount(name, mnemonic, keyring.DefaultBIP39Passphrase, hdPath.String(), hd.Secp256k1)
	if err != nil {
		return keyOutput{}, fmt.Errorf("failed to create key: %w", err)
	}
	return recordOutput(record)
}

func recordOutput(record *keyring.Record) (keyOutput, error) {
	addr, err := record.GetAddress()
	if err != nil {
		return keyOutput{}, fmt.Errorf("failed to get address: %w", err)
	}
	out := keyOutput{Name: record.Name, Address: addr.String()}
	if pk, err := record.GetPubKey(); err == nil {
		out.PubKey = hex.EncodeToString(pk.Bytes())
	}
	return out, nil
}

func listKeysCmd(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List all keys",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			kr, err := e.keyring(cmd)
			if err != nil {
				return err
			}
			records, err := kr.List()
			if err != nil {
				return err
			}
			keys := make([]keyOutput, 0, len(records))
			for _, record := range records {
				out, err := recordOutput(record)
				if err != nil {
					return err
				}
				keys = append(keys, out)
			}
			return printJSON(cmd, keys)
		},
	}
}

func showKeyCmd(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "show [name]",
		Short: "Show a key",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			kr, err := e.keyring(cmd)
			if err != nil {
				return err
			}
			record, err := kr.Key(args[0])
			if err != nil {
				return err
			}
			out, err := recordOutput(record)
			if err != nil {
				return err
			}
			return printJSON(cmd, out)
		},
	}
}

func sessionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "session",
		Short: "Generate an x25519 key pair and nonce for one spin",
		Long: `Session prints a fresh x25519 key pair and 128-bit nonce. Pass the public
key and nonce to "wheeld spin", and the private key and nonce to
"wheeld decrypt" once the spin settles.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			session, err := client.NewSession()
			if err != nil {
				return err
			}
			return printJSON(cmd, newSessionOutput(session))
		},
	}
}

func newSessionOutput(s client.Session) sessionOutput {
	return sessionOutput{
		PrivateKey: hex.EncodeToString(s.Keys.Private[:]),
		PublicKey:  hex.EncodeToString(s.Keys.Public[:]),
		Nonce:      s.Nonce.String(),
	}
}
