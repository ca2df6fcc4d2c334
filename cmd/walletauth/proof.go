package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/layer-3/walletauth/adapters/signature"
	"github.com/layer-3/walletauth/adapters/store"
	"github.com/layer-3/walletauth/core"
	"github.com/layer-3/walletauth/proof"
	"github.com/spf13/cobra"
)

const (
	keysFlag      = "keys"
	domainTagFlag = "domain-tag"
)

// keyPair is the keygen output
type keyPair struct {
	Key        signature.KeySpec `json:"key"`
	AccountKey core.AccountKey   `json:"accountKey"`
}

func newKeygen() *cobra.Command {
	var (
		address  string
		index    int
		sigAlgo  string
		hashAlgo string
		weight   int
	)

	cmd := &cobra.Command{
		Use:   "keygen",
		Short: "Generates an account key",
		Long:  "Generates an account key and prints its private spec together with the public account key to register.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			addr, err := core.NormalizeAddress(address)
			if err != nil {
				return err
			}
			k, err := signature.GenerateKey(addr, index, core.SigAlgo(sigAlgo), core.HashAlgo(hashAlgo), weight)
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), keyPair{Key: k.Spec(), AccountKey: k.AccountKey()})
		},
	}

	cmd.Flags().StringVar(&address, "address", "", "Account address (hex)")
	cmd.Flags().IntVar(&index, "index", 0, "Key index within the account")
	cmd.Flags().StringVar(&sigAlgo, "sig-algo", string(core.SigAlgoECDSASecp256k1), "Signature algorithm")
	cmd.Flags().StringVar(&hashAlgo, "hash-algo", string(core.HashAlgoKeccak_256), "Hash algorithm")
	cmd.Flags().IntVar(&weight, "weight", core.FullWeight, "Key weight")
	_ = cmd.MarkFlagRequired("address")

	return cmd
}

func newSignProof() *cobra.Command {
	var (
		keysPath  string
		domainTag string
		timestamp int64
	)

	cmd := &cobra.Command{
		Use:   "sign-proof",
		Short: "Signs an account proof with local keys",
		Long:  "Signs an account proof with every key in a private keys file and prints it as JSON.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			keys, err := loadPrivateKeys(keysPath)
			if err != nil {
				return err
			}
			if timestamp == 0 {
				timestamp = time.Now().UnixMilli()
			}

			address := keys[0].Spec().Address
			msg, err := proof.BuildMessage(address, timestamp, domainTag)
			if err != nil {
				return err
			}
			sigs, err := signature.NewLocalSigner(keys...).Sign(cmd.Context(), msg)
			if err != nil {
				return err
			}

			return writeJSON(cmd.OutOrStdout(), core.AccountProof{
				Address:    address,
				Timestamp:  timestamp,
				DomainTag:  domainTag,
				Signatures: sigs,
			})
		},
	}

	cmd.Flags().StringVar(&keysPath, keysFlag, "", "Path to a JSON array of private key specs")
	cmd.Flags().StringVar(&domainTag, domainTagFlag, "", "Domain tag to sign under")
	cmd.Flags().Int64Var(&timestamp, "timestamp", 0, "Proof timestamp in unix milliseconds (default now)")
	_ = cmd.MarkFlagRequired(keysFlag)

	return cmd
}

func newVerifyProof() *cobra.Command {
	var (
		keysPath  string
		domainTag string
		maxAge    time.Duration
		maxSkew   time.Duration
	)

	cmd := &cobra.Command{
		Use:   "verify-proof [proof.json]",
		Short: "Verifies an account proof offline",
		Long:  "Verifies an account proof read from a file or stdin against a public keys file.",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			keys, err := loadKeys(keysPath)
			if err != nil {
				return err
			}
			registry, err := store.NewMemoryKeyRegistry(keys...)
			if err != nil {
				return err
			}

			in := cmd.InOrStdin()
			if len(args) == 1 {
				f, err := os.Open(args[0])
				if err != nil {
					return fmt.Errorf("failed to open proof: %w", err)
				}
				defer f.Close()
				in = f
			}

			var p core.AccountProof
			if err := json.NewDecoder(in).Decode(&p); err != nil {
				return fmt.Errorf("%w: %v", core.ErrMalformedProof, err)
			}

			verifier := proof.NewVerifier(signature.NewVerifier(registry), proof.WithWindow(maxAge, maxSkew))
			accepted, err := verifier.Verify(cmd.Context(), &p, domainTag, nil)
			if err != nil {
				return err
			}

			return writeJSON(cmd.OutOrStdout(), accepted)
		},
	}

	cmd.Flags().StringVar(&keysPath, keysFlag, "", "Path to a JSON array of public account keys")
	cmd.Flags().StringVar(&domainTag, domainTagFlag, "", "Domain tag the proof must be signed under")
	cmd.Flags().DurationVar(&maxAge, "max-age", proof.DefaultMaxAge, "Oldest acceptable proof")
	cmd.Flags().DurationVar(&maxSkew, "max-skew", proof.DefaultMaxSkew, "Furthest acceptable future timestamp")
	_ = cmd.MarkFlagRequired(keysFlag)

	return cmd
}

// loadKeys reads public account keys, none when path is empty
func loadKeys(path string) ([]core.AccountKey, error) {
	if path == "" {
		return nil, nil
	}
	return store.LoadKeysFile(path)
}

func loadPrivateKeys(path string) ([]*signature.LocalKey, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read keys file: %w", err)
	}

	var specs []signature.KeySpec
	if err := json.Unmarshal(raw, &specs); err != nil {
		return nil, fmt.Errorf("failed to decode keys file: %w", err)
	}
	if len(specs) == 0 {
		return nil, fmt.Errorf("keys file %s holds no keys", path)
	}

	keys := make([]*signature.LocalKey, 0, len(specs))
	for _, spec := range specs {
		if spec.Address != specs[0].Address {
			return nil, fmt.Errorf("keys file mixes accounts %s and %s", specs[0].Address, spec.Address)
		}
		k, err := signature.KeyFromSpec(spec)
		if err != nil {
			return nil, err
		}
		keys = append(keys, k)
	}
	return keys, nil
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
