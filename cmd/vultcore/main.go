// Command vultcore is a thin demonstration CLI over pkg/coresdk. It
// only exercises the operations that need nothing but a vault
// container on disk: ceremony introspection and address derivation.
// Payload building, pre-signing, and MPC signing all need an injected
// ChainDataSource/Broadcaster/MpcPrimitive (§6) that a real embedding
// application supplies — this binary is a reference harness, not a
// wallet.
package main

import (
	"encoding/base64"
	"fmt"
	"os"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/vultforge/core/internal/vaultcore"
	"github.com/vultforge/core/pkg/coresdk"
)

var version = "dev"

func main() {
	rootCmd := &cobra.Command{
		Use:     "vultcore",
		Version: version,
		Short:   "vultcore - reference CLI for the threshold-signing core",
		Long:    `A demonstration CLI for vault introspection and address derivation against the vultforge/core SDK.`,
		Run: func(cmd *cobra.Command, args []string) {
			if err := cmd.Help(); err != nil {
				fmt.Printf("error showing help: %v\n", err)
			}
		},
	}

	var (
		vaultFile string
		password  string
		format    string
	)

	summaryCmd := &cobra.Command{
		Use:   "summary",
		Short: "Print a vault's ceremony metadata",
		Long:  `Load a .vult container and print its name, vault id, MPC library type, threshold, and signer set.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if vaultFile == "" {
				return fmt.Errorf("--vault is required")
			}
			v, err := loadVault(vaultFile, password)
			if err != nil {
				return err
			}
			return coresdk.WriteResult(coresdk.Summarize(v), format, os.Stdout)
		},
	}
	summaryCmd.Flags().StringVarP(&vaultFile, "vault", "f", "", "path to a base64-encoded .vult container (required)")
	summaryCmd.Flags().StringVar(&password, "password", "", "password, if the container is encrypted")
	summaryCmd.Flags().StringVar(&format, "format", "json", "output format: json or yaml")

	var (
		chainName string
		path      string
	)

	deriveCmd := &cobra.Command{
		Use:   "derive",
		Short: "Derive an on-chain address from a vault",
		Long:  `Walk a vault's root public key down a derivation path and print the resulting chain address.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if vaultFile == "" || chainName == "" || path == "" {
				return fmt.Errorf("--vault, --chain, and --path are all required")
			}
			v, err := loadVault(vaultFile, password)
			if err != nil {
				return err
			}
			sdk := coresdk.NewSDK(nil, nil, nil)
			addr, err := sdk.DeriveAddress(v, chainName, path)
			if err != nil {
				return err
			}
			fmt.Println(addr)
			return nil
		},
	}
	deriveCmd.Flags().StringVarP(&vaultFile, "vault", "f", "", "path to a base64-encoded .vult container (required)")
	deriveCmd.Flags().StringVar(&password, "password", "", "password, if the container is encrypted")
	deriveCmd.Flags().StringVar(&chainName, "chain", "", "target chain name, e.g. ethereum, bitcoin, solana (required)")
	deriveCmd.Flags().StringVar(&path, "path", "", "derivation path, e.g. m/44'/60'/0'/0/0 (required)")

	rootCmd.AddCommand(summaryCmd)
	rootCmd.AddCommand(deriveCmd)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// loadVault reads a base64-encoded VaultContainer file and registers
// (and, if encrypted, unlocks) it against a throwaway FileStore. If no
// password was supplied on the command line, a decrypt failure is
// treated as "might be encrypted" and retried once against an
// interactively-prompted password, rather than requiring --password
// up front for every container.
func loadVault(path, password string) (*vaultcore.Vault, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading vault file: %w", err)
	}
	encoded := string(raw)
	if _, err := base64.StdEncoding.DecodeString(encoded); err != nil {
		return nil, fmt.Errorf("vault file is not valid base64: %w", err)
	}

	store := vaultcore.NewFileStore()
	v, err := store.RegisterAndUnlock(encoded, password)
	if err == nil || password != "" {
		return v, err
	}

	prompted, perr := promptPassword(path)
	if perr != nil {
		return nil, perr
	}
	return vaultcore.NewFileStore().RegisterAndUnlock(encoded, prompted)
}

// promptPassword reads a password from the terminal without echoing it,
// the same interactive fallback the teacher's vault parser used.
func promptPassword(vaultPath string) (string, error) {
	fmt.Printf("Enter password for encrypted vault (%s): ", vaultPath)
	passwordBytes, err := term.ReadPassword(int(syscall.Stdin))
	fmt.Println()
	if err != nil {
		return "", fmt.Errorf("reading password: %w", err)
	}
	return string(passwordBytes), nil
}
