package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	errs "Chiffrage/internal/errors"
)

var vaultCmd = &cobra.Command{
	Use:   "vault",
	Short: "Create and maintain the key vault",
}

var vaultInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Create a new vault",
	Long: `Create a new password-sealed vault. You will be prompted for a
passphrase with confirmation; 'chiffrage passphrase' generates a strong one.`,
	RunE: runVaultInit,
}

var vaultStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show vault location and contents",
	RunE:  runVaultStatus,
}

var vaultCheckCmd = &cobra.Command{
	Use:   "check",
	Short: "Verify the passphrase and vault integrity",
	RunE:  runVaultCheck,
}

var vaultRecoverCmd = &cobra.Command{
	Use:   "recover",
	Short: "Repair a vault that failed its integrity check",
	Long: `Re-derive the public half of every stored identity from its sealed
private material and re-save the vault. This repairs records whose public
field was corrupted or tampered with on disk.`,
	RunE: runVaultRecover,
}

var vaultBackupCmd = &cobra.Command{
	Use:   "backup <file>",
	Short: "Write a Reed-Solomon protected backup of the vault",
	Args:  cobra.ExactArgs(1),
	RunE:  runVaultBackup,
}

var vaultRestoreCmd = &cobra.Command{
	Use:   "restore <file>",
	Short: "Restore the vault from a backup",
	Args:  cobra.ExactArgs(1),
	RunE:  runVaultRestore,
}

func init() {
	rootCmd.AddCommand(vaultCmd)
	vaultCmd.AddCommand(vaultInitCmd, vaultStatusCmd, vaultCheckCmd,
		vaultRecoverCmd, vaultBackupCmd, vaultRestoreCmd)
	for _, c := range []*cobra.Command{vaultInitCmd, vaultStatusCmd, vaultCheckCmd,
		vaultRecoverCmd, vaultBackupCmd, vaultRestoreCmd} {
		c.SilenceUsage = true
	}
}

func runVaultInit(cmd *cobra.Command, args []string) error {
	s := newAppState()
	if s.VaultExists() {
		return fmt.Errorf("%w at %s", errs.ErrVaultExists, s.VaultPath())
	}

	passphrase, err := readPassphraseInteractive(true)
	if err != nil {
		return err
	}

	if _, err := s.CreateVault(passphrase); err != nil {
		return err
	}
	fmt.Printf("Vault created at %s\n", s.VaultPath())
	return nil
}

func runVaultStatus(cmd *cobra.Command, args []string) error {
	s := newAppState()
	fmt.Printf("Vault: %s\n", s.VaultPath())
	if !s.VaultExists() {
		fmt.Println("Status: not created (run 'chiffrage vault init')")
		return nil
	}

	if err := s.LoadVault(); err != nil {
		return err
	}
	records, err := s.FetchKeys()
	if err != nil {
		return err
	}
	fmt.Printf("Status: present, %d key(s)\n", len(records))
	return nil
}

func runVaultCheck(cmd *cobra.Command, args []string) error {
	s := newAppState()
	if !s.VaultExists() {
		return errs.ErrNoVault
	}

	passphrase, err := readPassphraseInteractive(false)
	if err != nil {
		return err
	}

	err = s.Authenticate(passphrase)
	switch {
	case err == nil:
		fmt.Println("OK: passphrase correct, integrity verified")
	case errs.IsIntegrityFailure(err):
		fmt.Fprintln(os.Stderr, "integrity check failed - run 'chiffrage vault recover'")
		return err
	default:
		return err
	}
	s.LockVault()
	return nil
}

func runVaultRecover(cmd *cobra.Command, args []string) error {
	s := newAppState()
	if !s.VaultExists() {
		return errs.ErrNoVault
	}

	passphrase, err := readPassphraseInteractive(false)
	if err != nil {
		return err
	}

	err = s.Authenticate(passphrase)
	if err != nil && !errs.IsIntegrityFailure(err) {
		return err
	}
	if err == nil {
		fmt.Println("Integrity already verified; nothing to repair.")
		s.LockVault()
		return nil
	}

	if err := s.RegeneratePublicIdentities(); err != nil {
		return err
	}
	s.LockVault()
	fmt.Println("Public identities regenerated and vault re-saved.")
	return nil
}

func runVaultBackup(cmd *cobra.Command, args []string) error {
	s := newAppState()
	if err := s.BackupVault(args[0]); err != nil {
		return err
	}
	fmt.Printf("Backup written to %s\n", args[0])
	return nil
}

func runVaultRestore(cmd *cobra.Command, args []string) error {
	s := newAppState()
	if err := s.RestoreVault(args[0]); err != nil {
		return err
	}
	fmt.Printf("Vault restored to %s\n", s.VaultPath())
	return nil
}
