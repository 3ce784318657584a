// Package cli provides the command-line interface for Chiffrage.
package cli

import (
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"Chiffrage/internal/app"
	"Chiffrage/internal/log"
)

// Version is set by main.go
var Version = "dev"

// rootCmd is the base command when called without subcommands
var rootCmd = &cobra.Command{
	Use:   "chiffrage",
	Short: "age key vault and file encryption",
	Long: `Chiffrage manages age encryption keys in a password-sealed vault and
encrypts files and texts for one or more recipients:
  - Argon2id derives the vault key from your passphrase
  - XChaCha20-Poly1305 seals every stored identity
  - HMAC-SHA-256 binds the stored key set to the vault key
  - X25519 and post-quantum ML-KEM-768 hybrid identities (age format)
  - Reed-Solomon protected vault backups`,
	Version: Version,
}

// Persistent flags
var (
	flagVaultPath string
	flagVerbose   bool
	flagQuiet     bool
)

// Execute runs the CLI application.
func Execute(version string) {
	Version = version
	rootCmd.Version = version

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.CompletionOptions.DisableDefaultCmd = true
	rootCmd.PersistentFlags().StringVar(&flagVaultPath, "vault", "", "Vault file path (default: user config dir)")
	rootCmd.PersistentFlags().BoolVarP(&flagVerbose, "verbose", "v", false, "Enable debug logging to stderr")
	rootCmd.PersistentFlags().BoolVarP(&flagQuiet, "quiet", "q", false, "Suppress progress output")

	cobra.OnInitialize(func() {
		if flagVerbose {
			log.EnableDebugLogging()
		}
	})
}

// vaultPath resolves the vault location: flag first, then the platform
// config directory.
func vaultPath() string {
	if flagVaultPath != "" {
		return flagVaultPath
	}
	dir, err := os.UserConfigDir()
	if err != nil {
		dir = "."
	}
	return filepath.Join(dir, "chiffrage", "vault.cb")
}

// newAppState builds the application state over the resolved vault path.
func newAppState() *app.AppState {
	return app.NewAppState(vaultPath())
}
