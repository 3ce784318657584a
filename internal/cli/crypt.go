package cli

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"Chiffrage/internal/app"
)

var encryptCmd = &cobra.Command{
	Use:   "encrypt <file>...",
	Short: "Encrypt files or text for vault recipients",
	Long: `Encrypt files for one or more vault keys. With a mixed recipient set
(post-quantum and classical), every post-quantum key is projected onto
its X25519 twin so a single classical file format is produced; an
all-post-quantum set produces a post-quantum file.

With --text, stdin is encrypted and the armored message printed.

Examples:
  # Encrypt a file for one vault key
  chiffrage encrypt -k v3x2... secret.pdf

  # Encrypt for several recipients, ASCII armored
  chiffrage encrypt -k v3x2... -k p9q1... --armor notes.txt

  # Encrypt a short text from stdin
  echo "ping" | chiffrage encrypt -k v3x2... --text`,
	RunE: runEncrypt,
}

var decryptCmd = &cobra.Command{
	Use:   "decrypt <file>...",
	Short: "Decrypt files or text with a vault identity",
	Long: `Decrypt files with a vault identity. Armor is detected per file; a
post-quantum identity also tries its X25519 twin, so files produced
under the mixed-set downgrade still decrypt.

With --text, an armored message is read from stdin and printed.`,
	RunE: runDecrypt,
}

// Encrypt/decrypt flags
var (
	encKeyIDs []string
	encArmor  bool
	encText   bool

	decKeyID  string
	decFormat string
	decText   bool
)

func init() {
	rootCmd.AddCommand(encryptCmd, decryptCmd)
	encryptCmd.SilenceUsage = true
	decryptCmd.SilenceUsage = true

	encryptCmd.Flags().StringArrayVarP(&encKeyIDs, "key", "k", nil, "Recipient key id (can be specified multiple times)")
	encryptCmd.Flags().BoolVarP(&encArmor, "armor", "a", false, "ASCII armor the output")
	encryptCmd.Flags().BoolVarP(&encText, "text", "t", false, "Encrypt text from stdin instead of files")

	decryptCmd.Flags().StringVarP(&decKeyID, "key", "k", "", "Identity key id")
	decryptCmd.Flags().StringVarP(&decFormat, "format", "f", "pq", "Identity format: pq or x25519")
	decryptCmd.Flags().BoolVarP(&decText, "text", "t", false, "Decrypt armored text from stdin")
}

func runEncrypt(cmd *cobra.Command, args []string) error {
	if len(encKeyIDs) == 0 {
		return fmt.Errorf("at least one --key is required")
	}

	s := newAppState()
	if err := s.LoadVault(); err != nil {
		return err
	}

	if encText {
		input, err := io.ReadAll(os.Stdin)
		if err != nil {
			return err
		}
		armored, err := s.EncryptText(encKeyIDs, string(input))
		if err != nil {
			return err
		}
		fmt.Print(armored)
		return nil
	}

	if len(args) == 0 {
		return fmt.Errorf("no input files specified")
	}

	reporter := NewReporter(flagQuiet)
	progress := make(chan app.Progress, 64)
	reporter.Watch(progress)

	outputs, err := s.EncryptFiles(encKeyIDs, args, encArmor, progress)
	close(progress)
	reporter.Finish()
	if err != nil {
		reporter.PrintError("%v", err)
		return err
	}
	for _, out := range outputs {
		reporter.PrintSuccess("Encrypted: %s", out)
	}
	return nil
}

func runDecrypt(cmd *cobra.Command, args []string) error {
	if decKeyID == "" {
		return fmt.Errorf("--key is required")
	}
	format, err := parseFormat(decFormat)
	if err != nil {
		return err
	}

	s := newAppState()
	if err := unlockVault(s); err != nil {
		return err
	}

	if decText {
		input, err := io.ReadAll(os.Stdin)
		if err != nil {
			return err
		}
		if !s.ArmorCheckText(string(input)) {
			return fmt.Errorf("stdin does not contain an armored age message")
		}
		text, err := s.DecryptText(decKeyID, string(input), format)
		if err != nil {
			return err
		}
		fmt.Print(text)
		return nil
	}

	if len(args) == 0 {
		return fmt.Errorf("no input files specified")
	}

	reporter := NewReporter(flagQuiet)
	progress := make(chan app.Progress, 64)
	reporter.Watch(progress)

	outputs, err := s.DecryptFiles(decKeyID, args, format, progress)
	close(progress)
	reporter.Finish()
	if err != nil {
		reporter.PrintError("%v", err)
		return err
	}
	for _, out := range outputs {
		reporter.PrintSuccess("Decrypted: %s", out)
	}
	return nil
}
