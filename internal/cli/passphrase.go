package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"Chiffrage/internal/passphrase"
	"Chiffrage/internal/util"
)

var passphraseCmd = &cobra.Command{
	Use:   "passphrase",
	Short: "Generate a strong passphrase",
	Long: `Generate a 12-word passphrase drawn without replacement from the
embedded wordlist. With --chars, generate a random character password
instead.`,
	RunE: runPassphrase,
}

var validateCmd = &cobra.Command{
	Use:   "validate [file]",
	Short: "Validate a key file or key text",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runValidate,
}

// Passphrase/validate flags
var (
	passphraseChars  bool
	passphraseLength int
	validateText     string
)

func init() {
	rootCmd.AddCommand(passphraseCmd, validateCmd)
	passphraseCmd.SilenceUsage = true
	validateCmd.SilenceUsage = true

	passphraseCmd.Flags().BoolVar(&passphraseChars, "chars", false, "Generate a random character password instead of words")
	passphraseCmd.Flags().IntVar(&passphraseLength, "length", 32, "Character password length (with --chars)")

	validateCmd.Flags().StringVar(&validateText, "text", "", "Validate key text instead of a file")
}

func runPassphrase(cmd *cobra.Command, args []string) error {
	if passphraseChars {
		password, err := util.GenPassword(util.PassgenOptions{
			Length:  passphraseLength,
			Upper:   true,
			Lower:   true,
			Numbers: true,
			Symbols: true,
		})
		if err != nil {
			return err
		}
		fmt.Println(password)
		return nil
	}

	p, err := passphrase.Generate()
	if err != nil {
		return err
	}
	fmt.Println(p)
	return nil
}

func runValidate(cmd *cobra.Command, args []string) error {
	s := newAppState()

	if validateText != "" {
		if err := s.ValidateKeyText(validateText); err != nil {
			return err
		}
		fmt.Println("valid key text")
		return nil
	}
	if len(args) == 0 {
		return fmt.Errorf("provide a key file or --text")
	}
	if err := s.ValidateKeyFile(args[0]); err != nil {
		return err
	}
	fmt.Println("valid key file")
	return nil
}
