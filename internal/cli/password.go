package cli

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"strings"
	"syscall"

	"github.com/Picocrypt/zxcvbn-go"
	"golang.org/x/term"

	"Chiffrage/internal/app"
	errs "Chiffrage/internal/errors"
)

var (
	ErrPassphraseMismatch = errors.New("passphrases do not match")
	ErrPassphraseEmpty    = errors.New("passphrase cannot be empty")
)

// isTerminal returns true if stdin is a terminal (not piped/redirected).
func isTerminal() bool {
	return term.IsTerminal(int(syscall.Stdin))
}

// readPassphraseSecure reads a passphrase from stdin without echo.
// Falls back to buffered read if stdin is not a terminal.
func readPassphraseSecure(prompt string) (string, error) {
	fmt.Fprint(os.Stderr, prompt)

	if !isTerminal() {
		// stdin is piped; read normally
		reader := bufio.NewReader(os.Stdin)
		pw, err := reader.ReadString('\n')
		if err != nil {
			return "", fmt.Errorf("reading passphrase: %w", err)
		}
		pw = strings.TrimSuffix(pw, "\n")
		pw = strings.TrimSuffix(pw, "\r")
		return pw, nil
	}

	// Terminal mode: disable echo
	pw, err := term.ReadPassword(int(syscall.Stdin))
	fmt.Fprintln(os.Stderr) // newline after hidden input
	if err != nil {
		return "", fmt.Errorf("reading passphrase: %w", err)
	}
	return string(pw), nil
}

// readPassphraseInteractive prompts for the vault passphrase.
// If confirm is true, asks for confirmation and warns when the zxcvbn
// strength is below app.WeakPassphraseScore (for vault creation).
func readPassphraseInteractive(confirm bool) (string, error) {
	passphrase, err := readPassphraseSecure("Passphrase: ")
	if err != nil {
		return "", err
	}
	if passphrase == "" {
		return "", ErrPassphraseEmpty
	}

	if confirm {
		again, err := readPassphraseSecure("Confirm passphrase: ")
		if err != nil {
			return "", err
		}
		if passphrase != again {
			return "", ErrPassphraseMismatch
		}
		score := zxcvbn.PasswordStrength(passphrase, nil).Score
		if score < app.WeakPassphraseScore {
			fmt.Fprintf(os.Stderr, "Warning: weak passphrase (strength %d/4). Consider 'chiffrage passphrase'.\n", score)
		}
	}
	return passphrase, nil
}

// unlockVault prompts for the passphrase and authenticates. An integrity
// failure is surfaced as a warning but leaves the vault usable so
// recovery commands can run.
func unlockVault(s *app.AppState) error {
	if !s.VaultExists() {
		return errs.ErrNoVault
	}

	passphrase, err := readPassphraseInteractive(false)
	if err != nil {
		return err
	}

	err = s.Authenticate(passphrase)
	if errs.IsIntegrityFailure(err) {
		fmt.Fprintln(os.Stderr, "Warning: integrity check failed - run 'chiffrage vault recover'")
		return nil
	}
	return err
}
