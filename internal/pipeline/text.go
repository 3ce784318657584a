package pipeline

import (
	"bytes"
	"io"
	"strings"

	"filippo.io/age"
	"filippo.io/age/armor"

	errs "Chiffrage/internal/errors"
)

// EncryptText encrypts a short text to the given recipients and returns
// the ASCII-armored message.
func EncryptText(recipients []age.Recipient, text string) (string, error) {
	var buf bytes.Buffer
	armorWriter := armor.NewWriter(&buf)

	w, err := age.Encrypt(armorWriter, recipients...)
	if err != nil {
		return "", errs.NewCryptoError("encrypt", err)
	}
	if _, err := io.WriteString(w, text); err != nil {
		return "", errs.NewCryptoError("encrypt", err)
	}
	if err := w.Close(); err != nil {
		return "", errs.NewCryptoError("encrypt", err)
	}
	if err := armorWriter.Close(); err != nil {
		return "", errs.NewCryptoError("encrypt", err)
	}
	return buf.String(), nil
}

// DecryptText decrypts an armored message with the given identities.
func DecryptText(identities []age.Identity, armoredText string) (string, error) {
	src := armor.NewReader(strings.NewReader(strings.TrimSpace(armoredText)))
	r, err := age.Decrypt(src, identities...)
	if err != nil {
		return "", errs.Wrap(errs.ErrDecryptionFailed, err.Error())
	}
	plaintext, err := io.ReadAll(r)
	if err != nil {
		return "", errs.Wrap(errs.ErrDecryptionFailed, err.Error())
	}
	return string(plaintext), nil
}

// IsArmoredText reports whether text looks like an armored age message.
func IsArmoredText(text string) bool {
	return strings.HasPrefix(strings.TrimSpace(text), armor.Header)
}
