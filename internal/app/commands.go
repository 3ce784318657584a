package app

import (
	"os"
	"strings"

	"Chiffrage/internal/crypto"
	errs "Chiffrage/internal/errors"
	"Chiffrage/internal/hybrid"
	"Chiffrage/internal/keys"
	"Chiffrage/internal/passphrase"
	"Chiffrage/internal/pipeline"
	"Chiffrage/internal/vault"
)

// FetchKeys lists all vault records, redacted, in id order.
// The vault must be loaded but may be locked.
func (s *AppState) FetchKeys() ([]vault.KeyMetadata, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.vault == nil {
		return nil, errs.NewPreconditionError("fetch keys", errs.ErrNoVault)
	}
	return s.vault.ListKeys(), nil
}

// FetchKey returns one record, redacted.
func (s *AppState) FetchKey(id string) (vault.KeyMetadata, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.vault == nil {
		return vault.KeyMetadata{}, errs.NewPreconditionError("fetch key", errs.ErrNoVault)
	}
	record, err := s.vault.GetKey(id)
	if err != nil {
		return vault.KeyMetadata{}, err
	}
	return record.Redacted(), nil
}

// GenerateKeypair creates and stores a new identity of the requested
// format and schedules a save. Returns the redacted record.
func (s *AppState) GenerateKeypair(name string, format keys.Format) (vault.KeyMetadata, error) {
	var record vault.KeyMetadata
	err := s.withUnlockedVault("generate keypair", func(v *vault.Vault) error {
		var err error
		switch format {
		case keys.FormatPostQuantum:
			record, err = v.GenerateHybridKey(name)
		default:
			record, err = v.GenerateX25519Key(name)
		}
		return err
	})
	if err != nil {
		return vault.KeyMetadata{}, err
	}
	s.saveAsync()
	return record, nil
}

// DeleteKey removes a record and schedules a save.
func (s *AppState) DeleteKey(id string) error {
	err := s.withUnlockedVault("delete key", func(v *vault.Vault) error {
		return v.DeleteKey(id)
	})
	if err != nil {
		return err
	}
	s.saveAsync()
	return nil
}

// ImportKeyText stores a textual key under a new record and schedules a
// save. Returns the redacted record.
func (s *AppState) ImportKeyText(name, text string) (vault.KeyMetadata, error) {
	var record vault.KeyMetadata
	err := s.withUnlockedVault("import key", func(v *vault.Vault) error {
		var err error
		record, err = v.ImportKeyText(name, text)
		return err
	})
	if err != nil {
		return vault.KeyMetadata{}, err
	}
	s.saveAsync()
	return record, nil
}

// ImportKey imports the key held in a file.
func (s *AppState) ImportKey(name, path string) (vault.KeyMetadata, error) {
	text, err := keys.ReadKeyFile(path)
	if err != nil {
		return vault.KeyMetadata{}, err
	}
	return s.ImportKeyText(name, text)
}

// ExportKey writes a record's key material to a file. Identities export
// their private form, recipient-only records their public form. With
// FormatX25519, hybrid material is projected onto its classical twin;
// with FormatPostQuantum, classical material is refused.
func (s *AppState) ExportKey(id, path string, format keys.Format) error {
	var text string
	err := s.withUnlockedVault("export key", func(v *vault.Vault) error {
		record, err := v.GetKey(id)
		if err != nil {
			return err
		}

		if record.IsPrivate() {
			plaintext, err := v.DecryptSecret(record.Contents.Private)
			if err != nil {
				return err
			}
			text = string(plaintext)
			crypto.SecureZero(plaintext)
			isHybrid := strings.HasPrefix(text, hybrid.IdentityHRP)
			switch {
			case format == keys.FormatX25519 && isHybrid:
				text, err = keys.DowngradeHybridIdentity(text)
				return err
			case format == keys.FormatPostQuantum && !isHybrid:
				return errs.Wrap(errs.ErrInvalidInput, "key has no post-quantum form")
			}
			return nil
		}

		text = record.Contents.Public
		isHybrid := strings.HasPrefix(text, hybrid.RecipientHRP+"1")
		switch {
		case format == keys.FormatX25519 && isHybrid:
			var err error
			text, err = keys.DowngradeHybridPublicKey(text)
			return err
		case format == keys.FormatPostQuantum && !isHybrid:
			return errs.Wrap(errs.ErrInvalidInput, "key has no post-quantum form")
		}
		return nil
	})
	if err != nil {
		return err
	}

	if err := os.WriteFile(path, []byte(text+"\n"), 0o600); err != nil {
		return errs.NewFileError("write", path, err)
	}
	return nil
}

// CheckKeyfileType reports whether the key file holds a private identity.
func (s *AppState) CheckKeyfileType(path string) (bool, error) {
	return keys.CheckKeyfileType(path)
}

// ValidateKeyText reports whether text is a supported key form.
func (s *AppState) ValidateKeyText(text string) error {
	return keys.ValidateKeyText(text)
}

// ValidateKeyFile reports whether the file holds a supported key form.
func (s *AppState) ValidateKeyFile(path string) error {
	return keys.ValidateKeyFile(path)
}

// ArmorCheckText reports whether text is an armored age message.
func (s *AppState) ArmorCheckText(text string) bool {
	return pipeline.IsArmoredText(text)
}

// GeneratePassphrase returns a fresh 12-word passphrase.
func (s *AppState) GeneratePassphrase() (string, error) {
	return passphrase.Generate()
}

// DowngradeHybridPublicKey projects a textual hybrid recipient onto its
// classical form.
func (s *AppState) DowngradeHybridPublicKey(text string) (string, error) {
	return keys.DowngradeHybridPublicKey(text)
}
