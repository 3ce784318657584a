package vault

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"filippo.io/age"

	"Chiffrage/internal/crypto"
	errs "Chiffrage/internal/errors"
	"Chiffrage/internal/hybrid"
	"Chiffrage/internal/log"
)

// helloProbe is the fixed plaintext sealed into VaultFile.Hello. Opening
// it proves the derived key; it deliberately carries no other meaning.
const helloProbe = "hello"

// Vault is the in-memory key store. It owns the parsed VaultFile, the
// on-disk path, and - while unlocked - the derived vault key in locked
// memory.
//
// The Vault itself is not goroutine-safe; callers serialize access
// (internal/app guards it with a mutex).
type Vault struct {
	file VaultFile
	path string
	key  *crypto.LockedBuffer
}

// Exists reports whether a vault file is present at path.
func Exists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

// Create generates a new vault at path and returns it Unlocked. The file
// is not written until the first Save.
func Create(path, passphrase string) (*Vault, error) {
	salt, err := crypto.RandomBytes(crypto.SaltSize)
	if err != nil {
		return nil, err
	}

	pw := []byte(passphrase)
	defer crypto.SecureZero(pw)
	key, err := crypto.DeriveKey(pw, salt)
	if err != nil {
		return nil, err
	}

	hello, err := crypto.Seal(key.Bytes(), []byte(helloProbe))
	if err != nil {
		key.Close()
		return nil, err
	}

	return &Vault{
		file: VaultFile{
			Salt:    salt,
			Hello:   *hello,
			Secrets: make(map[string]KeyMetadata),
		},
		path: path,
		key:  key,
	}, nil
}

// Load reads and parses the vault file at path. The returned vault is
// Locked - no key material is derived until Unlock.
func Load(path string) (*Vault, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errs.ErrNoVault
		}
		return nil, errs.NewFileError("read", path, err)
	}

	f, err := DecodeVaultFile(data)
	if err != nil {
		return nil, err
	}
	return &Vault{file: *f, path: path}, nil
}

// Unlock derives the vault key from the passphrase and verifies it.
//
// A wrong passphrase fails the hello probe: the key is cleared and
// ErrAuthFailed returned. A correct passphrase with a tampered or
// truncated secrets map opens the probe but fails the HMAC: the key STAYS
// set and ErrIntegrity is returned, so the caller can run the
// public-identity recovery path and re-save.
func (v *Vault) Unlock(passphrase string) error {
	pw := []byte(passphrase)
	defer crypto.SecureZero(pw)
	key, err := crypto.DeriveKey(pw, v.file.Salt)
	if err != nil {
		return err
	}

	probe, err := crypto.Open(key.Bytes(), &v.file.Hello)
	if err != nil || string(probe) != helloProbe {
		crypto.SecureZero(probe)
		key.Close()
		v.Lock()
		return errs.ErrAuthFailed
	}
	crypto.SecureZero(probe)

	if v.key != nil {
		v.key.Close()
	}
	v.key = key

	canonical, err := marshalSecrets(v.file.Secrets)
	if err != nil {
		return err
	}
	if !crypto.VerifySecretsMAC(key.Bytes(), canonical, v.file.HMAC) {
		log.Warn("vault unlocked but secrets failed integrity verification",
			log.String("path", v.path))
		return errs.ErrIntegrity
	}
	return nil
}

// Lock drops the vault key and releases its memory lock.
func (v *Vault) Lock() {
	if v.key != nil {
		v.key.Close()
		v.key = nil
	}
}

// Unlocked reports whether the vault key is currently held.
func (v *Vault) Unlocked() bool {
	return v.key != nil && !v.key.IsClosed()
}

// Path returns the on-disk location of the vault.
func (v *Vault) Path() string {
	return v.path
}

func (v *Vault) requireUnlocked(op string) error {
	if !v.Unlocked() {
		return errs.NewPreconditionError(op, errs.ErrVaultLocked)
	}
	return nil
}

// PutKey inserts or replaces a record by id. Requires Unlocked.
func (v *Vault) PutKey(record KeyMetadata) error {
	if err := v.requireUnlocked("put key"); err != nil {
		return err
	}
	if record.ID == "" {
		return errs.NewValidationError("id", "must not be empty")
	}
	v.file.Secrets[record.ID] = record
	return nil
}

// GetKey returns the record with the given id, including its sealed
// private half. Callers passing records outward must Redacted() them.
func (v *Vault) GetKey(id string) (KeyMetadata, error) {
	record, ok := v.file.Secrets[id]
	if !ok {
		return KeyMetadata{}, errs.ErrNotFound
	}
	return record, nil
}

// ListKeys returns all records, redacted, in ascending id order.
func (v *Vault) ListKeys() []KeyMetadata {
	ids := make([]string, 0, len(v.file.Secrets))
	for id := range v.file.Secrets {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	records := make([]KeyMetadata, 0, len(ids))
	for _, id := range ids {
		records = append(records, v.file.Secrets[id].Redacted())
	}
	return records
}

// DeleteKey removes a record by id. Requires Unlocked.
func (v *Vault) DeleteKey(id string) error {
	if err := v.requireUnlocked("delete key"); err != nil {
		return err
	}
	if _, ok := v.file.Secrets[id]; !ok {
		return errs.ErrNotFound
	}
	delete(v.file.Secrets, id)
	return nil
}

// DecryptSecret opens a sealed envelope under the vault key.
// Requires Unlocked.
func (v *Vault) DecryptSecret(secret *crypto.EncryptedSecret) ([]byte, error) {
	if err := v.requireUnlocked("decrypt secret"); err != nil {
		return nil, err
	}
	return crypto.Open(v.key.Bytes(), secret)
}

// sealText seals a textual secret under the vault key.
func (v *Vault) sealText(text string) (*crypto.EncryptedSecret, error) {
	return crypto.Seal(v.key.Bytes(), []byte(text))
}

// GenerateHybridKey creates a fresh post-quantum identity and stores it
// under a new record id. Requires Unlocked. Returns the redacted record.
func (v *Vault) GenerateHybridKey(name string) (KeyMetadata, error) {
	if err := v.requireUnlocked("generate key"); err != nil {
		return KeyMetadata{}, err
	}
	if strings.TrimSpace(name) == "" {
		return KeyMetadata{}, errs.NewPreconditionError("generate key", errs.ErrEmptyName)
	}

	identity, err := hybrid.GenerateIdentity()
	if err != nil {
		return KeyMetadata{}, err
	}
	defer identity.Close()

	recipient, err := identity.Recipient()
	if err != nil {
		return KeyMetadata{}, err
	}
	sealed, err := v.sealText(identity.String())
	if err != nil {
		return KeyMetadata{}, err
	}

	record := KeyMetadata{
		ID:          NewKeyID(),
		Name:        name,
		KeyType:     KeyTypePrivate,
		DateCreated: now(),
		Contents:    KeyPair{Public: recipient.String(), Private: sealed},
	}
	v.file.Secrets[record.ID] = record
	return record.Redacted(), nil
}

// GenerateX25519Key creates a fresh classical age identity and stores it
// under a new record id. Requires Unlocked. Returns the redacted record.
func (v *Vault) GenerateX25519Key(name string) (KeyMetadata, error) {
	if err := v.requireUnlocked("generate key"); err != nil {
		return KeyMetadata{}, err
	}
	if strings.TrimSpace(name) == "" {
		return KeyMetadata{}, errs.NewPreconditionError("generate key", errs.ErrEmptyName)
	}

	identity, err := age.GenerateX25519Identity()
	if err != nil {
		return KeyMetadata{}, err
	}
	sealed, err := v.sealText(identity.String())
	if err != nil {
		return KeyMetadata{}, err
	}

	record := KeyMetadata{
		ID:          NewKeyID(),
		Name:        name,
		KeyType:     KeyTypePrivate,
		DateCreated: now(),
		Contents:    KeyPair{Public: identity.Recipient().String(), Private: sealed},
	}
	v.file.Secrets[record.ID] = record
	return record.Redacted(), nil
}

// KeypairFromIdentity re-derives the public side of a textual identity
// and re-seals the private form. Used on import and by the integrity
// recovery path. Requires Unlocked.
func (v *Vault) KeypairFromIdentity(text string) (KeyPair, error) {
	if err := v.requireUnlocked("derive keypair"); err != nil {
		return KeyPair{}, err
	}

	text = strings.TrimSpace(text)
	var public string
	switch {
	case strings.HasPrefix(text, hybrid.IdentityHRP):
		identity, err := hybrid.ParseIdentity(text)
		if err != nil {
			return KeyPair{}, err
		}
		defer identity.Close()
		recipient, err := identity.Recipient()
		if err != nil {
			return KeyPair{}, err
		}
		public = recipient.String()
	case strings.HasPrefix(text, "AGE-SECRET-KEY-"):
		identity, err := age.ParseX25519Identity(text)
		if err != nil {
			return KeyPair{}, errs.Wrap(errs.ErrNotIdentity, err.Error())
		}
		public = identity.Recipient().String()
	default:
		return KeyPair{}, errs.ErrNotIdentity
	}

	sealed, err := v.sealText(text)
	if err != nil {
		return KeyPair{}, err
	}
	return KeyPair{Public: public, Private: sealed}, nil
}

// ImportKeyText stores a textual key under a new record. Private
// identities have their public side re-derived; bare recipients are
// stored public-only. Requires Unlocked. Returns the redacted record.
func (v *Vault) ImportKeyText(name, text string) (KeyMetadata, error) {
	if err := v.requireUnlocked("import key"); err != nil {
		return KeyMetadata{}, err
	}
	if strings.TrimSpace(name) == "" {
		return KeyMetadata{}, errs.NewPreconditionError("import key", errs.ErrEmptyName)
	}

	text = strings.TrimSpace(text)
	record := KeyMetadata{
		ID:          NewKeyID(),
		Name:        name,
		DateCreated: now(),
	}

	switch {
	case strings.HasPrefix(text, "AGE-SECRET-KEY-"):
		pair, err := v.KeypairFromIdentity(text)
		if err != nil {
			return KeyMetadata{}, err
		}
		record.KeyType = KeyTypePrivate
		record.Contents = pair
	case strings.HasPrefix(text, hybrid.RecipientHRP+"1"):
		if _, err := hybrid.ParseRecipient(text); err != nil {
			return KeyMetadata{}, err
		}
		record.KeyType = KeyTypePublic
		record.Contents = KeyPair{Public: text}
	case strings.HasPrefix(text, "age1"):
		if _, err := age.ParseX25519Recipient(text); err != nil {
			return KeyMetadata{}, errs.Wrap(errs.ErrNotRecipient, err.Error())
		}
		record.KeyType = KeyTypePublic
		record.Contents = KeyPair{Public: text}
	default:
		return KeyMetadata{}, errs.ErrInvalidInput
	}

	v.file.Secrets[record.ID] = record
	return record.Redacted(), nil
}

// RegeneratePublicIdentities repairs records whose public field was
// corrupted or tampered: every record holding a private half has its
// identity decrypted, the public side freshly re-derived, and the private
// form re-sealed. Follow with Save to restore a clean integrity tag.
// Requires Unlocked.
func (v *Vault) RegeneratePublicIdentities() error {
	if err := v.requireUnlocked("regenerate public identities"); err != nil {
		return err
	}

	for id, record := range v.file.Secrets {
		if record.Contents.Private == nil {
			continue
		}
		plaintext, err := crypto.Open(v.key.Bytes(), record.Contents.Private)
		if err != nil {
			return fmt.Errorf("record %s: %w", id, err)
		}
		pair, err := v.KeypairFromIdentity(string(plaintext))
		crypto.SecureZero(plaintext)
		if err != nil {
			return fmt.Errorf("record %s: %w", id, err)
		}
		record.Contents = pair
		v.file.Secrets[id] = record
	}

	log.Info("regenerated public identities", log.Int("records", len(v.file.Secrets)))
	return nil
}

// Save recomputes the integrity tag and atomically rewrites the vault
// file, creating parent directories if needed. Requires Unlocked.
func (v *Vault) Save() error {
	if err := v.requireUnlocked("save"); err != nil {
		return err
	}

	canonical, err := marshalSecrets(v.file.Secrets)
	if err != nil {
		return err
	}
	v.file.HMAC = crypto.SecretsMAC(v.key.Bytes(), canonical)

	data, err := EncodeVaultFile(&v.file)
	if err != nil {
		return err
	}

	dir := filepath.Dir(v.path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return errs.NewFileError("create", dir, err)
	}

	// Temp file + rename in the same directory keeps the rewrite atomic
	// on the filesystems that matter.
	tmp, err := os.CreateTemp(dir, ".vault-*")
	if err != nil {
		return errs.NewFileError("create", dir, err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return errs.NewFileError("write", tmpName, err)
	}
	if err := tmp.Chmod(0o600); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return errs.NewFileError("write", tmpName, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return errs.NewFileError("write", tmpName, err)
	}
	if err := os.Rename(tmpName, v.path); err != nil {
		os.Remove(tmpName)
		return errs.NewFileError("rename", v.path, err)
	}

	log.Debug("vault saved", log.String("path", v.path), log.Int("keys", len(v.file.Secrets)))
	return nil
}
