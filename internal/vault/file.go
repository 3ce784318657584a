// Package vault implements the password-sealed on-disk store for age
// identities.
//
// The on-disk format is deterministic CBOR of VaultFile. Private key
// material is sealed with XChaCha20-Poly1305 under an Argon2id-derived
// vault key, and the whole secrets map is bound to that key by an
// HMAC-SHA-256 tag recomputed on every save and verified on unlock.
//
// This is AUDIT-CRITICAL code - the encoding MUST stay deterministic or
// the integrity tag becomes irreproducible.
package vault

import (
	"time"

	"github.com/fxamacker/cbor/v2"
	"github.com/nrednav/cuid2"

	"Chiffrage/internal/crypto"
	errs "Chiffrage/internal/errors"
)

// KeyType marks whether a stored record carries private material.
type KeyType uint8

const (
	KeyTypePublic KeyType = iota
	KeyTypePrivate
)

func (t KeyType) String() string {
	switch t {
	case KeyTypePublic:
		return "public"
	case KeyTypePrivate:
		return "private"
	default:
		return "unknown"
	}
}

// KeyPair is a stored key record. Public is the plaintext recipient
// string; Private, when present, is the sealed textual identity.
type KeyPair struct {
	Public  string                  `cbor:"public"`
	Private *crypto.EncryptedSecret `cbor:"private,omitempty"`
}

// KeyMetadata is one vault record.
//
// KeyType reflects whether Private was set at creation time; Redacted()
// strips Private for outward consumers without touching KeyType.
type KeyMetadata struct {
	ID          string    `cbor:"id"`
	Name        string    `cbor:"name"`
	KeyType     KeyType   `cbor:"key_type"`
	DateCreated time.Time `cbor:"date_created"`
	Contents    KeyPair   `cbor:"contents"`
}

// Redacted returns a copy with the sealed private half removed. Records
// handed outside the vault MUST pass through this.
func (m KeyMetadata) Redacted() KeyMetadata {
	m.Contents.Private = nil
	return m
}

// IsPrivate reports whether the record currently holds private material.
func (m KeyMetadata) IsPrivate() bool {
	return m.Contents.Private != nil
}

// VaultFile is the on-disk vault layout.
type VaultFile struct {
	Salt    []byte                 `cbor:"salt"`
	Hello   crypto.EncryptedSecret `cbor:"hello"`
	Secrets map[string]KeyMetadata `cbor:"secrets"`
	HMAC    []byte                 `cbor:"hmac,omitempty"`
}

// encMode is the deterministic encoder shared by the file codec and the
// integrity tag. Core deterministic encoding sorts map keys bytewise,
// which for fixed-length record ids is ascending lexicographic order.
// Times are encoded as unix seconds.
var encMode = func() cbor.EncMode {
	opts := cbor.CoreDetEncOptions()
	opts.Time = cbor.TimeUnix
	em, err := opts.EncMode()
	if err != nil {
		panic(err)
	}
	return em
}()

// EncodeVaultFile serializes the vault to its canonical CBOR form.
func EncodeVaultFile(f *VaultFile) ([]byte, error) {
	return encMode.Marshal(f)
}

// DecodeVaultFile parses an on-disk vault.
func DecodeVaultFile(data []byte) (*VaultFile, error) {
	var f VaultFile
	if err := cbor.Unmarshal(data, &f); err != nil {
		return nil, errs.Wrap(err, "could not parse vault")
	}
	if len(f.Salt) != crypto.SaltSize {
		return nil, errs.NewValidationError("salt", "wrong length")
	}
	if f.Secrets == nil {
		f.Secrets = make(map[string]KeyMetadata)
	}
	return &f, nil
}

// marshalSecrets produces the canonical bytes the integrity tag covers.
func marshalSecrets(secrets map[string]KeyMetadata) ([]byte, error) {
	return encMode.Marshal(secrets)
}

// NewKeyID returns a fresh collision-resistant record id.
func NewKeyID() string {
	return cuid2.Generate()
}

// now returns the record timestamp, truncated to the encoding's
// second granularity so a save/load round trip is byte-stable.
func now() time.Time {
	return time.Now().UTC().Truncate(time.Second)
}
