// Package keys multiplexes the three age recipient/identity flavors -
// classical X25519, post-quantum hybrid, and scrypt passphrase - behind
// closed tagged unions, and implements the recipient downgrade rule used
// for multi-recipient file encryption.
package keys

import (
	"os"
	"strings"

	"filippo.io/age"

	errs "Chiffrage/internal/errors"
	"Chiffrage/internal/hybrid"
)

// Kind tags the variant held by a wildcard recipient or identity.
type Kind int

const (
	KindX25519 Kind = iota
	KindHybrid
	KindScrypt
)

func (k Kind) String() string {
	switch k {
	case KindX25519:
		return "x25519"
	case KindHybrid:
		return "mlkem768x25519"
	case KindScrypt:
		return "scrypt"
	default:
		return "unknown"
	}
}

// Format selects a key flavor at the command surface.
type Format int

const (
	FormatX25519 Format = iota
	FormatPostQuantum
)

// Textual prefixes of the supported key forms.
const (
	hybridRecipientPrefix = hybrid.RecipientHRP + "1"
	hybridIdentityPrefix  = hybrid.IdentityHRP + "1"
	x25519RecipientPrefix = "age1"
	x25519IdentityPrefix  = "AGE-SECRET-KEY-1"
)

// Recipient is a tagged union over the supported age recipient variants.
// It delegates the age recipient contract to the held variant.
type Recipient struct {
	kind   Kind
	x      *age.X25519Recipient
	hybrid *hybrid.Recipient
	scrypt *age.ScryptRecipient
}

var _ age.Recipient = (*Recipient)(nil)

// ParseRecipient parses a textual public key into the matching variant.
func ParseRecipient(s string) (*Recipient, error) {
	s = strings.TrimSpace(s)
	switch {
	case strings.HasPrefix(s, hybridRecipientPrefix):
		r, err := hybrid.ParseRecipient(s)
		if err != nil {
			return nil, err
		}
		return &Recipient{kind: KindHybrid, hybrid: r}, nil
	case strings.HasPrefix(s, x25519RecipientPrefix):
		r, err := age.ParseX25519Recipient(s)
		if err != nil {
			return nil, errs.Wrap(errs.ErrNotRecipient, err.Error())
		}
		return &Recipient{kind: KindX25519, x: r}, nil
	default:
		return nil, errs.ErrNotRecipient
	}
}

// NewScryptRecipient wraps a passphrase as a recipient.
func NewScryptRecipient(passphrase string) (*Recipient, error) {
	r, err := age.NewScryptRecipient(passphrase)
	if err != nil {
		return nil, err
	}
	return &Recipient{kind: KindScrypt, scrypt: r}, nil
}

// Kind returns the held variant tag.
func (r *Recipient) Kind() Kind {
	return r.kind
}

// Wrap implements [age.Recipient].
func (r *Recipient) Wrap(fileKey []byte) ([]*age.Stanza, error) {
	switch r.kind {
	case KindX25519:
		return r.x.Wrap(fileKey)
	case KindHybrid:
		return r.hybrid.Wrap(fileKey)
	default:
		return r.scrypt.Wrap(fileKey)
	}
}

// WrapWithLabels forwards the hybrid "postquantum" label so age can refuse
// recipient sets that would silently drop post-quantum security.
func (r *Recipient) WrapWithLabels(fileKey []byte) ([]*age.Stanza, []string, error) {
	if r.kind == KindHybrid {
		return r.hybrid.WrapWithLabels(fileKey)
	}
	stanzas, err := r.Wrap(fileKey)
	return stanzas, nil, err
}

// String returns the textual form of the recipient.
// Scrypt recipients have none.
func (r *Recipient) String() (string, error) {
	switch r.kind {
	case KindX25519:
		return r.x.String(), nil
	case KindHybrid:
		return r.hybrid.String(), nil
	default:
		return "", errs.NewPreconditionError("recipient string", errs.ErrNoTextForm)
	}
}

// ToX25519 projects the recipient onto a classical X25519 recipient.
// X25519 recipients project to themselves.
func (r *Recipient) ToX25519() (*age.X25519Recipient, error) {
	switch r.kind {
	case KindX25519:
		return r.x, nil
	case KindHybrid:
		return r.hybrid.ToX25519()
	default:
		return nil, errs.NewPreconditionError("recipient downgrade", errs.ErrNoPublicForm)
	}
}

// Identity is a tagged union over the supported age identity variants.
// It delegates the age identity contract to the held variant.
type Identity struct {
	kind   Kind
	x      *age.X25519Identity
	hybrid *hybrid.Identity
	scrypt *age.ScryptIdentity
}

var _ age.Identity = (*Identity)(nil)

// ParseIdentity parses a textual private key into the matching variant.
func ParseIdentity(s string) (*Identity, error) {
	s = strings.TrimSpace(s)
	switch {
	case strings.HasPrefix(s, hybridIdentityPrefix):
		i, err := hybrid.ParseIdentity(s)
		if err != nil {
			return nil, err
		}
		return &Identity{kind: KindHybrid, hybrid: i}, nil
	case strings.HasPrefix(s, x25519IdentityPrefix):
		i, err := age.ParseX25519Identity(s)
		if err != nil {
			return nil, errs.Wrap(errs.ErrNotIdentity, err.Error())
		}
		return &Identity{kind: KindX25519, x: i}, nil
	default:
		return nil, errs.ErrNotIdentity
	}
}

// NewScryptIdentity wraps a passphrase as an identity.
func NewScryptIdentity(passphrase string) (*Identity, error) {
	i, err := age.NewScryptIdentity(passphrase)
	if err != nil {
		return nil, err
	}
	return &Identity{kind: KindScrypt, scrypt: i}, nil
}

// Kind returns the held variant tag.
func (i *Identity) Kind() Kind {
	return i.kind
}

// Unwrap implements [age.Identity].
func (i *Identity) Unwrap(stanzas []*age.Stanza) ([]byte, error) {
	switch i.kind {
	case KindX25519:
		return i.x.Unwrap(stanzas)
	case KindHybrid:
		return i.hybrid.Unwrap(stanzas)
	default:
		return i.scrypt.Unwrap(stanzas)
	}
}

// ToPublic yields the matching recipient. Scrypt identities have none.
func (i *Identity) ToPublic() (*Recipient, error) {
	switch i.kind {
	case KindX25519:
		return &Recipient{kind: KindX25519, x: i.x.Recipient()}, nil
	case KindHybrid:
		r, err := i.hybrid.Recipient()
		if err != nil {
			return nil, err
		}
		return &Recipient{kind: KindHybrid, hybrid: r}, nil
	default:
		return nil, errs.NewPreconditionError("identity to public", errs.ErrNoPublicForm)
	}
}

// DecryptionIdentities returns the age identities to supply for
// decryption. A hybrid identity yields itself AND its projected X25519
// twin, so files encrypted under either form by the downgrade rule
// decrypt successfully.
func (i *Identity) DecryptionIdentities() ([]age.Identity, error) {
	if i.kind != KindHybrid {
		return []age.Identity{i}, nil
	}
	twin, err := i.hybrid.ToX25519()
	if err != nil {
		return nil, err
	}
	return []age.Identity{i.hybrid, twin}, nil
}

// RecipientsForEncryption applies the downgrade rule to a set of textual
// public keys: if ALL are hybrid, the hybrid recipients are used and the
// file is post-quantum; otherwise every hybrid key is projected to its
// X25519 twin and the whole set is classical. The returned flag reports
// whether the hybrid path was taken.
func RecipientsForEncryption(publicKeys []string) ([]age.Recipient, bool, error) {
	if len(publicKeys) == 0 {
		return nil, false, errs.NewValidationError("recipients", "at least one recipient required")
	}

	parsed := make([]*Recipient, 0, len(publicKeys))
	allHybrid := true
	for _, s := range publicKeys {
		r, err := ParseRecipient(s)
		if err != nil {
			return nil, false, err
		}
		if r.Kind() != KindHybrid {
			allHybrid = false
		}
		parsed = append(parsed, r)
	}

	recipients := make([]age.Recipient, 0, len(parsed))
	if allHybrid {
		for _, r := range parsed {
			recipients = append(recipients, r)
		}
		return recipients, true, nil
	}
	for _, r := range parsed {
		x, err := r.ToX25519()
		if err != nil {
			return nil, false, err
		}
		recipients = append(recipients, x)
	}
	return recipients, false, nil
}

// IdentitiesForDecryption parses a textual private key according to the
// requested format and returns the identities to try.
func IdentitiesForDecryption(keyText string, format Format) ([]age.Identity, error) {
	identity, err := ParseIdentity(keyText)
	if err != nil {
		return nil, err
	}
	if format == FormatPostQuantum && identity.Kind() != KindHybrid {
		return nil, errs.Wrap(errs.ErrNotIdentity, "not a post-quantum secret key")
	}
	if format == FormatX25519 && identity.Kind() == KindHybrid {
		// A hybrid key asked to act classically uses only its twin.
		twin, err := identity.hybrid.ToX25519()
		if err != nil {
			return nil, err
		}
		return []age.Identity{twin}, nil
	}
	return identity.DecryptionIdentities()
}

// DowngradeHybridPublicKey projects a textual hybrid recipient onto its
// classical form.
func DowngradeHybridPublicKey(s string) (string, error) {
	r, err := hybrid.ParseRecipient(strings.TrimSpace(s))
	if err != nil {
		return "", err
	}
	x, err := r.ToX25519()
	if err != nil {
		return "", err
	}
	return x.String(), nil
}

// DowngradeHybridIdentity projects a textual hybrid identity onto its
// classical X25519 identity form.
func DowngradeHybridIdentity(s string) (string, error) {
	i, err := hybrid.ParseIdentity(strings.TrimSpace(s))
	if err != nil {
		return "", err
	}
	defer i.Close()
	twin, err := i.ToX25519()
	if err != nil {
		return "", err
	}
	return twin.String(), nil
}

// ValidateKeyText reports whether text is any supported key form,
// public or private.
func ValidateKeyText(text string) error {
	text = strings.TrimSpace(text)
	if strings.HasPrefix(text, "AGE-SECRET-KEY-") {
		_, err := ParseIdentity(text)
		return err
	}
	_, err := ParseRecipient(text)
	return err
}

// CheckKeyfileType reads a key file and reports whether it holds a
// private identity (true) or a public recipient (false).
func CheckKeyfileType(path string) (bool, error) {
	text, err := ReadKeyFile(path)
	if err != nil {
		return false, err
	}
	if strings.HasPrefix(text, "AGE-SECRET-KEY-") {
		if _, err := ParseIdentity(text); err != nil {
			return false, err
		}
		return true, nil
	}
	if _, err := ParseRecipient(text); err != nil {
		return false, err
	}
	return false, nil
}

// ValidateKeyFile reports whether the file at path holds a valid key.
func ValidateKeyFile(path string) error {
	text, err := ReadKeyFile(path)
	if err != nil {
		return err
	}
	return ValidateKeyText(text)
}

// ReadKeyFile reads a small key file, ignoring comment lines in the
// age-keygen output style.
func ReadKeyFile(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", errs.NewFileError("read", path, err)
	}
	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		return line, nil
	}
	return "", errs.NewValidationError("keyfile", "no key material found")
}
