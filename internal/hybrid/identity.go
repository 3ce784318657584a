// Package hybrid implements the post-quantum age recipient and identity
// for the mlkem768x25519 stanza type.
//
// A hybrid identity is a 32-byte seed. SHAKE-256 expands the seed into an
// ML-KEM-768 keypair and an X25519 keypair; the two public keys
// concatenated form the 1216-byte recipient. File keys are wrapped with
// single-shot HPKE in Base mode over the X-Wing KEM.
//
// Textual forms are Bech32: recipients lowercase under "age1pq", private
// identities uppercase under "AGE-SECRET-KEY-PQ-". Every hybrid key also
// projects to its classical X25519 twin for interoperability with
// non-hybrid readers.
//
// This is AUDIT-CRITICAL code - changes here directly affect key wrapping.
package hybrid

import (
	"encoding/base64"
	"fmt"
	"strings"

	"filippo.io/age"

	"Chiffrage/internal/crypto"
	errs "Chiffrage/internal/errors"
)

const (
	// StanzaTag identifies hybrid stanzas in the age header.
	StanzaTag = "mlkem768x25519"

	// RecipientHRP is the Bech32 prefix of public recipients.
	RecipientHRP = "age1pq"

	// IdentityHRP is the Bech32 prefix of private identities.
	IdentityHRP = "AGE-SECRET-KEY-PQ-"

	// Label marks hybrid stanzas so age refuses to mix them with
	// recipients that would defeat their post-quantum security.
	Label = "postquantum"

	// EncSize is the HPKE encapsulation carried in the stanza argument.
	EncSize = XWingCiphertextSize

	// x25519RecipientHRP / x25519IdentityHRP are the classical age
	// prefixes used by the projections.
	x25519RecipientHRP = "age"
	x25519IdentityHRP  = "AGE-SECRET-KEY-"

	fileKeySize    = 16
	aeadOverhead   = 16
	stanzaBodySize = fileKeySize + aeadOverhead
)

// hpkeInfo is the HPKE info string binding wrapped keys to this use.
const hpkeInfo = "age-encryption.org/mlkem768x25519"

// Recipient is a hybrid age public key. Files encrypted to it can only be
// decrypted with the corresponding [Identity].
type Recipient struct {
	encapsulationKey []byte
}

var _ age.Recipient = (*Recipient)(nil)

// NewRecipient returns a Recipient from a raw 1216-byte encapsulation key.
func NewRecipient(encapsulationKey []byte) (*Recipient, error) {
	if len(encapsulationKey) != EncapsulationKeySize {
		return nil, errs.Wrap(errs.ErrNotRecipient, "wrong encapsulation key length")
	}
	ek := make([]byte, EncapsulationKeySize)
	copy(ek, encapsulationKey)
	return &Recipient{encapsulationKey: ek}, nil
}

// ParseRecipient decodes a Bech32 "age1pq1..." recipient string.
func ParseRecipient(s string) (*Recipient, error) {
	hrp, data, err := bech32Decode(s)
	if err != nil {
		return nil, fmt.Errorf("malformed recipient %q: %w", s, err)
	}
	if hrp != RecipientHRP {
		return nil, fmt.Errorf("malformed recipient %q: %w", s, errs.ErrNotRecipient)
	}
	if len(data) != EncapsulationKeySize {
		return nil, fmt.Errorf("malformed recipient %q: %w", s, errs.ErrNotRecipient)
	}
	return &Recipient{encapsulationKey: data}, nil
}

// String returns the lowercase Bech32 encoding of the recipient.
func (r *Recipient) String() string {
	s, _ := bech32Encode(RecipientHRP, r.encapsulationKey)
	return s
}

// Bytes returns a copy of the 1216-byte encapsulation key.
func (r *Recipient) Bytes() []byte {
	return append([]byte(nil), r.encapsulationKey...)
}

// ToX25519 projects the recipient onto its classical component so that a
// hybrid key can be addressed by readers without ML-KEM support.
func (r *Recipient) ToX25519() (*age.X25519Recipient, error) {
	s, err := bech32Encode(x25519RecipientHRP, r.encapsulationKey[MLKEMPublicKeySize:])
	if err != nil {
		return nil, err
	}
	return age.ParseX25519Recipient(s)
}

// Wrap implements [age.Recipient].
func (r *Recipient) Wrap(fileKey []byte) ([]*age.Stanza, error) {
	stanzas, _, err := r.WrapWithLabels(fileKey)
	return stanzas, err
}

// WrapWithLabels implements age's RecipientWithLabels, returning the single
// "postquantum" label.
func (r *Recipient) WrapWithLabels(fileKey []byte) ([]*age.Stanza, []string, error) {
	enc, ct, err := hpkeSealBase(r.encapsulationKey, []byte(hpkeInfo), nil, fileKey)
	if err != nil {
		return nil, nil, errs.NewCryptoError("hpke", err)
	}

	stanza := &age.Stanza{
		Type: StanzaTag,
		Args: []string{base64.RawStdEncoding.EncodeToString(enc)},
		Body: ct,
	}
	return []*age.Stanza{stanza}, []string{Label}, nil
}

// Identity is a hybrid age private key: a 32-byte seed that fully
// determines the keypair. Call Close() to zero the seed when the identity
// is no longer needed.
type Identity struct {
	seed []byte
}

var _ age.Identity = (*Identity)(nil)

// GenerateIdentity returns a new identity with a random seed.
func GenerateIdentity() (*Identity, error) {
	seed, err := crypto.RandomBytes(SeedSize)
	if err != nil {
		return nil, err
	}
	return &Identity{seed: seed}, nil
}

// IdentityFromSeed returns an identity over a copy of the given seed.
func IdentityFromSeed(seed []byte) (*Identity, error) {
	if len(seed) != SeedSize {
		return nil, errs.Wrap(errs.ErrNotIdentity, "wrong seed length")
	}
	s := make([]byte, SeedSize)
	copy(s, seed)
	return &Identity{seed: s}, nil
}

// ParseIdentity decodes a Bech32 "AGE-SECRET-KEY-PQ-1..." identity string.
func ParseIdentity(s string) (*Identity, error) {
	hrp, data, err := bech32Decode(strings.TrimSpace(s))
	if err != nil {
		return nil, fmt.Errorf("malformed secret key: %w", err)
	}
	if hrp != IdentityHRP {
		crypto.SecureZero(data)
		return nil, errs.ErrNotIdentity
	}
	if len(data) != SeedSize {
		crypto.SecureZero(data)
		return nil, errs.Wrap(errs.ErrNotIdentity, "wrong seed length")
	}
	return &Identity{seed: data}, nil
}

// String returns the uppercase Bech32 encoding of the seed.
func (i *Identity) String() string {
	s, _ := bech32Encode(IdentityHRP, i.seed)
	return strings.ToUpper(s)
}

// Recipient derives the public recipient for this identity.
func (i *Identity) Recipient() (*Recipient, error) {
	k, err := expandSeed(i.seed)
	if err != nil {
		return nil, err
	}
	defer k.close()
	return &Recipient{encapsulationKey: k.encapsulationKey()}, nil
}

// ToX25519 projects the identity onto its classical component. Files
// encrypted to the X25519 twin of the recipient decrypt with this.
func (i *Identity) ToX25519() (*age.X25519Identity, error) {
	k, err := expandSeed(i.seed)
	if err != nil {
		return nil, err
	}
	defer k.close()

	s, err := bech32Encode(x25519IdentityHRP, k.dkT)
	if err != nil {
		return nil, err
	}
	return age.ParseX25519Identity(strings.ToUpper(s))
}

// Close zeros the seed. The identity is unusable afterwards.
func (i *Identity) Close() {
	crypto.SecureZero(i.seed)
	i.seed = nil
}

// Unwrap implements [age.Identity].
func (i *Identity) Unwrap(stanzas []*age.Stanza) ([]byte, error) {
	for _, s := range stanzas {
		fileKey, err := i.unwrap(s)
		if errs.Is(err, age.ErrIncorrectIdentity) {
			continue
		}
		return fileKey, err
	}
	return nil, age.ErrIncorrectIdentity
}

func (i *Identity) unwrap(block *age.Stanza) ([]byte, error) {
	if block.Type != StanzaTag {
		// Not ours; lets the age framework try other identities.
		return nil, age.ErrIncorrectIdentity
	}
	if len(block.Args) != 1 {
		return nil, errs.Wrap(errs.ErrInvalidHeader, "invalid mlkem768x25519 stanza")
	}

	enc, err := base64.RawStdEncoding.DecodeString(block.Args[0])
	if err != nil {
		return nil, errs.Wrap(errs.ErrInvalidHeader, "malformed mlkem768x25519 argument")
	}
	if len(enc) != EncSize {
		return nil, errs.Wrap(errs.ErrInvalidHeader, "wrong mlkem768x25519 encapsulation size")
	}

	// The body length check runs before any key operation; accepting
	// variable-length bodies would open a partitioning oracle.
	if len(block.Body) != stanzaBodySize {
		return nil, errs.ErrDecryptionFailed
	}

	fileKey, err := hpkeOpenBase(enc, i.seed, []byte(hpkeInfo), nil, block.Body)
	if err != nil {
		return nil, errs.ErrDecryptionFailed
	}

	out := make([]byte, fileKeySize)
	copy(out, fileKey)
	crypto.SecureZero(fileKey)
	return out, nil
}
