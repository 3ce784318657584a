package hybrid

import (
	"errors"

	"github.com/cloudflare/circl/kem"
	"github.com/cloudflare/circl/kem/mlkem/mlkem768"
	"golang.org/x/crypto/curve25519"
	"golang.org/x/crypto/sha3"

	"Chiffrage/internal/crypto"
)

// Key sizes of the hybrid construction.
const (
	// SeedSize is the size of a hybrid identity seed.
	SeedSize = 32

	// MLKEMPublicKeySize is the ML-KEM-768 encapsulation key size.
	MLKEMPublicKeySize = 1184

	// MLKEMCiphertextSize is the ML-KEM-768 ciphertext size.
	MLKEMCiphertextSize = 1088

	// X25519KeySize is the size of X25519 public keys, shared secrets,
	// and scalars.
	X25519KeySize = 32

	// EncapsulationKeySize is the hybrid public key: ek_pq ‖ ek_t.
	EncapsulationKeySize = MLKEMPublicKeySize + X25519KeySize

	// mlkemSeedSize is the ML-KEM-768 keygen seed (d ‖ z).
	mlkemSeedSize = 64

	// expandedSeedSize is the SHAKE-256 output that seeds both component
	// keypairs.
	expandedSeedSize = mlkemSeedSize + X25519KeySize
)

// expandedKey holds the component keys derived from a 32-byte seed.
// dkT is secret; call close() when done.
type expandedKey struct {
	ekPQ []byte // 1184 bytes, ML-KEM-768 encapsulation key
	ekT  []byte // 32 bytes, X25519 public key
	dkPQ kem.PrivateKey
	dkT  []byte // 32 bytes, X25519 scalar
}

// expandSeed deterministically derives the ML-KEM-768 and X25519 keypairs
// from a 32-byte seed:
//
//	full    = SHAKE-256(seed, 96)
//	seed_pq = full[0:64]   -> ML-KEM-768.KeyGen
//	dk_t    = full[64:96]  -> ek_t = X25519(dk_t, basepoint)
//
// CRITICAL: this expansion is the X-Wing (draft-06) key derivation and MUST
// produce byte-identical keys across calls; recipients derived elsewhere
// from the same seed must match exactly.
func expandSeed(seed []byte) (*expandedKey, error) {
	if len(seed) != SeedSize {
		return nil, errors.New("hybrid seed must be 32 bytes")
	}

	full := make([]byte, expandedSeedSize)
	sha3.ShakeSum256(full, seed)
	defer crypto.SecureZero(full)

	pk, sk := mlkem768.Scheme().DeriveKeyPair(full[:mlkemSeedSize])
	ekPQ, err := pk.MarshalBinary()
	if err != nil {
		return nil, err
	}

	dkT := make([]byte, X25519KeySize)
	copy(dkT, full[mlkemSeedSize:])

	ekT, err := curve25519.X25519(dkT, curve25519.Basepoint)
	if err != nil {
		crypto.SecureZero(dkT)
		return nil, err
	}

	return &expandedKey{ekPQ: ekPQ, ekT: ekT, dkPQ: sk, dkT: dkT}, nil
}

// encapsulationKey returns ek_pq ‖ ek_t (1216 bytes).
func (k *expandedKey) encapsulationKey() []byte {
	out := make([]byte, 0, EncapsulationKeySize)
	out = append(out, k.ekPQ...)
	return append(out, k.ekT...)
}

// close zeros the secret component keys.
func (k *expandedKey) close() {
	crypto.SecureZero(k.dkT)
	k.dkPQ = nil
}
