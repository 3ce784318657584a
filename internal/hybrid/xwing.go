package hybrid

import (
	"errors"

	"github.com/cloudflare/circl/kem/mlkem/mlkem768"
	"golang.org/x/crypto/curve25519"
	"golang.org/x/crypto/sha3"

	"Chiffrage/internal/crypto"
)

// X-Wing KEM (draft-connolly-cfrg-xwing-kem-06): ML-KEM-768 and X25519
// combined through a single SHA3-256 evaluation. The encapsulation key is
// ek_pq ‖ ek_t, the ciphertext ct_pq ‖ ct_x.
//
// This is AUDIT-CRITICAL code - the combiner input order and label are
// fixed by the draft and MUST NOT change.

// XWingCiphertextSize is the X-Wing encapsulation output: ct_pq ‖ ct_x.
const XWingCiphertextSize = MLKEMCiphertextSize + X25519KeySize

// xwingLabel is the domain separator appended to the combiner input.
const xwingLabel = `\.//^\`

// xwingCombiner derives the shared secret:
// SHA3-256(ss_pq ‖ ss_x ‖ ct_x ‖ ek_t ‖ label).
func xwingCombiner(ssPQ, ssX, ctX, ekT []byte) []byte {
	h := sha3.New256()
	h.Write(ssPQ)
	h.Write(ssX)
	h.Write(ctX)
	h.Write(ekT)
	h.Write([]byte(xwingLabel))
	return h.Sum(nil)
}

// xwingEncapsulate produces a ciphertext and 32-byte shared secret against
// a 1216-byte encapsulation key, drawing randomness from the CSPRNG.
func xwingEncapsulate(encapsulationKey []byte) (ct, sharedSecret []byte, err error) {
	if len(encapsulationKey) != EncapsulationKeySize {
		return nil, nil, errors.New("invalid encapsulation key size")
	}
	ekPQ := encapsulationKey[:MLKEMPublicKeySize]
	ekT := encapsulationKey[MLKEMPublicKeySize:]

	pk, err := mlkem768.Scheme().UnmarshalBinaryPublicKey(ekPQ)
	if err != nil {
		return nil, nil, err
	}

	eph, err := crypto.RandomBytes(X25519KeySize)
	if err != nil {
		return nil, nil, err
	}
	defer crypto.SecureZero(eph)

	ctX, err := curve25519.X25519(eph, curve25519.Basepoint)
	if err != nil {
		return nil, nil, err
	}
	ssX, err := curve25519.X25519(eph, ekT)
	if err != nil {
		return nil, nil, err
	}
	defer crypto.SecureZero(ssX)

	ctPQ, ssPQ, err := mlkem768.Scheme().Encapsulate(pk)
	if err != nil {
		return nil, nil, err
	}
	defer crypto.SecureZero(ssPQ)

	ct = make([]byte, 0, XWingCiphertextSize)
	ct = append(ct, ctPQ...)
	ct = append(ct, ctX...)
	return ct, xwingCombiner(ssPQ, ssX, ctX, ekT), nil
}

// xwingDecapsulate recovers the shared secret from a ciphertext and the
// 32-byte identity seed. ML-KEM performs implicit rejection, so a
// mismatched key yields a garbage secret rather than an error here; the
// mismatch surfaces when the HPKE AEAD fails to open.
func xwingDecapsulate(seed, ct []byte) ([]byte, error) {
	if len(ct) != XWingCiphertextSize {
		return nil, errors.New("invalid ciphertext size")
	}

	k, err := expandSeed(seed)
	if err != nil {
		return nil, err
	}
	defer k.close()

	ctPQ := ct[:MLKEMCiphertextSize]
	ctX := ct[MLKEMCiphertextSize:]

	ssPQ, err := mlkem768.Scheme().Decapsulate(k.dkPQ, ctPQ)
	if err != nil {
		return nil, err
	}
	defer crypto.SecureZero(ssPQ)

	ssX, err := curve25519.X25519(k.dkT, ctX)
	if err != nil {
		return nil, err
	}
	defer crypto.SecureZero(ssX)

	return xwingCombiner(ssPQ, ssX, ctX, k.ekT), nil
}
