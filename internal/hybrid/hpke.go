package hybrid

import (
	"crypto/sha256"
	"errors"
	"io"

	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/crypto/hkdf"

	"Chiffrage/internal/crypto"
)

// Single-shot HPKE (RFC 9180) in Base mode over the X-Wing KEM with
// HKDF-SHA-256 and ChaCha20-Poly1305. Only the first AEAD message is ever
// produced (sequence number zero), so no export or multi-message state is
// kept.

const (
	hpkeKEMID  = 0x647a // X-Wing
	hpkeKDFID  = 0x0001 // HKDF-SHA-256
	hpkeAEADID = 0x0003 // ChaCha20-Poly1305

	hpkeModeBase = 0x00
)

var hpkeSuiteID = []byte{
	'H', 'P', 'K', 'E',
	byte(hpkeKEMID >> 8), byte(hpkeKEMID & 0xff),
	byte(hpkeKDFID >> 8), byte(hpkeKDFID & 0xff),
	byte(hpkeAEADID >> 8), byte(hpkeAEADID & 0xff),
}

func hpkeLabeledExtract(salt []byte, label string, ikm []byte) []byte {
	labeled := make([]byte, 0, 7+len(hpkeSuiteID)+len(label)+len(ikm))
	labeled = append(labeled, "HPKE-v1"...)
	labeled = append(labeled, hpkeSuiteID...)
	labeled = append(labeled, label...)
	labeled = append(labeled, ikm...)
	return hkdf.Extract(sha256.New, labeled, salt)
}

func hpkeLabeledExpand(prk []byte, label string, info []byte, length int) ([]byte, error) {
	labeled := make([]byte, 0, 2+7+len(hpkeSuiteID)+len(label)+len(info))
	labeled = append(labeled, byte(length>>8), byte(length))
	labeled = append(labeled, "HPKE-v1"...)
	labeled = append(labeled, hpkeSuiteID...)
	labeled = append(labeled, label...)
	labeled = append(labeled, info...)

	out := make([]byte, length)
	if _, err := io.ReadFull(hkdf.Expand(sha256.New, prk, labeled), out); err != nil {
		return nil, err
	}
	return out, nil
}

// hpkeKeySchedule derives the AEAD key and base nonce for Base mode.
func hpkeKeySchedule(sharedSecret, info []byte) (key, baseNonce []byte, err error) {
	pskIDHash := hpkeLabeledExtract(nil, "psk_id_hash", nil)
	infoHash := hpkeLabeledExtract(nil, "info_hash", info)

	context := make([]byte, 0, 1+len(pskIDHash)+len(infoHash))
	context = append(context, hpkeModeBase)
	context = append(context, pskIDHash...)
	context = append(context, infoHash...)

	secret := hpkeLabeledExtract(sharedSecret, "secret", nil)
	defer crypto.SecureZero(secret)

	key, err = hpkeLabeledExpand(secret, "key", context, chacha20poly1305.KeySize)
	if err != nil {
		return nil, nil, err
	}
	baseNonce, err = hpkeLabeledExpand(secret, "base_nonce", context, chacha20poly1305.NonceSize)
	if err != nil {
		crypto.SecureZero(key)
		return nil, nil, err
	}
	return key, baseNonce, nil
}

// hpkeSealBase encapsulates to the hybrid public key and encrypts
// plaintext under the derived key. Returns the KEM output (enc) and the
// AEAD ciphertext.
func hpkeSealBase(encapsulationKey, info, aad, plaintext []byte) (enc, ct []byte, err error) {
	enc, sharedSecret, err := xwingEncapsulate(encapsulationKey)
	if err != nil {
		return nil, nil, err
	}
	defer crypto.SecureZero(sharedSecret)

	key, nonce, err := hpkeKeySchedule(sharedSecret, info)
	if err != nil {
		return nil, nil, err
	}
	defer crypto.SecureZero(key)

	aead, err := chacha20poly1305.New(key)
	if err != nil {
		return nil, nil, err
	}
	return enc, aead.Seal(nil, nonce, plaintext, aad), nil
}

// hpkeOpenBase decapsulates enc with the identity seed and decrypts ct.
// Any mismatch - wrong key, modified enc, modified ct - fails the AEAD.
func hpkeOpenBase(enc, seed, info, aad, ct []byte) ([]byte, error) {
	sharedSecret, err := xwingDecapsulate(seed, enc)
	if err != nil {
		return nil, err
	}
	defer crypto.SecureZero(sharedSecret)

	key, nonce, err := hpkeKeySchedule(sharedSecret, info)
	if err != nil {
		return nil, err
	}
	defer crypto.SecureZero(key)

	aead, err := chacha20poly1305.New(key)
	if err != nil {
		return nil, err
	}
	plaintext, err := aead.Open(nil, nonce, ct, aad)
	if err != nil {
		return nil, errors.New("failed to open HPKE ciphertext")
	}
	return plaintext, nil
}
