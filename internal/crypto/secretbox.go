package crypto

import (
	"errors"

	"golang.org/x/crypto/chacha20poly1305"
)

// NonceSize is the XChaCha20-Poly1305 nonce size (24 bytes).
const NonceSize = chacha20poly1305.NonceSizeX

// EncryptedSecret is a sealed envelope: an XChaCha20-Poly1305 ciphertext
// with its random nonce. The envelope is opaque - no associated data is
// bound to it.
type EncryptedSecret struct {
	Nonce      []byte `cbor:"nonce"`
	Ciphertext []byte `cbor:"ciphertext"`
}

// Seal encrypts plaintext under key with a fresh random 24-byte nonce.
// The key must be KeySize bytes.
func Seal(key, plaintext []byte) (*EncryptedSecret, error) {
	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return nil, err
	}

	nonce, err := RandomBytes(NonceSize)
	if err != nil {
		return nil, err
	}

	return &EncryptedSecret{
		Nonce:      nonce,
		Ciphertext: aead.Seal(nil, nonce, plaintext, nil),
	}, nil
}

// Open decrypts a sealed envelope. Any authentication failure (wrong key,
// modified nonce or ciphertext) returns an error and no plaintext.
func Open(key []byte, secret *EncryptedSecret) ([]byte, error) {
	if secret == nil {
		return nil, errors.New("nothing to open")
	}
	if len(secret.Nonce) != NonceSize {
		return nil, errors.New("malformed envelope nonce")
	}

	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return nil, err
	}

	plaintext, err := aead.Open(nil, secret.Nonce, secret.Ciphertext, nil)
	if err != nil {
		return nil, errors.New("failed to decrypt secret")
	}
	return plaintext, nil
}
