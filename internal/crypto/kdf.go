// Package crypto provides the cryptographic primitives for the Chiffrage vault.
// This is AUDIT-CRITICAL code - changes here directly affect vault sealing/unsealing.
package crypto

import (
	"bytes"
	"crypto/rand"
	"errors"
	"fmt"

	"golang.org/x/crypto/argon2"
)

// RandomBytes generates n cryptographically secure random bytes.
func RandomBytes(n int) ([]byte, error) {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return nil, fmt.Errorf("fatal crypto/rand error: %w", err)
	}

	// Sanity check: bytes should not be all zeros
	allZero := true
	for _, v := range b {
		if v != 0 {
			allZero = false
			break
		}
	}
	if allZero {
		return nil, errors.New("fatal crypto/rand error: produced zero bytes")
	}

	return b, nil
}

// Argon2id parameters for vault key derivation.
//
// CRITICAL: Parameters MUST NOT change or existing vaults cannot be unlocked.
const (
	Argon2Passes  = 2
	Argon2Memory  = 19456 // KiB (19 MiB)
	Argon2Threads = 1

	// Output key size
	KeySize = 32

	// Vault salt size, generated once at vault creation
	SaltSize = 16
)

// DeriveKey derives the 256-bit vault key from a passphrase and salt using
// Argon2id. The returned key lives in a locked buffer; callers must Close()
// it to unlock and zero the memory.
func DeriveKey(passphrase, salt []byte) (*LockedBuffer, error) {
	key := argon2.IDKey(passphrase, salt, Argon2Passes, Argon2Memory, Argon2Threads, KeySize)

	// Sanity check: key should not be all zeros
	if bytes.Equal(key, make([]byte, KeySize)) {
		return nil, errors.New("fatal crypto/argon2 error: produced zero key")
	}

	// NewLockedBuffer copies and zeroes the source slice.
	return NewLockedBuffer(key)
}
