package crypto

import (
	"crypto/hmac"
	"crypto/sha256"
)

// MACSize is the output size of the vault integrity MAC (HMAC-SHA-256).
const MACSize = sha256.Size

// SecretsMAC computes HMAC-SHA-256 over the canonical encoding of the
// vault's secrets map, keyed by the vault key. The tag binds the stored
// key set to the passphrase-derived key.
func SecretsMAC(key, canonical []byte) []byte {
	mac := hmac.New(sha256.New, key)
	mac.Write(canonical)
	return mac.Sum(nil)
}

// VerifySecretsMAC checks a stored tag against a freshly computed one in
// constant time. A nil or short stored tag never verifies.
func VerifySecretsMAC(key, canonical, tag []byte) bool {
	if len(tag) != MACSize {
		return false
	}
	return hmac.Equal(SecretsMAC(key, canonical), tag)
}
