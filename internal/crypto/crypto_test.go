package crypto

import (
	"bytes"
	"testing"
)

func TestRandomBytes(t *testing.T) {
	b, err := RandomBytes(32)
	if err != nil {
		t.Fatalf("RandomBytes failed: %v", err)
	}
	if len(b) != 32 {
		t.Errorf("length = %d; want 32", len(b))
	}

	b2, err := RandomBytes(32)
	if err != nil {
		t.Fatalf("RandomBytes failed: %v", err)
	}
	if bytes.Equal(b, b2) {
		t.Error("two random draws are identical")
	}
}

func TestDeriveKeyDeterministic(t *testing.T) {
	salt := make([]byte, SaltSize)
	for i := range salt {
		salt[i] = byte(i)
	}

	key1, err := DeriveKey([]byte("correct horse battery staple"), salt)
	if err != nil {
		t.Fatalf("DeriveKey failed: %v", err)
	}
	defer key1.Close()
	if key1.Len() != KeySize {
		t.Errorf("key length = %d; want %d", key1.Len(), KeySize)
	}

	key2, err := DeriveKey([]byte("correct horse battery staple"), salt)
	if err != nil {
		t.Fatalf("DeriveKey failed: %v", err)
	}
	defer key2.Close()
	if !bytes.Equal(key1.Bytes(), key2.Bytes()) {
		t.Error("same passphrase and salt should derive the same key")
	}

	key3, err := DeriveKey([]byte("wrong"), salt)
	if err != nil {
		t.Fatalf("DeriveKey failed: %v", err)
	}
	defer key3.Close()
	if bytes.Equal(key1.Bytes(), key3.Bytes()) {
		t.Error("different passphrases derived the same key")
	}
}

func TestDeriveKeyCloseClearsKey(t *testing.T) {
	salt := make([]byte, SaltSize)
	passphrase := []byte("hunter2hunter2")

	key, err := DeriveKey(passphrase, salt)
	if err != nil {
		t.Fatalf("DeriveKey failed: %v", err)
	}
	key.Close()
	if key.Bytes() != nil {
		t.Error("Bytes() after Close should be nil")
	}
	if key.Len() != 0 {
		t.Error("Len() after Close should be 0")
	}
}

func TestSealOpenRoundTrip(t *testing.T) {
	key, err := RandomBytes(KeySize)
	if err != nil {
		t.Fatal(err)
	}
	plaintext := []byte("AGE-SECRET-KEY-PQ-TESTVECTOR")

	sealed, err := Seal(key, plaintext)
	if err != nil {
		t.Fatalf("Seal failed: %v", err)
	}
	if len(sealed.Nonce) != NonceSize {
		t.Errorf("nonce length = %d; want %d", len(sealed.Nonce), NonceSize)
	}

	opened, err := Open(key, sealed)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	if !bytes.Equal(opened, plaintext) {
		t.Errorf("round trip mismatch: got %q", opened)
	}
}

func TestSealFreshNonces(t *testing.T) {
	key, _ := RandomBytes(KeySize)
	a, err := Seal(key, []byte("x"))
	if err != nil {
		t.Fatal(err)
	}
	b, err := Seal(key, []byte("x"))
	if err != nil {
		t.Fatal(err)
	}
	if bytes.Equal(a.Nonce, b.Nonce) {
		t.Error("two seals reused a nonce")
	}
	if bytes.Equal(a.Ciphertext, b.Ciphertext) {
		t.Error("two seals of the same plaintext are identical")
	}
}

func TestOpenRejectsTampering(t *testing.T) {
	key, _ := RandomBytes(KeySize)
	sealed, err := Seal(key, []byte("secret"))
	if err != nil {
		t.Fatal(err)
	}

	// Flip a ciphertext byte
	tampered := &EncryptedSecret{
		Nonce:      append([]byte(nil), sealed.Nonce...),
		Ciphertext: append([]byte(nil), sealed.Ciphertext...),
	}
	tampered.Ciphertext[0] ^= 1
	if _, err := Open(key, tampered); err == nil {
		t.Error("Open accepted tampered ciphertext")
	}

	// Wrong key
	otherKey, _ := RandomBytes(KeySize)
	if _, err := Open(otherKey, sealed); err == nil {
		t.Error("Open accepted the wrong key")
	}

	// Truncated nonce
	short := &EncryptedSecret{Nonce: sealed.Nonce[:12], Ciphertext: sealed.Ciphertext}
	if _, err := Open(key, short); err == nil {
		t.Error("Open accepted a truncated nonce")
	}

	// Nil envelope
	if _, err := Open(key, nil); err == nil {
		t.Error("Open accepted a nil envelope")
	}
}

func TestSecretsMAC(t *testing.T) {
	key, _ := RandomBytes(KeySize)
	payload := []byte("canonical cbor bytes")

	tag := SecretsMAC(key, payload)
	if len(tag) != MACSize {
		t.Fatalf("tag length = %d; want %d", len(tag), MACSize)
	}
	if !VerifySecretsMAC(key, payload, tag) {
		t.Error("tag did not verify")
	}

	// Modified payload fails
	if VerifySecretsMAC(key, []byte("canonical cbor byteZ"), tag) {
		t.Error("modified payload verified")
	}

	// Wrong key fails
	otherKey, _ := RandomBytes(KeySize)
	if VerifySecretsMAC(otherKey, payload, tag) {
		t.Error("wrong key verified")
	}

	// Missing or short tags never verify
	if VerifySecretsMAC(key, payload, nil) {
		t.Error("nil tag verified")
	}
	if VerifySecretsMAC(key, payload, tag[:16]) {
		t.Error("short tag verified")
	}
}
