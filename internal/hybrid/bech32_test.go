package hybrid

import (
	"bytes"
	"strings"
	"testing"
)

func TestBech32RoundTrip(t *testing.T) {
	payloads := [][]byte{
		{0x00},
		{0x01, 0x02, 0x03},
		make([]byte, 32),
		make([]byte, EncapsulationKeySize),
	}
	for i := range payloads[3] {
		payloads[3][i] = byte(i)
	}

	for _, payload := range payloads {
		s, err := bech32Encode("age1pq", payload)
		if err != nil {
			t.Fatalf("encode failed: %v", err)
		}
		if s != strings.ToLower(s) {
			t.Errorf("encoded string not lowercase: %q", s)
		}

		hrp, data, err := bech32Decode(s)
		if err != nil {
			t.Fatalf("decode of %q failed: %v", s[:20], err)
		}
		if hrp != "age1pq" {
			t.Errorf("hrp = %q; want age1pq", hrp)
		}
		if !bytes.Equal(data, payload) {
			t.Errorf("payload mismatch for length %d", len(payload))
		}
	}
}

func TestBech32UppercaseRoundTrip(t *testing.T) {
	payload := []byte{0xde, 0xad, 0xbe, 0xef}
	s, err := bech32Encode("AGE-SECRET-KEY-PQ-", payload)
	if err != nil {
		t.Fatal(err)
	}

	upper := strings.ToUpper(s)
	hrp, data, err := bech32Decode(upper)
	if err != nil {
		t.Fatalf("decode of uppercase string failed: %v", err)
	}
	if hrp != "AGE-SECRET-KEY-PQ-" {
		t.Errorf("hrp = %q", hrp)
	}
	if !bytes.Equal(data, payload) {
		t.Error("payload mismatch")
	}
}

func TestBech32Rejects(t *testing.T) {
	s, err := bech32Encode("age1pq", []byte{1, 2, 3, 4})
	if err != nil {
		t.Fatal(err)
	}

	// Corrupt one data character
	last := s[len(s)-1]
	var replacement byte = 'q'
	if last == 'q' {
		replacement = 'p'
	}
	if _, _, err := bech32Decode(s[:len(s)-1] + string(replacement)); err == nil {
		t.Error("corrupted checksum accepted")
	}

	// Mixed case
	mixed := strings.ToUpper(s[:len(s)-4]) + s[len(s)-4:]
	if _, _, err := bech32Decode(mixed); err == nil {
		t.Error("mixed-case string accepted")
	}

	// 'o' is excluded from the Bech32 charset
	if _, _, err := bech32Decode("age1pq1ooooooo"); err == nil {
		t.Error("out-of-charset character accepted")
	}

	// Missing separator
	if _, _, err := bech32Decode("noseparator"); err == nil {
		t.Error("string without separator accepted")
	}

	// Empty HRP
	if _, _, err := bech32Decode("1qqqqqqq"); err == nil {
		t.Error("empty HRP accepted")
	}
}

func TestBech32EncodeValidatesHRP(t *testing.T) {
	if _, err := bech32Encode("", []byte{1}); err == nil {
		t.Error("empty HRP accepted")
	}
	if _, err := bech32Encode("a b", []byte{1}); err == nil {
		t.Error("HRP with space accepted")
	}
}
