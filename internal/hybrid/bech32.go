package hybrid

import (
	"errors"
	"fmt"
	"strings"
)

// Bech32 encoding without the BIP-173 90-character length limit, which a
// 1216-byte encapsulation key exceeds by an order of magnitude. The age
// format relies on the same relaxation for its key strings.

const bech32Charset = "qpzry9x8gf2tvdw0s3jn54khce6mua7l"

var bech32Generator = []uint32{0x3b6a57b2, 0x26508e6d, 0x1ea119fa, 0x3d4233dd, 0x2a1462b3}

func bech32Polymod(values []byte) uint32 {
	chk := uint32(1)
	for _, v := range values {
		top := chk >> 25
		chk = (chk&0x1ffffff)<<5 ^ uint32(v)
		for i := 0; i < 5; i++ {
			if (top>>uint(i))&1 == 1 {
				chk ^= bech32Generator[i]
			}
		}
	}
	return chk
}

func bech32HRPExpand(hrp string) []byte {
	h := []byte(strings.ToLower(hrp))
	v := make([]byte, 0, len(h)*2+1)
	for _, c := range h {
		v = append(v, c>>5)
	}
	v = append(v, 0)
	for _, c := range h {
		v = append(v, c&31)
	}
	return v
}

func bech32VerifyChecksum(hrp string, data []byte) bool {
	return bech32Polymod(append(bech32HRPExpand(hrp), data...)) == 1
}

func bech32CreateChecksum(hrp string, data []byte) []byte {
	values := append(bech32HRPExpand(hrp), data...)
	values = append(values, 0, 0, 0, 0, 0, 0)
	mod := bech32Polymod(values) ^ 1
	checksum := make([]byte, 6)
	for i := range checksum {
		checksum[i] = byte((mod >> uint(5*(5-i))) & 31)
	}
	return checksum
}

func bech32ConvertBits(data []byte, fromBits, toBits byte, pad bool) ([]byte, error) {
	var acc uint32
	var bits byte
	ret := make([]byte, 0, (len(data)*int(fromBits)+int(toBits)-1)/int(toBits))
	maxv := uint32(1)<<toBits - 1
	for _, b := range data {
		if b>>fromBits != 0 {
			return nil, errors.New("invalid data range in bit group")
		}
		acc = acc<<fromBits | uint32(b)
		bits += fromBits
		for bits >= toBits {
			bits -= toBits
			ret = append(ret, byte(acc>>bits&maxv))
		}
	}
	if pad {
		if bits > 0 {
			ret = append(ret, byte(acc<<(toBits-bits)&maxv))
		}
	} else if bits >= fromBits || acc<<(toBits-bits)&maxv != 0 {
		return nil, errors.New("invalid incomplete bit group")
	}
	return ret, nil
}

// bech32Encode encodes data under the given human-readable prefix. The data
// part is always emitted lowercase; callers wanting an uppercase string
// (private identities) uppercase the whole result.
func bech32Encode(hrp string, data []byte) (string, error) {
	if hrp == "" {
		return "", errors.New("empty HRP")
	}
	for _, c := range hrp {
		if c < 33 || c > 126 {
			return "", fmt.Errorf("invalid HRP character %q", c)
		}
	}

	values, err := bech32ConvertBits(data, 8, 5, true)
	if err != nil {
		return "", err
	}

	var b strings.Builder
	b.WriteString(hrp)
	b.WriteString("1")
	for _, p := range append(values, bech32CreateChecksum(hrp, values)...) {
		b.WriteByte(bech32Charset[p])
	}
	return b.String(), nil
}

// bech32Decode splits and validates a Bech32 string, returning the HRP in
// its original case and the decoded payload. Mixed-case strings, bad
// checksums, and out-of-charset characters are rejected.
func bech32Decode(s string) (hrp string, data []byte, err error) {
	if strings.ToLower(s) != s && strings.ToUpper(s) != s {
		return "", nil, errors.New("mixed case strings are not valid Bech32")
	}

	pos := strings.LastIndex(s, "1")
	if pos < 1 || pos+7 > len(s) {
		return "", nil, errors.New("separator '1' misplaced or missing")
	}
	hrp = s[:pos]
	for _, c := range hrp {
		if c < 33 || c > 126 {
			return "", nil, fmt.Errorf("invalid HRP character %q", c)
		}
	}

	lowered := strings.ToLower(s)
	values := make([]byte, 0, len(s)-pos-1)
	for i := pos + 1; i < len(lowered); i++ {
		d := strings.IndexByte(bech32Charset, lowered[i])
		if d == -1 {
			return "", nil, fmt.Errorf("invalid character %q in data part", s[i])
		}
		values = append(values, byte(d))
	}

	if !bech32VerifyChecksum(hrp, values) {
		return "", nil, errors.New("invalid checksum")
	}

	data, err = bech32ConvertBits(values[:len(values)-6], 5, 8, false)
	if err != nil {
		return "", nil, err
	}
	return hrp, data, nil
}
