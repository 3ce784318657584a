// Package passphrase generates memorable vault passphrases from an
// embedded wordlist.
package passphrase

import (
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"strings"

	_ "embed"
)

// Words is the number of words drawn for one passphrase.
const Words = 12

// Separator joins the drawn words.
const Separator = "-"

//go:embed wordlist.txt
var rawWordlist string

// wordlist is parsed once at startup. With ~2400 words, 12 draws give
// roughly 135 bits before accounting for the without-replacement loss.
var wordlist = func() []string {
	lines := strings.Split(strings.TrimSpace(rawWordlist), "\n")
	words := make([]string, 0, len(lines))
	seen := make(map[string]bool, len(lines))
	for _, line := range lines {
		w := strings.TrimSpace(line)
		if w == "" || seen[w] {
			continue
		}
		seen[w] = true
		words = append(words, w)
	}
	if len(words) < 1024 {
		panic(fmt.Sprintf("embedded wordlist too small: %d words", len(words)))
	}
	return words
}()

// WordlistSize returns the number of distinct words available.
func WordlistSize() int {
	return len(wordlist)
}

// Generate draws Words words uniformly without replacement from the
// wordlist and joins them with Separator.
func Generate() (string, error) {
	if Words > len(wordlist) {
		return "", errors.New("wordlist smaller than passphrase length")
	}

	// Partial Fisher-Yates over a copy: each draw is uniform over the
	// remaining words, so no word repeats.
	pool := make([]string, len(wordlist))
	copy(pool, wordlist)

	picked := make([]string, Words)
	for i := range Words {
		j, err := rand.Int(rand.Reader, big.NewInt(int64(len(pool)-i)))
		if err != nil {
			return "", fmt.Errorf("fatal crypto/rand error: %w", err)
		}
		k := i + int(j.Int64())
		pool[i], pool[k] = pool[k], pool[i]
		picked[i] = pool[i]
	}
	return strings.Join(picked, Separator), nil
}
