package passphrase

import (
	"strings"
	"testing"
)

func TestWordlist(t *testing.T) {
	if WordlistSize() < 1024 {
		t.Fatalf("wordlist has %d words; want >= 1024", WordlistSize())
	}
	seen := make(map[string]bool)
	for _, w := range wordlist {
		if w != strings.ToLower(w) {
			t.Errorf("word %q is not lowercase", w)
		}
		if strings.ContainsAny(w, " \t-") {
			t.Errorf("word %q contains separator characters", w)
		}
		if seen[w] {
			t.Errorf("duplicate word %q", w)
		}
		seen[w] = true
	}
}

func TestGenerate(t *testing.T) {
	p, err := Generate()
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}

	words := strings.Split(p, Separator)
	if len(words) != Words {
		t.Fatalf("passphrase has %d words; want %d", len(words), Words)
	}

	inList := make(map[string]bool, len(wordlist))
	for _, w := range wordlist {
		inList[w] = true
	}

	seen := make(map[string]bool)
	for _, w := range words {
		if !inList[w] {
			t.Errorf("word %q not in the wordlist", w)
		}
		if seen[w] {
			t.Errorf("word %q drawn twice; draws must be without replacement", w)
		}
		seen[w] = true
	}
}

func TestGenerateVaries(t *testing.T) {
	a, err := Generate()
	if err != nil {
		t.Fatal(err)
	}
	b, err := Generate()
	if err != nil {
		t.Fatal(err)
	}
	if a == b {
		t.Error("two generated passphrases are identical")
	}
}
