package app

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	errs "Chiffrage/internal/errors"
	"Chiffrage/internal/keys"
)

const testPassphrase = "correct horse battery staple"

func newTestApp(t *testing.T) *AppState {
	t.Helper()
	s := NewAppState(filepath.Join(t.TempDir(), "vault.cb"))
	if _, err := s.CreateVault(testPassphrase); err != nil {
		t.Fatalf("CreateVault failed: %v", err)
	}
	return s
}

func TestVaultLifecycle(t *testing.T) {
	s := newTestApp(t)

	if !s.VaultExists() {
		t.Error("vault file missing after creation")
	}
	if !s.VaultUnlocked() {
		t.Error("vault should be unlocked after creation")
	}

	s.LockVault()
	if s.VaultUnlocked() {
		t.Error("vault should be locked after LockVault")
	}

	if err := s.Authenticate("wrong"); !errs.IsAuthFailed(err) {
		t.Errorf("Authenticate(wrong) = %v; want ErrAuthFailed", err)
	}
	if s.VaultUnlocked() {
		t.Error("failed authentication must not unlock the vault")
	}

	if err := s.Authenticate(testPassphrase); err != nil {
		t.Errorf("Authenticate(correct) = %v; want nil", err)
	}
	if !s.VaultUnlocked() {
		t.Error("vault should be unlocked after correct authentication")
	}
}

func TestCreateVaultTwice(t *testing.T) {
	s := newTestApp(t)
	if _, err := s.CreateVault(testPassphrase); !errs.Is(err, errs.ErrVaultExists) {
		t.Errorf("second CreateVault = %v; want ErrVaultExists", err)
	}
}

func TestHybridExportImportRoundTrip(t *testing.T) {
	s := newTestApp(t)

	alice, err := s.GenerateKeypair("alice", keys.FormatPostQuantum)
	if err != nil {
		t.Fatalf("GenerateKeypair failed: %v", err)
	}
	if alice.Contents.Private != nil {
		t.Error("GenerateKeypair must return a redacted record")
	}

	keyPath := filepath.Join(t.TempDir(), "alice.key")
	if err := s.ExportKey(alice.ID, keyPath, keys.FormatPostQuantum); err != nil {
		t.Fatalf("ExportKey failed: %v", err)
	}
	exported, err := os.ReadFile(keyPath)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(string(exported), "AGE-SECRET-KEY-PQ-1") {
		t.Errorf("exported key prefix wrong: %q", string(exported[:24]))
	}

	if err := s.DeleteKey(alice.ID); err != nil {
		t.Fatalf("DeleteKey failed: %v", err)
	}

	alice2, err := s.ImportKey("alice2", keyPath)
	if err != nil {
		t.Fatalf("ImportKey failed: %v", err)
	}
	if alice2.Contents.Public != alice.Contents.Public {
		t.Error("re-imported key derived a different public form")
	}

	armored, err := s.EncryptText([]string{alice2.ID}, "ping")
	if err != nil {
		t.Fatalf("EncryptText failed: %v", err)
	}
	if !s.ArmorCheckText(armored) {
		t.Error("EncryptText output is not armored")
	}

	text, err := s.DecryptText(alice2.ID, armored, keys.FormatPostQuantum)
	if err != nil {
		t.Fatalf("DecryptText failed: %v", err)
	}
	if text != "ping" {
		t.Errorf("decrypted %q; want %q", text, "ping")
	}
	s.Flush()
}

func TestDowngradeRuleThroughCommands(t *testing.T) {
	s := newTestApp(t)

	a, err := s.GenerateKeypair("a", keys.FormatPostQuantum)
	if err != nil {
		t.Fatal(err)
	}
	b, err := s.GenerateKeypair("b", keys.FormatPostQuantum)
	if err != nil {
		t.Fatal(err)
	}
	x, err := s.GenerateKeypair("x", keys.FormatX25519)
	if err != nil {
		t.Fatal(err)
	}

	// All-hybrid set: stays post-quantum, classical identities cannot read it.
	armored, err := s.EncryptText([]string{a.ID, b.ID}, "m")
	if err != nil {
		t.Fatalf("EncryptText(all hybrid) failed: %v", err)
	}
	text, err := s.DecryptText(a.ID, armored, keys.FormatPostQuantum)
	if err != nil {
		t.Fatalf("hybrid DecryptText failed: %v", err)
	}
	if text != "m" {
		t.Errorf("decrypted %q; want m", text)
	}
	if _, err := s.DecryptText(x.ID, armored, keys.FormatX25519); err == nil {
		t.Error("classical identity decrypted an all-hybrid message")
	}

	// Mixed set: downgraded to X25519, readable by the twin and the
	// classical member.
	armored, err = s.EncryptText([]string{a.ID, x.ID}, "m")
	if err != nil {
		t.Fatalf("EncryptText(mixed) failed: %v", err)
	}
	if text, err := s.DecryptText(a.ID, armored, keys.FormatX25519); err != nil || text != "m" {
		t.Errorf("twin DecryptText = (%q, %v); want (m, nil)", text, err)
	}
	if text, err := s.DecryptText(x.ID, armored, keys.FormatX25519); err != nil || text != "m" {
		t.Errorf("classical DecryptText = (%q, %v); want (m, nil)", text, err)
	}
	s.Flush()
}

func TestExportDowngradesHybrid(t *testing.T) {
	s := newTestApp(t)

	a, err := s.GenerateKeypair("a", keys.FormatPostQuantum)
	if err != nil {
		t.Fatal(err)
	}

	keyPath := filepath.Join(t.TempDir(), "a-classical.key")
	if err := s.ExportKey(a.ID, keyPath, keys.FormatX25519); err != nil {
		t.Fatalf("ExportKey(X25519) failed: %v", err)
	}
	exported, err := os.ReadFile(keyPath)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(string(exported), "AGE-SECRET-KEY-1") {
		t.Errorf("downgraded export prefix wrong: %q", string(exported[:20]))
	}

	// A classical key has no post-quantum rendition.
	x, err := s.GenerateKeypair("x", keys.FormatX25519)
	if err != nil {
		t.Fatal(err)
	}
	if err := s.ExportKey(x.ID, keyPath, keys.FormatPostQuantum); err == nil {
		t.Error("classical key exported as post-quantum")
	}
	s.Flush()
}

func TestFileEncryptionWithProgress(t *testing.T) {
	s := newTestApp(t)

	a, err := s.GenerateKeypair("a", keys.FormatPostQuantum)
	if err != nil {
		t.Fatal(err)
	}

	dir := t.TempDir()
	var files []string
	var total uint64
	for i, size := range []int{300_000, 500_000} {
		path := filepath.Join(dir, []string{"one.bin", "two.bin"}[i])
		data := bytes.Repeat([]byte{byte(i + 1)}, size)
		if err := os.WriteFile(path, data, 0o600); err != nil {
			t.Fatal(err)
		}
		files = append(files, path)
		total += uint64(size)
	}

	progress := make(chan Progress, 256)
	var emissions []Progress
	done := make(chan struct{})
	go func() {
		defer close(done)
		for p := range progress {
			emissions = append(emissions, p)
		}
	}()

	outputs, err := s.EncryptFiles([]string{a.ID}, files, false, progress)
	close(progress)
	<-done
	if err != nil {
		t.Fatalf("EncryptFiles failed: %v", err)
	}
	if len(outputs) != 2 {
		t.Fatalf("outputs = %d; want 2", len(outputs))
	}

	if len(emissions) == 0 {
		t.Fatal("no progress emissions")
	}
	var last uint64
	for _, p := range emissions {
		if p.ReadBytes < last {
			t.Errorf("progress went backwards: %d after %d", p.ReadBytes, last)
		}
		last = p.ReadBytes
		if p.TotalBytes != total {
			t.Errorf("total = %d; want %d", p.TotalBytes, total)
		}
	}
	final := emissions[len(emissions)-1]
	if final.ReadBytes != final.TotalBytes {
		t.Errorf("final emission %d/%d; want read == total", final.ReadBytes, final.TotalBytes)
	}
	if final.CurrentFile != files[1] {
		t.Errorf("final emission file = %q; want %q", final.CurrentFile, files[1])
	}

	// Decrypt both outputs back and verify contents.
	for i, out := range outputs {
		if _, err := os.Stat(out); err != nil {
			t.Fatalf("missing output %s", out)
		}
		// Remove originals so decryption recreates them.
		if err := os.Remove(files[i]); err != nil {
			t.Fatal(err)
		}
	}
	decrypted, err := s.DecryptFiles(a.ID, outputs, keys.FormatPostQuantum, nil)
	if err != nil {
		t.Fatalf("DecryptFiles failed: %v", err)
	}
	for i, path := range decrypted {
		data, err := os.ReadFile(path)
		if err != nil {
			t.Fatal(err)
		}
		if len(data) == 0 || data[0] != byte(i+1) {
			t.Errorf("decrypted file %d has wrong contents", i)
		}
	}
	s.Flush()
}

func TestPersistenceAcrossReload(t *testing.T) {
	s := newTestApp(t)
	record, err := s.GenerateKeypair("keep", keys.FormatX25519)
	if err != nil {
		t.Fatal(err)
	}
	s.Flush()
	s.LockVault()

	// Fresh state over the same path.
	s2 := NewAppState(s.VaultPath())
	if err := s2.Authenticate(testPassphrase); err != nil {
		t.Fatalf("Authenticate failed: %v", err)
	}
	records, err := s2.FetchKeys()
	if err != nil {
		t.Fatal(err)
	}
	if len(records) != 1 || records[0].ID != record.ID {
		t.Error("generated key did not survive reload")
	}
	for _, r := range records {
		if r.Contents.Private != nil {
			t.Error("FetchKeys exposed private material")
		}
	}
}

func TestBackupRestoreThroughCommands(t *testing.T) {
	s := newTestApp(t)
	record, err := s.GenerateKeypair("keep", keys.FormatPostQuantum)
	if err != nil {
		t.Fatal(err)
	}
	s.Flush()

	backupPath := s.VaultPath() + ".bak"
	if err := s.BackupVault(backupPath); err != nil {
		t.Fatalf("BackupVault failed: %v", err)
	}

	// Clobber the vault file, then restore.
	if err := os.WriteFile(s.VaultPath(), []byte("ruined"), 0o600); err != nil {
		t.Fatal(err)
	}
	if err := s.RestoreVault(backupPath); err != nil {
		t.Fatalf("RestoreVault failed: %v", err)
	}

	if err := s.Authenticate(testPassphrase); err != nil {
		t.Fatalf("Authenticate after restore = %v; want nil", err)
	}
	records, err := s.FetchKeys()
	if err != nil {
		t.Fatal(err)
	}
	if len(records) != 1 || records[0].ID != record.ID {
		t.Error("restored vault lost the key record")
	}
}

func TestGeneratePassphraseShape(t *testing.T) {
	s := NewAppState(filepath.Join(t.TempDir(), "vault.cb"))
	p, err := s.GeneratePassphrase()
	if err != nil {
		t.Fatalf("GeneratePassphrase failed: %v", err)
	}
	if got := len(strings.Split(p, "-")); got != 12 {
		t.Errorf("passphrase has %d words; want 12", got)
	}
}

func TestOperationsRequireVault(t *testing.T) {
	s := NewAppState(filepath.Join(t.TempDir(), "vault.cb"))

	if _, err := s.FetchKeys(); !errs.Is(err, errs.ErrNoVault) {
		t.Errorf("FetchKeys without vault = %v; want ErrNoVault", err)
	}
	if _, err := s.GenerateKeypair("x", keys.FormatX25519); !errs.Is(err, errs.ErrNoVault) {
		t.Errorf("GenerateKeypair without vault = %v; want ErrNoVault", err)
	}
	if err := s.BackupVault("nowhere.bak"); !errs.Is(err, errs.ErrNoVault) {
		t.Errorf("BackupVault without vault = %v; want ErrNoVault", err)
	}
}
