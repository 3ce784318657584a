package backup

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	errs "Chiffrage/internal/errors"
)

func writeVault(t *testing.T, size int) (string, []byte) {
	t.Helper()
	data := make([]byte, size)
	for i := range data {
		data[i] = byte(i * 7)
	}
	path := filepath.Join(t.TempDir(), "vault.cb")
	if err := os.WriteFile(path, data, 0o600); err != nil {
		t.Fatal(err)
	}
	return path, data
}

func TestBackupRestoreRoundTrip(t *testing.T) {
	for _, size := range []int{1, 127, 128, 129, 1000, 4096} {
		vaultPath, original := writeVault(t, size)
		backupPath := vaultPath + ".bak"

		if err := Write(vaultPath, backupPath); err != nil {
			t.Fatalf("Write (size %d) failed: %v", size, err)
		}

		// Restore over a deleted vault
		if err := os.Remove(vaultPath); err != nil {
			t.Fatal(err)
		}
		if err := Restore(backupPath, vaultPath); err != nil {
			t.Fatalf("Restore (size %d) failed: %v", size, err)
		}

		restored, err := os.ReadFile(vaultPath)
		if err != nil {
			t.Fatal(err)
		}
		if !bytes.Equal(restored, original) {
			t.Errorf("round trip mismatch for size %d", size)
		}
	}
}

func TestRestoreCorrectsDamage(t *testing.T) {
	vaultPath, original := writeVault(t, 1000)
	backupPath := vaultPath + ".bak"
	if err := Write(vaultPath, backupPath); err != nil {
		t.Fatal(err)
	}

	// Corrupt a few spread-out bytes of the backup payload (within the
	// 4-errors-per-block parity budget).
	data, err := os.ReadFile(backupPath)
	if err != nil {
		t.Fatal(err)
	}
	headerSize := len(magic) + 1 + lengthEncodedSize
	data[headerSize+3] ^= 0xFF
	data[headerSize+chunkEncodedSize+40] ^= 0xFF
	data[headerSize+2*chunkEncodedSize+135] ^= 0xFF
	if err := os.WriteFile(backupPath, data, 0o600); err != nil {
		t.Fatal(err)
	}

	if err := Restore(backupPath, vaultPath); err != nil {
		t.Fatalf("Restore of damaged backup failed: %v", err)
	}
	restored, err := os.ReadFile(vaultPath)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(restored, original) {
		t.Error("damaged backup did not restore the original bytes")
	}
}

func TestRestoreRejectsGarbage(t *testing.T) {
	dir := t.TempDir()
	backupPath := filepath.Join(dir, "junk.bak")
	vaultPath := filepath.Join(dir, "vault.cb")

	if err := os.WriteFile(backupPath, []byte("tiny"), 0o600); err != nil {
		t.Fatal(err)
	}
	if err := Restore(backupPath, vaultPath); !errs.Is(err, errs.ErrBackupCorrupt) {
		t.Errorf("tiny backup = %v; want ErrBackupCorrupt", err)
	}

	// Wrong magic with plausible size
	bogus := append([]byte("XXXX\x01"), make([]byte, 200)...)
	if err := os.WriteFile(backupPath, bogus, 0o600); err != nil {
		t.Fatal(err)
	}
	if err := Restore(backupPath, vaultPath); err == nil {
		t.Error("wrong magic accepted")
	}

	// Truncated body (not a whole number of chunks)
	vp, _ := writeVault(t, 500)
	good := vp + ".bak"
	if err := Write(vp, good); err != nil {
		t.Fatal(err)
	}
	data, err := os.ReadFile(good)
	if err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(good, data[:len(data)-10], 0o600); err != nil {
		t.Fatal(err)
	}
	if err := Restore(good, vp); !errs.Is(err, errs.ErrBackupCorrupt) {
		t.Errorf("truncated backup = %v; want ErrBackupCorrupt", err)
	}
}
