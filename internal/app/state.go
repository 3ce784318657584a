// Package app binds the vault and the streaming pipeline into the
// user-visible command surface.
//
// AppState is the single process-wide holder of the vault, guarded by a
// mutex. Every operation takes the lock only long enough to read or
// mutate vault state; the long-running encryption and decryption work
// happens outside the critical section, and saves run on their own
// goroutine after mutations.
package app

import (
	"sync"

	"github.com/Picocrypt/zxcvbn-go"

	"Chiffrage/internal/backup"
	errs "Chiffrage/internal/errors"
	"Chiffrage/internal/log"
	"Chiffrage/internal/vault"
)

// WeakPassphraseScore is the zxcvbn score (0-4) below which vault
// creation warns about the passphrase.
const WeakPassphraseScore = 3

// AppState holds the process-wide vault handle.
type AppState struct {
	mu        sync.Mutex
	vault     *vault.Vault
	vaultPath string
	saves     sync.WaitGroup
}

// NewAppState creates an AppState for the vault at vaultPath.
// No file is touched until a vault command runs.
func NewAppState(vaultPath string) *AppState {
	return &AppState{vaultPath: vaultPath}
}

// VaultPath returns the configured vault location.
func (s *AppState) VaultPath() string {
	return s.vaultPath
}

// VaultExists reports whether a vault file is present on disk.
func (s *AppState) VaultExists() bool {
	return vault.Exists(s.vaultPath)
}

// VaultUnlocked reports whether the in-memory vault holds its key.
func (s *AppState) VaultUnlocked() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.vault != nil && s.vault.Unlocked()
}

// CreateVault creates and persists a new vault, leaving it Unlocked.
// Returns the zxcvbn strength score (0-4) of the passphrase; weak
// passphrases are accepted but logged.
func (s *AppState) CreateVault(passphrase string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if vault.Exists(s.vaultPath) {
		return 0, errs.ErrVaultExists
	}

	score := zxcvbn.PasswordStrength(passphrase, nil).Score
	if score < WeakPassphraseScore {
		log.Warn("vault created with a weak passphrase", log.Int("score", score))
	}

	v, err := vault.Create(s.vaultPath, passphrase)
	if err != nil {
		return score, err
	}
	if err := v.Save(); err != nil {
		v.Lock()
		return score, err
	}
	s.vault = v
	return score, nil
}

// LoadVault reads the vault file into memory, Locked.
func (s *AppState) LoadVault() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	v, err := vault.Load(s.vaultPath)
	if err != nil {
		return err
	}
	if s.vault != nil {
		s.vault.Lock()
	}
	s.vault = v
	return nil
}

// Authenticate unlocks the vault with the passphrase, loading it first if
// needed. An ErrIntegrity result still leaves the vault unlocked so the
// caller can run RegeneratePublicIdentities.
func (s *AppState) Authenticate(passphrase string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.vault == nil {
		v, err := vault.Load(s.vaultPath)
		if err != nil {
			return err
		}
		s.vault = v
	}
	return s.vault.Unlock(passphrase)
}

// LockVault drops the vault key.
func (s *AppState) LockVault() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.vault != nil {
		s.vault.Lock()
	}
}

// RegeneratePublicIdentities runs the integrity recovery path and
// persists the repaired vault synchronously.
func (s *AppState) RegeneratePublicIdentities() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.requireUnlockedLocked("regenerate public identities"); err != nil {
		return err
	}
	if err := s.vault.RegeneratePublicIdentities(); err != nil {
		return err
	}
	return s.vault.Save()
}

// BackupVault writes a Reed-Solomon protected copy of the vault file.
func (s *AppState) BackupVault(backupPath string) error {
	if !s.VaultExists() {
		return errs.ErrNoVault
	}
	return backup.Write(s.vaultPath, backupPath)
}

// RestoreVault rewrites the vault file from a backup. Any in-memory vault
// is discarded; the restored file is re-authenticated on the next unlock.
func (s *AppState) RestoreVault(backupPath string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := backup.Restore(backupPath, s.vaultPath); err != nil {
		return err
	}
	if s.vault != nil {
		s.vault.Lock()
		s.vault = nil
	}
	return nil
}

// requireUnlockedLocked checks vault state with the mutex already held.
func (s *AppState) requireUnlockedLocked(op string) error {
	if s.vault == nil {
		return errs.NewPreconditionError(op, errs.ErrNoVault)
	}
	if !s.vault.Unlocked() {
		return errs.NewPreconditionError(op, errs.ErrVaultLocked)
	}
	return nil
}

// withUnlockedVault runs fn under the state mutex with an unlocked vault.
// fn must not start long-running work; extract what it needs and return.
func (s *AppState) withUnlockedVault(op string, fn func(*vault.Vault) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.requireUnlockedLocked(op); err != nil {
		return err
	}
	return fn(s.vault)
}

// saveAsync persists the vault off the calling goroutine. A vault locked
// before the save runs is skipped; the mutation is still in memory and
// saved by the next successful save.
func (s *AppState) saveAsync() {
	s.saves.Add(1)
	go func() {
		defer s.saves.Done()
		s.mu.Lock()
		defer s.mu.Unlock()
		if s.vault == nil || !s.vault.Unlocked() {
			log.Warn("skipping vault save: vault locked before save ran")
			return
		}
		if err := s.vault.Save(); err != nil {
			log.Error("vault save failed", log.Err(err))
		}
	}()
}

// Flush blocks until all pending asynchronous saves have finished.
func (s *AppState) Flush() {
	s.saves.Wait()
}
