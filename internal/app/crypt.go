package app

import (
	"os"
	"sync"
	"sync/atomic"
	"time"

	"Chiffrage/internal/crypto"
	errs "Chiffrage/internal/errors"
	"Chiffrage/internal/keys"
	"Chiffrage/internal/pipeline"
	"Chiffrage/internal/vault"
)

// Progress is one emission on a file-operation progress channel.
type Progress struct {
	ReadBytes   uint64
	TotalBytes  uint64
	CurrentFile string
}

// progressInterval is the cadence of the periodic progress emitter.
const progressInterval = 100 * time.Millisecond

// recipientStrings resolves vault record ids to their public key strings
// under a short critical section. Public forms are plaintext, so a loaded
// but locked vault suffices.
func (s *AppState) recipientStrings(ids []string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.vault == nil {
		return nil, errs.NewPreconditionError("resolve recipients", errs.ErrNoVault)
	}

	publics := make([]string, 0, len(ids))
	for _, id := range ids {
		record, err := s.vault.GetKey(id)
		if err != nil {
			return nil, err
		}
		publics = append(publics, record.Contents.Public)
	}
	return publics, nil
}

// identityText decrypts a record's private identity under a short
// critical section. The returned text lives only for the operation.
func (s *AppState) identityText(id string) (string, error) {
	var text string
	err := s.withUnlockedVault("resolve identity", func(v *vault.Vault) error {
		record, err := v.GetKey(id)
		if err != nil {
			return err
		}
		if !record.IsPrivate() {
			return errs.Wrap(errs.ErrInvalidInput, "key has no private half")
		}
		plaintext, err := v.DecryptSecret(record.Contents.Private)
		if err != nil {
			return err
		}
		text = string(plaintext)
		crypto.SecureZero(plaintext)
		return nil
	})
	return text, err
}

// EncryptText encrypts a short text to the given vault recipients and
// returns the armored message. The downgrade rule of the key dispatch
// applies.
func (s *AppState) EncryptText(recipientIDs []string, text string) (string, error) {
	publics, err := s.recipientStrings(recipientIDs)
	if err != nil {
		return "", err
	}
	recipients, _, err := keys.RecipientsForEncryption(publics)
	if err != nil {
		return "", err
	}
	return pipeline.EncryptText(recipients, text)
}

// DecryptText decrypts an armored message with a vault identity.
func (s *AppState) DecryptText(identityID, armoredText string, format keys.Format) (string, error) {
	text, err := s.identityText(identityID)
	if err != nil {
		return "", err
	}
	identities, err := keys.IdentitiesForDecryption(text, format)
	if err != nil {
		return "", err
	}
	return pipeline.DecryptText(identities, armoredText)
}

// EncryptFiles encrypts each file for the given vault recipients,
// sequentially, reporting progress on the channel (which may be nil).
// Returns the output paths of the files completed.
func (s *AppState) EncryptFiles(recipientIDs []string, files []string, armored bool, progress chan<- Progress) ([]string, error) {
	publics, err := s.recipientStrings(recipientIDs)
	if err != nil {
		return nil, err
	}
	recipients, _, err := keys.RecipientsForEncryption(publics)
	if err != nil {
		return nil, err
	}

	return processFiles(files, progress, func(path string, onProgress pipeline.ProgressFunc) (string, error) {
		return pipeline.EncryptFile(recipients, path, armored, onProgress)
	})
}

// DecryptFiles decrypts each file with a vault identity, sequentially,
// auto-detecting armor per file and reporting progress on the channel
// (which may be nil). Returns the output paths of the files completed.
func (s *AppState) DecryptFiles(identityID string, files []string, format keys.Format, progress chan<- Progress) ([]string, error) {
	text, err := s.identityText(identityID)
	if err != nil {
		return nil, err
	}
	identities, err := keys.IdentitiesForDecryption(text, format)
	if err != nil {
		return nil, err
	}

	return processFiles(files, progress, func(path string, onProgress pipeline.ProgressFunc) (string, error) {
		armored, err := pipeline.IsArmoredFile(path)
		if err != nil {
			return "", err
		}
		return pipeline.DecryptFile(identities, path, armored, onProgress)
	})
}

// processFiles runs op over each file with a shared atomic read counter.
// A per-file emitter goroutine publishes {read, total, current} every
// progressInterval and is cancelled between files. Once every file has
// succeeded, a final emission carries ReadBytes == TotalBytes; a failing
// file returns the error without that final emission.
func processFiles(files []string, progress chan<- Progress, op func(string, pipeline.ProgressFunc) (string, error)) ([]string, error) {
	if len(files) == 0 {
		return nil, errs.NewValidationError("files", "no input files specified")
	}

	var total uint64
	for _, path := range files {
		info, err := os.Stat(path)
		if err != nil {
			return nil, errs.NewFileError("stat", path, err)
		}
		total += uint64(info.Size())
	}

	var read atomic.Uint64
	onProgress := func(n int) {
		read.Add(uint64(n))
	}

	outputs := make([]string, 0, len(files))
	for _, path := range files {
		stop := make(chan struct{})
		var wg sync.WaitGroup
		if progress != nil {
			wg.Add(1)
			go func(current string) {
				defer wg.Done()
				ticker := time.NewTicker(progressInterval)
				defer ticker.Stop()
				for {
					select {
					case <-stop:
						return
					case <-ticker.C:
						// Non-blocking: a slow consumer drops ticks, never
						// stalls the stream.
						select {
						case progress <- Progress{ReadBytes: min(read.Load(), total), TotalBytes: total, CurrentFile: current}:
						default:
						}
					}
				}
			}(path)
		}

		out, err := op(path, onProgress)
		close(stop)
		wg.Wait()
		if err != nil {
			return outputs, err
		}
		outputs = append(outputs, out)
	}

	if progress != nil {
		progress <- Progress{ReadBytes: total, TotalBytes: total, CurrentFile: files[len(files)-1]}
	}
	return outputs, nil
}
