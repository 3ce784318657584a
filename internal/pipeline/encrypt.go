package pipeline

import (
	"bufio"
	"io"
	"os"

	"filippo.io/age"
	"filippo.io/age/armor"

	errs "Chiffrage/internal/errors"
	"Chiffrage/internal/log"
	"Chiffrage/internal/util"
)

// EncryptFile encrypts path to the given recipients, writing path + ".age".
// With armored set, the output is ASCII armored. onProgress receives the
// plaintext byte counts as they are consumed; it may be nil.
//
// On error a partial output file may remain; callers must treat it as
// invalid.
func EncryptFile(recipients []age.Recipient, path string, armored bool, onProgress ProgressFunc) (string, error) {
	in, err := os.Open(path)
	if err != nil {
		return "", errs.NewFileError("open", path, err)
	}
	defer in.Close()

	outPath := path + encryptedSuffix
	out, err := os.Create(outPath)
	if err != nil {
		return "", errs.NewFileError("create", outPath, err)
	}
	defer out.Close()

	buffered := bufio.NewWriterSize(out, int(util.MiB))
	var sink io.Writer = buffered
	var armorWriter io.WriteCloser
	if armored {
		armorWriter = armor.NewWriter(buffered)
		sink = armorWriter
	}

	w, err := age.Encrypt(sink, recipients...)
	if err != nil {
		return "", errs.NewCryptoError("encrypt", err)
	}

	if err := copyWithProgress(w, in, onProgress); err != nil {
		return "", err
	}

	if err := w.Close(); err != nil {
		return "", errs.NewCryptoError("encrypt", err)
	}
	if armorWriter != nil {
		if err := armorWriter.Close(); err != nil {
			return "", errs.NewFileError("write", outPath, err)
		}
	}
	if err := buffered.Flush(); err != nil {
		return "", errs.NewFileError("write", outPath, err)
	}
	if err := out.Close(); err != nil {
		return "", errs.NewFileError("write", outPath, err)
	}

	log.Debug("file encrypted",
		log.String("input", path),
		log.String("output", outPath),
		log.Int("recipients", len(recipients)))
	return outPath, nil
}

// copyWithProgress streams src into dst with a pooled buffer, reporting
// consumed bytes through a debounced callback.
func copyWithProgress(dst io.Writer, src io.Reader, onProgress ProgressFunc) error {
	buf := util.MiBPool.Get()
	defer util.MiBPool.Put(buf)

	progress := &debouncedProgress{fn: onProgress}
	for {
		n, readErr := src.Read(buf)
		if n > 0 {
			if _, err := dst.Write(buf[:n]); err != nil {
				return errs.NewCryptoError("stream", err)
			}
			progress.add(n)
		}
		if readErr == io.EOF {
			break
		}
		if readErr != nil {
			return errs.NewFileError("read", "", readErr)
		}
	}
	progress.flush()
	return nil
}
