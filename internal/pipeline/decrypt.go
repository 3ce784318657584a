package pipeline

import (
	"bufio"
	"bytes"
	"io"
	"os"
	"path/filepath"
	"strings"

	"filippo.io/age"
	"filippo.io/age/armor"

	errs "Chiffrage/internal/errors"
	"Chiffrage/internal/log"
	"Chiffrage/internal/util"
)

// DecryptFile decrypts path with the given identities, writing the input
// path minus its final extension (".out" is appended when that would
// collide with the input). onProgress receives plaintext byte counts,
// debounced; it may be nil.
//
// Armored inputs are read fully into memory before decoding - the armor
// reader needs random access - so they are refused above ArmoredSizeLimit.
// Non-armored inputs stream without buffering.
func DecryptFile(identities []age.Identity, path string, armored bool, onProgress ProgressFunc) (string, error) {
	in, err := os.Open(path)
	if err != nil {
		return "", errs.NewFileError("open", path, err)
	}
	defer in.Close()

	var src io.Reader
	if armored {
		info, err := in.Stat()
		if err != nil {
			return "", errs.NewFileError("stat", path, err)
		}
		if info.Size() > ArmoredSizeLimit {
			return "", errs.ErrArmoredTooLarge
		}
		body, err := io.ReadAll(io.LimitReader(in, ArmoredSizeLimit+1))
		if err != nil {
			return "", errs.NewFileError("read", path, err)
		}
		if int64(len(body)) > ArmoredSizeLimit {
			return "", errs.ErrArmoredTooLarge
		}
		src = armor.NewReader(bytes.NewReader(body))
	} else {
		src = bufio.NewReaderSize(in, int(util.MiB))
	}

	r, err := age.Decrypt(src, identities...)
	if err != nil {
		return "", errs.Wrap(errs.ErrDecryptionFailed, err.Error())
	}

	outPath := decryptedOutputPath(path)
	out, err := os.Create(outPath)
	if err != nil {
		return "", errs.NewFileError("create", outPath, err)
	}
	defer out.Close()

	buffered := bufio.NewWriterSize(out, int(util.MiB))
	if err := copyWithProgress(buffered, r, onProgress); err != nil {
		// A failed MAC mid-stream aborts the file; the partial output
		// stays in place and callers must treat it as invalid.
		return "", errs.Wrap(errs.ErrDecryptionFailed, err.Error())
	}
	if err := buffered.Flush(); err != nil {
		return "", errs.NewFileError("write", outPath, err)
	}
	if err := out.Close(); err != nil {
		return "", errs.NewFileError("write", outPath, err)
	}

	log.Debug("file decrypted",
		log.String("input", path),
		log.String("output", outPath))
	return outPath, nil
}

// decryptedOutputPath strips the final extension (usually ".age"). If the
// input has none, ".out" is appended so the input is never overwritten.
func decryptedOutputPath(path string) string {
	ext := filepath.Ext(path)
	if ext == "" {
		return path + ".out"
	}
	return strings.TrimSuffix(path, ext)
}

// IsArmoredFile sniffs the beginning of a file for the armor header.
func IsArmoredFile(path string) (bool, error) {
	f, err := os.Open(path)
	if err != nil {
		return false, errs.NewFileError("open", path, err)
	}
	defer f.Close()

	prefix := make([]byte, len(armor.Header))
	n, err := io.ReadFull(f, prefix)
	if err != nil && err != io.ErrUnexpectedEOF && err != io.EOF {
		return false, errs.NewFileError("read", path, err)
	}
	return strings.HasPrefix(string(prefix[:n]), armor.Header), nil
}
