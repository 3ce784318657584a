// Package backup writes Reed-Solomon protected sidecar copies of the
// vault file, so that a bit-rotted backup medium can still yield a
// restorable vault. The restored file carries no trust of its own: the
// vault HMAC re-authenticates it on the next unlock.
//
// Format: magic ‖ version ‖ RS16(length) ‖ RS128 chunks of the raw vault
// bytes, zero-padded to the chunk size. RS128 corrects up to 4 corrupted
// bytes per 136-byte block; the length field carries heavier parity.
package backup

import (
	"bytes"
	"encoding/binary"
	"os"
	"path/filepath"

	"github.com/Picocrypt/infectious"

	errs "Chiffrage/internal/errors"
	"Chiffrage/internal/log"
)

const (
	// Header magic and format version.
	magic   = "CHFB"
	version = 0x01

	// Length field geometry (16 data -> 48 encoded).
	lengthDataSize    = 16
	lengthEncodedSize = 48

	// Payload chunk geometry (128 data -> 136 encoded, 6% overhead).
	chunkDataSize    = 128
	chunkEncodedSize = 136
)

// codecs holds the pre-initialized FEC instances.
type codecs struct {
	rs16  *infectious.FEC
	rs128 *infectious.FEC
}

func newCodecs() (*codecs, error) {
	rs16, err := infectious.NewFEC(lengthDataSize, lengthEncodedSize)
	if err != nil {
		return nil, err
	}
	rs128, err := infectious.NewFEC(chunkDataSize, chunkEncodedSize)
	if err != nil {
		return nil, err
	}
	return &codecs{rs16: rs16, rs128: rs128}, nil
}

// rsEncode applies Reed-Solomon encoding; data length must match the
// codec's Required() size.
func rsEncode(rs *infectious.FEC, data []byte) []byte {
	res := make([]byte, rs.Total())
	if err := rs.Encode(data, func(s infectious.Share) {
		res[s.Number] = s.Data[0]
	}); err != nil {
		// Cannot happen with correct input size
		panic("rs.Encode failed: " + err.Error())
	}
	return res
}

// rsDecode repairs and decodes an encoded block.
func rsDecode(rs *infectious.FEC, data []byte) ([]byte, error) {
	shares := make([]infectious.Share, rs.Total())
	for i := range rs.Total() {
		shares[i].Number = i
		shares[i].Data = append(shares[i].Data, data[i])
	}
	return rs.Decode(nil, shares)
}

// Write encodes the vault file at vaultPath into a parity-protected
// backup at backupPath.
func Write(vaultPath, backupPath string) error {
	data, err := os.ReadFile(vaultPath)
	if err != nil {
		return errs.NewFileError("read", vaultPath, err)
	}

	c, err := newCodecs()
	if err != nil {
		return err
	}

	out := make([]byte, 0, len(magic)+1+lengthEncodedSize+(len(data)/chunkDataSize+1)*chunkEncodedSize)
	out = append(out, magic...)
	out = append(out, version)

	length := make([]byte, lengthDataSize)
	binary.BigEndian.PutUint64(length, uint64(len(data)))
	out = append(out, rsEncode(c.rs16, length)...)

	for off := 0; off < len(data); off += chunkDataSize {
		chunk := make([]byte, chunkDataSize)
		copy(chunk, data[off:min(off+chunkDataSize, len(data))])
		out = append(out, rsEncode(c.rs128, chunk)...)
	}

	if err := os.WriteFile(backupPath, out, 0o600); err != nil {
		return errs.NewFileError("write", backupPath, err)
	}

	log.Info("vault backup written",
		log.String("path", backupPath),
		log.Int("bytes", len(out)))
	return nil
}

// Restore decodes a backup at backupPath, correcting what it can, and
// atomically rewrites the vault file at vaultPath. Damage beyond the
// parity budget returns ErrBackupCorrupt and leaves the vault untouched.
func Restore(backupPath, vaultPath string) error {
	data, err := os.ReadFile(backupPath)
	if err != nil {
		return errs.NewFileError("read", backupPath, err)
	}

	headerSize := len(magic) + 1 + lengthEncodedSize
	if len(data) < headerSize {
		return errs.ErrBackupCorrupt
	}
	if string(data[:len(magic)]) != magic || data[len(magic)] != version {
		return errs.NewValidationError("backup", "not a chiffrage vault backup")
	}

	c, err := newCodecs()
	if err != nil {
		return err
	}

	lengthField, err := rsDecode(c.rs16, data[len(magic)+1:headerSize])
	if err != nil {
		return errs.ErrBackupCorrupt
	}
	vaultLen := binary.BigEndian.Uint64(lengthField)

	body := data[headerSize:]
	if len(body)%chunkEncodedSize != 0 {
		return errs.ErrBackupCorrupt
	}
	chunks := len(body) / chunkEncodedSize
	if vaultLen > uint64(chunks*chunkDataSize) {
		return errs.ErrBackupCorrupt
	}

	restored := make([]byte, 0, chunks*chunkDataSize)
	var corrected bool
	for i := 0; i < chunks; i++ {
		block := body[i*chunkEncodedSize : (i+1)*chunkEncodedSize]
		decoded, err := rsDecode(c.rs128, block)
		if err != nil {
			return errs.ErrBackupCorrupt
		}
		if !bytes.Equal(decoded, block[:chunkDataSize]) {
			corrected = true
		}
		restored = append(restored, decoded...)
	}
	restored = restored[:vaultLen]

	if corrected {
		log.Warn("backup contained correctable damage", log.String("path", backupPath))
	}

	dir := filepath.Dir(vaultPath)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return errs.NewFileError("create", dir, err)
	}
	tmp, err := os.CreateTemp(dir, ".restore-*")
	if err != nil {
		return errs.NewFileError("create", dir, err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(restored); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return errs.NewFileError("write", tmpName, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return errs.NewFileError("write", tmpName, err)
	}
	if err := os.Rename(tmpName, vaultPath); err != nil {
		os.Remove(tmpName)
		return errs.NewFileError("rename", vaultPath, err)
	}

	log.Info("vault restored from backup",
		log.String("backup", backupPath),
		log.String("vault", vaultPath))
	return nil
}

