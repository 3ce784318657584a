package crypto

import (
	"errors"
)

// LockedBuffer holds sensitive key material in memory that is pinned
// against paging where the OS permits, and zeroed when closed.
//
// Locking is best effort: on systems where mlock is unavailable or the
// memlock limit is exhausted, the buffer still works but may be paged.
// Zero-on-close always happens.
type LockedBuffer struct {
	data   []byte
	locked bool
	closed bool
}

// NewLockedBuffer copies data into a new locked buffer and securely zeros
// the source slice. The caller must Close() the returned buffer.
func NewLockedBuffer(data []byte) (*LockedBuffer, error) {
	if len(data) == 0 {
		return nil, errors.New("locked buffer must not be empty")
	}

	b := &LockedBuffer{data: make([]byte, len(data))}
	copy(b.data, data)
	SecureZero(data)

	b.locked = lockMemory(b.data)
	return b, nil
}

// Bytes returns the underlying key material.
// Returns nil if the buffer has been closed.
func (b *LockedBuffer) Bytes() []byte {
	if b == nil || b.closed {
		return nil
	}
	return b.data
}

// Len returns the length of the held material, 0 after Close.
func (b *LockedBuffer) Len() int {
	if b == nil || b.closed {
		return 0
	}
	return len(b.data)
}

// Close zeros the buffer and releases the memory lock.
// This method is idempotent - multiple calls are safe.
func (b *LockedBuffer) Close() {
	if b == nil || b.closed {
		return
	}
	SecureZero(b.data)
	if b.locked {
		unlockMemory(b.data)
		b.locked = false
	}
	b.data = nil
	b.closed = true
}

// IsClosed returns whether the buffer has been closed.
func (b *LockedBuffer) IsClosed() bool {
	return b == nil || b.closed
}
