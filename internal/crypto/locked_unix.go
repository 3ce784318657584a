//go:build unix

package crypto

import (
	"golang.org/x/sys/unix"

	"Chiffrage/internal/log"
)

// lockMemory pins b against paging. Returns whether the lock is held.
// RLIMIT_MEMLOCK exhaustion is common in containers; the caller treats an
// unlocked buffer as degraded, not fatal.
func lockMemory(b []byte) bool {
	if err := unix.Mlock(b); err != nil {
		log.Debug("mlock unavailable, key memory may page", log.Err(err))
		return false
	}
	return true
}

// unlockMemory releases the pin taken by lockMemory.
// The buffer must already be zeroed.
func unlockMemory(b []byte) {
	_ = unix.Munlock(b)
}
