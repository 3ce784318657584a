//go:build !unix

package crypto

// Memory locking is not implemented on this platform; buffers are still
// zeroed on Close.

func lockMemory(b []byte) bool { return false }

func unlockMemory(b []byte) {}
