// Package pipeline streams files and short texts through age encryption
// with optional ASCII armor and byte-count progress reporting.
//
// Non-armored inputs stream with a pooled 1 MiB buffer. Armored inputs
// must be fully buffered before decoding and are therefore size-capped.
package pipeline

import (
	"Chiffrage/internal/util"
)

// ProgressFunc receives the number of bytes processed since the last call.
// Implementations must be cheap; the pipeline invokes it from the
// streaming loop.
type ProgressFunc func(n int)

const (
	// progressThreshold debounces the callback: processed bytes
	// accumulate and the callback fires once the accumulator crosses
	// this, plus once at end-of-stream.
	progressThreshold = 4 * util.MiB

	// encryptedSuffix is appended to encrypted output files.
	encryptedSuffix = ".age"
)

// ArmoredSizeLimit caps armored inputs: the armor decoder needs the whole
// body in memory, so unbounded inputs would be a trivial memory DoS.
// Variable only so tests can lower it.
var ArmoredSizeLimit = int64(100 * util.MiB)

// debouncedProgress accumulates byte counts and forwards them to the
// callback in progressThreshold batches. flush() delivers the remainder.
type debouncedProgress struct {
	fn  ProgressFunc
	acc int
}

func (d *debouncedProgress) add(n int) {
	if d.fn == nil {
		return
	}
	d.acc += n
	if d.acc >= progressThreshold {
		d.fn(d.acc)
		d.acc = 0
	}
}

func (d *debouncedProgress) flush() {
	if d.fn == nil {
		return
	}
	d.fn(d.acc)
	d.acc = 0
}
