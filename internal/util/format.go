package util

import (
	"fmt"
	"math"
	"time"
)

// Statify converts done bytes, total bytes, and starting time to progress,
// speed (MiB/s), and ETA string.
func Statify(done int64, total int64, start time.Time) (float32, float64, string) {
	if total <= 0 {
		return 0, 0, Timeify(0)
	}

	progress := float64(done) / float64(total)
	elapsed := time.Since(start).Seconds()

	var speed float64
	if elapsed > 0 {
		speed = float64(done) / elapsed / MiB
	}

	var eta int
	if speed > 0 {
		eta = int(math.Floor(float64(total-done) / (speed * MiB)))
	}

	return float32(math.Min(progress, 1)), speed, Timeify(eta)
}

// Timeify converts seconds to "HH:MM:SS" format.
func Timeify(seconds int) string {
	if seconds < 0 {
		seconds = 0
	}
	hours := seconds / 3600
	minutes := (seconds % 3600) / 60
	secs := seconds % 60
	return fmt.Sprintf("%02d:%02d:%02d", hours, minutes, secs)
}

// Sizeify converts bytes to a human-readable string (KiB, MiB, GiB, TiB).
func Sizeify(size int64) string {
	switch {
	case size >= TiB:
		return fmt.Sprintf("%.2f TiB", float64(size)/TiB)
	case size >= GiB:
		return fmt.Sprintf("%.2f GiB", float64(size)/GiB)
	case size >= MiB:
		return fmt.Sprintf("%.2f MiB", float64(size)/MiB)
	default:
		return fmt.Sprintf("%.2f KiB", float64(size)/KiB)
	}
}
