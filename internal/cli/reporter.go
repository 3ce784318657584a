package cli

import (
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"Chiffrage/internal/app"
	"Chiffrage/internal/util"
)

// Reporter renders a progress channel on a single terminal line that gets
// overwritten.
type Reporter struct {
	quiet    bool
	start    time.Time
	lastLine int // Length of last printed line (for clearing)
	wg       sync.WaitGroup
}

// NewReporter creates a new CLI progress reporter.
// If quiet is true, nothing is printed.
func NewReporter(quiet bool) *Reporter {
	return &Reporter{quiet: quiet, start: time.Now()}
}

// Watch consumes progress updates until the channel is closed.
func (r *Reporter) Watch(progress <-chan app.Progress) {
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		for p := range progress {
			r.render(p)
		}
	}()
}

// render draws one progress line.
func (r *Reporter) render(p app.Progress) {
	if r.quiet {
		return
	}

	fraction, speed, eta := util.Statify(int64(p.ReadBytes), int64(p.TotalBytes), r.start)

	barWidth := 30
	filled := min(int(fraction*float32(barWidth)), barWidth)
	bar := strings.Repeat("█", filled) + strings.Repeat("░", barWidth-filled)

	line := fmt.Sprintf("\r[%s] %5.1f%% | %s of %s | %.2f MiB/s (ETA %s) | %s",
		bar, fraction*100,
		util.Sizeify(int64(p.ReadBytes)), util.Sizeify(int64(p.TotalBytes)),
		speed, eta, p.CurrentFile)

	// Clear previous line if it was longer
	if len(line) < r.lastLine {
		line += strings.Repeat(" ", r.lastLine-len(line))
	}
	r.lastLine = len(line)

	fmt.Fprint(os.Stderr, line)
}

// Finish waits for the watcher and moves past the progress line.
func (r *Reporter) Finish() {
	r.wg.Wait()
	if !r.quiet && r.lastLine > 0 {
		fmt.Fprintln(os.Stderr)
	}
}

// PrintError prints an error message.
func (r *Reporter) PrintError(format string, args ...any) {
	if r.lastLine > 0 {
		fmt.Fprintln(os.Stderr)
		r.lastLine = 0
	}
	fmt.Fprintf(os.Stderr, "Error: "+format+"\n", args...)
}

// PrintSuccess prints a success message.
func (r *Reporter) PrintSuccess(format string, args ...any) {
	if r.quiet {
		return
	}
	fmt.Fprintf(os.Stderr, format+"\n", args...)
}
