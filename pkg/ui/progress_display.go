package ui

import (
	"fmt"
	"strings"
	"sync"
	"time"
)

// ProgressDisplay renders a single updating line for a running batch
type ProgressDisplay struct {
	mu      sync.Mutex
	tracker *StatusTracker
	current string
	verbose bool
}

// NewProgressDisplay creates a display for total albums. In verbose mode
// every album gets its own line instead of overwriting the progress line.
func NewProgressDisplay(total int, verbose bool) *ProgressDisplay {
	return &ProgressDisplay{
		tracker: NewStatusTracker(total),
		verbose: verbose,
	}
}

// Tracker exposes the underlying counters
func (p *ProgressDisplay) Tracker() *StatusTracker {
	return p.tracker
}

// StartAlbum marks the start of an album export
func (p *ProgressDisplay) StartAlbum(identifier string) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.current = identifier
	if !p.verbose {
		p.printProgress()
	}
}

// CompleteAlbum marks an album as exported
func (p *ProgressDisplay) CompleteAlbum(identifier, filename string) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.tracker.Record(true)
	p.current = ""
	if p.verbose {
		printf(false, "%s %s • %s\n", Green("✓"), identifier, Dim(filename))
	} else {
		p.printProgress()
	}
}

// FailAlbum marks an album as failed
func (p *ProgressDisplay) FailAlbum(identifier string, err error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.tracker.Record(false)
	p.current = ""
	if p.verbose {
		printf(false, "%s %s • %v\n", Red("✗"), identifier, err)
	} else {
		p.printProgress()
	}
}

// Waiting shows that the batch is pausing before the next album
func (p *ProgressDisplay) Waiting(d time.Duration, reason string) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.verbose {
		printf(false, "%s %s, waiting %s\n", Yellow("⚠"), reason, formatDuration(d))
	}
}

// Complete prints the closing summary
func (p *ProgressDisplay) Complete(aborted bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	st := p.tracker
	elapsed := st.GetElapsedTime()

	mark, verb := Green("✓"), "Exported"
	if aborted {
		mark, verb = Red("✗"), "Aborted after exporting"
	}
	printf(false, "\n\n%s %s %d of %d albums\n", mark, verb, st.Succeeded, st.Total)
	printf(false, "  %s %s (%.1f albums/min)\n", Dim("•"), formatDuration(elapsed), st.GetRate())
	if st.Failed > 0 {
		printf(false, "  %s %s\n", Dim("•"), Red(fmt.Sprintf("%d albums failed", st.Failed)))
	}
}

// printProgress prints the minimal progress line
func (p *ProgressDisplay) printProgress() {
	st := p.tracker

	eta := "calculating..."
	if d, ok := st.GetETA(); ok {
		eta = formatDuration(d)
	}

	line := fmt.Sprintf("%s %s • %.1f/min • %s",
		Cyan("[EXPORTING]"),
		st.GetProgressBar(),
		st.GetRate(),
		eta,
	)
	if p.current != "" {
		line += fmt.Sprintf(" • %s", p.current)
	}
	if st.Failed > 0 {
		line += fmt.Sprintf(" • %s", Red(fmt.Sprintf("%d failed", st.Failed)))
	}

	printf(false, "\r%s\r%s", strings.Repeat(" ", 100), line)
}

// formatDuration formats a duration in a human-readable way
func formatDuration(d time.Duration) string {
	if d < time.Minute {
		return fmt.Sprintf("%ds", int(d.Seconds()))
	} else if d < time.Hour {
		return fmt.Sprintf("%dm%ds", int(d.Minutes()), int(d.Seconds())%60)
	}
	return fmt.Sprintf("%dh%dm", int(d.Hours()), int(d.Minutes())%60)
}
