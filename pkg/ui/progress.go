package ui

import (
	"fmt"
	"strings"
	"time"
)

const (
	ProgressBar   = "█"
	ProgressEmpty = "░"
)

// StatusTracker counts album outcomes of one batch
type StatusTracker struct {
	Total     int
	Succeeded int
	Failed    int
	StartTime time.Time
}

// NewStatusTracker creates a new status tracker for total albums
func NewStatusTracker(total int) *StatusTracker {
	return &StatusTracker{
		Total:     total,
		StartTime: time.Now(),
	}
}

// Record counts one finished album
func (st *StatusTracker) Record(succeeded bool) {
	if succeeded {
		st.Succeeded++
	} else {
		st.Failed++
	}
}

// Done returns how many albums have finished either way
func (st *StatusTracker) Done() int {
	return st.Succeeded + st.Failed
}

// GetProgressBar returns a formatted progress bar
func (st *StatusTracker) GetProgressBar() string {
	const width = 20
	filled := 0
	if st.Total > 0 {
		filled = int(float64(st.Done()) / float64(st.Total) * width)
	}
	if filled > width {
		filled = width
	}

	bar := strings.Repeat(ProgressBar, filled) +
		strings.Repeat(ProgressEmpty, width-filled)

	return fmt.Sprintf("[%s] %d/%d", bar, st.Done(), st.Total)
}

// GetElapsedTime returns the elapsed time since tracking started
func (st *StatusTracker) GetElapsedTime() time.Duration {
	return time.Since(st.StartTime)
}

// GetRate returns the average number of albums finished per minute
func (st *StatusTracker) GetRate() float64 {
	elapsed := st.GetElapsedTime().Minutes()
	if elapsed == 0 {
		return 0
	}
	return float64(st.Done()) / elapsed
}

// GetETA estimates the time left for the remaining albums
func (st *StatusTracker) GetETA() (time.Duration, bool) {
	done := st.Done()
	if done == 0 || done >= st.Total {
		return 0, done >= st.Total && st.Total > 0
	}
	perAlbum := st.GetElapsedTime() / time.Duration(done)
	return perAlbum * time.Duration(st.Total-done), true
}
