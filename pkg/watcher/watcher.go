// Package watcher detects files arriving in the browser's download directory.
//
// It polls instead of subscribing to filesystem events: Chrome writes a
// temporary .crdownload file and renames it once complete, so only the final
// name ever matches the extension filter.
package watcher

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"albumzip/pkg/logger"
)

// ErrNoNewFile is returned by Await when the budget elapses without an arrival
var ErrNoNewFile = errors.New("no new file appeared in download directory")

// Snapshot is the set of matching filenames present at one point in time
type Snapshot map[string]struct{}

// Contains reports whether name was present when the snapshot was taken
func (s Snapshot) Contains(name string) bool {
	_, ok := s[name]
	return ok
}

// Watcher polls a directory for files with a given extension
type Watcher struct {
	dir      string
	ext      string
	interval time.Duration
	logger   logger.Logger
}

// New creates a watcher for dir. ext is matched case-insensitively ("" matches everything).
func New(dir, ext string, interval time.Duration, log logger.Logger) *Watcher {
	if interval <= 0 {
		interval = time.Second
	}
	if log == nil {
		log = logger.GetLogger()
	}
	return &Watcher{
		dir:      dir,
		ext:      strings.ToLower(ext),
		interval: interval,
		logger:   log,
	}
}

// Dir returns the watched directory
func (w *Watcher) Dir() string {
	return w.dir
}

// Snapshot lists the matching files currently in the directory
func (w *Watcher) Snapshot() (Snapshot, error) {
	files, err := w.list()
	if err != nil {
		return nil, err
	}
	snap := make(Snapshot, len(files))
	for name := range files {
		snap[name] = struct{}{}
	}
	return snap, nil
}

// Await blocks until a matching file not in baseline shows up, the budget
// elapses (ErrNoNewFile) or ctx is done. When several new files appear in the
// same poll the most recently modified one wins, ties going to the smallest name.
func (w *Watcher) Await(ctx context.Context, baseline Snapshot, budget time.Duration) (string, error) {
	deadline := time.NewTimer(budget)
	defer deadline.Stop()
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	w.logger.DebugWithFields("Waiting for download", map[string]interface{}{
		"dir":      w.dir,
		"budget":   budget,
		"baseline": len(baseline),
	})

	for {
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-deadline.C:
			// one last look so an arrival right at the deadline is not lost
			if name, err := w.poll(baseline); err != nil || name != "" {
				return name, err
			}
			return "", ErrNoNewFile
		case <-ticker.C:
			name, err := w.poll(baseline)
			if err != nil {
				return "", err
			}
			if name != "" {
				return name, nil
			}
		}
	}
}

func (w *Watcher) poll(baseline Snapshot) (string, error) {
	current, err := w.list()
	if err != nil {
		return "", err
	}

	var fresh []candidate
	for name, modTime := range current {
		if !baseline.Contains(name) {
			fresh = append(fresh, candidate{name: name, modTime: modTime})
		}
	}
	if len(fresh) == 0 {
		return "", nil
	}

	if len(fresh) > 1 {
		w.logger.WarnWithFields("Several new files arrived at once", map[string]interface{}{
			"count": len(fresh),
		})
	}
	return pick(fresh), nil
}

type candidate struct {
	name    string
	modTime time.Time
}

// pick applies the tie-break: newest modification time, then smallest name
func pick(fresh []candidate) string {
	sort.Slice(fresh, func(i, j int) bool {
		if !fresh[i].modTime.Equal(fresh[j].modTime) {
			return fresh[i].modTime.After(fresh[j].modTime)
		}
		return fresh[i].name < fresh[j].name
	})
	return fresh[0].name
}

// list returns matching regular files and their modification times
func (w *Watcher) list() (map[string]time.Time, error) {
	entries, err := os.ReadDir(w.dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read download directory: %w", err)
	}

	files := make(map[string]time.Time, len(entries))
	for _, entry := range entries {
		if entry.IsDir() || !w.matches(entry.Name()) {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			// renamed or removed between ReadDir and Info
			continue
		}
		files[entry.Name()] = info.ModTime()
	}
	return files, nil
}

func (w *Watcher) matches(name string) bool {
	if w.ext == "" {
		return true
	}
	return strings.ToLower(filepath.Ext(name)) == w.ext
}
