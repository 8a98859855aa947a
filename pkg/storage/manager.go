package storage

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// maxSuffix bounds the disambiguation search so a pathological directory
// cannot spin forever
const maxSuffix = 10000

// Manager owns the download directory and the naming of finished exports
type Manager struct {
	outputDir string
}

// NewManager creates the output directory if needed and returns a manager for it
func NewManager(outputDir string) (*Manager, error) {
	abs, err := filepath.Abs(outputDir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve output directory: %w", err)
	}
	if err := os.MkdirAll(abs, 0755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}
	return &Manager{outputDir: abs}, nil
}

// GetOutputDir returns the absolute output directory path
func (m *Manager) GetOutputDir() string {
	return m.outputDir
}

// Claim renames the freshly downloaded file original to
// "{identifier}_{original}", or "{identifier}_{base}_{n}{ext}" when that
// name is taken. It never replaces an existing file and returns the final name.
func (m *Manager) Claim(original, identifier string) (string, error) {
	src := filepath.Join(m.outputDir, original)
	if _, err := os.Stat(src); err != nil {
		return "", fmt.Errorf("downloaded file not found: %w", err)
	}

	prefix := SafeIdentifier(identifier)
	for n := 0; n < maxSuffix; n++ {
		name := CandidateName(prefix, original, n)
		err := renameNoReplace(src, filepath.Join(m.outputDir, name))
		if err == nil {
			return name, nil
		}
		if !errors.Is(err, os.ErrExist) {
			return "", fmt.Errorf("failed to rename %s: %w", original, err)
		}
	}

	return "", fmt.Errorf("no free name for %s after %d attempts", original, maxSuffix)
}

// CandidateName builds the n-th name tried for a download. n == 0 is the
// plain "{identifier}_{original}" form.
func CandidateName(identifier, original string, n int) string {
	if n == 0 {
		return identifier + "_" + original
	}
	ext := filepath.Ext(original)
	base := strings.TrimSuffix(original, ext)
	return fmt.Sprintf("%s_%s_%d%s", identifier, base, n, ext)
}

// SafeIdentifier replaces characters that cannot appear in a filename
func SafeIdentifier(identifier string) string {
	return strings.Map(func(r rune) rune {
		switch r {
		case '/', '\\', ':', '*', '?', '"', '<', '>', '|':
			return '-'
		}
		if r < 0x20 {
			return '-'
		}
		return r
	}, strings.TrimSpace(identifier))
}

// renameNoReplace moves src to dst and fails with os.ErrExist if dst is
// already there. Hard links give an atomic check; filesystems without link
// support fall back to a stat check followed by rename.
func renameNoReplace(src, dst string) error {
	if err := os.Link(src, dst); err == nil {
		return os.Remove(src)
	} else if errors.Is(err, os.ErrExist) {
		return err
	}

	if _, err := os.Lstat(dst); err == nil {
		return os.ErrExist
	} else if !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return os.Rename(src, dst)
}
