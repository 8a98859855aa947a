package storage

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewManagerCreatesDirectory(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "flickr_downloads")

	m, err := NewManager(dir)
	require.NoError(t, err)

	info, err := os.Stat(dir)
	require.NoError(t, err)
	assert.True(t, info.IsDir())
	assert.True(t, filepath.IsAbs(m.GetOutputDir()))
}

func TestClaimRenamesWithIdentifier(t *testing.T) {
	dir := t.TempDir()
	m, err := NewManager(dir)
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "export.zip"), []byte("album"), 0644))

	name, err := m.Claim("export.zip", "ORL-5845")
	require.NoError(t, err)
	assert.Equal(t, "ORL-5845_export.zip", name)

	content, err := os.ReadFile(filepath.Join(dir, name))
	require.NoError(t, err)
	assert.Equal(t, "album", string(content))

	_, err = os.Stat(filepath.Join(dir, "export.zip"))
	assert.True(t, os.IsNotExist(err))
}

func TestClaimNeverOverwrites(t *testing.T) {
	dir := t.TempDir()
	m, err := NewManager(dir)
	require.NoError(t, err)

	existing := map[string]string{
		"A_export.zip":   "first",
		"A_export_1.zip": "second",
	}
	for name, content := range existing {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0644))
	}
	require.NoError(t, os.WriteFile(filepath.Join(dir, "export.zip"), []byte("third"), 0644))

	name, err := m.Claim("export.zip", "A")
	require.NoError(t, err)
	assert.Equal(t, "A_export_2.zip", name)

	for name, content := range existing {
		got, err := os.ReadFile(filepath.Join(dir, name))
		require.NoError(t, err)
		assert.Equal(t, content, string(got), "existing file %s was modified", name)
	}
}

func TestClaimDuplicateIdentifiers(t *testing.T) {
	dir := t.TempDir()
	m, err := NewManager(dir)
	require.NoError(t, err)

	var names []string
	for i := 0; i < 2; i++ {
		require.NoError(t, os.WriteFile(filepath.Join(dir, "export.zip"), []byte("zip"), 0644))
		name, err := m.Claim("export.zip", "A")
		require.NoError(t, err)
		names = append(names, name)
	}

	assert.Equal(t, []string{"A_export.zip", "A_export_1.zip"}, names)
}

func TestClaimMissingSource(t *testing.T) {
	m, err := NewManager(t.TempDir())
	require.NoError(t, err)

	_, err = m.Claim("nothing.zip", "A")
	assert.Error(t, err)
}

func TestCandidateName(t *testing.T) {
	assert.Equal(t, "P1_album.zip", CandidateName("P1", "album.zip", 0))
	assert.Equal(t, "P1_album_3.zip", CandidateName("P1", "album.zip", 3))
	assert.Equal(t, "P1_archive.tar_1.gz", CandidateName("P1", "archive.tar.gz", 1))
	assert.Equal(t, "P1_noext_2", CandidateName("P1", "noext", 2))
}

func TestSafeIdentifier(t *testing.T) {
	assert.Equal(t, "ORL-5845", SafeIdentifier("ORL-5845"))
	assert.Equal(t, "A-B-C", SafeIdentifier(" A/B\\C "))
	assert.Equal(t, "x-y", SafeIdentifier("x:y"))
}
