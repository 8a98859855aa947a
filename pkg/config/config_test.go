package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.Equal(t, "Sheet1", cfg.Input.Sheet)
	assert.Equal(t, "Part Number", cfg.Input.IdentifierColumn)
	assert.Equal(t, "Image Folder", cfg.Input.URLColumn)
	assert.Equal(t, "./flickr_downloads", cfg.Output.DownloadDir)
	assert.Equal(t, ".zip", cfg.Output.Extension)

	assert.Equal(t, 30*time.Second, cfg.Timeouts.PageLoad)
	assert.Equal(t, 5*time.Second, cfg.Timeouts.Settle)
	assert.Equal(t, 30*time.Second, cfg.Timeouts.Control)
	assert.Equal(t, 200*time.Second, cfg.Timeouts.ExportReady)
	assert.Equal(t, 200*time.Second, cfg.Timeouts.FileArrival)
	assert.Equal(t, time.Second, cfg.Timeouts.PollInterval)
	assert.Equal(t, 5*time.Second, cfg.Batch.Pause)

	assert.Equal(t, "css", cfg.Selectors.PageLoaded.By)
	assert.Equal(t, "xpath", cfg.Selectors.DownloadZip.By)

	require.NoError(t, cfg.Validate())
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("ALBUMZIP_DOWNLOAD_DIR", "/tmp/albums")
	t.Setenv("ALBUMZIP_SHEET", "Assets")
	t.Setenv("ALBUMZIP_HEADLESS", "true")
	t.Setenv("ALBUMZIP_PAUSE", "2s")
	t.Setenv("ALBUMZIP_ALBUMS_PER_HOUR", "40")
	t.Setenv("ALBUMZIP_NOTIFICATIONS_ENABLED", "TRUE")
	t.Setenv("ALBUMZIP_LOG_LEVEL", "debug")

	cfg := DefaultConfig()
	require.NoError(t, cfg.LoadFromEnv())

	assert.Equal(t, "/tmp/albums", cfg.Output.DownloadDir)
	assert.Equal(t, "Assets", cfg.Input.Sheet)
	assert.True(t, cfg.Browser.Headless)
	assert.Equal(t, 2*time.Second, cfg.Batch.Pause)
	assert.Equal(t, 40, cfg.RateLimit.AlbumsPerHour)
	assert.True(t, cfg.Notifications.Enabled)
	assert.Equal(t, "debug", cfg.Logging.Level)
}

func TestLoadFromEnvInvalidValues(t *testing.T) {
	t.Setenv("ALBUMZIP_HEADLESS", "sometimes")
	t.Setenv("ALBUMZIP_PAUSE", "five seconds")

	cfg := DefaultConfig()
	err := cfg.LoadFromEnv()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ALBUMZIP_HEADLESS")
	assert.Contains(t, err.Error(), "ALBUMZIP_PAUSE")
}

func TestLoadFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "albumzip.yaml")

	content := `
input:
  sheet: "Inventory"
  strict: true
output:
  download_dir: "/data/zips"
timeouts:
  page_load: 45s
  export_ready: 5m
selectors:
  download_menu:
    query: "a.download"
    by: css
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	cfg := DefaultConfig()
	require.NoError(t, cfg.LoadFromFile(path))

	assert.Equal(t, "Inventory", cfg.Input.Sheet)
	assert.True(t, cfg.Input.Strict)
	assert.Equal(t, "/data/zips", cfg.Output.DownloadDir)
	assert.Equal(t, 45*time.Second, cfg.Timeouts.PageLoad)
	assert.Equal(t, 5*time.Minute, cfg.Timeouts.ExportReady)
	assert.Equal(t, Selector{Query: "a.download", By: "css"}, cfg.Selectors.DownloadMenu)

	// untouched values keep their defaults
	assert.Equal(t, "Part Number", cfg.Input.IdentifierColumn)
	assert.Equal(t, 30*time.Second, cfg.Timeouts.Control)
}

func TestLoadFromFileErrors(t *testing.T) {
	cfg := DefaultConfig()
	assert.Error(t, cfg.LoadFromFile(filepath.Join(t.TempDir(), "missing.yaml")))

	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("input: [not, a, map"), 0644))
	assert.Error(t, cfg.LoadFromFile(path))
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"empty download dir", func(c *Config) { c.Output.DownloadDir = "" }, "download directory is required"},
		{"bad extension", func(c *Config) { c.Output.Extension = "zip" }, "output extension"},
		{"same columns", func(c *Config) { c.Input.URLColumn = "part number" }, "must differ"},
		{"bad selector kind", func(c *Config) { c.Selectors.CreateZip.By = "regex" }, "selector create_zip"},
		{"empty selector", func(c *Config) { c.Selectors.PageLoaded.Query = "" }, "selector page_loaded: query is required"},
		{"zero poll", func(c *Config) { c.Timeouts.PollInterval = 0 }, "poll interval"},
		{"negative pause", func(c *Config) { c.Batch.Pause = -time.Second }, "batch pause"},
		{"bad log level", func(c *Config) { c.Logging.Level = "loud" }, "invalid log level"},
		{"bad log format", func(c *Config) { c.Logging.Format = "xml" }, "log format"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestMergeCommandLineFlags(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MergeCommandLineFlags(map[string]interface{}{
		"download-dir":    "./out",
		"headless":        true,
		"pause":           10 * time.Second,
		"albums-per-hour": 12,
		"strict":          true,
		"log-level":       "warn",
		"no-color":        true,
	})

	assert.Equal(t, "./out", cfg.Output.DownloadDir)
	assert.True(t, cfg.Browser.Headless)
	assert.Equal(t, 10*time.Second, cfg.Batch.Pause)
	assert.Equal(t, 12, cfg.RateLimit.AlbumsPerHour)
	assert.True(t, cfg.Input.Strict)
	assert.Equal(t, "warn", cfg.Logging.Level)
	assert.True(t, cfg.Logging.NoColor)
}

func TestLoadPrecedence(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("output:\n  download_dir: from-file\nlogging:\n  level: error\n"), 0644))

	t.Setenv("ALBUMZIP_DOWNLOAD_DIR", "from-env")

	cfg, err := Load(path, map[string]interface{}{"log-level": "debug"})
	require.NoError(t, err)

	assert.Equal(t, "from-env", cfg.Output.DownloadDir)
	assert.Equal(t, "debug", cfg.Logging.Level)
}

func TestSaveRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")

	cfg := DefaultConfig()
	cfg.Timeouts.ExportReady = 7 * time.Minute
	require.NoError(t, cfg.Save(path))

	loaded := DefaultConfig()
	require.NoError(t, loaded.LoadFromFile(path))
	assert.Equal(t, 7*time.Minute, loaded.Timeouts.ExportReady)
	assert.Equal(t, cfg.Selectors, loaded.Selectors)
}
