package exporter

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"albumzip/pkg/browser"
	"albumzip/pkg/config"
	errs "albumzip/pkg/errors"
	"albumzip/pkg/inventory"
	"albumzip/pkg/logger"
	"albumzip/pkg/storage"
	"albumzip/pkg/watcher"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const albumURL = "https://www.flickr.com/photos/oracle/albums/1"

type harness struct {
	driver    *Driver
	session   *browser.FakeSession
	dir       string
	log       *logger.TestLogger
	selectors Selectors
	// zip written into dir when "Download zip file" is clicked; empty writes nothing
	zipName string
}

func newHarness(t *testing.T) *harness {
	t.Helper()

	selectors, err := SelectorsFromConfig(config.DefaultConfig().Selectors)
	require.NoError(t, err)

	store, err := storage.NewManager(t.TempDir())
	require.NoError(t, err)

	h := &harness{
		session:   browser.NewFakeSession(),
		dir:       store.GetOutputDir(),
		log:       logger.NewTestLogger(),
		selectors: selectors,
		zipName:   "Album.zip",
	}

	timeouts := config.TimeoutConfig{
		PageLoad:     time.Second,
		Control:      time.Second,
		ExportReady:  time.Second,
		FileArrival:  200 * time.Millisecond,
		PollInterval: 10 * time.Millisecond,
	}
	w := watcher.New(h.dir, ".zip", timeouts.PollInterval, h.log)
	h.driver = New(h.session, w, store, selectors, timeouts, h.log)

	h.session.OnClick = func(s *browser.FakeSession, sel browser.Selector) error {
		switch sel {
		case h.selectors.CreateZip:
			s.SetControl(h.selectors.DownloadZip, browser.Clickable)
		case h.selectors.DownloadZip:
			if h.zipName != "" {
				return os.WriteFile(filepath.Join(h.dir, h.zipName), []byte("zip"), 0644)
			}
		}
		return nil
	}
	return h
}

// album registers a fully working album page
func (h *harness) album(url string) *browser.FakePage {
	return h.session.AddPage(url, map[browser.Selector]browser.Condition{
		h.selectors.PageLoaded:   browser.Present,
		h.selectors.DownloadMenu: browser.Clickable,
		h.selectors.CreateZip:    browser.Clickable,
	})
}

func item(id string) inventory.WorkItem {
	return inventory.WorkItem{Identifier: id, AlbumURL: albumURL, Row: 2}
}

func TestExportSuccess(t *testing.T) {
	h := newHarness(t)
	h.album(albumURL)

	out := h.driver.Export(context.Background(), item("ORL-1"))

	require.NoError(t, out.Err)
	assert.True(t, out.Succeeded)
	assert.Equal(t, "ORL-1_Album.zip", out.Filename)
	assert.Equal(t, "ORL-1", out.Identifier)
	assert.Equal(t, albumURL, out.AlbumURL)
	assert.Greater(t, out.Duration, time.Duration(0))
	assert.FileExists(t, filepath.Join(h.dir, "ORL-1_Album.zip"))
	assert.NoFileExists(t, filepath.Join(h.dir, "Album.zip"))

	assert.Equal(t, []browser.Selector{
		h.selectors.DownloadMenu,
		h.selectors.CreateZip,
		h.selectors.DownloadZip,
	}, h.session.Clicks())
	assert.Equal(t, []string{albumURL}, h.session.Navigated())
}

func TestExportIgnoresFilesAlreadyPresent(t *testing.T) {
	h := newHarness(t)
	h.album(albumURL)
	require.NoError(t, os.WriteFile(filepath.Join(h.dir, "Older.zip"), []byte("old"), 0644))

	out := h.driver.Export(context.Background(), item("A"))

	require.NoError(t, out.Err)
	assert.Equal(t, "A_Album.zip", out.Filename)
	assert.FileExists(t, filepath.Join(h.dir, "Older.zip"))
}

func TestExportDuplicateIdentifiers(t *testing.T) {
	h := newHarness(t)
	h.album(albumURL)

	first := h.driver.Export(context.Background(), item("A"))
	second := h.driver.Export(context.Background(), item("A"))

	require.NoError(t, first.Err)
	require.NoError(t, second.Err)
	assert.Equal(t, "A_Album.zip", first.Filename)
	assert.Equal(t, "A_Album_1.zip", second.Filename)
}

func TestExportFailures(t *testing.T) {
	tests := []struct {
		name     string
		setup    func(h *harness)
		wantType errs.ErrorType
		wantStep string
	}{
		{
			name:     "page never loads",
			setup:    func(h *harness) {},
			wantType: errs.ErrorTypeNavigationTimeout,
			wantStep: StepNavigate,
		},
		{
			name: "navigation error",
			setup: func(h *harness) {
				h.album(albumURL)
				h.session.NavigateErrors[albumURL] = errors.New("net::ERR_CONNECTION_RESET")
			},
			wantType: errs.ErrorTypeUnexpected,
			wantStep: StepNavigate,
		},
		{
			name: "download control missing",
			setup: func(h *harness) {
				delete(h.album(albumURL).Controls, h.selectors.DownloadMenu)
			},
			wantType: errs.ErrorTypeControlNotFound,
			wantStep: StepDownloadMenu,
		},
		{
			name: "download control disabled",
			setup: func(h *harness) {
				h.album(albumURL).Controls[h.selectors.DownloadMenu] = browser.Present
			},
			wantType: errs.ErrorTypeControlNotClickable,
			wantStep: StepDownloadMenu,
		},
		{
			name: "create zip missing",
			setup: func(h *harness) {
				delete(h.album(albumURL).Controls, h.selectors.CreateZip)
			},
			wantType: errs.ErrorTypeControlNotFound,
			wantStep: StepCreateZip,
		},
		{
			name: "zip never prepared",
			setup: func(h *harness) {
				h.album(albumURL)
				h.session.OnClick = nil
			},
			wantType: errs.ErrorTypeExportTimeout,
			wantStep: StepAwaitZip,
		},
		{
			name: "download never arrives",
			setup: func(h *harness) {
				h.album(albumURL)
				h.zipName = ""
			},
			wantType: errs.ErrorTypeDownloadTimeout,
			wantStep: StepAwaitFile,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t)
			tt.setup(h)

			out := h.driver.Export(context.Background(), item("ORL-1"))

			require.Error(t, out.Err)
			assert.False(t, out.Succeeded)
			assert.Empty(t, out.Filename)
			assert.Equal(t, tt.wantType, errs.TypeOf(out.Err))
			assert.False(t, errs.IsFatal(out.Err))

			var typed *errs.Error
			require.ErrorAs(t, out.Err, &typed)
			assert.Equal(t, tt.wantStep, typed.Step)
			assert.Equal(t, "ORL-1", typed.Identifier)
		})
	}
}

func TestExportDownloadTimeoutIsWarning(t *testing.T) {
	h := newHarness(t)
	h.album(albumURL)
	h.zipName = ""

	out := h.driver.Export(context.Background(), item("ORL-1"))
	require.Error(t, out.Err)

	warnings := h.log.GetMessagesByLevel("WARN")
	require.NotEmpty(t, warnings)
	assert.True(t, h.log.HasMessage("Zip download did not arrive in time"))
	assert.Empty(t, h.log.GetMessagesByLevel("ERROR"))
}

func TestExportRecoversPanic(t *testing.T) {
	h := newHarness(t)
	h.album(albumURL)
	h.session.OnClick = func(*browser.FakeSession, browser.Selector) error {
		panic("stale node")
	}

	out := h.driver.Export(context.Background(), item("ORL-1"))

	require.Error(t, out.Err)
	assert.Equal(t, errs.ErrorTypeUnexpected, errs.TypeOf(out.Err))
	assert.Contains(t, out.Err.Error(), "stale node")
}

func TestExportDeadSessionIsFatal(t *testing.T) {
	h := newHarness(t)
	h.album(albumURL)
	h.session.OnClick = func(s *browser.FakeSession, sel browser.Selector) error {
		s.Kill(errors.New("chrome exited"))
		return errors.New("websocket closed")
	}

	out := h.driver.Export(context.Background(), item("ORL-1"))

	require.Error(t, out.Err)
	assert.Equal(t, errs.ErrorTypeSession, errs.TypeOf(out.Err))
	assert.True(t, errs.IsFatal(out.Err))
	assert.Contains(t, out.Err.Error(), "chrome exited")
}

func TestExportSettleHonorsCancellation(t *testing.T) {
	h := newHarness(t)
	h.album(albumURL)
	h.driver.timeouts.Settle = time.Hour

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	out := h.driver.Export(ctx, item("ORL-1"))

	require.Error(t, out.Err)
	assert.ErrorIs(t, out.Err, context.DeadlineExceeded)
	assert.Less(t, out.Duration, time.Second)
}

func TestSelectorsFromConfig(t *testing.T) {
	cfg := config.DefaultConfig().Selectors
	s, err := SelectorsFromConfig(cfg)
	require.NoError(t, err)
	assert.Equal(t, browser.ByCSS, s.PageLoaded.By)
	assert.Equal(t, browser.ByXPath, s.DownloadZip.By)

	cfg.CreateZip.By = "regex"
	cfg.DownloadZip.Query = ""
	_, err = SelectorsFromConfig(cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "selectors.create_zip")
	assert.Contains(t, err.Error(), "selectors.download_zip")
}
