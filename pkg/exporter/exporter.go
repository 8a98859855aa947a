// Package exporter drives a single album through the zip export workflow.
package exporter

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"albumzip/pkg/browser"
	"albumzip/pkg/config"
	errs "albumzip/pkg/errors"
	"albumzip/pkg/inventory"
	"albumzip/pkg/logger"
	"albumzip/pkg/storage"
	"albumzip/pkg/watcher"
)

// Workflow steps, used in errors and log fields
const (
	StepNavigate     = "navigate"
	StepSettle       = "settle"
	StepDownloadMenu = "download_menu"
	StepCreateZip    = "create_zip"
	StepAwaitZip     = "await_zip"
	StepAwaitFile    = "await_file"
	StepRename       = "rename"
)

// Outcome is the result of exporting one album. Filename is only set on success.
type Outcome struct {
	Identifier string
	AlbumURL   string
	Succeeded  bool
	Filename   string
	Err        error
	Duration   time.Duration
}

// Selectors are the page elements the workflow interacts with
type Selectors struct {
	PageLoaded   browser.Selector
	DownloadMenu browser.Selector
	CreateZip    browser.Selector
	DownloadZip  browser.Selector
}

// SelectorsFromConfig converts and validates configured selectors
func SelectorsFromConfig(cfg config.SelectorConfig) (Selectors, error) {
	s := Selectors{
		PageLoaded:   convertSelector(cfg.PageLoaded),
		DownloadMenu: convertSelector(cfg.DownloadMenu),
		CreateZip:    convertSelector(cfg.CreateZip),
		DownloadZip:  convertSelector(cfg.DownloadZip),
	}

	var errList []error
	for name, sel := range map[string]browser.Selector{
		"page_loaded":   s.PageLoaded,
		"download_menu": s.DownloadMenu,
		"create_zip":    s.CreateZip,
		"download_zip":  s.DownloadZip,
	} {
		if err := sel.Validate(); err != nil {
			errList = append(errList, fmt.Errorf("selectors.%s: %w", name, err))
		}
	}
	return s, errors.Join(errList...)
}

func convertSelector(sel config.Selector) browser.Selector {
	return browser.Selector{
		Query: strings.TrimSpace(sel.Query),
		By:    browser.By(strings.ToLower(strings.TrimSpace(sel.By))),
	}
}

// Driver exports one album at a time through a shared browser session
type Driver struct {
	session   browser.Session
	watcher   *watcher.Watcher
	storage   *storage.Manager
	selectors Selectors
	timeouts  config.TimeoutConfig
	logger    logger.Logger
}

// New creates a driver. The watcher must observe the storage manager's directory.
func New(session browser.Session, w *watcher.Watcher, store *storage.Manager, selectors Selectors, timeouts config.TimeoutConfig, log logger.Logger) *Driver {
	if log == nil {
		log = logger.GetLogger()
	}
	return &Driver{
		session:   session,
		watcher:   w,
		storage:   store,
		selectors: selectors,
		timeouts:  timeouts,
		logger:    log.WithField("component", "exporter"),
	}
}

// Export runs the whole workflow for item. It never panics and never returns
// without an Outcome; failures are reported through Outcome.Err.
func (d *Driver) Export(ctx context.Context, item inventory.WorkItem) (out Outcome) {
	start := time.Now()
	log := d.logger.WithFields(map[string]interface{}{
		"part_number": item.Identifier,
		"url":         item.AlbumURL,
		"row":         item.Row,
	})
	out = Outcome{Identifier: item.Identifier, AlbumURL: item.AlbumURL}

	defer func() {
		if r := recover(); r != nil {
			out.Succeeded = false
			out.Filename = ""
			out.Err = d.classify(log, item, errs.New(errs.ErrorTypeUnexpected, "", fmt.Sprintf("panic: %v", r), nil))
		}
		out.Duration = time.Since(start)
	}()

	log.Info("Exporting album")

	filename, err := d.run(ctx, item, log)
	if err != nil {
		out.Err = d.classify(log, item, err)
		return out
	}

	out.Succeeded = true
	out.Filename = filename
	return out
}

func (d *Driver) run(ctx context.Context, item inventory.WorkItem, log logger.Logger) (string, error) {
	if err := d.navigate(ctx, item.AlbumURL, log); err != nil {
		return "", err
	}

	if d.timeouts.Settle > 0 {
		log.WithField("step", StepSettle).Debug("Letting the page settle")
		if err := sleep(ctx, d.timeouts.Settle); err != nil {
			return "", errs.New(errs.ErrorTypeUnexpected, StepSettle, "cancelled", err)
		}
	}

	if err := d.clickControl(ctx, StepDownloadMenu, d.selectors.DownloadMenu, log); err != nil {
		return "", err
	}
	if err := d.clickControl(ctx, StepCreateZip, d.selectors.CreateZip, log); err != nil {
		return "", err
	}

	baseline, err := d.watcher.Snapshot()
	if err != nil {
		return "", errs.New(errs.ErrorTypeUnexpected, StepAwaitZip, "failed to list download directory", err)
	}

	if err := d.awaitZip(ctx, log); err != nil {
		return "", err
	}

	log.WithField("step", StepAwaitFile).Debug("Waiting for zip download")
	original, err := d.watcher.Await(ctx, baseline, d.timeouts.FileArrival)
	if err != nil {
		if errors.Is(err, watcher.ErrNoNewFile) {
			return "", errs.New(errs.ErrorTypeDownloadTimeout, StepAwaitFile,
				fmt.Sprintf("no new file after %s", d.timeouts.FileArrival), err)
		}
		return "", errs.New(errs.ErrorTypeUnexpected, StepAwaitFile, "failed to watch download directory", err)
	}

	final, err := d.storage.Claim(original, item.Identifier)
	if err != nil {
		return "", errs.New(errs.ErrorTypeUnexpected, StepRename, "failed to rename download", err)
	}

	log.WithFields(map[string]interface{}{
		"original": original,
		"file":     final,
	}).Debug("Download renamed")
	return final, nil
}

func (d *Driver) navigate(ctx context.Context, url string, log logger.Logger) error {
	log.WithField("step", StepNavigate).Debug("Opening album page")

	navCtx, cancel := context.WithTimeout(ctx, d.timeouts.PageLoad)
	defer cancel()

	if err := d.session.Navigate(navCtx, url); err != nil {
		if ctx.Err() == nil && navCtx.Err() != nil {
			return errs.New(errs.ErrorTypeNavigationTimeout, StepNavigate,
				fmt.Sprintf("page did not load within %s", d.timeouts.PageLoad), err)
		}
		return errs.New(errs.ErrorTypeUnexpected, StepNavigate, "failed to open album page", err)
	}

	err := d.session.WaitFor(ctx, d.selectors.PageLoaded, browser.Present, d.timeouts.PageLoad)
	if err != nil {
		if errors.Is(err, browser.ErrTimeout) {
			return errs.New(errs.ErrorTypeNavigationTimeout, StepNavigate,
				fmt.Sprintf("no %s within %s", d.selectors.PageLoaded, d.timeouts.PageLoad), err)
		}
		return errs.New(errs.ErrorTypeUnexpected, StepNavigate, "failed waiting for album page", err)
	}
	return nil
}

// clickControl waits for sel to become clickable and clicks it. A timeout is
// reported as not found or not clickable depending on whether sel exists.
func (d *Driver) clickControl(ctx context.Context, step string, sel browser.Selector, log logger.Logger) error {
	log.WithField("step", step).Debug("Waiting for control")

	err := d.session.WaitFor(ctx, sel, browser.Clickable, d.timeouts.Control)
	if err != nil {
		if !errors.Is(err, browser.ErrTimeout) {
			return errs.New(errs.ErrorTypeUnexpected, step, "failed waiting for control", err)
		}
		exists, findErr := d.session.Exists(ctx, sel)
		if findErr == nil && exists {
			return errs.New(errs.ErrorTypeControlNotClickable, step,
				fmt.Sprintf("%s never became clickable", sel), err)
		}
		return errs.New(errs.ErrorTypeControlNotFound, step, fmt.Sprintf("%s not found", sel), err)
	}

	if err := d.session.Click(ctx, sel); err != nil {
		return errs.New(errs.ErrorTypeControlNotClickable, step, fmt.Sprintf("click on %s failed", sel), err)
	}
	return nil
}

func (d *Driver) awaitZip(ctx context.Context, log logger.Logger) error {
	log.WithField("step", StepAwaitZip).Debug("Waiting for zip file to be prepared")

	err := d.session.WaitFor(ctx, d.selectors.DownloadZip, browser.Visible, d.timeouts.ExportReady)
	if err != nil {
		if errors.Is(err, browser.ErrTimeout) {
			return errs.New(errs.ErrorTypeExportTimeout, StepAwaitZip,
				fmt.Sprintf("zip file not ready within %s", d.timeouts.ExportReady), err)
		}
		return errs.New(errs.ErrorTypeUnexpected, StepAwaitZip, "failed waiting for zip file", err)
	}

	if err := d.session.Click(ctx, d.selectors.DownloadZip); err != nil {
		return errs.New(errs.ErrorTypeControlNotClickable, StepAwaitZip, "click on download zip failed", err)
	}
	return nil
}

// classify stamps the album on err, upgrades it to a session error when the
// browser is gone and logs it
func (d *Driver) classify(log logger.Logger, item inventory.WorkItem, err error) error {
	var typed *errs.Error
	if !errors.As(err, &typed) {
		typed = errs.New(errs.ErrorTypeUnexpected, "", "", err)
	}
	typed.Identifier = item.Identifier

	if sessErr := d.session.Err(); sessErr != nil && typed.Type != errs.ErrorTypeSession {
		typed = &errs.Error{
			Type:       errs.ErrorTypeSession,
			Step:       typed.Step,
			Identifier: item.Identifier,
			Message:    fmt.Sprintf("browser session unusable (%v)", sessErr),
			Err:        typed,
		}
	}

	fields := map[string]interface{}{
		"step": typed.Step,
		"type": string(typed.Type),
	}
	l := log.WithError(typed)
	switch typed.Type {
	case errs.ErrorTypeDownloadTimeout:
		l.WarnWithFields("Zip download did not arrive in time", fields)
	case errs.ErrorTypeExportTimeout:
		l.ErrorWithFields("Zip file was not prepared in time", fields)
	case errs.ErrorTypeNavigationTimeout:
		l.ErrorWithFields("Album page did not load in time", fields)
	case errs.ErrorTypeControlNotFound:
		l.ErrorWithFields("Control not found on album page", fields)
	case errs.ErrorTypeControlNotClickable:
		l.ErrorWithFields("Control never became clickable", fields)
	case errs.ErrorTypeSession:
		l.ErrorWithFields("Browser session lost", fields)
	default:
		l.ErrorWithFields("Unexpected error during album export", fields)
	}
	return typed
}

func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
