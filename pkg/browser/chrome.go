package browser

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"albumzip/pkg/logger"

	cdpbrowser "github.com/chromedp/cdproto/browser"
	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/chromedp"
)

const (
	clickTimeout = 10 * time.Second
	closeTimeout = 10 * time.Second
)

// LaunchOptions configures the Chrome instance started by Launch
type LaunchOptions struct {
	Headless     bool
	ExecPath     string
	ProfileDir   string
	DownloadDir  string
	WindowWidth  int
	WindowHeight int
	UserAgent    string
}

// ChromeSession drives a local Chrome through the DevTools protocol
type ChromeSession struct {
	ctx         context.Context
	cancel      context.CancelFunc
	allocCancel context.CancelFunc
	logger      logger.Logger

	mu     sync.Mutex
	closed bool
}

// Launch starts Chrome and configures downloads to land in opts.DownloadDir
// without prompting. The returned session must be closed by the caller.
func Launch(ctx context.Context, opts LaunchOptions, log logger.Logger) (*ChromeSession, error) {
	if log == nil {
		log = logger.GetLogger()
	}
	if opts.DownloadDir == "" {
		return nil, errors.New("download directory is required")
	}

	allocOpts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.DisableGPU,
		chromedp.Flag("disable-blink-features", "AutomationControlled"),
	)
	if opts.WindowWidth > 0 && opts.WindowHeight > 0 {
		allocOpts = append(allocOpts, chromedp.WindowSize(opts.WindowWidth, opts.WindowHeight))
	}
	if opts.ExecPath != "" {
		allocOpts = append(allocOpts, chromedp.ExecPath(opts.ExecPath))
	}
	if opts.ProfileDir != "" {
		allocOpts = append(allocOpts, chromedp.UserDataDir(opts.ProfileDir))
	}
	if opts.UserAgent != "" {
		allocOpts = append(allocOpts, chromedp.UserAgent(opts.UserAgent))
	}
	if !opts.Headless {
		// DefaultExecAllocatorOptions implies headless
		allocOpts = append(allocOpts,
			chromedp.Flag("headless", false),
			chromedp.Flag("hide-scrollbars", false),
			chromedp.Flag("mute-audio", false),
		)
	}

	allocCtx, allocCancel := chromedp.NewExecAllocator(context.Background(), allocOpts...)

	s := &ChromeSession{
		allocCancel: allocCancel,
		logger:      log.WithField("component", "browser"),
	}
	s.ctx, s.cancel = chromedp.NewContext(allocCtx,
		chromedp.WithLogf(s.cdpLog),
		chromedp.WithErrorf(s.cdpError),
	)

	logger.LogComponentStart(s.logger, "chrome", map[string]interface{}{
		"headless":     opts.Headless,
		"profile_dir":  opts.ProfileDir,
		"download_dir": opts.DownloadDir,
	})

	// The first Run starts the browser process and binds it to the context it
	// runs on, so it must run on the session context. ctx only aborts a launch
	// that is still in progress.
	stop := context.AfterFunc(ctx, allocCancel)

	err := chromedp.Run(s.ctx,
		chromedp.ActionFunc(func(ctx context.Context) error {
			c := chromedp.FromContext(ctx)
			return cdpbrowser.SetDownloadBehavior(cdpbrowser.SetDownloadBehaviorBehaviorAllow).
				WithDownloadPath(opts.DownloadDir).
				// the Browser executor keeps the command off the tab session
				Do(cdp.WithExecutor(ctx, c.Browser))
		}),
	)
	if !stop() && err == nil {
		err = ctx.Err()
	}
	if err != nil {
		s.Close()
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, fmt.Errorf("failed to start chrome: %w", err)
	}

	return s, nil
}

// Navigate loads url and waits for the load event
func (s *ChromeSession) Navigate(ctx context.Context, url string) error {
	if err := s.Err(); err != nil {
		return err
	}
	runCtx, done := s.opContext(ctx, 0)
	defer done()

	if err := chromedp.Run(runCtx, chromedp.Navigate(url)); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		return fmt.Errorf("navigate to %s: %w", url, err)
	}
	return nil
}

// WaitFor blocks until sel satisfies cond, returning ErrTimeout after timeout
func (s *ChromeSession) WaitFor(ctx context.Context, sel Selector, cond Condition, timeout time.Duration) error {
	if err := s.Err(); err != nil {
		return err
	}
	runCtx, done := s.opContext(ctx, timeout)
	defer done()

	q, by := query(sel)
	var actions []chromedp.Action
	switch cond {
	case Present:
		actions = append(actions, chromedp.WaitReady(q, by))
	case Visible:
		actions = append(actions, chromedp.WaitVisible(q, by))
	case Clickable:
		actions = append(actions,
			chromedp.WaitVisible(q, by),
			chromedp.WaitEnabled(q, by),
		)
	default:
		return fmt.Errorf("unsupported wait condition %s", cond)
	}

	err := chromedp.Run(runCtx, actions...)
	if err == nil {
		return nil
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	if errors.Is(runCtx.Err(), context.DeadlineExceeded) {
		return fmt.Errorf("%w: %s to be %s", ErrTimeout, sel, cond)
	}
	if sessErr := s.Err(); sessErr != nil {
		return sessErr
	}
	return fmt.Errorf("wait for %s: %w", sel, err)
}

// Click clicks the first element matching sel
func (s *ChromeSession) Click(ctx context.Context, sel Selector) error {
	if err := s.Err(); err != nil {
		return err
	}
	runCtx, done := s.opContext(ctx, clickTimeout)
	defer done()

	q, by := query(sel)
	if err := chromedp.Run(runCtx, chromedp.Click(q, by, chromedp.NodeVisible)); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		return fmt.Errorf("click %s: %w", sel, err)
	}
	return nil
}

// Exists reports whether any element currently matches sel
func (s *ChromeSession) Exists(ctx context.Context, sel Selector) (bool, error) {
	if err := s.Err(); err != nil {
		return false, err
	}
	runCtx, done := s.opContext(ctx, clickTimeout)
	defer done()

	var found bool
	if err := chromedp.Run(runCtx, chromedp.Evaluate(firstMatch(sel)+" !== null", &found)); err != nil {
		return false, fmt.Errorf("find %s: %w", sel, err)
	}
	return found, nil
}

// Err reports whether the browser is gone, either closed or exited on its own
func (s *ChromeSession) Err() error {
	s.mu.Lock()
	closed := s.closed
	s.mu.Unlock()
	if closed {
		return ErrClosed
	}
	if err := s.ctx.Err(); err != nil {
		return fmt.Errorf("browser exited: %w", err)
	}
	return nil
}

// Close shuts Chrome down. Further calls are no-ops.
func (s *ChromeSession) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.mu.Unlock()

	// Cancel closes Chrome gracefully and waits for it to exit. Past the
	// timeout the process is killed.
	closeCtx, closeCancel := context.WithTimeout(s.ctx, closeTimeout)
	err := chromedp.Cancel(closeCtx)
	closeCancel()
	s.cancel()
	s.allocCancel()
	if errors.Is(err, context.Canceled) {
		err = nil
	}

	logger.LogComponentStop(s.logger, "chrome", "closed")
	return err
}

// opContext derives a context for one chromedp call. Cancelling ctx cancels
// the call but never the tab itself.
func (s *ChromeSession) opContext(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	var runCtx context.Context
	var cancel context.CancelFunc
	if timeout > 0 {
		runCtx, cancel = context.WithTimeout(s.ctx, timeout)
	} else {
		runCtx, cancel = context.WithCancel(s.ctx)
	}
	stop := context.AfterFunc(ctx, cancel)
	return runCtx, func() {
		stop()
		cancel()
	}
}

func (s *ChromeSession) cdpLog(format string, v ...any) {
	if !strings.Contains(format, "unhandled") && !strings.Contains(format, "event") {
		s.logger.Debug(fmt.Sprintf(format, v...))
	}
}

func (s *ChromeSession) cdpError(format string, v ...any) {
	if !strings.Contains(format, "unhandled") && !strings.Contains(format, "event") {
		s.logger.Error(fmt.Sprintf(format, v...))
	}
}

// query maps sel onto a chromedp query. Both kinds resolve to the first
// matching element in document order, so hidden duplicates further down the
// page never hold up a wait.
func query(sel Selector) (string, chromedp.QueryOption) {
	if sel.By == ByXPath {
		return firstMatch(sel), chromedp.ByJSPath
	}
	return sel.Query, chromedp.ByQuery
}

// firstMatch returns a JavaScript expression evaluating to the first element
// matching sel, or null
func firstMatch(sel Selector) string {
	q, _ := json.Marshal(sel.Query)
	if sel.By == ByXPath {
		return fmt.Sprintf("document.evaluate(%s, document, null, XPathResult.FIRST_ORDERED_NODE_TYPE, null).singleNodeValue", q)
	}
	return fmt.Sprintf("document.querySelector(%s)", q)
}

var _ Session = (*ChromeSession)(nil)
