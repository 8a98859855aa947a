package browser

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"
)

// FakePage is the scripted state of one URL in a FakeSession. Controls maps
// a selector to the strongest condition it satisfies; selectors missing from
// the map do not exist on the page.
type FakePage struct {
	Controls map[Selector]Condition
}

// FakeSession is an in-memory Session for tests. Waits never sleep: a wait
// for a condition the page does not satisfy fails with ErrTimeout at once.
type FakeSession struct {
	mu sync.Mutex

	Pages map[string]*FakePage
	// NavigateErrors makes Navigate fail for specific URLs
	NavigateErrors map[string]error
	// OnClick runs after a successful click and may change the current page
	// or fail the click
	OnClick func(s *FakeSession, sel Selector) error

	current   string
	dead      error
	closed    bool
	navigated []string
	clicks    []Selector
	closes    int
}

// NewFakeSession creates an empty fake
func NewFakeSession() *FakeSession {
	return &FakeSession{
		Pages:          make(map[string]*FakePage),
		NavigateErrors: make(map[string]error),
	}
}

// AddPage registers url with the given controls
func (f *FakeSession) AddPage(url string, controls map[Selector]Condition) *FakePage {
	f.mu.Lock()
	defer f.mu.Unlock()
	page := &FakePage{Controls: controls}
	if page.Controls == nil {
		page.Controls = make(map[Selector]Condition)
	}
	f.Pages[url] = page
	return page
}

// SetControl changes a control on the current page. Intended for OnClick.
func (f *FakeSession) SetControl(sel Selector, cond Condition) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if page := f.Pages[f.current]; page != nil {
		page.Controls[sel] = cond
	}
}

// Current returns the URL last navigated to
func (f *FakeSession) Current() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.current
}

// Kill marks the session as unusable, as if the browser had crashed
func (f *FakeSession) Kill(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err == nil {
		err = errors.New("browser crashed")
	}
	f.dead = err
}

// Navigated returns every URL passed to Navigate
func (f *FakeSession) Navigated() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.navigated...)
}

// Clicks returns every selector that was clicked
func (f *FakeSession) Clicks() []Selector {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]Selector(nil), f.clicks...)
}

// CloseCount returns how many times Close was called
func (f *FakeSession) CloseCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closes
}

func (f *FakeSession) Navigate(ctx context.Context, url string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.errLocked(); err != nil {
		return err
	}
	f.navigated = append(f.navigated, url)
	if err := f.NavigateErrors[url]; err != nil {
		return err
	}
	f.current = url
	return nil
}

func (f *FakeSession) WaitFor(ctx context.Context, sel Selector, cond Condition, timeout time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.errLocked(); err != nil {
		return err
	}
	if got, ok := f.controlLocked(sel); ok && got >= cond {
		return nil
	}
	return fmt.Errorf("%w: %s to be %s", ErrTimeout, sel, cond)
}

func (f *FakeSession) Click(ctx context.Context, sel Selector) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	f.mu.Lock()
	if err := f.errLocked(); err != nil {
		f.mu.Unlock()
		return err
	}
	if got, ok := f.controlLocked(sel); !ok || got < Visible {
		f.mu.Unlock()
		return fmt.Errorf("click %s: element not visible", sel)
	}
	f.clicks = append(f.clicks, sel)
	hook := f.OnClick
	f.mu.Unlock()

	if hook != nil {
		return hook(f, sel)
	}
	return nil
}

func (f *FakeSession) Exists(ctx context.Context, sel Selector) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.errLocked(); err != nil {
		return false, err
	}
	_, ok := f.controlLocked(sel)
	return ok, nil
}

func (f *FakeSession) Err() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.errLocked()
}

func (f *FakeSession) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closes++
	f.closed = true
	return nil
}

func (f *FakeSession) errLocked() error {
	if f.closed {
		return ErrClosed
	}
	return f.dead
}

func (f *FakeSession) controlLocked(sel Selector) (Condition, bool) {
	page := f.Pages[f.current]
	if page == nil {
		return 0, false
	}
	cond, ok := page.Controls[sel]
	return cond, ok
}

var _ Session = (*FakeSession)(nil)
