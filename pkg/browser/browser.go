package browser

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ErrTimeout is returned by WaitFor when the condition is not met in time
var ErrTimeout = errors.New("timed out waiting for element")

// ErrClosed is reported by Err once a session has been closed
var ErrClosed = errors.New("browser session closed")

// By selects how a Selector query is interpreted
type By string

const (
	ByCSS   By = "css"
	ByXPath By = "xpath"
)

// Selector locates a control on the page
type Selector struct {
	Query string
	By    By
}

func (s Selector) String() string {
	return fmt.Sprintf("%s(%s)", s.By, s.Query)
}

// Validate checks that the selector can be used
func (s Selector) Validate() error {
	if s.Query == "" {
		return errors.New("selector query is empty")
	}
	switch s.By {
	case ByCSS, ByXPath:
		return nil
	default:
		return fmt.Errorf("unknown selector strategy %q", s.By)
	}
}

// CSS builds a css selector
func CSS(query string) Selector {
	return Selector{Query: query, By: ByCSS}
}

// XPath builds an xpath selector
func XPath(query string) Selector {
	return Selector{Query: query, By: ByXPath}
}

// Condition is the state an element must reach for WaitFor to return
type Condition int

const (
	// Present means the element is in the DOM
	Present Condition = iota
	// Visible means the element is rendered
	Visible
	// Clickable means the element is visible and enabled
	Clickable
)

func (c Condition) String() string {
	switch c {
	case Present:
		return "present"
	case Visible:
		return "visible"
	case Clickable:
		return "clickable"
	default:
		return fmt.Sprintf("condition(%d)", int(c))
	}
}

// Session is a live browser that album exports are driven through. It is not
// safe for concurrent use; one album is exported at a time.
//
// A selector always refers to its first match in document order: waits and
// clicks look at that element only, whatever else matches further down.
type Session interface {
	// Navigate loads url in the current tab
	Navigate(ctx context.Context, url string) error
	// WaitFor blocks until sel satisfies cond or timeout elapses (ErrTimeout)
	WaitFor(ctx context.Context, sel Selector, cond Condition, timeout time.Duration) error
	// Click clicks the first element matching sel
	Click(ctx context.Context, sel Selector) error
	// Exists reports whether at least one element matches sel right now
	Exists(ctx context.Context, sel Selector) (bool, error)
	// Err is non-nil once the session can no longer be used
	Err() error
	// Close releases the browser. It is safe to call more than once.
	Close() error
}
