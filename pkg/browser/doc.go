// Package browser abstracts the live browser that album exports run in.
//
// Session is the capability the export workflow needs: open a page, wait for
// an element to reach a condition, click it and check whether it exists.
// ChromeSession implements it on top of chromedp; FakeSession is a scripted
// in-memory stand-in for tests.
//
// Selectors are either CSS queries or XPath expressions:
//
//	menu := browser.XPath("//a[span[text()='Download']]")
//	if err := s.WaitFor(ctx, menu, browser.Clickable, 30*time.Second); err != nil {
//	    // errors.Is(err, browser.ErrTimeout) when the wait expired
//	}
package browser
