// Package browser abstracts the automation driver behind small interfaces so
// the crawl engine and its tests never depend on a real Chrome instance.
package browser

import (
	"context"
	"errors"
	"time"
)

// ErrNavigationTimeout marks a navigation that exceeded its deadline. It is
// retryable: the crawl engine maps it to a timed-out attempt, not a crash.
var ErrNavigationTimeout = errors.New("navigation timed out")

// ErrSelectorTimeout marks a selector probe that did not match in time.
var ErrSelectorTimeout = errors.New("selector wait timed out")

// TabOptions configures an isolated short-lived browsing context.
type TabOptions struct {
	UserAgent string
}

// Page is one browsing context. Close is safe to call on an already-gone
// page; implementations must never panic on double close.
type Page interface {
	// Navigate loads the URL, honoring the timeout. A deadline hit returns
	// ErrNavigationTimeout.
	Navigate(ctx context.Context, url string, timeout time.Duration) error
	// HTML returns the fully rendered document markup.
	HTML(ctx context.Context) (string, error)
	// HasSelector reports whether the selector currently matches.
	HasSelector(ctx context.Context, selector string) (bool, error)
	// WaitSelector blocks until the selector matches or the timeout fires,
	// returning ErrSelectorTimeout in the latter case.
	WaitSelector(ctx context.Context, selector string, timeout time.Duration) error
	// ScrollFeed advances the results feed by one viewport and reports
	// whether the scroll position actually moved.
	ScrollFeed(ctx context.Context) (bool, error)
	// Click performs a best-effort click on the first matching element.
	Click(ctx context.Context, selector string) error
	Close() error
}

// Driver owns one browser instance per crawl session.
type Driver interface {
	// Open navigates the root tab to the URL and returns it.
	Open(ctx context.Context, url string) (Page, error)
	// NewTab opens an isolated tab with its own user agent.
	NewTab(ctx context.Context, opts TabOptions) (Page, error)
	Close() error
}
