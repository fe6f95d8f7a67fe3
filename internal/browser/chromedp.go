package browser

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/chromedp/cdproto/emulation"
	"github.com/chromedp/chromedp"
)

const defaultOpenTimeout = 30 * time.Second

// feed panel candidates mirror the search page variants; the script falls
// back to scrolling the window when none is present.
const scrollFeedScript = `(() => {
	const panel = document.querySelector("div[role='feed']")
		|| document.querySelector("div.m6QErb")
		|| document.querySelector("div[aria-label*='Results']");
	if (!panel) {
		const before = window.scrollY;
		window.scrollBy(0, window.innerHeight);
		return window.scrollY > before;
	}
	const before = panel.scrollTop;
	panel.scrollBy(0, panel.clientHeight);
	return panel.scrollTop > before;
})()`

// Options configures the Chrome instance backing one crawl session.
type Options struct {
	Headless  bool
	Proxy     string
	UserAgent string
}

// ChromeDriver implements Driver on top of chromedp. One instance owns one
// Chrome process; tabs are child contexts of the browser context.
type ChromeDriver struct {
	allocCtx    context.Context
	allocCancel context.CancelFunc
	browserCtx  context.Context
	cancel      context.CancelFunc
}

// NewChromeDriver launches Chrome with the anti-automation-detection flags
// the scraping targets expect to see absent.
func NewChromeDriver(opts Options) (*ChromeDriver, error) {
	allocOpts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", opts.Headless),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("disable-blink-features", "AutomationControlled"),
	)
	if opts.Proxy != "" {
		allocOpts = append(allocOpts, chromedp.ProxyServer(opts.Proxy))
	}
	if opts.UserAgent != "" {
		allocOpts = append(allocOpts, chromedp.UserAgent(opts.UserAgent))
	}

	allocCtx, allocCancel := chromedp.NewExecAllocator(context.Background(), allocOpts...)
	browserCtx, cancel := chromedp.NewContext(allocCtx)

	// Materialize the browser process up front so launch failures surface
	// here instead of on the first navigation.
	if err := chromedp.Run(browserCtx); err != nil {
		cancel()
		allocCancel()
		return nil, fmt.Errorf("start chrome: %w", err)
	}

	return &ChromeDriver{
		allocCtx:    allocCtx,
		allocCancel: allocCancel,
		browserCtx:  browserCtx,
		cancel:      cancel,
	}, nil
}

// Open navigates the root tab to the search URL.
func (d *ChromeDriver) Open(ctx context.Context, url string) (Page, error) {
	page := &chromePage{ctx: d.browserCtx}
	if err := page.Navigate(ctx, url, defaultOpenTimeout); err != nil {
		return nil, err
	}
	return page, nil
}

// NewTab opens an isolated tab, overriding its user agent when one is given.
func (d *ChromeDriver) NewTab(ctx context.Context, opts TabOptions) (Page, error) {
	tabCtx, cancel := chromedp.NewContext(d.browserCtx)

	actions := []chromedp.Action{}
	if opts.UserAgent != "" {
		actions = append(actions, emulation.SetUserAgentOverride(opts.UserAgent))
	}

	runCtx, runCancel := context.WithTimeout(tabCtx, 10*time.Second)
	defer runCancel()
	stop := context.AfterFunc(ctx, runCancel)
	defer stop()

	if err := chromedp.Run(runCtx, actions...); err != nil {
		cancel()
		return nil, fmt.Errorf("open tab: %w", err)
	}

	return &chromePage{ctx: tabCtx, cancel: cancel}, nil
}

// Close tears down the browser process. Safe to call more than once.
func (d *ChromeDriver) Close() error {
	d.cancel()
	d.allocCancel()
	return nil
}

// chromePage is one chromedp target. The root tab carries no cancel func;
// closing it is the driver's responsibility.
type chromePage struct {
	ctx    context.Context
	cancel context.CancelFunc
}

func (p *chromePage) Navigate(ctx context.Context, url string, timeout time.Duration) error {
	navCtx, cancel := context.WithTimeout(p.ctx, timeout)
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	err := chromedp.Run(navCtx,
		chromedp.Navigate(url),
		chromedp.WaitReady("body", chromedp.ByQuery),
	)
	if err != nil {
		if errors.Is(navCtx.Err(), context.DeadlineExceeded) {
			return fmt.Errorf("%w: %s", ErrNavigationTimeout, url)
		}
		return fmt.Errorf("navigate %s: %w", url, err)
	}
	return nil
}

func (p *chromePage) HTML(ctx context.Context) (string, error) {
	runCtx, cancel := context.WithTimeout(p.ctx, 10*time.Second)
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	var html string
	if err := chromedp.Run(runCtx, chromedp.OuterHTML("html", &html, chromedp.ByQuery)); err != nil {
		return "", fmt.Errorf("read page html: %w", err)
	}
	return html, nil
}

func (p *chromePage) HasSelector(ctx context.Context, selector string) (bool, error) {
	runCtx, cancel := context.WithTimeout(p.ctx, 5*time.Second)
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	var found bool
	script := fmt.Sprintf(`document.querySelector(%q) !== null`, selector)
	if err := chromedp.Run(runCtx, chromedp.Evaluate(script, &found)); err != nil {
		return false, fmt.Errorf("probe selector %q: %w", selector, err)
	}
	return found, nil
}

func (p *chromePage) WaitSelector(ctx context.Context, selector string, timeout time.Duration) error {
	waitCtx, cancel := context.WithTimeout(p.ctx, timeout)
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	if err := chromedp.Run(waitCtx, chromedp.WaitReady(selector, chromedp.ByQuery)); err != nil {
		if errors.Is(waitCtx.Err(), context.DeadlineExceeded) {
			return fmt.Errorf("%w: %s", ErrSelectorTimeout, selector)
		}
		return fmt.Errorf("wait for selector %q: %w", selector, err)
	}
	return nil
}

func (p *chromePage) ScrollFeed(ctx context.Context) (bool, error) {
	runCtx, cancel := context.WithTimeout(p.ctx, 5*time.Second)
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	var advanced bool
	if err := chromedp.Run(runCtx, chromedp.Evaluate(scrollFeedScript, &advanced)); err != nil {
		return false, fmt.Errorf("scroll results feed: %w", err)
	}
	return advanced, nil
}

func (p *chromePage) Click(ctx context.Context, selector string) error {
	runCtx, cancel := context.WithTimeout(p.ctx, 3*time.Second)
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	if err := chromedp.Run(runCtx, chromedp.Click(selector, chromedp.ByQuery, chromedp.NodeVisible)); err != nil {
		return fmt.Errorf("click %q: %w", selector, err)
	}
	return nil
}

// Close cancels the tab context. Cancelling twice, or cancelling a tab whose
// browser already went away, is harmless.
func (p *chromePage) Close() error {
	if p.cancel != nil {
		p.cancel()
	}
	return nil
}
