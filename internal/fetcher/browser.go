package fetcher

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"github.com/go-rod/stealth"

	"github.com/avkuzmin/techharvest/internal/config"
	"github.com/avkuzmin/techharvest/internal/types"
)

// BrowserFetcher drives a headless Chromium instance via Rod. One browser is
// shared by all workers; each worker borrows a page from the pool for the
// duration of a navigation.
type BrowserFetcher struct {
	browser  *rod.Browser
	cfg      *config.Config
	throttle *Throttle
	logger   *slog.Logger
	pagePool chan *rod.Page
	maxPages int
}

// NewBrowserFetcher launches a browser and prepares a page pool sized to the
// worker count.
func NewBrowserFetcher(cfg *config.Config, throttle *Throttle, logger *slog.Logger) (*BrowserFetcher, error) {
	bf := &BrowserFetcher{
		cfg:      cfg,
		throttle: throttle,
		logger:   logger.With("component", "browser_fetcher"),
		maxPages: cfg.Crawler.Workers,
	}

	launchURL, err := bf.launchBrowser()
	if err != nil {
		return nil, fmt.Errorf("launch browser: %w", err)
	}

	browser := rod.New().ControlURL(launchURL)
	if err := browser.Connect(); err != nil {
		return nil, fmt.Errorf("connect browser: %w", err)
	}

	bf.browser = browser
	bf.pagePool = make(chan *rod.Page, bf.maxPages)

	bf.logger.Info("browser fetcher ready",
		"max_pages", bf.maxPages,
		"stealth", cfg.Browser.Stealth,
	)

	return bf, nil
}

// launchBrowser starts Chromium with flags that keep catalog pages cheap to
// render (no images, no GPU).
func (bf *BrowserFetcher) launchBrowser() (string, error) {
	l := launcher.New().
		Headless(bf.cfg.Browser.Headless).
		Set("disable-gpu").
		Set("disable-dev-shm-usage").
		Set("no-sandbox").
		Set("disable-setuid-sandbox").
		Set("disable-extensions").
		Set("blink-settings", "imagesEnabled=false").
		Set("disable-background-timer-throttling").
		Set("disable-blink-features", "AutomationControlled")

	if bf.cfg.Browser.WindowSize != "" {
		l = l.Set("window-size", bf.cfg.Browser.WindowSize)
	}

	return l.Launch()
}

// Fetch navigates to a URL and returns the rendered markup.
func (bf *BrowserFetcher) Fetch(ctx context.Context, rawURL string) (string, error) {
	page, err := bf.Open(ctx, rawURL)
	if err != nil {
		return "", err
	}
	defer page.Close()

	return page.HTML()
}

// Open navigates a pooled page to the URL and hands it back still live for
// interactive use (the reviews reveal loop clicks through it).
func (bf *BrowserFetcher) Open(ctx context.Context, rawURL string) (Page, error) {
	if err := bf.throttle.Wait(ctx); err != nil {
		return nil, &types.FetchError{URL: rawURL, Err: err, Retryable: false}
	}

	page, err := bf.getPage()
	if err != nil {
		return nil, &types.FetchError{URL: rawURL, Err: err, Retryable: true}
	}

	timeout := bf.cfg.Crawler.RequestTimeout
	p := page.Context(ctx)

	if err := p.Timeout(timeout).Navigate(rawURL); err != nil {
		bf.putPage(page)
		return nil, &types.FetchError{URL: rawURL, Err: err, Retryable: true}
	}

	if err := p.Timeout(timeout).WaitStable(300 * time.Millisecond); err != nil {
		// Busy pages may never fully settle; whatever rendered is usable.
		bf.logger.Warn("page stability timeout, continuing", "url", rawURL, "error", err)
	}

	return &browserPage{page: page, ctxPage: p, owner: bf, timeout: timeout}, nil
}

// Close shuts down the browser and releases resources.
func (bf *BrowserFetcher) Close() error {
	close(bf.pagePool)
	for page := range bf.pagePool {
		_ = page.Close()
	}
	if bf.browser != nil {
		return bf.browser.Close()
	}
	return nil
}

// getPage retrieves a page from the pool or creates a new one.
func (bf *BrowserFetcher) getPage() (*rod.Page, error) {
	select {
	case page := <-bf.pagePool:
		return page, nil
	default:
		if bf.cfg.Browser.Stealth {
			return stealth.Page(bf.browser)
		}
		return bf.browser.Page(proto.TargetCreateTarget{URL: "about:blank"})
	}
}

// putPage returns a page to the pool.
func (bf *BrowserFetcher) putPage(page *rod.Page) {
	// Navigate to blank to free memory from the last page
	_ = page.Navigate("about:blank")

	select {
	case bf.pagePool <- page:
	default:
		_ = page.Close() // Pool full, close the page
	}
}

// browserPage adapts a rod page to the Page interface.
type browserPage struct {
	page    *rod.Page
	ctxPage *rod.Page
	owner   *BrowserFetcher
	timeout time.Duration
}

func (p *browserPage) HTML() (string, error) {
	return p.ctxPage.HTML()
}

func (p *browserPage) ClickMatch(selector, pattern string) error {
	el, err := p.ctxPage.Timeout(p.timeout).ElementR(selector, pattern)
	if err != nil {
		return fmt.Errorf("%w: %s matching %q", types.ErrElementMissing, selector, pattern)
	}
	if err := el.ScrollIntoView(); err != nil {
		return fmt.Errorf("scroll into view: %w", err)
	}
	if err := el.Click(proto.InputMouseButtonLeft, 1); err != nil {
		return fmt.Errorf("click %s: %w", selector, err)
	}
	return nil
}

func (p *browserPage) WaitStable(d time.Duration) error {
	return p.ctxPage.Timeout(p.timeout).WaitStable(d)
}

func (p *browserPage) Close() error {
	p.owner.putPage(p.page)
	return nil
}
