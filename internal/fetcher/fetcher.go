package fetcher

import (
	"context"
	"time"
)

// Fetcher retrieves the rendered HTML for a URL.
type Fetcher interface {
	// Fetch navigates to the URL and returns the page markup.
	Fetch(ctx context.Context, rawURL string) (string, error)

	// Close releases any resources held by the fetcher.
	Close() error
}

// Page is a live, interactive browser page. The reviews parser drives its
// incremental-reveal loop through this interface, so tests can substitute a
// scripted fake for a real browser tab.
type Page interface {
	// HTML returns the current DOM serialized as markup.
	HTML() (string, error)

	// ClickMatch finds the first element matching the CSS selector whose
	// text matches the given regular expression, scrolls it into view and
	// clicks it. Returns an error if no such element exists.
	ClickMatch(selector, pattern string) error

	// WaitStable blocks until the DOM has stopped mutating for roughly d.
	WaitStable(d time.Duration) error

	// Close releases the page.
	Close() error
}

// Interactive is implemented by fetchers that can hand out live pages.
type Interactive interface {
	// Open navigates a page to the URL and returns it still live.
	Open(ctx context.Context, rawURL string) (Page, error)
}
