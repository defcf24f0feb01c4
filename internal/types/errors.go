package types

import (
	"errors"
	"fmt"
)

// Sentinel errors for common failure modes.
var (
	ErrNoProducts       = errors.New("no product links on listing page")
	ErrElementMissing   = errors.New("expected element not found")
	ErrIncomplete       = errors.New("document failed completeness check")
	ErrStoreUnavailable = errors.New("document store unavailable")
)

// FetchError wraps errors that occur while retrieving a page.
type FetchError struct {
	URL       string
	Err       error
	Retryable bool
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetch error for %s: %v", e.URL, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

func (e *FetchError) IsRetryable() bool { return e.Retryable }

// ParseError wraps errors that occur while extracting structured data from a
// page. Selector records the CSS/XPath expression that failed, so "empty
// because absent" stays distinguishable from "parser broke".
type ParseError struct {
	URL      string
	Selector string
	Err      error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse error for %s (selector=%q): %v", e.URL, e.Selector, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// StoreError wraps errors from the persistence layer. This is the one error
// class the crawl does not swallow per-record: the supervisor surfaces it and
// restarts with backoff.
type StoreError struct {
	Backend string
	Err     error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("store error (%s): %v", e.Backend, e.Err)
}

func (e *StoreError) Unwrap() error { return e.Err }
