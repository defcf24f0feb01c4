package crawl

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/avkuzmin/techharvest/internal/config"
	"github.com/avkuzmin/techharvest/internal/fetcher"
	"github.com/avkuzmin/techharvest/internal/store"
	"github.com/avkuzmin/techharvest/internal/types"
)

// fakeFetcher serves canned HTML by URL and records every fetch.
type fakeFetcher struct {
	mu      sync.Mutex
	pages   map[string]string
	fail    map[string]error
	fetched map[string]int
}

func newFakeFetcher() *fakeFetcher {
	return &fakeFetcher{
		pages:   map[string]string{},
		fail:    map[string]error{},
		fetched: map[string]int{},
	}
}

func (f *fakeFetcher) Fetch(_ context.Context, rawURL string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fetched[rawURL]++
	if err, ok := f.fail[rawURL]; ok {
		return "", err
	}
	html, ok := f.pages[rawURL]
	if !ok {
		return "", &types.FetchError{URL: rawURL, Err: errors.New("not found")}
	}
	return html, nil
}

func (f *fakeFetcher) Close() error { return nil }

func (f *fakeFetcher) count(rawURL string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.fetched[rawURL]
}

// fakeInteractive opens static pages whose review filter is absent, so the
// reveal flow yields no reviews.
type fakeInteractive struct {
	fetch *fakeFetcher
}

func (f *fakeInteractive) Open(ctx context.Context, rawURL string) (fetcher.Page, error) {
	html, err := f.fetch.Fetch(ctx, rawURL)
	if err != nil {
		return nil, err
	}
	return &staticPage{html: html}, nil
}

type staticPage struct {
	html string
}

func (p *staticPage) HTML() (string, error) { return p.html, nil }

func (p *staticPage) ClickMatch(string, string) error { return errors.New("no such element") }

func (p *staticPage) WaitStable(time.Duration) error { return nil }

func (p *staticPage) Close() error { return nil }

func listingPage(maxPage int, slugs ...string) string {
	var b strings.Builder
	b.WriteString("<html><body><ul>")
	if maxPage > 1 {
		for i := 1; i <= maxPage; i++ {
			fmt.Fprintf(&b, `<li class="pagination-widget__page" data-page-number="%d"></li>`, i)
		}
	}
	b.WriteString("</ul>")
	for _, slug := range slugs {
		fmt.Fprintf(&b, `<a class="catalog-product__name ui-link ui-link_black" href="/product/%s/"></a>`, slug)
	}
	b.WriteString("</body></html>")
	return b.String()
}

func characteristicsPage(name string) string {
	return fmt.Sprintf(`<html><body>
		<span data-go-back-catalog>Смартфоны</span>
		<h1 class="title">Характеристики %s</h1>
		<div class="product-buy__price">19 999</div>
		<a class="header-product__link_rating">4.2</a>
		<div class="product-card-description-text">Описание товара.</div>
		<div class="product-characteristics__spec-title">Вес</div>
		<div class="product-characteristics__spec-value">200 г</div>
	</body></html>`, name)
}

func testConfig() *config.Config {
	cfg := config.DefaultConfig()
	cfg.Crawler.Targets = []config.Target{{URLTemplate: "https://shop.example/catalog/phones/?p={page}"}}
	cfg.Crawler.Workers = 2
	cfg.Crawler.MaxRetries = 0
	cfg.Crawler.RetryBaseDelay = time.Millisecond
	cfg.Browser.SettleWait = time.Millisecond
	return cfg
}

func productURLs(slug string) (canonical, chars, reviews string) {
	canonical = "https://shop.example/product/" + slug
	return canonical, canonical + "/characteristics/", canonical + "/opinion/"
}

func newTestOrchestrator(cfg *config.Config, f *fakeFetcher, s store.DocumentStore) *Orchestrator {
	return NewOrchestrator(cfg, f, &fakeInteractive{fetch: f}, s, NewStats(), slog.Default())
}

func TestRunCycleStoresDiscoveredProducts(t *testing.T) {
	f := newFakeFetcher()
	f.pages["https://shop.example/catalog/phones/?p=1"] = listingPage(2, "widget-a")
	f.pages["https://shop.example/catalog/phones/?p=2"] = listingPage(2, "widget-b")
	for _, slug := range []string{"widget-a", "widget-b"} {
		_, chars, reviews := productURLs(slug)
		f.pages[chars] = characteristicsPage("Widget " + slug)
		f.pages[reviews] = "<html><body></body></html>"
	}

	s := store.NewMemoryStore(slog.Default())
	o := newTestOrchestrator(testConfig(), f, s)

	if err := o.RunCycle(context.Background()); err != nil {
		t.Fatalf("RunCycle: %v", err)
	}

	n, _ := s.Count(context.Background())
	if n != 2 {
		t.Fatalf("stored %d products, want 2", n)
	}

	canonical, _, _ := productURLs("widget-a")
	ok, _ := s.Exists(context.Background(), types.ContentID(canonical))
	if !ok {
		t.Error("widget-a missing from the store")
	}

	var doc *types.ProductDocument
	_ = s.ScanAll(context.Background(), func(d *types.ProductDocument) error {
		if d.SourceURL == canonical {
			doc = d
		}
		return nil
	})
	if doc == nil {
		t.Fatal("widget-a not scannable")
	}
	if doc.Price != 19999 || doc.Category != "Смартфоны" {
		t.Errorf("stored doc = %+v", doc)
	}
	if doc.Reviews == nil {
		t.Error("reviews must be an empty slice, not nil")
	}
}

func TestRecrawlSkipsKnownProducts(t *testing.T) {
	f := newFakeFetcher()
	f.pages["https://shop.example/catalog/phones/?p=1"] = listingPage(1, "widget-a")
	_, chars, reviews := productURLs("widget-a")
	f.pages[chars] = characteristicsPage("Widget A")
	f.pages[reviews] = "<html><body></body></html>"

	s := store.NewMemoryStore(slog.Default())
	o := newTestOrchestrator(testConfig(), f, s)

	for i := 0; i < 2; i++ {
		if err := o.RunCycle(context.Background()); err != nil {
			t.Fatalf("cycle %d: %v", i, err)
		}
	}

	n, _ := s.Count(context.Background())
	if n != 1 {
		t.Fatalf("stored %d products, want 1", n)
	}
	// Dedup happens before fetching, so detail pages are visited once.
	if got := f.count(chars); got != 1 {
		t.Errorf("characteristics fetched %d times, want 1", got)
	}
}

func TestIncompleteDocumentDropped(t *testing.T) {
	f := newFakeFetcher()
	f.pages["https://shop.example/catalog/phones/?p=1"] = listingPage(1, "nameless")
	_, chars, reviews := productURLs("nameless")
	// The heading is only the injected label, so the parsed name is empty.
	f.pages[chars] = characteristicsPage("")
	f.pages[reviews] = "<html><body></body></html>"

	s := store.NewMemoryStore(slog.Default())
	o := newTestOrchestrator(testConfig(), f, s)

	if err := o.RunCycle(context.Background()); err != nil {
		t.Fatalf("RunCycle: %v", err)
	}

	n, _ := s.Count(context.Background())
	if n != 0 {
		t.Errorf("stored %d products, want 0", n)
	}
	if dropped := o.stats.Snapshot().ProductsDropped; dropped != 1 {
		t.Errorf("dropped = %d, want 1", dropped)
	}
}

func TestUnavailableListingSkipsTarget(t *testing.T) {
	f := newFakeFetcher()
	f.fail["https://shop.example/catalog/phones/?p=1"] = &types.FetchError{
		URL: "https://shop.example/catalog/phones/?p=1",
		Err: errors.New("connection refused"),
	}

	s := store.NewMemoryStore(slog.Default())
	o := newTestOrchestrator(testConfig(), f, s)

	if err := o.RunCycle(context.Background()); err != nil {
		t.Fatalf("RunCycle must degrade, got: %v", err)
	}
	n, _ := s.Count(context.Background())
	if n != 0 {
		t.Errorf("stored %d products, want 0", n)
	}
}

// failingStore wraps the memory store and fails every Exists call.
type failingStore struct {
	*store.MemoryStore
}

func (f *failingStore) Exists(context.Context, string) (bool, error) {
	return false, &types.StoreError{Backend: "memory", Err: errors.New("down")}
}

func TestStoreFailureAbortsCycle(t *testing.T) {
	f := newFakeFetcher()
	f.pages["https://shop.example/catalog/phones/?p=1"] = listingPage(1, "widget-a")

	s := &failingStore{MemoryStore: store.NewMemoryStore(slog.Default())}
	o := newTestOrchestrator(testConfig(), f, s)

	err := o.RunCycle(context.Background())
	var storeErr *types.StoreError
	if !errors.As(err, &storeErr) {
		t.Fatalf("expected store error, got %v", err)
	}
}

func TestListingURL(t *testing.T) {
	tests := []struct {
		name   string
		target config.Target
		page   int
		want   string
	}{
		{
			name:   "placeholder template",
			target: config.Target{URLTemplate: "https://shop.example/catalog/?p={page}"},
			page:   3,
			want:   "https://shop.example/catalog/?p=3",
		},
		{
			name:   "appended param",
			target: config.Target{URLTemplate: "https://shop.example/catalog/", PageParam: "page"},
			page:   2,
			want:   "https://shop.example/catalog/?page=2",
		},
		{
			name:   "appended param with existing query",
			target: config.Target{URLTemplate: "https://shop.example/catalog/?sort=price", PageParam: "p"},
			page:   5,
			want:   "https://shop.example/catalog/?sort=price&p=5",
		},
		{
			name:   "default param name",
			target: config.Target{URLTemplate: "https://shop.example/catalog/"},
			page:   1,
			want:   "https://shop.example/catalog/?p=1",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := listingURL(tt.target, tt.page); got != tt.want {
				t.Errorf("listingURL = %q, want %q", got, tt.want)
			}
		})
	}
}
