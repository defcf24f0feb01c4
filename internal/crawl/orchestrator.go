package crawl

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/avkuzmin/techharvest/internal/config"
	"github.com/avkuzmin/techharvest/internal/fetcher"
	"github.com/avkuzmin/techharvest/internal/parser"
	"github.com/avkuzmin/techharvest/internal/store"
	"github.com/avkuzmin/techharvest/internal/types"
)

const pagePlaceholder = "{page}"

// job is one product claimed by a worker: its canonical identity plus the
// two detail URLs to visit.
type job struct {
	link parser.ProductLink
}

// Orchestrator runs the crawl: it walks paginated category listings,
// discovers products, skips already-archived ones, and sends workers to the
// characteristics and review pages of the rest.
type Orchestrator struct {
	cfg         *config.Config
	fetch       fetcher.Fetcher
	interactive fetcher.Interactive
	listing     *parser.ListingParser
	chars       *parser.CharacteristicsParser
	reviews     *parser.ReviewsParser
	store       store.DocumentStore
	stats       *Stats
	logger      *slog.Logger
}

// NewOrchestrator wires a crawl orchestrator. fetch retrieves static pages;
// interactive opens live pages for the review reveal flow.
func NewOrchestrator(
	cfg *config.Config,
	fetch fetcher.Fetcher,
	interactive fetcher.Interactive,
	docStore store.DocumentStore,
	stats *Stats,
	logger *slog.Logger,
) *Orchestrator {
	return &Orchestrator{
		cfg:         cfg,
		fetch:       fetch,
		interactive: interactive,
		listing:     parser.NewListingParser(logger),
		chars:       parser.NewCharacteristicsParser(logger),
		reviews:     parser.NewReviewsParser(cfg.Browser.SettleWait, logger),
		store:       docStore,
		stats:       stats,
		logger:      logger.With("component", "orchestrator"),
	}
}

// Run crawls all targets, then sleeps through the cooldown and repeats until
// the context is cancelled. Store failures abort the run so the supervisor
// can restart it; everything else degrades per page or per product.
func (o *Orchestrator) Run(ctx context.Context) error {
	for {
		if err := o.RunCycle(ctx); err != nil {
			return err
		}
		o.stats.CycleComplete()

		o.logger.Info("crawl cycle complete, cooling down",
			"cooldown", o.cfg.Crawler.Cooldown, "stats", o.stats.Snapshot())

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(o.cfg.Crawler.Cooldown):
		}
	}
}

// RunCycle performs one full pass over every configured target.
func (o *Orchestrator) RunCycle(ctx context.Context) error {
	jobs := make(chan job)
	workerCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	var (
		wg       sync.WaitGroup
		failOnce sync.Once
		failure  error
	)
	fail := func(err error) {
		failOnce.Do(func() {
			failure = err
			cancel()
		})
	}

	for i := 0; i < o.cfg.Crawler.Workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := range jobs {
				if workerCtx.Err() != nil {
					continue
				}
				if err := o.processProduct(workerCtx, j.link); err != nil {
					fail(err)
				}
			}
		}()
	}

	o.discover(workerCtx, jobs, fail)
	close(jobs)
	wg.Wait()

	if failure != nil {
		return failure
	}
	return ctx.Err()
}

// discover walks every target's listing pages and feeds undiscovered
// products to the workers. Listing pages that fail to fetch or parse are
// treated as empty.
func (o *Orchestrator) discover(ctx context.Context, jobs chan<- job, fail func(error)) {
	for _, target := range o.cfg.Crawler.Targets {
		if ctx.Err() != nil {
			return
		}

		firstPage, err := o.fetchListing(ctx, target, 1)
		if err != nil {
			o.logger.Warn("listing page unavailable, skipping target",
				"target", target.URLTemplate, "error", err)
			continue
		}

		maxPage, err := o.listing.MaxPage(firstPage)
		if err != nil {
			maxPage = 1
		}
		o.logger.Info("target discovered", "target", target.URLTemplate, "pages", maxPage)

		for page := 1; page <= maxPage; page++ {
			if ctx.Err() != nil {
				return
			}

			html := firstPage
			if page > 1 {
				html, err = o.fetchListing(ctx, target, page)
				if err != nil {
					o.logger.Warn("listing page unavailable, treating as empty",
						"target", target.URLTemplate, "page", page, "error", err)
					continue
				}
			}

			links, err := o.listing.ProductLinks(html, listingURL(target, page))
			if err != nil {
				o.logger.Warn("listing page unparseable, treating as empty",
					"target", target.URLTemplate, "page", page, "error", err)
				continue
			}

			for _, link := range links {
				o.stats.ProductDiscovered()

				known, err := o.store.Exists(ctx, types.ContentID(link.Canonical))
				if err != nil {
					fail(err)
					return
				}
				if known {
					o.stats.ProductSkipped()
					continue
				}

				select {
				case jobs <- job{link: link}:
				case <-ctx.Done():
					return
				}
			}
		}
	}
}

// processProduct assembles one product document from its two detail pages and
// persists it. Only store failures propagate; fetch and parse problems drop
// the product for this cycle.
func (o *Orchestrator) processProduct(ctx context.Context, link parser.ProductLink) error {
	id := types.ContentID(link.Canonical)

	// Another worker may have stored this product since discovery.
	known, err := o.store.Exists(ctx, id)
	if err != nil {
		return err
	}
	if known {
		o.stats.ProductSkipped()
		return nil
	}

	html, err := o.fetchWithRetry(ctx, link.CharacteristicsURL)
	if err != nil {
		o.stats.FetchError()
		o.logger.Warn("characteristics page unavailable", "url", link.CharacteristicsURL, "error", err)
		return nil
	}
	o.stats.PageFetched()

	doc, err := o.chars.Parse(html, link.CharacteristicsURL)
	if err != nil {
		o.stats.ProductDropped()
		o.logger.Warn("characteristics page unparseable", "url", link.CharacteristicsURL, "error", err)
		return nil
	}

	doc.Reviews = o.collectReviews(ctx, link.ReviewsURL)
	doc.TotalReviews = len(doc.Reviews)

	if !doc.Complete() {
		o.stats.ProductDropped()
		o.logger.Warn("incomplete document dropped", "url", link.Canonical)
		return nil
	}

	if err := o.store.Upsert(ctx, doc); err != nil {
		var storeErr *types.StoreError
		if errors.As(err, &storeErr) {
			return err
		}
		o.stats.ProductDropped()
		o.logger.Warn("upsert rejected document", "id", doc.ID, "error", err)
		return nil
	}

	o.stats.ProductStored()
	o.logger.Info("product stored", "id", doc.ID, "name", doc.Name, "reviews", doc.TotalReviews)
	return nil
}

// collectReviews runs the reveal flow on the review page. Any failure leaves
// the product with zero reviews rather than losing it entirely.
func (o *Orchestrator) collectReviews(ctx context.Context, reviewsURL string) []types.Review {
	page, err := o.interactive.Open(ctx, reviewsURL)
	if err != nil {
		o.stats.FetchError()
		o.logger.Warn("review page unavailable", "url", reviewsURL, "error", err)
		return []types.Review{}
	}
	defer page.Close()
	o.stats.PageFetched()

	reviews, err := o.reviews.Collect(page, reviewsURL)
	if err != nil {
		o.logger.Warn("review collection failed", "url", reviewsURL, "error", err)
		return []types.Review{}
	}
	return reviews
}

// fetchListing retrieves one listing page with retries.
func (o *Orchestrator) fetchListing(ctx context.Context, target config.Target, page int) (string, error) {
	html, err := o.fetchWithRetry(ctx, listingURL(target, page))
	if err != nil {
		o.stats.FetchError()
		return "", err
	}
	o.stats.PageFetched()
	return html, nil
}

// fetchWithRetry retries retryable fetch failures with exponential backoff.
func (o *Orchestrator) fetchWithRetry(ctx context.Context, rawURL string) (string, error) {
	var lastErr error
	delay := o.cfg.Crawler.RetryBaseDelay

	for attempt := 0; attempt <= o.cfg.Crawler.MaxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return "", ctx.Err()
			case <-time.After(delay):
			}
			delay *= 2
		}

		html, err := o.fetch.Fetch(ctx, rawURL)
		if err == nil {
			return html, nil
		}
		lastErr = err

		var fetchErr *types.FetchError
		if !errors.As(err, &fetchErr) || !fetchErr.Retryable {
			return "", err
		}
		o.logger.Debug("retrying fetch", "url", rawURL, "attempt", attempt+1, "error", err)
	}

	return "", fmt.Errorf("retries exhausted for %s: %w", rawURL, lastErr)
}

// listingURL renders the listing URL for a page number, either by expanding
// the {page} placeholder or by appending the configured query parameter.
func listingURL(target config.Target, page int) string {
	if strings.Contains(target.URLTemplate, pagePlaceholder) {
		return strings.ReplaceAll(target.URLTemplate, pagePlaceholder, strconv.Itoa(page))
	}

	param := target.PageParam
	if param == "" {
		param = "p"
	}

	sep := "?"
	if strings.Contains(target.URLTemplate, "?") {
		sep = "&"
	}
	return target.URLTemplate + sep + param + "=" + url.QueryEscape(strconv.Itoa(page))
}
