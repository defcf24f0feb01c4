package parser

import (
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/antchfx/htmlquery"
	"golang.org/x/net/html"

	"github.com/avkuzmin/techharvest/internal/fetcher"
	"github.com/avkuzmin/techharvest/internal/types"
)

// Review page selectors.
const (
	filterButtonSel  = "div.ow-filters__count-filter-btn"
	loadMoreSel      = `button[class*="dget__more"]`
	opinionBlockSel  = `div.ow-opinion[data-role="opinion"]`
	authorSel        = ".profile-info__name"
	starSelectedSel  = `.star-rating__star[data-state="selected"]`
	ratingTabSel     = ".opinion-rating-slider__tab"
	ratingTabNameSel = ".opinion-rating-slider__tab-title_name"
	usageSel         = ".ow-opinion__info-desc"
	opinionTextSel   = ".ow-opinion__text"
	opinionDateSel   = ".ow-opinion__date"

	filterButtonXPath = `//div[contains(@class, "ow-filters__count-filter-btn")]`
)

// Russian UI tokens on the review page.
const (
	modelOnlyFilterText = "Только к этой модели"
	loadMoreText        = "Показать ещё"
	authorAnonymous     = "Аноним"

	prosHeading    = "Достоинства"
	consHeading    = "Недостатки"
	commentHeading = "Комментарий"
)

// Reveal pacing: the page shows a few reviews up front and appends a fixed
// batch per load-more click.
const (
	revealInitial = 4
	revealBatch   = 10
)

// ReviewsParser drives an interactive review page through its reveal flow and
// extracts the review blocks from the final snapshot.
type ReviewsParser struct {
	settle time.Duration
	logger *slog.Logger
}

// NewReviewsParser creates a reviews parser. settle is how long the page must
// stay quiet after a click before the next action.
func NewReviewsParser(settle time.Duration, logger *slog.Logger) *ReviewsParser {
	return &ReviewsParser{
		settle: settle,
		logger: logger.With("component", "reviews_parser"),
	}
}

// RequiredClicks returns how many load-more clicks reveal total reviews.
func RequiredClicks(total int) int {
	hidden := total - revealInitial
	if hidden <= 0 {
		return 0
	}
	return (hidden + revealBatch - 1) / revealBatch
}

// Collect narrows the page to model-specific reviews, clicks through the
// reveal flow, and parses every revealed block. A page whose model filter is
// absent has no reviews for this exact model and yields an empty slice.
func (p *ReviewsParser) Collect(page fetcher.Page, pageURL string) ([]types.Review, error) {
	if err := page.ClickMatch(filterButtonSel, modelOnlyFilterText); err != nil {
		p.logger.Debug("model filter absent, no model-specific reviews", "url", pageURL)
		return []types.Review{}, nil
	}
	if err := page.WaitStable(p.settle); err != nil {
		p.logger.Warn("page did not settle after filter", "url", pageURL, "error", err)
	}

	html, err := page.HTML()
	if err != nil {
		return nil, &types.FetchError{URL: pageURL, Err: err, Retryable: true}
	}

	total, err := p.FilteredCount(html)
	if err != nil {
		return nil, err
	}

	for i := 0; i < RequiredClicks(total); i++ {
		if err := page.ClickMatch(loadMoreSel, loadMoreText); err != nil {
			p.logger.Debug("load-more exhausted early",
				"url", pageURL, "click", i, "expected", RequiredClicks(total))
			break
		}
		if err := page.WaitStable(p.settle); err != nil {
			p.logger.Warn("page did not settle after load-more", "url", pageURL, "error", err)
		}
	}

	html, err = page.HTML()
	if err != nil {
		return nil, &types.FetchError{URL: pageURL, Err: err, Retryable: true}
	}

	reviews, err := p.ParseBlocks(html, pageURL)
	if err != nil {
		return nil, err
	}

	p.logger.Debug("reviews collected",
		"url", pageURL, "advertised", total, "parsed", len(reviews))
	return reviews, nil
}

// FilteredCount reads the review count badge from the active filter button.
// The badge is the last whitespace-separated token of the last filter
// button's text.
func (p *ReviewsParser) FilteredCount(html string) (int, error) {
	doc, err := htmlquery.Parse(strings.NewReader(html))
	if err != nil {
		return 0, &types.ParseError{Selector: filterButtonXPath, Err: err}
	}

	nodes, err := htmlquery.QueryAll(doc, filterButtonXPath)
	if err != nil {
		return 0, &types.ParseError{Selector: filterButtonXPath, Err: err}
	}
	if len(nodes) == 0 {
		return 0, nil
	}
	return badgeNumber(nodes[len(nodes)-1]), nil
}

// badgeNumber reads the trailing numeric token of a filter button's text,
// e.g. "Только к этой модели 14" yields 14.
func badgeNumber(node *html.Node) int {
	fields := strings.Fields(htmlquery.InnerText(node))
	if len(fields) == 0 {
		return 0
	}
	n, err := strconv.Atoi(fields[len(fields)-1])
	if err != nil {
		return 0
	}
	return n
}

// ParseBlocks extracts every review block from a fully revealed page.
func (p *ReviewsParser) ParseBlocks(html, pageURL string) ([]types.Review, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, &types.ParseError{URL: pageURL, Selector: opinionBlockSel, Err: err}
	}

	reviews := []types.Review{}
	doc.Find(opinionBlockSel).Each(func(_ int, block *goquery.Selection) {
		reviews = append(reviews, parseReviewBlock(block))
	})
	return reviews, nil
}

// parseReviewBlock reads a single opinion block.
func parseReviewBlock(block *goquery.Selection) types.Review {
	review := types.Review{
		Author:          textOr(block.Find(authorSel).First(), authorAnonymous),
		Date:            strings.TrimSpace(block.Find(opinionDateSel).First().Text()),
		Stars:           block.Find(starSelectedSel).Length(),
		CategoryRatings: parseCategoryRatings(block),
		UsagePeriod:     strings.TrimSpace(block.Find(usageSel).First().Text()),
	}

	if _, ok := block.Find("[data-real-buyer]").First().Attr("data-real-buyer"); ok {
		review.VerifiedBuyer = true
	}

	block.Find(opinionTextSel).Each(func(_ int, sel *goquery.Selection) {
		title := strings.TrimSpace(sel.Find(".ow-opinion__text-title").First().Text())
		desc := strings.TrimSpace(sel.Find(".ow-opinion__text-desc").First().Text())
		switch title {
		case prosHeading:
			review.Pros = desc
		case consHeading:
			review.Cons = desc
		case commentHeading:
			review.Comment = desc
		}
	})

	return review
}

// parseCategoryRatings reads the per-aspect rating tabs. The first tab is the
// overall score already captured by the star count and is skipped.
func parseCategoryRatings(block *goquery.Selection) map[string]int {
	ratings := map[string]int{}
	block.Find(ratingTabSel).Each(func(i int, tab *goquery.Selection) {
		if i == 0 {
			return
		}
		name := strings.TrimSpace(tab.Find(ratingTabNameSel).First().Text())
		name = strings.TrimRight(name, ":")
		if name == "" {
			return
		}
		numText := strings.TrimSpace(tab.Find("span").First().Text())
		n, err := strconv.Atoi(numText)
		if err != nil {
			return
		}
		ratings[name] = n
	})
	return ratings
}
