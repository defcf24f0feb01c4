package parser

import (
	"log/slog"
	"net/url"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/avkuzmin/techharvest/internal/types"
)

// Listing page selectors.
const (
	paginationSel  = "li.pagination-widget__page"
	productLinkSel = "a.catalog-product__name.ui-link.ui-link_black"

	characteristicsSuffix = "/characteristics/"
	reviewsSuffix         = "/opinion/"
)

// ProductLink is one product discovered on a listing page: the canonical URL
// plus the two derived detail-view URLs. The slices returned by ParseListing
// keep characteristics and reviews URLs index-aligned per product.
type ProductLink struct {
	Canonical          string
	CharacteristicsURL string
	ReviewsURL         string
}

// ListingParser extracts pagination bounds and product links from category
// listing pages.
type ListingParser struct {
	logger *slog.Logger
}

// NewListingParser creates a new listing parser.
func NewListingParser(logger *slog.Logger) *ListingParser {
	return &ListingParser{logger: logger.With("component", "listing_parser")}
}

// MaxPage returns the highest page number advertised by the pagination
// widget. A page with fewer than two pagination controls is a single page.
func (p *ListingParser) MaxPage(html string) (int, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return 0, &types.ParseError{Selector: paginationSel, Err: err}
	}

	maxPage := 1
	pages := doc.Find(paginationSel)
	if pages.Length() >= 2 {
		pages.Each(func(_ int, sel *goquery.Selection) {
			attr, ok := sel.Attr("data-page-number")
			if !ok {
				return
			}
			n, err := strconv.Atoi(strings.TrimSpace(attr))
			if err != nil {
				return
			}
			if n > maxPage {
				maxPage = n
			}
		})
	}

	return maxPage, nil
}

// ProductLinks extracts every product anchor on the page. Each href is
// resolved against baseURL, canonicalized, and expanded into the two derived
// detail URLs.
func (p *ListingParser) ProductLinks(html, baseURL string) ([]ProductLink, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, &types.ParseError{URL: baseURL, Selector: productLinkSel, Err: err}
	}

	base, err := url.Parse(baseURL)
	if err != nil {
		return nil, &types.ParseError{URL: baseURL, Selector: productLinkSel, Err: err}
	}

	var links []ProductLink
	doc.Find(productLinkSel).Each(func(_ int, sel *goquery.Selection) {
		href, ok := sel.Attr("href")
		if !ok || href == "" {
			return
		}

		ref, err := url.Parse(href)
		if err != nil {
			return
		}

		canonical := types.CanonicalURL(base.ResolveReference(ref).String())
		links = append(links, ProductLink{
			Canonical:          canonical,
			CharacteristicsURL: canonical + characteristicsSuffix,
			ReviewsURL:         canonical + reviewsSuffix,
		})
	})

	if len(links) == 0 {
		p.logger.Debug("no product links on page", "url", baseURL)
	}
	return links, nil
}
