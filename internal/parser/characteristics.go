package parser

import (
	"log/slog"
	"regexp"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/avkuzmin/techharvest/internal/types"
)

// Characteristics page selectors.
const (
	nameSel        = "h1.title"
	priceSel       = "div.product-buy__price"
	prevPriceSel   = "span.product-buy__prev"
	ratingSel      = "a.header-product__link_rating"
	descriptionSel = "div.product-card-description-text"
	categoryAttr   = "data-go-back-catalog"
	specTitleSel   = "div.product-characteristics__spec-title"
	specValueSel   = "div.product-characteristics__spec-value"
)

// Fallback tokens the site's own pages use for absent fields.
const (
	nameMissing        = "Не указано"
	categoryMissing    = "Не указана"
	ratingMissing      = "Нет рейтинга"
	descriptionMissing = "Описание отсутствует"

	// nameLabel is injected into the page heading and must be stripped.
	nameLabel = "Характеристики"
)

var nonPriceChars = regexp.MustCompile(`[^\d\s]`)

// CharacteristicsParser extracts the flat product record from a product's
// characteristics page.
type CharacteristicsParser struct {
	logger *slog.Logger
}

// NewCharacteristicsParser creates a new characteristics parser.
func NewCharacteristicsParser(logger *slog.Logger) *CharacteristicsParser {
	return &CharacteristicsParser{logger: logger.With("component", "characteristics_parser")}
}

// Parse builds a partial ProductDocument (no reviews yet) from the page
// markup. pageURL is the characteristics-page URL; the document's SourceURL
// is the canonical product URL with the suffix removed.
func (p *CharacteristicsParser) Parse(html, pageURL string) (*types.ProductDocument, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, &types.ParseError{URL: pageURL, Err: err}
	}

	sourceURL := types.CanonicalURL(strings.Replace(pageURL, characteristicsSuffix, "/", 1))

	out := &types.ProductDocument{
		ID:              types.ContentID(sourceURL),
		SourceURL:       sourceURL,
		Name:            p.parseName(doc),
		Price:           p.parsePrice(doc),
		Rating:          textOr(doc.Find(ratingSel).First(), ratingMissing),
		Description:     textOr(doc.Find(descriptionSel).First(), descriptionMissing),
		Category:        p.parseCategory(doc),
		Characteristics: p.parseSpecs(doc),
	}

	return out, nil
}

// parseName reads the heading and strips the injected label token.
func (p *CharacteristicsParser) parseName(doc *goquery.Document) string {
	raw := textOr(doc.Find(nameSel).First(), nameMissing)
	return strings.TrimSpace(strings.ReplaceAll(raw, nameLabel, ""))
}

// parsePrice reads the active price. The previous-price sub-element of a
// discounted item is removed before reading, so the old price never
// contaminates the value. Absence of a price element yields 0.
func (p *CharacteristicsParser) parsePrice(doc *goquery.Document) int {
	priceDiv := doc.Find(priceSel).First()
	if priceDiv.Length() == 0 {
		return 0
	}

	priceDiv.Find(prevPriceSel).Remove()

	text := strings.ReplaceAll(priceDiv.Text(), "\u00a0", " ")
	digits := strings.Join(strings.Fields(nonPriceChars.ReplaceAllString(text, "")), "")
	n, err := strconv.Atoi(digits)
	if err != nil {
		return 0
	}
	return n
}

// parseCategory finds the first breadcrumb span carrying the back-navigation
// marker attribute.
func (p *CharacteristicsParser) parseCategory(doc *goquery.Document) string {
	category := categoryMissing
	doc.Find("span").EachWithBreak(func(_ int, sel *goquery.Selection) bool {
		if _, ok := sel.Attr(categoryAttr); !ok {
			return true
		}
		category = strings.TrimLeft(strings.TrimSpace(sel.Text()), ": ")
		return false
	})
	return category
}

// parseSpecs pairs spec titles with spec values positionally. A count
// mismatch truncates to the shorter sequence.
func (p *CharacteristicsParser) parseSpecs(doc *goquery.Document) map[string]string {
	titles := doc.Find(specTitleSel)
	values := doc.Find(specValueSel)

	n := titles.Length()
	if values.Length() < n {
		n = values.Length()
	}

	specs := make(map[string]string, n)
	for i := 0; i < n; i++ {
		title := strings.TrimSpace(titles.Eq(i).Text())
		if title == "" {
			continue
		}
		specs[title] = strings.TrimSpace(values.Eq(i).Text())
	}
	return specs
}

// textOr returns the trimmed text of a selection, or the fallback when the
// selection is empty or blank.
func textOr(sel *goquery.Selection, fallback string) string {
	if sel.Length() == 0 {
		return fallback
	}
	text := strings.TrimSpace(sel.Text())
	if text == "" {
		return fallback
	}
	return text
}
