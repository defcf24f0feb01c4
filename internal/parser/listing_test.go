package parser

import (
	"log/slog"
	"testing"
)

func testLogger() *slog.Logger {
	return slog.Default()
}

func TestMaxPage(t *testing.T) {
	tests := []struct {
		name string
		html string
		want int
	}{
		{
			name: "multiple pages",
			html: `<ul>
				<li class="pagination-widget__page" data-page-number="1"></li>
				<li class="pagination-widget__page" data-page-number="2"></li>
				<li class="pagination-widget__page" data-page-number="3"></li>
			</ul>`,
			want: 3,
		},
		{
			name: "unordered controls",
			html: `<ul>
				<li class="pagination-widget__page" data-page-number="7"></li>
				<li class="pagination-widget__page" data-page-number="2"></li>
			</ul>`,
			want: 7,
		},
		{
			name: "single control is a single page",
			html: `<ul><li class="pagination-widget__page" data-page-number="5"></li></ul>`,
			want: 1,
		},
		{
			name: "no widget",
			html: `<div>no pagination here</div>`,
			want: 1,
		},
		{
			name: "non-numeric attributes ignored",
			html: `<ul>
				<li class="pagination-widget__page" data-page-number="next"></li>
				<li class="pagination-widget__page" data-page-number="4"></li>
			</ul>`,
			want: 4,
		},
	}

	p := NewListingParser(testLogger())
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := p.MaxPage(tt.html)
			if err != nil {
				t.Fatalf("MaxPage: %v", err)
			}
			if got != tt.want {
				t.Errorf("MaxPage = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestProductLinks(t *testing.T) {
	html := `<div>
		<a class="catalog-product__name ui-link ui-link_black" href="/product/widget-9000/"></a>
		<a class="catalog-product__name ui-link ui-link_black" href="https://shop.example/product/gadget-x/?utm=promo"></a>
		<a class="ui-link" href="/not-a-product/"></a>
	</div>`

	p := NewListingParser(testLogger())
	links, err := p.ProductLinks(html, "https://shop.example/catalog/phones/?p=2")
	if err != nil {
		t.Fatalf("ProductLinks: %v", err)
	}
	if len(links) != 2 {
		t.Fatalf("got %d links, want 2", len(links))
	}

	if links[0].Canonical != "https://shop.example/product/widget-9000" {
		t.Errorf("canonical[0] = %q", links[0].Canonical)
	}
	if links[0].CharacteristicsURL != "https://shop.example/product/widget-9000/characteristics/" {
		t.Errorf("characteristics[0] = %q", links[0].CharacteristicsURL)
	}
	if links[0].ReviewsURL != "https://shop.example/product/widget-9000/opinion/" {
		t.Errorf("reviews[0] = %q", links[0].ReviewsURL)
	}

	// Query strings never survive canonicalization.
	if links[1].Canonical != "https://shop.example/product/gadget-x" {
		t.Errorf("canonical[1] = %q", links[1].Canonical)
	}
}

func TestProductLinksEmptyPage(t *testing.T) {
	p := NewListingParser(testLogger())
	links, err := p.ProductLinks("<html><body></body></html>", "https://shop.example/catalog/")
	if err != nil {
		t.Fatalf("ProductLinks: %v", err)
	}
	if len(links) != 0 {
		t.Errorf("got %d links from empty page, want 0", len(links))
	}
}
