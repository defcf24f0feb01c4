package etl

import (
	"sort"

	"github.com/avkuzmin/techharvest/internal/types"
)

// ProductRow is one row of the products relation: everything about a product
// that fits one line, keyed by a stable numeric ID derived from the content
// ID.
type ProductRow struct {
	ID           int64  `parquet:"id" json:"id"`
	Category     string `parquet:"category" json:"category"`
	Name         string `parquet:"name" json:"name"`
	Price        int64  `parquet:"price" json:"price"`
	Rating       string `parquet:"rating" json:"rating"`
	URL          string `parquet:"url" json:"url"`
	Description  string `parquet:"description" json:"description"`
	TotalReviews int64  `parquet:"total_reviews" json:"total_reviews"`
}

// SpecRow is one characteristic of one product.
type SpecRow struct {
	ProductID int64  `parquet:"product_id" json:"product_id"`
	Key       string `parquet:"key" json:"key"`
	Value     string `parquet:"value" json:"value"`
}

// ReviewRow is one review of one product.
type ReviewRow struct {
	ProductID int64  `parquet:"product_id" json:"product_id"`
	Author    string `parquet:"author" json:"author"`
	Date      string `parquet:"date" json:"date"`
	Verified  bool   `parquet:"verified" json:"verified"`
	Stars     int32  `parquet:"stars" json:"stars"`
	Usage     string `parquet:"usage" json:"usage"`
	Pros      string `parquet:"pros" json:"pros"`
	Cons      string `parquet:"cons" json:"cons"`
	Comment   string `parquet:"comment" json:"comment"`
}

// Relations is one consistent snapshot of the three columnar relations.
type Relations struct {
	Products []ProductRow
	Specs    []SpecRow
	Reviews  []ReviewRow
}

// Forward flattens documents into the three relations. Output ordering is
// deterministic: products sort by ID, and child rows follow their parent's
// order (specs additionally sort by key within a product).
func Forward(docs []*types.ProductDocument) *Relations {
	rel := &Relations{
		Products: make([]ProductRow, 0, len(docs)),
		Specs:    []SpecRow{},
		Reviews:  []ReviewRow{},
	}

	sorted := make([]*types.ProductDocument, len(docs))
	copy(sorted, docs)
	sort.Slice(sorted, func(i, j int) bool {
		return types.RelationID(sorted[i].ID) < types.RelationID(sorted[j].ID)
	})

	for _, doc := range sorted {
		id := types.RelationID(doc.ID)
		rel.Products = append(rel.Products, ProductRow{
			ID:           id,
			Category:     doc.Category,
			Name:         doc.Name,
			Price:        int64(doc.Price),
			Rating:       doc.Rating,
			URL:          doc.SourceURL,
			Description:  doc.Description,
			TotalReviews: int64(doc.TotalReviews),
		})

		keys := make([]string, 0, len(doc.Characteristics))
		for k := range doc.Characteristics {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			rel.Specs = append(rel.Specs, SpecRow{ProductID: id, Key: k, Value: doc.Characteristics[k]})
		}

		for _, review := range doc.Reviews {
			rel.Reviews = append(rel.Reviews, ReviewRow{
				ProductID: id,
				Author:    review.Author,
				Date:      review.Date,
				Verified:  review.VerifiedBuyer,
				Stars:     int32(review.Stars),
				Usage:     review.UsagePeriod,
				Pros:      review.Pros,
				Cons:      review.Cons,
				Comment:   review.Comment,
			})
		}
	}

	return rel
}

// Reverse reassembles documents from the relations by joining child rows to
// their parent. Products with no specs get an empty map, not nil; products
// with no reviews get an empty slice. Orphan child rows without a parent are
// dropped. Per-aspect review ratings and revision counters do not survive the
// columnar form and come back zero-valued.
func Reverse(rel *Relations) []*types.ProductDocument {
	byID := make(map[int64]*types.ProductDocument, len(rel.Products))
	docs := make([]*types.ProductDocument, 0, len(rel.Products))

	for _, row := range rel.Products {
		doc := &types.ProductDocument{
			ID:              types.ContentID(row.URL),
			Category:        row.Category,
			Name:            row.Name,
			Price:           int(row.Price),
			Rating:          row.Rating,
			SourceURL:       row.URL,
			Description:     row.Description,
			Characteristics: map[string]string{},
			Reviews:         []types.Review{},
			TotalReviews:    int(row.TotalReviews),
		}
		byID[row.ID] = doc
		docs = append(docs, doc)
	}

	for _, row := range rel.Specs {
		doc, ok := byID[row.ProductID]
		if !ok {
			continue
		}
		doc.Characteristics[row.Key] = row.Value
	}

	for _, row := range rel.Reviews {
		doc, ok := byID[row.ProductID]
		if !ok {
			continue
		}
		doc.Reviews = append(doc.Reviews, types.Review{
			Author:          row.Author,
			Date:            row.Date,
			VerifiedBuyer:   row.Verified,
			Stars:           int(row.Stars),
			CategoryRatings: map[string]int{},
			UsagePeriod:     row.Usage,
			Pros:            row.Pros,
			Cons:            row.Cons,
			Comment:         row.Comment,
		})
	}

	return docs
}
