package store

import (
	"context"

	"github.com/avkuzmin/techharvest/internal/types"
)

// DocumentStore is the normalized product archive. Upsert scrubs review text
// and keys on the document's content ID, so re-crawling an unchanged catalog
// is idempotent.
type DocumentStore interface {
	// Upsert inserts or replaces the document keyed by its ID. The stored
	// revision counter increases on every replace.
	Upsert(ctx context.Context, doc *types.ProductDocument) error

	// Exists reports whether a document with the given content ID is
	// already stored.
	Exists(ctx context.Context, id string) (bool, error)

	// ScanAll streams every stored document to fn. Iteration stops on the
	// first error fn returns.
	ScanAll(ctx context.Context, fn func(*types.ProductDocument) error) error

	// Count returns the number of stored documents.
	Count(ctx context.Context) (int64, error)

	// DeleteAll removes every document. Used by the reset command and
	// tests only.
	DeleteAll(ctx context.Context) error

	Close(ctx context.Context) error
}

// Prepare scrubs a document in place before persistence: review text is
// cleaned, empty reviews are dropped, and the review total is recomputed from
// what was actually retained.
func Prepare(doc *types.ProductDocument) {
	retained := make([]types.Review, 0, len(doc.Reviews))
	for _, review := range doc.Reviews {
		review.Pros = CleanText(review.Pros)
		review.Cons = CleanText(review.Cons)
		review.Comment = CleanText(review.Comment)
		if !review.HasText() {
			continue
		}
		retained = append(retained, review)
	}
	doc.Reviews = retained
	doc.TotalReviews = len(retained)
}
