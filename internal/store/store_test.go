package store

import (
	"bytes"
	"context"
	"log/slog"
	"testing"

	"github.com/avkuzmin/techharvest/internal/types"
)

func testDoc(url string) *types.ProductDocument {
	canonical := types.CanonicalURL(url)
	return &types.ProductDocument{
		ID:              types.ContentID(canonical),
		Category:        "Смартфоны",
		Name:            "Widget 9000",
		Price:           49999,
		Rating:          "4.85",
		SourceURL:       canonical,
		Description:     "Флагман",
		Characteristics: map[string]string{"Вес": "190 г"},
		Reviews: []types.Review{
			{Author: "Иван", Stars: 5, Pros: "Экран", Cons: "", Comment: ""},
			{Author: "Аноним", Stars: 1, Pros: " ...;; ", Cons: "", Comment: ""},
		},
	}
}

func TestMemoryStoreUpsert(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore(slog.Default())

	doc := testDoc("https://shop.example/product/widget-9000/")
	if err := s.Upsert(ctx, doc); err != nil {
		t.Fatalf("Upsert: %v", err)
	}

	// The all-junk review cleans to empty and is dropped; the total tracks
	// what was kept.
	if len(doc.Reviews) != 1 {
		t.Fatalf("retained %d reviews, want 1", len(doc.Reviews))
	}
	if doc.TotalReviews != len(doc.Reviews) {
		t.Errorf("TotalReviews = %d, retained = %d", doc.TotalReviews, len(doc.Reviews))
	}
	if doc.Revision != 1 {
		t.Errorf("Revision = %d, want 1", doc.Revision)
	}

	ok, err := s.Exists(ctx, doc.ID)
	if err != nil || !ok {
		t.Fatalf("Exists = %v, %v", ok, err)
	}

	// Replacing the same document bumps the revision, never the count.
	again := testDoc("https://shop.example/product/widget-9000/")
	if err := s.Upsert(ctx, again); err != nil {
		t.Fatalf("second Upsert: %v", err)
	}
	if again.Revision != 2 {
		t.Errorf("Revision = %d, want 2", again.Revision)
	}

	n, err := s.Count(ctx)
	if err != nil {
		t.Fatalf("Count: %v", err)
	}
	if n != 1 {
		t.Errorf("Count = %d, want 1", n)
	}
}

func TestMemoryStoreScanAndReset(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore(slog.Default())

	for _, u := range []string{
		"https://shop.example/product/a/",
		"https://shop.example/product/b/",
		"https://shop.example/product/c/",
	} {
		if err := s.Upsert(ctx, testDoc(u)); err != nil {
			t.Fatalf("Upsert: %v", err)
		}
	}

	seen := 0
	err := s.ScanAll(ctx, func(*types.ProductDocument) error {
		seen++
		return nil
	})
	if err != nil {
		t.Fatalf("ScanAll: %v", err)
	}
	if seen != 3 {
		t.Errorf("scanned %d docs, want 3", seen)
	}

	if err := s.DeleteAll(ctx); err != nil {
		t.Fatalf("DeleteAll: %v", err)
	}
	n, _ := s.Count(ctx)
	if n != 0 {
		t.Errorf("Count after reset = %d, want 0", n)
	}
}

func TestExportImportRoundTrip(t *testing.T) {
	ctx := context.Background()
	src := NewMemoryStore(slog.Default())

	docA := testDoc("https://shop.example/product/a/")
	docB := testDoc("https://shop.example/product/b/")
	docB.Name = "Gadget X"
	for _, d := range []*types.ProductDocument{docA, docB} {
		if err := src.Upsert(ctx, d); err != nil {
			t.Fatalf("Upsert: %v", err)
		}
	}

	var buf bytes.Buffer
	n, err := Export(ctx, src, &buf)
	if err != nil {
		t.Fatalf("Export: %v", err)
	}
	if n != 2 {
		t.Fatalf("exported %d docs, want 2", n)
	}

	dst := NewMemoryStore(slog.Default())
	imported, err := Import(ctx, dst, &buf)
	if err != nil {
		t.Fatalf("Import: %v", err)
	}
	if imported != 2 {
		t.Fatalf("imported %d docs, want 2", imported)
	}

	ok, _ := dst.Exists(ctx, docB.ID)
	if !ok {
		t.Error("imported store is missing a document")
	}

	var name string
	_ = dst.ScanAll(ctx, func(d *types.ProductDocument) error {
		if d.ID == docB.ID {
			name = d.Name
		}
		return nil
	})
	if name != "Gadget X" {
		t.Errorf("round-tripped name = %q", name)
	}
}
