package store

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/avkuzmin/techharvest/internal/types"
)

// Export writes every stored document to w as a JSON array.
func Export(ctx context.Context, s DocumentStore, w io.Writer) (int, error) {
	docs := []*types.ProductDocument{}
	err := s.ScanAll(ctx, func(doc *types.ProductDocument) error {
		docs = append(docs, doc)
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("scan: %w", err)
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(docs); err != nil {
		return 0, fmt.Errorf("encode: %w", err)
	}
	return len(docs), nil
}

// ExportFile writes the archive to path, creating the file.
func ExportFile(ctx context.Context, s DocumentStore, path string) (int, error) {
	f, err := os.Create(path)
	if err != nil {
		return 0, fmt.Errorf("create %s: %w", path, err)
	}
	defer f.Close()
	return Export(ctx, s, f)
}

// Import reads a JSON array of documents from r and upserts each one.
// Documents without an ID are rekeyed from their source URL.
func Import(ctx context.Context, s DocumentStore, r io.Reader) (int, error) {
	var docs []*types.ProductDocument
	if err := json.NewDecoder(r).Decode(&docs); err != nil {
		return 0, fmt.Errorf("decode: %w", err)
	}

	imported := 0
	for _, doc := range docs {
		if doc.ID == "" {
			if doc.SourceURL == "" {
				continue
			}
			doc.ID = types.ContentID(types.CanonicalURL(doc.SourceURL))
		}
		if err := s.Upsert(ctx, doc); err != nil {
			return imported, fmt.Errorf("upsert %s: %w", doc.ID, err)
		}
		imported++
	}
	return imported, nil
}

// ImportFile loads an archive previously written by ExportFile.
func ImportFile(ctx context.Context, s DocumentStore, path string) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()
	return Import(ctx, s, f)
}
