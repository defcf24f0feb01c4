package store

import (
	"context"
	"log/slog"
	"sort"
	"sync"

	"github.com/avkuzmin/techharvest/internal/types"
)

// MemoryStore is an in-process DocumentStore used in tests and for dry runs
// without a database.
type MemoryStore struct {
	mu     sync.RWMutex
	docs   map[string]*types.ProductDocument
	logger *slog.Logger
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore(logger *slog.Logger) *MemoryStore {
	return &MemoryStore{
		docs:   make(map[string]*types.ProductDocument),
		logger: logger.With("component", "memory_store"),
	}
}

func (m *MemoryStore) Upsert(_ context.Context, doc *types.ProductDocument) error {
	Prepare(doc)

	m.mu.Lock()
	defer m.mu.Unlock()

	stored := *doc
	if prev, ok := m.docs[doc.ID]; ok {
		stored.Revision = prev.Revision + 1
	} else {
		stored.Revision = 1
	}
	m.docs[doc.ID] = &stored
	doc.Revision = stored.Revision
	return nil
}

func (m *MemoryStore) Exists(_ context.Context, id string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.docs[id]
	return ok, nil
}

func (m *MemoryStore) ScanAll(ctx context.Context, fn func(*types.ProductDocument) error) error {
	m.mu.RLock()
	ids := make([]string, 0, len(m.docs))
	for id := range m.docs {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	docs := make([]*types.ProductDocument, 0, len(ids))
	for _, id := range ids {
		clone := *m.docs[id]
		docs = append(docs, &clone)
	}
	m.mu.RUnlock()

	for _, doc := range docs {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := fn(doc); err != nil {
			return err
		}
	}
	return nil
}

func (m *MemoryStore) Count(_ context.Context) (int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return int64(len(m.docs)), nil
}

func (m *MemoryStore) DeleteAll(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.docs = make(map[string]*types.ProductDocument)
	return nil
}

func (m *MemoryStore) Close(context.Context) error { return nil }
