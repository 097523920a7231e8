package store

import (
	"context"
	"fmt"
	"sort"
	"sync"
)

// MemoryStore keeps collections in process memory. Used by the offline
// backend and by tests.
type MemoryStore struct {
	mu          sync.RWMutex
	collections map[string]*memCollection
}

type memCollection struct {
	dimension int
	metric    string
	records   map[string]Record
}

var _ VectorStorer = (*MemoryStore)(nil)

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{collections: make(map[string]*memCollection)}
}

func (m *MemoryStore) ListCollections(ctx context.Context) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	names := make([]string, 0, len(m.collections))
	for name := range m.collections {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

func (m *MemoryStore) CreateCollection(ctx context.Context, name string, dimension int, metric string) error {
	if dimension <= 0 {
		return fmt.Errorf("invalid dimension %d", dimension)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.collections[name]; ok {
		return fmt.Errorf("collection %q already exists", name)
	}
	m.collections[name] = &memCollection{
		dimension: dimension,
		metric:    metric,
		records:   make(map[string]Record),
	}
	return nil
}

func (m *MemoryStore) DeleteCollection(ctx context.Context, name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.collections[name]; !ok {
		return fmt.Errorf("%w: %s", ErrCollectionNotFound, name)
	}
	delete(m.collections, name)
	return nil
}

func (m *MemoryStore) Upsert(ctx context.Context, collection string, records []Record) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.collections[collection]
	if !ok {
		return 0, fmt.Errorf("%w: %s", ErrCollectionNotFound, collection)
	}
	for _, r := range records {
		if len(r.Values) != c.dimension {
			return 0, fmt.Errorf("record %s: dimension %d, want %d", r.ID, len(r.Values), c.dimension)
		}
	}
	for _, r := range records {
		values := append([]float32(nil), r.Values...)
		c.records[r.ID] = Record{ID: r.ID, Values: values, Metadata: r.Metadata}
	}
	return len(records), nil
}

func (m *MemoryStore) Query(ctx context.Context, collection string, vector []float32, topK int, includeMetadata bool) ([]Match, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	c, ok := m.collections[collection]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrCollectionNotFound, collection)
	}
	if len(vector) != c.dimension {
		return nil, fmt.Errorf("query dimension %d, want %d", len(vector), c.dimension)
	}
	matches := make([]Match, 0, len(c.records))
	for _, r := range c.records {
		match := Match{ID: r.ID, Score: Cosine(vector, r.Values)}
		if includeMetadata {
			match.Metadata = r.Metadata
		}
		matches = append(matches, match)
	}
	sort.Slice(matches, func(i, j int) bool {
		if matches[i].Score != matches[j].Score {
			return matches[i].Score > matches[j].Score
		}
		return matches[i].ID < matches[j].ID
	})
	if topK > 0 && len(matches) > topK {
		matches = matches[:topK]
	}
	return matches, nil
}

func (m *MemoryStore) Describe(ctx context.Context, collection string) (Stats, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	c, ok := m.collections[collection]
	if !ok {
		return Stats{}, fmt.Errorf("%w: %s", ErrCollectionNotFound, collection)
	}
	return Stats{TotalVectorCount: len(c.records), Dimension: c.dimension}, nil
}
