package docstore

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"
)

// MemoryStore provides in-memory document storage. It is used when no
// backend is configured and by tests.
type MemoryStore struct {
	mu    sync.RWMutex
	colls map[string]*memoryCollection
}

type memoryCollection struct {
	docs  map[string]Document
	order []string // insertion order, for stable unordered queries
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{colls: make(map[string]*memoryCollection)}
}

func (s *MemoryStore) collection(name string) *memoryCollection {
	c, ok := s.colls[name]
	if !ok {
		c = &memoryCollection{docs: make(map[string]Document)}
		s.colls[name] = c
	}
	return c
}

func (s *MemoryStore) Get(ctx context.Context, collection, id string) (Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.colls[collection]
	if !ok {
		return nil, nil
	}
	doc, ok := c.docs[id]
	if !ok {
		return nil, nil
	}
	return cloneDoc(doc), nil
}

func (s *MemoryStore) Create(ctx context.Context, collection, id string, fields Document) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	c := s.collection(collection)
	if _, exists := c.docs[id]; exists {
		return nil
	}
	c.docs[id] = cloneDoc(fields)
	c.order = append(c.order, id)
	return nil
}

func (s *MemoryStore) Update(ctx context.Context, collection, id string, fields Document) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.colls[collection]
	if !ok {
		return ErrNotFound
	}
	doc, ok := c.docs[id]
	if !ok {
		return ErrNotFound
	}
	for k, v := range cloneDoc(fields) {
		doc[k] = v
	}
	return nil
}

func (s *MemoryStore) Increment(ctx context.Context, collection, id, field string, delta int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.colls[collection]
	if !ok {
		return ErrNotFound
	}
	doc, ok := c.docs[id]
	if !ok {
		return ErrNotFound
	}

	// Walk dotted paths, creating intermediate maps as needed.
	parts := strings.Split(field, ".")
	target := doc
	for _, p := range parts[:len(parts)-1] {
		next, ok := target[p].(Document)
		if !ok {
			if m, ok := target[p].(map[string]any); ok {
				next = Document(m)
			} else {
				next = Document{}
			}
			target[p] = next
		}
		target = next
	}
	leaf := parts[len(parts)-1]
	target[leaf] = Int(target, leaf) + delta
	return nil
}

func (s *MemoryStore) QueryDocs(ctx context.Context, collection string, q Query) ([]Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.colls[collection]
	if !ok {
		return nil, nil
	}

	matched := make([]Document, 0)
	for _, id := range c.order {
		doc := c.docs[id]
		if matchesFilters(doc, q.Filters) {
			matched = append(matched, cloneDoc(doc))
		}
	}

	if q.OrderBy != "" {
		sortDocs(matched, q.OrderBy, q.Desc)
	}
	if q.Limit > 0 && len(matched) > q.Limit {
		matched = matched[:q.Limit]
	}
	return matched, nil
}

func matchesFilters(doc Document, filters []Filter) bool {
	for _, f := range filters {
		if !valuesEqual(doc[f.Field], f.Value) {
			return false
		}
	}
	return true
}

func valuesEqual(a, b any) bool {
	if a == b {
		return true
	}
	// Numeric fields may come back as a different width than they went in.
	switch av := a.(type) {
	case int, int64, float64:
		switch b.(type) {
		case int, int64, float64:
			return toFloat(av) == toFloat(b)
		}
	case string:
		if bv, ok := b.(string); ok {
			return av == bv
		}
	}
	return false
}

func toFloat(v any) float64 {
	switch n := v.(type) {
	case int:
		return float64(n)
	case int64:
		return float64(n)
	case float64:
		return n
	}
	return 0
}

func sortDocs(docs []Document, field string, desc bool) {
	sort.SliceStable(docs, func(i, j int) bool {
		less := compareValues(docs[i][field], docs[j][field]) < 0
		if desc {
			return !less && compareValues(docs[i][field], docs[j][field]) != 0
		}
		return less
	})
}

func compareValues(a, b any) int {
	if at, ok := asTime(a); ok {
		if bt, ok := asTime(b); ok {
			return at.Compare(bt)
		}
	}
	switch av := a.(type) {
	case string:
		bv, _ := b.(string)
		return strings.Compare(av, bv)
	case int, int64, float64:
		af, bf := toFloat(av), toFloat(b)
		switch {
		case af < bf:
			return -1
		case af > bf:
			return 1
		}
		return 0
	}
	return 0
}

func asTime(v any) (time.Time, bool) {
	switch t := v.(type) {
	case time.Time:
		return t, true
	case string:
		if parsed, err := time.Parse(time.RFC3339Nano, t); err == nil {
			return parsed, true
		}
	}
	return time.Time{}, false
}

// cloneDoc deep-copies a document so callers never alias stored state.
func cloneDoc(d Document) Document {
	out := make(Document, len(d))
	for k, v := range d {
		switch nested := v.(type) {
		case Document:
			out[k] = cloneDoc(nested)
		case map[string]any:
			out[k] = cloneDoc(Document(nested))
		case []string:
			out[k] = append([]string(nil), nested...)
		case []any:
			out[k] = append([]any(nil), nested...)
		default:
			out[k] = v
		}
	}
	return out
}
