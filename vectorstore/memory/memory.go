// Package memory is a brute-force cosine-similarity vector store. It is
// the default backend and the one the test suite runs against.
package memory

import (
	"context"
	"math"
	"sort"
	"sync"

	"github.com/queryquack/queryquack/vectorstore"
)

type Store struct {
	mu        sync.RWMutex
	dimension int
	records   map[string][]vectorstore.Record // keyed by namespace
}

func New(dimension int) *Store {
	return &Store{
		dimension: dimension,
		records:   make(map[string][]vectorstore.Record),
	}
}

func (s *Store) Upsert(_ context.Context, namespace string, records []vectorstore.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, r := range records {
		if len(r.Values) != s.dimension {
			return vectorstore.ErrDimensionMismatch
		}
	}

	existing := s.records[namespace]
	for _, r := range records {
		replaced := false
		for i := range existing {
			if existing[i].ID == r.ID {
				existing[i] = r
				replaced = true
				break
			}
		}
		if !replaced {
			existing = append(existing, r)
		}
	}
	s.records[namespace] = existing
	return nil
}

func (s *Store) Query(_ context.Context, namespace string, vector []float32, topK int) ([]vectorstore.Match, error) {
	if len(vector) != s.dimension {
		return nil, vectorstore.ErrDimensionMismatch
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	records := s.records[namespace]
	matches := make([]vectorstore.Match, 0, len(records))
	for _, r := range records {
		matches = append(matches, vectorstore.Match{
			ID:       r.ID,
			Score:    cosine(vector, r.Values),
			Metadata: r.Metadata,
		})
	}

	sort.SliceStable(matches, func(i, j int) bool { return matches[i].Score > matches[j].Score })
	if topK > 0 && topK < len(matches) {
		matches = matches[:topK]
	}
	return matches, nil
}

func (s *Store) Delete(_ context.Context, namespace string, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	drop := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		drop[id] = struct{}{}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	records := s.records[namespace]
	kept := records[:0]
	for _, r := range records {
		if _, gone := drop[r.ID]; !gone {
			kept = append(kept, r)
		}
	}
	s.records[namespace] = kept
	return nil
}

func (s *Store) DeleteNamespace(_ context.Context, namespace string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.records, namespace)
	return nil
}

func (s *Store) Close() error { return nil }

// Count reports how many records live in a namespace.
func (s *Store) Count(namespace string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records[namespace])
}

func cosine(a, b []float32) float64 {
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}
