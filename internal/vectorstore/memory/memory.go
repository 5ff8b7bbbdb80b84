// Package memory is an in-process vector store using brute-force cosine distance.
package memory

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"math"
	"slices"
	"sort"
	"sync"

	"pdfchat/internal/domain"
	"pdfchat/internal/vectorstore"
)

type collection struct {
	distance  vectorstore.Distance
	dimension int
	records   []vectorstore.Record
	ids       map[string]struct{}
}

// Storage keeps every collection in memory for the lifetime of the process.
type Storage struct {
	mu          sync.RWMutex
	collections map[string]*collection
}

var _ vectorstore.Backend = (*Storage)(nil)

func NewStorage() *Storage {
	return &Storage{collections: make(map[string]*collection)}
}

func (s *Storage) CreateCollection(_ context.Context, name string, distance vectorstore.Distance) (vectorstore.Collection, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.collections[name]; ok {
		return vectorstore.Collection{}, domain.NewIndexError(domain.KindAlreadyExists, name, nil)
	}
	if distance == "" {
		distance = vectorstore.Cosine
	}
	s.collections[name] = &collection{distance: distance, ids: make(map[string]struct{})}
	return vectorstore.Collection{Name: name, Distance: distance}, nil
}

func (s *Storage) GetCollection(_ context.Context, name string) (vectorstore.Collection, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.collections[name]
	if !ok {
		return vectorstore.Collection{}, domain.NewIndexError(domain.KindNotFound, name, nil)
	}
	return vectorstore.Collection{Name: name, Distance: c.distance}, nil
}

func (s *Storage) DeleteCollection(_ context.Context, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.collections[name]; !ok {
		return domain.NewIndexError(domain.KindNotFound, name, nil)
	}
	delete(s.collections, name)
	return nil
}

func (s *Storage) ListCollections(_ context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	names := slices.Collect(maps.Keys(s.collections))
	sort.Strings(names)
	return names, nil
}

func (s *Storage) Count(_ context.Context, name string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.collections[name]
	if !ok {
		return 0, domain.NewIndexError(domain.KindNotFound, name, nil)
	}
	return len(c.records), nil
}

// Insert stores rec. The first record fixes the collection dimension.
func (s *Storage) Insert(_ context.Context, name string, rec vectorstore.Record) error {
	if rec.ID == "" {
		return domain.NewIndexError(domain.KindInvalid, name, errors.New("record id is required"))
	}
	if len(rec.Vector) == 0 {
		return domain.NewIndexError(domain.KindInvalid, name, fmt.Errorf("record %q has no vector", rec.ID))
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.collections[name]
	if !ok {
		return domain.NewIndexError(domain.KindNotFound, name, nil)
	}
	if _, dup := c.ids[rec.ID]; dup {
		return domain.NewIndexError(domain.KindAlreadyExists, name, fmt.Errorf("record %q", rec.ID))
	}
	if c.dimension == 0 {
		c.dimension = len(rec.Vector)
	} else if len(rec.Vector) != c.dimension {
		return domain.NewIndexError(domain.KindInvalid, name,
			fmt.Errorf("record %q: vector dimension %d, want %d", rec.ID, len(rec.Vector), c.dimension))
	}
	c.records = append(c.records, vectorstore.Record{
		ID:       rec.ID,
		Text:     rec.Text,
		Vector:   slices.Clone(rec.Vector),
		Metadata: maps.Clone(rec.Metadata),
	})
	c.ids[rec.ID] = struct{}{}
	return nil
}

// Query ranks records by cosine distance; equal distances keep insertion order.
func (s *Storage) Query(_ context.Context, name string, vector []float32, k int) ([]vectorstore.Match, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.collections[name]
	if !ok {
		return nil, domain.NewIndexError(domain.KindNotFound, name, nil)
	}
	if len(c.records) == 0 || k <= 0 {
		return []vectorstore.Match{}, nil
	}
	if len(vector) != c.dimension {
		return nil, domain.NewIndexError(domain.KindInvalid, name,
			fmt.Errorf("query dimension %d, want %d", len(vector), c.dimension))
	}
	matches := make([]vectorstore.Match, len(c.records))
	for i, rec := range c.records {
		matches[i] = vectorstore.Match{
			ID:       rec.ID,
			Text:     rec.Text,
			Distance: cosineDistance(rec.Vector, vector),
			Metadata: maps.Clone(rec.Metadata),
		}
	}
	sort.SliceStable(matches, func(i, j int) bool { return matches[i].Distance < matches[j].Distance })
	if k > len(matches) {
		k = len(matches)
	}
	return matches[:k], nil
}

// cosineDistance is 1 - cos(a, b); a zero vector is at distance 1 from everything.
func cosineDistance(a, b []float32) float64 {
	var dot, na, nb float64
	for i := range a {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		na += x * x
		nb += y * y
	}
	if na == 0 || nb == 0 {
		return 1
	}
	return 1 - dot/(math.Sqrt(na)*math.Sqrt(nb))
}
