// Package vectorstore holds per-document collections of embedded chunks and
// answers nearest-neighbour queries over them.
package vectorstore

import "context"

// Distance is the similarity metric a collection is created with.
type Distance string

const (
	// Cosine distance is 1 - cosine similarity; smaller is closer.
	Cosine Distance = "cosine"
)

// Collection is a handle to a named set of records.
type Collection struct {
	Name     string
	Distance Distance
}

// Record is one embedded chunk.
type Record struct {
	ID       string
	Text     string
	Vector   []float32
	Metadata map[string]any
}

// Match is a query hit.
type Match struct {
	ID       string
	Text     string
	Distance float64
	Metadata map[string]any
}

// Backend is the storage engine behind an Index. Implementations report
// failures as *domain.IndexError so callers can tell missing collections and
// duplicate ids from transient faults.
type Backend interface {
	CreateCollection(ctx context.Context, name string, distance Distance) (Collection, error)
	GetCollection(ctx context.Context, name string) (Collection, error)
	DeleteCollection(ctx context.Context, name string) error
	ListCollections(ctx context.Context) ([]string, error)
	Count(ctx context.Context, name string) (int, error)
	// Insert stores a single record; an existing id is an AlreadyExists error.
	Insert(ctx context.Context, name string, rec Record) error
	// Query returns at most k matches ordered by ascending distance.
	Query(ctx context.Context, name string, vector []float32, k int) ([]Match, error)
}
