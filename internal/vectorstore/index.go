package vectorstore

import (
	"context"
	"fmt"
	"sync"

	"pdfchat/internal/domain"
	"pdfchat/internal/logger"
)

// DefaultTopK is the number of matches returned when a query asks for none.
const DefaultTopK = 3

// Index is the collection-level contract used by the orchestrator. Apart from
// CreateOrGet, its operations never fail: backend errors are logged, recorded
// as warnings and turned into safe defaults.
type Index struct {
	backend Backend
	log     logger.Logger

	mu       sync.Mutex
	warnings []string
}

// NewIndex wraps backend. A nil log uses the package default logger.
func NewIndex(backend Backend, log logger.Logger) *Index {
	if log == nil {
		log = logger.Default()
	}
	return &Index{backend: backend, log: log}
}

// CreateOrGet returns the named collection, creating it with cosine distance
// when it does not exist. Losing a creation race to another caller is not an error.
func (x *Index) CreateOrGet(ctx context.Context, name string) (Collection, error) {
	col, err := x.backend.GetCollection(ctx, name)
	if err == nil {
		return col, nil
	}
	if !domain.IsNotFound(err) {
		return Collection{}, fmt.Errorf("get collection %q: %w", name, err)
	}
	col, err = x.backend.CreateCollection(ctx, name, Cosine)
	if err == nil {
		x.log.Debug("collection created", "collection", name)
		return col, nil
	}
	if !domain.IsAlreadyExists(err) {
		return Collection{}, fmt.Errorf("create collection %q: %w", name, err)
	}
	col, err = x.backend.GetCollection(ctx, name)
	if err != nil {
		return Collection{}, fmt.Errorf("get collection %q: %w", name, err)
	}
	return col, nil
}

// Add inserts records one at a time and returns how many were stored.
// Records whose id already exists are skipped, as are records the backend
// rejects for any other reason.
func (x *Index) Add(ctx context.Context, col Collection, records []Record) int {
	inserted := 0
	failed := 0
	for _, rec := range records {
		err := x.backend.Insert(ctx, col.Name, rec)
		switch {
		case err == nil:
			inserted++
		case domain.IsAlreadyExists(err):
			x.log.Debug("skipping duplicate record", "collection", col.Name, "chunk_id", rec.ID)
		default:
			failed++
			x.log.Warn("failed to add record", "collection", col.Name, "chunk_id", rec.ID, "error", err)
		}
	}
	if failed > 0 {
		x.warn(fmt.Sprintf("%d of %d chunks could not be added to %s", failed, len(records), col.Name))
	}
	return inserted
}

// Query returns the texts of up to k records nearest to vector, closest
// first. k <= 0 selects DefaultTopK.
func (x *Index) Query(ctx context.Context, col Collection, vector []float32, k int) []string {
	if k <= 0 {
		k = DefaultTopK
	}
	matches, err := x.backend.Query(ctx, col.Name, vector, k)
	if err != nil {
		x.log.Warn("query failed", "collection", col.Name, "error", err)
		x.warn(fmt.Sprintf("error querying collection %s: %v", col.Name, err))
		return []string{}
	}
	texts := make([]string, 0, len(matches))
	for _, m := range matches {
		texts = append(texts, m.Text)
	}
	return texts
}

// Delete removes the named collection and reports whether it existed.
func (x *Index) Delete(ctx context.Context, name string) bool {
	if err := x.backend.DeleteCollection(ctx, name); err != nil {
		x.log.Warn("delete failed", "collection", name, "error", err)
		x.warn(fmt.Sprintf("error deleting collection %s: %v", name, err))
		return false
	}
	x.log.Debug("collection deleted", "collection", name)
	return true
}

// Exists reports whether the named collection exists.
func (x *Index) Exists(ctx context.Context, name string) bool {
	_, err := x.backend.GetCollection(ctx, name)
	if err == nil {
		return true
	}
	if !domain.IsNotFound(err) {
		x.log.Warn("exists check failed", "collection", name, "error", err)
		x.warn(fmt.Sprintf("error checking collection %s: %v", name, err))
	}
	return false
}

// Count returns the number of records in the collection.
func (x *Index) Count(ctx context.Context, col Collection) int {
	n, err := x.backend.Count(ctx, col.Name)
	if err != nil {
		x.log.Warn("count failed", "collection", col.Name, "error", err)
		x.warn(fmt.Sprintf("error counting collection %s: %v", col.Name, err))
		return 0
	}
	return n
}

// HasDocuments reports whether the collection already holds records.
func (x *Index) HasDocuments(ctx context.Context, col Collection) bool {
	return x.Count(ctx, col) > 0
}

// ListAll returns the names of all collections.
func (x *Index) ListAll(ctx context.Context) []string {
	names, err := x.backend.ListCollections(ctx)
	if err != nil {
		x.log.Warn("list failed", "error", err)
		x.warn(fmt.Sprintf("error listing collections: %v", err))
		return []string{}
	}
	return names
}

// DrainWarnings returns and clears the warnings recorded since the last call.
func (x *Index) DrainWarnings() []string {
	x.mu.Lock()
	defer x.mu.Unlock()
	out := x.warnings
	x.warnings = nil
	return out
}

func (x *Index) warn(msg string) {
	x.mu.Lock()
	x.warnings = append(x.warnings, msg)
	x.mu.Unlock()
}
