// Package embedding adapts text embedding models to domain.Embedder.
package embedding

import (
	"context"
	"fmt"
	"sync"

	"github.com/tmc/langchaingo/embeddings"

	"pdfchat/internal/domain"
)

// Adapter exposes a langchaingo embedder as a domain.Embedder.
// When serialized, calls into the underlying model are made one at a time.
type Adapter struct {
	name      string
	dimension int
	impl      embeddings.Embedder
	mu        *sync.Mutex
}

var _ domain.Embedder = (*Adapter)(nil)

// Option customizes an Adapter.
type Option func(*Adapter)

// WithSerializedCalls guards every model call with a mutex.
func WithSerializedCalls() Option {
	return func(a *Adapter) { a.mu = &sync.Mutex{} }
}

// WithDimension fixes the vector dimension instead of probing the model.
func WithDimension(d int) Option {
	return func(a *Adapter) { a.dimension = d }
}

// Wrap builds an Adapter around impl. Unless WithDimension is given, the
// dimension is learned by embedding a probe string, which also verifies
// that the model is usable.
func Wrap(ctx context.Context, name string, impl embeddings.Embedder, opts ...Option) (*Adapter, error) {
	if impl == nil {
		return nil, fmt.Errorf("embedder %q: implementation is required", name)
	}
	a := &Adapter{name: name, impl: impl}
	for _, opt := range opts {
		opt(a)
	}
	if a.dimension > 0 {
		return a, nil
	}
	probe, err := a.Embed(ctx, "dimension probe")
	if err != nil {
		return nil, err
	}
	if len(probe) == 0 {
		return nil, fmt.Errorf("embedder %q: model returned an empty vector", name)
	}
	a.dimension = len(probe)
	return a, nil
}

func (a *Adapter) Name() string { return a.name }

func (a *Adapter) Dimension() int { return a.dimension }

// Embed returns the vector of a single text.
func (a *Adapter) Embed(ctx context.Context, text string) ([]float32, error) {
	a.lock()
	defer a.unlock()
	vec, err := a.impl.EmbedQuery(ctx, text)
	if err != nil {
		return nil, a.withContext(err)
	}
	if err := a.checkDimension(vec); err != nil {
		return nil, err
	}
	return vec, nil
}

// EmbedBatch returns one vector per text, in order.
func (a *Adapter) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return [][]float32{}, nil
	}
	a.lock()
	defer a.unlock()
	vecs, err := a.impl.EmbedDocuments(ctx, texts)
	if err != nil {
		return nil, a.withContext(err)
	}
	if len(vecs) != len(texts) {
		return nil, a.withContext(fmt.Errorf("received %d embeddings for %d texts", len(vecs), len(texts)))
	}
	for _, v := range vecs {
		if err := a.checkDimension(v); err != nil {
			return nil, err
		}
	}
	return vecs, nil
}

func (a *Adapter) checkDimension(vec []float32) error {
	if a.dimension > 0 && len(vec) != a.dimension {
		return a.withContext(fmt.Errorf("vector dimension %d, want %d", len(vec), a.dimension))
	}
	return nil
}

func (a *Adapter) lock() {
	if a.mu != nil {
		a.mu.Lock()
	}
}

func (a *Adapter) unlock() {
	if a.mu != nil {
		a.mu.Unlock()
	}
}

func (a *Adapter) withContext(err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("embedder %q: %w", a.name, err)
}
