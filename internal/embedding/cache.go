package embedding

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	lru "github.com/hashicorp/golang-lru/v2"

	"pdfchat/internal/domain"
)

// Cached memoizes vectors of another embedder in an LRU keyed by text hash.
type Cached struct {
	next  domain.Embedder
	cache *lru.Cache[string, []float32]
}

var _ domain.Embedder = (*Cached)(nil)

// NewCached wraps next with an LRU of the given size.
func NewCached(next domain.Embedder, size int) (*Cached, error) {
	if size <= 0 {
		return nil, fmt.Errorf("embedder %q: cache size must be greater than zero", next.Name())
	}
	cache, err := lru.New[string, []float32](size)
	if err != nil {
		return nil, fmt.Errorf("embedder %q: init cache: %w", next.Name(), err)
	}
	return &Cached{next: next, cache: cache}, nil
}

func (c *Cached) Name() string { return c.next.Name() }

func (c *Cached) Dimension() int { return c.next.Dimension() }

func (c *Cached) Embed(ctx context.Context, text string) ([]float32, error) {
	key := cacheKey(text)
	if v, ok := c.cache.Get(key); ok {
		return cloneVector(v), nil
	}
	v, err := c.next.Embed(ctx, text)
	if err != nil {
		return nil, err
	}
	c.cache.Add(key, cloneVector(v))
	return v, nil
}

// EmbedBatch embeds only the distinct texts missing from the cache.
func (c *Cached) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	results := make([][]float32, len(texts))
	missing := make(map[string][]int)
	var order []string
	for i, text := range texts {
		if v, ok := c.cache.Get(cacheKey(text)); ok {
			results[i] = cloneVector(v)
			continue
		}
		if _, seen := missing[text]; !seen {
			order = append(order, text)
		}
		missing[text] = append(missing[text], i)
	}
	if len(order) == 0 {
		return results, nil
	}
	embedded, err := c.next.EmbedBatch(ctx, order)
	if err != nil {
		return nil, err
	}
	if len(embedded) != len(order) {
		return nil, fmt.Errorf("embedder %q: received %d embeddings for %d texts", c.Name(), len(embedded), len(order))
	}
	for i, text := range order {
		for _, idx := range missing[text] {
			results[idx] = cloneVector(embedded[i])
		}
		c.cache.Add(cacheKey(text), cloneVector(embedded[i]))
	}
	return results, nil
}

// Len returns the number of cached vectors.
func (c *Cached) Len() int { return c.cache.Len() }

func cacheKey(text string) string {
	sum := sha256.Sum256([]byte(text))
	return hex.EncodeToString(sum[:])
}

func cloneVector(src []float32) []float32 {
	if src == nil {
		return nil
	}
	dst := make([]float32, len(src))
	copy(dst, src)
	return dst
}
