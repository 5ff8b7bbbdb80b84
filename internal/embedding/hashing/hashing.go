// Package hashing implements an offline embedder that hashes tokens into a
// fixed number of buckets. It needs no model download and no corpus pass.
package hashing

import (
	"context"
	"hash/fnv"
	"math"

	"pdfchat/internal/domain"
	"pdfchat/internal/textutil"
)

// DefaultDimension matches the vector size of the default local model.
const DefaultDimension = 384

// Embedder maps stopword-filtered tokens to signed buckets weighted by
// sublinear term frequency, then L2-normalizes the result.
type Embedder struct {
	dimension int
}

var _ domain.Embedder = (*Embedder)(nil)

// New returns a hashing embedder; dimension <= 0 selects DefaultDimension.
func New(dimension int) *Embedder {
	if dimension <= 0 {
		dimension = DefaultDimension
	}
	return &Embedder{dimension: dimension}
}

// Name returns the identifier of this embedder implementation.
func (e *Embedder) Name() string { return "hashing" }

// Dimension returns the dimensionality of the produced embedding vectors.
func (e *Embedder) Dimension() int { return e.dimension }

// Embed computes the hashed embedding for the given text.
// Text without content tokens yields the zero vector.
func (e *Embedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	tf := make(map[string]int)
	var order []string
	for _, tok := range textutil.ContentTokens(text) {
		if tf[tok] == 0 {
			order = append(order, tok)
		}
		tf[tok]++
	}
	// first-seen order keeps float sums reproducible
	acc := make([]float64, e.dimension)
	for _, tok := range order {
		idx, sign := e.bucket(tok)
		acc[idx] += sign * (1 + math.Log(float64(tf[tok])))
	}
	// L2 normalize
	norm := 0.0
	for _, v := range acc {
		norm += v * v
	}
	norm = math.Sqrt(norm)
	vec := make([]float32, e.dimension)
	if norm == 0 {
		return vec, nil
	}
	for i, v := range acc {
		vec[i] = float32(v / norm)
	}
	return vec, nil
}

// EmbedBatch embeds each text in order.
func (e *Embedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, text := range texts {
		v, err := e.Embed(ctx, text)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

func (e *Embedder) bucket(tok string) (int, float64) {
	h := fnv.New64a()
	_, _ = h.Write([]byte(tok))
	sum := h.Sum64()
	sign := 1.0
	if sum>>63 == 1 {
		sign = -1.0
	}
	return int(sum % uint64(e.dimension)), sign
}
