// Package local runs a sentence-transformers model in process via cybertron.
package local

import (
	"context"
	"fmt"
	"strings"

	"github.com/tmc/langchaingo/embeddings"
	"github.com/tmc/langchaingo/embeddings/cybertron"

	"pdfchat/internal/domain"
	"pdfchat/internal/embedding"
)

// DefaultModel is the model loaded when none is configured.
const DefaultModel = "sentence-transformers/all-MiniLM-L6-v2"

// Config configures the local model.
type Config struct {
	Model     string
	ModelsDir string
}

// New loads the model once and returns an owned handle. Calls into the model
// are serialized. Any load failure wraps domain.ErrModelLoad.
func New(ctx context.Context, cfg Config) (*embedding.Adapter, error) {
	model := strings.TrimSpace(cfg.Model)
	if model == "" {
		model = DefaultModel
	}
	opts := []cybertron.Option{cybertron.WithModel(model)}
	if dir := strings.TrimSpace(cfg.ModelsDir); dir != "" {
		opts = append(opts, cybertron.WithModelsDir(dir))
	}
	client, err := cybertron.NewCybertron(opts...)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", domain.ErrModelLoad, model, err)
	}
	return Wrap(ctx, model, client)
}

// Wrap builds the local embedder around any embedding client.
func Wrap(ctx context.Context, model string, client embeddings.EmbedderClient) (*embedding.Adapter, error) {
	impl, err := embeddings.NewEmbedder(client, embeddings.WithStripNewLines(true))
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", domain.ErrModelLoad, model, err)
	}
	a, err := embedding.Wrap(ctx, "local:"+model, impl, embedding.WithSerializedCalls())
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrModelLoad, err)
	}
	return a, nil
}
