// Package openai embeds text through an OpenAI-compatible embeddings endpoint.
package openai

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/sethvargo/go-retry"
	"github.com/tmc/langchaingo/embeddings"
	lcopenai "github.com/tmc/langchaingo/llms/openai"

	"pdfchat/internal/embedding"
)

const (
	DefaultBaseURL = "https://api.openai.com/v1"
	DefaultModel   = "text-embedding-3-small"
	maxRetries     = 5
	baseBackoff    = 200 * time.Millisecond
)

// Config configures the OpenAI-compatible embeddings client.
type Config struct {
	BaseURL   string
	APIKeyEnv string
	Model     string
	Dimension int
	Timeout   time.Duration
}

// New creates an embedder for the configured endpoint. Transient failures
// are retried with exponential backoff.
func New(ctx context.Context, cfg Config) (*embedding.Adapter, error) {
	key := os.Getenv(cfg.APIKeyEnv)
	if key == "" {
		return nil, fmt.Errorf("missing API key in env %s", cfg.APIKeyEnv)
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	t := cfg.Timeout
	if t == 0 {
		t = 30 * time.Second
	}
	client, err := lcopenai.New(
		lcopenai.WithBaseURL(cfg.BaseURL),
		lcopenai.WithToken(key),
		lcopenai.WithEmbeddingModel(cfg.Model),
		lcopenai.WithHTTPClient(&http.Client{Timeout: t}),
	)
	if err != nil {
		return nil, fmt.Errorf("openai embedder: init client: %w", err)
	}
	return Wrap(ctx, cfg.Model, client, cfg.Dimension)
}

// Wrap builds the embedder around any embedding client. dimension <= 0
// probes the endpoint once.
func Wrap(ctx context.Context, model string, client embeddings.EmbedderClient, dimension int) (*embedding.Adapter, error) {
	impl, err := embeddings.NewEmbedder(&retrying{next: client})
	if err != nil {
		return nil, fmt.Errorf("openai embedder: %w", err)
	}
	var opts []embedding.Option
	if dimension > 0 {
		opts = append(opts, embedding.WithDimension(dimension))
	}
	return embedding.Wrap(ctx, "openai:"+model, impl, opts...)
}

type retrying struct {
	next    embeddings.EmbedderClient
	backoff time.Duration
}

func (r *retrying) CreateEmbedding(ctx context.Context, texts []string) ([][]float32, error) {
	base := r.backoff
	if base == 0 {
		base = baseBackoff
	}
	var out [][]float32
	err := retry.Do(ctx, retry.WithMaxRetries(maxRetries, retry.NewExponential(base)), func(ctx context.Context) error {
		vecs, err := r.next.CreateEmbedding(ctx, texts)
		if err != nil {
			if isPermanent(err) {
				return err
			}
			return retry.RetryableError(err)
		}
		if len(vecs) == 0 {
			return retry.RetryableError(errors.New("no embedding returned"))
		}
		out = vecs
		return nil
	})
	return out, err
}

// isPermanent approximates the failures that retrying cannot fix.
func isPermanent(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	lower := strings.ToLower(err.Error())
	for _, marker := range []string{"401", "403", "unauthorized", "forbidden", "invalid", "400", "422", "bad request"} {
		if strings.Contains(lower, marker) {
			return true
		}
	}
	return false
}
