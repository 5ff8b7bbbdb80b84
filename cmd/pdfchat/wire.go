package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"pdfchat/internal/chunker"
	"pdfchat/internal/config"
	"pdfchat/internal/domain"
	"pdfchat/internal/embedding"
	"pdfchat/internal/embedding/hashing"
	"pdfchat/internal/embedding/local"
	"pdfchat/internal/embedding/openai"
	"pdfchat/internal/llm"
	"pdfchat/internal/logger"
	"pdfchat/internal/service"
	"pdfchat/internal/summarizer"
	"pdfchat/internal/vectorstore"
	"pdfchat/internal/vectorstore/memory"
	"pdfchat/internal/vectorstore/qdrant"
)

// build assembles the service from cfg. Every component is constructed once.
// The language model is only built when withLLM is set, so indexing needs no API key.
func build(ctx context.Context, cfg *config.AppConfig, log logger.Logger, withLLM bool) (*service.RAGService, error) {
	emb, err := buildEmbedder(ctx, cfg.Embedder)
	if err != nil {
		return nil, err
	}
	log.Info("embedder ready", "name", emb.Name(), "dimension", emb.Dimension())

	ch, err := buildChunker(cfg.Chunker)
	if err != nil {
		return nil, err
	}
	backend, err := buildBackend(cfg.VectorStore, emb.Dimension())
	if err != nil {
		return nil, err
	}
	sum, err := buildSummarizer(cfg.Summarizer)
	if err != nil {
		return nil, err
	}
	deps := service.Deps{
		Chunker:    ch,
		Embedder:   emb,
		Index:      vectorstore.NewIndex(backend, log),
		Summarizer: sum,
		Logger:     log,
	}
	if withLLM {
		model, err := llm.New(llm.Config{
			BaseURL:     cfg.LLM.BaseURL,
			APIKeyEnv:   cfg.LLM.APIKeyEnv,
			Model:       cfg.LLM.Model,
			Temperature: cfg.LLM.Temperature,
			MaxTokens:   cfg.LLM.MaxTokens,
		})
		if err != nil {
			return nil, err
		}
		deps.LLM = model
	}

	return service.NewRAGService(deps, service.Options{
		TopK:             cfg.Retrieval.TopK,
		SummarySentences: cfg.Summarizer.MaxSentences,
	}), nil
}

func buildEmbedder(ctx context.Context, cfg config.EmbedderConfig) (domain.Embedder, error) {
	var emb domain.Embedder
	switch cfg.Type {
	case "local", "":
		lc := config.LocalEmbedderConfig{}
		if cfg.Local != nil {
			lc = *cfg.Local
		}
		a, err := local.New(ctx, local.Config{Model: lc.Model, ModelsDir: lc.ModelsDir})
		if err != nil {
			return nil, err
		}
		emb = a
	case "hashing":
		dim := config.DefaultHashDimension
		if cfg.Hashing != nil {
			dim = cfg.Hashing.Dimension
		}
		emb = hashing.New(dim)
	case "openai":
		if cfg.OpenAI == nil {
			return nil, fmt.Errorf("openai embedder config missing")
		}
		a, err := openai.New(ctx, openai.Config{
			BaseURL:   cfg.OpenAI.BaseURL,
			APIKeyEnv: cfg.OpenAI.APIKeyEnv,
			Model:     cfg.OpenAI.Model,
			Dimension: cfg.OpenAI.Dimension,
			Timeout:   time.Duration(cfg.OpenAI.TimeoutSecs) * time.Second,
		})
		if err != nil {
			return nil, err
		}
		emb = a
	default:
		return nil, fmt.Errorf("unknown embedder: %s", cfg.Type)
	}
	if cfg.CacheSize <= 0 {
		return emb, nil
	}
	return embedding.NewCached(emb, cfg.CacheSize)
}

func buildChunker(cfg config.ChunkerConfig) (domain.Chunker, error) {
	switch cfg.Type {
	case "fixed", "":
		return chunker.NewFixed(cfg.ChunkSize), nil
	case "sentence":
		return chunker.NewSentenceChunker(cfg.SentencesPerChunk, cfg.OverlapSentences), nil
	default:
		return nil, fmt.Errorf("unknown chunker: %s", cfg.Type)
	}
}

func buildBackend(cfg config.VectorStoreConfig, dimension int) (vectorstore.Backend, error) {
	switch cfg.Type {
	case "memory", "":
		return memory.NewStorage(), nil
	case "qdrant":
		if cfg.Qdrant == nil {
			return nil, fmt.Errorf("qdrant config missing")
		}
		return qdrant.NewStorage(qdrant.Config{
			URL:        cfg.Qdrant.URL,
			APIKey:     os.Getenv(cfg.Qdrant.APIKeyEnv),
			Timeout:    time.Duration(cfg.Qdrant.TimeoutSecs) * time.Second,
			MaxRetries: cfg.Qdrant.MaxRetries,
			Dimension:  dimension,
		})
	default:
		return nil, fmt.Errorf("unknown vector store: %s", cfg.Type)
	}
}

func buildSummarizer(cfg config.SummarizerConfig) (domain.Summarizer, error) {
	switch cfg.Type {
	case "frequency", "":
		return summarizer.NewFrequencySummarizer(), nil
	case "none":
		return nil, nil
	default:
		return nil, fmt.Errorf("unknown summarizer: %s", cfg.Type)
	}
}
