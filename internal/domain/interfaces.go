package domain

import "context"

// Document is the plain text extracted from a single uploaded file.
type Document struct {
	Name    string
	Path    string
	Content string
	Pages   int
}

// Chunker splits extracted document text into ordered segments.
type Chunker interface {
	Chunk(text string) []string
}

// Embedder converts free text into a fixed-dimension dense vector.
// Implementations must be deterministic: the same text always yields the same vector.
type Embedder interface {
	Name() string
	Dimension() int
	Embed(ctx context.Context, text string) ([]float32, error)
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
}

// LLM streams a chat completion for a single prompt and system instruction.
// onToken is invoked for every streamed fragment; the full text is returned at the end.
type LLM interface {
	Stream(ctx context.Context, system, prompt string, onToken func(string)) (string, error)
}

// Summarizer produces a brief extractive summary of the provided text.
type Summarizer interface {
	Summarize(text string, maxSentences int) (string, error)
}
