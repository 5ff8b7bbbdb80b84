package service

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pdfchat/internal/chunker"
	"pdfchat/internal/domain"
	"pdfchat/internal/embedding/hashing"
	"pdfchat/internal/logger"
	"pdfchat/internal/summarizer"
	"pdfchat/internal/vectorstore"
	"pdfchat/internal/vectorstore/memory"
)

// topicEmbedder places text on an animals axis and a finance axis.
type topicEmbedder struct {
	mu     sync.Mutex
	embeds int
	err    error
}

func (e *topicEmbedder) Name() string   { return "topic" }
func (e *topicEmbedder) Dimension() int { return 3 }

func (e *topicEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	e.mu.Lock()
	e.embeds++
	e.mu.Unlock()
	if e.err != nil {
		return nil, e.err
	}
	lower := strings.ToLower(text)
	v := []float32{0, 0, 0.05}
	for _, w := range []string{"mammal", "animal", "whale", "dog"} {
		if strings.Contains(lower, w) {
			v[0]++
		}
	}
	for _, w := range []string{"stock", "market", "invest", "shares"} {
		if strings.Contains(lower, w) {
			v[1]++
		}
	}
	return v, nil
}

func (e *topicEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		v, err := e.Embed(ctx, t)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

// lineChunker makes every line its own chunk.
type lineChunker struct{}

func (lineChunker) Chunk(text string) []string { return strings.Split(text, "\n") }

type fakeLLM struct {
	mu      sync.Mutex
	reply   string
	err     error
	systems []string
	prompts []string
}

func (f *fakeLLM) Stream(_ context.Context, system, prompt string, onToken func(string)) (string, error) {
	f.mu.Lock()
	f.systems = append(f.systems, system)
	f.prompts = append(f.prompts, prompt)
	f.mu.Unlock()
	if f.err != nil {
		return "", f.err
	}
	for _, word := range strings.SplitAfter(f.reply, " ") {
		if onToken != nil {
			onToken(word)
		}
	}
	return f.reply, nil
}

func (f *fakeLLM) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.prompts)
}

const topicDoc = "The stock market fell sharply today.\n" +
	"Whales are the largest mammals.\n" +
	"Investors sold shares in a panic.\n" +
	"Dogs are loyal mammals and popular pets."

type fixture struct {
	svc      *RAGService
	embedder *topicEmbedder
	llm      *fakeLLM
	index    *vectorstore.Index
	backend  *memory.Storage
}

func newFixture(t *testing.T, opts Options) *fixture {
	t.Helper()
	log := logger.NewLogger(logger.TestConfig())
	backend := memory.NewStorage()
	index := vectorstore.NewIndex(backend, log)
	emb := &topicEmbedder{}
	model := &fakeLLM{reply: "Whales and dogs are mammals."}
	svc := NewRAGService(Deps{
		Chunker:    lineChunker{},
		Embedder:   emb,
		Index:      index,
		LLM:        model,
		Summarizer: summarizer.NewFrequencySummarizer(),
		Logger:     log,
	}, opts)
	return &fixture{svc: svc, embedder: emb, llm: model, index: index, backend: backend}
}

func TestRAGService_Ingest(t *testing.T) {
	ctx := context.Background()

	t.Run("Should index chunks into the sanitized collection", func(t *testing.T) {
		f := newFixture(t, Options{})
		assert.Equal(t, NoDocument, f.svc.State())

		res, err := f.svc.Ingest(ctx, domain.Document{Name: "My Report!.pdf", Content: topicDoc})
		require.NoError(t, err)

		assert.Equal(t, "pdf_my_report_pdf", res.Collection)
		assert.Equal(t, 4, res.Chunks)
		assert.Equal(t, 4, res.Inserted)
		assert.False(t, res.Skipped)
		assert.NotEmpty(t, res.Summary)
		assert.Equal(t, Ready, f.svc.State())
		assert.Equal(t, "My Report!.pdf", f.svc.Document())

		matches, err := f.backend.Query(ctx, res.Collection, []float32{0, 1, 0}, 1)
		require.NoError(t, err)
		require.Len(t, matches, 1)
		assert.Equal(t, "chunk_0", matches[0].ID)
		assert.Equal(t, 0, matches[0].Metadata["chunk_index"])
	})

	t.Run("Should not duplicate chunks when ingesting twice", func(t *testing.T) {
		f := newFixture(t, Options{})
		doc := domain.Document{Name: "report.pdf", Content: topicDoc}

		first, err := f.svc.Ingest(ctx, doc)
		require.NoError(t, err)
		embedsAfterFirst := f.embedder.embeds

		second, err := f.svc.Ingest(ctx, doc)
		require.NoError(t, err)

		assert.True(t, second.Skipped)
		assert.Equal(t, 0, second.Inserted)
		assert.Equal(t, first.Chunks, second.Chunks)
		assert.Equal(t, embedsAfterFirst, f.embedder.embeds, "no re-embedding")

		col := vectorstore.Collection{Name: first.Collection}
		assert.Equal(t, 4, f.index.Count(ctx, col))
	})

	t.Run("Should reject documents without text", func(t *testing.T) {
		f := newFixture(t, Options{})
		_, err := f.svc.Ingest(ctx, domain.Document{Name: "blank.pdf", Content: "  \n "})
		assert.ErrorIs(t, err, domain.ErrEmptyDocument)
		assert.Equal(t, NoDocument, f.svc.State())
	})

	t.Run("Should return to no document when embedding fails", func(t *testing.T) {
		f := newFixture(t, Options{})
		f.embedder.err = errors.New("model crashed")

		_, err := f.svc.Ingest(ctx, domain.Document{Name: "report.pdf", Content: topicDoc})
		require.Error(t, err)
		assert.Equal(t, NoDocument, f.svc.State())

		_, err = f.svc.Retrieve(ctx, "anything")
		assert.ErrorIs(t, err, domain.ErrNoDocument)
	})

	t.Run("Should reset document history when switching documents", func(t *testing.T) {
		f := newFixture(t, Options{})
		_, err := f.svc.Ingest(ctx, domain.Document{Name: "a.pdf", Content: topicDoc})
		require.NoError(t, err)
		_, err = f.svc.Answer(ctx, "Which animals are mammals?", nil)
		require.NoError(t, err)
		_, err = f.svc.Chat(ctx, "hello", nil)
		require.NoError(t, err)

		_, err = f.svc.Ingest(ctx, domain.Document{Name: "b.pdf", Content: "Whales sing.\nDogs bark."})
		require.NoError(t, err)

		assert.Equal(t, "b.pdf", f.svc.Document())
		assert.Empty(t, f.svc.Session().Messages(domain.ChatDocument))
		assert.Len(t, f.svc.Session().Messages(domain.ChatSimple), 2)
		assert.ElementsMatch(t, []string{"pdf_a_pdf", "pdf_b_pdf"}, f.index.ListAll(ctx))
	})

	t.Run("Should ingest plain text files from disk", func(t *testing.T) {
		f := newFixture(t, Options{})
		path := filepath.Join(t.TempDir(), "notes.txt")
		require.NoError(t, os.WriteFile(path, []byte(topicDoc), 0o644))

		res, err := f.svc.IngestFile(ctx, path)
		require.NoError(t, err)
		assert.Equal(t, "pdf_notes_txt", res.Collection)
	})
}

func TestRAGService_Retrieve(t *testing.T) {
	ctx := context.Background()

	t.Run("Should require an indexed document", func(t *testing.T) {
		f := newFixture(t, Options{})
		_, err := f.svc.Retrieve(ctx, "Which animals are mammals?")
		assert.ErrorIs(t, err, domain.ErrNoDocument)
	})

	t.Run("Should rank matching chunks first and build the prompt", func(t *testing.T) {
		f := newFixture(t, Options{TopK: 2})
		_, err := f.svc.Ingest(ctx, domain.Document{Name: "topics.pdf", Content: topicDoc})
		require.NoError(t, err)

		g, err := f.svc.Retrieve(ctx, "Which animals are mammals?")
		require.NoError(t, err)

		require.Len(t, g.Chunks, 2)
		assert.ElementsMatch(t, []string{
			"Whales are the largest mammals.",
			"Dogs are loyal mammals and popular pets.",
		}, g.Chunks)
		want := "Question: Which animals are mammals?\n\nRelevant content:\n" +
			g.Chunks[0] + "\n\n" + g.Chunks[1] + "\n\nAnswer:"
		assert.Equal(t, want, g.Prompt)
	})

	t.Run("Should report no relevant content for an empty collection", func(t *testing.T) {
		f := newFixture(t, Options{})
		_, err := f.svc.Ingest(ctx, domain.Document{Name: "topics.pdf", Content: topicDoc})
		require.NoError(t, err)
		// drop the chunks behind the service's back
		require.NoError(t, f.backend.DeleteCollection(ctx, "pdf_topics_pdf"))
		_, err = f.backend.CreateCollection(ctx, "pdf_topics_pdf", vectorstore.Cosine)
		require.NoError(t, err)

		_, err = f.svc.Answer(ctx, "Which animals are mammals?", nil)
		assert.ErrorIs(t, err, domain.ErrNoRelevantContent)
		assert.Equal(t, 0, f.llm.calls(), "model is not called without context")
	})

	t.Run("Should surface index failures as warnings", func(t *testing.T) {
		f := newFixture(t, Options{})
		_, err := f.svc.Ingest(ctx, domain.Document{Name: "topics.pdf", Content: topicDoc})
		require.NoError(t, err)
		require.NoError(t, f.backend.DeleteCollection(ctx, "pdf_topics_pdf"))

		_, err = f.svc.Retrieve(ctx, "Which animals are mammals?")
		assert.ErrorIs(t, err, domain.ErrNoRelevantContent)
		warnings := f.svc.Warnings()
		require.Len(t, warnings, 1)
		assert.Contains(t, warnings[0], "pdf_topics_pdf")
		assert.Empty(t, f.svc.Warnings())
	})

	t.Run("Should reject blank questions", func(t *testing.T) {
		f := newFixture(t, Options{})
		_, err := f.svc.Retrieve(ctx, "   ")
		assert.ErrorIs(t, err, ErrEmptyQuestion)
	})
}

func TestRAGService_Answer(t *testing.T) {
	ctx := context.Background()

	t.Run("Should stream a grounded answer and record history", func(t *testing.T) {
		f := newFixture(t, Options{})
		_, err := f.svc.Ingest(ctx, domain.Document{Name: "topics.pdf", Content: topicDoc})
		require.NoError(t, err)

		var streamed strings.Builder
		answer, err := f.svc.Answer(ctx, "Which animals are mammals?", func(s string) { streamed.WriteString(s) })
		require.NoError(t, err)

		assert.Equal(t, "Whales and dogs are mammals.", answer)
		assert.Equal(t, answer, streamed.String())
		require.Equal(t, 1, f.llm.calls())
		assert.Equal(t, DocumentSystemPrompt, f.llm.systems[0])
		assert.True(t, strings.HasPrefix(f.llm.prompts[0], "Question: Which animals are mammals?\n\nRelevant content:\n"))

		msgs := f.svc.Session().Messages(domain.ChatDocument)
		require.Len(t, msgs, 2)
		assert.Equal(t, domain.RoleUser, msgs[0].Role)
		assert.Equal(t, domain.RoleAssistant, msgs[1].Role)
		assert.Empty(t, f.svc.Session().Messages(domain.ChatSimple))
	})

	t.Run("Should return model errors without aborting the session", func(t *testing.T) {
		f := newFixture(t, Options{})
		_, err := f.svc.Ingest(ctx, domain.Document{Name: "topics.pdf", Content: topicDoc})
		require.NoError(t, err)
		f.llm.err = errors.New("rate limited")

		_, err = f.svc.Answer(ctx, "Which animals are mammals?", nil)
		assert.ErrorContains(t, err, "rate limited")
		assert.Equal(t, Ready, f.svc.State())
	})

	t.Run("Should not record blank questions", func(t *testing.T) {
		f := newFixture(t, Options{})
		_, err := f.svc.Ingest(ctx, domain.Document{Name: "topics.pdf", Content: topicDoc})
		require.NoError(t, err)

		_, err = f.svc.Answer(ctx, "   ", nil)
		assert.ErrorIs(t, err, ErrEmptyQuestion)
		assert.Empty(t, f.svc.Session().Messages(domain.ChatDocument))
		assert.Equal(t, 0, f.llm.calls())
	})

	t.Run("Should report a missing model without recording history", func(t *testing.T) {
		log := logger.NewLogger(logger.TestConfig())
		svc := NewRAGService(Deps{
			Chunker:  lineChunker{},
			Embedder: &topicEmbedder{},
			Index:    vectorstore.NewIndex(memory.NewStorage(), log),
			Logger:   log,
		}, Options{})
		_, err := svc.Ingest(ctx, domain.Document{Name: "topics.pdf", Content: topicDoc})
		require.NoError(t, err)

		_, err = svc.Answer(ctx, "Which animals are mammals?", nil)
		assert.ErrorIs(t, err, ErrNoModel)
		_, err = svc.Chat(ctx, "hello", nil)
		assert.ErrorIs(t, err, ErrNoModel)
		assert.Empty(t, svc.Session().Messages(domain.ChatDocument))
		assert.Empty(t, svc.Session().Messages(domain.ChatSimple))
	})
}

func TestRAGService_Chat(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, Options{})

	answer, err := f.svc.Chat(ctx, "Hello there", nil)
	require.NoError(t, err)
	assert.Equal(t, "Whales and dogs are mammals.", answer)
	assert.Equal(t, ChatSystemPrompt, f.llm.systems[0])
	assert.Equal(t, "Hello there", f.llm.prompts[0])
	assert.Len(t, f.svc.Session().Messages(domain.ChatSimple), 2)
	assert.Equal(t, NoDocument, f.svc.State(), "chat does not need a document")

	_, err = f.svc.Chat(ctx, " ", nil)
	assert.ErrorIs(t, err, ErrEmptyQuestion)
}

func TestRAGService_Lifecycle(t *testing.T) {
	ctx := context.Background()

	t.Run("Should clear the current collection", func(t *testing.T) {
		f := newFixture(t, Options{})
		_, err := f.svc.Ingest(ctx, domain.Document{Name: "topics.pdf", Content: topicDoc})
		require.NoError(t, err)

		assert.True(t, f.svc.Clear(ctx))
		assert.Equal(t, NoDocument, f.svc.State())
		assert.False(t, f.index.Exists(ctx, "pdf_topics_pdf"))
		assert.False(t, f.svc.Clear(ctx))
	})

	t.Run("Should delete every collection on close", func(t *testing.T) {
		f := newFixture(t, Options{})
		_, err := f.svc.Ingest(ctx, domain.Document{Name: "a.pdf", Content: topicDoc})
		require.NoError(t, err)
		_, err = f.svc.Ingest(ctx, domain.Document{Name: "b.pdf", Content: topicDoc})
		require.NoError(t, err)

		f.svc.Close(ctx)
		assert.Empty(t, f.index.ListAll(ctx))
		assert.Equal(t, NoDocument, f.svc.State())
	})

	t.Run("Should name states", func(t *testing.T) {
		assert.Equal(t, "no document", NoDocument.String())
		assert.Equal(t, "indexing", Indexing.String())
		assert.Equal(t, "ready", Ready.String())
	})
}

func TestRAGService_WithRealComponents(t *testing.T) {
	ctx := context.Background()
	log := logger.NewLogger(logger.TestConfig())
	index := vectorstore.NewIndex(memory.NewStorage(), log)
	svc := NewRAGService(Deps{
		Chunker:  chunker.NewFixed(40),
		Embedder: hashing.New(1024),
		Index:    index,
		LLM:      &fakeLLM{reply: "ok"},
		Logger:   log,
	}, Options{TopK: 3})

	text := strings.Repeat("Quarterly revenue grew across every region. ", 10)
	res, err := svc.Ingest(ctx, domain.Document{Name: "revenue.txt", Content: text})
	require.NoError(t, err)
	assert.Equal(t, len(chunker.Split(text, 40)), res.Chunks)
	assert.Equal(t, res.Chunks, res.Inserted)
	assert.Empty(t, res.Summary)

	again, err := svc.Ingest(ctx, domain.Document{Name: "revenue.txt", Content: text})
	require.NoError(t, err)
	assert.True(t, again.Skipped)
	assert.Equal(t, res.Chunks, index.Count(ctx, vectorstore.Collection{Name: res.Collection}))

	g, err := svc.Retrieve(ctx, "How did revenue change?")
	require.NoError(t, err)
	assert.Len(t, g.Chunks, 3)
}
