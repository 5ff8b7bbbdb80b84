package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"pdfchat/internal/domain"
	"pdfchat/internal/logger"
	"pdfchat/internal/textsource"
	"pdfchat/internal/vectorstore"
)

const (
	// DocumentSystemPrompt frames answers grounded on retrieved chunks.
	DocumentSystemPrompt = "You are an assistant that answers based on the PDF content."
	// ChatSystemPrompt frames the retrieval-free chat.
	ChatSystemPrompt = "You are an assistant that answers users' questions in English."

	defaultSummarySentences = 3
)

var (
	// ErrEmptyQuestion is returned for blank questions and chat messages.
	ErrEmptyQuestion = errors.New("question is empty")
	// ErrNoModel is returned by Answer and Chat when no language model was configured.
	ErrNoModel = errors.New("no language model configured")
)

// State is the lifecycle stage of the current document.
type State int

const (
	NoDocument State = iota
	Indexing
	Ready
)

func (s State) String() string {
	switch s {
	case Indexing:
		return "indexing"
	case Ready:
		return "ready"
	default:
		return "no document"
	}
}

// Deps are the collaborators of a RAGService, constructed once by the caller.
type Deps struct {
	Chunker    domain.Chunker
	Embedder   domain.Embedder
	Index      *vectorstore.Index
	LLM        domain.LLM
	Summarizer domain.Summarizer
	Logger     logger.Logger
}

// Options tune retrieval.
type Options struct {
	TopK             int
	SummarySentences int
}

// IngestResult describes one ingestion.
type IngestResult struct {
	Collection string
	Chunks     int
	Inserted   int
	Skipped    bool
	Summary    string
}

// Grounding is the retrieved context for one question.
type Grounding struct {
	Question string
	Chunks   []string
	Prompt   string
}

// RAGService indexes one document at a time and answers questions grounded on it.
type RAGService struct {
	chunker    domain.Chunker
	embedder   domain.Embedder
	index      *vectorstore.Index
	llm        domain.LLM
	summarizer domain.Summarizer
	log        logger.Logger
	topK       int
	summaryLen int

	mu         sync.Mutex
	state      State
	document   string
	collection vectorstore.Collection
	created    map[string]struct{}
	warnings   []string
	session    *domain.Session
}

func NewRAGService(deps Deps, opts Options) *RAGService {
	log := deps.Logger
	if log == nil {
		log = logger.Default()
	}
	topK := opts.TopK
	if topK <= 0 {
		topK = vectorstore.DefaultTopK
	}
	summaryLen := opts.SummarySentences
	if summaryLen <= 0 {
		summaryLen = defaultSummarySentences
	}
	return &RAGService{
		chunker:    deps.Chunker,
		embedder:   deps.Embedder,
		index:      deps.Index,
		llm:        deps.LLM,
		summarizer: deps.Summarizer,
		log:        log,
		topK:       topK,
		summaryLen: summaryLen,
		created:    make(map[string]struct{}),
		session:    domain.NewSession(),
	}
}

// State returns the current lifecycle stage.
func (s *RAGService) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Document returns the name of the indexed document, if any.
func (s *RAGService) Document() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.document
}

// Session returns the chat history of this service.
func (s *RAGService) Session() *domain.Session { return s.session }

// IngestFile extracts the file at path and ingests it.
func (s *RAGService) IngestFile(ctx context.Context, path string) (IngestResult, error) {
	doc, err := textsource.Extract(ctx, path)
	if err != nil {
		return IngestResult{}, err
	}
	return s.Ingest(ctx, doc)
}

// Ingest makes doc the current document. Its collection is reused when it
// already holds chunks, so ingesting the same document twice stores nothing new.
func (s *RAGService) Ingest(ctx context.Context, doc domain.Document) (IngestResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if doc.Name != s.document {
		if s.document != "" {
			s.log.Info("switching document", "from", s.document, "to", doc.Name)
			s.session.Reset(domain.ChatDocument)
		}
		s.state = NoDocument
		s.document = ""
		s.collection = vectorstore.Collection{}
	}
	if strings.TrimSpace(doc.Content) == "" {
		return IngestResult{}, fmt.Errorf("%s: %w", doc.Name, domain.ErrEmptyDocument)
	}

	s.state = Indexing
	name := vectorstore.CollectionName(doc.Name)
	log := s.log.With("collection", name, "document", doc.Name)

	col, err := s.index.CreateOrGet(ctx, name)
	if err != nil {
		s.state = NoDocument
		s.collectWarnings()
		return IngestResult{}, err
	}
	s.created[name] = struct{}{}

	res := IngestResult{Collection: name}
	if s.index.HasDocuments(ctx, col) {
		res.Skipped = true
		res.Chunks = s.index.Count(ctx, col)
		log.Info("collection already indexed", "chunks", res.Chunks)
	} else {
		chunks := s.chunker.Chunk(doc.Content)
		vectors, err := s.embedder.EmbedBatch(ctx, chunks)
		if err != nil {
			s.state = NoDocument
			return IngestResult{}, fmt.Errorf("embed %s: %w", doc.Name, err)
		}
		records := make([]vectorstore.Record, len(chunks))
		for i, text := range chunks {
			records[i] = vectorstore.Record{
				ID:       fmt.Sprintf("chunk_%d", i),
				Text:     text,
				Vector:   vectors[i],
				Metadata: map[string]any{"chunk_index": i},
			}
		}
		res.Chunks = len(chunks)
		res.Inserted = s.index.Add(ctx, col, records)
		log.Info("document indexed", "chunks", res.Chunks, "inserted", res.Inserted)
	}

	if s.summarizer != nil {
		summary, err := s.summarizer.Summarize(doc.Content, s.summaryLen)
		if err != nil {
			log.Warn("summary failed", "error", err)
		}
		res.Summary = summary
	}

	s.collectWarnings()
	s.state = Ready
	s.document = doc.Name
	s.collection = col
	return res, nil
}

// Retrieve finds the chunks closest to question and builds the grounded prompt.
func (s *RAGService) Retrieve(ctx context.Context, question string) (Grounding, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return Grounding{}, ErrEmptyQuestion
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != Ready {
		return Grounding{}, domain.ErrNoDocument
	}
	vec, err := s.embedder.Embed(ctx, question)
	if err != nil {
		return Grounding{}, fmt.Errorf("embed question: %w", err)
	}
	chunks := s.index.Query(ctx, s.collection, vec, s.topK)
	s.collectWarnings()
	if len(chunks) == 0 {
		return Grounding{}, domain.ErrNoRelevantContent
	}
	return Grounding{Question: question, Chunks: chunks, Prompt: BuildPrompt(question, chunks)}, nil
}

// Answer retrieves context for question and streams the grounded answer.
func (s *RAGService) Answer(ctx context.Context, question string, onToken func(string)) (string, error) {
	if strings.TrimSpace(question) == "" {
		return "", ErrEmptyQuestion
	}
	if s.llm == nil {
		return "", ErrNoModel
	}
	s.session.Append(domain.ChatDocument, domain.RoleUser, question)
	g, err := s.Retrieve(ctx, question)
	if err != nil {
		return "", err
	}
	answer, err := s.llm.Stream(ctx, DocumentSystemPrompt, g.Prompt, onToken)
	if err != nil {
		return answer, err
	}
	s.session.Append(domain.ChatDocument, domain.RoleAssistant, answer)
	return answer, nil
}

// Chat sends message to the model without retrieval.
func (s *RAGService) Chat(ctx context.Context, message string, onToken func(string)) (string, error) {
	if strings.TrimSpace(message) == "" {
		return "", ErrEmptyQuestion
	}
	if s.llm == nil {
		return "", ErrNoModel
	}
	s.session.Append(domain.ChatSimple, domain.RoleUser, message)
	answer, err := s.llm.Stream(ctx, ChatSystemPrompt, message, onToken)
	if err != nil {
		return answer, err
	}
	s.session.Append(domain.ChatSimple, domain.RoleAssistant, answer)
	return answer, nil
}

// Clear deletes the current document's collection and forgets the document.
func (s *RAGService) Clear(ctx context.Context) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.collection.Name == "" {
		return false
	}
	ok := s.index.Delete(ctx, s.collection.Name)
	delete(s.created, s.collection.Name)
	s.collectWarnings()
	s.state = NoDocument
	s.document = ""
	s.collection = vectorstore.Collection{}
	s.session.Reset(domain.ChatDocument)
	return ok
}

// Close deletes every collection this service created.
func (s *RAGService) Close(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for name := range s.created {
		s.index.Delete(ctx, name)
		delete(s.created, name)
	}
	s.state = NoDocument
	s.document = ""
	s.collection = vectorstore.Collection{}
}

// Warnings returns and clears the warnings recorded since the last call.
func (s *RAGService) Warnings() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.collectWarnings()
	out := s.warnings
	s.warnings = nil
	return out
}

func (s *RAGService) collectWarnings() {
	s.warnings = append(s.warnings, s.index.DrainWarnings()...)
}

// BuildPrompt formats the grounded prompt sent to the model.
func BuildPrompt(question string, chunks []string) string {
	return fmt.Sprintf("Question: %s\n\nRelevant content:\n%s\n\nAnswer:", question, strings.Join(chunks, "\n\n"))
}
