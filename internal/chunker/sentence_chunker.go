package chunker

import (
	"strings"

	"pdfchat/internal/domain"
	"pdfchat/internal/textutil"
)

// SentenceChunker groups sentences into windows that overlap by a fixed number of sentences.
type SentenceChunker struct {
	sentencesPerChunk int
	overlapSentences  int
}

var _ domain.Chunker = (*SentenceChunker)(nil)

func NewSentenceChunker(sentencesPerChunk, overlapSentences int) *SentenceChunker {
	if sentencesPerChunk <= 0 {
		sentencesPerChunk = 5
	}
	if overlapSentences < 0 {
		overlapSentences = 0
	}
	// the window must advance
	if overlapSentences >= sentencesPerChunk {
		overlapSentences = sentencesPerChunk - 1
	}
	return &SentenceChunker{
		sentencesPerChunk: sentencesPerChunk,
		overlapSentences:  overlapSentences,
	}
}

func (c *SentenceChunker) Chunk(text string) []string {
	sentences := textutil.Sentences(text)
	if len(sentences) == 0 {
		return []string{}
	}
	var chunks []string
	i := 0
	for i < len(sentences) {
		end := min(i+c.sentencesPerChunk, len(sentences))
		chunks = append(chunks, strings.Join(sentences[i:end], " "))
		if end == len(sentences) {
			break
		}
		i = end - c.overlapSentences
	}
	return chunks
}
