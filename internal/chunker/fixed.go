package chunker

import "pdfchat/internal/domain"

// DefaultChunkSize is the window length, in characters, used when none is given.
const DefaultChunkSize = 500

// Split cuts text into consecutive, non-overlapping windows of chunkSize
// characters (Unicode code points). The last window may be shorter.
// Empty text yields an empty slice. chunkSize <= 0 selects DefaultChunkSize.
func Split(text string, chunkSize int) []string {
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}
	if text == "" {
		return []string{}
	}
	chunks := make([]string, 0, len(text)/chunkSize+1)
	start, n := 0, 0
	for i := range text {
		if n == chunkSize {
			chunks = append(chunks, text[start:i])
			start, n = i, 0
		}
		n++
	}
	return append(chunks, text[start:])
}

// Fixed is a domain.Chunker producing fixed-size character windows.
type Fixed struct {
	size int
}

var _ domain.Chunker = (*Fixed)(nil)

// NewFixed returns a fixed-size chunker; size <= 0 selects DefaultChunkSize.
func NewFixed(size int) *Fixed {
	if size <= 0 {
		size = DefaultChunkSize
	}
	return &Fixed{size: size}
}

// Size returns the configured window length.
func (c *Fixed) Size() int { return c.size }

func (c *Fixed) Chunk(text string) []string { return Split(text, c.size) }
