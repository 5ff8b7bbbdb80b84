package chunker

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSplit(t *testing.T) {
	t.Run("Should reassemble to the original text", func(t *testing.T) {
		inputs := []string{
			"a",
			"hello world",
			strings.Repeat("abcdefghij", 123),
			"Grüße aus Köln, 日本語のテキスト, emoji 🚀🚀🚀 end",
			"  leading and trailing spaces are kept  \n",
		}
		for _, in := range inputs {
			for _, n := range []int{1, 2, 3, 7, 500} {
				chunks := Split(in, n)
				assert.Equal(t, in, strings.Join(chunks, ""), "n=%d", n)
				for i, c := range chunks[:len(chunks)-1] {
					assert.Equal(t, n, utf8.RuneCountInString(c), "chunk %d of n=%d", i, n)
				}
				last := chunks[len(chunks)-1]
				assert.LessOrEqual(t, utf8.RuneCountInString(last), n)
				assert.NotEmpty(t, last)
			}
		}
	})

	t.Run("Should return an empty slice for empty text", func(t *testing.T) {
		chunks := Split("", 10)
		require.NotNil(t, chunks)
		assert.Empty(t, chunks)
	})

	t.Run("Should use the default size for non-positive sizes", func(t *testing.T) {
		text := strings.Repeat("x", 1200)
		chunks := Split(text, 0)
		require.Len(t, chunks, 3)
		assert.Len(t, chunks[0], DefaultChunkSize)
		assert.Len(t, chunks[2], 200)
		assert.Equal(t, chunks, Split(text, -4))
	})

	t.Run("Should count characters, not bytes", func(t *testing.T) {
		chunks := Split("ééééé", 2)
		assert.Equal(t, []string{"éé", "éé", "é"}, chunks)
	})

	t.Run("Should return one chunk when text fits", func(t *testing.T) {
		assert.Equal(t, []string{"short"}, Split("short", 500))
	})
}

func TestFixed(t *testing.T) {
	c := NewFixed(0)
	assert.Equal(t, DefaultChunkSize, c.Size())
	assert.Equal(t, []string{"abc", "de"}, NewFixed(3).Chunk("abcde"))
}

func TestSentenceChunker(t *testing.T) {
	t.Run("Should window sentences with overlap", func(t *testing.T) {
		c := NewSentenceChunker(2, 1)
		got := c.Chunk("One. Two. Three. Four.")
		assert.Equal(t, []string{"One. Two.", "Two. Three.", "Three. Four."}, got)
	})

	t.Run("Should terminate when overlap is not smaller than the window", func(t *testing.T) {
		c := NewSentenceChunker(2, 5)
		got := c.Chunk("One. Two. Three.")
		assert.Equal(t, []string{"One. Two.", "Two. Three."}, got)
	})

	t.Run("Should return nothing for blank text", func(t *testing.T) {
		assert.Empty(t, NewSentenceChunker(3, 0).Chunk("  "))
	})
}
