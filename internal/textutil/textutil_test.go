package textutil

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTokens(t *testing.T) {
	assert.Equal(t, []string{"the", "cat's", "toy", "costs", "42", "dollars"},
		Tokens("The cat's toy costs 42 dollars!"))
	assert.Empty(t, Tokens("  ... !!"))
}

func TestContentTokens(t *testing.T) {
	assert.Equal(t, []string{"whales", "mammals"}, ContentTokens("Whales are the mammals"))
}

func TestSentences(t *testing.T) {
	t.Run("Should split on terminal punctuation", func(t *testing.T) {
		got := Sentences("Dogs bark. Cats meow! Do fish sleep?")
		assert.Equal(t, []string{"Dogs bark.", "Cats meow!", "Do fish sleep?"}, got)
	})

	t.Run("Should return unpunctuated text as one sentence", func(t *testing.T) {
		assert.Equal(t, []string{"no punctuation here"}, Sentences("  no punctuation here "))
	})

	t.Run("Should return nothing for blank text", func(t *testing.T) {
		assert.Nil(t, Sentences("   "))
	})
}
