package services

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewChunkerValidation(t *testing.T) {
	_, err := NewChunker(0, 0)
	assert.Error(t, err)

	_, err = NewChunker(100, 100)
	assert.Error(t, err)

	_, err = NewChunker(100, -1)
	assert.Error(t, err)

	_, err = NewChunker(100, 20)
	assert.NoError(t, err)
}

func TestChunkEmptyInput(t *testing.T) {
	c, err := NewChunker(500, 100)
	require.NoError(t, err)

	for _, input := range []string{"", "   ", "\n\n\t  \n"} {
		chunks, err := c.Chunk(input)
		assert.ErrorIs(t, err, ErrNoContent)
		assert.Empty(t, chunks)
	}
}

func TestChunkSingleShortDocument(t *testing.T) {
	c, err := NewChunker(50, 10)
	require.NoError(t, err)

	chunks, err := c.Chunk("Alpha Beta Gamma.")
	require.NoError(t, err)
	require.Len(t, chunks, 1)
	assert.Contains(t, chunks[0], "Alpha")
	assert.Contains(t, chunks[0], "Beta")
	assert.Contains(t, chunks[0], "Gamma")
}

func TestChunkCoverage(t *testing.T) {
	c, err := NewChunker(80, 16)
	require.NoError(t, err)

	// No sentence punctuation: the splitter consumes the ". " separator,
	// which would make word-level comparison fail for no real reason.
	text := "the quick brown fox jumps over the lazy dog " +
		"pack my box with five dozen liquor jugs " +
		"how vexingly quick daft zebras jump " +
		"sphinx of black quartz judge my vow " +
		"the five boxing wizards jump quickly"

	chunks, err := c.Chunk(text)
	require.NoError(t, err)
	require.Greater(t, len(chunks), 1)

	// Every word of the input must survive chunking, in order; overlap
	// only adds duplicates, it never drops content.
	assertWordSubsequence(t, text, strings.Join(chunks, " "))
}

func TestChunkOverlapSharesContext(t *testing.T) {
	c, err := NewChunker(60, 20)
	require.NoError(t, err)

	words := make([]string, 40)
	for i := range words {
		words[i] = "word" + string(rune('a'+i%26))
	}
	text := strings.Join(words, " ")

	chunks, err := c.Chunk(text)
	require.NoError(t, err)
	require.Greater(t, len(chunks), 1)

	for i := 0; i < len(chunks)-1; i++ {
		next := strings.Fields(chunks[i+1])
		require.NotEmpty(t, next)
		assert.Contains(t, chunks[i], next[0],
			"chunk %d should repeat trailing context of chunk %d", i+1, i)
	}
}

func TestChunkNoMidWordSplits(t *testing.T) {
	c, err := NewChunker(40, 8)
	require.NoError(t, err)

	text := strings.Repeat("sunflower meadow ", 20)
	chunks, err := c.Chunk(text)
	require.NoError(t, err)

	for _, chunk := range chunks {
		for _, w := range strings.Fields(chunk) {
			assert.Contains(t, []string{"sunflower", "meadow"}, w)
		}
	}
}

func TestWordAccumulateFallback(t *testing.T) {
	c, err := NewChunker(30, 5)
	require.NoError(t, err)

	text := "alpha beta gamma delta epsilon zeta eta theta iota kappa"
	chunks := c.wordAccumulate(text)
	require.NotEmpty(t, chunks)

	assertWordSubsequence(t, text, strings.Join(chunks, " "))
	for _, chunk := range chunks {
		assert.NotEmpty(t, strings.TrimSpace(chunk))
	}
}

func TestWordAccumulateOversizedWord(t *testing.T) {
	c, err := NewChunker(10, 2)
	require.NoError(t, err)

	// A single word over the budget still terminates with output.
	chunks := c.wordAccumulate("supercalifragilisticexpialidocious")
	require.Len(t, chunks, 1)
}

// assertWordSubsequence checks that every word of want appears in got in
// the same order (duplicates in got are allowed).
func assertWordSubsequence(t *testing.T, want, got string) {
	t.Helper()
	wantWords := strings.Fields(want)
	gotWords := strings.Fields(got)

	j := 0
	for _, w := range wantWords {
		found := false
		for j < len(gotWords) {
			if gotWords[j] == w {
				found = true
				j++
				break
			}
			j++
		}
		require.True(t, found, "word %q missing from chunk output", w)
	}
}
