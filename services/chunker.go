package services

import (
	"fmt"
	"strings"

	"github.com/tmc/langchaingo/textsplitter"

	"github.com/queryquack/queryquack/logger"
)

// Chunker splits normalized text into overlapping passages. It is a pure
// function of its input and configuration.
type Chunker struct {
	size     int
	overlap  int
	splitter textsplitter.RecursiveCharacter
}

// NewChunker validates the configuration: size must be positive and
// overlap must be smaller than size.
func NewChunker(size, overlap int) (*Chunker, error) {
	if size <= 0 {
		return nil, fmt.Errorf("chunk size must be positive, got %d", size)
	}
	if overlap < 0 || overlap >= size {
		return nil, fmt.Errorf("chunk overlap must satisfy 0 <= overlap < size, got %d", overlap)
	}

	splitter := textsplitter.NewRecursiveCharacter(
		textsplitter.WithChunkSize(size),
		textsplitter.WithChunkOverlap(overlap),
		textsplitter.WithSeparators([]string{"\n\n", "\n", ". ", " ", ""}),
	)

	return &Chunker{size: size, overlap: overlap, splitter: splitter}, nil
}

// Chunk splits text into passages, preferring paragraph, line, sentence
// and word boundaries in that order. Whitespace-only input returns
// ErrNoContent; non-empty input always yields at least one chunk.
func (c *Chunker) Chunk(text string) ([]string, error) {
	if strings.TrimSpace(text) == "" {
		return nil, ErrNoContent
	}

	chunks, err := c.splitter.SplitText(text)
	if err != nil || len(chunks) == 0 {
		if err != nil {
			logger.Warn("recursive splitter failed, falling back to word accumulation", "error", err)
		}
		chunks = c.wordAccumulate(text)
	}
	if len(chunks) == 0 {
		return nil, ErrNoContent
	}
	return chunks, nil
}

// wordAccumulate is the degenerate-input fallback: greedily packs whole
// words up to the size budget. It terminates on any input and produces
// at least one chunk when the input has any non-whitespace content.
func (c *Chunker) wordAccumulate(text string) []string {
	words := strings.Fields(text)
	if len(words) == 0 {
		return nil
	}

	var chunks []string
	var b strings.Builder
	for _, w := range words {
		if b.Len() > 0 && b.Len()+1+len(w) > c.size {
			chunks = append(chunks, b.String())
			b.Reset()
		}
		if b.Len() > 0 {
			b.WriteByte(' ')
		}
		b.WriteString(w)
	}
	if b.Len() > 0 {
		chunks = append(chunks, b.String())
	}
	return chunks
}
