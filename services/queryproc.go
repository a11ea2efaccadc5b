package services

import (
	"context"
	"fmt"
	"strings"

	"google.golang.org/genai"

	"github.com/queryquack/queryquack/logger"
)

// RewriteStrategy is one attempt at normalizing a user question.
// Strategies run in order; the first success wins and any failure falls
// through to the next one. The terminal default is the original text.
type RewriteStrategy interface {
	Name() string
	Rewrite(ctx context.Context, query string) (string, error)
}

// QueryProcessor normalizes a raw question and embeds it with the same
// embedder the ingestion pipeline uses.
type QueryProcessor struct {
	embedder   Embedder
	strategies []RewriteStrategy
}

func NewQueryProcessor(embedder Embedder, strategies ...RewriteStrategy) *QueryProcessor {
	return &QueryProcessor{embedder: embedder, strategies: strategies}
}

// Process returns the query embedding together with the processed and
// original text. Rewrite failure is never fatal.
func (p *QueryProcessor) Process(ctx context.Context, raw string) (vec []float32, processed, original string, err error) {
	processed = raw
	for _, s := range p.strategies {
		rewritten, rerr := s.Rewrite(ctx, raw)
		if rerr != nil {
			logger.Warn("query rewrite failed, trying next strategy", "strategy", s.Name(), "error", rerr)
			continue
		}
		if strings.TrimSpace(rewritten) != "" {
			processed = strings.TrimSpace(rewritten)
			break
		}
	}

	vec, err = p.embedder.EmbedOne(ctx, processed)
	if err != nil {
		return nil, processed, raw, fmt.Errorf("embedding query: %w", err)
	}
	return vec, processed, raw, nil
}

// --- Heuristic rewrite ---

var fillerPrefixes = []string{
	"please tell me about",
	"can you tell me about",
	"tell me about",
	"what is the meaning of",
	"what is",
	"what are",
	"how to",
	"how do i",
	"please",
}

// HeuristicRewriter strips filler prefixes and trailing punctuation. It
// never fails.
type HeuristicRewriter struct{}

func (HeuristicRewriter) Name() string { return "heuristic" }

func (HeuristicRewriter) Rewrite(_ context.Context, query string) (string, error) {
	q := strings.TrimSpace(query)
	q = strings.TrimRight(q, "?!. ")

	lower := strings.ToLower(q)
	for _, prefix := range fillerPrefixes {
		if strings.HasPrefix(lower, prefix+" ") {
			q = strings.TrimSpace(q[len(prefix):])
			break
		}
	}
	if q == "" {
		return query, nil
	}
	return q, nil
}

// --- LLM rewrite ---

// GeminiRewriter asks the generation model for a clearer restatement of
// the question.
type GeminiRewriter struct {
	client *genai.Client
	model  string
}

func NewGeminiRewriter(client *genai.Client, model string) *GeminiRewriter {
	return &GeminiRewriter{client: client, model: model}
}

func (r *GeminiRewriter) Name() string { return "gemini" }

func (r *GeminiRewriter) Rewrite(ctx context.Context, query string) (string, error) {
	prompt := fmt.Sprintf("Rewrite the following query to be clear and precise:\nQuery: %s\nRewritten Query:", query)

	result, err := r.client.Models.GenerateContent(ctx, r.model, genai.Text(prompt), nil)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrModelUnavailable, err)
	}
	if len(result.Candidates) == 0 || result.Candidates[0].Content == nil {
		return "", fmt.Errorf("gemini returned no rewrite candidates")
	}

	var b strings.Builder
	for _, part := range result.Candidates[0].Content.Parts {
		b.WriteString(part.Text)
	}
	return strings.TrimSpace(b.String()), nil
}
