package services

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"google.golang.org/genai"

	"github.com/queryquack/queryquack/logger"
	"github.com/queryquack/queryquack/models"
)

// NoRelevantInformation is the grounding-refusal message. The prompt
// instructs the model to emit it verbatim when the context cannot
// answer the question, and the pipeline returns it directly when no
// chunks were retrieved.
const NoRelevantInformation = "No relevant information found."

// generationFallback is the deterministic terminal answer when every
// generation strategy has failed. Generation never surfaces a raw error
// to the user.
const generationFallback = "Sorry, I couldn't generate an answer right now. Please try again."

// maxContextChunks bounds the grounding prompt.
const maxContextChunks = 5

// TextGenerator produces one completion for one prompt.
type TextGenerator interface {
	GenerateText(ctx context.Context, prompt string) (string, error)
}

// MemoryChatProvider hands out a per-session conversational chat used
// as a fallback when a question arrives with no retrieved context.
type MemoryChatProvider interface {
	SendToChat(ctx context.Context, sessionID, message string) (string, error)
	DropChat(sessionID string)
}

// ResponseGenerator builds a grounded prompt from retrieved chunks and
// produces an attributed answer. Failures walk an ordered fallback
// chain: model call, one retry, conversational memory (only without
// chunks), deterministic message.
type ResponseGenerator struct {
	generator TextGenerator      // nil means no model backend
	memory    MemoryChatProvider // nil means no conversational fallback
}

func NewResponseGenerator(generator TextGenerator, memory MemoryChatProvider) *ResponseGenerator {
	return &ResponseGenerator{generator: generator, memory: memory}
}

// Generate returns the answer text. It never returns an error to the
// caller's user: terminal failures resolve to a displayable string.
func (g *ResponseGenerator) Generate(ctx context.Context, sessionID, queryText string, chunks []models.RetrievedChunk) string {
	if len(chunks) == 0 {
		if g.memory != nil {
			answer, err := g.memory.SendToChat(ctx, sessionID, queryText)
			if err == nil && strings.TrimSpace(answer) != "" {
				return answer
			}
			if err != nil {
				logger.Warn("conversational fallback failed", "session", sessionID, "error", err)
			}
		}
		return NoRelevantInformation
	}

	if g.generator == nil {
		return generationFallback
	}

	prompt := buildPrompt(queryText, chunks)

	answer, err := g.generator.GenerateText(ctx, prompt)
	if err != nil {
		logger.Warn("generation failed, retrying once", "error", err)
		answer, err = g.generator.GenerateText(ctx, prompt)
	}
	if err != nil {
		logger.Error("generation failed after retry", "error", &GenerationError{Err: err})
		return generationFallback
	}

	answer = strings.TrimSpace(answer)
	if answer == "" {
		return generationFallback
	}
	if answer == NoRelevantInformation {
		return answer
	}
	return answer + "\n\n" + citationLine(chunks)
}

// buildPrompt grounds the model strictly in the retrieved chunks,
// capped at maxContextChunks.
func buildPrompt(queryText string, chunks []models.RetrievedChunk) string {
	if len(chunks) > maxContextChunks {
		chunks = chunks[:maxContextChunks]
	}

	var context strings.Builder
	for _, c := range chunks {
		fmt.Fprintf(&context, "%s (Chunk %d): %s\n", c.Filename, c.ChunkIndex, c.Text)
	}

	return fmt.Sprintf(
		"Query: %s\n\nContext:\n%s\n"+
			"Answer concisely using only the context above, citing the source file and chunk number. "+
			"If no relevant information is found, say '%s'",
		queryText, context.String(), NoRelevantInformation)
}

func citationLine(chunks []models.RetrievedChunk) string {
	if len(chunks) > maxContextChunks {
		chunks = chunks[:maxContextChunks]
	}
	parts := make([]string, len(chunks))
	for i, c := range chunks {
		parts[i] = fmt.Sprintf("%s (Chunk %d)", c.Filename, c.ChunkIndex)
	}
	return "Sources: " + strings.Join(parts, ", ")
}

// --- Gemini backend ---

// GeminiGenerator implements both one-shot generation and per-session
// conversational chats on the Gemini API.
type GeminiGenerator struct {
	client *genai.Client
	model  string

	mu    sync.Mutex
	chats map[string]*genai.Chat
}

func NewGeminiGenerator(client *genai.Client, model string) *GeminiGenerator {
	return &GeminiGenerator{
		client: client,
		model:  model,
		chats:  make(map[string]*genai.Chat),
	}
}

func (g *GeminiGenerator) GenerateText(ctx context.Context, prompt string) (string, error) {
	result, err := g.client.Models.GenerateContent(ctx, g.model, genai.Text(prompt), nil)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrModelUnavailable, err)
	}
	if len(result.Candidates) == 0 || result.Candidates[0].Content == nil {
		return "", fmt.Errorf("gemini returned no candidates")
	}

	var b strings.Builder
	for _, part := range result.Candidates[0].Content.Parts {
		b.WriteString(part.Text)
	}
	return b.String(), nil
}

// SendToChat routes a message through the session's chat, creating it
// on first use. The chat carries its own history, giving follow-up
// questions conversational memory.
func (g *GeminiGenerator) SendToChat(ctx context.Context, sessionID, message string) (string, error) {
	chat, err := g.chatFor(ctx, sessionID)
	if err != nil {
		return "", err
	}

	result, err := chat.SendMessage(ctx, genai.Part{Text: message})
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrModelUnavailable, err)
	}
	if len(result.Candidates) == 0 || result.Candidates[0].Content == nil {
		return "", fmt.Errorf("gemini chat returned no candidates")
	}

	var b strings.Builder
	for _, part := range result.Candidates[0].Content.Parts {
		b.WriteString(part.Text)
	}
	return b.String(), nil
}

func (g *GeminiGenerator) DropChat(sessionID string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.chats, sessionID)
}

func (g *GeminiGenerator) chatFor(ctx context.Context, sessionID string) (*genai.Chat, error) {
	g.mu.Lock()
	chat, ok := g.chats[sessionID]
	g.mu.Unlock()
	if ok {
		return chat, nil
	}

	// Chat creation happens outside the lock; a racing duplicate is
	// harmless and the later one wins.
	chat, err := g.client.Chats.Create(ctx, g.model, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("creating chat session: %w", err)
	}

	g.mu.Lock()
	g.chats[sessionID] = chat
	g.mu.Unlock()
	return chat, nil
}
