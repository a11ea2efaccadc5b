package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"hash/fnv"
	"io"
	"math"
	"math/rand"
	"net/http"

	"google.golang.org/genai"
)

// Embedder converts text into fixed-dimension vectors. Ingestion and
// query embedding must go through the same instance: mixing embedding
// spaces breaks retrieval.
type Embedder interface {
	// Embed returns one vector per input text, order-preserving.
	Embed(ctx context.Context, texts []string) ([][]float32, error)
	// EmbedOne embeds a single query string.
	EmbedOne(ctx context.Context, text string) ([]float32, error)
	Dimension() int
	// Placeholder reports whether vectors are synthetic stand-ins
	// produced without a real model.
	Placeholder() bool
}

// --- Ollama ---

// OllamaEmbedder calls a local Ollama server's embeddings endpoint.
type OllamaEmbedder struct {
	client    *http.Client
	baseURL   string
	model     string
	dimension int
}

type ollamaEmbedRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
}

type ollamaEmbedResponse struct {
	Embedding []float32 `json:"embedding"`
}

func NewOllamaEmbedder(client *http.Client, baseURL, model string, dimension int) *OllamaEmbedder {
	if client == nil {
		client = http.DefaultClient
	}
	return &OllamaEmbedder{client: client, baseURL: baseURL, model: model, dimension: dimension}
}

func (e *OllamaEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	vectors := make([][]float32, len(texts))
	for i, t := range texts {
		vec, err := e.EmbedOne(ctx, t)
		if err != nil {
			return nil, fmt.Errorf("embedding text %d: %w", i, err)
		}
		vectors[i] = vec
	}
	return vectors, nil
}

func (e *OllamaEmbedder) EmbedOne(ctx context.Context, text string) ([]float32, error) {
	reqBody, err := json.Marshal(ollamaEmbedRequest{Model: e.model, Prompt: text})
	if err != nil {
		return nil, fmt.Errorf("marshal ollama request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, e.baseURL+"/api/embeddings", bytes.NewBuffer(reqBody))
	if err != nil {
		return nil, fmt.Errorf("create ollama request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := e.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrModelUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("%w: ollama returned status %d: %s", ErrModelUnavailable, resp.StatusCode, string(body))
	}

	var embedResp ollamaEmbedResponse
	if err := json.NewDecoder(resp.Body).Decode(&embedResp); err != nil {
		return nil, fmt.Errorf("decode ollama response: %w", err)
	}
	if len(embedResp.Embedding) == 0 {
		return nil, fmt.Errorf("%w: ollama returned empty embedding", ErrModelUnavailable)
	}
	return embedResp.Embedding, nil
}

func (e *OllamaEmbedder) Dimension() int { return e.dimension }

func (e *OllamaEmbedder) Placeholder() bool { return false }

// --- Gemini ---

// GeminiEmbedder uses the Gemini embedding API.
type GeminiEmbedder struct {
	client    *genai.Client
	model     string
	dimension int
}

func NewGeminiEmbedder(client *genai.Client, model string, dimension int) *GeminiEmbedder {
	return &GeminiEmbedder{client: client, model: model, dimension: dimension}
}

func (e *GeminiEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	vectors := make([][]float32, len(texts))
	for i, t := range texts {
		vec, err := e.EmbedOne(ctx, t)
		if err != nil {
			return nil, fmt.Errorf("embedding text %d: %w", i, err)
		}
		vectors[i] = vec
	}
	return vectors, nil
}

func (e *GeminiEmbedder) EmbedOne(ctx context.Context, text string) ([]float32, error) {
	resp, err := e.client.Models.EmbedContent(ctx, e.model, genai.Text(text), nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrModelUnavailable, err)
	}
	if len(resp.Embeddings) == 0 || len(resp.Embeddings[0].Values) == 0 {
		return nil, fmt.Errorf("%w: gemini returned no embedding", ErrModelUnavailable)
	}
	return resp.Embeddings[0].Values, nil
}

func (e *GeminiEmbedder) Dimension() int { return e.dimension }

func (e *GeminiEmbedder) Placeholder() bool { return false }

// --- Placeholder ---

// PlaceholderEmbedder produces reproducible pseudo-random unit vectors
// seeded from the input text. It exists for degraded operation and
// tests; everything embedded by it is tagged is_placeholder in chunk
// metadata so retrieval quality is never silently overstated.
type PlaceholderEmbedder struct {
	dimension int
}

func NewPlaceholderEmbedder(dimension int) *PlaceholderEmbedder {
	return &PlaceholderEmbedder{dimension: dimension}
}

func (e *PlaceholderEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	vectors := make([][]float32, len(texts))
	for i, t := range texts {
		vectors[i] = e.vector(t)
	}
	return vectors, nil
}

func (e *PlaceholderEmbedder) EmbedOne(_ context.Context, text string) ([]float32, error) {
	return e.vector(text), nil
}

func (e *PlaceholderEmbedder) Dimension() int { return e.dimension }

func (e *PlaceholderEmbedder) Placeholder() bool { return true }

func (e *PlaceholderEmbedder) vector(text string) []float32 {
	h := fnv.New64a()
	h.Write([]byte(text))
	rng := rand.New(rand.NewSource(int64(h.Sum64())))

	vec := make([]float32, e.dimension)
	var norm float64
	for i := range vec {
		vec[i] = float32(rng.Float64()*2 - 1)
		norm += float64(vec[i]) * float64(vec[i])
	}
	norm = math.Sqrt(norm)
	if norm > 0 {
		for i := range vec {
			vec[i] = float32(float64(vec[i]) / norm)
		}
	}
	return vec
}
