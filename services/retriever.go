package services

import (
	"context"
	"fmt"

	"github.com/queryquack/queryquack/models"
	"github.com/queryquack/queryquack/vectorstore"
)

// Retriever fetches the most relevant chunks for a query embedding and
// records source attributions on the session.
type Retriever struct {
	store    vectorstore.Store
	reranker Reranker // nil disables re-ranking
}

func NewRetriever(store vectorstore.Store, reranker Reranker) *Retriever {
	return &Retriever{store: store, reranker: reranker}
}

// Retrieve returns up to topK chunks, best relevance first. With a
// reranker present it over-fetches 2x candidates, re-scores each
// (queryText, candidate) pair and truncates. Zero results is not an
// error. Matches without a text metadata field are excluded before
// ranking.
func (r *Retriever) Retrieve(ctx context.Context, vector []float32, namespace string, topK int, queryText string, session *Session) ([]models.RetrievedChunk, error) {
	fetch := topK
	if r.reranker != nil {
		fetch = topK * 2
	}

	matches, err := r.store.Query(ctx, namespace, vector, fetch)
	if err != nil {
		return nil, fmt.Errorf("querying vector store: %w", err)
	}

	chunks := make([]models.RetrievedChunk, 0, len(matches))
	for _, m := range matches {
		text, ok := m.Metadata["text"].(string)
		if !ok || text == "" {
			continue
		}
		chunks = append(chunks, models.RetrievedChunk{
			Filename:   metaString(m.Metadata, "filename"),
			ChunkIndex: metaInt(m.Metadata, "chunk_index"),
			Text:       text,
			Score:      m.Score,
		})
	}

	if r.reranker != nil && queryText != "" {
		chunks = r.reranker.Rerank(queryText, chunks)
	}
	if len(chunks) > topK {
		chunks = chunks[:topK]
	}

	if session != nil {
		refs := make([]models.SourceRef, 0, len(chunks))
		for _, c := range chunks {
			refs = append(refs, models.SourceRef{Filename: c.Filename, ChunkIndex: c.ChunkIndex})
		}
		session.AddSources(refs)
	}

	return chunks, nil
}

func metaString(md map[string]any, key string) string {
	s, _ := md[key].(string)
	return s
}

// metaInt tolerates the numeric types different store backends hand
// back for the same attribute.
func metaInt(md map[string]any, key string) int {
	switch v := md[key].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	}
	return 0
}
