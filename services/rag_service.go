package services

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/queryquack/queryquack/logger"
	"github.com/queryquack/queryquack/models"
	"github.com/queryquack/queryquack/vectorstore"
)

// Displayable answers for per-turn failures. A failed turn appends one
// of these to the chat history and never crashes the session.
const (
	queryFailedMessage  = "Sorry, I had trouble processing your query. Please try again."
	searchFailedMessage = "Sorry, I couldn't search your documents just now. Please try again."
)

// RAGService is the session-facing API of the pipeline.
type RAGService interface {
	CreateSession() *Session
	EndSession(ctx context.Context, sessionID string) error
	Session(sessionID string) (*Session, bool)

	// Ingest runs one document through chunk -> embed -> upsert into the
	// session's namespace.
	Ingest(ctx context.Context, sessionID string, doc models.Document) error

	// Reingest replaces a previously ingested document with a newer
	// version, deleting the old vectors first. An unseen filename
	// behaves like Ingest.
	Reingest(ctx context.Context, sessionID string, doc models.Document) error

	// IngestBatch ingests documents concurrently; a failing document is
	// skipped and reported, never aborting the rest.
	IngestBatch(ctx context.Context, sessionID string, docs []models.Document) (int, []string, error)

	// Ask answers a question from the session's documents, with source
	// attribution.
	Ask(ctx context.Context, sessionID, question string) (models.AskResponse, error)
}

type ragServiceImpl struct {
	chunker   *Chunker
	embedder  Embedder
	store     vectorstore.Store
	processor *QueryProcessor
	retriever *Retriever
	generator *ResponseGenerator
	memory    MemoryChatProvider // nil when no chat backend exists
	sessions  *SessionManager
	topK      int
	batchSize int
}

func NewRAGService(
	chunker *Chunker,
	embedder Embedder,
	store vectorstore.Store,
	processor *QueryProcessor,
	retriever *Retriever,
	generator *ResponseGenerator,
	memory MemoryChatProvider,
	topK int,
) RAGService {
	return &ragServiceImpl{
		chunker:   chunker,
		embedder:  embedder,
		store:     store,
		processor: processor,
		retriever: retriever,
		generator: generator,
		memory:    memory,
		sessions:  NewSessionManager(),
		topK:      topK,
		batchSize: vectorstore.DefaultBatchSize,
	}
}

func (r *ragServiceImpl) CreateSession() *Session {
	s := r.sessions.Create()
	logger.Info("session created", "session", s.ID, "namespace", s.Namespace)
	return s
}

// EndSession tears a session down and reclaims its vector-store
// namespace. Ending an unknown session is not an error.
func (r *ragServiceImpl) EndSession(ctx context.Context, sessionID string) error {
	s, ok := r.sessions.Remove(sessionID)
	if !ok {
		return nil
	}
	if r.memory != nil {
		r.memory.DropChat(sessionID)
	}
	if err := r.store.DeleteNamespace(ctx, s.Namespace); err != nil {
		return fmt.Errorf("deleting namespace %q: %w", s.Namespace, err)
	}
	logger.Info("session ended", "session", sessionID, "namespace", s.Namespace)
	return nil
}

func (r *ragServiceImpl) Session(sessionID string) (*Session, bool) {
	return r.sessions.Get(sessionID)
}

func (r *ragServiceImpl) Ingest(ctx context.Context, sessionID string, doc models.Document) error {
	session, ok := r.sessions.Get(sessionID)
	if !ok {
		return ErrSessionNotFound
	}
	if doc.Filename == "" {
		return fmt.Errorf("document has no filename")
	}
	if !session.MarkProcessed(doc.Filename) {
		logger.Debug("skipping already-processed document", "session", sessionID, "filename", doc.Filename)
		return nil
	}

	if err := r.ingestDocument(ctx, session, doc); err != nil {
		session.forgetProcessed(doc.Filename)
		return err
	}
	return nil
}

func (r *ragServiceImpl) Reingest(ctx context.Context, sessionID string, doc models.Document) error {
	session, ok := r.sessions.Get(sessionID)
	if !ok {
		return ErrSessionNotFound
	}
	if doc.Filename == "" {
		return fmt.Errorf("document has no filename")
	}

	if old := session.recordIDsFor(doc.Filename); len(old) > 0 {
		if err := r.store.Delete(ctx, session.Namespace, old); err != nil {
			return fmt.Errorf("deleting outdated vectors for %q: %w", doc.Filename, err)
		}
		logger.Info("replaced outdated document vectors",
			"session", sessionID, "filename", doc.Filename, "deleted", len(old))
	}
	session.forgetProcessed(doc.Filename)

	return r.Ingest(ctx, sessionID, doc)
}

// reservedMetadataKey guards attributes the pipeline and the store
// backends own. User metadata must never override them: a document
// carrying its own "namespace" key would re-home its vectors into
// another session's partition.
func reservedMetadataKey(key string) bool {
	switch key {
	case "filename", "chunk_index", "text", "is_placeholder", "namespace", "record_id":
		return true
	}
	return false
}

func (r *ragServiceImpl) ingestDocument(ctx context.Context, session *Session, doc models.Document) error {
	chunks, err := r.chunker.Chunk(doc.Text)
	if err != nil {
		return fmt.Errorf("chunking %q: %w", doc.Filename, err)
	}

	vectors, err := r.embedder.Embed(ctx, chunks)
	if err != nil {
		return fmt.Errorf("embedding %q: %w", doc.Filename, err)
	}

	records := make([]vectorstore.Record, len(chunks))
	for i, text := range chunks {
		metadata := map[string]any{
			"filename":    doc.Filename,
			"chunk_index": i,
			"text":        text,
		}
		if doc.Type != "" {
			metadata["type"] = doc.Type
		}
		if doc.Pages > 0 {
			metadata["pages"] = doc.Pages
		}
		for k, v := range doc.Metadata {
			if reservedMetadataKey(k) {
				continue
			}
			if _, taken := metadata[k]; !taken {
				metadata[k] = v
			}
		}
		if r.embedder.Placeholder() {
			metadata["is_placeholder"] = true
		}

		records[i] = vectorstore.Record{
			ID:       fmt.Sprintf("%s_%d_%s", doc.Filename, i, uuid.New().String()),
			Values:   vectors[i],
			Metadata: metadata,
		}
	}

	if err := vectorstore.BatchUpsert(ctx, r.store, session.Namespace, records, r.batchSize); err != nil {
		return fmt.Errorf("storing %q: %w", doc.Filename, err)
	}

	ids := make([]string, len(records))
	for i, rec := range records {
		ids[i] = rec.ID
	}
	session.setRecordIDs(doc.Filename, ids)

	logger.Info("document ingested",
		"session", session.ID, "filename", doc.Filename, "chunks", len(chunks),
		"placeholder", r.embedder.Placeholder())
	return nil
}

func (r *ragServiceImpl) IngestBatch(ctx context.Context, sessionID string, docs []models.Document) (int, []string, error) {
	if _, ok := r.sessions.Get(sessionID); !ok {
		return 0, nil, ErrSessionNotFound
	}

	var (
		mu       sync.Mutex
		ingested int
		skipped  []string
		wg       sync.WaitGroup
	)

	// Each document's pipeline is independent; one bad document must not
	// abort the rest of the batch.
	for _, doc := range docs {
		wg.Add(1)
		go func(doc models.Document) {
			defer wg.Done()
			err := r.Ingest(ctx, sessionID, doc)

			mu.Lock()
			defer mu.Unlock()
			switch {
			case errors.Is(err, ErrNoContent):
				logger.Warn("document has no usable text, skipping", "filename", doc.Filename)
				skipped = append(skipped, doc.Filename)
			case err != nil:
				logger.Error("document ingestion failed", "filename", doc.Filename, "error", err)
				skipped = append(skipped, doc.Filename)
			default:
				ingested++
			}
		}(doc)
	}
	wg.Wait()

	return ingested, skipped, nil
}

func (r *ragServiceImpl) Ask(ctx context.Context, sessionID, question string) (models.AskResponse, error) {
	session, ok := r.sessions.Get(sessionID)
	if !ok {
		return models.AskResponse{}, ErrSessionNotFound
	}

	session.AppendTurn(models.RoleUser, question)

	vector, processed, _, err := r.processor.Process(ctx, question)
	if err != nil {
		logger.Error("query processing failed", "session", sessionID, "error", err)
		session.AppendTurn(models.RoleAssistant, queryFailedMessage)
		return models.AskResponse{Answer: queryFailedMessage}, nil
	}

	chunks, err := r.retriever.Retrieve(ctx, vector, session.Namespace, r.topK, processed, session)
	if err != nil {
		logger.Error("retrieval failed", "session", sessionID, "error", err)
		session.AppendTurn(models.RoleAssistant, searchFailedMessage)
		return models.AskResponse{Answer: searchFailedMessage}, nil
	}

	answer := r.generator.Generate(ctx, sessionID, processed, chunks)
	session.AppendTurn(models.RoleAssistant, answer)

	sources := make([]models.SourceRef, 0, len(chunks))
	for _, c := range chunks {
		sources = append(sources, models.SourceRef{Filename: c.Filename, ChunkIndex: c.ChunkIndex})
	}

	return models.AskResponse{Answer: answer, Sources: sources}, nil
}
