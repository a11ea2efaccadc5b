package controller

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/queryquack/queryquack/models"
	"github.com/queryquack/queryquack/services"
)

// stubRAGService answers with canned values and records call arguments.
type stubRAGService struct {
	session    *services.Session
	askResp    models.AskResponse
	askErr     error
	ingestErr  error
	endedID    string
	lastDocs   []models.Document
	lastQuery  string
	lastSessID string
}

func (s *stubRAGService) CreateSession() *services.Session { return s.session }

func (s *stubRAGService) EndSession(_ context.Context, sessionID string) error {
	s.endedID = sessionID
	return nil
}

func (s *stubRAGService) Session(sessionID string) (*services.Session, bool) {
	if s.session != nil && s.session.ID == sessionID {
		return s.session, true
	}
	return nil, false
}

func (s *stubRAGService) Ingest(context.Context, string, models.Document) error { return nil }

func (s *stubRAGService) Reingest(context.Context, string, models.Document) error { return nil }

func (s *stubRAGService) IngestBatch(_ context.Context, sessionID string, docs []models.Document) (int, []string, error) {
	s.lastSessID = sessionID
	s.lastDocs = docs
	if s.ingestErr != nil {
		return 0, nil, s.ingestErr
	}
	return len(docs), nil, nil
}

func (s *stubRAGService) Ask(_ context.Context, sessionID, question string) (models.AskResponse, error) {
	s.lastSessID = sessionID
	s.lastQuery = question
	return s.askResp, s.askErr
}

func newTestRouter(svc services.RAGService) *gin.Engine {
	gin.SetMode(gin.TestMode)
	c := NewRAGController(svc)

	router := gin.New()
	api := router.Group("/api/v1")
	{
		api.POST("/sessions", c.CreateSession)
		api.DELETE("/sessions/:id", c.EndSession)
		api.POST("/sessions/:id/documents", c.IngestDocuments)
		api.POST("/sessions/:id/query", c.Ask)
		api.GET("/sessions/:id/history", c.History)
		api.GET("/sessions/:id/sources", c.Sources)
	}
	return router
}

func perform(router *gin.Engine, method, path string, body any) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestCreateSessionEndpoint(t *testing.T) {
	svc := &stubRAGService{session: &services.Session{ID: "sess-1", Namespace: "session_abcd1234"}}
	router := newTestRouter(svc)

	w := perform(router, http.MethodPost, "/api/v1/sessions", nil)
	require.Equal(t, http.StatusCreated, w.Code)

	var resp models.SessionResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "sess-1", resp.SessionID)
	assert.Equal(t, "session_abcd1234", resp.Namespace)
}

func TestEndSessionEndpoint(t *testing.T) {
	svc := &stubRAGService{}
	router := newTestRouter(svc)

	w := perform(router, http.MethodDelete, "/api/v1/sessions/sess-1", nil)
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "sess-1", svc.endedID)
}

func TestIngestDocumentsEndpoint(t *testing.T) {
	svc := &stubRAGService{}
	router := newTestRouter(svc)

	body := models.IngestDocumentsRequest{Documents: []models.Document{
		{Filename: "ducks.txt", Text: "Ducks quack."},
		{Filename: "geese.txt", Text: "Geese honk."},
	}}
	w := perform(router, http.MethodPost, "/api/v1/sessions/sess-1/documents", body)
	require.Equal(t, http.StatusOK, w.Code)

	var resp models.IngestDocumentsResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, 2, resp.Ingested)
	assert.Equal(t, "sess-1", svc.lastSessID)
	assert.Len(t, svc.lastDocs, 2)
}

func TestIngestSingleDocumentBody(t *testing.T) {
	svc := &stubRAGService{}
	router := newTestRouter(svc)

	body := models.Document{Filename: "ducks.txt", Text: "Ducks quack."}
	w := perform(router, http.MethodPost, "/api/v1/sessions/sess-1/documents", body)
	require.Equal(t, http.StatusOK, w.Code)

	var resp models.IngestDocumentsResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, 1, resp.Ingested)
	require.Len(t, svc.lastDocs, 1)
	assert.Equal(t, "ducks.txt", svc.lastDocs[0].Filename)
}

func TestIngestDocumentsRejectsBadBody(t *testing.T) {
	router := newTestRouter(&stubRAGService{})

	w := perform(router, http.MethodPost, "/api/v1/sessions/sess-1/documents", gin.H{"unexpected": true})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestIngestDocumentsUnknownSession(t *testing.T) {
	svc := &stubRAGService{ingestErr: services.ErrSessionNotFound}
	router := newTestRouter(svc)

	body := models.IngestDocumentsRequest{Documents: []models.Document{{Filename: "a.txt", Text: "x"}}}
	w := perform(router, http.MethodPost, "/api/v1/sessions/missing/documents", body)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestAskEndpoint(t *testing.T) {
	svc := &stubRAGService{askResp: models.AskResponse{
		Answer:  "Ducks quack.\n\nSources: ducks.txt (Chunk 0)",
		Sources: []models.SourceRef{{Filename: "ducks.txt", ChunkIndex: 0}},
	}}
	router := newTestRouter(svc)

	w := perform(router, http.MethodPost, "/api/v1/sessions/sess-1/query", models.AskRequest{Query: "Do ducks quack?"})
	require.Equal(t, http.StatusOK, w.Code)

	var resp models.AskResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Contains(t, resp.Answer, "Ducks quack.")
	require.Len(t, resp.Sources, 1)
	assert.Equal(t, "ducks.txt", resp.Sources[0].Filename)
	assert.Equal(t, "Do ducks quack?", svc.lastQuery)
}

func TestAskRejectsMissingQuery(t *testing.T) {
	router := newTestRouter(&stubRAGService{})

	w := perform(router, http.MethodPost, "/api/v1/sessions/sess-1/query", gin.H{})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestAskUnknownSessionEndpoint(t *testing.T) {
	svc := &stubRAGService{askErr: services.ErrSessionNotFound}
	router := newTestRouter(svc)

	w := perform(router, http.MethodPost, "/api/v1/sessions/missing/query", models.AskRequest{Query: "anything"})
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestHistoryEndpoint(t *testing.T) {
	session := services.NewSessionManager().Create()
	session.AppendTurn(models.RoleUser, "hello")
	session.AppendTurn(models.RoleAssistant, "hi there")
	router := newTestRouter(&stubRAGService{session: session})

	w := perform(router, http.MethodGet, "/api/v1/sessions/"+session.ID+"/history", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var resp models.HistoryResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Len(t, resp.Turns, 2)
	assert.Equal(t, models.RoleUser, resp.Turns[0].Role)

	w = perform(router, http.MethodGet, "/api/v1/sessions/missing/history", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestSourcesEndpoint(t *testing.T) {
	session := services.NewSessionManager().Create()
	session.AddSources([]models.SourceRef{{Filename: "ducks.txt", ChunkIndex: 3}})
	router := newTestRouter(&stubRAGService{session: session})

	w := perform(router, http.MethodGet, "/api/v1/sessions/"+session.ID+"/sources", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var resp models.SourcesResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Len(t, resp.Sources, 1)
	assert.Equal(t, 3, resp.Sources[0].ChunkIndex)
}
