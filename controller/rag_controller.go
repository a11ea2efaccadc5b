package controller

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"

	"github.com/queryquack/queryquack/models"
	"github.com/queryquack/queryquack/services"
)

// RAGController handles the HTTP requests for the pipeline. It parses
// requests and delegates all business logic to the RAGService.
type RAGController struct {
	ragService services.RAGService
}

func NewRAGController(service services.RAGService) *RAGController {
	return &RAGController{ragService: service}
}

// CreateSession handles POST /api/v1/sessions.
func (c *RAGController) CreateSession(ctx *gin.Context) {
	session := c.ragService.CreateSession()
	ctx.JSON(http.StatusCreated, models.SessionResponse{
		SessionID: session.ID,
		Namespace: session.Namespace,
	})
}

// EndSession handles DELETE /api/v1/sessions/:id. Idempotent.
func (c *RAGController) EndSession(ctx *gin.Context) {
	if err := c.ragService.EndSession(ctx.Request.Context(), ctx.Param("id")); err != nil {
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to end session"})
		return
	}
	ctx.Status(http.StatusNoContent)
}

// IngestDocuments handles POST /api/v1/sessions/:id/documents. The body
// is either {"documents": [...]} or a single document object, treated as
// a batch of one.
func (c *RAGController) IngestDocuments(ctx *gin.Context) {
	var req models.IngestDocumentsRequest
	if err := ctx.ShouldBindBodyWith(&req, binding.JSON); err != nil {
		var doc models.Document
		if docErr := ctx.ShouldBindBodyWith(&doc, binding.JSON); docErr != nil || doc.Filename == "" {
			ctx.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body: " + err.Error()})
			return
		}
		req.Documents = []models.Document{doc}
	}

	ingested, skipped, err := c.ragService.IngestBatch(ctx.Request.Context(), ctx.Param("id"), req.Documents)
	if err != nil {
		if errors.Is(err, services.ErrSessionNotFound) {
			ctx.JSON(http.StatusNotFound, gin.H{"error": "Session not found"})
			return
		}
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to ingest documents"})
		return
	}

	ctx.JSON(http.StatusOK, models.IngestDocumentsResponse{Ingested: ingested, Skipped: skipped})
}

// Ask handles POST /api/v1/sessions/:id/query.
func (c *RAGController) Ask(ctx *gin.Context) {
	var req models.AskRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body: " + err.Error()})
		return
	}

	response, err := c.ragService.Ask(ctx.Request.Context(), ctx.Param("id"), req.Query)
	if err != nil {
		if errors.Is(err, services.ErrSessionNotFound) {
			ctx.JSON(http.StatusNotFound, gin.H{"error": "Session not found"})
			return
		}
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to answer question"})
		return
	}

	ctx.JSON(http.StatusOK, response)
}

// History handles GET /api/v1/sessions/:id/history.
func (c *RAGController) History(ctx *gin.Context) {
	session, ok := c.ragService.Session(ctx.Param("id"))
	if !ok {
		ctx.JSON(http.StatusNotFound, gin.H{"error": "Session not found"})
		return
	}
	ctx.JSON(http.StatusOK, models.HistoryResponse{Turns: session.History()})
}

// Sources handles GET /api/v1/sessions/:id/sources.
func (c *RAGController) Sources(ctx *gin.Context) {
	session, ok := c.ragService.Session(ctx.Param("id"))
	if !ok {
		ctx.JSON(http.StatusNotFound, gin.H{"error": "Session not found"})
		return
	}
	ctx.JSON(http.StatusOK, models.SourcesResponse{Sources: session.Sources()})
}
