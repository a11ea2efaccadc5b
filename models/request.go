package models

type IngestDocumentsRequest struct {
	Documents []Document `json:"documents" binding:"required"`
}

type AskRequest struct {
	Query string `json:"query" binding:"required"`
}
