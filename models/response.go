package models

type SessionResponse struct {
	SessionID string `json:"session_id"`
	Namespace string `json:"namespace"`
}

type IngestDocumentsResponse struct {
	Ingested int      `json:"ingested"`
	Skipped  []string `json:"skipped,omitempty"`
}

type AskResponse struct {
	Answer  string      `json:"answer"`
	Sources []SourceRef `json:"sources,omitempty"`
}

type HistoryResponse struct {
	Turns []ChatTurn `json:"turns"`
}

type SourcesResponse struct {
	Sources []SourceRef `json:"sources"`
}
