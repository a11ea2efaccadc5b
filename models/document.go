package models

// Document is one uploaded source, already reduced to plain text by the
// caller. Filename is unique within a session; Metadata carries whatever
// the extraction layer knows about the file (type, page count, ...).
type Document struct {
	Filename string         `json:"filename"`
	Type     string         `json:"type,omitempty"`
	Text     string         `json:"text"`
	Pages    int            `json:"pages,omitempty"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// Chunk is a contiguous span of a document's text, the unit of
// embedding and retrieval. Index is 0-based and unique per document.
type Chunk struct {
	Text     string
	Index    int
	Metadata map[string]any
}

// RetrievedChunk is an ephemeral search result, best relevance first.
type RetrievedChunk struct {
	Filename   string  `json:"filename"`
	ChunkIndex int     `json:"chunk_index"`
	Text       string  `json:"text"`
	Score      float64 `json:"score"`
}

// SourceRef identifies a cited chunk.
type SourceRef struct {
	Filename   string `json:"filename"`
	ChunkIndex int    `json:"chunk_index"`
}

// Chat roles.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// ChatTurn is one entry in a session's conversation history.
type ChatTurn struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}
