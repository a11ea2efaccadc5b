package services

import "errors"

// Pipeline error taxonomy. Store errors live in the vectorstore package.
var (
	// ErrNoContent means a document had no usable text. The caller skips
	// the document and continues the batch.
	ErrNoContent = errors.New("no text content to process")

	// ErrModelUnavailable means an embedding or generation backend could
	// not be reached. Callers degrade (placeholder vectors, fallback
	// answer) instead of aborting the session.
	ErrModelUnavailable = errors.New("model backend unavailable")

	// ErrSessionNotFound is returned for operations on an unknown or
	// already-ended session.
	ErrSessionNotFound = errors.New("session not found")
)

// GenerationError wraps an LLM failure so the generator's fallback chain
// can distinguish it from programming errors.
type GenerationError struct {
	Err error
}

func (e *GenerationError) Error() string { return "generation failed: " + e.Err.Error() }

func (e *GenerationError) Unwrap() error { return e.Err }
