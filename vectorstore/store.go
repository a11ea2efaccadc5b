// Package vectorstore defines the storage contract for embedding vectors
// and a batching upsert helper shared by every backend.
package vectorstore

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Record is one persisted vector with its metadata. IDs are globally
// unique across namespaces; metadata carries at least filename,
// chunk_index and text.
type Record struct {
	ID       string
	Values   []float32
	Metadata map[string]any
}

// Match is one similarity-search hit, score in descending order.
type Match struct {
	ID       string
	Score    float64
	Metadata map[string]any
}

// Store persists vectors partitioned by namespace. A query in one
// namespace never returns records from another.
type Store interface {
	// Upsert writes records into the namespace. Callers with large
	// record sets should go through BatchUpsert.
	Upsert(ctx context.Context, namespace string, records []Record) error

	// Query returns up to topK nearest records by cosine similarity.
	Query(ctx context.Context, namespace string, vector []float32, topK int) ([]Match, error)

	// Delete removes the identified records from the namespace. Unknown
	// IDs are ignored.
	Delete(ctx context.Context, namespace string, ids []string) error

	// DeleteNamespace removes every record in the namespace. Deleting an
	// absent namespace is not an error.
	DeleteNamespace(ctx context.Context, namespace string) error

	Close() error
}

// ErrDimensionMismatch marks a fatal configuration problem: the stored
// index and the supplied vectors disagree on dimensionality. Not
// retryable.
var ErrDimensionMismatch = errors.New("vector dimension mismatch")

// StoreError reports a failed store operation, including how many
// batches of a partial upsert had already committed (at-least-once
// semantics, no rollback).
type StoreError struct {
	Op               string
	BatchesCommitted int
	Err              error
}

func (e *StoreError) Error() string {
	if e.BatchesCommitted > 0 {
		return fmt.Sprintf("vectorstore %s failed after %d committed batches: %v", e.Op, e.BatchesCommitted, e.Err)
	}
	return fmt.Sprintf("vectorstore %s failed: %v", e.Op, e.Err)
}

func (e *StoreError) Unwrap() error { return e.Err }

// DefaultBatchSize keeps upsert payloads under the per-request ceiling
// of hosted vector databases.
const DefaultBatchSize = 50

// batchPause spaces out consecutive batches to respect rate limits.
const batchPause = 200 * time.Millisecond

// BatchUpsert writes records in batches of batchSize. The first failed
// batch aborts the remainder; batches already written stay written.
func BatchUpsert(ctx context.Context, store Store, namespace string, records []Record, batchSize int) error {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}

	committed := 0
	for start := 0; start < len(records); start += batchSize {
		end := start + batchSize
		if end > len(records) {
			end = len(records)
		}
		if err := store.Upsert(ctx, namespace, records[start:end]); err != nil {
			return &StoreError{Op: "upsert", BatchesCommitted: committed, Err: err}
		}
		committed++

		if end < len(records) {
			select {
			case <-ctx.Done():
				return &StoreError{Op: "upsert", BatchesCommitted: committed, Err: ctx.Err()}
			case <-time.After(batchPause):
			}
		}
	}
	return nil
}
