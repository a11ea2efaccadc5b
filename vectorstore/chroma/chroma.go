// Package chroma adapts a ChromaDB collection (v2 API) to the
// vectorstore contract. Namespaces map to a metadata attribute and every
// operation is scoped by a where-filter on it.
package chroma

import (
	"context"
	"encoding/json"
	"fmt"

	chromago "github.com/amikos-tech/chroma-go/pkg/api/v2"
	"github.com/amikos-tech/chroma-go/pkg/embeddings"

	"github.com/queryquack/queryquack/vectorstore"
)

const namespaceField = "namespace"

type Store struct {
	client     chromago.Client
	collection chromago.Collection
	dimension  int
}

type Config struct {
	URL        string
	Collection string
	Dimension  int
}

// New connects to Chroma and gets or creates the collection.
func New(ctx context.Context, cfg Config) (*Store, error) {
	client, err := chromago.NewHTTPClient(chromago.WithBaseURL(cfg.URL))
	if err != nil {
		return nil, fmt.Errorf("chroma client: %w", err)
	}

	collection, err := client.GetOrCreateCollection(
		ctx,
		cfg.Collection,
		chromago.WithCollectionMetadataCreate(
			chromago.NewMetadata(
				chromago.NewStringAttribute("description", "document QA embeddings"),
				chromago.NewIntAttribute("dimension", int64(cfg.Dimension)),
			),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("get or create collection %q: %w", cfg.Collection, err)
	}

	return &Store{client: client, collection: collection, dimension: cfg.Dimension}, nil
}

func (s *Store) Upsert(ctx context.Context, namespace string, records []vectorstore.Record) error {
	for _, r := range records {
		if len(r.Values) != s.dimension {
			return vectorstore.ErrDimensionMismatch
		}

		text, _ := r.Metadata["text"].(string)
		// The namespace attribute goes last and colliding metadata keys
		// are dropped, so a record can never claim another partition.
		attrs := make([]*chromago.MetaAttribute, 0, len(r.Metadata)+1)
		for k, v := range r.Metadata {
			if k == namespaceField {
				continue
			}
			attrs = append(attrs, toAttribute(k, v))
		}
		attrs = append(attrs, chromago.NewStringAttribute(namespaceField, namespace))

		err := s.collection.Add(ctx,
			chromago.WithIDs(chromago.DocumentID(r.ID)),
			chromago.WithTexts(text),
			chromago.WithEmbeddings(embeddings.NewEmbeddingFromFloat32(r.Values)),
			chromago.WithMetadatas(chromago.NewDocumentMetadata(attrs...)),
		)
		if err != nil {
			return &vectorstore.StoreError{Op: "upsert", Err: err}
		}
	}
	return nil
}

func (s *Store) Query(ctx context.Context, namespace string, vector []float32, topK int) ([]vectorstore.Match, error) {
	if len(vector) != s.dimension {
		return nil, vectorstore.ErrDimensionMismatch
	}

	results, err := s.collection.Query(ctx,
		chromago.WithQueryEmbeddings(embeddings.NewEmbeddingFromFloat32(vector)),
		chromago.WithNResults(topK),
		chromago.WithWhereQuery(chromago.EqString(namespaceField, namespace)),
	)
	if err != nil {
		return nil, &vectorstore.StoreError{Op: "query", Err: err}
	}

	idGroups := results.GetIDGroups()
	metadataGroups := results.GetMetadatasGroups()
	distanceGroups := results.GetDistancesGroups()
	if len(idGroups) == 0 {
		return nil, nil
	}

	matches := make([]vectorstore.Match, 0, len(idGroups[0]))
	for i, id := range idGroups[0] {
		md := metadataToMap(metadataGroups[0][i])
		delete(md, namespaceField)

		// Chroma reports cosine distance; similarity = 1 - distance.
		score := 0.0
		if len(distanceGroups) > 0 && i < len(distanceGroups[0]) {
			score = 1 - float64(distanceGroups[0][i])
		}

		matches = append(matches, vectorstore.Match{
			ID:       string(id),
			Score:    score,
			Metadata: md,
		})
	}
	return matches, nil
}

func (s *Store) Delete(ctx context.Context, _ string, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	docIDs := make([]chromago.DocumentID, len(ids))
	for i, id := range ids {
		docIDs[i] = chromago.DocumentID(id)
	}
	if err := s.collection.Delete(ctx, chromago.WithIDsDelete(docIDs...)); err != nil {
		return &vectorstore.StoreError{Op: "delete", Err: err}
	}
	return nil
}

func (s *Store) DeleteNamespace(ctx context.Context, namespace string) error {
	err := s.collection.Delete(ctx, chromago.WithWhereDelete(chromago.EqString(namespaceField, namespace)))
	if err != nil {
		return &vectorstore.StoreError{Op: "delete namespace", Err: err}
	}
	return nil
}

func (s *Store) Close() error { return s.client.Close() }

func toAttribute(key string, value any) *chromago.MetaAttribute {
	switch v := value.(type) {
	case string:
		return chromago.NewStringAttribute(key, v)
	case int:
		return chromago.NewIntAttribute(key, int64(v))
	case int64:
		return chromago.NewIntAttribute(key, v)
	case float64:
		return chromago.NewFloatAttribute(key, v)
	case bool:
		return chromago.NewBoolAttribute(key, v)
	default:
		return chromago.NewStringAttribute(key, fmt.Sprintf("%v", v))
	}
}

// metadataToMap converts Chroma's opaque metadata type through JSON, the
// only stable way the v2 API exposes attribute values.
func metadataToMap(meta chromago.DocumentMetadata) map[string]any {
	out := make(map[string]any)
	if meta == nil {
		return out
	}
	raw, err := json.Marshal(meta)
	if err != nil {
		return out
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return map[string]any{}
	}
	return out
}
