// Package qdrant adapts a Qdrant collection to the vectorstore contract.
// Namespaces map to a payload field so one collection serves all
// sessions.
package qdrant

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/qdrant/go-client/qdrant"

	"github.com/queryquack/queryquack/vectorstore"
)

const (
	namespaceField = "namespace"

	// Qdrant point IDs must be UUIDs or integers, so the original record
	// ID travels in the payload instead.
	recordIDField = "record_id"
)

type Store struct {
	client     *qdrant.Client
	collection string
	dimension  int
}

type Config struct {
	Host       string
	Port       int
	APIKey     string
	Collection string
	Dimension  int
}

// New connects to Qdrant and creates the collection (cosine distance)
// if it does not exist yet.
func New(ctx context.Context, cfg Config) (*Store, error) {
	client, err := qdrant.NewClient(&qdrant.Config{
		Host:   cfg.Host,
		Port:   cfg.Port,
		APIKey: cfg.APIKey,
	})
	if err != nil {
		return nil, fmt.Errorf("qdrant client: %w", err)
	}

	s := &Store{client: client, collection: cfg.Collection, dimension: cfg.Dimension}
	if err := s.ensureCollection(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Store) ensureCollection(ctx context.Context) error {
	exists, err := s.client.CollectionExists(ctx, s.collection)
	if err != nil {
		return fmt.Errorf("check collection: %w", err)
	}
	if exists {
		info, err := s.client.GetCollectionInfo(ctx, s.collection)
		if err != nil {
			return fmt.Errorf("collection info: %w", err)
		}
		if params := info.GetConfig().GetParams().GetVectorsConfig().GetParams(); params != nil {
			if int(params.GetSize()) != s.dimension {
				return fmt.Errorf("collection %q has dimension %d, configured %d: %w",
					s.collection, params.GetSize(), s.dimension, vectorstore.ErrDimensionMismatch)
			}
		}
		return nil
	}

	err = s.client.CreateCollection(ctx, &qdrant.CreateCollection{
		CollectionName: s.collection,
		VectorsConfig: &qdrant.VectorsConfig{
			Config: &qdrant.VectorsConfig_Params{
				Params: &qdrant.VectorParams{
					Size:     uint64(s.dimension),
					Distance: qdrant.Distance_Cosine,
				},
			},
		},
	})
	if err != nil {
		return fmt.Errorf("create collection: %w", err)
	}
	return nil
}

func (s *Store) Upsert(ctx context.Context, namespace string, records []vectorstore.Record) error {
	pts := make([]*qdrant.PointStruct, len(records))
	for i, r := range records {
		if len(r.Values) != s.dimension {
			return vectorstore.ErrDimensionMismatch
		}

		// Partition fields are written last so a colliding metadata key
		// can never re-home the point into another namespace.
		payload := make(map[string]any, len(r.Metadata)+2)
		for k, v := range r.Metadata {
			payload[k] = v
		}
		payload[namespaceField] = namespace
		payload[recordIDField] = r.ID

		pts[i] = &qdrant.PointStruct{
			Id:      pointID(r.ID),
			Vectors: qdrant.NewVectors(r.Values...),
			Payload: qdrant.NewValueMap(payload),
		}
	}

	if _, err := s.client.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: s.collection,
		Points:         pts,
	}); err != nil {
		return &vectorstore.StoreError{Op: "upsert", Err: err}
	}
	return nil
}

func (s *Store) Query(ctx context.Context, namespace string, vector []float32, topK int) ([]vectorstore.Match, error) {
	if len(vector) != s.dimension {
		return nil, vectorstore.ErrDimensionMismatch
	}

	limit := uint64(topK)
	resp, err := s.client.Query(ctx, &qdrant.QueryPoints{
		CollectionName: s.collection,
		Limit:          &limit,
		Filter: &qdrant.Filter{
			Must: []*qdrant.Condition{qdrant.NewMatch(namespaceField, namespace)},
		},
		Query:       qdrant.NewQuery(vector...),
		WithPayload: qdrant.NewWithPayload(true),
	})
	if err != nil {
		return nil, &vectorstore.StoreError{Op: "query", Err: err}
	}

	matches := make([]vectorstore.Match, 0, len(resp))
	for _, r := range resp {
		md := make(map[string]any, len(r.Payload))
		var id string
		for k, v := range r.Payload {
			switch k {
			case namespaceField:
			case recordIDField:
				id, _ = convertValue(v).(string)
			default:
				md[k] = convertValue(v)
			}
		}
		if id == "" && r.Id != nil {
			switch x := r.Id.PointIdOptions.(type) {
			case *qdrant.PointId_Uuid:
				id = x.Uuid
			case *qdrant.PointId_Num:
				id = fmt.Sprintf("%d", x.Num)
			}
		}

		matches = append(matches, vectorstore.Match{
			ID:       id,
			Score:    float64(r.Score),
			Metadata: md,
		})
	}
	return matches, nil
}

func (s *Store) Delete(ctx context.Context, _ string, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	pointIDs := make([]*qdrant.PointId, len(ids))
	for i, id := range ids {
		pointIDs[i] = pointID(id)
	}
	if _, err := s.client.Delete(ctx, &qdrant.DeletePoints{
		CollectionName: s.collection,
		Points:         qdrant.NewPointsSelector(pointIDs...),
	}); err != nil {
		return &vectorstore.StoreError{Op: "delete", Err: err}
	}
	return nil
}

// pointID maps a record ID onto the UUID space Qdrant requires.
func pointID(recordID string) *qdrant.PointId {
	return qdrant.NewIDUUID(uuid.NewSHA1(uuid.NameSpaceOID, []byte(recordID)).String())
}

func (s *Store) DeleteNamespace(ctx context.Context, namespace string) error {
	_, err := s.client.Delete(ctx, &qdrant.DeletePoints{
		CollectionName: s.collection,
		Points: qdrant.NewPointsSelectorFilter(&qdrant.Filter{
			Must: []*qdrant.Condition{qdrant.NewMatch(namespaceField, namespace)},
		}),
	})
	if err != nil {
		return &vectorstore.StoreError{Op: "delete namespace", Err: err}
	}
	return nil
}

func (s *Store) Close() error { return s.client.Close() }

func convertValue(v *qdrant.Value) any {
	switch val := v.Kind.(type) {
	case *qdrant.Value_BoolValue:
		return val.BoolValue
	case *qdrant.Value_IntegerValue:
		return val.IntegerValue
	case *qdrant.Value_DoubleValue:
		return val.DoubleValue
	case *qdrant.Value_StringValue:
		return val.StringValue
	case *qdrant.Value_ListValue:
		out := make([]any, len(val.ListValue.Values))
		for i, lv := range val.ListValue.Values {
			out[i] = convertValue(lv)
		}
		return out
	case *qdrant.Value_StructValue:
		out := make(map[string]any, len(val.StructValue.Fields))
		for k, nv := range val.StructValue.Fields {
			out[k] = convertValue(nv)
		}
		return out
	}
	return nil
}
