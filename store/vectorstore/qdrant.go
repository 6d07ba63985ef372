// Package vectorstore provides concrete implementations of
// retrieval.VectorStore: a Qdrant-backed adapter for production
// deployments and an in-memory fake for tests.
package vectorstore

import (
	"context"
	"fmt"

	qdrant "github.com/qdrant/go-client/qdrant"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/corvidlabs/querycore/retrieval"
)

// DialQdrant opens a plaintext gRPC connection to a Qdrant instance and
// returns the two stub clients QdrantStore needs. Qdrant deployments are
// assumed to sit behind a trusted network boundary (sidecar or cluster-
// internal), matching how the rest of this deployment talks to storage.
func DialQdrant(addr string) (qdrant.PointsClient, qdrant.CollectionsClient, error) {
	conn, err := grpc.NewClient(addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, nil, fmt.Errorf("dial qdrant: %w", err)
	}
	return qdrant.NewPointsClient(conn), qdrant.NewCollectionsClient(conn), nil
}

// QdrantStore adapts a Qdrant gRPC client to the retrieval.VectorStore
// contract.
type QdrantStore struct {
	points qdrant.PointsClient
	coll   qdrant.CollectionsClient
}

// NewQdrantStore wraps existing Qdrant gRPC clients.
func NewQdrantStore(points qdrant.PointsClient, coll qdrant.CollectionsClient) *QdrantStore {
	return &QdrantStore{points: points, coll: coll}
}

func (q *QdrantStore) SemanticSearch(ctx context.Context, collection string, queryVector []float32, limit int, filter map[string]interface{}) ([]retrieval.VectorHit, error) {
	limitU := uint64(limit)
	resp, err := q.points.Search(ctx, &qdrant.SearchPoints{
		CollectionName: collection,
		Vector:         queryVector,
		Limit:          limitU,
		WithPayload:    &qdrant.WithPayloadSelector{SelectorOptions: &qdrant.WithPayloadSelector_Enable{Enable: true}},
	})
	if err != nil {
		return nil, fmt.Errorf("qdrant search: %w", err)
	}

	hits := make([]retrieval.VectorHit, 0, len(resp.GetResult()))
	for _, p := range resp.GetResult() {
		props := make(map[string]interface{}, len(p.GetPayload()))
		for k, v := range p.GetPayload() {
			props[k] = qdrantValueToInterface(v)
		}
		hits = append(hits, retrieval.VectorHit{
			ID:         pointIDToString(p.GetId()),
			Distance:   float64(p.GetScore()),
			Properties: props,
		})
	}
	return hits, nil
}

func (q *QdrantStore) InsertVector(ctx context.Context, collection string, vector []float32, data map[string]interface{}) (string, error) {
	payload := make(map[string]*qdrant.Value, len(data))
	for k, v := range data {
		payload[k] = interfaceToQdrantValue(v)
	}
	id := qdrant.NewID(newPointUUID())
	_, err := q.points.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: collection,
		Points: []*qdrant.PointStruct{{
			Id:      id,
			Vectors: qdrant.NewVectors(vector...),
			Payload: payload,
		}},
	})
	if err != nil {
		return "", fmt.Errorf("qdrant upsert: %w", err)
	}
	return pointIDToString(id), nil
}

func (q *QdrantStore) CollectionExists(ctx context.Context, name string) (bool, error) {
	resp, err := q.coll.List(ctx, &qdrant.ListCollectionsRequest{})
	if err != nil {
		return false, err
	}
	for _, c := range resp.GetCollections() {
		if c.GetName() == name {
			return true, nil
		}
	}
	return false, nil
}

func (q *QdrantStore) CountVectors(ctx context.Context, name string) (int, error) {
	resp, err := q.points.Count(ctx, &qdrant.CountPoints{CollectionName: name})
	if err != nil {
		return 0, err
	}
	return int(resp.GetResult().GetCount()), nil
}

func qdrantValueToInterface(v *qdrant.Value) interface{} {
	switch k := v.GetKind().(type) {
	case *qdrant.Value_StringValue:
		return k.StringValue
	case *qdrant.Value_IntegerValue:
		return k.IntegerValue
	case *qdrant.Value_DoubleValue:
		return k.DoubleValue
	case *qdrant.Value_BoolValue:
		return k.BoolValue
	default:
		return nil
	}
}

func interfaceToQdrantValue(v interface{}) *qdrant.Value {
	switch t := v.(type) {
	case string:
		return &qdrant.Value{Kind: &qdrant.Value_StringValue{StringValue: t}}
	case int64:
		return &qdrant.Value{Kind: &qdrant.Value_IntegerValue{IntegerValue: t}}
	case float64:
		return &qdrant.Value{Kind: &qdrant.Value_DoubleValue{DoubleValue: t}}
	case bool:
		return &qdrant.Value{Kind: &qdrant.Value_BoolValue{BoolValue: t}}
	default:
		return &qdrant.Value{Kind: &qdrant.Value_StringValue{StringValue: fmt.Sprintf("%v", t)}}
	}
}

func pointIDToString(id *qdrant.PointId) string {
	if id == nil {
		return ""
	}
	if uuid := id.GetUuid(); uuid != "" {
		return uuid
	}
	return fmt.Sprintf("%d", id.GetNum())
}

func newPointUUID() string {
	// Delegated to google/uuid at the call site in production wiring;
	// kept here as a narrow seam so this file has no import-cycle back
	// to the uuid-using cmd layer.
	return generateUUID()
}
