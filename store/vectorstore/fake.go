package vectorstore

import (
	"context"
	"math"
	"sort"

	"github.com/corvidlabs/querycore/retrieval"
)

// Fake is an in-memory retrieval.VectorStore used by package tests in
// place of a live Qdrant deployment.
type Fake struct {
	collections map[string][]fakePoint
}

type fakePoint struct {
	id         string
	vector     []float32
	properties map[string]interface{}
}

// NewFake constructs an empty in-memory store.
func NewFake() *Fake {
	return &Fake{collections: make(map[string][]fakePoint)}
}

// Seed inserts a point directly, bypassing embedding, for test setup.
func (f *Fake) Seed(collection, id string, vector []float32, properties map[string]interface{}) {
	f.collections[collection] = append(f.collections[collection], fakePoint{id: id, vector: vector, properties: properties})
}

func (f *Fake) SemanticSearch(_ context.Context, collection string, queryVector []float32, limit int, _ map[string]interface{}) ([]retrieval.VectorHit, error) {
	points := f.collections[collection]
	hits := make([]retrieval.VectorHit, 0, len(points))
	for _, p := range points {
		hits = append(hits, retrieval.VectorHit{
			ID:         p.id,
			Distance:   cosineSimilarity(queryVector, p.vector),
			Properties: p.properties,
		})
	}
	sort.Slice(hits, func(i, j int) bool { return hits[i].Distance > hits[j].Distance })
	if len(hits) > limit && limit > 0 {
		hits = hits[:limit]
	}
	return hits, nil
}

func (f *Fake) InsertVector(_ context.Context, collection string, vector []float32, data map[string]interface{}) (string, error) {
	id := generateUUID()
	f.collections[collection] = append(f.collections[collection], fakePoint{id: id, vector: vector, properties: data})
	return id, nil
}

func (f *Fake) CollectionExists(_ context.Context, name string) (bool, error) {
	_, ok := f.collections[name]
	return ok, nil
}

func (f *Fake) CountVectors(_ context.Context, name string) (int, error) {
	return len(f.collections[name]), nil
}

func cosineSimilarity(a, b []float32) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}
	var dot, magA, magB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		magA += float64(a[i]) * float64(a[i])
		magB += float64(b[i]) * float64(b[i])
	}
	if magA == 0 || magB == 0 {
		return 0
	}
	return dot / (math.Sqrt(magA) * math.Sqrt(magB))
}
