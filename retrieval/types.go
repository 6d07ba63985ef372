// Package retrieval implements the multi-source parallel search, dedup,
// CRS ranking, context-build and sanitize pipeline described in the
// component design's RetrievalEngine section.
package retrieval

import (
	"context"

	"github.com/corvidlabs/querycore/domain"
)

// Request bundles the inputs to one retrieval call.
type Request struct {
	Query            string
	UserID           string
	Role             domain.Role
	TenantID         string
	Intent           domain.Intent
	Limit            int
	AugmentedQueries []string
	NeedsWebSearch   bool
	ConversationID   string
	IntentHint       *domain.RetrievalMode
}

// Result is the RetrievalEngine's output.
type Result struct {
	Context                  string
	SanitizedContext         string
	Sources                  []domain.ScoredResult
	CacheHits                int
	KnowledgeHits            int
	MemoryHits               int
	WebHits                  int
	IsContextClean           bool
	SanitizationCount        int
	RetrievalMode            domain.RetrievalMode
	ThresholdsUsed           domain.ThresholdSet
	AssociatedItemsPreloaded []string
	CoRetrievalRecorded      bool
	TraceID                  string
}

// VectorStore is the out-of-scope external collaborator contract: any
// concrete vector database satisfies this with a thin adapter (see
// store/vectorstore for a Qdrant-backed implementation and an in-memory
// fake used in tests).
type VectorStore interface {
	SemanticSearch(ctx context.Context, collection string, queryVector []float32, limit int, filter map[string]interface{}) ([]VectorHit, error)
	InsertVector(ctx context.Context, collection string, vector []float32, data map[string]interface{}) (string, error)
	CollectionExists(ctx context.Context, name string) (bool, error)
	CountVectors(ctx context.Context, name string) (int, error)
}

// VectorHit is one raw hit from a vector store search, before it is
// turned into a domain.RetrievalSource.
type VectorHit struct {
	ID         string
	Distance   float64 // similarity already normalized to [0,1]
	Properties map[string]interface{}
}

// Embedder produces the query vector handed to VectorStore.SemanticSearch.
// Embedding model invocation is out of scope; this is the pluggable seam.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// FactExtractor is the pluggable knowledge-extraction oracle consulted by
// MemoryWriter, declared here since RetrievalEngine's audit trail
// references the same fact/topic vocabulary.
type FactExtractor interface {
	Extract(ctx context.Context, question, answer string) ([]Fact, error)
}

// Fact is one extracted knowledge-tier candidate.
type Fact struct {
	Content    string
	Confidence float64
}
