// Package memory implements MemoryWriter: idempotent, quality-gated,
// tiered persistence of completed question/answer pairs.
package memory

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/corvidlabs/querycore/domain"
	"github.com/corvidlabs/querycore/retrieval"
	"github.com/corvidlabs/querycore/shared/logger"
)

const (
	rawTTLSeconds      = 7 * 24 * 3600
	enrichedTTLSeconds = 30 * 24 * 3600
)

// RawWriter persists a raw-tier Q&A record and reports its existence for
// idempotency checks.
type RawWriter interface {
	ExistsByIdempotencyKey(ctx context.Context, key string) (bool, error)
	InsertRaw(ctx context.Context, content, userID, tenantID, agent, idempotencyKey string, metadata CacheMetadata) (string, error)
}

// EnrichedWriter persists an enriched-tier record.
type EnrichedWriter interface {
	InsertEnriched(ctx context.Context, content, userID, tenantID, agent, idempotencyKey string, qualityScore float64, metadata CacheMetadata) (string, error)
}

// KnowledgeWriter persists one extracted fact with no expiry.
type KnowledgeWriter interface {
	InsertKnowledgeFact(ctx context.Context, fact retrieval.Fact, sourceQuestion, userID, tenantID, traceID string) (string, error)
}

// CacheMetadata accompanies every tiered write and is the basis for
// bulk invalidation by prompt version or model.
type CacheMetadata struct {
	EmbeddingModel string
	PromptVersion  string
	LLMModel       string
	QualityScore   float64
	TraceID        string
	CreatedAt      time.Time
	TTLSeconds     int64
}

// WriteResult reports what MemoryWriter.Write actually persisted.
type WriteResult struct {
	RawID          string
	EnrichedID     string
	KnowledgeIDs   []string
	Quality        domain.QualityScore
	FactsExtracted int
	IdempotencyKey string
	WasDuplicate   bool
	TraceID        string
}

// Assessor scores a generated answer; a default heuristic assessor is
// provided but deployments may plug in an LLM-graded one.
type Assessor interface {
	Assess(question, answer string, sources []domain.RetrievalSource) domain.QualityScore
}

// Writer composes the three storage tiers and the quality gate into the
// write policy.
type Writer struct {
	raw            RawWriter
	enriched       EnrichedWriter
	knowledge      KnowledgeWriter
	factExtractor  retrieval.FactExtractor
	assessor       Assessor
	embeddingModel string
	enableFacts    bool
	enableEnriched bool
	log            *logger.Logger
}

// Config configures a Writer.
type Config struct {
	Raw            RawWriter
	Enriched       EnrichedWriter
	Knowledge      KnowledgeWriter
	FactExtractor  retrieval.FactExtractor
	Assessor       Assessor
	EmbeddingModel string
	EnableFacts    bool
	EnableEnriched bool
}

// New constructs a Writer from cfg, defaulting to the heuristic assessor
// when none is supplied.
func New(cfg Config) *Writer {
	assessor := cfg.Assessor
	if assessor == nil {
		assessor = HeuristicAssessor{}
	}
	return &Writer{
		raw: cfg.Raw, enriched: cfg.Enriched, knowledge: cfg.Knowledge,
		factExtractor: cfg.FactExtractor, assessor: assessor,
		embeddingModel: cfg.EmbeddingModel, enableFacts: cfg.EnableFacts, enableEnriched: cfg.EnableEnriched,
		log: logger.New("memory"),
	}
}

// Write persists the Q&A pair across the tiers its quality score earns,
// skipping entirely if the content was already written.
func (w *Writer) Write(ctx context.Context, traceID, question, answer string, sources []domain.RetrievalSource, userID, tenantID, modelVersion, promptVersion string, agentUsed domain.AgentType) WriteResult {
	result := WriteResult{TraceID: traceID}
	result.IdempotencyKey = idempotencyKey(question, answer, tenantID, modelVersion)

	if w.raw != nil {
		exists, err := w.raw.ExistsByIdempotencyKey(ctx, result.IdempotencyKey)
		if err != nil {
			w.log.Warn(traceID, userID, "idempotency check failed, proceeding with write", map[string]interface{}{"error": err.Error()})
		} else if exists {
			result.WasDuplicate = true
			w.log.Info(traceID, userID, "duplicate write skipped", map[string]interface{}{"idempotency_key": result.IdempotencyKey[:16]})
			return result
		}
	}

	result.Quality = w.assessor.Assess(question, answer, sources)
	tier := result.Quality.Tier()

	metadata := CacheMetadata{
		EmbeddingModel: w.embeddingModel,
		PromptVersion:  promptVersion,
		LLMModel:       modelVersion,
		QualityScore:   result.Quality.Overall,
		TraceID:        traceID,
		CreatedAt:      time.Now().UTC(),
		TTLSeconds:     rawTTLSeconds,
	}

	content := fmt.Sprintf("Q: %s\nA: %s", question, answer)

	if w.raw != nil {
		id, err := w.raw.InsertRaw(ctx, content, userID, tenantID, string(agentUsed), result.IdempotencyKey, metadata)
		if err != nil {
			w.log.ErrorWithErr(traceID, userID, "raw tier write failed", err, nil)
		} else {
			result.RawID = id
		}
	}

	if w.enableEnriched && w.enriched != nil && (tier == domain.TierEnriched || tier == domain.TierKnowledge) {
		enrichedMeta := metadata
		enrichedMeta.TTLSeconds = enrichedTTLSeconds
		id, err := w.enriched.InsertEnriched(ctx, content, userID, tenantID, string(agentUsed), result.IdempotencyKey, result.Quality.Overall, enrichedMeta)
		if err != nil {
			w.log.ErrorWithErr(traceID, userID, "enriched tier write failed", err, nil)
		} else {
			result.EnrichedID = id
		}
	}

	if w.enableFacts && w.knowledge != nil && w.factExtractor != nil && tier == domain.TierKnowledge {
		facts, err := w.factExtractor.Extract(ctx, question, answer)
		if err != nil {
			w.log.ErrorWithErr(traceID, userID, "fact extraction failed", err, nil)
		} else {
			result.FactsExtracted = len(facts)
			for _, fact := range facts {
				id, err := w.knowledge.InsertKnowledgeFact(ctx, fact, question, userID, tenantID, traceID)
				if err != nil {
					w.log.ErrorWithErr(traceID, userID, "knowledge tier write failed", err, nil)
					continue
				}
				result.KnowledgeIDs = append(result.KnowledgeIDs, id)
			}
		}
	}

	return result
}

func idempotencyKey(question, answer, tenantID, modelVersion string) string {
	content := question + "|" + answer + "|" + tenantID + "|" + modelVersion
	sum := sha256.Sum256([]byte(content))
	return hex.EncodeToString(sum[:])
}

// HeuristicAssessor is the default length/source-count based assessor,
// used until a deployment plugs in an LLM-graded one.
type HeuristicAssessor struct{}

func (HeuristicAssessor) Assess(question, answer string, sources []domain.RetrievalSource) domain.QualityScore {
	answerLen := len(answer)

	relevance := 0.0
	if answerLen > 0 {
		relevance = min1(float64(answerLen) / 500.0)
	}

	completeness := 0.5
	if answerLen > 100 {
		completeness = 0.8
	}

	sourceQuality := 0.5
	if len(sources) > 0 {
		sourceQuality = min1(float64(len(sources)) / 3.0)
	}

	const accuracy = 0.7

	overall := relevance*0.25 + completeness*0.25 + accuracy*0.25 + sourceQuality*0.25

	return domain.QualityScore{
		Overall:       overall,
		Relevance:     relevance,
		Completeness:  completeness,
		Accuracy:      accuracy,
		SourceQuality: sourceQuality,
	}
}

func min1(v float64) float64 {
	if v > 1.0 {
		return 1.0
	}
	return v
}
