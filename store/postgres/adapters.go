package postgres

import (
	"context"
	"crypto/sha256"
	"encoding/hex"

	"github.com/corvidlabs/querycore/audit"
	"github.com/corvidlabs/querycore/domain"
	"github.com/corvidlabs/querycore/memory"
	"github.com/corvidlabs/querycore/retrieval"
)

// MemoryAdapter narrows Store's record-based API to the flat-argument
// shape memory.Writer's three tier interfaces expect, so memory.Writer
// can be constructed directly against a *postgres.Store.
type MemoryAdapter struct {
	store *Store
}

// NewMemoryAdapter wraps store for use as memory.RawWriter,
// memory.EnrichedWriter and memory.KnowledgeWriter.
func NewMemoryAdapter(store *Store) *MemoryAdapter {
	return &MemoryAdapter{store: store}
}

func (a *MemoryAdapter) ExistsByIdempotencyKey(ctx context.Context, key string) (bool, error) {
	return a.store.ExistsByIdempotencyKey(ctx, key)
}

func (a *MemoryAdapter) InsertRaw(ctx context.Context, content, userID, tenantID, agent, idempotencyKey string, metadata memory.CacheMetadata) (string, error) {
	return a.store.InsertRaw(ctx, RawRecord{
		ContentHash:    contentHash(content),
		Content:        content,
		UserID:         userID,
		TenantID:       tenantID,
		SourceType:     "llm_response",
		Agent:          agent,
		PrivacyLevel:   domain.Internal,
		CreatedAt:      metadata.CreatedAt,
		IdempotencyKey: idempotencyKey,
		TTLSeconds:     metadata.TTLSeconds,
	})
}

func (a *MemoryAdapter) InsertEnriched(ctx context.Context, content, userID, tenantID, agent, idempotencyKey string, qualityScore float64, metadata memory.CacheMetadata) (string, error) {
	return a.store.InsertEnriched(ctx, EnrichedRecord{
		RawRecord: RawRecord{
			ContentHash:    contentHash(content),
			Content:        content,
			UserID:         userID,
			TenantID:       tenantID,
			SourceType:     "llm_response",
			Agent:          agent,
			PrivacyLevel:   domain.Internal,
			CreatedAt:      metadata.CreatedAt,
			IdempotencyKey: idempotencyKey,
		},
		QualityScore:  qualityScore,
		PromptVersion: metadata.PromptVersion,
		LLMModel:      metadata.LLMModel,
	}, metadata.TTLSeconds)
}

func (a *MemoryAdapter) InsertKnowledgeFact(ctx context.Context, fact retrieval.Fact, sourceQuestion, userID, tenantID, traceID string) (string, error) {
	return a.store.InsertKnowledgeFact(ctx, KnowledgeRecord{
		CanonicalQuery:       sourceQuestion,
		AnswerSummary:        fact.Content,
		FullAnswer:           fact.Content,
		ExtractionConfidence: fact.Confidence,
	})
}

func contentHash(content string) string {
	sum := sha256.Sum256([]byte(content))
	return hex.EncodeToString(sum[:])
}

// AuditAdapter implements audit.Sink over the query_history table,
// recording egress records as a best-effort durable trail alongside the
// always-on structured log audit.Logger already emits.
type AuditAdapter struct {
	store *Store
}

// NewAuditAdapter wraps store for use as audit.Sink.
func NewAuditAdapter(store *Store) *AuditAdapter {
	return &AuditAdapter{store: store}
}

func (a *AuditAdapter) Write(record audit.Record) error {
	if record.Direction != "egress" {
		return nil
	}
	return a.store.InsertQueryHistory(context.Background(), QueryHistoryRecord{
		QueryID:        record.TraceID,
		ResponseSource: record.Source,
		LatencyMS:      record.DurationMS,
	})
}
