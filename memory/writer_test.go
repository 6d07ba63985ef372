package memory

import (
	"context"
	"errors"
	"testing"

	"github.com/corvidlabs/querycore/domain"
	"github.com/corvidlabs/querycore/retrieval"
)

type fakeRawWriter struct {
	exists     bool
	existsErr  error
	insertErr  error
	insertedID string
	calls      int
}

func (f *fakeRawWriter) ExistsByIdempotencyKey(ctx context.Context, key string) (bool, error) {
	return f.exists, f.existsErr
}
func (f *fakeRawWriter) InsertRaw(ctx context.Context, content, userID, tenantID, agent, idempotencyKey string, metadata CacheMetadata) (string, error) {
	f.calls++
	if f.insertErr != nil {
		return "", f.insertErr
	}
	return f.insertedID, nil
}

type fakeEnrichedWriter struct {
	calls int
	err   error
}

func (f *fakeEnrichedWriter) InsertEnriched(ctx context.Context, content, userID, tenantID, agent, idempotencyKey string, qualityScore float64, metadata CacheMetadata) (string, error) {
	f.calls++
	if f.err != nil {
		return "", f.err
	}
	return "enriched-1", nil
}

type fakeKnowledgeWriter struct {
	calls int
}

func (f *fakeKnowledgeWriter) InsertKnowledgeFact(ctx context.Context, fact retrieval.Fact, sourceQuestion, userID, tenantID, traceID string) (string, error) {
	f.calls++
	return "fact-1", nil
}

type fakeExtractor struct {
	facts []retrieval.Fact
	err   error
}

func (f fakeExtractor) Extract(ctx context.Context, question, answer string) ([]retrieval.Fact, error) {
	return f.facts, f.err
}

type fixedAssessor struct {
	score domain.QualityScore
}

func (a fixedAssessor) Assess(question, answer string, sources []domain.RetrievalSource) domain.QualityScore {
	return a.score
}

func TestWrite_SkipsDuplicateContent(t *testing.T) {
	raw := &fakeRawWriter{exists: true}
	w := New(Config{Raw: raw, Assessor: fixedAssessor{score: domain.QualityScore{Overall: 0.9}}})

	result := w.Write(context.Background(), "trace", "q", "a", nil, "user", "tenant", "gpt-4", "v1", domain.AgentOllama)
	if !result.WasDuplicate {
		t.Fatal("expected WasDuplicate when the idempotency key already exists")
	}
	if raw.calls != 0 {
		t.Error("expected no insert when the write was a duplicate")
	}
}

func TestWrite_IdempotencyCheckErrorStillWrites(t *testing.T) {
	raw := &fakeRawWriter{existsErr: errors.New("db down"), insertedID: "raw-1"}
	w := New(Config{Raw: raw, Assessor: fixedAssessor{score: domain.QualityScore{Overall: 0.5}}})

	result := w.Write(context.Background(), "trace", "q", "a", nil, "user", "tenant", "gpt-4", "v1", domain.AgentOllama)
	if result.WasDuplicate {
		t.Error("expected the write to proceed when the idempotency check itself errors")
	}
	if result.RawID != "raw-1" {
		t.Errorf("expected raw write to still happen, got RawID %q", result.RawID)
	}
}

func TestWrite_LowQualityOnlyWritesRawTier(t *testing.T) {
	raw := &fakeRawWriter{insertedID: "raw-1"}
	enriched := &fakeEnrichedWriter{}
	w := New(Config{
		Raw: raw, Enriched: enriched, EnableEnriched: true,
		Assessor: fixedAssessor{score: domain.QualityScore{Overall: 0.5}},
	})

	result := w.Write(context.Background(), "trace", "q", "a", nil, "u", "t", "m", "v", domain.AgentOllama)
	if result.RawID != "raw-1" {
		t.Errorf("expected raw tier written, got %q", result.RawID)
	}
	if enriched.calls != 0 {
		t.Error("expected enriched tier skipped below its quality threshold")
	}
}

func TestWrite_EnrichedQualityWritesEnrichedTier(t *testing.T) {
	raw := &fakeRawWriter{insertedID: "raw-1"}
	enriched := &fakeEnrichedWriter{}
	w := New(Config{
		Raw: raw, Enriched: enriched, EnableEnriched: true,
		Assessor: fixedAssessor{score: domain.QualityScore{Overall: 0.82}},
	})

	result := w.Write(context.Background(), "trace", "q", "a", nil, "u", "t", "m", "v", domain.AgentOllama)
	if result.EnrichedID != "enriched-1" {
		t.Errorf("expected enriched tier written, got %q", result.EnrichedID)
	}
}

func TestWrite_KnowledgeQualityExtractsFacts(t *testing.T) {
	raw := &fakeRawWriter{insertedID: "raw-1"}
	knowledge := &fakeKnowledgeWriter{}
	extractor := fakeExtractor{facts: []retrieval.Fact{{Content: "fact one"}, {Content: "fact two"}}}
	w := New(Config{
		Raw: raw, Knowledge: knowledge, FactExtractor: extractor, EnableFacts: true,
		Assessor: fixedAssessor{score: domain.QualityScore{Overall: 0.9}},
	})

	result := w.Write(context.Background(), "trace", "q", "a", nil, "u", "t", "m", "v", domain.AgentOllama)
	if result.FactsExtracted != 2 || len(result.KnowledgeIDs) != 2 {
		t.Fatalf("expected 2 facts extracted and written, got %d/%v", result.FactsExtracted, result.KnowledgeIDs)
	}
	if knowledge.calls != 2 {
		t.Errorf("expected 2 knowledge writes, got %d", knowledge.calls)
	}
}

func TestWrite_FactExtractionErrorLeavesFactsEmpty(t *testing.T) {
	raw := &fakeRawWriter{insertedID: "raw-1"}
	knowledge := &fakeKnowledgeWriter{}
	extractor := fakeExtractor{err: errors.New("extraction failed")}
	w := New(Config{
		Raw: raw, Knowledge: knowledge, FactExtractor: extractor, EnableFacts: true,
		Assessor: fixedAssessor{score: domain.QualityScore{Overall: 0.9}},
	})

	result := w.Write(context.Background(), "trace", "q", "a", nil, "u", "t", "m", "v", domain.AgentOllama)
	if result.FactsExtracted != 0 || knowledge.calls != 0 {
		t.Error("expected no facts written when extraction errors")
	}
}

func TestWrite_IdempotencyKeyIsDeterministic(t *testing.T) {
	k1 := idempotencyKey("q", "a", "tenant", "model")
	k2 := idempotencyKey("q", "a", "tenant", "model")
	if k1 != k2 {
		t.Error("expected the same inputs to produce the same idempotency key")
	}
	k3 := idempotencyKey("q", "a", "other-tenant", "model")
	if k1 == k3 {
		t.Error("expected different tenants to produce different idempotency keys")
	}
}

func TestHeuristicAssessor_LongAnswerWithSourcesScoresHigher(t *testing.T) {
	a := HeuristicAssessor{}
	short := a.Assess("q", "short", nil)
	long := a.Assess("q", longAnswer(), []domain.RetrievalSource{{ID: "1"}, {ID: "2"}, {ID: "3"}})
	if long.Overall <= short.Overall {
		t.Errorf("expected a long, well-sourced answer to score higher, got long=%f short=%f", long.Overall, short.Overall)
	}
}

func longAnswer() string {
	s := ""
	for i := 0; i < 200; i++ {
		s += "x"
	}
	return s
}
