// Package postgres implements the persistent state layout: raw/enriched/
// knowledge memory tiers, co-retrieval edges and query history, all
// backed by lib/pq over database/sql.
package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "github.com/lib/pq"

	"github.com/corvidlabs/querycore/coretrieval"
	"github.com/corvidlabs/querycore/domain"
)

// Store wraps a *sql.DB with the queries the memory writer, co-retrieval
// tracker and query-history endpoints need.
type Store struct {
	db *sql.DB
}

// Open connects to dsn and verifies the connection with a ping.
func Open(dsn string) (*Store, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return &Store{db: db}, nil
}

// New wraps an already-open *sql.DB, used by tests with go-sqlmock.
func New(db *sql.DB) *Store {
	return &Store{db: db}
}

// Close releases the underlying connection pool.
func (s *Store) Close() error {
	return s.db.Close()
}

// RawRecord mirrors the raw-tier persistent layout.
type RawRecord struct {
	ContentHash    string
	Content        string
	UserID         string
	TenantID       string
	SourceType     string
	Agent          string
	PrivacyLevel   domain.PrivacyLevel
	CostUSD        float64
	CreatedAt      time.Time
	IdempotencyKey string
	TTLSeconds     int64
}

// EnrichedRecord adds quality/version metadata on top of a raw write.
type EnrichedRecord struct {
	RawRecord
	QualityScore float64
	PromptVersion string
	LLMModel      string
}

// KnowledgeRecord is one extracted-fact row with no expiry.
type KnowledgeRecord struct {
	CanonicalQuery      string
	AnswerSummary       string
	FullAnswer          string
	TopicCluster        string
	ExtractionModel     string
	ExtractionConfidence float64
}

// ExistsByIdempotencyKey reports whether a raw record with key already
// exists, implementing MemoryWriter's idempotency check.
func (s *Store) ExistsByIdempotencyKey(ctx context.Context, key string) (bool, error) {
	var exists bool
	err := s.db.QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM raw_records WHERE idempotency_key = $1)`, key,
	).Scan(&exists)
	return exists, err
}

// InsertRaw writes a raw-tier record.
func (s *Store) InsertRaw(ctx context.Context, r RawRecord) (string, error) {
	var id string
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO raw_records
			(content_hash, content, user_id, tenant_id, source_type, agent, privacy_level, cost_usd, created_at, idempotency_key, ttl_seconds)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)
		RETURNING id`,
		r.ContentHash, r.Content, r.UserID, r.TenantID, r.SourceType, r.Agent, r.PrivacyLevel, r.CostUSD, r.CreatedAt, r.IdempotencyKey, r.TTLSeconds,
	).Scan(&id)
	return id, err
}

// InsertEnriched writes an enriched-tier record.
func (s *Store) InsertEnriched(ctx context.Context, r EnrichedRecord, ttlSeconds int64) (string, error) {
	var id string
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO enriched_records
			(content_hash, content, user_id, tenant_id, source_type, agent, privacy_level, cost_usd, created_at, idempotency_key, ttl_seconds, quality_score, prompt_version, llm_model)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14)
		RETURNING id`,
		r.ContentHash, r.Content, r.UserID, r.TenantID, r.SourceType, r.Agent, r.PrivacyLevel, r.CostUSD, r.CreatedAt, r.IdempotencyKey, ttlSeconds, r.QualityScore, r.PromptVersion, r.LLMModel,
	).Scan(&id)
	return id, err
}

// InsertKnowledgeFact writes one extracted fact to the no-expiry
// knowledge tier.
func (s *Store) InsertKnowledgeFact(ctx context.Context, r KnowledgeRecord) (string, error) {
	var id string
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO knowledge_records
			(canonical_query, answer_summary, full_answer, topic_cluster, extraction_model, extraction_confidence)
		VALUES ($1,$2,$3,$4,$5,$6)
		RETURNING id`,
		r.CanonicalQuery, r.AnswerSummary, r.FullAnswer, r.TopicCluster, r.ExtractionModel, r.ExtractionConfidence,
	).Scan(&id)
	return id, err
}

// UpsertEdges implements coretrieval.EdgeStore's write path against the
// co-retrieval edges table, keyed uniquely on (item_a_id, item_b_id).
func (s *Store) UpsertEdges(ctx context.Context, edges []coretrieval.Edge) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO co_retrieval_edges (item_a_id, item_b_id, co_retrieval_count, last_co_retrieval, strength, context_topics, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6, now())
		ON CONFLICT (item_a_id, item_b_id) DO UPDATE SET
			co_retrieval_count = co_retrieval_edges.co_retrieval_count + EXCLUDED.co_retrieval_count,
			last_co_retrieval = EXCLUDED.last_co_retrieval,
			strength = EXCLUDED.strength,
			context_topics = EXCLUDED.context_topics,
			updated_at = now()`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	now := time.Now()
	for _, e := range edges {
		strength := coretrieval.Strength(e.Count, e.LastCoRetrieval, now)
		topicsJSON := topicsToJSON(e.ContextTopics)
		if _, err := stmt.ExecContext(ctx, e.ItemA, e.ItemB, e.Count, e.LastCoRetrieval, strength, topicsJSON); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func topicsToJSON(topics map[string]int) string {
	if len(topics) == 0 {
		return "{}"
	}
	out := "{"
	first := true
	for k, v := range topics {
		if !first {
			out += ","
		}
		first = false
		out += fmt.Sprintf("%q:%d", k, v)
	}
	return out + "}"
}

func topicsFromJSON(raw string) map[string]int {
	topics := make(map[string]int)
	if raw == "" || raw == "{}" {
		return topics
	}
	_ = json.Unmarshal([]byte(raw), &topics)
	return topics
}

// GetEdgesFor implements coretrieval.EdgeStore's read path: every edge
// with itemID on either side of the pair, since the table stores each
// undirected edge once under its normalized (item_a_id, item_b_id) key.
func (s *Store) GetEdgesFor(ctx context.Context, itemID string) ([]coretrieval.Edge, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT item_a_id, item_b_id, co_retrieval_count, last_co_retrieval, context_topics
		FROM co_retrieval_edges
		WHERE item_a_id = $1 OR item_b_id = $1`, itemID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var edges []coretrieval.Edge
	for rows.Next() {
		var e coretrieval.Edge
		var topicsJSON string
		if err := rows.Scan(&e.ItemA, &e.ItemB, &e.Count, &e.LastCoRetrieval, &topicsJSON); err != nil {
			return nil, err
		}
		e.ContextTopics = topicsFromJSON(topicsJSON)
		edges = append(edges, e)
	}
	return edges, rows.Err()
}

// QueryHistoryRecord mirrors the query-history persistent layout.
type QueryHistoryRecord struct {
	QueryID        string
	UserID         string
	Question       string
	Answer         string
	ResponseSource string
	FromCache      bool
	CostUSD        float64
	LatencyMS      int64
}

// InsertQueryHistory records one completed request for feedback lookup.
func (s *Store) InsertQueryHistory(ctx context.Context, r QueryHistoryRecord) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO query_history (query_id, user_id, question, answer, response_source, from_cache, cost_usd, latency_ms)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)`,
		r.QueryID, r.UserID, r.Question, r.Answer, r.ResponseSource, r.FromCache, r.CostUSD, r.LatencyMS)
	return err
}

// UpdateFeedback implements the feedback-intake contract: rating is a
// closed 2-value set (1 = negative, 5 = positive).
func (s *Store) UpdateFeedback(ctx context.Context, queryID string, rating int, text string) (bool, error) {
	if rating != 1 && rating != 5 {
		return false, fmt.Errorf("invalid rating %d: must be 1 or 5", rating)
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE query_history SET rating = $1, feedback_text = $2 WHERE query_id = $3`,
		rating, text, queryID)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}
