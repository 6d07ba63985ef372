package postgres

import (
	"context"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"

	"github.com/corvidlabs/querycore/audit"
	"github.com/corvidlabs/querycore/memory"
	"github.com/corvidlabs/querycore/retrieval"
)

func TestMemoryAdapter_InsertRawDelegatesToStore(t *testing.T) {
	store, mock := newTestStore(t)
	mock.ExpectQuery(`INSERT INTO raw_records`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow("raw-1"))

	adapter := NewMemoryAdapter(store)
	id, err := adapter.InsertRaw(context.Background(), "Q: x\nA: y", "u1", "t1", "ollama", "idem-1",
		memory.CacheMetadata{CreatedAt: time.Now(), TTLSeconds: 604800})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if id != "raw-1" {
		t.Errorf("expected raw-1, got %q", id)
	}
}

func TestMemoryAdapter_InsertKnowledgeFactUsesFactContent(t *testing.T) {
	store, mock := newTestStore(t)
	mock.ExpectQuery(`INSERT INTO knowledge_records`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow("fact-1"))

	adapter := NewMemoryAdapter(store)
	id, err := adapter.InsertKnowledgeFact(context.Background(), retrieval.Fact{Content: "the sky is blue", Confidence: 0.9}, "why is the sky blue", "u1", "t1", "trace-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if id != "fact-1" {
		t.Errorf("expected fact-1, got %q", id)
	}
}

func TestAuditAdapter_IgnoresIngressRecords(t *testing.T) {
	store, mock := newTestStore(t)
	adapter := NewAuditAdapter(store)

	err := adapter.Write(audit.Record{Direction: "ingress", TraceID: "t1"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("expected no queries for an ingress record, got unmet/unexpected: %v", err)
	}
}

func TestAuditAdapter_WritesEgressToQueryHistory(t *testing.T) {
	store, mock := newTestStore(t)
	mock.ExpectExec(`INSERT INTO query_history`).WillReturnResult(sqlmock.NewResult(1, 1))

	adapter := NewAuditAdapter(store)
	err := adapter.Write(audit.Record{Direction: "egress", TraceID: "trace-1", Source: "orchestrator", DurationMS: 100})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}
