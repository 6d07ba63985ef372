package audit

import (
	"errors"
	"sync"
	"testing"

	"github.com/corvidlabs/querycore/domain"
)

type fakeSink struct {
	mu      sync.Mutex
	records []Record
	err     error
}

func (f *fakeSink) Write(r Record) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.records = append(f.records, r)
	return nil
}

func TestLogIngress_WritesToSink(t *testing.T) {
	sink := &fakeSink{}
	a := New(sink)
	a.LogIngress("trace-1", "cache", "retrieve", 3, map[string]interface{}{"tier": "hot"})

	if len(sink.records) != 1 {
		t.Fatalf("expected 1 record written, got %d", len(sink.records))
	}
	r := sink.records[0]
	if r.Direction != "ingress" || r.Source != "cache" || r.ItemCount != 3 {
		t.Errorf("unexpected record: %+v", r)
	}
}

func TestLogEgress_CarriesClassificationAndDuration(t *testing.T) {
	sink := &fakeSink{}
	a := New(sink)
	a.LogEgress("trace-1", "orchestrator", "complete", "anthropic", 250, domain.Confidential, nil)

	if len(sink.records) != 1 {
		t.Fatalf("expected 1 record written, got %d", len(sink.records))
	}
	r := sink.records[0]
	if r.Direction != "egress" || r.Destination != "anthropic" || r.DurationMS != 250 {
		t.Errorf("unexpected record: %+v", r)
	}
	if r.DataClassification != domain.Confidential {
		t.Errorf("expected classification preserved, got %v", r.DataClassification)
	}
}

func TestLogIngress_NilSinkDoesNotPanic(t *testing.T) {
	a := New(nil)
	a.LogIngress("trace-1", "web", "search", 1, nil)
}

func TestLogEgress_SinkErrorDoesNotPropagate(t *testing.T) {
	sink := &fakeSink{err: errors.New("disk full")}
	a := New(sink)
	a.LogEgress("trace-1", "src", "op", "dst", 10, domain.Public, nil)
}
