// Package audit implements the non-blocking ingress/egress audit trail:
// failures are logged at WARN and never propagate to the caller.
package audit

import (
	"time"

	"github.com/corvidlabs/querycore/domain"
	"github.com/corvidlabs/querycore/shared/logger"
)

// Sink persists one audit record; implementations may write to a log
// aggregator, a database table, or both.
type Sink interface {
	Write(record Record) error
}

// Record is one ingress or egress audit entry.
type Record struct {
	TraceID            string
	Direction          string // "ingress" or "egress"
	Source             string
	Operation          string
	ItemCount          int
	Destination        string
	DurationMS         int64
	DataClassification domain.PrivacyLevel
	Metadata           map[string]interface{}
	At                 time.Time
}

// Logger implements the audit contract over a pluggable Sink, falling
// back to structured logging alone when no Sink is configured.
type Logger struct {
	sink Sink
	log  *logger.Logger
}

// New constructs a Logger. sink may be nil.
func New(sink Sink) *Logger {
	return &Logger{sink: sink, log: logger.New("audit")}
}

// LogIngress records that item_count items entered the system from
// source via operation.
func (a *Logger) LogIngress(traceID, source, operation string, itemCount int, metadata map[string]interface{}) {
	a.write(Record{
		TraceID: traceID, Direction: "ingress", Source: source, Operation: operation,
		ItemCount: itemCount, Metadata: metadata, At: time.Now().UTC(),
	})
}

// LogEgress records that data classified at dataClassification left the
// system toward destination via operation, taking durationMS to produce.
func (a *Logger) LogEgress(traceID, source, operation, destination string, durationMS int64, dataClassification domain.PrivacyLevel, metadata map[string]interface{}) {
	a.write(Record{
		TraceID: traceID, Direction: "egress", Source: source, Operation: operation,
		Destination: destination, DurationMS: durationMS, DataClassification: dataClassification,
		Metadata: metadata, At: time.Now().UTC(),
	})
}

func (a *Logger) write(r Record) {
	a.log.Info(r.TraceID, "", "audit:"+r.Direction, map[string]interface{}{
		"source": r.Source, "operation": r.Operation, "item_count": r.ItemCount,
		"destination": r.Destination, "duration_ms": r.DurationMS,
		"data_classification": string(r.DataClassification),
	})

	if a.sink == nil {
		return
	}
	if err := a.sink.Write(r); err != nil {
		a.log.Warn(r.TraceID, "", "audit sink write failed", map[string]interface{}{"error": err.Error()})
	}
}
