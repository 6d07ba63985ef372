// Package coretrieval implements the Hebbian co-retrieval tracker: an
// undirected edge store over pairs of items retrieved together, with
// log-decay strength recomputed on read and upsert.
package coretrieval

import (
	"context"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/corvidlabs/querycore/shared/logger"
)

const (
	maxEdgesPerEvent = 50
	maxIDsPerEvent   = 20
	decayRate        = 0.05
)

// Edge is one undirected co-retrieval pair.
type Edge struct {
	ItemA           string
	ItemB           string
	Count           int
	LastCoRetrieval time.Time
	ContextTopics   map[string]int
}

// EdgeStore persists and serves edges; the Postgres-backed implementation
// lives in store/postgres. Kept narrow so tests can fake it. GetEdgesFor
// is the read path GetAssociatedItems needs once an edge has been
// flushed out of the in-memory pending buffer.
type EdgeStore interface {
	UpsertEdges(ctx context.Context, edges []Edge) error
	GetEdgesFor(ctx context.Context, itemID string) ([]Edge, error)
}

// Tracker buffers edges in memory and flushes them to the persistent
// store, either explicitly or automatically once pending edges reach
// autoFlushThreshold.
type Tracker struct {
	mu      sync.Mutex
	pending map[string]*Edge // keyed by normalized "itemA|itemB"
	store   EdgeStore
	log     *logger.Logger

	autoFlushThreshold int
}

// New constructs a Tracker backed by store, auto-flushing once pending
// edges reach autoFlushThreshold (default 100 per the spec).
func New(store EdgeStore, autoFlushThreshold int) *Tracker {
	if autoFlushThreshold <= 0 {
		autoFlushThreshold = 100
	}
	return &Tracker{
		pending:            make(map[string]*Edge),
		store:              store,
		log:                logger.New("coretrieval"),
		autoFlushThreshold: autoFlushThreshold,
	}
}

// normalizedKey orders the pair so (A,B) and (B,A) collapse to one edge.
func normalizedKey(a, b string) (string, string) {
	if a <= b {
		return a, b
	}
	return b, a
}

// RecordCoRetrieval generates all unordered pairs from retrievedIDs
// (capped at maxIDsPerEvent ids / maxEdgesPerEvent edges), increments
// their counts, and bumps the per-topic counter.
func (t *Tracker) RecordCoRetrieval(ctx context.Context, sessionID string, retrievedIDs []string, topic string) {
	ids := retrievedIDs
	if len(ids) > maxIDsPerEvent {
		ids = ids[:maxIDsPerEvent]
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	now := time.Now()
	edgesTouched := 0
	for i := 0; i < len(ids) && edgesTouched < maxEdgesPerEvent; i++ {
		for j := i + 1; j < len(ids) && edgesTouched < maxEdgesPerEvent; j++ {
			a, b := normalizedKey(ids[i], ids[j])
			if a == b {
				continue
			}
			key := a + "|" + b
			edge, ok := t.pending[key]
			if !ok {
				edge = &Edge{ItemA: a, ItemB: b, ContextTopics: make(map[string]int)}
				t.pending[key] = edge
			}
			edge.Count++
			edge.LastCoRetrieval = now
			if topic != "" {
				edge.ContextTopics[topic]++
			}
			edgesTouched++
		}
	}

	if len(t.pending) >= t.autoFlushThreshold {
		t.flushLocked(ctx)
	}
}

// Flush upserts all pending edges to the persistent store. It is
// idempotent and may run concurrently with RecordCoRetrieval.
func (t *Tracker) Flush(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.flushLocked(ctx)
}

func (t *Tracker) flushLocked(ctx context.Context) error {
	if len(t.pending) == 0 {
		return nil
	}
	edges := make([]Edge, 0, len(t.pending))
	for _, e := range t.pending {
		edges = append(edges, *e)
	}
	if err := t.store.UpsertEdges(ctx, edges); err != nil {
		t.log.Warn("", "", "co-retrieval flush failed", map[string]interface{}{"error": err.Error()})
		return err
	}
	t.pending = make(map[string]*Edge)
	return nil
}

// Strength implements strength = log(count+1) * exp(-decay_rate * days_since_last).
func Strength(count int, lastCoRetrieval time.Time, now time.Time) float64 {
	if count <= 0 {
		return 0
	}
	daysSinceLast := now.Sub(lastCoRetrieval).Hours() / 24
	if daysSinceLast < 0 {
		daysSinceLast = 0
	}
	return math.Log(float64(count)+1) * math.Exp(-decayRate*daysSinceLast)
}

// Association is one scored neighbor returned by GetAssociatedItems.
type Association struct {
	ItemID   string
	Strength float64
}

// GetAssociatedItems scans all edges incident to itemID, both the
// in-memory pending buffer and (once flushed) the persistent store,
// recomputes strength from the current timestamp, filters by
// minStrength, and returns the top limit by descending strength. A
// pending edge shadows its persisted counterpart, since pending always
// reflects a more recent Count/LastCoRetrieval.
func (t *Tracker) GetAssociatedItems(ctx context.Context, itemID string, minStrength float64, limit int) []Association {
	now := time.Now()
	neighbors := make(map[string]Edge)

	t.mu.Lock()
	for _, e := range t.pending {
		if neighbor, ok := incidentNeighbor(*e, itemID); ok {
			neighbors[neighbor] = *e
		}
	}
	t.mu.Unlock()

	persisted, err := t.store.GetEdgesFor(ctx, itemID)
	if err != nil {
		t.log.Warn("", "", "co-retrieval persisted edge lookup failed", map[string]interface{}{"error": err.Error()})
	}
	for _, e := range persisted {
		neighbor, ok := incidentNeighbor(e, itemID)
		if !ok {
			continue
		}
		if _, shadowed := neighbors[neighbor]; shadowed {
			continue
		}
		neighbors[neighbor] = e
	}

	var assocs []Association
	for neighbor, e := range neighbors {
		s := Strength(e.Count, e.LastCoRetrieval, now)
		if s < minStrength {
			continue
		}
		assocs = append(assocs, Association{ItemID: neighbor, Strength: s})
	}

	sort.Slice(assocs, func(i, j int) bool { return assocs[i].Strength > assocs[j].Strength })
	if len(assocs) > limit {
		assocs = assocs[:limit]
	}
	return assocs
}

// incidentNeighbor returns the other endpoint of e when itemID is one of
// its two endpoints.
func incidentNeighbor(e Edge, itemID string) (string, bool) {
	switch itemID {
	case e.ItemA:
		return e.ItemB, true
	case e.ItemB:
		return e.ItemA, true
	default:
		return "", false
	}
}
