package retrieval

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/corvidlabs/querycore/coretrieval"
	"github.com/corvidlabs/querycore/domain"
	"github.com/corvidlabs/querycore/fanin"
	"github.com/corvidlabs/querycore/privacy"
	"github.com/corvidlabs/querycore/sanitize"
	"github.com/corvidlabs/querycore/shared/logger"
	"github.com/corvidlabs/querycore/threshold"
)

// TierSearcher is the per-tier search contract the engine fans out to.
// Concrete tiers (cache, knowledge, legacy memory) are backed by
// VectorStore + Embedder in store/vectorstore; tests supply fakes.
type TierSearcher interface {
	Search(ctx context.Context, query string, minSimilarity float64, limit int, filter privacy.AccessFilter) ([]domain.RetrievalSource, error)
}

// Engine implements the RetrievalEngine component.
type Engine struct {
	cacheTier     TierSearcher
	knowledgeTier TierSearcher
	memoryTier    TierSearcher
	webSearch     WebSearchProvider
	resolver      *threshold.Resolver
	sanitizer     *sanitize.Sanitizer
	tracker       *coretrieval.Tracker
	policyOverlay *privacy.RegoOverlay

	passthroughThreshold float64
	maxContextChars      int
	log                  *logger.Logger
}

// Config configures an Engine.
type Config struct {
	CacheTier            TierSearcher
	KnowledgeTier        TierSearcher
	MemoryTier           TierSearcher
	WebSearch            WebSearchProvider
	Resolver             *threshold.Resolver
	Sanitizer            *sanitize.Sanitizer
	Tracker              *coretrieval.Tracker
	// PolicyOverlay optionally narrows the hardcoded role->tier mapping
	// per tenant; nil means the hardcoded mapping applies unmodified.
	PolicyOverlay        *privacy.RegoOverlay
	PassthroughThreshold float64
	MaxContextChars      int
}

// New constructs an Engine.
func New(cfg Config) *Engine {
	return &Engine{
		cacheTier:            cfg.CacheTier,
		knowledgeTier:        cfg.KnowledgeTier,
		memoryTier:           cfg.MemoryTier,
		webSearch:            cfg.WebSearch,
		resolver:             cfg.Resolver,
		sanitizer:            cfg.Sanitizer,
		tracker:              cfg.Tracker,
		policyOverlay:        cfg.PolicyOverlay,
		passthroughThreshold: cfg.PassthroughThreshold,
		maxContextChars:      cfg.MaxContextChars,
		log:                  logger.New("retrieval"),
	}
}

// Retrieve runs the full sub-pipeline described in the component design.
func (e *Engine) Retrieve(ctx context.Context, traceID string, req Request) Result {
	thresholds, mode := e.resolver.Resolve(traceID, req.Query, req.IntentHint)
	filter := privacy.BuildFilterWithOverlay(ctx, req.Role, req.UserID, req.TenantID, e.policyOverlay)

	variations := req.AugmentedQueries
	if len(variations) == 0 {
		variations = []string{req.Query}
	}
	dualVariations := capSlice(variations, 3)
	legacyVariations := capSlice(variations, 2)

	maxTasks := 1 + 2*len(dualVariations) + len(legacyVariations)
	group := fanin.NewGroup(maxTasks)
	var mu sync.Mutex
	var allSources []domain.RetrievalSource
	cacheHits, knowledgeHits, memoryHits, webHits := 0, 0, 0, 0

	if req.NeedsWebSearch && e.webSearch != nil {
		group.Go(func() error {
			results, err := e.webSearch.Search(ctx, req.Query, 5)
			if err != nil {
				e.log.Warn(traceID, req.UserID, "web search failed", map[string]interface{}{"error": err.Error()})
				return err
			}
			mu.Lock()
			defer mu.Unlock()
			for _, r := range results {
				allSources = append(allSources, domain.RetrievalSource{
					Content:      r.Content,
					Similarity:   r.Score,
					SourceType:   domain.SourceWeb,
					RawSourceKind: "web",
					Metadata:     map[string]interface{}{"title": r.Title, "url": r.URL},
				})
				webHits++
			}
			return nil
		})
	}

	for _, q := range dualVariations {
		q := q
		if e.cacheTier != nil {
			group.Go(func() error {
				results, err := e.cacheTier.Search(ctx, q, thresholds.Cache, req.Limit, filter)
				if err != nil {
					e.log.Warn(traceID, req.UserID, "cache tier search failed", map[string]interface{}{"error": err.Error()})
					return err
				}
				mu.Lock()
				defer mu.Unlock()
				allSources = append(allSources, results...)
				cacheHits += len(results)
				return nil
			})
		}
		if e.knowledgeTier != nil {
			group.Go(func() error {
				results, err := e.knowledgeTier.Search(ctx, q, thresholds.Knowledge, req.Limit, filter)
				if err != nil {
					e.log.Warn(traceID, req.UserID, "knowledge tier search failed", map[string]interface{}{"error": err.Error()})
					return err
				}
				mu.Lock()
				defer mu.Unlock()
				allSources = append(allSources, results...)
				knowledgeHits += len(results)
				return nil
			})
		}
	}

	for _, q := range legacyVariations {
		q := q
		if e.memoryTier != nil {
			group.Go(func() error {
				results, err := e.memoryTier.Search(ctx, q, thresholds.Raw, req.Limit, filter)
				if err != nil {
					e.log.Warn(traceID, req.UserID, "legacy memory tier search failed", map[string]interface{}{"error": err.Error()})
					return err
				}
				mu.Lock()
				defer mu.Unlock()
				allSources = append(allSources, results...)
				memoryHits += len(results)
				return nil
			})
		}
	}

	if err := group.Wait(); err != nil {
		e.log.Warn(traceID, req.UserID, "one or more retrieval tiers failed", map[string]interface{}{"error": err.Error()})
	}

	postFilter := privacy.FilterResultsByAccess(allSources, filter, e.log, traceID)
	deduped := Dedup(postFilter.Allowed)
	ranked := Rank(deduped, req.Intent, time.Now())

	associatedItems := []string{}
	if len(ranked) > 0 && e.tracker != nil {
		for _, a := range e.tracker.GetAssociatedItems(ctx, ranked[0].ID, 0.1, 5) {
			associatedItems = append(associatedItems, a.ItemID)
		}
	}

	coRetrievalRecorded := false
	if e.tracker != nil && len(ranked) > 1 {
		ids := make([]string, 0, len(ranked))
		for _, r := range ranked {
			if r.ID != "" {
				ids = append(ids, r.ID)
			}
		}
		if len(ids) > 1 {
			e.tracker.RecordCoRetrieval(ctx, req.ConversationID, ids, string(req.Intent))
			coRetrievalRecorded = true
		}
	}

	if len(ranked) == 0 || ranked[0].Score < e.passthroughThreshold {
		audit := privacy.AuditRecord{
			TraceID: traceID, UserID: req.UserID, Role: req.Role, TenantID: req.TenantID,
			TiersSearched: filter.PrivacyTiers,
			ResultsPerTier: map[domain.SourceType]int{
				domain.SourceCache: cacheHits, domain.SourceKnowledge: knowledgeHits,
				domain.SourceMemory: memoryHits, domain.SourceWeb: webHits,
			},
			Action: "retrieve_passthrough",
		}
		e.log.Info(traceID, req.UserID, "retrieval audit", map[string]interface{}{"audit": audit})
		return Result{
			Sources: ranked, CacheHits: cacheHits, KnowledgeHits: knowledgeHits,
			MemoryHits: memoryHits, WebHits: webHits, IsContextClean: true,
			RetrievalMode: mode, ThresholdsUsed: thresholds, TraceID: traceID,
			AssociatedItemsPreloaded: associatedItems, CoRetrievalRecorded: coRetrievalRecorded,
		}
	}

	context := buildContext(ranked, e.maxContextChars)
	sanResult := e.sanitizer.Sanitize(context)

	audit := privacy.AuditRecord{
		TraceID: traceID, UserID: req.UserID, Role: req.Role, TenantID: req.TenantID,
		TiersSearched: filter.PrivacyTiers,
		ResultsPerTier: map[domain.SourceType]int{
			domain.SourceCache: cacheHits, domain.SourceKnowledge: knowledgeHits,
			domain.SourceMemory: memoryHits, domain.SourceWeb: webHits,
		},
		Action: "retrieve",
	}
	e.log.Info(traceID, req.UserID, "retrieval audit", map[string]interface{}{"audit": audit})

	return Result{
		Context:                  context,
		SanitizedContext:         sanResult.SanitizedContext,
		Sources:                  ranked,
		CacheHits:                cacheHits,
		KnowledgeHits:            knowledgeHits,
		MemoryHits:               memoryHits,
		WebHits:                  webHits,
		IsContextClean:           sanResult.IsClean,
		SanitizationCount:        len(sanResult.Detections),
		RetrievalMode:            mode,
		ThresholdsUsed:           thresholds,
		AssociatedItemsPreloaded: associatedItems,
		CoRetrievalRecorded:      coRetrievalRecorded,
		TraceID:                  traceID,
	}
}

// BuildContextForExternalAgent rebuilds a context string from a subset of
// sources, used to re-assemble the prompt after CONFIDENTIAL/LOCAL_ONLY
// sources are dropped ahead of an external (non-local) agent call.
func (e *Engine) BuildContextForExternalAgent(sources []domain.ScoredResult) string {
	return buildContext(sources, e.maxContextChars)
}

// buildContext assembles sources web-first, then knowledge, cache,
// memory, truncating per-source content to stay within maxChars.
func buildContext(ranked []domain.ScoredResult, maxChars int) string {
	order := []domain.SourceType{domain.SourceWeb, domain.SourceKnowledge, domain.SourceCache, domain.SourceMemory}
	byTier := make(map[domain.SourceType][]domain.ScoredResult)
	for _, r := range ranked {
		byTier[r.SourceType] = append(byTier[r.SourceType], r)
	}

	var b strings.Builder
	remaining := maxChars
	for _, tier := range order {
		for _, r := range byTier[tier] {
			if remaining <= 0 {
				return b.String()
			}
			content := r.Content
			if len(content) > remaining {
				content = content[:remaining]
			}
			b.WriteString(content)
			b.WriteString("\n\n")
			remaining -= len(content)
		}
	}
	return b.String()
}

func capSlice(s []string, n int) []string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
