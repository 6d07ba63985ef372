// Package orchestrator composes every other component into the single
// Execute entry point: preflight, rate limiting, planning, retrieval,
// privacy re-filtering, LLM streaming and the fire-and-forget memory
// write, all emitting one causally-ordered event stream per request.
package orchestrator

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/corvidlabs/querycore/audit"
	"github.com/corvidlabs/querycore/coordinator"
	"github.com/corvidlabs/querycore/domain"
	"github.com/corvidlabs/querycore/memory"
	"github.com/corvidlabs/querycore/planner"
	"github.com/corvidlabs/querycore/preflight"
	"github.com/corvidlabs/querycore/privacy"
	"github.com/corvidlabs/querycore/ratelimit"
	"github.com/corvidlabs/querycore/retrieval"
	"github.com/corvidlabs/querycore/shared/logger"
	"github.com/corvidlabs/querycore/shared/trace"
)

// DirectDataHandler serves canonical content for an (intent, query) shape
// without involving retrieval or the LLM, e.g. email or finance lookups
// backed by a dedicated system of record. None are registered by default;
// a deployment wires its own.
type DirectDataHandler interface {
	Matches(intent domain.Intent, query string) bool
	Serve(ctx context.Context, req domain.Request) (content string, ok bool)
}

// Orchestrator composes every collaborator; it holds no package-level
// globals, so every dependency is explicit and test-constructible.
type Orchestrator struct {
	preflightGate    *preflight.Gate
	rateLimiter      *ratelimit.Limiter
	planner          *planner.Planner
	retrievalEngine  *retrieval.Engine
	coordinator      *coordinator.Coordinator
	memoryWriter     *memory.Writer
	auditLogger      *audit.Logger
	directHandlers   []DirectDataHandler
	systemPrompt     string
	modelVersion     string
	promptVersion    string
	log              *logger.Logger
}

// Config wires every collaborator an Orchestrator needs.
type Config struct {
	PreflightGate   *preflight.Gate
	RateLimiter     *ratelimit.Limiter
	Planner         *planner.Planner
	RetrievalEngine *retrieval.Engine
	Coordinator     *coordinator.Coordinator
	MemoryWriter    *memory.Writer
	AuditLogger     *audit.Logger
	DirectHandlers  []DirectDataHandler
	SystemPrompt    string
	ModelVersion    string
	PromptVersion   string
}

// New constructs an Orchestrator from cfg.
func New(cfg Config) *Orchestrator {
	return &Orchestrator{
		preflightGate: cfg.PreflightGate, rateLimiter: cfg.RateLimiter, planner: cfg.Planner,
		retrievalEngine: cfg.RetrievalEngine, coordinator: cfg.Coordinator, memoryWriter: cfg.MemoryWriter,
		auditLogger: cfg.AuditLogger, directHandlers: cfg.DirectHandlers,
		systemPrompt: cfg.SystemPrompt, modelVersion: cfg.ModelVersion, promptVersion: cfg.PromptVersion,
		log: logger.New("orchestrator"),
	}
}

// Execute runs the full 11-step sequence, sending every Event to emit in
// causal order. It never sends after a terminal (Done or Error) event.
func (o *Orchestrator) Execute(ctx context.Context, req domain.Request, emit func(domain.Event) error) error {
	traceID := trace.New()
	ctx = trace.Into(ctx, traceID)
	start := time.Now()

	o.auditLogger.LogIngress(traceID, "gateway", "ask", 1, map[string]interface{}{"user_id": req.UserID})

	query := req.Normalized()

	// Step 2: preliminary intent classification event. The planner itself
	// re-derives intent on the sanitized query below; this first pass runs
	// on the raw query purely to surface an early status event.
	if err := emit(domain.StatusEvent("intent_detection", "classifying query", nil)); err != nil {
		return err
	}

	// Step 3: PreflightGate.
	preflightResult := o.preflightGate.Check(traceID, query, req.UserID, domain.Internal)
	if preflightResult.Decision == domain.DecisionBlock {
		blockDecision := o.rateLimiter.CheckAndRecord(ctx, traceID, req.UserID, true)
		if !blockDecision.Allowed {
			return emit(domain.ErrorEvent("rate_limit", "rate limit exceeded", "rate_limited", map[string]interface{}{
				"retry_after": blockDecision.RetryAfter,
			}))
		}
		return emit(domain.ErrorEvent("preflight_gate", preflightResult.Reason, preflightResult.Reason, nil))
	}

	// Step 4: rate-limiter pre-check.
	decision := o.rateLimiter.CheckOnly(ctx, traceID, req.UserID)
	if !decision.Allowed {
		o.rateLimiter.CheckAndRecord(ctx, traceID, req.UserID, false)
		return emit(domain.ErrorEvent("rate_limit", "rate limit exceeded", "rate_limited", map[string]interface{}{
			"retry_after": decision.RetryAfter,
		}))
	}
	o.rateLimiter.CheckAndRecord(ctx, traceID, req.UserID, false)

	return o.executeAfterGates(ctx, traceID, start, req, preflightResult, emit)
}

// executeAfterGates covers steps 5-11; any panic recovered here maps to
// the catch-all agent_execution error per the spec's step 11.
func (o *Orchestrator) executeAfterGates(ctx context.Context, traceID string, start time.Time, req domain.Request, preflightResult preflight.Result, emit func(domain.Event) error) (execErr error) {
	defer func() {
		if r := recover(); r != nil {
			execErr = emit(domain.ErrorEvent("agent_execution", "an internal error occurred", fmt.Sprintf("%v", r), nil))
		}
	}()

	sanitizedQuery := preflightResult.SanitizedQuery

	// Step 6: QueryPlanner.
	plan := o.planner.Plan(ctx, traceID, preflightResult.OriginalQuery, sanitizedQuery, preflightResult.AllowWebSearch, req.ThreadContext)

	// Step 5: direct-data shortcut, now that intent is known.
	for _, h := range o.directHandlers {
		if !h.Matches(plan.Intent, sanitizedQuery) {
			continue
		}
		content, ok := h.Serve(ctx, req)
		if !ok {
			continue
		}
		queryID := uuid.NewString()
		return emit(domain.DoneEvent(&domain.Response{
			Content: content, IntentDetected: plan.Intent, QueryID: queryID,
			LatencyMS: time.Since(start).Milliseconds(), FromCache: true,
		}))
	}

	// Step 7: RetrievalEngine.
	if err := emit(domain.StatusEvent("retrieval", "searching context sources", map[string]interface{}{"mode": string(plan.Intent)})); err != nil {
		return err
	}
	retrievalReq := retrieval.Request{
		Query: sanitizedQuery, UserID: req.UserID, Role: req.Role, TenantID: req.TenantID,
		Intent: plan.Intent, Limit: req.ContextLimit, AugmentedQueries: plan.AugmentedQueries,
		NeedsWebSearch: plan.NeedsWebSearch, ConversationID: req.ConversationID,
	}
	result := o.retrievalEngine.Retrieve(ctx, traceID, retrievalReq)

	if err := emit(domain.StatusEvent("context_assembly", "assembled context", map[string]interface{}{
		"cache_hits": result.CacheHits, "knowledge_hits": result.KnowledgeHits,
		"memory_hits": result.MemoryHits, "web_hits": result.WebHits,
	})); err != nil {
		return err
	}
	if err := emit(domain.StatusEvent("context_sanitization", "sanitized context", map[string]interface{}{
		"is_clean": result.IsContextClean, "sanitization_count": result.SanitizationCount,
	})); err != nil {
		return err
	}

	// Step 8: re-filter CONFIDENTIAL/LOCAL_ONLY content before it reaches
	// a non-local external agent.
	sanitizedContext := result.SanitizedContext
	agent := req.ManualAgent
	if agent == "" || !isLocalAgent(domain.AgentType(agent)) {
		sanitizedContext = o.dropRestrictedSources(result, sanitizedContext)
	}

	// Step 9: LLMCoordinator streaming relay.
	var finalContent string
	var agentUsed domain.AgentType
	var coordErr error
	streamErr := o.coordinator.Stream(ctx, traceID, plan.Intent, domain.AgentType(req.ManualAgent), o.systemPrompt, sanitizedContext, sanitizedQuery, func(ev coordinator.Event) error {
		switch ev.Kind {
		case coordinator.EventStarted:
			return emit(domain.StatusEvent("agent_started", "agent selected", map[string]interface{}{"agent": string(ev.Agent)}))
		case coordinator.EventThinking:
			return emit(domain.StatusEvent("agent_fallback", ev.Content, map[string]interface{}{"agent": string(ev.Agent)}))
		case coordinator.EventToken:
			return emit(domain.ChunkEvent(ev.Content))
		case coordinator.EventCompleted:
			finalContent = ev.Content
			agentUsed = ev.Agent
			return nil
		case coordinator.EventError:
			coordErr = fmt.Errorf("%s", ev.Error)
			return nil
		}
		return nil
	})
	if streamErr != nil {
		return streamErr
	}
	if coordErr != nil {
		return emit(domain.ErrorEvent("agent_execution", "All LLM agents unavailable", coordErr.Error(), nil))
	}

	// Step 10: fire-and-forget memory write, then the terminal Done event.
	queryID := uuid.NewString()
	sources := make([]domain.RetrievalSource, 0, len(result.Sources))
	for _, s := range result.Sources {
		sources = append(sources, s.RetrievalSource)
	}
	go o.memoryWriter.Write(context.Background(), traceID, sanitizedQuery, finalContent, sources, req.UserID, req.TenantID, o.modelVersion, o.promptVersion, agentUsed)

	o.auditLogger.LogEgress(traceID, "orchestrator", "ask", string(agentUsed), time.Since(start).Milliseconds(), domain.Internal, nil)

	return emit(domain.DoneEvent(&domain.Response{
		Content: finalContent, AgentUsed: agentUsed, IntentDetected: plan.Intent,
		LatencyMS: time.Since(start).Milliseconds(), QueryID: queryID,
	}))
}

// dropRestrictedSources rebuilds the context after removing any source
// whose privacy level forbids sending it to an external API.
func (o *Orchestrator) dropRestrictedSources(result retrieval.Result, fallback string) string {
	clean := true
	for _, s := range result.Sources {
		if !privacy.ShouldSendToExternalAPI(s.PrivacyLevel) {
			clean = false
			break
		}
	}
	if clean {
		return fallback
	}

	filtered := make([]domain.ScoredResult, 0, len(result.Sources))
	for _, s := range result.Sources {
		if privacy.ShouldSendToExternalAPI(s.PrivacyLevel) {
			filtered = append(filtered, s)
		}
	}
	return o.retrievalEngine.BuildContextForExternalAgent(filtered)
}

func isLocalAgent(agent domain.AgentType) bool {
	return agent == domain.AgentOllama
}
