// Command gateway is the thin HTTP entry point for the orchestration
// core: it wires every component together once at startup and exposes
// the streaming /ask endpoint plus feedback, health and metrics.
//
// Environment variables:
//
//	CONFIG_FILE       - optional YAML config overlay path
//	JWT_SECRET        - HMAC secret used to verify bearer tokens
//	BEDROCK_REGION    - AWS region for the Bedrock Converse provider (optional)
//	BEDROCK_MODEL     - default Bedrock model id (optional)
//	ANTHROPIC_API_KEY - Anthropic API key (optional)
//	ANTHROPIC_MODEL   - default Anthropic model (optional)
//	OPENAI_API_KEY    - OpenAI API key (optional)
//	OPENAI_MODEL      - default OpenAI model (optional)
//	OLLAMA_ENDPOINT   - local Ollama base URL (default http://localhost:11434)
//	OLLAMA_MODEL      - default Ollama model (optional)
//	TAVILY_API_KEY    - web-search provider key (optional; disabled if unset)
//	REGO_POLICY_MODULE - inline Rego source narrowing the hardcoded
//	                      role->tier mapping per tenant (optional; the
//	                      embedded default module is used if set to "on")
package main

import (
	"context"
	"log"
	"os"
	"time"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"

	"github.com/go-redis/redis/v8"

	"github.com/corvidlabs/querycore/audit"
	"github.com/corvidlabs/querycore/circuitbreaker"
	"github.com/corvidlabs/querycore/config"
	"github.com/corvidlabs/querycore/coordinator"
	"github.com/corvidlabs/querycore/coretrieval"
	"github.com/corvidlabs/querycore/domain"
	"github.com/corvidlabs/querycore/llm"
	"github.com/corvidlabs/querycore/llm/anthropic"
	"github.com/corvidlabs/querycore/llm/bedrock"
	"github.com/corvidlabs/querycore/llm/ollama"
	"github.com/corvidlabs/querycore/llm/openai"
	"github.com/corvidlabs/querycore/memory"
	"github.com/corvidlabs/querycore/orchestrator"
	"github.com/corvidlabs/querycore/planner"
	"github.com/corvidlabs/querycore/preflight"
	"github.com/corvidlabs/querycore/privacy"
	"github.com/corvidlabs/querycore/ratelimit"
	"github.com/corvidlabs/querycore/retrieval"
	"github.com/corvidlabs/querycore/sanitize"
	"github.com/corvidlabs/querycore/shared/logger"
	"github.com/corvidlabs/querycore/store/postgres"
	"github.com/corvidlabs/querycore/store/vectorstore"
	"github.com/corvidlabs/querycore/threshold"
)

func main() {
	cfg, err := config.Load(os.Getenv("CONFIG_FILE"))
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	log := logger.New("gateway")
	ctx := context.Background()

	orch, pgStore, cleanup := buildOrchestrator(ctx, cfg, log)
	defer cleanup()

	srv := newServer(orch, pgStore, []byte(os.Getenv("JWT_SECRET")))
	log.Info("", "", "gateway listening", map[string]interface{}{"addr": cfg.ListenAddr})
	if err := srv.ListenAndServe(cfg.ListenAddr); err != nil {
		log.ErrorWithErr("", "", "gateway exited", err, nil)
		os.Exit(1)
	}
}

// buildOrchestrator constructs every collaborator exactly once and wires
// them into a single Orchestrator, dependency-injected with no
// package-level globals. The returned cleanup closes any pooled
// connections on shutdown.
func buildOrchestrator(ctx context.Context, cfg *config.Config, log *logger.Logger) (*orchestrator.Orchestrator, *postgres.Store, func()) {
	var cleanups []func()
	cleanup := func() {
		for i := len(cleanups) - 1; i >= 0; i-- {
			cleanups[i]()
		}
	}

	gate := preflight.New(true)
	sanitizer := sanitize.New(true)

	var rlBackend ratelimit.Backend = ratelimit.NewInProcessBackend()
	if cfg.RedisAddr != "" {
		redisClient := redis.NewClient(&redis.Options{
			Addr:         cfg.RedisAddr,
			DialTimeout:  5 * time.Second,
			ReadTimeout:  3 * time.Second,
			WriteTimeout: 3 * time.Second,
			PoolSize:     50,
		})
		if err := redisClient.Ping(ctx).Err(); err != nil {
			log.Warn("", "", "redis unavailable, using in-process rate limiter", map[string]interface{}{"error": err.Error()})
		} else {
			rlBackend = ratelimit.NewRedisBackend(redisClient)
			cleanups = append(cleanups, func() { redisClient.Close() })
		}
	}
	limiter := ratelimit.New(rlBackend, ratelimit.NewInProcessBackend(), cfg.RateLimitWindow(), cfg.GlobalRateLimit, cfg.BlockedRateLimit)

	breakers := circuitbreaker.NewRegistry(uint32(cfg.CBFailureThreshold), uint32(cfg.CBSuccessThreshold), cfg.RecoveryTimeout())

	resolver := threshold.New(cfg.EnableAdaptiveThresholds)

	var pgStore *postgres.Store
	var memWriter *memory.Writer
	var auditLogger *audit.Logger
	if cfg.PostgresDSN != "" {
		store, err := postgres.Open(cfg.PostgresDSN)
		if err != nil {
			log.ErrorWithErr("", "", "postgres unavailable, persistence disabled", err, nil)
		} else {
			pgStore = store
			cleanups = append(cleanups, func() { pgStore.Close() })
		}
	}
	if pgStore != nil {
		memAdapter := postgres.NewMemoryAdapter(pgStore)
		memWriter = memory.New(memory.Config{
			Raw: memAdapter, Enriched: memAdapter, Knowledge: memAdapter,
			EnableEnriched: true, EnableFacts: false,
		})
		auditLogger = audit.New(postgres.NewAuditAdapter(pgStore))
	} else {
		memWriter = memory.New(memory.Config{EnableEnriched: true})
		auditLogger = audit.New(nil)
	}

	var tracker *coretrieval.Tracker
	if pgStore != nil {
		tracker = coretrieval.New(pgStore, 100)
	}

	cacheTier, knowledgeTier, memoryTier := buildVectorTiers(cfg, log)
	webSearch := retrieval.NewTavilyProvider(os.Getenv("TAVILY_API_KEY"), 5, time.Hour)

	var policyOverlay *privacy.RegoOverlay
	if module := os.Getenv("REGO_POLICY_MODULE"); module != "" {
		if module == "on" {
			module = ""
		}
		policyOverlay = privacy.NewRegoOverlay(module)
	}

	engine := retrieval.New(retrieval.Config{
		CacheTier: cacheTier, KnowledgeTier: knowledgeTier, MemoryTier: memoryTier,
		WebSearch: webSearch, Resolver: resolver, Sanitizer: sanitizer, Tracker: tracker,
		PolicyOverlay:        policyOverlay,
		PassthroughThreshold: cfg.PassthroughThreshold, MaxContextChars: cfg.MaxContextChars,
	})

	plan := planner.New(nil, nil, nil, cfg.EnableWebSearch)

	providers, available := buildProviders(ctx, log)
	selector := planner.NewAgentSelector(available)

	coord := coordinator.New(coordinator.Config{
		Selector: selector, Providers: providers, Breakers: breakers,
		DefaultAgent: domain.AgentOllama, FallbackAgents: fallbackChain(available),
		MaxContextChars: cfg.MaxContextChars,
	})

	orch := orchestrator.New(orchestrator.Config{
		PreflightGate: gate, RateLimiter: limiter, Planner: plan, RetrievalEngine: engine,
		Coordinator: coord, MemoryWriter: memWriter, AuditLogger: auditLogger,
		SystemPrompt: "You are a helpful assistant answering from the provided context.",
		ModelVersion: "gateway-v1", PromptVersion: "v1",
	})

	return orch, pgStore, cleanup
}

func buildVectorTiers(cfg *config.Config, log *logger.Logger) (retrieval.TierSearcher, retrieval.TierSearcher, retrieval.TierSearcher) {
	embedder := vectorstore.NewOpenAIEmbedder(os.Getenv("OPENAI_API_KEY"), os.Getenv("OPENAI_EMBEDDING_MODEL"))

	var store retrieval.VectorStore = vectorstore.NewFake()
	if cfg.QdrantAddr != "" {
		points, coll, err := vectorstore.DialQdrant(cfg.QdrantAddr)
		if err != nil {
			log.ErrorWithErr("", "", "qdrant unavailable, falling back to in-memory store", err, nil)
		} else {
			store = vectorstore.NewQdrantStore(points, coll)
		}
	}

	return &vectorstore.TierAdapter{Store: store, Embedder: embedder, Collection: "cache", SourceType: domain.SourceCache},
		&vectorstore.TierAdapter{Store: store, Embedder: embedder, Collection: "knowledge", SourceType: domain.SourceKnowledge},
		&vectorstore.TierAdapter{Store: store, Embedder: embedder, Collection: "memory", SourceType: domain.SourceMemory}
}

// buildProviders constructs an llm.Provider for every agent this
// deployment has credentials for, returning the map LLMCoordinator wants
// and the list of agents actually available for routing/fallback.
func buildProviders(ctx context.Context, log *logger.Logger) (map[domain.AgentType]llm.Provider, []domain.AgentType) {
	providers := make(map[domain.AgentType]llm.Provider)
	var available []domain.AgentType

	if region := os.Getenv("BEDROCK_REGION"); region != "" {
		awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
		if err != nil {
			log.ErrorWithErr("", "", "bedrock config load failed", err, nil)
		} else {
			model := envOr("BEDROCK_MODEL", "anthropic.claude-3-sonnet-20240229-v1:0")
			providers[domain.AgentClaudeSonnet] = bedrock.New("bedrock", bedrockruntime.NewFromConfig(awsCfg), model)
			available = append(available, domain.AgentClaudeSonnet)
		}
	}
	if key := os.Getenv("ANTHROPIC_API_KEY"); key != "" {
		model := envOr("ANTHROPIC_MODEL", "claude-3-5-sonnet-latest")
		if _, ok := providers[domain.AgentClaudeSonnet]; !ok {
			providers[domain.AgentClaudeSonnet] = anthropic.New("anthropic", key, model)
			available = append(available, domain.AgentClaudeSonnet)
		}
	}
	if key := os.Getenv("OPENAI_API_KEY"); key != "" {
		model := envOr("OPENAI_MODEL", "gpt-4o-mini")
		providers[domain.AgentChatGPT] = openai.New("openai", key, model)
		available = append(available, domain.AgentChatGPT)
	}

	ollamaURL := envOr("OLLAMA_ENDPOINT", "http://localhost:11434")
	providers[domain.AgentOllama] = ollama.New("ollama", ollamaURL, envOr("OLLAMA_MODEL", "llama3"))
	available = append(available, domain.AgentOllama)

	return providers, available
}

func fallbackChain(available []domain.AgentType) []domain.AgentType {
	var chain []domain.AgentType
	for _, a := range available {
		if a != domain.AgentOllama {
			chain = append(chain, a)
		}
	}
	chain = append(chain, domain.AgentOllama)
	return chain
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
