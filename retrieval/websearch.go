package retrieval

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"
)

// SearchResult is one web-search hit, matching the shape the original
// web-search service returned before it is folded into a
// domain.RetrievalSource.
type SearchResult struct {
	Title   string
	URL     string
	Content string
	Score   float64
}

// WebSearchProvider is the out-of-scope external collaborator for web
// search. TavilyProvider below is a concrete adapter; any HTTP-based
// search API can implement the same interface.
type WebSearchProvider interface {
	Search(ctx context.Context, query string, maxResults int) ([]SearchResult, error)
}

// TavilyProvider calls the Tavily search API directly over HTTP and
// caches results in-process, mirroring the original service's
// hash-keyed TTL cache.
type TavilyProvider struct {
	apiKey     string
	httpClient *http.Client
	enabled    bool
	maxResults int

	mu    sync.Mutex
	cache map[string]cacheEntry
	ttl   time.Duration
}

type cacheEntry struct {
	results   []SearchResult
	expiresAt time.Time
}

// NewTavilyProvider constructs a provider. When apiKey is empty the
// provider is disabled and Search always returns an empty slice, mirroring
// the reference service's "TAVILY_API_KEY not set" degrade path.
func NewTavilyProvider(apiKey string, maxResults int, ttl time.Duration) *TavilyProvider {
	if maxResults <= 0 {
		maxResults = 5
	}
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &TavilyProvider{
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: 10 * time.Second},
		enabled:    apiKey != "",
		maxResults: maxResults,
		cache:      make(map[string]cacheEntry),
		ttl:        ttl,
	}
}

func cacheKey(query string) string {
	sum := md5.Sum([]byte(strings.ToLower(query)))
	return hex.EncodeToString(sum[:])
}

func (p *TavilyProvider) Search(ctx context.Context, query string, maxResults int) ([]SearchResult, error) {
	if !p.enabled {
		return nil, nil
	}
	if maxResults <= 0 {
		maxResults = p.maxResults
	}

	key := cacheKey(query)
	p.mu.Lock()
	if entry, ok := p.cache[key]; ok && time.Now().Before(entry.expiresAt) {
		p.mu.Unlock()
		return entry.results, nil
	}
	p.mu.Unlock()

	body, err := json.Marshal(map[string]interface{}{
		"api_key":             p.apiKey,
		"query":               query,
		"search_depth":        "advanced",
		"max_results":         maxResults,
		"include_answer":      false,
		"include_raw_content": false,
	})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, "https://api.tavily.com/search", strings.NewReader(string(body)))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		raw, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("tavily search failed: %s: %s", resp.Status, string(raw))
	}

	var parsed struct {
		Results []struct {
			Title   string  `json:"title"`
			URL     string  `json:"url"`
			Content string  `json:"content"`
			Score   float64 `json:"score"`
		} `json:"results"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, err
	}

	results := make([]SearchResult, 0, len(parsed.Results))
	for _, r := range parsed.Results {
		results = append(results, SearchResult{Title: r.Title, URL: r.URL, Content: r.Content, Score: r.Score})
	}

	p.mu.Lock()
	p.cache[key] = cacheEntry{results: results, expiresAt: time.Now().Add(p.ttl)}
	p.mu.Unlock()

	return results, nil
}

// FormatResultsForLLM renders results as numbered markdown sources,
// matching the original formatter's layout.
func FormatResultsForLLM(results []SearchResult) string {
	if len(results) == 0 {
		return "No search results found."
	}
	var b strings.Builder
	b.WriteString("# Web Search Results\n\n")
	for i, r := range results {
		fmt.Fprintf(&b, "## Source %d: %s\nURL: %s\n%s\n\n", i+1, r.Title, r.URL, r.Content)
	}
	return b.String()
}
