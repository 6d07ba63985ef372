package vectorstore

import (
	"context"

	"github.com/corvidlabs/querycore/domain"
	"github.com/corvidlabs/querycore/privacy"
	"github.com/corvidlabs/querycore/retrieval"
)

// TierAdapter implements retrieval.TierSearcher by embedding the query,
// calling the underlying VectorStore, translating the AccessFilter into
// the store's query dialect, and converting hits into RetrievalSources.
// Downstream defense-in-depth filtering in the retrieval engine still
// re-checks every row; this adapter's filter translation is the
// storage-side first pass, never the sole guard.
type TierAdapter struct {
	Store      retrieval.VectorStore
	Embedder   retrieval.Embedder
	Collection string
	SourceType domain.SourceType
}

func (t *TierAdapter) Search(ctx context.Context, query string, minSimilarity float64, limit int, filter privacy.AccessFilter) ([]domain.RetrievalSource, error) {
	vector, err := t.Embedder.Embed(ctx, query)
	if err != nil {
		return nil, err
	}

	dialectFilter := map[string]interface{}{
		"tenant_id":     filter.TenantID,
		"privacy_tiers": privacyTiersToStrings(filter.PrivacyTiers),
	}
	if filter.RequireOwnUser {
		dialectFilter["require_own_user"] = filter.UserID
	}

	hits, err := t.Store.SemanticSearch(ctx, t.Collection, vector, limit, dialectFilter)
	if err != nil {
		return nil, err
	}

	out := make([]domain.RetrievalSource, 0, len(hits))
	for _, h := range hits {
		if h.Distance < minSimilarity {
			continue
		}
		out = append(out, hitToSource(h, t.SourceType))
	}
	return out, nil
}

func hitToSource(h retrieval.VectorHit, sourceType domain.SourceType) domain.RetrievalSource {
	src := domain.RetrievalSource{
		ID:         h.ID,
		Similarity: h.Distance,
		SourceType: sourceType,
		Metadata:   h.Properties,
	}
	if v, ok := h.Properties["content"].(string); ok {
		src.Content = v
	}
	if v, ok := h.Properties["privacy_level"].(string); ok {
		src.PrivacyLevel = domain.PrivacyLevel(v)
	}
	if v, ok := h.Properties["owner_id"].(string); ok {
		src.OwnerID = v
	}
	if v, ok := h.Properties["tenant_id"].(string); ok {
		src.TenantID = v
	}
	if v, ok := h.Properties["source_kind"].(string); ok {
		src.RawSourceKind = v
	}
	if v, ok := h.Properties["created_at"].(int64); ok {
		src.CreatedAt = v
	}
	if v, ok := h.Properties["feedback_score"].(float64); ok {
		src.FeedbackScore = v
	}
	return src
}

func privacyTiersToStrings(tiers []domain.PrivacyLevel) []string {
	out := make([]string, len(tiers))
	for i, t := range tiers {
		out[i] = string(t)
	}
	return out
}
