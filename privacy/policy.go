// Package privacy implements the role->tier RBAC mapping, the external
// egress rule, write validation and the defense-in-depth post-filter.
// The hardcoded mapping below is the authoritative function required by
// the spec; an optional Rego overlay (policy.go) may further narrow it
// per tenant but can never widen it.
package privacy

import (
	"context"

	"github.com/corvidlabs/querycore/domain"
	"github.com/corvidlabs/querycore/shared/logger"
)

// AccessFilter is the result of building a filter for a given caller.
type AccessFilter struct {
	PrivacyTiers    []domain.PrivacyLevel
	UserID          string
	TenantID        string
	RequireOwnUser  bool // true when INTERNAL access is restricted to the caller's own records
}

// allowedTiers is the single authoritative role -> tier table.
var allowedTiers = map[domain.Role][]domain.PrivacyLevel{
	domain.RolePublic: {domain.Public},
	domain.RoleMember: {domain.Public, domain.Internal},
	domain.RoleAdmin:  {domain.Public, domain.Internal, domain.Confidential},
}

// AllowedPrivacyTiers returns the tiers a role may read, excluding
// LOCAL_ONLY which is never reachable via role alone.
func AllowedPrivacyTiers(role domain.Role) []domain.PrivacyLevel {
	if tiers, ok := allowedTiers[role]; ok {
		return tiers
	}
	// Unrecognized or extended roles (viewer/lead/manager) are treated as
	// member-equivalent for read access until a dedicated mapping exists.
	return allowedTiers[domain.RoleMember]
}

// BuildFilter constructs the AccessFilter for (role, userID, tenantID).
func BuildFilter(role domain.Role, userID, tenantID string) AccessFilter {
	return AccessFilter{
		PrivacyTiers:   AllowedPrivacyTiers(role),
		UserID:         userID,
		TenantID:       tenantID,
		RequireOwnUser: role == domain.RoleMember,
	}
}

// BuildFilterWithOverlay builds the baseline filter via BuildFilter and,
// when overlay is non-nil, narrows its tiers through the tenant's Rego
// policy. The overlay can only remove tiers from the baseline, never add
// to it, since Narrow intersects against what's passed in.
func BuildFilterWithOverlay(ctx context.Context, role domain.Role, userID, tenantID string, overlay *RegoOverlay) AccessFilter {
	f := BuildFilter(role, userID, tenantID)
	if overlay == nil {
		return f
	}
	narrowed := overlay.Narrow(ctx, string(role), tierStrings(f.PrivacyTiers))
	f.PrivacyTiers = tiersFromStrings(narrowed)
	return f
}

func tierStrings(tiers []domain.PrivacyLevel) []string {
	out := make([]string, len(tiers))
	for i, t := range tiers {
		out[i] = string(t)
	}
	return out
}

func tiersFromStrings(ss []string) []domain.PrivacyLevel {
	out := make([]domain.PrivacyLevel, len(ss))
	for i, s := range ss {
		out[i] = domain.PrivacyLevel(s)
	}
	return out
}

// Allows reports whether src passes filter f. This is the single
// predicate both the storage-side query translation and the in-process
// defense-in-depth post-filter must agree on.
func (f AccessFilter) Allows(src domain.RetrievalSource) bool {
	if src.TenantID != "" && src.TenantID != f.TenantID {
		return false
	}
	if src.PrivacyLevel == domain.LocalOnly {
		return src.OwnerID == f.UserID
	}
	tierAllowed := false
	for _, t := range f.PrivacyTiers {
		if t == src.PrivacyLevel {
			tierAllowed = true
			break
		}
	}
	if !tierAllowed {
		return false
	}
	if f.RequireOwnUser && src.PrivacyLevel == domain.Internal && src.OwnerID != f.UserID {
		return false
	}
	return true
}

// FilterResult is the outcome of a post-filter pass, including the
// db_filter_leak counter the spec requires for defense-in-depth.
type FilterResult struct {
	Allowed []domain.RetrievalSource
	LeakCount int
}

// FilterResultsByAccess re-checks every row against f. Any row the
// storage layer should not have returned increments the leak counter;
// retrieval must never rely solely on database-side filtering. The
// function is idempotent: filtering an already-filtered set is a no-op.
func FilterResultsByAccess(sources []domain.RetrievalSource, f AccessFilter, log *logger.Logger, traceID string) FilterResult {
	result := FilterResult{Allowed: make([]domain.RetrievalSource, 0, len(sources))}
	for _, s := range sources {
		if f.Allows(s) {
			result.Allowed = append(result.Allowed, s)
		} else {
			result.LeakCount++
		}
	}
	if result.LeakCount > 0 && log != nil {
		log.Warn(traceID, f.UserID, "db_filter_leak", map[string]interface{}{
			"leaked_count": result.LeakCount,
		})
	}
	return result
}

// ShouldSendToExternalAPI implements the egress rule: CONFIDENTIAL and
// LOCAL_ONLY content must never flow to a non-local LLM or web search.
func ShouldSendToExternalAPI(level domain.PrivacyLevel) bool {
	return level != domain.LocalOnly && level != domain.Confidential
}

// CanWrite implements write validation: admins may write anywhere;
// members may write PUBLIC/INTERNAL but only for themselves; public may
// never write.
func CanWrite(role domain.Role, targetTier domain.PrivacyLevel, targetUser, requestingUser string) bool {
	switch role {
	case domain.RoleAdmin:
		return true
	case domain.RoleMember:
		if targetTier != domain.Public && targetTier != domain.Internal {
			return false
		}
		return targetUser == requestingUser
	default:
		return false
	}
}

// AuditRecord is emitted by the retrieval engine on every call.
type AuditRecord struct {
	TraceID        string
	UserID         string
	Role           domain.Role
	TenantID       string
	TiersSearched  []domain.PrivacyLevel
	ResultsPerTier map[domain.SourceType]int
	Action         string
}
