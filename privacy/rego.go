package privacy

import (
	"context"

	"github.com/open-policy-agent/opa/rego"
)

// defaultPolicyModule is the embedded Rego overlay: it may narrow the
// hardcoded role->tier mapping per tenant (e.g. disabling CONFIDENTIAL
// reads for a tenant under a compliance hold) but can never widen it —
// OverlayNarrow always intersects the overlay's result with the
// hardcoded baseline.
const defaultPolicyModule = `
package querycore.privacy

default allowed_tiers = ["PUBLIC"]

allowed_tiers = tiers {
	input.role == "admin"
	tiers := ["PUBLIC", "INTERNAL", "CONFIDENTIAL"]
}

allowed_tiers = tiers {
	input.role == "member"
	tiers := ["PUBLIC", "INTERNAL"]
}
`

// RegoOverlay evaluates a tenant-specific narrowing policy over the
// hardcoded baseline. A compile or evaluation failure degrades to the
// baseline unchanged and is logged by the caller — the policy engine
// never gets to fail a request.
type RegoOverlay struct {
	query rego.PreparedEvalQuery
	ready bool
}

// NewRegoOverlay compiles module (or the embedded default if empty).
// Compilation errors are swallowed into ready=false rather than
// returned, since this overlay is optional by design.
func NewRegoOverlay(module string) *RegoOverlay {
	if module == "" {
		module = defaultPolicyModule
	}
	r := rego.New(
		rego.Query("data.querycore.privacy.allowed_tiers"),
		rego.Module("overlay.rego", module),
	)
	prepared, err := r.PrepareForEval(context.Background())
	if err != nil {
		return &RegoOverlay{ready: false}
	}
	return &RegoOverlay{query: prepared, ready: true}
}

// Narrow intersects baseline with whatever the overlay allows for role.
// If the overlay is not ready or errors at eval time, baseline is
// returned unchanged.
func (o *RegoOverlay) Narrow(ctx context.Context, role string, baseline []string) []string {
	if o == nil || !o.ready {
		return baseline
	}
	rs, err := o.query.Eval(ctx, rego.EvalInput(map[string]interface{}{"role": role}))
	if err != nil || len(rs) == 0 || len(rs[0].Expressions) == 0 {
		return baseline
	}
	overlayTiers, ok := toStringSet(rs[0].Expressions[0].Value)
	if !ok {
		return baseline
	}
	out := make([]string, 0, len(baseline))
	for _, t := range baseline {
		if overlayTiers[t] {
			out = append(out, t)
		}
	}
	return out
}

func toStringSet(v interface{}) (map[string]bool, bool) {
	items, ok := v.([]interface{})
	if !ok {
		return nil, false
	}
	set := make(map[string]bool, len(items))
	for _, item := range items {
		s, ok := item.(string)
		if !ok {
			return nil, false
		}
		set[s] = true
	}
	return set, true
}
