package privacy

import (
	"context"
	"testing"
)

func TestNewRegoOverlay_DefaultModule(t *testing.T) {
	o := NewRegoOverlay("")
	if !o.ready {
		t.Fatal("expected the embedded default module to compile")
	}
}

func TestNewRegoOverlay_InvalidModuleDegradesGracefully(t *testing.T) {
	o := NewRegoOverlay("not valid rego at all {{{")
	if o.ready {
		t.Fatal("expected an invalid module to leave the overlay not ready")
	}
	out := o.Narrow(context.Background(), "admin", []string{"PUBLIC", "INTERNAL"})
	if len(out) != 2 {
		t.Errorf("expected Narrow to fall back to baseline when not ready, got %v", out)
	}
}

func TestRegoOverlay_NarrowByRole(t *testing.T) {
	o := NewRegoOverlay("")
	admin := o.Narrow(context.Background(), "admin", []string{"PUBLIC", "INTERNAL", "CONFIDENTIAL"})
	if len(admin) != 3 {
		t.Errorf("expected admin to keep all 3 baseline tiers, got %v", admin)
	}

	member := o.Narrow(context.Background(), "member", []string{"PUBLIC", "INTERNAL", "CONFIDENTIAL"})
	if len(member) != 2 {
		t.Errorf("expected member narrowed to PUBLIC/INTERNAL, got %v", member)
	}

	public := o.Narrow(context.Background(), "public", []string{"PUBLIC", "INTERNAL"})
	if len(public) != 1 || public[0] != "PUBLIC" {
		t.Errorf("expected the default rule to restrict unrecognized roles to PUBLIC, got %v", public)
	}
}

func TestRegoOverlay_NeverWidensBaseline(t *testing.T) {
	o := NewRegoOverlay("")
	narrowed := o.Narrow(context.Background(), "admin", []string{"PUBLIC"})
	if len(narrowed) != 1 || narrowed[0] != "PUBLIC" {
		t.Errorf("expected Narrow to only ever intersect with baseline, got %v", narrowed)
	}
}

func TestNilOverlay_NarrowReturnsBaseline(t *testing.T) {
	var o *RegoOverlay
	out := o.Narrow(context.Background(), "admin", []string{"PUBLIC", "INTERNAL"})
	if len(out) != 2 {
		t.Errorf("expected a nil *RegoOverlay to be a safe no-op, got %v", out)
	}
}
