package privacy

import (
	"context"
	"testing"

	"github.com/corvidlabs/querycore/domain"
)

func TestAllowedPrivacyTiers(t *testing.T) {
	if tiers := AllowedPrivacyTiers(domain.RolePublic); len(tiers) != 1 || tiers[0] != domain.Public {
		t.Errorf("expected public role restricted to PUBLIC, got %v", tiers)
	}
	admin := AllowedPrivacyTiers(domain.RoleAdmin)
	if len(admin) != 3 {
		t.Errorf("expected admin to see all 3 tiers, got %v", admin)
	}
	unknown := AllowedPrivacyTiers(domain.Role("viewer"))
	if len(unknown) != 2 {
		t.Errorf("expected unrecognized roles to fall back to member-equivalent, got %v", unknown)
	}
}

func TestAccessFilter_Allows(t *testing.T) {
	filter := BuildFilter(domain.RoleMember, "user-1", "tenant-a")

	cases := []struct {
		name string
		src  domain.RetrievalSource
		want bool
	}{
		{"public same tenant", domain.RetrievalSource{PrivacyLevel: domain.Public, TenantID: "tenant-a"}, true},
		{"wrong tenant", domain.RetrievalSource{PrivacyLevel: domain.Public, TenantID: "tenant-b"}, false},
		{"confidential denied for member", domain.RetrievalSource{PrivacyLevel: domain.Confidential, TenantID: "tenant-a"}, false},
		{"local_only owned by caller", domain.RetrievalSource{PrivacyLevel: domain.LocalOnly, TenantID: "tenant-a", OwnerID: "user-1"}, true},
		{"local_only owned by someone else", domain.RetrievalSource{PrivacyLevel: domain.LocalOnly, TenantID: "tenant-a", OwnerID: "user-2"}, false},
		{"internal owned by someone else", domain.RetrievalSource{PrivacyLevel: domain.Internal, TenantID: "tenant-a", OwnerID: "user-2"}, false},
		{"internal owned by caller", domain.RetrievalSource{PrivacyLevel: domain.Internal, TenantID: "tenant-a", OwnerID: "user-1"}, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := filter.Allows(tc.src); got != tc.want {
				t.Errorf("Allows(%+v) = %v, want %v", tc.src, got, tc.want)
			}
		})
	}
}

func TestFilterResultsByAccess_CountsLeaks(t *testing.T) {
	filter := BuildFilter(domain.RolePublic, "user-1", "tenant-a")
	sources := []domain.RetrievalSource{
		{PrivacyLevel: domain.Public, TenantID: "tenant-a"},
		{PrivacyLevel: domain.Confidential, TenantID: "tenant-a"},
		{PrivacyLevel: domain.Internal, TenantID: "tenant-a"},
	}
	result := FilterResultsByAccess(sources, filter, nil, "trace-1")
	if len(result.Allowed) != 1 {
		t.Fatalf("expected only the PUBLIC row allowed, got %d", len(result.Allowed))
	}
	if result.LeakCount != 2 {
		t.Errorf("expected 2 leaked rows counted, got %d", result.LeakCount)
	}
}

func TestShouldSendToExternalAPI(t *testing.T) {
	if !ShouldSendToExternalAPI(domain.Public) || !ShouldSendToExternalAPI(domain.Internal) {
		t.Error("expected PUBLIC and INTERNAL to be sendable externally")
	}
	if ShouldSendToExternalAPI(domain.Confidential) || ShouldSendToExternalAPI(domain.LocalOnly) {
		t.Error("expected CONFIDENTIAL and LOCAL_ONLY to never be sendable externally")
	}
}

func TestCanWrite(t *testing.T) {
	if !CanWrite(domain.RoleAdmin, domain.Confidential, "u2", "u1") {
		t.Error("expected admin to write anywhere")
	}
	if CanWrite(domain.RoleMember, domain.Confidential, "u1", "u1") {
		t.Error("expected member to be denied writing CONFIDENTIAL")
	}
	if CanWrite(domain.RoleMember, domain.Internal, "u2", "u1") {
		t.Error("expected member to be denied writing on behalf of another user")
	}
	if !CanWrite(domain.RoleMember, domain.Internal, "u1", "u1") {
		t.Error("expected member to write their own INTERNAL record")
	}
	if CanWrite(domain.RolePublic, domain.Public, "u1", "u1") {
		t.Error("expected public role to never write")
	}
}

func TestBuildFilterWithOverlay_NilOverlayIsBaseline(t *testing.T) {
	f := BuildFilterWithOverlay(context.Background(), domain.RoleAdmin, "u1", "t1", nil)
	if len(f.PrivacyTiers) != 3 {
		t.Errorf("expected unmodified admin baseline with nil overlay, got %v", f.PrivacyTiers)
	}
}

func TestBuildFilterWithOverlay_NarrowsBaseline(t *testing.T) {
	overlay := NewRegoOverlay(`
package querycore.privacy

default allowed_tiers = ["PUBLIC"]
`)
	f := BuildFilterWithOverlay(context.Background(), domain.RoleAdmin, "u1", "t1", overlay)
	if len(f.PrivacyTiers) != 1 || f.PrivacyTiers[0] != domain.Public {
		t.Errorf("expected overlay to narrow admin down to PUBLIC only, got %v", f.PrivacyTiers)
	}
}
