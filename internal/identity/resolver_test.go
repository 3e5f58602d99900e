package identity

import (
	"context"
	"errors"
	"testing"
)

func newTestResolver(t *testing.T, store Store, opts ...ResolverOption) *Resolver {
	t.Helper()
	r, err := NewResolver(store, opts...)
	if err != nil {
		t.Fatalf("NewResolver: %v", err)
	}
	return r
}

func TestResolveNoSession(t *testing.T) {
	r := newTestResolver(t, newMemStore())
	res, err := r.Resolve(context.Background(), nil)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if _, ok := res.Identity.(Unauthenticated); !ok {
		t.Fatalf("expected Unauthenticated, got %T", res.Identity)
	}
}

func TestResolvePlatformAdminWinsOverProfile(t *testing.T) {
	store := newMemStore()
	store.admins["u1"] = &AdminRecord{ID: "u1", FullName: "Root Admin"}
	store.users["u1"] = &Profile{ID: "u1", FullName: "Shadow", Role: RoleViewer, OrganizationID: "org-1"}
	store.orgs["org-1"] = &Organization{ID: "org-1", Name: "Acme"}

	res, err := newTestResolver(t, store).Resolve(context.Background(), &Session{UserID: "u1", AccessToken: "t"})
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	admin, ok := res.Identity.(PlatformAdmin)
	if !ok {
		t.Fatalf("expected PlatformAdmin, got %T", res.Identity)
	}
	if admin.FullName != "Root Admin" {
		t.Fatalf("unexpected admin: %+v", admin)
	}
	if res.Organization != nil {
		t.Fatalf("platform admin must not carry an organization")
	}
	if role, _ := RoleOf(res.Identity); role != RoleSuperAdmin {
		t.Fatalf("expected super_admin role, got %s", role)
	}
}

func TestResolveMemberWithOrganization(t *testing.T) {
	store := newMemStore()
	store.users["u2"] = &Profile{ID: "u2", FullName: "Dana", Role: RoleBCDRManager, OrganizationID: "org-1"}
	store.orgs["org-1"] = &Organization{ID: "org-1", Name: "Acme", Industry: "finance"}

	res, err := newTestResolver(t, store).Resolve(context.Background(), &Session{UserID: "u2", AccessToken: "t"})
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	member, ok := res.Identity.(OrganizationMember)
	if !ok || member.Role != RoleBCDRManager || member.OrganizationID != "org-1" {
		t.Fatalf("unexpected identity: %#v", res.Identity)
	}
	if res.Organization == nil || res.Organization.Name != "Acme" {
		t.Fatalf("organization not attached: %#v", res.Organization)
	}
}

func TestResolveOrganizationFailurePropagates(t *testing.T) {
	store := newMemStore()
	store.users["u2"] = &Profile{ID: "u2", Role: RoleViewer, OrganizationID: "org-9"}
	store.orgErr = errors.New("connection reset")

	res, err := newTestResolver(t, store).Resolve(context.Background(), &Session{UserID: "u2"})
	if !errors.Is(err, ErrAuthFailed) {
		t.Fatalf("expected ErrAuthFailed, got %v", err)
	}
	if _, ok := res.Identity.(Unauthenticated); !ok {
		t.Fatalf("failed resolution must be Unauthenticated, got %T", res.Identity)
	}
}

func TestResolveFirstLoginCreatesProfile(t *testing.T) {
	store := newMemStore()
	store.orgs["org-7"] = &Organization{ID: "org-7", Name: "Globex"}
	session := &Session{
		UserID:   "u3",
		Email:    "jordan.lee@globex.test",
		Metadata: map[string]string{"organization_id": "org-7"},
	}

	res, err := newTestResolver(t, store).Resolve(context.Background(), session)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	member, ok := res.Identity.(OrganizationMember)
	if !ok {
		t.Fatalf("expected member, got %T", res.Identity)
	}
	if member.Role != RoleUser || member.FullName != "jordan.lee" || member.OrganizationID != "org-7" {
		t.Fatalf("unexpected synthesized member: %+v", member)
	}
	if len(store.created) != 1 || store.created[0].Email != "jordan.lee@globex.test" {
		t.Fatalf("profile not persisted: %+v", store.created)
	}
	if res.Organization == nil || res.Organization.ID != "org-7" {
		t.Fatalf("organization not attached")
	}
}

func TestResolveFirstLoginPrefersDisplayName(t *testing.T) {
	store := newMemStore()
	session := &Session{UserID: "u4", Email: "x@y.z", Metadata: map[string]string{"full_name": " Alex Kim "}}
	res, err := newTestResolver(t, store).Resolve(context.Background(), session)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if got := res.Identity.(OrganizationMember).FullName; got != "Alex Kim" {
		t.Fatalf("unexpected full name %q", got)
	}
	if res.Organization != nil {
		t.Fatalf("no organization expected")
	}
}

func TestResolveUnexpectedErrorIsAuthFailure(t *testing.T) {
	store := newMemStore()
	store.adminErr = errors.New("permission denied for relation platform_admins")
	_, err := newTestResolver(t, store).Resolve(context.Background(), &Session{UserID: "u1"})
	if !errors.Is(err, ErrAuthFailed) {
		t.Fatalf("expected ErrAuthFailed, got %v", err)
	}
}

func TestResolveRefreshesStaleTokenOnce(t *testing.T) {
	store := newMemStore()
	store.staleToken = "old"
	store.users["u5"] = &Profile{ID: "u5", Role: RoleAssessor}
	ref := &stubRefresher{session: &Session{UserID: "u5", AccessToken: "new"}}

	original := &Session{UserID: "u5", AccessToken: "old", RefreshToken: "r"}
	res, err := newTestResolver(t, store, WithRefresher(ref)).Resolve(context.Background(), original)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if ref.calls != 1 {
		t.Fatalf("expected one refresh, got %d", ref.calls)
	}
	if !res.Refreshed(original) || res.Session.AccessToken != "new" {
		t.Fatalf("expected refreshed session, got %+v", res.Session)
	}
}

func TestResolveRefreshFailureExpiresSession(t *testing.T) {
	store := newMemStore()
	store.staleToken = "old"
	ref := &stubRefresher{err: errors.New("refresh token revoked")}

	res, err := newTestResolver(t, store, WithRefresher(ref)).Resolve(context.Background(),
		&Session{UserID: "u5", AccessToken: "old", RefreshToken: "r"})
	if !errors.Is(err, ErrSessionExpired) {
		t.Fatalf("expected ErrSessionExpired, got %v", err)
	}
	if _, ok := res.Identity.(Unauthenticated); !ok {
		t.Fatalf("expected Unauthenticated, got %T", res.Identity)
	}
}

func TestResolveStillStaleAfterRefreshGivesUp(t *testing.T) {
	store := newMemStore()
	store.staleToken = "old"
	ref := &stubRefresher{session: &Session{UserID: "u5", AccessToken: "old"}}

	_, err := newTestResolver(t, store, WithRefresher(ref)).Resolve(context.Background(),
		&Session{UserID: "u5", AccessToken: "old", RefreshToken: "r"})
	if !errors.Is(err, ErrSessionExpired) {
		t.Fatalf("expected ErrSessionExpired, got %v", err)
	}
	if ref.calls != 1 {
		t.Fatalf("refresh must be attempted exactly once, got %d", ref.calls)
	}
}

func TestResolveWithoutRefresherExpires(t *testing.T) {
	store := newMemStore()
	store.staleToken = "old"
	_, err := newTestResolver(t, store).Resolve(context.Background(), &Session{UserID: "u5", AccessToken: "old"})
	if !errors.Is(err, ErrSessionExpired) {
		t.Fatalf("expected ErrSessionExpired, got %v", err)
	}
}
