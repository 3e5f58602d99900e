package backend

import (
	"context"
	"io"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"continuity.org/internal/identity"
)

func TestIdentityStoreResolvesMember(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/rest/v1/platform_admins":
			_, _ = io.WriteString(w, `[]`)
		case "/rest/v1/users":
			_, _ = io.WriteString(w, `[{"id":"u1","email":"a@b.c","full_name":"Ann","role":"bcdr_manager","organization_id":"org-1"}]`)
		case "/rest/v1/organizations":
			_, _ = io.WriteString(w, `[{"id":"org-1","name":"Acme","industry":"retail"}]`)
		default:
			t.Fatalf("unexpected path %s", r.URL.Path)
		}
	})
	r, err := identity.NewResolver(NewIdentityStore(c))
	require.NoError(t, err)
	res, err := r.Resolve(context.Background(), &identity.Session{UserID: "u1", AccessToken: "tok"})
	require.NoError(t, err)
	assert.Equal(t, identity.OrganizationMember{ID: "u1", FullName: "Ann", Role: identity.RoleBCDRManager, OrganizationID: "org-1"}, res.Identity)
	require.NotNil(t, res.Organization)
	assert.Equal(t, "Acme", res.Organization.Name)
}

func TestIdentityStoreErrorMapping(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodPost:
			w.WriteHeader(http.StatusConflict)
		default:
			w.WriteHeader(http.StatusUnauthorized)
		}
	})
	s := NewIdentityStore(c)
	ctx := context.Background()

	_, err := s.PlatformAdmins(ctx).Find(ctx, "u1")
	assert.ErrorIs(t, err, identity.ErrInvalidToken)

	err = s.Users(ctx).Create(ctx, &identity.Profile{ID: "u1", Role: identity.RoleUser})
	assert.ErrorIs(t, err, identity.ErrAlreadyExists)
}
