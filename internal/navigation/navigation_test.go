package navigation

import (
	"reflect"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"continuity.org/internal/identity"
)

func member(role identity.Role) identity.Identity {
	return identity.OrganizationMember{ID: "u", Role: role, OrganizationID: "o"}
}

func TestPlatformAdminPrefixIgnoresRole(t *testing.T) {
	for _, id := range []identity.Identity{identity.Unauthenticated{}, member(identity.RoleViewer), identity.PlatformAdmin{ID: "a"}} {
		st := For("/platform-admin/users", id)
		require.False(t, st.Menu.Categorized())
		assert.Equal(t, platformAdminItems, st.Menu.Items)
		assert.Equal(t, "/platform-admin/users", st.Active)
	}
}

func TestBCDRMenuVisibleForManagers(t *testing.T) {
	for _, role := range []identity.Role{identity.RoleAdmin, identity.RoleBCDRManager} {
		st := For("/bcdr/bia", member(role))
		require.True(t, st.Menu.Categorized())
		for _, c := range st.Menu.Categories {
			if c.Name == "Department" {
				assert.False(t, c.Visible, "department category must stay hidden for %s", role)
				continue
			}
			assert.True(t, c.Visible, "category %s hidden for %s", c.Name, role)
		}
		assert.Equal(t, "/bcdr/bia", st.Active)
	}
}

func TestBCDRMenuHiddenForOtherRoles(t *testing.T) {
	ids := []identity.Identity{
		identity.PlatformAdmin{ID: "a"},
		identity.Unauthenticated{},
		member(identity.RoleDepartmentHead),
		member(identity.RoleAssessor),
		member(identity.RoleViewer),
		member(identity.RoleUser),
	}
	for _, id := range ids {
		st := For("/bcdr", id)
		require.NotEmpty(t, st.Menu.Categories)
		for _, c := range st.Menu.Categories {
			assert.False(t, c.Visible, "%s visible for %s", c.Name, identity.Kind(id))
		}
	}
}

func TestRiskAndDefaultMenus(t *testing.T) {
	st := For("/risk-assessment/register", member(identity.RoleViewer))
	assert.Equal(t, riskItems, st.Menu.Items)
	assert.Equal(t, "/risk-assessment/register", st.Active)

	st = For("/reports", member(identity.RoleViewer))
	assert.Equal(t, []Item{{Label: "Home", Href: "/"}}, st.Menu.Items)
	assert.Empty(t, st.Active)
}

func TestActiveIsExactMatch(t *testing.T) {
	st := For("/risk-assessment/register/42", member(identity.RoleAdmin))
	assert.Empty(t, st.Active, "active highlight must not use prefix matching")
}

func TestMenusAreNotShared(t *testing.T) {
	st := For("/risk-assessment", member(identity.RoleAdmin))
	st.Menu.Items[0].Label = "mutated"
	assert.Equal(t, "Risk Dashboard", For("/risk-assessment", member(identity.RoleAdmin)).Menu.Items[0].Label)
}

func TestGuard(t *testing.T) {
	cases := []struct {
		name string
		path string
		id   identity.Identity
		want Decision
	}{
		{"anonymous root", "/", identity.Unauthenticated{}, Decision{Redirect: SignInPath}},
		{"anonymous signin", "/signin", identity.Unauthenticated{}, Decision{Allow: true}},
		{"admin root", "/", member(identity.RoleAdmin), Decision{Allow: true}},
		{"platform admin root", "/", identity.PlatformAdmin{ID: "a"}, Decision{Allow: true}},
		{"manager root", "/", member(identity.RoleBCDRManager), Decision{Redirect: DepartmentAssessmentsPath}},
		{"viewer root", "/", member(identity.RoleViewer), Decision{Redirect: DepartmentAssessmentsPath}},
		{"viewer bcdr", "/bcdr", member(identity.RoleViewer), Decision{Allow: true}},
		{"admin platform", "/platform-admin", member(identity.RoleAdmin), Decision{Redirect: RootPath}},
		{"head platform", "/platform-admin/users", member(identity.RoleDepartmentHead), Decision{Redirect: DepartmentAssessmentsPath}},
		{"platform admin platform", "/platform-admin/users", identity.PlatformAdmin{ID: "a"}, Decision{Allow: true}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, Guard(tc.path, tc.id))
			assert.Equal(t, tc.want.Allow, CanAccess(tc.path, tc.id))
		})
	}
}

func genIdentity() gopter.Gen {
	roles := make([]interface{}, 0, len(identity.MemberRoles))
	for _, r := range identity.MemberRoles {
		roles = append(roles, r)
	}
	return gen.OneGenOf(
		gen.Const(identity.Identity(identity.Unauthenticated{})),
		gen.AlphaString().Map(func(id string) identity.Identity { return identity.PlatformAdmin{ID: id} }),
		gen.OneConstOf(roles...).Map(func(r identity.Role) identity.Identity { return member(r) }),
	)
}

func genPath() gopter.Gen {
	return gen.OneGenOf(
		gen.OneConstOf("/", "/bcdr", "/bcdr/bia", "/risk-assessment", "/platform-admin", "/signin"),
		gen.AlphaString().Map(func(s string) string { return "/bcdr/" + s }),
		gen.AlphaString().Map(func(s string) string { return "/" + s }),
	)
}

func TestNavigationProperties(t *testing.T) {
	params := gopter.DefaultTestParameters()
	params.MinSuccessfulTests = 200
	properties := gopter.NewProperties(params)

	properties.Property("For is deterministic", prop.ForAll(
		func(path string, id identity.Identity) bool {
			return reflect.DeepEqual(For(path, id), For(path, id))
		},
		genPath(), genIdentity(),
	))

	properties.Property("non-managers never see BCDR categories", prop.ForAll(
		func(path string, id identity.Identity) bool {
			role, _ := identity.RoleOf(id)
			if role.ManagesContinuity() {
				return true
			}
			for _, c := range For(path, id).Menu.Categories {
				if c.Visible {
					return false
				}
			}
			return true
		},
		genPath(), genIdentity(),
	))

	properties.Property("active href equals path or is empty", prop.ForAll(
		func(path string, id identity.Identity) bool {
			st := For(path, id)
			return st.Active == "" || st.Active == path
		},
		genPath(), genIdentity(),
	))

	properties.TestingRun(t)
}
