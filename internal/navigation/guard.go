package navigation

import (
	"strings"

	"continuity.org/internal/identity"
)

// Decision is the page guard outcome. Redirect is set when Allow is false.
type Decision struct {
	Allow    bool   `json:"allow"`
	Redirect string `json:"redirect,omitempty"`
}

var publicPaths = map[string]bool{
	SignInPath:        true,
	"/signup":         true,
	"/reset-password": true,
}

func allow() Decision { return Decision{Allow: true} }

func redirect(to string) Decision { return Decision{Redirect: to} }

// Guard decides whether id may enter path.
func Guard(path string, id identity.Identity) Decision {
	if publicPaths[path] {
		return allow()
	}
	switch v := id.(type) {
	case identity.PlatformAdmin:
		return allow()
	case identity.OrganizationMember:
		if strings.HasPrefix(path, PlatformAdminPrefix) {
			return redirect(landing(v.Role))
		}
		if path == RootPath && v.Role != identity.RoleAdmin {
			return redirect(DepartmentAssessmentsPath)
		}
		return allow()
	default:
		return redirect(SignInPath)
	}
}

// CanAccess is Guard reduced to its boolean.
func CanAccess(path string, id identity.Identity) bool {
	return Guard(path, id).Allow
}

func landing(r identity.Role) string {
	if r == identity.RoleAdmin {
		return RootPath
	}
	return DepartmentAssessmentsPath
}
