// Package navigation derives menus and page-access decisions from the
// current path and the caller's identity. Everything here is pure.
package navigation

import (
	"strings"

	"continuity.org/internal/identity"
)

const (
	PlatformAdminPrefix  = "/platform-admin"
	BCDRPrefix           = "/bcdr"
	RiskAssessmentPrefix = "/risk-assessment"

	RootPath                  = "/"
	SignInPath                = "/signin"
	DepartmentAssessmentsPath = "/department-assessments"
)

// Item is a single menu link.
type Item struct {
	Label string `json:"label"`
	Href  string `json:"href"`
}

// Category groups items under a heading that may be hidden.
type Category struct {
	Name    string `json:"name"`
	Visible bool   `json:"visible"`
	Items   []Item `json:"items"`
}

// Menu is either flat (Items) or categorized (Categories), never both.
type Menu struct {
	Items      []Item     `json:"items,omitempty"`
	Categories []Category `json:"categories,omitempty"`
}

// Categorized reports whether the menu is the categorized form.
func (m Menu) Categorized() bool { return m.Categories != nil }

// State is the derived navigation for one render.
type State struct {
	Path   string `json:"path"`
	Menu   Menu   `json:"menu"`
	Active string `json:"active,omitempty"`
}

var platformAdminItems = []Item{
	{Label: "Overview", Href: "/platform-admin"},
	{Label: "Organizations", Href: "/platform-admin/organizations"},
	{Label: "Users", Href: "/platform-admin/users"},
	{Label: "User Import", Href: "/platform-admin/import"},
	{Label: "Settings", Href: "/platform-admin/settings"},
}

var riskItems = []Item{
	{Label: "Risk Dashboard", Href: "/risk-assessment"},
	{Label: "Risk Register", Href: "/risk-assessment/register"},
	{Label: "Risk Findings", Href: "/risk-assessment/findings"},
	{Label: "Risk Analysis", Href: "/risk-assessment/analysis"},
}

var defaultItems = []Item{
	{Label: "Home", Href: RootPath},
}

type categoryDef struct {
	name  string
	items []Item
	// departmentScoped categories are hidden for every role.
	departmentScoped bool
}

var bcdrCategories = []categoryDef{
	{name: "Overview", items: []Item{
		{Label: "BCDR Dashboard", Href: "/bcdr"},
		{Label: "Program Settings", Href: "/bcdr/settings"},
	}},
	{name: "Assessments", items: []Item{
		{Label: "Maturity Assessment", Href: "/bcdr/maturity"},
		{Label: "Gap Analysis", Href: "/bcdr/gap-analysis"},
		{Label: "Business Impact Analysis", Href: "/bcdr/bia"},
		{Label: "Resiliency Scoring", Href: "/bcdr/resiliency"},
	}},
	{name: "Planning", items: []Item{
		{Label: "Recovery Strategies", Href: "/bcdr/strategies"},
		{Label: "Recommendations", Href: "/bcdr/recommendations"},
		{Label: "Reports", Href: "/bcdr/reports"},
	}},
	{name: "Department", departmentScoped: true, items: []Item{
		{Label: "Department Questionnaires", Href: "/bcdr/department/questionnaires"},
		{Label: "Department Analysis", Href: "/bcdr/department/analysis"},
	}},
}

// For returns the navigation state for path as seen by id.
func For(path string, id identity.Identity) State {
	var menu Menu
	switch {
	case strings.HasPrefix(path, PlatformAdminPrefix):
		menu = Menu{Items: cloneItems(platformAdminItems)}
	case strings.HasPrefix(path, BCDRPrefix):
		menu = Menu{Categories: bcdrMenu(id)}
	case strings.HasPrefix(path, RiskAssessmentPrefix):
		menu = Menu{Items: cloneItems(riskItems)}
	default:
		menu = Menu{Items: cloneItems(defaultItems)}
	}
	return State{Path: path, Menu: menu, Active: activeHref(menu, path)}
}

func bcdrMenu(id identity.Identity) []Category {
	role, _ := identity.RoleOf(id)
	manages := role.ManagesContinuity()
	out := make([]Category, 0, len(bcdrCategories))
	for _, def := range bcdrCategories {
		out = append(out, Category{
			Name:    def.name,
			Visible: manages && !def.departmentScoped,
			Items:   cloneItems(def.items),
		})
	}
	return out
}

func activeHref(m Menu, path string) string {
	for _, it := range m.Items {
		if it.Href == path {
			return it.Href
		}
	}
	for _, c := range m.Categories {
		for _, it := range c.Items {
			if it.Href == path {
				return it.Href
			}
		}
	}
	return ""
}

func cloneItems(in []Item) []Item {
	out := make([]Item, len(in))
	copy(out, in)
	return out
}
