package httpapi

import (
	"fmt"
	"net/http"

	"continuity.org/internal/analytics"
	"continuity.org/internal/department"
	"continuity.org/internal/identity"
)

// Analysis returns one analysis payload verbatim.
func (a *API) Analysis(w http.ResponseWriter, r *http.Request) {
	if a.analytics == nil {
		respondErr(w, r, fmt.Errorf("%w: analytics", errDisabled))
		return
	}
	m, err := member(r.Context())
	if err != nil {
		respondErr(w, r, err)
		return
	}
	name, err := analytics.ParseName(r.PathValue("name"))
	if err != nil {
		respondErr(w, r, err)
		return
	}
	payload, err := a.analytics.Fetch(r.Context(), name, m.OrganizationID)
	if err != nil {
		respondErr(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(payload)
}

// Dashboard returns every analysis keyed by short name.
func (a *API) Dashboard(w http.ResponseWriter, r *http.Request) {
	if a.analytics == nil {
		respondErr(w, r, fmt.Errorf("%w: analytics", errDisabled))
		return
	}
	m, err := member(r.Context())
	if err != nil {
		respondErr(w, r, err)
		return
	}
	dash, err := a.analytics.Dashboard(r.Context(), m.OrganizationID)
	if err != nil {
		respondErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, dash)
}

// DepartmentAssessments lists the caller's assignments with their questions.
func (a *API) DepartmentAssessments(w http.ResponseWriter, r *http.Request) {
	if a.departments == nil {
		respondErr(w, r, fmt.Errorf("%w: department assessments", errDisabled))
		return
	}
	uid := identity.UserID(identity.FromContext(r.Context()))
	if uid == "" {
		respondErr(w, r, errUnauthenticated)
		return
	}
	list, err := a.departments.Load(r.Context(), uid)
	if err != nil {
		respondErr(w, r, err)
		return
	}
	if list == nil {
		list = []department.Assessment{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"assessments": list})
}
