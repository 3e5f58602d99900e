package httpapi

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"continuity.org/internal/identity"
	"continuity.org/internal/navigation"
)

type sessionResponse struct {
	Identity  identity.Snapshot `json:"identity"`
	Landing   string            `json:"landing"`
	ExpiresAt *time.Time        `json:"expiresAt,omitempty"`
}

type navigationResponse struct {
	navigation.State
	Decision navigation.Decision `json:"decision"`
}

type sessionEventRequest struct {
	Event string `json:"event"`
}

func newSessionResponse(res identity.Resolution) sessionResponse {
	if res.Identity == nil {
		res.Identity = identity.Unauthenticated{}
	}
	out := sessionResponse{
		Identity: identity.SnapshotOf(res),
		Landing:  landingFor(res.Identity),
	}
	if res.Session != nil && !res.Session.ExpiresAt.IsZero() {
		exp := res.Session.ExpiresAt.UTC()
		out.ExpiresAt = &exp
	}
	return out
}

// landingFor is the first page an identity may open.
func landingFor(id identity.Identity) string {
	d := navigation.Guard(navigation.RootPath, id)
	if d.Allow {
		return navigation.RootPath
	}
	return d.Redirect
}

// Session returns the resolved identity of the caller.
func (a *API) Session(w http.ResponseWriter, r *http.Request) {
	res, _ := identity.ResolutionFromContext(r.Context())
	writeJSON(w, http.StatusOK, newSessionResponse(res))
}

// SignOut revokes the caller's session.
func (a *API) SignOut(w http.ResponseWriter, r *http.Request) {
	s, ok := identity.SessionFromContext(r.Context())
	if !ok {
		respondErr(w, r, errUnauthenticated)
		return
	}
	auditEvent(r.Context(), "auth.sign_out", nil)
	if err := a.identity.SignOut(r.Context(), s); err != nil {
		respondErr(w, r, fmt.Errorf("sign out: %w", err))
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status":   "signed_out",
		"redirect": navigation.SignInPath,
	})
}

// SessionEvent applies an auth-state change reported by the client.
func (a *API) SessionEvent(w http.ResponseWriter, r *http.Request) {
	var req sessionEventRequest
	if err := decodeJSON(r, &req); err != nil {
		respondErr(w, r, err)
		return
	}
	kind, ok := identity.ParseEventKind(strings.TrimSpace(req.Event))
	if !ok {
		respondErr(w, r, badRequest("unknown auth event %q", req.Event))
		return
	}
	s, ok := identity.SessionFromContext(r.Context())
	if !ok {
		respondErr(w, r, errUnauthenticated)
		return
	}

	res, err := a.identity.HandleAuthEvent(r.Context(), kind, s)
	if err != nil {
		respondErr(w, r, err)
		return
	}
	ctx := identity.ContextWithResolution(r.Context(), res)
	switch kind {
	case identity.EventSignedIn:
		auditEvent(ctx, "auth.sign_in", nil)
	case identity.EventSignedOut:
		auditEvent(r.Context(), "auth.sign_out", nil)
	}
	writeJSON(w, http.StatusOK, newSessionResponse(res))
}

// Navigation derives the menu and page guard decision for ?path=.
func (a *API) Navigation(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimSpace(r.URL.Query().Get("path"))
	if path == "" {
		path = navigation.RootPath
	}
	if !strings.HasPrefix(path, "/") {
		respondErr(w, r, badRequest("path must be absolute"))
		return
	}
	id := identity.FromContext(r.Context())
	writeJSON(w, http.StatusOK, navigationResponse{
		State:    navigation.For(path, id),
		Decision: navigation.Guard(path, id),
	})
}
