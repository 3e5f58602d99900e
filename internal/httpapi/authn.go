package httpapi

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"continuity.org/internal/audit"
	"continuity.org/internal/identity"
	"continuity.org/internal/obs"
)

const (
	authHeader    = "Authorization"
	bearer        = "Bearer "
	refreshHeader = "X-Refresh-Token"
	accessHeader  = "X-Access-Token"
	expiresHeader = "X-Token-Expires-At"
)

var publicPaths = []string{
	"/healthz",
	"/readyz",
	"/metrics",
	"/v1/info",
}

// optionalPaths answer for Unauthenticated callers instead of rejecting them.
var optionalPaths = []string{
	"/v1/session",
	"/v1/navigation",
}

func (a *API) withAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodOptions || matchPath(publicPaths, r.URL.Path) {
			next.ServeHTTP(w, r)
			return
		}

		raw := r.Header.Get(authHeader)
		if strings.TrimSpace(raw) == "" && matchPath(optionalPaths, r.URL.Path) {
			anon := identity.Resolution{Identity: identity.Unauthenticated{}}
			next.ServeHTTP(w, r.WithContext(identity.ContextWithResolution(r.Context(), anon)))
			return
		}
		if a.sessions == nil || a.identity == nil {
			respondErr(w, r, fmt.Errorf("%w: authentication disabled", errDisabled))
			return
		}

		token, err := extractBearerToken(raw)
		if err != nil {
			respondErr(w, r, fmt.Errorf("%w: %v", errUnauthenticated, err))
			return
		}

		res, err := a.authenticate(r.Context(), token, strings.TrimSpace(r.Header.Get(refreshHeader)))
		if err != nil {
			respondErr(w, r, err)
			return
		}
		if s := res.Session; s != nil && s.AccessToken != token {
			w.Header().Set(accessHeader, s.AccessToken)
			if s.RefreshToken != "" {
				w.Header().Set(refreshHeader, s.RefreshToken)
			}
			if !s.ExpiresAt.IsZero() {
				w.Header().Set(expiresHeader, strconv.FormatInt(s.ExpiresAt.Unix(), 10))
			}
		}

		ctx := identity.ContextWithSession(r.Context(), res.Session)
		ctx = identity.ContextWithResolution(ctx, res)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// authenticate verifies the token, refreshing it once when it has expired,
// and resolves the caller's identity.
func (a *API) authenticate(ctx context.Context, token, refresh string) (identity.Resolution, error) {
	anon := identity.Resolution{Identity: identity.Unauthenticated{}}
	s, err := a.sessions.GetSession(ctx, token)
	if errors.Is(err, identity.ErrSessionExpired) && refresh != "" {
		s, err = a.sessions.RefreshSession(ctx, refresh)
	}
	if err != nil {
		return anon, err
	}
	if s.RefreshToken == "" {
		s.RefreshToken = refresh
	}
	res, err := a.identity.Bootstrap(ctx, s)
	if err != nil {
		return anon, err
	}
	if res.Session == nil {
		res.Session = s
	}
	return res, nil
}

// member returns the calling organization member.
func member(ctx context.Context) (identity.OrganizationMember, error) {
	switch v := identity.FromContext(ctx).(type) {
	case identity.OrganizationMember:
		if v.OrganizationID == "" {
			return v, errNoOrganization
		}
		return v, nil
	case identity.PlatformAdmin:
		return identity.OrganizationMember{}, errNoOrganization
	default:
		return identity.OrganizationMember{}, errUnauthenticated
	}
}

// manager returns the calling member when their role administers continuity.
func manager(ctx context.Context) (identity.OrganizationMember, error) {
	m, err := member(ctx)
	if err != nil {
		return m, err
	}
	if !m.Role.ManagesContinuity() {
		return m, fmt.Errorf("%w: role %s cannot edit the business impact analysis", errForbidden, m.Role)
	}
	return m, nil
}

func extractBearerToken(header string) (string, error) {
	header = strings.TrimSpace(header)
	if header == "" {
		return "", errors.New("missing bearer token")
	}
	if !strings.HasPrefix(strings.ToLower(header), strings.ToLower(bearer)) {
		return "", errors.New("invalid authorization scheme")
	}
	token := strings.TrimSpace(header[len(bearer):])
	if token == "" {
		return "", errors.New("missing bearer token")
	}
	return token, nil
}

func matchPath(paths []string, path string) bool {
	for _, p := range paths {
		if path == p {
			return true
		}
	}
	return false
}

func auditEvent(ctx context.Context, event string, fields map[string]any) {
	if err := audit.LogEvent(ctx, event, fields); err != nil {
		obs.Logger().Warn("audit event not recorded", zap.String("event", event), zap.Error(err))
	}
}
