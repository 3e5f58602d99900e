package backend

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"continuity.org/internal/identity"
)

// AuthClient wraps the hosted auth service.
type AuthClient struct {
	c      *Client
	secret []byte
	now    func() time.Time
}

// NewAuthClient returns an AuthClient. With a non-empty jwtSecret access
// tokens are verified locally instead of through the auth service.
func NewAuthClient(c *Client, jwtSecret string) *AuthClient {
	a := &AuthClient{c: c, now: time.Now}
	if s := strings.TrimSpace(jwtSecret); s != "" {
		a.secret = []byte(s)
	}
	return a
}

type sessionClaims struct {
	Email        string         `json:"email"`
	UserMetadata map[string]any `json:"user_metadata"`
	jwt.RegisteredClaims
}

type authUser struct {
	ID           string         `json:"id"`
	Email        string         `json:"email"`
	UserMetadata map[string]any `json:"user_metadata"`
}

type tokenResponse struct {
	AccessToken  string   `json:"access_token"`
	RefreshToken string   `json:"refresh_token"`
	ExpiresIn    int64    `json:"expires_in"`
	ExpiresAt    int64    `json:"expires_at"`
	User         authUser `json:"user"`
}

// GetSession turns a bearer token into a Session. An expired but otherwise
// valid token yields identity.ErrSessionExpired.
func (a *AuthClient) GetSession(ctx context.Context, accessToken string) (*identity.Session, error) {
	accessToken = strings.TrimSpace(accessToken)
	if accessToken == "" {
		return nil, identity.ErrInvalidToken
	}
	if a.secret != nil {
		return a.verifyLocal(accessToken)
	}

	ctx = identity.ContextWithSession(ctx, &identity.Session{AccessToken: accessToken})
	body, err := a.c.do(ctx, "auth user", http.MethodGet, "/auth/v1/user", nil, nil, nil)
	if err != nil {
		return nil, authError(err)
	}
	var u authUser
	if err := json.Unmarshal(body, &u); err != nil {
		return nil, fmt.Errorf("decode auth user: %w", err)
	}
	if u.ID == "" {
		return nil, identity.ErrInvalidToken
	}
	s := &identity.Session{
		UserID:      u.ID,
		Email:       u.Email,
		AccessToken: accessToken,
		Metadata:    stringMetadata(u.UserMetadata),
	}
	if exp, ok := unverifiedExpiry(accessToken); ok {
		s.ExpiresAt = exp
	}
	return s, nil
}

func (a *AuthClient) verifyLocal(token string) (*identity.Session, error) {
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Name}),
		jwt.WithTimeFunc(a.now),
		jwt.WithExpirationRequired(),
	)
	claims := &sessionClaims{}
	_, err := parser.ParseWithClaims(token, claims, func(*jwt.Token) (any, error) {
		return a.secret, nil
	})
	switch {
	case errors.Is(err, jwt.ErrTokenExpired):
		return nil, identity.ErrSessionExpired
	case err != nil:
		return nil, identity.ErrInvalidToken
	}
	if strings.TrimSpace(claims.Subject) == "" {
		return nil, identity.ErrInvalidToken
	}
	return &identity.Session{
		UserID:      claims.Subject,
		Email:       claims.Email,
		AccessToken: token,
		ExpiresAt:   claims.ExpiresAt.Time,
		Metadata:    stringMetadata(claims.UserMetadata),
	}, nil
}

// RefreshSession exchanges a refresh token for a new session.
func (a *AuthClient) RefreshSession(ctx context.Context, refreshToken string) (*identity.Session, error) {
	if strings.TrimSpace(refreshToken) == "" {
		return nil, identity.ErrSessionExpired
	}
	payload, err := json.Marshal(map[string]string{"refresh_token": refreshToken})
	if err != nil {
		return nil, err
	}
	body, err := a.c.do(ctx, "auth refresh", http.MethodPost, "/auth/v1/token", map[string][]string{"grant_type": {"refresh_token"}}, payload, nil)
	if err != nil {
		if errors.Is(err, ErrRejected) || errors.Is(err, ErrInvalidToken) {
			return nil, fmt.Errorf("%w: %w", identity.ErrSessionExpired, err)
		}
		return nil, err
	}
	var tr tokenResponse
	if err := json.Unmarshal(body, &tr); err != nil {
		return nil, fmt.Errorf("decode token: %w", err)
	}
	if tr.AccessToken == "" || tr.User.ID == "" {
		return nil, identity.ErrSessionExpired
	}
	s := &identity.Session{
		UserID:       tr.User.ID,
		Email:        tr.User.Email,
		AccessToken:  tr.AccessToken,
		RefreshToken: tr.RefreshToken,
		Metadata:     stringMetadata(tr.User.UserMetadata),
	}
	switch {
	case tr.ExpiresAt > 0:
		s.ExpiresAt = time.Unix(tr.ExpiresAt, 0).UTC()
	case tr.ExpiresIn > 0:
		s.ExpiresAt = a.now().Add(time.Duration(tr.ExpiresIn) * time.Second).UTC()
	}
	return s, nil
}

// SignOut revokes the session server-side.
func (a *AuthClient) SignOut(ctx context.Context, accessToken string) error {
	ctx = identity.ContextWithSession(ctx, &identity.Session{AccessToken: accessToken})
	_, err := a.c.do(ctx, "auth logout", http.MethodPost, "/auth/v1/logout", nil, []byte("{}"), nil)
	if errors.Is(err, ErrInvalidToken) {
		return nil
	}
	return err
}

func authError(err error) error {
	if errors.Is(err, ErrInvalidToken) || errors.Is(err, ErrNotFound) || errors.Is(err, ErrRejected) {
		return fmt.Errorf("%w: %w", identity.ErrInvalidToken, err)
	}
	return err
}

func unverifiedExpiry(token string) (time.Time, bool) {
	claims := &jwt.RegisteredClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil || claims.ExpiresAt == nil {
		return time.Time{}, false
	}
	return claims.ExpiresAt.Time, true
}

func stringMetadata(in map[string]any) map[string]string {
	if len(in) == 0 {
		return nil
	}
	out := make(map[string]string, len(in))
	for k, v := range in {
		if s, ok := v.(string); ok {
			out[k] = s
		}
	}
	return out
}
