package identity

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"continuity.org/internal/obs"
)

// Resolver turns a session into an Identity.
type Resolver struct {
	store     Store
	refresher Refresher
	now       func() time.Time
	log       *zap.Logger
}

// ResolverOption configures Resolver behavior.
type ResolverOption func(*Resolver)

// WithRefresher enables the refresh-and-retry path for stale tokens.
func WithRefresher(r Refresher) ResolverOption {
	return func(res *Resolver) { res.refresher = r }
}

// WithResolverClock overrides time source (useful for tests).
func WithResolverClock(fn func() time.Time) ResolverOption {
	return func(res *Resolver) {
		if fn != nil {
			res.now = fn
		}
	}
}

// WithResolverLogger sets the logger.
func WithResolverLogger(l *zap.Logger) ResolverOption {
	return func(res *Resolver) {
		if l != nil {
			res.log = l
		}
	}
}

// NewResolver constructs a Resolver.
func NewResolver(store Store, opts ...ResolverOption) (*Resolver, error) {
	if store == nil {
		return nil, errors.New("identity: store is required")
	}
	r := &Resolver{store: store, now: time.Now}
	for _, opt := range opts {
		opt(r)
	}
	if r.log == nil {
		r.log = obs.Logger()
	}
	return r, nil
}

// Resolve determines who the session belongs to. Checks run in order and
// stop at the first hit: platform admin, existing profile, first-login
// profile creation. A stale token is refreshed once; if that fails the
// result is Unauthenticated with ErrSessionExpired.
func (r *Resolver) Resolve(ctx context.Context, s *Session) (Resolution, error) {
	if s == nil || strings.TrimSpace(s.UserID) == "" {
		obs.ObserveResolution("unauthenticated")
		return Resolution{Identity: Unauthenticated{}}, nil
	}

	res, err := r.resolve(ctx, s)
	if errors.Is(err, ErrInvalidToken) {
		res, err = r.retryWithRefresh(ctx, s, err)
	}
	if err != nil {
		obs.ObserveResolution("error")
		return Resolution{Identity: Unauthenticated{}}, err
	}
	obs.ObserveResolution(Kind(res.Identity))
	return res, nil
}

func (r *Resolver) retryWithRefresh(ctx context.Context, s *Session, cause error) (Resolution, error) {
	if r.refresher == nil || s.RefreshToken == "" {
		return Resolution{}, fmt.Errorf("%w: %w", ErrSessionExpired, cause)
	}
	r.log.Info("refreshing stale session", zap.String("user_id", s.UserID))
	fresh, err := r.refresher.RefreshSession(ctx, s.RefreshToken)
	if err != nil {
		return Resolution{}, fmt.Errorf("%w: refresh: %w", ErrSessionExpired, err)
	}
	if fresh == nil || fresh.UserID != s.UserID {
		return Resolution{}, fmt.Errorf("%w: refresh returned a different user", ErrSessionExpired)
	}
	res, err := r.resolve(ctx, fresh)
	if errors.Is(err, ErrInvalidToken) {
		return Resolution{}, fmt.Errorf("%w: %w", ErrSessionExpired, err)
	}
	return res, err
}

func (r *Resolver) resolve(ctx context.Context, s *Session) (Resolution, error) {
	ctx = ContextWithSession(ctx, s)

	admin, err := r.store.PlatformAdmins(ctx).Find(ctx, s.UserID)
	switch {
	case err == nil:
		return Resolution{
			Identity: PlatformAdmin{ID: admin.ID, FullName: admin.FullName},
			Session:  s,
		}, nil
	case !errors.Is(err, ErrNotFound):
		return Resolution{}, lookupError("platform admin", err)
	}

	profile, err := r.store.Users(ctx).Find(ctx, s.UserID)
	if errors.Is(err, ErrNotFound) {
		profile, err = r.createProfile(ctx, s)
	}
	if err != nil {
		return Resolution{}, lookupError("user profile", err)
	}

	res := Resolution{
		Identity: OrganizationMember{
			ID:             profile.ID,
			FullName:       profile.FullName,
			Role:           profile.Role,
			OrganizationID: profile.OrganizationID,
		},
		Session: s,
	}
	if profile.OrganizationID != "" {
		org, err := r.store.Organizations(ctx).Find(ctx, profile.OrganizationID)
		if err != nil {
			return Resolution{}, lookupError("organization", err)
		}
		res.Organization = org
	}
	return res, nil
}

// createProfile persists the first-login profile. A concurrent creation by
// another request is tolerated by re-reading the winner's row.
func (r *Resolver) createProfile(ctx context.Context, s *Session) (*Profile, error) {
	p := &Profile{
		ID:             s.UserID,
		Email:          s.Email,
		FullName:       displayName(s),
		Role:           RoleUser,
		OrganizationID: strings.TrimSpace(s.Metadata["organization_id"]),
		CreatedAt:      r.now().UTC(),
	}
	users := r.store.Users(ctx)
	if err := users.Create(ctx, p); err != nil {
		if errors.Is(err, ErrAlreadyExists) {
			return users.Find(ctx, s.UserID)
		}
		return nil, err
	}
	r.log.Info("created first-login profile",
		zap.String("user_id", p.ID),
		zap.String("organization_id", p.OrganizationID))
	return p, nil
}

func lookupError(what string, err error) error {
	if errors.Is(err, ErrInvalidToken) {
		return err
	}
	return fmt.Errorf("%w: %s: %w", ErrAuthFailed, what, err)
}
