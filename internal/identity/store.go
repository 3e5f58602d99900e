package identity

import "context"

// Store describes the relations the resolver reads.
type Store interface {
	PlatformAdmins(ctx context.Context) AdminStore
	Users(ctx context.Context) UserStore
	Organizations(ctx context.Context) OrganizationStore
}

// AdminStore reads platform_admins.
type AdminStore interface {
	Find(ctx context.Context, id string) (*AdminRecord, error)
}

// UserStore reads and creates user profiles.
type UserStore interface {
	Find(ctx context.Context, id string) (*Profile, error)
	Create(ctx context.Context, p *Profile) error
}

// OrganizationStore reads organizations.
type OrganizationStore interface {
	Find(ctx context.Context, id string) (*Organization, error)
}

// Refresher exchanges a refresh token for a fresh session.
type Refresher interface {
	RefreshSession(ctx context.Context, refreshToken string) (*Session, error)
}

// SignOuter revokes a session with the auth service.
type SignOuter interface {
	SignOut(ctx context.Context, accessToken string) error
}
