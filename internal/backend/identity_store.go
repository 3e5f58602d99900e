package backend

import (
	"context"
	"errors"
	"fmt"
	"time"

	"continuity.org/internal/identity"
)

// IdentityStore implements identity.Store over the REST gateway.
type IdentityStore struct {
	c *Client
}

// NewIdentityStore wraps c.
func NewIdentityStore(c *Client) *IdentityStore { return &IdentityStore{c: c} }

var _ identity.Store = (*IdentityStore)(nil)

// PlatformAdmins implements identity.Store.
func (s *IdentityStore) PlatformAdmins(context.Context) identity.AdminStore { return adminStore{s.c} }

// Users implements identity.Store.
func (s *IdentityStore) Users(context.Context) identity.UserStore { return userStore{s.c} }

// Organizations implements identity.Store.
func (s *IdentityStore) Organizations(context.Context) identity.OrganizationStore {
	return organizationStore{s.c}
}

type adminRow struct {
	ID       string `json:"id"`
	FullName string `json:"full_name"`
	Email    string `json:"email"`
}

type adminStore struct{ c *Client }

func (s adminStore) Find(ctx context.Context, id string) (*identity.AdminRecord, error) {
	var row adminRow
	err := s.c.Select(ctx, "platform_admins", Query{Eq: map[string]string{"id": id}, Single: true}, &row)
	if err != nil {
		return nil, identityError(err)
	}
	return &identity.AdminRecord{ID: row.ID, FullName: row.FullName, Email: row.Email}, nil
}

type userRow struct {
	ID             string    `json:"id"`
	Email          string    `json:"email"`
	FullName       string    `json:"full_name"`
	Role           string    `json:"role"`
	OrganizationID *string   `json:"organization_id"`
	CreatedAt      time.Time `json:"created_at,omitempty"`
}

type userStore struct{ c *Client }

func (s userStore) Find(ctx context.Context, id string) (*identity.Profile, error) {
	var row userRow
	err := s.c.Select(ctx, "users", Query{Eq: map[string]string{"id": id}, Single: true}, &row)
	if err != nil {
		return nil, identityError(err)
	}
	role, err := identity.ParseRole(row.Role)
	if err != nil {
		return nil, err
	}
	p := &identity.Profile{ID: row.ID, Email: row.Email, FullName: row.FullName, Role: role, CreatedAt: row.CreatedAt}
	if row.OrganizationID != nil {
		p.OrganizationID = *row.OrganizationID
	}
	return p, nil
}

func (s userStore) Create(ctx context.Context, p *identity.Profile) error {
	row := userRow{ID: p.ID, Email: p.Email, FullName: p.FullName, Role: string(p.Role), CreatedAt: p.CreatedAt}
	if p.OrganizationID != "" {
		org := p.OrganizationID
		row.OrganizationID = &org
	}
	var stored userRow
	if err := s.c.Insert(ctx, "users", row, &stored); err != nil {
		return identityError(err)
	}
	if !stored.CreatedAt.IsZero() {
		p.CreatedAt = stored.CreatedAt
	}
	return nil
}

type organizationStore struct{ c *Client }

func (s organizationStore) Find(ctx context.Context, id string) (*identity.Organization, error) {
	var org identity.Organization
	err := s.c.Select(ctx, "organizations", Query{Select: "id,name,industry", Eq: map[string]string{"id": id}, Single: true}, &org)
	if err != nil {
		return nil, identityError(err)
	}
	return &org, nil
}

func identityError(err error) error {
	switch {
	case errors.Is(err, ErrNotFound):
		return fmt.Errorf("%w: %w", identity.ErrNotFound, err)
	case errors.Is(err, ErrInvalidToken):
		return fmt.Errorf("%w: %w", identity.ErrInvalidToken, err)
	case errors.Is(err, ErrConflict):
		return fmt.Errorf("%w: %w", identity.ErrAlreadyExists, err)
	default:
		return err
	}
}
