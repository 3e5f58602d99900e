package pg

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"continuity.org/internal/identity"
)

var _ identity.Store = (*Store)(nil)

// PlatformAdmins implements identity.Store.
func (s *Store) PlatformAdmins(context.Context) identity.AdminStore { return adminStore{s} }

// Users implements identity.Store.
func (s *Store) Users(context.Context) identity.UserStore { return userStore{s} }

// Organizations implements identity.Store.
func (s *Store) Organizations(context.Context) identity.OrganizationStore { return orgStore{s} }

type adminStore struct{ s *Store }

func (a adminStore) Find(ctx context.Context, id string) (*identity.AdminRecord, error) {
	var row struct {
		ID       string         `db:"id"`
		FullName sql.NullString `db:"full_name"`
		Email    sql.NullString `db:"email"`
	}
	err := a.s.db.GetContext(ctx, &row, `select id, full_name, email from platform_admins where id = $1`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, identity.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &identity.AdminRecord{ID: row.ID, FullName: row.FullName.String, Email: row.Email.String}, nil
}

type userRecord struct {
	ID             string         `db:"id"`
	Email          sql.NullString `db:"email"`
	FullName       sql.NullString `db:"full_name"`
	Role           string         `db:"role"`
	OrganizationID sql.NullString `db:"organization_id"`
	CreatedAt      time.Time      `db:"created_at"`
}

type userStore struct{ s *Store }

func (u userStore) Find(ctx context.Context, id string) (*identity.Profile, error) {
	var row userRecord
	err := u.s.db.GetContext(ctx, &row, `
		select id, email, full_name, role, organization_id, created_at
		from users
		where id = $1
	`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, identity.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	role, err := identity.ParseRole(row.Role)
	if err != nil {
		return nil, err
	}
	return &identity.Profile{
		ID:             row.ID,
		Email:          row.Email.String,
		FullName:       row.FullName.String,
		Role:           role,
		OrganizationID: row.OrganizationID.String,
		CreatedAt:      row.CreatedAt,
	}, nil
}

func (u userStore) Create(ctx context.Context, p *identity.Profile) error {
	row := userRecord{
		ID:             p.ID,
		Email:          nullIfEmpty(p.Email),
		FullName:       nullIfEmpty(p.FullName),
		Role:           string(p.Role),
		OrganizationID: nullIfEmpty(p.OrganizationID),
		CreatedAt:      p.CreatedAt,
	}
	_, err := u.s.db.NamedExecContext(ctx, `
		insert into users (id, email, full_name, role, organization_id, created_at)
		values (:id, :email, :full_name, :role, :organization_id, :created_at)
	`, row)
	if isUniqueViolation(err) {
		return fmt.Errorf("%w: user %s", identity.ErrAlreadyExists, p.ID)
	}
	if pgErr, ok := maybePgError(err); ok && pgErr.Code == pgErrForeignKeyViolation {
		return fmt.Errorf("%w: organization %s", identity.ErrNotFound, p.OrganizationID)
	}
	return err
}

type orgStore struct{ s *Store }

func (o orgStore) Find(ctx context.Context, id string) (*identity.Organization, error) {
	var org identity.Organization
	err := o.s.db.GetContext(ctx, &org, `select id, name, coalesce(industry, '') as industry from organizations where id = $1`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, identity.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &org, nil
}

func nullIfEmpty(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}
