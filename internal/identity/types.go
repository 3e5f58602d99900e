package identity

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"time"
)

// Session is an authenticated caller as reported by the hosted auth service.
type Session struct {
	UserID       string
	Email        string
	AccessToken  string
	RefreshToken string
	ExpiresAt    time.Time
	// Metadata holds user metadata from sign-up (full_name, organization_id).
	Metadata map[string]string
}

// Key identifies the session in caches without exposing the token.
func (s *Session) Key() string {
	if s == nil || s.AccessToken == "" {
		return ""
	}
	sum := sha256.Sum256([]byte(s.AccessToken))
	return hex.EncodeToString(sum[:])
}

// Organization is the read-only copy attached to an organization member.
type Organization struct {
	ID       string `json:"id" db:"id"`
	Name     string `json:"name" db:"name"`
	Industry string `json:"industry" db:"industry"`
}

// Profile is a row of the users relation.
type Profile struct {
	ID             string
	Email          string
	FullName       string
	Role           Role
	OrganizationID string
	CreatedAt      time.Time
}

// AdminRecord is a row of the platform_admins relation.
type AdminRecord struct {
	ID       string
	FullName string
	Email    string
}

// Identity is the resolved view of a session. Exactly one of
// PlatformAdmin, OrganizationMember or Unauthenticated.
type Identity interface {
	isIdentity()
}

// PlatformAdmin operates the whole platform and never belongs to an organization.
type PlatformAdmin struct {
	ID       string
	FullName string
}

// OrganizationMember is a regular user with a role inside one organization.
type OrganizationMember struct {
	ID             string
	FullName       string
	Role           Role
	OrganizationID string
}

// Unauthenticated is the absence of a session.
type Unauthenticated struct{}

func (PlatformAdmin) isIdentity()      {}
func (OrganizationMember) isIdentity() {}
func (Unauthenticated) isIdentity()    {}

// RoleOf returns the role carried by id. PlatformAdmin maps to RoleSuperAdmin.
func RoleOf(id Identity) (Role, bool) {
	switch v := id.(type) {
	case PlatformAdmin:
		return RoleSuperAdmin, true
	case OrganizationMember:
		return v.Role, true
	default:
		return "", false
	}
}

// UserID returns the identity's user id, empty for Unauthenticated.
func UserID(id Identity) string {
	switch v := id.(type) {
	case PlatformAdmin:
		return v.ID
	case OrganizationMember:
		return v.ID
	default:
		return ""
	}
}

// Kind names the variant for logs and metrics.
func Kind(id Identity) string {
	switch id.(type) {
	case PlatformAdmin:
		return "platform_admin"
	case OrganizationMember:
		return "member"
	default:
		return "unauthenticated"
	}
}

// Resolution is the outcome of resolving a session.
type Resolution struct {
	Identity     Identity
	Organization *Organization
	// Session is the session used for the successful lookup. It differs from
	// the input when the token was refreshed on the way.
	Session *Session
}

// Refreshed reports whether resolution rotated the input session.
func (r Resolution) Refreshed(original *Session) bool {
	return r.Session != nil && original != nil && r.Session.AccessToken != original.AccessToken
}

func displayName(s *Session) string {
	if name := strings.TrimSpace(s.Metadata["full_name"]); name != "" {
		return name
	}
	local, _, _ := strings.Cut(s.Email, "@")
	return local
}
