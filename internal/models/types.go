// internal/models/types.go
package models

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

type TenantRole string

const (
	RoleOwner  TenantRole = "Owner"
	RoleAdmin  TenantRole = "Admin"
	RoleMember TenantRole = "Member"
	RoleViewer TenantRole = "Viewer"
)

// ValidRole reports whether r is one of the known tenant roles.
func ValidRole(r TenantRole) bool {
	switch r {
	case RoleOwner, RoleAdmin, RoleMember, RoleViewer:
		return true
	}
	return false
}

type User struct {
	ID    uuid.UUID
	Email string
	Name  string
}

var (
	ErrUserNotFound   = errors.New("user not found")
	ErrTenantNotFound = errors.New("tenant not found")
	ErrRoleNotFound   = errors.New("role not found")
)

// Tenant is one sub-site of a multi-tenant deployment.
type Tenant struct {
	ID      uuid.UUID
	Slug    string
	Name    string
	HomeURL string
}

// Identity is the authenticated principal at the current tenant. A nil
// *Identity means the visitor is anonymous.
type Identity struct {
	User  User
	Roles []TenantRole
}

type Session struct {
	UserID   uuid.UUID
	Provider string
	Expiry   time.Time
}

type LocalCredential struct {
	UserID       uuid.UUID
	Username     string
	PasswordHash string
}

// Invite is a pending account activation. The one-time token is stored
// hashed at rest.
type Invite struct {
	ID         uuid.UUID
	TenantID   uuid.UUID
	Email      string
	Role       TenantRole
	TokenHash  string
	ExpiresAt  time.Time
	AcceptedAt *time.Time
}

var ErrInviteNotFound = errors.New("invite not found")
