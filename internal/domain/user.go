package domain

import (
	"context"
	"time"
)

// Role is the capability a user acts with. It is a required, closed enum:
// every authenticated actor is either a tenant or an owner.
type Role string

const (
	RoleTenant Role = "tenant"
	RoleOwner  Role = "owner"
)

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	return r == RoleTenant || r == RoleOwner
}

// Actor is the authenticated identity attached to every request. The core
// trusts it as supplied by the auth layer.
type Actor struct {
	ID   string
	Role Role
}

// User is an identity record. Users are never hard-deleted.
type User struct {
	ID           string
	Name         string
	Email        string // unique
	Phone        string
	PasswordHash string // bcrypt hash, never returned in API responses
	Role         Role
	IsVerified   bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// UserRepository defines data access for users.
type UserRepository interface {
	Create(ctx context.Context, user *User) error
	GetByID(ctx context.Context, id string) (*User, error)
	GetByEmail(ctx context.Context, email string) (*User, error)
	Update(ctx context.Context, user *User) error
}
