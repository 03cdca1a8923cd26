package models

import (
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Role is an editor's role in the site admin.
type Role string

const (
	// RoleSuperAdmin bypasses every content permission check and manages grants.
	RoleSuperAdmin Role = "super-admin"
	// RoleAdmin may edit only the sections and post categories granted to them.
	RoleAdmin Role = "admin"
)

// ErrUnknownRole is returned by ParseRole.
var ErrUnknownRole = errors.New("role must be admin or super-admin")

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	return r == RoleSuperAdmin || r == RoleAdmin
}

// ParseRole normalizes s into a Role. An empty string means RoleAdmin.
func ParseRole(s string) (Role, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return RoleAdmin, nil
	}
	r := Role(s)
	if !r.Valid() {
		return "", ErrUnknownRole
	}
	return r, nil
}

// User is a site editor account. Visitors who buy tickets or memberships have no account.
type User struct {
	ID           uuid.UUID `json:"id"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	FullName     string    `json:"full_name"`
	Role         Role      `json:"role"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// UserPublic is what the admin UI sees of an editor.
type UserPublic struct {
	ID        uuid.UUID `json:"id"`
	Email     string    `json:"email"`
	FullName  string    `json:"full_name"`
	Role      Role      `json:"role"`
	CreatedAt time.Time `json:"created_at"`
}

func (u *User) ToPublic() UserPublic {
	return UserPublic{
		ID:        u.ID,
		Email:     u.Email,
		FullName:  u.FullName,
		Role:      u.Role,
		CreatedAt: u.CreatedAt,
	}
}
