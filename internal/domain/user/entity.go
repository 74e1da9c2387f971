package user

import "time"

type Role string

const (
	RoleAdmin    Role = "ADMIN"    // Manages users and every attendance record
	RoleEmployee Role = "EMPLOYEE" // Checks in and out for themselves
)

// ValidRoles lists every assignable role
var ValidRoles = []string{string(RoleAdmin), string(RoleEmployee)}

type User struct {
	ID           string
	Name         string
	Email        string
	PasswordHash string
	Role         Role
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// IsAdmin checks if user is an administrator
func (u *User) IsAdmin() bool {
	return u.Role == RoleAdmin
}

// CanAccessUser checks whether u may read another user's data
func (u *User) CanAccessUser(userID string) bool {
	return u.IsAdmin() || u.ID == userID
}
