package types

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Role is the authorization level attached to a user record.
type Role string

const (
	RoleUser       Role = "user"
	RoleAdmin      Role = "admin"
	RoleEnterprise Role = "enterprise"
)

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	switch r {
	case RoleUser, RoleAdmin, RoleEnterprise:
		return true
	}
	return false
}

// User is the sanitized view of a user record. It never carries the password hash.
type User struct {
	ID            int64      `json:"id" example:"1"`                        // Sequential identifier, never reused.
	Email         string     `json:"email" example:"john.doe@example.com"` // Unique (case-insensitive) email address.
	Username      string     `json:"username" example:"johndoe"`           // Unique username.
	FirstName     *string    `json:"first_name,omitempty" example:"John"`
	LastName      *string    `json:"last_name,omitempty" example:"Doe"`
	Role          Role       `json:"role" example:"user"`
	IsActive      bool       `json:"is_active" example:"true"`
	EmailVerified bool       `json:"email_verified" example:"false"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
	LastLogin     *time.Time `json:"last_login,omitempty"`
}

// CreateUserParams holds the input accepted when registering a user.
type CreateUserParams struct {
	Email     string
	Username  string
	Password  string
	FirstName *string
	LastName  *string
}

// UpdateUserParams lists the mutable fields of a user record.
// Nil pointers leave the corresponding field untouched.
type UpdateUserParams struct {
	FirstName     *string `json:"first_name,omitempty"`
	LastName      *string `json:"last_name,omitempty"`
	Username      *string `json:"username,omitempty"`
	Role          *Role   `json:"role,omitempty"`
	EmailVerified *bool   `json:"email_verified,omitempty"`
}

// UserStats are aggregate counts over the current record set.
type UserStats struct {
	TotalUsers    int `json:"total_users" example:"42"`
	ActiveUsers   int `json:"active_users" example:"40"`
	VerifiedUsers int `json:"verified_users" example:"12"`
}

// Claims represents the custom claims included in the JWT access token.
type Claims struct {
	UserID int64  `json:"uid"` // Custom claim for User ID.
	Email  string `json:"eml"` // Custom claim for Email.
	Role   Role   `json:"rol"` // Custom claim for User Role.
	jwt.RegisteredClaims
}
