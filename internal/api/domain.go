package api

import (
	"time"

	"github.com/FACorreiaa/go-docanalysis-auth/internal/types"
)

// RegisterRequest represents the expected JSON body for user registration.
type RegisterRequest struct {
	Email     string  `json:"email" example:"newuser@example.com"` // Must be unique, compared case-insensitively.
	Username  string  `json:"username" example:"newuser"`          // Must be unique.
	Password  string  `json:"password" example:"Str0ngP@ss"`       // Minimum length is configurable.
	FirstName *string `json:"first_name,omitempty" example:"Ada"`
	LastName  *string `json:"last_name,omitempty" example:"Lovelace"`
}

// Params converts the request body to store parameters.
func (r RegisterRequest) Params() types.CreateUserParams {
	return types.CreateUserParams{
		Email:     r.Email,
		Username:  r.Username,
		Password:  r.Password,
		FirstName: r.FirstName,
		LastName:  r.LastName,
	}
}

// LoginRequest represents the expected JSON body for user login.
type LoginRequest struct {
	Email    string `json:"email" example:"user@example.com"`
	Password string `json:"password" example:"password123"`
}

// LoginResponse represents the successful JSON response after login.
type LoginResponse struct {
	AccessToken string      `json:"access_token" example:"eyJhbGciOiJI..."` // Short-lived JWT access token.
	TokenType   string      `json:"token_type" example:"Bearer"`
	ExpiresAt   time.Time   `json:"expires_at"`
	User        *types.User `json:"user"`
	Message     string      `json:"message" example:"Login successful"`
}

// UpdateProfileRequest is the self-service profile update. Absent fields are left untouched.
type UpdateProfileRequest struct {
	FirstName *string `json:"first_name,omitempty" example:"Ada"`
	LastName  *string `json:"last_name,omitempty" example:"Lovelace"`
	Username  *string `json:"username,omitempty" example:"ada"`
}

func (r UpdateProfileRequest) Params() types.UpdateUserParams {
	return types.UpdateUserParams{
		FirstName: r.FirstName,
		LastName:  r.LastName,
		Username:  r.Username,
	}
}

// AdminUpdateUserRequest lets an administrator change any mutable field of a user.
type AdminUpdateUserRequest struct {
	FirstName     *string     `json:"first_name,omitempty" example:"Ada"`
	LastName      *string     `json:"last_name,omitempty" example:"Lovelace"`
	Username      *string     `json:"username,omitempty" example:"ada"`
	Role          *types.Role `json:"role,omitempty" example:"enterprise"`
	EmailVerified *bool       `json:"email_verified,omitempty" example:"true"`
}

func (r AdminUpdateUserRequest) Params() types.UpdateUserParams {
	return types.UpdateUserParams{
		FirstName:     r.FirstName,
		LastName:      r.LastName,
		Username:      r.Username,
		Role:          r.Role,
		EmailVerified: r.EmailVerified,
	}
}

// HealthResponse is returned by the health endpoint.
type HealthResponse struct {
	Status  string `json:"status" example:"ok"`
	Backend string `json:"backend" example:"memory"` // Active user store backend.
}

// Response represents a generic API response for success or error messages.
type Response struct {
	Success   bool   `json:"success" example:"true"`                           // Indicates if the operation was successful.
	Message   string `json:"message,omitempty" example:"Operation successful"` // Optional success message.
	Error     string `json:"error,omitempty" example:"Resource not found"`     // Optional error message.
	RequestID string `json:"request_id,omitempty"`
}
