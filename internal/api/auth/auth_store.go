package auth

import (
	"context"
	"fmt"
	"strings"

	"github.com/FACorreiaa/go-docanalysis-auth/internal/types"
)

// bcrypt ignores input past 72 bytes and newer x/crypto versions reject it outright.
const maxPasswordBytes = 72

// UserStore is the persistence contract for user records.
// Implementations only ever hand out sanitized copies of their records.
type UserStore interface {
	CreateUser(ctx context.Context, params types.CreateUserParams) (*types.User, error)
	// Authenticate returns types.ErrInvalidCredentials for unknown emails and wrong
	// passwords alike, and types.ErrAccountInactive for deactivated accounts.
	Authenticate(ctx context.Context, email, password string) (*types.User, error)
	// GetUserByID hides inactive users behind types.ErrNotFound.
	GetUserByID(ctx context.Context, id int64) (*types.User, error)
	// GetUserByEmail matches case-insensitively and returns inactive users too.
	GetUserByEmail(ctx context.Context, email string) (*types.User, error)
	UpdateUser(ctx context.Context, id int64, params types.UpdateUserParams) (*types.User, error)
	SetActive(ctx context.Context, id int64, active bool) (*types.User, error)
	ListUsers(ctx context.Context) ([]types.User, error)
	Stats(ctx context.Context) (types.UserStats, error)
	// Backend names the implementation for health reporting.
	Backend() string
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func validateCreateParams(params types.CreateUserParams, minPasswordLength int) error {
	switch {
	case strings.TrimSpace(params.Email) == "":
		return fmt.Errorf("%w: email is required", types.ErrValidation)
	case strings.TrimSpace(params.Username) == "":
		return fmt.Errorf("%w: username is required", types.ErrValidation)
	case params.Password == "":
		return fmt.Errorf("%w: password is required", types.ErrValidation)
	case len(params.Password) < minPasswordLength:
		return fmt.Errorf("%w: password must be at least %d characters", types.ErrValidation, minPasswordLength)
	case len(params.Password) > maxPasswordBytes:
		return fmt.Errorf("%w: password must be at most %d bytes", types.ErrValidation, maxPasswordBytes)
	}
	return nil
}

func validateUpdateParams(params types.UpdateUserParams) error {
	if params.Username != nil && strings.TrimSpace(*params.Username) == "" {
		return fmt.Errorf("%w: username cannot be empty", types.ErrValidation)
	}
	if params.Role != nil && !params.Role.Valid() {
		return fmt.Errorf("%w: unknown role %q", types.ErrValidation, *params.Role)
	}
	return nil
}
