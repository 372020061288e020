package types

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound        = errors.New("requested item not found")
	ErrConflict        = errors.New("item already exists or conflict")
	ErrValidation      = errors.New("invalid input")
	ErrUnauthenticated = errors.New("authentication required or invalid credentials")
	ErrForbidden       = errors.New("action forbidden")
)

// Both wrap ErrUnauthenticated so the HTTP layer can map them with a single errors.Is check.
// ErrInvalidCredentials is returned for unknown emails and wrong passwords alike.
var (
	ErrInvalidCredentials = fmt.Errorf("%w: invalid credentials", ErrUnauthenticated)
	ErrAccountInactive    = fmt.Errorf("%w: account is inactive", ErrUnauthenticated)
)
