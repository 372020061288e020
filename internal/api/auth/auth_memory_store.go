package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/FACorreiaa/go-docanalysis-auth/internal/types"
)

var _ UserStore = (*MemoryStore)(nil)

// memoryRecord is the only place a password hash lives in the fallback store.
type memoryRecord struct {
	user         types.User
	passwordHash string
}

// MemoryStore is the in-process fallback identity store used while the Postgres
// users table is unavailable. Records live for the lifetime of the process.
type MemoryStore struct {
	logger *slog.Logger
	hasher PasswordHasher

	minPasswordLength int
	dummyHash         string
	now               func() time.Time

	mu         sync.RWMutex
	byID       map[int64]*memoryRecord
	byEmail    map[string]*memoryRecord // keyed by normalized email
	byUsername map[string]*memoryRecord
	order      []int64
	lastID     int64
}

type MemoryStoreOption func(*MemoryStore)

// WithClock overrides the time source used for timestamps.
func WithClock(now func() time.Time) MemoryStoreOption {
	return func(s *MemoryStore) {
		s.now = now
	}
}

// WithMinPasswordLength overrides the default minimum password length of 6.
func WithMinPasswordLength(n int) MemoryStoreOption {
	return func(s *MemoryStore) {
		s.minPasswordLength = n
	}
}

func NewMemoryStore(hasher PasswordHasher, logger *slog.Logger, opts ...MemoryStoreOption) (*MemoryStore, error) {
	s := &MemoryStore{
		logger:            logger,
		hasher:            hasher,
		minPasswordLength: 6,
		now:               func() time.Time { return time.Now().UTC() },
		byID:              make(map[int64]*memoryRecord),
		byEmail:           make(map[string]*memoryRecord),
		byUsername:        make(map[string]*memoryRecord),
	}
	for _, opt := range opts {
		opt(s)
	}

	// Compared against on unknown emails so both failure paths pay for one bcrypt run.
	dummy, err := hasher.Hash("fallback-store-dummy-password")
	if err != nil {
		return nil, fmt.Errorf("failed to prepare dummy hash: %w", err)
	}
	s.dummyHash = dummy

	return s, nil
}

func (s *MemoryStore) Backend() string {
	return "memory"
}

// CreateUser validates params, hashes the password and inserts the record.
func (s *MemoryStore) CreateUser(ctx context.Context, params types.CreateUserParams) (*types.User, error) {
	l := s.logger.With(slog.String("method", "CreateUser"))

	if err := validateCreateParams(params, s.minPasswordLength); err != nil {
		return nil, err
	}
	emailKey := normalizeEmail(params.Email)

	// Rejected early without hashing; re-checked under the write lock.
	s.mu.RLock()
	err := s.checkUniqueLocked(emailKey, params.Username)
	s.mu.RUnlock()
	if err != nil {
		return nil, err
	}

	hash, err := s.hasher.Hash(params.Password)
	if err != nil {
		l.ErrorContext(ctx, "Failed to hash password", slog.Any("error", err))
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.checkUniqueLocked(emailKey, params.Username); err != nil {
		return nil, err
	}

	now := s.now()
	s.lastID++
	rec := &memoryRecord{
		user: types.User{
			ID:        s.lastID,
			Email:     strings.TrimSpace(params.Email),
			Username:  params.Username,
			FirstName: cloneString(params.FirstName),
			LastName:  cloneString(params.LastName),
			Role:      types.RoleUser,
			IsActive:  true,
			CreatedAt: now,
			UpdatedAt: now,
		},
		passwordHash: hash,
	}
	s.byID[rec.user.ID] = rec
	s.byEmail[emailKey] = rec
	s.byUsername[rec.user.Username] = rec
	s.order = append(s.order, rec.user.ID)

	l.DebugContext(ctx, "User created", slog.Int64("userID", rec.user.ID))
	return sanitize(rec), nil
}

func (s *MemoryStore) checkUniqueLocked(emailKey, username string) error {
	if _, taken := s.byEmail[emailKey]; taken {
		return fmt.Errorf("%w: email already registered", types.ErrConflict)
	}
	if _, taken := s.byUsername[username]; taken {
		return fmt.Errorf("%w: username already taken", types.ErrConflict)
	}
	return nil
}

// Authenticate verifies the credentials and stamps LastLogin on success.
func (s *MemoryStore) Authenticate(ctx context.Context, email, password string) (*types.User, error) {
	l := s.logger.With(slog.String("method", "Authenticate"))

	s.mu.RLock()
	rec, ok := s.byEmail[normalizeEmail(email)]
	var id int64
	var hash string
	if ok {
		id, hash = rec.user.ID, rec.passwordHash
	}
	s.mu.RUnlock()

	if !ok {
		_ = s.hasher.Compare(s.dummyHash, password)
		return nil, types.ErrInvalidCredentials
	}
	if err := s.hasher.Compare(hash, password); err != nil {
		if !errors.Is(err, ErrPasswordMismatch) {
			l.WarnContext(ctx, "Stored password hash could not be compared", slog.Int64("userID", id), slog.Any("error", err))
		}
		return nil, types.ErrInvalidCredentials
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	// The record may have been deactivated while the hash was being compared.
	rec = s.byID[id]
	if !rec.user.IsActive {
		return nil, types.ErrAccountInactive
	}
	now := s.now()
	rec.user.LastLogin = &now

	return sanitize(rec), nil
}

func (s *MemoryStore) GetUserByID(ctx context.Context, id int64) (*types.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.byID[id]
	if !ok || !rec.user.IsActive {
		return nil, fmt.Errorf("user %d: %w", id, types.ErrNotFound)
	}
	return sanitize(rec), nil
}

func (s *MemoryStore) GetUserByEmail(ctx context.Context, email string) (*types.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.byEmail[normalizeEmail(email)]
	if !ok {
		return nil, fmt.Errorf("user with email: %w", types.ErrNotFound)
	}
	return sanitize(rec), nil
}

// UpdateUser applies the non-nil fields of params. A changed username must still be unique.
func (s *MemoryStore) UpdateUser(ctx context.Context, id int64, params types.UpdateUserParams) (*types.User, error) {
	if err := validateUpdateParams(params); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.byID[id]
	if !ok {
		return nil, fmt.Errorf("user %d: %w", id, types.ErrNotFound)
	}

	if params.Username != nil && *params.Username != rec.user.Username {
		if _, taken := s.byUsername[*params.Username]; taken {
			return nil, fmt.Errorf("%w: username already taken", types.ErrConflict)
		}
		delete(s.byUsername, rec.user.Username)
		rec.user.Username = *params.Username
		s.byUsername[rec.user.Username] = rec
	}
	if params.FirstName != nil {
		rec.user.FirstName = cloneString(params.FirstName)
	}
	if params.LastName != nil {
		rec.user.LastName = cloneString(params.LastName)
	}
	if params.Role != nil {
		rec.user.Role = *params.Role
	}
	if params.EmailVerified != nil {
		rec.user.EmailVerified = *params.EmailVerified
	}
	rec.user.UpdatedAt = s.now()

	return sanitize(rec), nil
}

// SetActive deactivates or reactivates a user. Inactive users cannot authenticate.
func (s *MemoryStore) SetActive(ctx context.Context, id int64, active bool) (*types.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.byID[id]
	if !ok {
		return nil, fmt.Errorf("user %d: %w", id, types.ErrNotFound)
	}
	rec.user.IsActive = active
	rec.user.UpdatedAt = s.now()

	s.logger.InfoContext(ctx, "User activation changed", slog.Int64("userID", id), slog.Bool("active", active))
	return sanitize(rec), nil
}

// ListUsers returns every record, active or not, in insertion order.
func (s *MemoryStore) ListUsers(ctx context.Context) ([]types.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	users := make([]types.User, 0, len(s.order))
	for _, id := range s.order {
		users = append(users, *sanitize(s.byID[id]))
	}
	return users, nil
}

func (s *MemoryStore) Stats(ctx context.Context) (types.UserStats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := types.UserStats{TotalUsers: len(s.byID)}
	for _, rec := range s.byID {
		if rec.user.IsActive {
			stats.ActiveUsers++
		}
		if rec.user.EmailVerified {
			stats.VerifiedUsers++
		}
	}
	return stats, nil
}

// sanitize copies the public part of rec so callers never share memory with the store.
func sanitize(rec *memoryRecord) *types.User {
	u := rec.user
	u.FirstName = cloneString(u.FirstName)
	u.LastName = cloneString(u.LastName)
	if u.LastLogin != nil {
		t := *u.LastLogin
		u.LastLogin = &t
	}
	return &u
}

func cloneString(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}
