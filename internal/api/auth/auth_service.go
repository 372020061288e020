package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/FACorreiaa/go-docanalysis-auth/app/observability/metrics"
	"github.com/FACorreiaa/go-docanalysis-auth/internal/types"
)

var _ AuthService = (*AuthServiceImpl)(nil)

// LoginResult is what a successful login hands back to the caller.
type LoginResult struct {
	AccessToken string
	ExpiresAt   time.Time
	User        *types.User
}

// AuthService defines the business logic contract for identity operations.
type AuthService interface {
	Register(ctx context.Context, params types.CreateUserParams) (*types.User, error)
	Login(ctx context.Context, email, password string) (*LoginResult, error)
	Logout(ctx context.Context, claims *types.Claims) error
	// ValidateToken parses an access token and rejects revoked ones and those of inactive users.
	ValidateToken(ctx context.Context, token string) (*types.Claims, error)

	Profile(ctx context.Context, userID int64) (*types.User, error)
	// UpdateProfile is the self-service update; role and email verification are ignored.
	UpdateProfile(ctx context.Context, userID int64, params types.UpdateUserParams) (*types.User, error)

	// Admin operations
	AdminUpdateUser(ctx context.Context, userID int64, params types.UpdateUserParams) (*types.User, error)
	LookupByEmail(ctx context.Context, email string) (*types.User, error)
	ListUsers(ctx context.Context) ([]types.User, error)
	Stats(ctx context.Context) (types.UserStats, error)
	SetActive(ctx context.Context, userID int64, active bool) (*types.User, error)

	Backend() string
}

// AuthServiceImpl provides the implementation for AuthService.
type AuthServiceImpl struct {
	logger   *slog.Logger
	store    UserStore
	tokens   *TokenManager
	denylist *TokenDenylist
	metrics  *metrics.AppMetrics
}

func NewAuthService(store UserStore, tokens *TokenManager, denylist *TokenDenylist, m *metrics.AppMetrics, logger *slog.Logger) *AuthServiceImpl {
	return &AuthServiceImpl{
		logger:   logger,
		store:    store,
		tokens:   tokens,
		denylist: denylist,
		metrics:  m,
	}
}

func (s *AuthServiceImpl) Backend() string {
	return s.store.Backend()
}

func (s *AuthServiceImpl) observe(ctx context.Context, op string, start time.Time) {
	s.metrics.AuthOperationDurationSeconds.Record(ctx, time.Since(start).Seconds(),
		metric.WithAttributes(attribute.String("operation", op), attribute.String("backend", s.store.Backend())))
}

func failSpan(span trace.Span, err error, msg string) {
	span.RecordError(err)
	span.SetStatus(codes.Error, msg)
}

// Register creates a user in the active store.
func (s *AuthServiceImpl) Register(ctx context.Context, params types.CreateUserParams) (*types.User, error) {
	ctx, span := otel.Tracer("AuthService").Start(ctx, "Register", trace.WithAttributes(
		attribute.String("user.username", params.Username),
	))
	defer span.End()
	defer s.observe(ctx, "register", time.Now())

	l := s.logger.With(slog.String("method", "Register"), slog.String("username", params.Username))
	l.DebugContext(ctx, "Registering user")

	user, err := s.store.CreateUser(ctx, params)
	outcome := "success"
	if err != nil {
		outcome = "failure"
	}
	s.metrics.RegisterRequestsTotal.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", outcome)))
	if err != nil {
		l.WarnContext(ctx, "Registration failed", slog.Any("error", err))
		failSpan(span, err, "Registration failed")
		return nil, fmt.Errorf("error registering user: %w", err)
	}

	l.InfoContext(ctx, "User registered", slog.Int64("userID", user.ID))
	span.SetStatus(codes.Ok, "User registered")
	return user, nil
}

// Login authenticates the credentials and issues an access token.
func (s *AuthServiceImpl) Login(ctx context.Context, email, password string) (*LoginResult, error) {
	ctx, span := otel.Tracer("AuthService").Start(ctx, "Login")
	defer span.End()
	defer s.observe(ctx, "login", time.Now())

	l := s.logger.With(slog.String("method", "Login"))

	user, err := s.store.Authenticate(ctx, email, password)
	if err != nil {
		outcome := "error"
		switch {
		case errors.Is(err, types.ErrAccountInactive):
			outcome = "inactive"
		case errors.Is(err, types.ErrUnauthenticated):
			outcome = "invalid_credentials"
		}
		s.metrics.LoginRequestsTotal.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", outcome)))
		l.WarnContext(ctx, "Login failed", slog.String("outcome", outcome))
		failSpan(span, err, "Login failed")
		return nil, fmt.Errorf("error logging in: %w", err)
	}

	token, expiresAt, err := s.tokens.Issue(user)
	if err != nil {
		l.ErrorContext(ctx, "Failed to issue access token", slog.Any("error", err))
		failSpan(span, err, "Token issue failed")
		return nil, err
	}
	s.metrics.LoginRequestsTotal.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", "success")))

	l.InfoContext(ctx, "User logged in", slog.Int64("userID", user.ID))
	span.SetStatus(codes.Ok, "User logged in")
	return &LoginResult{AccessToken: token, ExpiresAt: expiresAt, User: user}, nil
}

// Logout revokes the token the claims were parsed from.
func (s *AuthServiceImpl) Logout(ctx context.Context, claims *types.Claims) error {
	if claims == nil || claims.ID == "" || claims.ExpiresAt == nil {
		return fmt.Errorf("%w: missing token claims", types.ErrUnauthenticated)
	}
	s.denylist.Revoke(claims.ID, claims.ExpiresAt.Time)
	s.metrics.RevokedTokensTotal.Add(ctx, 1)
	s.logger.InfoContext(ctx, "Access token revoked", slog.Int64("userID", claims.UserID))
	return nil
}

func (s *AuthServiceImpl) ValidateToken(ctx context.Context, token string) (*types.Claims, error) {
	claims, err := s.tokens.Parse(token)
	if err != nil {
		return nil, err
	}
	if s.denylist.IsRevoked(claims.ID) {
		return nil, fmt.Errorf("%w: token has been revoked", types.ErrUnauthenticated)
	}

	// Inactive and missing users lose access immediately; role and email come from the store.
	user, err := s.store.GetUserByID(ctx, claims.UserID)
	if err != nil {
		if errors.Is(err, types.ErrNotFound) {
			s.logger.WarnContext(ctx, "Token subject is inactive or missing", slog.Int64("userID", claims.UserID))
			return nil, fmt.Errorf("%w: account is inactive or no longer exists", types.ErrUnauthenticated)
		}
		return nil, fmt.Errorf("error loading token subject: %w", err)
	}
	claims.Role = user.Role
	claims.Email = user.Email
	return claims, nil
}

func (s *AuthServiceImpl) Profile(ctx context.Context, userID int64) (*types.User, error) {
	l := s.logger.With(slog.String("method", "Profile"), slog.Int64("userID", userID))
	l.DebugContext(ctx, "Fetching user profile")

	user, err := s.store.GetUserByID(ctx, userID)
	if err != nil {
		l.WarnContext(ctx, "Failed to fetch user profile", slog.Any("error", err))
		return nil, fmt.Errorf("error fetching user profile: %w", err)
	}
	return user, nil
}

func (s *AuthServiceImpl) UpdateProfile(ctx context.Context, userID int64, params types.UpdateUserParams) (*types.User, error) {
	params.Role = nil
	params.EmailVerified = nil
	return s.updateUser(ctx, "UpdateProfile", userID, params)
}

func (s *AuthServiceImpl) AdminUpdateUser(ctx context.Context, userID int64, params types.UpdateUserParams) (*types.User, error) {
	return s.updateUser(ctx, "AdminUpdateUser", userID, params)
}

func (s *AuthServiceImpl) updateUser(ctx context.Context, op string, userID int64, params types.UpdateUserParams) (*types.User, error) {
	ctx, span := otel.Tracer("AuthService").Start(ctx, op, trace.WithAttributes(
		attribute.Int64("user.id", userID),
	))
	defer span.End()
	defer s.observe(ctx, "update_user", time.Now())

	l := s.logger.With(slog.String("method", op), slog.Int64("userID", userID))
	l.DebugContext(ctx, "Updating user")

	user, err := s.store.UpdateUser(ctx, userID, params)
	if err != nil {
		l.WarnContext(ctx, "Failed to update user", slog.Any("error", err))
		failSpan(span, err, "Failed to update user")
		return nil, fmt.Errorf("error updating user: %w", err)
	}

	l.InfoContext(ctx, "User updated successfully")
	span.SetStatus(codes.Ok, "User updated")
	return user, nil
}

func (s *AuthServiceImpl) LookupByEmail(ctx context.Context, email string) (*types.User, error) {
	user, err := s.store.GetUserByEmail(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("error looking up user: %w", err)
	}
	return user, nil
}

func (s *AuthServiceImpl) ListUsers(ctx context.Context) ([]types.User, error) {
	ctx, span := otel.Tracer("AuthService").Start(ctx, "ListUsers")
	defer span.End()

	users, err := s.store.ListUsers(ctx)
	if err != nil {
		s.logger.ErrorContext(ctx, "Failed to list users", slog.Any("error", err))
		failSpan(span, err, "Failed to list users")
		return nil, fmt.Errorf("error listing users: %w", err)
	}
	span.SetAttributes(attribute.Int("users.count", len(users)))
	return users, nil
}

func (s *AuthServiceImpl) Stats(ctx context.Context) (types.UserStats, error) {
	stats, err := s.store.Stats(ctx)
	if err != nil {
		s.logger.ErrorContext(ctx, "Failed to compute user stats", slog.Any("error", err))
		return types.UserStats{}, fmt.Errorf("error computing user stats: %w", err)
	}
	return stats, nil
}

func (s *AuthServiceImpl) SetActive(ctx context.Context, userID int64, active bool) (*types.User, error) {
	ctx, span := otel.Tracer("AuthService").Start(ctx, "SetActive", trace.WithAttributes(
		attribute.Int64("user.id", userID),
		attribute.Bool("user.active", active),
	))
	defer span.End()

	user, err := s.store.SetActive(ctx, userID, active)
	if err != nil {
		failSpan(span, err, "Failed to change activation")
		return nil, fmt.Errorf("error changing user activation: %w", err)
	}
	return user, nil
}
