package auth

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/FACorreiaa/go-docanalysis-auth/internal/api"
	"github.com/FACorreiaa/go-docanalysis-auth/internal/types"
)

// Define typed context keys
type contextKey string

const (
	UserIDKey   contextKey = "userID"
	UserRoleKey contextKey = "userRole"
	ClaimsKey   contextKey = "claims"
)

// TokenValidator is the part of AuthService the middleware needs.
type TokenValidator interface {
	ValidateToken(ctx context.Context, token string) (*types.Claims, error)
}

// Authenticate is middleware to validate bearer access tokens.
// Revoked tokens and tokens of inactive users are rejected by the validator.
func Authenticate(logger *slog.Logger, validator TokenValidator) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			l := logger.With(slog.String("middleware", "Authenticate"))

			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				l.WarnContext(ctx, "Missing Authorization header")
				api.ErrorResponse(w, r, http.StatusUnauthorized, "Authorization header required")
				return
			}

			headerParts := strings.Split(authHeader, " ")
			if len(headerParts) != 2 || strings.ToLower(headerParts[0]) != "bearer" || headerParts[1] == "" {
				l.WarnContext(ctx, "Invalid Authorization header format")
				api.ErrorResponse(w, r, http.StatusUnauthorized, "Authorization header format must be Bearer {token}")
				return
			}

			claims, err := validator.ValidateToken(ctx, headerParts[1])
			if err != nil {
				if !errors.Is(err, types.ErrUnauthenticated) {
					l.ErrorContext(ctx, "Token validation could not complete", slog.Any("error", err))
					api.ServiceError(w, r, err, "Failed to validate token")
					return
				}
				l.WarnContext(ctx, "Token validation failed", slog.Any("error", err))
				api.ErrorResponse(w, r, http.StatusUnauthorized, strings.TrimPrefix(err.Error(), types.ErrUnauthenticated.Error()+": "))
				return
			}

			ctx = context.WithValue(ctx, UserIDKey, claims.UserID)
			ctx = context.WithValue(ctx, UserRoleKey, claims.Role)
			ctx = context.WithValue(ctx, ClaimsKey, claims)
			l.DebugContext(ctx, "Authentication successful, claims added to context", slog.Int64("userID", claims.UserID))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireRole rejects requests whose token does not carry one of the allowed roles.
// Runs AFTER the Authenticate middleware.
func RequireRole(logger *slog.Logger, allowed ...types.Role) func(next http.Handler) http.Handler {
	roles := make(map[types.Role]struct{}, len(allowed))
	for _, role := range allowed {
		roles[role] = struct{}{}
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			role, ok := GetUserRoleFromContext(ctx)
			if !ok {
				logger.ErrorContext(ctx, "Role claim missing from context")
				api.ErrorResponse(w, r, http.StatusUnauthorized, "Authentication required")
				return
			}
			if _, ok := roles[role]; !ok {
				logger.WarnContext(ctx, "Role check failed", slog.String("role", string(role)), slog.Any("allowed_roles", allowed))
				api.ErrorResponse(w, r, http.StatusForbidden, types.ErrForbidden.Error())
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// Helper functions to get claims from context
func GetUserIDFromContext(ctx context.Context) (int64, bool) {
	userID, ok := ctx.Value(UserIDKey).(int64)
	return userID, ok
}

func GetUserRoleFromContext(ctx context.Context) (types.Role, bool) {
	role, ok := ctx.Value(UserRoleKey).(types.Role)
	return role, ok
}

func GetClaimsFromContext(ctx context.Context) (*types.Claims, bool) {
	claims, ok := ctx.Value(ClaimsKey).(*types.Claims)
	return claims, ok
}
