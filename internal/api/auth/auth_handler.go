package auth

import (
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/FACorreiaa/go-docanalysis-auth/internal/api"
	"github.com/FACorreiaa/go-docanalysis-auth/internal/types"
)

type AuthHandler struct {
	AuthService AuthService
	logger      *slog.Logger
}

func NewAuthHandler(authService AuthService, logger *slog.Logger) *AuthHandler {
	if logger == nil {
		panic("PANIC: Attempting to create AuthHandler with nil logger!")
	}
	return &AuthHandler{
		logger:      logger,
		AuthService: authService,
	}
}

// Register godoc
// @Summary      Register a new user
// @Description  Creates a user account in the active store.
// @Tags         Auth
// @Accept       json
// @Produce      json
// @Param        body body api.RegisterRequest true "Registration details"
// @Success      201 {object} types.User
// @Failure      400 {object} api.Response "Invalid Input"
// @Failure      409 {object} api.Response "Email or username already in use"
// @Failure      500 {object} api.Response "Internal Server Error"
// @Router       /auth/register [post]
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	l := h.logger.With(slog.String("handler", "Register"))

	var req api.RegisterRequest
	if err := api.DecodeJSONBody(w, r, &req); err != nil {
		l.WarnContext(ctx, "Failed to decode request", slog.Any("error", err))
		api.ErrorResponse(w, r, http.StatusBadRequest, err.Error())
		return
	}

	user, err := h.AuthService.Register(ctx, req.Params())
	if err != nil {
		api.ServiceError(w, r, err, "Failed to register user")
		return
	}

	api.WriteJSONResponse(w, r, http.StatusCreated, user)
}

// Login godoc
// @Summary      Log in
// @Description  Authenticates email and password and returns a bearer access token.
// @Tags         Auth
// @Accept       json
// @Produce      json
// @Param        body body api.LoginRequest true "Credentials"
// @Success      200 {object} api.LoginResponse
// @Failure      400 {object} api.Response "Invalid Input"
// @Failure      401 {object} api.Response "Invalid credentials or inactive account"
// @Failure      500 {object} api.Response "Internal Server Error"
// @Router       /auth/login [post]
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	l := h.logger.With(slog.String("handler", "Login"))

	var req api.LoginRequest
	if err := api.DecodeJSONBody(w, r, &req); err != nil {
		l.WarnContext(ctx, "Failed to decode request", slog.Any("error", err))
		api.ErrorResponse(w, r, http.StatusBadRequest, err.Error())
		return
	}
	if strings.TrimSpace(req.Email) == "" || req.Password == "" {
		api.ErrorResponse(w, r, http.StatusBadRequest, "email and password are required")
		return
	}

	result, err := h.AuthService.Login(ctx, req.Email, req.Password)
	if err != nil {
		api.ServiceError(w, r, err, "Failed to log in")
		return
	}

	api.WriteJSONResponse(w, r, http.StatusOK, api.LoginResponse{
		AccessToken: result.AccessToken,
		TokenType:   "Bearer",
		ExpiresAt:   result.ExpiresAt,
		User:        result.User,
		Message:     "Login successful",
	})
}

// Logout godoc
// @Summary      Log out
// @Description  Revokes the bearer token used for this request.
// @Tags         Auth
// @Produce      json
// @Success      200 {object} api.Response
// @Failure      401 {object} api.Response "Unauthorized"
// @Security     BearerAuth
// @Router       /auth/logout [post]
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	claims, ok := GetClaimsFromContext(r.Context())
	if !ok {
		api.ErrorResponse(w, r, http.StatusUnauthorized, "Authentication required")
		return
	}
	if err := h.AuthService.Logout(r.Context(), claims); err != nil {
		api.ServiceError(w, r, err, "Failed to log out")
		return
	}
	api.WriteJSONResponse(w, r, http.StatusOK, api.Response{Success: true, Message: "Logged out successfully"})
}

// Me godoc
// @Summary      Get current user
// @Tags         Auth
// @Produce      json
// @Success      200 {object} types.User
// @Failure      401 {object} api.Response "Unauthorized"
// @Failure      404 {object} api.Response "User Not Found"
// @Security     BearerAuth
// @Router       /auth/me [get]
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	userID, ok := GetUserIDFromContext(r.Context())
	if !ok {
		api.ErrorResponse(w, r, http.StatusUnauthorized, "Authentication required")
		return
	}

	user, err := h.AuthService.Profile(r.Context(), userID)
	if err != nil {
		api.ServiceError(w, r, err, "Failed to retrieve user profile")
		return
	}
	api.WriteJSONResponse(w, r, http.StatusOK, user)
}

// UpdateMe godoc
// @Summary      Update current user
// @Description  Updates first name, last name or username. Absent and unknown fields are ignored.
// @Tags         Auth
// @Accept       json
// @Produce      json
// @Param        body body api.UpdateProfileRequest true "Fields to change"
// @Success      200 {object} types.User
// @Failure      400 {object} api.Response "Invalid Input"
// @Failure      401 {object} api.Response "Unauthorized"
// @Failure      404 {object} api.Response "User Not Found"
// @Failure      409 {object} api.Response "Username already taken"
// @Security     BearerAuth
// @Router       /auth/me [put]
func (h *AuthHandler) UpdateMe(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID, ok := GetUserIDFromContext(ctx)
	if !ok {
		api.ErrorResponse(w, r, http.StatusUnauthorized, "Authentication required")
		return
	}

	var req api.UpdateProfileRequest
	if err := api.DecodePatchBody(w, r, &req); err != nil {
		h.logger.WarnContext(ctx, "Failed to decode request", slog.String("handler", "UpdateMe"), slog.Any("error", err))
		api.ErrorResponse(w, r, http.StatusBadRequest, err.Error())
		return
	}

	user, err := h.AuthService.UpdateProfile(ctx, userID, req.Params())
	if err != nil {
		api.ServiceError(w, r, err, "Failed to update user profile")
		return
	}
	api.WriteJSONResponse(w, r, http.StatusOK, user)
}

// ListUsers godoc
// @Summary      List users
// @Description  Returns every user in registration order.
// @Tags         Admin
// @Produce      json
// @Success      200 {array} types.User
// @Failure      401 {object} api.Response "Unauthorized"
// @Failure      403 {object} api.Response "Forbidden"
// @Security     BearerAuth
// @Router       /admin/users [get]
func (h *AuthHandler) ListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := h.AuthService.ListUsers(r.Context())
	if err != nil {
		api.ServiceError(w, r, err, "Failed to list users")
		return
	}
	api.WriteJSONResponse(w, r, http.StatusOK, users)
}

// Stats godoc
// @Summary      User statistics
// @Tags         Admin
// @Produce      json
// @Success      200 {object} types.UserStats
// @Failure      401 {object} api.Response "Unauthorized"
// @Failure      403 {object} api.Response "Forbidden"
// @Security     BearerAuth
// @Router       /admin/users/stats [get]
func (h *AuthHandler) Stats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.AuthService.Stats(r.Context())
	if err != nil {
		api.ServiceError(w, r, err, "Failed to compute user statistics")
		return
	}
	api.WriteJSONResponse(w, r, http.StatusOK, stats)
}

// LookupByEmail godoc
// @Summary      Find user by email
// @Description  Case-insensitive lookup. Inactive users are included.
// @Tags         Admin
// @Produce      json
// @Param        email query string true "Email address"
// @Success      200 {object} types.User
// @Failure      400 {object} api.Response "Missing email"
// @Failure      404 {object} api.Response "User Not Found"
// @Security     BearerAuth
// @Router       /admin/users/lookup [get]
func (h *AuthHandler) LookupByEmail(w http.ResponseWriter, r *http.Request) {
	email := strings.TrimSpace(r.URL.Query().Get("email"))
	if email == "" {
		api.ErrorResponse(w, r, http.StatusBadRequest, "email query parameter is required")
		return
	}

	user, err := h.AuthService.LookupByEmail(r.Context(), email)
	if err != nil {
		api.ServiceError(w, r, err, "Failed to look up user")
		return
	}
	api.WriteJSONResponse(w, r, http.StatusOK, user)
}

// UpdateUser godoc
// @Summary      Update a user
// @Description  Changes any mutable field, including role and email verification.
// @Tags         Admin
// @Accept       json
// @Produce      json
// @Param        id path int true "User ID"
// @Param        body body api.AdminUpdateUserRequest true "Fields to change"
// @Success      200 {object} types.User
// @Failure      400 {object} api.Response "Invalid Input"
// @Failure      404 {object} api.Response "User Not Found"
// @Failure      409 {object} api.Response "Username already taken"
// @Security     BearerAuth
// @Router       /admin/users/{id} [put]
func (h *AuthHandler) UpdateUser(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID, err := parseUserID(r)
	if err != nil {
		api.ErrorResponse(w, r, http.StatusBadRequest, err.Error())
		return
	}

	var req api.AdminUpdateUserRequest
	if err := api.DecodePatchBody(w, r, &req); err != nil {
		h.logger.WarnContext(ctx, "Failed to decode request", slog.String("handler", "UpdateUser"), slog.Any("error", err))
		api.ErrorResponse(w, r, http.StatusBadRequest, err.Error())
		return
	}

	user, err := h.AuthService.AdminUpdateUser(ctx, userID, req.Params())
	if err != nil {
		api.ServiceError(w, r, err, "Failed to update user")
		return
	}
	api.WriteJSONResponse(w, r, http.StatusOK, user)
}

// DeactivateUser godoc
// @Summary      Deactivate a user
// @Description  Inactive users can no longer log in.
// @Tags         Admin
// @Produce      json
// @Param        id path int true "User ID"
// @Success      200 {object} types.User
// @Failure      404 {object} api.Response "User Not Found"
// @Security     BearerAuth
// @Router       /admin/users/{id}/deactivate [post]
func (h *AuthHandler) DeactivateUser(w http.ResponseWriter, r *http.Request) {
	h.setActive(w, r, false)
}

// ActivateUser godoc
// @Summary      Reactivate a user
// @Tags         Admin
// @Produce      json
// @Param        id path int true "User ID"
// @Success      200 {object} types.User
// @Failure      404 {object} api.Response "User Not Found"
// @Security     BearerAuth
// @Router       /admin/users/{id}/activate [post]
func (h *AuthHandler) ActivateUser(w http.ResponseWriter, r *http.Request) {
	h.setActive(w, r, true)
}

func (h *AuthHandler) setActive(w http.ResponseWriter, r *http.Request, active bool) {
	userID, err := parseUserID(r)
	if err != nil {
		api.ErrorResponse(w, r, http.StatusBadRequest, err.Error())
		return
	}

	user, err := h.AuthService.SetActive(r.Context(), userID, active)
	if err != nil {
		api.ServiceError(w, r, err, "Failed to change user activation")
		return
	}
	api.WriteJSONResponse(w, r, http.StatusOK, user)
}

func parseUserID(r *http.Request) (int64, error) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("%w: user id must be a positive integer", types.ErrValidation)
	}
	return id, nil
}
