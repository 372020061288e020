package router

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	httpSwagger "github.com/swaggo/http-swagger/v2"

	appLogger "github.com/FACorreiaa/go-docanalysis-auth/app/logger"
	"github.com/FACorreiaa/go-docanalysis-auth/internal/api"
	"github.com/FACorreiaa/go-docanalysis-auth/internal/api/auth"
	"github.com/FACorreiaa/go-docanalysis-auth/internal/types"
)

// Config contains dependencies needed for the router setup
type Config struct {
	AuthHandler *auth.AuthHandler
	// TokenValidator backs the bearer authentication middleware.
	TokenValidator auth.TokenValidator
	Logger         *slog.Logger
	// Backend names the active user store, reported by /healthz.
	Backend        string
	AllowedOrigins []string
	// LoginRateLimit is requests per minute per client IP on login and register. 0 disables it.
	LoginRateLimit int
	Timeout        time.Duration
}

// SetupRouter builds the full application router including server-wide middleware.
func SetupRouter(cfg *Config) chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(appLogger.StructuredLogger(cfg.Logger))
	r.Use(middleware.Recoverer)
	r.Use(middleware.StripSlashes)
	if cfg.Timeout > 0 {
		r.Use(middleware.Timeout(cfg.Timeout))
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-Id"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Get("/ping", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("pong"))
	})
	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		api.WriteJSONResponse(w, r, http.StatusOK, api.HealthResponse{Status: "ok", Backend: cfg.Backend})
	})
	r.Get("/swagger/*", httpSwagger.Handler(httpSwagger.URL("/swagger/doc.json")))

	authenticate := auth.Authenticate(cfg.Logger, cfg.TokenValidator)

	r.Route("/api/v1", func(r chi.Router) {
		// --- Public Auth Routes ---
		r.Group(func(r chi.Router) {
			if cfg.LoginRateLimit > 0 {
				r.Use(httprate.Limit(cfg.LoginRateLimit, time.Minute,
					httprate.WithKeyFuncs(httprate.KeyByRealIP, httprate.KeyByEndpoint),
					httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
						api.ErrorResponse(w, r, http.StatusTooManyRequests, "Too many requests, try again later")
					}),
				))
			}
			r.Post("/auth/register", cfg.AuthHandler.Register)
			r.Post("/auth/login", cfg.AuthHandler.Login)
		})

		// --- Protected Routes ---
		r.Group(func(r chi.Router) {
			r.Use(authenticate)
			r.Post("/auth/logout", cfg.AuthHandler.Logout)
			r.Get("/auth/me", cfg.AuthHandler.Me)
			r.Put("/auth/me", cfg.AuthHandler.UpdateMe)
		})

		// --- Admin Routes ---
		r.Route("/admin/users", func(r chi.Router) {
			r.Use(authenticate)
			r.Use(auth.RequireRole(cfg.Logger, types.RoleAdmin))

			r.Get("/", cfg.AuthHandler.ListUsers)
			r.Get("/stats", cfg.AuthHandler.Stats)
			r.Get("/lookup", cfg.AuthHandler.LookupByEmail)
			r.Put("/{id}", cfg.AuthHandler.UpdateUser)
			r.Post("/{id}/deactivate", cfg.AuthHandler.DeactivateUser)
			r.Post("/{id}/activate", cfg.AuthHandler.ActivateUser)
		})
	})

	return r
}
