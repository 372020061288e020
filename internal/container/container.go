package container

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	database "github.com/FACorreiaa/go-docanalysis-auth/app/db"
	"github.com/FACorreiaa/go-docanalysis-auth/app/observability/metrics"
	"github.com/FACorreiaa/go-docanalysis-auth/config"
	"github.com/FACorreiaa/go-docanalysis-auth/internal/api/auth"
	"github.com/FACorreiaa/go-docanalysis-auth/internal/router"
)

const denylistCleanupInterval = 10 * time.Minute

// Container holds all application dependencies
type Container struct {
	Config      *config.Config
	Logger      *slog.Logger
	Pool        *pgxpool.Pool
	Store       auth.UserStore
	AuthService *auth.AuthServiceImpl
	AuthHandler *auth.AuthHandler
}

// NewContainer initializes and returns a new dependency container.
// The user store is chosen from cfg.Auth.Store; in auto mode an unreachable or
// unmigrated database falls back to the in-memory store.
func NewContainer(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Container, error) {
	hasher := auth.NewBcryptHasher(cfg.Auth.BcryptCost)
	c := &Container{Config: cfg, Logger: logger}

	switch cfg.Auth.Store {
	case config.StoreMemory:
		store, err := auth.NewMemoryStore(hasher, logger, auth.WithMinPasswordLength(cfg.Auth.MinPasswordLength))
		if err != nil {
			return nil, err
		}
		c.Store = store
	case config.StorePostgres, config.StoreAuto:
		pool, store, err := connectPostgres(ctx, cfg, hasher, logger)
		if err == nil {
			c.Pool, c.Store = pool, store
			break
		}
		if cfg.Auth.Store == config.StorePostgres {
			return nil, err
		}
		logger.WarnContext(ctx, "Postgres unavailable, falling back to in-memory user store", slog.Any("error", err))
		memStore, memErr := auth.NewMemoryStore(hasher, logger, auth.WithMinPasswordLength(cfg.Auth.MinPasswordLength))
		if memErr != nil {
			return nil, memErr
		}
		c.Store = memStore
	default:
		return nil, fmt.Errorf("unknown auth store %q", cfg.Auth.Store)
	}
	logger.InfoContext(ctx, "User store selected", slog.String("backend", c.Store.Backend()))

	metrics.InitAppMetrics()
	tokens := auth.NewTokenManager(cfg.JWT)
	denylist := auth.NewTokenDenylist(denylistCleanupInterval)
	c.AuthService = auth.NewAuthService(c.Store, tokens, denylist, metrics.Get(), logger)
	c.AuthHandler = auth.NewAuthHandler(c.AuthService, logger)
	return c, nil
}

func connectPostgres(ctx context.Context, cfg *config.Config, hasher auth.PasswordHasher, logger *slog.Logger) (*pgxpool.Pool, *auth.PostgresUserStore, error) {
	dbConfig, err := database.NewDatabaseConfig(cfg, logger)
	if err != nil {
		return nil, nil, err
	}

	pool, err := database.Init(dbConfig.ConnectionURL, logger)
	if err != nil {
		return nil, nil, err
	}
	if !database.WaitForDB(ctx, pool, logger) {
		pool.Close()
		return nil, nil, errors.New("database not reachable")
	}
	if err = database.RunMigrations(dbConfig.ConnectionURL, logger); err != nil {
		pool.Close()
		return nil, nil, err
	}

	store, err := auth.NewPostgresUserStore(pool, hasher, cfg.Auth.MinPasswordLength, logger)
	if err != nil {
		pool.Close()
		return nil, nil, err
	}
	if err = store.Ready(ctx); err != nil {
		pool.Close()
		return nil, nil, err
	}
	return pool, store, nil
}

// RouterConfig wires the container's components into the HTTP router.
func (c *Container) RouterConfig() *router.Config {
	return &router.Config{
		AuthHandler:    c.AuthHandler,
		TokenValidator: c.AuthService,
		Logger:         c.Logger,
		Backend:        c.Store.Backend(),
		AllowedOrigins: c.Config.CORS.AllowedOrigins,
		LoginRateLimit: c.Config.Auth.LoginRateLimit,
		Timeout:        c.Config.Server.Timeout,
	}
}

// Close releases all resources held by the container
func (c *Container) Close() {
	if c.Pool != nil {
		c.Pool.Close()
	}
}
