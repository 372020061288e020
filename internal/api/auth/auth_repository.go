package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/FACorreiaa/go-docanalysis-auth/internal/types"
)

var _ UserStore = (*PostgresUserStore)(nil)

const pgUniqueViolation = "23505"

// DB is the subset of *pgxpool.Pool used by PostgresUserStore.
type DB interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Ping(ctx context.Context) error
}

const userColumns = `id, email, username, first_name, last_name, role, is_active, email_verified, created_at, updated_at, last_login`

// PostgresUserStore is the primary user store backed by the users table.
type PostgresUserStore struct {
	logger *slog.Logger
	db     DB
	hasher PasswordHasher

	minPasswordLength int
	dummyHash         string
}

func NewPostgresUserStore(db DB, hasher PasswordHasher, minPasswordLength int, logger *slog.Logger) (*PostgresUserStore, error) {
	dummy, err := hasher.Hash("primary-store-dummy-password")
	if err != nil {
		return nil, fmt.Errorf("failed to prepare dummy hash: %w", err)
	}
	return &PostgresUserStore{
		logger:            logger,
		db:                db,
		hasher:            hasher,
		minPasswordLength: minPasswordLength,
		dummyHash:         dummy,
	}, nil
}

func (r *PostgresUserStore) Backend() string {
	return "postgres"
}

// Ready reports whether the database answers and the users table exists.
func (r *PostgresUserStore) Ready(ctx context.Context) error {
	if err := r.db.Ping(ctx); err != nil {
		return fmt.Errorf("ping failed: %w", err)
	}
	var exists bool
	if err := r.db.QueryRow(ctx, `SELECT to_regclass('public.users') IS NOT NULL`).Scan(&exists); err != nil {
		return fmt.Errorf("users table check failed: %w", err)
	}
	if !exists {
		return errors.New("users table does not exist")
	}
	return nil
}

func scanUser(row pgx.Row) (*types.User, error) {
	var u types.User
	var role string
	err := row.Scan(&u.ID, &u.Email, &u.Username, &u.FirstName, &u.LastName, &role,
		&u.IsActive, &u.EmailVerified, &u.CreatedAt, &u.UpdatedAt, &u.LastLogin)
	if err != nil {
		return nil, err
	}
	u.Role = types.Role(role)
	return &u, nil
}

// mapError translates driver errors into the package sentinels.
func mapError(err error, op string) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("%s: %w", op, types.ErrNotFound)
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
		switch {
		case strings.Contains(pgErr.ConstraintName, "email"):
			return fmt.Errorf("%w: email already registered", types.ErrConflict)
		case strings.Contains(pgErr.ConstraintName, "username"):
			return fmt.Errorf("%w: username already taken", types.ErrConflict)
		}
		return fmt.Errorf("%s: %w", op, types.ErrConflict)
	}
	return fmt.Errorf("%s: db query failed: %w", op, err)
}

func (r *PostgresUserStore) CreateUser(ctx context.Context, params types.CreateUserParams) (*types.User, error) {
	l := r.logger.With(slog.String("method", "CreateUser"))

	if err := validateCreateParams(params, r.minPasswordLength); err != nil {
		return nil, err
	}
	hash, err := r.hasher.Hash(params.Password)
	if err != nil {
		l.ErrorContext(ctx, "Failed to hash password", slog.Any("error", err))
		return nil, err
	}

	row := r.db.QueryRow(ctx,
		`INSERT INTO users (email, username, password_hash, first_name, last_name)
		 VALUES ($1, $2, $3, $4, $5)
		 RETURNING `+userColumns,
		strings.TrimSpace(params.Email), params.Username, hash, params.FirstName, params.LastName)
	user, err := scanUser(row)
	if err != nil {
		return nil, mapError(err, "create user")
	}

	l.DebugContext(ctx, "User created", slog.Int64("userID", user.ID))
	return user, nil
}

func (r *PostgresUserStore) Authenticate(ctx context.Context, email, password string) (*types.User, error) {
	l := r.logger.With(slog.String("method", "Authenticate"))

	var id int64
	var hash string
	var active bool
	err := r.db.QueryRow(ctx,
		`SELECT id, password_hash, is_active FROM users WHERE lower(email) = $1`,
		normalizeEmail(email)).Scan(&id, &hash, &active)
	if errors.Is(err, pgx.ErrNoRows) {
		_ = r.hasher.Compare(r.dummyHash, password)
		return nil, types.ErrInvalidCredentials
	}
	if err != nil {
		return nil, mapError(err, "authenticate")
	}

	if err := r.hasher.Compare(hash, password); err != nil {
		if !errors.Is(err, ErrPasswordMismatch) {
			l.WarnContext(ctx, "Stored password hash could not be compared", slog.Int64("userID", id), slog.Any("error", err))
		}
		return nil, types.ErrInvalidCredentials
	}
	if !active {
		return nil, types.ErrAccountInactive
	}

	user, err := scanUser(r.db.QueryRow(ctx,
		`UPDATE users SET last_login = now() WHERE id = $1 AND is_active RETURNING `+userColumns, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, types.ErrAccountInactive
	}
	if err != nil {
		return nil, mapError(err, "record last login")
	}
	return user, nil
}

func (r *PostgresUserStore) GetUserByID(ctx context.Context, id int64) (*types.User, error) {
	user, err := scanUser(r.db.QueryRow(ctx,
		`SELECT `+userColumns+` FROM users WHERE id = $1 AND is_active`, id))
	if err != nil {
		return nil, mapError(err, fmt.Sprintf("user %d", id))
	}
	return user, nil
}

func (r *PostgresUserStore) GetUserByEmail(ctx context.Context, email string) (*types.User, error) {
	user, err := scanUser(r.db.QueryRow(ctx,
		`SELECT `+userColumns+` FROM users WHERE lower(email) = $1`, normalizeEmail(email)))
	if err != nil {
		return nil, mapError(err, "user with email")
	}
	return user, nil
}

func (r *PostgresUserStore) UpdateUser(ctx context.Context, id int64, params types.UpdateUserParams) (*types.User, error) {
	if err := validateUpdateParams(params); err != nil {
		return nil, err
	}

	var sets []string
	var args []any
	add := func(column string, value any) {
		args = append(args, value)
		sets = append(sets, fmt.Sprintf("%s = $%d", column, len(args)))
	}
	if params.FirstName != nil {
		add("first_name", *params.FirstName)
	}
	if params.LastName != nil {
		add("last_name", *params.LastName)
	}
	if params.Username != nil {
		add("username", *params.Username)
	}
	if params.Role != nil {
		add("role", string(*params.Role))
	}
	if params.EmailVerified != nil {
		add("email_verified", *params.EmailVerified)
	}
	sets = append(sets, "updated_at = now()")
	args = append(args, id)

	query := fmt.Sprintf(`UPDATE users SET %s WHERE id = $%d RETURNING %s`,
		strings.Join(sets, ", "), len(args), userColumns)
	user, err := scanUser(r.db.QueryRow(ctx, query, args...))
	if err != nil {
		return nil, mapError(err, fmt.Sprintf("user %d", id))
	}
	return user, nil
}

func (r *PostgresUserStore) SetActive(ctx context.Context, id int64, active bool) (*types.User, error) {
	user, err := scanUser(r.db.QueryRow(ctx,
		`UPDATE users SET is_active = $1, updated_at = now() WHERE id = $2 RETURNING `+userColumns,
		active, id))
	if err != nil {
		return nil, mapError(err, fmt.Sprintf("user %d", id))
	}
	r.logger.InfoContext(ctx, "User activation changed", slog.Int64("userID", id), slog.Bool("active", active))
	return user, nil
}

func (r *PostgresUserStore) ListUsers(ctx context.Context) ([]types.User, error) {
	rows, err := r.db.Query(ctx, `SELECT `+userColumns+` FROM users ORDER BY id`)
	if err != nil {
		return nil, mapError(err, "list users")
	}
	defer rows.Close()

	users := []types.User{}
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("list users: scan failed: %w", err)
		}
		users = append(users, *user)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list users: iteration failed: %w", err)
	}
	return users, nil
}

func (r *PostgresUserStore) Stats(ctx context.Context) (types.UserStats, error) {
	var stats types.UserStats
	err := r.db.QueryRow(ctx,
		`SELECT COUNT(*),
		        COUNT(*) FILTER (WHERE is_active),
		        COUNT(*) FILTER (WHERE email_verified)
		 FROM users`).Scan(&stats.TotalUsers, &stats.ActiveUsers, &stats.VerifiedUsers)
	if err != nil {
		return types.UserStats{}, mapError(err, "user stats")
	}
	return stats, nil
}
