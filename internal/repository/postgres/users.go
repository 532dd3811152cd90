package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	squirrel "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/mkravts/commerce-platform-auth/internal/core/domain"
	"github.com/mkravts/commerce-platform-auth/internal/core/port"
	"github.com/mkravts/commerce-platform-auth/internal/repository"
)

var userColumns = []string{
	"id",
	"email",
	"phone",
	"role",
	"status",
	"mfa_enabled",
	"created_at",
	"last_login",
}

// UserRepository implements port.UserRepository using PostgreSQL.
type UserRepository struct {
	pool    *pgxpool.Pool
	exec    pgExecutor
	builder squirrel.StatementBuilderType
}

// NewUserRepository wires a PostgreSQL-backed user repository.
func NewUserRepository(pool *pgxpool.Pool) *UserRepository {
	return &UserRepository{
		pool:    pool,
		exec:    pool,
		builder: squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}
}

// WithTx returns a repository instance operating within the supplied transaction.
func (r *UserRepository) WithTx(tx pgx.Tx) *UserRepository {
	if tx == nil {
		return r
	}
	return &UserRepository{
		pool:    r.pool,
		exec:    tx,
		builder: r.builder,
	}
}

// GetByID retrieves a user by identifier.
func (r *UserRepository) GetByID(ctx context.Context, id string) (*domain.User, error) {
	stmt, args, err := r.builder.
		Select(userColumns...).
		From("auth.users").
		Where(squirrel.Eq{"id": id}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select user sql: %w", err)
	}

	return r.scanUser(r.exec.QueryRow(ctx, stmt, args...), "scan user by id")
}

// GetByEmail retrieves a user by email address.
func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	stmt, args, err := r.builder.
		Select(userColumns...).
		From("auth.users").
		Where(squirrel.Eq{"email": email}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select user by email sql: %w", err)
	}

	return r.scanUser(r.exec.QueryRow(ctx, stmt, args...), "scan user by email")
}

// UpdateStatus transitions the account lifecycle state.
func (r *UserRepository) UpdateStatus(ctx context.Context, id string, status domain.UserStatus) error {
	stmt, args, err := r.builder.
		Update("auth.users").
		Set("status", status).
		Where(squirrel.Eq{"id": id}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build update user status sql: %w", err)
	}

	return repository.WithRetry(ctx, func(ctx context.Context) error {
		tag, err := r.exec.Exec(ctx, stmt, args...)
		if err != nil {
			return fmt.Errorf("update user status: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return repository.ErrNotFound
		}
		return nil
	})
}

// TouchLastLogin stamps the most recent successful authentication.
func (r *UserRepository) TouchLastLogin(ctx context.Context, id string) error {
	stmt, args, err := r.builder.
		Update("auth.users").
		Set("last_login", time.Now().UTC()).
		Where(squirrel.Eq{"id": id}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build touch last login sql: %w", err)
	}

	if _, err := r.exec.Exec(ctx, stmt, args...); err != nil {
		return fmt.Errorf("touch last login: %w", err)
	}
	return nil
}

func (r *UserRepository) scanUser(row pgx.Row, action string) (*domain.User, error) {
	var user domain.User
	if err := row.Scan(
		&user.ID,
		&user.Email,
		&user.Phone,
		&user.Role,
		&user.Status,
		&user.MfaEnabled,
		&user.CreatedAt,
		&user.LastLogin,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("%s: %w", action, err)
	}
	return &user, nil
}

var _ port.UserRepository = (*UserRepository)(nil)
