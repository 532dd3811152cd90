package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	squirrel "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/mkravts/commerce-platform-auth/internal/core/domain"
	"github.com/mkravts/commerce-platform-auth/internal/core/port"
	"github.com/mkravts/commerce-platform-auth/internal/repository"
)

// CredentialRepository implements port.CredentialRepository using PostgreSQL.
type CredentialRepository struct {
	pool    *pgxpool.Pool
	builder squirrel.StatementBuilderType
}

// NewCredentialRepository wires a PostgreSQL-backed credential repository.
func NewCredentialRepository(pool *pgxpool.Pool) *CredentialRepository {
	return &CredentialRepository{
		pool:    pool,
		builder: squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}
}

// Get returns the password material for the user.
func (r *CredentialRepository) Get(ctx context.Context, userID string) (*domain.Credential, error) {
	stmt, args, err := r.builder.
		Select("user_id", "password_hash", "last_changed_at", "max_failed_attempts").
		From("auth.credentials").
		Where(squirrel.Eq{"user_id": userID}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select credential sql: %w", err)
	}

	var cred domain.Credential
	if err := r.pool.QueryRow(ctx, stmt, args...).Scan(
		&cred.UserID,
		&cred.PasswordHash,
		&cred.LastChangedAt,
		&cred.MaxFailedAttempts,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("scan credential: %w", err)
	}
	return &cred, nil
}

// UpdateHash replaces the current password hash and appends the previous hash
// to the history, in one transaction.
func (r *CredentialRepository) UpdateHash(ctx context.Context, userID, newHash string, changedAt time.Time) error {
	return repository.WithRetry(ctx, func(ctx context.Context) error {
		tx, err := r.pool.Begin(ctx)
		if err != nil {
			return fmt.Errorf("begin credential update: %w", err)
		}
		defer tx.Rollback(ctx)

		var currentHash string
		var currentSetAt time.Time
		selectStmt, selectArgs, err := r.builder.
			Select("password_hash", "last_changed_at").
			From("auth.credentials").
			Where(squirrel.Eq{"user_id": userID}).
			Suffix("FOR UPDATE").
			ToSql()
		if err != nil {
			return fmt.Errorf("build lock credential sql: %w", err)
		}
		if err := tx.QueryRow(ctx, selectStmt, selectArgs...).Scan(&currentHash, &currentSetAt); err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return repository.ErrNotFound
			}
			return fmt.Errorf("lock credential: %w", err)
		}

		historyStmt, historyArgs, err := r.builder.
			Insert("auth.credential_history").
			Columns("id", "user_id", "password_hash", "set_at").
			Values(uuid.NewString(), userID, currentHash, currentSetAt).
			ToSql()
		if err != nil {
			return fmt.Errorf("build insert credential history sql: %w", err)
		}
		if _, err := tx.Exec(ctx, historyStmt, historyArgs...); err != nil {
			return fmt.Errorf("insert credential history: %w", err)
		}

		updateStmt, updateArgs, err := r.builder.
			Update("auth.credentials").
			Set("password_hash", newHash).
			Set("last_changed_at", changedAt).
			Where(squirrel.Eq{"user_id": userID}).
			ToSql()
		if err != nil {
			return fmt.Errorf("build update credential sql: %w", err)
		}
		if _, err := tx.Exec(ctx, updateStmt, updateArgs...); err != nil {
			return fmt.Errorf("update credential: %w", err)
		}

		if err := tx.Commit(ctx); err != nil {
			return fmt.Errorf("commit credential update: %w", err)
		}
		return nil
	})
}

// ListHistory returns prior password hashes, most recent first.
func (r *CredentialRepository) ListHistory(ctx context.Context, userID string) ([]domain.CredentialHistory, error) {
	stmt, args, err := r.builder.
		Select("id", "user_id", "password_hash", "set_at").
		From("auth.credential_history").
		Where(squirrel.Eq{"user_id": userID}).
		OrderBy("set_at DESC").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build list credential history sql: %w", err)
	}

	rows, err := r.pool.Query(ctx, stmt, args...)
	if err != nil {
		return nil, fmt.Errorf("query credential history: %w", err)
	}
	defer rows.Close()

	var history []domain.CredentialHistory
	for rows.Next() {
		var entry domain.CredentialHistory
		if err := rows.Scan(&entry.ID, &entry.UserID, &entry.PasswordHash, &entry.SetAt); err != nil {
			return nil, fmt.Errorf("scan credential history: %w", err)
		}
		history = append(history, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate credential history: %w", err)
	}
	return history, nil
}

var _ port.CredentialRepository = (*CredentialRepository)(nil)
