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

var sessionColumns = []string{
	"id",
	"user_id",
	"token_hash",
	"client_id",
	"client_class",
	"ip",
	"created_at",
	"expires_at",
	"last_activity",
	"revoked_at",
	"revoke_reason",
}

// SessionRepository implements port.SessionRepository for PostgreSQL.
type SessionRepository struct {
	pool    *pgxpool.Pool
	builder squirrel.StatementBuilderType
}

// NewSessionRepository constructs a SessionRepository.
func NewSessionRepository(pool *pgxpool.Pool) *SessionRepository {
	return &SessionRepository{
		pool:    pool,
		builder: squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}
}

// CreateWithCap inserts the session after locking the owner's user row and
// re-counting active sessions under that lock. Two concurrent logins for the
// same user therefore serialize, and at most cap sessions survive.
func (r *SessionRepository) CreateWithCap(ctx context.Context, session domain.Session, cap int) error {
	return repository.WithRetry(ctx, func(ctx context.Context) error {
		tx, err := r.pool.Begin(ctx)
		if err != nil {
			return fmt.Errorf("begin create session: %w", err)
		}
		defer tx.Rollback(ctx)

		if err := lockUserRow(ctx, tx, session.UserID); err != nil {
			return err
		}

		if cap > 0 {
			countStmt, countArgs, err := r.builder.
				Select("COUNT(*)").
				From("auth.sessions").
				Where(squirrel.Eq{"user_id": session.UserID}).
				Where("revoked_at IS NULL").
				Where(squirrel.Gt{"expires_at": session.CreatedAt}).
				ToSql()
			if err != nil {
				return fmt.Errorf("build count sessions sql: %w", err)
			}

			var active int
			if err := tx.QueryRow(ctx, countStmt, countArgs...).Scan(&active); err != nil {
				return fmt.Errorf("count active sessions: %w", err)
			}
			if active >= cap {
				return repository.ErrSessionCapReached
			}
		}

		insertStmt, insertArgs, err := r.builder.
			Insert("auth.sessions").
			Columns(sessionColumns...).
			Values(
				session.ID,
				session.UserID,
				session.TokenHash,
				session.ClientID,
				session.ClientClass,
				session.IP,
				session.CreatedAt,
				session.ExpiresAt,
				session.LastActivity,
				session.RevokedAt,
				session.RevokeReason,
			).
			ToSql()
		if err != nil {
			return fmt.Errorf("build insert session sql: %w", err)
		}
		if _, err := tx.Exec(ctx, insertStmt, insertArgs...); err != nil {
			return fmt.Errorf("insert session: %w", err)
		}

		if err := tx.Commit(ctx); err != nil {
			return fmt.Errorf("commit create session: %w", err)
		}
		return nil
	})
}

// GetByTokenHash returns the session whose current token hashes to the given
// value, revoked or not.
func (r *SessionRepository) GetByTokenHash(ctx context.Context, tokenHash string) (*domain.Session, error) {
	stmt, args, err := r.builder.
		Select(sessionColumns...).
		From("auth.sessions").
		Where(squirrel.Eq{"token_hash": tokenHash}).
		Limit(1).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select session by token sql: %w", err)
	}

	return scanSession(r.pool.QueryRow(ctx, stmt, args...))
}

// ReplaceToken swaps the token hash and expiration in place. The WHERE guard
// on the previous hash and revoked_at makes the renewal lose cleanly to a
// concurrent revoke or a concurrent renewal that committed first.
func (r *SessionRepository) ReplaceToken(ctx context.Context, sessionID, oldTokenHash, newTokenHash string, expiresAt, at time.Time) error {
	stmt, args, err := r.builder.
		Update("auth.sessions").
		Set("token_hash", newTokenHash).
		Set("expires_at", expiresAt).
		Set("last_activity", at).
		Where(squirrel.Eq{"id": sessionID}).
		Where(squirrel.Eq{"token_hash": oldTokenHash}).
		Where("revoked_at IS NULL").
		ToSql()
	if err != nil {
		return fmt.Errorf("build replace token sql: %w", err)
	}

	return repository.WithRetry(ctx, func(ctx context.Context) error {
		tag, err := r.pool.Exec(ctx, stmt, args...)
		if err != nil {
			return fmt.Errorf("replace session token: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return repository.ErrNotFound
		}
		return nil
	})
}

// TouchActivity advances the session's last activity timestamp.
func (r *SessionRepository) TouchActivity(ctx context.Context, sessionID string, at time.Time) error {
	stmt, args, err := r.builder.
		Update("auth.sessions").
		Set("last_activity", at).
		Where(squirrel.Eq{"id": sessionID}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build touch session sql: %w", err)
	}

	if _, err := r.pool.Exec(ctx, stmt, args...); err != nil {
		return fmt.Errorf("touch session: %w", err)
	}
	return nil
}

// Revoke marks the session revoked. The returned count is zero when the
// session was already revoked, letting callers keep revocation idempotent
// while still reporting first-time transitions.
func (r *SessionRepository) Revoke(ctx context.Context, sessionID, reason string, at time.Time) (int, error) {
	stmt, args, err := r.builder.
		Update("auth.sessions").
		Set("revoked_at", at).
		Set("revoke_reason", reason).
		Where(squirrel.Eq{"id": sessionID}).
		Where("revoked_at IS NULL").
		ToSql()
	if err != nil {
		return 0, fmt.Errorf("build revoke session sql: %w", err)
	}

	var affected int
	err = repository.WithRetry(ctx, func(ctx context.Context) error {
		tag, err := r.pool.Exec(ctx, stmt, args...)
		if err != nil {
			return fmt.Errorf("revoke session: %w", err)
		}
		affected = int(tag.RowsAffected())
		return nil
	})
	return affected, err
}

// RevokeAllForUser revokes every active session the user holds.
func (r *SessionRepository) RevokeAllForUser(ctx context.Context, userID, reason string, at time.Time) (int, error) {
	stmt, args, err := r.builder.
		Update("auth.sessions").
		Set("revoked_at", at).
		Set("revoke_reason", reason).
		Where(squirrel.Eq{"user_id": userID}).
		Where("revoked_at IS NULL").
		Where(squirrel.Gt{"expires_at": at}).
		ToSql()
	if err != nil {
		return 0, fmt.Errorf("build revoke user sessions sql: %w", err)
	}

	var affected int
	err = repository.WithRetry(ctx, func(ctx context.Context) error {
		tag, err := r.pool.Exec(ctx, stmt, args...)
		if err != nil {
			return fmt.Errorf("revoke sessions for user: %w", err)
		}
		affected = int(tag.RowsAffected())
		return nil
	})
	return affected, err
}

// CountActive counts non-revoked, non-expired sessions for the user.
func (r *SessionRepository) CountActive(ctx context.Context, userID string, at time.Time) (int, error) {
	stmt, args, err := r.builder.
		Select("COUNT(*)").
		From("auth.sessions").
		Where(squirrel.Eq{"user_id": userID}).
		Where("revoked_at IS NULL").
		Where(squirrel.Gt{"expires_at": at}).
		ToSql()
	if err != nil {
		return 0, fmt.Errorf("build count sessions sql: %w", err)
	}

	var count int
	if err := r.pool.QueryRow(ctx, stmt, args...).Scan(&count); err != nil {
		return 0, fmt.Errorf("count active sessions: %w", err)
	}
	return count, nil
}

// ListActiveByUser returns non-revoked, non-expired sessions for the user,
// most recently active first.
func (r *SessionRepository) ListActiveByUser(ctx context.Context, userID string, at time.Time) ([]domain.Session, error) {
	stmt, args, err := r.builder.
		Select(sessionColumns...).
		From("auth.sessions").
		Where(squirrel.Eq{"user_id": userID}).
		Where("revoked_at IS NULL").
		Where(squirrel.Gt{"expires_at": at}).
		OrderBy("last_activity DESC").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build list sessions sql: %w", err)
	}

	rows, err := r.pool.Query(ctx, stmt, args...)
	if err != nil {
		return nil, fmt.Errorf("query sessions: %w", err)
	}
	defer rows.Close()

	var sessions []domain.Session
	for rows.Next() {
		session, err := scanSessionRow(rows)
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, *session)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate sessions: %w", err)
	}
	return sessions, nil
}

func lockUserRow(ctx context.Context, tx pgx.Tx, userID string) error {
	var id string
	if err := tx.QueryRow(ctx, "SELECT id FROM auth.users WHERE id = $1 FOR UPDATE", userID).Scan(&id); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return repository.ErrNotFound
		}
		return fmt.Errorf("lock user row: %w", err)
	}
	return nil
}

func scanSession(row pgx.Row) (*domain.Session, error) {
	var session domain.Session
	if err := row.Scan(
		&session.ID,
		&session.UserID,
		&session.TokenHash,
		&session.ClientID,
		&session.ClientClass,
		&session.IP,
		&session.CreatedAt,
		&session.ExpiresAt,
		&session.LastActivity,
		&session.RevokedAt,
		&session.RevokeReason,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("scan session: %w", err)
	}
	return &session, nil
}

func scanSessionRow(rows pgx.Rows) (*domain.Session, error) {
	var session domain.Session
	if err := rows.Scan(
		&session.ID,
		&session.UserID,
		&session.TokenHash,
		&session.ClientID,
		&session.ClientClass,
		&session.IP,
		&session.CreatedAt,
		&session.ExpiresAt,
		&session.LastActivity,
		&session.RevokedAt,
		&session.RevokeReason,
	); err != nil {
		return nil, fmt.Errorf("scan session: %w", err)
	}
	return &session, nil
}

var _ port.SessionRepository = (*SessionRepository)(nil)
