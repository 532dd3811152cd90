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

var failedAttemptColumns = []string{
	"id",
	"user_id",
	"attempt_count",
	"first_attempt_at",
	"last_attempt_at",
	"ip",
	"resolved",
	"lockout_episode",
	"resolved_at",
}

// FailedAttemptRepository implements port.FailedAttemptRepository for
// PostgreSQL.
type FailedAttemptRepository struct {
	pool    *pgxpool.Pool
	builder squirrel.StatementBuilderType
}

// NewFailedAttemptRepository constructs a FailedAttemptRepository.
func NewFailedAttemptRepository(pool *pgxpool.Pool) *FailedAttemptRepository {
	return &FailedAttemptRepository{
		pool:    pool,
		builder: squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}
}

// RecordFailure performs the whole increment-then-evaluate sequence under a
// user-row lock: create or bump the open record, and when the count reaches
// threshold close it as a lockout episode and flip the user status, escalating
// to a permanent lock when the episode count inside the window (including the
// one just recorded) reaches maxEpisodes.
func (r *FailedAttemptRepository) RecordFailure(ctx context.Context, userID string, ip *string, threshold int, window time.Duration, maxEpisodes int) (domain.LockoutDecision, error) {
	decision := domain.LockoutDecision{Threshold: threshold}

	err := repository.WithRetry(ctx, func(ctx context.Context) error {
		tx, err := r.pool.Begin(ctx)
		if err != nil {
			return fmt.Errorf("begin record failure: %w", err)
		}
		defer tx.Rollback(ctx)

		if err := lockUserRow(ctx, tx, userID); err != nil {
			return err
		}

		now := time.Now().UTC()
		record, err := r.getOpen(ctx, tx, userID)
		switch {
		case errors.Is(err, repository.ErrNotFound):
			record = &domain.FailedAttemptRecord{
				ID:             uuid.NewString(),
				UserID:         userID,
				Count:          1,
				FirstAttemptAt: now,
				LastAttemptAt:  now,
				IP:             ip,
			}
			insertStmt, insertArgs, err := r.builder.
				Insert("auth.failed_attempts").
				Columns(failedAttemptColumns...).
				Values(record.ID, record.UserID, record.Count, record.FirstAttemptAt, record.LastAttemptAt, record.IP, false, false, nil).
				ToSql()
			if err != nil {
				return fmt.Errorf("build insert failed attempt sql: %w", err)
			}
			if _, err := tx.Exec(ctx, insertStmt, insertArgs...); err != nil {
				return fmt.Errorf("insert failed attempt: %w", err)
			}
		case err != nil:
			return err
		default:
			record.Count++
			record.LastAttemptAt = now
			updateStmt, updateArgs, err := r.builder.
				Update("auth.failed_attempts").
				Set("attempt_count", record.Count).
				Set("last_attempt_at", record.LastAttemptAt).
				Set("ip", ip).
				Where(squirrel.Eq{"id": record.ID}).
				ToSql()
			if err != nil {
				return fmt.Errorf("build update failed attempt sql: %w", err)
			}
			if _, err := tx.Exec(ctx, updateStmt, updateArgs...); err != nil {
				return fmt.Errorf("update failed attempt: %w", err)
			}
		}

		decision.Count = record.Count

		if threshold > 0 && record.Count >= threshold {
			decision.Locked = true

			resolveStmt, resolveArgs, err := r.builder.
				Update("auth.failed_attempts").
				Set("resolved", true).
				Set("lockout_episode", true).
				Set("resolved_at", now).
				Where(squirrel.Eq{"id": record.ID}).
				ToSql()
			if err != nil {
				return fmt.Errorf("build resolve failed attempt sql: %w", err)
			}
			if _, err := tx.Exec(ctx, resolveStmt, resolveArgs...); err != nil {
				return fmt.Errorf("resolve failed attempt: %w", err)
			}

			episodes, err := r.countEpisodes(ctx, tx, userID, now.Add(-window))
			if err != nil {
				return err
			}
			decision.EpisodesInWindow = episodes

			status := domain.UserStatusLockedTemporary
			if maxEpisodes > 0 && episodes >= maxEpisodes {
				decision.Permanent = true
				status = domain.UserStatusLockedPermanent
			}

			statusStmt, statusArgs, err := r.builder.
				Update("auth.users").
				Set("status", status).
				Where(squirrel.Eq{"id": userID}).
				ToSql()
			if err != nil {
				return fmt.Errorf("build lock user sql: %w", err)
			}
			if _, err := tx.Exec(ctx, statusStmt, statusArgs...); err != nil {
				return fmt.Errorf("lock user: %w", err)
			}
		}

		if err := tx.Commit(ctx); err != nil {
			return fmt.Errorf("commit record failure: %w", err)
		}
		return nil
	})
	if err != nil {
		return domain.LockoutDecision{}, err
	}
	return decision, nil
}

// ResolveOpen closes the open record without counting a lockout episode.
// A missing open record is not an error.
func (r *FailedAttemptRepository) ResolveOpen(ctx context.Context, userID string, at time.Time) error {
	stmt, args, err := r.builder.
		Update("auth.failed_attempts").
		Set("resolved", true).
		Set("resolved_at", at).
		Where(squirrel.Eq{"user_id": userID}).
		Where(squirrel.Eq{"resolved": false}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build resolve open attempt sql: %w", err)
	}

	return repository.WithRetry(ctx, func(ctx context.Context) error {
		if _, err := r.pool.Exec(ctx, stmt, args...); err != nil {
			return fmt.Errorf("resolve open attempt: %w", err)
		}
		return nil
	})
}

// ResolveAllAndUnlock resolves every unresolved record and restores the user
// to active status in one transaction. Historic lockout episodes stay on the
// books.
func (r *FailedAttemptRepository) ResolveAllAndUnlock(ctx context.Context, userID string, at time.Time) error {
	return repository.WithRetry(ctx, func(ctx context.Context) error {
		tx, err := r.pool.Begin(ctx)
		if err != nil {
			return fmt.Errorf("begin unlock: %w", err)
		}
		defer tx.Rollback(ctx)

		if err := lockUserRow(ctx, tx, userID); err != nil {
			return err
		}

		resolveStmt, resolveArgs, err := r.builder.
			Update("auth.failed_attempts").
			Set("resolved", true).
			Set("resolved_at", at).
			Where(squirrel.Eq{"user_id": userID}).
			Where(squirrel.Eq{"resolved": false}).
			ToSql()
		if err != nil {
			return fmt.Errorf("build resolve attempts sql: %w", err)
		}
		if _, err := tx.Exec(ctx, resolveStmt, resolveArgs...); err != nil {
			return fmt.Errorf("resolve attempts: %w", err)
		}

		statusStmt, statusArgs, err := r.builder.
			Update("auth.users").
			Set("status", domain.UserStatusActive).
			Where(squirrel.Eq{"id": userID}).
			ToSql()
		if err != nil {
			return fmt.Errorf("build unlock user sql: %w", err)
		}
		if _, err := tx.Exec(ctx, statusStmt, statusArgs...); err != nil {
			return fmt.Errorf("unlock user: %w", err)
		}

		if err := tx.Commit(ctx); err != nil {
			return fmt.Errorf("commit unlock: %w", err)
		}
		return nil
	})
}

// GetOpen returns the unresolved record for the user, if any.
func (r *FailedAttemptRepository) GetOpen(ctx context.Context, userID string) (*domain.FailedAttemptRecord, error) {
	return r.getOpen(ctx, r.pool, userID)
}

// CountEpisodesSince counts lockout episodes whose resolution falls at or
// after the supplied moment.
func (r *FailedAttemptRepository) CountEpisodesSince(ctx context.Context, userID string, since time.Time) (int, error) {
	return r.countEpisodes(ctx, r.pool, userID, since)
}

func (r *FailedAttemptRepository) getOpen(ctx context.Context, exec pgExecutor, userID string) (*domain.FailedAttemptRecord, error) {
	stmt, args, err := r.builder.
		Select(failedAttemptColumns...).
		From("auth.failed_attempts").
		Where(squirrel.Eq{"user_id": userID}).
		Where(squirrel.Eq{"resolved": false}).
		Suffix("FOR UPDATE").
		Limit(1).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select open attempt sql: %w", err)
	}

	var record domain.FailedAttemptRecord
	if err := exec.QueryRow(ctx, stmt, args...).Scan(
		&record.ID,
		&record.UserID,
		&record.Count,
		&record.FirstAttemptAt,
		&record.LastAttemptAt,
		&record.IP,
		&record.Resolved,
		&record.LockoutEpisode,
		&record.ResolvedAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("scan open attempt: %w", err)
	}
	return &record, nil
}

func (r *FailedAttemptRepository) countEpisodes(ctx context.Context, exec pgExecutor, userID string, since time.Time) (int, error) {
	stmt, args, err := r.builder.
		Select("COUNT(*)").
		From("auth.failed_attempts").
		Where(squirrel.Eq{"user_id": userID}).
		Where(squirrel.Eq{"lockout_episode": true}).
		Where(squirrel.GtOrEq{"resolved_at": since}).
		ToSql()
	if err != nil {
		return 0, fmt.Errorf("build count episodes sql: %w", err)
	}

	var count int
	if err := exec.QueryRow(ctx, stmt, args...).Scan(&count); err != nil {
		return 0, fmt.Errorf("count lockout episodes: %w", err)
	}
	return count, nil
}

var _ port.FailedAttemptRepository = (*FailedAttemptRepository)(nil)
