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

// securityConfigRowID pins the singleton row.
const securityConfigRowID = 1

// SecurityConfigRepository implements port.SecurityConfigRepository for
// PostgreSQL. Durations are stored as integer seconds.
type SecurityConfigRepository struct {
	pool    *pgxpool.Pool
	builder squirrel.StatementBuilderType
}

// NewSecurityConfigRepository constructs a SecurityConfigRepository.
func NewSecurityConfigRepository(pool *pgxpool.Pool) *SecurityConfigRepository {
	return &SecurityConfigRepository{
		pool:    pool,
		builder: squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}
}

// Get returns the persisted parameter set, or repository.ErrNotFound when no
// row has ever been written.
func (r *SecurityConfigRepository) Get(ctx context.Context) (*domain.SecurityConfig, error) {
	stmt, args, err := r.builder.
		Select(
			"jwt_lifetime_seconds",
			"session_lifetime_seconds",
			"renewal_threshold_seconds",
			"otp_lifetime_seconds",
			"max_failed_attempts",
			"block_period_days",
			"max_blocks_in_period",
			"updated_at",
		).
		From("auth.security_config").
		Where(squirrel.Eq{"id": securityConfigRowID}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select security config sql: %w", err)
	}

	var (
		jwtSeconds     int64
		sessionSeconds int64
		renewalSeconds int64
		otpSeconds     int64
		cfg            domain.SecurityConfig
	)
	if err := r.pool.QueryRow(ctx, stmt, args...).Scan(
		&jwtSeconds,
		&sessionSeconds,
		&renewalSeconds,
		&otpSeconds,
		&cfg.MaxFailedAttempts,
		&cfg.BlockPeriodDays,
		&cfg.MaxBlocksInPeriod,
		&cfg.UpdatedAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("scan security config: %w", err)
	}

	cfg.JWTLifetime = time.Duration(jwtSeconds) * time.Second
	cfg.SessionLifetime = time.Duration(sessionSeconds) * time.Second
	cfg.RenewalThreshold = time.Duration(renewalSeconds) * time.Second
	cfg.OTPLifetime = time.Duration(otpSeconds) * time.Second
	return &cfg, nil
}

// Upsert writes the singleton row, replacing any previous values.
func (r *SecurityConfigRepository) Upsert(ctx context.Context, cfg domain.SecurityConfig) error {
	stmt, args, err := r.builder.
		Insert("auth.security_config").
		Columns(
			"id",
			"jwt_lifetime_seconds",
			"session_lifetime_seconds",
			"renewal_threshold_seconds",
			"otp_lifetime_seconds",
			"max_failed_attempts",
			"block_period_days",
			"max_blocks_in_period",
			"updated_at",
		).
		Values(
			securityConfigRowID,
			int64(cfg.JWTLifetime/time.Second),
			int64(cfg.SessionLifetime/time.Second),
			int64(cfg.RenewalThreshold/time.Second),
			int64(cfg.OTPLifetime/time.Second),
			cfg.MaxFailedAttempts,
			cfg.BlockPeriodDays,
			cfg.MaxBlocksInPeriod,
			cfg.UpdatedAt,
		).
		Suffix(`ON CONFLICT (id) DO UPDATE SET
			jwt_lifetime_seconds = EXCLUDED.jwt_lifetime_seconds,
			session_lifetime_seconds = EXCLUDED.session_lifetime_seconds,
			renewal_threshold_seconds = EXCLUDED.renewal_threshold_seconds,
			otp_lifetime_seconds = EXCLUDED.otp_lifetime_seconds,
			max_failed_attempts = EXCLUDED.max_failed_attempts,
			block_period_days = EXCLUDED.block_period_days,
			max_blocks_in_period = EXCLUDED.max_blocks_in_period,
			updated_at = EXCLUDED.updated_at`).
		ToSql()
	if err != nil {
		return fmt.Errorf("build upsert security config sql: %w", err)
	}

	return repository.WithRetry(ctx, func(ctx context.Context) error {
		if _, err := r.pool.Exec(ctx, stmt, args...); err != nil {
			return fmt.Errorf("upsert security config: %w", err)
		}
		return nil
	})
}

var _ port.SecurityConfigRepository = (*SecurityConfigRepository)(nil)
