// Package postgres contains the PostgreSQL persistence layer. All SQL is
// built with squirrel against the auth schema; repositories accept an
// optional transaction via WithTx so multi-row invariants can run under a
// single user-scoped lock.
package postgres

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// pgExecutor abstracts over a pool and a transaction.
type pgExecutor interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Repositories groups the concrete PostgreSQL repository implementations.
type Repositories struct {
	Users          *UserRepository
	Credentials    *CredentialRepository
	Sessions       *SessionRepository
	FailedAttempts *FailedAttemptRepository
	SecurityConfig *SecurityConfigRepository
}

// NewRepositories wires all repositories backed by the provided pool.
func NewRepositories(pool *pgxpool.Pool) *Repositories {
	return &Repositories{
		Users:          NewUserRepository(pool),
		Credentials:    NewCredentialRepository(pool),
		Sessions:       NewSessionRepository(pool),
		FailedAttempts: NewFailedAttemptRepository(pool),
		SecurityConfig: NewSecurityConfigRepository(pool),
	}
}
