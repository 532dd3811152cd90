// Package redis contains Redis-backed stores for short-lived state.
package redis

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	red "github.com/redis/go-redis/v9"

	"github.com/mkravts/commerce-platform-auth/internal/core/domain"
	"github.com/mkravts/commerce-platform-auth/internal/core/port"
	"github.com/mkravts/commerce-platform-auth/internal/repository"
)

const (
	defaultChallengePrefix = "auth:mfa"

	fieldCode      = "code"
	fieldCreatedAt = "created_at"
	fieldExpiresAt = "expires_at"
	fieldAttempts  = "attempts"
	fieldInvalid   = "invalid"
)

// MfaChallengeStore keeps the single active challenge per account in a Redis
// hash. The key TTL is a cleanup bound only; expiry semantics live in the
// domain type. Put overwrites whatever challenge the account already had.
type MfaChallengeStore struct {
	client *red.Client
	prefix string
}

// NewMfaChallengeStore constructs a store with the provided client and key
// prefix.
func NewMfaChallengeStore(client *red.Client, keyPrefix string) *MfaChallengeStore {
	prefix := strings.TrimSpace(keyPrefix)
	if prefix == "" {
		prefix = defaultChallengePrefix
	}
	return &MfaChallengeStore{client: client, prefix: prefix}
}

// Put writes the challenge, superseding any existing one for the account.
func (s *MfaChallengeStore) Put(ctx context.Context, challenge domain.MfaChallenge, ttl time.Duration) error {
	if challenge.AccountID == "" {
		return errors.New("account id is required")
	}
	if ttl <= 0 {
		return errors.New("ttl must be positive")
	}

	key := s.key(challenge.AccountID)

	pipe := s.client.TxPipeline()
	pipe.Del(ctx, key)
	pipe.HSet(ctx, key, map[string]any{
		fieldCode:      challenge.Code,
		fieldCreatedAt: strconv.FormatInt(challenge.CreatedAt.Unix(), 10),
		fieldExpiresAt: strconv.FormatInt(challenge.ExpiresAt.Unix(), 10),
		fieldAttempts:  strconv.Itoa(challenge.AttemptsRemaining),
		fieldInvalid:   boolField(challenge.Invalid),
	})
	pipe.Expire(ctx, key, ttl)

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis store challenge: %w", err)
	}
	return nil
}

// Get retrieves the account's challenge.
func (s *MfaChallengeStore) Get(ctx context.Context, accountID string) (*domain.MfaChallenge, error) {
	key := s.key(accountID)

	values, err := s.client.HGetAll(ctx, key).Result()
	if err != nil {
		return nil, fmt.Errorf("redis hgetall challenge: %w", err)
	}
	if len(values) == 0 {
		return nil, repository.ErrNotFound
	}

	createdAt, err := parseUnix(values[fieldCreatedAt])
	if err != nil {
		return nil, fmt.Errorf("parse created_at: %w", err)
	}
	expiresAt, err := parseUnix(values[fieldExpiresAt])
	if err != nil {
		return nil, fmt.Errorf("parse expires_at: %w", err)
	}

	attempts := 0
	if raw := values[fieldAttempts]; raw != "" {
		if v, convErr := strconv.Atoi(raw); convErr == nil {
			attempts = v
		}
	}

	return &domain.MfaChallenge{
		AccountID:         accountID,
		Code:              values[fieldCode],
		CreatedAt:         createdAt,
		ExpiresAt:         expiresAt,
		AttemptsRemaining: attempts,
		Invalid:           values[fieldInvalid] == "1",
	}, nil
}

// DecrementAttempts consumes one verification attempt and returns the number
// remaining.
func (s *MfaChallengeStore) DecrementAttempts(ctx context.Context, accountID string) (int, error) {
	if _, err := s.Get(ctx, accountID); err != nil {
		return 0, err
	}

	remaining, err := s.client.HIncrBy(ctx, s.key(accountID), fieldAttempts, -1).Result()
	if err != nil {
		return 0, fmt.Errorf("redis hincrby challenge attempts: %w", err)
	}
	return int(remaining), nil
}

// Invalidate marks the challenge permanently unusable while leaving the key
// readable until its TTL, so later replays see an expired challenge instead
// of an unknown one.
func (s *MfaChallengeStore) Invalidate(ctx context.Context, accountID string) error {
	key := s.key(accountID)

	exists, err := s.client.Exists(ctx, key).Result()
	if err != nil {
		return fmt.Errorf("redis check challenge: %w", err)
	}
	if exists == 0 {
		return repository.ErrNotFound
	}

	if err := s.client.HSet(ctx, key, fieldInvalid, "1").Err(); err != nil {
		return fmt.Errorf("redis invalidate challenge: %w", err)
	}
	return nil
}

// Delete removes the challenge outright.
func (s *MfaChallengeStore) Delete(ctx context.Context, accountID string) error {
	deleted, err := s.client.Del(ctx, s.key(accountID)).Result()
	if err != nil {
		return fmt.Errorf("redis delete challenge: %w", err)
	}
	if deleted == 0 {
		return repository.ErrNotFound
	}
	return nil
}

func (s *MfaChallengeStore) key(accountID string) string {
	return fmt.Sprintf("%s:%s", s.prefix, accountID)
}

func boolField(v bool) string {
	if v {
		return "1"
	}
	return "0"
}

func parseUnix(raw string) (time.Time, error) {
	if strings.TrimSpace(raw) == "" {
		return time.Time{}, errors.New("timestamp is empty")
	}
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return time.Time{}, err
	}
	return time.Unix(v, 0).UTC(), nil
}

var _ port.MfaChallengeStore = (*MfaChallengeStore)(nil)
